package survey

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Defaults applied to a loaded config
const (
	DefaultBins          = 512
	DefaultMinDistance   = 0.5
	DefaultMaxDistance   = 50.0
	DefaultRaySigma      = 0.005
	DefaultMinAngleDeg   = 1.0
	DefaultRejectTol     = 0.05
	DefaultConcurrency   = 4
	DefaultFallbackSigma = 1.0

	WeightingUniform = "uniform"
	WeightingSigma   = "sigma"
)

// LoadConfig loads the configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	config.ApplyDefaults()

	return &config, nil
}

// Validate checks required fields and value ranges
func (c *Config) Validate() error {
	if c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required")
	}
	if c.Block.MeasurementTopic == "" {
		return fmt.Errorf("block.measurementTopic is required")
	}
	switch c.Block.Weighting {
	case "", WeightingUniform, WeightingSigma:
	default:
		return fmt.Errorf("block.weighting must be %q or %q, got %q", WeightingUniform, WeightingSigma, c.Block.Weighting)
	}
	if c.Block.MinEdges < 0 {
		return fmt.Errorf("block.minEdges must not be negative")
	}

	est := c.Estimation
	if est.Bins != 0 && est.Bins < 3 {
		return fmt.Errorf("estimation.bins must be at least 3, got %d", est.Bins)
	}
	if est.MaxDistance != 0 && est.MaxDistance <= est.MinDistance {
		return fmt.Errorf("estimation.maxDistance (%g) must exceed minDistance (%g)", est.MaxDistance, est.MinDistance)
	}
	if est.RaySigma < 0 || est.RejectTol < 0 {
		return fmt.Errorf("estimation sigmas and tolerances must not be negative")
	}

	seen := make(map[string]bool)
	for i, sc := range c.Stations {
		if sc.ID == "" {
			return fmt.Errorf("stations[%d].id is required", i)
		}
		if seen[sc.ID] {
			return fmt.Errorf("stations[%d].id %q is duplicated", i, sc.ID)
		}
		seen[sc.ID] = true
	}
	return nil
}

// ApplyDefaults fills unset optional fields
func (c *Config) ApplyDefaults() {
	if c.Block.Weighting == "" {
		c.Block.Weighting = WeightingUniform
	}
	if c.Block.FallbackSigma <= 0 {
		c.Block.FallbackSigma = DefaultFallbackSigma
	}
	est := &c.Estimation
	if est.Bins == 0 {
		est.Bins = DefaultBins
	}
	if est.MaxDistance == 0 {
		if est.MinDistance == 0 {
			est.MinDistance = DefaultMinDistance
		}
		est.MaxDistance = DefaultMaxDistance
	}
	if est.RaySigma == 0 {
		est.RaySigma = DefaultRaySigma
	}
	if est.MinAngleDeg == 0 {
		est.MinAngleDeg = DefaultMinAngleDeg
	}
	if est.RejectTol == 0 {
		est.RejectTol = DefaultRejectTol
	}
	if est.Concurrency <= 0 {
		est.Concurrency = DefaultConcurrency
	}
}

// DefaultConfig returns a config usable without a file, for offline modes
func DefaultConfig() *Config {
	c := &Config{
		MQTT:  MQTTConfig{Broker: "tcp://localhost:1883", ClientID: "blockori"},
		Block: BlockConfig{MeasurementTopic: "blockori/measurements"},
	}
	c.ApplyDefaults()
	return c
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(path string, config *Config) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("marshaling config YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// StationColors returns the configured hex color per station
func (c *Config) StationColors() map[string]string {
	colors := make(map[string]string, len(c.Stations))
	for _, sc := range c.Stations {
		if sc.Color != "" {
			colors[sc.ID] = sc.Color
		}
	}
	return colors
}
