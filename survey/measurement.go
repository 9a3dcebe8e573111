package survey

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
)

var (
	ErrInvalidMeasurement = errors.New("invalid measurement")
	ErrNotConnected       = errors.New("block is not connected")
)

// Validate rejects self-measurements, missing ids and non-finite values
func (m Measurement) Validate() error {
	if m.From == "" || m.Into == "" {
		return fmt.Errorf("%w: from and into are required", ErrInvalidMeasurement)
	}
	if m.From == m.Into {
		return fmt.Errorf("%w: %s measured against itself", ErrInvalidMeasurement, m.From)
	}
	for _, v := range append(m.Location[:], m.PhysAngle[:]...) {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite value for %s->%s", ErrInvalidMeasurement, m.From, m.Into)
		}
	}
	if m.Sigma < 0 {
		return fmt.Errorf("%w: negative sigma for %s->%s", ErrInvalidMeasurement, m.From, m.Into)
	}
	return nil
}

// LoadMeasurements reads a JSON file holding a measurement or an array of them
func LoadMeasurements(path string) ([]Measurement, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading measurements file: %w", err)
	}
	return DecodeMeasurements(data)
}

// SaveMeasurements writes measurements as an indented JSON array
func SaveMeasurements(path string, ms []Measurement) error {
	data, err := json.MarshalIndent(ms, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling measurements: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing measurements file: %w", err)
	}
	return nil
}

// LoadObservations reads the targets for point estimation
func LoadObservations(path string) (*ObservationSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading observations file: %w", err)
	}
	var set ObservationSet
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("parsing observations file: %w", err)
	}
	for i, t := range set.Targets {
		if t.ID == "" {
			return nil, fmt.Errorf("targets[%d].id is required", i)
		}
	}
	return &set, nil
}

// SavePointEstimates writes an estimation report
func SavePointEstimates(path string, points []PointEstimate) error {
	data, err := json.MarshalIndent(points, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling point estimates: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing point estimates: %w", err)
	}
	return nil
}

// LoadPointEstimates reads a report written by SavePointEstimates
func LoadPointEstimates(path string) ([]PointEstimate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading point estimates: %w", err)
	}
	var points []PointEstimate
	if err := json.Unmarshal(data, &points); err != nil {
		return nil, fmt.Errorf("parsing point estimates: %w", err)
	}
	return points, nil
}
