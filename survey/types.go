package survey

import (
	"sort"
	"time"

	"github.com/kwv/blockori/blk"
	"github.com/kwv/blockori/ga"
	"github.com/kwv/blockori/geo"
	"github.com/kwv/blockori/rigid"
)

// Measurement is one relative orientation reported by a station: the pose
// of station Into expressed in the frame of station From.
type Measurement struct {
	From      string     `json:"from"`
	Into      string     `json:"into"`
	Location  [3]float64 `json:"location"`  // origin of Into in From coordinates
	PhysAngle [3]float64 `json:"physAngle"` // axis * angle (radians), From -> Into
	Sigma     float64    `json:"sigma,omitempty"`
	Timestamp int64      `json:"timestamp,omitempty"`
}

// Transform returns the measurement as an IntoWrtFrom transform.
func (m Measurement) Transform() rigid.Transform {
	return rigid.New(ga.Vec(m.Location), ga.NewAttitude(ga.Vec(m.PhysAngle)))
}

// OriPair converts the measurement for block formation.
func (m Measurement) OriPair() blk.OriPair[string] {
	return blk.OriPair[string]{I: m.From, J: m.Into, OriJwrtI: m.Transform()}
}

// MeasurementFromPair builds a measurement from a relative orientation.
func MeasurementFromPair(p blk.OriPair[string], sigma float64) Measurement {
	return Measurement{
		From:      p.I,
		Into:      p.J,
		Location:  ga.Array(p.OriJwrtI.Loc),
		PhysAngle: ga.Array(p.OriJwrtI.Att.PhysAngle()),
		Sigma:     sigma,
	}
}

// NodeOrientation is a node's orientation relative to the block root, as
// published and cached.
type NodeOrientation struct {
	NodeID    string     `json:"nodeId"`
	Location  [3]float64 `json:"location"`
	PhysAngle [3]float64 `json:"physAngle"`
	Root      bool       `json:"root,omitempty"`
	Timestamp int64      `json:"timestamp"`
}

// Transform returns the NodeWrtRoot transform.
func (n NodeOrientation) Transform() rigid.Transform {
	return rigid.New(ga.Vec(n.Location), ga.NewAttitude(ga.Vec(n.PhysAngle)))
}

// NewNodeOrientation flattens a transform for JSON.
func NewNodeOrientation(id string, t rigid.Transform, root bool, ts int64) NodeOrientation {
	return NodeOrientation{
		NodeID:    id,
		Location:  ga.Array(t.Loc),
		PhysAngle: ga.Array(t.Att.PhysAngle()),
		Root:      root,
		Timestamp: ts,
	}
}

// RayObservation is a ray seen from a station, for point estimation.
type RayObservation struct {
	Station string     `json:"station,omitempty"`
	Start   [3]float64 `json:"start"`
	Dir     [3]float64 `json:"dir"`
	Sigma   float64    `json:"sigma,omitempty"` // angular sigma, radians
}

// NewRayObservation flattens a ray for JSON.
func NewRayObservation(station string, r geo.Ray, sigma float64) RayObservation {
	return RayObservation{Station: station, Start: ga.Array(r.Start), Dir: ga.Array(r.Dir), Sigma: sigma}
}

// Ray returns the geometric ray.
func (r RayObservation) Ray() geo.Ray {
	return geo.NewRay(ga.Vec(r.Start), ga.Vec(r.Dir))
}

// PlaneObservation constrains the target to a plane.
type PlaneObservation struct {
	Point  [3]float64 `json:"point"`
	Normal [3]float64 `json:"normal"`
	Sigma  float64    `json:"sigma,omitempty"` // linear sigma
}

// Plane returns the geometric plane.
func (p PlaneObservation) Plane() geo.Plane {
	return geo.NewPlane(ga.Vec(p.Point), ga.Vec(p.Normal))
}

// Target groups the observations of one point to be estimated.
type Target struct {
	ID     string             `json:"id"`
	Rays   []RayObservation   `json:"rays"`
	Planes []PlaneObservation `json:"planes,omitempty"`
}

// ObservationSet is the JSON document read by the estimate mode.
type ObservationSet struct {
	Targets []Target `json:"targets"`
}

// PointEstimate is the result of estimating one target.
type PointEstimate struct {
	ID             string     `json:"id"`
	Location       [3]float64 `json:"location"`
	RobustLocation [3]float64 `json:"robustLocation"`
	SemiAxes       [3]float64 `json:"semiAxes"` // largest first
	LikelyDistance float64    `json:"likelyDistance"`
	NumRays        int        `json:"numRays"`
	Valid          bool       `json:"valid"`
	Error          string     `json:"error,omitempty"`

	Profile []geo.DistProb `json:"-"`
	Peak    geo.DistProb   `json:"-"`
	Rays    []geo.Ray      `json:"-"`
}

// BlockSolution is a formed block with its consistency summary.
type BlockSolution struct {
	Root         string
	Orientations map[string]rigid.Transform
	TreeEdges    []blk.EdgeKey[string]
	Residuals    []blk.EdgeResidual[string]
	Components   int
	NumEdges     int
	MaxLocGap    float64
	MeanLocGap   float64
	MaxAngleGap  float64
	Formed       time.Time
}

// IsConnected reports whether the block holds any orientations.
func (s *BlockSolution) IsConnected() bool {
	return s != nil && len(s.Orientations) > 0
}

// NodeIDs returns the nodes of the block in sorted order.
func (s *BlockSolution) NodeIDs() []string {
	if s == nil {
		return nil
	}
	ids := make([]string, 0, len(s.Orientations))
	for id := range s.Orientations {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Nodes flattens the block for publishing and caching.
func (s *BlockSolution) Nodes() []NodeOrientation {
	ids := s.NodeIDs()
	out := make([]NodeOrientation, 0, len(ids))
	for _, id := range ids {
		out = append(out, NewNodeOrientation(id, s.Orientations[id], id == s.Root, s.Formed.Unix()))
	}
	return out
}

// StationConfig describes a known station.
type StationConfig struct {
	ID    string `yaml:"id" json:"id"`
	Color string `yaml:"color" json:"color"`
}

// BlockConfig controls block formation.
type BlockConfig struct {
	Root             string  `yaml:"root,omitempty" json:"root,omitempty"`
	Weighting        string  `yaml:"weighting,omitempty" json:"weighting,omitempty"` // "uniform" or "sigma"
	FallbackSigma    float64 `yaml:"fallbackSigma,omitempty" json:"fallbackSigma,omitempty"`
	MeasurementTopic string  `yaml:"measurementTopic" json:"measurementTopic"`
	MinEdges         int     `yaml:"minEdges,omitempty" json:"minEdges,omitempty"`
}

// EstimationConfig controls point estimation.
type EstimationConfig struct {
	Bins        int     `yaml:"bins,omitempty" json:"bins,omitempty"`
	MinDistance float64 `yaml:"minDistance,omitempty" json:"minDistance,omitempty"`
	MaxDistance float64 `yaml:"maxDistance,omitempty" json:"maxDistance,omitempty"`
	RaySigma    float64 `yaml:"raySigma,omitempty" json:"raySigma,omitempty"`
	MinAngleDeg float64 `yaml:"minAngleDeg,omitempty" json:"minAngleDeg,omitempty"`
	RejectTol   float64 `yaml:"rejectTol,omitempty" json:"rejectTol,omitempty"`
	Concurrency int     `yaml:"concurrency,omitempty" json:"concurrency,omitempty"`
}

// Config represents the full configuration file
type Config struct {
	MQTT       MQTTConfig       `yaml:"mqtt" json:"mqtt"`
	Block      BlockConfig      `yaml:"block" json:"block"`
	Estimation EstimationConfig `yaml:"estimation,omitempty" json:"estimation,omitempty"`
	Stations   []StationConfig  `yaml:"stations,omitempty" json:"stations,omitempty"`
}

// MQTTConfig holds MQTT connection settings
type MQTTConfig struct {
	Broker        string `yaml:"broker" json:"broker"`
	PublishPrefix string `yaml:"publishPrefix" json:"publishPrefix"`
	ClientID      string `yaml:"clientId" json:"clientId"`
	Username      string `yaml:"username,omitempty" json:"username,omitempty"`
	Password      string `yaml:"password,omitempty" json:"password,omitempty"`
}

// GetStationByID returns the station config for the given ID
func (c *Config) GetStationByID(id string) *StationConfig {
	for i := range c.Stations {
		if c.Stations[i].ID == id {
			return &c.Stations[i]
		}
	}
	return nil
}
