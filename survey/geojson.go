package survey

import (
	"math"

	"github.com/kwv/blockori/blk"
	"github.com/kwv/blockori/ga"
	"github.com/kwv/blockori/geo"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// Feature kinds written to the "kind" property
const (
	KindNode      = "node"
	KindTreeEdge  = "treeEdge"
	KindCheckEdge = "checkEdge"
	KindPoint     = "point"
	KindRay       = "ray"
)

// planPoint drops z; the plan view is the root frame's x-y plane
func planPoint(v ga.Vector) orb.Point {
	return orb.Point{v.X, v.Y}
}

// Heading returns the direction of a node's x axis in the root x-y plane,
// in degrees counter-clockwise from root x
func Heading(nodeWrtRoot ga.Attitude) float64 {
	axis := nodeWrtRoot.Inverse().Apply(ga.E1)
	return math.Atan2(axis.Y, axis.X) * 180 / math.Pi
}

// BlockToFeatureCollection exports the block in root coordinates: a point
// per node, a line per spanning tree edge and a line per extra measured
// edge carrying its residual
func BlockToFeatureCollection(sol *BlockSolution, colors map[string]string) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	if !sol.IsConnected() {
		return fc
	}

	for _, id := range sol.NodeIDs() {
		ori := sol.Orientations[id]
		f := geojson.NewFeature(planPoint(ori.Loc))
		f.ID = id
		f.Properties["kind"] = KindNode
		f.Properties["nodeId"] = id
		f.Properties["z"] = ori.Loc.Z
		f.Properties["heading"] = Heading(ori.Att)
		f.Properties["root"] = id == sol.Root
		if c, ok := colors[id]; ok {
			f.Properties["color"] = c
		}
		fc.Append(f)
	}

	for _, k := range sol.TreeEdges {
		fc.Append(edgeFeature(sol, k, KindTreeEdge))
	}
	for _, r := range sol.Residuals {
		if r.InTree {
			continue
		}
		f := edgeFeature(sol, r.Key, KindCheckEdge)
		f.Properties["locGap"] = r.LocGap
		f.Properties["angleGap"] = r.AngleGap
		fc.Append(f)
	}
	return fc
}

func edgeFeature(sol *BlockSolution, k blk.EdgeKey[string], kind string) *geojson.Feature {
	line := orb.LineString{
		planPoint(sol.Orientations[k.I].Loc),
		planPoint(sol.Orientations[k.J].Loc),
	}
	f := geojson.NewFeature(line)
	f.Properties["kind"] = kind
	f.Properties["from"] = k.I
	f.Properties["into"] = k.J
	f.Properties["planLength"] = planar.Length(line)
	return f
}

// PointsToFeatureCollection exports the valid point estimates
func PointsToFeatureCollection(points []PointEstimate) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, p := range points {
		if !p.Valid {
			continue
		}
		f := geojson.NewFeature(planPoint(ga.Vec(p.Location)))
		f.ID = p.ID
		f.Properties["kind"] = KindPoint
		f.Properties["z"] = p.Location[2]
		f.Properties["semiAxes"] = p.SemiAxes[:]
		f.Properties["robust"] = p.RobustLocation[:]
		f.Properties["numRays"] = p.NumRays
		fc.Append(f)
	}
	return fc
}

// RaysToFeatureCollection exports each ray as a segment of the given length
func RaysToFeatureCollection(rays []geo.Ray, length float64) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for i, r := range rays {
		if !r.IsValid() {
			continue
		}
		f := geojson.NewFeature(orb.LineString{planPoint(r.Start), planPoint(r.PointAt(length))})
		f.Properties["kind"] = KindRay
		f.Properties["index"] = i
		fc.Append(f)
	}
	return fc
}

// PlanBounds is the plan-view extent of nodes, points and ray starts
func PlanBounds(sol *BlockSolution, points []PointEstimate, rays []geo.Ray) (orb.Bound, bool) {
	var mp orb.MultiPoint
	if sol.IsConnected() {
		for _, ori := range sol.Orientations {
			mp = append(mp, planPoint(ori.Loc))
		}
	}
	for _, p := range points {
		if p.Valid {
			mp = append(mp, planPoint(ga.Vec(p.Location)))
		}
	}
	for _, r := range rays {
		if r.IsValid() {
			mp = append(mp, planPoint(r.Start))
		}
	}
	if len(mp) == 0 {
		return orb.Bound{}, false
	}
	return mp.Bound(), true
}
