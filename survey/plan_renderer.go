package survey

import (
	"fmt"
	"image/color"
	"image/png"
	"io"
	"math"

	"github.com/kwv/blockori/ga"
	"github.com/kwv/blockori/geo"
	"github.com/paulmach/orb"
	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/rasterizer"
	"github.com/tdewolff/canvas/renderers/svg"
)

// Palette cycles through these for nodes without a configured color
var Palette = []color.NRGBA{
	{0, 0, 139, 255},   // dark blue
	{139, 0, 0, 255},   // dark red
	{0, 100, 0, 255},   // dark green
	{148, 0, 211, 255}, // violet
	{255, 140, 0, 255}, // orange
	{0, 139, 139, 255}, // teal
}

// parseHexColor reads "#RRGGBB" or "#RRGGBBAA"
func parseHexColor(s string) (color.NRGBA, bool) {
	c := color.NRGBA{A: 255}
	switch len(s) {
	case 7:
		if _, err := fmt.Sscanf(s, "#%02x%02x%02x", &c.R, &c.G, &c.B); err != nil {
			return c, false
		}
	case 9:
		if _, err := fmt.Sscanf(s, "#%02x%02x%02x%02x", &c.R, &c.G, &c.B, &c.A); err != nil {
			return c, false
		}
	default:
		return c, false
	}
	return c, true
}

// nrgbaToRGBA premultiplies alpha for the canvas library
func nrgbaToRGBA(c color.NRGBA) color.RGBA {
	a := uint32(c.A)
	return color.RGBA{
		R: uint8(uint32(c.R) * a / 255),
		G: uint8(uint32(c.G) * a / 255),
		B: uint8(uint32(c.B) * a / 255),
		A: c.A,
	}
}

// PlanRenderer draws the plan view (root x-y plane) of a block with
// optional rays and point estimates
type PlanRenderer struct {
	Block      *BlockSolution
	Points     []PointEstimate
	Rays       []geo.Ray
	RayLength  float64 // world units
	Colors     map[string]string
	Scale      float64 // canvas millimeters per world unit
	Padding    float64 // world units
	NodeRadius float64 // world units
	Resolution canvas.Resolution
}

// NewPlanRenderer creates a renderer with default settings
func NewPlanRenderer(sol *BlockSolution, points []PointEstimate) *PlanRenderer {
	return &PlanRenderer{
		Block:      sol,
		Points:     points,
		RayLength:  5,
		Colors:     map[string]string{},
		Scale:      20,
		Padding:    1,
		NodeRadius: 0.15,
		Resolution: canvas.DPI(150),
	}
}

// canvasRenderer is implemented by both the svg and rasterizer renderers
type canvasRenderer interface {
	RenderPath(path *canvas.Path, style canvas.Style, m canvas.Matrix)
}

func (r *PlanRenderer) bounds() (orb.Bound, error) {
	b, ok := PlanBounds(r.Block, r.Points, r.Rays)
	if !ok {
		return b, fmt.Errorf("nothing to render")
	}
	return b.Pad(r.Padding), nil
}

// size returns the canvas size in millimeters
func (r *PlanRenderer) size(b orb.Bound) (float64, float64) {
	w := math.Max(b.Max.X()-b.Min.X(), r.NodeRadius*4)
	h := math.Max(b.Max.Y()-b.Min.Y(), r.NodeRadius*4)
	return w * r.Scale, h * r.Scale
}

// RenderToSVG writes the plan as an SVG to the provided writer
func (r *PlanRenderer) RenderToSVG(w io.Writer) error {
	b, err := r.bounds()
	if err != nil {
		return err
	}
	width, height := r.size(b)
	svgRenderer := svg.New(w, width, height, nil)
	r.renderToCanvas(svgRenderer, b, width, height)
	return svgRenderer.Close()
}

// RenderToPNG writes the plan as a PNG to the provided writer
func (r *PlanRenderer) RenderToPNG(w io.Writer) error {
	b, err := r.bounds()
	if err != nil {
		return err
	}
	width, height := r.size(b)
	rast := rasterizer.New(width, height, r.Resolution, canvas.DefaultColorSpace)
	r.renderToCanvas(rast, b, width, height)
	return png.Encode(w, rast)
}

func (r *PlanRenderer) nodeColor(id string, i int) color.RGBA {
	if c, ok := parseHexColor(r.Colors[id]); ok {
		return nrgbaToRGBA(c)
	}
	return nrgbaToRGBA(Palette[i%len(Palette)])
}

func (r *PlanRenderer) renderToCanvas(renderer canvasRenderer, b orb.Bound, width, height float64) {
	bg := canvas.DefaultStyle
	bg.Fill = canvas.Paint{Color: canvas.White}
	renderer.RenderPath(canvas.Rectangle(width, height), bg, canvas.Identity)

	toCanvas := func(v ga.Vector) (float64, float64) {
		return (v.X - b.Min.X()) * r.Scale, (v.Y - b.Min.Y()) * r.Scale
	}
	line := func(from, to ga.Vector) *canvas.Path {
		p := &canvas.Path{}
		p.MoveTo(toCanvas(from))
		p.LineTo(toCanvas(to))
		return p
	}

	rayStyle := canvas.DefaultStyle
	rayStyle.Fill = canvas.Paint{Color: canvas.Transparent}
	rayStyle.Stroke = canvas.Paint{Color: canvas.Gray}
	rayStyle.StrokeWidth = 0.3
	rayStyle.Dashes = []float64{2, 2}
	for _, ray := range r.Rays {
		if ray.IsValid() {
			renderer.RenderPath(line(ray.Start, ray.PointAt(r.RayLength)), rayStyle, canvas.Identity)
		}
	}

	sol := r.Block
	if sol.IsConnected() {
		edgeStyle := canvas.DefaultStyle
		edgeStyle.Fill = canvas.Paint{Color: canvas.Transparent}
		edgeStyle.Stroke = canvas.Paint{Color: canvas.Black}
		edgeStyle.StrokeWidth = 0.6
		for _, k := range sol.TreeEdges {
			renderer.RenderPath(line(sol.Orientations[k.I].Loc, sol.Orientations[k.J].Loc), edgeStyle, canvas.Identity)
		}

		checkStyle := edgeStyle
		checkStyle.Stroke = canvas.Paint{Color: canvas.Lightgray}
		checkStyle.StrokeWidth = 0.3
		for _, res := range sol.Residuals {
			if !res.InTree {
				renderer.RenderPath(line(sol.Orientations[res.Key.I].Loc, sol.Orientations[res.Key.J].Loc), checkStyle, canvas.Identity)
			}
		}

		for i, id := range sol.NodeIDs() {
			ori := sol.Orientations[id]
			cx, cy := toCanvas(ori.Loc)

			nodeStyle := canvas.DefaultStyle
			nodeStyle.Fill = canvas.Paint{Color: r.nodeColor(id, i)}
			nodeStyle.Stroke = canvas.Paint{Color: canvas.Black}
			nodeStyle.StrokeWidth = 0.3
			if id == sol.Root {
				nodeStyle.StrokeWidth = 1
			}
			renderer.RenderPath(canvas.Circle(r.NodeRadius*r.Scale).Translate(cx, cy), nodeStyle, canvas.Identity)

			// heading tick along the node's x axis
			axis := ori.Att.Inverse().Apply(ga.E1).Mul(r.NodeRadius * 2)
			tickStyle := edgeStyle
			tickStyle.Stroke = canvas.Paint{Color: r.nodeColor(id, i)}
			renderer.RenderPath(line(ori.Loc, ori.Loc.Add(axis)), tickStyle, canvas.Identity)
		}
	}

	pointStyle := canvas.DefaultStyle
	pointStyle.Fill = canvas.Paint{Color: canvas.Red}
	pointStyle.Stroke = canvas.Paint{Color: canvas.Transparent}
	for _, p := range r.Points {
		if !p.Valid {
			continue
		}
		cx, cy := toCanvas(ga.Vec(p.Location))
		size := r.NodeRadius * r.Scale
		renderer.RenderPath(canvas.Rectangle(size, size).Translate(cx-size/2, cy-size/2), pointStyle, canvas.Identity)
	}
}
