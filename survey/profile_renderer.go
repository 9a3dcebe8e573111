package survey

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"
	"os"

	"github.com/kwv/blockori/geo"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/simplify"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// profileSimplify is the Douglas-Peucker tolerance in pixels
const profileSimplify = 0.5

// ProfileRenderer plots a ProbRay's accumulated pseudo-probability against
// distance as a raster image
type ProfileRenderer struct {
	Samples []geo.DistProb
	Peak    geo.DistProb
	Title   string
	Width   int
	Height  int
	Padding int
	Line    color.RGBA
	Marker  color.RGBA
}

// NewProfileRenderer creates a renderer for the profile of pr
func NewProfileRenderer(pr *geo.ProbRay, title string) *ProfileRenderer {
	r := &ProfileRenderer{
		Title:   title,
		Width:   640,
		Height:  320,
		Padding: 32,
		Line:    color.RGBA{0, 0, 139, 255},
		Marker:  color.RGBA{200, 0, 0, 255},
		Peak:    geo.NullDistProb(),
	}
	if pr.IsValid() {
		r.Samples = pr.DistProbs()
		r.Peak = pr.LikelyDistProb()
	}
	return r
}

// NewEstimateProfileRenderer plots the profile kept on a point estimate
func NewEstimateProfileRenderer(est PointEstimate) *ProfileRenderer {
	r := NewProfileRenderer(nil, est.ID)
	r.Samples = est.Profile
	r.Peak = est.Peak
	return r
}

// Render draws the profile
func (r *ProfileRenderer) Render() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, r.Width, r.Height))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	left, right := r.Padding, r.Width-r.Padding
	top, bottom := r.Padding, r.Height-r.Padding
	black := color.RGBA{0, 0, 0, 255}
	drawLine(img, left, bottom, right, bottom, black)
	drawLine(img, left, top, left, bottom, black)

	if r.Title != "" {
		drawText(img, left, top-10, r.Title, black)
	}
	if len(r.Samples) < 2 {
		drawText(img, left+10, (top+bottom)/2, "no evidence", black)
		return img
	}

	minD, maxD := r.Samples[0].Distance, r.Samples[len(r.Samples)-1].Distance
	maxP := 0.0
	for _, s := range r.Samples {
		maxP = math.Max(maxP, s.Prob)
	}
	if maxP <= 0 {
		maxP = 1
	}

	toPixel := func(d, p float64) (int, int) {
		x := left + int(math.Round((d-minD)/(maxD-minD)*float64(right-left)))
		y := bottom - int(math.Round(p/maxP*float64(bottom-top)))
		return x, y
	}

	curve := make(orb.LineString, 0, len(r.Samples))
	for _, s := range r.Samples {
		x, y := toPixel(s.Distance, s.Prob)
		curve = append(curve, orb.Point{float64(x), float64(y)})
	}
	// drop sub-pixel detail before drawing
	curve = simplify.DouglasPeucker(profileSimplify).Simplify(curve).(orb.LineString)
	for i := 1; i < len(curve); i++ {
		drawLine(img, int(curve[i-1][0]), int(curve[i-1][1]), int(curve[i][0]), int(curve[i][1]), r.Line)
	}

	drawText(img, left, bottom+20, fmt.Sprintf("%.3g", minD), black)
	drawText(img, right-40, bottom+20, fmt.Sprintf("%.3g", maxD), black)

	if r.Peak.IsValid() {
		x, y := toPixel(r.Peak.Distance, r.Peak.Prob)
		drawLine(img, x, bottom, x, top, r.Marker)
		drawText(img, x+4, y+14, fmt.Sprintf("d=%.4f", r.Peak.Distance), r.Marker)
	}
	return img
}

// SavePNG renders and writes the profile to a file
func (r *ProfileRenderer) SavePNG(path string) error {
	img := r.Render()

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	return png.Encode(f, img)
}

// drawLine draws a one pixel line with Bresenham's algorithm
func drawLine(img *image.RGBA, x0, y0, x1, y1 int, c color.RGBA) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy
	for {
		if image.Pt(x0, y0).In(img.Bounds()) {
			img.SetRGBA(x0, y0, c)
		}
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// drawText renders text onto an image at the specified position
func drawText(img *image.RGBA, x, y int, text string, c color.RGBA) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}
