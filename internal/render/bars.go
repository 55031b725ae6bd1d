package render

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/vector"
)

// Bar layout.
const (
	boxWidthFraction = 0.7
	boxTopFraction   = 0.75
	barPitchFactor   = 2.5
	barGap           = 2
	minBarWidth      = 0.5
)

// Bar colors, bottom to top.
var (
	leftLow   = color.RGBA{R: 0x8b, A: 0xff}
	leftHigh  = color.RGBA{R: 0xff, A: 0xff}
	rightLow  = color.RGBA{B: 0x8b, A: 0xff}
	rightHigh = color.RGBA{G: 0x44, B: 0xff, A: 0xff}
)

// StepBars advances one channel's bar heights by a frame. Bars jump up to
// their target immediately and otherwise fall by gravity, never below zero.
// prev is not modified.
func StepBars(prev []float64, bins []uint8, boxH, gravity float64) []float64 {
	next := make([]float64, len(bins))
	for i, b := range bins {
		target := float64(b) / 255 * boxH
		var h float64
		if i < len(prev) {
			h = prev[i]
		}
		if target < h {
			h = max(0, h-gravity)
		} else {
			h = target
		}
		next[i] = h
	}
	return next
}

// barLayout is the visualizer box split into two channel lanes.
type barLayout struct {
	left, right image.Rectangle
	boxH        float64
}

func newBarLayout(w, h int) barLayout {
	laneW := int(math.Round(boxWidthFraction*float64(w))) / 2
	x := (w - 2*laneW) / 2
	top := int(math.Round(boxTopFraction * float64(h)))
	return barLayout{
		left:  image.Rect(x, top, x+laneW, h),
		right: image.Rect(x+laneW, top, x+2*laneW, h),
		boxH:  float64(h - top),
	}
}

// lane draws one channel's bars into a fixed rectangle of the frame.
type lane struct {
	rect image.Rectangle
	z    *vector.Rasterizer
	fill barFill
}

func newLane(rect image.Rectangle, low, high color.RGBA) *lane {
	return &lane{
		rect: rect,
		z:    vector.NewRasterizer(rect.Dx(), rect.Dy()),
		fill: barFill{low: low, high: high, size: rect.Size()},
	}
}

// draw renders bars with the given heights. Bars that start past the lane
// edge are skipped and the last visible one is cut at the edge.
func (l *lane) draw(dst *image.RGBA, heights []float64) {
	n := len(heights)
	if n == 0 || l.rect.Empty() {
		return
	}
	laneW := float64(l.rect.Dx())
	boxH := float64(l.rect.Dy())
	pitch := laneW / float64(n) * barPitchFactor
	drawn := max(minBarWidth, pitch-barGap)
	radius := drawn / 2

	l.z.Reset(l.rect.Dx(), l.rect.Dy())
	drew := false
	for i, h := range heights {
		if h <= 0 {
			continue
		}
		x := float64(i) * pitch
		if x >= laneW {
			break
		}
		w := min(drawn, laneW-x)
		h = min(h, boxH)
		if h > radius {
			roundTopRectPath(l.z, float32(x), float32(boxH-h), float32(w), float32(h), float32(radius))
		} else {
			rectPath(l.z, float32(x), float32(boxH-h), float32(w), float32(h))
		}
		drew = true
	}
	if !drew {
		return
	}

	l.fill.pitch = pitch
	l.fill.heights = heights
	l.z.Draw(dst, l.rect, &l.fill, image.Point{})
}

// barFill is a lane-sized source image holding a separate vertical
// gradient for every bar: low color at the lane bottom, high color at the
// top of that bar.
type barFill struct {
	low, high color.RGBA
	size      image.Point
	pitch     float64
	heights   []float64
}

func (f *barFill) ColorModel() color.Model { return color.RGBAModel }

func (f *barFill) Bounds() image.Rectangle { return image.Rectangle{Max: f.size} }

func (f *barFill) At(x, y int) color.Color {
	i := int(float64(x) / f.pitch)
	if i < 0 || i >= len(f.heights) || f.heights[i] <= 0 {
		return f.low
	}
	t := (float64(f.size.Y) - (float64(y) + 0.5)) / f.heights[i]
	t = min(1, max(0, t))
	return color.RGBA{
		R: lerp8(f.low.R, f.high.R, t),
		G: lerp8(f.low.G, f.high.G, t),
		B: lerp8(f.low.B, f.high.B, t),
		A: 0xff,
	}
}

func lerp8(a, b uint8, t float64) uint8 {
	return uint8(math.Round(float64(a) + (float64(b)-float64(a))*t))
}
