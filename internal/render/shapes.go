package render

import (
	"image"
	"image/color"

	"golang.org/x/image/vector"
)

// kappa places cubic control points for a quarter circle.
const kappa = 0.5522847498

// circlePath adds a closed circle. ccw reverses the winding so the circle
// can cut a hole in an enclosing path.
func circlePath(z *vector.Rasterizer, cx, cy, r float32, ccw bool) {
	k := r * kappa
	z.MoveTo(cx+r, cy)
	if !ccw {
		z.CubeTo(cx+r, cy+k, cx+k, cy+r, cx, cy+r)
		z.CubeTo(cx-k, cy+r, cx-r, cy+k, cx-r, cy)
		z.CubeTo(cx-r, cy-k, cx-k, cy-r, cx, cy-r)
		z.CubeTo(cx+k, cy-r, cx+r, cy-k, cx+r, cy)
	} else {
		z.CubeTo(cx+r, cy-k, cx+k, cy-r, cx, cy-r)
		z.CubeTo(cx-k, cy-r, cx-r, cy-k, cx-r, cy)
		z.CubeTo(cx-r, cy+k, cx-k, cy+r, cx, cy+r)
		z.CubeTo(cx+k, cy+r, cx+r, cy+k, cx+r, cy)
	}
	z.ClosePath()
}

// rectPath adds an axis aligned rectangle.
func rectPath(z *vector.Rasterizer, x, y, w, h float32) {
	z.MoveTo(x, y)
	z.LineTo(x+w, y)
	z.LineTo(x+w, y+h)
	z.LineTo(x, y+h)
	z.ClosePath()
}

// roundTopRectPath adds a rectangle whose two top corners are rounded with
// radius r. The caller ensures h > r.
func roundTopRectPath(z *vector.Rasterizer, x, y, w, h, r float32) {
	if r > w/2 {
		r = w / 2
	}
	k := r * kappa
	z.MoveTo(x, y+h)
	z.LineTo(x, y+r)
	z.CubeTo(x, y+r-k, x+r-k, y, x+r, y)
	z.LineTo(x+w-r, y)
	z.CubeTo(x+w-r+k, y, x+w, y+r-k, x+w, y+r)
	z.LineTo(x+w, y+h)
	z.ClosePath()
}

// maskOf rasterizes the accumulated path of z into a new alpha mask.
func maskOf(z *vector.Rasterizer) *image.Alpha {
	size := z.Size()
	m := image.NewAlpha(image.Rect(0, 0, size.X, size.Y))
	z.Draw(m, m.Bounds(), image.NewUniform(color.Alpha{A: 0xff}), image.Point{})
	return m
}
