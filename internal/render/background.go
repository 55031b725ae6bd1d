package render

import (
	"image"
	"image/color"
	stddraw "image/draw"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// Background treatment.
const (
	pulseScale = 1.05
	scrimAlpha = 102 // 40% black
)

// coverFit scales src uniformly by the larger of the two axis ratios (times
// zoom) and centers it so it covers the whole of dst.
func coverFit(dst *image.RGBA, src image.Image, zoom float64) {
	db := dst.Bounds()
	sb := src.Bounds()
	sw, sh := float64(sb.Dx()), float64(sb.Dy())
	dw, dh := float64(db.Dx()), float64(db.Dy())

	s := max(dw/sw, dh/sh) * zoom
	tx := float64(db.Min.X) + dw/2 - s*(float64(sb.Min.X)+sw/2)
	ty := float64(db.Min.Y) + dh/2 - s*(float64(sb.Min.Y)+sh/2)

	stddraw.Draw(dst, db, image.NewUniform(color.Black), image.Point{}, stddraw.Src)
	draw.CatmullRom.Transform(dst, f64.Aff3{s, 0, tx, 0, s, ty}, src, sb, draw.Over, nil)
}

// renderBackground produces a full frame background at the given zoom with
// the darkening scrim applied.
func renderBackground(w, h int, src image.Image, zoom float64) *image.RGBA {
	bg := image.NewRGBA(image.Rect(0, 0, w, h))
	if src != nil {
		coverFit(bg, src, zoom)
	}
	stddraw.Draw(bg, bg.Bounds(), image.NewUniform(color.RGBA{A: scrimAlpha}), image.Point{}, stddraw.Over)
	return bg
}
