package render

import (
	"image"
	"image/color"
	stddraw "image/draw"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/vector"
)

// Avatar geometry and motion.
const (
	avatarFraction = 0.6  // diameter relative to the short frame side
	avatarLift     = 0.12 // max upward travel relative to frame height
	avatarEase     = 0.4  // fraction of the remaining distance covered per frame
	ringWidth      = 4
	ringAlpha      = 204 // 80% white
)

// avatar is the prepared circular portrait.
type avatar struct {
	diameter int
	img      *image.RGBA  // diameter x diameter, scaled center square
	clip     *image.Alpha // circle mask over img
	ring     *image.Alpha // stroke mask, ringWidth larger on every side
}

func newAvatar(src image.Image, frameW, frameH int) *avatar {
	d := int(math.Round(avatarFraction * float64(min(frameW, frameH))))
	if d < 1 {
		return nil
	}

	// Centered square crop of the source.
	sb := src.Bounds()
	side := min(sb.Dx(), sb.Dy())
	crop := image.Rect(0, 0, side, side).Add(image.Pt(
		sb.Min.X+(sb.Dx()-side)/2,
		sb.Min.Y+(sb.Dy()-side)/2,
	))
	img := image.NewRGBA(image.Rect(0, 0, d, d))
	draw.CatmullRom.Scale(img, img.Bounds(), src, crop, draw.Src, nil)

	r := float32(d) / 2
	z := vector.NewRasterizer(d, d)
	circlePath(z, r, r, r, false)
	clip := maskOf(z)

	pad := ringWidth
	z.Reset(d+2*pad, d+2*pad)
	c := r + float32(pad)
	circlePath(z, c, c, r+ringWidth/2, false)
	circlePath(z, c, c, r-ringWidth/2, true)
	ring := maskOf(z)

	return &avatar{diameter: d, img: img, clip: clip, ring: ring}
}

// draw paints the avatar centered horizontally with its top at
// (H-D)/2 + offset.
func (a *avatar) draw(dst *image.RGBA, offset float64) {
	fb := dst.Bounds()
	x := fb.Min.X + (fb.Dx()-a.diameter)/2
	y := fb.Min.Y + int(math.Round(float64(fb.Dy()-a.diameter)/2+offset))

	r := image.Rect(x, y, x+a.diameter, y+a.diameter)
	stddraw.DrawMask(dst, r, a.img, image.Point{}, a.clip, image.Point{}, stddraw.Over)

	rr := r.Inset(-ringWidth)
	white := image.NewUniform(color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: ringAlpha})
	stddraw.DrawMask(dst, rr, white, image.Point{}, a.ring, image.Point{}, stddraw.Over)
}

// StepAvatar eases the avatar offset toward the bass-driven target. bass is
// 0..255 and frameH the frame height in pixels.
func StepAvatar(offset, bass, frameH float64) float64 {
	target := -(bass / 255) * avatarLift * frameH
	return offset + (target-offset)*avatarEase
}
