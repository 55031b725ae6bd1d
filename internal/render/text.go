package render

import (
	"fmt"
	"image"
	"image/color"
	stddraw "image/draw"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/satindergrewal/echoframe/internal/lyrics"
)

// Text styling.
const (
	titleSize       = 60.0 // px at 1080 lines
	titleBaseline   = 0.35
	strokePrimary   = 3 // outline radius, a 6px canvas stroke
	strokeSecondary = 2
	shadowOffset    = 2
	shadowAlpha     = 0.5
	secondaryAlpha  = 0.75
)

// fontSet rasterizes text with one typeface. Faces and glyph masks are
// memoized; it is not safe for concurrent use.
type fontSet struct {
	font  *opentype.Font
	faces map[float64]font.Face
	masks map[maskKey]*textMask
}

type maskKey struct {
	text   string
	size   float64
	stroke int
}

// textMask is a rendered string: coverage of the glyphs and of the glyphs
// grown by the stroke radius, both in the same coordinate space.
type textMask struct {
	fill    *image.Alpha
	outline *image.Alpha
	dot     image.Point // pen origin on the baseline
	advance float64
	ascent  int
	descent int
}

// newFontSet parses an OpenType/TrueType font; nil data selects Go Bold.
func newFontSet(data []byte) (*fontSet, error) {
	if data == nil {
		data = gobold.TTF
	}
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse font: %w", err)
	}
	return &fontSet{
		font:  f,
		faces: make(map[float64]font.Face),
		masks: make(map[maskKey]*textMask),
	}, nil
}

func (fs *fontSet) face(size float64) font.Face {
	if f, ok := fs.faces[size]; ok {
		return f
	}
	f, err := opentype.NewFace(fs.font, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		// Only fails for invalid sizes, which callers never pass.
		panic(fmt.Sprintf("render: face at %vpx: %v", size, err))
	}
	fs.faces[size] = f
	return f
}

// measurer returns the advance width function for one size.
func (fs *fontSet) measurer(size float64) func(string) float64 {
	face := fs.face(size)
	return func(s string) float64 {
		return fixedToFloat(font.MeasureString(face, s))
	}
}

func (fs *fontSet) mask(text string, size float64, stroke int) *textMask {
	key := maskKey{text, size, stroke}
	if m, ok := fs.masks[key]; ok {
		return m
	}

	face := fs.face(size)
	metrics := face.Metrics()
	ascent, descent := metrics.Ascent.Ceil(), metrics.Descent.Ceil()
	adv := font.MeasureString(face, text)

	pad := stroke + 1
	w := adv.Ceil() + 2*pad
	h := ascent + descent + 2*pad
	fill := image.NewAlpha(image.Rect(0, 0, w, h))
	dot := image.Pt(pad, pad+ascent)
	d := font.Drawer{
		Dst:  fill,
		Src:  image.Opaque,
		Face: face,
		Dot:  fixed.P(dot.X, dot.Y),
	}
	d.DrawString(text)

	m := &textMask{
		fill:    fill,
		outline: dilate(fill, stroke),
		dot:     dot,
		advance: fixedToFloat(adv),
		ascent:  ascent,
		descent: descent,
	}
	fs.masks[key] = m
	return m
}

// dilate grows coverage by a disc of radius r.
func dilate(src *image.Alpha, r int) *image.Alpha {
	b := src.Bounds()
	dst := image.NewAlpha(b)
	if r <= 0 {
		copy(dst.Pix, src.Pix)
		return dst
	}

	var offsets []image.Point
	for dy := -r; dy <= r; dy++ {
		for dx := -r; dx <= r; dx++ {
			if dx*dx+dy*dy <= r*r {
				offsets = append(offsets, image.Pt(dx, dy))
			}
		}
	}

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			var a uint8
			for _, o := range offsets {
				p := image.Pt(x+o.X, y+o.Y)
				if !p.In(b) {
					continue
				}
				if v := src.Pix[src.PixOffset(p.X, p.Y)]; v > a {
					a = v
					if a == 0xff {
						break
					}
				}
			}
			dst.Pix[dst.PixOffset(x, y)] = a
		}
	}
	return dst
}

// drawCentered places m with its pen origin at (cx - advance/2, baseline).
func drawCentered(dst *image.RGBA, m *textMask, mask *image.Alpha, cx, baseline float64, dy int, c color.NRGBA) {
	ox := int(math.Round(cx-m.advance/2)) - m.dot.X
	oy := int(math.Round(baseline)) - m.dot.Y + dy
	r := mask.Bounds().Add(image.Pt(ox, oy))
	stddraw.DrawMask(dst, r, image.NewUniform(c), image.Point{}, mask, image.Point{}, stddraw.Over)
}

// drawTitle renders the title in white, centered, baseline at 35% height.
func (fs *fontSet) drawTitle(dst *image.RGBA, title string) {
	if title == "" {
		return
	}
	b := dst.Bounds()
	size := titleSize * float64(b.Dy()) / 1080
	m := fs.mask(title, size, 0)
	cx := float64(b.Min.X) + float64(b.Dx())/2
	baseline := float64(b.Min.Y) + titleBaseline*float64(b.Dy())
	drawCentered(dst, m, m.fill, cx, baseline, 0, color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff})
}

// drawLyric renders the animated cue: shadow, black outline, then white
// fill, all scaled by the cue opacity.
func (fs *fontSet) drawLyric(dst *image.RGBA, a lyrics.Animation) {
	b := dst.Bounds()
	primary, secondary := lyrics.FontSizes(b.Dx())
	block := lyrics.Layout(a, b.Dx(), b.Dy(), fs.measurer(primary), fs.measurer(secondary))

	alpha := func(f float64) uint8 { return uint8(math.Round(255 * f * block.Opacity)) }
	for _, line := range block.Lines {
		stroke, fillAlpha := strokePrimary, 1.0
		if line.Secondary {
			stroke, fillAlpha = strokeSecondary, secondaryAlpha
		}
		m := fs.mask(line.Text, line.Size, stroke)

		cx := float64(b.Min.X) + block.X
		// Y is the vertical center of the em box.
		baseline := float64(b.Min.Y) + line.Y + float64(m.ascent-m.descent)/2

		drawCentered(dst, m, m.outline, cx, baseline, shadowOffset, color.NRGBA{A: alpha(shadowAlpha)})
		drawCentered(dst, m, m.outline, cx, baseline, 0, color.NRGBA{A: alpha(1)})
		drawCentered(dst, m, m.fill, cx, baseline, 0, color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: alpha(fillAlpha)})
	}
}

func fixedToFloat(v fixed.Int26_6) float64 {
	return float64(v) / 64
}
