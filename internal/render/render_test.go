package render

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math"
	"testing"

	"github.com/satindergrewal/echoframe/internal/lyrics"
	"github.com/satindergrewal/echoframe/internal/spectrum"
)

// --- Bars ---

func TestStepBarsDecay(t *testing.T) {
	const gravity = 3.0
	zero := make([]uint8, 1)
	h := []float64{100}
	for k := 1; k <= 40; k++ {
		h = StepBars(h, zero, 270, gravity)
		want := math.Max(0, 100-float64(k)*gravity)
		if h[0] != want {
			t.Fatalf("after %d frames h = %v, want %v", k, h[0], want)
		}
	}
}

func TestStepBarsAttack(t *testing.T) {
	got := StepBars([]float64{10}, []uint8{255}, 270, 3)
	if got[0] != 270 {
		t.Errorf("h = %v, want 270", got[0])
	}
	// A target just under the current height still decays by gravity.
	got = StepBars([]float64{135}, []uint8{127}, 270, 3)
	if got[0] != 132 {
		t.Errorf("h = %v, want 132", got[0])
	}
}

func TestStepBarsDoesNotMutate(t *testing.T) {
	prev := []float64{50, 50}
	_ = StepBars(prev, []uint8{0, 255}, 100, 2)
	if prev[0] != 50 || prev[1] != 50 {
		t.Errorf("prev mutated: %v", prev)
	}
}

func TestStepBarsNilState(t *testing.T) {
	got := StepBars(nil, []uint8{51}, 255, 3)
	if len(got) != 1 || got[0] != 51 {
		t.Errorf("StepBars(nil) = %v, want [51]", got)
	}
}

func TestBarLayout1080p(t *testing.T) {
	l := newBarLayout(1920, 1080)
	if l.left != image.Rect(288, 810, 960, 1080) {
		t.Errorf("left lane = %v", l.left)
	}
	if l.right != image.Rect(960, 810, 1632, 1080) {
		t.Errorf("right lane = %v", l.right)
	}
	if l.boxH != 270 {
		t.Errorf("boxH = %v, want 270", l.boxH)
	}
}

// --- Avatar ---

func TestStepAvatarBounded(t *testing.T) {
	const h = 1080.0
	limit := avatarEase*avatarLift*h + 1e-9
	offset := 0.0
	for i, bass := range []float64{255, 255, 0, 128, 255, 0, 0, 200, 10, 255} {
		next := StepAvatar(offset, bass, h)
		if d := math.Abs(next - offset); d > limit {
			t.Errorf("step %d moved %v, limit %v", i, d, limit)
		}
		if next > 0 || next < -avatarLift*h {
			t.Errorf("step %d offset %v out of [-%v, 0]", i, next, avatarLift*h)
		}
		offset = next
	}
}

func TestStepAvatarConverges(t *testing.T) {
	offset := 0.0
	for i := 0; i < 50; i++ {
		offset = StepAvatar(offset, 255, 1000)
	}
	if math.Abs(offset-(-120)) > 1e-6 {
		t.Errorf("offset = %v, want -120", offset)
	}
}

// --- Text ---

func TestDilate(t *testing.T) {
	src := image.NewAlpha(image.Rect(0, 0, 5, 5))
	src.SetAlpha(2, 2, color.Alpha{A: 0xff})
	got := dilate(src, 1)

	count := 0
	for _, v := range got.Pix {
		if v != 0 {
			count++
		}
	}
	if count != 5 {
		t.Errorf("radius 1 dilation covers %d pixels, want 5", count)
	}
	if got.AlphaAt(1, 1).A != 0 {
		t.Error("diagonal neighbour covered")
	}
}

func TestFontSetMaskCached(t *testing.T) {
	fs, err := newFontSet(nil)
	if err != nil {
		t.Fatal(err)
	}
	a := fs.mask("hello", 24, 3)
	b := fs.mask("hello", 24, 3)
	if a != b {
		t.Error("mask not memoized")
	}
	if a.advance <= 0 {
		t.Errorf("advance = %v, want > 0", a.advance)
	}
	if a.outline.Bounds() != a.fill.Bounds() {
		t.Error("outline and fill bounds differ")
	}
}

func TestNewFontSetBadData(t *testing.T) {
	if _, err := newFontSet([]byte("not a font")); err == nil {
		t.Error("expected error for invalid font data")
	}
}

// --- Images ---

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func TestCoverFitFillsFrame(t *testing.T) {
	dst := image.NewRGBA(image.Rect(0, 0, 40, 10))
	coverFit(dst, solid(10, 10, color.RGBA{R: 200, A: 255}), 1)
	for y := 0; y < 10; y++ {
		for x := 0; x < 40; x++ {
			if c := dst.RGBAAt(x, y); c.R < 190 {
				t.Fatalf("pixel (%d,%d) = %v, want red", x, y, c)
			}
		}
	}
}

func TestDecodeImage(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, solid(4, 3, color.RGBA{G: 255, A: 255})); err != nil {
		t.Fatal(err)
	}
	img, err := DecodeImage("g.png", buf.Bytes())
	if err != nil {
		t.Fatalf("DecodeImage: %v", err)
	}
	if img.Bounds().Dx() != 4 || img.Bounds().Dy() != 3 {
		t.Errorf("bounds = %v, want 4x3", img.Bounds())
	}

	_, err = DecodeImage("junk", []byte("nope"))
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Errorf("error = %v, want *DecodeError", err)
	}
}

// --- Compose ---

func gradient(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: 128, A: 255})
		}
	}
	return img
}

func testFrame(v uint8) spectrum.Frame {
	l := make([]uint8, 64)
	r := make([]uint8, 64)
	for i := range l {
		l[i] = v
		r[i] = v / 2
	}
	return spectrum.Frame{Left: l, Right: r}
}

func newTestComposer(t *testing.T) *Composer {
	t.Helper()
	c, err := NewComposer(Options{Width: 320, Height: 180, Gravity: ExportGravity, Title: "Test"},
		gradient(64, 48), gradient(30, 40))
	if err != nil {
		t.Fatalf("NewComposer: %v", err)
	}
	return c
}

func TestComposeDeterministic(t *testing.T) {
	anim := &lyrics.Animation{Cue: lyrics.Cue{Text: "hello world", Translation: "bonjour"}, Opacity: 0.8, Drift: -2}

	run := func() ([]byte, State) {
		c := newTestComposer(t)
		dst := c.NewFrame()
		var st State
		for i := 0; i < 5; i++ {
			st = c.Compose(dst, Input{Spectrum: testFrame(uint8(200 + i*10)), Lyric: anim}, st)
		}
		return dst.Pix, st
	}
	a, sa := run()
	b, sb := run()
	if !bytes.Equal(a, b) {
		t.Error("identical inputs produced different pixels")
	}
	if sa.AvatarY != sb.AvatarY {
		t.Errorf("avatar state differs: %v vs %v", sa.AvatarY, sb.AvatarY)
	}
}

func TestComposeLeavesInputState(t *testing.T) {
	c := newTestComposer(t)
	st := State{Left: make([]float64, 64), Right: make([]float64, 64)}
	next := c.Compose(c.NewFrame(), Input{Spectrum: testFrame(255)}, st)
	if st.Left[0] != 0 || st.AvatarY != 0 {
		t.Error("input state modified")
	}
	if next.Left[0] == 0 {
		t.Error("next state bars not raised")
	}
	if next.AvatarY >= 0 {
		t.Errorf("AvatarY = %v, want negative under full bass", next.AvatarY)
	}
}

func TestComposeBassZoomChangesBackground(t *testing.T) {
	c, err := NewComposer(Options{Width: 160, Height: 90}, gradient(64, 48), nil)
	if err != nil {
		t.Fatal(err)
	}
	quiet := c.NewFrame()
	loud := c.NewFrame()
	c.Compose(quiet, Input{Spectrum: testFrame(0)}, State{})
	c.Compose(loud, Input{Spectrum: testFrame(250)}, State{})

	// Top left corner is above the bars and away from the title.
	if quiet.RGBAAt(2, 2) == loud.RGBAAt(2, 2) {
		t.Error("bass frame did not zoom the background")
	}
}

func TestComposeBarsColored(t *testing.T) {
	c, err := NewComposer(Options{Width: 320, Height: 180}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	dst := c.NewFrame()
	c.Compose(dst, Input{Spectrum: testFrame(255)}, State{})

	left := c.layout.left
	p := dst.RGBAAt(left.Min.X+1, left.Max.Y-2)
	if p.R < 100 || p.B > 20 {
		t.Errorf("left bar pixel = %v, want red", p)
	}
	right := c.layout.right
	p = dst.RGBAAt(right.Min.X+1, right.Max.Y-2)
	if p.B < 100 || p.R > 20 {
		t.Errorf("right bar pixel = %v, want blue", p)
	}
}

func TestComposeLyricOverlay(t *testing.T) {
	c := newTestComposer(t)
	plain := c.NewFrame()
	withText := c.NewFrame()
	in := Input{Spectrum: testFrame(0)}
	c.Compose(plain, in, State{})
	in.Lyric = &lyrics.Animation{Cue: lyrics.Cue{Text: "WWW"}, Opacity: 1}
	c.Compose(withText, in, State{})
	if bytes.Equal(plain.Pix, withText.Pix) {
		t.Error("lyric overlay drew nothing")
	}
}

func TestNewComposerInvalidSize(t *testing.T) {
	if _, err := NewComposer(Options{}, nil, nil); err == nil {
		t.Error("expected error for zero frame size")
	}
}
