// Package render composes video frames from a spectrum frame, the lyric
// overlay and prepared still images. The same Composer backs the live
// preview and the offline export.
package render

import (
	"fmt"
	"image"
	stddraw "image/draw"

	"github.com/satindergrewal/echoframe/internal/lyrics"
	"github.com/satindergrewal/echoframe/internal/spectrum"
)

// Gravity presets in px per frame.
const (
	ExportGravity = 3.0
	LiveGravity   = 1.8
)

// Options configures a Composer.
type Options struct {
	Width, Height int
	Gravity       float64
	Title         string
	FontData      []byte // nil selects the built-in bold face
}

// Input is everything that varies per frame besides State.
type Input struct {
	Spectrum spectrum.Frame
	Lyric    *lyrics.Animation // nil hides the overlay
}

// State carries bar heights and avatar motion from one frame to the next.
type State struct {
	Left, Right []float64
	AvatarY     float64
}

// Composer draws frames. Prepared images are immutable; the rasterizer and
// glyph caches are per Composer, so one Composer serves one driver.
type Composer struct {
	opts   Options
	bg     *image.RGBA // zoom 1
	bgBass *image.RGBA // zoom pulseScale
	avatar *avatar
	layout barLayout
	left   *lane
	right  *lane
	fonts  *fontSet
}

// NewComposer prepares the background (both zoom levels) and the optional
// avatar for the configured frame size.
func NewComposer(opts Options, background, avatarImg image.Image) (*Composer, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("invalid frame size %dx%d", opts.Width, opts.Height)
	}
	if opts.Gravity <= 0 {
		opts.Gravity = ExportGravity
	}
	fonts, err := newFontSet(opts.FontData)
	if err != nil {
		return nil, err
	}

	c := &Composer{
		opts:   opts,
		bg:     renderBackground(opts.Width, opts.Height, background, 1),
		bgBass: renderBackground(opts.Width, opts.Height, background, pulseScale),
		layout: newBarLayout(opts.Width, opts.Height),
		fonts:  fonts,
	}
	if avatarImg != nil {
		c.avatar = newAvatar(avatarImg, opts.Width, opts.Height)
	}
	c.left = newLane(c.layout.left, leftLow, leftHigh)
	c.right = newLane(c.layout.right, rightLow, rightHigh)
	return c, nil
}

// Bounds is the frame rectangle dst must have.
func (c *Composer) Bounds() image.Rectangle {
	return image.Rect(0, 0, c.opts.Width, c.opts.Height)
}

// NewFrame allocates a frame buffer of the right size.
func (c *Composer) NewFrame() *image.RGBA {
	return image.NewRGBA(c.Bounds())
}

// Compose draws one frame into dst and returns the state for the next
// frame. st is not modified.
func (c *Composer) Compose(dst *image.RGBA, in Input, st State) State {
	frame := in.Spectrum
	h := float64(c.opts.Height)

	bg := c.bg
	if frame.Bass() {
		bg = c.bgBass
	}
	stddraw.Draw(dst, dst.Bounds(), bg, image.Point{}, stddraw.Src)

	next := State{AvatarY: st.AvatarY}
	if c.avatar != nil {
		next.AvatarY = StepAvatar(st.AvatarY, frame.BassEnergy(), h)
		c.avatar.draw(dst, next.AvatarY)
	}

	next.Left = StepBars(st.Left, frame.Left, c.layout.boxH, c.opts.Gravity)
	next.Right = StepBars(st.Right, frame.Right, c.layout.boxH, c.opts.Gravity)
	c.left.draw(dst, next.Left)
	c.right.draw(dst, next.Right)

	c.fonts.drawTitle(dst, c.opts.Title)

	if in.Lyric != nil {
		c.fonts.drawLyric(dst, *in.Lyric)
	}
	return next
}
