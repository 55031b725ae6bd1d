// Package preview drives the composer in real time for the interactive
// preview: audio plays through the frame pipeline while a ticker renders
// frames from the live spectrum.
package preview

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"log"
	"sync"
	"time"

	"github.com/satindergrewal/echoframe/internal/audio"
	"github.com/satindergrewal/echoframe/internal/lyrics"
	"github.com/satindergrewal/echoframe/internal/render"
	"github.com/satindergrewal/echoframe/internal/spectrum"
	"github.com/satindergrewal/echoframe/internal/stream"
)

// Publisher receives encoded frames. *stream.FrameHub implements it.
type Publisher interface {
	Publish(frame []byte)
}

// Options configures the live preview.
type Options struct {
	Width, Height int     // 960x540
	FPS           int     // 60
	Gravity       float64 // 1.8
	FFTSize       int     // 512
	Smoothing     float64 // 0.85
	JPEGQuality   int     // 80
	FontData      []byte
}

func (o Options) withDefaults() Options {
	if o.Width <= 0 {
		o.Width = 960
	}
	if o.Height <= 0 {
		o.Height = 540
	}
	if o.FPS <= 0 {
		o.FPS = 60
	}
	if o.Gravity <= 0 {
		o.Gravity = render.LiveGravity
	}
	if o.FFTSize <= 0 {
		o.FFTSize = spectrum.DefaultFFTSize
	}
	if o.Smoothing <= 0 {
		o.Smoothing = spectrum.DefaultSmoothing
	}
	if o.JPEGQuality <= 0 {
		o.JPEGQuality = 80
	}
	return o
}

// Renderer is the display loop. One goroutine ticks at FPS; each tick
// drains whatever PCM arrived, snapshots both analyzers, composes a frame
// and publishes it. Nothing inside a tick blocks.
type Renderer struct {
	opts  Options
	pcm   *stream.Broadcaster[[]int16]
	out   Publisher
	clock func() float64 // lyric time in seconds

	sceneMu sync.Mutex
	comp    *render.Composer
	cues    []lyrics.Cue
	state   render.State
	left    *spectrum.Analyzer
	right   *spectrum.Analyzer
	frame   *image.RGBA
	jpg     bytes.Buffer
	lbuf    []float32
	rbuf    []float32
	bins    spectrum.Frame

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRenderer creates a stopped renderer reading PCM from pcm and lyric
// time from clock.
func NewRenderer(opts Options, pcm *stream.Broadcaster[[]int16], out Publisher, clock func() float64) *Renderer {
	opts = opts.withDefaults()
	return &Renderer{
		opts:  opts,
		pcm:   pcm,
		out:   out,
		clock: clock,
		left:  spectrum.NewAnalyzer(opts.FFTSize, opts.Smoothing),
		right: spectrum.NewAnalyzer(opts.FFTSize, opts.Smoothing),
	}
}

// SetScene swaps the composer and cues and clears bar, avatar and analyzer
// state. Call it while the renderer is stopped.
func (r *Renderer) SetScene(comp *render.Composer, cues []lyrics.Cue) {
	r.sceneMu.Lock()
	defer r.sceneMu.Unlock()
	r.comp = comp
	r.cues = cues
	r.state = render.State{}
	r.left.Reset()
	r.right.Reset()
	r.frame = nil
}

// Start launches the loop under ctx. It is a no-op while running.
func (r *Renderer) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	l := r.pcm.Subscribe(stream.PCMBuffer)
	go r.loop(ctx, l, r.done)
}

// Stop cancels the loop and waits for it to exit. Bar and avatar state are
// kept for the next Start.
func (r *Renderer) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether the loop is active.
func (r *Renderer) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cancel != nil
}

func (r *Renderer) loop(ctx context.Context, l *stream.Listener[[]int16], done chan struct{}) {
	defer close(done)
	defer r.pcm.Unsubscribe(l)

	ticker := time.NewTicker(time.Second / time.Duration(r.opts.FPS))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		r.drain(l)
		if frame := r.renderFrame(r.clock()); frame != nil {
			r.out.Publish(frame)
		}
	}
}

// drain feeds every pending PCM frame to the analyzers without blocking.
func (r *Renderer) drain(l *stream.Listener[[]int16]) {
	r.sceneMu.Lock()
	defer r.sceneMu.Unlock()
	for {
		select {
		case pcm := <-l.C:
			r.lbuf, r.rbuf = audio.Deinterleave(pcm, r.lbuf[:0], r.rbuf[:0])
			r.left.Write(r.lbuf)
			r.right.Write(r.rbuf)
		default:
			return
		}
	}
}

// renderFrame composes the frame for lyric time t and returns it as JPEG,
// or nil when no scene is loaded. The returned slice is owned by the caller.
func (r *Renderer) renderFrame(t float64) []byte {
	r.sceneMu.Lock()
	defer r.sceneMu.Unlock()
	if r.comp == nil {
		return nil
	}
	if r.frame == nil {
		r.frame = r.comp.NewFrame()
	}

	r.bins.Left = r.left.Snapshot(r.bins.Left)
	r.bins.Right = r.right.Snapshot(r.bins.Right)
	in := render.Input{Spectrum: r.bins}
	if a, ok := lyrics.Animate(r.cues, t); ok {
		in.Lyric = &a
	}
	r.state = r.comp.Compose(r.frame, in, r.state)

	r.jpg.Reset()
	if err := jpeg.Encode(&r.jpg, r.frame, &jpeg.Options{Quality: r.opts.JPEGQuality}); err != nil {
		log.Printf("Preview: jpeg encode: %v", err)
		return nil
	}
	return bytes.Clone(r.jpg.Bytes())
}
