package preview

import (
	"context"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/satindergrewal/echoframe/internal/audio"
	"github.com/satindergrewal/echoframe/internal/lyrics"
	"github.com/satindergrewal/echoframe/internal/render"
	"github.com/satindergrewal/echoframe/internal/stream"
)

// Status is the playback snapshot served by /api/status.
type Status struct {
	Name      string  `json:"name"`
	Playing   bool    `json:"playing"`
	Position  float64 `json:"position"`
	Duration  float64 `json:"duration"`
	Listeners int     `json:"listeners"`
	Rendering bool    `json:"rendering"`
}

// Player ties the playback pipeline, the PCM broadcaster and the live
// renderer together.
type Player struct {
	opts       Options
	background image.Image
	avatar     image.Image

	pipeline *audio.Pipeline
	pcm      *stream.Broadcaster[[]int16]
	renderer *Renderer

	mu   sync.Mutex
	base context.Context
}

// NewPlayer creates a player that renders onto out. avatar may be nil.
func NewPlayer(opts Options, background, avatar image.Image, out Publisher) *Player {
	opts = opts.withDefaults()
	p := &Player{
		opts:       opts,
		background: background,
		avatar:     avatar,
		pipeline:   audio.NewPipeline(),
		pcm:        stream.NewBroadcaster[[]int16](),
		base:       context.Background(),
	}
	p.renderer = NewRenderer(opts, p.pcm, out, p.pipeline.Position)
	p.pipeline.SetEndFunc(p.renderer.Stop)
	return p
}

// Broadcaster exposes the PCM fan-out for the audio stream handlers.
func (p *Player) Broadcaster() *stream.Broadcaster[[]int16] {
	return p.pcm
}

// Load stops any playback and installs a new track, its cues and a
// composer titled title.
func (p *Player) Load(name, title string, t *audio.Track, cues []lyrics.Cue) error {
	comp, err := render.NewComposer(render.Options{
		Width:    p.opts.Width,
		Height:   p.opts.Height,
		Gravity:  p.opts.Gravity,
		Title:    title,
		FontData: p.opts.FontData,
	}, p.background, p.avatar)
	if err != nil {
		return fmt.Errorf("preview composer: %w", err)
	}
	p.renderer.Stop()
	p.pipeline.Load(name, t)
	p.renderer.SetScene(comp, cues)
	return nil
}

// Run drives playback and the PCM fan-out until ctx is cancelled.
func (p *Player) Run(ctx context.Context) {
	p.mu.Lock()
	p.base = ctx
	p.mu.Unlock()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		p.pipeline.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		p.pcm.Run(ctx, p.pipeline.Frames())
	}()
	<-ctx.Done()
	p.renderer.Stop()
	wg.Wait()
}

// Play resumes audio first, then starts the display loop.
func (p *Player) Play() {
	p.pipeline.Play()
	p.mu.Lock()
	ctx := p.base
	p.mu.Unlock()
	p.renderer.Start(ctx)
}

// Pause halts audio and the display loop, keeping the position.
func (p *Player) Pause() {
	p.renderer.Stop()
	p.pipeline.Pause()
}

// Stop halts audio and the display loop and rewinds.
func (p *Player) Stop() {
	p.renderer.Stop()
	p.pipeline.Stop()
}

// Seek moves the playhead.
func (p *Player) Seek(d time.Duration) {
	p.pipeline.Seek(d)
}

// Status returns the current playback snapshot.
func (p *Player) Status() Status {
	name, playing, pos, dur := p.pipeline.Status()
	return Status{
		Name:      name,
		Playing:   playing,
		Position:  pos.Seconds(),
		Duration:  dur.Seconds(),
		Listeners: p.pcm.ListenerCount(),
		Rendering: p.renderer.Running(),
	}
}
