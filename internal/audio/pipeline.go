package audio

import (
	"context"
	"log"
	"sync"
	"time"
)

// Pipeline plays one loaded track as PCM frames at real-time rate. It backs
// the interactive preview only.
type Pipeline struct {
	frameCh chan []int16

	mu       sync.RWMutex
	samples  []int16 // interleaved stereo at SampleRate
	name     string
	position int // next frame index
	playing  bool
	onEnd    func()
}

// NewPipeline creates an idle pipeline with nothing loaded.
func NewPipeline() *Pipeline {
	return &Pipeline{
		frameCh: make(chan []int16, 100),
	}
}

// Frames returns the channel of outgoing PCM frames (20ms each).
func (p *Pipeline) Frames() <-chan []int16 {
	return p.frameCh
}

// Load replaces the current track and rewinds. Playback is paused.
func (p *Pipeline) Load(name string, t *Track) {
	samples := Interleave(t)
	p.mu.Lock()
	p.samples = samples
	p.name = name
	p.position = 0
	p.playing = false
	p.mu.Unlock()
	log.Printf("Loaded %s (frames: %d)", name, len(samples)/FrameSamples)
}

// SetEndFunc registers fn to run (on the pipeline goroutine) when playback
// reaches the end of the track.
func (p *Pipeline) SetEndFunc(fn func()) {
	p.mu.Lock()
	p.onEnd = fn
	p.mu.Unlock()
}

// Play resumes playback from the current position.
func (p *Pipeline) Play() {
	p.mu.Lock()
	if p.position >= p.totalFrames() {
		p.position = 0
	}
	p.playing = true
	p.mu.Unlock()
}

// Pause halts playback, keeping the position.
func (p *Pipeline) Pause() {
	p.mu.Lock()
	p.playing = false
	p.mu.Unlock()
}

// Stop halts playback and rewinds to the start.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	p.playing = false
	p.position = 0
	p.mu.Unlock()
}

// Seek moves the playhead, clamped to the track.
func (p *Pipeline) Seek(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	frame := int(d / FrameDuration)
	if frame < 0 {
		frame = 0
	}
	if total := p.totalFrames(); frame > total {
		frame = total
	}
	p.position = frame
}

// Playing reports whether frames are currently being emitted.
func (p *Pipeline) Playing() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.playing
}

// Position returns the playhead in seconds.
func (p *Pipeline) Position() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return (time.Duration(p.position) * FrameDuration).Seconds()
}

// Status returns current playback info.
func (p *Pipeline) Status() (name string, playing bool, position, duration time.Duration) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.name, p.playing, time.Duration(p.position) * FrameDuration, time.Duration(p.totalFrames()) * FrameDuration
}

// Run emits frames while playing. Blocks until ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context) {
	defer close(p.frameCh)

	ticker := time.NewTicker(FrameDuration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		frame, ended, onEnd := p.next()
		if ended {
			log.Println("Playback reached end of track")
			if onEnd != nil {
				onEnd()
			}
			continue
		}
		if frame == nil {
			continue
		}

		select {
		case p.frameCh <- frame:
		case <-ctx.Done():
			return
		}
	}
}

// next advances the playhead by one frame. ended is true exactly once, on
// the tick after the last frame went out.
func (p *Pipeline) next() (frame []int16, ended bool, onEnd func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.playing {
		return nil, false, nil
	}
	if p.position >= p.totalFrames() {
		p.playing = false
		return nil, true, p.onEnd
	}
	start := p.position * FrameSamples
	frame = make([]int16, FrameSamples)
	copy(frame, p.samples[start:])
	p.position++
	return frame, false, nil
}

// totalFrames counts whole and partial frames. Must be called with mu held.
func (p *Pipeline) totalFrames() int {
	return (len(p.samples) + FrameSamples - 1) / FrameSamples
}
