package preview

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/satindergrewal/echoframe/internal/audio"
	"github.com/satindergrewal/echoframe/internal/lyrics"
	"github.com/satindergrewal/echoframe/internal/render"
	"github.com/satindergrewal/echoframe/internal/stream"
)

type capture struct {
	mu     sync.Mutex
	frames [][]byte
	got    chan struct{}
}

func newCapture() *capture {
	return &capture{got: make(chan struct{}, 1)}
}

func (c *capture) Publish(frame []byte) {
	c.mu.Lock()
	c.frames = append(c.frames, frame)
	c.mu.Unlock()
	select {
	case c.got <- struct{}{}:
	default:
	}
}

func (c *capture) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

func testOptions() Options {
	return Options{Width: 96, Height: 54, FPS: 100}
}

func solid(c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func testComposer(t *testing.T) *render.Composer {
	t.Helper()
	opts := testOptions().withDefaults()
	comp, err := render.NewComposer(render.Options{
		Width:   opts.Width,
		Height:  opts.Height,
		Gravity: opts.Gravity,
		Title:   "Preview",
	}, solid(color.RGBA{40, 60, 80, 255}), nil)
	if err != nil {
		t.Fatalf("NewComposer: %v", err)
	}
	return comp
}

// sineFrame builds one interleaved PCM frame with a loud tone on the left
// channel and silence on the right.
func sineFrame(offset int) []int16 {
	frame := make([]int16, audio.FrameSamples)
	for i := 0; i < audio.FrameSize; i++ {
		v := math.Sin(2 * math.Pi * 440 * float64(offset+i) / audio.SampleRate)
		frame[i*2] = int16(v * 30000)
	}
	return frame
}

// --- Options ---

func TestOptionsDefaults(t *testing.T) {
	o := Options{}.withDefaults()
	if o.Width != 960 || o.Height != 540 {
		t.Errorf("size = %dx%d, want 960x540", o.Width, o.Height)
	}
	if o.FPS != 60 {
		t.Errorf("FPS = %d, want 60", o.FPS)
	}
	if o.Gravity != render.LiveGravity {
		t.Errorf("Gravity = %v, want %v", o.Gravity, render.LiveGravity)
	}
}

// --- Renderer ---

func TestRenderFrameWithoutScene(t *testing.T) {
	r := NewRenderer(testOptions(), stream.NewBroadcaster[[]int16](), newCapture(), func() float64 { return 0 })
	if got := r.renderFrame(0); got != nil {
		t.Errorf("renderFrame without scene = %d bytes, want nil", len(got))
	}
}

func TestRenderFrameProducesJPEG(t *testing.T) {
	r := NewRenderer(testOptions(), stream.NewBroadcaster[[]int16](), newCapture(), func() float64 { return 0 })
	r.SetScene(testComposer(t), []lyrics.Cue{{Start: 0, Text: "hello"}})

	data := r.renderFrame(0.25)
	if len(data) < 2 || data[0] != 0xFF || data[1] != 0xD8 {
		t.Fatalf("frame does not start with a JPEG marker")
	}
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("jpeg.Decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 96 || b.Dy() != 54 {
		t.Errorf("frame size = %dx%d, want 96x54", b.Dx(), b.Dy())
	}

	// The returned slice must not alias the renderer's buffer.
	first := append([]byte(nil), data...)
	r.renderFrame(0.5)
	if !bytes.Equal(first, data) {
		t.Error("earlier frame was overwritten by a later render")
	}
}

func TestDrainFeedsAnalyzers(t *testing.T) {
	pcm := stream.NewBroadcaster[[]int16]()
	r := NewRenderer(testOptions(), pcm, newCapture(), func() float64 { return 0 })
	l := pcm.Subscribe(stream.PCMBuffer)
	defer pcm.Unsubscribe(l)

	for i := 0; i < 5; i++ {
		pcm.Publish(sineFrame(i * audio.FrameSize))
	}
	r.drain(l)
	if n := len(l.C); n != 0 {
		t.Errorf("%d frames left after drain, want 0", n)
	}

	left := r.left.Snapshot(nil)
	right := r.right.Snapshot(nil)
	var lsum, rsum int
	for i := range left {
		lsum += int(left[i])
		rsum += int(right[i])
	}
	if lsum == 0 {
		t.Error("left analyzer saw no energy")
	}
	if rsum != 0 {
		t.Errorf("right analyzer energy = %d, want 0", rsum)
	}
}

func TestDrainEmptyDoesNotBlock(t *testing.T) {
	pcm := stream.NewBroadcaster[[]int16]()
	r := NewRenderer(testOptions(), pcm, newCapture(), func() float64 { return 0 })
	l := pcm.Subscribe(1)
	defer pcm.Unsubscribe(l)

	done := make(chan struct{})
	go func() {
		r.drain(l)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("drain blocked on an empty listener")
	}
}

func TestSetSceneResetsState(t *testing.T) {
	pcm := stream.NewBroadcaster[[]int16]()
	r := NewRenderer(testOptions(), pcm, newCapture(), func() float64 { return 0 })
	r.SetScene(testComposer(t), nil)
	r.left.Write(make([]float32, 512))
	r.renderFrame(0)
	if r.state.Left == nil {
		t.Fatal("state not populated after a frame")
	}
	r.SetScene(testComposer(t), nil)
	if r.state.Left != nil || r.frame != nil {
		t.Error("SetScene kept state from the previous scene")
	}
}

func TestStartStop(t *testing.T) {
	pcm := stream.NewBroadcaster[[]int16]()
	out := newCapture()
	r := NewRenderer(testOptions(), pcm, out, func() float64 { return 0 })
	r.SetScene(testComposer(t), nil)

	r.Start(context.Background())
	r.Start(context.Background()) // no second loop
	if !r.Running() {
		t.Fatal("Running = false after Start")
	}
	if pcm.ListenerCount() != 1 {
		t.Errorf("ListenerCount = %d, want 1", pcm.ListenerCount())
	}

	select {
	case <-out.got:
	case <-time.After(2 * time.Second):
		t.Fatal("no frame published")
	}

	r.Stop()
	r.Stop()
	if r.Running() {
		t.Error("Running = true after Stop")
	}
	if pcm.ListenerCount() != 0 {
		t.Errorf("ListenerCount after Stop = %d, want 0", pcm.ListenerCount())
	}
	n := out.count()
	time.Sleep(50 * time.Millisecond)
	if out.count() != n {
		t.Error("frames still published after Stop")
	}
}

func TestStopsWithContext(t *testing.T) {
	pcm := stream.NewBroadcaster[[]int16]()
	r := NewRenderer(testOptions(), pcm, newCapture(), func() float64 { return 0 })
	ctx, cancel := context.WithCancel(context.Background())
	r.Start(ctx)
	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for pcm.ListenerCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("loop did not exit after context cancel")
		}
		time.Sleep(5 * time.Millisecond)
	}
	r.Stop()
}

// --- Player ---

func startPlayer(t *testing.T) (*Player, *capture) {
	t.Helper()
	out := newCapture()
	p := NewPlayer(testOptions(), solid(color.RGBA{10, 10, 10, 255}), solid(color.White), out)
	track := audio.TestSignal(audio.SampleRate)
	if err := p.Load("signal.wav", "Signal", track, lyrics.Parse(audio.TestSignalLyrics)); err != nil {
		t.Fatalf("Load: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return p, out
}

func TestPlayerLoad(t *testing.T) {
	p, _ := startPlayer(t)
	st := p.Status()
	if st.Name != "signal.wav" {
		t.Errorf("Name = %q, want signal.wav", st.Name)
	}
	if st.Playing || st.Rendering {
		t.Errorf("Status after Load = %+v, want paused", st)
	}
	if st.Duration < audio.TestSignalDuration-0.1 {
		t.Errorf("Duration = %v, want ~%v", st.Duration, audio.TestSignalDuration)
	}
}

func TestPlayerPlayPauseStop(t *testing.T) {
	p, out := startPlayer(t)

	p.Play()
	st := p.Status()
	if !st.Playing || !st.Rendering {
		t.Fatalf("Status after Play = %+v, want playing and rendering", st)
	}
	select {
	case <-out.got:
	case <-time.After(2 * time.Second):
		t.Fatal("no preview frame after Play")
	}

	deadline := time.Now().Add(2 * time.Second)
	for p.Status().Position == 0 {
		if time.Now().After(deadline) {
			t.Fatal("position never advanced")
		}
		time.Sleep(10 * time.Millisecond)
	}

	p.Pause()
	st = p.Status()
	if st.Playing || st.Rendering {
		t.Errorf("Status after Pause = %+v, want stopped", st)
	}
	if st.Position == 0 {
		t.Error("Pause rewound the playhead")
	}

	p.Stop()
	if pos := p.Status().Position; pos != 0 {
		t.Errorf("Position after Stop = %v, want 0", pos)
	}
}

func TestPlayerSeek(t *testing.T) {
	p, _ := startPlayer(t)
	p.Seek(3 * time.Second)
	if pos := p.Status().Position; math.Abs(pos-3) > 1e-9 {
		t.Errorf("Position = %v, want 3", pos)
	}
	p.Seek(time.Hour)
	st := p.Status()
	if st.Position != st.Duration {
		t.Errorf("Position = %v, want clamp to %v", st.Position, st.Duration)
	}
}

func TestPlayerLoadBadSize(t *testing.T) {
	p := &Player{opts: Options{Width: -1, Height: 10}}
	if err := p.Load("x", "x", &audio.Track{}, nil); err == nil {
		t.Error("expected error for invalid preview size")
	}
}
