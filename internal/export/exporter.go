package export

import (
	"context"
	"fmt"
	"image"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/satindergrewal/echoframe/internal/audio"
	"github.com/satindergrewal/echoframe/internal/lyrics"
	"github.com/satindergrewal/echoframe/internal/render"
	"github.com/satindergrewal/echoframe/internal/spectrum"
)

// Options configures an Exporter. Zero fields take the defaults.
type Options struct {
	Width, Height int     // 1920x1080
	FPS           int     // 60
	QueueDepth    int     // 10 frames pending encode
	Gravity       float64 // 3.0
	BinCount      int     // 256
	Smoothing     float64 // 0.85
	OutputDir     string  // "."
	WorkDir       string  // parent of per-job temp dirs, os.TempDir() if empty
	FFmpegPath    string
	VideoBitrate  string // "8000k"
	Preset        string // "ultrafast"
	JPEGQuality   int    // 90
	FontData      []byte
	Converter     lyrics.TextConverter
	OnProgress    func(Progress)
	Now           func() time.Time
	Logger        *log.Logger
}

func (o Options) withDefaults() Options {
	if o.Width <= 0 {
		o.Width = 1920
	}
	if o.Height <= 0 {
		o.Height = 1080
	}
	if o.FPS <= 0 {
		o.FPS = 60
	}
	if o.QueueDepth <= 0 {
		o.QueueDepth = 10
	}
	if o.Gravity <= 0 {
		o.Gravity = render.ExportGravity
	}
	if o.BinCount <= 0 {
		o.BinCount = 256
	}
	if o.Smoothing <= 0 {
		o.Smoothing = spectrum.DefaultSmoothing
	}
	if o.OutputDir == "" {
		o.OutputDir = "."
	}
	if o.VideoBitrate == "" {
		o.VideoBitrate = "8000k"
	}
	if o.Preset == "" {
		o.Preset = "ultrafast"
	}
	if o.JPEGQuality <= 0 {
		o.JPEGQuality = 90
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Logger == nil {
		o.Logger = log.Default()
	}
	return o
}

// Request names the inputs of one export. AvatarPath and LyricsPath are
// optional; Cues is used when LyricsPath is empty.
type Request struct {
	AudioPath      string
	BackgroundPath string
	AvatarPath     string
	LyricsPath     string
	Cues           []lyrics.Cue
	Title          string // defaults to the audio file name
	OutputDir      string // overrides Options.OutputDir
}

// Artifact is a finished export.
type Artifact struct {
	JobID    string
	Title    string // as rendered
	Path     string
	Frames   int
	Duration float64
}

// Exporter runs one export at a time.
type Exporter struct {
	opts       Options
	newEncoder EncoderFactory
	muxer      Muxer

	mu      sync.Mutex
	running bool
	job     Job
}

// New returns an Exporter that encodes and muxes with ffmpeg.
func New(opts Options) *Exporter {
	opts = opts.withDefaults()
	enc := func(dir string) Encoder {
		return &FFmpegEncoder{
			FFmpegPath: opts.FFmpegPath,
			Dir:        dir,
			FPS:        opts.FPS,
			Quality:    opts.JPEGQuality,
			Preset:     opts.Preset,
			Bitrate:    opts.VideoBitrate,
		}
	}
	return NewWithCodecs(opts, enc, &FFmpegMuxer{FFmpegPath: opts.FFmpegPath})
}

// NewWithCodecs returns an Exporter using the given encoder and muxer.
func NewWithCodecs(opts Options, enc EncoderFactory, mux Muxer) *Exporter {
	return &Exporter{opts: opts.withDefaults(), newEncoder: enc, muxer: mux}
}

// Status returns a snapshot of the current or last job.
func (e *Exporter) Status() Job {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.job
}

// inputs are the decoded sources of a job.
type inputs struct {
	track      *audio.Track
	background image.Image
	avatar     image.Image
	cues       []lyrics.Cue
	title      string
}

// Run executes a full export. It returns ErrBusy if a job is active. Input
// decode failures are reported before the job leaves Idle; later failures
// return an *Error naming the stage, reset the exporter to Idle and leave no
// file in the output directory.
func (e *Exporter) Run(ctx context.Context, req Request) (*Artifact, error) {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil, ErrBusy
	}
	e.running = true
	e.job = Job{ID: uuid.NewString(), Stage: Idle}
	e.mu.Unlock()

	art, err := e.run(ctx, req)

	e.mu.Lock()
	e.running = false
	if err != nil {
		e.job.Stage = Idle
		e.job.Err = err
	}
	e.mu.Unlock()
	return art, err
}

func (e *Exporter) run(ctx context.Context, req Request) (*Artifact, error) {
	logger := e.opts.Logger

	in, err := e.load(req)
	if err != nil {
		return nil, &Error{Stage: Idle, Err: err}
	}

	if err := e.advance(Initializing, 0); err != nil {
		return nil, err
	}
	dir, err := os.MkdirTemp(e.opts.WorkDir, "echoframe-*")
	if err != nil {
		return nil, &Error{Stage: Initializing, Err: fmt.Errorf("create work dir: %w", err)}
	}
	defer e.cleanup(dir)

	comp, err := render.NewComposer(render.Options{
		Width:    e.opts.Width,
		Height:   e.opts.Height,
		Gravity:  e.opts.Gravity,
		Title:    in.title,
		FontData: e.opts.FontData,
	}, in.background, in.avatar)
	if err != nil {
		return nil, &Error{Stage: Initializing, Err: err}
	}

	if err := e.advance(Analyzing, 0); err != nil {
		return nil, err
	}
	frames, err := spectrum.Extract(ctx, in.track, spectrum.Options{
		BinCount:  e.opts.BinCount,
		FPS:       e.opts.FPS,
		Smoothing: e.opts.Smoothing,
	}, func(p float64) {
		e.report(int(p * 10))
	})
	if err != nil {
		return nil, &Error{Stage: Analyzing, Err: err}
	}
	logger.Printf("Export %s: analyzed %d frames (%.2fs)", e.jobID(), len(frames), in.track.Duration)

	if err := e.advance(Rendering, 10); err != nil {
		return nil, err
	}
	enc := e.newEncoder(dir)
	if err := e.render(ctx, comp, enc, frames, in.cues); err != nil {
		return nil, &Error{Stage: Rendering, Err: err}
	}

	if err := e.advance(Encoding, 70); err != nil {
		return nil, err
	}
	total := len(frames)
	video, err := enc.Finish(ctx, func(n int) {
		e.report(70 + min(n, total)*25/total)
	})
	if err != nil {
		return nil, &Error{Stage: Encoding, Err: err}
	}
	e.report(95)

	muxed := filepath.Join(dir, "out.mp4")
	if err := e.muxer.Mux(ctx, video, req.AudioPath, muxed); err != nil {
		return nil, &Error{Stage: Encoding, Err: err}
	}

	outDir := req.OutputDir
	if outDir == "" {
		outDir = e.opts.OutputDir
	}
	final := filepath.Join(outDir, fmt.Sprintf("EchoFrame_HD_%d.mp4", e.opts.Now().UnixMilli()))
	if err := moveFile(muxed, final); err != nil {
		return nil, &Error{Stage: Encoding, Err: fmt.Errorf("publish artifact: %w", err)}
	}

	e.mu.Lock()
	e.job.Artifact = final
	e.mu.Unlock()
	if err := e.advance(Ready, 100); err != nil {
		return nil, err
	}
	logger.Printf("Export ready: %s", final)

	return &Artifact{JobID: e.jobID(), Title: in.title, Path: final, Frames: total, Duration: in.track.Duration}, nil
}

// load decodes every input up front so bad files fail before any stage.
func (e *Exporter) load(req Request) (*inputs, error) {
	dec := &audio.Decoder{FFmpegPath: e.opts.FFmpegPath}
	track, err := dec.DecodeFile(req.AudioPath)
	if err != nil {
		return nil, err
	}
	bg, err := render.LoadImage(req.BackgroundPath)
	if err != nil {
		return nil, err
	}
	in := &inputs{track: track, background: bg, cues: req.Cues, title: req.Title}

	if req.AvatarPath != "" {
		if in.avatar, err = render.LoadImage(req.AvatarPath); err != nil {
			return nil, err
		}
	}
	if req.LyricsPath != "" {
		if in.cues, err = lyrics.ReadFile(req.LyricsPath, lyrics.ReadOptions{Converter: e.opts.Converter}); err != nil {
			return nil, fmt.Errorf("load lyrics: %w", err)
		}
	}
	if in.title == "" {
		in.title = DefaultTitle(req.AudioPath)
	}
	return in, nil
}

// DefaultTitle is the title used when a request names none: the audio
// file name.
func DefaultTitle(audioPath string) string {
	return filepath.Base(audioPath)
}

// queued is a composed frame waiting for the encoder.
type queued struct {
	index int
	img   *image.RGBA
}

// render composes every frame and feeds the encoder. Frames come from a
// fixed pool of QueueDepth+2 buffers and at most QueueDepth wait in the
// queue, so memory stays bounded however long the track is. An encoder
// error cancels composition.
func (e *Exporter) render(ctx context.Context, comp *render.Composer, enc Encoder, frames []spectrum.Frame, cues []lyrics.Cue) error {
	depth := e.opts.QueueDepth
	queue := make(chan queued, depth)
	pool := make(chan *image.RGBA, depth+2)
	for i := 0; i < depth+2; i++ {
		pool <- comp.NewFrame()
	}

	total := len(frames)
	fps := float64(e.opts.FPS)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(queue)
		var st render.State
		for i, f := range frames {
			var buf *image.RGBA
			select {
			case buf = <-pool:
			case <-gctx.Done():
				return gctx.Err()
			}

			in := render.Input{Spectrum: f}
			if a, ok := lyrics.Animate(cues, float64(i)/fps); ok {
				in.Lyric = &a
			}
			st = comp.Compose(buf, in, st)

			select {
			case queue <- queued{index: i, img: buf}:
			case <-gctx.Done():
				return gctx.Err()
			}
			if i%30 == 0 {
				e.report(10 + i*60/total)
			}
		}
		return nil
	})

	g.Go(func() error {
		for q := range queue {
			if err := enc.WriteFrame(q.index, q.img); err != nil {
				return fmt.Errorf("frame %d: %w", q.index, err)
			}
			pool <- q.img
		}
		return nil
	})

	return g.Wait()
}

// advance moves the job to the next stage. Skipping or repeating a stage is
// a programming error reported as a failure of the current stage.
func (e *Exporter) advance(next Stage, percent int) error {
	e.mu.Lock()
	cur := e.job.Stage
	if next != cur+1 {
		e.mu.Unlock()
		return &Error{Stage: cur, Err: fmt.Errorf("invalid transition %s -> %s", cur, next)}
	}
	e.job.Stage = next
	e.job.Percent = max(e.job.Percent, percent)
	p := Progress{JobID: e.job.ID, Stage: next, Percent: e.job.Percent}
	e.mu.Unlock()

	e.opts.Logger.Printf("Export %s: %s", p.JobID, next)
	e.emit(p)
	return nil
}

// report raises the job percent, ignoring values that would go backwards.
func (e *Exporter) report(percent int) {
	percent = min(100, max(0, percent))
	e.mu.Lock()
	if percent <= e.job.Percent {
		e.mu.Unlock()
		return
	}
	e.job.Percent = percent
	p := Progress{JobID: e.job.ID, Stage: e.job.Stage, Percent: percent}
	e.mu.Unlock()
	e.emit(p)
}

func (e *Exporter) emit(p Progress) {
	if e.opts.OnProgress != nil {
		e.opts.OnProgress(p)
	}
}

func (e *Exporter) jobID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.job.ID
}

// cleanup removes the work dir file by file. Failures are logged and
// otherwise ignored.
func (e *Exporter) cleanup(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		e.opts.Logger.Printf("Export cleanup: read %s: %v", dir, err)
	}
	for _, ent := range entries {
		p := filepath.Join(dir, ent.Name())
		if err := os.Remove(p); err != nil {
			e.opts.Logger.Printf("Export cleanup: remove %s: %v", p, err)
		}
	}
	if err := os.Remove(dir); err != nil {
		e.opts.Logger.Printf("Export cleanup: remove %s: %v", dir, err)
	}
}

// moveFile renames src to dst, copying when they sit on different devices.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	return copyInto(src, dst)
}

// copyInto copies src to dst through a hidden temp file in dst's directory,
// so dst only ever appears complete.
func copyInto(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*")
	if err != nil {
		return err
	}
	tmp := out.Name()
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Chmod(tmp, 0o644); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
