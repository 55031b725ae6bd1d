package spectrum

import (
	"context"
	"errors"
	"math"

	"github.com/satindergrewal/echoframe/internal/audio"
)

// Frame is one video frame's spectrum: BinCount bytes per channel.
type Frame struct {
	Left  []uint8
	Right []uint8
}

// Options controls offline extraction. Zero fields take the defaults.
type Options struct {
	BinCount  int     // 256; the FFT size is twice this
	FPS       int     // 60
	Smoothing float64 // 0.85
	MinDB     float64 // -100
	MaxDB     float64 // -30
}

func (o Options) withDefaults() Options {
	if o.BinCount <= 0 {
		o.BinCount = DefaultFFTSize / 2
	}
	if o.FPS <= 0 {
		o.FPS = 60
	}
	if o.Smoothing <= 0 || o.Smoothing >= 1 {
		o.Smoothing = DefaultSmoothing
	}
	if o.MaxDB <= o.MinDB {
		o.MinDB, o.MaxDB = DefaultMinDB, DefaultMaxDB
	}
	return o
}

// progressEvery is how many frames pass between progress callbacks.
const progressEvery = 30

// TotalFrames is ceil(duration*fps), the number of frames a track of the
// given length produces.
func TotalFrames(duration float64, fps int) int {
	if duration <= 0 || fps <= 0 {
		return 0
	}
	// Round away float noise first so 6.0*60 stays 360.
	return int(math.Ceil(math.Round(duration*float64(fps)*1e6) / 1e6))
}

// frameCount is TotalFrames computed from the sample count, used when a
// track carries no duration.
func frameCount(samples, rate, fps int) int {
	if samples <= 0 || rate <= 0 {
		return 0
	}
	return int((int64(samples)*int64(fps) + int64(rate) - 1) / int64(rate))
}

// Extract analyzes TotalFrames(t.Duration, fps) video frames of t. Frame i
// covers the window ending at sample i*rate/fps on each channel, each with
// its own analyzer, so identical input always yields identical bytes. When
// the declared duration outlasts the samples, frames past the end repeat
// the last analyzed one. progress (may be nil) receives the completed
// fraction every 30 frames and 1 at the end.
func Extract(ctx context.Context, t *audio.Track, opts Options, progress func(float64)) ([]Frame, error) {
	if t == nil || t.Len() == 0 || t.SampleRate <= 0 {
		return nil, errors.New("spectrum: empty track")
	}
	opts = opts.withDefaults()

	size := opts.BinCount * 2
	left := NewAnalyzer(size, opts.Smoothing)
	right := NewAnalyzer(size, opts.Smoothing)
	left.SetRange(opts.MinDB, opts.MaxDB)
	right.SetRange(opts.MinDB, opts.MaxDB)

	n := t.Len()
	total := TotalFrames(t.Duration, opts.FPS)
	if total == 0 {
		total = frameCount(n, t.SampleRate, opts.FPS)
	}
	frames := make([]Frame, total)

	for i := 0; i < total; i++ {
		if i%progressEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if progress != nil && i > 0 {
				progress(float64(i) / float64(total))
			}
		}

		end := int(int64(i) * int64(t.SampleRate) / int64(opts.FPS))
		if end >= n && i > 0 {
			frames[i] = frames[i-1]
			continue
		}
		frames[i] = Frame{
			Left:  left.SnapshotAt(t.Left(), end, nil),
			Right: right.SnapshotAt(t.Right(), end, nil),
		}
	}

	if progress != nil {
		progress(1)
	}
	return frames, nil
}
