package audio

import "time"

// Preview playback format. Decoded tracks keep their native rate; only the
// live preview path is converted to this fixed PCM layout.
const (
	SampleRate    = 48000
	Channels      = 2
	BitDepth      = 16
	FrameDuration = 20 * time.Millisecond
	FrameSize     = 960                  // samples per channel per 20ms frame
	FrameSamples  = FrameSize * Channels // total interleaved samples per frame
	FrameBytes    = FrameSamples * 2     // bytes per frame (int16 = 2 bytes)
)

// Track is a decoded audio buffer. It is never modified after decoding.
// Channels always holds exactly two slices (left, right); mono sources are
// presented as two identical channels.
type Track struct {
	SampleRate int
	Channels   [][]float32
	Duration   float64 // seconds
}

// NewTrack builds a track from per-channel samples at the given rate.
func NewTrack(rate int, channels [][]float32) *Track {
	switch len(channels) {
	case 0:
		channels = [][]float32{nil, nil}
	case 1:
		channels = [][]float32{channels[0], channels[0]}
	default:
		channels = channels[:2]
	}
	n := len(channels[0])
	if len(channels[1]) < n {
		n = len(channels[1])
	}
	channels[0] = channels[0][:n]
	channels[1] = channels[1][:n]

	t := &Track{SampleRate: rate, Channels: channels}
	if rate > 0 {
		t.Duration = float64(n) / float64(rate)
	}
	return t
}

// Len returns the number of samples per channel.
func (t *Track) Len() int {
	return len(t.Channels[0])
}

func (t *Track) Left() []float32  { return t.Channels[0] }
func (t *Track) Right() []float32 { return t.Channels[1] }
