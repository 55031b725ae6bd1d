package audio

import "math"

// TestSignalDuration is the length of the stereo test stimulus in seconds.
const TestSignalDuration = 6

// TestSignalLyrics matches the TestSignal timeline.
const TestSignalLyrics = `[00:00.00]Now playing: left channel (440Hz A4)
[00:02.00]Now playing: both channels, centered (880Hz A5)
[00:04.00]Now playing: right channel (440Hz A4)
[00:06.00]End of test
`

// TestSignal renders the 6 second stereo stimulus used to check channel
// separation end to end:
//
//	0-2s  440Hz on the left only
//	2-4s  880Hz on both channels
//	4-6s  440Hz on the right only
//
// Each tone ramps to 0.5 gain over 100ms and back down over its final 100ms.
func TestSignal(rate int) *Track {
	n := rate * TestSignalDuration
	left := make([]float32, n)
	right := make([]float32, n)

	for i := 0; i < n; i++ {
		t := float64(i) / float64(rate)
		l := tone(t, 0, 440)
		c := tone(t, 2, 880)
		r := tone(t, 4, 440)
		left[i] = float32(l + c)
		right[i] = float32(c + r)
	}
	return NewTrack(rate, [][]float32{left, right})
}

func tone(t, start, freq float64) float64 {
	g := toneGain(t - start)
	if g == 0 {
		return 0
	}
	return g * math.Sin(2*math.Pi*freq*(t-start))
}

// toneGain is the envelope of a 2 second tone, u seconds after its start.
func toneGain(u float64) float64 {
	switch {
	case u < 0 || u >= 2:
		return 0
	case u < 0.1:
		return 0.5 * u / 0.1
	case u < 1.9:
		return 0.5
	default:
		return 0.5 * (2 - u) / 0.1
	}
}
