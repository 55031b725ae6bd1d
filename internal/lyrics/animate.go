package lyrics

import "sort"

// Animation timing, in seconds and pixels.
const (
	FadeIn        = 0.5
	FadeOut       = 0.5
	DefaultLength = 4.0 // display time of the last cue
	slideDistance = 10.0
	floatDistance = 5.0
)

// Animation is the overlay state of the active cue at one instant.
type Animation struct {
	Cue     Cue
	Opacity float64 // (0,1]
	Drift   float64 // vertical offset in px, negative is up
}

// ActiveIndex returns the index of the cue with the greatest start <= t, or
// -1 before the first cue. Cues must be sorted by start.
func ActiveIndex(cues []Cue, t float64) int {
	return sort.Search(len(cues), func(i int) bool { return cues[i].Start > t }) - 1
}

// Active returns the cue showing at t.
func Active(cues []Cue, t float64) (Cue, bool) {
	i := ActiveIndex(cues, t)
	if i < 0 {
		return Cue{}, false
	}
	return cues[i], true
}

// Window is the display interval of cue i: until the next cue starts, or
// DefaultLength seconds for the last one.
func Window(cues []Cue, i int) (start, end float64) {
	start = cues[i].Start
	if i+1 < len(cues) {
		return start, cues[i+1].Start
	}
	return start, start + DefaultLength
}

// Animate computes the overlay for time t. It reports false when no cue is
// active or the active one is fully transparent.
func Animate(cues []Cue, t float64) (Animation, bool) {
	i := ActiveIndex(cues, t)
	if i < 0 {
		return Animation{}, false
	}
	start, end := Window(cues, i)
	u := t - start
	length := end - start

	var opacity, drift float64
	switch {
	case u < FadeIn:
		opacity = u / FadeIn
		drift = (1 - opacity) * slideDistance
	case u > length-FadeOut:
		opacity = (length - u) / FadeOut
		drift = -(1 - opacity) * slideDistance
	default:
		opacity = 1
		drift = -(u / length) * floatDistance
	}

	opacity = min(1, max(0, opacity))
	if opacity <= 0 {
		return Animation{}, false
	}
	return Animation{Cue: cues[i], Opacity: opacity, Drift: drift}, true
}
