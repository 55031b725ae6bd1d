package lyrics

import (
	"math"
	"strings"
)

// Overlay geometry as fractions of the frame.
const (
	anchorY       = 0.92 // bottom line, from the top
	wrapFraction  = 0.85
	minFontSize   = 24.0
	fontDivisor   = 25.0
	secondaryRate = 0.75
	lineSpacing   = 1.3
)

// Wrap breaks text greedily on single spaces so that each joined line
// measures under maxWidth. A single word wider than maxWidth gets its own
// line.
func Wrap(text string, maxWidth float64, measure func(string) float64) []string {
	if text == "" {
		return nil
	}
	words := strings.Split(text, " ")
	lines := make([]string, 0, 2)
	line := words[0]
	for _, w := range words[1:] {
		candidate := line + " " + w
		if measure(candidate) < maxWidth {
			line = candidate
			continue
		}
		lines = append(lines, line)
		line = w
	}
	return append(lines, line)
}

// Line is one positioned line of the overlay. Y is the vertical center.
type Line struct {
	Text      string
	Y         float64
	Size      float64
	Secondary bool
}

// Block is a laid out lyric overlay, horizontally centered at X.
type Block struct {
	X       float64
	Opacity float64
	Lines   []Line
}

// FontSizes returns the primary and secondary font sizes for a frame width.
func FontSizes(frameW int) (primary, secondary float64) {
	primary = math.Max(minFontSize, float64(frameW)/fontDivisor)
	return primary, primary * secondaryRate
}

// Layout wraps and positions the animated cue. measurePrimary and
// measureSecondary return the advance width of a string at the primary and
// secondary font sizes. Lines stack upward from the bottom anchor:
// translation lines at the bottom, then the lyric lines above them.
func Layout(a Animation, frameW, frameH int, measurePrimary, measureSecondary func(string) float64) Block {
	size, secSize := FontSizes(frameW)
	maxWidth := float64(frameW) * wrapFraction

	primary := Wrap(a.Cue.Text, maxWidth, measurePrimary)
	var secondary []string
	if a.Cue.Translation != "" {
		secondary = Wrap(a.Cue.Translation, maxWidth, measureSecondary)
	}

	b := Block{
		X:       float64(frameW) / 2,
		Opacity: a.Opacity,
		Lines:   make([]Line, 0, len(primary)+len(secondary)),
	}
	bottom := float64(frameH)*anchorY + a.Drift

	// Center of the last primary line.
	primaryBottom := bottom
	secStep := secSize * lineSpacing
	secTop := bottom - float64(len(secondary)-1)*secStep
	if len(secondary) > 0 {
		primaryBottom = secTop - (size + secSize/2)
	}

	step := size * lineSpacing
	for i, s := range primary {
		fromBottom := len(primary) - 1 - i
		b.Lines = append(b.Lines, Line{Text: s, Y: primaryBottom - float64(fromBottom)*step, Size: size})
	}
	for i, s := range secondary {
		b.Lines = append(b.Lines, Line{Text: s, Y: secTop + float64(i)*secStep, Size: secSize, Secondary: true})
	}
	return b
}
