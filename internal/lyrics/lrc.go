// Package lyrics parses LRC cue sheets and computes the lyric overlay
// animation for a point in time.
package lyrics

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Cue is one timed lyric line. Translation is empty when the line has none.
type Cue struct {
	Start       float64 // seconds
	Text        string
	Translation string
}

var timeTag = regexp.MustCompile(`\[(\d{2}):(\d{2})\.(\d{2,3})\]`)

// Parse reads LRC text. Lines without a time tag (metadata such as [ar:...])
// are skipped. A line with several tags yields one cue per tag. "a | b"
// splits into text a and translation b. The result is sorted by start time,
// keeping file order for equal starts.
func Parse(text string) []Cue {
	var cues []Cue
	for _, line := range strings.Split(text, "\n") {
		tags := timeTag.FindAllStringSubmatch(line, -1)
		if len(tags) == 0 {
			continue
		}

		body := strings.TrimSpace(timeTag.ReplaceAllString(line, ""))
		var translation string
		if strings.Contains(body, "|") {
			parts := strings.Split(body, "|")
			body = strings.TrimSpace(parts[0])
			translation = strings.TrimSpace(parts[1])
		}

		for _, m := range tags {
			cues = append(cues, Cue{
				Start:       tagSeconds(m[1], m[2], m[3]),
				Text:        body,
				Translation: translation,
			})
		}
	}

	sort.SliceStable(cues, func(i, j int) bool { return cues[i].Start < cues[j].Start })
	return cues
}

// tagSeconds converts mm, ss and a 2-digit centisecond or 3-digit
// millisecond fraction. Summing in whole milliseconds keeps 1.005 and 60.5
// exact.
func tagSeconds(mm, ss, frac string) float64 {
	m, _ := strconv.Atoi(mm)
	s, _ := strconv.Atoi(ss)
	f, _ := strconv.Atoi(frac)
	if len(frac) == 2 {
		f *= 10
	}
	return float64((m*60+s)*1000+f) / 1000
}
