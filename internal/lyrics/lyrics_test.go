package lyrics

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// --- Parse ---

func TestParseTimestamps(t *testing.T) {
	tests := []struct {
		line string
		want float64
	}{
		{"[00:02.00]two", 2.0},
		{"[00:01.005]ms", 1.005},
		{"[01:00.50]minute", 60.5},
		{"[10:59.99]late", 659.99},
	}
	for _, tt := range tests {
		cues := Parse(tt.line)
		if len(cues) != 1 {
			t.Fatalf("Parse(%q) = %d cues, want 1", tt.line, len(cues))
		}
		if cues[0].Start != tt.want {
			t.Errorf("Parse(%q).Start = %v, want %v", tt.line, cues[0].Start, tt.want)
		}
	}
}

func TestParseMultiTagAndSort(t *testing.T) {
	text := "[ar:Someone]\n[00:05.00][00:01.00]chorus\n[00:03.00]verse\nno tag here\n"
	cues := Parse(text)
	want := []Cue{{1, "chorus", ""}, {3, "verse", ""}, {5, "chorus", ""}}
	if len(cues) != len(want) {
		t.Fatalf("got %d cues, want %d: %+v", len(cues), len(want), cues)
	}
	for i := range want {
		if cues[i] != want[i] {
			t.Errorf("cue %d = %+v, want %+v", i, cues[i], want[i])
		}
	}
}

func TestParseStableForEqualStarts(t *testing.T) {
	cues := Parse("[00:01.00]first\n[00:01.00]second\n")
	if cues[0].Text != "first" || cues[1].Text != "second" {
		t.Errorf("order = %q, %q, want first, second", cues[0].Text, cues[1].Text)
	}
}

func TestParseTranslation(t *testing.T) {
	tests := []struct {
		line, text, translation string
	}{
		{"[00:01.00]  hello | bonjour  ", "hello", "bonjour"},
		{"[00:01.00]hello |", "hello", ""},
		{"[00:01.00]a|b|c", "a", "b"},
		{"[00:01.00]plain", "plain", ""},
	}
	for _, tt := range tests {
		c := Parse(tt.line)[0]
		if c.Text != tt.text || c.Translation != tt.translation {
			t.Errorf("Parse(%q) = (%q, %q), want (%q, %q)", tt.line, c.Text, c.Translation, tt.text, tt.translation)
		}
	}
}

func TestParseEmpty(t *testing.T) {
	if cues := Parse(""); len(cues) != 0 {
		t.Errorf("Parse(\"\") = %v, want none", cues)
	}
}

// --- ReadFile ---

type upperConverter struct{}

func (upperConverter) Convert(s string) string { return strings.ToUpper(s) }

func TestReadFileBOMAndConverter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "song.lrc")
	data := append([]byte{0xEF, 0xBB, 0xBF}, "[00:01.00]hi | there\n"...)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	cues, err := ReadFile(path, ReadOptions{Converter: upperConverter{}})
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(cues) != 1 || cues[0].Text != "HI" || cues[0].Translation != "THERE" {
		t.Errorf("cues = %+v, want one cue HI/THERE", cues)
	}
}

func TestReadFileGBK(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gbk.lrc")
	// "你好" in GBK
	data := append([]byte("[00:02.00]"), 0xC4, 0xE3, 0xBA, 0xC3, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	cues, err := ReadFile(path, ReadOptions{})
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(cues) != 1 || cues[0].Text != "你好" {
		t.Errorf("cues = %+v, want 你好", cues)
	}
}

func TestReadFileMissing(t *testing.T) {
	if _, err := ReadFile(filepath.Join(t.TempDir(), "nope.lrc"), ReadOptions{}); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestOpenCC(t *testing.T) {
	cc, err := NewOpenCC()
	if err != nil {
		t.Skipf("OpenCC dictionaries unavailable: %v", err)
	}
	if got := cc.Convert("漢字"); got != "汉字" {
		t.Errorf("Convert(漢字) = %q, want 汉字", got)
	}
	if got := cc.Convert(""); got != "" {
		t.Errorf("Convert(\"\") = %q, want empty", got)
	}
}

// --- Cue lookup ---

var fourCues = []Cue{{Start: 0, Text: "a"}, {Start: 2, Text: "b"}, {Start: 4, Text: "c"}, {Start: 6, Text: "d"}}

func TestActiveIndex(t *testing.T) {
	tests := []struct {
		t    float64
		want int
	}{
		{-1, -1},
		{0, 0},
		{1.99, 0},
		{2, 1},
		{5, 2},
		{6, 3},
		{100, 3},
	}
	for _, tt := range tests {
		if got := ActiveIndex(fourCues, tt.t); got != tt.want {
			t.Errorf("ActiveIndex(%v) = %d, want %d", tt.t, got, tt.want)
		}
	}
	if got := ActiveIndex(nil, 3); got != -1 {
		t.Errorf("ActiveIndex(nil) = %d, want -1", got)
	}
}

func TestActive(t *testing.T) {
	c, ok := Active(fourCues, 5)
	if !ok || c.Start != 4 {
		t.Errorf("Active(5) = %+v, %v, want start 4", c, ok)
	}
	if _, ok := Active(fourCues, -1); ok {
		t.Error("Active(-1) reported a cue")
	}
}

func TestWindow(t *testing.T) {
	if s, e := Window(fourCues, 1); s != 2 || e != 4 {
		t.Errorf("Window(1) = [%v,%v), want [2,4)", s, e)
	}
	if s, e := Window(fourCues, 3); s != 6 || e != 10 {
		t.Errorf("Window(last) = [%v,%v), want [6,10)", s, e)
	}
}

// --- Animate ---

func TestAnimate(t *testing.T) {
	tests := []struct {
		name    string
		t       float64
		opacity float64
		drift   float64
	}{
		{"start", 2.0, 0, 0}, // invisible at u=0
		{"fade in", 2.25, 0.5, 5},
		{"steady", 3.0, 1, -2.5},
		{"fade out", 3.75, 0.5, -5},
		{"last cue steady", 8.0, 1, -2.5},
	}
	for _, tt := range tests {
		a, ok := Animate(fourCues, tt.t)
		if tt.opacity == 0 {
			if ok {
				t.Errorf("%s: Animate visible with opacity %v", tt.name, a.Opacity)
			}
			continue
		}
		if !ok {
			t.Fatalf("%s: Animate not visible", tt.name)
		}
		if math.Abs(a.Opacity-tt.opacity) > 1e-9 {
			t.Errorf("%s: Opacity = %v, want %v", tt.name, a.Opacity, tt.opacity)
		}
		if math.Abs(a.Drift-tt.drift) > 1e-9 {
			t.Errorf("%s: Drift = %v, want %v", tt.name, a.Drift, tt.drift)
		}
	}
}

func TestAnimateShortCueFadeInWins(t *testing.T) {
	// A 0.6s cue is in both fade ranges at u=0.3; fade-in applies.
	cues := []Cue{{Start: 0, Text: "x"}, {Start: 0.6, Text: "y"}}
	a, ok := Animate(cues, 0.3)
	if !ok {
		t.Fatal("not visible")
	}
	if math.Abs(a.Opacity-0.6) > 1e-9 {
		t.Errorf("Opacity = %v, want 0.6", a.Opacity)
	}
}

func TestAnimateBeforeFirst(t *testing.T) {
	if _, ok := Animate(fourCues, -0.1); ok {
		t.Error("visible before first cue")
	}
}

// --- Wrap / Layout ---

func charWidth(s string) float64 { return float64(len(s)) * 10 }

func TestWrapEveryBoundaryTooWide(t *testing.T) {
	got := Wrap("alpha beta gamma", 60, charWidth)
	want := []string{"alpha", "beta", "gamma"}
	if strings.Join(got, "/") != strings.Join(want, "/") {
		t.Errorf("Wrap = %q, want %q", got, want)
	}
}

func TestWrapGreedy(t *testing.T) {
	// "ab cd" is 50 wide, strictly under 51.
	got := Wrap("ab cd ef gh", 51, charWidth)
	want := []string{"ab cd", "ef gh"}
	if strings.Join(got, "/") != strings.Join(want, "/") {
		t.Errorf("Wrap = %q, want %q", got, want)
	}
	// Exactly equal does not fit.
	if got := Wrap("ab cd", 50, charWidth); len(got) != 2 {
		t.Errorf("Wrap at exact width = %q, want 2 lines", got)
	}
}

func TestWrapEmpty(t *testing.T) {
	if got := Wrap("", 100, charWidth); got != nil {
		t.Errorf("Wrap(\"\") = %q, want nil", got)
	}
}

func TestFontSizes(t *testing.T) {
	if p, s := FontSizes(1920); p != 76.8 || math.Abs(s-57.6) > 1e-9 {
		t.Errorf("FontSizes(1920) = %v, %v, want 76.8, 57.6", p, s)
	}
	if p, _ := FontSizes(320); p != 24 {
		t.Errorf("FontSizes(320) = %v, want 24", p)
	}
}

func TestLayoutStacksUpFromAnchor(t *testing.T) {
	a := Animation{Cue: Cue{Text: "one two"}, Opacity: 1, Drift: -3}
	// 1000 wide: wrap at 850, so 10px per char never wraps; use a wide measure.
	wide := func(s string) float64 { return float64(len(s)) * 200 }
	b := Layout(a, 1000, 1000, wide, wide)

	if len(b.Lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(b.Lines))
	}
	if b.X != 500 {
		t.Errorf("X = %v, want 500", b.X)
	}
	if got := b.Lines[1].Y; got != 917 {
		t.Errorf("bottom line Y = %v, want 917", got)
	}
	step := 40 * 1.3
	if got := b.Lines[0].Y; math.Abs(got-(917-step)) > 1e-9 {
		t.Errorf("top line Y = %v, want %v", got, 917-step)
	}
}

func TestLayoutTranslationBelow(t *testing.T) {
	a := Animation{Cue: Cue{Text: "hello", Translation: "bonjour"}, Opacity: 0.5}
	b := Layout(a, 1000, 1000, charWidth, charWidth)
	if len(b.Lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(b.Lines))
	}
	prim, sec := b.Lines[0], b.Lines[1]
	if prim.Secondary || !sec.Secondary {
		t.Fatalf("line kinds = %v/%v, want primary then secondary", prim.Secondary, sec.Secondary)
	}
	if sec.Y != 920 {
		t.Errorf("secondary Y = %v, want 920", sec.Y)
	}
	if prim.Y >= sec.Y {
		t.Errorf("primary Y %v not above secondary %v", prim.Y, sec.Y)
	}
	if sec.Size != 30 {
		t.Errorf("secondary size = %v, want 30", sec.Size)
	}
	if b.Opacity != 0.5 {
		t.Errorf("Opacity = %v, want 0.5", b.Opacity)
	}
}
