// Package spectrum turns audio samples into per-frame byte spectra.
package spectrum

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Analyzer defaults, matching a browser AnalyserNode with fftSize 512.
const (
	DefaultFFTSize   = 512
	DefaultSmoothing = 0.85
	DefaultMinDB     = -100.0
	DefaultMaxDB     = -30.0
)

// Analyzer computes smoothed byte magnitude spectra over the most recent
// FFTSize samples of one channel. It is not safe for concurrent use.
type Analyzer struct {
	size      int
	smoothing float64
	minDB     float64
	maxDB     float64

	fft      *fourier.FFT
	window   []float64
	ring     []float64
	pos      int
	buf      []float64
	coeffs   []complex128
	smoothed []float64
}

// NewAnalyzer creates an analyzer with the given FFT size (a power of two)
// and time smoothing constant in [0,1).
func NewAnalyzer(size int, smoothing float64) *Analyzer {
	if size < 2 {
		size = DefaultFFTSize
	}
	if smoothing < 0 || smoothing >= 1 {
		smoothing = DefaultSmoothing
	}
	return &Analyzer{
		size:      size,
		smoothing: smoothing,
		minDB:     DefaultMinDB,
		maxDB:     DefaultMaxDB,
		fft:       fourier.NewFFT(size),
		window:    blackman(size),
		ring:      make([]float64, size),
		buf:       make([]float64, size),
		smoothed:  make([]float64, size/2),
	}
}

// SetRange sets the decibel range mapped onto 0..255.
func (a *Analyzer) SetRange(minDB, maxDB float64) {
	if maxDB <= minDB {
		return
	}
	a.minDB, a.maxDB = minDB, maxDB
}

// BinCount is half the FFT size.
func (a *Analyzer) BinCount() int { return a.size / 2 }

// Write appends samples to the analysis window, dropping the oldest.
func (a *Analyzer) Write(samples []float32) {
	for _, s := range samples {
		a.ring[a.pos] = float64(s)
		a.pos++
		if a.pos == a.size {
			a.pos = 0
		}
	}
}

// Snapshot analyzes the current window, advances the smoothing state once and
// writes BinCount bytes into dst (grown if needed).
func (a *Analyzer) Snapshot(dst []uint8) []uint8 {
	for k := 0; k < a.size; k++ {
		a.buf[k] = a.ring[(a.pos+k)%a.size] * a.window[k]
	}
	return a.analyze(dst)
}

// SnapshotAt analyzes the FFTSize samples ending just before index end,
// treating samples before the start of the slice as silence. The ring
// buffer is not touched.
func (a *Analyzer) SnapshotAt(samples []float32, end int, dst []uint8) []uint8 {
	start := end - a.size
	for k := 0; k < a.size; k++ {
		i := start + k
		var v float64
		if i >= 0 && i < len(samples) {
			v = float64(samples[i])
		}
		a.buf[k] = v * a.window[k]
	}
	return a.analyze(dst)
}

// Reset clears the window and the smoothing history.
func (a *Analyzer) Reset() {
	clear(a.ring)
	clear(a.smoothed)
	a.pos = 0
}

func (a *Analyzer) analyze(dst []uint8) []uint8 {
	bins := a.size / 2
	if cap(dst) < bins {
		dst = make([]uint8, bins)
	}
	dst = dst[:bins]

	a.coeffs = a.fft.Coefficients(a.coeffs, a.buf)
	scale := 255 / (a.maxDB - a.minDB)
	n := float64(a.size)
	for k := 0; k < bins; k++ {
		mag := cmplx.Abs(a.coeffs[k]) / n
		v := a.smoothing*a.smoothed[k] + (1-a.smoothing)*mag
		a.smoothed[k] = v
		dst[k] = toByte(v, a.minDB, scale)
	}
	return dst
}

func toByte(v, minDB, scale float64) uint8 {
	if v <= 0 {
		return 0
	}
	b := math.Floor(scale * (20*math.Log10(v) - minDB))
	switch {
	case b < 0:
		return 0
	case b > 255:
		return 255
	}
	return uint8(b)
}

// blackman is the classic Blackman window (alpha 0.16) over n points.
func blackman(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		x := float64(i) / float64(n)
		w[i] = 0.42 - 0.5*math.Cos(2*math.Pi*x) + 0.08*math.Cos(4*math.Pi*x)
	}
	return w
}
