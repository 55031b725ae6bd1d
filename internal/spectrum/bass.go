package spectrum

const (
	bassBins      = 5
	bassThreshold = 210
)

// BassAverage is the mean of the lowest five bins. Missing bins count as zero.
func BassAverage(bins []uint8) float64 {
	var sum int
	for i := 0; i < bassBins && i < len(bins); i++ {
		sum += int(bins[i])
	}
	return float64(sum) / bassBins
}

// IsBass reports whether the low end is hot enough to trigger the pulse.
func IsBass(bins []uint8) bool {
	return BassAverage(bins) > bassThreshold
}

// Bass reports whether either channel triggers the pulse.
func (f Frame) Bass() bool {
	return IsBass(f.Left) || IsBass(f.Right)
}

// BassEnergy is the louder channel's low-end average, 0..255.
func (f Frame) BassEnergy() float64 {
	return max(BassAverage(f.Left), BassAverage(f.Right))
}
