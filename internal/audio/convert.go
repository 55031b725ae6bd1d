package audio

// toInt16 scales a [-1,1] sample to int16, clipping out-of-range input.
func toInt16(s float32) int16 {
	v := float64(s)
	if v >= 0 {
		v *= 32767
	} else {
		v *= 32768
	}

	// Clip to int16 range
	if v > 32767 {
		v = 32767
	} else if v < -32768 {
		v = -32768
	}
	return int16(v)
}

// Interleave converts t to interleaved stereo int16 at the playback
// SampleRate. Rates other than SampleRate are linearly resampled; this is
// only used for preview playback, never for export.
func Interleave(t *Track) []int16 {
	src := t.Len()
	if src == 0 || t.SampleRate <= 0 {
		return nil
	}

	n := src
	if t.SampleRate != SampleRate {
		n = int(int64(src) * SampleRate / int64(t.SampleRate))
	}
	out := make([]int16, n*Channels)
	ratio := float64(t.SampleRate) / SampleRate

	for i := 0; i < n; i++ {
		for c := 0; c < Channels; c++ {
			ch := t.Channels[c]
			var v float32
			if t.SampleRate == SampleRate {
				v = ch[i]
			} else {
				pos := float64(i) * ratio
				j := int(pos)
				frac := float32(pos - float64(j))
				v = ch[j]
				if j+1 < src {
					v += (ch[j+1] - ch[j]) * frac
				}
			}
			out[i*Channels+c] = toInt16(v)
		}
	}
	return out
}

// Deinterleave splits interleaved int16 stereo into float channels in
// [-1,1), appending to left and right.
func Deinterleave(frame []int16, left, right []float32) ([]float32, []float32) {
	for i := 0; i+1 < len(frame); i += Channels {
		left = append(left, float32(frame[i])/32768)
		right = append(right, float32(frame[i+1])/32768)
	}
	return left, right
}
