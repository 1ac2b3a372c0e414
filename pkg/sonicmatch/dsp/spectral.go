package dsp

import (
	"math"
)

// RolloffPercent is the share of spectral energy below the rolloff
// frequency.
const RolloffPercent = 0.85

// SpectralCentroid returns the magnitude-weighted mean frequency of each
// frame. Silent frames yield 0.
func SpectralCentroid(s *Spectrogram) []float64 {
	freqs := s.Frequencies()
	out := make([]float64, len(s.Mag))
	for t, frame := range s.Mag {
		var num, den float64
		for k, m := range frame {
			num += freqs[k] * m
			den += m
		}
		if den > 0 {
			out[t] = num / den
		}
	}
	return out
}

// SpectralRolloff returns, per frame, the lowest bin frequency below
// which RolloffPercent of the magnitude is concentrated.
func SpectralRolloff(s *Spectrogram) []float64 {
	freqs := s.Frequencies()
	out := make([]float64, len(s.Mag))
	for t, frame := range s.Mag {
		var total float64
		for _, m := range frame {
			total += m
		}
		if total <= 0 {
			continue
		}
		threshold := RolloffPercent * total
		var cum float64
		for k, m := range frame {
			cum += m
			if cum >= threshold {
				out[t] = freqs[k]
				break
			}
		}
	}
	return out
}

// zcrThreshold treats samples this close to zero as zero.
const zcrThreshold = 1e-10

// ZeroCrossingRate returns the fraction of sign changes in each centred
// frame. The signal is edge-padded by half a frame. Zero counts as
// positive.
func ZeroCrossingRate(samples []float64, frameSize, hopSize int) []float64 {
	if len(samples) == 0 {
		return nil
	}
	pad := frameSize / 2
	padded := make([]float64, len(samples)+2*pad)
	copy(padded[pad:], samples)
	for i := 0; i < pad; i++ {
		padded[i] = samples[0]
		padded[pad+len(samples)+i] = samples[len(samples)-1]
	}

	negative := make([]bool, len(padded))
	for i, v := range padded {
		if math.Abs(v) <= zcrThreshold {
			v = 0
		}
		negative[i] = math.Signbit(v)
	}

	n := FrameCount(len(samples), hopSize)
	out := make([]float64, n)
	for f := 0; f < n; f++ {
		start := f * hopSize
		crossings := 0
		for i := start + 1; i < start+frameSize && i < len(padded); i++ {
			if negative[i] != negative[i-1] {
				crossings++
			}
		}
		out[f] = float64(crossings) / float64(frameSize)
	}
	return out
}
