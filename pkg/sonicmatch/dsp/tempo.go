package dsp

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Tempo search range and prior.
const (
	MinBPM        = 30.0
	MaxBPM        = 300.0
	priorStartBPM = 120.0

	// autocorrelation window of roughly eight seconds at 22050/512
	tempoWindowFrames = 344
	tempoStrideFrames = 86
)

// OnsetStrength returns the mean positive first difference across bands
// of a decibel mel spectrogram. Frame 0 is always zero.
func OnsetStrength(melDB [][]float64) []float64 {
	out := make([]float64, len(melDB))
	for t := 1; t < len(melDB); t++ {
		prev, cur := melDB[t-1], melDB[t]
		var sum float64
		for m := range cur {
			if d := cur[m] - prev[m]; d > 0 {
				sum += d
			}
		}
		if len(cur) > 0 {
			out[t] = sum / float64(len(cur))
		}
	}
	return out
}

// EstimateTempo picks the dominant beats-per-minute from an onset
// envelope sampled every hopSize samples. It averages normalised
// autocorrelations of overlapping windows and weights each lag with a
// log-normal prior centred on 120 BPM. It returns 0 when the envelope has
// no pulse.
func EstimateTempo(onset []float64, sampleRate, hopSize int) float64 {
	if len(onset) < 2 || floats.Max(onset) <= 0 {
		return 0
	}

	win := tempoWindowFrames
	if len(onset) < win {
		win = len(onset)
	}
	window := Hann(win)
	ac := make([]float64, win)
	seg := make([]float64, win)
	windows := 0
	for start := 0; start+win <= len(onset); start += tempoStrideFrames {
		floats.MulTo(seg, onset[start:start+win], window)
		r0 := floats.Dot(seg, seg)
		if r0 <= 0 {
			continue
		}
		for lag := 0; lag < win; lag++ {
			ac[lag] += floats.Dot(seg[:win-lag], seg[lag:]) / r0
		}
		windows++
	}
	if windows == 0 {
		return 0
	}

	framesPerMinute := 60 * float64(sampleRate) / float64(hopSize)
	best, bestScore := 0, 0.0
	for lag := 1; lag < win; lag++ {
		bpm := framesPerMinute / float64(lag)
		if bpm < MinBPM || bpm > MaxBPM {
			continue
		}
		if score := ac[lag] * tempoPrior(bpm); score > bestScore {
			best, bestScore = lag, score
		}
	}
	if best == 0 {
		return 0
	}

	lag := float64(best)
	if best > 1 && best < win-1 {
		a, b, c := ac[best-1], ac[best], ac[best+1]
		if den := a - 2*b + c; den < 0 {
			lag += 0.5 * (a - c) / den
		}
	}
	return framesPerMinute / lag
}

func tempoPrior(bpm float64) float64 {
	d := math.Log2(bpm) - math.Log2(priorStartBPM)
	return math.Exp(-0.5 * d * d)
}
