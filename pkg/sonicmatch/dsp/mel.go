package dsp

import (
	"math"
)

// Slaney mel scale: linear below 1 kHz, logarithmic above.
const (
	melFSP       = 200.0 / 3
	melMinLogHz  = 1000.0
	melMinLogMel = melMinLogHz / melFSP
)

var melLogStep = math.Log(6.4) / 27.0

// HzToMel converts a frequency to the Slaney mel scale.
func HzToMel(hz float64) float64 {
	if hz < melMinLogHz {
		return hz / melFSP
	}
	return melMinLogMel + math.Log(hz/melMinLogHz)/melLogStep
}

// MelToHz is the inverse of HzToMel.
func MelToHz(mel float64) float64 {
	if mel < melMinLogMel {
		return mel * melFSP
	}
	return melMinLogHz * math.Exp(melLogStep*(mel-melMinLogMel))
}

// MelFilterbank builds nMels triangular filters spanning fmin..fmax over
// the bins of an nFFT-point spectrum. Each filter is area-normalised.
// The result is indexed [mel][bin].
func MelFilterbank(sampleRate, nFFT, nMels int, fmin, fmax float64) [][]float64 {
	if fmax <= 0 {
		fmax = float64(sampleRate) / 2
	}
	fftFreqs := FFTFrequencies(sampleRate, nFFT)

	minMel, maxMel := HzToMel(fmin), HzToMel(fmax)
	melF := make([]float64, nMels+2)
	for i := range melF {
		melF[i] = MelToHz(minMel + (maxMel-minMel)*float64(i)/float64(nMels+1))
	}

	weights := make([][]float64, nMels)
	for m := 0; m < nMels; m++ {
		lowDiff := melF[m+1] - melF[m]
		highDiff := melF[m+2] - melF[m+1]
		enorm := 2.0 / (melF[m+2] - melF[m])

		row := make([]float64, len(fftFreqs))
		for k, f := range fftFreqs {
			lower := (f - melF[m]) / lowDiff
			upper := (melF[m+2] - f) / highDiff
			if w := math.Min(lower, upper); w > 0 {
				row[k] = w * enorm
			}
		}
		weights[m] = row
	}
	return weights
}

// ApplyFilterbank projects every frame of spec through fb.
func ApplyFilterbank(fb [][]float64, spec [][]float64) [][]float64 {
	out := make([][]float64, len(spec))
	for t, frame := range spec {
		row := make([]float64, len(fb))
		for m, filter := range fb {
			var sum float64
			for k, w := range filter {
				if w != 0 {
					sum += w * frame[k]
				}
			}
			row[m] = sum
		}
		out[t] = row
	}
	return out
}

const (
	dbAmin = 1e-10
	// TopDB clamps decibel spectrograms to this range below their peak.
	TopDB = 80.0
)

// PowerToDB converts a power spectrogram to decibels relative to 1.0 and
// clamps every value to at most TopDB below the global maximum.
func PowerToDB(spec [][]float64) [][]float64 {
	out := make([][]float64, len(spec))
	maxDB := math.Inf(-1)
	for t, frame := range spec {
		row := make([]float64, len(frame))
		for k, p := range frame {
			row[k] = 10 * math.Log10(math.Max(dbAmin, p))
			if row[k] > maxDB {
				maxDB = row[k]
			}
		}
		out[t] = row
	}
	floor := maxDB - TopDB
	for _, row := range out {
		for k, v := range row {
			if v < floor {
				row[k] = floor
			}
		}
	}
	return out
}
