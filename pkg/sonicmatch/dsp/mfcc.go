package dsp

import "math"

// DCTBasis returns the first nOut rows of the orthonormal DCT-II matrix
// for inputs of length n.
func DCTBasis(nOut, n int) [][]float64 {
	basis := make([][]float64, nOut)
	for k := 0; k < nOut; k++ {
		scale := math.Sqrt(2.0 / float64(n))
		if k == 0 {
			scale = math.Sqrt(1.0 / float64(n))
		}
		row := make([]float64, n)
		for i := 0; i < n; i++ {
			row[i] = scale * math.Cos(math.Pi/float64(n)*(float64(i)+0.5)*float64(k))
		}
		basis[k] = row
	}
	return basis
}

// LogMel projects a power spectrogram through a [mel][bin] filterbank
// and converts the result to decibels.
func LogMel(power [][]float64, melFB [][]float64) [][]float64 {
	return PowerToDB(ApplyFilterbank(melFB, power))
}

// MFCC computes cepstral coefficients from a LogMel spectrogram using a
// DCTBasis sized to its band count. The result is indexed
// [frame][coefficient].
func MFCC(logMel [][]float64, dct [][]float64) [][]float64 {
	out := make([][]float64, len(logMel))
	for t, frame := range logMel {
		coeffs := make([]float64, len(dct))
		for k, row := range dct {
			var sum float64
			for i, v := range frame {
				sum += row[i] * v
			}
			coeffs[k] = sum
		}
		out[t] = coeffs
	}
	return out
}
