package dsp

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Chroma filterbank shape: Gaussian weighting centred on C5 spanning two
// octaves, A4 tuned to 440 Hz.
const (
	chromaCenterOctave = 5.0
	chromaOctaveWidth  = 2.0
	chromaA0           = 27.5
	// ChromaBins is the number of pitch classes, starting at C.
	ChromaBins = 12
)

// ChromaFilterbank returns a [pitchClass][bin] matrix mapping an
// nFFT-point spectrum onto the 12 pitch classes C, C#, ..., B.
func ChromaFilterbank(sampleRate, nFFT int) [][]float64 {
	n := float64(ChromaBins)

	// pitch of every FFT bin except DC, in semitones above A0
	frqbins := make([]float64, nFFT)
	for k := 1; k < nFFT; k++ {
		f := float64(k) * float64(sampleRate) / float64(nFFT)
		frqbins[k] = n * math.Log2(f/chromaA0)
	}
	frqbins[0] = frqbins[1] - 1.5*n

	binwidth := make([]float64, nFFT)
	for k := 0; k < nFFT-1; k++ {
		binwidth[k] = math.Max(frqbins[k+1]-frqbins[k], 1)
	}
	binwidth[nFFT-1] = 1

	half := nFFT/2 + 1
	wts := make([][]float64, ChromaBins)
	for c := range wts {
		wts[c] = make([]float64, nFFT)
	}
	for k := 0; k < nFFT; k++ {
		for c := 0; c < ChromaBins; c++ {
			d := math.Mod(frqbins[k]-float64(c)+n/2+10*n, n) - n/2
			if d < -n/2 {
				d += n
			}
			wts[c][k] = math.Exp(-0.5 * math.Pow(2*d/binwidth[k], 2))
		}
	}

	// unit L2 norm per column
	for k := 0; k < nFFT; k++ {
		var sq float64
		for c := 0; c < ChromaBins; c++ {
			sq += wts[c][k] * wts[c][k]
		}
		if norm := math.Sqrt(sq); norm > 0 {
			for c := 0; c < ChromaBins; c++ {
				wts[c][k] /= norm
			}
		}
	}

	// octave dominance around the centre octave
	for k := 0; k < nFFT; k++ {
		octave := (frqbins[k]/n - chromaCenterOctave) / chromaOctaveWidth
		g := math.Exp(-0.5 * octave * octave)
		for c := 0; c < ChromaBins; c++ {
			wts[c][k] *= g
		}
	}

	// rotate so row 0 is C rather than A, keep the non-negative bins
	out := make([][]float64, ChromaBins)
	for c := 0; c < ChromaBins; c++ {
		src := (c + 3) % ChromaBins
		out[c] = append([]float64(nil), wts[src][:half]...)
	}
	return out
}

// Chroma projects a power spectrogram onto pitch classes and scales each
// frame so its strongest class is 1. Frames without energy stay zero.
func Chroma(power [][]float64, fb [][]float64) [][]float64 {
	out := ApplyFilterbank(fb, power)
	for _, frame := range out {
		if peak := floats.Max(frame); peak > 0 {
			floats.Scale(1/peak, frame)
		}
	}
	return out
}
