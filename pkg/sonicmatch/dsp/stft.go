// Package dsp holds the short-time spectral primitives behind feature
// extraction. Frames are centred: the signal is reflect-padded by half a
// frame on both sides before slicing.
package dsp

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// Hann returns a periodic Hann window of length n.
func Hann(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n))
	}
	return w
}

// FFTReal wraps the go-dsp FFT on real input.
func FFTReal(frame []float64) []complex128 {
	return fft.FFTReal(frame)
}

// MagnitudeSpectrum returns |X[k]| for k = 0..n/2 inclusive.
func MagnitudeSpectrum(spectrum []complex128) []float64 {
	half := len(spectrum)/2 + 1
	mag := make([]float64, half)
	for i := 0; i < half; i++ {
		mag[i] = cmplx.Abs(spectrum[i])
	}
	return mag
}

// Spectrogram is a time-major magnitude spectrogram: Mag[frame][bin].
type Spectrogram struct {
	Mag        [][]float64
	SampleRate int
	FrameSize  int
	HopSize    int
}

// Bins returns the number of frequency bins per frame.
func (s *Spectrogram) Bins() int { return s.FrameSize/2 + 1 }

// Frequencies returns the centre frequency in Hz of every bin.
func (s *Spectrogram) Frequencies() []float64 {
	return FFTFrequencies(s.SampleRate, s.FrameSize)
}

// Power returns Mag squared, frame by frame.
func (s *Spectrogram) Power() [][]float64 {
	out := make([][]float64, len(s.Mag))
	for t, frame := range s.Mag {
		p := make([]float64, len(frame))
		for k, m := range frame {
			p[k] = m * m
		}
		out[t] = p
	}
	return out
}

// FFTFrequencies returns the bin frequencies of an n-point real FFT.
func FFTFrequencies(sampleRate, n int) []float64 {
	f := make([]float64, n/2+1)
	for k := range f {
		f[k] = float64(k) * float64(sampleRate) / float64(n)
	}
	return f
}

// ReflectPad mirrors pad samples at both ends, excluding the edge sample.
func ReflectPad(x []float64, pad int) ([]float64, error) {
	if pad >= len(x) {
		return nil, fmt.Errorf("cannot reflect-pad %d samples by %d", len(x), pad)
	}
	out := make([]float64, len(x)+2*pad)
	copy(out[pad:], x)
	for i := 0; i < pad; i++ {
		out[pad-1-i] = x[i+1]
		out[pad+len(x)+i] = x[len(x)-2-i]
	}
	return out, nil
}

// FrameCount returns the number of centred frames for n samples.
func FrameCount(n, hopSize int) int {
	return 1 + n/hopSize
}

// STFT computes the centred short-time magnitude spectrum of samples.
func STFT(samples []float64, sampleRate, frameSize, hopSize int, window []float64) (*Spectrogram, error) {
	if len(window) != frameSize {
		return nil, errors.New("window length must equal frameSize")
	}
	if hopSize <= 0 {
		return nil, fmt.Errorf("invalid hop size %d", hopSize)
	}
	if len(samples) < frameSize {
		return nil, fmt.Errorf("input of %d samples is shorter than one %d-sample frame", len(samples), frameSize)
	}

	padded, err := ReflectPad(samples, frameSize/2)
	if err != nil {
		return nil, err
	}

	n := FrameCount(len(samples), hopSize)
	mag := make([][]float64, 0, n)
	frame := make([]float64, frameSize)
	for start := 0; start+frameSize <= len(padded) && len(mag) < n; start += hopSize {
		for i := 0; i < frameSize; i++ {
			frame[i] = padded[start+i] * window[i]
		}
		mag = append(mag, MagnitudeSpectrum(FFTReal(frame)))
	}

	return &Spectrogram{
		Mag:        mag,
		SampleRate: sampleRate,
		FrameSize:  frameSize,
		HopSize:    hopSize,
	}, nil
}
