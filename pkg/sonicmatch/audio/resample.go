package audio

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/dsp/window"
	"gonum.org/v1/gonum/floats"
)

// Resample converts samples from originalRate to targetRate using cubic
// interpolation. When decimating, the input is first low-passed below the
// target Nyquist frequency. The input slice is returned unchanged when the
// rates already match.
func Resample(samples []float64, originalRate, targetRate int) ([]float64, error) {
	if originalRate <= 0 || targetRate <= 0 {
		return nil, fmt.Errorf("invalid sample rates %d -> %d", originalRate, targetRate)
	}
	if originalRate == targetRate || len(samples) == 0 {
		return samples, nil
	}

	ratio := float64(targetRate) / float64(originalRate)
	newLength := int(float64(len(samples)) * ratio)
	out := make([]float64, newLength)

	at := func(i int) float64 { return samples[i] }
	if ratio < 1 {
		at = newLowPass(samples, ratio).at
	}

	n := len(samples)
	if n < 4 {
		for i := range out {
			idx := int(float64(i) / ratio)
			if idx >= n {
				idx = n - 1
			}
			out[i] = at(idx)
		}
		return out, nil
	}

	lastIndex := n - 3
	for i := 0; i < newLength; i++ {
		origPos := float64(i) / ratio
		index := int(origPos)

		if index < 1 {
			index = 1
		} else if index > lastIndex {
			index = lastIndex
		}

		frac := origPos - float64(index)

		y0, y1, y2, y3 := at(index-1), at(index), at(index+1), at(index+2)
		mu2 := frac * frac
		a0 := -0.5*y0 + 1.5*y1 - 1.5*y2 + 0.5*y3
		a1 := y0 - 2.5*y1 + 2*y2 - 0.5*y3
		a2 := -0.5*y0 + 0.5*y2
		a3 := y1

		out[i] = a0*frac*mu2 + a1*mu2 + a2*frac + a3
	}

	return out, nil
}

// lowPass filters samples on demand with a windowed-sinc FIR. Only the
// positions the interpolator reads are computed, each at most once.
type lowPass struct {
	samples []float64
	kernel  []float64
	half    int
	buf     []float64
	cache   []float64
	done    []bool
}

// newLowPass builds a filter passing up to 90% of the target Nyquist
// frequency, with the transition band ending at the target Nyquist.
func newLowPass(samples []float64, ratio float64) *lowPass {
	half := int(math.Ceil(27.5 / ratio))
	return &lowPass{
		samples: samples,
		kernel:  lowPassKernel(0.45*ratio, half),
		half:    half,
		buf:     make([]float64, 2*half+1),
		cache:   make([]float64, len(samples)),
		done:    make([]bool, len(samples)),
	}
}

// lowPassKernel returns a Blackman-windowed sinc with cutoff fc in cycles
// per sample, scaled to unit gain at DC.
func lowPassKernel(fc float64, half int) []float64 {
	h := make([]float64, 2*half+1)
	for k := range h {
		m := float64(k - half)
		if m == 0 {
			h[k] = 2 * fc
			continue
		}
		h[k] = math.Sin(2*math.Pi*fc*m) / (math.Pi * m)
	}
	window.Blackman(h)
	floats.Scale(1/floats.Sum(h), h)
	return h
}

func (lp *lowPass) at(i int) float64 {
	if lp.done[i] {
		return lp.cache[i]
	}
	lo, hi := i-lp.half, i+lp.half+1
	var v float64
	if lo >= 0 && hi <= len(lp.samples) {
		v = floats.Dot(lp.samples[lo:hi], lp.kernel)
	} else {
		for k := range lp.buf {
			lp.buf[k] = lp.extended(lo + k)
		}
		v = floats.Dot(lp.buf, lp.kernel)
	}
	lp.cache[i] = v
	lp.done[i] = true
	return v
}

// extended reads the signal with odd reflection past both ends, which
// keeps the filter from pulling the edges toward zero.
func (lp *lowPass) extended(i int) float64 {
	s := lp.samples
	n := len(s)
	switch {
	case i < 0:
		return 2*s[0] - s[min(-i, n-1)]
	case i >= n:
		return 2*s[n-1] - s[max(2*(n-1)-i, 0)]
	}
	return s[i]
}

// ToAnalysisRate resamples sig in place to AnalysisSampleRate.
func (s *Signal) ToAnalysisRate() error {
	resampled, err := Resample(s.Samples, s.SampleRate, AnalysisSampleRate)
	if err != nil {
		return err
	}
	s.Samples = resampled
	s.SampleRate = AnalysisSampleRate
	return nil
}
