package dsp

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

const (
	// ContrastBands is the number of octave sub-bands, plus one for the
	// residual band below the lowest edge.
	ContrastBands    = 7
	contrastFMin     = 200.0
	contrastQuantile = 0.02
)

type contrastBand struct {
	bins  []int
	quant int
}

func contrastBandsFor(freqs []float64) []contrastBand {
	edges := make([]float64, ContrastBands+1)
	for i := 1; i < len(edges); i++ {
		edges[i] = contrastFMin * math.Pow(2, float64(i-1))
	}

	bands := make([]contrastBand, ContrastBands)
	for k := 0; k < ContrastBands; k++ {
		lo, hi := edges[k], edges[k+1]
		first, last := -1, -1
		for i, f := range freqs {
			if f >= lo && f <= hi {
				if first < 0 {
					first = i
				}
				last = i
			}
		}
		if first < 0 {
			continue
		}
		if k > 0 && first > 0 {
			first--
		}
		if k == ContrastBands-1 {
			last = len(freqs) - 1
		}
		count := last - first + 1
		if k < ContrastBands-1 {
			last--
		}
		bins := make([]int, 0, last-first+1)
		for i := first; i <= last; i++ {
			bins = append(bins, i)
		}
		q := int(math.RoundToEven(contrastQuantile * float64(count)))
		if q < 1 {
			q = 1
		}
		bands[k] = contrastBand{bins: bins, quant: q}
	}
	return bands
}

// SpectralContrast returns, per frame, the decibel difference between
// spectral peaks and valleys in each octave band. The result is indexed
// [frame][band].
func SpectralContrast(s *Spectrogram) [][]float64 {
	bands := contrastBandsFor(s.Frequencies())

	peaks := make([][]float64, len(s.Mag))
	valleys := make([][]float64, len(s.Mag))
	sorted := make([]float64, 0, s.Bins())
	for t, frame := range s.Mag {
		peaks[t] = make([]float64, ContrastBands)
		valleys[t] = make([]float64, ContrastBands)
		for k, b := range bands {
			if len(b.bins) == 0 {
				continue
			}
			sorted = sorted[:0]
			for _, i := range b.bins {
				sorted = append(sorted, frame[i])
			}
			sort.Float64s(sorted)
			q := b.quant
			if q > len(sorted) {
				q = len(sorted)
			}
			valleys[t][k] = stat.Mean(sorted[:q], nil)
			peaks[t][k] = stat.Mean(sorted[len(sorted)-q:], nil)
		}
	}

	peakDB, valleyDB := PowerToDB(peaks), PowerToDB(valleys)
	out := make([][]float64, len(s.Mag))
	for t := range out {
		row := make([]float64, ContrastBands)
		for k := range row {
			row[k] = peakDB[t][k] - valleyDB[t][k]
		}
		out[t] = row
	}
	return out
}
