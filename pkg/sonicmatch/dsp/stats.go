package dsp

import (
	"gonum.org/v1/gonum/stat"
)

// MeanStd returns the mean and population standard deviation of x.
func MeanStd(x []float64) (mean, std float64) {
	switch len(x) {
	case 0:
		return 0, 0
	case 1:
		return x[0], 0
	}
	return stat.PopMeanStdDev(x, nil)
}

// ColumnMeanStd aggregates a [frame][dim] matrix over frames.
func ColumnMeanStd(m [][]float64) (mean, std []float64) {
	if len(m) == 0 {
		return nil, nil
	}
	dims := len(m[0])
	mean = make([]float64, dims)
	std = make([]float64, dims)
	col := make([]float64, len(m))
	for d := 0; d < dims; d++ {
		for t, row := range m {
			col[t] = row[d]
		}
		mean[d], std[d] = MeanStd(col)
	}
	return mean, std
}

// ColumnMean is ColumnMeanStd without the deviation.
func ColumnMean(m [][]float64) []float64 {
	mean, _ := ColumnMeanStd(m)
	return mean
}
