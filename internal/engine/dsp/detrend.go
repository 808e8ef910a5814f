package dsp

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Detrend subtracts the least-squares line from x. Fewer than 2 points are returned
// unchanged.
func Detrend(x []float64) []float64 {
	out := append([]float64(nil), x...)
	if len(x) < 2 {
		return out
	}
	t := make([]float64, len(x))
	floats.Span(t, 0, float64(len(x)-1))
	alpha, beta := stat.LinearRegression(t, x, nil, false)
	for i := range out {
		out[i] -= alpha + beta*t[i]
	}
	return out
}

// DetrendConstant subtracts the mean of x.
func DetrendConstant(x []float64) []float64 {
	out := append([]float64(nil), x...)
	if len(x) == 0 {
		return out
	}
	m := stat.Mean(x, nil)
	for i := range out {
		out[i] -= m
	}
	return out
}

func detrend(mode string, x []float64) []float64 {
	switch mode {
	case DetrendModeConstant:
		return DetrendConstant(x)
	case DetrendModeNone:
		return append([]float64(nil), x...)
	default:
		return Detrend(x)
	}
}
