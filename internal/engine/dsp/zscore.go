package dsp

import (
	"DDoSpectra/internal/model"
	"math"

	"gonum.org/v1/gonum/stat"
)

// zeroStdTolerance is the relative std below which a window is treated as constant.
const zeroStdTolerance = 1e-12

// DefaultZWindow is 10% of the series length, at least 3.
func DefaultZWindow(n int) int {
	w := int(math.Round(0.1 * float64(n)))
	if w < 3 {
		w = 3
	}
	return w
}

// RollingZScore scores every sample against the trailing window of w samples ending at
// it. The first w-1 samples use the shorter window available. A window with zero
// standard deviation scores 0. w <= 0 selects DefaultZWindow.
func RollingZScore(x []float64, w int) ([]float64, error) {
	n := len(x)
	if n == 0 {
		return nil, &model.InsufficientDataError{Feature: model.FeatureZScore, Required: 1, Got: 0}
	}
	if w <= 0 {
		w = DefaultZWindow(n)
	}
	z := make([]float64, n)
	for t := range x {
		lo := t - w + 1
		if lo < 0 {
			lo = 0
		}
		mean, std := stat.PopMeanStdDev(x[lo:t+1], nil)
		if std <= zeroStdTolerance*math.Max(1, math.Abs(mean)) || math.IsNaN(std) {
			continue
		}
		z[t] = (x[t] - mean) / std
	}
	return z, nil
}
