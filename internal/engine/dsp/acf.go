package dsp

import (
	"DDoSpectra/internal/model"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Autocorrelation returns the normalized autocorrelation of x for lags 0..maxLag, using
// the biased estimator r[k] = sum x[t]x[t+k] over the mean-removed series, divided by
// r[0]. maxLag <= 0 or >= N selects N-1. A constant series has ACF[0] = 1 and zeros
// elsewhere.
func Autocorrelation(x []float64, maxLag int) (lags []int, acf []float64, err error) {
	n := len(x)
	if n < 2 {
		return nil, nil, &model.InsufficientDataError{Feature: model.FeatureACF, Required: 2, Got: n}
	}
	if maxLag <= 0 || maxLag >= n {
		maxLag = n - 1
	}
	mean := floats.Sum(x) / float64(n)
	d := make([]float64, n)
	for i, v := range x {
		d[i] = v - mean
	}

	lags = make([]int, maxLag+1)
	acf = make([]float64, maxLag+1)
	for k := range lags {
		lags[k] = k
	}
	acf[0] = 1
	r0 := floats.Dot(d, d)
	if r0 <= zeroStdTolerance*zeroStdTolerance*math.Max(1, mean*mean)*float64(n) {
		return lags, acf, nil
	}
	for k := 1; k <= maxLag; k++ {
		acf[k] = floats.Dot(d[:n-k], d[k:]) / r0
	}
	return lags, acf, nil
}
