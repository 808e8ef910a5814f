package dsp

import (
	"DDoSpectra/internal/model"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
)

// Segment length policy shared by PSD and STFT.
const (
	MinSegmentLength   = 4
	MaxSegmentLength   = 256
	DefaultOverlap     = 0.5
	DefaultMinSegments = 4
)

// segmentStep returns the hop between segment starts for length l.
func segmentStep(l int, overlap float64) int {
	step := l - int(math.Floor(overlap*float64(l)))
	if step < 1 {
		step = 1
	}
	return step
}

// SegmentCount is the number of full segments of length l in n samples.
func SegmentCount(n, l int, overlap float64) int {
	if l <= 0 || l > n {
		return 0
	}
	return (n-l)/segmentStep(l, overlap) + 1
}

// SegmentLength returns the largest length in [MinSegmentLength, min(n, MaxSegmentLength)]
// that yields at least minSegments segments. When none does, the whole series is one
// segment and n is returned.
func SegmentLength(n int, overlap float64, minSegments int) int {
	if minSegments < 1 {
		minSegments = 1
	}
	hi := n
	if hi > MaxSegmentLength {
		hi = MaxSegmentLength
	}
	for l := hi; l >= MinSegmentLength; l-- {
		if SegmentCount(n, l, overlap) >= minSegments {
			return l
		}
	}
	return n
}

// hann returns the periodic Hann window of length l.
func hann(l int) []float64 {
	w := make([]float64, l)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(l))
	}
	return w
}

// frequencies returns the one-sided bin frequencies k*fs/l.
func frequencies(l int, fs float64) []float64 {
	f := make([]float64, l/2+1)
	for k := range f {
		f[k] = float64(k) * fs / float64(l)
	}
	return f
}

// segmentSpectra windows every segment and returns |X[k]|^2 per segment.
func segmentSpectra(x []float64, l int, overlap float64) (starts []int, spectra [][]float64, win []float64) {
	win = hann(l)
	fft := fourier.NewFFT(l)
	buf := make([]float64, l)
	coeff := make([]complex128, l/2+1)
	step := segmentStep(l, overlap)
	for start := 0; start+l <= len(x); start += step {
		seg := x[start : start+l]
		mean := floats.Sum(seg) / float64(l)
		for i, v := range seg {
			buf[i] = (v - mean) * win[i]
		}
		fft.Coefficients(coeff, buf)
		p := make([]float64, len(coeff))
		for k, c := range coeff {
			a := cmplx.Abs(c)
			p[k] = a * a
		}
		starts = append(starts, start)
		spectra = append(spectra, p)
	}
	return starts, spectra, win
}

// Welch estimates the one-sided power spectral density of x sampled at fs Hz with
// segments of length l. The result is scaled as a density (units²/Hz).
func Welch(x []float64, fs float64, l int, overlap float64) (freqs, power []float64, err error) {
	if l < MinSegmentLength {
		return nil, nil, &model.ConfigurationError{Param: "segment_length", Reason: "too short"}
	}
	if len(x) < l {
		return nil, nil, &model.InsufficientDataError{Feature: model.FeaturePSD, Required: l, Got: len(x)}
	}
	_, spectra, win := segmentSpectra(x, l, overlap)

	scale := 1 / (fs * floats.Dot(win, win))
	power = make([]float64, l/2+1)
	for _, p := range spectra {
		floats.Add(power, p)
	}
	floats.Scale(scale/float64(len(spectra)), power)
	last := len(power) - 1
	if l%2 == 1 {
		last++
	}
	for k := 1; k < last; k++ {
		power[k] *= 2
	}
	return frequencies(l, fs), power, nil
}

// STFT computes the spectrogram of x. power is indexed [freq][time]; times are segment
// centres in seconds.
func STFT(x []float64, fs float64, l int, overlap float64) (times, freqs []float64, power [][]float64, err error) {
	if l < MinSegmentLength {
		return nil, nil, nil, &model.ConfigurationError{Param: "segment_length", Reason: "too short"}
	}
	if len(x) < l {
		return nil, nil, nil, &model.InsufficientDataError{Feature: model.FeatureSTFT, Required: l, Got: len(x)}
	}
	starts, spectra, win := segmentSpectra(x, l, overlap)
	norm := floats.Sum(win)
	norm *= norm

	times = make([]float64, len(starts))
	for i, s := range starts {
		times[i] = (float64(s) + float64(l)/2) / fs
	}
	power = make([][]float64, l/2+1)
	for k := range power {
		row := make([]float64, len(spectra))
		for t, p := range spectra {
			row[t] = p[k] / norm
		}
		power[k] = row
	}
	return times, frequencies(l, fs), power, nil
}
