package dsp

import (
	"DDoSpectra/internal/model"
	"math"

	"github.com/montanaflynn/stats"
)

// Analyze computes every feature of one column. Features fail independently; a failure
// is recorded in Errors and leaves the feature's arrays empty.
func Analyze(column string, x []float64, fs float64, opts Options) *model.SignalFeatures {
	f := &model.SignalFeatures{
		Column:     column,
		SampleRate: fs,
		Raw:        append([]float64(nil), x...),
		Errors:     make(map[string]error),
	}
	if fs <= 0 || math.IsNaN(fs) || math.IsInf(fs, 0) {
		err := &model.ConfigurationError{Param: "fs", Reason: "must be a finite value > 0"}
		for _, name := range []string{model.FeatureZScore, model.FeaturePSD, model.FeatureACF, model.FeatureSTFT} {
			f.Errors[name] = err
		}
		return f
	}

	f.Detrended = detrend(opts.Detrend, x)

	if z, err := RollingZScore(x, opts.ZWindow); err != nil {
		f.Errors[model.FeatureZScore] = err
	} else {
		f.ZScore = z
	}

	if l, err := opts.PSD.resolve(model.FeaturePSD, len(x)); err != nil {
		f.Errors[model.FeaturePSD] = err
	} else if freqs, power, err := Welch(f.Detrended, fs, l, opts.PSD.Overlap); err != nil {
		f.Errors[model.FeaturePSD] = err
	} else {
		f.PSDFreqs, f.PSDPower = freqs, power
	}

	if lags, acf, err := Autocorrelation(f.Detrended, opts.MaxLag); err != nil {
		f.Errors[model.FeatureACF] = err
	} else {
		f.ACFLags, f.ACFValues = lags, acf
	}

	seg := opts.stft()
	if l, err := seg.resolve(model.FeatureSTFT, len(x)); err != nil {
		f.Errors[model.FeatureSTFT] = err
	} else if times, freqs, power, err := STFT(f.Detrended, fs, l, seg.Overlap); err != nil {
		f.Errors[model.FeatureSTFT] = err
	} else {
		f.STFTTimes, f.STFTFreqs, f.STFTPower = times, freqs, power
	}

	threshold := opts.ZThreshold
	if threshold <= 0 {
		threshold = DefaultZThreshold
	}
	f.Summary = Summarize(f, threshold)
	return f
}

// Summarize condenses computed features into scalars. Missing features leave their
// fields zero.
func Summarize(f *model.SignalFeatures, zThreshold float64) model.FeatureSummary {
	var s model.FeatureSummary
	for k, p := range f.PSDPower {
		s.TotalPower += p
		if k > 0 && p > s.DominantPower {
			s.DominantPower = p
			s.DominantFrequency = f.PSDFreqs[k]
		}
	}
	s.ACFPeakValue = math.Inf(-1)
	for i := 1; i < len(f.ACFValues); i++ {
		if f.ACFValues[i] > s.ACFPeakValue {
			s.ACFPeakValue = f.ACFValues[i]
			s.ACFPeakLag = f.ACFLags[i]
		}
	}
	if math.IsInf(s.ACFPeakValue, -1) {
		s.ACFPeakValue = 0
	}
	for i, z := range f.ZScore {
		if a := math.Abs(z); a > s.MaxAbsZScore {
			s.MaxAbsZScore = a
		}
		if math.Abs(z) > zThreshold {
			s.AnomalousIntervals = append(s.AnomalousIntervals, i)
		}
	}
	if p95, err := stats.Percentile(f.Raw, 95); err == nil {
		s.P95 = p95
	}
	return s
}
