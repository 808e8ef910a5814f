package model

import "time"

// Feature names, used as keys in SignalFeatures.Errors and in InsufficientDataError.
const (
	FeatureDetrend = "detrend"
	FeatureZScore  = "zscore"
	FeaturePSD     = "PSD"
	FeatureACF     = "ACF"
	FeatureSTFT    = "STFT"
)

// FeatureSummary condenses the feature arrays into the scalars that alert rules
// and reports consume.
type FeatureSummary struct {
	DominantFrequency  float64
	DominantPower      float64
	TotalPower         float64
	ACFPeakLag         int
	ACFPeakValue       float64
	MaxAbsZScore       float64
	AnomalousIntervals []int
	P95                float64
}

// SignalFeatures is the read-only result of analyzing one column.
type SignalFeatures struct {
	Column     string
	SampleRate float64

	Raw       []float64
	Detrended []float64
	ZScore    []float64

	PSDFreqs []float64
	PSDPower []float64

	ACFLags   []int
	ACFValues []float64

	STFTTimes []float64
	STFTFreqs []float64
	STFTPower [][]float64 // [freq][time]

	// Errors maps a feature name to the reason it could not be computed.
	Errors  map[string]error
	Summary FeatureSummary
}

// OK reports whether the named feature was computed.
func (f *SignalFeatures) OK(feature string) bool {
	_, failed := f.Errors[feature]
	return !failed
}

// Alert is a triggered alert rule.
type Alert struct {
	Rule      string
	Column    string
	Metric    string
	Operator  string
	Threshold float64
	Observed  float64
}

// AnalysisReport is the complete output of the analysis stage.
type AnalysisReport struct {
	RunID       string
	CSVPath     string
	SampleRate  float64
	Rows        int
	WindowStart []float64
	Features    []SignalFeatures
	Alerts      []Alert
	GeneratedAt time.Time
}

// Failed reports whether any feature of any column failed.
func (r *AnalysisReport) Failed() bool {
	for i := range r.Features {
		if len(r.Features[i].Errors) > 0 {
			return true
		}
	}
	return false
}
