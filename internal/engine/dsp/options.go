// Package dsp computes the signal features of a uniformly sampled series: detrended
// values, rolling z-score, Welch PSD, autocorrelation and STFT.
package dsp

import (
	"DDoSpectra/internal/config"
	"DDoSpectra/internal/model"
	"fmt"
)

// Detrend modes.
const (
	DetrendModeLinear   = "linear"
	DetrendModeConstant = "constant"
	DetrendModeNone     = "none"
)

// DefaultZThreshold is the |z| above which a sample counts as anomalous.
const DefaultZThreshold = 3.0

// Segmenting selects the segment length and overlap of PSD or STFT.
// A zero Length picks one with SegmentLength.
type Segmenting struct {
	Length      int
	Overlap     float64
	MinSegments int
}

// Options are the parameters of Analyze.
type Options struct {
	Detrend    string
	ZWindow    int // 0 selects DefaultZWindow
	ZThreshold float64
	MaxLag     int // 0 selects N-1
	PSD        Segmenting
	STFT       Segmenting
}

// DefaultOptions returns the analysis defaults.
func DefaultOptions() Options {
	return Options{
		Detrend:    DetrendModeLinear,
		ZThreshold: DefaultZThreshold,
		PSD:        Segmenting{Overlap: DefaultOverlap, MinSegments: DefaultMinSegments},
	}
}

// OptionsFromConfig maps the analyzer configuration onto Options.
func OptionsFromConfig(cfg config.AnalyzerConfig) Options {
	return Options{
		Detrend:    cfg.Detrend,
		ZWindow:    cfg.ZWindow,
		ZThreshold: cfg.ZThreshold,
		MaxLag:     cfg.MaxLag,
		PSD:        Segmenting{Length: cfg.PSD.SegmentLength, Overlap: cfg.PSD.Overlap, MinSegments: cfg.PSD.MinSegments},
		STFT:       Segmenting{Length: cfg.STFT.SegmentLength, Overlap: cfg.STFT.Overlap, MinSegments: cfg.STFT.MinSegments},
	}
}

// stft returns the STFT segmenting with unset fields taken from the PSD.
func (o Options) stft() Segmenting {
	s := o.STFT
	if s.Length == 0 {
		s.Length = o.PSD.Length
	}
	if s.Overlap == 0 {
		s.Overlap = o.PSD.Overlap
	}
	if s.MinSegments == 0 {
		s.MinSegments = o.PSD.MinSegments
	}
	return s
}

// resolve picks the segment length for a series of n samples.
func (s Segmenting) resolve(feature string, n int) (int, error) {
	if s.Overlap < 0 || s.Overlap >= 1 {
		return 0, &model.ConfigurationError{Param: "overlap", Reason: fmt.Sprintf("must be in [0, 1), got %g", s.Overlap)}
	}
	if s.Length != 0 {
		if s.Length < MinSegmentLength {
			return 0, &model.ConfigurationError{Param: "segment_length", Reason: fmt.Sprintf("must be >= %d, got %d", MinSegmentLength, s.Length)}
		}
		if s.Length > n {
			return 0, &model.InsufficientDataError{Feature: feature, Required: s.Length, Got: n}
		}
		return s.Length, nil
	}
	if n < MinSegmentLength {
		return 0, &model.InsufficientDataError{Feature: feature, Required: MinSegmentLength, Got: n}
	}
	return SegmentLength(n, s.Overlap, s.MinSegments), nil
}
