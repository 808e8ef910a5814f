package features

import (
	"DDoSpectra/internal/config"
	"DDoSpectra/internal/factory"
	"DDoSpectra/internal/fsutil"
	"DDoSpectra/internal/model"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"
)

func init() {
	factory.RegisterWriter(factory.StageFeatures, "csv", NewCSVWriter)
	factory.RegisterWriter(factory.StageFeatures, "figures", NewFigureWriter)
	factory.RegisterWriter(factory.StageFeatures, "report", NewReportWriter)
}

// sampleTimes returns the window start of every sample, falling back to the sample
// index scaled by the rate.
func sampleTimes(report *model.AnalysisReport, f *model.SignalFeatures) []float64 {
	if len(report.WindowStart) == len(f.Raw) {
		return report.WindowStart
	}
	ts := make([]float64, len(f.Raw))
	for t := range ts {
		ts[t] = float64(t)
		if f.SampleRate > 0 {
			ts[t] /= f.SampleRate
		}
	}
	return ts
}

func ftoa(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// CSVWriter writes the feature arrays of every column as CSV files.
type CSVWriter struct {
	outDir string
	files  *fsutil.Txn
	logger *zap.Logger
}

// NewCSVWriter creates a feature CSV writer.
func NewCSVWriter(cfg *config.Config, _ config.WriterDef, files *fsutil.Txn, logger *zap.Logger) (model.Writer, error) {
	return &CSVWriter{outDir: cfg.Analyzer.OutDir, files: files, logger: logger}, nil
}

// Kind returns the registry name.
func (w *CSVWriter) Kind() string { return "csv" }

// Close is a no-op.
func (w *CSVWriter) Close() error { return nil }

func (w *CSVWriter) writeCSV(name string, header []string, rows func(emit func(...string) error) error) error {
	return w.files.Write(filepath.Join(w.outDir, name), func(out io.Writer) error {
		cw := csv.NewWriter(out)
		if err := cw.Write(header); err != nil {
			return err
		}
		if err := rows(func(rec ...string) error { return cw.Write(rec) }); err != nil {
			return err
		}
		cw.Flush()
		return cw.Error()
	})
}

// Write expects a *model.AnalysisReport. Only computed features are written.
func (w *CSVWriter) Write(payload interface{}) error {
	report, ok := payload.(*model.AnalysisReport)
	if !ok {
		return fmt.Errorf("invalid payload type for feature CSVWriter: expected *model.AnalysisReport, got %T", payload)
	}

	files := 0
	for i := range report.Features {
		f := &report.Features[i]

		err := w.writeCSV(f.Column+"_series.csv", []string{"window_start", "raw", "detrended", "zscore"}, func(emit func(...string) error) error {
			ts := sampleTimes(report, f)
			for t, v := range f.Raw {
				d, z := "", ""
				if t < len(f.Detrended) {
					d = ftoa(f.Detrended[t])
				}
				if t < len(f.ZScore) {
					z = ftoa(f.ZScore[t])
				}
				if err := emit(ftoa(ts[t]), ftoa(v), d, z); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to write series of '%s': %w", f.Column, err)
		}
		files++

		if f.OK(model.FeaturePSD) {
			err := w.writeCSV(f.Column+"_psd.csv", []string{"freq_hz", "power"}, func(emit func(...string) error) error {
				for k, p := range f.PSDPower {
					if err := emit(ftoa(f.PSDFreqs[k]), ftoa(p)); err != nil {
						return err
					}
				}
				return nil
			})
			if err != nil {
				return fmt.Errorf("failed to write PSD of '%s': %w", f.Column, err)
			}
			files++
		}

		if f.OK(model.FeatureACF) {
			err := w.writeCSV(f.Column+"_acf.csv", []string{"lag", "acf"}, func(emit func(...string) error) error {
				for k, v := range f.ACFValues {
					if err := emit(strconv.Itoa(f.ACFLags[k]), ftoa(v)); err != nil {
						return err
					}
				}
				return nil
			})
			if err != nil {
				return fmt.Errorf("failed to write ACF of '%s': %w", f.Column, err)
			}
			files++
		}

		if f.OK(model.FeatureSTFT) {
			err := w.writeCSV(f.Column+"_stft.csv", []string{"time_s", "freq_hz", "power"}, func(emit func(...string) error) error {
				for ti, tv := range f.STFTTimes {
					for fi, fv := range f.STFTFreqs {
						if err := emit(ftoa(tv), ftoa(fv), ftoa(f.STFTPower[fi][ti])); err != nil {
							return err
						}
					}
				}
				return nil
			})
			if err != nil {
				return fmt.Errorf("failed to write STFT of '%s': %w", f.Column, err)
			}
			files++
		}
	}
	w.logger.Info("Wrote feature CSVs", zap.String("dir", w.outDir), zap.Int("files", files))
	return nil
}
