package series

import (
	"DDoSpectra/internal/config"
	"DDoSpectra/internal/engine/tableio"
	"DDoSpectra/internal/factory"
	"DDoSpectra/internal/fsutil"
	"DDoSpectra/internal/model"
	"fmt"
	"io"
	"path/filepath"

	"go.uber.org/zap"
)

func init() {
	factory.RegisterWriter(factory.StageSeries, "csv", NewCSVWriter)
	factory.RegisterWriter(factory.StageSeries, "gob", NewGobWriter)
	factory.RegisterWriter(factory.StageSeries, "clickhouse", NewClickHouseWriter)
}

// CSVWriter writes <source>_agg.csv per series and the joined table.
type CSVWriter struct {
	outDir     string
	joinedName string
	extended   bool
	coverage   bool
	files      *fsutil.Txn
	logger     *zap.Logger
}

// NewCSVWriter creates a CSV writer from the aggregator configuration.
func NewCSVWriter(cfg *config.Config, _ config.WriterDef, files *fsutil.Txn, logger *zap.Logger) (model.Writer, error) {
	a := cfg.Aggregator
	return &CSVWriter{
		outDir:     a.OutDir,
		joinedName: a.JoinedName,
		extended:   a.ExtendedColumns,
		coverage:   a.CoverageColumns,
		files:      files,
		logger:     logger,
	}, nil
}

// Kind returns the registry name.
func (w *CSVWriter) Kind() string { return "csv" }

// Close is a no-op.
func (w *CSVWriter) Close() error { return nil }

// SeriesPath returns the per-source CSV path.
func SeriesPath(outDir, source string) string {
	return filepath.Join(outDir, source+"_agg.csv")
}

// Write expects a *model.AggregationResult.
func (w *CSVWriter) Write(payload interface{}) error {
	res, ok := payload.(*model.AggregationResult)
	if !ok {
		return fmt.Errorf("invalid payload type for CSVWriter: expected *model.AggregationResult, got %T", payload)
	}

	for _, s := range res.Series {
		path := SeriesPath(w.outDir, s.Source)
		err := w.files.Write(path, func(out io.Writer) error {
			return tableio.WriteSeries(out, s, w.extended)
		})
		if err != nil {
			return fmt.Errorf("failed to write series '%s': %w", s.Source, err)
		}
		w.logger.Info("Staged series", zap.String("path", path), zap.Int("windows", s.Len()))
	}

	if res.Table == nil {
		return nil
	}
	path := filepath.Join(w.outDir, w.joinedName+".csv")
	err := w.files.Write(path, func(out io.Writer) error {
		return tableio.WriteTable(out, res.Table, w.coverage)
	})
	if err != nil {
		return fmt.Errorf("failed to write joined table: %w", err)
	}
	w.logger.Info("Staged joined table", zap.String("path", path), zap.Int("rows", res.Table.Rows()))
	return nil
}
