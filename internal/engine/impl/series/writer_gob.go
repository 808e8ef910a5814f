package series

import (
	"DDoSpectra/internal/config"
	"DDoSpectra/internal/fsutil"
	"DDoSpectra/internal/model"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// SourceSummary holds the totals of one source series.
type SourceSummary struct {
	Source       string  `json:"source"`
	Windows      int     `json:"windows"`
	FirstWindow  float64 `json:"first_window_start"`
	TotalPackets uint64  `json:"total_packets"`
	TotalBytes   uint64  `json:"total_bytes"`
	RowsRead     int     `json:"rows_read"`
	RowsDropped  int     `json:"rows_dropped"`
}

// SummaryData is the metadata written next to the gob snapshots.
type SummaryData struct {
	RunID     string          `json:"run_id"`
	Delta     float64         `json:"delta"`
	Sources   []SourceSummary `json:"sources"`
	Rows      int             `json:"joined_rows"`
	Timestamp string          `json:"timestamp"`
}

// GobWriter writes each series as <source>.gob plus a summary.json.
type GobWriter struct {
	outDir string
	files  *fsutil.Txn
	logger *zap.Logger
}

// NewGobWriter creates a gob snapshot writer.
func NewGobWriter(cfg *config.Config, _ config.WriterDef, files *fsutil.Txn, logger *zap.Logger) (model.Writer, error) {
	return &GobWriter{outDir: cfg.Aggregator.OutDir, files: files, logger: logger}, nil
}

// Kind returns the registry name.
func (w *GobWriter) Kind() string { return "gob" }

// Close is a no-op.
func (w *GobWriter) Close() error { return nil }

// Write expects a *model.AggregationResult.
func (w *GobWriter) Write(payload interface{}) error {
	res, ok := payload.(*model.AggregationResult)
	if !ok {
		return fmt.Errorf("invalid payload type for GobWriter: expected *model.AggregationResult, got %T", payload)
	}

	summary := SummaryData{
		RunID:     res.RunID,
		Delta:     res.Delta,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if res.Table != nil {
		summary.Rows = res.Table.Rows()
	}
	stats := make(map[string]model.SourceStats, len(res.Stats))
	for _, st := range res.Stats {
		stats[st.Source] = st
	}

	for _, s := range res.Series {
		path := filepath.Join(w.outDir, s.Source+".gob")
		err := w.files.Write(path, func(out io.Writer) error {
			return gob.NewEncoder(out).Encode(s)
		})
		if err != nil {
			return fmt.Errorf("failed to encode series '%s' to gob: %w", s.Source, err)
		}

		ss := SourceSummary{
			Source:      s.Source,
			Windows:     s.Len(),
			RowsRead:    stats[s.Source].Rows,
			RowsDropped: stats[s.Source].Dropped,
		}
		if s.Len() > 0 {
			ss.FirstWindow = s.Windows[0].WindowStart
		}
		for _, win := range s.Windows {
			ss.TotalPackets += win.PacketCount
			ss.TotalBytes += win.ByteCount
		}
		summary.Sources = append(summary.Sources, ss)
	}

	err := w.files.Write(filepath.Join(w.outDir, "summary.json"), func(out io.Writer) error {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	})
	if err != nil {
		return fmt.Errorf("failed to encode summary to json: %w", err)
	}
	w.logger.Info("Wrote gob snapshots", zap.String("dir", w.outDir), zap.Int("series", len(res.Series)))
	return nil
}

// ReadGob decodes a series snapshot written by GobWriter.
func ReadGob(r io.Reader) (model.AggregateSeries, error) {
	var s model.AggregateSeries
	if err := gob.NewDecoder(r).Decode(&s); err != nil {
		return s, fmt.Errorf("failed to decode series: %w", err)
	}
	return s, nil
}
