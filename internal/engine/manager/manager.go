package manager

import (
	"DDoSpectra/internal/alerter"
	"DDoSpectra/internal/config"
	"DDoSpectra/internal/engine/aggregator"
	"DDoSpectra/internal/engine/dsp"
	"DDoSpectra/internal/engine/merger"
	"DDoSpectra/internal/engine/normalizer"
	"DDoSpectra/internal/engine/tableio"
	"DDoSpectra/internal/factory"
	"DDoSpectra/internal/fsutil"
	"DDoSpectra/internal/integrity"
	"DDoSpectra/internal/metrics"
	"DDoSpectra/internal/model"
	"DDoSpectra/internal/notification"
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Manager orchestrates the pipeline stages and their writers.
type Manager struct {
	cfg      *config.Config
	logger   *zap.Logger
	metrics  *metrics.Metrics
	notifier model.Notifier
}

// NewManager creates a new Manager. A nil metrics set gets a fresh registry.
func NewManager(cfg *config.Config, logger *zap.Logger, m *metrics.Metrics) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if m == nil {
		m = metrics.New()
	}
	return &Manager{
		cfg:      cfg,
		logger:   logger,
		metrics:  m,
		notifier: notification.NewLogNotifier(logger),
	}
}

// SetNotifier replaces the default log notifier used for triggered alerts.
func (m *Manager) SetNotifier(n model.Notifier) {
	if n != nil {
		m.notifier = n
	}
}

// Metrics returns the collectors of this manager.
func (m *Manager) Metrics() *metrics.Metrics {
	return m.metrics
}

type sourceResult struct {
	series model.AggregateSeries
	stats  model.SourceStats
	err    error
}

// RunAggregation normalizes and aggregates every configured source concurrently,
// merges the series and hands the result to the series writers.
func (m *Manager) RunAggregation(ctx context.Context) (*model.AggregationResult, error) {
	start := time.Now()
	defer m.metrics.ObserveStage("aggregate", start)

	if err := m.cfg.ValidateAggregator(); err != nil {
		return nil, err
	}
	acfg := m.cfg.Aggregator
	names := acfg.SourceNames()

	results := make([]sourceResult, len(names))
	var wg sync.WaitGroup
	wg.Add(len(names))
	for i, name := range names {
		go func(slot int, name, path string) {
			defer wg.Done()
			results[slot] = m.aggregateSource(ctx, name, path)
		}(i, name, acfg.Sources[name])
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	series := make([]model.AggregateSeries, 0, len(names))
	stats := make([]model.SourceStats, 0, len(names))
	for _, r := range results {
		if r.err != nil {
			return nil, r.err
		}
		series = append(series, r.series)
		stats = append(stats, r.stats)
	}

	table, err := merger.MergeWith(merger.Options{Extended: acfg.ExtendedColumns}, series...)
	if err != nil {
		return nil, err
	}

	result := &model.AggregationResult{
		RunID:  uuid.NewString(),
		Delta:  acfg.Delta,
		Series: series,
		Table:  table,
		Stats:  stats,
	}
	m.logger.Info("Aggregation finished",
		zap.String("run_id", result.RunID),
		zap.Int("sources", len(series)),
		zap.Int("rows", table.Rows()),
		zap.Float64("delta", result.Delta))

	if err := m.write(factory.StageSeries, result, acfg.OutDir); err != nil {
		return result, err
	}
	return result, nil
}

func (m *Manager) aggregateSource(ctx context.Context, name, path string) sourceResult {
	if err := ctx.Err(); err != nil {
		return sourceResult{err: err}
	}
	norm, err := normalizer.New(name, m.logger).Load(path, m.cfg.Aggregator.Separator)
	if err != nil {
		return sourceResult{err: fmt.Errorf("source %s: %w", name, err)}
	}
	m.metrics.Records.WithLabelValues(name, metrics.OutcomeKept).Add(float64(norm.Stats.Kept))
	m.metrics.Records.WithLabelValues(name, metrics.OutcomeDropped).Add(float64(norm.Stats.Dropped))

	s, err := aggregator.Aggregate(name, norm.Records, m.cfg.Aggregator.Delta)
	if err != nil {
		return sourceResult{err: fmt.Errorf("source %s: %w", name, err)}
	}
	m.metrics.WindowsEmitted.WithLabelValues(name).Add(float64(s.Len()))

	m.logger.Info("Source aggregated",
		zap.String("source", name),
		zap.Int("rows", norm.Stats.Rows),
		zap.Int("dropped", norm.Stats.Dropped),
		zap.Int("windows", s.Len()))

	return sourceResult{
		series: s,
		stats: model.SourceStats{
			Source:  name,
			Path:    path,
			Rows:    norm.Stats.Rows,
			Kept:    norm.Stats.Kept,
			Dropped: norm.Stats.Dropped,
			Windows: s.Len(),
		},
	}
}

// RunAnalysis loads the multivariate table, analyzes the selected columns and hands
// the report to the feature writers. Features that could not be computed are joined
// into the returned error; the report is returned alongside it.
func (m *Manager) RunAnalysis(ctx context.Context) (*model.AnalysisReport, error) {
	start := time.Now()
	defer m.metrics.ObserveStage("analyze", start)

	if err := m.cfg.ValidateAnalyzer(); err != nil {
		return nil, err
	}
	table, err := tableio.LoadTable(m.cfg.Analyzer.CSVPath)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report, err := m.AnalyzeTable(table, m.cfg.Analyzer.CSVPath)
	if err != nil {
		return nil, err
	}

	if err := m.write(factory.StageFeatures, report, m.cfg.Analyzer.OutDir); err != nil {
		return report, err
	}
	return report, FeatureErrors(report)
}

// AnalyzeTable runs the signal analysis over an in-memory table and evaluates the
// alert rules. Nothing is written.
func (m *Manager) AnalyzeTable(table *model.MultivariateTable, source string) (*model.AnalysisReport, error) {
	acfg := m.cfg.Analyzer
	columns, err := SelectColumns(table, acfg.Columns)
	if err != nil {
		return nil, err
	}
	fs := SampleRate(acfg.FS, table.Delta)
	opts := dsp.OptionsFromConfig(acfg)

	report := &model.AnalysisReport{
		RunID:       uuid.NewString(),
		CSVPath:     source,
		SampleRate:  fs,
		Rows:        table.Rows(),
		WindowStart: table.WindowStart,
		GeneratedAt: time.Now().UTC(),
	}
	for _, col := range columns {
		x, _ := table.Column(col)
		f := dsp.Analyze(col, x, fs, opts)
		for _, feature := range failedFeatures(f) {
			m.metrics.FeatureFailures.WithLabelValues(feature).Inc()
			m.logger.Warn("Feature not computed",
				zap.String("column", col),
				zap.String("feature", feature),
				zap.Error(f.Errors[feature]))
		}
		report.Features = append(report.Features, *f)
	}

	if m.cfg.Alerter.Enabled {
		a, err := alerter.NewAlerter(m.cfg.Alerter, m.notifier, m.logger)
		if err != nil {
			return nil, err
		}
		report.Alerts = a.Evaluate(report.Features)
		m.metrics.AlertsTriggered.Add(float64(len(report.Alerts)))
		if err := a.Notify(report.RunID, report.Alerts); err != nil {
			m.logger.Error("Error notifying alerts", zap.Error(err))
		}
	}

	m.logger.Info("Analysis finished",
		zap.String("run_id", report.RunID),
		zap.Int("columns", len(report.Features)),
		zap.Int("rows", report.Rows),
		zap.Float64("fs", fs),
		zap.Int("alerts", len(report.Alerts)))
	return report, nil
}

// SelectColumns resolves the requested column names against the table. An empty
// request selects every column in table order.
func SelectColumns(table *model.MultivariateTable, requested []string) ([]string, error) {
	if len(requested) == 0 {
		return append([]string(nil), table.Columns...), nil
	}
	for _, col := range requested {
		if _, ok := table.Column(col); !ok {
			return nil, &model.ConfigurationError{Param: "columns", Reason: fmt.Sprintf("unknown column '%s'", col)}
		}
	}
	return append([]string(nil), requested...), nil
}

// SampleRate returns the configured rate, else the reciprocal of the table's window
// width, else 1 Hz.
func SampleRate(configured, delta float64) float64 {
	if configured > 0 {
		return configured
	}
	if delta > 0 {
		return 1 / delta
	}
	return 1
}

// FeatureErrors joins the errors of every failed feature, ordered by column and
// feature name. It returns nil when everything was computed.
func FeatureErrors(report *model.AnalysisReport) error {
	var errs []error
	for i := range report.Features {
		f := &report.Features[i]
		for _, feature := range failedFeatures(f) {
			errs = append(errs, fmt.Errorf("column %s: %w", f.Column, f.Errors[feature]))
		}
	}
	return errors.Join(errs...)
}

func failedFeatures(f *model.SignalFeatures) []string {
	names := make([]string, 0, len(f.Errors))
	for name := range f.Errors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// write hands the payload to every enabled writer of the stage. Files are staged and
// moved into place together, followed by the manifest and the writers that commit
// elsewhere. When any step fails the stage leaves no output behind.
func (m *Manager) write(stage string, payload interface{}, outDir string) (err error) {
	files := fsutil.NewTxn()
	writers, err := factory.Create(stage, m.cfg, files, m.logger)
	if err != nil {
		return err
	}
	defer func() {
		for _, w := range writers {
			if cerr := w.Close(); cerr != nil {
				m.logger.Warn("Error closing writer", zap.String("writer", w.Kind()), zap.Error(cerr))
			}
		}
		if err != nil {
			if rerr := files.Rollback(); rerr != nil {
				m.logger.Warn("Failed to remove partial output", zap.String("stage", stage), zap.Error(rerr))
			}
			m.logger.Error("Stage output discarded", zap.String("stage", stage), zap.Error(err))
		}
	}()

	for _, w := range writers {
		if err := w.Write(payload); err != nil {
			return fmt.Errorf("%s writer: %w", w.Kind(), err)
		}
	}
	if err := files.Commit(); err != nil {
		return err
	}
	if err := m.writeManifest(files, outDir); err != nil {
		return err
	}
	for _, w := range writers {
		if c, ok := w.(model.Committer); ok {
			if err := c.Commit(); err != nil {
				return fmt.Errorf("%s writer: %w", w.Kind(), err)
			}
		}
	}
	return nil
}

func (m *Manager) writeManifest(files *fsutil.Txn, dir string) error {
	ic := m.cfg.Integrity
	if !ic.Enabled {
		return nil
	}
	entries, err := integrity.StageManifest(files, dir, ic.Manifest, ic.Algorithm)
	if err != nil {
		return err
	}
	if err := files.Commit(); err != nil {
		return err
	}
	m.logger.Debug("Manifest written", zap.String("dir", dir), zap.Int("files", len(entries)))
	return nil
}
