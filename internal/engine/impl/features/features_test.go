package features

import (
	"DDoSpectra/internal/config"
	"DDoSpectra/internal/engine/dsp"
	"DDoSpectra/internal/factory"
	"DDoSpectra/internal/fsutil"
	"DDoSpectra/internal/model"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func pulseReport(t *testing.T) *model.AnalysisReport {
	t.Helper()
	x := make([]float64, 120)
	ws := make([]float64, len(x))
	for i := range x {
		ws[i] = 1000 + float64(i)
		if i%12 < 4 {
			x[i] = 50
		}
	}
	short := dsp.Analyze("http_packet_count", []float64{1, 2}, 1, dsp.DefaultOptions())
	pulse := dsp.Analyze("udp_packet_count", x, 1, dsp.DefaultOptions())
	return &model.AnalysisReport{
		RunID:       "run-42",
		CSVPath:     "data/agg/multivar_agg.csv",
		SampleRate:  1,
		Rows:        len(x),
		WindowStart: ws,
		Features:    []model.SignalFeatures{*pulse, *short},
		Alerts: []model.Alert{
			{Rule: "cycle", Column: "udp_packet_count", Metric: "acf_peak", Operator: ">=", Threshold: 0.5, Observed: 0.7},
		},
		GeneratedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func testConfig(dir string) *config.Config {
	cfg := config.Default()
	cfg.Analyzer.OutDir = dir
	return cfg
}

func TestFeatureWriters(t *testing.T) {
	dir := t.TempDir()
	writers, err := factory.Create(factory.StageFeatures, testConfig(dir), nil, zap.NewNop())
	require.NoError(t, err)
	require.Len(t, writers, 3)

	report := pulseReport(t)
	for _, w := range writers {
		require.NoError(t, w.Write(report), w.Kind())
	}

	for _, name := range []string{
		"udp_packet_count_series.csv", "udp_packet_count_psd.csv", "udp_packet_count_acf.csv", "udp_packet_count_stft.csv",
		"http_packet_count_series.csv", "http_packet_count_acf.csv",
		FigureName("udp_packet_count", "series"), FigureName("udp_packet_count", "psd"),
		FigureName("udp_packet_count", "stft"), FigureName("udp_packet_count", "acf"),
		"report.md", "report.html",
	} {
		assert.FileExists(t, filepath.Join(dir, name))
	}
	assert.NoFileExists(t, filepath.Join(dir, "http_packet_count_psd.csv"))
	assert.NoFileExists(t, filepath.Join(dir, FigureName("http_packet_count", "stft")))

	series, err := os.ReadFile(filepath.Join(dir, "udp_packet_count_series.csv"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(series), "window_start,raw,detrended,zscore\n1000,50,"))

	md, err := os.ReadFile(filepath.Join(dir, "report.md"))
	require.NoError(t, err)
	assert.Contains(t, string(md), "- Run: `run-42`")
	assert.Contains(t, string(md), "cycle: udp_packet_count acf_peak")
	assert.Contains(t, string(md), "PSD not computed")
	assert.Contains(t, string(md), "](fig_udp_packet_count_psd.png)")

	page, err := os.ReadFile(filepath.Join(dir, "report.html"))
	require.NoError(t, err)
	assert.Contains(t, string(page), "<table>")
	assert.Contains(t, string(page), "<title>DDoSpectra report run-42</title>")
}

func TestMarkdown_NoAlerts(t *testing.T) {
	report := pulseReport(t)
	report.Alerts = nil
	md := string(Markdown(report, t.TempDir()))
	assert.Contains(t, md, "No alert rule triggered.")
	assert.Contains(t, md, "| http_packet_count |")
	assert.NotContains(t, md, "![")
}

func TestWriters_RejectWrongPayload(t *testing.T) {
	cfg := testConfig(t.TempDir())
	for _, build := range []factory.WriterFactory{NewCSVWriter, NewFigureWriter, NewReportWriter} {
		w, err := build(cfg, config.WriterDef{}, nil, zap.NewNop())
		require.NoError(t, err)
		assert.Error(t, w.Write(&model.AggregationResult{}))
	}
}

func TestFeatureWriters_Staged(t *testing.T) {
	dir := t.TempDir()
	files := fsutil.NewTxn()
	writers, err := factory.Create(factory.StageFeatures, testConfig(dir), files, zap.NewNop())
	require.NoError(t, err)

	for _, w := range writers {
		require.NoError(t, w.Write(pulseReport(t)), w.Kind())
	}
	assert.NoFileExists(t, filepath.Join(dir, "report.md"))
	assert.True(t, files.Has(filepath.Join(dir, FigureName("udp_packet_count", "psd"))))

	require.NoError(t, files.Commit())
	md, err := os.ReadFile(filepath.Join(dir, "report.md"))
	require.NoError(t, err)
	assert.Contains(t, string(md), "](fig_udp_packet_count_psd.png)")
	assert.FileExists(t, filepath.Join(dir, "udp_packet_count_acf.csv"))
}
