package series

import (
	"DDoSpectra/internal/config"
	"DDoSpectra/internal/engine/aggregator"
	"DDoSpectra/internal/engine/merger"
	"DDoSpectra/internal/engine/tableio"
	"DDoSpectra/internal/factory"
	"DDoSpectra/internal/model"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testResult(t *testing.T) *model.AggregationResult {
	t.Helper()
	http, err := aggregator.Aggregate("http", []model.PacketRecord{
		{Timestamp: 1.2, Length: 100, SrcIP: "a", Protocol: "HTTP"},
		{Timestamp: 3.4, Length: 200, SrcIP: "b", Protocol: "HTTP"},
	}, 1)
	require.NoError(t, err)
	udp, err := aggregator.Aggregate("udp", []model.PacketRecord{
		{Timestamp: 4.5, Length: 50, SrcIP: "c", Protocol: "UDP"},
	}, 1)
	require.NoError(t, err)
	table, err := merger.Merge(http, udp)
	require.NoError(t, err)
	return &model.AggregationResult{
		RunID:  "run-1",
		Delta:  1,
		Series: []model.AggregateSeries{http, udp},
		Table:  table,
		Stats:  []model.SourceStats{{Source: "http", Rows: 3, Kept: 2, Dropped: 1}},
	}
}

func testConfig(dir string) *config.Config {
	cfg := config.Default()
	cfg.Aggregator.OutDir = dir
	cfg.Aggregator.CoverageColumns = true
	cfg.Aggregator.Writers = []config.WriterDef{
		{Type: "csv", Enabled: true},
		{Type: "gob", Enabled: true},
		{Type: "clickhouse", Enabled: false},
	}
	return cfg
}

func TestWriters_FromFactory(t *testing.T) {
	dir := t.TempDir()
	writers, err := factory.Create(factory.StageSeries, testConfig(dir), nil, zap.NewNop())
	require.NoError(t, err)
	require.Len(t, writers, 2)
	assert.Equal(t, "csv", writers[0].Kind())
	assert.Equal(t, "gob", writers[1].Kind())

	res := testResult(t)
	for _, w := range writers {
		require.NoError(t, w.Write(res))
		require.NoError(t, w.Close())
	}

	for _, name := range []string{"http_agg.csv", "udp_agg.csv", "multivar_agg.csv", "http.gob", "udp.gob", "summary.json"} {
		assert.FileExists(t, filepath.Join(dir, name))
	}

	joined, err := tableio.LoadTable(filepath.Join(dir, "multivar_agg.csv"))
	require.NoError(t, err)
	assert.Equal(t, 4, joined.Rows())
	assert.Equal(t, []float64{0, 0, 0, 1}, joined.Values["udp_packet_count"])
	assert.Equal(t, []bool{true, true, true, false}, joined.Coverage["http"])

	agg, err := os.ReadFile(SeriesPath(dir, "http"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(agg)), "\n")
	assert.Equal(t, []string{
		"window_start,packet_count,byte_count,unique_src_count,syn_count,ack_count,rst_count,fin_count",
		"1,1,100,1,0,0,0,0",
		"2,0,0,0,0,0,0,0",
		"3,1,200,1,0,0,0,0",
	}, lines)
}

func TestGobWriter_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	w, err := NewGobWriter(testConfig(dir), config.WriterDef{}, nil, zap.NewNop())
	require.NoError(t, err)
	res := testResult(t)
	require.NoError(t, w.Write(res))

	f, err := os.Open(filepath.Join(dir, "http.gob"))
	require.NoError(t, err)
	defer f.Close()
	got, err := ReadGob(f)
	require.NoError(t, err)
	assert.Equal(t, res.Series[0], got)

	raw, err := os.ReadFile(filepath.Join(dir, "summary.json"))
	require.NoError(t, err)
	var summary SummaryData
	require.NoError(t, json.Unmarshal(raw, &summary))
	assert.Equal(t, "run-1", summary.RunID)
	assert.Equal(t, 4, summary.Rows)
	require.Len(t, summary.Sources, 2)
	assert.Equal(t, uint64(2), summary.Sources[0].TotalPackets)
	assert.Equal(t, uint64(300), summary.Sources[0].TotalBytes)
	assert.Equal(t, 1, summary.Sources[0].RowsDropped)
}

func TestWriters_RejectWrongPayload(t *testing.T) {
	w, err := NewCSVWriter(testConfig(t.TempDir()), config.WriterDef{}, nil, zap.NewNop())
	require.NoError(t, err)
	assert.Error(t, w.Write("not a result"))
}

func TestFactory_UnknownType(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.Aggregator.Writers = []config.WriterDef{{Type: "parquet", Enabled: true}}
	_, err := factory.Create(factory.StageSeries, cfg, nil, zap.NewNop())
	assert.Equal(t, model.ExitConfiguration, model.ExitCode(err))
	assert.True(t, factory.Registered(factory.StageSeries, "clickhouse"))
}
