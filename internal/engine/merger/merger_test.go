package merger

import (
	"DDoSpectra/internal/engine/aggregator"
	"DDoSpectra/internal/model"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seriesOver(t *testing.T, source string, timestamps ...float64) model.AggregateSeries {
	t.Helper()
	recs := make([]model.PacketRecord, len(timestamps))
	for i, ts := range timestamps {
		recs[i] = model.PacketRecord{Timestamp: ts, Length: 100, SrcIP: "10.0.0.1", Protocol: "UDP"}
	}
	s, err := aggregator.Aggregate(source, recs, 1.0)
	require.NoError(t, err)
	return s
}

func TestMerge_DisjointRangesZeroFilled(t *testing.T) {
	a := seriesOver(t, "http", 2.5, 3.5) // [2,3]
	b := seriesOver(t, "udp", 7.1, 8.9)  // [7,8]

	table, err := Merge(a, b)
	require.NoError(t, err)
	require.Equal(t, 7, table.Rows())
	assert.Equal(t, []int64{2, 3, 4, 5, 6, 7, 8}, table.Index)
	assert.Equal(t, []float64{2, 3, 4, 5, 6, 7, 8}, table.WindowStart)

	http, ok := table.Column("http_packet_count")
	require.True(t, ok)
	udp, ok := table.Column("udp_packet_count")
	require.True(t, ok)
	assert.Equal(t, []float64{1, 1, 0, 0, 0, 0, 0}, http)
	assert.Equal(t, []float64{0, 0, 0, 0, 0, 1, 1}, udp)
	for r := 2; r <= 4; r++ {
		for _, col := range table.Columns {
			assert.Zero(t, table.Values[col][r], "%s row %d", col, r)
		}
	}
	assert.Equal(t, []bool{true, true, false, false, false, false, false}, table.Coverage["http"])
	assert.Equal(t, []bool{false, false, false, false, false, true, true}, table.Coverage["udp"])
}

func TestMerge_WithEmptySeries(t *testing.T) {
	ts := make([]float64, 240)
	for i := range ts {
		ts[i] = float64(i) * 0.5
	}
	full := seriesOver(t, "http", ts...)
	empty := model.AggregateSeries{Source: "udp", Delta: 1.0}

	table, err := Merge(full, empty)
	require.NoError(t, err)
	require.Equal(t, 120, table.Rows())
	assert.Equal(t, []string{"http", "udp"}, table.Sources)
	assert.Len(t, table.Columns, 2*len(model.BaseColumns))
	for _, c := range model.BaseColumns {
		for _, v := range table.Values[model.ColumnName("udp", c)] {
			assert.Zero(t, v)
		}
	}
	for _, v := range table.Values["http_packet_count"] {
		assert.Equal(t, 2.0, v)
	}
}

func TestMerge_IncompatibleDelta(t *testing.T) {
	a := model.AggregateSeries{Source: "http", Delta: 1.0}
	b := model.AggregateSeries{Source: "udp", Delta: 0.5}
	_, err := Merge(a, b)
	var incompatible *model.IncompatibleWindowError
	require.True(t, errors.As(err, &incompatible))
	assert.Equal(t, "udp", incompatible.Source)
	assert.Equal(t, 0.5, incompatible.Delta)
	assert.Equal(t, model.ExitIncompatible, model.ExitCode(err))

	c := model.AggregateSeries{Source: "dns", Delta: 1.0 + 1e-12}
	_, err = Merge(a, c)
	assert.NoError(t, err)
}

func TestMerge_DuplicateSource(t *testing.T) {
	a := model.AggregateSeries{Source: "http", Delta: 1.0}
	_, err := Merge(a, a)
	var cfgErr *model.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "source", cfgErr.Param)
}

func TestMergeWith_Extended(t *testing.T) {
	table, err := MergeWith(Options{Extended: true}, seriesOver(t, "udp", 0.1, 0.2))
	require.NoError(t, err)
	assert.Len(t, table.Columns, len(model.BaseColumns)+len(model.ExtendedColumns))
	udp, _ := table.Column("udp_udp_count")
	assert.Equal(t, []float64{2}, udp)
}
