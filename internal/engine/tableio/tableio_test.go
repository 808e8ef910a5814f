package tableio

import (
	"DDoSpectra/internal/engine/aggregator"
	"DDoSpectra/internal/engine/merger"
	"DDoSpectra/internal/model"
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteSeries_Header(t *testing.T) {
	s, err := aggregator.Aggregate("http", []model.PacketRecord{
		{Timestamp: 0.5, Length: 60, SrcIP: "a", SYN: true},
		{Timestamp: 2.25, Length: 40, SrcIP: "b"},
	}, 1.5)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteSeries(&buf, s, false))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, "window_start,packet_count,byte_count,unique_src_count,syn_count,ack_count,rst_count,fin_count", lines[0])
	assert.Equal(t, []string{"0,1,60,1,1,0,0,0", "1.5,1,40,1,0,0,0,0"}, lines[1:])
}

func TestWriteReadTable(t *testing.T) {
	a, err := aggregator.Aggregate("http", []model.PacketRecord{{Timestamp: 10, Length: 5}}, 1)
	require.NoError(t, err)
	b, err := aggregator.Aggregate("udp", []model.PacketRecord{{Timestamp: 12, Length: 7}}, 1)
	require.NoError(t, err)
	table, err := merger.Merge(a, b)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteTable(&buf, table, true))
	assert.True(t, strings.HasPrefix(buf.String(), "window_start,http_packet_count,"))
	assert.Contains(t, buf.String(), "http_covered,udp_covered\n")

	got, err := ReadTable(&buf)
	require.NoError(t, err)
	assert.Equal(t, table.Columns, got.Columns)
	assert.Equal(t, table.WindowStart, got.WindowStart)
	assert.Equal(t, []int64{10, 11, 12}, got.Index)
	assert.Equal(t, 1.0, got.Delta)
	assert.Equal(t, []float64{0, 0, 7}, got.Values["udp_byte_count"])
	assert.Equal(t, []bool{true, false, false}, got.Coverage["http"])
	assert.Equal(t, []string{"http", "udp"}, got.Sources)
}

func TestReadTable_ZeroFillsBadCells(t *testing.T) {
	in := "t_start,x,y\n0,1,\n1,NaN,2\n2,abc,3\n"
	got, err := ReadTable(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0, 0}, got.Values["x"])
	assert.Equal(t, []float64{0, 2, 3}, got.Values["y"])
}

func TestReadTable_MissingTimeColumn(t *testing.T) {
	_, err := ReadTable(strings.NewReader("a,b\n1,2\n"))
	var schemaErr *model.SchemaError
	require.True(t, errors.As(err, &schemaErr))
	assert.Equal(t, ColWindowStart, schemaErr.Column)
}

func TestLoadTable_MissingFile(t *testing.T) {
	_, err := LoadTable(filepath.Join(t.TempDir(), "nope.csv"))
	assert.Equal(t, model.ExitConfiguration, model.ExitCode(err))
}

func TestInferDelta(t *testing.T) {
	assert.Equal(t, 0.5, InferDelta([]float64{0, 0.5, 1, 1.5, 3}))
	assert.Equal(t, 0.0, InferDelta([]float64{4}))
}
