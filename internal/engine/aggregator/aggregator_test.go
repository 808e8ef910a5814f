package aggregator

import (
	"DDoSpectra/internal/model"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func evenRecords(n int, span float64) []model.PacketRecord {
	recs := make([]model.PacketRecord, n)
	step := span / float64(n)
	for i := range recs {
		recs[i] = model.PacketRecord{
			Timestamp: float64(i) * step,
			SrcIP:     fmt.Sprintf("10.0.%d.%d", i%7, i%3),
			DstIP:     "10.1.0.1",
			Protocol:  "UDP",
			SYN:       i%2 == 0,
			Length:    uint32(60 + i%5),
		}
	}
	return recs
}

func TestAggregate_RoundTrip(t *testing.T) {
	series, err := Aggregate("http", evenRecords(240, 120), 1.0)
	require.NoError(t, err)
	require.Equal(t, 120, series.Len())
	for i, w := range series.Windows {
		assert.Equal(t, int64(i), w.Index)
		assert.Equal(t, float64(i), w.WindowStart)
		assert.Equal(t, uint64(2), w.PacketCount)
		assert.Equal(t, uint64(2), w.UDPCount)
	}
}

func TestAggregate_Density(t *testing.T) {
	recs := []model.PacketRecord{
		{Timestamp: 10.2, Length: 100, SrcIP: "a"},
		{Timestamp: 14.9, Length: 50, SrcIP: "b"},
		{Timestamp: 10.7, Length: 10, SrcIP: "a", ACK: true},
	}
	series, err := Aggregate("udp", recs, 1.0)
	require.NoError(t, err)

	first, last, ok := series.IndexRange()
	require.True(t, ok)
	assert.Equal(t, int64(10), first)
	assert.Equal(t, int64(14), last)
	require.Equal(t, 5, series.Len())

	assert.Equal(t, uint64(2), series.Windows[0].PacketCount)
	assert.Equal(t, uint64(110), series.Windows[0].ByteCount)
	assert.Equal(t, uint64(1), series.Windows[0].UniqueSrcCount)
	assert.Equal(t, uint64(1), series.Windows[0].ACKCount)
	for _, w := range series.Windows[1:4] {
		assert.Equal(t, model.AggregateWindow{Index: w.Index, WindowStart: w.WindowStart}, w)
	}
	assert.Equal(t, uint64(50), series.Windows[4].ByteCount)
}

func TestAggregate_Deterministic(t *testing.T) {
	recs := evenRecords(500, 37)
	want, err := Aggregate("http", recs, 0.25)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 5; i++ {
		shuffled := append([]model.PacketRecord(nil), recs...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		got, err := Aggregate("http", shuffled, 0.25)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestAggregate_SingleAndEmpty(t *testing.T) {
	one, err := Aggregate("x", []model.PacketRecord{{Timestamp: 3.5, Length: 1}}, 2)
	require.NoError(t, err)
	require.Equal(t, 1, one.Len())
	assert.Equal(t, 2.0, one.Windows[0].WindowStart)

	empty, err := Aggregate("x", nil, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Len())
	assert.Equal(t, "x", empty.Source)
	_, _, ok := empty.IndexRange()
	assert.False(t, ok)
}

func TestAggregate_InvalidDelta(t *testing.T) {
	for _, delta := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		_, err := Aggregate("x", nil, delta)
		var cfgErr *model.ConfigurationError
		require.True(t, errors.As(err, &cfgErr), "delta %v", delta)
		assert.Equal(t, "delta", cfgErr.Param)
	}
}

func TestAggregate_EntropyAndProtocolMix(t *testing.T) {
	recs := []model.PacketRecord{
		{Timestamp: 0.1, Length: 1, SrcIP: "a", DstIP: "z", Protocol: "TCP"},
		{Timestamp: 0.2, Length: 1, SrcIP: "b", DstIP: "z", Protocol: "DNS", UDPDstPort: model.PortOf(53)},
		{Timestamp: 0.3, Length: 1, SrcIP: "c", DstIP: "z", Protocol: "ICMP"},
		{Timestamp: 0.4, Length: 1, SrcIP: "d", DstIP: "z", Protocol: "ARP"},
	}
	series, err := Aggregate("x", recs, 1)
	require.NoError(t, err)
	w := series.Windows[0]
	assert.InDelta(t, 2.0, w.SrcEntropy, 1e-12)
	assert.Equal(t, 0.0, w.DstEntropy)
	assert.Equal(t, uint64(1), w.UniqueDstCount)
	assert.Equal(t, []uint64{1, 1, 1, 1}, []uint64{w.TCPCount, w.UDPCount, w.ICMPCount, w.OtherCount})
}

func TestAggregate_SYNIndicators(t *testing.T) {
	recs := []model.PacketRecord{
		{Timestamp: 0.1, Length: 60, SYN: true},
		{Timestamp: 0.2, Length: 60, SYN: true},
		{Timestamp: 0.3, Length: 60, SYN: true},
		{Timestamp: 0.4, Length: 60, ACK: true},
		{Timestamp: 2.5, Length: 60, SYN: true},
	}
	series, err := Aggregate("syn", recs, 1)
	require.NoError(t, err)
	require.Len(t, series.Windows, 3)

	mixed := series.Windows[0]
	assert.InDelta(t, 0.75, mixed.SYNPercent(), 1e-12)
	assert.InDelta(t, 3.0, mixed.SYNACKRatio(), 1e-6)
	v, ok := mixed.Value("syn_ack_ratio")
	require.True(t, ok)
	assert.Equal(t, mixed.SYNACKRatio(), v)

	empty := series.Windows[1]
	for _, col := range []string{"syn_percent", "syn_ack_ratio"} {
		v, ok := empty.Value(col)
		require.True(t, ok)
		assert.Equal(t, 0.0, v, col)
	}

	synOnly := series.Windows[2]
	assert.Equal(t, 1.0, synOnly.SYNPercent())
	assert.InDelta(t, 1e9, synOnly.SYNACKRatio(), 1)
	assert.False(t, math.IsInf(synOnly.SYNACKRatio(), 0))

	assert.Contains(t, model.WindowColumns(true), "syn_percent")
	assert.NotContains(t, model.WindowColumns(false), "syn_ack_ratio")
}
