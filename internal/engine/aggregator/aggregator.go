// Package aggregator buckets packet records into fixed-width, left-closed time windows.
package aggregator

import (
	"DDoSpectra/internal/model"
	"fmt"
	"math"
	"sort"
)

// windowState accumulates the records of one window index.
type windowState struct {
	packets, bytes     uint64
	syn, ack, rst, fin uint64
	tcp, udp, icmp     uint64
	other              uint64
	srcs               map[string]uint64
	dsts               map[string]uint64
}

func newWindowState() *windowState {
	return &windowState{
		srcs: make(map[string]uint64),
		dsts: make(map[string]uint64),
	}
}

// WindowAggregator accumulates the records of a single source. It is not safe for
// concurrent use; run one aggregator per source.
type WindowAggregator struct {
	Source string
	delta  float64

	windows  map[int64]*windowState
	min, max int64
}

// NewWindowAggregator creates an aggregator with window width delta in seconds.
func NewWindowAggregator(source string, delta float64) (*WindowAggregator, error) {
	if err := ValidateDelta(delta); err != nil {
		return nil, err
	}
	return &WindowAggregator{
		Source:  source,
		delta:   delta,
		windows: make(map[int64]*windowState),
	}, nil
}

// ValidateDelta checks that a window width is finite and positive.
func ValidateDelta(delta float64) error {
	if math.IsNaN(delta) || math.IsInf(delta, 0) || delta <= 0 {
		return &model.ConfigurationError{Param: "delta", Reason: fmt.Sprintf("must be a finite value > 0, got %g", delta)}
	}
	return nil
}

// WindowIndex returns floor(ts/delta).
func WindowIndex(ts, delta float64) int64 {
	return int64(math.Floor(ts / delta))
}

// ProcessRecord adds a single record to its window.
func (wa *WindowAggregator) ProcessRecord(rec model.PacketRecord) {
	idx := WindowIndex(rec.Timestamp, wa.delta)
	if len(wa.windows) == 0 {
		wa.min, wa.max = idx, idx
	} else if idx < wa.min {
		wa.min = idx
	} else if idx > wa.max {
		wa.max = idx
	}

	w, ok := wa.windows[idx]
	if !ok {
		w = newWindowState()
		wa.windows[idx] = w
	}
	w.packets++
	w.bytes += uint64(rec.Length)
	if rec.SrcIP != "" {
		w.srcs[rec.SrcIP]++
	}
	if rec.DstIP != "" {
		w.dsts[rec.DstIP]++
	}
	if rec.SYN {
		w.syn++
	}
	if rec.ACK {
		w.ack++
	}
	if rec.RST {
		w.rst++
	}
	if rec.FIN {
		w.fin++
	}
	switch rec.Transport() {
	case model.TransportTCP:
		w.tcp++
	case model.TransportUDP:
		w.udp++
	case model.TransportICMP:
		w.icmp++
	default:
		w.other++
	}
}

// Series emits the dense series: one window for every index between the first and
// last seen, empty windows included.
func (wa *WindowAggregator) Series() model.AggregateSeries {
	series := model.AggregateSeries{Source: wa.Source, Delta: wa.delta}
	if len(wa.windows) == 0 {
		return series
	}
	series.Windows = make([]model.AggregateWindow, 0, wa.max-wa.min+1)
	for idx := wa.min; idx <= wa.max; idx++ {
		win := model.AggregateWindow{Index: idx, WindowStart: float64(idx) * wa.delta}
		if w, ok := wa.windows[idx]; ok {
			win.PacketCount = w.packets
			win.ByteCount = w.bytes
			win.UniqueSrcCount = uint64(len(w.srcs))
			win.UniqueDstCount = uint64(len(w.dsts))
			win.SYNCount = w.syn
			win.ACKCount = w.ack
			win.RSTCount = w.rst
			win.FINCount = w.fin
			win.TCPCount = w.tcp
			win.UDPCount = w.udp
			win.ICMPCount = w.icmp
			win.OtherCount = w.other
			win.SrcEntropy = entropy(w.srcs)
			win.DstEntropy = entropy(w.dsts)
		}
		series.Windows = append(series.Windows, win)
	}
	return series
}

// Aggregate builds the dense series of one source. An empty input yields an empty series.
func Aggregate(source string, records []model.PacketRecord, delta float64) (model.AggregateSeries, error) {
	wa, err := NewWindowAggregator(source, delta)
	if err != nil {
		return model.AggregateSeries{}, err
	}
	for _, rec := range records {
		wa.ProcessRecord(rec)
	}
	return wa.Series(), nil
}

// entropy is the Shannon entropy in bits of a count distribution. Keys are visited in
// sorted order so the floating-point sum does not depend on map iteration.
func entropy(counts map[string]uint64) float64 {
	if len(counts) < 2 {
		return 0
	}
	keys := make([]string, 0, len(counts))
	var total uint64
	for k, c := range counts {
		keys = append(keys, k)
		total += c
	}
	sort.Strings(keys)

	h := 0.0
	for _, k := range keys {
		p := float64(counts[k]) / float64(total)
		h -= p * math.Log2(p)
	}
	return h
}
