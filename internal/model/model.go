package model

import (
	"strings"
)

// Transport classes used for the per-window protocol mix.
const (
	TransportTCP   = "TCP"
	TransportUDP   = "UDP"
	TransportICMP  = "ICMP"
	TransportOther = "OTHER"
)

// Port is an optional TCP/UDP port. Set is false when the capture had no value.
type Port struct {
	Num uint16
	Set bool
}

// PortOf returns a present port.
func PortOf(n uint16) Port {
	return Port{Num: n, Set: true}
}

// PacketRecord is one packet as emitted by the capture extractor.
type PacketRecord struct {
	Timestamp  float64 // seconds since epoch
	SrcIP      string
	DstIP      string
	Protocol   string // upper-case label, e.g. "TCP", "HTTP", "DNS"
	TCPSrcPort Port
	TCPDstPort Port
	UDPSrcPort Port
	UDPDstPort Port
	SYN        bool
	ACK        bool
	RST        bool
	FIN        bool
	Length     uint32 // frame length in bytes
}

// Transport classifies the record as TCP, UDP, ICMP or OTHER. The protocol label
// wins when it names a transport; otherwise the presence of ports decides.
func (r PacketRecord) Transport() string {
	up := strings.ToUpper(r.Protocol)
	switch {
	case strings.Contains(up, "UDP"):
		return TransportUDP
	case strings.Contains(up, "TCP"):
		return TransportTCP
	case strings.Contains(up, "ICMP"):
		return TransportICMP
	}
	if r.TCPSrcPort.Set || r.TCPDstPort.Set {
		return TransportTCP
	}
	if r.UDPSrcPort.Set || r.UDPDstPort.Set {
		return TransportUDP
	}
	return TransportOther
}

// AggregateWindow holds the scalar features of one fixed-width time window.
type AggregateWindow struct {
	Index          int64
	WindowStart    float64
	PacketCount    uint64
	ByteCount      uint64
	UniqueSrcCount uint64
	SYNCount       uint64
	ACKCount       uint64
	RSTCount       uint64
	FINCount       uint64

	// Extended features.
	UniqueDstCount uint64
	TCPCount       uint64
	UDPCount       uint64
	ICMPCount      uint64
	OtherCount     uint64
	SrcEntropy     float64
	DstEntropy     float64
}

// AggregateSeries is a dense, gap-free run of windows for one source stream.
// Windows[i].Index == Windows[0].Index + i.
type AggregateSeries struct {
	Source  string
	Delta   float64
	Windows []AggregateWindow
}

// Len returns the number of windows in the series.
func (s AggregateSeries) Len() int {
	return len(s.Windows)
}

// IndexRange returns the first and last window index. ok is false for an empty series.
func (s AggregateSeries) IndexRange() (first, last int64, ok bool) {
	if len(s.Windows) == 0 {
		return 0, 0, false
	}
	return s.Windows[0].Index, s.Windows[len(s.Windows)-1].Index, true
}

// MultivariateTable is the outer join of several series on the window index.
// Values holds one slice per column, each of length len(WindowStart).
type MultivariateTable struct {
	Delta       float64
	Sources     []string
	Index       []int64
	WindowStart []float64
	Columns     []string
	Values      map[string][]float64
	// Coverage[source][row] is true when the source's own range contained the row.
	Coverage map[string][]bool
}

// Rows returns the number of rows in the table.
func (t *MultivariateTable) Rows() int {
	return len(t.WindowStart)
}

// Column returns the values of a named column.
func (t *MultivariateTable) Column(name string) ([]float64, bool) {
	v, ok := t.Values[name]
	return v, ok
}

// SourceStats carries per-source diagnostics from the normalizer and aggregator.
type SourceStats struct {
	Source  string
	Path    string
	Rows    int
	Kept    int
	Dropped int
	Windows int
}

// AggregationResult is the complete output of the aggregation stage.
type AggregationResult struct {
	RunID  string
	Delta  float64
	Series []AggregateSeries
	Table  *MultivariateTable
	Stats  []SourceStats
}

// Per-window feature columns, in CSV order.
var (
	BaseColumns = []string{
		"packet_count", "byte_count", "unique_src_count",
		"syn_count", "ack_count", "rst_count", "fin_count",
	}
	ExtendedColumns = []string{
		"unique_dst_count", "tcp_count", "udp_count", "icmp_count", "other_count",
		"src_entropy", "dst_entropy", "syn_percent", "syn_ack_ratio",
	}
)

// WindowColumns returns the feature columns of a window, optionally with the extended set.
func WindowColumns(extended bool) []string {
	cols := append([]string(nil), BaseColumns...)
	if extended {
		cols = append(cols, ExtendedColumns...)
	}
	return cols
}

// Value returns the named feature of the window. ok is false for an unknown column.
func (w AggregateWindow) Value(column string) (v float64, ok bool) {
	switch column {
	case "packet_count":
		return float64(w.PacketCount), true
	case "byte_count":
		return float64(w.ByteCount), true
	case "unique_src_count":
		return float64(w.UniqueSrcCount), true
	case "syn_count":
		return float64(w.SYNCount), true
	case "ack_count":
		return float64(w.ACKCount), true
	case "rst_count":
		return float64(w.RSTCount), true
	case "fin_count":
		return float64(w.FINCount), true
	case "unique_dst_count":
		return float64(w.UniqueDstCount), true
	case "tcp_count":
		return float64(w.TCPCount), true
	case "udp_count":
		return float64(w.UDPCount), true
	case "icmp_count":
		return float64(w.ICMPCount), true
	case "other_count":
		return float64(w.OtherCount), true
	case "src_entropy":
		return w.SrcEntropy, true
	case "dst_entropy":
		return w.DstEntropy, true
	case "syn_percent":
		return w.SYNPercent(), true
	case "syn_ack_ratio":
		return w.SYNACKRatio(), true
	}
	return 0, false
}

// synACKEpsilon keeps SYNACKRatio finite when a window carries no ACK.
const synACKEpsilon = 1e-9

// SYNPercent is the fraction of the window's packets with SYN set; 0 for an empty window.
func (w AggregateWindow) SYNPercent() float64 {
	if w.PacketCount == 0 {
		return 0
	}
	return float64(w.SYNCount) / float64(w.PacketCount)
}

// SYNACKRatio is SYN/(ACK+1e-9); 0 for an empty window.
func (w AggregateWindow) SYNACKRatio() float64 {
	if w.PacketCount == 0 {
		return 0
	}
	return float64(w.SYNCount) / (float64(w.ACKCount) + synACKEpsilon)
}

// ColumnName prefixes a feature column with its source, e.g. "http_packet_count".
func ColumnName(source, column string) string {
	return source + "_" + column
}
