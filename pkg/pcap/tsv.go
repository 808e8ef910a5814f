package pcap

import (
	"DDoSpectra/internal/engine/normalizer"
	"DDoSpectra/internal/model"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// TSVColumns is the header of the extractor output, in tshark -T fields order.
var TSVColumns = []string{
	normalizer.ColTimestamp,
	normalizer.ColSrcIP,
	normalizer.ColDstIP,
	normalizer.ColProtocol,
	normalizer.ColTCPSrcPort,
	normalizer.ColTCPDstPort,
	normalizer.ColUDPSrcPort,
	normalizer.ColUDPDstPort,
	normalizer.ColSYN,
	normalizer.ColACK,
	normalizer.ColRST,
	normalizer.ColFIN,
	normalizer.ColLength,
}

// TSVWriter writes packet records as tab-separated rows with a header.
type TSVWriter struct {
	w    *csv.Writer
	rows int
}

// NewTSVWriter writes the header and returns the writer.
func NewTSVWriter(w io.Writer) (*TSVWriter, error) {
	cw := csv.NewWriter(w)
	cw.Comma = '\t'
	if err := cw.Write(TSVColumns); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	return &TSVWriter{w: cw}, nil
}

func port(p model.Port) string {
	if !p.Set {
		return ""
	}
	return strconv.FormatUint(uint64(p.Num), 10)
}

func flag(rec *model.PacketRecord, v bool) string {
	if !rec.TCPSrcPort.Set && !rec.TCPDstPort.Set {
		return ""
	}
	if v {
		return "1"
	}
	return "0"
}

// Write appends one record.
func (t *TSVWriter) Write(rec *model.PacketRecord) error {
	row := []string{
		strconv.FormatFloat(rec.Timestamp, 'f', 6, 64),
		rec.SrcIP,
		rec.DstIP,
		rec.Protocol,
		port(rec.TCPSrcPort),
		port(rec.TCPDstPort),
		port(rec.UDPSrcPort),
		port(rec.UDPDstPort),
		flag(rec, rec.SYN),
		flag(rec, rec.ACK),
		flag(rec, rec.RST),
		flag(rec, rec.FIN),
		strconv.FormatUint(uint64(rec.Length), 10),
	}
	if err := t.w.Write(row); err != nil {
		return err
	}
	t.rows++
	return nil
}

// Flush flushes buffered rows and reports the first write error.
func (t *TSVWriter) Flush() error {
	t.w.Flush()
	return t.w.Error()
}

// Rows returns the number of records written.
func (t *TSVWriter) Rows() int {
	return t.rows
}
