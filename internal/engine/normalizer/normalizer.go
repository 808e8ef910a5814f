// Package normalizer turns tabular per-packet rows (tshark -T fields output) into
// typed packet records. Malformed rows are dropped and counted, never fatal.
package normalizer

import (
	"DDoSpectra/internal/model"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Column names as produced by tshark -T fields -E header=y.
const (
	ColTimestamp      = "frame.time_epoch"
	ColLength         = "frame.len"
	ColSrcIP          = "ip.src"
	ColDstIP          = "ip.dst"
	ColProtocol       = "_ws.col.Protocol"
	ColFrameProtocols = "frame.protocols"
	ColIPProto        = "ip.proto"
	ColTCPSrcPort     = "tcp.srcport"
	ColTCPDstPort     = "tcp.dstport"
	ColUDPSrcPort     = "udp.srcport"
	ColUDPDstPort     = "udp.dstport"
	ColSYN            = "tcp.flags.syn"
	ColACK            = "tcp.flags.ack"
	ColRST            = "tcp.flags.reset"
	ColRSTAlias       = "tcp.flags.rst"
	ColFIN            = "tcp.flags.fin"
)

const (
	defaultMaxWarnings = 20
	maxKeptErrors      = 100
)

// Stats counts what happened to the input rows.
type Stats struct {
	Rows    int
	Kept    int
	Dropped int
}

// Result is the normalized record set of one input.
type Result struct {
	Records []model.PacketRecord
	Stats   Stats
	// Errors holds the first parse errors, for diagnostics.
	Errors []*model.ParseError
}

// Normalizer parses rows of one source. It holds no state between calls.
type Normalizer struct {
	source      string
	logger      *zap.Logger
	maxWarnings int
}

// New creates a normalizer for the named source.
func New(source string, logger *zap.Logger) *Normalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{
		source:      source,
		logger:      logger.With(zap.String("source", source)),
		maxWarnings: defaultMaxWarnings,
	}
}

// Separator resolves the field separator for a path. mode is "auto", "tab" or "comma";
// auto picks tab for .tsv files and comma otherwise.
func Separator(path, mode string) rune {
	switch mode {
	case "tab":
		return '\t'
	case "comma":
		return ','
	}
	if strings.EqualFold(filepath.Ext(path), ".tsv") {
		return '\t'
	}
	return ','
}

// Load opens a capture table and normalizes it.
func (n *Normalizer) Load(path, separatorMode string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &model.ConfigurationError{Param: "input_sources." + n.source, Reason: fmt.Sprintf("file not found: %s", path)}
		}
		return nil, fmt.Errorf("failed to open '%s': %w", path, err)
	}
	defer f.Close()

	res, err := n.Read(f, Separator(path, separatorMode))
	if err != nil {
		var schemaErr *model.SchemaError
		if errors.As(err, &schemaErr) {
			schemaErr.Path = path
		}
		return nil, err
	}
	return res, nil
}

// Read decodes a header row followed by data rows. UTF-8 is assumed unless the input
// starts with a UTF-16 byte order mark.
func (n *Normalizer) Read(r io.Reader, sep rune) (*Result, error) {
	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	cr := csv.NewReader(decoded)
	cr.Comma = sep
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, &model.SchemaError{Column: ColTimestamp}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	cols, err := newColumnIndex(header)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	for row := 1; ; row++ {
		fields, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var csvErr *csv.ParseError
			if !errors.As(err, &csvErr) {
				return nil, fmt.Errorf("failed to read row %d: %w", row, err)
			}
			res.Stats.Rows++
			n.drop(res, &model.ParseError{Row: row, Field: "*", Reason: csvErr.Err.Error()})
			continue
		}
		res.Stats.Rows++
		rec, perr := cols.record(row, fields)
		if perr != nil {
			n.drop(res, perr)
			continue
		}
		res.Records = append(res.Records, rec)
		res.Stats.Kept++
	}

	n.summarize(res)
	return res, nil
}

// Normalize converts an already split table. It is the in-memory form of Read.
func (n *Normalizer) Normalize(header []string, rows [][]string) (*Result, error) {
	cols, err := newColumnIndex(header)
	if err != nil {
		return nil, err
	}
	res := &Result{}
	for i, fields := range rows {
		res.Stats.Rows++
		rec, perr := cols.record(i+1, fields)
		if perr != nil {
			n.drop(res, perr)
			continue
		}
		res.Records = append(res.Records, rec)
		res.Stats.Kept++
	}
	n.summarize(res)
	return res, nil
}

func (n *Normalizer) summarize(res *Result) {
	if res.Stats.Dropped > n.maxWarnings {
		n.logger.Warn("Further malformed rows dropped without individual warnings",
			zap.Int("suppressed", res.Stats.Dropped-n.maxWarnings))
	}
	n.logger.Info("Normalized packet rows",
		zap.Int("rows", res.Stats.Rows),
		zap.Int("kept", res.Stats.Kept),
		zap.Int("dropped", res.Stats.Dropped))
}

func (n *Normalizer) drop(res *Result, perr *model.ParseError) {
	res.Stats.Dropped++
	if len(res.Errors) < maxKeptErrors {
		res.Errors = append(res.Errors, perr)
	}
	if res.Stats.Dropped <= n.maxWarnings {
		n.logger.Warn("Dropping malformed row",
			zap.Int("row", perr.Row),
			zap.String("field", perr.Field),
			zap.String("value", perr.Value),
			zap.String("reason", perr.Reason))
	}
}

// columnIndex maps the known column names to their position in a row; -1 when absent.
type columnIndex struct {
	ts, length                 int
	src, dst                   int
	proto, frameProtos, ipProt int
	tcpSrc, tcpDst             int
	udpSrc, udpDst             int
	syn, ack, rst, fin         int
}

func newColumnIndex(header []string) (*columnIndex, error) {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if _, dup := pos[h]; !dup {
			pos[h] = i
		}
	}
	find := func(names ...string) int {
		for _, name := range names {
			if i, ok := pos[name]; ok {
				return i
			}
		}
		return -1
	}

	c := &columnIndex{
		ts:          find(ColTimestamp),
		length:      find(ColLength),
		src:         find(ColSrcIP),
		dst:         find(ColDstIP),
		proto:       find(ColProtocol, "_ws.col.protocol"),
		frameProtos: find(ColFrameProtocols),
		ipProt:      find(ColIPProto),
		tcpSrc:      find(ColTCPSrcPort),
		tcpDst:      find(ColTCPDstPort),
		udpSrc:      find(ColUDPSrcPort),
		udpDst:      find(ColUDPDstPort),
		syn:         find(ColSYN),
		ack:         find(ColACK),
		rst:         find(ColRST, ColRSTAlias),
		fin:         find(ColFIN),
	}
	if c.ts < 0 {
		return nil, &model.SchemaError{Column: ColTimestamp}
	}
	if c.length < 0 {
		return nil, &model.SchemaError{Column: ColLength}
	}
	return c, nil
}

func field(fields []string, i int) string {
	if i < 0 || i >= len(fields) {
		return ""
	}
	return strings.TrimSpace(fields[i])
}

// first returns the first value of a tshark multi-occurrence cell ("a,b").
func first(v string) string {
	if i := strings.IndexByte(v, ','); i >= 0 {
		return strings.TrimSpace(v[:i])
	}
	return v
}

func (c *columnIndex) record(row int, fields []string) (model.PacketRecord, *model.ParseError) {
	var rec model.PacketRecord

	rawTS := field(fields, c.ts)
	ts, err := strconv.ParseFloat(rawTS, 64)
	if err != nil || math.IsNaN(ts) || math.IsInf(ts, 0) || ts < 0 {
		return rec, &model.ParseError{Row: row, Field: ColTimestamp, Value: rawTS, Reason: "not a non-negative number"}
	}
	rawLen := field(fields, c.length)
	length, ok := parseLength(rawLen)
	if !ok {
		return rec, &model.ParseError{Row: row, Field: ColLength, Value: rawLen, Reason: "not a byte count"}
	}

	rec.Timestamp = ts
	rec.Length = length
	rec.SrcIP = first(field(fields, c.src))
	rec.DstIP = first(field(fields, c.dst))
	rec.Protocol = protocolLabel(field(fields, c.proto), field(fields, c.frameProtos), field(fields, c.ipProt))
	rec.TCPSrcPort = parsePort(field(fields, c.tcpSrc))
	rec.TCPDstPort = parsePort(field(fields, c.tcpDst))
	rec.UDPSrcPort = parsePort(field(fields, c.udpSrc))
	rec.UDPDstPort = parsePort(field(fields, c.udpDst))
	rec.SYN = parseFlag(field(fields, c.syn))
	rec.ACK = parseFlag(field(fields, c.ack))
	rec.RST = parseFlag(field(fields, c.rst))
	rec.FIN = parseFlag(field(fields, c.fin))
	return rec, nil
}

func parseLength(v string) (uint32, bool) {
	if v == "" {
		return 0, false
	}
	if n, err := strconv.ParseUint(v, 10, 32); err == nil {
		return uint32(n), true
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 || f > math.MaxUint32 || f != math.Trunc(f) {
		return 0, false
	}
	return uint32(f), true
}

func parsePort(v string) model.Port {
	v = first(v)
	if v == "" {
		return model.Port{}
	}
	n, err := strconv.ParseUint(v, 10, 16)
	if err != nil {
		return model.Port{}
	}
	return model.PortOf(uint16(n))
}

func parseFlag(v string) bool {
	v = strings.ToLower(first(v))
	switch v {
	case "", "not set":
		return false
	case "set":
		return true
	}
	if b, err := strconv.ParseBool(v); err == nil {
		return b
	}
	if n, err := strconv.ParseInt(v, 0, 64); err == nil {
		return n != 0
	}
	return false
}

// protocolLabel picks the best available protocol column, upper-cased.
func protocolLabel(colProtocol, frameProtocols, ipProto string) string {
	if colProtocol != "" {
		return strings.ToUpper(colProtocol)
	}
	if frameProtocols != "" {
		return strings.ToUpper(frameProtocols)
	}
	if ipProto != "" {
		switch first(ipProto) {
		case "6":
			return model.TransportTCP
		case "17":
			return model.TransportUDP
		case "1":
			return model.TransportICMP
		case "58":
			return "ICMPV6"
		}
		return model.TransportOther
	}
	return ""
}
