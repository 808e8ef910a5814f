package pcap

import (
	"DDoSpectra/internal/engine/protocol"
	"DDoSpectra/internal/model"
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"go.uber.org/zap"
)

var pcapngMagic = []byte{0x0a, 0x0d, 0x0d, 0x0a}

// Reader reads packets from an offline pcap or pcapng file.
type Reader struct {
	file     *os.File
	source   gopacket.PacketDataSource
	linkType layers.LinkType
	logger   *zap.Logger

	Skipped int
}

// NewReader opens a capture file. The format is detected from the file magic.
func NewReader(filePath string, logger *zap.Logger) (*Reader, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	f, err := os.Open(filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &model.ConfigurationError{Param: "pcap", Reason: fmt.Sprintf("file not found: %s", filePath)}
		}
		return nil, fmt.Errorf("failed to open capture '%s': %w", filePath, err)
	}

	br := bufio.NewReader(f)
	magic, err := br.Peek(4)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to read capture header: %w", err)
	}

	r := &Reader{file: f, logger: logger}
	if bytes.Equal(magic, pcapngMagic) {
		ng, err := pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to read pcapng header: %w", err)
		}
		r.source, r.linkType = ng, ng.LinkType()
	} else {
		pr, err := pcapgo.NewReader(br)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to read pcap header: %w", err)
		}
		r.source, r.linkType = pr, pr.LinkType()
	}
	return r, nil
}

// Close closes the capture file.
func (r *Reader) Close() error {
	return r.file.Close()
}

// ReadRecords decodes every packet and sends the parsed records to out. It closes
// out when the file is exhausted or ctx is cancelled.
func (r *Reader) ReadRecords(ctx context.Context, out chan<- *model.PacketRecord) error {
	defer close(out)

	src := gopacket.NewPacketSource(r.source, r.linkType)
	src.DecodeOptions = gopacket.DecodeOptions{Lazy: true, NoCopy: true}
	for {
		packet, err := src.NextPacket()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read packet: %w", err)
		}
		rec, err := protocol.ParsePacket(packet)
		if err != nil {
			r.Skipped++
			r.logger.Debug("Skipping packet", zap.Error(err))
			continue
		}
		select {
		case out <- rec:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
