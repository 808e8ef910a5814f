package pcap

import (
	"DDoSpectra/internal/engine/normalizer"
	"DDoSpectra/internal/model"
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// writeCapture writes n UDP packets spaced by gap starting at start.
func writeCapture(t *testing.T, n int, start time.Time, gap time.Duration) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.pcap")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := pcapgo.NewWriter(f)
	require.NoError(t, w.WriteFileHeader(65536, layers.LinkTypeEthernet))
	for i := 0; i < n; i++ {
		eth := &layers.Ethernet{
			SrcMAC:       net.HardwareAddr{0, 1, 2, 3, 4, 5},
			DstMAC:       net.HardwareAddr{6, 7, 8, 9, 10, 11},
			EthernetType: layers.EthernetTypeIPv4,
		}
		ip := &layers.IPv4{Version: 4, TTL: 64, Protocol: layers.IPProtocolUDP,
			SrcIP: net.IP{10, 0, 0, byte(i + 1)}, DstIP: net.IP{10, 0, 1, 1}}
		udp := &layers.UDP{SrcPort: layers.UDPPort(30000 + i), DstPort: 7777}
		require.NoError(t, udp.SetNetworkLayerForChecksum(ip))
		buf := gopacket.NewSerializeBuffer()
		require.NoError(t, gopacket.SerializeLayers(buf, gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true},
			eth, ip, udp, gopacket.Payload(make([]byte, 100))))
		data := buf.Bytes()
		ci := gopacket.CaptureInfo{Timestamp: start.Add(time.Duration(i) * gap), CaptureLength: len(data), Length: len(data)}
		require.NoError(t, w.WritePacket(ci, data))
	}
	return path
}

func TestReader_ReadRecords(t *testing.T) {
	path := writeCapture(t, 5, time.Unix(1000, 0), 500*time.Millisecond)
	reader, err := NewReader(path, zap.NewNop())
	require.NoError(t, err)
	defer reader.Close()

	out := make(chan *model.PacketRecord)
	errc := make(chan error, 1)
	go func() { errc <- reader.ReadRecords(context.Background(), out) }()

	var recs []*model.PacketRecord
	for rec := range out {
		recs = append(recs, rec)
	}
	require.NoError(t, <-errc)
	require.Len(t, recs, 5)
	assert.Equal(t, 1000.0, recs[0].Timestamp)
	assert.Equal(t, 1002.0, recs[4].Timestamp)
	assert.Equal(t, "10.0.0.3", recs[2].SrcIP)
	assert.Equal(t, model.TransportUDP, recs[2].Protocol)
	assert.Equal(t, uint32(14+20+8+100), recs[0].Length)
	assert.Zero(t, reader.Skipped)
}

func TestNewReader_MissingFile(t *testing.T) {
	_, err := NewReader(filepath.Join(t.TempDir(), "none.pcap"), nil)
	assert.Equal(t, model.ExitConfiguration, model.ExitCode(err))
}

func TestTSVWriter_RoundTripThroughNormalizer(t *testing.T) {
	recs := []*model.PacketRecord{
		{Timestamp: 12.5, SrcIP: "10.0.0.1", DstIP: "10.0.0.2", Protocol: "TCP",
			TCPSrcPort: model.PortOf(1234), TCPDstPort: model.PortOf(80), SYN: true, Length: 60},
		{Timestamp: 13.25, SrcIP: "10.0.0.3", DstIP: "10.0.0.2", Protocol: "UDP",
			UDPSrcPort: model.PortOf(53), UDPDstPort: model.PortOf(5353), Length: 90},
	}
	var buf bytes.Buffer
	w, err := NewTSVWriter(&buf)
	require.NoError(t, err)
	for _, rec := range recs {
		require.NoError(t, w.Write(rec))
	}
	require.NoError(t, w.Flush())
	assert.Equal(t, 2, w.Rows())

	res, err := normalizer.New("x", nil).Read(&buf, '\t')
	require.NoError(t, err)
	require.Len(t, res.Records, 2)
	assert.Equal(t, *recs[0], res.Records[0])
	assert.Equal(t, *recs[1], res.Records[1])
}
