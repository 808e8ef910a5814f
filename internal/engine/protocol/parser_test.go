package protocol

import (
	"DDoSpectra/internal/model"
	"net"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, ts time.Time, l ...gopacket.SerializableLayer) gopacket.Packet {
	t.Helper()
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, l...))
	p := gopacket.NewPacket(buf.Bytes(), layers.LayerTypeEthernet, gopacket.Default)
	p.Metadata().Timestamp = ts
	p.Metadata().Length = len(buf.Bytes())
	p.Metadata().CaptureLength = len(buf.Bytes())
	return p
}

func eth(typ layers.EthernetType) *layers.Ethernet {
	return &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0, 1, 2, 3, 4, 5},
		DstMAC:       net.HardwareAddr{6, 7, 8, 9, 10, 11},
		EthernetType: typ,
	}
}

func ipv4(proto layers.IPProtocol) *layers.IPv4 {
	return &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: proto,
		SrcIP:    net.IP{192, 168, 0, 1},
		DstIP:    net.IP{8, 8, 8, 8},
	}
}

func TestParsePacket_TCPFlags(t *testing.T) {
	ip := ipv4(layers.IPProtocolTCP)
	tcp := &layers.TCP{SrcPort: 40000, DstPort: 443, SYN: true, RST: true, Window: 1024}
	require.NoError(t, tcp.SetNetworkLayerForChecksum(ip))
	ts := time.Unix(1700000000, 250_000_000)

	p := decode(t, ts, eth(layers.EthernetTypeIPv4), ip, tcp)
	rec, err := ParsePacket(p)
	require.NoError(t, err)
	assert.Equal(t, 1700000000.25, rec.Timestamp)
	assert.Equal(t, "192.168.0.1", rec.SrcIP)
	assert.Equal(t, "8.8.8.8", rec.DstIP)
	assert.Equal(t, model.TransportTCP, rec.Protocol)
	assert.Equal(t, model.PortOf(443), rec.TCPDstPort)
	assert.False(t, rec.UDPDstPort.Set)
	assert.True(t, rec.SYN)
	assert.True(t, rec.RST)
	assert.False(t, rec.ACK)
	// 54 header bytes, padded to the 60-byte Ethernet minimum
	assert.Equal(t, uint32(60), rec.Length)
	assert.Equal(t, uint32(p.Metadata().Length), rec.Length)
}

func TestParsePacket_HTTPPayload(t *testing.T) {
	ip := ipv4(layers.IPProtocolTCP)
	tcp := &layers.TCP{SrcPort: 40000, DstPort: 80, ACK: true, PSH: true}
	require.NoError(t, tcp.SetNetworkLayerForChecksum(ip))
	rec, err := ParsePacket(decode(t, time.Unix(1, 0), eth(layers.EthernetTypeIPv4), ip, tcp, gopacket.Payload("GET / HTTP/1.1\r\n\r\n")))
	require.NoError(t, err)
	assert.Equal(t, "HTTP", rec.Protocol)
	assert.Equal(t, model.TransportTCP, rec.Transport())
}

func TestParsePacket_UDPv6(t *testing.T) {
	ip := &layers.IPv6{
		Version:    6,
		NextHeader: layers.IPProtocolUDP,
		HopLimit:   64,
		SrcIP:      net.ParseIP("2001:db8::1"),
		DstIP:      net.ParseIP("2001:db8::2"),
	}
	udp := &layers.UDP{SrcPort: 5000, DstPort: 9999}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip))

	rec, err := ParsePacket(decode(t, time.Unix(2, 0), eth(layers.EthernetTypeIPv6), ip, udp, gopacket.Payload([]byte{1, 2, 3})))
	require.NoError(t, err)
	assert.Equal(t, "2001:db8::1", rec.SrcIP)
	assert.Equal(t, model.TransportUDP, rec.Protocol)
	assert.Equal(t, model.PortOf(9999), rec.UDPDstPort)
	assert.False(t, rec.SYN)
}

func TestParsePacket_ICMP(t *testing.T) {
	icmp := &layers.ICMPv4{TypeCode: layers.CreateICMPv4TypeCode(layers.ICMPv4TypeEchoRequest, 0)}
	rec, err := ParsePacket(decode(t, time.Unix(3, 0), eth(layers.EthernetTypeIPv4), ipv4(layers.IPProtocolICMPv4), icmp))
	require.NoError(t, err)
	assert.Equal(t, model.TransportICMP, rec.Protocol)
	assert.Equal(t, model.TransportICMP, rec.Transport())
}
