package protocol

import (
	"DDoSpectra/internal/model"
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// ParsePacket extracts a packet record from a decoded packet. Frames without an IP
// layer still yield a record carrying only time, length and protocol label.
func ParsePacket(packet gopacket.Packet) (*model.PacketRecord, error) {
	if packet.NetworkLayer() == nil && packet.ErrorLayer() != nil {
		return nil, fmt.Errorf("undecodable frame: %w", packet.ErrorLayer().Error())
	}

	rec := &model.PacketRecord{Length: uint32(len(packet.Data()))}
	if meta := packet.Metadata(); meta != nil {
		rec.Timestamp = float64(meta.Timestamp.Unix()) + float64(meta.Timestamp.Nanosecond())/1e9
		if meta.Length > 0 {
			rec.Length = uint32(meta.Length)
		}
	}
	if rec.Timestamp < 0 {
		return nil, fmt.Errorf("negative capture timestamp %f", rec.Timestamp)
	}

	rec.Protocol = "OTHER"
	if l := packet.Layer(layers.LayerTypeIPv4); l != nil {
		ip := l.(*layers.IPv4)
		rec.SrcIP = ip.SrcIP.String()
		rec.DstIP = ip.DstIP.String()
		rec.Protocol = "IPV4"
	} else if l := packet.Layer(layers.LayerTypeIPv6); l != nil {
		ip := l.(*layers.IPv6)
		rec.SrcIP = ip.SrcIP.String()
		rec.DstIP = ip.DstIP.String()
		rec.Protocol = "IPV6"
	} else if packet.Layer(layers.LayerTypeARP) != nil {
		rec.Protocol = "ARP"
	}

	if l := packet.Layer(layers.LayerTypeTCP); l != nil {
		tcp := l.(*layers.TCP)
		rec.TCPSrcPort = model.PortOf(uint16(tcp.SrcPort))
		rec.TCPDstPort = model.PortOf(uint16(tcp.DstPort))
		rec.SYN, rec.ACK, rec.RST, rec.FIN = tcp.SYN, tcp.ACK, tcp.RST, tcp.FIN
		rec.Protocol = model.TransportTCP
		if len(tcp.Payload) > 0 && (tcp.DstPort == 80 || tcp.SrcPort == 80) {
			rec.Protocol = "HTTP"
		}
	} else if l := packet.Layer(layers.LayerTypeUDP); l != nil {
		udp := l.(*layers.UDP)
		rec.UDPSrcPort = model.PortOf(uint16(udp.SrcPort))
		rec.UDPDstPort = model.PortOf(uint16(udp.DstPort))
		rec.Protocol = model.TransportUDP
		if packet.Layer(layers.LayerTypeDNS) != nil {
			rec.Protocol = "DNS"
		}
	} else if packet.Layer(layers.LayerTypeICMPv4) != nil {
		rec.Protocol = model.TransportICMP
	} else if packet.Layer(layers.LayerTypeICMPv6) != nil {
		rec.Protocol = "ICMPV6"
	}
	return rec, nil
}
