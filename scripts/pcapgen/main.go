// Command pcapgen writes a synthetic capture with steady background HTTP traffic and
// an ON/OFF pulsing flood (UDP or TCP SYN) on top of it.
package main

import (
	"flag"
	"log"
	"math/rand"
	"net"
	"os"
	"sort"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

type event struct {
	ts    float64
	flood bool
}

var (
	srcMAC = net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}
	dstMAC = net.HardwareAddr{0x00, 0x66, 0x77, 0x88, 0x99, 0xAA}
	victim = net.IP{10, 0, 0, 80}
)

func main() {
	outputFile := flag.String("o", "pulse.pcap", "Output pcap file path")
	duration := flag.Int("duration", 300, "Capture length in seconds")
	start := flag.Float64("start", 1700000000, "Epoch timestamp of the first second")
	period := flag.Int("period", 20, "Flood cycle length in seconds")
	duty := flag.Float64("duty", 0.5, "Fraction of each cycle the flood is ON")
	floodRate := flag.Int("flood-pps", 200, "Flood packets per second while ON")
	bgRate := flag.Int("bg-pps", 20, "Background HTTP packets per second")
	floodProto := flag.String("proto", "udp", "Flood type: udp or syn")
	bots := flag.Int("bots", 64, "Number of distinct flood sources")
	seed := flag.Int64("seed", 1, "Random seed")
	flag.Parse()

	if *period <= 0 || *duty < 0 || *duty > 1 || *bots <= 0 {
		log.Fatalf("Invalid cycle parameters: period=%d duty=%g bots=%d", *period, *duty, *bots)
	}
	if *floodProto != "udp" && *floodProto != "syn" {
		log.Fatalf("Unknown flood type %q", *floodProto)
	}

	rng := rand.New(rand.NewSource(*seed))
	onSeconds := int(float64(*period)**duty + 0.5)

	var events []event
	for s := 0; s < *duration; s++ {
		for i := 0; i < *bgRate; i++ {
			events = append(events, event{ts: float64(s) + rng.Float64()})
		}
		if s%*period < onSeconds {
			for i := 0; i < *floodRate; i++ {
				events = append(events, event{ts: float64(s) + float64(i)/float64(*floodRate), flood: true})
			}
		}
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].ts < events[j].ts })

	f, err := os.Create(*outputFile)
	if err != nil {
		log.Fatalf("Failed to create output file: %v", err)
	}
	defer f.Close()

	pcapWriter := pcapgo.NewWriter(f)
	if err := pcapWriter.WriteFileHeader(65536, layers.LinkTypeEthernet); err != nil {
		log.Fatalf("Failed to write pcap header: %v", err)
	}

	log.Printf("Generating %d packets into %s...", len(events), *outputFile)

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{ComputeChecksums: true, FixLengths: true}
	for i, ev := range events {
		var data []byte
		if ev.flood {
			data, err = floodPacket(buf, opts, rng, *floodProto, *bots)
		} else {
			data, err = httpPacket(buf, opts, rng)
		}
		if err != nil {
			log.Fatalf("Failed to serialize layers: %v", err)
		}

		sec := *start + ev.ts
		ci := gopacket.CaptureInfo{
			Timestamp:     time.Unix(0, int64(sec*1e9)),
			CaptureLength: len(data),
			Length:        len(data),
		}
		if err := pcapWriter.WritePacket(ci, data); err != nil {
			log.Fatalf("Failed to write packet: %v", err)
		}
		if (i+1)%100000 == 0 {
			log.Printf("Generated %d packets...", i+1)
		}
	}

	log.Printf("Successfully generated %d packets into %s.", len(events), *outputFile)
}

func ipv4(src net.IP, proto layers.IPProtocol) (*layers.Ethernet, *layers.IPv4) {
	eth := &layers.Ethernet{SrcMAC: srcMAC, DstMAC: dstMAC, EthernetType: layers.EthernetTypeIPv4}
	ip := &layers.IPv4{SrcIP: src, DstIP: victim, Version: 4, TTL: 64, Protocol: proto}
	return eth, ip
}

// httpPacket is a client request or server acknowledgement on port 80.
func httpPacket(buf gopacket.SerializeBuffer, opts gopacket.SerializeOptions, rng *rand.Rand) ([]byte, error) {
	client := net.IP{192, 168, 1, byte(rng.Intn(32) + 1)}
	eth, ip := ipv4(client, layers.IPProtocolTCP)
	tcp := &layers.TCP{
		SrcPort: layers.TCPPort(rng.Intn(20000) + 40000),
		DstPort: 80,
		Seq:     rng.Uint32(),
		Ack:     rng.Uint32(),
		ACK:     true,
		PSH:     true,
		Window:  14600,
	}
	tcp.SetNetworkLayerForChecksum(ip)
	payload := gopacket.Payload("GET / HTTP/1.1\r\nHost: victim\r\n\r\n")
	if err := gopacket.SerializeLayers(buf, opts, eth, ip, tcp, payload); err != nil {
		return nil, err
	}
	return append([]byte(nil), buf.Bytes()...), nil
}

// floodPacket is one packet of the flood from a random bot.
func floodPacket(buf gopacket.SerializeBuffer, opts gopacket.SerializeOptions, rng *rand.Rand, proto string, bots int) ([]byte, error) {
	bot := rng.Intn(bots)
	src := net.IP{172, 16, byte(bot >> 8), byte(bot)}

	var err error
	if proto == "syn" {
		eth, ip := ipv4(src, layers.IPProtocolTCP)
		tcp := &layers.TCP{
			SrcPort: layers.TCPPort(rng.Intn(64511) + 1024),
			DstPort: 80,
			Seq:     rng.Uint32(),
			SYN:     true,
			Window:  1024,
		}
		tcp.SetNetworkLayerForChecksum(ip)
		err = gopacket.SerializeLayers(buf, opts, eth, ip, tcp)
	} else {
		eth, ip := ipv4(src, layers.IPProtocolUDP)
		udp := &layers.UDP{
			SrcPort: layers.UDPPort(rng.Intn(64511) + 1024),
			DstPort: 5001,
		}
		udp.SetNetworkLayerForChecksum(ip)
		payload := make([]byte, 512)
		rng.Read(payload)
		err = gopacket.SerializeLayers(buf, opts, eth, ip, udp, gopacket.Payload(payload))
	}
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), buf.Bytes()...), nil
}
