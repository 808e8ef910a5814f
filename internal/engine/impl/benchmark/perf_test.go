package test

import (
	"DDoSpectra/internal/engine/aggregator"
	"DDoSpectra/internal/engine/dsp"
	"DDoSpectra/internal/engine/merger"
	"DDoSpectra/internal/model"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"testing"
)

// pulseRecords simulates an hour of background traffic with a 20 s ON/OFF flood.
func pulseRecords(n int) []model.PacketRecord {
	rng := rand.New(rand.NewSource(7))
	records := make([]model.PacketRecord, 0, n)
	for len(records) < n {
		ts := 1.7e9 + rng.Float64()*3600
		flood := int(ts)%20 < 10 && rng.Intn(4) > 0
		rec := model.PacketRecord{
			Timestamp: ts,
			SrcIP:     fmt.Sprintf("192.168.%d.%d", rng.Intn(4), rng.Intn(256)),
			DstIP:     "10.0.0.80",
			Protocol:  "HTTP",
			Length:    uint32(60 + rng.Intn(1400)),
			ACK:       true,
		}
		if flood {
			rec.SrcIP = fmt.Sprintf("172.16.0.%d", rng.Intn(64))
			rec.Protocol = "UDP"
			rec.UDPDstPort = model.PortOf(5001)
			rec.ACK = false
		}
		records = append(records, rec)
	}
	return records
}

func BenchmarkAggregate(b *testing.B) {
	records := pulseRecords(200000)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := aggregator.Aggregate("udp", records, 1); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkAggregate_Parallel(b *testing.B) {
	const sources = 4
	records := pulseRecords(200000)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		series := make([]model.AggregateSeries, sources)
		var wg sync.WaitGroup
		wg.Add(sources)
		for s := 0; s < sources; s++ {
			go func(slot int) {
				defer wg.Done()
				series[slot], _ = aggregator.Aggregate(fmt.Sprintf("src%d", slot), records, 1)
			}(s)
		}
		wg.Wait()
		if _, err := merger.Merge(series...); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkAnalyze(b *testing.B) {
	opts := dsp.DefaultOptions()
	opts.MaxLag = 600
	for _, n := range []int{600, 3600, 14400} {
		x := make([]float64, n)
		for t := range x {
			x[t] = 100 + 50*math.Sin(2*math.Pi*float64(t)/20)
		}
		b.Run(fmt.Sprintf("n=%d", n), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				f := dsp.Analyze("udp_packet_count", x, 1, opts)
				if len(f.Errors) > 0 {
					b.Fatalf("unexpected feature errors: %v", f.Errors)
				}
			}
		})
	}
}
