package main

import (
	"DDoSpectra/internal/model"
	"DDoSpectra/pkg/pcap"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
)

func main() {
	limit := flag.Int("n", 5, "Number of records to print; the rest are only counted")
	flag.Parse()
	if flag.NArg() < 1 {
		fmt.Println("Usage: go run ./scripts/pcapana/main.go [-n 5] <path_to_pcap_file>")
		os.Exit(1)
	}

	reader, err := pcap.NewReader(flag.Arg(0), nil)
	if err != nil {
		log.Fatal(err)
	}
	defer reader.Close()

	records := make(chan *model.PacketRecord, 1024)
	errCh := make(chan error, 1)
	go func() {
		errCh <- reader.ReadRecords(context.Background(), records)
	}()

	i := 0
	perProto := map[string]int{}
	var first, last float64
	for rec := range records {
		if i == 0 {
			first = rec.Timestamp
		}
		last = rec.Timestamp
		perProto[rec.Protocol]++
		i++
		if i <= *limit {
			fmt.Printf("[%.6f] %s -> %s proto=%s transport=%s syn=%t len=%d\n",
				rec.Timestamp, rec.SrcIP, rec.DstIP, rec.Protocol, rec.Transport(), rec.SYN, rec.Length)
		}
	}
	if err := <-errCh; err != nil {
		log.Fatal(err)
	}

	fmt.Printf("==== %d packets over %.3f s, %d skipped ====\n", i, last-first, reader.Skipped)
	protos := make([]string, 0, len(perProto))
	for p := range perProto {
		protos = append(protos, p)
	}
	sort.Strings(protos)
	for _, p := range protos {
		fmt.Printf("%-8s %d\n", p, perProto[p])
	}
}
