// Command ns-extract converts an offline pcap or pcapng capture into the packet table
// read by ns-aggregate.
package main

import (
	"DDoSpectra/internal/config"
	"DDoSpectra/internal/fsutil"
	"DDoSpectra/internal/logging"
	"DDoSpectra/internal/model"
	"DDoSpectra/pkg/pcap"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
)

const recordBuffer = 1024

func main() {
	in := flag.String("in", "", "Capture file to read (pcap or pcapng).")
	out := flag.String("out", "", "TSV file to write. Stdout when empty.")
	level := flag.String("log-level", "info", "Log level: debug, info, warn or error.")
	flag.Parse()

	if *in == "" {
		fmt.Fprintln(os.Stderr, "ns-extract: -in is required")
		flag.Usage()
		os.Exit(model.ExitConfiguration)
	}

	logger := logging.Must(config.LoggingConfig{Level: *level, Format: "console"})
	defer logger.Sync()

	os.Exit(run(*in, *out, logger))
}

func run(in, out string, logger *zap.Logger) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reader, err := pcap.NewReader(in, logger)
	if err != nil {
		logger.Error("Failed to open capture", zap.Error(err))
		return model.ExitCode(err)
	}
	defer reader.Close()

	var rows int
	extract := func(w io.Writer) error {
		tw, err := pcap.NewTSVWriter(w)
		if err != nil {
			return err
		}
		records := make(chan *model.PacketRecord, recordBuffer)
		errCh := make(chan error, 1)
		go func() {
			errCh <- reader.ReadRecords(ctx, records)
		}()

		var writeErr error
		for rec := range records {
			if writeErr != nil {
				continue
			}
			writeErr = tw.Write(rec)
		}
		if err := <-errCh; err != nil {
			return err
		}
		if writeErr != nil {
			return writeErr
		}
		rows = tw.Rows()
		return tw.Flush()
	}

	if out == "" {
		err = extract(os.Stdout)
	} else {
		err = fsutil.WriteAtomic(out, extract)
	}
	if err != nil {
		logger.Error("Extraction failed", zap.Error(err))
		return model.ExitCode(err)
	}
	logger.Info("Extraction finished",
		zap.String("in", in),
		zap.Int("rows", rows),
		zap.Int("skipped", reader.Skipped))
	return model.ExitOK
}
