// Command ns-analyze runs the signal analysis over a multivariate aggregate table.
package main

import (
	"DDoSpectra/internal/alerter"
	"DDoSpectra/internal/config"
	_ "DDoSpectra/internal/engine/impl/features" // Registers feature writers
	"DDoSpectra/internal/engine/manager"
	"DDoSpectra/internal/logging"
	"DDoSpectra/internal/metrics"
	"DDoSpectra/internal/model"
	"DDoSpectra/internal/notification"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"
)

func main() {
	fs := flag.NewFlagSet("ns-analyze", flag.ContinueOnError)
	configPath, override, err := parseFlags(fs, os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(model.ExitOK)
	}
	if err != nil {
		os.Exit(model.ExitConfiguration)
	}
	os.Exit(run(configPath, override))
}

// parseFlags parses the command line. Only flags given explicitly override the
// configuration.
func parseFlags(fs *flag.FlagSet, args []string) (string, func(*config.Config), error) {
	configPath := fs.String("config", "", "Path to the YAML configuration. Defaults apply when empty.")
	csvPath := fs.String("csv", "", "Multivariate table to analyze. Overrides analyzer.csv_path.")
	outDir := fs.String("outdir", "", "Output directory. Overrides analyzer.outdir.")
	sampleRate := fs.Float64("fs", 0, "Sample rate in Hz. Inferred from window_start when 0.")
	columns := fs.String("columns", "", "Comma-separated columns to analyze. Overrides analyzer.columns.")
	if err := fs.Parse(args); err != nil {
		return "", nil, err
	}

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	return *configPath, func(cfg *config.Config) {
		if set["csv"] {
			cfg.Analyzer.CSVPath = *csvPath
		}
		if set["outdir"] {
			cfg.Analyzer.OutDir = *outDir
		}
		if set["fs"] {
			cfg.Analyzer.FS = *sampleRate
		}
		if set["columns"] {
			cfg.Analyzer.Columns = strings.Split(*columns, ",")
		}
	}, nil
}

func run(configPath string, override func(*config.Config)) int {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ns-analyze: %v\n", err)
		return model.ExitCode(err)
	}
	override(cfg)

	logger := logging.Must(cfg.Logging)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	mgr := manager.NewManager(cfg, logger, m)
	if cfg.Alerter.Enabled && cfg.NATS.Enabled {
		notifier, err := notification.NewNATSNotifier(cfg.NATS, logger)
		if err != nil {
			logger.Error("Failed to connect alert notifier", zap.Error(err))
			return model.ExitFailure
		}
		defer notifier.Close()
		mgr.SetNotifier(notifier)
	}

	report, err := mgr.RunAnalysis(ctx)
	if cfg.Metrics.Textfile != "" {
		if werr := m.WriteTextfile(cfg.Metrics.Textfile); werr != nil {
			logger.Warn("Failed to export metrics", zap.Error(werr))
		}
	}
	if report != nil {
		printReport(report)
	}
	if err != nil {
		logger.Error("Analysis finished with errors", zap.Error(err))
		return model.ExitCode(err)
	}
	return model.ExitOK
}

// printReport writes one line per column and per alert to stdout.
func printReport(report *model.AnalysisReport) {
	fmt.Printf("run_id\t%s\n", report.RunID)
	fmt.Printf("fs\t%g\n", report.SampleRate)
	for i := range report.Features {
		f := &report.Features[i]
		s := f.Summary
		fmt.Printf("column\t%s\tdominant_hz=%.6g\tacf_peak_lag=%d\tacf_peak=%.4f\tmax_abs_z=%.3f\tanomalous=%d\tfailed=%d\n",
			f.Column, s.DominantFrequency, s.ACFPeakLag, s.ACFPeakValue, s.MaxAbsZScore, len(s.AnomalousIntervals), len(f.Errors))
	}
	for _, al := range report.Alerts {
		fmt.Printf("alert\t%s\n", alerter.Message(al))
	}
}
