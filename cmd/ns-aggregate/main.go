// Command ns-aggregate turns per-source packet tables into aggregate window series
// and their joined multivariate table.
package main

import (
	"DDoSpectra/internal/config"
	_ "DDoSpectra/internal/engine/impl/series" // Registers series writers
	"DDoSpectra/internal/engine/manager"
	"DDoSpectra/internal/logging"
	"DDoSpectra/internal/metrics"
	"DDoSpectra/internal/model"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"go.uber.org/zap"
)

// sourceFlags collects repeated -source name=path flags.
type sourceFlags map[string]string

func (s sourceFlags) String() string {
	parts := make([]string, 0, len(s))
	for name, path := range s {
		parts = append(parts, name+"="+path)
	}
	return strings.Join(parts, ",")
}

func (s sourceFlags) Set(v string) error {
	name, path, ok := strings.Cut(v, "=")
	if !ok || name == "" || path == "" {
		return fmt.Errorf("expected name=path, got %q", v)
	}
	s[name] = path
	return nil
}

func main() {
	fs := flag.NewFlagSet("ns-aggregate", flag.ContinueOnError)
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
// configuration, and their values are passed on unchanged for validation.
func parseFlags(fs *flag.FlagSet, args []string) (string, func(*config.Config), error) {
	configPath := fs.String("config", "", "Path to the YAML configuration. Defaults apply when empty.")
	delta := fs.Float64("delta", 0, "Window width in seconds. Overrides aggregator.delta.")
	outDir := fs.String("outdir", "", "Output directory. Overrides aggregator.outdir.")
	separator := fs.String("separator", "", "Field separator: auto, tab or comma.")
	extended := fs.Bool("extended", false, "Emit the extended per-window columns.")
	sources := sourceFlags{}
	fs.Var(sources, "source", "Input source as name=path. Repeatable; replaces aggregator.input_sources.")
	if err := fs.Parse(args); err != nil {
		return "", nil, err
	}

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	return *configPath, func(cfg *config.Config) {
		if set["delta"] {
			cfg.Aggregator.Delta = *delta
		}
		if set["outdir"] {
			cfg.Aggregator.OutDir = *outDir
		}
		if set["separator"] {
			cfg.Aggregator.Separator = *separator
		}
		if set["extended"] {
			cfg.Aggregator.ExtendedColumns = *extended
		}
		if len(sources) > 0 {
			cfg.Aggregator.Sources = sources
		}
	}, nil
}

func run(configPath string, override func(*config.Config)) int {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ns-aggregate: %v\n", err)
		return model.ExitCode(err)
	}
	override(cfg)

	logger := logging.Must(cfg.Logging)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	mgr := manager.NewManager(cfg, logger, m)
	res, err := mgr.RunAggregation(ctx)
	if cfg.Metrics.Textfile != "" {
		if werr := m.WriteTextfile(cfg.Metrics.Textfile); werr != nil {
			logger.Warn("Failed to export metrics", zap.Error(werr))
		}
	}
	if err != nil {
		logger.Error("Aggregation failed", zap.Error(err))
		return model.ExitCode(err)
	}

	fmt.Printf("run_id\t%s\n", res.RunID)
	for _, st := range res.Stats {
		fmt.Printf("source\t%s\trows=%d\tkept=%d\tdropped=%d\twindows=%d\n",
			st.Source, st.Rows, st.Kept, st.Dropped, st.Windows)
	}
	fmt.Printf("table\t%s\trows=%d\n",
		filepath.Join(cfg.Aggregator.OutDir, cfg.Aggregator.JoinedName+".csv"), res.Table.Rows())
	return model.ExitOK
}
