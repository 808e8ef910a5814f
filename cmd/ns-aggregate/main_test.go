package main

import (
	"DDoSpectra/internal/config"
	"DDoSpectra/internal/model"
	"flag"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, args ...string) (string, func(*config.Config)) {
	t.Helper()
	fs := flag.NewFlagSet("ns-aggregate", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	configPath, override, err := parseFlags(fs, args)
	require.NoError(t, err)
	return configPath, override
}

func TestParseFlags_OnlyExplicitFlagsOverride(t *testing.T) {
	_, override := parse(t, "-source", "udp=udp.tsv")
	cfg := config.Default()
	cfg.Aggregator.Delta = 0.25
	cfg.Aggregator.ExtendedColumns = true
	override(cfg)

	assert.Equal(t, 0.25, cfg.Aggregator.Delta)
	assert.True(t, cfg.Aggregator.ExtendedColumns)
	assert.Equal(t, map[string]string{"udp": "udp.tsv"}, cfg.Aggregator.Sources)
}

func TestParseFlags_InvalidDeltaReachesValidation(t *testing.T) {
	for _, delta := range []string{"0", "-5"} {
		_, override := parse(t, "-delta", delta, "-source", "udp=udp.tsv")
		cfg := config.Default()
		override(cfg)

		var cfgErr *model.ConfigurationError
		require.ErrorAs(t, cfg.ValidateAggregator(), &cfgErr, "delta %s", delta)
		assert.Equal(t, "delta", cfgErr.Param)
		assert.Equal(t, model.ExitConfiguration, run("", override), "delta %s", delta)
	}
}

func TestRun_ZeroDeltaInFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := "aggregator:\n  delta: 0\n  outdir: " + filepath.Join(dir, "out") + "\n  input_sources:\n    udp: udp.tsv\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	configPath, override := parse(t, "-config", path)
	assert.Equal(t, model.ExitConfiguration, run(configPath, override))
	assert.NoDirExists(t, filepath.Join(dir, "out"))
}

func TestParseFlags_BadSource(t *testing.T) {
	fs := flag.NewFlagSet("ns-aggregate", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	_, _, err := parseFlags(fs, []string{"-source", "udp"})
	assert.Error(t, err)
}
