package config

import (
	"DDoSpectra/internal/model"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ClickHouseConfig holds the connection details for a ClickHouse writer.
type ClickHouseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Table    string `yaml:"table"`
}

// WriterDef defines a single output writer of a stage.
type WriterDef struct {
	Type       string           `yaml:"type"`
	Enabled    bool             `yaml:"enabled"`
	ClickHouse ClickHouseConfig `yaml:"clickhouse"`
}

// AggregatorConfig holds the configuration for the aggregation stage.
type AggregatorConfig struct {
	Delta           float64           `yaml:"delta"`
	Sources         map[string]string `yaml:"input_sources"`
	OutDir          string            `yaml:"outdir"`
	Separator       string            `yaml:"separator"`
	JoinedName      string            `yaml:"joined_name"`
	ExtendedColumns bool              `yaml:"extended_columns"`
	CoverageColumns bool              `yaml:"coverage_columns"`
	Writers         []WriterDef       `yaml:"writers"`
}

// SpectralConfig holds the segmenting parameters of PSD or STFT.
// A zero SegmentLength selects the length automatically.
type SpectralConfig struct {
	SegmentLength int     `yaml:"segment_length"`
	Overlap       float64 `yaml:"overlap"`
	MinSegments   int     `yaml:"min_segments"`
}

// AnalyzerConfig holds the configuration for the signal-analysis stage.
type AnalyzerConfig struct {
	CSVPath    string         `yaml:"csv_path"`
	OutDir     string         `yaml:"outdir"`
	FS         float64        `yaml:"fs"`
	Columns    []string       `yaml:"columns"`
	Detrend    string         `yaml:"detrend"`
	ZWindow    int            `yaml:"zscore_window"`
	ZThreshold float64        `yaml:"zscore_threshold"`
	MaxLag     int            `yaml:"max_lag"`
	PSD        SpectralConfig `yaml:"psd"`
	STFT       SpectralConfig `yaml:"stft"`
	Writers    []WriterDef    `yaml:"writers"`
}

// AlerterRule defines a single threshold rule over a column's feature summary.
type AlerterRule struct {
	Name      string  `yaml:"name"`
	Column    string  `yaml:"column"`
	Metric    string  `yaml:"metric"`
	Operator  string  `yaml:"operator"`
	Threshold float64 `yaml:"threshold"`
}

// AlerterConfig holds the alert rules.
type AlerterConfig struct {
	Enabled bool          `yaml:"enabled"`
	Rules   []AlerterRule `yaml:"rules"`
}

// NATSConfig holds the settings of the NATS alert notifier.
type NATSConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// APIConfig holds the settings of the HTTP API.
type APIConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	// DataDir is the only directory the API reads tables from.
	DataDir string `yaml:"data_dir"`
}

// IntegrityConfig controls the checksum manifest written after each stage.
type IntegrityConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Algorithm string `yaml:"algorithm"`
	Manifest  string `yaml:"manifest"`
}

// MetricsConfig controls the prometheus textfile export of batch runs.
type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

// LoggingConfig controls the zap logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config is the top-level configuration struct for the entire application.
type Config struct {
	Logging    LoggingConfig    `yaml:"logging"`
	Aggregator AggregatorConfig `yaml:"aggregator"`
	Analyzer   AnalyzerConfig   `yaml:"analyzer"`
	Alerter    AlerterConfig    `yaml:"alerter"`
	NATS       NATSConfig       `yaml:"nats"`
	API        APIConfig        `yaml:"api"`
	Integrity  IntegrityConfig  `yaml:"integrity"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := newConfig()
	cfg.applyDefaults()
	return cfg
}

// newConfig presets the numeric defaults whose zero value is a valid setting, so an
// explicit 0 in the file survives unmarshalling and reaches validation.
func newConfig() *Config {
	return &Config{
		Aggregator: AggregatorConfig{Delta: 1.0},
		Analyzer: AnalyzerConfig{
			ZThreshold: 3,
			PSD:        SpectralConfig{Overlap: 0.5, MinSegments: 4},
		},
	}
}

// LoadConfig reads the configuration from a YAML file and returns a Config struct.
// Absent fields take their default values.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := newConfig()
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

// Load reads filePath, or returns the defaults when filePath is empty. Failures are
// reported as a ConfigurationError on "config".
func Load(filePath string) (*Config, error) {
	if filePath == "" {
		return Default(), nil
	}
	cfg, err := LoadConfig(filePath)
	if err != nil {
		return nil, &model.ConfigurationError{Param: "config", Reason: err.Error()}
	}
	return cfg, nil
}

// applyDefaults fills the fields whose zero value means "unset".
func (c *Config) applyDefaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}

	a := &c.Aggregator
	if a.OutDir == "" {
		a.OutDir = "data/agg"
	}
	if a.Separator == "" {
		a.Separator = "auto"
	}
	if a.JoinedName == "" {
		a.JoinedName = "multivar_agg"
	}
	if len(a.Writers) == 0 {
		a.Writers = []WriterDef{{Type: "csv", Enabled: true}}
	}

	an := &c.Analyzer
	if an.CSVPath == "" {
		an.CSVPath = "data/agg/multivar_agg.csv"
	}
	if an.OutDir == "" {
		an.OutDir = "figs"
	}
	if an.Detrend == "" {
		an.Detrend = "linear"
	}
	if len(an.Writers) == 0 {
		an.Writers = []WriterDef{
			{Type: "csv", Enabled: true},
			{Type: "figures", Enabled: true},
			{Type: "report", Enabled: true},
		}
	}

	if c.NATS.Subject == "" {
		c.NATS.Subject = "ddospectra.alerts"
	}
	if c.API.ListenAddr == "" {
		c.API.ListenAddr = ":8080"
	}
	if c.API.DataDir == "" {
		c.API.DataDir = a.OutDir
	}
	if c.Integrity.Algorithm == "" {
		c.Integrity.Algorithm = "sha256"
	}
	if c.Integrity.Manifest == "" {
		c.Integrity.Manifest = "SHA256SUMS"
	}
}

// SourceNames returns the configured source names in a stable order.
func (a *AggregatorConfig) SourceNames() []string {
	names := make([]string, 0, len(a.Sources))
	for name := range a.Sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateAggregator checks the options of the aggregation stage.
func (c *Config) ValidateAggregator() error {
	a := c.Aggregator
	if math.IsNaN(a.Delta) || math.IsInf(a.Delta, 0) || a.Delta <= 0 {
		return &model.ConfigurationError{Param: "delta", Reason: fmt.Sprintf("must be a finite value > 0, got %g", a.Delta)}
	}
	if len(a.Sources) == 0 {
		return &model.ConfigurationError{Param: "input_sources", Reason: "no source provided"}
	}
	for name, path := range a.Sources {
		if name == "" || strings.ContainsAny(name, ",/\\ ") {
			return &model.ConfigurationError{Param: "input_sources", Reason: fmt.Sprintf("invalid source name %q", name)}
		}
		if path == "" {
			return &model.ConfigurationError{Param: "input_sources." + name, Reason: "empty path"}
		}
	}
	switch a.Separator {
	case "auto", "tab", "comma":
	default:
		return &model.ConfigurationError{Param: "separator", Reason: fmt.Sprintf("unknown separator %q", a.Separator)}
	}
	return nil
}

// ValidateAnalyzer checks the options of the analysis stage.
func (c *Config) ValidateAnalyzer() error {
	an := c.Analyzer
	if math.IsNaN(an.FS) || math.IsInf(an.FS, 0) || an.FS < 0 {
		return &model.ConfigurationError{Param: "fs", Reason: fmt.Sprintf("must be a finite value >= 0, got %g", an.FS)}
	}
	switch an.Detrend {
	case "linear", "constant", "none":
	default:
		return &model.ConfigurationError{Param: "detrend", Reason: fmt.Sprintf("unknown mode %q", an.Detrend)}
	}
	if math.IsNaN(an.ZThreshold) || an.ZThreshold <= 0 {
		return &model.ConfigurationError{Param: "zscore_threshold", Reason: fmt.Sprintf("must be > 0, got %g", an.ZThreshold)}
	}
	if an.ZWindow < 0 {
		return &model.ConfigurationError{Param: "zscore_window", Reason: "must be >= 0"}
	}
	if an.MaxLag < 0 {
		return &model.ConfigurationError{Param: "max_lag", Reason: "must be >= 0"}
	}
	for name, sc := range map[string]SpectralConfig{"psd": an.PSD, "stft": an.STFT} {
		if sc.Overlap < 0 || sc.Overlap >= 1 {
			return &model.ConfigurationError{Param: name + ".overlap", Reason: fmt.Sprintf("must be in [0, 1), got %g", sc.Overlap)}
		}
		if sc.SegmentLength < 0 {
			return &model.ConfigurationError{Param: name + ".segment_length", Reason: "must be >= 0"}
		}
		if sc.MinSegments < 0 {
			return &model.ConfigurationError{Param: name + ".min_segments", Reason: "must be >= 0"}
		}
	}
	return nil
}
