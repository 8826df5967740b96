package config

import (
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/fieldcanon/internal/dynamo"
	"github.com/san-kum/fieldcanon/internal/field"
)

const (
	DefaultDataDir    = "data"
	DefaultLedger     = "data/ledger.db"
	DefaultLogLevel   = "info"
	DefaultLogFormat  = "text"
	DefaultTraceEvery = 10
)

// Config is the run configuration: file values over defaults, then
// FIELDCANON_* environment variables over the file.
type Config struct {
	Profile    string        `yaml:"profile" env:"FIELDCANON_PROFILE"`
	Preset     string        `yaml:"preset" env:"FIELDCANON_PRESET"`
	Field      dynamo.Config `yaml:"field"`
	TraceEvery int           `yaml:"trace_every" env:"FIELDCANON_TRACE_EVERY"`

	DataDir string `yaml:"data_dir" env:"FIELDCANON_DATA_DIR"`
	Ledger  string `yaml:"ledger" env:"FIELDCANON_LEDGER"`

	LogLevel     string `yaml:"log_level" env:"FIELDCANON_LOG_LEVEL"`
	LogFormat    string `yaml:"log_format" env:"FIELDCANON_LOG_FORMAT"`
	OTelEndpoint string `yaml:"otel_endpoint" env:"FIELDCANON_OTEL_ENDPOINT"`

	// Params overrides individual coefficients, e.g.
	// FIELDCANON_PARAMS="k_coupling:0.2,max_steps:20000".
	Params map[string]float64 `yaml:"params,omitempty" env:"FIELDCANON_PARAMS"`
}

func DefaultConfig() *Config {
	return &Config{
		Profile:    string(field.DefaultProfile),
		Field:      dynamo.DefaultConfig(),
		TraceEvery: DefaultTraceEvery,
		DataDir:    DefaultDataDir,
		Ledger:     DefaultLedger,
		LogLevel:   DefaultLogLevel,
		LogFormat:  DefaultLogFormat,
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ParseEnv overlays environment variables onto cfg.
func ParseEnv(cfg *Config) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Resolve loads path (or the defaults when empty) and applies the
// environment.
func Resolve(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		var err error
		if cfg, err = Load(path); err != nil {
			return nil, err
		}
	}
	if err := ParseEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Coefficients returns the field coefficients with the preset and then
// Params applied, validated.
func (c *Config) Coefficients() (dynamo.Config, error) {
	fc := c.Field
	if c.Preset != "" {
		p, ok := Presets[c.Preset]
		if !ok {
			return fc, dynamo.Newf(dynamo.CodeInvalidConfig, "unknown preset %q", c.Preset)
		}
		fc = fc.Merge(p)
	}
	fc = fc.Merge(c.Params)
	if err := fc.Validate(); err != nil {
		return fc, err
	}
	return fc, nil
}

func (c *Config) FieldProfile() field.Profile {
	return field.ParseProfile(c.Profile)
}

// Exitf prints to stderr and exits 1.
func Exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
