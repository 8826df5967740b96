package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/san-kum/fieldcanon/internal/config"
	"github.com/san-kum/fieldcanon/internal/dynamo"
	"github.com/san-kum/fieldcanon/internal/ledger"
	"github.com/san-kum/fieldcanon/internal/logging"
	"github.com/san-kum/fieldcanon/internal/storage"
	"github.com/san-kum/fieldcanon/internal/telemetry"
)

var (
	configFile string
	dataDir    string
	ledgerPath string
	logLevel   string
	logFormat  string
	profile    string
	preset     string
	params     []string
	traceEvery int

	cfg      *config.Config
	logger   *slog.Logger
	shutdown func(context.Context) error
)

func main() {
	rootCmd := &cobra.Command{
		Use:                "fieldcanon",
		Short:              "deterministic field compiler with governed, audited access",
		SilenceUsage:       true,
		PersistentPreRunE:  setup,
		PersistentPostRunE: teardown,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "config file path (yaml)")
	pf.StringVar(&dataDir, "data", config.DefaultDataDir, "data directory")
	pf.StringVar(&ledgerPath, "ledger", config.DefaultLedger, "sqlite audit ledger")
	pf.StringVar(&logLevel, "log-level", config.DefaultLogLevel, "trace, debug, info, warn or error")
	pf.StringVar(&logFormat, "log-format", config.DefaultLogFormat, "text or json")
	pf.StringVar(&profile, "profile", "", "input profile")
	pf.StringVar(&preset, "preset", "", "coefficient preset")
	pf.StringSliceVar(&params, "param", nil, "coefficient override key=value (repeatable)")
	pf.IntVar(&traceEvery, "trace-every", config.DefaultTraceEvery, "keep every n-th state in the trace")

	rootCmd.AddCommand(
		compileCmd(),
		stepCmd(),
		liveCmd(),
		sweepCmd(),
		monteCarloCmd(),
		analyzeCmd(),
		bifurcateCmd(),
		optimizeCmd(),
		actCmd(),
		replayCmd(),
		auditCmd(),
		runsCmd(),
		plotCmd(),
		projectCmd(),
		profilesCmd(),
		sectorsCmd(),
		presetsCmd(),
	)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		if code := dynamo.CodeOf(err); code != dynamo.CodeUnknown {
			fmt.Fprintf(os.Stderr, "code: %s\n", code)
		}
		os.Exit(1)
	}
}

// setup resolves the configuration: file, then environment, then any flag
// the user set explicitly.
func setup(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Resolve(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("data") {
		cfg.DataDir = dataDir
	}
	if flags.Changed("ledger") {
		cfg.Ledger = ledgerPath
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = logFormat
	}
	if flags.Changed("profile") {
		cfg.Profile = profile
	}
	if flags.Changed("preset") {
		cfg.Preset = preset
	}
	if flags.Changed("trace-every") {
		cfg.TraceEvery = traceEvery
	}
	if len(params) > 0 {
		overrides, err := parseParams(params)
		if err != nil {
			return err
		}
		if cfg.Params == nil {
			cfg.Params = make(map[string]float64, len(overrides))
		}
		for k, v := range overrides {
			cfg.Params[k] = v
		}
	}

	logger = logging.NewLogger(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	slog.SetDefault(logger)

	shutdown, err = telemetry.Setup(cmd.Context(), "fieldcanon", cfg.OTelEndpoint)
	if err != nil {
		logger.Warn("tracing disabled", "err", err)
	}
	return nil
}

func teardown(cmd *cobra.Command, args []string) error {
	if shutdown == nil {
		return nil
	}
	return shutdown(cmd.Context())
}

func parseParams(kvs []string) (map[string]float64, error) {
	out := make(map[string]float64, len(kvs))
	for _, kv := range kvs {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, fmt.Errorf("param %q: expected key=value", kv)
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Errorf("param %q: %w", kv, err)
		}
		out[strings.TrimSpace(k)] = f
	}
	return out, nil
}

func coefficients() dynamo.Config {
	fc, err := cfg.Coefficients()
	if err != nil {
		config.Exitf("invalid configuration: %v", err)
	}
	return fc
}

func openStore() (*storage.Store, error) {
	st := storage.New(cfg.DataDir)
	if err := st.Init(); err != nil {
		return nil, err
	}
	return st, nil
}

func openLedger() (*ledger.Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Ledger), 0o755); err != nil {
		return nil, err
	}
	return ledger.Open(cfg.Ledger, nil)
}
