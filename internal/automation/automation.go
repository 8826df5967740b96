package automation

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"github.com/san-kum/fieldcanon/internal/audit"
	"github.com/san-kum/fieldcanon/internal/dynamo"
	"github.com/san-kum/fieldcanon/internal/experiment"
	"github.com/san-kum/fieldcanon/internal/field"
	"github.com/san-kum/fieldcanon/internal/guard"
	"github.com/san-kum/fieldcanon/internal/logging"
	"github.com/san-kum/fieldcanon/internal/metrics"
	"gopkg.in/yaml.v3"
)

// Script defines a governed session: an optional compile followed by a
// sequence of audited actions.
type Script struct {
	Name        string             `yaml:"name"`
	Description string             `yaml:"description"`
	Input       string             `yaml:"input"`
	Profile     string             `yaml:"profile"`
	Compile     bool               `yaml:"compile"`
	Params      map[string]float64 `yaml:"params"`
	Actions     []ScriptAction     `yaml:"actions"`
	Seal        bool               `yaml:"seal"`
}

// ScriptAction is a single step in a script. A nil Preset means the
// action's own sector (or none for non-sector actions).
type ScriptAction struct {
	Action string `yaml:"action"`
	Preset *int   `yaml:"preset"`
	Repeat int    `yaml:"repeat"`
}

// LoadScript loads a script from a YAML file
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseScript(data)
}

func ParseScript(data []byte) (*Script, error) {
	var script Script
	if err := yaml.Unmarshal(data, &script); err != nil {
		return nil, fmt.Errorf("parse script: %w", err)
	}
	for i, a := range script.Actions {
		if a.Action == "" {
			return nil, fmt.Errorf("action %d: missing name", i+1)
		}
	}
	return &script, nil
}

// Session is what a script run leaves behind.
type Session struct {
	Controller *guard.Controller
	Compile    *dynamo.Result
	Records    []audit.Record
}

type Options struct {
	Logger    *slog.Logger
	ActionLog *logging.ActionLog
	Trail     *audit.Trail
}

// RunScript builds an engine from the script, optionally compiles it, hands
// it to a controller and executes the actions in order. The first rejected
// action stops the run; the session is returned alongside the error.
func RunScript(ctx context.Context, script *Script, opts Options) (*Session, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	cfg := dynamo.DefaultConfig().Merge(script.Params)
	exp := experiment.New(experiment.Config{
		Input:   script.Input,
		Profile: field.ParseProfile(script.Profile),
		Field:   cfg,
	})
	if err := exp.Setup(experiment.NewRegistry(), logger); err != nil {
		return nil, err
	}

	session := &Session{}
	if script.Compile {
		result, err := exp.Run(ctx)
		if err != nil {
			return nil, err
		}
		session.Compile = result
	} else if script.Input != "" {
		if _, err := exp.Engine().Reinitialize(script.Input, field.ParseProfile(script.Profile)); err != nil {
			return nil, err
		}
	}

	ctrl, err := guard.New(exp.Engine(), opts.Trail,
		guard.WithLogger(logger), guard.WithActionLog(opts.ActionLog))
	if err != nil {
		return nil, err
	}
	session.Controller = ctrl

	total := 0
	for i, a := range script.Actions {
		preset := audit.NoPreset
		if a.Preset != nil {
			preset = *a.Preset
		}
		repeat := max(a.Repeat, 1)
		for r := 0; r < repeat; r++ {
			rec, err := ctrl.Execute(ctx, a.Action, preset)
			if err != nil {
				return session, fmt.Errorf("action %d (%s): %w", i+1, a.Action, err)
			}
			session.Records = append(session.Records, rec)
			total++
		}
	}

	if script.Seal {
		ctrl.Seal()
	}
	logger.Info("script finished", "name", script.Name, "actions", total, "sealed", ctrl.Sealed())
	return session, nil
}

// ParameterSweep compiles the same input across a range of one coefficient.
type ParameterSweep struct {
	Input     string
	Profile   field.Profile
	Base      dynamo.Config
	ParamName string
	ParamMin  float64
	ParamMax  float64
	NumSteps  int
}

// SweepResult holds results from a parameter sweep
type SweepResult struct {
	ParamValue     float64
	Status         dynamo.Status
	Steps          int
	FinalCoherence float64
	FinalPhase     float64
}

// RunSweep executes a parameter sweep
func RunSweep(ctx context.Context, sweep *ParameterSweep, logger *slog.Logger) ([]SweepResult, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	if _, ok := sweep.Base.Params()[sweep.ParamName]; !ok {
		return nil, dynamo.Newf(dynamo.CodeInvalidConfig, "unknown parameter %q", sweep.ParamName)
	}
	if sweep.NumSteps < 2 {
		return nil, fmt.Errorf("sweep needs at least 2 points, got %d", sweep.NumSteps)
	}

	results := make([]SweepResult, 0, sweep.NumSteps)
	paramStep := (sweep.ParamMax - sweep.ParamMin) / float64(sweep.NumSteps-1)
	reg := experiment.NewRegistry()

	for i := 0; i < sweep.NumSteps; i++ {
		paramVal := sweep.ParamMin + float64(i)*paramStep

		exp := experiment.New(experiment.Config{
			Input:   sweep.Input,
			Profile: sweep.Profile,
			Field:   sweep.Base.Merge(map[string]float64{sweep.ParamName: paramVal}),
			Metrics: []string{"invariants"},
		})
		if err := exp.Setup(reg, nil); err != nil {
			return results, fmt.Errorf("%s=%g: %w", sweep.ParamName, paramVal, err)
		}
		result, err := exp.Run(ctx)
		if err != nil {
			return results, fmt.Errorf("%s=%g: %w", sweep.ParamName, paramVal, err)
		}

		results = append(results, SweepResult{
			ParamValue:     paramVal,
			Status:         result.Status,
			Steps:          result.StepsTaken,
			FinalCoherence: result.Final.Coherence,
			FinalPhase:     result.Final.Phase,
		})
		logger.Debug("sweep point", "index", i+1, "of", sweep.NumSteps, sweep.ParamName, paramVal,
			"status", result.Status)
	}

	return results, nil
}

// MonteCarloConfig perturbs coefficients around Base by a relative amount.
type MonteCarloConfig struct {
	Input        string
	Profile      field.Profile
	Base         dynamo.Config
	Params       []string
	Perturbation float64
	NumTrials    int
	Seed         int64
}

// DefaultPerturbed are the coupling coefficients a Monte Carlo run varies
// when none are named.
var DefaultPerturbed = []string{"alpha_c", "beta_c", "k_coupling"}

type MonteCarloResult struct {
	TrialID int
	Params  map[string]float64
	Status  dynamo.Status
	Steps   int
	// Stable means the run compiled and every observed state kept its
	// invariants.
	Stable bool
}

// RunMonteCarlo executes multiple trials with random perturbations
func RunMonteCarlo(ctx context.Context, cfg *MonteCarloConfig, logger *slog.Logger) ([]MonteCarloResult, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	names := cfg.Params
	if len(names) == 0 {
		names = DefaultPerturbed
	}
	base := cfg.Base.Params()
	for _, name := range names {
		if _, ok := base[name]; !ok {
			return nil, dynamo.Newf(dynamo.CodeInvalidConfig, "unknown parameter %q", name)
		}
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	if cfg.Seed == 0 {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	results := make([]MonteCarloResult, 0, cfg.NumTrials)
	reg := experiment.NewRegistry()

	for trial := 0; trial < cfg.NumTrials; trial++ {
		params := make(map[string]float64, len(names))
		for _, name := range names {
			params[name] = base[name] * (1 + (rng.Float64()-0.5)*2*cfg.Perturbation)
		}

		fieldCfg := cfg.Base.Merge(params)
		exp := experiment.New(experiment.Config{
			Input:   cfg.Input,
			Profile: cfg.Profile,
			Field:   fieldCfg,
			Metrics: []string{"invariants"},
		})
		if err := exp.Setup(reg, nil); err != nil {
			return results, fmt.Errorf("trial %d: %w", trial, err)
		}
		result, err := exp.Run(ctx)
		if err != nil {
			return results, fmt.Errorf("trial %d: %w", trial, err)
		}

		results = append(results, MonteCarloResult{
			TrialID: trial,
			Params:  params,
			Status:  result.Status,
			Steps:   result.StepsTaken,
			Stable:  result.Status == dynamo.StatusCompiled && result.Metrics["invariants"] == 1 && metrics.Holds(result.Final, fieldCfg),
		})

		if (trial+1)%10 == 0 {
			logger.Info("monte carlo progress", "done", trial+1, "trials", cfg.NumTrials)
		}
	}

	return results, nil
}

// MonteCarloStats computes summary statistics from Monte Carlo results
func MonteCarloStats(results []MonteCarloResult) (stableCount int, unstableCount int) {
	for _, r := range results {
		if r.Stable {
			stableCount++
		} else {
			unstableCount++
		}
	}
	return
}
