// Package experiment wires an engine, its stepper and metrics from names so
// that CLI commands and scripts can describe a compile run declaratively.
package experiment

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/san-kum/fieldcanon/internal/dynamo"
	"github.com/san-kum/fieldcanon/internal/field"
	"github.com/san-kum/fieldcanon/internal/sim"
)

type Config struct {
	Input      string
	Profile    field.Profile
	Stepper    string
	Field      dynamo.Config
	TraceEvery int
	// Metrics names registry metrics; empty means all of them.
	Metrics []string
}

type Experiment struct {
	cfg    Config
	engine *sim.Engine
}

func New(cfg Config) *Experiment {
	if cfg.Stepper == "" {
		cfg.Stepper = "euler"
	}
	return &Experiment{cfg: cfg}
}

func (e *Experiment) Setup(reg *Registry, logger *slog.Logger) error {
	stepper, err := reg.GetStepper(e.cfg.Stepper)
	if err != nil {
		return err
	}

	engine, err := sim.New(e.cfg.Field,
		sim.WithStepper(stepper),
		sim.WithLogger(logger),
		sim.WithTrace(e.cfg.TraceEvery))
	if err != nil {
		return err
	}

	if len(e.cfg.Metrics) == 0 {
		for _, m := range reg.DefaultMetrics(e.cfg.Field) {
			engine.AddMetric(m)
		}
	}
	for _, name := range e.cfg.Metrics {
		m, err := reg.GetMetric(name, e.cfg.Field)
		if err != nil {
			return err
		}
		engine.AddMetric(m)
	}

	e.engine = engine
	return nil
}

// Run reinitializes from the configured input and compiles.
func (e *Experiment) Run(ctx context.Context) (*dynamo.Result, error) {
	if e.engine == nil {
		return nil, fmt.Errorf("experiment not setup")
	}
	return e.engine.CompileInput(ctx, e.cfg.Input, e.cfg.Profile)
}

// Engine returns the underlying engine, e.g. for adding observers or for
// handing it to a controller after the run.
func (e *Experiment) Engine() *sim.Engine {
	return e.engine
}

// Outcome is one row of a profile sweep.
type Outcome struct {
	Profile    field.Profile
	Identifier string
	Result     *dynamo.Result
}

// SweepProfiles compiles the same input under every profile.
func SweepProfiles(ctx context.Context, reg *Registry, base Config, logger *slog.Logger) ([]Outcome, error) {
	out := make([]Outcome, 0, len(field.ListProfiles()))
	for _, p := range field.ListProfiles() {
		cfg := base
		cfg.Profile = p

		exp := New(cfg)
		if err := exp.Setup(reg, logger); err != nil {
			return out, err
		}
		result, err := exp.Run(ctx)
		if err != nil {
			return out, fmt.Errorf("profile %s: %w", p, err)
		}
		out = append(out, Outcome{Profile: p, Identifier: exp.Engine().Identifier(), Result: result})
	}
	return out, nil
}
