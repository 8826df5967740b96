package sim

import (
	"context"
	"fmt"
	"math"

	"github.com/san-kum/fieldcanon/internal/dynamo"
	"github.com/san-kum/fieldcanon/internal/field"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Phase is one stage of a compile run. Done is checked before every step.
type Phase struct {
	Name string
	Done func(x dynamo.State) bool
}

// Phases run in order. A phase that runs out of budget hands over to the
// next one instead of aborting.
var Phases = []Phase{
	{
		Name: "structural_collapse",
		Done: func(x dynamo.State) bool { return x.TensionStructural <= dynamo.EpsStructural },
	},
	{
		Name: "semantic_harmonization",
		Done: func(x dynamo.State) bool { return math.Abs(x.TensionSemantic-dynamo.Attractor) <= dynamo.EpsSemantic },
	},
	{
		Name: "coherence_projection",
		Done: func(x dynamo.State) bool { return x.Coherence >= dynamo.CoherenceThreshold },
	},
}

var tracer = otel.Tracer("github.com/san-kum/fieldcanon/internal/sim")

// Compile runs the phases on the current state. Not converging is reported
// through Result.Status, not as an error.
func (e *Engine) Compile(ctx context.Context) (*dynamo.Result, error) {
	if err := e.unlocked("Compile"); err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "sim.Engine.Compile",
		trace.WithAttributes(attribute.String("id", e.id), attribute.Int("max_steps", e.cfg.MaxSteps)))
	defer span.End()

	result := &dynamo.Result{
		Phases:  make([]dynamo.PhaseResult, 0, len(Phases)),
		Metrics: make(map[string]float64),
	}
	for _, m := range e.metrics {
		m.Reset()
	}
	if e.traceEvery > 0 {
		result.Trace = append(result.Trace, e.state)
	}

	for _, ph := range Phases {
		pr, err := e.runPhase(ctx, ph, result)
		result.Phases = append(result.Phases, pr)
		if err != nil {
			result.Final = e.state
			result.Status = dynamo.StatusError
			span.RecordError(err)
			return result, err
		}
		e.logger.Debug("phase finished", "phase", pr.Name, "steps", pr.Steps, "converged", pr.Converged)
	}

	result.Final = e.state
	result.Status = dynamo.StatusMaxSteps
	if e.state.Coherence >= dynamo.CoherenceThreshold {
		result.Status = dynamo.StatusCompiled
	}
	for _, m := range e.metrics {
		result.Metrics[m.Name()] = m.Value()
	}

	span.SetAttributes(attribute.String("status", string(result.Status)), attribute.Int("steps", result.StepsTaken))
	e.logger.Info("compile finished", "id", e.id, "status", result.Status, "steps", result.StepsTaken,
		"coherence", e.state.Coherence)
	return result, nil
}

func (e *Engine) runPhase(ctx context.Context, ph Phase, result *dynamo.Result) (dynamo.PhaseResult, error) {
	pr := dynamo.PhaseResult{Name: ph.Name}

	for !ph.Done(e.state) && pr.Steps < e.cfg.MaxSteps {
		select {
		case <-ctx.Done():
			return pr, ctx.Err()
		default:
		}

		e.advance()
		pr.Steps++
		result.StepsTaken++

		if !e.state.IsValid() {
			return pr, &dynamo.SimulationError{Step: e.state.Step, State: e.state, Wrapped: dynamo.ErrInvalidState}
		}

		for _, m := range e.metrics {
			m.Observe(e.state)
		}
		for _, obs := range e.observers {
			obs.OnStep(e.state)
		}
		if e.traceEvery > 0 && e.state.Step%e.traceEvery == 0 {
			result.Trace = append(result.Trace, e.state)
		}
	}

	pr.Converged = ph.Done(e.state)
	return pr, nil
}

// CompileInput reinitializes from input and compiles. Empty input yields a
// result with status ERROR alongside the INPUT_EMPTY error.
func (e *Engine) CompileInput(ctx context.Context, input string, profile field.Profile) (*dynamo.Result, error) {
	res, err := e.Reinitialize(input, profile)
	if err != nil {
		return &dynamo.Result{Status: res.Status, Final: res.State}, fmt.Errorf("compile: %w", err)
	}
	return e.Compile(ctx)
}
