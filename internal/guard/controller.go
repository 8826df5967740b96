// Package guard is the only path that mutates a locked engine. Every change
// goes through ExecuteAction, is validated against the audit trail before
// it is applied, and is recorded after.
package guard

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/san-kum/fieldcanon/internal/audit"
	"github.com/san-kum/fieldcanon/internal/dynamo"
	"github.com/san-kum/fieldcanon/internal/field"
	"github.com/san-kum/fieldcanon/internal/logging"
	"github.com/san-kum/fieldcanon/internal/sim"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ResetInput is the input RESET_ENGINE reinitializes from.
const ResetInput = "reset"

// Governed is what a caller holding a controller may do.
type Governed interface {
	State() dynamo.State
	ExecuteAction(ctx context.Context, a audit.Action, preset int) (audit.Record, error)
	Trail() audit.Reader
	Seal()
	Sealed() bool
}

var _ Governed = (*Controller)(nil)

var tracer = otel.Tracer("github.com/san-kum/fieldcanon/internal/guard")

type Controller struct {
	cap     *sim.Capability
	trail   *audit.Trail
	logger  *slog.Logger
	actions *logging.ActionLog

	mu     sync.Mutex
	sealed bool
}

type Option func(*Controller)

func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithActionLog mirrors every outcome to a JSONL action log. nil is allowed.
func WithActionLog(l *logging.ActionLog) Option {
	return func(c *Controller) { c.actions = l }
}

// New claims e and binds it to trail. The engine can be claimed once.
func New(e *sim.Engine, trail *audit.Trail, opts ...Option) (*Controller, error) {
	capability, err := e.Lock()
	if err != nil {
		return nil, err
	}
	if trail == nil {
		trail = audit.New()
	}
	c := &Controller{
		cap:    capability,
		trail:  trail,
		logger: logging.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Controller) State() dynamo.State { return c.cap.State() }

func (c *Controller) Identifier() string { return c.cap.Identifier() }

func (c *Controller) Config() dynamo.Config { return c.cap.Config() }

func (c *Controller) Trail() audit.Reader { return c.trail }

// Seal stops the controller and its trail. It cannot be undone.
func (c *Controller) Seal() {
	c.mu.Lock()
	c.sealed = true
	c.mu.Unlock()
	c.trail.Seal()
	c.logger.Info("controller sealed", "records", c.trail.Len())
}

func (c *Controller) Sealed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sealed
}

// Execute parses name and runs it.
func (c *Controller) Execute(ctx context.Context, name string, preset int) (audit.Record, error) {
	a, err := ParseAction(name)
	if err != nil {
		c.reject(name, preset, err)
		return audit.Record{}, err
	}
	return c.ExecuteAction(ctx, a, preset)
}

// ExecuteAction applies a to the engine. For sector actions a preset of
// audit.NoPreset means the sector the action names. Nothing reaches the
// engine unless the trail accepts the record first.
func (c *Controller) ExecuteAction(ctx context.Context, a audit.Action, preset int) (audit.Record, error) {
	ctx, span := tracer.Start(ctx, "guard.ExecuteAction",
		trace.WithAttributes(attribute.String("action", string(a)), attribute.Int("preset", preset)))
	defer span.End()

	c.mu.Lock()
	defer c.mu.Unlock()

	rec, err := c.execute(ctx, a, preset)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(dynamo.CodeOf(err)))
		c.reject(string(a), preset, err)
		return audit.Record{}, err
	}

	span.SetAttributes(attribute.Int("seq", rec.Seq), attribute.String("hash", rec.Hash))
	c.logger.Info("action executed", "action", a, "preset", rec.Preset, "seq", rec.Seq,
		"step", rec.After.Step, "coherence", rec.After.Coherence)
	c.actions.Log(map[string]any{
		"outcome": "accepted",
		"action":  string(a),
		"preset":  rec.Preset,
		"seq":     rec.Seq,
		"hash":    rec.Hash,
	})
	return rec, nil
}

func (c *Controller) execute(ctx context.Context, a audit.Action, preset int) (audit.Record, error) {
	if c.sealed {
		return audit.Record{}, dynamo.ErrSealedController
	}
	if err := checkAction(a); err != nil {
		return audit.Record{}, err
	}
	if err := ctx.Err(); err != nil {
		return audit.Record{}, err
	}

	before := c.cap.State()
	if last, ok := c.trail.Last(); ok {
		if diff := before.Diff(last.After, dynamo.AuditTolerance); len(diff) > 0 {
			return audit.Record{}, dynamo.ErrStateAuditMismatch.With("stage", "pre").With("fields", strings.Join(diff, ","))
		}
	}

	t, preset, err := c.preview(a, preset)
	if err != nil {
		return audit.Record{}, err
	}

	rec, err := c.trail.Prepare(a, preset, before, t.State)
	if err != nil {
		return audit.Record{}, err
	}

	c.cap.Commit(t)
	if err := c.trail.Append(rec); err != nil {
		// The trail moved under us; put the engine back.
		c.cap.Commit(sim.Transition{State: before, Identifier: c.cap.Identifier()})
		return audit.Record{}, err
	}

	if diff := c.cap.State().Diff(rec.After, dynamo.AuditTolerance); len(diff) > 0 {
		return rec, dynamo.ErrStateAuditMismatch.With("stage", "post").With("fields", strings.Join(diff, ","))
	}
	return rec, nil
}

// preview computes the transition for a without touching the engine.
func (c *Controller) preview(a audit.Action, preset int) (sim.Transition, int, error) {
	if n, ok := a.Sector(); ok {
		if preset == audit.NoPreset {
			preset = n
		}
		t, err := c.cap.PreviewSnap(n)
		return t, preset, err
	}

	switch a {
	case audit.ActionResetEngine:
		t, err := c.cap.PreviewReinitialize(ResetInput, field.ProfileScript)
		return t, audit.NoPreset, err
	default:
		return c.cap.PreviewHold(), audit.NoPreset, nil
	}
}

func (c *Controller) reject(action string, preset int, err error) {
	// Prepare already counted canon violations.
	if dynamo.CodeOf(err) != dynamo.CodeAuditCanonViolation {
		c.trail.RecordViolation(action, err)
	}
	c.logger.Warn("action rejected", "action", action, "preset", preset, "code", dynamo.CodeOf(err), "err", err)
	c.actions.Log(map[string]any{
		"outcome": "rejected",
		"action":  action,
		"preset":  preset,
		"code":    string(dynamo.CodeOf(err)),
	})
}
