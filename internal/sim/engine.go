package sim

import (
	"context"
	"log/slog"
	"sync"

	"github.com/san-kum/fieldcanon/internal/dynamo"
	"github.com/san-kum/fieldcanon/internal/field"
	"github.com/san-kum/fieldcanon/internal/integrators"
	"github.com/san-kum/fieldcanon/internal/logging"
)

// Stepper advances a state by one fixed increment.
type Stepper interface {
	Step(x dynamo.State, cfg dynamo.Config) dynamo.State
}

// Engine owns one mutable field state. Until it is locked every method is
// usable directly; after Lock only the returned Capability may change it.
type Engine struct {
	cfg     dynamo.Config
	stepper Stepper
	logger  *slog.Logger

	state dynamo.State
	id    string

	metrics    []dynamo.Metric
	observers  []dynamo.Observer
	traceEvery int

	mu     sync.Mutex
	locked bool
}

type Option func(*Engine)

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

func WithStepper(s Stepper) Option {
	return func(e *Engine) { e.stepper = s }
}

// WithTrace records every n-th state of a compile run in Result.Trace.
func WithTrace(n int) Option {
	return func(e *Engine) { e.traceEvery = n }
}

func New(cfg dynamo.Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		cfg:     cfg,
		stepper: integrators.NewEuler(),
		logger:  logging.Discard(),
		state:   dynamo.BlankState(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// NewSparse builds an engine from a sparse coefficient map merged over the
// defaults.
func NewSparse(params map[string]float64, opts ...Option) (*Engine, error) {
	return New(dynamo.MergeConfig(params), opts...)
}

func (e *Engine) AddMetric(m dynamo.Metric)     { e.metrics = append(e.metrics, m) }
func (e *Engine) AddObserver(o dynamo.Observer) { e.observers = append(e.observers, o) }

// Config returns a copy of the coefficients.
func (e *Engine) Config() dynamo.Config { return e.cfg }

// Identifier is the render tag of the last accepted input.
func (e *Engine) Identifier() string { return e.id }

func (e *Engine) Locked() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.locked
}

// State returns the current state, or DIRECT_STATE_ACCESS once locked.
func (e *Engine) State() (dynamo.State, error) {
	if e.Locked() {
		return dynamo.State{}, dynamo.ErrDirectStateAccess
	}
	return e.state, nil
}

// Step advances one increment. It only reports false when the engine
// refuses the call.
func (e *Engine) Step() (bool, error) {
	if err := e.unlocked("Step"); err != nil {
		return false, err
	}
	e.advance()
	return true, nil
}

// InitResult is the outcome of Reinitialize. Callers must check Status
// before using State.
type InitResult struct {
	Status     dynamo.Status
	State      dynamo.State
	Identifier string
}

func (e *Engine) Reinitialize(input string, profile field.Profile) (InitResult, error) {
	if err := e.unlocked("Reinitialize"); err != nil {
		return InitResult{Status: dynamo.StatusError}, err
	}
	t, err := Seed(input, profile, e.cfg)
	if err != nil {
		return InitResult{Status: dynamo.StatusError, State: e.state}, err
	}
	e.commit(t)
	e.logger.Debug("engine reinitialized", "profile", profile, "id", t.Identifier, "energy", t.State.Energy)
	return InitResult{Status: dynamo.StatusReady, State: e.state, Identifier: e.id}, nil
}

func (e *Engine) SnapToPreset(index int) error {
	if err := e.unlocked("SnapToPreset"); err != nil {
		return err
	}
	next, err := Snap(e.state, index)
	if err != nil {
		e.logger.Warn("preset rejected", "index", index, "err", err)
		return err
	}
	e.state = next
	return nil
}

// Restore replaces the whole state. It is meant for setting up a replay
// before the engine is claimed.
func (e *Engine) Restore(s dynamo.State, identifier string) error {
	if err := e.unlocked("Restore"); err != nil {
		return err
	}
	if !s.IsValid() {
		return dynamo.ErrInvalidState
	}
	e.commit(Transition{State: s, Identifier: identifier})
	return nil
}

// Lock claims the engine. Only the first caller gets a Capability; later
// callers get ENGINE_ALREADY_CLAIMED.
func (e *Engine) Lock() (*Capability, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.locked {
		return nil, dynamo.ErrEngineAlreadyClaimed
	}
	e.locked = true
	e.logger.Info("engine locked", "id", e.id)
	return &Capability{e: e}, nil
}

func (e *Engine) unlocked(op string) error {
	if e.Locked() {
		e.logger.Warn("direct engine access rejected", "op", op)
		return dynamo.ErrDirectEngineAccess.With("op", op)
	}
	return nil
}

func (e *Engine) advance() {
	e.state = e.stepper.Step(e.state, e.cfg)
	e.logger.Log(context.Background(), logging.LevelTrace, "step",
		"t", e.state.Step, "tension", e.state.Tension, "coherence", e.state.Coherence)
}

func (e *Engine) commit(t Transition) {
	e.state = t.State
	e.id = t.Identifier
}

// Transition is a prospective state together with the identifier it
// carries once committed.
type Transition struct {
	State      dynamo.State
	Identifier string
}

// Seed derives the initial state for input under profile. Empty input is
// INPUT_EMPTY.
func Seed(input string, profile field.Profile, cfg dynamo.Config) (Transition, error) {
	if input == "" {
		return Transition{}, dynamo.ErrInputEmpty
	}
	if !profile.Valid() {
		profile = field.DefaultProfile
	}
	return Transition{
		State:      profile.Seed(field.Energy(input), cfg),
		Identifier: field.Identifier(input),
	}, nil
}

// Snap returns x overwritten by sector index.
func Snap(x dynamo.State, index int) (dynamo.State, error) {
	row, err := field.SectorAt(index)
	if err != nil {
		return x, err
	}
	return row.Apply(x), nil
}
