package sim

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/san-kum/fieldcanon/internal/dynamo"
	"github.com/san-kum/fieldcanon/internal/field"
	"github.com/san-kum/fieldcanon/internal/metrics"
)

func newEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	e, err := New(dynamo.DefaultConfig(), opts...)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return e
}

func mustState(t *testing.T, e *Engine) dynamo.State {
	t.Helper()
	s, err := e.State()
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	return s
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := dynamo.DefaultConfig()
	cfg.StepSize = 0
	if _, err := New(cfg); !errors.Is(err, dynamo.ErrInvalidConfig) {
		t.Errorf("expected INVALID_CONFIG, got %v", err)
	}
}

func TestNewSparse(t *testing.T) {
	e, err := NewSparse(map[string]float64{"k_coupling": 0.3, "bogus": 1})
	if err != nil {
		t.Fatalf("new sparse: %v", err)
	}
	if e.Config().Coupling != 0.3 || e.Config().StepSize != 0.1 {
		t.Errorf("unexpected config %v", e.Config())
	}
}

func TestReinitialize_Script(t *testing.T) {
	e := newEngine(t)

	res, err := e.Reinitialize("let x = 1;", field.ProfileScript)
	if err != nil {
		t.Fatalf("reinitialize: %v", err)
	}
	if res.Status != dynamo.StatusReady {
		t.Errorf("expected READY, got %s", res.Status)
	}
	if res.Identifier != "0b6ff53a" {
		t.Errorf("unexpected identifier %s", res.Identifier)
	}

	other := newEngine(t)
	res2, _ := other.Reinitialize("let x = 1;", field.ProfileScript)
	if res.State.Energy != res2.State.Energy {
		t.Errorf("energy not deterministic: %v vs %v", res.State.Energy, res2.State.Energy)
	}

	before := mustState(t, e)
	if before.Residual() > dynamo.Epsilon {
		t.Errorf("decomposition residual after reinit %g", before.Residual())
	}

	ok, err := e.Step()
	if !ok || err != nil {
		t.Fatalf("step: %v %v", ok, err)
	}
	after := mustState(t, e)

	if after.TensionStructural >= before.TensionStructural {
		t.Errorf("structural tension must decay: %g -> %g", before.TensionStructural, after.TensionStructural)
	}
	if after.Phase < 0 || after.Phase >= 2*math.Pi {
		t.Errorf("phase %f outside [0, 2π)", after.Phase)
	}
}

func TestReinitialize_Empty(t *testing.T) {
	e := newEngine(t)
	before := mustState(t, e)

	res, err := e.Reinitialize("", field.ProfileScript)
	if res.Status != dynamo.StatusError {
		t.Errorf("expected ERROR status, got %s", res.Status)
	}
	if !errors.Is(err, dynamo.ErrInputEmpty) {
		t.Errorf("expected INPUT_EMPTY, got %v", err)
	}
	if dynamo.CodeOf(err).Category() != dynamo.CategoryInput {
		t.Error("empty input should be an input error")
	}
	if mustState(t, e) != before {
		t.Error("state must not change on empty input")
	}
}

func TestReinitialize_UnknownProfile(t *testing.T) {
	a, b := newEngine(t), newEngine(t)
	ra, _ := a.Reinitialize("x", field.Profile("NOPE"))
	rb, _ := b.Reinitialize("x", field.ProfileScript)
	if ra.State != rb.State {
		t.Error("unknown profile should behave as SCRIPT")
	}
}

func TestStep_Invariants(t *testing.T) {
	e := newEngine(t)
	e.Reinitialize("func main() {}", field.ProfileModelArtifact)
	cfg := e.Config()

	prev := mustState(t, e)
	for i := 0; i < 2000; i++ {
		e.Step()
		s := mustState(t, e)

		if s.Residual() > dynamo.Epsilon {
			t.Fatalf("step %d: decomposition residual %g", i, s.Residual())
		}
		if s.Energy != prev.Energy {
			t.Fatalf("step %d: energy changed %v -> %v", i, prev.Energy, s.Energy)
		}
		if s.Step != prev.Step+1 {
			t.Fatalf("step %d: step count %d -> %d", i, prev.Step, s.Step)
		}
		if !metrics.Holds(s, cfg) {
			t.Fatalf("step %d: invariants violated: %v", i, s)
		}
		prev = s
	}
}

func TestStep_EnergyFixed(t *testing.T) {
	e := newEngine(t)
	if err := e.Restore(dynamo.State{Energy: 0.5, Curvature: 1, TensionSemantic: 0.3, Tension: 0.3}, "fixed"); err != nil {
		t.Fatalf("restore: %v", err)
	}
	for i := 0; i < 10; i++ {
		e.Step()
	}
	if s := mustState(t, e); s.Energy != 0.5 {
		t.Errorf("energy changed to %v", s.Energy)
	}
}

func TestSnapToPreset(t *testing.T) {
	starts := map[string]func(e *Engine){
		"blank":    func(e *Engine) {},
		"compiled": func(e *Engine) { e.CompileInput(context.Background(), "a", field.ProfileGraph) },
		"stepped": func(e *Engine) {
			e.Reinitialize("b", field.ProfileLog)
			for i := 0; i < 37; i++ {
				e.Step()
			}
		},
	}

	for name, setup := range starts {
		for i := 0; i < field.SectorCount; i++ {
			e := newEngine(t)
			setup(e)
			before := mustState(t, e)

			if err := e.SnapToPreset(i); err != nil {
				t.Fatalf("%s/%d: snap: %v", name, i, err)
			}
			s := mustState(t, e)
			row, _ := field.SectorAt(i)

			if math.Abs(s.Curvature-row.Curvature) > 1e-6 ||
				math.Abs(s.Phase-row.Phase) > 1e-6 ||
				math.Abs(s.Coherence-row.Coherence) > 1e-6 ||
				math.Abs(s.Tension-row.Tension) > 1e-6 {
				t.Errorf("%s/%d: state %v does not match row %+v", name, i, s, row)
			}
			if s.Step != 0 {
				t.Errorf("%s/%d: step %d after snap", name, i, s.Step)
			}
			if s.Residual() > dynamo.Epsilon {
				t.Errorf("%s/%d: residual %g", name, i, s.Residual())
			}

			switch before.Energy {
			case 0:
				if s.Energy != row.Energy {
					t.Errorf("%s/%d: blank energy should become %v, got %v", name, i, row.Energy, s.Energy)
				}
			default:
				if s.Energy != before.Energy {
					t.Errorf("%s/%d: energy changed %v -> %v", name, i, before.Energy, s.Energy)
				}
			}
		}
	}
}

func TestSnapToPreset_OutOfRange(t *testing.T) {
	e := newEngine(t)
	e.Reinitialize("x", field.ProfileScript)
	before := mustState(t, e)

	for _, i := range []int{-1, 6} {
		err := e.SnapToPreset(i)
		if !errors.Is(err, dynamo.ErrPresetOutOfRange) {
			t.Errorf("index %d: expected PRESET_OUT_OF_RANGE, got %v", i, err)
		}
	}
	if mustState(t, e) != before {
		t.Error("rejected snap must not change state")
	}
}

func TestCompile_Converges(t *testing.T) {
	e := newEngine(t, WithTrace(100))
	for _, m := range metrics.Default(dynamo.DefaultConfig()) {
		e.AddMetric(m)
	}

	result, err := e.CompileInput(context.Background(), "let x = 1;", field.ProfileScript)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if result.Status != dynamo.StatusCompiled {
		t.Fatalf("expected COMPILED, got %s (coherence %f)", result.Status, result.Final.Coherence)
	}
	if result.Final.Coherence < dynamo.CoherenceThreshold {
		t.Errorf("final coherence %f below threshold", result.Final.Coherence)
	}
	if len(result.Phases) != 3 {
		t.Fatalf("expected 3 phases, got %d", len(result.Phases))
	}

	total := 0
	for _, ph := range result.Phases {
		if !ph.Converged {
			t.Errorf("phase %s did not converge", ph.Name)
		}
		total += ph.Steps
	}
	if total != result.StepsTaken || total != result.Final.Step {
		t.Errorf("step accounting: phases %d, taken %d, final %d", total, result.StepsTaken, result.Final.Step)
	}

	if result.Metrics["energy_drift"] != 0 {
		t.Errorf("energy drift %g", result.Metrics["energy_drift"])
	}
	if result.Metrics["invariants"] != 1 {
		t.Errorf("invariant violations during compile: %f", result.Metrics["invariants"])
	}
	if len(result.Trace) < 2 {
		t.Errorf("expected trace samples, got %d", len(result.Trace))
	}
}

func TestCompile_BudgetExhausted(t *testing.T) {
	cfg := dynamo.DefaultConfig()
	cfg.MaxSteps = 10
	e, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}

	result, err := e.CompileInput(context.Background(), "let x = 1;", field.ProfileScript)
	if err != nil {
		t.Fatalf("budget exhaustion must not be an error: %v", err)
	}
	if result.Status != dynamo.StatusMaxSteps {
		t.Errorf("expected MAX_STEPS_REACHED, got %s", result.Status)
	}
	for _, ph := range result.Phases {
		if ph.Steps > cfg.MaxSteps {
			t.Errorf("phase %s exceeded budget: %d", ph.Name, ph.Steps)
		}
	}
	if result.StepsTaken != 3*cfg.MaxSteps {
		t.Errorf("each exhausted phase should use its full budget, took %d", result.StepsTaken)
	}
}

func TestCompile_EmptyInput(t *testing.T) {
	e := newEngine(t)
	result, err := e.CompileInput(context.Background(), "", field.ProfileScript)
	if !errors.Is(err, dynamo.ErrInputEmpty) {
		t.Errorf("expected INPUT_EMPTY, got %v", err)
	}
	if result == nil || result.Status != dynamo.StatusError {
		t.Errorf("expected ERROR result, got %+v", result)
	}
}

func TestCompile_Canceled(t *testing.T) {
	e := newEngine(t)
	e.Reinitialize("x", field.ProfileScript)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Compile(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestDeterminism(t *testing.T) {
	run := func() dynamo.State {
		e := newEngine(t)
		e.CompileInput(context.Background(), "deterministic", field.ProfileConfig)
		e.SnapToPreset(2)
		for i := 0; i < 25; i++ {
			e.Step()
		}
		return mustState(t, e)
	}

	a, b := run(), run()
	if a != b {
		t.Errorf("runs diverged:\n%v\n%v", a, b)
	}
}

type countingObserver struct{ n int }

func (c *countingObserver) OnStep(x dynamo.State) { c.n++ }

func TestCompile_Observers(t *testing.T) {
	e := newEngine(t)
	obs := &countingObserver{}
	e.AddObserver(obs)

	result, _ := e.CompileInput(context.Background(), "observe", field.ProfileLog)
	if obs.n != result.StepsTaken {
		t.Errorf("observer saw %d steps, expected %d", obs.n, result.StepsTaken)
	}
}

func TestLock(t *testing.T) {
	e := newEngine(t)
	e.Reinitialize("x", field.ProfileScript)

	capability, err := e.Lock()
	if err != nil {
		t.Fatalf("lock: %v", err)
	}

	if _, err := e.Lock(); !errors.Is(err, dynamo.ErrEngineAlreadyClaimed) {
		t.Errorf("second lock: expected ENGINE_ALREADY_CLAIMED, got %v", err)
	}

	direct := map[string]func() error{
		"Step":         func() error { _, err := e.Step(); return err },
		"Reinitialize": func() error { _, err := e.Reinitialize("y", field.ProfileLog); return err },
		"SnapToPreset": func() error { return e.SnapToPreset(1) },
		"Restore":      func() error { return e.Restore(dynamo.State{}, "") },
		"Compile":      func() error { _, err := e.Compile(context.Background()); return err },
	}
	for name, call := range direct {
		if err := call(); !errors.Is(err, dynamo.ErrDirectEngineAccess) {
			t.Errorf("%s: expected DIRECT_ENGINE_ACCESS, got %v", name, err)
		}
	}
	if _, err := e.State(); !errors.Is(err, dynamo.ErrDirectStateAccess) {
		t.Errorf("State: expected DIRECT_STATE_ACCESS, got %v", err)
	}

	before := capability.State()
	tr, err := capability.PreviewSnap(4)
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if capability.State() != before {
		t.Error("preview must not mutate the engine")
	}
	capability.Commit(tr)
	if capability.State() != tr.State {
		t.Error("commit did not apply the transition")
	}
}

func TestRender(t *testing.T) {
	complete := dynamo.State{Tension: 0.8090169, Curvature: 10, Phase: 2.29666, Coherence: 0.99999}
	out := Render(complete, "0b6ff53a")

	wantLines := []string{
		"FNO_CANONICAL_0b6ff53a",
		"  tension: 0.809017",
		"  curvature: 10.000",
		"  phase: 2.2967",
		"  coherence: 1.0000",
		"  status: COMPILED",
	}
	if got := strings.Split(strings.TrimSuffix(out, "\n"), "\n"); strings.Join(got, "|") != strings.Join(wantLines, "|") {
		t.Errorf("unexpected render:\n%s", out)
	}

	incomplete := dynamo.State{Tension: 3.14159265, Coherence: 0.123456, Step: 50000}
	out = Render(incomplete, "deadbeef")
	if !strings.HasPrefix(out, "FNO_INCOMPLETE_deadbeef\n") {
		t.Errorf("unexpected header:\n%s", out)
	}
	if !strings.Contains(out, "coherence: 0.12346") || !strings.Contains(out, "iterations: 50000") {
		t.Errorf("incomplete block missing fields:\n%s", out)
	}
	if strings.Contains(out, "tension") || strings.Contains(out, "3.14") {
		t.Errorf("incomplete block leaked payload:\n%s", out)
	}
}

func TestRender_NoCodeSyntax(t *testing.T) {
	states := []dynamo.State{
		{Coherence: 1, Curvature: 1},
		{Coherence: 0.5},
	}
	for _, s := range states {
		out := Render(s, "abc")
		for _, tok := range []string{"=", "return", "if ", "else", "var ", "let ", "const ", "function", ";"} {
			if strings.Contains(out, tok) {
				t.Errorf("render contains %q:\n%s", tok, out)
			}
		}
	}
}

func TestEnergyLevel(t *testing.T) {
	tests := []struct {
		energy float64
		want   string
	}{
		{0.001, "LOW"},
		{0.5, "MEDIUM"},
		{0.66, "HIGH"},
	}
	for _, tt := range tests {
		if got := EnergyLevel(tt.energy); got != tt.want {
			t.Errorf("EnergyLevel(%v) = %s, want %s", tt.energy, got, tt.want)
		}
	}
}
