package experiment

import (
	"context"
	"errors"
	"testing"

	"github.com/san-kum/fieldcanon/internal/dynamo"
	"github.com/san-kum/fieldcanon/internal/field"
	"github.com/san-kum/fieldcanon/internal/logging"
)

func TestRegistry(t *testing.T) {
	reg := NewRegistry()

	if _, err := reg.GetStepper("euler"); err != nil {
		t.Errorf("euler: %v", err)
	}
	if _, err := reg.GetStepper("rk4"); err == nil {
		t.Error("expected error for unknown stepper")
	}
	if _, err := reg.GetMetric("nope", dynamo.DefaultConfig()); err == nil {
		t.Error("expected error for unknown metric")
	}

	names := reg.ListMetrics()
	want := []string{"attractor_distance", "energy_drift", "invariants"}
	if len(names) != len(want) {
		t.Fatalf("expected %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("metric %d: expected %s, got %s", i, want[i], names[i])
		}
	}
	if len(reg.DefaultMetrics(dynamo.DefaultConfig())) != len(want) {
		t.Error("default metrics should cover every registered metric")
	}
}

func TestExperimentRun(t *testing.T) {
	exp := New(Config{
		Input:   "let x = 1;",
		Profile: field.ProfileScript,
		Field:   dynamo.DefaultConfig(),
		Metrics: []string{"energy_drift", "invariants"},
	})

	if _, err := exp.Run(context.Background()); err == nil {
		t.Error("expected error before setup")
	}
	if err := exp.Setup(NewRegistry(), logging.Discard()); err != nil {
		t.Fatalf("setup: %v", err)
	}

	result, err := exp.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Status != dynamo.StatusCompiled {
		t.Errorf("expected COMPILED, got %s", result.Status)
	}
	if len(result.Metrics) != 2 {
		t.Errorf("expected 2 metrics, got %v", result.Metrics)
	}
	if result.Metrics["energy_drift"] != 0 {
		t.Errorf("energy should not drift, got %v", result.Metrics["energy_drift"])
	}
	if exp.Engine().Identifier() != "0b6ff53a" {
		t.Errorf("unexpected identifier %s", exp.Engine().Identifier())
	}
}

func TestExperimentSetup_Errors(t *testing.T) {
	cases := []Config{
		{Stepper: "leapfrog", Field: dynamo.DefaultConfig()},
		{Field: dynamo.DefaultConfig(), Metrics: []string{"lyapunov"}},
		{Field: dynamo.Config{}},
	}
	for i, cfg := range cases {
		if err := New(cfg).Setup(NewRegistry(), nil); err == nil {
			t.Errorf("case %d: expected setup error", i)
		}
	}
}

func TestSweepProfiles(t *testing.T) {
	base := Config{Input: "graph { a -> b }", Field: dynamo.DefaultConfig()}
	out, err := SweepProfiles(context.Background(), NewRegistry(), base, logging.Discard())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(out) != len(field.ListProfiles()) {
		t.Fatalf("expected one outcome per profile, got %d", len(out))
	}

	id := out[0].Identifier
	for _, o := range out {
		if o.Identifier != id {
			t.Errorf("%s: identifier depends only on input, got %s vs %s", o.Profile, o.Identifier, id)
		}
		if o.Result.Final.Energy != out[0].Result.Final.Energy {
			t.Errorf("%s: energy depends only on input", o.Profile)
		}
	}
}

func TestSweepProfiles_EmptyInput(t *testing.T) {
	_, err := SweepProfiles(context.Background(), NewRegistry(), Config{Field: dynamo.DefaultConfig()}, nil)
	if !errors.Is(err, dynamo.ErrInputEmpty) {
		t.Errorf("expected INPUT_EMPTY, got %v", err)
	}
}
