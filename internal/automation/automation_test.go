package automation

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/san-kum/fieldcanon/internal/audit"
	"github.com/san-kum/fieldcanon/internal/dynamo"
	"github.com/san-kum/fieldcanon/internal/field"
)

const demoScript = `
name: demo
description: compile then walk two sectors
input: "let x = 1;"
profile: SCRIPT
compile: true
actions:
  - action: SECTOR_3
  - action: read_state
    repeat: 2
  - action: SECTOR_1
    preset: 1
seal: true
`

func TestLoadScript(t *testing.T) {
	path := filepath.Join(t.TempDir(), "demo.yaml")
	if err := os.WriteFile(path, []byte(demoScript), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := LoadScript(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.Name != "demo" || !s.Compile || !s.Seal {
		t.Errorf("unexpected script header: %+v", s)
	}
	if len(s.Actions) != 3 {
		t.Fatalf("expected 3 actions, got %d", len(s.Actions))
	}
	if s.Actions[0].Preset != nil {
		t.Error("omitted preset should stay nil")
	}
	if s.Actions[2].Preset == nil || *s.Actions[2].Preset != 1 {
		t.Error("explicit preset lost")
	}

	if _, err := ParseScript([]byte("actions:\n  - repeat: 2\n")); err == nil {
		t.Error("expected error for nameless action")
	}
}

func TestRunScript(t *testing.T) {
	s, err := ParseScript([]byte(demoScript))
	if err != nil {
		t.Fatal(err)
	}

	session, err := RunScript(context.Background(), s, Options{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if session.Compile == nil || session.Compile.Status != dynamo.StatusCompiled {
		t.Fatalf("expected compiled session, got %+v", session.Compile)
	}
	if len(session.Records) != 4 {
		t.Fatalf("expected 4 records, got %d", len(session.Records))
	}
	if session.Records[0].Action != audit.ActionSector3 || session.Records[0].Preset != 3 {
		t.Errorf("first record: %s preset %d", session.Records[0].Action, session.Records[0].Preset)
	}
	if !session.Controller.Sealed() || !session.Controller.Trail().Sealed() {
		t.Error("script asked for a seal")
	}
	if v := session.Controller.Trail().VerifyIntegrity(); !v.Valid {
		t.Errorf("trail invalid: %s", v.Reason)
	}

	sector, _ := field.SectorAt(1)
	if session.Controller.State().Step != 0 || session.Controller.State().Phase != sector.Phase {
		t.Errorf("engine should sit on sector 1, got %v", session.Controller.State())
	}
}

func TestRunScript_StopsOnRejection(t *testing.T) {
	four := 4
	s := &Script{
		Input: "config: true",
		Actions: []ScriptAction{
			{Action: "SECTOR_0"},
			{Action: "SECTOR_2", Preset: &four},
			{Action: "READ_STATE"},
		},
	}

	session, err := RunScript(context.Background(), s, Options{})
	if !errors.Is(err, dynamo.ErrAuditCanonViolation) {
		t.Fatalf("expected AUDIT_CANON_VIOLATION, got %v", err)
	}
	if len(session.Records) != 1 {
		t.Errorf("only the first action should be recorded, got %d", len(session.Records))
	}
	if session.Controller.Trail().Len() != 1 {
		t.Errorf("trail should hold 1 record, got %d", session.Controller.Trail().Len())
	}
}

func TestRunScript_Forbidden(t *testing.T) {
	s := &Script{Input: "x", Actions: []ScriptAction{{Action: "slider_control"}}}
	_, err := RunScript(context.Background(), s, Options{})
	if !errors.Is(err, dynamo.ErrForbiddenAction) {
		t.Errorf("expected FORBIDDEN_ACTION, got %v", err)
	}
}

func TestRunSweep(t *testing.T) {
	sweep := &ParameterSweep{
		Input:     "let x = 1;",
		Profile:   field.ProfileScript,
		Base:      dynamo.DefaultConfig(),
		ParamName: "k_coupling",
		ParamMin:  0.5,
		ParamMax:  1.5,
		NumSteps:  3,
	}

	results, err := RunSweep(context.Background(), sweep, nil)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, want := range []float64{0.5, 1.0, 1.5} {
		if math.Abs(results[i].ParamValue-want) > 1e-12 {
			t.Errorf("point %d: expected %g, got %g", i, want, results[i].ParamValue)
		}
		if results[i].Steps == 0 {
			t.Errorf("point %d took no steps", i)
		}
	}
}

func TestRunSweep_Errors(t *testing.T) {
	base := ParameterSweep{Input: "x", Profile: field.ProfileLog, Base: dynamo.DefaultConfig(), ParamName: "gamma", NumSteps: 3}
	if _, err := RunSweep(context.Background(), &base, nil); !errors.Is(err, dynamo.ErrInvalidConfig) {
		t.Errorf("unknown parameter: expected INVALID_CONFIG, got %v", err)
	}

	base.ParamName = "alpha_c"
	base.NumSteps = 1
	if _, err := RunSweep(context.Background(), &base, nil); err == nil {
		t.Error("expected error for a single-point sweep")
	}
}

func TestRunMonteCarlo(t *testing.T) {
	cfg := &MonteCarloConfig{
		Input:        "let x = 1;",
		Profile:      field.ProfileScript,
		Base:         dynamo.DefaultConfig(),
		Perturbation: 0.1,
		NumTrials:    5,
		Seed:         7,
	}

	first, err := RunMonteCarlo(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("monte carlo: %v", err)
	}
	second, _ := RunMonteCarlo(context.Background(), cfg, nil)

	if len(first) != 5 {
		t.Fatalf("expected 5 trials, got %d", len(first))
	}
	base := cfg.Base.Params()
	for i := range first {
		for name, v := range first[i].Params {
			if second[i].Params[name] != v {
				t.Errorf("trial %d: %s not reproducible under a fixed seed", i, name)
			}
			if math.Abs(v-base[name]) > 0.1*math.Abs(base[name])+1e-12 {
				t.Errorf("trial %d: %s=%g outside perturbation band", i, name, v)
			}
		}
		if len(first[i].Params) != len(DefaultPerturbed) {
			t.Errorf("trial %d perturbed %d params", i, len(first[i].Params))
		}
	}

	stable, unstable := MonteCarloStats(first)
	if stable+unstable != 5 {
		t.Errorf("stats should cover every trial: %d+%d", stable, unstable)
	}
}

func TestRunMonteCarlo_UnknownParam(t *testing.T) {
	cfg := &MonteCarloConfig{Input: "x", Base: dynamo.DefaultConfig(), Params: []string{"omega"}, NumTrials: 1, Seed: 1}
	if _, err := RunMonteCarlo(context.Background(), cfg, nil); !errors.Is(err, dynamo.ErrInvalidConfig) {
		t.Errorf("expected INVALID_CONFIG, got %v", err)
	}
}
