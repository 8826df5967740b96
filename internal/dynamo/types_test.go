package dynamo

import (
	"errors"
	"fmt"
	"math"
	"testing"
)

func TestState_IsValid(t *testing.T) {
	tests := []struct {
		name  string
		state State
		valid bool
	}{
		{"zero", State{}, true},
		{"normal", State{Tension: 1, TensionSemantic: 1, Curvature: 2}, true},
		{"NaN coherence", State{Coherence: math.NaN()}, false},
		{"+Inf curvature", State{Curvature: math.Inf(1)}, false},
		{"-Inf phase", State{Phase: math.Inf(-1)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.IsValid(); got != tt.valid {
				t.Errorf("IsValid() = %v, want %v", got, tt.valid)
			}
		})
	}
}

func TestState_ResumAndResidual(t *testing.T) {
	s := State{TensionSyntax: 0.5, TensionSemantic: -0.25, TensionStructural: 1.0}
	if s.Residual() == 0 {
		t.Fatal("expected non-zero residual before resum")
	}
	s.Resum()
	if s.Tension != 1.25 {
		t.Errorf("expected tension 1.25, got %f", s.Tension)
	}
	if s.Residual() != 0 {
		t.Errorf("expected zero residual, got %g", s.Residual())
	}
}

func TestState_Diff(t *testing.T) {
	a := State{Tension: 1, Curvature: 2, Phase: 0.5, Step: 3}
	b := a
	if !a.Equal(b, 0) {
		t.Error("identical states should be equal")
	}

	b.Curvature += 1e-12
	if !a.Equal(b, 1e-10) {
		t.Error("difference below tolerance should be equal")
	}

	b.Phase = 0.6
	b.Step = 4
	diff := a.Diff(b, 1e-10)
	if len(diff) != 2 || diff[0] != "phase" || diff[1] != "step" {
		t.Errorf("expected [phase step], got %v", diff)
	}
}

func TestWrapAngle(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, 0},
		{math.Pi, math.Pi},
		{TwoPi, 0},
		{TwoPi + 1, 1},
		{-1, TwoPi - 1},
		{-1e-18, 0},
	}

	for _, tt := range tests {
		got := WrapAngle(tt.in)
		if math.Abs(got-tt.want) > 1e-12 {
			t.Errorf("WrapAngle(%v) = %v, want %v", tt.in, got, tt.want)
		}
		if got < 0 || got >= TwoPi {
			t.Errorf("WrapAngle(%v) = %v outside [0, 2π)", tt.in, got)
		}
	}
}

func TestMergeConfig(t *testing.T) {
	cfg := MergeConfig(map[string]float64{
		"k_coupling": 0.2,
		"max_steps":  100,
		"unknown":    42,
	})

	if cfg.Coupling != 0.2 {
		t.Errorf("expected coupling 0.2, got %f", cfg.Coupling)
	}
	if cfg.MaxSteps != 100 {
		t.Errorf("expected max steps 100, got %d", cfg.MaxSteps)
	}
	if cfg.StepSize != DefaultConfig().StepSize {
		t.Error("missing keys should fall back to defaults")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero step", func(c *Config) { c.StepSize = 0 }},
		{"negative max steps", func(c *Config) { c.MaxSteps = -1 }},
		{"inverted clamp", func(c *Config) { c.CurvatureMin, c.CurvatureMax = 5, 1 }},
		{"nan step", func(c *Config) { c.StepSize = math.NaN() }},
		{"nan coupling", func(c *Config) { c.Coupling = math.NaN() }},
		{"infinite alpha_c", func(c *Config) { c.AlphaC = math.Inf(1) }},
		{"infinite kappa_max", func(c *Config) { c.CurvatureMax = math.Inf(1) }},
		{"nan alpha_semantic", func(c *Config) { c.AlphaSemantic = math.NaN() }},
	}

	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected INVALID_CONFIG, got %v", err)
			}
		})
	}
}

func TestErrorCodes(t *testing.T) {
	err := fmt.Errorf("guard: %w", Newf(CodeForbiddenAction, "action %s", "SLIDER_CONTROL"))

	if !errors.Is(err, ErrForbiddenAction) {
		t.Error("expected errors.Is to match by code")
	}
	if errors.Is(err, ErrInvalidAction) {
		t.Error("different codes must not match")
	}
	if CodeOf(err) != CodeForbiddenAction {
		t.Errorf("expected FORBIDDEN_ACTION, got %s", CodeOf(err))
	}
	if CodeOf(errors.New("plain")) != CodeUnknown {
		t.Error("plain errors should map to UNKNOWN")
	}

	tests := []struct {
		code  Code
		cat   Category
		fatal bool
	}{
		{CodeInputEmpty, CategoryInput, false},
		{CodePresetOutOfRange, CategoryRange, false},
		{CodeSealedController, CategoryAccessViolation, true},
		{CodeReplayStateMismatch, CategoryIntegrity, true},
	}
	for _, tt := range tests {
		if got := tt.code.Category(); got != tt.cat {
			t.Errorf("%s: category %s, want %s", tt.code, got, tt.cat)
		}
		if got := tt.code.Fatal(); got != tt.fatal {
			t.Errorf("%s: fatal %v, want %v", tt.code, got, tt.fatal)
		}
	}
}
