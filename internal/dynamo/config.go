package dynamo

import (
	"fmt"
	"math"
	"sort"
)

// Config holds the coefficients of the field law. It is copied into an
// engine at construction and never changed afterwards.
type Config struct {
	StepSize        float64 `yaml:"step_size" json:"step_size"`
	AlphaPhi        float64 `yaml:"alpha_phi" json:"alpha_phi"`
	AlphaC          float64 `yaml:"alpha_c" json:"alpha_c"`
	BetaC           float64 `yaml:"beta_c" json:"beta_c"`
	Coupling        float64 `yaml:"k_coupling" json:"k_coupling"`
	MaxSteps        int     `yaml:"max_steps" json:"max_steps"`
	CurvatureMin    float64 `yaml:"kappa_min" json:"kappa_min"`
	CurvatureMax    float64 `yaml:"kappa_max" json:"kappa_max"`
	AlphaSyntax     float64 `yaml:"alpha_syntax" json:"alpha_syntax"`
	AlphaStructural float64 `yaml:"alpha_structural" json:"alpha_structural"`
	AlphaSemantic   float64 `yaml:"alpha_semantic" json:"alpha_semantic"`
}

func DefaultConfig() Config {
	return Config{
		StepSize:        0.1,
		AlphaPhi:        0.05,
		AlphaC:          0.05,
		BetaC:           0.5,
		Coupling:        0.1,
		MaxSteps:        50000,
		CurvatureMin:    0.01,
		CurvatureMax:    10.0,
		AlphaSyntax:     0.1,
		AlphaStructural: 0.1,
		AlphaSemantic:   0.05,
	}
}

// MergeConfig overlays a sparse set of coefficients on the defaults.
// Unrecognized keys are ignored.
func MergeConfig(sparse map[string]float64) Config {
	return DefaultConfig().Merge(sparse)
}

// Merge returns c with the keys of sparse overlaid.
func (c Config) Merge(sparse map[string]float64) Config {
	cfg := c
	for k, v := range sparse {
		switch k {
		case "step_size", "stepSize":
			cfg.StepSize = v
		case "alpha_phi":
			cfg.AlphaPhi = v
		case "alpha_c":
			cfg.AlphaC = v
		case "beta_c":
			cfg.BetaC = v
		case "k_coupling", "K_coupling":
			cfg.Coupling = v
		case "max_steps", "maxSteps":
			cfg.MaxSteps = int(v)
		case "kappa_min":
			cfg.CurvatureMin = v
		case "kappa_max":
			cfg.CurvatureMax = v
		case "alpha_syntax":
			cfg.AlphaSyntax = v
		case "alpha_structural":
			cfg.AlphaStructural = v
		case "alpha_semantic":
			cfg.AlphaSemantic = v
		}
	}
	return cfg
}

func (c Config) Validate() error {
	params := c.Params()
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if v := params[name]; math.IsNaN(v) || math.IsInf(v, 0) {
			return Newf(CodeInvalidConfig, "%s must be finite, got %g", name, v)
		}
	}
	if c.StepSize <= 0 {
		return Newf(CodeInvalidConfig, "step_size must be positive, got %f", c.StepSize)
	}
	if c.MaxSteps <= 0 {
		return Newf(CodeInvalidConfig, "max_steps must be positive, got %d", c.MaxSteps)
	}
	if c.CurvatureMin <= 0 || c.CurvatureMin > c.CurvatureMax {
		return Newf(CodeInvalidConfig, "curvature bounds invalid: [%g, %g]", c.CurvatureMin, c.CurvatureMax)
	}
	return nil
}

// Params returns the coefficients keyed by their wire names.
func (c Config) Params() map[string]float64 {
	return map[string]float64{
		"step_size":        c.StepSize,
		"alpha_phi":        c.AlphaPhi,
		"alpha_c":          c.AlphaC,
		"beta_c":           c.BetaC,
		"k_coupling":       c.Coupling,
		"max_steps":        float64(c.MaxSteps),
		"kappa_min":        c.CurvatureMin,
		"kappa_max":        c.CurvatureMax,
		"alpha_syntax":     c.AlphaSyntax,
		"alpha_structural": c.AlphaStructural,
		"alpha_semantic":   c.AlphaSemantic,
	}
}

func (c Config) String() string {
	return fmt.Sprintf("dt=%g K=%g alpha_c=%g beta_c=%g kappa=[%g,%g] max_steps=%d",
		c.StepSize, c.Coupling, c.AlphaC, c.BetaC, c.CurvatureMin, c.CurvatureMax, c.MaxSteps)
}
