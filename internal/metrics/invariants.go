package metrics

import (
	"github.com/san-kum/fieldcanon/internal/dynamo"
)

// Invariants is the fraction of observed states that satisfy the
// decomposition, clamp and wrap invariants. 1.0 means no violations.
type Invariants struct {
	name       string
	cfg        dynamo.Config
	violations int
	samples    int
}

func NewInvariants(cfg dynamo.Config) *Invariants {
	return &Invariants{name: "invariants", cfg: cfg}
}

func (s *Invariants) Name() string {
	return s.name
}

func (s *Invariants) Observe(x dynamo.State) {
	s.samples++
	if !Holds(x, s.cfg) {
		s.violations++
	}
}

func (s *Invariants) Value() float64 {
	if s.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(s.violations)/float64(s.samples)
}

func (s *Invariants) Violations() int {
	return s.violations
}

func (s *Invariants) Reset() {
	s.violations = 0
	s.samples = 0
}

// Holds reports whether x satisfies the state invariants under cfg.
func Holds(x dynamo.State, cfg dynamo.Config) bool {
	switch {
	case x.Residual() > dynamo.Epsilon:
		return false
	case x.TensionSyntax < 0 || x.TensionStructural < 0:
		return false
	case x.Coherence < 0 || x.Coherence > 1:
		return false
	case x.Curvature < cfg.CurvatureMin || x.Curvature > cfg.CurvatureMax:
		return false
	case x.Phase < 0 || x.Phase >= dynamo.TwoPi:
		return false
	}
	return true
}
