package integrators

import (
	"math"

	"github.com/san-kum/fieldcanon/internal/dynamo"
	"github.com/san-kum/fieldcanon/internal/field"
)

// Euler advances the field by one explicit Euler step. Updates are applied
// in a fixed order and later terms read the already-updated tension.
type Euler struct{}

func NewEuler() *Euler {
	return &Euler{}
}

func (e *Euler) Step(x dynamo.State, cfg dynamo.Config) dynamo.State {
	dt := cfg.StepSize
	next := x

	next.TensionSyntax = math.Max(0, x.TensionSyntax+field.Decay(x.TensionSyntax, cfg.AlphaSyntax)*dt)
	next.TensionStructural = math.Max(0, x.TensionStructural+field.Decay(x.TensionStructural, cfg.AlphaStructural)*dt)
	next.TensionSemantic = x.TensionSemantic + field.Relax(x.TensionSemantic, cfg.AlphaSemantic)*dt
	next.Resum()

	dC := field.CoherenceRate(next.Tension, x.Coherence, cfg)
	dKappa := field.CurvatureRate(next.Tension, x.Coherence, cfg)
	dTheta := field.PhaseRate(next.Tension, x.Curvature, cfg)

	next.Coherence = dynamo.Clamp(x.Coherence+dC*dt, 0, 1)
	next.Curvature = dynamo.Clamp(x.Curvature+dKappa*dt, cfg.CurvatureMin, cfg.CurvatureMax)
	next.Phase = dynamo.WrapAngle(x.Phase + dTheta*dt)
	next.Step = x.Step + 1

	return next
}
