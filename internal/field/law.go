// Package field defines the derivative terms of the field law, the profile
// table used to seed an engine and the fixed sector table.
package field

import (
	"math"

	"github.com/san-kum/fieldcanon/internal/dynamo"
)

// Decay is the derivative of a non-negative tension component.
func Decay(x, rate float64) float64 {
	return -x * rate
}

// Relax is the derivative pulling the semantic component toward the attractor.
func Relax(sem, rate float64) float64 {
	return -(sem - dynamo.Attractor) * rate
}

// CoherenceRate grows coherence with incoherence and shrinks it with the
// distance of total tension from the attractor.
func CoherenceRate(tension, coherence float64, cfg dynamo.Config) float64 {
	incoherence := 1 - coherence
	return cfg.AlphaC*incoherence - cfg.BetaC*math.Abs(tension-dynamo.Attractor)
}

func CurvatureRate(tension, coherence float64, cfg dynamo.Config) float64 {
	return cfg.Coupling * tension * (1 - coherence)
}

// PhaseRate takes the curvature in effect at the start of the step.
func PhaseRate(tension, curvature float64, cfg dynamo.Config) float64 {
	return cfg.Coupling * tension / curvature
}
