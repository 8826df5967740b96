package analysis

import (
	"context"
	"math"

	"github.com/san-kum/fieldcanon/internal/dynamo"
	"github.com/san-kum/fieldcanon/internal/field"
	"github.com/san-kum/fieldcanon/internal/sim"
)

// Sensitivity estimates the largest divergence rate of the field seeded from
// input. A second engine starts with its semantic tension shifted by
// perturbation; after every step the separation is measured and the second
// trajectory is pulled back to the initial distance. The result is the mean
// log growth per unit time.
func Sensitivity(ctx context.Context, input string, profile field.Profile, cfg dynamo.Config, perturbation float64, steps int) (float64, error) {
	if perturbation <= 0 || steps <= 0 {
		return 0, dynamo.Newf(dynamo.CodeInvalidConfig, "perturbation and steps must be positive")
	}

	base, err := sim.New(cfg)
	if err != nil {
		return 0, err
	}
	init, err := base.Reinitialize(input, profile)
	if err != nil {
		return 0, err
	}

	shadow, err := sim.New(cfg)
	if err != nil {
		return 0, err
	}
	x0p := init.State
	x0p.TensionSemantic += perturbation
	x0p.Resum()
	if err := shadow.Restore(x0p, init.Identifier); err != nil {
		return 0, err
	}

	d0 := separation(init.State, x0p)
	sumLog := 0.0
	count := 0

	for i := 0; i < steps; i++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if _, err := base.Step(); err != nil {
			return 0, err
		}
		if _, err := shadow.Step(); err != nil {
			return 0, err
		}
		x, _ := base.State()
		xp, _ := shadow.State()

		sep := separation(x, xp)
		if sep == 0 {
			continue
		}
		sumLog += math.Log(sep / d0)
		count++

		if err := shadow.Restore(rescale(x, xp, d0/sep), init.Identifier); err != nil {
			return 0, err
		}
	}

	if count == 0 {
		return math.Inf(-1), nil
	}
	return sumLog / (float64(count) * cfg.StepSize), nil
}

func vec(s dynamo.State) [8]float64 {
	return [8]float64{
		s.Tension, s.TensionSyntax, s.TensionSemantic, s.TensionStructural,
		s.Curvature, s.Phase, s.Energy, s.Coherence,
	}
}

// phaseDelta is the signed shortest angle from a to b.
func phaseDelta(a, b float64) float64 {
	d := dynamo.WrapAngle(b - a)
	if d > math.Pi {
		d -= dynamo.TwoPi
	}
	return d
}

func separation(a, b dynamo.State) float64 {
	va, vb := vec(a), vec(b)
	sum := 0.0
	for i := range va {
		d := vb[i] - va[i]
		if i == 5 {
			d = phaseDelta(va[i], vb[i])
		}
		sum += d * d
	}
	return math.Sqrt(sum)
}

// rescale moves b toward a so that each component offset is scaled by k.
func rescale(a, b dynamo.State, k float64) dynamo.State {
	out := a
	out.TensionSyntax += (b.TensionSyntax - a.TensionSyntax) * k
	out.TensionSemantic += (b.TensionSemantic - a.TensionSemantic) * k
	out.TensionStructural += (b.TensionStructural - a.TensionStructural) * k
	out.Resum()
	out.Curvature += (b.Curvature - a.Curvature) * k
	out.Phase = dynamo.WrapAngle(a.Phase + phaseDelta(a.Phase, b.Phase)*k)
	out.Energy += (b.Energy - a.Energy) * k
	out.Coherence += (b.Coherence - a.Coherence) * k
	return out
}
