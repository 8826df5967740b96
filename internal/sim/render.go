package sim

import (
	"fmt"
	"strings"

	"github.com/san-kum/fieldcanon/internal/dynamo"
)

// Render formats a terminal state. Below the coherence threshold only the
// incomplete block is produced; the full-precision payload never leaks.
func Render(x dynamo.State, identifier string) string {
	var sb strings.Builder
	if x.Coherence < dynamo.CoherenceThreshold {
		fmt.Fprintf(&sb, "FNO_INCOMPLETE_%s\n", identifier)
		fmt.Fprintf(&sb, "  coherence: %.5f\n", x.Coherence)
		fmt.Fprintf(&sb, "  iterations: %d\n", x.Step)
		fmt.Fprintf(&sb, "  status: %s\n", dynamo.StatusMaxSteps)
		return sb.String()
	}

	fmt.Fprintf(&sb, "FNO_CANONICAL_%s\n", identifier)
	fmt.Fprintf(&sb, "  tension: %.6f\n", x.Tension)
	fmt.Fprintf(&sb, "  curvature: %.3f\n", x.Curvature)
	fmt.Fprintf(&sb, "  phase: %.4f\n", x.Phase)
	fmt.Fprintf(&sb, "  coherence: %.4f\n", x.Coherence)
	fmt.Fprintf(&sb, "  status: %s\n", dynamo.StatusCompiled)
	return sb.String()
}

// Complete reports which render branch x falls into.
func Complete(x dynamo.State) bool {
	return x.Coherence >= dynamo.CoherenceThreshold
}

// EnergyLevel buckets the input signature for reports.
func EnergyLevel(energy float64) string {
	switch {
	case energy < 0.33:
		return "LOW"
	case energy < 0.66:
		return "MEDIUM"
	default:
		return "HIGH"
	}
}
