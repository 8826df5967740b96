package guard

import (
	"strings"

	"github.com/san-kum/fieldcanon/internal/audit"
	"github.com/san-kum/fieldcanon/internal/dynamo"
)

// Forbidden names control styles that must never reach the engine. None of
// them is a permitted action; the list keeps the rejection explicit.
var Forbidden = map[string]bool{
	"DIRECT_TENSION_SET":    true,
	"DIRECT_CURVATURE_SET":  true,
	"DIRECT_PHASE_SET":      true,
	"DIRECT_COHERENCE_SET":  true,
	"DIRECT_ENERGY_SET":     true,
	"DIRECT_STEP_SET":       true,
	"SLIDER_CONTROL":        true,
	"REALTIME_TRACKING":     true,
	"AI_ASSISTED_SELECTION": true,
	"LEARNING_ADAPTATION":   true,
}

// ParseAction maps a user-supplied name onto a permitted action. Forbidden
// names get FORBIDDEN_ACTION, anything else unknown gets INVALID_ACTION.
func ParseAction(name string) (audit.Action, error) {
	n := strings.ToUpper(strings.TrimSpace(name))
	if Forbidden[n] {
		return "", dynamo.ErrForbiddenAction.With("action", n)
	}
	a := audit.Action(n)
	if !a.Valid() {
		return "", dynamo.ErrInvalidAction.With("action", name)
	}
	return a, nil
}

func checkAction(a audit.Action) error {
	if !a.Valid() {
		return dynamo.ErrInvalidAction.With("action", string(a))
	}
	if Forbidden[string(a)] {
		return dynamo.ErrForbiddenAction.With("action", string(a))
	}
	return nil
}
