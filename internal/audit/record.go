package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"math"
	"strings"
	"time"

	"github.com/san-kum/fieldcanon/internal/dynamo"
)

// GenesisHash is the PrevHash of the first record in a trail.
var GenesisHash = strings.Repeat("0", 64)

// Record is one accepted governed action. Records are values; the trail
// hands out copies.
type Record struct {
	Seq             int          `json:"seq"`
	Timestamp       time.Time    `json:"timestamp"`
	Action          Action       `json:"actionId"`
	Preset          int          `json:"preset"`
	Before          dynamo.State `json:"before"`
	After           dynamo.State `json:"after"`
	EnergyInvariant bool         `json:"energyInvariant"`
	CanonCompliance bool         `json:"canonCompliance"`
	PrevHash        string       `json:"prevHash"`
	Hash            string       `json:"hash"`
}

// Compliant reports whether both canon flags hold.
func (r Record) Compliant() bool {
	return r.EnergyInvariant && r.CanonCompliance
}

// ComputeHash hashes the canonical form of r. The stored Hash field is not
// part of the input.
func (r Record) ComputeHash() (string, error) {
	canonical := map[string]any{
		"actionId":        string(r.Action),
		"after":           r.After.Fields(),
		"before":          r.Before.Fields(),
		"canonCompliance": r.CanonCompliance,
		"energyInvariant": r.EnergyInvariant,
		"prevHash":        r.PrevHash,
		"preset":          r.Preset,
		"timestamp":       r.Timestamp.UTC().Format(time.RFC3339Nano),
	}
	// encoding/json sorts map keys at every level.
	b, err := json.Marshal(canonical)
	if err != nil {
		return "", dynamo.Wrap(dynamo.CodeInvalidState, "canonical encoding", err)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// EnergyHolds is false when a non-reset action changed the energy.
func EnergyHolds(a Action, before, after dynamo.State) bool {
	if a == ActionResetEngine {
		return true
	}
	return math.Abs(before.Energy-after.Energy) < dynamo.AuditTolerance
}

// CanonHolds checks the per-action postconditions: a sector action lands
// on step 0 of the sector it names, a read leaves the state as it was.
func CanonHolds(a Action, preset int, before, after dynamo.State) bool {
	if n, ok := a.Sector(); ok {
		return after.Step == 0 && n == preset
	}
	if a == ActionReadState {
		return before.Equal(after, dynamo.AuditTolerance)
	}
	return true
}
