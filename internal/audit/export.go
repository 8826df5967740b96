package audit

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
)

// Export is the portable form of a trail.
type Export struct {
	ID        string             `json:"id"`
	Records   []Record           `json:"records"`
	Sealed    bool               `json:"sealed"`
	Count     int                `json:"count"`
	Integrity VerificationResult `json:"integrity"`
}

func (t *Trail) Export() Export {
	records := t.Records()
	return Export{
		ID:        t.id,
		Records:   records,
		Sealed:    t.Sealed(),
		Count:     len(records),
		Integrity: Verify(records),
	}
}

func (e Export) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(e)
}

// ReadExport decodes an export and re-verifies it. The stored Integrity
// field is replaced by the fresh result.
func ReadExport(r io.Reader) (Export, error) {
	var e Export
	if err := json.NewDecoder(r).Decode(&e); err != nil {
		return Export{}, fmt.Errorf("decode audit export: %w", err)
	}
	if e.Count != len(e.Records) {
		return e, fmt.Errorf("audit export %s: count %d does not match %d records", e.ID, e.Count, len(e.Records))
	}
	e.Integrity = Verify(e.Records)
	return e, nil
}

// FromExport rebuilds a trail from a verified export.
func FromExport(e Export, opts ...Option) (*Trail, error) {
	if v := Verify(e.Records); !v.Valid {
		return nil, v.Err()
	}
	t := New(append([]Option{WithID(e.ID)}, opts...)...)
	t.records = append(t.records, e.Records...)
	t.sealed = e.Sealed
	return t, nil
}

// Stats summarizes a trail. Violations counts rejected attempts, which
// never become records.
type Stats struct {
	Total      int            `json:"total"`
	ByAction   map[Action]int `json:"byAction"`
	BySector   map[int]int    `json:"bySector"`
	Violations int            `json:"violations"`
	Sealed     bool           `json:"sealed"`
}

func (t *Trail) Stats() Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s := Stats{
		Total:      len(t.records),
		ByAction:   make(map[Action]int),
		BySector:   make(map[int]int),
		Violations: t.violations,
		Sealed:     t.sealed,
	}
	for _, r := range t.records {
		s.ByAction[r.Action]++
		if _, ok := r.Action.Sector(); ok {
			s.BySector[r.Preset]++
		}
	}
	return s
}

// Actions returns the recorded actions sorted by name.
func (s Stats) Actions() []Action {
	out := make([]Action, 0, len(s.ByAction))
	for a := range s.ByAction {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
