// Package audit keeps the append-only, hash-chained record of governed
// actions and verifies it after the fact.
package audit

import (
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/san-kum/fieldcanon/internal/clock"
	"github.com/san-kum/fieldcanon/internal/dynamo"
	"github.com/san-kum/fieldcanon/internal/logging"
)

// Reader is the read-only view of a trail handed to callers outside the
// controller.
type Reader interface {
	ID() string
	Records() []Record
	Len() int
	Last() (Record, bool)
	Sealed() bool
	VerifyIntegrity() VerificationResult
	Export() Export
	Stats() Stats
}

type Trail struct {
	id     string
	clock  clock.Clock
	logger *slog.Logger

	mu         sync.RWMutex
	records    []Record
	sealed     bool
	violations int
}

var _ Reader = (*Trail)(nil)

type Option func(*Trail)

func WithClock(c clock.Clock) Option {
	return func(t *Trail) { t.clock = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(t *Trail) {
		if l != nil {
			t.logger = l
		}
	}
}

// WithID overrides the generated trail id.
func WithID(id string) Option {
	return func(t *Trail) { t.id = id }
}

func New(opts ...Option) *Trail {
	t := &Trail{
		id:     uuid.NewString(),
		clock:  clock.Real{},
		logger: logging.Discard(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Trail) ID() string { return t.id }

// Prepare builds the record that would be appended next without appending
// it. A record that fails either canon flag is rejected and counted as a
// violation.
func (t *Trail) Prepare(a Action, preset int, before, after dynamo.State) (Record, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.sealed {
		return Record{}, dynamo.ErrSealedAuditTrail
	}

	r := Record{
		Seq:             len(t.records),
		Timestamp:       t.clock.Now().UTC(),
		Action:          a,
		Preset:          preset,
		Before:          before,
		After:           after,
		EnergyInvariant: EnergyHolds(a, before, after),
		CanonCompliance: CanonHolds(a, preset, before, after),
		PrevHash:        t.lastHash(),
	}
	if !r.Compliant() {
		t.violations++
		t.logger.Warn("audit record rejected", "action", a, "preset", preset,
			"energy_invariant", r.EnergyInvariant, "canon_compliance", r.CanonCompliance)
		return r, dynamo.ErrAuditCanonViolation.
			With("action", string(a)).
			With("energy_invariant", strconv.FormatBool(r.EnergyInvariant)).
			With("canon_compliance", strconv.FormatBool(r.CanonCompliance))
	}

	h, err := r.ComputeHash()
	if err != nil {
		return Record{}, err
	}
	r.Hash = h
	return r, nil
}

// Append adds a record returned by Prepare. It fails if another record was
// appended in between.
func (t *Trail) Append(r Record) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.sealed {
		return dynamo.ErrSealedAuditTrail
	}
	if r.Seq != len(t.records) || r.PrevHash != t.lastHash() {
		return dynamo.ErrAuditChainBroken.With("seq", strconv.Itoa(r.Seq))
	}
	if !r.Compliant() {
		return dynamo.ErrAuditCanonViolation.With("action", string(r.Action))
	}
	t.records = append(t.records, r)
	t.logger.Debug("audit record appended", "seq", r.Seq, "action", r.Action, "hash", r.Hash)
	return nil
}

// AddRecord is Prepare followed by Append.
func (t *Trail) AddRecord(a Action, preset int, before, after dynamo.State) (Record, error) {
	r, err := t.Prepare(a, preset, before, after)
	if err != nil {
		return r, err
	}
	if err := t.Append(r); err != nil {
		return Record{}, err
	}
	return r, nil
}

// RecordViolation counts an attempt that was rejected before a record
// could be built, such as a forbidden action.
func (t *Trail) RecordViolation(action string, cause error) {
	t.mu.Lock()
	t.violations++
	t.mu.Unlock()
	t.logger.Warn("governed action rejected", "action", action, "err", cause)
}

// Seal is one-way.
func (t *Trail) Seal() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.sealed {
		t.sealed = true
		t.logger.Info("audit trail sealed", "id", t.id, "records", len(t.records))
	}
}

func (t *Trail) Sealed() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.sealed
}

func (t *Trail) Records() []Record {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Record, len(t.records))
	copy(out, t.records)
	return out
}

func (t *Trail) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.records)
}

func (t *Trail) Last() (Record, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.records) == 0 {
		return Record{}, false
	}
	return t.records[len(t.records)-1], true
}

func (t *Trail) lastHash() string {
	if len(t.records) == 0 {
		return GenesisHash
	}
	return t.records[len(t.records)-1].Hash
}

func (t *Trail) VerifyIntegrity() VerificationResult {
	return Verify(t.Records())
}

// VerificationResult reports the first broken record, if any. BrokenAt is
// -1 for a valid trail.
type VerificationResult struct {
	Valid          bool   `json:"valid"`
	EntriesChecked int    `json:"entriesChecked"`
	BrokenAt       int    `json:"brokenAt"`
	Reason         string `json:"reason,omitempty"`
}

func (v VerificationResult) Err() error {
	if v.Valid {
		return nil
	}
	return dynamo.Newf(dynamo.CodeAuditChainBroken, "record %d: %s", v.BrokenAt, v.Reason)
}

// Verify re-checks records as if they formed a trail: sequence, stored
// flags, chain links and hashes, then the flags re-derived from the states,
// continuity of each before-state with the previous after-state, and
// timestamp order. A re-hashed forgery still fails the state checks.
func Verify(records []Record) VerificationResult {
	prev := GenesisHash
	for i, r := range records {
		fail := func(reason string) VerificationResult {
			return VerificationResult{EntriesChecked: i + 1, BrokenAt: i, Reason: reason}
		}

		if r.Seq != i {
			return fail(fmt.Sprintf("sequence %d out of order", r.Seq))
		}
		if !r.CanonCompliance {
			return fail("canon violation")
		}
		if !r.EnergyInvariant {
			return fail("energy invariant violation")
		}
		if r.PrevHash != prev {
			return fail("chain link mismatch")
		}
		h, err := r.ComputeHash()
		if err != nil {
			return fail(err.Error())
		}
		if h != r.Hash {
			return fail("hash mismatch")
		}
		if CanonHolds(r.Action, r.Preset, r.Before, r.After) != r.CanonCompliance {
			return fail("canon flag mismatch")
		}
		if EnergyHolds(r.Action, r.Before, r.After) != r.EnergyInvariant {
			return fail("energy flag mismatch")
		}
		if i > 0 && !r.Before.Equal(records[i-1].After, dynamo.AuditTolerance) {
			return fail("state discontinuity")
		}
		if i > 0 && r.Timestamp.Before(records[i-1].Timestamp) {
			return fail("temporal inconsistency")
		}
		prev = r.Hash
	}
	return VerificationResult{Valid: true, EntriesChecked: len(records), BrokenAt: -1}
}
