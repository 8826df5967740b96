// Package replay re-executes a recorded action sequence on a fresh engine
// and checks that it lands on the same state.
package replay

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/san-kum/fieldcanon/internal/audit"
	"github.com/san-kum/fieldcanon/internal/clock"
	"github.com/san-kum/fieldcanon/internal/dynamo"
	"github.com/san-kum/fieldcanon/internal/guard"
	"github.com/san-kum/fieldcanon/internal/logging"
	"github.com/san-kum/fieldcanon/internal/sim"
)

type Verifier struct {
	Config dynamo.Config
	Logger *slog.Logger
	Clock  clock.Clock
}

// Report describes one replay. FirstDivergence is the first record whose
// replayed after-state differs from the recorded one, or -1.
type Report struct {
	TrailID         string       `json:"trailId,omitempty"`
	Total           int          `json:"total"`
	Replayed        int          `json:"replayed"`
	Final           dynamo.State `json:"final"`
	Expected        dynamo.State `json:"expected"`
	Diverged        []string     `json:"diverged,omitempty"`
	FirstDivergence int          `json:"firstDivergence"`
	OK              bool         `json:"ok"`
}

func (v Verifier) logger() *slog.Logger {
	if v.Logger == nil {
		return logging.Discard()
	}
	return v.Logger
}

// Verify replays records in order and compares the result with expected.
// A rejected action fails with REPLAY_FAILURE. A differing final state, or
// any record whose replayed after-state differs from the recorded one, fails
// with REPLAY_STATE_MISMATCH. The report is filled in either way.
func (v Verifier) Verify(ctx context.Context, records []audit.Record, expected dynamo.State) (Report, error) {
	rep := Report{Total: len(records), Expected: expected, FirstDivergence: -1}

	engine, err := sim.New(v.Config, sim.WithLogger(v.logger()))
	if err != nil {
		return rep, err
	}
	if len(records) > 0 {
		if err := engine.Restore(records[0].Before, ""); err != nil {
			return rep, dynamo.Wrap(dynamo.CodeReplayFailure, "restore initial state", err)
		}
	}

	var opts []audit.Option
	if v.Clock != nil {
		opts = append(opts, audit.WithClock(v.Clock))
	}
	ctrl, err := guard.New(engine, audit.New(opts...), guard.WithLogger(v.logger()))
	if err != nil {
		return rep, err
	}

	for _, r := range records {
		got, err := ctrl.ExecuteAction(ctx, r.Action, r.Preset)
		if err != nil {
			rep.Final = ctrl.State()
			return rep, dynamo.Wrap(dynamo.CodeReplayFailure, "action rejected", err).
				With("seq", strconv.Itoa(r.Seq)).
				With("action", string(r.Action))
		}
		rep.Replayed++
		if rep.FirstDivergence < 0 && !got.After.Equal(r.After, dynamo.AuditTolerance) {
			rep.FirstDivergence = r.Seq
		}
	}

	rep.Final = ctrl.State()
	rep.Diverged = rep.Final.Diff(expected, dynamo.AuditTolerance)
	if len(rep.Diverged) > 0 {
		v.logger().Warn("replay diverged", "fields", rep.Diverged, "first", rep.FirstDivergence)
		return rep, dynamo.ErrReplayStateMismatch.With("fields", strings.Join(rep.Diverged, ","))
	}
	if rep.FirstDivergence >= 0 {
		v.logger().Warn("replay diverged from recorded history", "first", rep.FirstDivergence)
		return rep, dynamo.ErrReplayStateMismatch.With("seq", strconv.Itoa(rep.FirstDivergence))
	}

	rep.OK = true
	v.logger().Info("replay verified", "records", rep.Replayed)
	return rep, nil
}

// VerifyExport checks the export's chain and replays it against its own
// last recorded state.
func (v Verifier) VerifyExport(ctx context.Context, e audit.Export) (Report, error) {
	if res := audit.Verify(e.Records); !res.Valid {
		return Report{TrailID: e.ID, Total: len(e.Records), FirstDivergence: -1}, res.Err()
	}

	expected := dynamo.BlankState()
	if n := len(e.Records); n > 0 {
		expected = e.Records[n-1].After
	}
	rep, err := v.Verify(ctx, e.Records, expected)
	rep.TrailID = e.ID
	return rep, err
}
