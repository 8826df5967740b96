package replay

import (
	"context"
	"errors"
	"testing"

	"github.com/san-kum/fieldcanon/internal/audit"
	"github.com/san-kum/fieldcanon/internal/dynamo"
	"github.com/san-kum/fieldcanon/internal/field"
	"github.com/san-kum/fieldcanon/internal/guard"
	"github.com/san-kum/fieldcanon/internal/sim"
)

type step struct {
	action audit.Action
	preset int
}

var session = []step{
	{audit.ActionSector2, 2},
	{audit.ActionReadState, audit.NoPreset},
	{audit.ActionResetEngine, audit.NoPreset},
	{audit.ActionSector5, 5},
	{audit.ActionReadState, audit.NoPreset},
}

func record(t *testing.T) (*guard.Controller, audit.Export) {
	t.Helper()
	return recordSession(t, session)
}

func recordSession(t *testing.T, steps []step) (*guard.Controller, audit.Export) {
	t.Helper()
	ctx := context.Background()

	e, err := sim.New(dynamo.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.CompileInput(ctx, "function main() {}", field.ProfileGraph); err != nil {
		t.Fatalf("compile: %v", err)
	}

	ctrl, err := guard.New(e, audit.New())
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range steps {
		if _, err := ctrl.ExecuteAction(ctx, s.action, s.preset); err != nil {
			t.Fatalf("%s: %v", s.action, err)
		}
	}
	ctrl.Seal()
	return ctrl, ctrl.Trail().Export()
}

func TestVerify_Matches(t *testing.T) {
	ctrl, exp := record(t)
	v := Verifier{Config: dynamo.DefaultConfig()}

	rep, err := v.Verify(context.Background(), exp.Records, ctrl.State())
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !rep.OK || rep.Replayed != len(session) || rep.FirstDivergence != -1 {
		t.Errorf("unexpected report: %+v", rep)
	}
	if rep.Final != ctrl.State() {
		t.Errorf("final %v, want %v", rep.Final, ctrl.State())
	}
}

func TestVerifyExport(t *testing.T) {
	_, exp := record(t)
	rep, err := Verifier{Config: dynamo.DefaultConfig()}.VerifyExport(context.Background(), exp)
	if err != nil {
		t.Fatalf("verify export: %v", err)
	}
	if rep.TrailID != exp.ID || !rep.OK {
		t.Errorf("unexpected report: %+v", rep)
	}
}

func TestVerify_StateMismatch(t *testing.T) {
	ctrl, exp := record(t)
	expected := ctrl.State()
	expected.Curvature += 0.5

	rep, err := Verifier{Config: dynamo.DefaultConfig()}.Verify(context.Background(), exp.Records, expected)
	if !errors.Is(err, dynamo.ErrReplayStateMismatch) {
		t.Fatalf("expected REPLAY_STATE_MISMATCH, got %v", err)
	}
	if rep.OK || len(rep.Diverged) != 1 || rep.Diverged[0] != "curvature" {
		t.Errorf("unexpected report: %+v", rep)
	}
	if dynamo.CodeOf(err).Category() != dynamo.CategoryIntegrity {
		t.Error("replay mismatch should be an integrity error")
	}
}

func TestVerify_RejectedAction(t *testing.T) {
	_, exp := record(t)
	records := exp.Records
	records[3].Preset = 1

	rep, err := Verifier{Config: dynamo.DefaultConfig()}.Verify(context.Background(), records, records[len(records)-1].After)
	if !errors.Is(err, dynamo.ErrReplayFailure) {
		t.Fatalf("expected REPLAY_FAILURE, got %v", err)
	}
	if !errors.Is(err, dynamo.ErrAuditCanonViolation) {
		t.Errorf("cause should be kept: %v", err)
	}
	if rep.Replayed != 3 {
		t.Errorf("replayed %d before failing, want 3", rep.Replayed)
	}
}

func TestVerifyExport_Tampered(t *testing.T) {
	_, exp := record(t)
	exp.Records[1].After.Phase = 1

	_, err := Verifier{Config: dynamo.DefaultConfig()}.VerifyExport(context.Background(), exp)
	if !errors.Is(err, dynamo.ErrAuditChainBroken) {
		t.Errorf("expected AUDIT_CHAIN_BROKEN, got %v", err)
	}
}

func TestVerify_Empty(t *testing.T) {
	rep, err := Verifier{Config: dynamo.DefaultConfig()}.Verify(context.Background(), nil, dynamo.BlankState())
	if err != nil || !rep.OK {
		t.Errorf("empty replay: %+v %v", rep, err)
	}
}

func TestVerify_ThreeSectors(t *testing.T) {
	sectors := []step{
		{audit.ActionSector1, 1},
		{audit.ActionSector3, 3},
		{audit.ActionSector5, 5},
	}
	ctrl, exp := recordSession(t, sectors)
	want := ctrl.State()

	rep, err := Verifier{Config: dynamo.DefaultConfig()}.Verify(context.Background(), exp.Records, want)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if rep.Replayed != 3 || !rep.OK {
		t.Errorf("unexpected report: %+v", rep)
	}
	if rep.Final.Curvature != want.Curvature || rep.Final.Phase != want.Phase {
		t.Errorf("curvature/phase %g/%g, want %g/%g", rep.Final.Curvature, rep.Final.Phase, want.Curvature, want.Phase)
	}
}

func TestVerify_IntermediateDivergence(t *testing.T) {
	_, exp := record(t)
	records := exp.Records
	forged := records[1].After
	forged.Phase = dynamo.WrapAngle(forged.Phase + 1)
	forged.Coherence = 0.5
	records[1].Before = forged
	records[1].After = forged
	rehash(t, records)

	v := Verifier{Config: dynamo.DefaultConfig()}
	rep, err := v.Verify(context.Background(), records, records[len(records)-1].After)
	if !errors.Is(err, dynamo.ErrReplayStateMismatch) {
		t.Fatalf("expected REPLAY_STATE_MISMATCH, got %v", err)
	}
	if rep.OK || rep.FirstDivergence != 1 || len(rep.Diverged) != 0 {
		t.Errorf("unexpected report: %+v", rep)
	}

	exp.Records = records
	if _, err := v.VerifyExport(context.Background(), exp); !errors.Is(err, dynamo.ErrAuditChainBroken) {
		t.Errorf("re-hashed forgery should fail the chain check, got %v", err)
	}
}

func rehash(t *testing.T, rs []audit.Record) {
	t.Helper()
	prev := audit.GenesisHash
	for i := range rs {
		rs[i].PrevHash = prev
		h, err := rs[i].ComputeHash()
		if err != nil {
			t.Fatal(err)
		}
		rs[i].Hash = h
		prev = h
	}
}
