package guard_test

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.opentelemetry.io/otel/codes"

	"github.com/san-kum/fieldcanon/internal/audit"
	"github.com/san-kum/fieldcanon/internal/clock"
	"github.com/san-kum/fieldcanon/internal/dynamo"
	"github.com/san-kum/fieldcanon/internal/field"
	"github.com/san-kum/fieldcanon/internal/guard"
	"github.com/san-kum/fieldcanon/internal/logging"
	"github.com/san-kum/fieldcanon/internal/sim"
)

var _ = Describe("Controller", func() {
	var (
		ctx    context.Context
		engine *sim.Engine
		trail  *audit.Trail
		ctrl   *guard.Controller
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		engine, err = sim.New(dynamo.DefaultConfig())
		Expect(err).NotTo(HaveOccurred())

		_, err = engine.Reinitialize("let x = 1;", field.ProfileScript)
		Expect(err).NotTo(HaveOccurred())

		trail = audit.New(audit.WithClock(clock.NewTicker(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), time.Second)))
		ctrl, err = guard.New(engine, trail)
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("ownership", func() {
		It("claims the engine exactly once", func() {
			_, err := guard.New(engine, audit.New())
			Expect(err).To(MatchError(dynamo.ErrEngineAlreadyClaimed))
		})

		It("refuses direct mutation of a claimed engine", func() {
			before := ctrl.State()

			_, err := engine.Step()
			Expect(err).To(MatchError(dynamo.ErrDirectEngineAccess))
			Expect(engine.SnapToPreset(2)).To(MatchError(dynamo.ErrDirectEngineAccess))
			_, err = engine.Reinitialize("other", field.ProfileLog)
			Expect(err).To(MatchError(dynamo.ErrDirectEngineAccess))
			_, err = engine.Compile(ctx)
			Expect(err).To(MatchError(dynamo.ErrDirectEngineAccess))
			_, err = engine.State()
			Expect(err).To(MatchError(dynamo.ErrDirectStateAccess))

			Expect(ctrl.State()).To(Equal(before))
			Expect(trail.Len()).To(BeZero())
		})
	})

	Describe("sector actions", func() {
		It("snaps to every sector and keeps energy", func() {
			energy := ctrl.State().Energy

			for i := 0; i < field.SectorCount; i++ {
				rec, err := ctrl.ExecuteAction(ctx, audit.SectorAction(i), i)
				Expect(err).NotTo(HaveOccurred())

				row, _ := field.SectorAt(i)
				s := ctrl.State()
				Expect(s.Curvature).To(BeNumerically("~", row.Curvature, 1e-6))
				Expect(s.Phase).To(BeNumerically("~", row.Phase, 1e-6))
				Expect(s.Coherence).To(BeNumerically("~", row.Coherence, 1e-6))
				Expect(s.Tension).To(BeNumerically("~", row.Tension, 1e-6))
				Expect(s.Step).To(BeZero())
				Expect(s.Energy).To(Equal(energy))

				Expect(rec.Seq).To(Equal(i))
				Expect(rec.Preset).To(Equal(i))
				Expect(rec.After).To(Equal(s))
				Expect(rec.EnergyInvariant).To(BeTrue())
				Expect(rec.CanonCompliance).To(BeTrue())
			}

			Expect(trail.VerifyIntegrity().Valid).To(BeTrue())
			Expect(trail.Stats().BySector).To(HaveLen(field.SectorCount))
		})

		It("fills in the preset when none is given", func() {
			rec, err := ctrl.ExecuteAction(ctx, audit.ActionSector4, audit.NoPreset)
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Preset).To(Equal(4))
		})

		It("rejects a mismatched preset without touching the engine", func() {
			before := ctrl.State()

			_, err := ctrl.ExecuteAction(ctx, audit.ActionSector1, 3)
			Expect(err).To(MatchError(dynamo.ErrAuditCanonViolation))
			Expect(ctrl.State()).To(Equal(before))
			Expect(trail.Len()).To(BeZero())
			Expect(trail.Stats().Violations).To(Equal(1))
		})
	})

	Describe("read and reset", func() {
		It("records a read without changing state", func() {
			before := ctrl.State()
			rec, err := ctrl.ExecuteAction(ctx, audit.ActionReadState, audit.NoPreset)
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Before).To(Equal(before))
			Expect(rec.After).To(Equal(before))
			Expect(ctrl.State()).To(Equal(before))
		})

		It("reinitializes from the reset input", func() {
			rec, err := ctrl.ExecuteAction(ctx, audit.ActionResetEngine, audit.NoPreset)
			Expect(err).NotTo(HaveOccurred())

			Expect(rec.Before.Energy).To(BeNumerically("~", 0.651, 1e-12))
			Expect(rec.After.Energy).To(BeNumerically("~", 0.048, 1e-12))
			Expect(rec.EnergyInvariant).To(BeTrue())
			Expect(ctrl.Identifier()).To(Equal("06761d4f"))
			Expect(ctrl.State().Curvature).To(Equal(field.ProfileScript.Params().Curvature))
		})
	})

	Describe("rejections", func() {
		It("rejects unknown names", func() {
			_, err := ctrl.Execute(ctx, "SECTOR_9", audit.NoPreset)
			Expect(err).To(MatchError(dynamo.ErrInvalidAction))

			_, err = ctrl.ExecuteAction(ctx, audit.Action("TELEPORT"), audit.NoPreset)
			Expect(err).To(MatchError(dynamo.ErrInvalidAction))
		})

		It("names forbidden control styles", func() {
			for name := range guard.Forbidden {
				_, err := ctrl.Execute(ctx, name, audit.NoPreset)
				Expect(err).To(MatchError(dynamo.ErrForbiddenAction), name)
				Expect(dynamo.CodeOf(err).Category()).To(Equal(dynamo.CategoryAccessViolation))
			}
			Expect(trail.Len()).To(BeZero())
			Expect(trail.Stats().Violations).To(Equal(len(guard.Forbidden)))
		})

		It("accepts action names case-insensitively", func() {
			a, err := guard.ParseAction(" sector_2 ")
			Expect(err).NotTo(HaveOccurred())
			Expect(a).To(Equal(audit.ActionSector2))
		})

		It("stops after sealing", func() {
			_, err := ctrl.ExecuteAction(ctx, audit.ActionSector0, 0)
			Expect(err).NotTo(HaveOccurred())

			ctrl.Seal()
			Expect(ctrl.Sealed()).To(BeTrue())
			Expect(ctrl.Trail().Sealed()).To(BeTrue())

			_, err = ctrl.ExecuteAction(ctx, audit.ActionReadState, audit.NoPreset)
			Expect(err).To(MatchError(dynamo.ErrSealedController))
			Expect(trail.Len()).To(Equal(1))
		})

		It("honors a canceled context", func() {
			canceled, cancel := context.WithCancel(ctx)
			cancel()
			_, err := ctrl.ExecuteAction(canceled, audit.ActionReadState, audit.NoPreset)
			Expect(err).To(MatchError(context.Canceled))
		})
	})

	Describe("tracing", func() {
		It("emits one span per action", func() {
			seen := len(spans.Ended())

			_, err := ctrl.ExecuteAction(ctx, audit.ActionSector3, 3)
			Expect(err).NotTo(HaveOccurred())
			_, err = ctrl.ExecuteAction(ctx, audit.Action("SLIDER_CONTROL"), audit.NoPreset)
			Expect(err).To(HaveOccurred())

			ended := spans.Ended()[seen:]
			Expect(ended).To(HaveLen(2))
			Expect(ended[0].Name()).To(Equal("guard.ExecuteAction"))
			Expect(ended[0].Status().Code).To(Equal(codes.Unset))
			Expect(ended[1].Status().Code).To(Equal(codes.Error))
			Expect(ended[1].Status().Description).To(Equal(string(dynamo.CodeInvalidAction)))
		})
	})
})

var _ = Describe("Controller on a blank engine", func() {
	It("requires a reset before sectors can apply", func() {
		engine, err := sim.New(dynamo.DefaultConfig())
		Expect(err).NotTo(HaveOccurred())
		ctrl, err := guard.New(engine, nil)
		Expect(err).NotTo(HaveOccurred())
		ctx := context.Background()

		_, err = ctrl.ExecuteAction(ctx, audit.ActionSector0, 0)
		Expect(err).To(MatchError(dynamo.ErrAuditCanonViolation))
		Expect(ctrl.State()).To(Equal(dynamo.BlankState()))

		_, err = ctrl.ExecuteAction(ctx, audit.ActionResetEngine, audit.NoPreset)
		Expect(err).NotTo(HaveOccurred())
		_, err = ctrl.ExecuteAction(ctx, audit.ActionSector0, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(ctrl.Trail().Len()).To(Equal(2))
	})
})

var _ = Describe("Controller action log", func() {
	It("writes one line per outcome", func() {
		dir := GinkgoT().TempDir()
		log := logging.OpenActionLog(dir, "debug")
		Expect(log).NotTo(BeNil())

		engine, _ := sim.New(dynamo.DefaultConfig())
		_, _ = engine.Reinitialize("x", field.ProfileConfig)
		ctrl, err := guard.New(engine, nil, guard.WithActionLog(log))
		Expect(err).NotTo(HaveOccurred())

		ctx := context.Background()
		_, _ = ctrl.ExecuteAction(ctx, audit.ActionSector5, 5)
		_, _ = ctrl.Execute(ctx, "DIRECT_PHASE_SET", audit.NoPreset)
		Expect(log.Close()).To(Succeed())

		f, err := os.Open(filepath.Join(dir, "actions.jsonl"))
		Expect(err).NotTo(HaveOccurred())
		defer f.Close()

		var outcomes []string
		sc := bufio.NewScanner(f)
		for sc.Scan() {
			var entry map[string]any
			Expect(json.Unmarshal(sc.Bytes(), &entry)).To(Succeed())
			Expect(entry).To(HaveKey("time"))
			outcomes = append(outcomes, entry["outcome"].(string))
		}
		Expect(outcomes).To(Equal([]string{"accepted", "rejected"}))
	})
})
