package dynamo

import (
	"fmt"
	"math"
)

const (
	// Attractor is the fixed point the semantic tension relaxes toward, (1+√5)/4.
	Attractor = 0.80901699437494742410229341718281905886436444

	CoherenceThreshold = 0.9999
	Epsilon            = 1e-6
	EpsStructural      = 1e-4
	EpsSemantic        = 1e-4
	AuditTolerance     = 1e-10
	InitialCoherence   = 0.01
	BlankCurvature     = 5.0

	TwoPi = 2 * math.Pi
)

// State is one instant of the field. Tension is always the sum of its three
// components at every observation point.
type State struct {
	Tension           float64 `json:"tension"`
	TensionSyntax     float64 `json:"tension_syntax"`
	TensionSemantic   float64 `json:"tension_semantic"`
	TensionStructural float64 `json:"tension_structural"`
	Curvature         float64 `json:"curvature"`
	Phase             float64 `json:"phase"`
	Energy            float64 `json:"energy"`
	Coherence         float64 `json:"coherence"`
	Step              int     `json:"step"`
}

// BlankState is the state of an engine that has never seen input. Energy
// stays at the zero sentinel until the first reinitialize or snap.
func BlankState() State {
	return State{Curvature: BlankCurvature}
}

func (s State) Clone() State {
	return s
}

func (s State) IsValid() bool {
	for _, v := range s.values() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Resum recomputes Tension from its components.
func (s *State) Resum() {
	s.Tension = s.TensionSyntax + s.TensionSemantic + s.TensionStructural
}

// Residual is the decomposition error |tension - (syntax+semantic+structural)|.
func (s State) Residual() float64 {
	return math.Abs(s.Tension - (s.TensionSyntax + s.TensionSemantic + s.TensionStructural))
}

func (s State) Equal(other State, tol float64) bool {
	return len(s.Diff(other, tol)) == 0
}

// Diff returns the names of fields that differ by more than tol.
func (s State) Diff(other State, tol float64) []string {
	var out []string
	a, b := s.values(), other.values()
	for i, name := range fieldNames {
		if math.Abs(a[i]-b[i]) > tol {
			out = append(out, name)
		}
	}
	if s.Step != other.Step {
		out = append(out, "step")
	}
	return out
}

// Fields returns the scalar fields keyed by their wire names.
func (s State) Fields() map[string]float64 {
	m := make(map[string]float64, len(fieldNames)+1)
	for i, v := range s.values() {
		m[fieldNames[i]] = v
	}
	m["step"] = float64(s.Step)
	return m
}

func (s State) String() string {
	return fmt.Sprintf("tension=%.6f curvature=%.4f phase=%.4f coherence=%.5f energy=%.4f step=%d",
		s.Tension, s.Curvature, s.Phase, s.Coherence, s.Energy, s.Step)
}

var fieldNames = []string{
	"tension", "tension_syntax", "tension_semantic", "tension_structural",
	"curvature", "phase", "energy", "coherence",
}

func (s State) values() []float64 {
	return []float64{
		s.Tension, s.TensionSyntax, s.TensionSemantic, s.TensionStructural,
		s.Curvature, s.Phase, s.Energy, s.Coherence,
	}
}

type Metric interface {
	Name() string
	Observe(x State)
	Value() float64
	Reset()
}

type Observer interface {
	OnStep(x State)
}

// Status is the outcome of an initialization or a compile run.
type Status string

const (
	StatusReady    Status = "READY"
	StatusCompiled Status = "COMPILED"
	StatusMaxSteps Status = "MAX_STEPS_REACHED"
	StatusError    Status = "ERROR"
)

type PhaseResult struct {
	Name      string `json:"name"`
	Steps     int    `json:"steps"`
	Converged bool   `json:"converged"`
}

type Result struct {
	Status     Status             `json:"status"`
	Final      State              `json:"final"`
	Phases     []PhaseResult      `json:"phases"`
	Trace      []State            `json:"trace,omitempty"`
	Metrics    map[string]float64 `json:"metrics"`
	StepsTaken int                `json:"steps_taken"`
}
