package metrics

import (
	"math"

	"github.com/san-kum/fieldcanon/internal/dynamo"
)

// EnergyDrift tracks the largest departure of energy from its first
// observed value. Under the field law it stays exactly zero.
type EnergyDrift struct {
	name     string
	initial  float64
	maxDrift float64
	samples  int
}

func NewEnergyDrift() *EnergyDrift {
	return &EnergyDrift{name: "energy_drift"}
}

func (e *EnergyDrift) Name() string { return e.name }

func (e *EnergyDrift) Observe(x dynamo.State) {
	if e.samples == 0 {
		e.initial = x.Energy
	}
	e.samples++
	e.maxDrift = math.Max(e.maxDrift, math.Abs(x.Energy-e.initial))
}

func (e *EnergyDrift) Value() float64 {
	return e.maxDrift
}

func (e *EnergyDrift) Reset() {
	e.initial = 0
	e.maxDrift = 0
	e.samples = 0
}
