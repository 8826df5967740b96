package field

import (
	"strconv"

	"github.com/san-kum/fieldcanon/internal/dynamo"
)

const SectorCount = 6

// Sector is one row of the fixed preset table.
type Sector struct {
	Phase     float64 `json:"phase"`
	Curvature float64 `json:"curvature"`
	Coherence float64 `json:"coherence"`
	Energy    float64 `json:"energy"`
	Tension   float64 `json:"tension"`
}

var sectors = [SectorCount]Sector{
	{Phase: dynamo.SectorAngle(0, SectorCount), Curvature: 2.5, Coherence: 0.90, Energy: 0.80, Tension: 0.1 + 1.5*0.05},
	{Phase: dynamo.SectorAngle(1, SectorCount), Curvature: 2.0, Coherence: 0.85, Energy: 0.70, Tension: 0.1 + 1.0*0.05},
	{Phase: dynamo.SectorAngle(2, SectorCount), Curvature: 1.5, Coherence: 0.95, Energy: 0.90, Tension: 0.1 + 2.0*0.05},
	{Phase: dynamo.SectorAngle(3, SectorCount), Curvature: 3.0, Coherence: 0.75, Energy: 0.60, Tension: 0.1 + 0.5*0.05},
	{Phase: dynamo.SectorAngle(4, SectorCount), Curvature: 4.0, Coherence: 0.99, Energy: 0.95, Tension: 0.1 + 2.5*0.05},
	{Phase: dynamo.SectorAngle(5, SectorCount), Curvature: 0.5, Coherence: 0.60, Energy: 0.50, Tension: 0.1 + 0.1*0.05},
}

// SectorAt returns row i of the table.
func SectorAt(i int) (Sector, error) {
	if i < 0 || i >= SectorCount {
		return Sector{}, dynamo.ErrPresetOutOfRange.With("index", strconv.Itoa(i))
	}
	return sectors[i], nil
}

// Sectors returns a copy of the table.
func Sectors() []Sector {
	out := make([]Sector, SectorCount)
	copy(out, sectors[:])
	return out
}

// Apply overwrites x with the sector row. The whole tension is placed in the
// semantic component so the decomposition still sums. Energy is taken from
// the row only when x has never been initialized.
func (s Sector) Apply(x dynamo.State) dynamo.State {
	x.TensionSyntax = 0
	x.TensionStructural = 0
	x.TensionSemantic = s.Tension
	x.Resum()
	x.Curvature = s.Curvature
	x.Phase = s.Phase
	x.Coherence = s.Coherence
	if x.Energy == 0 {
		x.Energy = s.Energy
	}
	x.Step = 0
	return x
}
