package metrics

import (
	"math"

	"github.com/san-kum/fieldcanon/internal/dynamo"
)

// AttractorDistance is the mean |tension - A| over a run.
type AttractorDistance struct {
	name    string
	sum     float64
	samples int
}

func NewAttractorDistance() *AttractorDistance {
	return &AttractorDistance{
		name: "attractor_distance",
	}
}

func (c *AttractorDistance) Name() string {
	return c.name
}

func (c *AttractorDistance) Observe(x dynamo.State) {
	c.sum += math.Abs(x.Tension - dynamo.Attractor)
	c.samples++
}

func (c *AttractorDistance) Value() float64 {
	if c.samples == 0 {
		return 0
	}
	return c.sum / float64(c.samples)
}

func (c *AttractorDistance) Reset() {
	c.sum = 0
	c.samples = 0
}

// Default returns the metric set attached to compile runs.
func Default(cfg dynamo.Config) []dynamo.Metric {
	return []dynamo.Metric{
		NewEnergyDrift(),
		NewInvariants(cfg),
		NewAttractorDistance(),
	}
}
