package experiment

import (
	"fmt"
	"sort"

	"github.com/san-kum/fieldcanon/internal/dynamo"
	"github.com/san-kum/fieldcanon/internal/integrators"
	"github.com/san-kum/fieldcanon/internal/metrics"
	"github.com/san-kum/fieldcanon/internal/sim"
)

type Registry struct {
	steppers map[string]func() sim.Stepper
	metrics  map[string]func(dynamo.Config) dynamo.Metric
}

func NewRegistry() *Registry {
	r := &Registry{
		steppers: make(map[string]func() sim.Stepper),
		metrics:  make(map[string]func(dynamo.Config) dynamo.Metric),
	}

	r.steppers["euler"] = func() sim.Stepper { return integrators.NewEuler() }

	r.metrics["energy_drift"] = func(dynamo.Config) dynamo.Metric { return metrics.NewEnergyDrift() }
	r.metrics["invariants"] = func(cfg dynamo.Config) dynamo.Metric { return metrics.NewInvariants(cfg) }
	r.metrics["attractor_distance"] = func(dynamo.Config) dynamo.Metric { return metrics.NewAttractorDistance() }

	return r
}

func (r *Registry) GetStepper(name string) (sim.Stepper, error) {
	fn, ok := r.steppers[name]
	if !ok {
		return nil, fmt.Errorf("unknown stepper: %s", name)
	}
	return fn(), nil
}

func (r *Registry) GetMetric(name string, cfg dynamo.Config) (dynamo.Metric, error) {
	fn, ok := r.metrics[name]
	if !ok {
		return nil, fmt.Errorf("unknown metric: %s", name)
	}
	return fn(cfg), nil
}

func (r *Registry) ListMetrics() []string {
	names := make([]string, 0, len(r.metrics))
	for name := range r.metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultMetrics returns every registered metric.
func (r *Registry) DefaultMetrics(cfg dynamo.Config) []dynamo.Metric {
	out := make([]dynamo.Metric, 0, len(r.metrics))
	for _, name := range r.ListMetrics() {
		out = append(out, r.metrics[name](cfg))
	}
	return out
}
