package optim

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/san-kum/fieldcanon/internal/dynamo"
	"github.com/san-kum/fieldcanon/internal/experiment"
)

// Objective scores a compile result. Lower is better.
type Objective func(*dynamo.Result) float64

// StepsObjective prefers fields that compile in fewer steps. Runs that do
// not reach COMPILED score +Inf.
func StepsObjective(r *dynamo.Result) float64 {
	if r.Status != dynamo.StatusCompiled {
		return math.Inf(1)
	}
	return float64(r.StepsTaken)
}

// MetricObjective scores a run by one of its metrics. A missing metric
// scores +Inf.
func MetricObjective(name string) Objective {
	return func(r *dynamo.Result) float64 {
		v, ok := r.Metrics[name]
		if !ok {
			return math.Inf(1)
		}
		return v
	}
}

type Best struct {
	Params    map[string]float64
	Score     float64
	Evaluated int
	Failed    int
}

type GridSearch struct {
	paramNames []string
	ranges     [][]float64
}

func NewGridSearch(params []string, ranges [][]float64) (*GridSearch, error) {
	if len(params) == 0 || len(params) != len(ranges) {
		return nil, fmt.Errorf("grid search: %d params for %d ranges", len(params), len(ranges))
	}
	for i, r := range ranges {
		if len(r) == 0 {
			return nil, fmt.Errorf("grid search: empty range for %s", params[i])
		}
	}
	return &GridSearch{paramNames: params, ranges: ranges}, nil
}

// Search evaluates every combination of the grid. Points whose experiment
// cannot be built or run count as failed and are skipped; a cancelled
// context stops the search.
func (g *GridSearch) Search(
	ctx context.Context,
	buildExperiment func(params map[string]float64) (*experiment.Experiment, error),
	objective Objective,
) (Best, error) {
	best := Best{Score: math.Inf(1)}
	err := g.searchRecursive(ctx, 0, make(map[string]float64), buildExperiment, objective, &best)
	return best, err
}

func (g *GridSearch) searchRecursive(
	ctx context.Context,
	depth int,
	current map[string]float64,
	buildExperiment func(map[string]float64) (*experiment.Experiment, error),
	objective Objective,
	best *Best,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if depth == len(g.paramNames) {
		best.Evaluated++
		exp, err := buildExperiment(current)
		if err != nil {
			best.Failed++
			return nil
		}
		result, err := exp.Run(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			best.Failed++
			return nil
		}

		if score := objective(result); score < best.Score || best.Params == nil {
			best.Score = score
			best.Params = make(map[string]float64, len(current))
			for k, v := range current {
				best.Params[k] = v
			}
		}
		return nil
	}

	paramName := g.paramNames[depth]
	for _, val := range g.ranges[depth] {
		newParams := make(map[string]float64, len(current)+1)
		for k, v := range current {
			newParams[k] = v
		}
		newParams[paramName] = val

		if err := g.searchRecursive(ctx, depth+1, newParams, buildExperiment, objective, best); err != nil {
			return err
		}
	}
	return nil
}

// Builder returns a buildExperiment func that overlays the grid point on
// base.Field and sets the experiment up against reg.
func Builder(base experiment.Config, reg *experiment.Registry) func(map[string]float64) (*experiment.Experiment, error) {
	return func(params map[string]float64) (*experiment.Experiment, error) {
		cfg := base
		cfg.Field = base.Field.Merge(params)
		exp := experiment.New(cfg)
		if err := exp.Setup(reg, nil); err != nil {
			return nil, err
		}
		return exp, nil
	}
}

// ParseRange reads "min:max:n" into n evenly spaced values, or a single
// number into a one-point range.
func ParseRange(s string) ([]float64, error) {
	parts := strings.Split(s, ":")
	switch len(parts) {
	case 1:
		v, err := strconv.ParseFloat(parts[0], 64)
		if err != nil {
			return nil, fmt.Errorf("range %q: %w", s, err)
		}
		return []float64{v}, nil
	case 3:
		lo, err1 := strconv.ParseFloat(parts[0], 64)
		hi, err2 := strconv.ParseFloat(parts[1], 64)
		n, err3 := strconv.Atoi(parts[2])
		if err1 != nil || err2 != nil || err3 != nil || n < 2 {
			return nil, fmt.Errorf("range %q: expected min:max:n with n >= 2", s)
		}
		out := make([]float64, n)
		for i := range out {
			out[i] = lo + float64(i)*(hi-lo)/float64(n-1)
		}
		return out, nil
	}
	return nil, fmt.Errorf("range %q: expected value or min:max:n", s)
}
