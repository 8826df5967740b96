package analysis

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/san-kum/fieldcanon/internal/dynamo"
	"github.com/san-kum/fieldcanon/internal/field"
	"github.com/san-kum/fieldcanon/internal/sim"
)

// BifurcationPoint holds the distinct settled values of one field for a
// single coefficient value.
type BifurcationPoint struct {
	Param  float64   `json:"param"`
	Status string    `json:"status"`
	Values []float64 `json:"values"`
}

type Bifurcation struct {
	Input     string
	Profile   field.Profile
	Base      dynamo.Config
	ParamName string
	ParamMin  float64
	ParamMax  float64
	Points    int
	// Field is the trace field to record, coherence when empty.
	Field string
	// Tail is how many final states count as settled.
	Tail int
}

// BifurcationDiagram compiles the input once per coefficient value and keeps
// the distinct values, quantized to 1e-3, that Field takes over the last Tail
// states of each run.
func BifurcationDiagram(ctx context.Context, b Bifurcation) ([]BifurcationPoint, error) {
	if _, ok := b.Base.Params()[b.ParamName]; !ok {
		return nil, dynamo.Newf(dynamo.CodeInvalidConfig, "unknown parameter %q", b.ParamName)
	}
	if b.Points < 2 {
		return nil, fmt.Errorf("bifurcation needs at least 2 points, got %d", b.Points)
	}
	name := b.Field
	if name == "" {
		name = "coherence"
	}
	tail := b.Tail
	if tail <= 0 {
		tail = 100
	}

	step := (b.ParamMax - b.ParamMin) / float64(b.Points-1)
	results := make([]BifurcationPoint, 0, b.Points)

	for i := 0; i < b.Points; i++ {
		param := b.ParamMin + float64(i)*step
		e, err := sim.New(b.Base.Merge(map[string]float64{b.ParamName: param}), sim.WithTrace(1))
		if err != nil {
			return results, fmt.Errorf("%s=%g: %w", b.ParamName, param, err)
		}
		result, err := e.CompileInput(ctx, b.Input, b.Profile)
		if err != nil {
			return results, fmt.Errorf("%s=%g: %w", b.ParamName, param, err)
		}

		trace := result.Trace
		if len(trace) > tail {
			trace = trace[len(trace)-tail:]
		}
		series, err := Series(trace, name)
		if err != nil {
			return results, err
		}

		seen := make(map[int64]bool)
		values := make([]float64, 0, 8)
		for _, v := range series {
			key := int64(math.Round(v * 1000))
			if !seen[key] {
				seen[key] = true
				values = append(values, v)
			}
		}
		results = append(results, BifurcationPoint{Param: param, Status: string(result.Status), Values: values})
	}
	return results, nil
}

// BifurcationToASCII plots one column per point.
func BifurcationToASCII(data []BifurcationPoint, width, height int) string {
	if len(data) == 0 || width <= 0 || height <= 0 {
		return ""
	}

	var minVal, maxVal float64
	found := false
	for _, p := range data {
		for _, v := range p.Values {
			if !found {
				minVal, maxVal = v, v
				found = true
				continue
			}
			minVal = math.Min(minVal, v)
			maxVal = math.Max(maxVal, v)
		}
	}
	if !found {
		return ""
	}
	if maxVal == minVal {
		maxVal = minVal + 1
	}

	grid := blankGrid(width, height)
	for i, p := range data {
		col := i * width / len(data)
		if col >= width {
			col = width - 1
		}
		for _, v := range p.Values {
			row := height - 1 - int((v-minVal)/(maxVal-minVal)*float64(height-1))
			if row >= 0 && row < height {
				grid[row][col] = '•'
			}
		}
	}
	return joinGrid(grid)
}

func blankGrid(width, height int) [][]rune {
	grid := make([][]rune, height)
	for i := range grid {
		grid[i] = []rune(strings.Repeat(" ", width))
	}
	return grid
}

func joinGrid(grid [][]rune) string {
	var sb strings.Builder
	for _, row := range grid {
		sb.WriteString(string(row))
		sb.WriteRune('\n')
	}
	return sb.String()
}
