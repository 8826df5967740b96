package analysis

import (
	"math"

	"github.com/san-kum/fieldcanon/internal/dynamo"
	"github.com/san-kum/fieldcanon/internal/field"
)

type Point struct{ X, Y float64 }

// Portrait is a trace projected onto two of its fields.
type Portrait struct {
	X, Y   string
	Points []Point
}

func NewPortrait(trace []dynamo.State, x, y string) (*Portrait, error) {
	xs, err := Series(trace, x)
	if err != nil {
		return nil, err
	}
	ys, err := Series(trace, y)
	if err != nil {
		return nil, err
	}
	p := &Portrait{X: x, Y: y, Points: make([]Point, len(xs))}
	for i := range xs {
		p.Points[i] = Point{xs[i], ys[i]}
	}
	return p, nil
}

// PortraitToASCII scales the portrait into a width×height grid with a 10%
// margin and draws the axes when they fall inside it.
func PortraitToASCII(p *Portrait, width, height int) string {
	if p == nil || len(p.Points) == 0 || width <= 0 || height <= 0 {
		return ""
	}

	minX, maxX := p.Points[0].X, p.Points[0].X
	minY, maxY := p.Points[0].Y, p.Points[0].Y
	for _, pt := range p.Points {
		minX, maxX = math.Min(minX, pt.X), math.Max(maxX, pt.X)
		minY, maxY = math.Min(minY, pt.Y), math.Max(maxY, pt.Y)
	}

	rangeX, rangeY := maxX-minX, maxY-minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	minX -= rangeX * 0.1
	maxX += rangeX * 0.1
	minY -= rangeY * 0.1
	maxY += rangeY * 0.1
	rangeX, rangeY = maxX-minX, maxY-minY

	grid := blankGrid(width, height)
	for _, pt := range p.Points {
		col := int((pt.X - minX) / rangeX * float64(width-1))
		row := height - 1 - int((pt.Y-minY)/rangeY*float64(height-1))
		if row >= 0 && row < height && col >= 0 && col < width {
			grid[row][col] = '•'
		}
	}

	if minX <= 0 && maxX >= 0 {
		col := int((0 - minX) / rangeX * float64(width-1))
		for row := 0; row < height; row++ {
			if grid[row][col] == ' ' {
				grid[row][col] = '│'
			}
		}
	}
	if minY <= 0 && maxY >= 0 {
		row := height - 1 - int((0-minY)/rangeY*float64(height-1))
		for col := 0; col < width; col++ {
			if grid[row][col] == ' ' {
				grid[row][col] = '─'
			}
		}
	}
	return joinGrid(grid)
}

// Crossing is the state recorded when the phase enters a new sector.
type Crossing struct {
	Step      int     `json:"step"`
	Sector    int     `json:"sector"`
	Coherence float64 `json:"coherence"`
	Tension   float64 `json:"tension"`
}

// SectorCrossings records every point where the phase moves from one sector
// wedge of the circle into another.
func SectorCrossings(trace []dynamo.State) []Crossing {
	if len(trace) < 2 {
		return nil
	}
	var out []Crossing
	prev := wedge(trace[0].Phase)
	for _, s := range trace[1:] {
		w := wedge(s.Phase)
		if w != prev {
			out = append(out, Crossing{Step: s.Step, Sector: w, Coherence: s.Coherence, Tension: s.Tension})
			prev = w
		}
	}
	return out
}

func wedge(phase float64) int {
	w := int(dynamo.WrapAngle(phase) / (dynamo.TwoPi / field.SectorCount))
	if w >= field.SectorCount {
		w = field.SectorCount - 1
	}
	return w
}
