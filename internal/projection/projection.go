// Package projection lays out a read-only node/relation snapshot on a hex
// grid. It never feeds back into the engine.
package projection

import (
	"encoding/json"
	"fmt"
	"io"
	"math"

	"github.com/san-kum/fieldcanon/internal/dynamo"
	"github.com/san-kum/fieldcanon/internal/field"
)

type Axial struct {
	Q int `json:"q"`
	R int `json:"r"`
}

type Node struct {
	ID    string `json:"id"`
	Axial Axial  `json:"axial"`
}

type Relation struct {
	A              string `json:"a"`
	B              string `json:"b"`
	VisibilityTier string `json:"visibility"`
}

type Snapshot struct {
	Nodes     []Node     `json:"nodes"`
	Relations []Relation `json:"relations"`
}

const (
	TierActive  = "active"
	TierVisible = "visible"
	TierLatent  = "latent"
)

// Point is a node placed in cartesian space.
type Point struct {
	ID   string
	X, Y float64
}

type Segment struct {
	A, B Point
	Tier string
}

type Projection struct {
	Points   []Point
	Segments []Segment
}

// ToCartesian maps flat-top axial coordinates onto the plane.
func ToCartesian(a Axial, radius float64) (float64, float64) {
	q, r := float64(a.Q), float64(a.R)
	return radius * 1.5 * q, radius * math.Sqrt(3) * (r + q/2)
}

// Project places every node and every relation whose endpoints both exist.
// Relations naming unknown nodes are dropped.
func Project(s Snapshot, radius float64) Projection {
	p := Projection{Points: make([]Point, 0, len(s.Nodes))}
	byID := make(map[string]Point, len(s.Nodes))
	for _, n := range s.Nodes {
		x, y := ToCartesian(n.Axial, radius)
		pt := Point{ID: n.ID, X: x, Y: y}
		p.Points = append(p.Points, pt)
		byID[n.ID] = pt
	}
	for _, rel := range s.Relations {
		a, okA := byID[rel.A]
		b, okB := byID[rel.B]
		if !okA || !okB {
			continue
		}
		p.Segments = append(p.Segments, Segment{A: a, B: b, Tier: rel.VisibilityTier})
	}
	return p
}

// Bounds returns the bounding box of the projected points.
func (p Projection) Bounds() (minX, minY, maxX, maxY float64) {
	if len(p.Points) == 0 {
		return 0, 0, 0, 0
	}
	minX, minY = p.Points[0].X, p.Points[0].Y
	maxX, maxY = minX, minY
	for _, pt := range p.Points[1:] {
		minX, maxX = min(minX, pt.X), max(maxX, pt.X)
		minY, maxY = min(minY, pt.Y), max(maxY, pt.Y)
	}
	return
}

// Axial neighbor offsets, one per sector.
var ring = [field.SectorCount]Axial{
	{1, 0}, {1, -1}, {0, -1}, {-1, 0}, {-1, 1}, {0, 1},
}

// FromState builds the sector ring around a central field node. The sector
// nearest the current phase is active; the others are visible once the
// field is coherent and latent before that.
func FromState(x dynamo.State) Snapshot {
	s := Snapshot{Nodes: []Node{{ID: "field"}}}
	nearest := NearestSector(x.Phase)
	for i, a := range ring {
		id := fmt.Sprintf("sector_%d", i)
		s.Nodes = append(s.Nodes, Node{ID: id, Axial: a})

		tier := TierLatent
		switch {
		case i == nearest:
			tier = TierActive
		case x.Coherence >= dynamo.CoherenceThreshold:
			tier = TierVisible
		}
		s.Relations = append(s.Relations, Relation{A: "field", B: id, VisibilityTier: tier})
	}
	return s
}

// NearestSector returns the sector whose angle is closest to phase.
func NearestSector(phase float64) int {
	best, bestDist := 0, math.Inf(1)
	for i := 0; i < field.SectorCount; i++ {
		d := math.Abs(dynamo.WrapAngle(phase) - dynamo.SectorAngle(i, field.SectorCount))
		d = math.Min(d, dynamo.TwoPi-d)
		if d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

func ReadSnapshot(r io.Reader) (Snapshot, error) {
	var s Snapshot
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return s, nil
}
