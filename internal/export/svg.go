// Package export writes traces and canvases as standalone SVG documents.
package export

import (
	"fmt"
	"strings"

	"github.com/san-kum/fieldcanon/internal/dynamo"
	"github.com/san-kum/fieldcanon/internal/projection"
	"github.com/san-kum/fieldcanon/internal/viz"
)

// Series picks one value out of a state.
type Series struct {
	Name  string
	Color string
	Value func(dynamo.State) float64
	// Fixed bounds; when Max <= Min the series is scaled to its own range.
	Min, Max float64
}

// DefaultSeries are the curves TraceSVG draws when none are given.
var DefaultSeries = []Series{
	{Name: "coherence", Color: "#00ff88", Value: func(s dynamo.State) float64 { return s.Coherence }, Min: 0, Max: 1},
	{Name: "tension", Color: "#00ccff", Value: func(s dynamo.State) float64 { return s.Tension }},
	{Name: "phase", Color: "#ff00ff", Value: func(s dynamo.State) float64 { return s.Phase }, Min: 0, Max: dynamo.TwoPi},
}

// TraceSVG plots each series against the step index. Traces with fewer than
// two states produce "".
func TraceSVG(trace []dynamo.State, width, height int, series ...Series) string {
	if len(trace) < 2 {
		return ""
	}
	if len(series) == 0 {
		series = DefaultSeries
	}

	first, last := float64(trace[0].Step), float64(trace[len(trace)-1].Step)
	spanX := last - first
	if spanX == 0 {
		spanX = 1
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`, width, height, width, height)

	for i, s := range series {
		lo, hi := s.Min, s.Max
		if hi <= lo {
			lo, hi = s.Value(trace[0]), s.Value(trace[0])
			for _, x := range trace {
				v := s.Value(x)
				lo, hi = min(lo, v), max(hi, v)
			}
		}
		spanY := hi - lo
		if spanY == 0 {
			spanY = 1
		}

		fmt.Fprintf(&sb, `<path fill="none" stroke="%s" stroke-width="1.5" data-series="%s" d="`, s.Color, s.Name)
		for j, x := range trace {
			px := (float64(x.Step) - first) / spanX * float64(width)
			py := float64(height) - (s.Value(x)-lo)/spanY*float64(height)
			if j == 0 {
				fmt.Fprintf(&sb, "M%.1f,%.1f", px, py)
			} else {
				fmt.Fprintf(&sb, " L%.1f,%.1f", px, py)
			}
		}
		sb.WriteString("\"/>\n")
		fmt.Fprintf(&sb, `<text x="8" y="%d" fill="%s" font-family="monospace" font-size="12">%s</text>
`, 16+14*i, s.Color, s.Name)
	}

	sb.WriteString("</svg>")
	return sb.String()
}

// CanvasToSVG draws every set braille dot of canvas as a circle.
func CanvasToSVG(canvas *viz.Canvas, scale float64) string {
	if canvas == nil {
		return ""
	}

	w, h := canvas.Dots()
	width, height := float64(w)*scale, float64(h)*scale

	var sb strings.Builder
	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%.0f" height="%.0f" viewBox="0 0 %.0f %.0f">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
<g fill="#00ff88">
`, width, height, width, height)

	bits := [4][2]rune{
		{0x01, 0x08},
		{0x02, 0x10},
		{0x04, 0x20},
		{0x40, 0x80},
	}
	r := scale * 0.4

	for row := 0; row < canvas.Height; row++ {
		for col := 0; col < canvas.Width; col++ {
			pattern := canvas.Grid[row][col] - 0x2800
			if pattern <= 0 {
				continue
			}
			for dy := 0; dy < 4; dy++ {
				for dx := 0; dx < 2; dx++ {
					if pattern&bits[dy][dx] == 0 {
						continue
					}
					cx := (float64(col*2+dx) + 0.5) * scale
					cy := (float64(row*4+dy) + 0.5) * scale
					fmt.Fprintf(&sb, "<circle cx=\"%.1f\" cy=\"%.1f\" r=\"%.1f\"/>\n", cx, cy, r)
				}
			}
		}
	}

	sb.WriteString("</g>\n</svg>")
	return sb.String()
}

var tierStroke = map[string]string{
	projection.TierActive:  "#00ffff",
	projection.TierVisible: "#888899",
	projection.TierLatent:  "#333344",
}

// ProjectionSVG draws a projected snapshot, centered with margin pixels on
// every side. Relations are drawn under the nodes.
func ProjectionSVG(p projection.Projection, margin float64) string {
	minX, minY, maxX, maxY := p.Bounds()
	width, height := maxX-minX+2*margin, maxY-minY+2*margin
	ox, oy := margin-minX, margin-minY

	var sb strings.Builder
	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%.0f" height="%.0f" viewBox="0 0 %.0f %.0f">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`, width, height, width, height)

	for _, s := range p.Segments {
		stroke, ok := tierStroke[s.Tier]
		if !ok {
			stroke = tierStroke[projection.TierLatent]
		}
		fmt.Fprintf(&sb, "<line class=\"link %s\" x1=\"%.1f\" y1=\"%.1f\" x2=\"%.1f\" y2=\"%.1f\" stroke=\"%s\"/>\n",
			s.Tier, s.A.X+ox, s.A.Y+oy, s.B.X+ox, s.B.Y+oy, stroke)
	}
	for _, pt := range p.Points {
		fmt.Fprintf(&sb, "<circle class=\"node\" data-id=\"%s\" cx=\"%.1f\" cy=\"%.1f\" r=\"4\" fill=\"#ff00ff\"/>\n",
			pt.ID, pt.X+ox, pt.Y+oy)
	}

	sb.WriteString("</svg>")
	return sb.String()
}
