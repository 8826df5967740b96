package viz

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/fieldcanon/internal/audit"
	"github.com/san-kum/fieldcanon/internal/dynamo"
)

var (
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(12)
	valueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
)

var sparkChars = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// StatusStyle colors a run status.
func StatusStyle(t Theme, s dynamo.Status) lipgloss.Style {
	st := lipgloss.NewStyle().Bold(true)
	switch s {
	case dynamo.StatusCompiled:
		return st.Foreground(t.Success)
	case dynamo.StatusMaxSteps:
		return st.Foreground(t.Warning)
	case dynamo.StatusError:
		return st.Foreground(t.Error)
	default:
		return st.Foreground(t.Primary)
	}
}

// PanelStyle is the bordered box states and summaries are drawn in.
func PanelStyle(t Theme) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Muted).
		Padding(0, 1)
}

// RenderState draws x as a labeled panel.
func RenderState(t Theme, identifier string, x dynamo.State) string {
	title := lipgloss.NewStyle().Bold(true).Foreground(t.Primary).Render(identifier)
	rows := []struct {
		label string
		value string
	}{
		{"tension", fmt.Sprintf("%.6f", x.Tension)},
		{"  syntax", fmt.Sprintf("%.6f", x.TensionSyntax)},
		{"  semantic", fmt.Sprintf("%.6f", x.TensionSemantic)},
		{"  struct", fmt.Sprintf("%.6f", x.TensionStructural)},
		{"curvature", fmt.Sprintf("%.3f", x.Curvature)},
		{"phase", fmt.Sprintf("%.4f", x.Phase)},
		{"energy", fmt.Sprintf("%.3f", x.Energy)},
		{"coherence", fmt.Sprintf("%.5f", x.Coherence)},
		{"step", fmt.Sprintf("%d", x.Step)},
	}

	var sb strings.Builder
	sb.WriteString(title + "\n")
	for _, r := range rows {
		sb.WriteString(labelStyle.Render(r.label) + valueStyle.Render(r.value) + "\n")
	}
	sb.WriteString(labelStyle.Render("progress") + ProgressBar(t, x.Coherence, 20))
	return PanelStyle(t).Render(sb.String())
}

// ProgressBar renders percent in [0,1] as a bar of width cells.
func ProgressBar(t Theme, percent float64, width int) string {
	filled := int(dynamo.Clamp(percent, 0, 1) * float64(width))
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)

	switch {
	case percent >= dynamo.CoherenceThreshold:
		return lipgloss.NewStyle().Foreground(t.Success).Render(bar)
	case percent > 0.5:
		return lipgloss.NewStyle().Foreground(t.Warning).Render(bar)
	}
	return lipgloss.NewStyle().Foreground(t.Error).Render(bar)
}

// Sparkline samples values down to width runes, scaled between their min
// and max.
func Sparkline(values []float64, width int) string {
	if len(values) == 0 || width <= 0 {
		return strings.Repeat("─", max(width, 0))
	}

	lo, hi := values[0], values[0]
	for _, v := range values {
		lo, hi = min(lo, v), max(hi, v)
	}
	span := hi - lo
	if span == 0 {
		span = 1
	}

	step := max(len(values)/width, 1)
	var sb strings.Builder
	for i := 0; i < width && i*step < len(values); i++ {
		norm := (values[i*step] - lo) / span
		idx := int(norm * float64(len(sparkChars)-1))
		sb.WriteRune(sparkChars[min(max(idx, 0), len(sparkChars)-1)])
	}
	return sb.String()
}

// Chart plots a series with asciigraph. Fewer than two points yield "".
func Chart(values []float64, caption string, height, width int) string {
	if len(values) < 2 {
		return ""
	}
	opts := []asciigraph.Option{asciigraph.Height(height), asciigraph.Caption(caption)}
	if width > 0 {
		opts = append(opts, asciigraph.Width(width))
	}
	return asciigraph.Plot(values, opts...)
}

// AuditTable renders records as a table. Non-compliant rows are drawn in
// the theme's error color.
func AuditTable(t Theme, records []audit.Record) string {
	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			fmt.Sprintf("%d", r.Seq),
			r.Timestamp.Format("15:04:05.000"),
			string(r.Action),
			presetLabel(r.Preset),
			fmt.Sprintf("%.4f", r.After.Coherence),
			checkMark(r.EnergyInvariant),
			checkMark(r.CanonCompliance),
			shortHash(r.Hash),
		})
	}

	header := lipgloss.NewStyle().Bold(true).Foreground(t.Primary)
	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(t.Muted)).
		Headers("SEQ", "TIME", "ACTION", "PRESET", "COHERENCE", "ENERGY", "CANON", "HASH").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return header
			}
			if row >= 0 && row < len(records) && !records[row].Compliant() {
				return lipgloss.NewStyle().Foreground(t.Error)
			}
			return lipgloss.NewStyle()
		})
	return tbl.Render()
}

func presetLabel(p int) string {
	if p == audit.NoPreset {
		return "-"
	}
	return fmt.Sprintf("%d", p)
}

func checkMark(ok bool) string {
	if ok {
		return "ok"
	}
	return "FAIL"
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
