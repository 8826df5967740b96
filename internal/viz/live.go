package viz

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/fieldcanon/internal/dynamo"
	"github.com/san-kum/fieldcanon/internal/field"
	"github.com/san-kum/fieldcanon/internal/sim"
)

const (
	canvasWidth     = 40
	canvasHeight    = 16
	historyCapacity = 600
	frameRate       = time.Second / 30
)

type TickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(frameRate, func(t time.Time) tea.Msg { return TickMsg(t) })
}

// LiveModel animates a compile run. It drives an unclaimed engine through
// the same phases Compile uses, a few steps per frame.
type LiveModel struct {
	engine  *sim.Engine
	input   string
	profile field.Profile
	theme   Theme

	state   dynamo.State
	phase   int
	inPhase int
	steps   int
	perTick int

	history  []dynamo.State
	running  bool
	done     bool
	err      error
	showHelp bool
}

// NewLiveModel reinitializes e from input and returns a model ready to run.
func NewLiveModel(e *sim.Engine, input string, profile field.Profile, perTick int) (LiveModel, error) {
	m := LiveModel{
		engine:  e,
		input:   input,
		profile: profile,
		theme:   Themes[0],
		perTick: max(perTick, 1),
		running: true,
	}
	if err := m.reset(); err != nil {
		return LiveModel{}, err
	}
	return m, nil
}

func (m *LiveModel) reset() error {
	res, err := m.engine.Reinitialize(m.input, m.profile)
	if err != nil {
		return err
	}
	m.state = res.State
	m.phase, m.inPhase, m.steps = 0, 0, 0
	m.history = append(m.history[:0], m.state)
	m.done = false
	m.err = nil
	return nil
}

func (m LiveModel) Init() tea.Cmd {
	return tick()
}

func (m LiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			m.running = !m.running
		case "r":
			if err := m.reset(); err != nil {
				m.err = err
			}
		case "t":
			m.theme = m.theme.next()
		case "+":
			m.perTick *= 2
		case "-":
			m.perTick = max(m.perTick/2, 1)
		case "?":
			m.showHelp = !m.showHelp
		}
		return m, nil
	case TickMsg:
		if m.running && !m.done {
			m.advance()
		}
		return m, tick()
	}
	return m, nil
}

// advance runs up to perTick steps, moving to the next phase when the
// current one is done or out of budget.
func (m *LiveModel) advance() {
	budget := m.engine.Config().MaxSteps
	for i := 0; i < m.perTick && !m.done; i++ {
		ph := sim.Phases[m.phase]
		if ph.Done(m.state) || m.inPhase >= budget {
			m.phase++
			m.inPhase = 0
			if m.phase == len(sim.Phases) {
				m.done = true
			}
			continue
		}
		if _, err := m.engine.Step(); err != nil {
			m.err, m.done = err, true
			return
		}
		s, err := m.engine.State()
		if err != nil {
			m.err, m.done = err, true
			return
		}
		m.state = s
		m.inPhase++
		m.steps++
		m.history = append(m.history, s)
		if len(m.history) > historyCapacity {
			m.history = m.history[1:]
		}
	}
}

// Status is what the run would report if it stopped now.
func (m LiveModel) Status() dynamo.Status {
	switch {
	case m.err != nil:
		return dynamo.StatusError
	case !m.done:
		return dynamo.StatusReady
	case m.state.Coherence >= dynamo.CoherenceThreshold:
		return dynamo.StatusCompiled
	}
	return dynamo.StatusMaxSteps
}

func (m LiveModel) State() dynamo.State { return m.state }

func (m LiveModel) Steps() int { return m.steps }

func (m LiveModel) View() string {
	canvas := NewCanvas(canvasWidth, canvasHeight)
	canvas.DrawPhasePortrait(m.history)
	left := lipgloss.NewStyle().Padding(1, 2).Render(canvas.String())

	coherence := make([]float64, len(m.history))
	for i, s := range m.history {
		coherence[i] = s.Coherence
	}

	var sb strings.Builder
	sb.WriteString(lipgloss.NewStyle().Bold(true).Foreground(m.theme.Primary).
		Render(fmt.Sprintf("%s  %s", m.profile, m.engine.Identifier())) + "\n")

	status := string(m.Status())
	if !m.running && !m.done {
		status = "PAUSED"
	}
	sb.WriteString(StatusStyle(m.theme, m.Status()).Render(status) + "\n\n")

	phaseName := "done"
	if m.phase < len(sim.Phases) {
		phaseName = sim.Phases[m.phase].Name
	}
	sb.WriteString(labelStyle.Render("phase") + valueStyle.Render(phaseName) + "\n")
	sb.WriteString(labelStyle.Render("steps") + valueStyle.Render(fmt.Sprintf("%d (x%d/frame)", m.steps, m.perTick)) + "\n")
	sb.WriteString(labelStyle.Render("tension") + valueStyle.Render(fmt.Sprintf("%.6f", m.state.Tension)) + "\n")
	sb.WriteString(labelStyle.Render("curvature") + valueStyle.Render(fmt.Sprintf("%.3f", m.state.Curvature)) + "\n")
	sb.WriteString(labelStyle.Render("phase θ") + valueStyle.Render(fmt.Sprintf("%.4f", m.state.Phase)) + "\n")
	sb.WriteString(labelStyle.Render("coherence") + ProgressBar(m.theme, m.state.Coherence, 20) +
		valueStyle.Render(fmt.Sprintf(" %.5f", m.state.Coherence)) + "\n")
	sb.WriteString(labelStyle.Render("trend") + Sparkline(coherence, 30) + "\n")
	if m.err != nil {
		sb.WriteString("\n" + lipgloss.NewStyle().Foreground(m.theme.Error).Render(m.err.Error()) + "\n")
	}
	if m.done && m.err == nil {
		sb.WriteString("\n" + sim.Render(m.state, m.engine.Identifier()))
	}

	help := "SPACE pause  R reset  T theme  +/- speed  Q quit"
	if m.showHelp {
		help = "SPACE  pause or resume\nR      reinitialize from input\nT      cycle theme (" +
			strings.Join(ThemeNames(), ", ") + ")\n+ / -  double or halve steps per frame\nQ      quit"
	}
	sb.WriteString("\n" + lipgloss.NewStyle().Foreground(m.theme.Muted).Render(help))

	right := lipgloss.NewStyle().
		Border(lipgloss.NormalBorder(), false, false, false, true).
		BorderForeground(m.theme.Muted).
		Padding(1, 2).
		Width(50).
		Render(sb.String())
	return lipgloss.JoinHorizontal(lipgloss.Top, left, right)
}
