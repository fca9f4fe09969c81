// Package tui provides the Bubble Tea typing interface.
package tui

import (
	"fmt"
	"strings"
	"time"

	"speedtype/internal/client"
	"speedtype/internal/session"
	"speedtype/internal/texts"
	"speedtype/internal/tier"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const laneRows = 9

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#C89A3A"))
	correctStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0"))
	incorrectStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	pendingStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	cursorStyle    = pendingStyle.Underline(true)
	footerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	laneStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#3A6EA5"))
	planeStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#7FC8F8")).Bold(true)
	resultStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(1, 3)
)

type tickMsg struct{ gen int }

type decayMsg struct{ gen int }

// ReportMsg carries the outcome of posting a finished attempt.
type ReportMsg struct {
	Report client.Report
}

type keyMap struct {
	Again key.Binding
	Quit  key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Again: key.NewBinding(key.WithKeys("r", "enter"), key.WithHelp("r/enter", "play again")),
		Quit:  key.NewBinding(key.WithKeys("esc", "ctrl+c"), key.WithHelp("esc", "quit")),
	}
}

type Options struct {
	Tier     tier.Tier
	Username string
	Picker   texts.Picker // nil picks at random
}

// Model implements the Bubble Tea typing UI over a session.Engine.
type Model struct {
	engine *session.Engine
	opts   Options
	keys   keyMap
	help   help.Model

	width  int
	height int

	status   string
	quitting bool
}

func NewModel(engine *session.Engine, opts Options) *Model {
	if !opts.Tier.Valid() {
		opts.Tier = tier.Free
	}
	return &Model{
		engine: engine,
		opts:   opts,
		keys:   defaultKeys(),
		help:   help.New(),
	}
}

func scheduleTick(gen int) tea.Cmd {
	return tea.Tick(session.TickInterval, func(time.Time) tea.Msg { return tickMsg{gen: gen} })
}

func scheduleDecay(gen int) tea.Cmd {
	return tea.Tick(session.DecayInterval, func(time.Time) tea.Msg { return decayMsg{gen: gen} })
}

// The countdown chain starts with the first keystroke; decay runs from the
// moment the attempt is shown.
func (m *Model) startDecay() tea.Cmd {
	return scheduleDecay(m.engine.Generation())
}

// live reports whether a timer message still belongs to the running attempt.
func (m *Model) live(gen int) bool {
	return gen == m.engine.Generation() && m.engine.Phase() == session.PhaseActive
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return m.startDecay()
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil
	case tickMsg:
		if !m.live(msg.gen) || !m.engine.Snapshot().Started {
			return m, nil
		}
		m.engine.Tick()
		if !m.live(msg.gen) {
			return m, nil
		}
		return m, scheduleTick(msg.gen)
	case decayMsg:
		if !m.live(msg.gen) {
			return m, nil
		}
		m.engine.Decay()
		return m, scheduleDecay(msg.gen)
	case ReportMsg:
		if msg.Report.Err != nil {
			m.status = "Result not saved: " + client.UserMessage(msg.Report.Err)
		} else {
			m.status = "Result saved"
		}
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	default:
		return m, nil
	}
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		m.engine.Discard()
		m.quitting = true
		return m, tea.Quit
	}

	if m.engine.Phase() == session.PhaseTerminal {
		if key.Matches(msg, m.keys.Again) {
			m.engine.PlayAgain(texts.Pick(m.opts.Tier, m.opts.Picker))
			m.status = ""
			return m, m.startDecay()
		}
		return m, nil
	}

	state := m.engine.Snapshot()
	input := []rune(state.Input)
	switch msg.Type {
	case tea.KeyBackspace, tea.KeyDelete:
		if len(input) == 0 {
			return m, nil
		}
		input = input[:len(input)-1]
	case tea.KeySpace:
		input = append(input, ' ')
	case tea.KeyRunes:
		input = append(input, msg.Runes...)
	default:
		return m, nil
	}
	if limit := len([]rune(state.Text)); len(input) > limit {
		input = input[:limit]
	}
	m.engine.Input(string(input))

	gen := m.engine.Generation()
	if !state.Started && m.engine.Snapshot().Started && m.live(gen) {
		return m, scheduleTick(gen)
	}
	return m, nil
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	state := m.engine.Snapshot()
	if state.Phase == session.PhaseTerminal {
		return m.place(m.renderResult(state))
	}

	width := m.width * 7 / 10
	if width < 20 {
		width = 60
	}
	text := wrapStyledRunes(buildStyledRunes([]rune(state.Text), []rune(state.Input)), width)

	body := lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		renderLane(state.Altitude, width),
		lipgloss.NewStyle().Width(width).Render(text),
		"",
		renderFooter(state),
	)
	return m.place(body)
}

func (m *Model) place(content string) string {
	if m.width == 0 || m.height == 0 {
		return content
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}

func (m *Model) renderHeader() string {
	who := "guest (results are not saved)"
	if m.opts.Username != "" {
		who = fmt.Sprintf("%s · %s", m.opts.Username, m.opts.Tier)
	}
	return titleStyle.Render("SpeedType") + "  " + footerStyle.Render(who)
}

// planeRow maps altitude onto a lane row; row 0 is the top.
func planeRow(altitude float64) int {
	frac := (session.AltitudeMax - altitude) / (session.AltitudeMax - session.AltitudeMin)
	row := int(frac*float64(laneRows-1) + 0.5)
	return max(0, min(laneRows-1, row))
}

func renderLane(altitude float64, width int) string {
	row := planeRow(altitude)
	inner := max(width-2, 1)
	lines := make([]string, laneRows)
	for i := range lines {
		if i == row {
			lines[i] = lipgloss.PlaceHorizontal(inner, lipgloss.Center, planeStyle.Render("-=>"))
		} else {
			lines[i] = strings.Repeat(" ", inner)
		}
	}
	return laneStyle.Render(strings.Join(lines, "\n"))
}

func renderFooter(s session.State) string {
	segments := []string{
		fmt.Sprintf("Time %ds", s.Remaining),
		fmt.Sprintf("WPM %d", s.WPM),
		fmt.Sprintf("Accuracy %d%%", s.Accuracy),
		fmt.Sprintf("Progress %d%%", int(s.Progress)),
	}
	if !s.Started {
		segments = append(segments, "timer starts on first key")
	}
	return footerStyle.Render(strings.Join(segments, "  "))
}

func (m *Model) renderResult(s session.State) string {
	title := "Finished!"
	if s.Outcome == session.OutcomeTimedOut {
		title = "Time's up!"
	}
	lines := []string{
		titleStyle.Render(title),
		"",
		fmt.Sprintf("WPM       %d", s.WPM),
		fmt.Sprintf("Accuracy  %d%%", s.Accuracy),
		fmt.Sprintf("Progress  %d%%", int(s.Progress)),
	}
	if m.status != "" {
		lines = append(lines, "", m.status)
	}
	lines = append(lines, "", m.help.ShortHelpView([]key.Binding{m.keys.Again, m.keys.Quit}))
	return resultStyle.Render(strings.Join(lines, "\n"))
}
