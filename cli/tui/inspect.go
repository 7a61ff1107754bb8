package tui

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/scriptrun/metrics"
	"github.com/pithecene-io/scriptrun/types"
)

// View selects one panel of the inspect TUI.
type View int

const (
	ViewSummary View = iota
	ViewOutputs
	ViewMetrics
)

var viewNames = []string{"Summary", "Outputs", "Metrics"}

// String returns the tab title.
func (v View) String() string {
	if v < 0 || int(v) >= len(viewNames) {
		return "Unknown"
	}
	return viewNames[v]
}

// chrome is the number of lines taken by tabs and help.
const chrome = 4

// InspectModel is a Bubble Tea model over one step result.
type InspectModel struct {
	result   *types.StepResult
	view     View
	vp       viewport.Model
	ready    bool
	quitting bool
}

// NewInspectModel creates a model showing the summary panel.
func NewInspectModel(result *types.StepResult) InspectModel {
	return InspectModel{result: result}
}

// Init implements tea.Model.
func (m InspectModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m InspectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if !m.ready {
			m.vp = viewport.New(msg.Width, max(msg.Height-chrome, 1))
			m.ready = true
		} else {
			m.vp.Width = msg.Width
			m.vp.Height = max(msg.Height-chrome, 1)
		}
		m.vp.SetContent(m.panel())
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, keys.Next):
			m.view = (m.view + 1) % View(len(viewNames))
			m.refresh()
			return m, nil
		case key.Matches(msg, keys.Prev):
			m.view = (m.view + View(len(viewNames)) - 1) % View(len(viewNames))
			m.refresh()
			return m, nil
		}
	}

	if !m.ready {
		return m, nil
	}
	var cmd tea.Cmd
	m.vp, cmd = m.vp.Update(msg)
	return m, cmd
}

func (m *InspectModel) refresh() {
	if m.ready {
		m.vp.SetContent(m.panel())
		m.vp.GotoTop()
	}
}

// View implements tea.Model.
func (m InspectModel) View() string {
	if m.quitting {
		return ""
	}
	body := m.panel()
	if m.ready {
		body = m.vp.View()
	}
	help := HelpStyle.Render("tab/shift+tab switch view • ↑/↓ scroll • q quit")
	return m.tabs() + "\n" + body + "\n" + help
}

func (m InspectModel) tabs() string {
	rendered := make([]string, len(viewNames))
	for i, name := range viewNames {
		if View(i) == m.view {
			rendered[i] = ActiveTabStyle.Render(name)
		} else {
			rendered[i] = TabStyle.Render(name)
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
}

func (m InspectModel) panel() string {
	if m.result == nil {
		return ErrorStyle.Render("no result")
	}
	switch m.view {
	case ViewOutputs:
		return renderOutputs(m.result)
	case ViewMetrics:
		return renderMetrics(m.result.Metrics)
	default:
		return renderSummary(m.result)
	}
}

func renderSummary(r *types.StepResult) string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render("Step " + r.BuildID))
	b.WriteString("\n")

	row := func(label, value string, style lipgloss.Style) {
		if value == "" {
			return
		}
		fmt.Fprintf(&b, "%s %s\n", LabelStyle.Render(label+":"), style.Render(value))
	}
	row("Status", string(r.Status), StatusStyle(r.Status))
	row("Task", r.TaskID, ValueStyle)
	row("Shell", r.Shell, ValueStyle)
	row("Exit code", fmt.Sprintf("%d", r.ExitCode), ValueStyle)
	if r.ErrorType != types.ErrorTypeNone {
		row("Error", fmt.Sprintf("%s %d", r.ErrorType, r.ErrorCode), ErrorStyle)
	}
	if !r.StartedAt.IsZero() {
		row("Started", r.StartedAt.Format(time.DateTime), ValueStyle)
	}
	row("Duration", r.Duration.Round(time.Millisecond).String(), ValueStyle)
	row("Drained", fmt.Sprintf("%t", r.Drained), ValueStyle)
	row("Storage", r.StoragePath, ValueStyle)

	b.WriteString("\n")
	b.WriteString(TitleStyle.Render("Message"))
	b.WriteString("\n")
	b.WriteString(r.Message)

	if r.Output != "" {
		b.WriteString("\n\n")
		b.WriteString(TitleStyle.Render("Output"))
		b.WriteString("\n")
		b.WriteString(r.Output)
	}
	return BoxStyle.Render(b.String())
}

func renderOutputs(r *types.StepResult) string {
	if len(r.Data) == 0 {
		return HelpStyle.Render("(no outputs)")
	}
	var b strings.Builder
	b.WriteString(TitleStyle.Render(fmt.Sprintf("Outputs (%d)", len(r.Data))))
	b.WriteString("\n")

	names := make([]string, 0, len(r.Data))
	for name := range r.Data {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		o := r.Data[name]
		fmt.Fprintf(&b, "%s %s\n", LabelStyle.Render(name), WarningStyle.Render(string(o.Type)))
		detail := func(label, value string) {
			if value != "" {
				fmt.Fprintf(&b, "  %s %s\n", LabelStyle.Render(label), ValueStyle.Render(value))
			}
		}
		detail("value", o.Value)
		detail("label", o.Label)
		detail("path", o.Path)
		detail("report", string(o.ReportType))
		detail("url", o.URL)
		for _, match := range o.Matches {
			detail("match", match)
		}
	}
	return b.String()
}

func renderMetrics(s *metrics.Snapshot) string {
	if s == nil {
		return HelpStyle.Render("(no metrics recorded)")
	}
	var b strings.Builder
	b.WriteString(TitleStyle.Render("Step Metrics"))
	b.WriteString("\n")

	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		statBox("stdout lines", s.StdoutLines, highlightColor),
		statBox("stderr lines", s.StderrLines, warningColor),
		statBox("archived", s.LinesPersisted, successColor),
	))
	b.WriteString("\n")
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		statBox("pool expansions", s.PoolExpansions, highlightColor),
		statBox("drain timeouts", s.DrainTimeouts, errorColor),
		statBox("publish failures", s.AdapterPublishFailures, errorColor),
	))
	b.WriteString("\n")

	if len(s.MarkersByKind) > 0 {
		kinds := make([]string, 0, len(s.MarkersByKind))
		for k := range s.MarkersByKind {
			kinds = append(kinds, k)
		}
		slices.Sort(kinds)
		b.WriteString(TitleStyle.Render("Markers"))
		b.WriteString("\n")
		for _, k := range kinds {
			fmt.Fprintf(&b, "%s %d\n", LabelStyle.Render(k), s.MarkersByKind[k])
		}
	}
	fmt.Fprintf(&b, "\n%s %s / %s / %s\n", LabelStyle.Render("dimensions"), s.Shell, s.Policy, s.StorageBackend)
	return b.String()
}

func statBox(label string, value int64, color lipgloss.Color) string {
	content := lipgloss.JoinVertical(lipgloss.Center,
		StatLabelStyle.Render(label),
		StatValueStyle.Foreground(color).Render(fmt.Sprintf("%d", value)),
	)
	return StatBoxStyle.Render(content)
}

type keyMap struct {
	Quit key.Binding
	Next key.Binding
	Prev key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
	Next: key.NewBinding(
		key.WithKeys("tab", "right", "l"),
		key.WithHelp("tab", "next view"),
	),
	Prev: key.NewBinding(
		key.WithKeys("shift+tab", "left", "h"),
		key.WithHelp("shift+tab", "previous view"),
	),
}
