package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/pithecene-io/scriptrun/metrics"
	"github.com/pithecene-io/scriptrun/types"
)

func sampleResult() *types.StepResult {
	return &types.StepResult{
		BuildID:   "b-1",
		TaskID:    "t-1",
		Shell:     "bash",
		Status:    types.StepStatusFailure,
		Message:   "LINUX script execution failed",
		ErrorType: types.ErrorTypeUser,
		ErrorCode: types.ErrCodeUserScriptCommandInvalid,
		ExitCode:  3,
		StartedAt: time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC),
		Duration:  1500 * time.Millisecond,
		Data: map[string]types.Output{
			"zeta":  types.StringOutput("z"),
			"alpha": {Type: types.OutputTypeArtifact, Value: "dist/*.tgz", Matches: []string{"dist/a.tgz"}},
		},
		Metrics: &metrics.Snapshot{
			StdoutLines:   12,
			StderrLines:   2,
			MarkersByKind: map[string]int64{"set-output": 2},
			Shell:         "BASH",
			Policy:        "strict",
		},
	}
}

func TestView_String(t *testing.T) {
	if ViewMetrics.String() != "Metrics" {
		t.Errorf("ViewMetrics.String() = %q", ViewMetrics.String())
	}
	if View(9).String() != "Unknown" {
		t.Errorf("View(9).String() = %q", View(9).String())
	}
}

func TestRenderStatic_Summary(t *testing.T) {
	out := RenderStatic(sampleResult(), ViewSummary)
	for _, want := range []string{"b-1", "failure", "USER 2199009", "LINUX script execution failed", "1.5s"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestRenderStatic_OutputsSorted(t *testing.T) {
	out := RenderStatic(sampleResult(), ViewOutputs)
	a, z := strings.Index(out, "alpha"), strings.Index(out, "zeta")
	if a < 0 || z < 0 || a > z {
		t.Errorf("outputs not sorted (alpha=%d zeta=%d):\n%s", a, z, out)
	}
	if !strings.Contains(out, "dist/a.tgz") {
		t.Errorf("artifact matches missing:\n%s", out)
	}
}

func TestRenderStatic_Metrics(t *testing.T) {
	out := RenderStatic(sampleResult(), ViewMetrics)
	if !strings.Contains(out, "set-output") || !strings.Contains(out, "12") {
		t.Errorf("metrics view incomplete:\n%s", out)
	}

	r := sampleResult()
	r.Metrics = nil
	if out := RenderStatic(r, ViewMetrics); !strings.Contains(out, "no metrics recorded") {
		t.Errorf("expected placeholder, got:\n%s", out)
	}
}

func TestUpdate_SwitchesViews(t *testing.T) {
	var m tea.Model = NewInspectModel(sampleResult())
	m, _ = m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyTab})
	if got := m.(InspectModel).view; got != ViewOutputs {
		t.Fatalf("after tab: view = %v", got)
	}
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	if got := m.(InspectModel).view; got != ViewMetrics {
		t.Fatalf("after two shift+tab: view = %v", got)
	}
}

func TestUpdate_Quit(t *testing.T) {
	m := NewInspectModel(sampleResult())
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if next.View() != "" {
		t.Error("quitting model should render nothing")
	}
}

func TestRun_NilResult(t *testing.T) {
	if err := Run(nil); err == nil {
		t.Error("expected error for nil result")
	}
}
