package tui

import (
	"errors"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/scriptrun/types"
)

// Run shows result in a full-screen inspect view until the user quits.
func Run(result *types.StepResult) error {
	if result == nil {
		return errors.New("nothing to inspect")
	}
	p := tea.NewProgram(NewInspectModel(result), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// RenderStatic renders one view without starting a program.
func RenderStatic(result *types.StepResult, view View) string {
	model := NewInspectModel(result)
	model.view = view
	return lipgloss.NewStyle().Padding(1, 2).Render(model.View())
}
