package tui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// Run starts the full-screen status viewer against source, blocking until
// the operator quits.
func Run(source Source) error {
	model := NewModel(source)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
