package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(primaryColor)
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// View renders the current frame.
func (m *Model) View() string {
	if m.quit {
		return ""
	}

	header := titleStyle.Render("procwatchd — worker status")
	help := helpStyle.Render("q: quit  ↑/↓: select")

	return fmt.Sprintf("%s\n\n%s\n\n%s\n", header, m.table.View(), help)
}
