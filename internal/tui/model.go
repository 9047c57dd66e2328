// Package tui is a read-only status viewer for the supervision tree: it
// polls the registry on an interval and renders worker id/name/status as a
// table. It has no write path back into the daemon: it cannot stop or
// restart a worker.
package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/procwatch/procwatchd/internal/registry"
)

var primaryColor = lipgloss.Color("63")

const refreshInterval = 500 * time.Millisecond

// Source is whatever the TUI polls for a worker snapshot; *registry.Registry
// satisfies it directly.
type Source interface {
	List() []registry.WorkerInfo
}

// Model is the Bubbletea model for the status viewer.
type Model struct {
	source Source
	table  table.Model
	width  int
	height int
	err    error
	quit   bool
}

// NewModel builds a Model that polls source for worker status.
func NewModel(source Source) *Model {
	m := &Model{
		source: source,
		width:  100,
		height: 30,
	}
	m.table = m.buildTable()
	return m
}

func (m *Model) buildTable() table.Model {
	columns := []table.Column{
		{Title: "ID", Width: 6},
		{Title: "NAME", Width: 24},
		{Title: "STATUS", Width: 14},
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(20),
	)

	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(primaryColor).
		BorderBottom(true).
		Bold(true)
	styles.Selected = styles.Selected.
		Foreground(lipgloss.Color("229")).
		Background(primaryColor).
		Bold(false)
	t.SetStyles(styles)

	return t
}

// Init kicks off the refresh tick.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(refreshTick(), m.refreshCmd())
}

func refreshTick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return refreshMsg(t)
	})
}

type refreshMsg time.Time

type workersMsg []registry.WorkerInfo

func (m *Model) refreshCmd() tea.Cmd {
	return func() tea.Msg {
		return workersMsg(m.source.List())
	}
}
