package tui

import (
	"sort"
	"strconv"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/procwatch/procwatchd/internal/registry"
)

// Update handles Bubbletea messages. The viewer is read-only: 'q'/ctrl+c/esc
// quit, other keys go to the table (arrow keys move the selection), and the
// refresh tick reloads the worker list.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table.SetHeight(m.height - 6)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quit = true
			return m, tea.Quit
		}
		var cmd tea.Cmd
		m.table, cmd = m.table.Update(msg)
		return m, cmd

	case refreshMsg:
		return m, tea.Batch(refreshTick(), m.refreshCmd())

	case workersMsg:
		m.applyWorkers(msg)
		return m, nil
	}

	return m, nil
}

func (m *Model) applyWorkers(workers []registry.WorkerInfo) {
	sort.Slice(workers, func(i, j int) bool { return workers[i].ID < workers[j].ID })

	rows := make([]table.Row, len(workers))
	for i, w := range workers {
		rows[i] = table.Row{
			strconv.FormatUint(uint64(w.ID), 10),
			w.Name,
			string(w.Status),
		}
	}
	m.table.SetRows(rows)
}
