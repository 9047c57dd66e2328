package tui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/procwatch/procwatchd/internal/registry"
)

type fakeSource struct {
	workers []registry.WorkerInfo
}

func (f *fakeSource) List() []registry.WorkerInfo {
	return f.workers
}

func TestModel_AppliesWorkersIntoTable(t *testing.T) {
	src := &fakeSource{workers: []registry.WorkerInfo{
		{ID: 2, Name: "svc-b", Status: registry.StatusCreated},
		{ID: 1, Name: "svc-a", Status: registry.StatusFailed},
	}}
	m := NewModel(src)

	updated, _ := m.Update(workersMsg(src.workers))
	mm := updated.(*Model)

	rows := mm.table.Rows()
	if len(rows) != 2 {
		t.Fatalf("len(rows) = %d, want 2", len(rows))
	}
	// Sorted by id ascending: svc-a (id 1) first.
	if rows[0][1] != "svc-a" {
		t.Errorf("rows[0] name = %q, want svc-a", rows[0][1])
	}
	if rows[1][1] != "svc-b" {
		t.Errorf("rows[1] name = %q, want svc-b", rows[1][1])
	}
}

func TestModel_QuitsOnQ(t *testing.T) {
	m := NewModel(&fakeSource{})
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("expected a Quit command")
	}
	if !m.quit {
		t.Error("quit = false, want true after 'q'")
	}
}

func TestModel_WindowResizeAdjustsTableHeight(t *testing.T) {
	m := NewModel(&fakeSource{})
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	mm := updated.(*Model)
	if mm.width != 120 || mm.height != 40 {
		t.Errorf("dimensions = (%d,%d), want (120,40)", mm.width, mm.height)
	}
}
