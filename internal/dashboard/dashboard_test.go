package dashboard

import (
	"bytes"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/exp/teatest"
	"github.com/stretchr/testify/require"

	"github.com/relayfleet/relayfleet/internal/tasks"
	"github.com/relayfleet/relayfleet/internal/teams"
)

func seedTeamWithTasks(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	teamStore := teams.New(root)
	_, err := teamStore.Create("alpha", "pays down tech debt", "claude", "", "/work")
	require.NoError(t, err)

	taskStore := tasks.New(root)
	_, err = taskStore.Create("alpha", "wire up the dashboard", "a read-only status view\n\nwith **markdown**", "wiring up the dashboard", nil)
	require.NoError(t, err)

	return root
}

func TestDashboard_LoadsTeamsAndTasks(t *testing.T) {
	root := seedTeamWithTasks(t)
	m := New(root)

	tm := teatest.NewTestModel(t, m, teatest.WithInitialTermSize(120, 40))

	teatest.WaitFor(t, tm.Output(), func(b []byte) bool {
		return bytes.Contains(b, []byte("relayfleet dashboard"))
	}, teatest.WithDuration(2*time.Second))

	tm.Send(tea.KeyMsg{Type: tea.KeyEnter})

	teatest.WaitFor(t, tm.Output(), func(b []byte) bool {
		return bytes.Contains(b, []byte("wire up the dashboard"))
	}, teatest.WithDuration(2*time.Second))

	tm.Send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	tm.WaitFinished(t, teatest.WithFinalTimeout(2*time.Second))
}

func TestDashboard_TabTogglesFocus(t *testing.T) {
	root := seedTeamWithTasks(t)
	m := New(root)
	m.width, m.height = 120, 40
	m.ready = true
	m.layout()

	require.Equal(t, focusTeams, m.focus)
	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyTab})
	next := updated.(*Model)
	require.Equal(t, focusTasks, next.focus)
}
