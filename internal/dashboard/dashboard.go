// Package dashboard implements a read-only bubbletea TUI that lists
// teams with their member counts, and each team's task graph. It never
// mutates storage — everything it shows is reloaded from the team and
// task stores on a timer and on explicit refresh.
package dashboard

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/relayfleet/relayfleet/internal/log"
	"github.com/relayfleet/relayfleet/internal/tasks"
	"github.com/relayfleet/relayfleet/internal/teams"
)

const refreshInterval = 2 * time.Second

// focusPane identifies which list has keyboard focus.
type focusPane int

const (
	focusTeams focusPane = iota
	focusTasks
)

var (
	borderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)
	focusedBorderStyle = borderStyle.BorderForeground(lipgloss.Color("62"))
	headerStyle        = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("229"))
	statusStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	errStyle           = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
)

type teamItem struct {
	name        string
	description string
	memberCount int
}

func (i teamItem) Title() string { return i.name }
func (i teamItem) Description() string {
	return fmt.Sprintf("%d member(s) · %s", i.memberCount, i.description)
}
func (i teamItem) FilterValue() string { return i.name }

type taskItem struct {
	tasks.Task
}

func (i taskItem) Title() string {
	return fmt.Sprintf("[%s] %s", i.ID, i.Subject)
}
func (i taskItem) Description() string {
	owner := "unassigned"
	if i.Owner != nil {
		owner = *i.Owner
	}
	return fmt.Sprintf("%s · owner: %s", i.Status, owner)
}
func (i taskItem) FilterValue() string { return i.Subject }

type refreshMsg struct {
	teamNames []teamItem
	err       error
}

type tasksLoadedMsg struct {
	team string
	list []tasks.Task
	err  error
}

// Model is the dashboard's bubbletea root component.
type Model struct {
	teamStore *teams.Store
	taskStore *tasks.Store

	width, height int
	ready         bool
	focus         focusPane

	teamList list.Model
	taskList list.Model
	detail   viewport.Model

	selectedTeam string
	err          error
}

// New returns a dashboard Model backed by the stores rooted at root.
func New(root string) *Model {
	teamList := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	teamList.Title = "Teams"
	teamList.SetShowHelp(false)

	taskList := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	taskList.Title = "Tasks"
	taskList.SetShowHelp(false)

	return &Model{
		teamStore: teams.New(root),
		taskStore: tasks.New(root),
		teamList:  teamList,
		taskList:  taskList,
		detail:    viewport.New(0, 0),
		focus:     focusTeams,
	}
}

// Init starts the periodic refresh loop and loads the team list.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.loadTeams(), tickCmd())
}

func tickCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(time.Time) tea.Msg { return refreshTick{} })
}

type refreshTick struct{}

func (m *Model) loadTeams() tea.Cmd {
	return func() tea.Msg {
		names, err := m.teamStore.ListNames()
		if err != nil {
			return refreshMsg{err: err}
		}
		items := make([]teamItem, 0, len(names))
		for _, name := range names {
			cfg, err := m.teamStore.Read(name)
			if err != nil {
				log.Warn(log.CatUI, "reading team for dashboard", "team", name, "error", err)
				continue
			}
			items = append(items, teamItem{
				name:        name,
				description: cfg.Description,
				memberCount: len(cfg.Members),
			})
		}
		return refreshMsg{teamNames: items}
	}
}

func (m *Model) loadTasks(team string) tea.Cmd {
	return func() tea.Msg {
		list, err := m.taskStore.List(team)
		return tasksLoadedMsg{team: team, list: list, err: err}
	}
}

// Update handles bubbletea messages: window resizes, key presses, and
// the background refresh ticker.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.ready = true
		m.layout()
		return m, nil

	case refreshTick:
		return m, tea.Batch(m.loadTeams(), tickCmd())

	case refreshMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		items := make([]list.Item, len(msg.teamNames))
		for i, t := range msg.teamNames {
			items[i] = t
		}
		m.teamList.SetItems(items)
		if m.selectedTeam == "" && len(msg.teamNames) > 0 {
			m.selectedTeam = msg.teamNames[0].name
			return m, m.loadTasks(m.selectedTeam)
		}
		if m.selectedTeam != "" {
			return m, m.loadTasks(m.selectedTeam)
		}
		return m, nil

	case tasksLoadedMsg:
		if msg.team != m.selectedTeam {
			return m, nil
		}
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		items := make([]list.Item, len(msg.list))
		for i, t := range msg.list {
			items[i] = taskItem{t}
		}
		m.taskList.SetItems(items)
		m.updateDetail()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "tab":
			if m.focus == focusTeams {
				m.focus = focusTasks
			} else {
				m.focus = focusTeams
			}
			return m, nil
		case "r":
			return m, m.loadTeams()
		case "enter":
			if m.focus == focusTeams {
				if item, ok := m.teamList.SelectedItem().(teamItem); ok && item.name != m.selectedTeam {
					m.selectedTeam = item.name
					m.taskList.SetItems(nil)
					return m, m.loadTasks(m.selectedTeam)
				}
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	switch m.focus {
	case focusTeams:
		m.teamList, cmd = m.teamList.Update(msg)
		if _, ok := msg.(tea.KeyMsg); ok {
			m.updateDetail()
		}
	case focusTasks:
		m.taskList, cmd = m.taskList.Update(msg)
		m.updateDetail()
	}
	return m, cmd
}

func (m *Model) updateDetail() {
	item, ok := m.taskList.SelectedItem().(taskItem)
	if !ok {
		m.detail.SetContent("")
		return
	}
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", item.Subject)
	fmt.Fprintf(&b, "**status**: %s\n\n", item.Status)
	if item.Owner != nil {
		fmt.Fprintf(&b, "**owner**: %s\n\n", *item.Owner)
	}
	if len(item.BlockedBy) > 0 {
		fmt.Fprintf(&b, "**blocked by**: %s\n\n", strings.Join(item.BlockedBy, ", "))
	}
	if len(item.Blocks) > 0 {
		fmt.Fprintf(&b, "**blocks**: %s\n\n", strings.Join(item.Blocks, ", "))
	}
	if item.Description != "" {
		rendered, err := renderMarkdown(item.Description, m.detail.Width)
		if err != nil {
			rendered = item.Description
		}
		b.WriteString(rendered)
	}
	m.detail.SetContent(b.String())
}

func (m *Model) layout() {
	if !m.ready {
		return
	}
	listHeight := m.height - 6
	if listHeight < 3 {
		listHeight = 3
	}
	leftWidth := m.width / 3
	rightWidth := m.width - leftWidth - 6

	m.teamList.SetSize(leftWidth, listHeight)
	m.taskList.SetSize(rightWidth/2, listHeight)
	m.detail.Width = rightWidth / 2
	m.detail.Height = listHeight
	m.updateDetail()
}

// View renders the three-pane layout: teams, tasks, task detail.
func (m *Model) View() string {
	if !m.ready {
		return "loading…"
	}

	teamPane := borderStyle
	taskPane := borderStyle
	if m.focus == focusTeams {
		teamPane = focusedBorderStyle
	} else {
		taskPane = focusedBorderStyle
	}

	left := teamPane.Render(m.teamList.View())
	mid := taskPane.Render(m.taskList.View())
	right := borderStyle.Render(m.detail.View())

	row := lipgloss.JoinHorizontal(lipgloss.Top, left, mid, right)

	status := fmt.Sprintf("tab: switch pane · enter: open team · r: refresh · q: quit · team: %s", m.selectedTeam)
	if m.err != nil {
		status = errStyle.Render("error: " + m.err.Error())
	}

	return headerStyle.Render("relayfleet dashboard") + "\n" + row + "\n" + statusStyle.Render(status)
}
