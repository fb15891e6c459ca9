// Package spawner implements the registrar and process spawner for
// external teammates: registering a member + inbox without a
// process, launching the backend binary in a tmux pane/window, and
// tearing a teammate down (pane kill + registry removal + task
// ownership reset).
package spawner

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/relayfleet/relayfleet/internal/log"
	"github.com/relayfleet/relayfleet/internal/messaging"
	"github.com/relayfleet/relayfleet/internal/tasks"
	"github.com/relayfleet/relayfleet/internal/teams"
	"github.com/relayfleet/relayfleet/internal/watcher"
)

// CommandFactoryFunc builds the exec.Cmd used to invoke tmux, a test
// seam so Spawner can be exercised without a real tmux binary or
// backend process.
type CommandFactoryFunc func(ctx context.Context, name string, args ...string) *exec.Cmd

func defaultCommandFactory(ctx context.Context, name string, args ...string) *exec.Cmd {
	return exec.CommandContext(ctx, name, args...)
}

// promptWrapper is prefixed to the user-supplied prompt so the
// spawned process knows the MCP tool calls available to it. Grounded
// on the teacher-adjacent system's own wrapper template.
const promptWrapper = `You are team member '%s' on team '%s'.

You have MCP tools for team coordination:
- send_message(team_name="%s", sender="%s", recipient="<name>", content="...", summary="...")
- task_list(team_name="%s")
- task_update(team_name="%s", task_id="...", status="...")
- task_get(team_name="%s", task_id="...")
- task_create(team_name="%s", subject="...", description="...")

Messages from other agents will appear as input in the form:
[Message from <name>]: <content>

When you receive a message, respond using the send_message tool.

---

%s`

// Spawner registers, launches, and tears down external teammates.
type Spawner struct {
	teams          *teams.Store
	messages       *messaging.Store
	tasks          *tasks.Store
	watchers       *watcher.Pool
	commandFactory CommandFactoryFunc
	useTmuxWindows bool
}

// New returns a Spawner wired to the given stores and watcher pool.
func New(teamStore *teams.Store, messageStore *messaging.Store, taskStore *tasks.Store, watchers *watcher.Pool, useTmuxWindows bool) *Spawner {
	return &Spawner{
		teams:          teamStore,
		messages:       messageStore,
		tasks:          taskStore,
		watchers:       watchers,
		commandFactory: defaultCommandFactory,
		useTmuxWindows: useTmuxWindows,
	}
}

// WithCommandFactory overrides the command factory, for tests.
func (s *Spawner) WithCommandFactory(f CommandFactoryFunc) *Spawner {
	s.commandFactory = f
	return s
}

// Register adds name to team as an external Teammate with no running
// process (tmuxPaneId="", isActive=false) and ensures its inbox
// exists so SendMessage can reach it before Spawn is ever called.
func (s *Spawner) Register(team, name, agentType, cwd string) (teams.Teammate, error) {
	if err := teams.ValidateName(name); err != nil {
		return teams.Teammate{}, err
	}
	color, err := s.teams.NextColor(team)
	if err != nil {
		return teams.Teammate{}, err
	}
	member := teams.Teammate{
		AgentID:       name + "@" + team,
		Name:          name,
		AgentType:     agentType,
		Color:         color,
		JoinedAt:      time.Now().UnixMilli(),
		TmuxPaneID:    "",
		Cwd:           cwd,
		Subscriptions: []string{},
		BackendType:   "external",
		IsActive:      false,
	}
	if err := s.teams.AddMember(team, member); err != nil {
		return teams.Teammate{}, err
	}
	if _, err := s.messages.Ensure(team, name); err != nil {
		return teams.Teammate{}, err
	}
	log.Debug(log.CatSpawn, "registered external agent", "team", team, "name", name)
	return member, nil
}

// Spawn registers name (rolling back on any later failure), launches
// backendBinary in a new tmux pane or window with the wrapped prompt
// passed only via the command line (never double-written to the
// inbox), records the resulting pane id, and starts an inbox watcher
// for it.
func (s *Spawner) Spawn(ctx context.Context, team, name, prompt, backendBinary, agentType, cwd string) (teams.Teammate, error) {
	member, err := s.Register(team, name, agentType, cwd)
	if err != nil {
		return teams.Teammate{}, err
	}

	paneID, err := s.launch(ctx, team, name, prompt, backendBinary, cwd)
	if err != nil {
		s.rollback(team, name, "")
		return teams.Teammate{}, err
	}

	if err := s.teams.SetMemberPane(team, name, paneID); err != nil {
		s.rollback(team, name, paneID)
		return teams.Teammate{}, err
	}
	if err := s.teams.SetMemberActive(team, name, true); err != nil {
		s.rollback(team, name, paneID)
		return teams.Teammate{}, err
	}

	member.TmuxPaneID = paneID
	member.IsActive = true
	s.watchers.StartWatcher(team, name, paneID)
	log.Debug(log.CatSpawn, "spawned external agent", "team", team, "name", name, "pane", paneID)
	return member, nil
}

func (s *Spawner) launch(ctx context.Context, team, name, prompt, backendBinary, cwd string) (string, error) {
	wrapped := fmt.Sprintf(promptWrapper, name, team, team, name, team, team, team, team, prompt)
	command := fmt.Sprintf("cd %s && %s %s", shellQuote(cwd), shellQuote(backendBinary), shellQuote(wrapped))

	args := s.spawnArgs(command, name)
	cmd := s.commandFactory(ctx, args[0], args[1:]...)
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("spawning %s for %s: %w", backendBinary, name, err)
	}
	return strings.TrimSpace(string(out)), nil
}

func (s *Spawner) spawnArgs(command, name string) []string {
	if s.useTmuxWindows {
		return []string{"tmux", "new-window", "-dP", "-F", "#{window_id}", "-n", "@relayfleet|" + name, command}
	}
	return []string{"tmux", "split-window", "-dP", "-F", "#{pane_id}", command}
}

// rollback unregisters a partially-spawned member and kills its pane
// if one was already created, swallowing any rollback errors per
// spec.md §7.
func (s *Spawner) rollback(team, name, paneID string) {
	if paneID != "" {
		_ = killPane(context.Background(), s.commandFactory, paneID)
	}
	if err := s.teams.RemoveMember(team, name); err != nil {
		log.Debug(log.CatSpawn, "rollback unregister failed", "team", team, "name", name, "error", err.Error())
	}
}

// Shutdown stops the watcher, kills the teammate's pane/window,
// removes it from the registry, and resets its task ownership.
func (s *Spawner) Shutdown(ctx context.Context, team, name string) error {
	if name == teams.LeadAgentName {
		return teams.ErrCannotRemoveLead
	}

	cfg, err := s.teams.Read(team)
	if err != nil {
		return err
	}
	member, ok := cfg.Member(name)
	if !ok {
		return fmt.Errorf("%w: %s", teams.ErrMemberNotFound, name)
	}
	tm, ok := member.(teams.Teammate)
	if !ok {
		return fmt.Errorf("%s is not an external teammate", name)
	}

	s.watchers.StopWatcher(team, name)

	if tm.TmuxPaneID != "" {
		if err := killPane(ctx, s.commandFactory, tm.TmuxPaneID); err != nil {
			log.Debug(log.CatSpawn, "kill pane failed", "team", team, "name", name, "error", err.Error())
		}
	}
	if err := s.teams.RemoveMember(team, name); err != nil {
		return err
	}
	if err := s.tasks.ResetOwnerTasks(team, name); err != nil {
		return err
	}
	log.Debug(log.CatSpawn, "shut down external agent", "team", team, "name", name)
	return nil
}

func killPane(ctx context.Context, factory CommandFactoryFunc, paneID string) error {
	if strings.HasPrefix(paneID, "@") {
		return factory(ctx, "tmux", "kill-window", "-t", paneID).Run()
	}
	return factory(ctx, "tmux", "kill-pane", "-t", paneID).Run()
}

// shellQuote wraps s in single quotes for embedding in the shell
// command line passed to `tmux split-window`/`new-window`, escaping
// any single quote in s itself.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
