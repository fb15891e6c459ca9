package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/relayfleet/relayfleet/internal/messaging"
	"github.com/relayfleet/relayfleet/internal/mux"
	"github.com/relayfleet/relayfleet/internal/rpc"
	"github.com/relayfleet/relayfleet/internal/spawner"
	"github.com/relayfleet/relayfleet/internal/teams"
	"github.com/relayfleet/relayfleet/internal/watcher"
)

// OrchestratorDeps collects the stores and services the orchestrator
// tool surface is wired to — the team-lead-side tools for bringing up
// and tearing down external teammates and inspecting the team.
type OrchestratorDeps struct {
	Teams         *teams.Store
	Messages      *messaging.Store
	Spawner       *spawner.Spawner
	Mux           *mux.Resolver
	Watchers      *watcher.Pool
	BackendBinary string
}

// RegisterOrchestratorTools registers the team-lead surface: team
// lifecycle, external-agent registration/spawn/check/shutdown, and
// inbox/config introspection.
func RegisterOrchestratorTools(server *rpc.Server, deps OrchestratorDeps) {
	server.RegisterTool(rpc.Tool{
		Name:        "team_create",
		Description: "Create a new team with the calling session as team-lead.",
		InputSchema: &rpc.InputSchema{
			Type: "object",
			Properties: map[string]*rpc.PropertySchema{
				"team_name":       {Type: "string"},
				"description":     {Type: "string"},
				"lead_agent_type": {Type: "string"},
				"lead_model":      {Type: "string"},
				"lead_cwd":        {Type: "string"},
			},
			Required: []string{"team_name", "lead_cwd"},
		},
	}, handleTeamCreate(deps.Teams))

	server.RegisterTool(rpc.Tool{
		Name:        "team_delete",
		Description: "Delete a team. Fails if any teammate is still active.",
		InputSchema: &rpc.InputSchema{
			Type:       "object",
			Properties: map[string]*rpc.PropertySchema{"team_name": {Type: "string"}},
			Required:   []string{"team_name"},
		},
	}, handleTeamDelete(deps.Teams))

	server.RegisterTool(rpc.Tool{
		Name:        "team_list",
		Description: "Read a team's full roster and identity.",
		InputSchema: &rpc.InputSchema{
			Type:       "object",
			Properties: map[string]*rpc.PropertySchema{"team_name": {Type: "string"}},
			Required:   []string{"team_name"},
		},
	}, handleTeamRead(deps.Teams))

	server.RegisterTool(rpc.Tool{
		Name:        "register_external_agent",
		Description: "Register an external agent on the team without launching a process.",
		InputSchema: &rpc.InputSchema{
			Type: "object",
			Properties: map[string]*rpc.PropertySchema{
				"team_name":  {Type: "string"},
				"name":       {Type: "string"},
				"agent_type": {Type: "string"},
				"cwd":        {Type: "string"},
			},
			Required: []string{"team_name", "name", "cwd"},
		},
	}, handleRegisterExternalAgent(deps.Spawner))

	server.RegisterTool(rpc.Tool{
		Name:        "spawn_external_agent",
		Description: "Register and launch an external agent in a new tmux pane or window.",
		InputSchema: &rpc.InputSchema{
			Type: "object",
			Properties: map[string]*rpc.PropertySchema{
				"team_name":      {Type: "string"},
				"name":           {Type: "string"},
				"prompt":         {Type: "string"},
				"agent_type":     {Type: "string"},
				"cwd":            {Type: "string"},
				"backend_binary": {Type: "string"},
			},
			Required: []string{"team_name", "name", "prompt", "cwd"},
		},
	}, handleSpawnExternalAgent(deps))

	server.RegisterTool(rpc.Tool{
		Name:        "check_external_agent",
		Description: "Check whether an external agent's pane is alive and peek its recent output.",
		InputSchema: &rpc.InputSchema{
			Type: "object",
			Properties: map[string]*rpc.PropertySchema{
				"team_name":    {Type: "string"},
				"name":         {Type: "string"},
				"output_lines": {Type: "integer"},
			},
			Required: []string{"team_name", "name"},
		},
	}, handleCheckExternalAgent(deps))

	server.RegisterTool(rpc.Tool{
		Name:        "force_kill_teammate",
		Description: "Alias for shutdown_external_agent; kills a teammate's pane and unregisters it.",
		InputSchema: &rpc.InputSchema{
			Type: "object",
			Properties: map[string]*rpc.PropertySchema{
				"team_name": {Type: "string"},
				"name":      {Type: "string"},
			},
			Required: []string{"team_name", "name"},
		},
	}, handleShutdownExternalAgent(deps.Spawner))

	server.RegisterTool(rpc.Tool{
		Name:        "shutdown_external_agent",
		Description: "Stop watching, kill the pane, unregister, and reset owned tasks for a teammate.",
		InputSchema: &rpc.InputSchema{
			Type: "object",
			Properties: map[string]*rpc.PropertySchema{
				"team_name": {Type: "string"},
				"name":      {Type: "string"},
			},
			Required: []string{"team_name", "name"},
		},
	}, handleShutdownExternalAgent(deps.Spawner))

	server.RegisterTool(rpc.Tool{
		Name:        "read_inbox",
		Description: "Read a member's inbox, optionally filtered to unread or by sender.",
		InputSchema: &rpc.InputSchema{
			Type: "object",
			Properties: map[string]*rpc.PropertySchema{
				"team_name":   {Type: "string"},
				"name":        {Type: "string"},
				"unread_only": {Type: "boolean"},
				"sender":      {Type: "string"},
				"limit":       {Type: "integer"},
			},
			Required: []string{"team_name", "name"},
		},
	}, handleReadInbox(deps.Messages))

	server.RegisterTool(rpc.Tool{
		Name:        "read_config",
		Description: "Report the resolved runtime configuration (storage root, backend binary).",
		InputSchema: &rpc.InputSchema{
			Type:       "object",
			Properties: map[string]*rpc.PropertySchema{},
		},
	}, handleReadConfig(deps))
}

func handleTeamCreate(store *teams.Store) rpc.ToolHandler {
	type args struct {
		TeamName      string `json:"team_name"`
		Description   string `json:"description"`
		LeadAgentType string `json:"lead_agent_type"`
		LeadModel     string `json:"lead_model"`
		LeadCwd       string `json:"lead_cwd"`
	}
	return func(_ context.Context, raw json.RawMessage) (*rpc.ToolCallResult, error) {
		var a args
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, err
		}
		team, err := store.Create(a.TeamName, a.Description, a.LeadAgentType, a.LeadModel, a.LeadCwd)
		if err != nil {
			return rpc.WrapToolError(err), nil
		}
		return structuredTextResult(team)
	}
}

func handleTeamDelete(store *teams.Store) rpc.ToolHandler {
	type args struct {
		TeamName string `json:"team_name"`
	}
	return func(_ context.Context, raw json.RawMessage) (*rpc.ToolCallResult, error) {
		var a args
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, err
		}
		if err := store.Delete(a.TeamName); err != nil {
			return rpc.WrapToolError(err), nil
		}
		return rpc.SuccessResult("Team " + a.TeamName + " deleted"), nil
	}
}

func handleTeamRead(store *teams.Store) rpc.ToolHandler {
	type args struct {
		TeamName string `json:"team_name"`
	}
	return func(_ context.Context, raw json.RawMessage) (*rpc.ToolCallResult, error) {
		var a args
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, err
		}
		team, err := store.Read(a.TeamName)
		if err != nil {
			return rpc.WrapToolError(err), nil
		}
		return structuredTextResult(team)
	}
}

func handleRegisterExternalAgent(s *spawner.Spawner) rpc.ToolHandler {
	type args struct {
		TeamName  string `json:"team_name"`
		Name      string `json:"name"`
		AgentType string `json:"agent_type"`
		Cwd       string `json:"cwd"`
	}
	return func(_ context.Context, raw json.RawMessage) (*rpc.ToolCallResult, error) {
		var a args
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, err
		}
		member, err := s.Register(a.TeamName, a.Name, a.AgentType, a.Cwd)
		if err != nil {
			return rpc.WrapToolError(err), nil
		}
		return structuredTextResult(member)
	}
}

func handleSpawnExternalAgent(deps OrchestratorDeps) rpc.ToolHandler {
	type args struct {
		TeamName      string `json:"team_name"`
		Name          string `json:"name"`
		Prompt        string `json:"prompt"`
		AgentType     string `json:"agent_type"`
		Cwd           string `json:"cwd"`
		BackendBinary string `json:"backend_binary"`
	}
	return func(ctx context.Context, raw json.RawMessage) (*rpc.ToolCallResult, error) {
		var a args
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, err
		}
		backend := a.BackendBinary
		if backend == "" {
			backend = deps.BackendBinary
		}
		member, err := deps.Spawner.Spawn(ctx, a.TeamName, a.Name, a.Prompt, backend, a.AgentType, a.Cwd)
		if err != nil {
			return rpc.WrapToolError(err), nil
		}
		return structuredTextResult(member)
	}
}

func handleCheckExternalAgent(deps OrchestratorDeps) rpc.ToolHandler {
	type args struct {
		TeamName    string `json:"team_name"`
		Name        string `json:"name"`
		OutputLines int    `json:"output_lines"`
	}
	return func(ctx context.Context, raw json.RawMessage) (*rpc.ToolCallResult, error) {
		var a args
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, err
		}
		cfg, err := deps.Teams.Read(a.TeamName)
		if err != nil {
			return rpc.WrapToolError(err), nil
		}
		member, ok := cfg.Member(a.Name)
		if !ok {
			return rpc.WrapToolError(fmt.Errorf("%s is not a member of %s", a.Name, a.TeamName)), nil
		}
		tm, ok := member.(teams.Teammate)
		if !ok {
			return rpc.WrapToolError(fmt.Errorf("%s is team-lead, not an external agent", a.Name)), nil
		}

		lines := a.OutputLines
		if lines <= 0 {
			lines = 20
		}

		status := map[string]any{
			"name":       tm.Name,
			"isActive":   tm.IsActive,
			"isWatching": deps.Watchers.IsWatching(a.TeamName, a.Name),
		}
		if tm.TmuxPaneID == "" {
			status["alive"] = false
		} else {
			paneID, err := deps.Mux.Resolve(ctx, tm.TmuxPaneID)
			if err != nil {
				status["alive"] = false
				status["error"] = err.Error()
			} else {
				peek := deps.Mux.Peek(ctx, paneID, lines)
				status["alive"] = peek.Alive
				status["output"] = peek.Output
				if peek.Error != "" {
					status["error"] = peek.Error
				}
			}
		}
		return structuredTextResult(status)
	}
}

func handleShutdownExternalAgent(s *spawner.Spawner) rpc.ToolHandler {
	type args struct {
		TeamName string `json:"team_name"`
		Name     string `json:"name"`
	}
	return func(ctx context.Context, raw json.RawMessage) (*rpc.ToolCallResult, error) {
		var a args
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, err
		}
		if err := s.Shutdown(ctx, a.TeamName, a.Name); err != nil {
			return rpc.WrapToolError(err), nil
		}
		return rpc.SuccessResult(a.Name + " shut down"), nil
	}
}

func handleReadInbox(store *messaging.Store) rpc.ToolHandler {
	type args struct {
		TeamName   string `json:"team_name"`
		Name       string `json:"name"`
		UnreadOnly bool   `json:"unread_only"`
		Sender     string `json:"sender"`
		Limit      int    `json:"limit"`
	}
	return func(_ context.Context, raw json.RawMessage) (*rpc.ToolCallResult, error) {
		var a args
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, err
		}
		msgs, err := store.ReadFiltered(a.TeamName, a.Name, a.Sender, a.UnreadOnly, false, a.Limit)
		if err != nil {
			return rpc.WrapToolError(err), nil
		}
		return structuredTextResult(msgs)
	}
}

func handleReadConfig(deps OrchestratorDeps) rpc.ToolHandler {
	return func(_ context.Context, _ json.RawMessage) (*rpc.ToolCallResult, error) {
		return structuredTextResult(map[string]any{
			"root":          deps.Messages.Root,
			"backendBinary": deps.BackendBinary,
		})
	}
}
