// Package tools assembles the two RPC tool surfaces named in spec.md
// §6 — the external-agent surface and the orchestrator surface — atop
// the shared core packages, translating JSON arguments into core
// calls and core errors into tool-level error results.
package tools

import (
	"context"
	"encoding/json"

	"github.com/relayfleet/relayfleet/internal/routing"
	"github.com/relayfleet/relayfleet/internal/rpc"
	"github.com/relayfleet/relayfleet/internal/tasks"
)

// RegisterExternalTools registers the external-agent surface: the
// tools a non-native agent calls to communicate and manage tasks.
func RegisterExternalTools(server *rpc.Server, router *routing.Service, taskStore *tasks.Store) {
	server.RegisterTool(rpc.Tool{
		Name:        "send_message",
		Description: "Send a message to any team member.",
		InputSchema: &rpc.InputSchema{
			Type: "object",
			Properties: map[string]*rpc.PropertySchema{
				"team_name": {Type: "string"},
				"sender":    {Type: "string"},
				"recipient": {Type: "string"},
				"content":   {Type: "string"},
				"summary":   {Type: "string"},
			},
			Required: []string{"team_name", "sender", "recipient", "content", "summary"},
		},
	}, handleSendMessage(router))

	server.RegisterTool(rpc.Tool{
		Name:        "task_create",
		Description: "Create a new task for the team.",
		InputSchema: &rpc.InputSchema{
			Type: "object",
			Properties: map[string]*rpc.PropertySchema{
				"team_name":   {Type: "string"},
				"subject":     {Type: "string"},
				"description": {Type: "string"},
				"active_form": {Type: "string"},
				"metadata":    {Type: "object"},
			},
			Required: []string{"team_name", "subject"},
		},
	}, handleTaskCreate(taskStore))

	server.RegisterTool(rpc.Tool{
		Name:        "task_list",
		Description: "List all tasks for a team.",
		InputSchema: &rpc.InputSchema{
			Type:       "object",
			Properties: map[string]*rpc.PropertySchema{"team_name": {Type: "string"}},
			Required:   []string{"team_name"},
		},
	}, handleTaskList(taskStore))

	server.RegisterTool(rpc.Tool{
		Name:        "task_get",
		Description: "Get full details of a specific task by id.",
		InputSchema: &rpc.InputSchema{
			Type: "object",
			Properties: map[string]*rpc.PropertySchema{
				"team_name": {Type: "string"},
				"task_id":   {Type: "string"},
			},
			Required: []string{"team_name", "task_id"},
		},
	}, handleTaskGet(taskStore))

	server.RegisterTool(rpc.Tool{
		Name:        "task_update",
		Description: "Update a task's fields; status='deleted' removes it.",
		InputSchema: &rpc.InputSchema{
			Type: "object",
			Properties: map[string]*rpc.PropertySchema{
				"team_name":      {Type: "string"},
				"task_id":        {Type: "string"},
				"status":         {Type: "string"},
				"owner":          {Type: "string"},
				"subject":        {Type: "string"},
				"description":    {Type: "string"},
				"active_form":    {Type: "string"},
				"add_blocks":     {Type: "array"},
				"add_blocked_by": {Type: "array"},
				"metadata":       {Type: "object"},
			},
			Required: []string{"team_name", "task_id"},
		},
	}, handleTaskUpdate(taskStore))
}

func handleSendMessage(router *routing.Service) rpc.ToolHandler {
	type args struct {
		TeamName  string `json:"team_name"`
		Sender    string `json:"sender"`
		Recipient string `json:"recipient"`
		Content   string `json:"content"`
		Summary   string `json:"summary"`
	}
	return func(_ context.Context, raw json.RawMessage) (*rpc.ToolCallResult, error) {
		var a args
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, err
		}
		if err := router.Send(a.TeamName, a.Sender, a.Recipient, a.Content, a.Summary); err != nil {
			return rpc.WrapToolError(err), nil
		}
		return rpc.SuccessResult("Message sent to " + a.Recipient), nil
	}
}

func handleTaskCreate(store *tasks.Store) rpc.ToolHandler {
	type args struct {
		TeamName    string         `json:"team_name"`
		Subject     string         `json:"subject"`
		Description string         `json:"description"`
		ActiveForm  string         `json:"active_form"`
		Metadata    map[string]any `json:"metadata"`
	}
	return func(_ context.Context, raw json.RawMessage) (*rpc.ToolCallResult, error) {
		var a args
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, err
		}
		task, err := store.Create(a.TeamName, a.Subject, a.Description, a.ActiveForm, a.Metadata)
		if err != nil {
			return rpc.WrapToolError(err), nil
		}
		return structuredTextResult(map[string]any{"id": task.ID, "status": task.Status})
	}
}

func handleTaskList(store *tasks.Store) rpc.ToolHandler {
	type args struct {
		TeamName string `json:"team_name"`
	}
	return func(_ context.Context, raw json.RawMessage) (*rpc.ToolCallResult, error) {
		var a args
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, err
		}
		list, err := store.List(a.TeamName)
		if err != nil {
			return rpc.WrapToolError(err), nil
		}
		return structuredTextResult(list)
	}
}

func handleTaskGet(store *tasks.Store) rpc.ToolHandler {
	type args struct {
		TeamName string `json:"team_name"`
		TaskID   string `json:"task_id"`
	}
	return func(_ context.Context, raw json.RawMessage) (*rpc.ToolCallResult, error) {
		var a args
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, err
		}
		task, err := store.Get(a.TeamName, a.TaskID)
		if err != nil {
			return rpc.WrapToolError(err), nil
		}
		return structuredTextResult(task)
	}
}

func handleTaskUpdate(store *tasks.Store) rpc.ToolHandler {
	type args struct {
		TeamName     string         `json:"team_name"`
		TaskID       string         `json:"task_id"`
		Status       *string        `json:"status"`
		Owner        *string        `json:"owner"`
		Subject      *string        `json:"subject"`
		Description  *string        `json:"description"`
		ActiveForm   *string        `json:"active_form"`
		AddBlocks    []string       `json:"add_blocks"`
		AddBlockedBy []string       `json:"add_blocked_by"`
		Metadata     map[string]any `json:"metadata"`
	}
	return func(_ context.Context, raw json.RawMessage) (*rpc.ToolCallResult, error) {
		var a args
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, err
		}
		opts := tasks.UpdateOpts{
			Owner:        a.Owner,
			Subject:      a.Subject,
			Description:  a.Description,
			ActiveForm:   a.ActiveForm,
			AddBlocks:    a.AddBlocks,
			AddBlockedBy: a.AddBlockedBy,
			Metadata:     a.Metadata,
		}
		if a.Status != nil {
			status := tasks.Status(*a.Status)
			opts.Status = &status
		}
		task, err := store.Update(a.TeamName, a.TaskID, opts)
		if err != nil {
			return rpc.WrapToolError(err), nil
		}
		return structuredTextResult(map[string]any{"id": task.ID, "status": task.Status})
	}
}

func structuredTextResult(v any) (*rpc.ToolCallResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return rpc.SuccessResult(string(data)), nil
}
