// Package teams implements the team registry: one JSON config file per
// team holding its lead and teammate members, mutated under the team's
// config lock. Members are a tagged union — on the wire, a teammate is
// distinguished from the lead solely by the presence of a "prompt"
// field, matching the discriminator used by the system this module
// interoperates with.
package teams

import "encoding/json"

// ColorPalette is cycled through when assigning colors to new
// teammates, in order, wrapping once exhausted.
var ColorPalette = []string{"blue", "green", "yellow", "purple", "orange", "pink", "cyan", "red"}

// LeadAgentName is the reserved name of the team-lead member, present
// in every team from creation and never removable.
const LeadAgentName = "team-lead"

// Member is implemented by Lead and Teammate, the two member kinds a
// Team can hold.
type Member interface {
	MemberAgentID() string
	MemberName() string
}

// Lead is the team's originating member: the session that called
// Create, never spawned or shut down through the spawner.
type Lead struct {
	AgentID       string   `json:"agentId"`
	Name          string   `json:"name"`
	AgentType     string   `json:"agentType"`
	Model         string   `json:"model"`
	JoinedAt      int64    `json:"joinedAt"`
	TmuxPaneID    string   `json:"tmuxPaneId"`
	Cwd           string   `json:"cwd"`
	Subscriptions []string `json:"subscriptions"`
}

func (l Lead) MemberAgentID() string { return l.AgentID }
func (l Lead) MemberName() string    { return l.Name }

// Teammate is an external agent registered into the team, either
// driven entirely through a tmux pane (backendType "external") or
// spawned as a subprocess the registrar tracks.
type Teammate struct {
	AgentID          string   `json:"agentId"`
	Name             string   `json:"name"`
	AgentType        string   `json:"agentType"`
	Model            string   `json:"model,omitempty"`
	Prompt           string   `json:"prompt"`
	Color            string   `json:"color"`
	PlanModeRequired bool     `json:"planModeRequired"`
	JoinedAt         int64    `json:"joinedAt"`
	TmuxPaneID       string   `json:"tmuxPaneId"`
	Cwd              string   `json:"cwd"`
	Subscriptions    []string `json:"subscriptions"`
	BackendType      string   `json:"backendType"`
	IsActive         bool     `json:"isActive"`
}

func (t Teammate) MemberAgentID() string { return t.AgentID }
func (t Teammate) MemberName() string    { return t.Name }

// Team is the full config for one team: its identity plus its member
// roster. Members marshals/unmarshals as a tagged union keyed on
// whether "prompt" is present in the wire object.
type Team struct {
	Name          string `json:"name"`
	Description   string `json:"description"`
	CreatedAt     int64  `json:"createdAt"`
	LeadAgentID   string `json:"leadAgentId"`
	LeadSessionID string `json:"leadSessionId"`
	Members       []Member
}

type teamWire struct {
	Name          string            `json:"name"`
	Description   string            `json:"description"`
	CreatedAt     int64             `json:"createdAt"`
	LeadAgentID   string            `json:"leadAgentId"`
	LeadSessionID string            `json:"leadSessionId"`
	Members       []json.RawMessage `json:"members"`
}

func (t Team) MarshalJSON() ([]byte, error) {
	wire := teamWire{
		Name:          t.Name,
		Description:   t.Description,
		CreatedAt:     t.CreatedAt,
		LeadAgentID:   t.LeadAgentID,
		LeadSessionID: t.LeadSessionID,
		Members:       make([]json.RawMessage, 0, len(t.Members)),
	}
	for _, m := range t.Members {
		data, err := json.Marshal(m)
		if err != nil {
			return nil, err
		}
		wire.Members = append(wire.Members, data)
	}
	return json.Marshal(wire)
}

func (t *Team) UnmarshalJSON(data []byte) error {
	var wire teamWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	t.Name = wire.Name
	t.Description = wire.Description
	t.CreatedAt = wire.CreatedAt
	t.LeadAgentID = wire.LeadAgentID
	t.LeadSessionID = wire.LeadSessionID
	t.Members = make([]Member, 0, len(wire.Members))
	for _, raw := range wire.Members {
		m, err := decodeMember(raw)
		if err != nil {
			return err
		}
		t.Members = append(t.Members, m)
	}
	return nil
}

// decodeMember discriminates on the presence of a "prompt" key, not
// its value: an empty-string prompt is still a teammate.
func decodeMember(raw json.RawMessage) (Member, error) {
	var probe struct {
		Prompt *string `json:"prompt"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return nil, err
	}
	if probe.Prompt != nil {
		var tm Teammate
		if err := json.Unmarshal(raw, &tm); err != nil {
			return nil, err
		}
		return tm, nil
	}
	var lm Lead
	if err := json.Unmarshal(raw, &lm); err != nil {
		return nil, err
	}
	return lm, nil
}

// Teammates returns the subset of Members that are Teammate, in
// roster order.
func (t Team) Teammates() []Teammate {
	out := make([]Teammate, 0, len(t.Members))
	for _, m := range t.Members {
		if tm, ok := m.(Teammate); ok {
			out = append(out, tm)
		}
	}
	return out
}

// Member looks up a member by name, returning ok=false if absent.
func (t Team) Member(name string) (Member, bool) {
	for _, m := range t.Members {
		if m.MemberName() == name {
			return m, true
		}
	}
	return nil, false
}
