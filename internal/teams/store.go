package teams

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/relayfleet/relayfleet/internal/lockfile"
	"github.com/relayfleet/relayfleet/internal/log"
	"github.com/relayfleet/relayfleet/internal/paths"
)

const maxNameLength = 64

var validNameRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidateName checks that name is filesystem-safe and not the
// reserved team-lead name. Shared between team names and teammate
// names since both become path segments under the storage root.
func ValidateName(name string) error {
	if name == "" || !validNameRe.MatchString(name) {
		return ErrInvalidName
	}
	if len(name) > maxNameLength {
		return ErrNameTooLong
	}
	if name == LeadAgentName {
		return ErrReservedName
	}
	return nil
}

// Store implements team registry operations against one config.json
// per team, mutated under the team's config lock.
type Store struct {
	Root string
}

// New returns a Store rooted at root.
func New(root string) *Store {
	return &Store{Root: root}
}

// Exists reports whether team has a config file.
func (s *Store) Exists(team string) bool {
	return paths.TeamExists(s.Root, team)
}

// Create registers a new team, seeding its roster with a Lead member
// named team-lead. leadAgentType/leadModel/leadCwd describe the
// calling session and are stored on the Lead member. LeadSessionID is
// a freshly generated opaque id, not supplied by the caller.
func (s *Store) Create(name, description, leadAgentType, leadModel, leadCwd string) (Team, error) {
	if err := ValidateName(name); err != nil {
		return Team{}, err
	}
	if s.Exists(name) {
		return Team{}, ErrTeamExists
	}

	lk, err := lockfile.Acquire(paths.TeamLockPath(s.Root, name))
	if err != nil {
		return Team{}, err
	}
	defer func() { _ = lk.Close() }()

	if s.Exists(name) {
		return Team{}, ErrTeamExists
	}

	now := time.Now().UnixMilli()
	leadAgentID := LeadAgentName + "@" + name
	team := Team{
		Name:          name,
		Description:   description,
		CreatedAt:     now,
		LeadAgentID:   leadAgentID,
		LeadSessionID: uuid.NewString(),
		Members: []Member{
			Lead{
				AgentID:       leadAgentID,
				Name:          LeadAgentName,
				AgentType:     leadAgentType,
				Model:         leadModel,
				JoinedAt:      now,
				Cwd:           leadCwd,
				Subscriptions: []string{},
			},
		},
	}
	if err := writeTeam(paths.TeamConfigPath(s.Root, name), team); err != nil {
		return Team{}, err
	}
	log.Debug(log.CatTeam, "created team", "team", name)
	return team, nil
}

// Delete removes a team's config and task directory. Fails if any
// teammate in the roster is still marked active.
func (s *Store) Delete(team string) error {
	lk, err := lockfile.Acquire(paths.TeamLockPath(s.Root, team))
	if err != nil {
		return err
	}
	defer func() { _ = lk.Close() }()

	cfg, err := readTeam(paths.TeamConfigPath(s.Root, team))
	if os.IsNotExist(err) {
		return ErrTeamNotFound
	} else if err != nil {
		return err
	}
	for _, tm := range cfg.Teammates() {
		if tm.IsActive {
			return fmt.Errorf("%w: %s", ErrTeammatesActive, tm.Name)
		}
	}

	if err := os.RemoveAll(paths.TeamDir(s.Root, team)); err != nil {
		return err
	}
	if err := os.RemoveAll(paths.TaskTeamDir(s.Root, team)); err != nil {
		return err
	}
	log.Debug(log.CatTeam, "deleted team", "team", team)
	return nil
}

// ListNames returns every team name with a config file under the
// storage root, in directory order. Used by the CLI and dashboard to
// enumerate teams without knowing their names in advance.
func (s *Store) ListNames() ([]string, error) {
	entries, err := os.ReadDir(paths.TeamsDir(s.Root))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if _, err := os.Stat(paths.TeamConfigPath(s.Root, e.Name())); err == nil {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// Read returns the current config for team.
func (s *Store) Read(team string) (Team, error) {
	cfg, err := readTeam(paths.TeamConfigPath(s.Root, team))
	if os.IsNotExist(err) {
		return Team{}, ErrTeamNotFound
	}
	return cfg, err
}

// NextColor returns the palette color for the next teammate to join
// team, cycling based on the current teammate count.
func (s *Store) NextColor(team string) (string, error) {
	cfg, err := s.Read(team)
	if err != nil {
		return "", err
	}
	return ColorPalette[len(cfg.Teammates())%len(ColorPalette)], nil
}

// AddMember appends member to team's roster under the team lock,
// rejecting a duplicate name.
func (s *Store) AddMember(team string, member Member) error {
	lk, err := lockfile.Acquire(paths.TeamLockPath(s.Root, team))
	if err != nil {
		return err
	}
	defer func() { _ = lk.Close() }()

	path := paths.TeamConfigPath(s.Root, team)
	cfg, err := readTeam(path)
	if os.IsNotExist(err) {
		return ErrTeamNotFound
	} else if err != nil {
		return err
	}
	if _, ok := cfg.Member(member.MemberName()); ok {
		return fmt.Errorf("%w: %s", ErrMemberExists, member.MemberName())
	}
	cfg.Members = append(cfg.Members, member)
	if err := writeTeam(path, cfg); err != nil {
		return err
	}
	log.Debug(log.CatTeam, "added member", "team", team, "member", member.MemberName())
	return nil
}

// RemoveMember removes the member named name from team's roster under
// the team lock. Removing team-lead is never allowed.
func (s *Store) RemoveMember(team, name string) error {
	if name == LeadAgentName {
		return ErrCannotRemoveLead
	}

	lk, err := lockfile.Acquire(paths.TeamLockPath(s.Root, team))
	if err != nil {
		return err
	}
	defer func() { _ = lk.Close() }()

	path := paths.TeamConfigPath(s.Root, team)
	cfg, err := readTeam(path)
	if os.IsNotExist(err) {
		return ErrTeamNotFound
	} else if err != nil {
		return err
	}
	kept := make([]Member, 0, len(cfg.Members))
	found := false
	for _, m := range cfg.Members {
		if m.MemberName() == name {
			found = true
			continue
		}
		kept = append(kept, m)
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrMemberNotFound, name)
	}
	cfg.Members = kept
	if err := writeTeam(path, cfg); err != nil {
		return err
	}
	log.Debug(log.CatTeam, "removed member", "team", team, "member", name)
	return nil
}

// SetMemberActive updates the isActive flag on a teammate, used by the
// spawner to reflect subprocess lifecycle in the config a dashboard or
// tool call reads.
func (s *Store) SetMemberActive(team, name string, active bool) error {
	lk, err := lockfile.Acquire(paths.TeamLockPath(s.Root, team))
	if err != nil {
		return err
	}
	defer func() { _ = lk.Close() }()

	path := paths.TeamConfigPath(s.Root, team)
	cfg, err := readTeam(path)
	if os.IsNotExist(err) {
		return ErrTeamNotFound
	} else if err != nil {
		return err
	}
	changed := false
	for i, m := range cfg.Members {
		tm, ok := m.(Teammate)
		if !ok || tm.Name != name {
			continue
		}
		tm.IsActive = active
		cfg.Members[i] = tm
		changed = true
		break
	}
	if !changed {
		return fmt.Errorf("%w: %s", ErrMemberNotFound, name)
	}
	return writeTeam(path, cfg)
}

// SetMemberPane updates the tmuxPaneId recorded for a teammate once
// its pane is known.
func (s *Store) SetMemberPane(team, name, paneID string) error {
	lk, err := lockfile.Acquire(paths.TeamLockPath(s.Root, team))
	if err != nil {
		return err
	}
	defer func() { _ = lk.Close() }()

	path := paths.TeamConfigPath(s.Root, team)
	cfg, err := readTeam(path)
	if os.IsNotExist(err) {
		return ErrTeamNotFound
	} else if err != nil {
		return err
	}
	changed := false
	for i, m := range cfg.Members {
		tm, ok := m.(Teammate)
		if !ok || tm.Name != name {
			continue
		}
		tm.TmuxPaneID = paneID
		cfg.Members[i] = tm
		changed = true
		break
	}
	if !changed {
		return fmt.Errorf("%w: %s", ErrMemberNotFound, name)
	}
	return writeTeam(path, cfg)
}

func readTeam(path string) (Team, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Team{}, err
	}
	var t Team
	if err := json.Unmarshal(data, &t); err != nil {
		return Team{}, err
	}
	return t, nil
}

func writeTeam(path string, team Team) error {
	data, err := json.Marshal(team)
	if err != nil {
		return err
	}
	return paths.WriteFileAtomic(path, data, 0o644)
}
