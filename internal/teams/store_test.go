package teams

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateName(t *testing.T) {
	require.NoError(t, ValidateName("alpha-team_1"))
	require.ErrorIs(t, ValidateName(""), ErrInvalidName)
	require.ErrorIs(t, ValidateName("bad/../name"), ErrInvalidName)
	require.ErrorIs(t, ValidateName("has space"), ErrInvalidName)
	require.ErrorIs(t, ValidateName(LeadAgentName), ErrReservedName)

	long := make([]byte, 65)
	for i := range long {
		long[i] = 'a'
	}
	require.ErrorIs(t, ValidateName(string(long)), ErrNameTooLong)
}

func TestCreate_SeedsLeadMember(t *testing.T) {
	root := t.TempDir()
	s := New(root)

	team, err := s.Create("alpha", "a test team", "claude", "sonnet", "/work")
	require.NoError(t, err)
	require.Equal(t, "alpha", team.Name)
	require.Equal(t, "team-lead@alpha", team.LeadAgentID)
	require.Len(t, team.Members, 1)

	lead, ok := team.Members[0].(Lead)
	require.True(t, ok)
	require.Equal(t, LeadAgentName, lead.Name)
	require.Equal(t, "/work", lead.Cwd)
}

func TestCreate_RejectsDuplicateAndInvalidName(t *testing.T) {
	root := t.TempDir()
	s := New(root)

	_, err := s.Create("alpha", "", "claude", "", "")
	require.NoError(t, err)

	_, err = s.Create("alpha", "", "claude", "", "")
	require.ErrorIs(t, err, ErrTeamExists)

	_, err = s.Create("team-lead", "", "claude", "", "")
	require.ErrorIs(t, err, ErrReservedName)
}

func TestAddMember_RoundTripsTaggedUnion(t *testing.T) {
	root := t.TempDir()
	s := New(root)
	_, err := s.Create("alpha", "", "claude", "", "")
	require.NoError(t, err)

	teammate := Teammate{
		AgentID:     "dev-1@alpha",
		Name:        "dev-1",
		AgentType:   "general-purpose",
		Prompt:      "build the thing",
		Color:       "blue",
		JoinedAt:    1,
		TmuxPaneID:  "",
		Cwd:         "/work",
		BackendType: "external",
	}
	require.NoError(t, s.AddMember("alpha", teammate))

	cfg, err := s.Read("alpha")
	require.NoError(t, err)
	require.Len(t, cfg.Members, 2)

	member, ok := cfg.Member("dev-1")
	require.True(t, ok)
	tm, ok := member.(Teammate)
	require.True(t, ok, "a member with a prompt field must decode back as Teammate, not Lead")
	require.Equal(t, "build the thing", tm.Prompt)

	leadMember, ok := cfg.Member(LeadAgentName)
	require.True(t, ok)
	_, ok = leadMember.(Lead)
	require.True(t, ok, "the seeded lead member must decode back as Lead, not Teammate")
}

func TestAddMember_RejectsDuplicateNameAndUnknownTeam(t *testing.T) {
	root := t.TempDir()
	s := New(root)
	_, err := s.Create("alpha", "", "claude", "", "")
	require.NoError(t, err)

	tm := Teammate{AgentID: "dev-1@alpha", Name: "dev-1", Prompt: "x", Color: "blue"}
	require.NoError(t, s.AddMember("alpha", tm))
	require.ErrorIs(t, s.AddMember("alpha", tm), ErrMemberExists)
	require.ErrorIs(t, s.AddMember("ghost", tm), ErrTeamNotFound)
}

func TestRemoveMember(t *testing.T) {
	root := t.TempDir()
	s := New(root)
	_, err := s.Create("alpha", "", "claude", "", "")
	require.NoError(t, err)

	tm := Teammate{AgentID: "dev-1@alpha", Name: "dev-1", Prompt: "x", Color: "blue"}
	require.NoError(t, s.AddMember("alpha", tm))

	require.ErrorIs(t, s.RemoveMember("alpha", LeadAgentName), ErrCannotRemoveLead)

	require.NoError(t, s.RemoveMember("alpha", "dev-1"))
	cfg, err := s.Read("alpha")
	require.NoError(t, err)
	_, ok := cfg.Member("dev-1")
	require.False(t, ok)

	require.ErrorIs(t, s.RemoveMember("alpha", "dev-1"), ErrMemberNotFound)
}

func TestNextColor_CyclesByTeammateCount(t *testing.T) {
	root := t.TempDir()
	s := New(root)
	_, err := s.Create("alpha", "", "claude", "", "")
	require.NoError(t, err)

	first, err := s.NextColor("alpha")
	require.NoError(t, err)
	require.Equal(t, ColorPalette[0], first)

	require.NoError(t, s.AddMember("alpha", Teammate{Name: "dev-1", Prompt: "x"}))
	second, err := s.NextColor("alpha")
	require.NoError(t, err)
	require.Equal(t, ColorPalette[1], second)
}

func TestDelete_RejectsActiveTeammatesThenSucceeds(t *testing.T) {
	root := t.TempDir()
	s := New(root)
	_, err := s.Create("alpha", "", "claude", "", "")
	require.NoError(t, err)
	require.NoError(t, s.AddMember("alpha", Teammate{Name: "dev-1", Prompt: "x", IsActive: true}))

	require.ErrorIs(t, s.Delete("alpha"), ErrTeammatesActive)

	require.NoError(t, s.SetMemberActive("alpha", "dev-1", false))
	require.NoError(t, s.Delete("alpha"))
	require.False(t, s.Exists("alpha"))
}

func TestSetMemberPane(t *testing.T) {
	root := t.TempDir()
	s := New(root)
	_, err := s.Create("alpha", "", "claude", "", "")
	require.NoError(t, err)
	require.NoError(t, s.AddMember("alpha", Teammate{Name: "dev-1", Prompt: "x"}))

	require.NoError(t, s.SetMemberPane("alpha", "dev-1", "%3"))
	cfg, err := s.Read("alpha")
	require.NoError(t, err)
	member, _ := cfg.Member("dev-1")
	require.Equal(t, "%3", member.(Teammate).TmuxPaneID)

	require.ErrorIs(t, s.SetMemberPane("alpha", "nobody", "%3"), ErrMemberNotFound)
}

func TestListNames(t *testing.T) {
	root := t.TempDir()
	s := New(root)

	names, err := s.ListNames()
	require.NoError(t, err)
	require.Empty(t, names)

	_, err = s.Create("alpha", "", "claude", "", "")
	require.NoError(t, err)
	_, err = s.Create("beta", "", "claude", "", "")
	require.NoError(t, err)

	names, err = s.ListNames()
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"alpha", "beta"}, names)
}
