package tasks

import (
	"os"
	"testing"

	"pgregory.net/rapid"

	"github.com/stretchr/testify/require"

	"github.com/relayfleet/relayfleet/internal/paths"
)

// TestGraph_BlocksAndBlockedByStaySymmetric checks, across randomized
// sequences of task creation and edge additions, that every accepted
// "A blocked_by B" edge has a matching "B blocks A" edge and that no
// accepted edge set ever contains a cycle.
func TestGraph_BlocksAndBlockedByStaySymmetric(t *testing.T) {
	base := t.TempDir()
	rapid.Check(t, func(t *rapid.T) {
		root, err := os.MkdirTemp(base, "case-")
		if err != nil {
			t.Fatal(err)
		}
		require.NoError(t, paths.WriteFileAtomic(paths.TeamConfigPath(root, "alpha"), []byte(`{}`), 0o644))
		s := New(root)

		n := rapid.IntRange(2, 8).Draw(t, "n")
		ids := make([]string, 0, n)
		for i := 0; i < n; i++ {
			task, err := s.Create("alpha", "task", "", "", nil)
			require.NoError(t, err)
			ids = append(ids, task.ID)
		}

		steps := rapid.IntRange(0, 12).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			from := ids[rapid.IntRange(0, n-1).Draw(t, "from")]
			to := ids[rapid.IntRange(0, n-1).Draw(t, "to")]
			if from == to {
				continue
			}
			// Errors (self-reference, cycle) are expected and fine; the
			// invariant only needs to hold for edges that are accepted.
			_, _ = s.Update("alpha", from, UpdateOpts{AddBlockedBy: []string{to}})
		}

		all := make(map[string]Task, n)
		for _, id := range ids {
			task, err := s.Get("alpha", id)
			require.NoError(t, err)
			all[id] = task
		}

		for id, task := range all {
			for _, dep := range task.BlockedBy {
				require.Contains(t, all[dep].Blocks, id,
					"%s lists %s as blocked_by, so %s must list %s back in blocks", id, dep, dep, id)
			}
			for _, blocked := range task.Blocks {
				require.Contains(t, all[blocked].BlockedBy, id,
					"%s lists %s as blocks, so %s must list %s back in blocked_by", id, blocked, blocked, id)
			}
		}

		require.False(t, hasCycle(all), "accepted edges must never form a cycle")
	})
}

// hasCycle runs a plain DFS over blocked_by edges, independent of the
// store's own BFS cycle check, as a second opinion on the same graph.
func hasCycle(all map[string]Task) bool {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(all))
	var visit func(id string) bool
	visit = func(id string) bool {
		color[id] = gray
		for _, dep := range all[id].BlockedBy {
			switch color[dep] {
			case gray:
				return true
			case white:
				if visit(dep) {
					return true
				}
			}
		}
		color[id] = black
		return false
	}
	for id := range all {
		if color[id] == white {
			if visit(id) {
				return true
			}
		}
	}
	return false
}
