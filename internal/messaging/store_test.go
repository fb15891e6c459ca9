package messaging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/relayfleet/relayfleet/internal/paths"
)

func TestEnsure_IdempotentAndCreatesEmptySequence(t *testing.T) {
	root := t.TempDir()
	s := New(root)

	path, err := s.Ensure("alpha", "lead")
	require.NoError(t, err)
	require.Equal(t, paths.InboxPath(root, "alpha", "lead"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.JSONEq(t, "[]", string(data))

	// Appending, then re-Ensure, must not truncate existing content.
	require.NoError(t, s.Append("alpha", "lead", New("dev", "hi")))
	_, err = s.Ensure("alpha", "lead")
	require.NoError(t, err)

	msgs, err := s.Read("alpha", "lead", false, false)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
}

func TestAppend_PreservesOrder(t *testing.T) {
	root := t.TempDir()
	s := New(root)

	require.NoError(t, s.Append("alpha", "lead", New("dev-1", "first")))
	require.NoError(t, s.Append("alpha", "lead", New("dev-2", "second")))
	require.NoError(t, s.Append("alpha", "lead", New("dev-1", "third")))

	msgs, err := s.Read("alpha", "lead", false, false)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	require.Equal(t, "first", msgs[0].Text)
	require.Equal(t, "second", msgs[1].Text)
	require.Equal(t, "third", msgs[2].Text)
}

func TestRead_UnreadOnlyFiltersReadMessages(t *testing.T) {
	root := t.TempDir()
	s := New(root)

	require.NoError(t, s.Append("alpha", "lead", New("dev-1", "a")))
	require.NoError(t, s.Append("alpha", "lead", New("dev-1", "b")))

	// limit=1 selects the newest message ("b") and marks it read; then
	// verify unreadOnly skips it.
	_, err := s.ReadFiltered("alpha", "lead", "", false, true, 1)
	require.NoError(t, err)

	unread, err := s.Read("alpha", "lead", true, false)
	require.NoError(t, err)
	require.Len(t, unread, 1)
	require.Equal(t, "a", unread[0].Text)
}

func TestReadFiltered_MarksExactlyTheReturnedMessages(t *testing.T) {
	root := t.TempDir()
	s := New(root)

	require.NoError(t, s.Append("alpha", "lead", New("dev-1", "dup")))
	require.NoError(t, s.Append("alpha", "lead", New("dev-2", "other")))
	require.NoError(t, s.Append("alpha", "lead", New("dev-1", "dup")))

	result, err := s.ReadFiltered("alpha", "lead", "dev-1", true, true, 1)
	require.NoError(t, err)
	require.Len(t, result, 1)
	require.Equal(t, "dup", result[0].Text)

	all, err := s.Read("alpha", "lead", false, false)
	require.NoError(t, err)
	require.True(t, all[2].Read, "the newest matching message (index 2) must be the one marked")
	require.False(t, all[0].Read, "the earlier identical-content message must be untouched")
	require.False(t, all[1].Read)
}

func TestReadFiltered_SenderFilterAndLimit(t *testing.T) {
	root := t.TempDir()
	s := New(root)

	require.NoError(t, s.Append("alpha", "lead", New("dev-1", "1")))
	require.NoError(t, s.Append("alpha", "lead", New("dev-2", "2")))
	require.NoError(t, s.Append("alpha", "lead", New("dev-1", "3")))
	require.NoError(t, s.Append("alpha", "lead", New("dev-1", "4")))

	result, err := s.ReadFiltered("alpha", "lead", "dev-1", false, false, 2)
	require.NoError(t, err)
	require.Len(t, result, 2)
	require.Equal(t, "3", result[0].Text)
	require.Equal(t, "4", result[1].Text)
}

func TestReadFiltered_NoMatchesLeavesFileUnchanged(t *testing.T) {
	root := t.TempDir()
	s := New(root)

	require.NoError(t, s.Append("alpha", "lead", New("dev-1", "a")))
	path := paths.InboxPath(root, "alpha", "lead")
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	result, err := s.ReadFiltered("alpha", "lead", "nobody", true, true, 0)
	require.NoError(t, err)
	require.Empty(t, result)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, before, after)
}

func TestMarkFirstNUnread(t *testing.T) {
	root := t.TempDir()
	s := New(root)

	require.NoError(t, s.Append("alpha", "lead", New("dev-1", "a")))
	require.NoError(t, s.Append("alpha", "lead", New("dev-1", "b")))
	require.NoError(t, s.Append("alpha", "lead", New("dev-1", "c")))

	require.NoError(t, s.MarkFirstNUnread("alpha", "lead", 2))

	all, err := s.Read("alpha", "lead", false, false)
	require.NoError(t, err)
	require.True(t, all[0].Read)
	require.True(t, all[1].Read)
	require.False(t, all[2].Read)
}

func TestMarkFirstNUnread_ZeroAndMissingInboxAreNoops(t *testing.T) {
	root := t.TempDir()
	s := New(root)

	require.NoError(t, s.MarkFirstNUnread("alpha", "lead", 0))
	require.NoError(t, s.MarkFirstNUnread("ghost-team", "nobody", 5))

	_, err := os.Stat(paths.InboxPath(root, "ghost-team", "nobody"))
	require.True(t, os.IsNotExist(err))
}

func TestAppend_ConcurrentWritersDoNotLoseMessages(t *testing.T) {
	root := t.TempDir()
	s := New(root)

	const n = 25
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			require.NoError(t, s.Append("alpha", "lead", New("dev", "msg")))
		}(i)
	}
	wg.Wait()

	msgs, err := s.Read("alpha", "lead", false, false)
	require.NoError(t, err)
	require.Len(t, msgs, n)
}

func TestWriteMessages_RoundTripsViaAtomicFile(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "inbox.json")

	msgs := []Message{New("dev-1", "hello").WithSummary("hi").WithColor("cyan")}
	require.NoError(t, writeMessages(path, msgs))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var out []Message
	require.NoError(t, json.Unmarshal(data, &out))
	require.Len(t, out, 1)
	require.Equal(t, "hi", *out[0].Summary)
	require.Equal(t, "cyan", *out[0].Color)
}
