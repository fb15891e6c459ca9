package watcher

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/relayfleet/relayfleet/internal/messaging"
)

// fakeInjector records every InjectBatch call and replays a queue of
// canned delivery counts, one per call, so tests can script a failed
// delivery followed by a successful retry without a real tmux binary.
type fakeInjector struct {
	mu      sync.Mutex
	results []int
	batches [][]messaging.Message
}

func (f *fakeInjector) InjectBatch(_ context.Context, _ string, msgs []messaging.Message) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, msgs)
	if len(f.results) == 0 {
		return len(msgs)
	}
	n := f.results[0]
	f.results = f.results[1:]
	return n
}

func (f *fakeInjector) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.batches)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	require.FailNow(t, "condition not met within timeout")
}

func TestPollOnce_DeliversAndMarksExactlyTheInjectedPrefix(t *testing.T) {
	root := t.TempDir()
	messages := messaging.New(root)
	require.NoError(t, messages.Append("t", "worker", messaging.New("team-lead", "hello")))

	inj := &fakeInjector{}
	_, err := pollOnce(context.Background(), messages, inj, "t", "worker", "%7", time.Time{})
	require.NoError(t, err)

	require.Len(t, inj.batches, 1)
	require.Equal(t, "hello", inj.batches[0][0].Text)

	unread, err := messages.Read("t", "worker", true, false)
	require.NoError(t, err)
	require.Empty(t, unread, "the delivered message must be marked read after a successful injection")
}

func TestPollOnce_FailedInjectionLeavesMessageUnread(t *testing.T) {
	root := t.TempDir()
	messages := messaging.New(root)
	require.NoError(t, messages.Append("t", "worker", messaging.New("team-lead", "hello")))

	inj := &fakeInjector{results: []int{0}}
	_, err := pollOnce(context.Background(), messages, inj, "t", "worker", "%7", time.Time{})
	require.NoError(t, err)

	unread, err := messages.Read("t", "worker", true, false)
	require.NoError(t, err)
	require.Len(t, unread, 1, "a failed injection must leave the message unread for retry")
}

func TestPollOnce_NoInboxIsANoop(t *testing.T) {
	root := t.TempDir()
	messages := messaging.New(root)
	inj := &fakeInjector{}

	mtime, err := pollOnce(context.Background(), messages, inj, "ghost", "nobody", "%7", time.Time{})
	require.NoError(t, err)
	require.True(t, mtime.IsZero())
	require.Zero(t, inj.callCount())
}

func TestRunLoop_RetriesAfterInjectionFailureThenDelivers(t *testing.T) {
	root := t.TempDir()
	messages := messaging.New(root)
	require.NoError(t, messages.Append("t", "worker", messaging.New("team-lead", "hello")))

	// First poll's injection fails; the second poll (after the retry
	// interval) must see the same still-unread message and succeed.
	inj := &fakeInjector{results: []int{0, 1}}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		runLoop(ctx, messages, inj, 5*time.Millisecond, "t", "worker", "%7")
	}()

	waitFor(t, time.Second, func() bool { return inj.callCount() >= 2 })
	cancel()
	<-done

	unread, err := messages.Read("t", "worker", true, false)
	require.NoError(t, err)
	require.Empty(t, unread)
	require.Equal(t, "hello", inj.batches[1][0].Text, "the retry must redeliver the same still-unread message")
}

func TestPool_StartWatcherReplacesExistingWatcher(t *testing.T) {
	root := t.TempDir()
	messages := messaging.New(root)
	inj := &fakeInjector{}
	pool := NewPool(messages, inj, time.Hour)

	pool.StartWatcher("t", "worker", "%1")
	require.True(t, pool.IsWatching("t", "worker"))

	pool.StartWatcher("t", "worker", "%2")
	require.True(t, pool.IsWatching("t", "worker"), "replacing a watcher must leave exactly one live loop for the key")

	require.Equal(t, 1, pool.StopAll())
}

func TestPool_StopWatcherReturnsFalseWhenNotWatching(t *testing.T) {
	root := t.TempDir()
	pool := NewPool(messaging.New(root), &fakeInjector{}, time.Hour)
	require.False(t, pool.StopWatcher("t", "ghost"))
}

func TestPool_StopAllCancelsEveryWatcher(t *testing.T) {
	root := t.TempDir()
	pool := NewPool(messaging.New(root), &fakeInjector{}, time.Hour)

	pool.StartWatcher("t", "a", "%1")
	pool.StartWatcher("t", "b", "%2")
	require.Equal(t, 2, pool.StopAll())
	require.False(t, pool.IsWatching("t", "a"))
	require.False(t, pool.IsWatching("t", "b"))
}
