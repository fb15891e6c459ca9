package pane

import (
	"context"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/relayfleet/relayfleet/internal/messaging"
)

// fakeCall records one invocation of the command factory seam, in the
// shape a real tmux call would take (argv, not env/cwd).
type fakeCall struct {
	name string
	args []string
}

// newRecordingFactory returns a CommandFactoryFunc that records every
// invocation into calls and resolves each with ok (an exit-0 `true` or
// exit-1 `false`), so tests exercise Bridge's chunking/sequencing logic
// without needing a real tmux binary.
func newRecordingFactory(calls *[]fakeCall, ok bool) CommandFactoryFunc {
	return func(ctx context.Context, name string, args ...string) *exec.Cmd {
		*calls = append(*calls, fakeCall{name: name, args: args})
		bin := "true"
		if !ok {
			bin = "false"
		}
		return exec.CommandContext(ctx, bin)
	}
}

func literalChunks(calls []fakeCall) []string {
	var out []string
	for _, c := range calls {
		if len(c.args) >= 2 && c.args[len(c.args)-2] == "-l" {
			out = append(out, c.args[len(c.args)-1])
		}
	}
	return out
}

func TestInject_RendersAndSendsSeparateEnter(t *testing.T) {
	var calls []fakeCall
	b := New(1024, 0, 0).WithCommandFactory(newRecordingFactory(&calls, true))

	msg := messaging.New("team-lead", "hello")
	ok := b.Inject(context.Background(), "%7", msg)
	require.True(t, ok)

	require.Len(t, calls, 2)
	require.Equal(t, []string{"send-keys", "-t", "%7", "-l", "[Message from team-lead]: hello"}, calls[0].args)
	require.Equal(t, []string{"send-keys", "-t", "%7", "Enter"}, calls[1].args)
}

func TestInject_ChunksAtExactly1024Bytes(t *testing.T) {
	var calls []fakeCall
	b := New(1024, 0, 0).WithCommandFactory(newRecordingFactory(&calls, true))

	prefix := "[Message from a]: "
	text := strings.Repeat("x", 1024-len(prefix))
	msg := messaging.New("a", text)

	ok := b.Inject(context.Background(), "%1", msg)
	require.True(t, ok)

	chunks := literalChunks(calls)
	require.Len(t, chunks, 1, "exactly 1024 rendered bytes must fit in one chunk")
	require.Len(t, chunks[0], 1024)
}

func TestInject_ChunksAt1025BytesSplitsInTwo(t *testing.T) {
	var calls []fakeCall
	b := New(1024, 0, 0).WithCommandFactory(newRecordingFactory(&calls, true))

	prefix := "[Message from a]: "
	text := strings.Repeat("x", 1025-len(prefix))
	msg := messaging.New("a", text)

	ok := b.Inject(context.Background(), "%1", msg)
	require.True(t, ok)

	chunks := literalChunks(calls)
	require.Len(t, chunks, 2, "1025 rendered bytes must split across two chunks")
	require.Len(t, chunks[0], 1024)
	require.Len(t, chunks[1], 1)
}

func TestInject_LongPasteChunksInOrderThenEnter(t *testing.T) {
	var calls []fakeCall
	b := New(1024, time.Millisecond, time.Millisecond).WithCommandFactory(newRecordingFactory(&calls, true))

	prefix := "[Message from a]: "
	text := strings.Repeat("y", 2500-len(prefix))
	msg := messaging.New("a", text)

	ok := b.Inject(context.Background(), "%1", msg)
	require.True(t, ok)

	chunks := literalChunks(calls)
	require.Len(t, chunks, 3)
	require.Len(t, chunks[0], 1024)
	require.Len(t, chunks[1], 1024)
	require.Len(t, chunks[2], 452)

	// The final call in the sequence must be the separate Enter keystroke.
	last := calls[len(calls)-1]
	require.Equal(t, []string{"send-keys", "-t", "%1", "Enter"}, last.args)
}

func TestInject_FailureReturnsFalse(t *testing.T) {
	var calls []fakeCall
	b := New(1024, 0, 0).WithCommandFactory(newRecordingFactory(&calls, false))

	ok := b.Inject(context.Background(), "%7", messaging.New("a", "hi"))
	require.False(t, ok)
}

func TestInjectBatch_StopsAtFirstFailure(t *testing.T) {
	var calls []fakeCall
	attempt := 0
	factory := func(ctx context.Context, name string, args ...string) *exec.Cmd {
		calls = append(calls, fakeCall{name: name, args: args})
		// Fail only the Enter keystroke of the second message's injection
		// (the 4th tmux call overall: literal + Enter for each message).
		attempt++
		if attempt == 4 {
			return exec.CommandContext(ctx, "false")
		}
		return exec.CommandContext(ctx, "true")
	}
	b := New(1024, 0, 0).WithCommandFactory(factory)

	msgs := []messaging.Message{
		messaging.New("a", "one"),
		messaging.New("a", "two"),
		messaging.New("a", "three"),
	}
	n := b.InjectBatch(context.Background(), "%7", msgs)
	require.Equal(t, 1, n, "only the first message's Inject (2 calls) should fully succeed before the failure")
}

func TestInjectBatch_EmptyBatchIssuesNoCalls(t *testing.T) {
	var calls []fakeCall
	b := New(1024, 0, 0).WithCommandFactory(newRecordingFactory(&calls, true))

	n := b.InjectBatch(context.Background(), "%7", nil)
	require.Equal(t, 0, n)
	require.Empty(t, calls)
}

func TestRender_FormatsFromAndText(t *testing.T) {
	got := Render(messaging.New("worker", "status update"))
	require.Equal(t, "[Message from worker]: status update", got)
}
