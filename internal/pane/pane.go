// Package pane implements the chunked tmux keystroke injector: the
// only mechanism by which an external agent's pane receives a
// message, since external agents cannot read their own inbox files.
package pane

import (
	"context"
	"os/exec"
	"time"

	"github.com/relayfleet/relayfleet/internal/log"
	"github.com/relayfleet/relayfleet/internal/messaging"
)

// CommandFactoryFunc builds the exec.Cmd used to invoke tmux, a test
// seam so Bridge can be exercised without a real tmux binary.
type CommandFactoryFunc func(ctx context.Context, name string, args ...string) *exec.Cmd

func defaultCommandFactory(ctx context.Context, name string, args ...string) *exec.Cmd {
	return exec.CommandContext(ctx, name, args...)
}

// Bridge injects rendered messages into a tmux pane via chunked
// literal send-keys followed by a separate Enter keystroke.
type Bridge struct {
	commandFactory CommandFactoryFunc
	chunkBytes     int
	chunkDelay     time.Duration
	settleDelay    time.Duration
}

// New returns a Bridge that shells out to the real tmux binary, using
// the given chunk size, inter-chunk delay, and pre-Enter settle delay
// (internal/config defaults: 1024 bytes, 200ms, 500ms) so a long paste
// is not treated by the receiving TUI as a rejected paste event.
func New(chunkBytes int, chunkDelay, settleDelay time.Duration) *Bridge {
	return &Bridge{
		commandFactory: defaultCommandFactory,
		chunkBytes:     chunkBytes,
		chunkDelay:     chunkDelay,
		settleDelay:    settleDelay,
	}
}

// WithCommandFactory overrides the command factory, for tests.
func (b *Bridge) WithCommandFactory(f CommandFactoryFunc) *Bridge {
	b.commandFactory = f
	return b
}

// Render formats msg the way the receiving pane expects to see it.
func Render(msg messaging.Message) string {
	return "[Message from " + msg.From + "]: " + msg.Text
}

// Inject sends msg into target, chunking the literal text to stay
// under the multiplexer's paste-event threshold, then submits with a
// separate Enter keystroke. Returns false (and logs) on any failure,
// including a missing tmux binary or a nonzero exit from any step.
func (b *Bridge) Inject(ctx context.Context, target string, msg messaging.Message) bool {
	text := Render(msg)
	if err := b.sendChunked(ctx, target, text); err != nil {
		log.Warn(log.CatPane, "pane injection failed", "target", target, "error", err.Error())
		return false
	}
	time.Sleep(b.settleDelay)
	if err := b.run(ctx, "tmux", "send-keys", "-t", target, "Enter"); err != nil {
		log.Warn(log.CatPane, "pane enter failed", "target", target, "error", err.Error())
		return false
	}
	return true
}

// InjectBatch injects each message into target in order, stopping at
// the first failure. Returns the count of messages successfully
// delivered; any later message in the batch stays unsent.
func (b *Bridge) InjectBatch(ctx context.Context, target string, msgs []messaging.Message) int {
	delivered := 0
	for _, msg := range msgs {
		if !b.Inject(ctx, target, msg) {
			log.Warn(log.CatPane, "stopping batch injection after failure",
				"target", target, "delivered", delivered, "total", len(msgs))
			break
		}
		delivered++
	}
	return delivered
}

func (b *Bridge) sendChunked(ctx context.Context, target, text string) error {
	data := []byte(text)
	for offset := 0; offset < len(data); offset += b.chunkBytes {
		end := offset + b.chunkBytes
		if end > len(data) {
			end = len(data)
		}
		chunk := string(data[offset:end])
		if err := b.run(ctx, "tmux", "send-keys", "-t", target, "-l", chunk); err != nil {
			return err
		}
		if end < len(data) {
			time.Sleep(b.chunkDelay)
		}
	}
	return nil
}

func (b *Bridge) run(ctx context.Context, name string, args ...string) error {
	cmd := b.commandFactory(ctx, name, args...)
	return cmd.Run()
}
