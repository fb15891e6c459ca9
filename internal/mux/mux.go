// Package mux provides read-only tmux introspection: resolving a
// stored target id (pane or window) to a concrete pane, and sampling
// pane liveness and recent output. It never mutates tmux state.
package mux

import (
	"context"
	"errors"
	"os/exec"
	"strconv"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/relayfleet/relayfleet/internal/log"
)

// ErrNoTarget is returned by Resolve when target is the empty string.
var ErrNoTarget = errors.New("no tmux target recorded")

// CommandFactoryFunc builds the exec.Cmd used to invoke tmux, a test
// seam so Resolver can be exercised without a real tmux binary.
type CommandFactoryFunc func(ctx context.Context, name string, args ...string) *exec.Cmd

func defaultCommandFactory(ctx context.Context, name string, args ...string) *exec.Cmd {
	return exec.CommandContext(ctx, name, args...)
}

// peekCacheTTL is how long a Peek result is cached per pane id, so
// repeated checks of the same pane within the same instant don't each
// shell out to tmux display-message/capture-pane. Peek always still
// calls through on a cache miss.
const peekCacheTTL = 300 * time.Millisecond

// PeekResult is the outcome of probing one pane.
type PeekResult struct {
	Alive  bool
	Output string
	Error  string
}

// Resolver resolves logical tmux targets to concrete pane ids and
// samples pane liveness/output.
type Resolver struct {
	commandFactory CommandFactoryFunc
	peekCache      *gocache.Cache
}

// New returns a Resolver that shells out to the real tmux binary.
func New() *Resolver {
	return &Resolver{
		commandFactory: defaultCommandFactory,
		peekCache:      gocache.New(peekCacheTTL, 2*peekCacheTTL),
	}
}

// WithCommandFactory overrides the command factory, for tests.
func (r *Resolver) WithCommandFactory(f CommandFactoryFunc) *Resolver {
	r.commandFactory = f
	return r
}

// Resolve maps a stored target (pane id "%...", window id "@...", or
// empty) to a concrete pane id.
func (r *Resolver) Resolve(ctx context.Context, target string) (string, error) {
	if target == "" {
		return "", ErrNoTarget
	}
	if strings.HasPrefix(target, "%") {
		return target, nil
	}
	if !strings.HasPrefix(target, "@") {
		return target, nil
	}

	out, err := r.run(ctx, "tmux", "list-panes", "-t", target, "-F", "#{pane_id}\t#{pane_active}")
	if err != nil {
		return "", err
	}
	lines := nonEmptyLines(out)
	if len(lines) == 0 {
		return "", errors.New("no panes found for window")
	}
	for _, line := range lines {
		parts := strings.SplitN(line, "\t", 2)
		if len(parts) == 2 && parts[1] == "1" {
			return parts[0], nil
		}
	}
	return strings.SplitN(lines[0], "\t", 2)[0], nil
}

// Peek probes whether paneID is dead and captures its last nLines
// lines of output. nLines is clamped to [1, 120]. Both steps are
// best-effort; a failure surfaces in Error rather than as a returned
// error.
func (r *Resolver) Peek(ctx context.Context, paneID string, nLines int) PeekResult {
	if nLines < 1 {
		nLines = 1
	}
	if nLines > 120 {
		nLines = 120
	}

	cacheKey := paneID
	if cached, ok := r.peekCache.Get(cacheKey); ok {
		if result, ok := cached.(PeekResult); ok {
			return result
		}
	}

	result := r.peek(ctx, paneID, nLines)
	r.peekCache.Set(cacheKey, result, gocache.DefaultExpiration)
	return result
}

func (r *Resolver) peek(ctx context.Context, paneID string, nLines int) PeekResult {
	statusOut, err := r.run(ctx, "tmux", "display-message", "-p", "-t", paneID, "#{pane_dead}")
	if err != nil {
		return PeekResult{Alive: false, Error: err.Error()}
	}
	alive := strings.TrimSpace(statusOut) != "1"

	captureOut, err := r.run(ctx, "tmux", "capture-pane", "-p", "-t", paneID, "-S", dashN(nLines), "-J")
	if err != nil {
		return PeekResult{Alive: alive, Error: err.Error()}
	}
	return PeekResult{Alive: alive, Output: strings.TrimRight(captureOut, "\n")}
}

func (r *Resolver) run(ctx context.Context, name string, args ...string) (string, error) {
	cmd := r.commandFactory(ctx, name, args...)
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			msg := strings.TrimSpace(string(exitErr.Stderr))
			if msg == "" {
				msg = "tmux command failed"
			}
			log.Debug(log.CatMux, "tmux command failed", "args", args, "error", msg)
			return "", errors.New(msg)
		}
		log.Debug(log.CatMux, "tmux binary not found", "error", err.Error())
		return "", err
	}
	return string(out), nil
}

func dashN(n int) string {
	return "-" + strconv.Itoa(n)
}

func nonEmptyLines(s string) []string {
	raw := strings.Split(strings.TrimSpace(s), "\n")
	out := make([]string, 0, len(raw))
	for _, l := range raw {
		if strings.TrimSpace(l) != "" {
			out = append(out, l)
		}
	}
	return out
}
