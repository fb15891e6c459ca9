// Package watcher implements the inbox watcher pool: one cooperative,
// cancellable poll loop per watched (team, agent), detecting new
// unread messages and delivering them into an external agent's pane
// via the pane bridge, committing the read-mark only after confirmed
// delivery.
package watcher

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/relayfleet/relayfleet/internal/log"
	"github.com/relayfleet/relayfleet/internal/messaging"
	"github.com/relayfleet/relayfleet/internal/paths"
)

// Injector delivers a batch of messages into a pane target, returning
// the count successfully delivered before the first failure. Matched
// by *pane.Bridge; an interface here keeps this package test-seamed
// without importing pane's tmux dependency in unit tests.
type Injector interface {
	InjectBatch(ctx context.Context, target string, msgs []messaging.Message) int
}

type key struct {
	team  string
	agent string
}

type handle struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Pool runs one cooperative poll loop per watched (team, agent). The
// map of live loops is process-local only; it is never shared across
// processes (spec.md §5).
type Pool struct {
	mu           sync.Mutex
	watchers     map[key]*handle
	messages     *messaging.Store
	injector     Injector
	pollInterval time.Duration
}

// NewPool returns a Pool that reads from messages and delivers via
// injector, polling every pollInterval (plus, where available, an
// fsnotify-driven early wake).
func NewPool(messages *messaging.Store, injector Injector, pollInterval time.Duration) *Pool {
	return &Pool{
		watchers:     make(map[key]*handle),
		messages:     messages,
		injector:     injector,
		pollInterval: pollInterval,
	}
}

// StartWatcher begins watching (team, agent)'s inbox, delivering
// unread messages into target. Starting a watcher for an
// already-watched key cancels the prior loop first.
func (p *Pool) StartWatcher(team, agent, target string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	k := key{team, agent}
	if existing, ok := p.watchers[k]; ok {
		existing.cancel()
		<-existing.done
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &handle{cancel: cancel, done: make(chan struct{})}
	p.watchers[k] = h

	go func() {
		defer close(h.done)
		runLoop(ctx, p.messages, p.injector, p.pollInterval, team, agent, target)
	}()

	log.Debug(log.CatWatcher, "started watcher", "team", team, "agent", agent, "target", target)
}

// StopWatcher cancels the watcher for (team, agent), blocking until
// its loop exits. Returns false if no watcher was registered.
func (p *Pool) StopWatcher(team, agent string) bool {
	p.mu.Lock()
	k := key{team, agent}
	h, ok := p.watchers[k]
	if ok {
		delete(p.watchers, k)
	}
	p.mu.Unlock()

	if !ok {
		return false
	}
	h.cancel()
	<-h.done
	log.Debug(log.CatWatcher, "stopped watcher", "team", team, "agent", agent)
	return true
}

// IsWatching reports whether (team, agent) currently has a live
// watcher.
func (p *Pool) IsWatching(team, agent string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.watchers[key{team, agent}]
	return ok
}

// StopAll cancels every live watcher and blocks until each has
// exited, returning the count stopped.
func (p *Pool) StopAll() int {
	p.mu.Lock()
	handles := make([]*handle, 0, len(p.watchers))
	for k, h := range p.watchers {
		handles = append(handles, h)
		delete(p.watchers, k)
	}
	p.mu.Unlock()

	for _, h := range handles {
		h.cancel()
		<-h.done
	}
	if len(handles) > 0 {
		log.Debug(log.CatWatcher, "stopped all watchers", "count", len(handles))
	}
	return len(handles)
}

// runLoop is the per-agent poll: it checks the inbox mtime, and on
// advance reads unread messages (without marking), injects them in
// order, and marks exactly the delivered prefix read. Any error in one
// iteration is logged and swallowed; only ctx cancellation ends the
// loop, and it exits at its next suspension point (after the current
// sleep/select), never mid-injection.
func runLoop(ctx context.Context, messages *messaging.Store, injector Injector, pollInterval time.Duration, team, agent, target string) {
	inboxDir := paths.InboxesDir(messages.Root, team)
	fsEvents := watchDirBestEffort(ctx, inboxDir)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	var lastMtime time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-fsEvents:
			// Early-wake optimization only; the ticker still fires
			// independently and correctness never depends on this path.
		}

		next, err := pollOnce(ctx, messages, injector, team, agent, target, lastMtime)
		if err != nil {
			log.Warn(log.CatWatcher, "watcher iteration failed", "team", team, "agent", agent, "error", err.Error())
			continue
		}
		lastMtime = next
	}
}

// pollOnce performs one check-and-deliver cycle, returning the mtime
// observed (unchanged from lastMtime if the inbox wasn't touched or
// doesn't exist, which is a no-op, not an error, and also unchanged
// when part of the batch was not delivered, so it is retried).
func pollOnce(ctx context.Context, messages *messaging.Store, injector Injector, team, agent, target string, lastMtime time.Time) (time.Time, error) {
	path := paths.InboxPath(messages.Root, team, agent)
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return lastMtime, nil
	}
	if err != nil {
		return lastMtime, err
	}
	if !info.ModTime().After(lastMtime) {
		return lastMtime, nil
	}

	batch, err := messages.Read(team, agent, true, false)
	if err != nil {
		return info.ModTime(), err
	}
	if len(batch) == 0 {
		return info.ModTime(), nil
	}

	n := injector.InjectBatch(ctx, target, batch)
	if n > 0 {
		if err := messages.MarkFirstNUnread(team, agent, n); err != nil {
			return info.ModTime(), err
		}
	}
	if n < len(batch) {
		// Undelivered messages stay unread; keep the previous mtime so
		// the next tick reads and retries them.
		return lastMtime, nil
	}
	return info.ModTime(), nil
}

// watchDirBestEffort subscribes dir with fsnotify for an early-wake
// signal, returning a channel that fires (best-effort, never
// guaranteed) on any event. If fsnotify setup fails the returned
// channel simply never fires; the caller's ticker still drives
// correctness.
func watchDirBestEffort(ctx context.Context, dir string) <-chan struct{} {
	out := make(chan struct{}, 1)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return out
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		log.Debug(log.CatWatcher, "fsnotify unavailable, falling back to poll-only", "error", err.Error())
		return out
	}
	if err := fsw.Add(dir); err != nil {
		log.Debug(log.CatWatcher, "fsnotify watch failed, falling back to poll-only", "dir", dir, "error", err.Error())
		_ = fsw.Close()
		return out
	}

	go func() {
		defer fsw.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-fsw.Events:
				if !ok {
					return
				}
				select {
				case out <- struct{}{}:
				default:
				}
			case _, ok := <-fsw.Errors:
				if !ok {
					return
				}
			}
		}
	}()

	return out
}
