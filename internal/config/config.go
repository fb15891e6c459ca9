// Package config provides configuration types and defaults for
// relayfleet: the storage root, watcher poll interval, pane-injection
// chunking/delay constants, and the backend binary used to spawn
// external teammates.
package config

import (
	"os"
	"os/exec"
	"time"

	"github.com/relayfleet/relayfleet/internal/paths"
)

// UseTmuxWindowsEnvVar, when set to any non-empty value, selects
// tmux windows instead of split panes when spawning teammates.
const UseTmuxWindowsEnvVar = "USE_TMUX_WINDOWS"

// DefaultBackendBinary is the backend CLI looked up on PATH when no
// override is configured.
const DefaultBackendBinary = "codex"

// Config holds the runtime settings shared by the orchestrator and
// external-agent tool surfaces, the watcher pool, and the pane
// bridge. Every field has a sensible default (Defaults) and can be
// overridden by flags/env in cmd/.
type Config struct {
	Root         string        `mapstructure:"root"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	ChunkBytes   int           `mapstructure:"chunk_bytes"`
	ChunkDelay   time.Duration `mapstructure:"chunk_delay"`
	SettleDelay  time.Duration `mapstructure:"settle_delay"`

	// UseTmuxWindows selects `tmux new-window` over `tmux
	// split-window` when spawning a teammate process.
	UseTmuxWindows bool `mapstructure:"use_tmux_windows"`

	// BackendBinary is the external-agent CLI name resolved via
	// os/exec.LookPath at startup.
	BackendBinary string `mapstructure:"backend_binary"`
}

// Defaults returns the configuration used when no flag or
// environment variable overrides a field.
func Defaults() Config {
	return Config{
		Root:           paths.DefaultRoot(),
		PollInterval:   time.Second,
		ChunkBytes:     1024,
		ChunkDelay:     200 * time.Millisecond,
		SettleDelay:    500 * time.Millisecond,
		UseTmuxWindows: os.Getenv(UseTmuxWindowsEnvVar) != "",
		BackendBinary:  DefaultBackendBinary,
	}
}

// ResolveBackendBinary looks up cfg.BackendBinary on PATH, returning
// an error an Environment-kind caller should treat as fatal at
// startup (spec.md §7: "Environment errors at startup ... are fatal
// and prevent the orchestrator from starting").
func (c Config) ResolveBackendBinary() (string, error) {
	return exec.LookPath(c.BackendBinary)
}
