package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/relayfleet/relayfleet/internal/log"
	"github.com/relayfleet/relayfleet/internal/messaging"
	"github.com/relayfleet/relayfleet/internal/mux"
	"github.com/relayfleet/relayfleet/internal/pane"
	"github.com/relayfleet/relayfleet/internal/routing"
	"github.com/relayfleet/relayfleet/internal/rpc"
	"github.com/relayfleet/relayfleet/internal/spawner"
	"github.com/relayfleet/relayfleet/internal/tasks"
	"github.com/relayfleet/relayfleet/internal/teams"
	"github.com/relayfleet/relayfleet/internal/tools"
	"github.com/relayfleet/relayfleet/internal/watcher"
)

var serveRole string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a JSON-RPC tool server on stdio",
	Long: `Serve exposes one of the two tool surfaces named in the spec over a
newline-delimited JSON-RPC stdio transport:

  --role=orchestrator  team lifecycle, spawn/check/shutdown, inbox/config read
  --role=external      send_message and the task_* tools an external agent calls

Both roles share the same on-disk stores rooted at --root / RELAYFLEET_HOME.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveRole, "role", "orchestrator", "tool surface to expose: orchestrator|external")
}

func runServe(_ *cobra.Command, _ []string) error {
	cleanup := initDebugLogging("relayfleet-serve")
	defer cleanup()

	root := cfg.Root
	messages := messaging.New(root)
	taskStore := tasks.New(root)
	teamStore := teams.New(root)

	bridge := pane.New(cfg.ChunkBytes, cfg.ChunkDelay, cfg.SettleDelay)
	resolver := mux.New()
	watchers := watcher.NewPool(messages, bridge, cfg.PollInterval)
	spawn := spawner.New(teamStore, messages, taskStore, watchers, cfg.UseTmuxWindows)
	router := routing.New(teamStore, messages)

	server := rpc.NewServer("relayfleet-"+serveRole, rootCmd.Version)

	switch serveRole {
	case "orchestrator":
		backend, err := cfg.ResolveBackendBinary()
		if err != nil {
			return fmt.Errorf("backend binary %q not found on PATH: %w", cfg.BackendBinary, err)
		}
		tools.RegisterOrchestratorTools(server, tools.OrchestratorDeps{
			Teams:         teamStore,
			Messages:      messages,
			Spawner:       spawn,
			Mux:           resolver,
			Watchers:      watchers,
			BackendBinary: backend,
		})
	case "external":
		tools.RegisterExternalTools(server, router, taskStore)
	default:
		return fmt.Errorf("unknown --role %q: expected orchestrator or external", serveRole)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		log.Info(log.CatRPC, "shutting down", "role", serveRole)
		server.Stop()
		watchers.StopAll()
	}()

	log.Info(log.CatRPC, "serving", "role", serveRole, "root", root)
	if err := server.Serve(os.Stdin, os.Stdout); err != nil && ctx.Err() == nil {
		return fmt.Errorf("serve: %w", err)
	}
	return nil
}
