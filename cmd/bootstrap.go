package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/relayfleet/relayfleet/internal/messaging"
	"github.com/relayfleet/relayfleet/internal/pane"
	"github.com/relayfleet/relayfleet/internal/spawner"
	"github.com/relayfleet/relayfleet/internal/tasks"
	"github.com/relayfleet/relayfleet/internal/teams"
	"github.com/relayfleet/relayfleet/internal/watcher"
)

// manifest is the shape of a `team bootstrap --file` YAML document: a
// team plus the initial teammates to spawn under it.
type manifest struct {
	Team        string             `yaml:"team"`
	Description string             `yaml:"description"`
	Lead        manifestLead       `yaml:"lead"`
	Teammates   []manifestTeammate `yaml:"teammates"`
}

type manifestLead struct {
	AgentType string `yaml:"agent_type"`
	Model     string `yaml:"model"`
	Cwd       string `yaml:"cwd"`
}

type manifestTeammate struct {
	Name          string `yaml:"name"`
	Prompt        string `yaml:"prompt"`
	AgentType     string `yaml:"agent_type"`
	Cwd           string `yaml:"cwd"`
	BackendBinary string `yaml:"backend_binary"`
}

var bootstrapFile string

var teamBootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Create a team and spawn its initial teammates from a YAML manifest",
	Long: `bootstrap reads a team manifest describing the lead session and a list
of teammates to spawn, then brings the team up in one command:

  team: my-team
  description: refactor the billing module
  lead:
    agent_type: claude
    cwd: /repo
  teammates:
    - name: reviewer
      prompt: review every PR against the style guide
      agent_type: codex
      cwd: /repo`,
	Args: cobra.NoArgs,
	RunE: runTeamBootstrap,
}

func init() {
	teamBootstrapCmd.Flags().StringVar(&bootstrapFile, "file", "", "path to the team manifest YAML file")
	_ = teamBootstrapCmd.MarkFlagRequired("file")
	teamCmd.AddCommand(teamBootstrapCmd)
}

func runTeamBootstrap(cmd *cobra.Command, _ []string) error {
	data, err := os.ReadFile(bootstrapFile)
	if err != nil {
		return fmt.Errorf("reading manifest: %w", err)
	}
	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("parsing manifest: %w", err)
	}
	if m.Team == "" {
		return fmt.Errorf("manifest missing required field: team")
	}

	root := cfg.Root
	teamStore := teams.New(root)
	messages := messaging.New(root)
	taskStore := tasks.New(root)
	bridge := pane.New(cfg.ChunkBytes, cfg.ChunkDelay, cfg.SettleDelay)
	watchers := watcher.NewPool(messages, bridge, cfg.PollInterval)
	spawn := spawner.New(teamStore, messages, taskStore, watchers, cfg.UseTmuxWindows)

	team, err := teamStore.Create(m.Team, m.Description, m.Lead.AgentType, m.Lead.Model, m.Lead.Cwd)
	if err != nil {
		return fmt.Errorf("creating team: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "created team %s\n", team.Name)

	backend := cfg.BackendBinary
	ctx := context.Background()
	for _, tm := range m.Teammates {
		binary := tm.BackendBinary
		if binary == "" {
			binary = backend
		}
		if _, err := spawn.Spawn(ctx, m.Team, tm.Name, tm.Prompt, binary, tm.AgentType, tm.Cwd); err != nil {
			return fmt.Errorf("spawning %s: %w", tm.Name, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "spawned %s\n", tm.Name)
	}
	return nil
}
