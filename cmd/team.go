package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/relayfleet/relayfleet/internal/teams"
)

var teamCmd = &cobra.Command{
	Use:   "team",
	Short: "Manage teams",
}

var (
	teamCreateDescription string
	teamCreateLeadType    string
	teamCreateLeadModel   string
	teamCreateLeadCwd     string
)

var teamCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a team with the calling session as team-lead",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		store := teams.New(cfg.Root)
		team, err := store.Create(args[0], teamCreateDescription, teamCreateLeadType, teamCreateLeadModel, teamCreateLeadCwd)
		if err != nil {
			return err
		}
		return printJSON(team)
	},
}

var teamDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a team (fails if any teammate is still active)",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		store := teams.New(cfg.Root)
		if err := store.Delete(args[0]); err != nil {
			return err
		}
		fmt.Printf("team %s deleted\n", args[0])
		return nil
	},
}

var teamShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show a team's roster and identity",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		store := teams.New(cfg.Root)
		team, err := store.Read(args[0])
		if err != nil {
			return err
		}
		return printJSON(team)
	},
}

var teamListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every team name under the storage root",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		store := teams.New(cfg.Root)
		names, err := store.ListNames()
		if err != nil {
			return err
		}
		for _, name := range names {
			fmt.Println(name)
		}
		return nil
	},
}

func init() {
	teamCreateCmd.Flags().StringVar(&teamCreateDescription, "description", "", "team description")
	teamCreateCmd.Flags().StringVar(&teamCreateLeadType, "lead-agent-type", "", "agent type for the lead session")
	teamCreateCmd.Flags().StringVar(&teamCreateLeadModel, "lead-model", "", "model name for the lead session")
	teamCreateCmd.Flags().StringVar(&teamCreateLeadCwd, "lead-cwd", ".", "working directory for the lead session")

	teamCmd.AddCommand(teamCreateCmd, teamDeleteCmd, teamShowCmd, teamListCmd)
	rootCmd.AddCommand(teamCmd)
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
