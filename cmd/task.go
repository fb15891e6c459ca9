package cmd

import (
	"github.com/spf13/cobra"

	"github.com/relayfleet/relayfleet/internal/tasks"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage a team's task graph",
}

var (
	taskTeamName       string
	taskCreateDesc     string
	taskCreateActive   string
	taskUpdateStatus   string
	taskUpdateOwner    string
	taskUpdateSubject  string
	taskUpdateDesc     string
	taskUpdateActive   string
	taskUpdateBlocks   []string
	taskUpdateBlockers []string
)

var taskCreateCmd = &cobra.Command{
	Use:   "create <subject>",
	Short: "Create a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		store := tasks.New(cfg.Root)
		task, err := store.Create(taskTeamName, args[0], taskCreateDesc, taskCreateActive, nil)
		if err != nil {
			return err
		}
		return printJSON(task)
	},
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a team's tasks, ordered by id",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		store := tasks.New(cfg.Root)
		list, err := store.List(taskTeamName)
		if err != nil {
			return err
		}
		return printJSON(list)
	},
}

var taskGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Get one task by id",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		store := tasks.New(cfg.Root)
		task, err := store.Get(taskTeamName, args[0])
		if err != nil {
			return err
		}
		return printJSON(task)
	},
}

var taskUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update a task's fields; status=deleted removes it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store := tasks.New(cfg.Root)
		opts := tasks.UpdateOpts{
			AddBlocks:    taskUpdateBlocks,
			AddBlockedBy: taskUpdateBlockers,
		}
		if cmd.Flags().Changed("status") {
			status := tasks.Status(taskUpdateStatus)
			opts.Status = &status
		}
		if cmd.Flags().Changed("owner") {
			opts.Owner = &taskUpdateOwner
		}
		if cmd.Flags().Changed("subject") {
			opts.Subject = &taskUpdateSubject
		}
		if cmd.Flags().Changed("description") {
			opts.Description = &taskUpdateDesc
		}
		if cmd.Flags().Changed("active-form") {
			opts.ActiveForm = &taskUpdateActive
		}
		task, err := store.Update(taskTeamName, args[0], opts)
		if err != nil {
			return err
		}
		return printJSON(task)
	},
}

func init() {
	taskCmd.PersistentFlags().StringVar(&taskTeamName, "team", "", "team name")
	_ = taskCmd.MarkPersistentFlagRequired("team")

	taskCreateCmd.Flags().StringVar(&taskCreateDesc, "description", "", "task description")
	taskCreateCmd.Flags().StringVar(&taskCreateActive, "active-form", "", "present-continuous form shown while in progress")

	taskUpdateCmd.Flags().StringVar(&taskUpdateStatus, "status", "", "pending|in_progress|completed|deleted")
	taskUpdateCmd.Flags().StringVar(&taskUpdateOwner, "owner", "", "member name to assign as owner")
	taskUpdateCmd.Flags().StringVar(&taskUpdateSubject, "subject", "", "new subject")
	taskUpdateCmd.Flags().StringVar(&taskUpdateDesc, "description", "", "new description")
	taskUpdateCmd.Flags().StringVar(&taskUpdateActive, "active-form", "", "new active-form")
	taskUpdateCmd.Flags().StringSliceVar(&taskUpdateBlocks, "blocks", nil, "comma-separated task ids this task now blocks")
	taskUpdateCmd.Flags().StringSliceVar(&taskUpdateBlockers, "blocked-by", nil, "comma-separated task ids this task is now blocked by")

	taskCmd.AddCommand(taskCreateCmd, taskListCmd, taskGetCmd, taskUpdateCmd)
	rootCmd.AddCommand(taskCmd)
}
