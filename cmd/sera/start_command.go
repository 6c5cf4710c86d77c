package main

import (
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.temporal.io/sdk/client"

	"sera/internal/config"
	"sera/internal/workflow"
)

func newStartCommand(ctx *commandContext) *cobra.Command {
	var dryRun bool
	var confidence float64

	cmd := &cobra.Command{
		Use:   "start <series-dir>",
		Short: "Start organizing one series",
		Long: "Start a library run for one series directory. A relative path is\n" +
			"resolved against the configured input root.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(cfg *config.Config, cl client.Client) error {
				source := args[0]
				if !filepath.IsAbs(source) {
					source = filepath.Join(cfg.Media.InputRoot, source)
				}
				workflowID := fmt.Sprintf("sera-%s", uuid.NewString()[:8])
				input := workflow.OrganizeLibraryInput{
					SourceDir:           source,
					ProcessingRoot:      cfg.Media.ProcessingRoot,
					StagingRoot:         cfg.Media.StagingRoot,
					OutputRoot:          cfg.Media.OutputRoot,
					DryRun:              dryRun,
					ConfidenceThreshold: confidence,
				}
				run, err := cl.ExecuteWorkflow(cmd.Context(), client.StartWorkflowOptions{
					ID:        workflowID,
					TaskQueue: cfg.Temporal.TaskQueue,
				}, workflow.OrganizeLibraryWorkflowName, input)
				if err != nil {
					return fmt.Errorf("start run: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Started %s for %s\n", run.GetID(), source)
				if dryRun {
					fmt.Fprintln(cmd.OutOrStdout(), "Dry run: nothing will be written")
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Plan the run without copying, moving, or deleting anything")
	cmd.Flags().Float64Var(&confidence, "confidence", workflow.DefaultConfidenceThreshold, "Match confidence required for automatic renames")
	return cmd
}

func newCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <run-id>",
		Short: "Cancel a running series run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(cfg *config.Config, cl client.Client) error {
				if err := cl.CancelWorkflow(cmd.Context(), args[0], ""); err != nil {
					return fmt.Errorf("cancel run: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Canceled %s\n", args[0])
				return nil
			})
		},
	}
}
