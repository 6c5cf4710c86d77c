package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.temporal.io/sdk/client"

	"sera/internal/config"
	"sera/internal/workflow"
)

func newReviewsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reviews <run-id> <folder>",
		Short: "List a folder's matches awaiting review",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(cfg *config.Config, cl client.Client) error {
				value, err := cl.QueryWorkflow(cmd.Context(), discWorkflowID(args[0], args[1]), "", workflow.QueryGetProgress)
				if err != nil {
					return fmt.Errorf("query folder %s: %w", args[1], err)
				}
				var progress workflow.ProcessFolderProgress
				if err := value.Get(&progress); err != nil {
					return fmt.Errorf("decode progress: %w", err)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Folder %s: %s\n", progress.FolderName, progress.Status)
				if len(progress.PendingReviews) == 0 {
					fmt.Fprintln(out, "No reviews pending")
					return nil
				}
				rows := make([][]string, 0, len(progress.PendingReviews))
				for _, item := range progress.PendingReviews {
					rows = append(rows, []string{
						item.ID,
						item.FileName,
						fmt.Sprintf("S%02dE%02d", item.SuggestedSeason, item.SuggestedEpisode),
						fmt.Sprintf("%.2f", item.Confidence),
						item.Reasoning,
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "File", "Suggested", "Confidence", "Reasoning"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				))

				head := progress.PendingReviews[0]
				if head.SubtitleSnippet != "" {
					fmt.Fprintf(out, "\nDialogue excerpt for %s:\n%s\n", head.FileName, head.SubtitleSnippet)
				}
				return nil
			})
		},
	}
}

func newReviewCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Resolve a match awaiting review",
	}
	cmd.AddCommand(newReviewApproveCommand(ctx))
	cmd.AddCommand(newReviewRejectCommand(ctx))
	return cmd
}

func newReviewApproveCommand(ctx *commandContext) *cobra.Command {
	var season int
	var episode int

	cmd := &cobra.Command{
		Use:   "approve <run-id> <folder> <review-id>",
		Short: "Approve a reviewed match, optionally correcting its slot",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(cfg *config.Config, cl client.Client) error {
				decision := workflow.ReviewDecision{
					ReviewItemID: args[2],
					Approved:     true,
				}
				if cmd.Flags().Changed("season") {
					decision.CorrectedSeason = &season
				}
				if cmd.Flags().Changed("episode") {
					decision.CorrectedEpisode = &episode
				}
				err := cl.SignalWorkflow(cmd.Context(), discWorkflowID(args[0], args[1]), "",
					workflow.SignalReviewDecision, decision)
				if err != nil {
					return fmt.Errorf("send decision: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Approved %s\n", args[2])
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&season, "season", 0, "Override the suggested season number")
	cmd.Flags().IntVar(&episode, "episode", 0, "Override the suggested episode number")
	return cmd
}

func newReviewRejectCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reject <run-id> <folder> <review-id>",
		Short: "Reject a reviewed match; the item stays pending for resubmission",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(cfg *config.Config, cl client.Client) error {
				err := cl.SignalWorkflow(cmd.Context(), discWorkflowID(args[0], args[1]), "",
					workflow.SignalReviewDecision, workflow.ReviewDecision{ReviewItemID: args[2]})
				if err != nil {
					return fmt.Errorf("send decision: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Rejected %s\n", args[2])
				return nil
			})
		},
	}
}

func newConfirmDetectionCommand(ctx *commandContext) *cobra.Command {
	var add []string
	var remove []string

	cmd := &cobra.Command{
		Use:   "confirm-detection <run-id> <folder>",
		Short: "Confirm a folder's episode detection, optionally adjusting it",
		Long: "Confirm an episode partition the detector was not certain about.\n" +
			"--add promotes files from the extras set into the episode set by\n" +
			"name or relative path; --remove demotes episodes the same way.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(cfg *config.Config, cl client.Client) error {
				err := cl.SignalWorkflow(cmd.Context(), discWorkflowID(args[0], args[1]), "",
					workflow.SignalDetectionConfirmation, workflow.DetectionConfirmation{
						Confirmed:    true,
						AddedPaths:   add,
						RemovedPaths: remove,
					})
				if err != nil {
					return fmt.Errorf("send confirmation: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Confirmed detection for %s\n", args[1])
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVar(&add, "add", nil, "Files to add to the episode set")
	cmd.Flags().StringSliceVar(&remove, "remove", nil, "Files to remove from the episode set")
	return cmd
}

func newFinalizeCommand(ctx *commandContext) *cobra.Command {
	var reject bool

	cmd := &cobra.Command{
		Use:   "finalize <run-id>",
		Short: "Approve or reject moving the staged tree to the output root",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(cfg *config.Config, cl client.Client) error {
				err := cl.SignalWorkflow(cmd.Context(), args[0], "",
					workflow.SignalFinalize, workflow.FinalizeDecision{Approved: !reject})
				if err != nil {
					return fmt.Errorf("send finalize decision: %w", err)
				}
				if reject {
					fmt.Fprintf(cmd.OutOrStdout(), "Rejected finalize for %s\n", args[0])
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "Approved finalize for %s\n", args[0])
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&reject, "reject", false, "Reject instead of approving; the run fails and staging is preserved")
	return cmd
}
