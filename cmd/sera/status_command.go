package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"go.temporal.io/sdk/client"

	"sera/internal/config"
	"sera/internal/workflow"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status <run-id>",
		Short: "Show the progress of a series run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(cfg *config.Config, cl client.Client) error {
				value, err := cl.QueryWorkflow(cmd.Context(), args[0], "", workflow.QueryGetProgress)
				if err != nil {
					return fmt.Errorf("query run %s: %w", args[0], err)
				}
				var progress workflow.OrganizeLibraryProgress
				if err := value.Get(&progress); err != nil {
					return fmt.Errorf("decode progress: %w", err)
				}
				renderLibraryProgress(cmd, progress)
				return nil
			})
		},
	}
}

func renderLibraryProgress(cmd *cobra.Command, progress workflow.OrganizeLibraryProgress) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Stage: %s\n", progress.Stage)

	if cp := progress.CopyProgress; cp != nil && progress.Stage == workflow.StageCopying {
		fmt.Fprintf(out, "Copying: %d/%d files (%s of %s)\n",
			cp.FilesCopied, cp.TotalFiles, formatBytes(cp.BytesCopied), formatBytes(cp.TotalBytes))
		for _, name := range cp.CurrentFiles {
			fmt.Fprintf(out, "  -> %s\n", name)
		}
	}

	if ms := progress.MetadataSummary; ms != nil {
		fmt.Fprintf(out, "Catalogue: %s", ms.Status)
		if ms.AnimeName != "" {
			fmt.Fprintf(out, " (%s, %d seasons, %d episodes)", ms.AnimeName, ms.SeasonCount, ms.TotalEpisodes)
		}
		fmt.Fprintln(out)
	}

	if progress.TotalFolders > 0 {
		fmt.Fprintf(out, "Folders: %d total, %d done, %d failed, %d in progress, %d awaiting review\n",
			progress.TotalFolders, progress.FoldersCompleted, progress.FoldersFailed,
			progress.FoldersInProgress, progress.FoldersPendingReview)

		names := make([]string, 0, len(progress.FolderStatuses))
		for name := range progress.FolderStatuses {
			names = append(names, name)
		}
		sort.Strings(names)
		rows := make([][]string, 0, len(names))
		for _, name := range names {
			rows = append(rows, []string{name, string(progress.FolderStatuses[name])})
		}
		fmt.Fprintln(out, renderTable([]string{"Folder", "Status"}, rows, nil))
	}

	if progress.ExpectedCoreEpisodeCount > 0 {
		fmt.Fprintf(out, "Episodes: %d/%d resolved\n",
			progress.ResolvedCoreEpisodeCount, progress.ExpectedCoreEpisodeCount)
	}

	if sp := progress.StructuringProgress; sp != nil && progress.Stage == workflow.StageStructuring {
		fmt.Fprintf(out, "Structuring: %d/%d files\n", sp.FilesStructured, sp.TotalFiles)
	}
	if op := progress.OutputProgress; op != nil && progress.Stage == workflow.StageFinalizing {
		fmt.Fprintf(out, "Moving to output: %d/%d files (%s of %s)\n",
			op.FilesCopied, op.TotalFiles, formatBytes(op.BytesCopied), formatBytes(op.TotalBytes))
	}

	if progress.AwaitingFinalApproval {
		if progress.CanFinalize {
			fmt.Fprintln(out, "Awaiting finalize approval: run `sera finalize <run-id>`")
		} else {
			fmt.Fprintln(out, "Awaiting finalize, but the gate is closed (failed folders or no episodes)")
		}
	}
}
