package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.temporal.io/sdk/client"

	"sera/internal/config"
	"sera/internal/media"
	"sera/internal/workflow"
)

func newTreeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "tree <run-id>",
		Short: "Show the staged directory tree awaiting finalize",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(cfg *config.Config, cl client.Client) error {
				value, err := cl.QueryWorkflow(cmd.Context(), args[0], "", workflow.QueryGetStagingTree)
				if err != nil {
					return fmt.Errorf("query run %s: %w", args[0], err)
				}
				var tree *media.TreeNode
				if err := value.Get(&tree); err != nil {
					return fmt.Errorf("decode tree: %w", err)
				}
				if tree == nil {
					fmt.Fprintln(cmd.OutOrStdout(), "No staging tree yet: the run has not reached the staging step")
					return nil
				}
				printTree(cmd.OutOrStdout(), tree, 0)
				return nil
			})
		},
	}
}

func printTree(out io.Writer, node *media.TreeNode, depth int) {
	indent := strings.Repeat("  ", depth)
	if node.Type == "directory" {
		fmt.Fprintf(out, "%s%s/\n", indent, node.Name)
	} else {
		fmt.Fprintf(out, "%s%s (%s)\n", indent, node.Name, formatBytes(node.Size))
	}
	for _, child := range node.Children {
		printTree(out, child, depth+1)
	}
}
