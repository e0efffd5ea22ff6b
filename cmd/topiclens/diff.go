package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/topiclens/topiclens/internal"
)

func NewDiffCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "diff [ref]",
		Short: "Compare topic labels against a previous run",
		Long:  `Show how the cluster summaries changed since a previous run (HEAD by default).`,
		Args:  cobra.MaximumNArgs(1),
		RunE:  makeDiffRunner(a),
	}

	cmd.Flags().String("from", "topiclens-run", "Directory with fitted artifacts")
	return cmd
}

func makeDiffRunner(a *app) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ref := ""
		if len(args) > 0 {
			ref = args[0]
		}

		from, _ := cmd.Flags().GetString("from")

		store, err := internal.OpenRunStore(from)
		if err != nil {
			return fmt.Errorf("open run store: %w", err)
		}

		diff, err := store.DiffSummaries(cmd.Context(), ref)
		if err != nil {
			return fmt.Errorf("get diff: %w", err)
		}

		if diff == "" {
			fmt.Fprintln(cmd.OutOrStdout(), "No changes.")
			return nil
		}

		fmt.Fprint(cmd.OutOrStdout(), diff)
		return nil
	}
}
