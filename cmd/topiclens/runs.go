package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/topiclens/topiclens/internal"
)

func NewRunsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show fit history",
		Long:  `Show the history of fits committed to the artifact store.`,
		RunE:  makeRunsRunner(a),
	}

	cmd.Flags().String("from", "topiclens-run", "Directory with fitted artifacts")
	cmd.Flags().IntP("number", "n", 10, "Limit number of runs")
	cmd.Flags().Bool("oneline", false, "Show each run on one line")
	return cmd
}

func makeRunsRunner(a *app) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		from, _ := cmd.Flags().GetString("from")
		limit, _ := cmd.Flags().GetInt("number")
		oneline, _ := cmd.Flags().GetBool("oneline")
		asJSON, _ := cmd.Flags().GetBool("json")

		store, err := internal.OpenRunStore(from)
		if err != nil {
			return fmt.Errorf("open run store: %w", err)
		}

		runs, err := store.Log(cmd.Context(), limit)
		if err != nil {
			return fmt.Errorf("get runs: %w", err)
		}

		if asJSON {
			return outputRunsJSON(cmd, runs)
		}

		if len(runs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
			return nil
		}

		for _, r := range runs {
			if oneline {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", r.Hash[:7], r.Message)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "run %s\n", r.Hash)
				fmt.Fprintf(cmd.OutOrStdout(), "Date:   %s\n\n", r.Timestamp.Format("Mon Jan 2 15:04:05 2006 -0700"))
				fmt.Fprintf(cmd.OutOrStdout(), "    %s\n\n", r.Message)
			}
		}
		return nil
	}
}

func outputRunsJSON(cmd *cobra.Command, runs []*internal.Run) error {
	out := make([]map[string]any, 0, len(runs))
	for _, r := range runs {
		out = append(out, map[string]any{
			"hash":      r.Hash,
			"message":   r.Message,
			"timestamp": r.Timestamp,
		})
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
