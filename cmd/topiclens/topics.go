package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/topiclens/topiclens/internal"
)

func NewTopicsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "topics",
		Short: "List fitted clusters and their topics",
		Long:  `List each cluster with its document count and topic label.`,
		RunE:  makeTopicsRunner(a),
	}

	cmd.Flags().String("from", "topiclens-run", "Directory with fitted artifacts")
	return cmd
}

func makeTopicsRunner(a *app) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		from, _ := cmd.Flags().GetString("from")
		asJSON, _ := cmd.Flags().GetBool("json")

		pipeline, err := internal.Load(cmd.Context(), from, nil, nil, internal.WithLogger(a.logger))
		if err != nil {
			return fmt.Errorf("load artifacts: %w", err)
		}

		if asJSON {
			return outputTopicsJSON(cmd, pipeline.Topics())
		}

		printTopics(cmd, pipeline.Topics())
		return nil
	}
}

func printTopics(cmd *cobra.Command, topics []internal.Topic) {
	for _, t := range topics {
		name := t.Summary
		if name == "" {
			name = "(unlabeled)"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%4d  %5d docs  %s\n", t.Label, t.Size, name)
	}
}

func outputTopicsJSON(cmd *cobra.Command, topics []internal.Topic) error {
	out := make([]map[string]any, 0, len(topics))
	for _, t := range topics {
		out = append(out, map[string]any{
			"label":   t.Label,
			"size":    t.Size,
			"summary": t.Summary,
		})
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
