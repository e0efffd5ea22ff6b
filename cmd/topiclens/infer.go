package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/topiclens/topiclens/internal"
)

func NewInferCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "infer [text...]",
		Short: "Label new documents with fitted topics",
		Long:  `Assign each new document the majority topic of its nearest fitted neighbors.`,
		RunE:  makeInferRunner(a),
	}

	cmd.Flags().StringP("input", "i", "", "File with documents to label")
	cmd.Flags().String("from", "topiclens-run", "Directory with fitted artifacts")
	cmd.Flags().IntP("top-k", "k", internal.DefaultTopK, "Neighbors consulted per document")
	return cmd
}

func makeInferRunner(a *app) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		input, _ := cmd.Flags().GetString("input")
		from, _ := cmd.Flags().GetString("from")
		topK, _ := cmd.Flags().GetInt("top-k")
		asJSON, _ := cmd.Flags().GetBool("json")

		texts := args
		if input != "" {
			path, err := a.resolveCorpus(cmd.Context(), input)
			if err != nil {
				return fmt.Errorf("resolve corpus: %w", err)
			}
			loaded, err := internal.LoadCorpus(path)
			if err != nil {
				return fmt.Errorf("load corpus: %w", err)
			}
			texts = append(texts, loaded...)
		}
		if len(texts) == 0 {
			return errors.New("nothing to infer: pass texts as arguments or --input")
		}

		cfg, err := a.loadConfig(cmd)
		if err != nil {
			return err
		}

		embedder, err := a.embedder(cfg)
		if err != nil {
			return err
		}

		pipeline, err := internal.Load(cmd.Context(), from, embedder, nil, internal.WithLogger(a.logger))
		if err != nil {
			return fmt.Errorf("load artifacts: %w", err)
		}

		results, err := pipeline.Infer(cmd.Context(), texts, topK)
		if err != nil {
			return fmt.Errorf("infer: %w", err)
		}

		if asJSON {
			return outputInferencesJSON(cmd, pipeline, texts, results)
		}

		for i, r := range results {
			topic := pipeline.TopicOf(r.Label)
			fmt.Fprintf(cmd.OutOrStdout(), "%.4f  [%d] %s\n", r.Score, r.Label, topic)
			fmt.Fprintf(cmd.OutOrStdout(), "        %s\n", internal.Truncate(texts[i], 100))
		}
		return nil
	}
}

func outputInferencesJSON(cmd *cobra.Command, pipeline *internal.Pipeline, texts []string, results []internal.Inference) error {
	out := make([]map[string]any, 0, len(results))
	for i, r := range results {
		out = append(out, map[string]any{
			"text":  texts[i],
			"label": r.Label,
			"topic": pipeline.TopicOf(r.Label),
			"score": r.Score,
		})
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
