package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/topiclens/topiclens/internal"
)

func NewFitCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fit",
		Short: "Cluster a corpus and label its topics",
		Long:  `Embed a corpus, project it down, cluster the projections, and label each cluster with a topic.`,
		RunE:  makeFitRunner(a),
	}

	cmd.Flags().StringP("input", "i", "", "Corpus file or URL (jsonl, json, or one doc per line)")
	cmd.Flags().StringP("store", "o", "topiclens-run", "Directory for fitted artifacts")
	cmd.Flags().Int("batch-size", 0, "Join this many documents per embedding input")
	cmd.Flags().String("projection", "", "Projection algorithm (pca|tsvd|tsne)")
	cmd.Flags().Int("components", 0, "Projection dimensions (2 or 3)")
	cmd.Flags().String("clustering", "", "Clustering algorithm (dbscan|kmeans)")
	cmd.Flags().Int("clusters", 0, "Cluster count for kmeans")
	cmd.Flags().Float64("eps", 0, "Neighborhood radius for dbscan")
	cmd.Flags().Int("min-samples", 0, "Core point threshold for dbscan")
	cmd.Flags().Int("trees", 0, "Tree count for the neighbor index")
	cmd.Flags().Bool("no-summaries", false, "Skip LLM topic labeling")
	cmd.Flags().String("instruction", "", "Override the topic labeling instruction")
	cmd.Flags().String("topic-mode", "", "Topic parsing mode (multiple_topics|single_topic)")
	cmd.Flags().String("provider", "", "Summary provider name (defaults to the configured default)")
	cmd.Flags().Int64("seed", 0, "Seed for example sampling")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

func makeFitRunner(a *app) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		input, _ := cmd.Flags().GetString("input")
		store, _ := cmd.Flags().GetString("store")
		providerName, _ := cmd.Flags().GetString("provider")
		seed, _ := cmd.Flags().GetInt64("seed")
		asJSON, _ := cmd.Flags().GetBool("json")

		cfg, err := a.loadConfig(cmd)
		if err != nil {
			return err
		}
		applyFitFlags(cmd, cfg)

		path, err := a.resolveCorpus(cmd.Context(), input)
		if err != nil {
			return fmt.Errorf("resolve corpus: %w", err)
		}

		texts, err := internal.LoadCorpus(path)
		if err != nil {
			return fmt.Errorf("load corpus: %w", err)
		}

		embedder, err := a.embedder(cfg)
		if err != nil {
			return err
		}

		var provider internal.Provider
		if cfg.Pipeline.Summaries {
			provider = a.provider(cmd.Context(), cfg, providerName)
		}

		opts := internal.PipelineOptionsFrom(cfg)
		opts = append(opts, internal.WithLogger(a.logger))
		if seed != 0 {
			opts = append(opts, internal.WithSeed(seed))
		}

		pipeline, err := internal.NewPipeline(embedder, provider, opts...)
		if err != nil {
			return fmt.Errorf("build pipeline: %w", err)
		}

		if err := pipeline.Fit(cmd.Context(), texts); err != nil {
			return fmt.Errorf("fit: %w", err)
		}

		if err := pipeline.Save(cmd.Context(), store); err != nil {
			return fmt.Errorf("save artifacts: %w", err)
		}

		if err := commitRun(cmd, store, pipeline); err != nil {
			return err
		}

		if asJSON {
			return outputTopicsJSON(cmd, pipeline.Topics())
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Fitted %d documents into %d clusters.\n", len(pipeline.Texts()), pipeline.ClusterCount())
		printTopics(cmd, pipeline.Topics())
		return nil
	}
}

func applyFitFlags(cmd *cobra.Command, cfg *internal.Config) {
	if v, _ := cmd.Flags().GetInt("batch-size"); v > 0 {
		cfg.Pipeline.BatchSize = v
	}
	if v, _ := cmd.Flags().GetString("projection"); v != "" {
		cfg.Pipeline.Projection = v
	}
	if v, _ := cmd.Flags().GetInt("components"); v > 0 {
		cfg.Pipeline.Components = v
	}
	if v, _ := cmd.Flags().GetString("clustering"); v != "" {
		cfg.Pipeline.Clustering = v
	}
	if v, _ := cmd.Flags().GetInt("clusters"); v > 0 {
		cfg.Pipeline.Clusters = v
	}
	if v, _ := cmd.Flags().GetFloat64("eps"); v > 0 {
		cfg.Pipeline.Eps = v
	}
	if v, _ := cmd.Flags().GetInt("min-samples"); v > 0 {
		cfg.Pipeline.MinSamples = v
	}
	if v, _ := cmd.Flags().GetInt("trees"); v > 0 {
		cfg.Pipeline.Trees = v
	}
	if v, _ := cmd.Flags().GetBool("no-summaries"); v {
		cfg.Pipeline.Summaries = false
	}
	if v, _ := cmd.Flags().GetString("instruction"); v != "" {
		cfg.Pipeline.Instruction = v
	}
	if v, _ := cmd.Flags().GetString("topic-mode"); v != "" {
		cfg.Pipeline.TopicMode = v
	}
}

func commitRun(cmd *cobra.Command, store string, pipeline *internal.Pipeline) error {
	runs, err := internal.OpenRunStore(store)
	if err != nil {
		return fmt.Errorf("open run store: %w", err)
	}

	message := fmt.Sprintf("fit: %d docs, %d clusters (%s)",
		len(pipeline.Texts()), pipeline.ClusterCount(), pipeline.RunID())

	if _, err := runs.CommitRun(cmd.Context(), message); err != nil && !errors.Is(err, internal.ErrNoChanges) {
		return fmt.Errorf("commit run: %w", err)
	}
	return nil
}
