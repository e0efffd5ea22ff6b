package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/topiclens/topiclens/internal"
)

func NewWatchCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch a corpus and label appended documents",
		Long:  `Watch a corpus file and label documents appended to it against the fitted clusters.`,
		RunE:  makeWatchRunner(a),
	}

	cmd.Flags().StringP("input", "i", "", "Corpus file to watch")
	cmd.Flags().String("from", "topiclens-run", "Directory with fitted artifacts")
	cmd.Flags().IntP("top-k", "k", internal.DefaultTopK, "Neighbors consulted per document")
	cmd.Flags().Duration("debounce", 500*time.Millisecond, "Debounce window for batching changes")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

func makeWatchRunner(a *app) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		input, _ := cmd.Flags().GetString("input")
		from, _ := cmd.Flags().GetString("from")
		topK, _ := cmd.Flags().GetInt("top-k")
		debounce, _ := cmd.Flags().GetDuration("debounce")

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

		texts, err := internal.LoadCorpus(input)
		if err != nil {
			return fmt.Errorf("load corpus: %w", err)
		}
		seen := len(texts)

		target, err := filepath.Abs(input)
		if err != nil {
			return fmt.Errorf("resolve path: %w", err)
		}

		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("create watcher: %w", err)
		}
		defer watcher.Close()

		// Watch the directory: editors replace files on save, which
		// would silently drop a watch on the file itself.
		if err := watcher.Add(filepath.Dir(target)); err != nil {
			return fmt.Errorf("add watch dir: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Watching %s for new documents...\n", input)

		timer := time.NewTimer(0)
		if !timer.Stop() {
			<-timer.C
		}
		pending := false

		for {
			select {
			case <-cmd.Context().Done():
				return nil
			case event, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if shouldIgnoreEvent(event, target) {
					continue
				}
				if !pending {
					timer.Reset(debounce)
					pending = true
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "watch error: %v\n", err)
			case <-timer.C:
				pending = false
				seen = labelAppended(cmd, a, pipeline, input, seen, topK)
			}
		}
	}
}

func labelAppended(cmd *cobra.Command, a *app, pipeline *internal.Pipeline, input string, seen, topK int) int {
	texts, err := internal.LoadCorpus(input)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "reload corpus: %v\n", err)
		return seen
	}

	if len(texts) < seen {
		a.logger.Warn("corpus shrank, resetting watch position", "docs", len(texts))
		return len(texts)
	}
	if len(texts) == seen {
		return seen
	}

	fresh := texts[seen:]
	results, err := pipeline.Infer(cmd.Context(), fresh, topK)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "infer: %v\n", err)
		return seen
	}

	for i, r := range results {
		fmt.Fprintf(cmd.OutOrStdout(), "%.4f  [%d] %s\n", r.Score, r.Label, pipeline.TopicOf(r.Label))
		fmt.Fprintf(cmd.OutOrStdout(), "        %s\n", internal.Truncate(fresh[i], 100))
	}
	return len(texts)
}

func shouldIgnoreEvent(event fsnotify.Event, target string) bool {
	name, err := filepath.Abs(event.Name)
	if err != nil || name != target {
		return true
	}

	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return true
	}

	return false
}
