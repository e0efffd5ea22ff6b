package v1

import (
	"context"
	"errors"
	"fmt"

	"github.com/topiclens/topiclens/internal"
)

// Client provides programmatic access to the clustering pipeline.
type Client struct {
	pipeline *internal.Pipeline
	embedder internal.Embedder
	provider internal.Provider
	opts     []internal.PipelineOption
	store    string
	topK     int
}

// New creates a new Client with the given options.
func New(opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		store:     "topiclens-run",
		topK:      internal.DefaultTopK,
		summaries: true,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	fileCfg, err := internal.LoadConfig(cfg.configFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.batchSize > 0 {
		fileCfg.Pipeline.BatchSize = cfg.batchSize
	}
	if !cfg.summaries {
		fileCfg.Pipeline.Summaries = false
	}

	// The embedder needs credentials, so leave it unset when
	// construction fails. Reading a saved store still works offline.
	var embedder internal.Embedder
	if e, err := internal.NewLangchainEmbedder(internal.EmbedderConfigFrom(fileCfg)); err == nil {
		embedder = e
	}

	var provider internal.Provider
	if fileCfg.Pipeline.Summaries {
		if fc, ok := internal.ProviderConfigFrom(fileCfg, ""); ok {
			if p, err := internal.NewFantasyProvider(context.Background(), fc); err == nil {
				provider = p
			}
		}
	}

	pipelineOpts := internal.PipelineOptionsFrom(fileCfg)
	if cfg.hasSeed {
		pipelineOpts = append(pipelineOpts, internal.WithSeed(cfg.seed))
	}

	pipeline, err := internal.NewPipeline(embedder, provider, pipelineOpts...)
	if err != nil {
		return nil, fmt.Errorf("build pipeline: %w", err)
	}

	return &Client{
		pipeline: pipeline,
		embedder: embedder,
		provider: provider,
		opts:     pipelineOpts,
		store:    cfg.store,
		topK:     cfg.topK,
	}, nil
}

// Fit clusters the corpus, labels the clusters, and saves the
// artifacts to the store.
func (c *Client) Fit(ctx context.Context, texts []string) error {
	if err := c.pipeline.Fit(ctx, texts); err != nil {
		return fmt.Errorf("fit: %w", err)
	}

	if err := c.pipeline.Save(ctx, c.store); err != nil {
		return fmt.Errorf("save: %w", err)
	}

	runs, err := internal.OpenRunStore(c.store)
	if err != nil {
		return fmt.Errorf("open run store: %w", err)
	}

	message := fmt.Sprintf("fit: %d docs, %d clusters (%s)",
		len(c.pipeline.Texts()), c.pipeline.ClusterCount(), c.pipeline.RunID())

	if _, err := runs.CommitRun(ctx, message); err != nil && !errors.Is(err, internal.ErrNoChanges) {
		return fmt.Errorf("commit run: %w", err)
	}
	return nil
}

// Load restores the pipeline from the artifacts saved in the store.
func (c *Client) Load(ctx context.Context) error {
	pipeline, err := internal.Load(ctx, c.store, c.embedder, c.provider, c.opts...)
	if err != nil {
		return fmt.Errorf("load: %w", err)
	}

	c.pipeline = pipeline
	return nil
}

// Infer assigns each text the majority topic of its nearest fitted
// neighbors.
func (c *Client) Infer(ctx context.Context, texts []string) ([]Inference, error) {
	results, err := c.pipeline.Infer(ctx, texts, c.topK)
	if err != nil {
		return nil, fmt.Errorf("infer: %w", err)
	}

	out := make([]Inference, 0, len(results))
	for i, r := range results {
		out = append(out, Inference{
			Text:  texts[i],
			Label: r.Label,
			Topic: c.pipeline.TopicOf(r.Label),
			Score: r.Score,
		})
	}
	return out, nil
}

// Topics returns the fitted clusters with their sizes and labels.
func (c *Client) Topics() []Topic {
	fitted := c.pipeline.Topics()

	topics := make([]Topic, 0, len(fitted))
	for _, t := range fitted {
		topics = append(topics, Topic{
			Label:   t.Label,
			Size:    t.Size,
			Summary: t.Summary,
		})
	}
	return topics
}

// Runs returns the recorded fit history, most recent first.
func (c *Client) Runs(ctx context.Context, limit int) ([]Run, error) {
	store, err := internal.OpenRunStore(c.store)
	if err != nil {
		return nil, fmt.Errorf("open run store: %w", err)
	}

	log, err := store.Log(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("runs: %w", err)
	}

	runs := make([]Run, 0, len(log))
	for _, r := range log {
		runs = append(runs, Run{
			Hash:      r.Hash,
			Message:   r.Message,
			Timestamp: r.Timestamp,
		})
	}
	return runs, nil
}

// Close releases any resources held by the client.
func (c *Client) Close() error {
	return nil
}
