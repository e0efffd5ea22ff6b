package v1

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/topiclens/topiclens/internal"
)

// fixtureEmbedder returns fixed vectors so tests run offline.
type fixtureEmbedder struct {
	vecs map[string][]float32
}

func (e *fixtureEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = e.vector(text)
	}
	return out, nil
}

func (e *fixtureEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return e.vector(text), nil
}

func (e *fixtureEmbedder) Dimension() int { return 3 }

func (e *fixtureEmbedder) Model() string { return "fixture-model" }

func (e *fixtureEmbedder) vector(text string) []float32 {
	if vec, ok := e.vecs[text]; ok {
		return append([]float32(nil), vec...)
	}
	return []float32{0, 0, 1}
}

func fixtureClient(t *testing.T, store string) (*Client, []string) {
	t.Helper()

	texts := []string{
		"ion engines trade thrust for efficiency",
		"gravity assists bend trajectories for free",
		"heat shields ablate during reentry",
		"kneading develops gluten in bread dough",
		"acid balances richness in a pan sauce",
		"mise en place keeps a kitchen calm",
	}
	embedder := &fixtureEmbedder{vecs: map[string][]float32{
		texts[0]: {0.99, 0.01, 0},
		texts[1]: {0.98, 0.02, 0},
		texts[2]: {0.97, 0.01, 0},
		texts[3]: {0.01, 0.99, 0},
		texts[4]: {0.02, 0.98, 0},
		texts[5]: {0.01, 0.97, 0},
	}}

	opts := []internal.PipelineOption{
		internal.WithSeed(7),
		internal.WithProjection(internal.ProjectionPCA),
		internal.WithClusteringArgs(internal.ClusteringArgs{Eps: 0.5, MinSamples: 2}),
		internal.WithSummaries(false),
	}

	pipeline, err := internal.NewPipeline(embedder, nil, opts...)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}

	return &Client{
		pipeline: pipeline,
		embedder: embedder,
		opts:     opts,
		store:    store,
		topK:     3,
	}, texts
}

func TestClientFitInferTopics(t *testing.T) {
	store := filepath.Join(t.TempDir(), "topiclens-run")
	ctx := context.Background()

	c, texts := fixtureClient(t, store)
	if err := c.Fit(ctx, texts); err != nil {
		t.Fatalf("fit: %v", err)
	}

	topics := c.Topics()
	if len(topics) != 2 {
		t.Fatalf("expected 2 topics, got %d", len(topics))
	}
	for _, topic := range topics {
		if topic.Size != 3 {
			t.Errorf("topic %d size = %d, want 3", topic.Label, topic.Size)
		}
	}

	query := "solar sails ride photon pressure"
	c.embedder.(*fixtureEmbedder).vecs[query] = []float32{0.96, 0.03, 0}

	results, err := c.Infer(ctx, []string{query})
	if err != nil {
		t.Fatalf("infer: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Text != query {
		t.Errorf("text = %q, want the query", results[0].Text)
	}
	if results[0].Label != 0 {
		t.Errorf("label = %d, want the spaceflight cluster", results[0].Label)
	}
	if results[0].Score <= 0 {
		t.Errorf("score = %v, want positive", results[0].Score)
	}
}

func TestClientFitRecordsRun(t *testing.T) {
	store := filepath.Join(t.TempDir(), "topiclens-run")
	ctx := context.Background()

	c, texts := fixtureClient(t, store)
	if err := c.Fit(ctx, texts); err != nil {
		t.Fatalf("fit: %v", err)
	}

	runs, err := c.Runs(ctx, 0)
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	if !strings.HasPrefix(runs[0].Message, "fit: 6 docs, 2 clusters") {
		t.Errorf("run message = %q", runs[0].Message)
	}
	if runs[0].Hash == "" {
		t.Error("run hash is empty")
	}
	if runs[0].Timestamp.IsZero() {
		t.Error("run timestamp is zero")
	}

	// Refitting identical artifacts is not an error
	if err := c.Fit(ctx, texts); err != nil {
		t.Errorf("refit: %v", err)
	}
}

func TestClientLoad(t *testing.T) {
	store := filepath.Join(t.TempDir(), "topiclens-run")
	ctx := context.Background()

	c, texts := fixtureClient(t, store)
	if err := c.Fit(ctx, texts); err != nil {
		t.Fatalf("fit: %v", err)
	}

	fresh, _ := fixtureClient(t, store)
	fresh.pipeline = nil

	if err := fresh.Load(ctx); err != nil {
		t.Fatalf("load: %v", err)
	}

	topics := fresh.Topics()
	if len(topics) != 2 {
		t.Fatalf("expected 2 topics after load, got %d", len(topics))
	}
}

func TestClientLoadMissingStore(t *testing.T) {
	c, _ := fixtureClient(t, filepath.Join(t.TempDir(), "nope"))

	if err := c.Load(context.Background()); err == nil {
		t.Error("expected error for missing store")
	}
}

func TestNewClientDefaults(t *testing.T) {
	c, err := New(WithConfigFile(filepath.Join(t.TempDir(), "config.yaml")))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer c.Close()

	if c.store != "topiclens-run" {
		t.Errorf("store = %q, want default", c.store)
	}
	if c.topK != internal.DefaultTopK {
		t.Errorf("topK = %d, want %d", c.topK, internal.DefaultTopK)
	}
	if len(c.Topics()) != 0 {
		t.Error("expected no topics before fitting")
	}
}

func TestNewClientOptions(t *testing.T) {
	c, err := New(
		WithConfigFile(filepath.Join(t.TempDir(), "config.yaml")),
		WithStore("elsewhere"),
		WithTopK(5),
		WithBatchSize(2),
		WithoutSummaries(),
		WithSeed(42),
	)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer c.Close()

	if c.store != "elsewhere" {
		t.Errorf("store = %q, want elsewhere", c.store)
	}
	if c.topK != 5 {
		t.Errorf("topK = %d, want 5", c.topK)
	}
}
