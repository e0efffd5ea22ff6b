package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/topiclens/topiclens/internal"
)

// axisEmbedder returns fixed vectors so fits stay deterministic and
// offline.
type axisEmbedder struct {
	vecs map[string][]float32
}

func (e *axisEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = e.vector(text)
	}
	return out, nil
}

func (e *axisEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return e.vector(text), nil
}

func (e *axisEmbedder) Dimension() int { return 3 }

func (e *axisEmbedder) Model() string { return "fixture-model" }

func (e *axisEmbedder) vector(text string) []float32 {
	if vec, ok := e.vecs[text]; ok {
		return append([]float32(nil), vec...)
	}
	return []float32{0, 0, 1}
}

func fixtureCorpus() ([]string, map[string][]float32) {
	texts := []string{
		"comets carry ices from the outer solar system",
		"tidal forces heat the moons of gas giants",
		"supernovae seed galaxies with heavy elements",
		"a sharp knife makes cleaner vegetable cuts",
		"resting meat after roasting keeps it juicy",
		"brown butter adds a nutty depth to sauces",
	}
	vecs := map[string][]float32{
		texts[0]: {0.98, 0.01, 0},
		texts[1]: {0.99, 0.02, 0},
		texts[2]: {0.97, 0.03, 0},
		texts[3]: {0.02, 0.99, 0},
		texts[4]: {0.01, 0.98, 0},
		texts[5]: {0.03, 0.97, 0},
	}
	return texts, vecs
}

func newTestApp() *app {
	return &app{logger: log.New(io.Discard)}
}

// setupStore fits the fixture corpus into a store directory and
// commits the first run.
func setupStore(t *testing.T) (string, *axisEmbedder) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "topiclens-run")
	ctx := context.Background()

	texts, vecs := fixtureCorpus()
	embedder := &axisEmbedder{vecs: vecs}

	p, err := internal.NewPipeline(embedder, nil,
		internal.WithSeed(7),
		internal.WithProjection(internal.ProjectionPCA),
		internal.WithClustering(internal.ClusteringDBSCAN),
		internal.WithClusteringArgs(internal.ClusteringArgs{Eps: 0.5, MinSamples: 2}),
		internal.WithSummaries(false),
	)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	if err := p.Fit(ctx, texts); err != nil {
		t.Fatalf("fit: %v", err)
	}
	if err := p.Save(ctx, dir); err != nil {
		t.Fatalf("save: %v", err)
	}

	store, err := internal.OpenRunStore(dir)
	if err != nil {
		t.Fatalf("open run store: %v", err)
	}
	if _, err := store.CommitRun(ctx, "fit: 6 docs, 2 clusters"); err != nil {
		t.Fatalf("commit run: %v", err)
	}

	return dir, embedder
}

func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd("test", newTestApp())
	root.SetArgs(args)

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)

	err := root.Execute()
	return out.String(), err
}

func TestE2ETopicWorkflow(t *testing.T) {
	dir, _ := setupStore(t)

	// 1. Topics of a fresh fit are unlabeled
	out, err := runRoot(t, "topics", "--from", dir)
	if err != nil {
		t.Fatalf("topics: %v", err)
	}
	if !strings.Contains(out, "3 docs") {
		t.Errorf("topics output missing cluster sizes: %q", out)
	}
	if !strings.Contains(out, "(unlabeled)") {
		t.Errorf("topics output missing unlabeled marker: %q", out)
	}

	// 2. Render the cluster map
	htmlPath := filepath.Join(t.TempDir(), "map.html")
	out, err = runRoot(t, "show", "--from", dir, "-o", htmlPath, "--title", "Fixture map")
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if !strings.Contains(out, "Wrote "+htmlPath) {
		t.Errorf("show output = %q", out)
	}
	html, err := os.ReadFile(htmlPath)
	if err != nil {
		t.Fatalf("read chart: %v", err)
	}
	if !strings.Contains(string(html), "Fixture map") {
		t.Error("chart missing title")
	}

	// 3. The fit shows up in the run history
	out, err = runRoot(t, "runs", "--from", dir, "--oneline")
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 run, got %d: %v", len(lines), lines)
	}
	if !strings.Contains(lines[0], "fit: 6 docs, 2 clusters") {
		t.Errorf("run entry = %q", lines[0])
	}

	// 4. No topic changes yet
	out, err = runRoot(t, "diff", "--from", dir)
	if err != nil {
		t.Fatalf("diff: %v", err)
	}
	if !strings.Contains(out, "No changes.") {
		t.Errorf("diff output = %q, want no changes", out)
	}

	// 5. Label the clusters and diff again
	summaries := `{"-1":"None","0":"Comets, Moons","1":"Cooking"}`
	if err := os.WriteFile(filepath.Join(dir, "cluster_summaries.json"), []byte(summaries), 0644); err != nil {
		t.Fatalf("write summaries: %v", err)
	}

	out, err = runRoot(t, "diff", "--from", dir)
	if err != nil {
		t.Fatalf("diff after labeling: %v", err)
	}
	if !strings.Contains(out, "Comets, Moons") {
		t.Errorf("diff should show the new topics, got: %q", out)
	}

	// 6. Topics now carry the labels
	out, err = runRoot(t, "topics", "--from", dir)
	if err != nil {
		t.Fatalf("topics after labeling: %v", err)
	}
	if !strings.Contains(out, "Comets, Moons") || !strings.Contains(out, "Cooking") {
		t.Errorf("topics output missing labels: %q", out)
	}

	// 7. JSON output for scripting
	out, err = runRoot(t, "topics", "--from", dir, "--json")
	if err != nil {
		t.Fatalf("topics --json: %v", err)
	}
	if !strings.Contains(out, `"label"`) || !strings.Contains(out, `"Cooking"`) {
		t.Errorf("topics JSON = %q", out)
	}
}
