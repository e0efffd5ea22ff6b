package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sbinet/npyio"
	"gonum.org/v1/gonum/mat"
)

const (
	embeddingsFilename  = "embeddings.npy"
	projectionsFilename = "projections.npy"
	labelsFilename      = "cluster_labels.npy"
	textsFilename       = "texts.json"
	rawTextsFilename    = "raw_texts.json"
	summariesFilename   = "cluster_summaries.json"
	instructionFilename = "instruction.txt"
	indexFilename       = "index.ann"
	manifestFilename    = "manifest.json"
)

// Manifest records what produced a store, so a reload can rebuild the
// pipeline with the same setup and the cache invalidation rules keep
// working across processes.
type Manifest struct {
	RunID          string         `json:"run_id"`
	FittedAt       time.Time      `json:"fitted_at"`
	Documents      int            `json:"documents"`
	Dimension      int            `json:"dimension"`
	BatchSize      int            `json:"batch_size"`
	EmbedModel     string         `json:"embed_model,omitempty"`
	Projection     string         `json:"projection"`
	ProjectionArgs ProjectionArgs `json:"projection_args"`
	Clustering     string         `json:"clustering"`
	ClusteringArgs ClusteringArgs `json:"clustering_args"`
	Clusters       int            `json:"clusters"`
	NoiseDocs      int            `json:"noise_docs"`
	TopicMode      TopicMode      `json:"topic_mode"`
	Trees          int            `json:"trees"`
}

// Save writes the fitted state into dir. The layout is one file per
// artifact: npy matrices for vectors, JSON for texts and summaries,
// the annoy index and a manifest.
func (p *Pipeline) Save(ctx context.Context, dir string) error {
	if !p.Fitted() {
		return ErrNotFitted
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}

	if err := writeNpyMatrix(filepath.Join(dir, embeddingsFilename), float32RowsToDense(p.embeddings)); err != nil {
		return err
	}
	if err := writeNpyMatrix(filepath.Join(dir, projectionsFilename), rowsToDense(p.projections)); err != nil {
		return err
	}

	labels := make([]int64, len(p.labels))
	for i, l := range p.labels {
		labels[i] = int64(l)
	}
	if err := writeNpyInts(filepath.Join(dir, labelsFilename), labels); err != nil {
		return err
	}

	if err := writeJSON(filepath.Join(dir, textsFilename), p.texts); err != nil {
		return err
	}
	if p.batchSize > 1 {
		if err := writeJSON(filepath.Join(dir, rawTextsFilename), p.rawTexts); err != nil {
			return err
		}
	}
	if p.clusterSummaries != nil {
		if err := writeJSON(filepath.Join(dir, summariesFilename), p.clusterSummaries); err != nil {
			return err
		}
	}

	if err := os.WriteFile(filepath.Join(dir, instructionFilename), []byte(p.summaryCfg.Instruction), 0644); err != nil {
		return fmt.Errorf("write instruction: %w", err)
	}

	if err := p.index.Save(ctx, filepath.Join(dir, indexFilename)); err != nil {
		return err
	}

	if err := writeJSON(filepath.Join(dir, manifestFilename), p.manifest()); err != nil {
		return err
	}

	p.log.Info("state saved", "dir", dir, "documents", len(p.texts))
	return nil
}

func (p *Pipeline) manifest() Manifest {
	model := ""
	if p.embedder != nil {
		model = p.embedder.Model()
	}

	dimension := 0
	if len(p.embeddings) > 0 {
		dimension = len(p.embeddings[0])
	}

	return Manifest{
		RunID:          p.runID,
		FittedAt:       p.fittedAt,
		Documents:      len(p.texts),
		Dimension:      dimension,
		BatchSize:      p.batchSize,
		EmbedModel:     model,
		Projection:     p.projector.Name(),
		ProjectionArgs: p.projArgs,
		Clustering:     p.clusterer.Name(),
		ClusteringArgs: p.clusterArgs,
		Clusters:       p.ClusterCount(),
		NoiseDocs:      len(p.docsByLabel[NoiseLabel]),
		TopicMode:      p.summaryCfg.Mode,
		Trees:          p.trees,
	}
}

// Load restores a pipeline from a store directory written by Save.
// The embedder and provider may be nil for read-only use; Infer and
// re-fitting then return ErrNoEmbedder.
func Load(ctx context.Context, dir string, embedder Embedder, provider Provider, opts ...PipelineOption) (*Pipeline, error) {
	var manifest Manifest
	if err := readJSON(filepath.Join(dir, manifestFilename), &manifest); err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	base := []PipelineOption{
		WithBatchSize(manifest.BatchSize),
		WithProjection(manifest.Projection),
		WithProjectionArgs(manifest.ProjectionArgs),
		WithClustering(manifest.Clustering),
		WithClusteringArgs(manifest.ClusteringArgs),
		WithTrees(manifest.Trees),
	}
	p, err := NewPipeline(embedder, provider, append(base, opts...)...)
	if err != nil {
		return nil, err
	}
	p.summaryCfg.Mode = manifest.TopicMode

	embDense, err := readNpyMatrix(filepath.Join(dir, embeddingsFilename))
	if err != nil {
		return nil, err
	}
	p.embeddings = denseToFloat32Rows(embDense)

	projDense, err := readNpyMatrix(filepath.Join(dir, projectionsFilename))
	if err != nil {
		return nil, err
	}
	p.projections = matrixRows(projDense)

	rawLabels, err := readNpyInts(filepath.Join(dir, labelsFilename))
	if err != nil {
		return nil, err
	}

	if err := readJSON(filepath.Join(dir, textsFilename), &p.texts); err != nil {
		return nil, err
	}
	p.rawTexts = p.texts
	if _, statErr := os.Stat(filepath.Join(dir, rawTextsFilename)); statErr == nil {
		if err := readJSON(filepath.Join(dir, rawTextsFilename), &p.rawTexts); err != nil {
			return nil, err
		}
	}

	if len(rawLabels) != len(p.texts) || len(p.embeddings) != len(p.texts) {
		return nil, fmt.Errorf("inconsistent store: %d labels, %d embeddings, %d texts",
			len(rawLabels), len(p.embeddings), len(p.texts))
	}

	if _, statErr := os.Stat(filepath.Join(dir, summariesFilename)); statErr == nil {
		if err := readJSON(filepath.Join(dir, summariesFilename), &p.clusterSummaries); err != nil {
			return nil, err
		}
	}

	if data, readErr := os.ReadFile(filepath.Join(dir, instructionFilename)); readErr == nil {
		p.summaryCfg.Instruction = string(data)
	}

	// Derived state is rebuilt rather than persisted.
	labels := make([]int, len(rawLabels))
	for i, l := range rawLabels {
		labels[i] = int(l)
	}
	p.storeClusterInfo(labels)

	index := NewAnnIndex(len(p.embeddings[0]))
	indexPath := filepath.Join(dir, indexFilename)
	if _, statErr := os.Stat(indexPath); statErr == nil {
		if err := index.Load(ctx, indexPath, len(p.embeddings)); err != nil {
			return nil, err
		}
	} else {
		for i, vec := range p.embeddings {
			if err := index.Add(ctx, uint32(i), vec); err != nil {
				return nil, fmt.Errorf("index document %d: %w", i, err)
			}
		}
		if err := index.Build(ctx, p.trees); err != nil {
			return nil, err
		}
	}
	p.index = index

	p.fittedAt = manifest.FittedAt
	p.runID = manifest.RunID

	p.log.Info("state loaded", "dir", dir, "documents", len(p.texts), "clusters", p.ClusterCount())
	return p, nil
}

// npy and json helpers

func writeNpyMatrix(path string, m *mat.Dense) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(path), err)
	}
	if err := npyio.Write(f, m); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}

func readNpyMatrix(path string) (*mat.Dense, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	var m mat.Dense
	if err := npyio.Read(f, &m); err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return &m, nil
}

func writeNpyInts(path string, v []int64) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(path), err)
	}
	if err := npyio.Write(f, v); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}

func readNpyInts(path string) ([]int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	var v []int64
	if err := npyio.Read(f, &v); err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return v, nil
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(path), err)
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	return f.Close()
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return nil
}

func float32RowsToDense(rows [][]float32) *mat.Dense {
	n := len(rows)
	d := 0
	if n > 0 {
		d = len(rows[0])
	}

	m := mat.NewDense(n, d, nil)
	for i, row := range rows {
		for j, v := range row {
			m.Set(i, j, float64(v))
		}
	}
	return m
}

func denseToFloat32Rows(m *mat.Dense) [][]float32 {
	n, d := m.Dims()
	rows := make([][]float32, n)
	for i := 0; i < n; i++ {
		row := make([]float32, d)
		for j := 0; j < d; j++ {
			row[j] = float32(m.At(i, j))
		}
		rows[i] = row
	}
	return rows
}

func rowsToDense(rows [][]float64) *mat.Dense {
	n := len(rows)
	d := 0
	if n > 0 {
		d = len(rows[0])
	}

	m := mat.NewDense(n, d, nil)
	for i, row := range rows {
		for j, v := range row {
			m.Set(i, j, v)
		}
	}
	return m
}
