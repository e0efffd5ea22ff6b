package internal

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"slices"
	"sort"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

const DefaultTopK = 1

type pipelineConfig struct {
	logger      *log.Logger
	seed        int64
	hasSeed     bool
	batchSize   int
	projection  string
	projArgs    ProjectionArgs
	clustering  string
	clusterArgs ClusteringArgs
	summaryCfg  SummaryConfig
	summaries   bool
	trees       int
}

type PipelineOption func(*pipelineConfig)

func WithLogger(logger *log.Logger) PipelineOption {
	return func(c *pipelineConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithSeed fixes the random source used for example sampling, making
// summarization prompts reproducible.
func WithSeed(seed int64) PipelineOption {
	return func(c *pipelineConfig) {
		c.seed = seed
		c.hasSeed = true
	}
}

func WithBatchSize(n int) PipelineOption {
	return func(c *pipelineConfig) {
		if n > 0 {
			c.batchSize = n
		}
	}
}

func WithProjection(algorithm string) PipelineOption {
	return func(c *pipelineConfig) {
		if algorithm != "" {
			c.projection = algorithm
		}
	}
}

func WithProjectionArgs(args ProjectionArgs) PipelineOption {
	return func(c *pipelineConfig) { c.projArgs = args }
}

func WithClustering(algorithm string) PipelineOption {
	return func(c *pipelineConfig) {
		if algorithm != "" {
			c.clustering = algorithm
		}
	}
}

func WithClusteringArgs(args ClusteringArgs) PipelineOption {
	return func(c *pipelineConfig) { c.clusterArgs = args }
}

func WithSummaries(enabled bool) PipelineOption {
	return func(c *pipelineConfig) { c.summaries = enabled }
}

func WithSummaryConfig(cfg SummaryConfig) PipelineOption {
	return func(c *pipelineConfig) { c.summaryCfg = cfg }
}

func WithTrees(n int) PipelineOption {
	return func(c *pipelineConfig) {
		if n > 0 {
			c.trees = n
		}
	}
}

// Pipeline clusters a corpus and labels the clusters. Embeddings and
// projections are cached across fits and only recomputed when the
// corpus, batch size or projection setup changes.
type Pipeline struct {
	log       *log.Logger
	rng       *rand.Rand
	embedder  Embedder
	provider  Provider
	projector Projector
	clusterer Clusterer

	batchSize   int
	projArgs    ProjectionArgs
	clusterArgs ClusteringArgs
	summaryCfg  SummaryConfig
	summaries   bool
	trees       int

	rawTexts         []string
	texts            []string
	embeddings       [][]float32
	projections      [][]float64
	labels           []int
	clusterSummaries map[int]string
	index            *AnnIndex
	docsByLabel      map[int][]int
	centers          map[int][]float64
	fittedAt         time.Time
	runID            string
}

func NewPipeline(embedder Embedder, provider Provider, opts ...PipelineOption) (*Pipeline, error) {
	cfg := pipelineConfig{
		logger:      log.New(io.Discard),
		batchSize:   1,
		projection:  ProjectionTSNE,
		projArgs:    DefaultProjectionArgs(),
		clustering:  ClusteringDBSCAN,
		clusterArgs: DefaultClusteringArgs(),
		summaryCfg:  DefaultSummaryConfig(),
		summaries:   true,
		trees:       DefaultTrees,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	projector, err := NewProjector(cfg.projection)
	if err != nil {
		return nil, err
	}
	clusterer, err := NewClusterer(cfg.clustering)
	if err != nil {
		return nil, err
	}

	seed := cfg.seed
	if !cfg.hasSeed {
		seed = time.Now().UnixNano()
	}

	return &Pipeline{
		log:         cfg.logger,
		rng:         rand.New(rand.NewSource(seed)),
		embedder:    embedder,
		provider:    provider,
		projector:   projector,
		clusterer:   clusterer,
		batchSize:   cfg.batchSize,
		projArgs:    cfg.projArgs,
		clusterArgs: cfg.clusterArgs,
		summaryCfg:  cfg.summaryCfg,
		summaries:   cfg.summaries,
		trees:       cfg.trees,
	}, nil
}

type fitConfig struct {
	batchSize   *int
	projection  string
	projArgs    *ProjectionArgs
	clustering  string
	clusterArgs *ClusteringArgs
}

type FitOption func(*fitConfig)

func FitWithBatchSize(n int) FitOption {
	return func(c *fitConfig) { c.batchSize = &n }
}

func FitWithProjection(algorithm string) FitOption {
	return func(c *fitConfig) { c.projection = algorithm }
}

func FitWithProjectionArgs(args ProjectionArgs) FitOption {
	return func(c *fitConfig) { c.projArgs = &args }
}

func FitWithClustering(algorithm string) FitOption {
	return func(c *fitConfig) { c.clustering = algorithm }
}

func FitWithClusteringArgs(args ClusteringArgs) FitOption {
	return func(c *fitConfig) { c.clusterArgs = &args }
}

// Fit embeds, projects, clusters and summarizes the corpus. A nil
// texts slice re-fits the previous corpus. Clustering always runs,
// while embeddings and projections are reused when their inputs are
// unchanged.
func (p *Pipeline) Fit(ctx context.Context, texts []string, opts ...FitOption) error {
	if p.embedder == nil {
		return ErrNoEmbedder
	}

	var fc fitConfig
	for _, opt := range opts {
		opt(&fc)
	}

	if fc.batchSize != nil && *fc.batchSize > 0 {
		p.batchSize = *fc.batchSize
	}
	if fc.projection != "" && fc.projection != p.projector.Name() {
		projector, err := NewProjector(fc.projection)
		if err != nil {
			return err
		}
		p.projector = projector
		p.projections = nil
	}
	if fc.projArgs != nil && *fc.projArgs != p.projArgs {
		p.projArgs = *fc.projArgs
		p.projections = nil
	}
	if fc.clustering != "" && fc.clustering != p.clusterer.Name() {
		clusterer, err := NewClusterer(fc.clustering)
		if err != nil {
			return err
		}
		p.clusterer = clusterer
	}
	if fc.clusterArgs != nil {
		p.clusterArgs = *fc.clusterArgs
	}

	if len(texts) > 0 {
		p.rawTexts = texts
	}
	if len(p.rawTexts) == 0 {
		return ErrEmptyCorpus
	}

	// Regrouping the corpus moves document boundaries, so cached
	// vectors no longer line up with it.
	batched := BatchAndJoin(p.rawTexts, p.batchSize)
	if !slices.Equal(batched, p.texts) {
		p.texts = batched
		p.embeddings = nil
		p.projections = nil
	}

	if p.embeddings == nil {
		p.log.Info("embedding corpus", "documents", len(p.texts), "model", p.embedder.Model())
		embeddings, err := p.embedder.EmbedDocuments(ctx, p.texts)
		if err != nil {
			return fmt.Errorf("embed corpus: %w", err)
		}
		p.embeddings = embeddings
		p.projections = nil
	} else {
		p.log.Info("reusing cached embeddings", "documents", len(p.embeddings))
	}

	if p.projections == nil {
		p.log.Info("projecting embeddings", "algorithm", p.projector.Name(), "components", p.projArgs.Components)
		projections, err := p.projector.Project(p.embeddings, p.projArgs)
		if err != nil {
			return fmt.Errorf("project embeddings: %w", err)
		}
		p.projections = projections
	} else {
		p.log.Info("reusing cached projections", "documents", len(p.projections))
	}

	p.log.Info("clustering projections", "algorithm", p.clusterer.Name())
	labels, err := p.clusterer.Cluster(p.projections, p.clusterArgs)
	if err != nil {
		return fmt.Errorf("cluster projections: %w", err)
	}
	p.storeClusterInfo(labels)

	index := NewAnnIndex(len(p.embeddings[0]))
	for i, vec := range p.embeddings {
		if err := index.Add(ctx, uint32(i), vec); err != nil {
			return fmt.Errorf("index document %d: %w", i, err)
		}
	}
	if err := index.Build(ctx, p.trees); err != nil {
		return fmt.Errorf("build index: %w", err)
	}
	p.index = index

	if p.summaries {
		if p.provider == nil {
			p.log.Warn("summaries enabled but no provider configured, skipping")
		} else {
			summarizer := NewSummarizer(p.provider, p.summaryCfg, p.log, p.rng)
			summaries, err := summarizer.Summarize(ctx, p.texts, p.docsByLabel)
			if err != nil {
				return err
			}
			p.clusterSummaries = summaries
		}
	}

	p.fittedAt = time.Now().UTC()
	p.runID = uuid.NewString()

	p.log.Info("fit complete",
		"documents", len(p.texts),
		"clusters", p.ClusterCount(),
		"noise", len(p.docsByLabel[NoiseLabel]),
		"run_id", p.runID,
	)
	return nil
}

// Inference is the classification of one query text.
type Inference struct {
	Label int     `json:"label"`
	Topic string  `json:"topic,omitempty"`
	Score float32 `json:"score"`
}

// Infer assigns each text the majority label among its topK nearest
// fitted documents. Ties go to the label seen nearest first.
func (p *Pipeline) Infer(ctx context.Context, texts []string, topK int) ([]Inference, error) {
	if !p.Fitted() {
		return nil, ErrNotFitted
	}
	if p.embedder == nil {
		return nil, ErrNoEmbedder
	}
	if len(texts) == 0 {
		return nil, nil
	}

	if topK <= 0 {
		topK = DefaultTopK
	}

	embeddings, err := p.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed queries: %w", err)
	}

	out := make([]Inference, len(texts))
	for i, vec := range embeddings {
		neighbors, err := p.index.Search(ctx, vec, topK)
		if err != nil {
			return nil, fmt.Errorf("search neighbors: %w", err)
		}

		label, score := p.vote(neighbors)
		out[i] = Inference{Label: label, Topic: p.TopicOf(label), Score: score}
	}

	return out, nil
}

func (p *Pipeline) vote(neighbors []Neighbor) (int, float32) {
	if len(neighbors) == 0 {
		return NoiseLabel, 0
	}

	counts := make(map[int]int, len(neighbors))
	var order []int
	var scoreSum float32

	for _, nb := range neighbors {
		label := p.labels[nb.ID]
		if _, seen := counts[label]; !seen {
			order = append(order, label)
		}
		counts[label]++
		scoreSum += nb.Score
	}

	best := order[0]
	for _, label := range order[1:] {
		if counts[label] > counts[best] {
			best = label
		}
	}

	return best, scoreSum / float32(len(neighbors))
}

func (p *Pipeline) storeClusterInfo(labels []int) {
	p.labels = labels

	p.docsByLabel = make(map[int][]int)
	for i, label := range labels {
		p.docsByLabel[label] = append(p.docsByLabel[label], i)
	}

	p.centers = make(map[int][]float64)
	for label, ids := range p.docsByLabel {
		if label == NoiseLabel {
			continue
		}
		center := make([]float64, len(p.projections[0]))
		for _, id := range ids {
			for j, v := range p.projections[id] {
				center[j] += v
			}
		}
		for j := range center {
			center[j] /= float64(len(ids))
		}
		p.centers[label] = center
	}
}

// Topic is one cluster with its size and generated summary.
type Topic struct {
	Label   int    `json:"label"`
	Size    int    `json:"size"`
	Summary string `json:"summary,omitempty"`
}

// Topics lists clusters ordered by label, with noise last.
func (p *Pipeline) Topics() []Topic {
	labels := make([]int, 0, len(p.docsByLabel))
	for label := range p.docsByLabel {
		if label == NoiseLabel {
			continue
		}
		labels = append(labels, label)
	}
	sort.Ints(labels)

	topics := make([]Topic, 0, len(labels)+1)
	for _, label := range labels {
		topics = append(topics, Topic{
			Label:   label,
			Size:    len(p.docsByLabel[label]),
			Summary: p.TopicOf(label),
		})
	}
	if noise := p.docsByLabel[NoiseLabel]; len(noise) > 0 {
		topics = append(topics, Topic{
			Label:   NoiseLabel,
			Size:    len(noise),
			Summary: NoiseSummary,
		})
	}

	return topics
}

// TopicOf returns the summary for a label, or "" when the cluster has
// no summary yet.
func (p *Pipeline) TopicOf(label int) string {
	if s, ok := p.clusterSummaries[label]; ok {
		return s
	}
	if label == NoiseLabel {
		return NoiseSummary
	}
	return ""
}

func (p *Pipeline) Fitted() bool {
	return p.index != nil && len(p.labels) > 0
}

func (p *Pipeline) Texts() []string {
	return p.texts
}

func (p *Pipeline) Labels() []int {
	return p.labels
}

func (p *Pipeline) Embeddings() [][]float32 {
	return p.embeddings
}

func (p *Pipeline) Projections() [][]float64 {
	return p.projections
}

func (p *Pipeline) Summaries() map[int]string {
	return p.clusterSummaries
}

func (p *Pipeline) Centers() map[int][]float64 {
	return p.centers
}

func (p *Pipeline) ClusterCount() int {
	n := len(p.docsByLabel)
	if _, ok := p.docsByLabel[NoiseLabel]; ok {
		n--
	}
	return n
}

func (p *Pipeline) RunID() string {
	return p.runID
}

func (p *Pipeline) FittedAt() time.Time {
	return p.fittedAt
}
