package internal

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sethvargo/go-retry"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

const (
	DefaultEmbedBatchSize = 64
	DefaultEmbedCacheSize = 4096

	embedRetryAttempts = 3
	embedRetryBase     = 200 * time.Millisecond
)

type EmbedderConfig struct {
	Backend   string // "openai" or "ollama"
	Model     string
	APIKey    string
	BaseURL   string
	Dimension int // expected vector size, 0 means take it from the first response
	BatchSize int // texts per embedding request
	CacheSize int
	Normalize bool
}

var _ Embedder = (*LangchainEmbedder)(nil)

// LangchainEmbedder delegates to a langchaingo embedding client and
// memoizes vectors so re-fitting the same corpus does not re-embed it.
type LangchainEmbedder struct {
	emb       embeddings.Embedder
	model     string
	normalize bool

	mu    sync.Mutex
	dim   int
	cache *lru.Cache[string, []float32]
}

func NewLangchainEmbedder(cfg EmbedderConfig) (*LangchainEmbedder, error) {
	client, err := newEmbedderClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create embedding client: %w", err)
	}

	batch := cfg.BatchSize
	if batch <= 0 {
		batch = DefaultEmbedBatchSize
	}

	emb, err := embeddings.NewEmbedder(client,
		embeddings.WithBatchSize(batch),
		embeddings.WithStripNewLines(true),
	)
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}

	return newLangchainEmbedder(emb, cfg)
}

func newEmbedderClient(cfg EmbedderConfig) (embeddings.EmbedderClient, error) {
	switch cfg.Backend {
	case "openai", "":
		opts := []openai.Option{openai.WithEmbeddingModel(cfg.Model)}
		if cfg.APIKey != "" {
			opts = append(opts, openai.WithToken(cfg.APIKey))
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		return openai.New(opts...)

	case "ollama":
		opts := []ollama.Option{ollama.WithModel(cfg.Model)}
		if cfg.BaseURL != "" {
			opts = append(opts, ollama.WithServerURL(cfg.BaseURL))
		}
		return ollama.New(opts...)

	default:
		return nil, fmt.Errorf("unsupported embedding backend: %s", cfg.Backend)
	}
}

func newLangchainEmbedder(emb embeddings.Embedder, cfg EmbedderConfig) (*LangchainEmbedder, error) {
	size := cfg.CacheSize
	if size <= 0 {
		size = DefaultEmbedCacheSize
	}

	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}

	return &LangchainEmbedder{
		emb:       emb,
		model:     cfg.Model,
		normalize: cfg.Normalize,
		dim:       cfg.Dimension,
		cache:     cache,
	}, nil
}

func (e *LangchainEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))

	var missing []string
	var missingIdx []int
	for i, text := range texts {
		if vec, ok := e.cached(text); ok {
			out[i] = vec
			continue
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}
	if len(missing) == 0 {
		return out, nil
	}

	var vecs [][]float32
	err := e.withRetry(ctx, func(ctx context.Context) error {
		var err error
		vecs, err = e.emb.EmbedDocuments(ctx, missing)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("embed documents: %w", err)
	}
	if len(vecs) != len(missing) {
		return nil, fmt.Errorf("embed documents: got %d vectors for %d texts", len(vecs), len(missing))
	}

	for j, vec := range vecs {
		if err := e.checkDimension(vec); err != nil {
			return nil, fmt.Errorf("embed documents: %w", err)
		}
		if e.normalize {
			vec = L2Normalize(vec)
		}
		e.remember(missing[j], vec)
		out[missingIdx[j]] = vec
	}

	return out, nil
}

func (e *LangchainEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if vec, ok := e.cached(text); ok {
		return vec, nil
	}

	var vec []float32
	err := e.withRetry(ctx, func(ctx context.Context) error {
		var err error
		vec, err = e.emb.EmbedQuery(ctx, text)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if err := e.checkDimension(vec); err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	if e.normalize {
		vec = L2Normalize(vec)
	}
	e.remember(text, vec)

	return vec, nil
}

func (e *LangchainEmbedder) Dimension() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dim
}

func (e *LangchainEmbedder) Model() string {
	return e.model
}

func (e *LangchainEmbedder) withRetry(ctx context.Context, fn func(context.Context) error) error {
	b := retry.NewExponential(embedRetryBase)
	b = retry.WithJitter(50*time.Millisecond, b)
	b = retry.WithMaxRetries(embedRetryAttempts, b)

	return retry.Do(ctx, b, func(ctx context.Context) error {
		if err := fn(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
}

func (e *LangchainEmbedder) checkDimension(vec []float32) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.dim != 0 && len(vec) != e.dim {
		return fmt.Errorf("got %d-dimensional vector, want %d", len(vec), e.dim)
	}
	return nil
}

func (e *LangchainEmbedder) cached(text string) ([]float32, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	vec, ok := e.cache.Get(e.cacheKey(text))
	if !ok {
		return nil, false
	}
	return slices.Clone(vec), true
}

func (e *LangchainEmbedder) remember(text string, vec []float32) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.dim == 0 {
		e.dim = len(vec)
	}
	e.cache.Add(e.cacheKey(text), slices.Clone(vec))
}

func (e *LangchainEmbedder) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(e.model + "\x00" + text))
	return hex.EncodeToString(sum[:])
}
