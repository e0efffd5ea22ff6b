package internal

import (
	"context"
	"fmt"
	"sync"

	"github.com/mariotoffia/goannoy/builder"
	"github.com/mariotoffia/goannoy/interfaces"
)

const DefaultTrees = 10

// Neighbor is one approximate nearest neighbor hit. ID is the ordinal
// of the document in the fitted corpus.
type Neighbor struct {
	ID    uint32
	Score float32 // 0-1, higher is better
}

// AnnIndex wraps an annoy index over the corpus embeddings. Items are
// keyed by document ordinal, so the index is rebuilt from scratch on
// every fit rather than mutated.
type AnnIndex struct {
	mu        sync.RWMutex
	idx       interfaces.AnnoyIndex[float32, uint32]
	dimension int
	size      int
	built     bool
}

func NewAnnIndex(dimension int) *AnnIndex {
	idx := builder.Index[float32, uint32]().
		AngularDistance(dimension).
		UseMultiWorkerPolicy().
		MmapIndexAllocator().
		Build()

	return &AnnIndex{
		idx:       idx,
		dimension: dimension,
	}
}

func (a *AnnIndex) Add(ctx context.Context, id uint32, vector []float32) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(vector) != a.dimension {
		return fmt.Errorf("dimension mismatch: expected %d, got %d", a.dimension, len(vector))
	}

	a.idx.AddItem(id, vector)
	if int(id)+1 > a.size {
		a.size = int(id) + 1
	}
	a.built = false

	return nil
}

func (a *AnnIndex) Build(ctx context.Context, numTrees int) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if numTrees <= 0 {
		numTrees = DefaultTrees
	}

	a.idx.Build(numTrees, -1)
	a.built = true
	return nil
}

func (a *AnnIndex) Search(ctx context.Context, query []float32, k int) ([]Neighbor, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if !a.built {
		return nil, fmt.Errorf("index not built")
	}
	if len(query) != a.dimension {
		return nil, fmt.Errorf("dimension mismatch: expected %d, got %d", a.dimension, len(query))
	}

	if k > a.size {
		k = a.size
	}
	if k <= 0 {
		return nil, nil
	}

	searchCtx := a.idx.CreateContext()
	ids, distances := a.idx.GetNnsByVector(query, k, -1, searchCtx)

	results := make([]Neighbor, 0, len(ids))
	for i, id := range ids {
		// Convert angular distance to similarity score (0-1, higher is better)
		// Angular distance is in range [0, 2], so score = 1 - dist/2
		var score float32
		if i < len(distances) {
			score = 1.0 - distances[i]/2.0
		}

		results = append(results, Neighbor{ID: id, Score: score})
	}

	return results, nil
}

func (a *AnnIndex) Save(ctx context.Context, path string) error {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if err := a.idx.Save(path); err != nil {
		return fmt.Errorf("save index: %w", err)
	}
	return nil
}

// Load reads an index previously written by Save. The item count is
// not stored in the index file, so callers pass it back in.
func (a *AnnIndex) Load(ctx context.Context, path string, size int) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.idx.Load(path); err != nil {
		return fmt.Errorf("load index: %w", err)
	}

	a.size = size
	a.built = true
	return nil
}

func (a *AnnIndex) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.size
}

func (a *AnnIndex) Dimension() int {
	return a.dimension
}
