package internal

import (
	"context"
	"math"
)

// Embedder turns documents into dense vectors. Implementations are
// expected to return one vector per input text, all with the same
// dimension.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	Dimension() int
	Model() string
}

// Provider produces free-form completions for a prompt.
type Provider interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// L2Normalize scales v to unit length in place and returns it.
// Zero vectors are returned unchanged.
func L2Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}

	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
	return v
}
