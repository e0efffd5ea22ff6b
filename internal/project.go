package internal

import (
	"errors"
	"fmt"
	"math"

	"github.com/danaugrs/go-tsne/tsne"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

const (
	ProjectionPCA  = "pca"
	ProjectionTSVD = "tsvd"
	ProjectionTSNE = "tsne"

	DefaultComponents   = 2
	DefaultPerplexity   = 30
	DefaultLearningRate = 200
	DefaultIterations   = 300
)

type ProjectionArgs struct {
	Components   int     `json:"components"`
	Perplexity   float64 `json:"perplexity,omitempty"`
	LearningRate float64 `json:"learning_rate,omitempty"`
	Iterations   int     `json:"iterations,omitempty"`
}

func DefaultProjectionArgs() ProjectionArgs {
	return ProjectionArgs{
		Components:   DefaultComponents,
		Perplexity:   DefaultPerplexity,
		LearningRate: DefaultLearningRate,
		Iterations:   DefaultIterations,
	}
}

// Projector reduces high-dimensional embeddings to a small number of
// components suitable for clustering and plotting.
type Projector interface {
	Project(embeddings [][]float32, args ProjectionArgs) ([][]float64, error)
	Name() string
}

func NewProjector(algorithm string) (Projector, error) {
	switch algorithm {
	case ProjectionPCA:
		return pcaProjector{}, nil
	case ProjectionTSVD:
		return tsvdProjector{}, nil
	case ProjectionTSNE, "":
		return tsneProjector{}, nil
	default:
		return nil, fmt.Errorf("unsupported projection algorithm: %s", algorithm)
	}
}

var (
	_ Projector = pcaProjector{}
	_ Projector = tsvdProjector{}
	_ Projector = tsneProjector{}
)

type pcaProjector struct{}

func (pcaProjector) Name() string { return ProjectionPCA }

func (pcaProjector) Project(embeddings [][]float32, args ProjectionArgs) ([][]float64, error) {
	x, n, d, err := embeddingMatrix(embeddings)
	if err != nil {
		return nil, err
	}
	c := clampComponents(args.Components, n, d)

	var pc stat.PC
	if ok := pc.PrincipalComponents(x, nil); !ok {
		return nil, errors.New("principal component analysis failed")
	}

	var vecs mat.Dense
	pc.VectorsTo(&vecs)

	var proj mat.Dense
	proj.Mul(centerColumns(x), vecs.Slice(0, d, 0, c))

	return matrixRows(&proj), nil
}

type tsvdProjector struct{}

func (tsvdProjector) Name() string { return ProjectionTSVD }

func (tsvdProjector) Project(embeddings [][]float32, args ProjectionArgs) ([][]float64, error) {
	x, n, d, err := embeddingMatrix(embeddings)
	if err != nil {
		return nil, err
	}
	c := clampComponents(args.Components, n, d)

	var svd mat.SVD
	if ok := svd.Factorize(x, mat.SVDThin); !ok {
		return nil, errors.New("svd factorization failed")
	}

	var u mat.Dense
	svd.UTo(&u)
	s := svd.Values(nil)

	// U * Sigma, truncated to the leading components.
	out := make([][]float64, n)
	for i := range out {
		row := make([]float64, c)
		for j := 0; j < c; j++ {
			row[j] = u.At(i, j) * s[j]
		}
		out[i] = row
	}

	return out, nil
}

type tsneProjector struct{}

func (tsneProjector) Name() string { return ProjectionTSNE }

func (tsneProjector) Project(embeddings [][]float32, args ProjectionArgs) ([][]float64, error) {
	x, n, _, err := embeddingMatrix(embeddings)
	if err != nil {
		return nil, err
	}

	c := args.Components
	if c <= 0 {
		c = DefaultComponents
	}
	if c != 2 && c != 3 {
		return nil, fmt.Errorf("t-sne supports 2 or 3 components, got %d", c)
	}

	perplexity := args.Perplexity
	if perplexity <= 0 {
		perplexity = DefaultPerplexity
	}
	// The conditional distribution is undefined when the perplexity
	// exceeds the neighbor count.
	if limit := math.Max(1, float64(n-1)/3); perplexity > limit {
		perplexity = limit
	}

	learningRate := args.LearningRate
	if learningRate <= 0 {
		learningRate = DefaultLearningRate
	}
	iterations := args.Iterations
	if iterations <= 0 {
		iterations = DefaultIterations
	}

	t := tsne.NewTSNE(c, perplexity, learningRate, iterations, false)
	y := t.EmbedData(x, nil)

	return matrixRows(y), nil
}

// helpers

func embeddingMatrix(embeddings [][]float32) (*mat.Dense, int, int, error) {
	n := len(embeddings)
	if n == 0 {
		return nil, 0, 0, ErrEmptyCorpus
	}
	d := len(embeddings[0])
	if d == 0 {
		return nil, 0, 0, errors.New("zero-dimensional embeddings")
	}

	x := mat.NewDense(n, d, nil)
	for i, row := range embeddings {
		if len(row) != d {
			return nil, 0, 0, fmt.Errorf("embedding %d has dimension %d, want %d", i, len(row), d)
		}
		for j, v := range row {
			x.Set(i, j, float64(v))
		}
	}

	return x, n, d, nil
}

func clampComponents(components, n, d int) int {
	c := components
	if c <= 0 {
		c = DefaultComponents
	}
	if c > d {
		c = d
	}
	if c > n {
		c = n
	}
	return c
}

func centerColumns(x *mat.Dense) *mat.Dense {
	n, d := x.Dims()

	means := make([]float64, d)
	for j := 0; j < d; j++ {
		var sum float64
		for i := 0; i < n; i++ {
			sum += x.At(i, j)
		}
		means[j] = sum / float64(n)
	}

	centered := mat.NewDense(n, d, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < d; j++ {
			centered.Set(i, j, x.At(i, j)-means[j])
		}
	}

	return centered
}

func matrixRows(m mat.Matrix) [][]float64 {
	n, d := m.Dims()
	rows := make([][]float64, n)
	for i := 0; i < n; i++ {
		row := make([]float64, d)
		for j := 0; j < d; j++ {
			row[j] = m.At(i, j)
		}
		rows[i] = row
	}
	return rows
}
