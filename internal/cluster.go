package internal

import (
	"fmt"
	"math"

	"github.com/muesli/clusters"
	"github.com/muesli/kmeans"
)

const (
	ClusteringDBSCAN = "dbscan"
	ClusteringKMeans = "kmeans"

	// NoiseLabel marks documents that belong to no cluster.
	NoiseLabel = -1

	DefaultClusters   = 8
	DefaultEps        = 0.5
	DefaultMinSamples = 5

	unclassified = -2
)

type ClusteringArgs struct {
	Clusters   int     `json:"clusters,omitempty"`    // kmeans
	Eps        float64 `json:"eps,omitempty"`         // dbscan
	MinSamples int     `json:"min_samples,omitempty"` // dbscan
}

func DefaultClusteringArgs() ClusteringArgs {
	return ClusteringArgs{
		Clusters:   DefaultClusters,
		Eps:        DefaultEps,
		MinSamples: DefaultMinSamples,
	}
}

// Clusterer assigns a label to every projected point. Labels are dense
// integers starting at 0, with NoiseLabel for unclustered points.
type Clusterer interface {
	Cluster(points [][]float64, args ClusteringArgs) ([]int, error)
	Name() string
}

func NewClusterer(algorithm string) (Clusterer, error) {
	switch algorithm {
	case ClusteringDBSCAN, "":
		return dbscanClusterer{}, nil
	case ClusteringKMeans:
		return kmeansClusterer{}, nil
	default:
		return nil, fmt.Errorf("unsupported clustering algorithm: %s", algorithm)
	}
}

var (
	_ Clusterer = dbscanClusterer{}
	_ Clusterer = kmeansClusterer{}
)

// dbscanClusterer is a density-based clustering over euclidean
// distance. Cluster ids are assigned in point order, so the output is
// deterministic for a given input.
type dbscanClusterer struct{}

func (dbscanClusterer) Name() string { return ClusteringDBSCAN }

func (dbscanClusterer) Cluster(points [][]float64, args ClusteringArgs) ([]int, error) {
	if len(points) == 0 {
		return nil, ErrEmptyCorpus
	}

	eps := args.Eps
	if eps <= 0 {
		eps = DefaultEps
	}
	minSamples := args.MinSamples
	if minSamples <= 0 {
		minSamples = DefaultMinSamples
	}

	labels := make([]int, len(points))
	for i := range labels {
		labels[i] = unclassified
	}

	next := 0
	for i := range points {
		if labels[i] != unclassified {
			continue
		}

		neighbors := regionQuery(points, i, eps)
		if len(neighbors) < minSamples {
			labels[i] = NoiseLabel
			continue
		}

		label := next
		next++
		labels[i] = label

		// Expand the cluster breadth-first over density-reachable points.
		queue := append([]int(nil), neighbors...)
		for qi := 0; qi < len(queue); qi++ {
			j := queue[qi]

			if labels[j] == NoiseLabel {
				labels[j] = label // border point
			}
			if labels[j] != unclassified {
				continue
			}
			labels[j] = label

			reachable := regionQuery(points, j, eps)
			if len(reachable) >= minSamples {
				queue = append(queue, reachable...)
			}
		}
	}

	return labels, nil
}

// regionQuery returns the indices within eps of points[i], including i
// itself.
func regionQuery(points [][]float64, i int, eps float64) []int {
	var neighbors []int
	for j := range points {
		if euclidean(points[i], points[j]) <= eps {
			neighbors = append(neighbors, j)
		}
	}
	return neighbors
}

func euclidean(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

type kmeansClusterer struct{}

func (kmeansClusterer) Name() string { return ClusteringKMeans }

func (kmeansClusterer) Cluster(points [][]float64, args ClusteringArgs) ([]int, error) {
	if len(points) == 0 {
		return nil, ErrEmptyCorpus
	}

	k := args.Clusters
	if k <= 0 {
		k = DefaultClusters
	}
	if k > len(points) {
		k = len(points)
	}

	observations := make(clusters.Observations, len(points))
	for i, p := range points {
		observations[i] = clusters.Coordinates(p)
	}

	km := kmeans.New()
	partition, err := km.Partition(observations, k)
	if err != nil {
		return nil, fmt.Errorf("kmeans partition: %w", err)
	}

	labels := make([]int, len(points))
	for i, obs := range observations {
		labels[i] = partition.Nearest(obs)
	}

	return labels, nil
}
