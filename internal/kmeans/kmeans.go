// Package kmeans provides the default clustering method: k-means++ over
// embedding vectors. The partition is disjoint and covers every input by
// construction.
package kmeans

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/thebtf/prism/internal/cluster"
	"github.com/thebtf/prism/internal/errdefs"
	"github.com/thebtf/prism/pkg/models"
)

const (
	// DefaultClustersPerGroup sets the target average group size; the number
	// of clusters is ceil(items / DefaultClustersPerGroup).
	DefaultClustersPerGroup = 10

	defaultMaxIterations = 100
)

// Method implements cluster.Method with k-means++.
type Method struct {
	ClustersPerGroup int
	MaxIterations    int
	Seed             int64 // 0 means time-based
}

// New returns a Method with default settings.
func New() *Method {
	return &Method{
		ClustersPerGroup: DefaultClustersPerGroup,
		MaxIterations:    defaultMaxIterations,
	}
}

// Cluster partitions embedded summaries into k = ceil(n/ClustersPerGroup)
// groups keyed by dense group ids starting at 0.
func (m *Method) Cluster(items []cluster.Embedded) (map[int][]models.ConversationSummary, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("no items to cluster: %w", errdefs.ErrValidation)
	}

	perGroup := m.ClustersPerGroup
	if perGroup <= 0 {
		perGroup = DefaultClustersPerGroup
	}
	k := (len(items) + perGroup - 1) / perGroup
	if k < 1 {
		k = 1
	}

	vectors := make([][]float64, len(items))
	for i, item := range items {
		vectors[i] = item.Embedding
	}

	seed := m.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	iterations := m.MaxIterations
	if iterations <= 0 {
		iterations = defaultMaxIterations
	}

	assignments, err := Partition(vectors, k, iterations, rand.New(rand.NewSource(seed)))
	if err != nil {
		return nil, err
	}

	groups := make(map[int][]models.ConversationSummary, k)
	for i, groupID := range assignments {
		groups[groupID] = append(groups[groupID], items[i].Summary)
	}
	return groups, nil
}

// Partition runs k-means++ over the vectors and returns a group index per
// vector in [0, k). All vectors must share the same dimensionality.
func Partition(vectors [][]float64, k, maxIterations int, rng *rand.Rand) ([]int, error) {
	n := len(vectors)
	if n == 0 {
		return nil, fmt.Errorf("no vectors to partition: %w", errdefs.ErrValidation)
	}
	if k > n {
		k = n
	}
	dim := len(vectors[0])
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("vector %d has dimension %d, want %d: %w", i, len(v), dim, errdefs.ErrValidation)
		}
	}

	centroids := seedCentroids(vectors, k, rng)
	assignments := make([]int, n)

	for iter := 0; iter < maxIterations; iter++ {
		changed := false
		for i, v := range vectors {
			best := nearestCentroid(v, centroids)
			if best != assignments[i] {
				assignments[i] = best
				changed = true
			}
		}
		if iter > 0 && !changed {
			break
		}

		// Recompute centroids; an emptied cluster is reseeded with the point
		// farthest from its current centroid.
		counts := make([]int, k)
		next := make([][]float64, k)
		for c := range next {
			next[c] = make([]float64, dim)
		}
		for i, v := range vectors {
			c := assignments[i]
			counts[c]++
			for d, x := range v {
				next[c][d] += x
			}
		}
		for c := 0; c < k; c++ {
			if counts[c] == 0 {
				next[c] = vectors[farthestPoint(vectors, centroids, assignments)]
				continue
			}
			for d := range next[c] {
				next[c][d] /= float64(counts[c])
			}
		}
		centroids = next
	}

	return assignments, nil
}

// seedCentroids picks initial centroids with the k-means++ strategy: the
// first uniformly, the rest proportional to squared distance from the
// nearest chosen centroid.
func seedCentroids(vectors [][]float64, k int, rng *rand.Rand) [][]float64 {
	centroids := make([][]float64, 0, k)
	centroids = append(centroids, vectors[rng.Intn(len(vectors))])

	dists := make([]float64, len(vectors))
	for len(centroids) < k {
		total := 0.0
		for i, v := range vectors {
			d := squaredDistance(v, centroids[nearestCentroid(v, centroids)])
			dists[i] = d
			total += d
		}
		if total == 0 {
			// All remaining points coincide with a centroid.
			centroids = append(centroids, vectors[rng.Intn(len(vectors))])
			continue
		}
		target := rng.Float64() * total
		acc := 0.0
		pick := len(vectors) - 1
		for i, d := range dists {
			acc += d
			if acc >= target {
				pick = i
				break
			}
		}
		centroids = append(centroids, vectors[pick])
	}
	return centroids
}

func nearestCentroid(v []float64, centroids [][]float64) int {
	best := 0
	bestDist := math.Inf(1)
	for c, centroid := range centroids {
		if d := squaredDistance(v, centroid); d < bestDist {
			bestDist = d
			best = c
		}
	}
	return best
}

func farthestPoint(vectors, centroids [][]float64, assignments []int) int {
	best := 0
	bestDist := -1.0
	for i, v := range vectors {
		if d := squaredDistance(v, centroids[assignments[i]]); d > bestDist {
			bestDist = d
			best = i
		}
	}
	return best
}

func squaredDistance(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		diff := a[i] - b[i]
		sum += diff * diff
	}
	return sum
}
