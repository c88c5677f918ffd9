package projection

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/thebtf/prism/internal/errdefs"
)

const (
	powerIterations = 100
	powerTolerance  = 1e-9
)

// projectPCA reduces row vectors to their first two principal components
// via mean-centering and power iteration with deflation. With fewer than
// three rows the components are degenerate, so points are spread along
// the x axis instead.
func projectPCA(vectors [][]float64) ([][2]float64, error) {
	n := len(vectors)
	if n == 0 {
		return nil, nil
	}
	dim := len(vectors[0])
	for i, v := range vectors {
		if len(v) != dim {
			return nil, errdefs.Validation(fmt.Errorf("embedding %d has dimension %d, want %d", i, len(v), dim))
		}
	}

	coords := make([][2]float64, n)
	if n < 3 || dim < 2 {
		for i := range coords {
			coords[i] = [2]float64{float64(i), 0}
		}
		return coords, nil
	}

	centered := center(vectors, dim)
	rng := rand.New(rand.NewSource(1))

	pc1 := principalComponent(centered, dim, rng)
	xScores := deflate(centered, pc1)
	pc2 := principalComponent(centered, dim, rng)

	for i := range coords {
		coords[i] = [2]float64{xScores[i], dot(centered[i], pc2)}
	}
	return coords, nil
}

// center subtracts the column mean from every row, returning fresh rows.
func center(vectors [][]float64, dim int) [][]float64 {
	mean := make([]float64, dim)
	for _, v := range vectors {
		for j, x := range v {
			mean[j] += x
		}
	}
	for j := range mean {
		mean[j] /= float64(len(vectors))
	}

	centered := make([][]float64, len(vectors))
	for i, v := range vectors {
		row := make([]float64, dim)
		for j, x := range v {
			row[j] = x - mean[j]
		}
		centered[i] = row
	}
	return centered
}

// principalComponent finds the dominant right singular vector of the row
// matrix by power iteration on X^T X.
func principalComponent(rows [][]float64, dim int, rng *rand.Rand) []float64 {
	v := make([]float64, dim)
	for j := range v {
		v[j] = rng.NormFloat64()
	}
	normalize(v)

	next := make([]float64, dim)
	for iter := 0; iter < powerIterations; iter++ {
		for j := range next {
			next[j] = 0
		}
		// next = X^T (X v), accumulated row by row.
		for _, row := range rows {
			s := dot(row, v)
			for j, x := range row {
				next[j] += s * x
			}
		}
		normalize(next)

		var diff float64
		for j := range v {
			d := next[j] - v[j]
			diff += d * d
		}
		copy(v, next)
		if diff < powerTolerance {
			break
		}
	}
	return v
}

// deflate removes the component along pc from every row in place and
// returns each row's score along pc.
func deflate(rows [][]float64, pc []float64) []float64 {
	scores := make([]float64, len(rows))
	for i, row := range rows {
		s := dot(row, pc)
		scores[i] = s
		for j := range row {
			row[j] -= s * pc[j]
		}
	}
	return scores
}

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func normalize(v []float64) {
	var norm float64
	for _, x := range v {
		norm += x * x
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		v[0] = 1
		return
	}
	for i := range v {
		v[i] /= norm
	}
}
