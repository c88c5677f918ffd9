// Package projection flattens the cluster hierarchy onto a 2D plane for
// visualization. Every cluster is embedded from its label text, the
// embeddings are reduced to two principal components, and each cluster is
// annotated with its depth in the hierarchy.
package projection

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/thebtf/prism/internal/cluster"
	"github.com/thebtf/prism/internal/errdefs"
	"github.com/thebtf/prism/internal/metrics"
	"github.com/thebtf/prism/pkg/models"
)

// Model projects clusters to 2D coordinates. It implements
// pipeline.Projector.
type Model struct {
	embedder cluster.Embedder
	sem      *semaphore.Weighted
}

// NewModel builds a projector; maxConcurrent bounds embedding calls.
func NewModel(embedder cluster.Embedder, maxConcurrent int64) *Model {
	if maxConcurrent <= 0 {
		maxConcurrent = cluster.DefaultMaxConcurrent
	}
	return &Model{
		embedder: embedder,
		sem:      semaphore.NewWeighted(maxConcurrent),
	}
}

// ReduceDimensionality embeds every cluster's label text, projects the
// vectors onto their two principal components, and attaches each cluster's
// depth from its root.
func (m *Model) ReduceDimensionality(ctx context.Context, clusters []models.Cluster) ([]models.ProjectedCluster, error) {
	if len(clusters) == 0 {
		return []models.ProjectedCluster{}, nil
	}

	start := time.Now()
	vectors := make([][]float64, len(clusters))

	g, gctx := errgroup.WithContext(ctx)
	for i, c := range clusters {
		i, c := i, c
		g.Go(func() error {
			if err := m.sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer m.sem.Release(1)
			metrics.ExternalCall(gctx, "embed")
			vec, err := m.embedder.Embed(gctx, fmt.Sprintf("Name: %s\nDescription: %s", c.Name, c.Description))
			if err != nil {
				return fmt.Errorf("embed cluster %s: %w", c.ID, errdefs.External(err))
			}
			vectors[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	coords, err := projectPCA(vectors)
	if err != nil {
		return nil, err
	}
	levels, err := clusterLevels(clusters)
	if err != nil {
		return nil, err
	}

	projected := make([]models.ProjectedCluster, len(clusters))
	for i, c := range clusters {
		projected[i] = models.ProjectedCluster{
			Cluster: c,
			X:       coords[i][0],
			Y:       coords[i][1],
			Level:   levels[c.ID],
		}
	}

	log.Info().Int("clusters", len(clusters)).Dur("took", time.Since(start)).Msg("Projected clusters to 2D")
	return projected, nil
}

// clusterLevels computes each cluster's depth: roots are level 0, children
// are one below their parent. A parent id that resolves to no cluster in
// the batch is a validation error.
func clusterLevels(clusters []models.Cluster) (map[string]int, error) {
	byID := make(map[string]models.Cluster, len(clusters))
	for _, c := range clusters {
		byID[c.ID] = c
	}

	levels := make(map[string]int, len(clusters))
	for _, c := range clusters {
		depth := 0
		for cur := c; cur.ParentID != ""; depth++ {
			parent, ok := byID[cur.ParentID]
			if !ok {
				return nil, errdefs.Validation(fmt.Errorf("cluster %s references missing parent %s", cur.ID, cur.ParentID))
			}
			if depth > len(clusters) {
				return nil, errdefs.Validation(fmt.Errorf("cluster %s has a cyclic parent chain", c.ID))
			}
			cur = parent
		}
		levels[c.ID] = depth
	}
	return levels, nil
}
