// Package metacluster merges clusters bottom-up into a shallow hierarchy
// bounded by a target root count. Each round is delegated to a pluggable
// reduction model; the reducer enforces strict progress and record lineage.
package metacluster

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/thebtf/prism/pkg/models"
)

// Model proposes one round of hierarchy reduction: given the current root
// clusters it returns new parent clusters plus updated copies of the roots
// pointing at them. MaxClusters is the target root count owned by the model.
type Model interface {
	MaxClusters() int
	ReduceClusters(ctx context.Context, roots []models.Cluster) ([]models.Cluster, error)
}

// Reducer iterates reduction rounds until the root count reaches the target.
type Reducer struct {
	model Model
}

// NewReducer wraps a reduction model.
func NewReducer(model Model) *Reducer {
	return &Reducer{model: model}
}

// Reduce runs rounds of the model until at most MaxClusters roots remain.
// The returned set holds every cluster across all levels; a superseded
// record (an old parentless copy of a cluster that gained a parent) is
// replaced by its updated version. A round that fails to strictly decrease
// the root count aborts: the model contract requires progress, and without
// the guard a stuck model would loop forever.
func (r *Reducer) Reduce(ctx context.Context, clusters []models.Cluster) ([]models.Cluster, error) {
	all := make([]models.Cluster, len(clusters))
	copy(all, clusters)

	roots := rootsOf(all)
	maxClusters := r.model.MaxClusters()
	log.Info().Int("roots", len(roots)).Int("target", maxClusters).Msg("Starting cluster reduction")

	for len(roots) > maxClusters {
		newLevel, err := r.model.ReduceClusters(ctx, roots)
		if err != nil {
			return nil, fmt.Errorf("reduce clusters: %w", err)
		}

		newRoots := rootsOf(newLevel)
		if len(newRoots) >= len(roots) {
			return nil, fmt.Errorf("reduction round made no progress: %d roots before, %d after", len(roots), len(newRoots))
		}

		stale := make(map[string]bool)
		for _, c := range newLevel {
			if c.ParentID != "" {
				stale[c.ID] = true
			}
		}
		kept := all[:0]
		for _, c := range all {
			if !stale[c.ID] {
				kept = append(kept, c)
			}
		}
		all = append(kept, newLevel...)
		roots = newRoots

		log.Info().Int("roots", len(roots)).Msg("Reduced cluster level")
	}

	return all, nil
}

func rootsOf(clusters []models.Cluster) []models.Cluster {
	var roots []models.Cluster
	for _, c := range clusters {
		if c.ParentID == "" {
			roots = append(roots, c)
		}
	}
	return roots
}
