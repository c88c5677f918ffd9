package metacluster

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/thebtf/prism/internal/cluster"
	"github.com/thebtf/prism/internal/errdefs"
	"github.com/thebtf/prism/internal/kmeans"
	"github.com/thebtf/prism/internal/metrics"
	"github.com/thebtf/prism/pkg/models"
)

const (
	// DefaultMaxClusters is the default target number of root clusters.
	DefaultMaxClusters = 10

	// neighborhoodSize caps how many root clusters are considered together
	// when proposing higher-level labels, bounding prompt size.
	neighborhoodSize = 10
)

// ProposedLabel is a candidate higher-level cluster label.
type ProposedLabel struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LabelModel is the generative collaborator of the default reduction model.
type LabelModel interface {
	// ProposeLabels suggests up to count higher-level labels covering the
	// given clusters.
	ProposeLabels(ctx context.Context, clusters []models.Cluster, count int) ([]ProposedLabel, error)

	// AssignLabel picks the candidate label that best covers the cluster.
	// The returned name is validated against the candidate set by the caller.
	AssignLabel(ctx context.Context, c models.Cluster, candidates []ProposedLabel) (string, error)
}

// Options tunes the generative reduction model.
type Options struct {
	MaxClusters   int
	MaxConcurrent int64
	Seed          int64
}

// GenerativeModel reduces a cluster level by grouping roots into embedding
// neighborhoods, proposing candidate parent labels per neighborhood, and
// assigning each root to a validated candidate.
type GenerativeModel struct {
	embedder    cluster.Embedder
	labels      LabelModel
	sem         *semaphore.Weighted
	maxClusters int
	seed        int64
}

// NewGenerativeModel builds the default reduction model.
func NewGenerativeModel(embedder cluster.Embedder, labels LabelModel, opts Options) *GenerativeModel {
	maxClusters := opts.MaxClusters
	if maxClusters <= 0 {
		maxClusters = DefaultMaxClusters
	}
	maxConcurrent := opts.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = cluster.DefaultMaxConcurrent
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &GenerativeModel{
		embedder:    embedder,
		labels:      labels,
		sem:         semaphore.NewWeighted(maxConcurrent),
		maxClusters: maxClusters,
		seed:        seed,
	}
}

// MaxClusters returns the target root count.
func (m *GenerativeModel) MaxClusters() int { return m.maxClusters }

// ReduceClusters performs one reduction round. It returns the new parent
// clusters plus a copy of every input root pointing at its parent.
func (m *GenerativeModel) ReduceClusters(ctx context.Context, roots []models.Cluster) ([]models.Cluster, error) {
	neighborhoods, err := m.buildNeighborhoods(ctx, roots)
	if err != nil {
		return nil, err
	}

	results := make([][]models.Cluster, len(neighborhoods))
	g, ctx := errgroup.WithContext(ctx)
	for i, hood := range neighborhoods {
		i, hood := i, hood
		g.Go(func() error {
			merged, err := m.mergeNeighborhood(ctx, hood)
			if err != nil {
				return err
			}
			results[i] = merged
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var newLevel []models.Cluster
	for _, merged := range results {
		newLevel = append(newLevel, merged...)
	}
	return newLevel, nil
}

// buildNeighborhoods embeds every root's label text and k-means-partitions
// the roots into groups of roughly neighborhoodSize.
func (m *GenerativeModel) buildNeighborhoods(ctx context.Context, roots []models.Cluster) ([][]models.Cluster, error) {
	if len(roots) <= neighborhoodSize {
		return [][]models.Cluster{roots}, nil
	}

	vectors := make([][]float64, len(roots))
	g, gctx := errgroup.WithContext(ctx)
	for i, c := range roots {
		i, c := i, c
		g.Go(func() error {
			if err := m.sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer m.sem.Release(1)
			metrics.ExternalCall(gctx, "embed")
			vec, err := m.embedder.Embed(gctx, labelText(c))
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

	k := (len(roots) + neighborhoodSize - 1) / neighborhoodSize
	assignments, err := kmeans.Partition(vectors, k, 100, rand.New(rand.NewSource(m.seed)))
	if err != nil {
		return nil, fmt.Errorf("partition cluster neighborhoods: %w", err)
	}

	grouped := make(map[int][]models.Cluster)
	for i, a := range assignments {
		grouped[a] = append(grouped[a], roots[i])
	}
	ids := make([]int, 0, len(grouped))
	for id := range grouped {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	neighborhoods := make([][]models.Cluster, 0, len(ids))
	for _, id := range ids {
		neighborhoods = append(neighborhoods, grouped[id])
	}
	return neighborhoods, nil
}

// mergeNeighborhood proposes candidate parent labels for one neighborhood
// and assigns each member to a validated candidate. Proposing at most half
// as many labels as members guarantees the round shrinks the level.
func (m *GenerativeModel) mergeNeighborhood(ctx context.Context, hood []models.Cluster) ([]models.Cluster, error) {
	count := (len(hood) + 1) / 2
	if count < 1 {
		count = 1
	}

	if err := m.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	metrics.ExternalCall(ctx, "reduce")
	candidates, err := m.labels.ProposeLabels(ctx, hood, count)
	m.sem.Release(1)
	if err != nil {
		return nil, fmt.Errorf("propose labels: %w", errdefs.External(err))
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("model proposed no labels: %w", errdefs.ErrValidation)
	}
	if len(candidates) > count {
		candidates = candidates[:count]
	}
	names := make([]string, len(candidates))
	byName := make(map[string]ProposedLabel, len(candidates))
	for i, cand := range candidates {
		names[i] = cand.Name
		byName[cand.Name] = cand
	}

	assigned := make([]string, len(hood))
	g, gctx := errgroup.WithContext(ctx)
	for i, member := range hood {
		i, member := i, member
		g.Go(func() error {
			if err := m.sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer m.sem.Release(1)
			metrics.ExternalCall(gctx, "reduce")
			proposed, err := m.labels.AssignLabel(gctx, member, candidates)
			if err != nil {
				return fmt.Errorf("assign cluster %s: %w", member.ID, errdefs.External(err))
			}
			resolved, err := ResolveLabel(proposed, names)
			if err != nil {
				return fmt.Errorf("assign cluster %s: %w", member.ID, err)
			}
			assigned[i] = resolved
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Synthesize one parent per label actually used, in candidate order.
	children := make(map[string][]models.Cluster)
	for i, name := range assigned {
		children[name] = append(children[name], hood[i])
	}

	var out []models.Cluster
	for _, name := range names {
		members, ok := children[name]
		if !ok {
			continue
		}
		parent, updated, err := synthesizeParent(byName[name], members)
		if err != nil {
			return nil, err
		}
		out = append(out, parent)
		out = append(out, updated...)
	}
	return out, nil
}

// synthesizeParent builds a parent cluster over its members. The parent's
// chat ids are the union of member chat ids and its count is fixed here, at
// merge time, never re-derived at render time.
func synthesizeParent(label ProposedLabel, members []models.Cluster) (models.Cluster, []models.Cluster, error) {
	var chatIDs []string
	seen := make(map[string]bool)
	for _, member := range members {
		for _, id := range member.ChatIDs {
			if !seen[id] {
				seen[id] = true
				chatIDs = append(chatIDs, id)
			}
		}
	}

	metadata, err := cluster.CombineClusterMetadata(members)
	if err != nil {
		return models.Cluster{}, nil, err
	}

	parent := models.Cluster{
		ID:          models.NewClusterID(),
		Name:        label.Name,
		Description: label.Description,
		ChatIDs:     chatIDs,
		Count:       len(chatIDs),
		Metadata:    metadata,
	}
	updated := make([]models.Cluster, len(members))
	for i, member := range members {
		updated[i] = member.WithParent(parent.ID)
	}
	return parent, updated, nil
}

func labelText(c models.Cluster) string {
	return fmt.Sprintf("Name: %s\nDescription: %s", c.Name, c.Description)
}
