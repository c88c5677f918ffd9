package cluster

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/thebtf/prism/internal/errdefs"
	"github.com/thebtf/prism/internal/metrics"
	"github.com/thebtf/prism/pkg/models"
)

const (
	// DefaultMaxConcurrent bounds outstanding external calls across the
	// embedding and labeling steps combined.
	DefaultMaxConcurrent = 50

	// DefaultContrastiveExamples is the number of cross-group summaries
	// supplied to the labeler alongside each group's own members.
	DefaultContrastiveExamples = 10
)

// Config tunes the base clustering model. Zero values fall back to defaults.
type Config struct {
	MaxConcurrent       int64
	ContrastiveExamples int
	Seed                int64 // contrastive sampling seed; 0 means time-based
}

// Model is the base clusterer. It produces leaf clusters with no parent.
type Model struct {
	embedder Embedder
	labeler  Labeler
	method   Method
	sem      *semaphore.Weighted
	desired  int
	rng      *rand.Rand
}

// NewModel builds a base clustering model from its three collaborators.
func NewModel(embedder Embedder, labeler Labeler, method Method, cfg Config) *Model {
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	desired := cfg.ContrastiveExamples
	if desired <= 0 {
		desired = DefaultContrastiveExamples
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Model{
		embedder: embedder,
		labeler:  labeler,
		method:   method,
		sem:      semaphore.NewWeighted(maxConcurrent),
		desired:  desired,
		rng:      rand.New(rand.NewSource(seed)),
	}
}

// ClusterSummaries embeds all summaries, partitions them, and labels every
// group. A single failed embedding or labeling call cancels the whole batch
// and fails the stage; there is no partial result.
func (m *Model) ClusterSummaries(ctx context.Context, summaries []models.ConversationSummary) ([]models.Cluster, error) {
	if len(summaries) == 0 {
		return nil, fmt.Errorf("no summaries to cluster: %w", errdefs.ErrValidation)
	}

	start := time.Now()
	embeddings, err := m.embedAll(ctx, summaries)
	if err != nil {
		return nil, err
	}
	log.Info().Int("summaries", len(summaries)).Dur("took", time.Since(start)).Msg("Embedded summaries")

	items := make([]Embedded, len(summaries))
	for i, s := range summaries {
		items[i] = Embedded{Summary: s, Embedding: embeddings[i]}
	}
	groups, err := m.method.Cluster(items)
	if err != nil {
		return nil, fmt.Errorf("partition summaries: %w", err)
	}
	if err := validatePartition(summaries, groups); err != nil {
		return nil, err
	}

	clusters, err := m.labelGroups(ctx, groups)
	if err != nil {
		return nil, err
	}

	log.Info().Int("clusters", len(clusters)).Msg("Generated base clusters")
	return clusters, nil
}

// embedAll runs every embedding call concurrently under the shared semaphore.
// Results are written positionally: the i-th vector belongs to the i-th
// summary regardless of completion order.
func (m *Model) embedAll(ctx context.Context, summaries []models.ConversationSummary) ([][]float64, error) {
	embeddings := make([][]float64, len(summaries))
	g, ctx := errgroup.WithContext(ctx)
	for i, s := range summaries {
		i, s := i, s
		g.Go(func() error {
			if err := m.sem.Acquire(ctx, 1); err != nil {
				return err
			}
			defer m.sem.Release(1)
			metrics.ExternalCall(ctx, "embed")
			vec, err := m.embedder.Embed(ctx, s.EmbeddableText())
			if err != nil {
				return fmt.Errorf("embed summary %s: %w", s.ChatID, errdefs.External(err))
			}
			embeddings[i] = vec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return embeddings, nil
}

// labelGroups generates a name and description per group. Contrastive
// samples are drawn up front so the concurrent labeling calls share no
// mutable state beyond the semaphore.
func (m *Model) labelGroups(ctx context.Context, groups map[int][]models.ConversationSummary) ([]models.Cluster, error) {
	groupIDs := make([]int, 0, len(groups))
	for id := range groups {
		groupIDs = append(groupIDs, id)
	}
	sort.Ints(groupIDs)

	contrastive := make([][]models.ConversationSummary, len(groupIDs))
	for i, id := range groupIDs {
		contrastive[i] = m.contrastiveExamples(id, groups)
	}

	clusters := make([]models.Cluster, len(groupIDs))
	g, ctx := errgroup.WithContext(ctx)
	for i, id := range groupIDs {
		i, id := i, id
		members := groups[id]
		examples := contrastive[i]
		g.Go(func() error {
			if err := m.sem.Acquire(ctx, 1); err != nil {
				return err
			}
			defer m.sem.Release(1)
			metrics.ExternalCall(ctx, "label")
			generated, err := m.labeler.Label(ctx, members, examples)
			if err != nil {
				return fmt.Errorf("label group %d: %w", id, errdefs.External(err))
			}

			metadata, err := CombineMetadata(members)
			if err != nil {
				return fmt.Errorf("group %d metadata: %w", id, err)
			}
			chatIDs := make([]string, len(members))
			for j, s := range members {
				chatIDs[j] = s.ChatID
			}
			clusters[i] = models.NewLeafCluster(generated.Name, generated.Summary, chatIDs, metadata)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return clusters, nil
}

// contrastiveExamples returns up to the desired count of summaries from all
// groups other than groupID. When fewer are available, every one is used;
// otherwise the sample is uniform without replacement across all non-members,
// not stratified per cluster.
func (m *Model) contrastiveExamples(groupID int, groups map[int][]models.ConversationSummary) []models.ConversationSummary {
	var pool []models.ConversationSummary
	ids := make([]int, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		if id == groupID {
			continue
		}
		pool = append(pool, groups[id]...)
	}

	if len(pool) <= m.desired {
		return pool
	}

	picked := make([]models.ConversationSummary, m.desired)
	for i, idx := range m.rng.Perm(len(pool))[:m.desired] {
		picked[i] = pool[idx]
	}
	return picked
}

// validatePartition enforces the hard invariant that the groups cover every
// summary exactly once.
func validatePartition(summaries []models.ConversationSummary, groups map[int][]models.ConversationSummary) error {
	seen := make(map[string]bool, len(summaries))
	total := 0
	for id, members := range groups {
		total += len(members)
		for _, s := range members {
			if seen[s.ChatID] {
				return fmt.Errorf("summary %s assigned to more than one group (group %d): %w", s.ChatID, id, errdefs.ErrValidation)
			}
			seen[s.ChatID] = true
		}
	}
	if total != len(summaries) {
		return fmt.Errorf("partition covers %d of %d summaries: %w", total, len(summaries), errdefs.ErrValidation)
	}
	for _, s := range summaries {
		if !seen[s.ChatID] {
			return fmt.Errorf("summary %s missing from partition: %w", s.ChatID, errdefs.ErrValidation)
		}
	}
	return nil
}
