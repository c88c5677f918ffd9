// Package pipeline sequences the clustering stages behind per-stage
// checkpoints and renders the resulting hierarchy. Stages compose as full
// barriers: no stage starts before the previous stage's entire output is
// materialized, and a stage with an existing checkpoint is skipped entirely.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thebtf/prism/internal/checkpoint"
	"github.com/thebtf/prism/internal/metrics"
	"github.com/thebtf/prism/pkg/models"
)

// Summarizer produces one summary per conversation.
type Summarizer interface {
	Summarize(ctx context.Context, conversations []models.Conversation) ([]models.ConversationSummary, error)
}

// BaseClusterer partitions summaries into labeled leaf clusters.
type BaseClusterer interface {
	ClusterSummaries(ctx context.Context, summaries []models.ConversationSummary) ([]models.Cluster, error)
}

// Reducer merges clusters into a bounded hierarchy.
type Reducer interface {
	Reduce(ctx context.Context, clusters []models.Cluster) ([]models.Cluster, error)
}

// Projector adds 2D coordinates and a level to every cluster.
type Projector interface {
	ReduceDimensionality(ctx context.Context, clusters []models.Cluster) ([]models.ProjectedCluster, error)
}

// Pipeline wires the stages together. All state lives in the checkpoint
// store and the collaborator values passed in; there are no globals, so
// independent pipelines can run side by side in tests.
type Pipeline struct {
	store      *checkpoint.Store
	summarizer Summarizer
	clusterer  BaseClusterer
	reducer    Reducer
	projector  Projector
}

// New assembles a pipeline from its collaborators.
func New(store *checkpoint.Store, summarizer Summarizer, clusterer BaseClusterer, reducer Reducer, projector Projector) *Pipeline {
	return &Pipeline{
		store:      store,
		summarizer: summarizer,
		clusterer:  clusterer,
		reducer:    reducer,
		projector:  projector,
	}
}

// Run executes the full pipeline: conversations are checkpointed raw, then
// summarized, base-clustered, reduced, and projected, each stage behind its
// own checkpoint. Any stage error is fatal; rerunning resumes at the first
// stage without a checkpoint.
func (p *Pipeline) Run(ctx context.Context, conversations []models.Conversation) ([]models.ProjectedCluster, error) {
	if p.store.Enabled() {
		if err := checkpoint.Save(p.store, checkpoint.ConversationsFile, conversations); err != nil {
			return nil, err
		}
	}

	summaries, err := p.SummarizeConversations(ctx, conversations)
	if err != nil {
		return nil, err
	}
	clusters, err := p.GenerateBaseClusters(ctx, summaries)
	if err != nil {
		return nil, err
	}
	reduced, err := p.ReduceClusters(ctx, clusters)
	if err != nil {
		return nil, err
	}
	return p.ProjectClusters(ctx, reduced)
}

// SummarizeConversations runs the summarization stage, or returns its
// checkpoint verbatim.
func (p *Pipeline) SummarizeConversations(ctx context.Context, conversations []models.Conversation) ([]models.ConversationSummary, error) {
	cached, err := checkpoint.Load[models.ConversationSummary](p.store, checkpoint.SummariesFile)
	if err != nil {
		return nil, err
	}
	if len(cached) > 0 {
		// Checkpoints are keyed by stage name only, not input identity, so a
		// changed corpus with an old checkpoint dir reuses stale results.
		log.Warn().Int("records", len(cached)).Msg("Reusing summaries checkpoint; pass override to recompute")
		return cached, nil
	}

	start := time.Now()
	summaries, err := p.summarizer.Summarize(ctx, conversations)
	if err != nil {
		return nil, fmt.Errorf("summarize conversations: %w", err)
	}
	metrics.StageCompleted(ctx, "summarize", time.Since(start))

	if err := checkpoint.Save(p.store, checkpoint.SummariesFile, summaries); err != nil {
		return nil, err
	}
	return summaries, nil
}

// GenerateBaseClusters runs the base clustering stage, or returns its
// checkpoint verbatim.
func (p *Pipeline) GenerateBaseClusters(ctx context.Context, summaries []models.ConversationSummary) ([]models.Cluster, error) {
	cached, err := checkpoint.Load[models.Cluster](p.store, checkpoint.ClustersFile)
	if err != nil {
		return nil, err
	}
	if len(cached) > 0 {
		return cached, nil
	}

	start := time.Now()
	clusters, err := p.clusterer.ClusterSummaries(ctx, summaries)
	if err != nil {
		return nil, fmt.Errorf("generate base clusters: %w", err)
	}
	metrics.StageCompleted(ctx, "cluster", time.Since(start))

	if err := checkpoint.Save(p.store, checkpoint.ClustersFile, clusters); err != nil {
		return nil, err
	}
	return clusters, nil
}

// ReduceClusters runs the meta-cluster reduction stage, or returns its
// checkpoint verbatim.
func (p *Pipeline) ReduceClusters(ctx context.Context, clusters []models.Cluster) ([]models.Cluster, error) {
	cached, err := checkpoint.Load[models.Cluster](p.store, checkpoint.MetaClustersFile)
	if err != nil {
		return nil, err
	}
	if len(cached) > 0 {
		return cached, nil
	}

	start := time.Now()
	reduced, err := p.reducer.Reduce(ctx, clusters)
	if err != nil {
		return nil, fmt.Errorf("reduce clusters: %w", err)
	}
	metrics.StageCompleted(ctx, "reduce", time.Since(start))

	if err := checkpoint.Save(p.store, checkpoint.MetaClustersFile, reduced); err != nil {
		return nil, err
	}
	return reduced, nil
}

// ProjectClusters runs the dimensionality projection stage, or returns its
// checkpoint verbatim.
func (p *Pipeline) ProjectClusters(ctx context.Context, clusters []models.Cluster) ([]models.ProjectedCluster, error) {
	cached, err := checkpoint.Load[models.ProjectedCluster](p.store, checkpoint.DimensionalityFile)
	if err != nil {
		return nil, err
	}
	if len(cached) > 0 {
		return cached, nil
	}

	start := time.Now()
	projected, err := p.projector.ReduceDimensionality(ctx, clusters)
	if err != nil {
		return nil, fmt.Errorf("project clusters: %w", err)
	}
	metrics.StageCompleted(ctx, "project", time.Since(start))

	if err := checkpoint.Save(p.store, checkpoint.DimensionalityFile, projected); err != nil {
		return nil, err
	}
	return projected, nil
}
