package pipeline

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/prism/internal/checkpoint"
	"github.com/thebtf/prism/pkg/models"
)

type countingSummarizer struct{ calls int }

func (s *countingSummarizer) Summarize(_ context.Context, conversations []models.Conversation) ([]models.ConversationSummary, error) {
	s.calls++
	summaries := make([]models.ConversationSummary, len(conversations))
	for i, c := range conversations {
		summaries[i] = models.ConversationSummary{ChatID: c.ChatID, Summary: "task " + c.ChatID}
	}
	return summaries, nil
}

type countingClusterer struct{ calls int }

func (c *countingClusterer) ClusterSummaries(_ context.Context, summaries []models.ConversationSummary) ([]models.Cluster, error) {
	c.calls++
	chatIDs := make([]string, len(summaries))
	for i, s := range summaries {
		chatIDs[i] = s.ChatID
	}
	return []models.Cluster{models.NewLeafCluster("All", "everything", chatIDs, nil)}, nil
}

type countingReducer struct{ calls int }

func (r *countingReducer) Reduce(_ context.Context, clusters []models.Cluster) ([]models.Cluster, error) {
	r.calls++
	return clusters, nil
}

type countingProjector struct{ calls int }

func (p *countingProjector) ReduceDimensionality(_ context.Context, clusters []models.Cluster) ([]models.ProjectedCluster, error) {
	p.calls++
	projected := make([]models.ProjectedCluster, len(clusters))
	for i, c := range clusters {
		projected[i] = models.ProjectedCluster{Cluster: c, X: 1, Y: 2}
	}
	return projected, nil
}

type failingSummarizer struct{}

func (failingSummarizer) Summarize(context.Context, []models.Conversation) ([]models.ConversationSummary, error) {
	return nil, fmt.Errorf("model unavailable")
}

func makeConversations(n int) []models.Conversation {
	conversations := make([]models.Conversation, n)
	for i := range conversations {
		conversations[i] = models.Conversation{
			ChatID:   fmt.Sprintf("chat-%03d", i),
			Messages: []models.Message{{Role: "user", Content: "hello"}},
		}
	}
	return conversations
}

func newTestPipeline(store *checkpoint.Store) (*Pipeline, *countingSummarizer, *countingClusterer, *countingReducer, *countingProjector) {
	s := &countingSummarizer{}
	c := &countingClusterer{}
	r := &countingReducer{}
	p := &countingProjector{}
	return New(store, s, c, r, p), s, c, r, p
}

func TestRun_AllStages(t *testing.T) {
	store, err := checkpoint.Open(t.TempDir(), false)
	require.NoError(t, err)
	pipeline, s, c, r, p := newTestPipeline(store)

	projected, err := pipeline.Run(context.Background(), makeConversations(10))
	require.NoError(t, err)
	require.Len(t, projected, 1)
	assert.Equal(t, 1, s.calls)
	assert.Equal(t, 1, c.calls)
	assert.Equal(t, 1, r.calls)
	assert.Equal(t, 1, p.calls)

	// Every stage left its checkpoint behind, raw conversations included.
	for _, name := range []string{
		checkpoint.ConversationsFile,
		checkpoint.SummariesFile,
		checkpoint.ClustersFile,
		checkpoint.MetaClustersFile,
		checkpoint.DimensionalityFile,
	} {
		loaded, err := checkpoint.Load[map[string]any](store, name)
		require.NoError(t, err, name)
		assert.NotEmpty(t, loaded, name)
	}
}

func TestRun_SecondRunSkipsAllStages(t *testing.T) {
	dir := t.TempDir()
	store, err := checkpoint.Open(dir, false)
	require.NoError(t, err)

	pipeline, _, _, _, _ := newTestPipeline(store)
	first, err := pipeline.Run(context.Background(), makeConversations(10))
	require.NoError(t, err)

	store, err = checkpoint.Open(dir, false)
	require.NoError(t, err)
	pipeline, s, c, r, p := newTestPipeline(store)
	second, err := pipeline.Run(context.Background(), makeConversations(10))
	require.NoError(t, err)

	assert.Zero(t, s.calls)
	assert.Zero(t, c.calls)
	assert.Zero(t, r.calls)
	assert.Zero(t, p.calls)
	assert.Equal(t, first, second)
}

func TestRun_ResumesAfterStageFailure(t *testing.T) {
	dir := t.TempDir()
	store, err := checkpoint.Open(dir, false)
	require.NoError(t, err)

	clusterer := &countingClusterer{}
	reducer := &countingReducer{}
	projector := &countingProjector{}

	// First attempt: summarization works, later stages work; simulate a
	// failed run by running only the summary stage.
	summarizer := &countingSummarizer{}
	p1 := New(store, summarizer, clusterer, reducer, projector)
	_, err = p1.SummarizeConversations(context.Background(), makeConversations(10))
	require.NoError(t, err)

	// Second run with a summarizer that would fail: the checkpoint makes
	// its failure irrelevant.
	p2 := New(store, failingSummarizer{}, clusterer, reducer, projector)
	projected, err := p2.Run(context.Background(), makeConversations(10))
	require.NoError(t, err)
	assert.NotEmpty(t, projected)
}

func TestRun_StageFailureIsFatal(t *testing.T) {
	store := checkpoint.Disabled()
	p := New(store, failingSummarizer{}, &countingClusterer{}, &countingReducer{}, &countingProjector{})

	_, err := p.Run(context.Background(), makeConversations(5))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "summarize conversations")
}

func TestRun_DisabledStoreRecomputes(t *testing.T) {
	store := checkpoint.Disabled()
	pipeline, s, _, _, _ := newTestPipeline(store)

	_, err := pipeline.Run(context.Background(), makeConversations(5))
	require.NoError(t, err)
	_, err = pipeline.Run(context.Background(), makeConversations(5))
	require.NoError(t, err)
	assert.Equal(t, 2, s.calls)
}
