package pipeline

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/prism/internal/checkpoint"
	"github.com/thebtf/prism/internal/cluster"
	"github.com/thebtf/prism/internal/kmeans"
	"github.com/thebtf/prism/internal/metacluster"
	"github.com/thebtf/prism/internal/projection"
	"github.com/thebtf/prism/pkg/models"
)

// topicEmbedder maps text to a vector near one of several topic anchors,
// keyed by a topic marker in the text, so k-means recovers the topics.
type topicEmbedder struct{}

func (topicEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	topic := 0
	for i := 0; i < 5; i++ {
		if containsTopic(text, i) {
			topic = i
			break
		}
	}
	vec := make([]float64, 8)
	vec[topic] = 100
	for i := range vec {
		vec[i] += rng.NormFloat64() * 0.1
	}
	return vec, nil
}

func containsTopic(text string, topic int) bool {
	marker := fmt.Sprintf("topic-%d", topic)
	for i := 0; i+len(marker) <= len(text); i++ {
		if text[i:i+len(marker)] == marker {
			return true
		}
	}
	return false
}

type sequenceLabeler struct {
	mu sync.Mutex
	n  int
}

func (l *sequenceLabeler) Label(_ context.Context, positive, _ []models.ConversationSummary) (models.GeneratedCluster, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.n++
	return models.GeneratedCluster{
		Name:    fmt.Sprintf("Base cluster %d", l.n),
		Summary: "related requests",
	}, nil
}

// mergeLabels proposes generic labels and assigns every cluster to the
// first candidate, collapsing each neighborhood hard.
type mergeLabels struct {
	mu sync.Mutex
	n  int
}

func (m *mergeLabels) ProposeLabels(_ context.Context, _ []models.Cluster, count int) ([]metacluster.ProposedLabel, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.n++
	labels := make([]metacluster.ProposedLabel, 0, count)
	for i := 0; i < count; i++ {
		labels = append(labels, metacluster.ProposedLabel{
			Name:        fmt.Sprintf("Meta category %d-%d", m.n, i),
			Description: "a broader grouping",
		})
	}
	return labels, nil
}

func (m *mergeLabels) AssignLabel(_ context.Context, _ models.Cluster, candidates []metacluster.ProposedLabel) (string, error) {
	return candidates[0].Name, nil
}

type passthroughSummarizer struct{}

func (passthroughSummarizer) Summarize(_ context.Context, conversations []models.Conversation) ([]models.ConversationSummary, error) {
	summaries := make([]models.ConversationSummary, len(conversations))
	for i, c := range conversations {
		summaries[i] = models.ConversationSummary{
			ChatID:  c.ChatID,
			Summary: c.Messages[0].Content,
		}
	}
	return summaries, nil
}

func TestPipeline_EndToEnd(t *testing.T) {
	conversations := make([]models.Conversation, 100)
	for i := range conversations {
		conversations[i] = models.Conversation{
			ChatID: fmt.Sprintf("chat-%03d", i),
			Messages: []models.Message{{
				Role:    "user",
				Content: fmt.Sprintf("The user asked about topic-%d variant %d", i%5, i),
			}},
		}
	}

	embedder := topicEmbedder{}
	method := kmeans.New()
	method.Seed = 7

	clusterer := cluster.NewModel(embedder, &sequenceLabeler{}, method, cluster.Config{Seed: 7})
	reducer := metacluster.NewReducer(metacluster.NewGenerativeModel(embedder, &mergeLabels{}, metacluster.Options{
		MaxClusters: 5,
		Seed:        7,
	}))
	projector := projection.NewModel(embedder, 10)

	store, err := checkpoint.Open(t.TempDir(), false)
	require.NoError(t, err)

	p := New(store, passthroughSummarizer{}, clusterer, reducer, projector)
	projected, err := p.Run(context.Background(), conversations)
	require.NoError(t, err)
	require.NotEmpty(t, projected)

	byID := make(map[string]models.ProjectedCluster, len(projected))
	for _, pc := range projected {
		_, dup := byID[pc.ID]
		require.False(t, dup, "duplicate cluster id %s", pc.ID)
		byID[pc.ID] = pc
	}

	roots := 0
	for _, pc := range projected {
		if pc.ParentID == "" {
			roots++
			assert.Equal(t, 0, pc.Level)
		} else {
			parent, ok := byID[pc.ParentID]
			require.True(t, ok, "dangling parent %s", pc.ParentID)
			assert.Equal(t, parent.Level+1, pc.Level)
		}
		assert.Equal(t, len(pc.ChatIDs), pc.Count)
	}
	assert.LessOrEqual(t, roots, 5)
	assert.Positive(t, roots)

	// Every conversation is reachable from exactly one root.
	children := make(map[string][]models.ProjectedCluster)
	for _, pc := range projected {
		if pc.ParentID != "" {
			children[pc.ParentID] = append(children[pc.ParentID], pc)
		}
	}
	seen := make(map[string]int)
	for _, pc := range projected {
		if pc.ParentID != "" {
			continue
		}
		stack := []models.ProjectedCluster{pc}
		for len(stack) > 0 {
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			kids := children[cur.ID]
			if len(kids) == 0 {
				for _, chatID := range cur.ChatIDs {
					seen[chatID]++
				}
			}
			stack = append(stack, kids...)
		}
	}
	for _, c := range conversations {
		assert.Equal(t, 1, seen[c.ChatID], c.ChatID)
	}

	// The flattened output renders as a well-formed tree.
	flat := make([]models.Cluster, len(projected))
	for i, pc := range projected {
		flat[i] = pc.Cluster
	}
	rendered, err := RenderTree(flat)
	require.NoError(t, err)
	assert.Contains(t, rendered, "Clusters (100 conversations)")
	assert.Contains(t, rendered, "╚══")
}
