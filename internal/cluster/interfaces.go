// Package cluster implements the base clustering stage: embed every
// conversation summary, partition the embeddings into disjoint groups, and
// generate a contrastively-sharpened name and description for each group.
package cluster

import (
	"context"

	"github.com/thebtf/prism/pkg/models"
)

// Embedder converts text into a vector embedding. Implementations are called
// concurrently; the caller bounds outstanding calls with a shared semaphore.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Labeler generates a cluster name and two-sentence description from the
// group's member summaries plus contrastive examples drawn from other groups.
type Labeler interface {
	Label(ctx context.Context, positive, contrastive []models.ConversationSummary) (models.GeneratedCluster, error)
}

// Embedded pairs a summary with its embedding vector.
type Embedded struct {
	Summary   models.ConversationSummary
	Embedding []float64
}

// Method partitions embedded summaries into disjoint groups keyed by an
// arbitrary group id. The partition must cover every input exactly once.
type Method interface {
	Cluster(items []Embedded) (map[int][]models.ConversationSummary, error)
}
