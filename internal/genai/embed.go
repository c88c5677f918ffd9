package genai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// EmbeddingCache is an optional read-through cache for embedding vectors.
type EmbeddingCache interface {
	Get(model, text string) ([]float64, bool)
	Set(model, text string, vector []float64)
}

// EmbeddingClient computes embeddings via the OpenAI API. It implements
// cluster.Embedder; the caller bounds concurrency.
type EmbeddingClient struct {
	api   openai.Client
	model string
	cache EmbeddingCache
}

// NewEmbeddingClient builds an embedding client; cache may be nil.
func NewEmbeddingClient(apiKey, model string, cache EmbeddingCache) *EmbeddingClient {
	return &EmbeddingClient{
		api:   openai.NewClient(option.WithAPIKey(apiKey)),
		model: model,
		cache: cache,
	}
}

// Embed returns the embedding vector for the text.
func (e *EmbeddingClient) Embed(ctx context.Context, text string) ([]float64, error) {
	if e.cache != nil {
		if vec, ok := e.cache.Get(e.model, text); ok {
			return vec, nil
		}
	}

	resp, err := e.api.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(e.model),
		Input: openai.EmbeddingNewParamsInputUnion{
			OfString: openai.String(text),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("embeddings api: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("embeddings api returned no data")
	}
	vector := resp.Data[0].Embedding

	if e.cache != nil {
		e.cache.Set(e.model, text, vector)
	}
	return vector, nil
}
