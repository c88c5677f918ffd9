// Package summarizer turns raw conversations into one-line task summaries,
// one per conversation, with pluggable metadata extraction.
package summarizer

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

// Generator produces the structured summary text for one conversation.
type Generator interface {
	GenerateSummary(ctx context.Context, conversation models.Conversation) (models.GeneratedSummary, error)
}

// Extractor derives one metadata property from a conversation. Two
// extractors producing the same property name is a configuration error.
type Extractor func(ctx context.Context, conversation models.Conversation) (models.ExtractedProperty, error)

// Model runs summarization concurrently under a shared semaphore bound.
type Model struct {
	generator  Generator
	extractors []Extractor
	sem        *semaphore.Weighted
}

// Option configures a Model.
type Option func(*Model)

// WithExtractors appends metadata extractors run on every conversation.
func WithExtractors(extractors ...Extractor) Option {
	return func(m *Model) {
		m.extractors = append(m.extractors, extractors...)
	}
}

// WithMaxConcurrent overrides the external-call concurrency bound.
func WithMaxConcurrent(n int64) Option {
	return func(m *Model) {
		m.sem = semaphore.NewWeighted(n)
	}
}

// NewModel builds a summarization model.
func NewModel(generator Generator, opts ...Option) *Model {
	m := &Model{
		generator: generator,
		sem:       semaphore.NewWeighted(cluster.DefaultMaxConcurrent),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Summarize produces one summary per conversation. Output order matches
// input order; a single failed call fails the whole batch.
func (m *Model) Summarize(ctx context.Context, conversations []models.Conversation) ([]models.ConversationSummary, error) {
	start := time.Now()
	summaries := make([]models.ConversationSummary, len(conversations))

	g, ctx := errgroup.WithContext(ctx)
	for i, conversation := range conversations {
		i, conversation := i, conversation
		g.Go(func() error {
			if err := m.sem.Acquire(ctx, 1); err != nil {
				return err
			}
			defer m.sem.Release(1)
			metrics.ExternalCall(ctx, "summarize")
			generated, err := m.generator.GenerateSummary(ctx, conversation)
			if err != nil {
				return fmt.Errorf("summarize %s: %w", conversation.ChatID, errdefs.External(err))
			}
			metadata, err := m.extractMetadata(ctx, conversation)
			if err != nil {
				return err
			}
			summaries[i] = models.ConversationSummary{
				ChatID:   conversation.ChatID,
				Summary:  generated.Summary,
				Metadata: metadata,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	log.Info().Int("conversations", len(conversations)).Dur("took", time.Since(start)).Msg("Summarized conversations")
	return summaries, nil
}

// extractMetadata runs the fixed conversation_turns property plus every
// configured extractor, collecting results in insertion order.
func (m *Model) extractMetadata(ctx context.Context, conversation models.Conversation) (*models.PropertySet, error) {
	set := models.NewPropertySet()
	if err := set.Add(models.ExtractedProperty{Name: "conversation_turns", Value: int64(len(conversation.Messages))}); err != nil {
		return nil, err
	}
	for _, extract := range m.extractors {
		prop, err := extract(ctx, conversation)
		if err != nil {
			return nil, fmt.Errorf("extract property for %s: %w", conversation.ChatID, err)
		}
		if err := set.Add(prop); err != nil {
			return nil, err
		}
	}
	return set, nil
}
