package genai

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go/responses"
	"github.com/tiktoken-go/tokenizer"

	"github.com/thebtf/prism/internal/privacy"
	"github.com/thebtf/prism/pkg/models"
)

// maxConversationTokens bounds the transcript portion of a summarization
// prompt. Longer conversations are truncated from the end.
const maxConversationTokens = 8000

// SummaryGenerator produces structured per-conversation summaries. It
// implements summarizer.Generator.
type SummaryGenerator struct {
	client *Client
	codec  tokenizer.Codec
}

// NewSummaryGenerator wraps a structured-output client.
func NewSummaryGenerator(client *Client) (*SummaryGenerator, error) {
	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer: %w", err)
	}
	return &SummaryGenerator{client: client, codec: codec}, nil
}

// GenerateSummary summarizes one conversation into a single task statement.
func (g *SummaryGenerator) GenerateSummary(ctx context.Context, conversation models.Conversation) (models.GeneratedSummary, error) {
	var sb strings.Builder
	sb.WriteString("Here is the conversation\n<messages>\n")
	for _, m := range conversation.Messages {
		fmt.Fprintf(&sb, "<message>%s: %s</message>\n", m.Role, privacy.Clean(m.Content))
	}
	sb.WriteString("</messages>\n\n")
	sb.WriteString("When answering, do not include any personally identifiable information (PII), like names, locations, phone numbers, email addresses, and so on. When answering, do not include any proper nouns. Make sure that you're clear, concise and that you get to the point in at most two sentences.")

	input, err := g.truncate(sb.String(), maxConversationTokens)
	if err != nil {
		return models.GeneratedSummary{}, err
	}

	generated, err := generate[models.GeneratedSummary](ctx, g.client, "GeneratedSummary", summaryInstructions, []responses.ResponseInputItemUnionParam{userTurn(input)})
	if err != nil {
		return models.GeneratedSummary{}, fmt.Errorf("summarize conversation %s: %w", conversation.ChatID, err)
	}
	return generated, nil
}

// truncate drops tokens past the budget, keeping the head of the prompt.
func (g *SummaryGenerator) truncate(text string, budget int) (string, error) {
	ids, _, err := g.codec.Encode(text)
	if err != nil {
		return "", fmt.Errorf("tokenize prompt: %w", err)
	}
	if len(ids) <= budget {
		return text, nil
	}
	truncated, err := g.codec.Decode(ids[:budget])
	if err != nil {
		return "", fmt.Errorf("detokenize prompt: %w", err)
	}
	return truncated, nil
}
