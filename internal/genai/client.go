// Package genai wraps the OpenAI API behind the pipeline's collaborator
// interfaces: structured-output generation for labeling and summarization,
// and embeddings with an optional Redis cache.
package genai

import (
	"fmt"
	"strings"

	"context"

	json "github.com/goccy/go-json"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"
)

// Client issues structured-output requests against the Responses API.
type Client struct {
	api             openai.Client
	model           string
	maxOutputTokens int64
}

// NewClient builds a structured-output client for the given model.
func NewClient(apiKey, model string) *Client {
	return &Client{
		api:             openai.NewClient(option.WithAPIKey(apiKey)),
		model:           model,
		maxOutputTokens: 2048,
	}
}

// generate sends the turns with a strict JSON schema derived from T and
// decodes the response into T.
func generate[T any](ctx context.Context, c *Client, schemaName, instructions string, turns []responses.ResponseInputItemUnionParam) (T, error) {
	var out T

	format := responses.ResponseFormatTextConfigUnionParam{
		OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
			Name:   schemaName,
			Schema: schemaFor[T](),
			Strict: openai.Bool(true),
			Type:   "json_schema",
		},
	}
	params := responses.ResponseNewParams{
		Model:           shared.ResponsesModel(c.model),
		MaxOutputTokens: openai.Int(c.maxOutputTokens),
		Instructions:    openai.String(instructions),
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: turns,
		},
		Text: responses.ResponseTextConfigParam{
			Format: format,
		},
	}

	resp, err := c.api.Responses.New(ctx, params)
	if err != nil {
		return out, fmt.Errorf("responses api: %w", err)
	}
	text := strings.TrimSpace(resp.OutputText())
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return out, fmt.Errorf("decode structured response: %w", err)
	}
	return out, nil
}

func userTurn(text string) responses.ResponseInputItemUnionParam {
	return responses.ResponseInputItemParamOfMessage(text, responses.EasyInputMessageRoleUser)
}

func assistantTurn(text string) responses.ResponseInputItemUnionParam {
	return responses.ResponseInputItemParamOfMessage(text, responses.EasyInputMessageRoleAssistant)
}
