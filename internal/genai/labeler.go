package genai

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go/responses"

	"github.com/thebtf/prism/internal/metacluster"
	"github.com/thebtf/prism/pkg/models"
)

// Labeler generates base-cluster names and descriptions via contrastive
// structured output. It implements cluster.Labeler.
type Labeler struct {
	client *Client
}

// NewLabeler wraps a structured-output client.
func NewLabeler(client *Client) *Labeler {
	return &Labeler{client: client}
}

// Label produces a name and two-sentence description for the group of
// positive examples, sharpened against the contrastive examples.
func (l *Labeler) Label(ctx context.Context, positive, contrastive []models.ConversationSummary) (models.GeneratedCluster, error) {
	var sb strings.Builder
	sb.WriteString("Below are the related statements:\n<positive_examples>\n")
	for _, s := range positive {
		sb.WriteString(s.EmbeddableText())
		sb.WriteByte('\n')
	}
	sb.WriteString("</positive_examples>\n\n")
	sb.WriteString("For context, here are statements from nearby groups that are NOT part of the group you're summarizing:\n<contrastive_examples>\n")
	for _, s := range contrastive {
		sb.WriteString(s.EmbeddableText())
		sb.WriteByte('\n')
	}
	sb.WriteString("</contrastive_examples>\n\n")
	sb.WriteString("Remember to analyze both the statements and the contrastive statements carefully to ensure your summary and name accurately represent the specific group while distinguishing it from others.")

	turns := []responses.ResponseInputItemUnionParam{
		userTurn(sb.String()),
		assistantTurn(labelPriming),
	}
	generated, err := generate[models.GeneratedCluster](ctx, l.client, "GeneratedCluster", labelInstructions, turns)
	if err != nil {
		return models.GeneratedCluster{}, fmt.Errorf("label cluster: %w", err)
	}
	return generated, nil
}

// MetaLabeler implements metacluster.LabelModel: proposing higher-level
// labels for a neighborhood of clusters and assigning clusters to them.
type MetaLabeler struct {
	client *Client
}

// NewMetaLabeler wraps a structured-output client.
func NewMetaLabeler(client *Client) *MetaLabeler {
	return &MetaLabeler{client: client}
}

type proposedLabels struct {
	Labels []metacluster.ProposedLabel `json:"labels"`
}

// ProposeLabels suggests up to count broader categories covering the
// neighborhood's clusters.
func (m *MetaLabeler) ProposeLabels(ctx context.Context, clusters []models.Cluster, count int) ([]metacluster.ProposedLabel, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Propose at most %d higher-level categories for these clusters:\n<clusters>\n", count)
	for _, c := range clusters {
		fmt.Fprintf(&sb, "<cluster>Name: %s\nDescription: %s</cluster>\n", c.Name, c.Description)
	}
	sb.WriteString("</clusters>")

	out, err := generate[proposedLabels](ctx, m.client, "ProposedLabels", proposeInstructions, []responses.ResponseInputItemUnionParam{userTurn(sb.String())})
	if err != nil {
		return nil, fmt.Errorf("propose labels: %w", err)
	}
	return out.Labels, nil
}

type assignedLabel struct {
	Name string `json:"name"`
}

// AssignLabel picks the candidate category that best covers the cluster.
func (m *MetaLabeler) AssignLabel(ctx context.Context, c models.Cluster, candidates []metacluster.ProposedLabel) (string, error) {
	var sb strings.Builder
	sb.WriteString("Candidate categories:\n<candidates>\n")
	for _, cand := range candidates {
		fmt.Fprintf(&sb, "<candidate>%s: %s</candidate>\n", cand.Name, cand.Description)
	}
	sb.WriteString("</candidates>\n\n")
	fmt.Fprintf(&sb, "Cluster to categorize:\nName: %s\nDescription: %s", c.Name, c.Description)

	out, err := generate[assignedLabel](ctx, m.client, "AssignedLabel", assignInstructions, []responses.ResponseInputItemUnionParam{userTurn(sb.String())})
	if err != nil {
		return "", fmt.Errorf("assign label: %w", err)
	}
	return strings.TrimSpace(out.Name), nil
}
