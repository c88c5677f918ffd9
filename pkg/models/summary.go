package models

// ConversationSummary is the one-per-conversation output of the
// summarization stage. It is immutable once produced.
type ConversationSummary struct {
	ChatID   string       `json:"chat_id"`
	Summary  string       `json:"summary"`
	Metadata *PropertySet `json:"metadata,omitempty"`
}

// EmbeddableText returns the text representation used for embedding and for
// prompt examples.
func (s ConversationSummary) EmbeddableText() string {
	return s.Summary
}

// GeneratedSummary is the structured response of the summarization model.
type GeneratedSummary struct {
	Summary string `json:"summary"`
}
