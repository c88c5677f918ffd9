// Package models contains the domain types shared across the prism pipeline:
// conversations, summaries, clusters, and their projected forms.
package models

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/thebtf/prism/internal/errdefs"
)

// Message is a single turn in a conversation.
type Message struct {
	CreatedAt time.Time `json:"created_at"`
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
}

// Conversation is an ordered sequence of user/assistant turns with a unique
// id and timestamp. Conversations are immutable once loaded.
type Conversation struct {
	ChatID    string    `json:"chat_id"`
	CreatedAt time.Time `json:"created_at"`
	Messages  []Message `json:"messages"`
}

// claudeDump mirrors the Claude conversation export format.
type claudeDump struct {
	UUID         string `json:"uuid"`
	CreatedAt    any    `json:"created_at"`
	ChatMessages []struct {
		CreatedAt any    `json:"created_at"`
		Sender    string `json:"sender"`
		Content   []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"chat_messages"`
}

// LoadClaudeDump reads conversations from a Claude-style JSON export.
// Messages are ordered by timestamp, with the human turn first on ties.
func LoadClaudeDump(path string) ([]Conversation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read conversation dump: %w", err)
	}

	var dump []claudeDump
	if err := json.Unmarshal(data, &dump); err != nil {
		return nil, fmt.Errorf("decode conversation dump: %w", errdefs.ErrValidation)
	}

	conversations := make([]Conversation, 0, len(dump))
	for _, raw := range dump {
		createdAt, err := ParseTimestamp(raw.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("conversation %s: %w", raw.UUID, err)
		}

		messages := make([]Message, 0, len(raw.ChatMessages))
		for _, m := range raw.ChatMessages {
			msgAt, err := ParseTimestamp(m.CreatedAt)
			if err != nil {
				return nil, fmt.Errorf("conversation %s message: %w", raw.UUID, err)
			}
			role := "assistant"
			if m.Sender == "human" {
				role = "user"
			}
			var parts []string
			for _, c := range m.Content {
				if c.Type == "text" {
					parts = append(parts, c.Text)
				}
			}
			messages = append(messages, Message{
				CreatedAt: msgAt,
				Role:      role,
				Content:   strings.Join(parts, "\n"),
			})
		}
		sort.SliceStable(messages, func(i, j int) bool {
			if !messages[i].CreatedAt.Equal(messages[j].CreatedAt) {
				return messages[i].CreatedAt.Before(messages[j].CreatedAt)
			}
			return messages[i].Role == "user" && messages[j].Role == "assistant"
		})

		conversations = append(conversations, Conversation{
			ChatID:    raw.UUID,
			CreatedAt: createdAt,
			Messages:  messages,
		})
	}
	return conversations, nil
}

// chatgptDump mirrors the ChatGPT conversation export format.
type chatgptDump struct {
	ConversationID string `json:"conversation_id"`
	CreateTime     any    `json:"create_time"`
	Mapping        map[string]struct {
		Message *struct {
			Author struct {
				Role string `json:"role"`
			} `json:"author"`
			Content struct {
				ContentType string   `json:"content_type"`
				Parts       []string `json:"parts"`
			} `json:"content"`
			CreateTime any `json:"create_time"`
		} `json:"message"`
	} `json:"mapping"`
}

// LoadChatGPTDump reads conversations from a ChatGPT-style JSON export.
// System and tool turns are skipped. Messages are ordered by timestamp,
// with the user turn first on ties.
func LoadChatGPTDump(path string) ([]Conversation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read conversation dump: %w", err)
	}

	var dump []chatgptDump
	if err := json.Unmarshal(data, &dump); err != nil {
		return nil, fmt.Errorf("decode conversation dump: %w", errdefs.ErrValidation)
	}

	conversations := make([]Conversation, 0, len(dump))
	for _, raw := range dump {
		createdAt, err := ParseTimestamp(raw.CreateTime)
		if err != nil {
			return nil, fmt.Errorf("conversation %s: %w", raw.ConversationID, err)
		}

		var messages []Message
		for _, node := range raw.Mapping {
			m := node.Message
			if m == nil {
				continue
			}
			role := m.Author.Role
			if role == "system" || role == "tool" {
				continue
			}
			var content string
			if m.Content.ContentType == "text" && len(m.Content.Parts) > 0 {
				content = strings.TrimSpace(m.Content.Parts[0])
			}
			msgAt, err := ParseTimestamp(m.CreateTime)
			if err != nil {
				return nil, fmt.Errorf("conversation %s message: %w", raw.ConversationID, err)
			}
			messages = append(messages, Message{
				CreatedAt: msgAt,
				Role:      role,
				Content:   content,
			})
		}
		// Mapping is decoded from a JSON object, so iteration order is not
		// the document order; the sort alone must fix the message order.
		sort.SliceStable(messages, func(i, j int) bool {
			if !messages[i].CreatedAt.Equal(messages[j].CreatedAt) {
				return messages[i].CreatedAt.Before(messages[j].CreatedAt)
			}
			return messages[i].Role == "user" && messages[j].Role == "assistant"
		})

		conversations = append(conversations, Conversation{
			ChatID:    raw.ConversationID,
			CreatedAt: createdAt,
			Messages:  messages,
		})
	}
	return conversations, nil
}

// ParseTimestamp accepts either an RFC3339/ISO string or a Unix timestamp
// (integer or fractional seconds) and returns a UTC time.
func ParseTimestamp(v any) (time.Time, error) {
	switch t := v.(type) {
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			// Some exports omit the zone suffix.
			parsed, err = time.Parse("2006-01-02T15:04:05.999999999", t)
		}
		if err != nil {
			return time.Time{}, fmt.Errorf("parse timestamp %q: %w", t, errdefs.ErrValidation)
		}
		return parsed.UTC(), nil
	case float64:
		sec := int64(t)
		nsec := int64((t - float64(sec)) * float64(time.Second))
		return time.Unix(sec, nsec).UTC(), nil
	case int64:
		return time.Unix(t, 0).UTC(), nil
	case nil:
		return time.Time{}, fmt.Errorf("missing timestamp: %w", errdefs.ErrValidation)
	default:
		return time.Time{}, fmt.Errorf("unsupported timestamp type %T: %w", v, errdefs.ErrValidation)
	}
}
