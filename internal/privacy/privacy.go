// Package privacy scrubs conversation text before it leaves the process.
// Summaries are generated by an external model, so obvious identifiers are
// redacted from the transcript up front rather than trusting the prompt
// alone to keep them out.
package privacy

import (
	"regexp"
	"strings"
)

var (
	// privateTagRegex matches <private>...</private> tags users can place
	// around content that must never reach an external model.
	privateTagRegex = regexp.MustCompile(`(?s)<private>.*?</private>`)

	emailRegex = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

	// phoneRegex matches international and separator-formatted numbers of
	// at least 7 digits.
	phoneRegex = regexp.MustCompile(`\+?\d[\d\s().\-]{5,}\d`)
)

// StripPrivateTags removes all <private>...</private> content from text.
func StripPrivateTags(text string) string {
	return privateTagRegex.ReplaceAllString(text, "")
}

// IsEntirelyPrivate checks if the text is entirely within <private> tags.
func IsEntirelyPrivate(text string) bool {
	return strings.TrimSpace(StripPrivateTags(text)) == ""
}

// Redact replaces emails and phone-like numbers with placeholders.
func Redact(text string) string {
	text = emailRegex.ReplaceAllString(text, "<email>")
	text = phoneRegex.ReplaceAllString(text, "<phone>")
	return text
}

// Clean performs full scrubbing on text: private tags removed, identifiers
// redacted, whitespace trimmed. This is the function to use on any content
// bound for an external model.
func Clean(text string) string {
	text = StripPrivateTags(text)
	text = Redact(text)
	return strings.TrimSpace(text)
}
