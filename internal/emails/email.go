// Package emails implements the conversation ingestion domain: storing
// email messages, grouping them into conversations, and deriving the
// content fingerprint the classification cache is keyed by.
package emails

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Email is one stored message within a conversation.
type Email struct {
	ID             uuid.UUID `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Subject        string    `json:"subject"`
	Sender         string    `json:"sender"`
	Recipients     []string  `json:"recipients"`
	Body           string    `json:"body"`
	ReceivedAt     time.Time `json:"received_at"`
	Topic          *string   `json:"topic,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// IngestCommand contains the data needed to store one email.
type IngestCommand struct {
	ConversationID string    `json:"conversation_id"`
	Subject        string    `json:"subject"`
	Sender         string    `json:"sender"`
	Recipients     []string  `json:"recipients"`
	Body           string    `json:"body"`
	ReceivedAt     time.Time `json:"received_at"`
	Topic          *string   `json:"topic,omitempty"`
}

// Conversation groups the stored emails sharing a conversation identity,
// ordered by reception time. It is the unit of classification.
type Conversation struct {
	ConversationID string  `json:"conversation_id"`
	Emails         []Email `json:"emails"`
}

// Text concatenates the conversation's messages into the document the
// classification pipeline operates on. Each message carries a minimal
// header block so chunking can split on message boundaries.
func (c *Conversation) Text() string {
	var sb strings.Builder
	for i, email := range c.Emails {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "From: %s\nSubject: %s\n\n%s", email.Sender, email.Subject, email.Body)
	}
	return sb.String()
}

// Fingerprint derives the content identity of the conversation: a sha256
// over the exact document Text produces. Any change the pipeline would see,
// a new message or an edited sender, subject, or body, changes the
// fingerprint and invalidates cached classification results.
func (c *Conversation) Fingerprint() string {
	h := sha256.New()
	h.Write([]byte(c.Text()))
	return hex.EncodeToString(h.Sum(nil))
}
