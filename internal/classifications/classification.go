// Package classifications implements the durable classification record
// domain: it drives the pipeline for a conversation, persists one row per
// (email, optional chunk, tag), backs the conversation cache, and writes
// the audit trail for every run.
package classifications

import (
	"time"

	"github.com/google/uuid"
)

// Classification is one persisted tag assignment on one email.
type Classification struct {
	ID             uuid.UUID  `json:"id"`
	EmailID        uuid.UUID  `json:"email_id"`
	ConversationID string     `json:"conversation_id"`
	ChunkIndex     *int       `json:"chunk_index,omitempty"`
	TagName        string     `json:"tag_name"`
	AxisName       string     `json:"axis_name"`
	Source         string     `json:"source"`
	Confidence     float64    `json:"confidence"`
	ClassifiedAt   time.Time  `json:"classified_at"`
	ValidatedBy    *string    `json:"validated_by,omitempty"`
	ValidatedAt    *time.Time `json:"validated_at,omitempty"`
}

// ValidateCommand marks a classification as human reviewed.
type ValidateCommand struct {
	ValidatedBy string `json:"validated_by"`
}

// UpdateCommand replaces a tag with a human correction.
// UpdatedBy identifies the reviewer (stored as validated_by).
type UpdateCommand struct {
	TagName   string `json:"tag_name"`
	UpdatedBy string `json:"updated_by"`
}

// AuditEntry is one pipeline operation recorded for observability.
type AuditEntry struct {
	ID             uuid.UUID `json:"id"`
	Operation      string    `json:"operation"`
	ConversationID string    `json:"conversation_id"`
	Status         string    `json:"status"`
	Error          *string   `json:"error,omitempty"`
	DurationMS     int64     `json:"duration_ms"`
	CreatedAt      time.Time `json:"created_at"`
}
