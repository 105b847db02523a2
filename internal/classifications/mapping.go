package classifications

import (
	"net/url"
	"strconv"

	"github.com/google/uuid"

	"github.com/Samy8769/mail-classifier-3/pkg/query"
	"github.com/Samy8769/mail-classifier-3/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "classifications", "c").
	Project("id", "ID").
	Project("email_id", "EmailID").
	Project("conversation_id", "ConversationID").
	Project("chunk_index", "ChunkIndex").
	Project("tag_name", "TagName").
	Project("axis_name", "AxisName").
	Project("source", "Source").
	Project("confidence", "Confidence").
	Project("classified_at", "ClassifiedAt").
	Project("validated_by", "ValidatedBy").
	Project("validated_at", "ValidatedAt")

var defaultSort = query.SortField{
	Field:      "ClassifiedAt",
	Descending: true,
}

// Filters contains optional filtering criteria for classification queries.
// Nil fields are ignored. All fields use exact matching except Validated,
// which selects on the presence of a validation timestamp.
type Filters struct {
	ConversationID *string    `json:"conversation_id,omitempty"`
	EmailID        *uuid.UUID `json:"email_id,omitempty"`
	AxisName       *string    `json:"axis_name,omitempty"`
	TagName        *string    `json:"tag_name,omitempty"`
	Source         *string    `json:"source,omitempty"`
	ValidatedBy    *string    `json:"validated_by,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("ConversationID", f.ConversationID).
		WhereEquals("EmailID", f.EmailID).
		WhereEquals("AxisName", f.AxisName).
		WhereEquals("TagName", f.TagName).
		WhereEquals("Source", f.Source).
		WhereEquals("ValidatedBy", f.ValidatedBy)
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if conversation := values.Get("conversation"); conversation != "" {
		f.ConversationID = &conversation
	}
	if email := values.Get("email"); email != "" {
		if id, err := uuid.Parse(email); err == nil {
			f.EmailID = &id
		}
	}
	if axis := values.Get("axis"); axis != "" {
		f.AxisName = &axis
	}
	if tag := values.Get("tag"); tag != "" {
		f.TagName = &tag
	}
	if source := values.Get("source"); source != "" {
		f.Source = &source
	}
	if validatedBy := values.Get("validated_by"); validatedBy != "" {
		f.ValidatedBy = &validatedBy
	}

	return f
}

func scanClassification(s repository.Scanner) (Classification, error) {
	var c Classification
	err := s.Scan(
		&c.ID,
		&c.EmailID,
		&c.ConversationID,
		&c.ChunkIndex,
		&c.TagName,
		&c.AxisName,
		&c.Source,
		&c.Confidence,
		&c.ClassifiedAt,
		&c.ValidatedBy,
		&c.ValidatedAt,
	)
	return c, err
}

func scanAuditEntry(s repository.Scanner) (AuditEntry, error) {
	var a AuditEntry
	err := s.Scan(
		&a.ID,
		&a.Operation,
		&a.ConversationID,
		&a.Status,
		&a.Error,
		&a.DurationMS,
		&a.CreatedAt,
	)
	return a, err
}

func parseForce(values url.Values) bool {
	force, err := strconv.ParseBool(values.Get("force"))
	return err == nil && force
}
