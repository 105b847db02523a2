package emails

import (
	"encoding/json"
	"net/url"

	"github.com/Samy8769/mail-classifier-3/pkg/query"
	"github.com/Samy8769/mail-classifier-3/pkg/repository"
)

var emailProjection = query.
	NewProjectionMap("public", "emails", "e").
	Project("id", "ID").
	Project("conversation_id", "ConversationID").
	Project("subject", "Subject").
	Project("sender", "Sender").
	Project("recipients", "Recipients").
	Project("body", "Body").
	Project("received_at", "ReceivedAt").
	Project("topic", "Topic").
	Project("created_at", "CreatedAt")

var emailDefaultSort = query.SortField{Field: "ReceivedAt", Descending: true}

// Filters contains optional filtering criteria for email queries.
// Nil fields are ignored.
type Filters struct {
	ConversationID *string `json:"conversation_id,omitempty"`
	Sender         *string `json:"sender,omitempty"`
	Topic          *string `json:"topic,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("ConversationID", f.ConversationID).
		WhereEquals("Sender", f.Sender).
		WhereEquals("Topic", f.Topic)
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if conversation := values.Get("conversation"); conversation != "" {
		f.ConversationID = &conversation
	}
	if sender := values.Get("sender"); sender != "" {
		f.Sender = &sender
	}
	if topic := values.Get("topic"); topic != "" {
		f.Topic = &topic
	}

	return f
}

func scanEmail(s repository.Scanner) (Email, error) {
	var e Email
	var recipients []byte

	err := s.Scan(
		&e.ID,
		&e.ConversationID,
		&e.Subject,
		&e.Sender,
		&recipients,
		&e.Body,
		&e.ReceivedAt,
		&e.Topic,
		&e.CreatedAt,
	)
	if err != nil {
		return e, err
	}

	if len(recipients) > 0 {
		if err := json.Unmarshal(recipients, &e.Recipients); err != nil {
			e.Recipients = nil
		}
	}
	return e, nil
}
