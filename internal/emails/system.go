package emails

import (
	"context"

	"github.com/google/uuid"

	"github.com/Samy8769/mail-classifier-3/pkg/pagination"
)

// System defines the public contract for email domain operations.
type System interface {
	Handler() *Handler

	Ingest(ctx context.Context, batch []IngestCommand) ([]Email, error)
	Find(ctx context.Context, id uuid.UUID) (*Email, error)
	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Email], error)

	Conversation(ctx context.Context, conversationID string) (*Conversation, error)
	Conversations(ctx context.Context) ([]string, error)
}
