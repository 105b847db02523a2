package classifications

import (
	"context"

	"github.com/google/uuid"

	"github.com/Samy8769/mail-classifier-3/internal/pipeline"
	"github.com/Samy8769/mail-classifier-3/pkg/pagination"
)

// System defines the public contract for classification domain operations.
// Classify drives the full pipeline for one conversation; force bypasses
// the conversation cache and recomputes.
type System interface {
	Handler() *Handler

	Classify(ctx context.Context, conversationID string, force bool) (*pipeline.Result, error)

	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Classification], error)

	Find(ctx context.Context, id uuid.UUID) (*Classification, error)
	ForConversation(ctx context.Context, conversationID string) ([]Classification, error)
	Validate(ctx context.Context, id uuid.UUID, cmd ValidateCommand) (*Classification, error)
	Update(ctx context.Context, id uuid.UUID, cmd UpdateCommand) (*Classification, error)
	Delete(ctx context.Context, id uuid.UUID) error

	AuditTrail(ctx context.Context, conversationID string) ([]AuditEntry, error)
}
