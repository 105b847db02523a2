package taxonomy

import (
	"context"

	"github.com/Samy8769/mail-classifier-3/pkg/pagination"
)

// System defines the public contract for taxonomy domain operations.
// Snapshot is the read path the classification pipeline depends on; the
// remaining operations manage the tag vocabulary.
type System interface {
	Handler() *Handler

	Snapshot(ctx context.Context) (*Catalog, error)

	Axes(ctx context.Context) ([]Axis, error)
	ListTags(
		ctx context.Context,
		page pagination.PageRequest,
		filters TagFilters,
	) (*pagination.PageResult[Tag], error)

	FindTag(ctx context.Context, name string) (*Tag, error)
	CreateTag(ctx context.Context, cmd CreateTagCommand) (*Tag, error)
	DeactivateTag(ctx context.Context, name string) (*Tag, error)
}
