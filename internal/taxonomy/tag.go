package taxonomy

import (
	"time"

	"github.com/google/uuid"
)

// Tag is a single label value within an axis. Names are globally unique and
// carry the axis prefix (e.g. "C_AGS" on the client axis).
type Tag struct {
	ID          uuid.UUID      `json:"id"`
	Name        string         `json:"name"`
	AxisName    string         `json:"axis_name"`
	Prefix      string         `json:"prefix"`
	Description *string        `json:"description"`
	Active      bool           `json:"active"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// CreateTagCommand carries the data needed to register a new tag.
type CreateTagCommand struct {
	Name        string         `json:"name"`
	AxisName    string         `json:"axis_name"`
	Prefix      string         `json:"prefix"`
	Description *string        `json:"description"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}
