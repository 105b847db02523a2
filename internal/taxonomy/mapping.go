package taxonomy

import (
	"encoding/json"
	"net/url"

	"github.com/Samy8769/mail-classifier-3/pkg/query"
	"github.com/Samy8769/mail-classifier-3/pkg/repository"
)

var tagProjection = query.
	NewProjectionMap("public", "tags", "t").
	Project("id", "ID").
	Project("name", "Name").
	Project("axis_name", "AxisName").
	Project("prefix", "Prefix").
	Project("description", "Description").
	Project("active", "Active").
	Project("metadata", "Metadata").
	Project("created_at", "CreatedAt").
	Project("updated_at", "UpdatedAt")

var tagDefaultSort = query.SortField{Field: "Name"}

// TagFilters contains optional filtering criteria for tag queries.
// Nil fields are ignored.
type TagFilters struct {
	AxisName *string `json:"axis_name,omitempty"`
	Prefix   *string `json:"prefix,omitempty"`
	Active   *bool   `json:"active,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f TagFilters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("AxisName", f.AxisName).
		WhereEquals("Prefix", f.Prefix).
		WhereEquals("Active", f.Active)
}

// TagFiltersFromQuery extracts filter values from URL query parameters.
func TagFiltersFromQuery(values url.Values) TagFilters {
	var f TagFilters

	if axis := values.Get("axis"); axis != "" {
		f.AxisName = &axis
	}
	if prefix := values.Get("prefix"); prefix != "" {
		f.Prefix = &prefix
	}
	if active := values.Get("active"); active != "" {
		v := active == "true"
		f.Active = &v
	}

	return f
}

func scanTag(s repository.Scanner) (Tag, error) {
	var t Tag
	var metadata []byte

	err := s.Scan(
		&t.ID,
		&t.Name,
		&t.AxisName,
		&t.Prefix,
		&t.Description,
		&t.Active,
		&metadata,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return t, err
	}

	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &t.Metadata); err != nil {
			t.Metadata = nil
		}
	}
	return t, nil
}
