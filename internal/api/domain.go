package api

import (
	"github.com/Samy8769/mail-classifier-3/internal/classifications"
	"github.com/Samy8769/mail-classifier-3/internal/emails"
	"github.com/Samy8769/mail-classifier-3/internal/taxonomy"
)

// Domain holds all domain systems that comprise the API.
type Domain struct {
	Taxonomy        taxonomy.System
	Emails          emails.System
	Classifications classifications.System
}

// NewDomain creates all domain systems from the API runtime.
func NewDomain(runtime *Runtime) *Domain {
	taxonomySystem := taxonomy.New(
		runtime.Database.Connection(),
		runtime.Logger,
		runtime.Pagination,
	)

	emailsSystem := emails.New(
		runtime.Database.Connection(),
		runtime.Logger,
		runtime.Pagination,
	)

	classificationsSystem := classifications.New(
		runtime.Database.Connection(),
		runtime.Agent,
		runtime.Pipeline,
		runtime.Logger,
		runtime.Pagination,
		taxonomySystem,
		emailsSystem,
	)

	return &Domain{
		Taxonomy:        taxonomySystem,
		Emails:          emailsSystem,
		Classifications: classificationsSystem,
	}
}
