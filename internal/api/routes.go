package api

import (
	"net/http"

	"github.com/Samy8769/mail-classifier-3/pkg/routes"
)

func registerRoutes(mux *http.ServeMux, domain *Domain) {
	routes.Register(
		mux,
		domain.Taxonomy.Handler().Routes(),
		domain.Emails.Handler().Routes(),
		domain.Classifications.Handler().Routes(),
	)
}
