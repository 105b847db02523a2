package taxonomy

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Samy8769/mail-classifier-3/pkg/handlers"
	"github.com/Samy8769/mail-classifier-3/pkg/pagination"
	"github.com/Samy8769/mail-classifier-3/pkg/routes"
)

// Handler provides HTTP endpoints for taxonomy operations.
type Handler struct {
	sys        System
	logger     *slog.Logger
	pagination pagination.Config
}

// SearchRequest combines pagination and filter criteria for the search endpoint.
type SearchRequest struct {
	pagination.PageRequest
	TagFilters
}

// NewHandler creates a Handler with the given system, logger, and pagination config.
func NewHandler(sys System, logger *slog.Logger, pagination pagination.Config) *Handler {
	return &Handler{
		sys:        sys,
		logger:     logger.With("handler", "taxonomy"),
		pagination: pagination,
	}
}

// Routes returns the route group definition for taxonomy endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/taxonomy",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "/axes", Handler: h.Axes},
			{Method: "GET", Pattern: "/axes/{name}/rules", Handler: h.AxisRules},
			{Method: "GET", Pattern: "/tags", Handler: h.ListTags},
			{Method: "GET", Pattern: "/tags/{name}", Handler: h.FindTag},
			{Method: "POST", Pattern: "/tags", Handler: h.CreateTag},
			{Method: "POST", Pattern: "/tags/search", Handler: h.SearchTags},
			{Method: "DELETE", Pattern: "/tags/{name}", Handler: h.DeactivateTag},
		},
	}
}

// Axes returns all axis definitions in execution order.
func (h *Handler) Axes(w http.ResponseWriter, r *http.Request) {
	catalog, err := h.sys.Snapshot(r.Context())
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, catalog.Axes())
}

// AxisRules returns the reconstructed vocabulary and constraint text for an axis.
func (h *Handler) AxisRules(w http.ResponseWriter, r *http.Request) {
	catalog, err := h.sys.Snapshot(r.Context())
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	name := r.PathValue("name")
	if _, ok := catalog.Axis(name); !ok {
		handlers.RespondError(w, h.logger, http.StatusNotFound, ErrAxisNotFound)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, map[string]string{
		"axis":  name,
		"rules": catalog.RulesText(name),
	})
}

// ListTags returns a paginated list of tags with optional query parameter filters.
func (h *Handler) ListTags(w http.ResponseWriter, r *http.Request) {
	page := pagination.PageRequestFromQuery(r.URL.Query(), h.pagination)
	filters := TagFiltersFromQuery(r.URL.Query())

	result, err := h.sys.ListTags(r.Context(), page, filters)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// SearchTags accepts a JSON body with pagination and filter criteria and returns matching tags.
func (h *Handler) SearchTags(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}

	req.PageRequest.Normalize(h.pagination)

	result, err := h.sys.ListTags(r.Context(), req.PageRequest, req.TagFilters)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// FindTag returns a single tag by its name path parameter.
func (h *Handler) FindTag(w http.ResponseWriter, r *http.Request) {
	tag, err := h.sys.FindTag(r.Context(), r.PathValue("name"))
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, tag)
}

// CreateTag registers a new tag on an existing axis.
func (h *Handler) CreateTag(w http.ResponseWriter, r *http.Request) {
	var cmd CreateTagCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, errors.New("invalid request body"))
		return
	}

	if cmd.Name == "" || cmd.AxisName == "" {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, errors.New("name and axis_name are required"))
		return
	}

	tag, err := h.sys.CreateTag(r.Context(), cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusCreated, tag)
}

// DeactivateTag marks a tag inactive. Historical classifications keep the tag.
func (h *Handler) DeactivateTag(w http.ResponseWriter, r *http.Request) {
	tag, err := h.sys.DeactivateTag(r.Context(), r.PathValue("name"))
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, tag)
}
