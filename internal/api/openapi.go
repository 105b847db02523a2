package api

import (
	"github.com/Samy8769/mail-classifier-3/internal/config"
	"github.com/Samy8769/mail-classifier-3/pkg/openapi"
)

// buildSpec assembles the OpenAPI document for the API module. The spec is
// built once at startup and served as pre-serialized JSON.
func buildSpec(cfg *config.Config) *openapi.Spec {
	spec := openapi.NewSpec(cfg.API.OpenAPI.Title, cfg.Version)
	spec.SetDescription(cfg.API.OpenAPI.Description)
	spec.AddServer(cfg.API.BasePath)

	spec.Components.AddSchemas(map[string]*openapi.Schema{
		"Axis": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"name":         {Type: "string"},
				"prefix":       {Type: "string"},
				"vocabulary":   {Type: "string", Enum: []any{"closed", "open"}},
				"multiplicity": {Type: "string", Enum: []any{"single", "multiple"}},
				"priority":     {Type: "integer"},
				"depends_on":   {Type: "array", Items: &openapi.Schema{Type: "string"}},
			},
		},
		"Tag": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"id":          {Type: "string", Format: "uuid"},
				"name":        {Type: "string", Example: "C_AGS"},
				"axis_name":   {Type: "string"},
				"prefix":      {Type: "string"},
				"description": {Type: "string"},
				"active":      {Type: "boolean"},
			},
		},
		"CreateTag": {
			Type:     "object",
			Required: []string{"name", "axis_name"},
			Properties: map[string]*openapi.Schema{
				"name":        {Type: "string"},
				"axis_name":   {Type: "string"},
				"prefix":      {Type: "string"},
				"description": {Type: "string"},
				"metadata":    {Type: "object"},
			},
		},
		"Email": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"id":              {Type: "string", Format: "uuid"},
				"conversation_id": {Type: "string"},
				"subject":         {Type: "string"},
				"sender":          {Type: "string"},
				"recipients":      {Type: "array", Items: &openapi.Schema{Type: "string"}},
				"body":            {Type: "string"},
				"received_at":     {Type: "string", Format: "date-time"},
				"topic":           {Type: "string"},
			},
		},
		"IngestBatch": {
			Type:  "array",
			Items: openapi.SchemaRef("Email"),
		},
		"Classification": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"id":              {Type: "string", Format: "uuid"},
				"email_id":        {Type: "string", Format: "uuid"},
				"conversation_id": {Type: "string"},
				"chunk_index":     {Type: "integer"},
				"tag_name":        {Type: "string"},
				"axis_name":       {Type: "string"},
				"source":          {Type: "string", Enum: []any{"llm", "rule", "validator", "human", "search"}},
				"confidence":      {Type: "number"},
				"classified_at":   {Type: "string", Format: "date-time"},
				"validated_by":    {Type: "string"},
				"validated_at":    {Type: "string", Format: "date-time"},
			},
		},
		"ClassificationResult": {
			Type:        "object",
			Description: "Per-axis pipeline outcome for one conversation",
			Properties: map[string]*openapi.Schema{
				"conversation_id": {Type: "string"},
				"fingerprint":     {Type: "string"},
				"axes":            {Type: "object"},
				"summary":         {Type: "string"},
				"findings":        {Type: "array", Items: &openapi.Schema{Type: "object"}},
				"outcome":         {Type: "string", Enum: []any{"success", "partial", "failed"}},
				"from_cache":      {Type: "boolean"},
			},
		},
		"AuditEntry": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"id":              {Type: "string", Format: "uuid"},
				"operation":       {Type: "string"},
				"conversation_id": {Type: "string"},
				"status":          {Type: "string", Enum: []any{"success", "partial", "failure"}},
				"error":           {Type: "string"},
				"duration_ms":     {Type: "integer"},
				"created_at":      {Type: "string", Format: "date-time"},
			},
		},
	})

	addTaxonomyPaths(spec)
	addEmailPaths(spec)
	addClassificationPaths(spec)

	return spec
}

func addTaxonomyPaths(spec *openapi.Spec) {
	spec.Paths["/taxonomy/axes"] = &openapi.PathItem{
		Get: &openapi.Operation{
			Summary: "List classification axes in execution order",
			Tags:    []string{"taxonomy"},
			Responses: map[int]*openapi.Response{
				200: openapi.ResponseJSON("Axis definitions", "Axis"),
			},
		},
	}
	spec.Paths["/taxonomy/axes/{name}/rules"] = &openapi.PathItem{
		Get: &openapi.Operation{
			Summary: "Render the vocabulary and constraint rules text for an axis",
			Tags:    []string{"taxonomy"},
			Parameters: []*openapi.Parameter{
				{Name: "name", In: "path", Required: true, Schema: &openapi.Schema{Type: "string"}},
			},
			Responses: map[int]*openapi.Response{
				200: {Description: "Rules text"},
				404: openapi.ResponseRef("NotFound"),
			},
		},
	}
	spec.Paths["/taxonomy/tags"] = &openapi.PathItem{
		Get: &openapi.Operation{
			Summary: "List tags",
			Tags:    []string{"taxonomy"},
			Responses: map[int]*openapi.Response{
				200: openapi.ResponseJSON("Paged tags", "Tag"),
			},
		},
		Post: &openapi.Operation{
			Summary:     "Register a new tag",
			Tags:        []string{"taxonomy"},
			RequestBody: openapi.RequestBodyJSON("CreateTag", true),
			Responses: map[int]*openapi.Response{
				201: openapi.ResponseJSON("Created tag", "Tag"),
				400: openapi.ResponseRef("BadRequest"),
				409: openapi.ResponseRef("Conflict"),
			},
		},
	}
	spec.Paths["/taxonomy/tags/search"] = &openapi.PathItem{
		Post: &openapi.Operation{
			Summary:     "Search tags with pagination and filters",
			Tags:        []string{"taxonomy"},
			RequestBody: openapi.RequestBodyJSON("PageRequest", false),
			Responses: map[int]*openapi.Response{
				200: openapi.ResponseJSON("Paged tags", "Tag"),
			},
		},
	}
	spec.Paths["/taxonomy/tags/{name}"] = &openapi.PathItem{
		Get: &openapi.Operation{
			Summary: "Find a tag by name",
			Tags:    []string{"taxonomy"},
			Parameters: []*openapi.Parameter{
				{Name: "name", In: "path", Required: true, Schema: &openapi.Schema{Type: "string"}},
			},
			Responses: map[int]*openapi.Response{
				200: openapi.ResponseJSON("Tag", "Tag"),
				404: openapi.ResponseRef("NotFound"),
			},
		},
		Delete: &openapi.Operation{
			Summary: "Deactivate a tag",
			Tags:    []string{"taxonomy"},
			Parameters: []*openapi.Parameter{
				{Name: "name", In: "path", Required: true, Schema: &openapi.Schema{Type: "string"}},
			},
			Responses: map[int]*openapi.Response{
				200: openapi.ResponseJSON("Deactivated tag", "Tag"),
				404: openapi.ResponseRef("NotFound"),
			},
		},
	}
}

func addEmailPaths(spec *openapi.Spec) {
	spec.Paths["/emails"] = &openapi.PathItem{
		Get: &openapi.Operation{
			Summary: "List emails",
			Tags:    []string{"emails"},
			Responses: map[int]*openapi.Response{
				200: openapi.ResponseJSON("Paged emails", "Email"),
			},
		},
		Post: &openapi.Operation{
			Summary:     "Ingest a batch of emails",
			Description: "The batch is stored in one transaction so a conversation is never partially visible.",
			Tags:        []string{"emails"},
			RequestBody: openapi.RequestBodyJSON("IngestBatch", true),
			Responses: map[int]*openapi.Response{
				201: openapi.ResponseJSON("Stored emails", "Email"),
				400: openapi.ResponseRef("BadRequest"),
			},
		},
	}
	spec.Paths["/emails/search"] = &openapi.PathItem{
		Post: &openapi.Operation{
			Summary:     "Search emails with pagination and filters",
			Tags:        []string{"emails"},
			RequestBody: openapi.RequestBodyJSON("PageRequest", false),
			Responses: map[int]*openapi.Response{
				200: openapi.ResponseJSON("Paged emails", "Email"),
			},
		},
	}
	spec.Paths["/emails/{id}"] = &openapi.PathItem{
		Get: &openapi.Operation{
			Summary:    "Find an email by id",
			Tags:       []string{"emails"},
			Parameters: []*openapi.Parameter{openapi.PathParam("id", "Email identifier")},
			Responses: map[int]*openapi.Response{
				200: openapi.ResponseJSON("Email", "Email"),
				404: openapi.ResponseRef("NotFound"),
			},
		},
	}
	spec.Paths["/emails/conversations"] = &openapi.PathItem{
		Get: &openapi.Operation{
			Summary: "List known conversation identifiers",
			Tags:    []string{"emails"},
			Responses: map[int]*openapi.Response{
				200: {Description: "Conversation identifiers"},
			},
		},
	}
	spec.Paths["/emails/conversations/{id}"] = &openapi.PathItem{
		Get: &openapi.Operation{
			Summary: "Load the ordered message set for a conversation",
			Tags:    []string{"emails"},
			Parameters: []*openapi.Parameter{
				{Name: "id", In: "path", Required: true, Schema: &openapi.Schema{Type: "string"}},
			},
			Responses: map[int]*openapi.Response{
				200: openapi.ResponseJSON("Conversation emails", "Email"),
				404: openapi.ResponseRef("NotFound"),
			},
		},
	}
}

func addClassificationPaths(spec *openapi.Spec) {
	spec.Paths["/classifications"] = &openapi.PathItem{
		Get: &openapi.Operation{
			Summary: "List classifications",
			Tags:    []string{"classifications"},
			Responses: map[int]*openapi.Response{
				200: openapi.ResponseJSON("Paged classifications", "Classification"),
			},
		},
	}
	spec.Paths["/classifications/search"] = &openapi.PathItem{
		Post: &openapi.Operation{
			Summary:     "Search classifications with pagination and filters",
			Tags:        []string{"classifications"},
			RequestBody: openapi.RequestBodyJSON("PageRequest", false),
			Responses: map[int]*openapi.Response{
				200: openapi.ResponseJSON("Paged classifications", "Classification"),
			},
		},
	}
	spec.Paths["/classifications/conversations/{id}"] = &openapi.PathItem{
		Post: &openapi.Operation{
			Summary:     "Classify a conversation",
			Description: "Runs the full pipeline: chunking, dependency-ordered axis resolution, inference rules, validation, and caching. Pass force=true to bypass the cache.",
			Tags:        []string{"classifications"},
			Parameters: []*openapi.Parameter{
				{Name: "id", In: "path", Required: true, Schema: &openapi.Schema{Type: "string"}},
				openapi.QueryParam("force", "boolean", "Bypass the conversation cache and reclassify", false),
			},
			Responses: map[int]*openapi.Response{
				200: openapi.ResponseJSON("Classification result", "ClassificationResult"),
				404: openapi.ResponseRef("NotFound"),
			},
		},
		Get: &openapi.Operation{
			Summary: "List stored classifications for a conversation",
			Tags:    []string{"classifications"},
			Parameters: []*openapi.Parameter{
				{Name: "id", In: "path", Required: true, Schema: &openapi.Schema{Type: "string"}},
			},
			Responses: map[int]*openapi.Response{
				200: openapi.ResponseJSON("Classifications", "Classification"),
			},
		},
	}
	spec.Paths["/classifications/conversations/{id}/audit"] = &openapi.PathItem{
		Get: &openapi.Operation{
			Summary: "Audit trail for a conversation",
			Tags:    []string{"classifications"},
			Parameters: []*openapi.Parameter{
				{Name: "id", In: "path", Required: true, Schema: &openapi.Schema{Type: "string"}},
			},
			Responses: map[int]*openapi.Response{
				200: openapi.ResponseJSON("Audit entries", "AuditEntry"),
			},
		},
	}
	spec.Paths["/classifications/{id}"] = &openapi.PathItem{
		Get: &openapi.Operation{
			Summary:    "Find a classification by id",
			Tags:       []string{"classifications"},
			Parameters: []*openapi.Parameter{openapi.PathParam("id", "Classification identifier")},
			Responses: map[int]*openapi.Response{
				200: openapi.ResponseJSON("Classification", "Classification"),
				404: openapi.ResponseRef("NotFound"),
			},
		},
		Put: &openapi.Operation{
			Summary:     "Correct the tag on a classification",
			Description: "Replaces the tag with a human correction; the owning axis is re-derived from the taxonomy.",
			Tags:        []string{"classifications"},
			Parameters:  []*openapi.Parameter{openapi.PathParam("id", "Classification identifier")},
			Responses: map[int]*openapi.Response{
				200: openapi.ResponseJSON("Updated classification", "Classification"),
				400: openapi.ResponseRef("BadRequest"),
				404: openapi.ResponseRef("NotFound"),
			},
		},
		Delete: &openapi.Operation{
			Summary:    "Delete a classification",
			Tags:       []string{"classifications"},
			Parameters: []*openapi.Parameter{openapi.PathParam("id", "Classification identifier")},
			Responses: map[int]*openapi.Response{
				204: {Description: "Deleted"},
				404: openapi.ResponseRef("NotFound"),
			},
		},
	}
	spec.Paths["/classifications/{id}/validate"] = &openapi.PathItem{
		Put: &openapi.Operation{
			Summary:    "Mark a classification as human-validated",
			Tags:       []string{"classifications"},
			Parameters: []*openapi.Parameter{openapi.PathParam("id", "Classification identifier")},
			Responses: map[int]*openapi.Response{
				200: openapi.ResponseJSON("Validated classification", "Classification"),
				400: openapi.ResponseRef("BadRequest"),
				404: openapi.ResponseRef("NotFound"),
			},
		},
	}
}
