package config

import (
	"fmt"
	"os"

	"github.com/Samy8769/mail-classifier-3/pkg/middleware"
	"github.com/Samy8769/mail-classifier-3/pkg/openapi"
	"github.com/Samy8769/mail-classifier-3/pkg/pagination"
)

var openapiEnv = &openapi.ConfigEnv{
	Title:       "MAILCLS_OPENAPI_TITLE",
	Description: "MAILCLS_OPENAPI_DESCRIPTION",
}

var corsEnv = &middleware.CORSEnv{
	Enabled:          "MAILCLS_CORS_ENABLED",
	Origins:          "MAILCLS_CORS_ORIGINS",
	AllowedMethods:   "MAILCLS_CORS_ALLOWED_METHODS",
	AllowedHeaders:   "MAILCLS_CORS_ALLOWED_HEADERS",
	AllowCredentials: "MAILCLS_CORS_ALLOW_CREDENTIALS",
	MaxAge:           "MAILCLS_CORS_MAX_AGE",
}

var paginationEnv = &pagination.ConfigEnv{
	DefaultPageSize: "MAILCLS_PAGINATION_DEFAULT_PAGE_SIZE",
	MaxPageSize:     "MAILCLS_PAGINATION_MAX_PAGE_SIZE",
}

// APIConfig holds API routing, CORS, pagination, and OpenAPI settings.
type APIConfig struct {
	BasePath   string                `toml:"base_path"`
	CORS       middleware.CORSConfig `toml:"cors"`
	Pagination pagination.Config     `toml:"pagination"`
	OpenAPI    openapi.Config        `toml:"openapi"`
}

// Finalize applies defaults, environment variable overrides, and validation
// for the API config and its nested CORS and pagination configs.
func (c *APIConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if err := c.CORS.Finalize(corsEnv); err != nil {
		return fmt.Errorf("cors: %w", err)
	}
	if err := c.Pagination.Finalize(paginationEnv); err != nil {
		return fmt.Errorf("pagination: %w", err)
	}
	if err := c.OpenAPI.Finalize(openapiEnv); err != nil {
		return fmt.Errorf("openapi: %w", err)
	}
	return nil
}

// Merge overwrites non-zero fields from overlay across nested configs.
func (c *APIConfig) Merge(overlay *APIConfig) {
	if overlay.BasePath != "" {
		c.BasePath = overlay.BasePath
	}

	c.CORS.Merge(&overlay.CORS)
	c.Pagination.Merge(&overlay.Pagination)
	c.OpenAPI.Merge(&overlay.OpenAPI)
}

func (c *APIConfig) loadDefaults() {
	if c.BasePath == "" {
		c.BasePath = "/api"
	}
}

func (c *APIConfig) loadEnv() {
	if v := os.Getenv("MAILCLS_API_BASE_PATH"); v != "" {
		c.BasePath = v
	}
}
