package emails

import (
	"errors"
	"net/http"
)

// Domain errors for email operations.
var (
	ErrNotFound     = errors.New("email not found")
	ErrDuplicate    = errors.New("email already exists")
	ErrInvalidEmail = errors.New("invalid email data")
	ErrEmptyBatch   = errors.New("ingest batch contains no emails")
)

// MapHTTPStatus maps email domain errors to appropriate HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidEmail), errors.Is(err, ErrEmptyBatch):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
