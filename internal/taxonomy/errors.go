package taxonomy

import (
	"errors"
	"net/http"
)

// Domain errors for taxonomy operations.
var (
	ErrNotFound            = errors.New("tag not found")
	ErrDuplicate           = errors.New("tag name already exists")
	ErrAxisNotFound        = errors.New("axis not found")
	ErrInvalidVocabulary   = errors.New("vocabulary must be closed or open")
	ErrInvalidMultiplicity = errors.New("multiplicity must be single or multiple")
	ErrInvalidRule         = errors.New("invalid inference rule definition")
	ErrCyclicDependency    = errors.New("axis dependency graph contains a cycle")
	ErrUnknownDependency   = errors.New("axis depends on an undefined axis")
)

// MapHTTPStatus maps taxonomy domain errors to appropriate HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrAxisNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrDuplicate) {
		return http.StatusConflict
	}
	if errors.Is(err, ErrInvalidVocabulary) ||
		errors.Is(err, ErrInvalidMultiplicity) ||
		errors.Is(err, ErrInvalidRule) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
