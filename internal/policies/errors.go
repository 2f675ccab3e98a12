package policies

import (
	"errors"
	"net/http"
)

// Domain errors for policy operations.
var (
	ErrNotFound      = errors.New("policy not found")
	ErrDuplicate     = errors.New("policy title already exists")
	ErrInvalidPolicy = errors.New("invalid policy")
	ErrConflict      = errors.New("policy document version already exists")
	ErrStale         = errors.New("policy document is not newer than the current version")
)

// MapHTTPStatus maps policy domain errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicate), errors.Is(err, ErrConflict), errors.Is(err, ErrStale):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidPolicy):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
