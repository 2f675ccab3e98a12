package alerts

import (
	"errors"
	"net/http"
)

// Domain errors for alert operations.
var (
	ErrNotFound     = errors.New("alert not found")
	ErrDuplicate    = errors.New("alert already exists")
	ErrInvalidAlert = errors.New("invalid alert")
)

// MapHTTPStatus maps alert domain errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrDuplicate) {
		return http.StatusConflict
	}
	if errors.Is(err, ErrInvalidAlert) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
