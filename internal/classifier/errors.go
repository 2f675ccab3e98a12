package classifier

import (
	"errors"
	"net/http"
)

var (
	// ErrUpstream is returned when the model cannot be reached or rejects the call.
	ErrUpstream = errors.New("classifier upstream unavailable")
	// ErrTimeout is returned when the model call exceeds its deadline.
	ErrTimeout = errors.New("classifier timed out")
	// ErrInvalidMedia is returned for empty payloads or missing mime types.
	ErrInvalidMedia = errors.New("invalid media")
	// ErrInvalidTimestamp is returned for timestamps that are not MM:SS or HH:MM:SS.
	ErrInvalidTimestamp = errors.New("invalid timestamp")
)

// MapHTTPStatus maps classifier errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, ErrUpstream):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrInvalidMedia):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
