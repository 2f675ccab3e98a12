package storage

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

var (
	ErrNotFound            = errors.New("blob not found")
	ErrEmptyKey            = errors.New("storage key must not be empty")
	ErrInvalidKey          = errors.New("storage key must be a relative path without . or .. segments")
	ErrUnsupportedProvider = errors.New("unsupported storage provider")
)

// MapHTTPStatus maps storage errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrEmptyKey), errors.Is(err, ErrInvalidKey):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// validateKey accepts slash-separated relative keys such as
// "images/frame_cam1_0a1b2c.png".
func validateKey(key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if strings.HasPrefix(key, "/") || strings.Contains(key, `\`) {
		return ErrInvalidKey
	}
	for seg := range strings.SplitSeq(key, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return ErrInvalidKey
		}
	}
	return nil
}
