package routes

import (
	"net/http"

	"github.com/JaimeStill/safestack/pkg/openapi"
)

// JSONBodyLimit is the body cap for routes that accept small JSON documents.
const JSONBodyLimit = 1 << 20

// Route binds an HTTP method and pattern to a handler.
// MaxBytes caps the request body when positive; reads past the cap fail
// with *http.MaxBytesError. OpenAPI is only read by Describe.
type Route struct {
	Method   string
	Pattern  string
	Handler  http.HandlerFunc
	MaxBytes int64
	OpenAPI  *openapi.Operation
}

func (r Route) handler() http.HandlerFunc {
	if r.MaxBytes <= 0 {
		return r.Handler
	}
	return func(w http.ResponseWriter, req *http.Request) {
		req.Body = http.MaxBytesReader(w, req.Body, r.MaxBytes)
		r.Handler(w, req)
	}
}
