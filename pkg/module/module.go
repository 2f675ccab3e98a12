package module

import (
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/JaimeStill/safestack/pkg/middleware"
)

// Module owns one top-level path segment. Requests are served by the inner
// router with the prefix stripped, wrapped in the module's own middleware.
type Module struct {
	prefix string
	router http.Handler
	stack  *middleware.Stack

	mu      sync.Mutex
	handler http.Handler
}

// New creates a Module with the given single-level prefix (e.g. "/api").
// Panics if the prefix is empty, missing a leading slash, or multi-level.
func New(prefix string, router http.Handler) *Module {
	if err := validatePrefix(prefix); err != nil {
		panic(err)
	}
	return &Module{
		prefix: prefix,
		router: router,
		stack:  middleware.New(),
	}
}

// Handler returns the inner router wrapped with the module's middleware.
// The chain is built once and rebuilt only after Use.
func (m *Module) Handler() http.Handler {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.handler == nil {
		m.handler = m.stack.Apply(m.router)
	}
	return m.handler
}

// Prefix returns the module's path prefix.
func (m *Module) Prefix() string {
	return m.prefix
}

// Serve strips the module prefix from the request path and dispatches to the inner router.
func (m *Module) Serve(w http.ResponseWriter, req *http.Request) {
	m.Handler().ServeHTTP(w, withPath(req, extractPath(req.URL.Path, m.prefix)))
}

// Use appends middleware. Earlier middleware wraps later middleware.
func (m *Module) Use(mw ...middleware.Func) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stack.Use(mw...)
	m.handler = nil
}

// withPath returns a shallow copy of req addressed to path.
func withPath(req *http.Request, path string) *http.Request {
	u := *req.URL
	u.Path = path
	u.RawPath = ""

	r2 := new(http.Request)
	*r2 = *req
	r2.URL = &u
	return r2
}

func extractPath(fullPath, prefix string) string {
	path := fullPath[len(prefix):]
	if path == "" {
		return "/"
	}
	return path
}

func validatePrefix(prefix string) error {
	if prefix == "" {
		return fmt.Errorf("module prefix cannot be empty")
	}
	if !strings.HasPrefix(prefix, "/") {
		return fmt.Errorf("module prefix must start with /: %s", prefix)
	}
	if strings.Count(prefix, "/") != 1 {
		return fmt.Errorf("module prefix must be single-level sub-path: %s", prefix)
	}
	return nil
}
