package module

import (
	"maps"
	"net/http"
	"slices"
	"strings"
)

// Router sends each request to the Module owning its first path segment.
// Paths no module owns go to a plain ServeMux.
type Router struct {
	modules  map[string]*Module
	fallback *http.ServeMux
}

func NewRouter() *Router {
	return &Router{
		modules:  make(map[string]*Module),
		fallback: http.NewServeMux(),
	}
}

// Handle registers handler for a ServeMux pattern outside any module.
func (r *Router) Handle(pattern string, handler http.Handler) {
	r.fallback.Handle(pattern, handler)
}

func (r *Router) HandleFunc(pattern string, fn http.HandlerFunc) {
	r.fallback.HandleFunc(pattern, fn)
}

// Mount panics when another module already owns m's prefix.
func (r *Router) Mount(m *Module) {
	if _, taken := r.modules[m.prefix]; taken {
		panic("module already mounted at " + m.prefix)
	}
	r.modules[m.prefix] = m
}

// Modules lists mounted prefixes in sorted order.
func (r *Router) Modules() []string {
	return slices.Sorted(maps.Keys(r.modules))
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	req = trimTrailingSlash(req)

	if m, ok := r.modules[firstSegment(req.URL.Path)]; ok {
		m.Serve(w, req)
		return
	}
	r.fallback.ServeHTTP(w, req)
}

// firstSegment returns "/api" for "/api/alerts/1".
func firstSegment(path string) string {
	rest := strings.TrimPrefix(path, "/")
	seg, _, _ := strings.Cut(rest, "/")
	return "/" + seg
}

// trimTrailingSlash drops trailing slashes from every path but the root.
func trimTrailingSlash(req *http.Request) *http.Request {
	path := req.URL.Path
	if len(path) <= 1 || !strings.HasSuffix(path, "/") {
		return req
	}
	trimmed := strings.TrimRight(path, "/")
	if trimmed == "" {
		trimmed = "/"
	}
	return withPath(req, trimmed)
}
