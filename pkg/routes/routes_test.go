package routes_test

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/JaimeStill/safestack/pkg/openapi"
	"github.com/JaimeStill/safestack/pkg/routes"
)

func ok(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}
}

func sampleGroup() routes.Group {
	return routes.Group{
		Prefix: "/alerts",
		Tags:   []string{"Alerts"},
		Schemas: map[string]*openapi.Schema{
			"Alert": {Type: "object"},
		},
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: ok("list"), OpenAPI: &openapi.Operation{Summary: "List alerts"}},
			{Method: "GET", Pattern: "/{id}", Handler: ok("find"), OpenAPI: &openapi.Operation{Summary: "Find alert"}},
			{Method: "DELETE", Pattern: "/{id}", Handler: ok("delete")},
		},
		Children: []routes.Group{
			{
				Prefix: "/{id}/images",
				Routes: []routes.Route{
					{Method: "GET", Pattern: "/{key...}", Handler: ok("image"), OpenAPI: &openapi.Operation{Summary: "Image"}},
				},
			},
		},
	}
}

func TestRegister(t *testing.T) {
	mux := http.NewServeMux()
	routes.Register(mux, sampleGroup())

	tests := []struct {
		method string
		path   string
		want   string
	}{
		{method: "GET", path: "/alerts", want: "list"},
		{method: "GET", path: "/alerts/abc", want: "find"},
		{method: "DELETE", path: "/alerts/abc", want: "delete"},
		{method: "GET", path: "/alerts/abc/images/a/b.png", want: "image"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))

			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}
			if rec.Body.String() != tt.want {
				t.Errorf("body = %q, want %q", rec.Body.String(), tt.want)
			}
		})
	}
}

func TestDescribe(t *testing.T) {
	spec := openapi.NewSpec("SafeStack", "test")
	routes.Describe(spec, "/api", sampleGroup())

	list := spec.Paths["/api/alerts"]
	if list == nil || list.Get == nil {
		t.Fatal("missing GET /api/alerts")
	}
	if len(list.Get.Tags) != 1 || list.Get.Tags[0] != "Alerts" {
		t.Errorf("tags = %v, want inherited [Alerts]", list.Get.Tags)
	}

	item := spec.Paths["/api/alerts/{id}"]
	if item == nil || item.Get == nil {
		t.Fatal("missing GET /api/alerts/{id}")
	}
	if item.Delete != nil {
		t.Error("routes without OpenAPI metadata should not be described")
	}

	if spec.Paths["/api/alerts/{id}/images/{key}"] == nil {
		t.Error("wildcard segment should be normalized")
	}
	if spec.Components.Schemas["Alert"] == nil {
		t.Error("group schemas should be merged")
	}
}

func TestRegisterMaxBytes(t *testing.T) {
	read := func(w http.ResponseWriter, r *http.Request) {
		if _, err := io.ReadAll(r.Body); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				w.WriteHeader(http.StatusRequestEntityTooLarge)
				return
			}
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}

	mux := http.NewServeMux()
	routes.Register(mux, routes.Group{
		Prefix: "/policies",
		Routes: []routes.Route{
			{Method: "POST", Pattern: "", Handler: read, MaxBytes: 16},
			{Method: "PUT", Pattern: "/document", Handler: read},
		},
	})

	tests := []struct {
		method string
		path   string
		body   string
		want   int
	}{
		{method: "POST", path: "/policies", body: `{"title":"Spill"}`, want: http.StatusRequestEntityTooLarge},
		{method: "POST", path: "/policies", body: `{"level":1}`, want: http.StatusNoContent},
		{method: "PUT", path: "/policies/document", body: strings.Repeat("x", 64), want: http.StatusNoContent},
	}

	for _, tt := range tests {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body)))
		if rec.Code != tt.want {
			t.Errorf("%s %s (%d bytes) = %d, want %d", tt.method, tt.path, len(tt.body), rec.Code, tt.want)
		}
	}
}
