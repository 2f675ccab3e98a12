package module_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/JaimeStill/safestack/pkg/module"
)

func echoPath() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(r.URL.Path))
	})
}

func TestRouterDispatch(t *testing.T) {
	router := module.NewRouter()

	api := module.New("/api", echoPath())
	api.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Module", "api")
			next.ServeHTTP(w, r)
		})
	})
	router.Mount(api)
	router.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	router.Handle("GET /metrics", echoPath())

	tests := []struct {
		path       string
		wantBody   string
		wantModule string
	}{
		{path: "/api/alerts/42", wantBody: "/alerts/42", wantModule: "api"},
		{path: "/api", wantBody: "/", wantModule: "api"},
		{path: "/api/policies/", wantBody: "/policies", wantModule: "api"},
		{path: "/healthz", wantBody: "ok"},
		{path: "/metrics", wantBody: "/metrics"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest("GET", tt.path, nil))

			if rec.Body.String() != tt.wantBody {
				t.Errorf("body = %q, want %q", rec.Body.String(), tt.wantBody)
			}
			if got := rec.Header().Get("X-Module"); got != tt.wantModule {
				t.Errorf("X-Module = %q, want %q", got, tt.wantModule)
			}
		})
	}

	if got := router.Modules(); len(got) != 1 || got[0] != "/api" {
		t.Errorf("Modules = %v", got)
	}
}

func TestNewRejectsInvalidPrefix(t *testing.T) {
	for _, prefix := range []string{"", "api", "/api/v1"} {
		t.Run(prefix, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Errorf("New(%q) did not panic", prefix)
				}
			}()
			module.New(prefix, echoPath())
		})
	}
}

func TestMountDuplicatePanics(t *testing.T) {
	router := module.NewRouter()
	router.Mount(module.New("/api", echoPath()))

	defer func() {
		if recover() == nil {
			t.Error("duplicate mount did not panic")
		}
	}()
	router.Mount(module.New("/api", echoPath()))
}

func TestUseAfterServeRebuildsChain(t *testing.T) {
	m := module.New("/api", echoPath())

	rec := httptest.NewRecorder()
	m.Serve(rec, httptest.NewRequest("GET", "/api/stats", nil))
	if rec.Header().Get("X-Late") != "" {
		t.Fatal("unexpected header before Use")
	}

	m.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Late", "1")
			next.ServeHTTP(w, r)
		})
	})

	rec = httptest.NewRecorder()
	m.Serve(rec, httptest.NewRequest("GET", "/api/stats", nil))
	if rec.Header().Get("X-Late") != "1" {
		t.Error("middleware added after first request was not applied")
	}
	if rec.Body.String() != "/stats" {
		t.Errorf("body = %q, want /stats", rec.Body.String())
	}
}
