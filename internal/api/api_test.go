package api_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/safestack/internal/api"
	"github.com/JaimeStill/safestack/internal/config"
	"github.com/JaimeStill/safestack/internal/infrastructure"
	"github.com/JaimeStill/safestack/pkg/events"
	"github.com/JaimeStill/safestack/pkg/lifecycle"
	"github.com/JaimeStill/safestack/pkg/module"
	"github.com/JaimeStill/safestack/pkg/openapi"
	"github.com/JaimeStill/safestack/pkg/pagination"
	"github.com/JaimeStill/safestack/pkg/storage"
)

type mockDB struct {
	conn *sql.DB
}

func (m *mockDB) Ready() bool { return true }

func (m *mockDB) Connection() *sql.DB { return m.conn }

func (m *mockDB) Start(*lifecycle.Coordinator) error { return nil }

type memStorage struct {
	blobs map[string][]byte
}

func (m *memStorage) Ready() bool { return true }

func (m *memStorage) Start(*lifecycle.Coordinator) error { return nil }

func (m *memStorage) URL(key string) string { return "https://blob.test/" + key }

func (m *memStorage) Key(url string) (string, bool) { return url, true }

func (m *memStorage) Exists(_ context.Context, key string) (bool, error) {
	_, ok := m.blobs[key]
	return ok, nil
}

func (m *memStorage) Upload(_ context.Context, key string, r io.Reader, _ int64, _ string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.blobs[key] = data
	return m.URL(key), nil
}

func (m *memStorage) Download(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := m.blobs[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memStorage) Delete(_ context.Context, key string) error {
	if _, ok := m.blobs[key]; !ok {
		return storage.ErrNotFound
	}
	delete(m.blobs, key)
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		Version: "0.1.0",
		API: config.APIConfig{
			BasePath:   "/api",
			Pagination: pagination.Config{DefaultPageSize: 20, MaxPageSize: 100, DefaultLimit: 100, MaxLimit: 1000},
			OpenAPI:    openapi.Config{Title: "SafeStack API", Description: "test"},
		},
		Analysis: config.AnalysisConfig{
			ClassifyTimeout: "1s",
			FFmpegPath:      "ffmpeg",
		},
	}
}

func newServer(t *testing.T) (http.Handler, sqlmock.Sqlmock, *memStorage) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	mock.MatchExpectationsInOrder(false)

	store := &memStorage{blobs: map[string][]byte{}}
	infra := &infrastructure.Infrastructure{
		Lifecycle: lifecycle.New(),
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		Database:  &mockDB{conn: db},
		Storage:   store,
		Events:    events.Noop{},
	}

	m, err := api.NewModule(testConfig(), infra)
	require.NoError(t, err)
	require.Nil(t, m.Domain.Remediation)
	require.NoError(t, m.Start(infra.Lifecycle))

	router := module.NewRouter()
	router.Mount(m.Module)

	return router, mock, store
}

func TestOpenAPIDescribesRoutes(t *testing.T) {
	srv, _, _ := newServer(t)

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/openapi.json", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var spec struct {
		Info struct {
			Title   string `json:"title"`
			Version string `json:"version"`
		} `json:"info"`
		Paths map[string]json.RawMessage `json:"paths"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&spec))

	assert.Equal(t, "SafeStack API", spec.Info.Title)
	assert.Equal(t, "0.1.0", spec.Info.Version)
	for _, path := range []string{
		"/analyze-video",
		"/analyze-frame",
		"/amend-policy",
		"/alerts",
		"/alerts/{id}",
		"/policies",
		"/policies/{id}",
		"/videos",
		"/stats",
		"/blobs/{key}",
	} {
		assert.Contains(t, spec.Paths, path)
	}
}

func TestStats(t *testing.T) {
	srv, mock, _ := newServer(t)

	mock.ExpectQuery("SELECT policy_level, COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"policy_level", "count"}).AddRow(1, 2).AddRow(3, 1))
	mock.ExpectQuery("SELECT document FROM policy_documents").
		WillReturnRows(sqlmock.NewRows([]string{"document"}).AddRow(
			[]byte(`{"version":2,"policies":[{"id":1,"title":"Poor Housekeeping","level":1},{"id":2,"title":"Missing Hard Hat","level":3}]}`),
		))
	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var stats api.Stats
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&stats))

	assert.Equal(t, 3, stats.Alerts)
	assert.Equal(t, 2, stats.Policies)
	assert.Equal(t, 4, stats.Videos)
	assert.Equal(t, map[int]int{1: 2, 3: 1}, stats.AlertsByLevel)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBlobDownload(t *testing.T) {
	srv, _, store := newServer(t)
	store.blobs["images/frame_abc_0123456789ab.png"] = []byte("png-bytes")

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/blobs/images/frame_abc_0123456789ab.png", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "png-bytes", rec.Body.String())

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/blobs/images/missing.png", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
