package videos_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/safestack/internal/videos"
	"github.com/JaimeStill/safestack/pkg/lifecycle"
	"github.com/JaimeStill/safestack/pkg/pagination"
	"github.com/JaimeStill/safestack/pkg/routes"
	"github.com/JaimeStill/safestack/pkg/storage"
)

type memStorage struct {
	blobs map[string][]byte
}

func newMemStorage() *memStorage { return &memStorage{blobs: map[string][]byte{}} }

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

var columns = []string{
	"id", "url", "storage_key", "content_type", "size_bytes", "camera_id",
	"chunk_index", "chunk_started_at", "duration_ms", "timestamp",
}

func newRepo(t *testing.T, store storage.System) (videos.System, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return videos.New(
		db,
		store,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		pagination.Config{DefaultPageSize: 20, MaxPageSize: 100, DefaultLimit: 100, MaxLimit: 1000},
	), mock
}

func TestCreate(t *testing.T) {
	store := newMemStorage()
	sys, mock := newRepo(t, store)

	camera := "1"
	chunk := 1
	started := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
	duration := int64(10000)

	mock.ExpectQuery("INSERT INTO videos").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), "video/webm", int64(4), camera, chunk, started, duration).
		WillReturnRows(sqlmock.NewRows(columns).AddRow(
			uuid.New().String(), "https://blob.test/videos/x.webm", "videos/x.webm", "video/webm", 4, camera,
			chunk, started, duration, time.Now(),
		))

	v, err := sys.Create(context.Background(), videos.CreateCommand{
		Data:           []byte("webm"),
		ContentType:    "video/webm;codecs=vp9",
		CameraID:       &camera,
		ChunkIndex:     &chunk,
		ChunkStartedAt: &started,
		DurationMS:     &duration,
	})
	require.NoError(t, err)

	require.NotNil(t, v.ChunkIndex)
	assert.Equal(t, 1, *v.ChunkIndex)
	assert.Len(t, store.blobs, 1)
	for key := range store.blobs {
		assert.Regexp(t, `^videos/[0-9a-f-]{36}\.webm$`, key)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateInsertFailureRemovesBlob(t *testing.T) {
	store := newMemStorage()
	sys, mock := newRepo(t, store)

	mock.ExpectQuery("INSERT INTO videos").WillReturnError(errors.New("connection reset"))

	_, err := sys.Create(context.Background(), videos.CreateCommand{Data: []byte("mp4"), ContentType: "video/mp4"})
	require.Error(t, err)
	assert.Empty(t, store.blobs)
}

func TestCreateEmpty(t *testing.T) {
	sys, _ := newRepo(t, newMemStorage())

	_, err := sys.Create(context.Background(), videos.CreateCommand{ContentType: "video/mp4"})
	assert.ErrorIs(t, err, videos.ErrInvalidVideo)
}

func TestDeleteUnknown(t *testing.T) {
	sys, mock := newRepo(t, newMemStorage())
	id := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("FROM public.videos v WHERE v.id = $1")).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(columns))

	assert.ErrorIs(t, sys.Delete(context.Background(), id), videos.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandlerList(t *testing.T) {
	sys, mock := newRepo(t, newMemStorage())

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM public.videos v")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY v.timestamp DESC LIMIT 20 OFFSET 0")).
		WillReturnRows(sqlmock.NewRows(columns).AddRow(
			uuid.New().String(), "https://blob.test/videos/a.mp4", "videos/a.mp4", "video/mp4", 10, nil,
			nil, nil, nil, time.Now(),
		))

	mux := http.NewServeMux()
	routes.Register(mux, sys.Handler().Routes())

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/videos", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var page pagination.PageResult[videos.Video]
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&page))
	assert.Equal(t, 1, page.Total)
	require.Len(t, page.Data, 1)
	assert.Nil(t, page.Data[0].CameraID)
}

func TestHandlerFindBadID(t *testing.T) {
	sys, _ := newRepo(t, newMemStorage())

	mux := http.NewServeMux()
	routes.Register(mux, sys.Handler().Routes())

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/videos/nope", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
