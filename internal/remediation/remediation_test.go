package remediation_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/safestack/internal/alerts"
	"github.com/JaimeStill/safestack/internal/metrics"
	"github.com/JaimeStill/safestack/internal/remediation"
	"github.com/JaimeStill/safestack/pkg/lifecycle"
	"github.com/JaimeStill/safestack/pkg/storage"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func pngFrame(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))))
	return buf.Bytes()
}

type renderFunc func(ctx context.Context, prompt string, frame []byte) ([]byte, error)

func (f renderFunc) Render(ctx context.Context, prompt string, frame []byte) ([]byte, error) {
	return f(ctx, prompt, frame)
}

type update struct {
	id   uuid.UUID
	urls []string
}

type updater chan update

func (u updater) SetAmendedImages(_ context.Context, id uuid.UUID, urls []string) error {
	u <- update{id: id, urls: urls}
	return nil
}

type memStorage struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func (m *memStorage) Ready() bool { return true }

func (m *memStorage) Start(*lifecycle.Coordinator) error { return nil }

func (m *memStorage) URL(key string) string { return "https://blob.test/" + key }

func (m *memStorage) Key(url string) (string, bool) {
	return strings.CutPrefix(url, "https://blob.test/")
}

func (m *memStorage) Exists(context.Context, string) (bool, error) { return false, nil }

func (m *memStorage) Upload(_ context.Context, key string, r io.Reader, _ int64, _ string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key] = data
	return m.URL(key), nil
}

func (m *memStorage) Download(context.Context, string) (io.ReadCloser, error) {
	return nil, storage.ErrNotFound
}

func (m *memStorage) Delete(context.Context, string) error { return nil }

func sampleAlert() alerts.Alert {
	return alerts.Alert{
		ID:          uuid.New(),
		PolicyTitle: "Blocked Exit",
		Explanation: "Pallet in front of the fire door",
		Reasoning:   "Egress path obstructed",
		Fix:         "Move the pallet to the staging area",
	}
}

func TestPrompt(t *testing.T) {
	prompt := remediation.Prompt(sampleAlert())

	assert.Contains(t, prompt, "Violation detected: Blocked Exit")
	assert.Contains(t, prompt, "How to fix: Move the pallet to the staging area")
	assert.NotContains(t, prompt, "{")
}

func TestServiceAttachesAmendedImage(t *testing.T) {
	store := &memStorage{blobs: map[string][]byte{}}
	updates := make(updater, 1)
	a := sampleAlert()

	renderer := renderFunc(func(_ context.Context, prompt string, frame []byte) ([]byte, error) {
		if !strings.Contains(prompt, a.Fix) {
			return nil, errors.New("prompt missing fix")
		}
		return []byte("amended"), nil
	})

	svc := remediation.New(renderer, updates, store, discard(), remediation.Options{Workers: 2, QueueSize: 4, Timeout: time.Second})

	lc := lifecycle.New()
	require.NoError(t, svc.Start(lc))
	require.True(t, svc.Submit(a, []byte("frame")))

	select {
	case u := <-updates:
		assert.Equal(t, a.ID, u.id)
		require.Len(t, u.urls, 1)
		assert.Contains(t, u.urls[0], "images/amended_"+a.ID.String())
	case <-time.After(2 * time.Second):
		t.Fatal("amended image never attached")
	}

	require.NoError(t, lc.Shutdown(time.Second))
}

func TestServiceRenderFailureLeavesAlert(t *testing.T) {
	updates := make(updater, 1)
	rendered := make(chan struct{})

	renderer := renderFunc(func(context.Context, string, []byte) ([]byte, error) {
		defer close(rendered)
		return nil, remediation.ErrNoImage
	})

	svc := remediation.New(renderer, updates, &memStorage{blobs: map[string][]byte{}}, discard(), remediation.Options{})

	lc := lifecycle.New()
	require.NoError(t, svc.Start(lc))
	svc.Submit(sampleAlert(), []byte("frame"))

	<-rendered
	require.NoError(t, lc.Shutdown(time.Second))
	assert.Empty(t, updates)
}

func TestSubmitDropsWhenFull(t *testing.T) {
	svc := remediation.New(
		renderFunc(func(context.Context, string, []byte) ([]byte, error) { return nil, nil }),
		make(updater, 1),
		&memStorage{blobs: map[string][]byte{}},
		discard(),
		remediation.Options{Workers: 1, QueueSize: 1},
	)
	dropped := metrics.RemediationJobs.WithLabelValues(metrics.OutcomeDropped)
	before := testutil.ToFloat64(dropped)

	assert.True(t, svc.Submit(sampleAlert(), nil))
	assert.False(t, svc.Submit(sampleAlert(), nil))
	assert.Equal(t, before+1, testutil.ToFloat64(dropped))
}

func TestHTTPRenderer(t *testing.T) {
	frame := pngFrame(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "image-model", body["model"])
		assert.Equal(t, "b64_json", body["response_format"])
		assert.True(t, strings.HasPrefix(body["image"].(string), "data:image/png"))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]string{{"b64_json": base64.StdEncoding.EncodeToString([]byte("edited"))}},
		})
	}))
	defer srv.Close()

	r := &remediation.HTTPRenderer{Endpoint: srv.URL, Model: "image-model", Token: "secret"}
	out, err := r.Render(context.Background(), "fix it", frame)
	require.NoError(t, err)
	assert.Equal(t, []byte("edited"), out)
}

func TestHTTPRendererErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "server error", status: http.StatusInternalServerError, body: `{"error":"boom"}`},
		{name: "empty data", status: http.StatusOK, body: `{"data":[]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			r := &remediation.HTTPRenderer{Endpoint: srv.URL}
			_, err := r.Render(context.Background(), "fix it", pngFrame(t))
			assert.Error(t, err)
		})
	}
}
