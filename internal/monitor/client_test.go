package monitor_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/safestack/internal/alerts"
	"github.com/JaimeStill/safestack/internal/analysis"
	"github.com/JaimeStill/safestack/internal/monitor"
)

func TestClientUpload(t *testing.T) {
	videoID := uuid.New()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/analyze-video", r.URL.Path)
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}

		assert.Equal(t, "3", r.FormValue("camera_id"))
		assert.Equal(t, "9", r.FormValue("chunk_index"))
		assert.Equal(t, "10000", r.FormValue("chunk_duration_ms"))
		assert.Equal(t, "2026-03-02T09:00:00Z", r.FormValue("chunk_started_at"))
		assert.Equal(t, "ops@example.com", r.FormValue("user_email"))

		file, header, err := r.FormFile("video")
		if !assert.NoError(t, err) {
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		assert.Equal(t, "mp4-bytes", string(data))
		assert.Equal(t, "video/mp4", header.Header.Get("Content-Type"))

		json.NewEncoder(w).Encode(analysis.Result{VideoID: videoID, ViolationsFound: 2, AlertsCreated: 1})
	}))
	defer srv.Close()

	c := monitor.NewClient(srv.URL+"/api/", "ops@example.com", nil)
	result, err := c.Upload(context.Background(), monitor.Job{
		CameraID:   "3",
		ChunkIndex: 9,
		Segment: monitor.Segment{
			Data:      []byte("mp4-bytes"),
			MimeType:  "video/mp4",
			StartedAt: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
			Duration:  10 * time.Second,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, videoID, result.VideoID)
	assert.Equal(t, 1, result.AlertsCreated)
}

func TestClientAlerts(t *testing.T) {
	a := alerts.Alert{ID: uuid.New(), PolicyTitle: "Blocked Exit", Timestamp: time.Now().UTC()}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /alerts", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "25", r.URL.Query().Get("limit"))
		json.NewEncoder(w).Encode([]alerts.Alert{a})
	})
	mux.HandleFunc("GET /alerts/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != a.ID.String() {
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `{"error":"alert not found"}`)
			return
		}
		json.NewEncoder(w).Encode(a)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := monitor.NewClient(srv.URL, "", nil)

	list, err := c.ListAlerts(context.Background(), 25)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, a.ID, list[0].ID)

	found, err := c.FindAlert(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, "Blocked Exit", found.PolicyTitle)

	_, err = c.FindAlert(context.Background(), uuid.New())
	var statusErr *monitor.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.Status)
	assert.Equal(t, "alert not found", statusErr.Message)
}
