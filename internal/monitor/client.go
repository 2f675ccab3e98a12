package monitor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/safestack/internal/alerts"
	"github.com/JaimeStill/safestack/internal/analysis"
)

// Client talks to the SafeStack API.
type Client struct {
	base      string
	userEmail string
	http      *http.Client
}

// NewClient creates a Client for the API rooted at base
// (for example http://localhost:8080/api).
func NewClient(base, userEmail string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		base:      strings.TrimRight(base, "/"),
		userEmail: userEmail,
		http:      httpClient,
	}
}

// Upload implements Uploader with a multipart /analyze-video request.
func (c *Client) Upload(ctx context.Context, job Job) (*analysis.Result, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fields := map[string]string{
		"camera_id":         job.CameraID,
		"chunk_index":       strconv.Itoa(job.ChunkIndex),
		"chunk_started_at":  job.Segment.StartedAt.UTC().Format(time.RFC3339),
		"chunk_duration_ms": strconv.FormatInt(job.Segment.Duration.Milliseconds(), 10),
		"mime_type":         job.Segment.MimeType,
	}
	if c.userEmail != "" {
		fields["user_email"] = c.userEmail
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, err
		}
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="video"; filename="camera_%s_chunk_%d.mp4"`, job.CameraID, job.ChunkIndex))
	header.Set("Content-Type", job.Segment.MimeType)

	part, err := mw.CreatePart(header)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(job.Segment.Data); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/analyze-video", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var result analysis.Result
	if err := c.do(req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListAlerts implements AlertSource.
func (c *Client) ListAlerts(ctx context.Context, limit int) ([]alerts.Alert, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/alerts?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var list []alerts.Alert
	if err := c.do(req, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// FindAlert implements AlertSource.
func (c *Client) FindAlert(ctx context.Context, id uuid.UUID) (*alerts.Alert, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/alerts/"+id.String(), nil)
	if err != nil {
		return nil, err
	}

	var a alerts.Alert
	if err := c.do(req, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// StatusError is returned for non-2xx API responses.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("api returned %d: %s", e.Status, e.Message)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var body struct {
			Error string `json:"error"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(raw, &body) != nil || body.Error == "" {
			body.Error = strings.TrimSpace(string(raw))
		}
		return &StatusError{Status: resp.StatusCode, Message: body.Error}
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
