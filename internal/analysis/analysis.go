// Package analysis turns submitted segments into alerts. A submission is
// recorded as a video, classified against the current policy document,
// evidence frames are extracted for each finding, and every finding whose
// policy resolves becomes an alert.
package analysis

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/safestack/internal/alerts"
	"github.com/JaimeStill/safestack/internal/classifier"
)

// Submission is one captured segment and its capture metadata.
type Submission struct {
	Media           classifier.Media
	CameraID        *string
	ChunkIndex      *int
	ChunkStartedAt  *time.Time
	ChunkDurationMS *int64
	UserEmail       *string
}

// Result reports what an analysis produced.
type Result struct {
	VideoID         uuid.UUID      `json:"video_id"`
	ViolationsFound int            `json:"violations_found"`
	AlertsCreated   int            `json:"alerts_created"`
	Alerts          []AlertSummary `json:"alerts"`
	// Records holds the created alerts in full for clients that merge
	// them into a local alert view.
	Records []alerts.Alert `json:"records"`
}

// AlertSummary describes one created alert.
type AlertSummary struct {
	AlertID        uuid.UUID `json:"alert_id"`
	PolicyName     string    `json:"policy_name"`
	PolicyLevel    int       `json:"policy_level"`
	Severity       string    `json:"severity"`
	VideoTimestamp string    `json:"video_timestamp"`
	Description    string    `json:"description"`
	Reasoning      string    `json:"reasoning"`
	ImageURL       *string   `json:"image_url"`
}

// FrameResult reports the findings for a single frame. Frames are not persisted.
type FrameResult struct {
	ViolationsFound int                    `json:"violations_found"`
	Violations      []classifier.Violation `json:"violations"`
}

var (
	// ErrInputMissing is returned when a required field is absent.
	ErrInputMissing = errors.New("required input missing")
	// ErrPolicyUnresolved is returned when a finding names no known policy.
	ErrPolicyUnresolved = errors.New("policy not found for violation")
	// ErrStorage is returned when the segment cannot be stored.
	ErrStorage = errors.New("blob storage unavailable")
)

// MapHTTPStatus maps analysis errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrInputMissing), errors.Is(err, classifier.ErrInvalidMedia):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, classifier.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, ErrStorage), errors.Is(err, classifier.ErrUpstream):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
