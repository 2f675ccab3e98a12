// Package alerts is the durable alert ledger. Alerts are identified
// solely by their server-assigned id; Merge reconciles alert collections
// on that identity and is shared by the server and the monitor.
package alerts

import (
	"time"

	"github.com/google/uuid"
)

// Alert is a persisted violation finding tied to the policy it breached.
// PolicyTitle and PolicyLevel are captured when the alert is created so
// later policy revisions do not rewrite history.
type Alert struct {
	ID             uuid.UUID  `json:"id"`
	PolicyID       int        `json:"policy_id"`
	PolicyTitle    string     `json:"policy_title"`
	PolicyLevel    int        `json:"policy_level"`
	Severity       string     `json:"severity"`
	ImageURLs      []string   `json:"image_urls"`
	AmendedImages  []string   `json:"amended_images"`
	Explanation    string     `json:"explanation"`
	Reasoning      string     `json:"reasoning"`
	Fix            string     `json:"fix"`
	VideoID        *uuid.UUID `json:"video_id,omitempty"`
	VideoTimestamp *string    `json:"video_timestamp,omitempty"`
	CameraID       *string    `json:"camera_id,omitempty"`
	UserEmail      *string    `json:"user_email"`
	Timestamp      time.Time  `json:"timestamp"`
}

// CreateCommand carries the fields for recording an alert. Severity
// defaults to the policy's label when empty.
type CreateCommand struct {
	PolicyID       int        `json:"policy_id"`
	ImageURLs      []string   `json:"image_urls"`
	Explanation    string     `json:"explanation"`
	Reasoning      string     `json:"reasoning,omitempty"`
	Fix            string     `json:"fix,omitempty"`
	Severity       string     `json:"severity,omitempty"`
	VideoID        *uuid.UUID `json:"video_id,omitempty"`
	VideoTimestamp *string    `json:"video_timestamp,omitempty"`
	CameraID       *string    `json:"camera_id,omitempty"`
	UserEmail      *string    `json:"user_email,omitempty"`
}

// Stats summarizes the alert ledger.
type Stats struct {
	Total   int         `json:"alerts"`
	ByLevel map[int]int `json:"alerts_by_level"`
}
