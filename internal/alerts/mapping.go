package alerts

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/JaimeStill/safestack/pkg/query"
	"github.com/JaimeStill/safestack/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "alerts", "a").
	Project("id", "ID").
	Project("policy_id", "PolicyID").
	Project("policy_title", "PolicyTitle").
	Project("policy_level", "PolicyLevel").
	Project("severity", "Severity").
	Project("image_urls", "ImageURLs").
	Project("amended_images", "AmendedImages").
	Project("explanation", "Explanation").
	Project("reasoning", "Reasoning").
	Project("fix", "Fix").
	Project("video_id", "VideoID").
	Project("video_timestamp", "VideoTimestamp").
	Project("camera_id", "CameraID").
	Project("user_email", "UserEmail").
	Project("timestamp", "Timestamp")

var defaultSort = query.SortField{
	Field:      "Timestamp",
	Descending: true,
}

// Filters contains optional alert list criteria. Nil fields are ignored.
// MinLevel matches alerts at or above the given policy level.
type Filters struct {
	UserEmail *string `json:"user_email,omitempty"`
	PolicyID  *int    `json:"policy_id,omitempty"`
	MinLevel  *int    `json:"min_level,omitempty"`
	CameraID  *string `json:"camera_id,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("UserEmail", f.UserEmail).
		WhereEquals("PolicyID", f.PolicyID).
		WhereAtLeast("PolicyLevel", f.MinLevel).
		WhereEquals("CameraID", f.CameraID)
}

// FiltersFromQuery extracts filter values from URL query parameters.
// Non-integer policy_id or min_level values are rejected.
func FiltersFromQuery(values url.Values) (Filters, error) {
	var f Filters

	if e := values.Get("user_email"); e != "" {
		f.UserEmail = &e
	}

	if c := values.Get("camera_id"); c != "" {
		f.CameraID = &c
	}

	if p := values.Get("policy_id"); p != "" {
		v, err := strconv.Atoi(p)
		if err != nil {
			return f, fmt.Errorf("%w: policy_id must be an integer", ErrInvalidAlert)
		}
		f.PolicyID = &v
	}

	if l := values.Get("min_level"); l != "" {
		v, err := strconv.Atoi(l)
		if err != nil {
			return f, fmt.Errorf("%w: min_level must be an integer", ErrInvalidAlert)
		}
		f.MinLevel = &v
	}

	return f, nil
}

func scanAlert(s repository.Scanner) (Alert, error) {
	var (
		a       Alert
		images  repository.JSON[[]string]
		amended repository.JSON[[]string]
	)

	err := s.Scan(
		&a.ID,
		&a.PolicyID,
		&a.PolicyTitle,
		&a.PolicyLevel,
		&a.Severity,
		&images,
		&amended,
		&a.Explanation,
		&a.Reasoning,
		&a.Fix,
		&a.VideoID,
		&a.VideoTimestamp,
		&a.CameraID,
		&a.UserEmail,
		&a.Timestamp,
	)
	if err != nil {
		return a, err
	}

	a.ImageURLs = nonNil(images.V)
	a.AmendedImages = nonNil(amended.V)
	return a, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
