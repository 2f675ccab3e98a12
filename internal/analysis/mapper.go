package analysis

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/JaimeStill/safestack/internal/alerts"
	"github.com/JaimeStill/safestack/internal/classifier"
	"github.com/JaimeStill/safestack/internal/media"
	"github.com/JaimeStill/safestack/internal/policies"
	"github.com/JaimeStill/safestack/pkg/storage"
)

// Mapper converts classifier findings into alert creation requests.
type Mapper struct {
	storage storage.System
	logger  *slog.Logger
}

// NewMapper creates a Mapper that stores evidence frames in store.
func NewMapper(store storage.System, logger *slog.Logger) *Mapper {
	return &Mapper{
		storage: store,
		logger:  logger,
	}
}

// Map resolves v's policy by exact title in doc and uploads frame, when
// present, as evidence. It returns ErrPolicyUnresolved without uploading
// anything when the policy is unknown. A failed evidence upload is logged
// and the alert is created without an image.
func (m *Mapper) Map(
	ctx context.Context,
	doc *policies.Document,
	v classifier.Violation,
	frame []byte,
	videoID uuid.UUID,
	sub Submission,
) (alerts.CreateCommand, error) {
	policy, ok := doc.FindByTitle(v.PolicyName)
	if !ok {
		return alerts.CreateCommand{}, fmt.Errorf("%w: %q", ErrPolicyUnresolved, v.PolicyName)
	}

	severity := v.Severity
	if _, ok := v.Level(); !ok {
		severity = policies.UnknownSeverity
	}

	cmd := alerts.CreateCommand{
		PolicyID:    policy.ID,
		ImageURLs:   []string{},
		Explanation: v.Description,
		Reasoning:   v.Reasoning,
		Fix:         v.Fix,
		Severity:    severity,
		VideoID:     &videoID,
		CameraID:    sub.CameraID,
		UserEmail:   sub.UserEmail,
	}
	if v.Timestamp != "" {
		ts := v.Timestamp
		cmd.VideoTimestamp = &ts
	}

	if len(frame) > 0 {
		key := fmt.Sprintf("images/frame_%s_%s.png", videoID, token())
		url, err := m.storage.Upload(ctx, key, bytes.NewReader(frame), int64(len(frame)), media.FrameMimeType)
		if err != nil {
			m.logger.WarnContext(ctx, "evidence upload failed", "key", key, "error", err)
		} else {
			cmd.ImageURLs = append(cmd.ImageURLs, url)
		}
	}

	return cmd, nil
}

func token() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
