package analysis

import (
	"context"
	"log/slog"
	"time"

	"github.com/JaimeStill/safestack/internal/alerts"
	"github.com/JaimeStill/safestack/internal/classifier"
	"github.com/JaimeStill/safestack/internal/policies"
	"github.com/JaimeStill/safestack/internal/videos"
	"github.com/JaimeStill/safestack/pkg/storage"
)

// FrameExtractor pulls a single still from a recorded segment.
type FrameExtractor interface {
	ExtractFrame(ctx context.Context, path string, offset time.Duration) ([]byte, error)
}

// Remediator accepts alerts for background amended-image generation.
// Submit must not block; it reports whether the job was queued.
type Remediator interface {
	Submit(alert alerts.Alert, frame []byte) bool
}

// Runtime bundles the dependencies that workflow nodes require.
type Runtime struct {
	Classifier  *classifier.Client
	Policies    policies.System
	Alerts      alerts.System
	Videos      videos.System
	Storage     storage.System
	Frames      FrameExtractor
	Remediation Remediator
	Logger      *slog.Logger

	// FrameWorkers caps concurrent frame extractions. Zero means one per CPU.
	FrameWorkers int
}
