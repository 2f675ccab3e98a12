package monitor

import (
	"context"
	"log/slog"
	"time"

	"github.com/JaimeStill/safestack/internal/media"
)

// Capturer records segments from a camera.
type Capturer interface {
	// Ready reports whether the feed is producing video.
	Ready(ctx context.Context, cam Camera) bool
	// Capture records d of the feed. A nil segment with a nil error means
	// nothing usable was produced.
	Capture(ctx context.Context, cam Camera, d time.Duration) (*Segment, error)
}

// FFmpegCapturer records segments with ffmpeg.
type FFmpegCapturer struct {
	ffmpeg *media.FFmpeg
	logger *slog.Logger
}

// NewFFmpegCapturer creates a capturer using the given ffmpeg binary.
func NewFFmpegCapturer(path string, logger *slog.Logger) *FFmpegCapturer {
	return &FFmpegCapturer{
		ffmpeg: media.New(path),
		logger: logger.With("system", "capturer"),
	}
}

// Ready implements Capturer.
func (c *FFmpegCapturer) Ready(ctx context.Context, cam Camera) bool {
	if err := c.ffmpeg.Probe(ctx, cam.Source); err != nil {
		c.logger.DebugContext(ctx, "camera not ready", "camera", cam.ID, "error", err)
		return false
	}
	return true
}

// Capture implements Capturer.
func (c *FFmpegCapturer) Capture(ctx context.Context, cam Camera, d time.Duration) (*Segment, error) {
	started := time.Now().UTC()

	data, err := c.ffmpeg.Record(ctx, cam.Source, d)
	if err != nil {
		return nil, err
	}

	return &Segment{
		Data:      data,
		MimeType:  media.SegmentMimeType,
		StartedAt: started,
		Duration:  d,
	}, nil
}
