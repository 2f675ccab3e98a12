package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/JaimeStill/safestack/internal/classifier"
	"github.com/JaimeStill/safestack/internal/media"
	"github.com/JaimeStill/safestack/internal/videos"
)

// System defines the analysis operations.
type System interface {
	Handler() *Handler

	// AnalyzeVideo stores the segment, classifies it against the current
	// policy document, and records an alert for every resolved finding.
	AnalyzeVideo(ctx context.Context, sub Submission) (*Result, error)
	// AnalyzeFrame classifies a still image without persisting anything.
	AnalyzeFrame(ctx context.Context, frame classifier.Media) (*FrameResult, error)
}

type system struct {
	rt            *Runtime
	logger        *slog.Logger
	maxUploadSize int64
}

// New creates the analysis system.
func New(rt *Runtime, maxUploadSize int64) System {
	return &system{
		rt:            rt,
		logger:        rt.Logger.With("system", "analysis"),
		maxUploadSize: maxUploadSize,
	}
}

func (s *system) Handler() *Handler {
	return NewHandler(s, s.logger, s.maxUploadSize)
}

func (s *system) AnalyzeVideo(ctx context.Context, sub Submission) (*Result, error) {
	if len(sub.Media.Data) == 0 {
		return nil, fmt.Errorf("%w: video data", ErrInputMissing)
	}
	if sub.Media.MimeType == "" {
		sub.Media.MimeType = media.SegmentMimeType
	}

	doc, err := s.rt.Policies.Current(ctx)
	if err != nil {
		return nil, fmt.Errorf("load policies: %w", err)
	}

	video, err := s.rt.Videos.Create(ctx, videos.CreateCommand{
		Data:           sub.Media.Data,
		ContentType:    sub.Media.MimeType,
		CameraID:       sub.CameraID,
		ChunkIndex:     sub.ChunkIndex,
		ChunkStartedAt: sub.ChunkStartedAt,
		DurationMS:     sub.ChunkDurationMS,
	})
	if err != nil {
		if errors.Is(err, videos.ErrInvalidVideo) {
			return nil, fmt.Errorf("%w: %w", ErrInputMissing, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	result, err := Execute(ctx, s.rt, video.ID, doc, sub)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(
		ctx, "segment analyzed",
		"video_id", video.ID,
		"camera", sub.CameraID,
		"chunk", sub.ChunkIndex,
		"violations", result.ViolationsFound,
		"alerts", result.AlertsCreated,
	)

	return result, nil
}

func (s *system) AnalyzeFrame(ctx context.Context, frame classifier.Media) (*FrameResult, error) {
	if len(frame.Data) == 0 {
		return nil, fmt.Errorf("%w: frame data", ErrInputMissing)
	}
	if frame.MimeType == "" {
		frame.MimeType = "image/jpeg"
	}

	doc, err := s.rt.Policies.Current(ctx)
	if err != nil {
		return nil, fmt.Errorf("load policies: %w", err)
	}

	violations, err := s.rt.Classifier.Classify(ctx, frame, doc)
	if err != nil {
		return nil, err
	}

	return &FrameResult{
		ViolationsFound: len(violations),
		Violations:      violations,
	}, nil
}
