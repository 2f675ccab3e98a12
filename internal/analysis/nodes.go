package analysis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/JaimeStill/go-agents-orchestration/pkg/state"

	"github.com/JaimeStill/safestack/internal/alerts"
	"github.com/JaimeStill/safestack/internal/classifier"
	"github.com/JaimeStill/safestack/internal/metrics"
	"github.com/JaimeStill/safestack/internal/policies"
)

// classifyNode sends the submission to the vision model and stores the
// reported violations.
func classifyNode(ex *execution) state.StateNode {
	rt := ex.rt
	return state.NewFunctionNode(func(ctx context.Context, s state.State) (state.State, error) {
		sub, err := get[Submission](s, KeySubmission)
		if err != nil {
			return ex.fail(s, "classify", err)
		}

		doc, err := get[*policies.Document](s, KeyDocument)
		if err != nil {
			return ex.fail(s, "classify", err)
		}

		violations, err := rt.Classifier.Classify(ctx, sub.Media, doc)
		if err != nil {
			return ex.fail(s, "classify", err)
		}

		rt.Logger.InfoContext(ctx, "classify node complete", "violations", len(violations))

		return s.Set(KeyViolations, violations), nil
	})
}

// extractNode pulls an evidence frame at each violation's timestamp.
// Extraction failures leave that violation without a frame.
func extractNode(ex *execution) state.StateNode {
	rt := ex.rt
	return state.NewFunctionNode(func(ctx context.Context, s state.State) (state.State, error) {
		sub, err := get[Submission](s, KeySubmission)
		if err != nil {
			return ex.fail(s, "extract", err)
		}

		violations, err := get[[]classifier.Violation](s, KeyViolations)
		if err != nil {
			return ex.fail(s, "extract", err)
		}

		frames := make([][]byte, len(violations))
		if rt.Frames == nil || sub.Media.IsImage() {
			return s.Set(KeyFrames, frames), nil
		}

		tempDir, err := os.MkdirTemp("", "safestack-extract-*")
		if err != nil {
			return ex.fail(s, "extract", fmt.Errorf("create temp directory: %w", err))
		}
		defer os.RemoveAll(tempDir)

		segment := filepath.Join(tempDir, "segment")
		if err := os.WriteFile(segment, sub.Media.Data, 0o600); err != nil {
			return ex.fail(s, "extract", fmt.Errorf("write segment: %w", err))
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(workerCount(rt.FrameWorkers, len(violations)))

		for i, v := range violations {
			g.Go(func() error {
				offset, err := v.Offset()
				if err != nil {
					rt.Logger.WarnContext(gctx, "violation timestamp unusable", "timestamp", v.Timestamp, "error", err)
					return nil
				}

				frame, err := rt.Frames.ExtractFrame(gctx, segment, offset)
				if err != nil {
					rt.Logger.WarnContext(gctx, "frame extraction failed", "timestamp", v.Timestamp, "error", err)
					return nil
				}

				frames[i] = frame
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			return ex.fail(s, "extract", err)
		}

		return s.Set(KeyFrames, frames), nil
	})
}

// recordNode maps violations onto policies and persists an alert for each
// one that resolves. Unresolved violations are counted and skipped.
func recordNode(ex *execution) state.StateNode {
	rt := ex.rt
	return state.NewFunctionNode(func(ctx context.Context, s state.State) (state.State, error) {
		sub, err := get[Submission](s, KeySubmission)
		if err != nil {
			return ex.fail(s, "record", err)
		}

		doc, err := get[*policies.Document](s, KeyDocument)
		if err != nil {
			return ex.fail(s, "record", err)
		}

		videoID, err := get[uuid.UUID](s, KeyVideoID)
		if err != nil {
			return ex.fail(s, "record", err)
		}

		violations, err := get[[]classifier.Violation](s, KeyViolations)
		if err != nil {
			return ex.fail(s, "record", err)
		}

		frames, _ := get[[][]byte](s, KeyFrames)

		result := &Result{
			VideoID:         videoID,
			ViolationsFound: len(violations),
			Alerts:          []AlertSummary{},
			Records:         []alerts.Alert{},
		}

		mapper := NewMapper(rt.Storage, rt.Logger)

		for i, v := range violations {
			var frame []byte
			if i < len(frames) {
				frame = frames[i]
			}

			cmd, err := mapper.Map(ctx, doc, v, frame, videoID, sub)
			if err != nil {
				if errors.Is(err, ErrPolicyUnresolved) {
					metrics.ViolationsUnresolved.Inc()
					rt.Logger.WarnContext(ctx, "violation skipped", "policy", v.PolicyName)
					continue
				}
				return ex.fail(s, "record", err)
			}

			alert, err := rt.Alerts.Create(ctx, cmd)
			if err != nil {
				return ex.fail(s, "record", err)
			}

			result.Records = append(result.Records, *alert)
			result.Alerts = append(result.Alerts, summarize(alert, v))

			if rt.Remediation != nil && len(frame) > 0 {
				rt.Remediation.Submit(*alert, frame)
			}
		}

		result.AlertsCreated = len(result.Records)

		rt.Logger.InfoContext(
			ctx, "record node complete",
			"video_id", videoID,
			"violations", result.ViolationsFound,
			"alerts", result.AlertsCreated,
		)

		return s.Set(KeyResult, result), nil
	})
}

func summarize(a *alerts.Alert, v classifier.Violation) AlertSummary {
	summary := AlertSummary{
		AlertID:        a.ID,
		PolicyName:     a.PolicyTitle,
		PolicyLevel:    a.PolicyLevel,
		Severity:       a.Severity,
		VideoTimestamp: v.Timestamp,
		Description:    a.Explanation,
		Reasoning:      a.Reasoning,
	}
	if len(a.ImageURLs) > 0 {
		url := a.ImageURLs[0]
		summary.ImageURL = &url
	}
	return summary
}
