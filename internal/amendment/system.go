package amendment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/safestack/internal/alerts"
	"github.com/JaimeStill/safestack/internal/metrics"
	"github.com/JaimeStill/safestack/internal/policies"
)

// System defines the amendment operation.
type System interface {
	Handler() *Handler

	// Amend rewrites the description of the policy alertID was raised
	// against and returns the policy as stored in the new version.
	Amend(ctx context.Context, alertID uuid.UUID, feedback string) (*Result, error)
}

// AlertFinder looks up the alert that feedback refers to.
type AlertFinder interface {
	Find(ctx context.Context, id uuid.UUID) (*alerts.Alert, error)
}

type system struct {
	alerts   AlertFinder
	policies policies.System
	rewriter Rewriter
	logger   *slog.Logger
	timeout  time.Duration
}

// New creates the amendment system. A positive timeout bounds the rewrite call.
func New(finder AlertFinder, pol policies.System, rewriter Rewriter, logger *slog.Logger, timeout time.Duration) System {
	return &system{
		alerts:   finder,
		policies: pol,
		rewriter: rewriter,
		logger:   logger.With("system", "amendment"),
		timeout:  timeout,
	}
}

func (s *system) Handler() *Handler {
	return NewHandler(s, s.logger)
}

func (s *system) Amend(ctx context.Context, alertID uuid.UUID, feedback string) (*Result, error) {
	result, err := s.amend(ctx, alertID, feedback)

	outcome := metrics.OutcomeOK
	switch {
	case errors.Is(err, ErrTimeout):
		outcome = metrics.OutcomeTimeout
	case err != nil:
		outcome = metrics.OutcomeError
	}
	metrics.Amendments.WithLabelValues(outcome).Inc()

	return result, err
}

func (s *system) amend(ctx context.Context, alertID uuid.UUID, feedback string) (*Result, error) {
	feedback = strings.TrimSpace(feedback)
	if alertID == uuid.Nil || feedback == "" {
		return nil, ErrInputMissing
	}

	alert, err := s.alerts.Find(ctx, alertID)
	if err != nil {
		return nil, err
	}

	doc, err := s.policies.Current(ctx)
	if err != nil {
		return nil, fmt.Errorf("load policies: %w", err)
	}

	policy, ok := doc.Find(alert.PolicyID)
	if !ok {
		return nil, fmt.Errorf("%w: policy %d", policies.ErrNotFound, alert.PolicyID)
	}

	description, err := s.rewrite(ctx, Prompt(policy, alert, feedback))
	if err != nil {
		return nil, err
	}

	next, err := s.policies.Revise(ctx, policy.ID, policies.Revision{Description: description})
	if err != nil {
		return nil, err
	}

	revised, ok := next.Find(policy.ID)
	if !ok {
		return nil, fmt.Errorf("%w: policy %d", policies.ErrNotFound, policy.ID)
	}

	s.logger.InfoContext(
		ctx, "policy amended",
		"alert_id", alertID,
		"policy_id", policy.ID,
		"from_version", doc.Version,
		"to_version", next.Version,
	)

	return &Result{
		Policy:    revised,
		Version:   next.Version,
		UpdatedAt: next.UpdatedAt,
	}, nil
}

func (s *system) rewrite(ctx context.Context, prompt string) (string, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	content, err := s.rewriter.Chat(ctx, prompt)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: %w", ErrTimeout, err)
		}
		return "", fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	description := strings.TrimSpace(content)
	if description == "" {
		return "", ErrEmptyRewrite
	}
	return description, nil
}
