package classifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/JaimeStill/go-agents/pkg/agent"
	gaconfig "github.com/JaimeStill/go-agents/pkg/config"

	"github.com/JaimeStill/safestack/internal/metrics"
	"github.com/JaimeStill/safestack/internal/policies"
	"github.com/JaimeStill/safestack/pkg/formatting"
)

// Model performs a single vision call and returns the raw text response.
type Model interface {
	Vision(ctx context.Context, prompt string, images []string) (string, error)
}

// AgentModel calls a go-agents vision agent. A fresh agent is created per call.
type AgentModel struct {
	Config gaconfig.AgentConfig
}

// Vision implements Model.
func (m *AgentModel) Vision(ctx context.Context, prompt string, images []string) (string, error) {
	a, err := agent.New(&m.Config)
	if err != nil {
		return "", fmt.Errorf("create agent: %w", err)
	}

	resp, err := a.Vision(ctx, prompt, images)
	if err != nil {
		return "", err
	}
	return resp.Content(), nil
}

// Client classifies media against the current policy document.
type Client struct {
	model   Model
	logger  *slog.Logger
	timeout time.Duration
}

// New creates a Client. A positive timeout bounds each model call.
func New(model Model, logger *slog.Logger, timeout time.Duration) *Client {
	return &Client{
		model:   model,
		logger:  logger.With("system", "classifier"),
		timeout: timeout,
	}
}

// Classify submits media with the prompt for its kind and returns the
// reported violations. Output with no recognizable JSON array yields an
// empty result; such responses are logged and counted separately from
// genuine empty findings. Violations are returned as reported, without
// deduplication or severity coercion.
func (c *Client) Classify(ctx context.Context, media Media, doc *policies.Document) ([]Violation, error) {
	uri, err := media.DataURI()
	if err != nil {
		return nil, err
	}

	prompt := VideoPrompt(doc)
	if media.IsImage() {
		prompt = FramePrompt(doc)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	content, err := c.model.Vision(ctx, prompt, []string{uri})
	elapsed := time.Since(start)

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			metrics.ObserveClassification(metrics.OutcomeTimeout, elapsed)
			return nil, fmt.Errorf("%w: %w", ErrTimeout, err)
		}
		metrics.ObserveClassification(metrics.OutcomeError, elapsed)
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	metrics.ObserveClassification(metrics.OutcomeOK, elapsed)

	violations := c.parse(ctx, content)

	c.logger.InfoContext(
		ctx, "classification complete",
		"mime_type", media.MimeType,
		"version", doc.Version,
		"violations", len(violations),
		"elapsed", elapsed,
	)
	return violations, nil
}

func (c *Client) parse(ctx context.Context, content string) []Violation {
	violations, err := ParseViolations(content)
	if err != nil {
		metrics.ClassifierParseFailures.Inc()
		c.logger.WarnContext(ctx, "classifier output not parseable, treating as no violations",
			"error", err,
			"response", truncate(content, 500),
		)
		return []Violation{}
	}
	return violations
}

// ParseViolations decodes the model output: a strict parse of the trimmed
// text first, then the first balanced JSON array embedded in prose.
func ParseViolations(content string) ([]Violation, error) {
	violations, err := formatting.ParseArray[Violation](content)
	if err != nil {
		return nil, err
	}
	if violations == nil {
		violations = []Violation{}
	}
	return violations, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
