// Package amendment rewrites a policy description from human feedback on
// a false-positive alert. Each amendment produces a new policy document
// version; a failed amendment leaves the current version untouched.
package amendment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/go-agents/pkg/agent"
	gaconfig "github.com/JaimeStill/go-agents/pkg/config"

	"github.com/JaimeStill/safestack/internal/alerts"
	"github.com/JaimeStill/safestack/internal/policies"
)

// Feedback is a human explanation of why an alert was a false positive.
// It is consumed by Amend and never stored.
type Feedback struct {
	AlertID  string `json:"alert_id"`
	Feedback string `json:"feedback"`
}

// Result is the amended policy with the document version that holds it.
type Result struct {
	policies.Policy
	Version   int       `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Domain errors for amendment.
var (
	ErrInputMissing = errors.New("alert_id and feedback are required")
	ErrUpstream     = errors.New("rewrite model unavailable")
	ErrTimeout      = errors.New("rewrite timed out")
	ErrEmptyRewrite = errors.New("rewrite model returned an empty description")
)

// MapHTTPStatus maps amendment errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrInputMissing):
		return http.StatusBadRequest
	case errors.Is(err, alerts.ErrNotFound), errors.Is(err, policies.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUpstream):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, policies.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

const promptTemplate = `You are an expert safety policy writer reviewing a policy that generated a false positive detection.

Current Policy:
- Title: {POLICY_TITLE}
- Severity Level: {POLICY_LEVEL}
- Description: {POLICY_DESCRIPTION}

Detection Being Disputed:
{ALERT_EXPLANATION}

User Feedback (explaining why this was a false positive):
{USER_FEEDBACK}

Based on the user's feedback, write an improved policy description that:
1. Maintains the original intent and safety requirements of the policy
2. Adds clarifying language to prevent this type of false positive in the future
3. Is clear, specific, and actionable for safety inspectors
4. Does not weaken the safety standards - only adds precision to avoid incorrect detections

Return ONLY the updated policy description text, without any additional commentary or formatting.`

// Prompt builds the rewrite instruction for policy p from the disputed
// alert and the feedback on it.
func Prompt(p policies.Policy, alert *alerts.Alert, feedback string) string {
	return strings.NewReplacer(
		"{POLICY_TITLE}", p.Title,
		"{POLICY_LEVEL}", strconv.Itoa(p.Level),
		"{POLICY_DESCRIPTION}", p.Description,
		"{ALERT_EXPLANATION}", alert.Explanation,
		"{USER_FEEDBACK}", feedback,
	).Replace(promptTemplate)
}

// Rewriter performs a single text completion.
type Rewriter interface {
	Chat(ctx context.Context, prompt string) (string, error)
}

// AgentRewriter calls a go-agents chat agent. A fresh agent is created per call.
type AgentRewriter struct {
	Config gaconfig.AgentConfig
}

// Chat implements Rewriter.
func (r *AgentRewriter) Chat(ctx context.Context, prompt string) (string, error) {
	a, err := agent.New(&r.Config)
	if err != nil {
		return "", fmt.Errorf("create agent: %w", err)
	}

	resp, err := a.Chat(ctx, prompt)
	if err != nil {
		return "", err
	}
	return resp.Content(), nil
}

// ParseAlertID parses the alert id carried by Feedback.
func ParseAlertID(s string) (uuid.UUID, error) {
	if strings.TrimSpace(s) == "" {
		return uuid.Nil, ErrInputMissing
	}

	id, err := uuid.Parse(s)
	if err != nil {
		// Ids that cannot exist are reported the same way as unknown ones.
		return uuid.Nil, fmt.Errorf("%w: %s", alerts.ErrNotFound, s)
	}
	return id, nil
}
