package classifier_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaimeStill/safestack/internal/classifier"
	"github.com/JaimeStill/safestack/internal/metrics"
	"github.com/JaimeStill/safestack/internal/policies"
)

type modelFunc func(ctx context.Context, prompt string, images []string) (string, error)

func (f modelFunc) Vision(ctx context.Context, prompt string, images []string) (string, error) {
	return f(ctx, prompt, images)
}

func document() *policies.Document {
	return &policies.Document{
		Version: 2,
		Policies: []policies.Policy{
			{ID: 2, Title: "Missing Hard Hat", Level: 3, Description: "Hard hats on the floor."},
			{ID: 1, Title: "Poor Housekeeping", Level: 1, Description: "Walkways must be clear."},
		},
	}
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var segment = classifier.Media{Data: []byte("webm-bytes"), MimeType: "video/webm"}

func TestParseViolations(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    int
		wantErr bool
	}{
		{name: "strict", content: `[{"policy_name": "Poor Housekeeping", "severity": "Severity 1"}]`, want: 1},
		{name: "empty array", content: "  []\n", want: 0},
		{name: "fenced", content: "```json\n[{\"policy_name\": \"A\"}, {\"policy_name\": \"B\"}]\n```", want: 2},
		{name: "prose with brackets in strings", content: `Findings: [{"policy_name": "A", "description": "box [left] of door"}] done.`, want: 1},
		{name: "invalid first candidate", content: `see [note] then [{"policy_name": "A"}]`, want: 1},
		{name: "no array", content: "No violations were observed.", wantErr: true},
		{name: "empty", content: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := classifier.ParseViolations(tt.content)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, got)
			assert.Len(t, got, tt.want)
		})
	}
}

func TestPromptSubstitution(t *testing.T) {
	doc := document()

	video := classifier.VideoPrompt(doc)
	assert.NotContains(t, video, classifier.PoliciesPlaceholder)
	assert.Contains(t, video, doc.Prompt())
	assert.Contains(t, video, "timestamp")
	assert.Less(t, strings.Index(video, "[Severity 1] Poor Housekeeping"), strings.Index(video, "[Severity 3] Missing Hard Hat"))

	frame := classifier.FramePrompt(doc)
	assert.NotContains(t, frame, classifier.PoliciesPlaceholder)
	assert.Contains(t, frame, "a frame from a live video feed")

	assert.Equal(t, video, classifier.VideoPrompt(doc), "prompt is deterministic")
}

func TestClassify(t *testing.T) {
	var gotPrompt string
	var gotImages []string

	model := modelFunc(func(_ context.Context, prompt string, images []string) (string, error) {
		gotPrompt, gotImages = prompt, images
		return `Here is the analysis:
[{"timestamp": "00:07", "policy_name": "Poor Housekeeping", "severity": "Severity 1",
  "description": "pallet in walkway", "reasoning": "trip hazard", "fix": "move pallet"},
 {"timestamp": "00:09", "policy_name": "Poor Housekeeping", "severity": "High",
  "description": "second pallet", "reasoning": "trip hazard", "fix": "move pallet"}]`, nil
	})

	c := classifier.New(model, discard(), time.Minute)
	violations, err := c.Classify(context.Background(), segment, document())
	require.NoError(t, err)

	require.Len(t, violations, 2, "no deduplication in the client")
	assert.Contains(t, gotPrompt, "analyzing video footage")
	require.Len(t, gotImages, 1)
	assert.True(t, strings.HasPrefix(gotImages[0], "data:video/webm;base64,"))

	level, ok := violations[0].Level()
	assert.True(t, ok)
	assert.Equal(t, 1, level)

	_, ok = violations[1].Level()
	assert.False(t, ok, "severity labels are not coerced")
}

func TestClassifyParseFailure(t *testing.T) {
	model := modelFunc(func(context.Context, string, []string) (string, error) {
		return "I could not find anything noteworthy.", nil
	})

	before := testutil.ToFloat64(metrics.ClassifierParseFailures)

	c := classifier.New(model, discard(), 0)
	violations, err := c.Classify(context.Background(), segment, document())

	require.NoError(t, err)
	assert.NotNil(t, violations)
	assert.Empty(t, violations)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.ClassifierParseFailures))
}

func TestClassifyErrors(t *testing.T) {
	t.Run("upstream", func(t *testing.T) {
		model := modelFunc(func(context.Context, string, []string) (string, error) {
			return "", errors.New("connection refused")
		})

		_, err := classifier.New(model, discard(), 0).Classify(context.Background(), segment, document())
		assert.ErrorIs(t, err, classifier.ErrUpstream)
		assert.Equal(t, http.StatusServiceUnavailable, classifier.MapHTTPStatus(err))
	})

	t.Run("timeout", func(t *testing.T) {
		model := modelFunc(func(ctx context.Context, _ string, _ []string) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		})

		_, err := classifier.New(model, discard(), 10*time.Millisecond).Classify(context.Background(), segment, document())
		assert.ErrorIs(t, err, classifier.ErrTimeout)
		assert.Equal(t, http.StatusGatewayTimeout, classifier.MapHTTPStatus(err))
	})

	t.Run("empty media", func(t *testing.T) {
		model := modelFunc(func(context.Context, string, []string) (string, error) {
			t.Fatal("model called for empty media")
			return "", nil
		})

		_, err := classifier.New(model, discard(), 0).Classify(context.Background(), classifier.Media{MimeType: "video/mp4"}, document())
		assert.ErrorIs(t, err, classifier.ErrInvalidMedia)
	})
}

func TestFrameUsesFramePrompt(t *testing.T) {
	var gotPrompt string
	model := modelFunc(func(_ context.Context, prompt string, _ []string) (string, error) {
		gotPrompt = prompt
		return "[]", nil
	})

	frame := classifier.Media{Data: []byte{0x89, 'P', 'N', 'G'}, MimeType: "image/jpeg"}
	violations, err := classifier.New(model, discard(), 0).Classify(context.Background(), frame, document())

	require.NoError(t, err)
	assert.Empty(t, violations)
	assert.Contains(t, gotPrompt, "a frame from a live video feed")
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{in: "00:15", want: 15 * time.Second},
		{in: "01:30", want: 90 * time.Second},
		{in: "01:02:03", want: time.Hour + 2*time.Minute + 3*time.Second},
		{in: "00:02.5", want: 2500 * time.Millisecond},
		{in: "15", wantErr: true},
		{in: "aa:bb", wantErr: true},
		{in: "1:2:3:4", wantErr: true},
		{in: "", wantErr: true},
		{in: "NaN:00", wantErr: true},
		{in: "00:Inf", wantErr: true},
		{in: "00:+Inf", wantErr: true},
		{in: "1e300:00", wantErr: true},
		{in: "25:00:00", wantErr: true},
		{in: "24:00:00", want: 24 * time.Hour},
	}

	for _, tt := range tests {
		got, err := classifier.ParseTimestamp(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, classifier.ErrInvalidTimestamp, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
