// Package classifier wraps the vision-language model call that detects
// safety violations in a video segment or a single frame.
package classifier

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/JaimeStill/safestack/internal/policies"
)

// Violation is one raw finding returned by the model. It is never
// persisted directly.
type Violation struct {
	Timestamp   string `json:"timestamp,omitempty"`
	PolicyName  string `json:"policy_name"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
	Reasoning   string `json:"reasoning"`
	Fix         string `json:"fix,omitempty"`
}

// Level maps the reported severity label to a level. Labels that do not
// match exactly report false.
func (v Violation) Level() (int, bool) {
	return policies.ParseLabel(v.Severity)
}

// Offset parses Timestamp (MM:SS or HH:MM:SS, fractional seconds allowed)
// into an offset from the start of the segment.
func (v Violation) Offset() (time.Duration, error) {
	return ParseTimestamp(v.Timestamp)
}

// maxOffset bounds the offsets ParseTimestamp accepts.
const maxOffset = 24 * time.Hour

// ParseTimestamp converts MM:SS or HH:MM:SS to a duration of at most
// maxOffset.
func ParseTimestamp(ts string) (time.Duration, error) {
	parts := strings.Split(strings.TrimSpace(ts), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimestamp, ts)
	}

	var seconds float64
	for _, p := range parts {
		n, err := strconv.ParseFloat(p, 64)
		if err != nil || n < 0 || math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, fmt.Errorf("%w: %q", ErrInvalidTimestamp, ts)
		}
		seconds = seconds*60 + n
	}

	if seconds > maxOffset.Seconds() {
		return 0, fmt.Errorf("%w: %q exceeds %s", ErrInvalidTimestamp, ts, maxOffset)
	}
	return time.Duration(seconds * float64(time.Second)), nil
}
