// Package formatting provides parsing helpers for human-entered sizes and
// for structured data embedded in free-form model output.
package formatting

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var units = []string{"B", "KB", "MB", "GB", "TB"}

var unitAliases = map[string]int{
	"":    0,
	"B":   0,
	"K":   1,
	"KB":  1,
	"KIB": 1,
	"M":   2,
	"MB":  2,
	"MIB": 2,
	"G":   3,
	"GB":  3,
	"GIB": 3,
	"T":   4,
	"TB":  4,
	"TIB": 4,
}

var bytesPattern = regexp.MustCompile(`^(\d+(?:\.\d+)?)\s*([A-Za-z]*)$`)

// FormatBytes renders n using base-1024 units with one decimal place.
func FormatBytes(n int64) string {
	if n < 1024 {
		return fmt.Sprintf("%d B", n)
	}

	exp := min(int(math.Log(float64(n))/math.Log(1024)), len(units)-1)
	value := float64(n) / math.Pow(1024, float64(exp))

	return strconv.FormatFloat(value, 'f', 1, 64) + " " + units[exp]
}

// ParseBytes parses sizes such as "50MB", "512 KiB" or "1g" (base-1024).
// A bare number is a byte count.
func ParseBytes(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty byte size")
	}

	m := bytesPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("invalid byte size: %q", s)
	}

	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid byte size number: %w", err)
	}

	exp, ok := unitAliases[strings.ToUpper(m[2])]
	if !ok {
		return 0, fmt.Errorf("unknown byte size unit: %q", m[2])
	}

	return int64(value * math.Pow(1024, float64(exp))), nil
}
