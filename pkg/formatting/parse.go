package formatting

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrParseFailed is returned when content holds no recognizable JSON value.
var ErrParseFailed = errors.New("failed to parse response")

// Parse unmarshals the trimmed content strictly into T.
func Parse[T any](content string) (T, error) {
	var result T
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &result); err != nil {
		return result, fmt.Errorf("%w: %w", ErrParseFailed, err)
	}
	return result, nil
}

// ParseArray decodes a JSON array of T from model output in two stages:
// a strict parse of the trimmed content, then the first balanced bracketed
// array found by ExtractArray.
func ParseArray[T any](content string) ([]T, error) {
	if items, err := Parse[[]T](content); err == nil {
		return items, nil
	}

	raw, ok := ExtractArray(content)
	if !ok {
		return nil, fmt.Errorf("%w: no json array in content", ErrParseFailed)
	}

	var items []T
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrParseFailed, err)
	}
	return items, nil
}

// ExtractArray scans content for the first balanced, syntactically valid
// JSON array. Brackets inside string literals do not count toward balance.
// Candidates that balance but fail validation are skipped.
func ExtractArray(content string) (string, bool) {
	for start := strings.IndexByte(content, '['); start >= 0; {
		if end := matchBracket(content, start); end > start {
			candidate := content[start : end+1]
			if json.Valid([]byte(candidate)) {
				return candidate, true
			}
		}

		next := strings.IndexByte(content[start+1:], '[')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}

// matchBracket returns the index of the bracket closing content[start],
// or -1 when the array never balances.
func matchBracket(content string, start int) int {
	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(content); i++ {
		c := content[i]

		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
