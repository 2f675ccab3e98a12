package policies

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"
)

// Severity levels. Level 1 is the least severe.
const (
	MinLevel = 1
	MaxLevel = 3
)

// UnknownSeverity is displayed for labels that do not map to a level.
const UnknownSeverity = "Unknown"

// Policy is a named safety rule consumed by the classifier prompt.
type Policy struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	Level       int    `json:"level"`
	Description string `json:"description"`
}

// Label returns the severity label for the policy's level.
func (p Policy) Label() string {
	return Label(p.Level)
}

// Document is one immutable version of the full policy set.
// NextID is the id high-water mark; ids below it are never handed out
// again, even after their policy is deleted.
type Document struct {
	Version   int       `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
	NextID    int       `json:"next_id,omitempty"`
	Policies  []Policy  `json:"policies"`
}

// CreateCommand holds the fields for adding a policy.
type CreateCommand struct {
	Title       string `json:"title"`
	Level       int    `json:"level"`
	Description string `json:"description"`
}

// Revision replaces the description and, when non-empty, the title of a policy.
type Revision struct {
	Title       string
	Description string
}

// Label maps a level to "Severity N", or UnknownSeverity when out of range.
func Label(level int) string {
	if level < MinLevel || level > MaxLevel {
		return UnknownSeverity
	}
	return fmt.Sprintf("Severity %d", level)
}

// ParseLabel maps an exact severity label back to its level.
// No normalization is applied.
func ParseLabel(label string) (int, bool) {
	for level := MinLevel; level <= MaxLevel; level++ {
		if Label(level) == label {
			return level, true
		}
	}
	return 0, false
}

// Find returns the policy with the given id.
func (d *Document) Find(id int) (Policy, bool) {
	for _, p := range d.Policies {
		if p.ID == id {
			return p, true
		}
	}
	return Policy{}, false
}

// FindByTitle returns the policy whose title matches exactly.
func (d *Document) FindByTitle(title string) (Policy, bool) {
	for _, p := range d.Policies {
		if p.Title == title {
			return p, true
		}
	}
	return Policy{}, false
}

// Filter returns policies ordered by level descending then title,
// restricted to level when non-nil.
func (d *Document) Filter(level *int) []Policy {
	result := make([]Policy, 0, len(d.Policies))
	for _, p := range d.Policies {
		if level == nil || p.Level == *level {
			result = append(result, p)
		}
	}

	slices.SortFunc(result, func(a, b Policy) int {
		if c := cmp.Compare(b.Level, a.Level); c != 0 {
			return c
		}
		return strings.Compare(a.Title, b.Title)
	})
	return result
}

// Prompt renders the policy set for substitution into a classifier prompt.
// Policies are ordered by level then title so identical documents
// always produce identical prompts.
func (d *Document) Prompt() string {
	ordered := slices.Clone(d.Policies)
	slices.SortFunc(ordered, func(a, b Policy) int {
		if c := cmp.Compare(a.Level, b.Level); c != 0 {
			return c
		}
		return strings.Compare(a.Title, b.Title)
	})

	blocks := make([]string, len(ordered))
	for i, p := range ordered {
		blocks[i] = fmt.Sprintf("[%s] %s\n\nDescription: %s", p.Label(), p.Title, p.Description)
	}
	return strings.Join(blocks, "\n\n")
}

// Validate checks ids, titles, and levels for consistency.
func (d *Document) Validate() error {
	ids := make(map[int]bool, len(d.Policies))
	titles := make(map[string]bool, len(d.Policies))

	for _, p := range d.Policies {
		if p.ID < 1 {
			return fmt.Errorf("%w: policy id must be positive", ErrInvalidPolicy)
		}
		if ids[p.ID] {
			return fmt.Errorf("%w: duplicate id %d", ErrInvalidPolicy, p.ID)
		}
		if err := validateFields(p.Title, p.Level); err != nil {
			return err
		}
		if titles[p.Title] {
			return fmt.Errorf("%w: duplicate title %q", ErrDuplicate, p.Title)
		}
		ids[p.ID] = true
		titles[p.Title] = true
	}
	return nil
}

// nextID is the id the next created policy receives. Documents written
// before NextID existed fall back to the highest id present.
func (d *Document) nextID() int {
	return max(d.NextID, highestID(d.Policies)+1)
}

func highestID(policies []Policy) int {
	high := 0
	for _, p := range policies {
		high = max(high, p.ID)
	}
	return high
}

// successor returns the next version holding policies. The id high-water
// mark never moves backwards.
func (d *Document) successor(policies []Policy) Document {
	return Document{
		Version:   d.Version + 1,
		UpdatedAt: time.Now().UTC(),
		NextID:    max(d.nextID(), highestID(policies)+1),
		Policies:  policies,
	}
}

func validateFields(title string, level int) error {
	if strings.TrimSpace(title) == "" {
		return fmt.Errorf("%w: title required", ErrInvalidPolicy)
	}
	if level < MinLevel || level > MaxLevel {
		return fmt.Errorf("%w: level must be between %d and %d", ErrInvalidPolicy, MinLevel, MaxLevel)
	}
	return nil
}
