package alerts

import (
	"maps"
	"slices"
	"strings"
)

// Merge combines existing and incoming alerts keyed by id. An incoming
// alert replaces the existing record with the same id in full, including
// its amended images. The result is ordered newest first; alerts with
// equal timestamps are ordered by id so the output is deterministic.
// Neither input is modified.
func Merge(existing, incoming []Alert) []Alert {
	byID := make(map[string]Alert, len(existing)+len(incoming))
	for _, a := range existing {
		byID[a.ID.String()] = a
	}
	for _, a := range incoming {
		byID[a.ID.String()] = a
	}

	merged := slices.Collect(maps.Values(byID))
	Sort(merged)
	return merged
}

// Sort orders alerts in place by timestamp descending, then id.
func Sort(alerts []Alert) {
	slices.SortFunc(alerts, func(a, b Alert) int {
		if c := b.Timestamp.Compare(a.Timestamp); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})
}
