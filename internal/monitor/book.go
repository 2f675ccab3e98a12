package monitor

import (
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/JaimeStill/safestack/internal/alerts"
)

// AlertBook is the monitor's local alert view. Every mutation goes
// through alerts.Merge, so the view is always ordered newest first.
type AlertBook struct {
	mu     sync.RWMutex
	alerts []alerts.Alert
	limit  int
}

// NewAlertBook creates an empty book holding at most limit alerts.
// A non-positive limit keeps everything.
func NewAlertBook(limit int) *AlertBook {
	return &AlertBook{alerts: []alerts.Alert{}, limit: limit}
}

// Merge applies incoming alerts over the current view.
func (b *AlertBook) Merge(incoming []alerts.Alert) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.alerts = b.truncate(alerts.Merge(b.alerts, incoming))
}

// Reconcile replaces the view with a fresh server listing. Local alerts
// missing from the listing survive only when they are newer than
// everything in it, which covers optimistic merges that landed after the
// listing was taken. Older missing alerts are treated as deleted.
func (b *AlertBook) Reconcile(fetched []alerts.Alert) {
	b.mu.Lock()
	defer b.mu.Unlock()

	listed := make(map[uuid.UUID]bool, len(fetched))
	for _, a := range fetched {
		listed[a.ID] = true
	}

	sorted := alerts.Merge(nil, fetched)

	var keep []alerts.Alert
	for _, a := range b.alerts {
		if listed[a.ID] {
			continue
		}
		if len(sorted) == 0 || a.Timestamp.After(sorted[0].Timestamp) {
			keep = append(keep, a)
		}
	}

	b.alerts = b.truncate(alerts.Merge(keep, sorted))
}

// Snapshot returns a copy of the current view.
func (b *AlertBook) Snapshot() []alerts.Alert {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Clone(b.alerts)
}

// Find returns the alert with id.
func (b *AlertBook) Find(id uuid.UUID) (alerts.Alert, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, a := range b.alerts {
		if a.ID == id {
			return a, true
		}
	}
	return alerts.Alert{}, false
}

// Len returns the number of alerts held.
func (b *AlertBook) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.alerts)
}

func (b *AlertBook) truncate(list []alerts.Alert) []alerts.Alert {
	if b.limit > 0 && len(list) > b.limit {
		return list[:b.limit]
	}
	return list
}
