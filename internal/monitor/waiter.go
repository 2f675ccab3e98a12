package monitor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/JaimeStill/safestack/internal/alerts"
)

const waiterCapacity = 512

// AlertSource reads alerts from the server.
type AlertSource interface {
	ListAlerts(ctx context.Context, limit int) ([]alerts.Alert, error)
	FindAlert(ctx context.Context, id uuid.UUID) (*alerts.Alert, error)
}

// AmendedWaiter polls for amended images on alerts that were created
// without them. Each alert is watched until its images arrive or its
// budget runs out; running out is a normal outcome, not an error.
type AmendedWaiter struct {
	source AlertSource
	book   *AlertBook
	logger *slog.Logger
	budget time.Duration

	mu      sync.Mutex
	pending *lru.Cache[uuid.UUID, time.Time]
	settled *lru.Cache[uuid.UUID, struct{}]
}

// NewAmendedWaiter creates a waiter that gives each alert budget to
// receive its amended images.
func NewAmendedWaiter(source AlertSource, book *AlertBook, logger *slog.Logger, budget time.Duration) *AmendedWaiter {
	pending, _ := lru.New[uuid.UUID, time.Time](waiterCapacity)
	settled, _ := lru.New[uuid.UUID, struct{}](waiterCapacity)

	return &AmendedWaiter{
		source:  source,
		book:    book,
		logger:  logger.With("system", "amended-waiter"),
		budget:  budget,
		pending: pending,
		settled: settled,
	}
}

// Watch starts waiting on every alert that has evidence but no amended
// images yet. Alerts already settled are ignored.
func (w *AmendedWaiter) Watch(list []alerts.Alert) {
	w.mu.Lock()
	defer w.mu.Unlock()

	deadline := time.Now().Add(w.budget)
	for _, a := range list {
		if len(a.AmendedImages) > 0 || len(a.ImageURLs) == 0 {
			continue
		}
		if w.settled.Contains(a.ID) || w.pending.Contains(a.ID) {
			continue
		}
		w.pending.Add(a.ID, deadline)
	}
}

// Poll checks every pending alert once.
func (w *AmendedWaiter) Poll(ctx context.Context) {
	w.mu.Lock()
	ids := w.pending.Keys()
	w.mu.Unlock()

	for _, id := range ids {
		if ctx.Err() != nil {
			return
		}

		w.mu.Lock()
		deadline, ok := w.pending.Peek(id)
		w.mu.Unlock()
		if !ok {
			continue
		}

		if time.Now().After(deadline) {
			w.logger.DebugContext(ctx, "amended image budget exhausted", "alert_id", id)
			w.settle(id)
			continue
		}

		a, err := w.source.FindAlert(ctx, id)
		if err != nil {
			w.logger.DebugContext(ctx, "amended image poll failed", "alert_id", id, "error", err)
			continue
		}

		if len(a.AmendedImages) > 0 {
			w.book.Merge([]alerts.Alert{*a})
			w.settle(id)
			w.logger.InfoContext(ctx, "amended image arrived", "alert_id", id)
		}
	}
}

// Run polls at interval until ctx is cancelled.
func (w *AmendedWaiter) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.Poll(ctx)
		}
	}
}

// Pending returns the number of alerts still being waited on.
func (w *AmendedWaiter) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pending.Len()
}

func (w *AmendedWaiter) settle(id uuid.UUID) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending.Remove(id)
	w.settled.Add(id, struct{}{})
}
