package monitor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/JaimeStill/safestack/internal/config"
)

// Options controls capture cadence and reconciliation.
type Options struct {
	Interval        time.Duration
	SegmentDuration time.Duration
	Parallel        bool
	Stagger         time.Duration
	PollInterval    time.Duration
	AlertLimit      int
	AmendedInterval time.Duration
}

// OptionsFromConfig derives Options from the monitor configuration.
func OptionsFromConfig(cfg *config.MonitorConfig) Options {
	return Options{
		Interval:        cfg.IntervalDuration(),
		SegmentDuration: cfg.SegmentLength(),
		Parallel:        cfg.CaptureMode == config.CaptureParallel,
		Stagger:         cfg.CaptureStaggerDuration(),
		PollInterval:    cfg.PollIntervalDuration(),
		AlertLimit:      cfg.AlertLimit,
		AmendedInterval: cfg.AmendedPollIntervalDuration(),
	}
}

// Monitor runs periodic capture cycles for every camera and keeps the
// alert book reconciled with the server.
type Monitor struct {
	cameras   []Camera
	capturer  Capturer
	source    AlertSource
	scheduler *Scheduler
	book      *AlertBook
	waiter    *AmendedWaiter
	logger    *slog.Logger
	opts      Options

	cycles sync.WaitGroup
}

// New creates a Monitor and registers its cameras with the scheduler.
func New(
	cameras []Camera,
	capturer Capturer,
	source AlertSource,
	scheduler *Scheduler,
	book *AlertBook,
	waiter *AmendedWaiter,
	logger *slog.Logger,
	opts Options,
) *Monitor {
	for _, cam := range cameras {
		scheduler.Register(cam.ID)
	}

	return &Monitor{
		cameras:   cameras,
		capturer:  capturer,
		source:    source,
		scheduler: scheduler,
		book:      book,
		waiter:    waiter,
		logger:    logger.With("system", "monitor"),
		opts:      opts,
	}
}

// Run starts the capture, refresh, and amended-image loops and blocks
// until ctx is cancelled and in-flight uploads have finished.
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.Info("monitor started",
		"cameras", len(m.cameras),
		"interval", m.opts.Interval,
		"segment", m.opts.SegmentDuration,
		"parallel", m.opts.Parallel,
	)

	g, gctx := errgroup.WithContext(ctx)

	// Cycles are not serialized; a camera whose previous capture is still
	// recording is skipped by the scheduler.
	g.Go(func() error {
		return every(gctx, m.opts.Interval, func() {
			m.cycles.Go(func() { m.Cycle(gctx) })
		})
	})

	g.Go(func() error {
		return every(gctx, m.opts.PollInterval, func() {
			if err := m.Refresh(gctx); err != nil {
				m.logger.Warn("alert refresh failed", "error", err)
			}
		})
	})

	if m.waiter != nil {
		g.Go(func() error {
			return m.waiter.Run(gctx, m.opts.AmendedInterval)
		})
	}

	err := g.Wait()
	m.cycles.Wait()
	m.scheduler.Wait()
	m.logger.Info("monitor stopped")
	return err
}

// Cycle starts one capture for every camera. Cameras still capturing from
// the previous cycle are skipped. A failing camera never stops the others.
func (m *Monitor) Cycle(ctx context.Context) {
	if m.opts.Parallel {
		var g errgroup.Group
		for _, cam := range m.cameras {
			g.Go(func() error {
				m.capture(ctx, cam)
				return nil
			})
		}
		g.Wait()
		return
	}

	for i, cam := range m.cameras {
		if i > 0 && m.opts.Stagger > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(m.opts.Stagger):
			}
		}
		m.capture(ctx, cam)
	}
}

func (m *Monitor) capture(ctx context.Context, cam Camera) {
	chunk, ok := m.scheduler.BeginCapture(cam.ID)
	if !ok {
		m.logger.Debug("capture skipped, previous capture still running", "camera", cam.ID)
		return
	}

	var seg *Segment
	defer func() {
		m.scheduler.EndCapture(cam.ID, chunk, seg)
	}()

	if !m.capturer.Ready(ctx, cam) {
		m.logger.Info("camera not ready", "camera", cam.ID)
		return
	}

	captured, err := m.capturer.Capture(ctx, cam, m.opts.SegmentDuration)
	if err != nil {
		m.logger.Warn("capture failed", "camera", cam.ID, "chunk", chunk, "error", err)
		return
	}
	if captured == nil || len(captured.Data) == 0 {
		return
	}
	seg = captured
}

// Refresh reconciles the alert book with the server listing.
func (m *Monitor) Refresh(ctx context.Context) error {
	list, err := m.source.ListAlerts(ctx, m.opts.AlertLimit)
	if err != nil {
		return err
	}

	m.book.Reconcile(list)
	if m.waiter != nil {
		m.waiter.Watch(list)
	}
	return nil
}

// Statuses returns the state of every camera.
func (m *Monitor) Statuses() []CameraStatus {
	statuses := make([]CameraStatus, 0, len(m.cameras))
	for _, cam := range m.cameras {
		if st, ok := m.scheduler.Status(cam.ID); ok {
			statuses = append(statuses, st)
		}
	}
	return statuses
}

func every(ctx context.Context, interval time.Duration, fn func()) error {
	fn()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			fn()
		}
	}
}
