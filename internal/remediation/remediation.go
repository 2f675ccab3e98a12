// Package remediation renders "fixed" versions of alert evidence frames in
// the background and attaches them to the alert as amended images.
package remediation

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/safestack/internal/alerts"
	"github.com/JaimeStill/safestack/internal/metrics"
	"github.com/JaimeStill/safestack/pkg/lifecycle"
	"github.com/JaimeStill/safestack/pkg/storage"
)

// AlertUpdater stores amended image references on an alert.
type AlertUpdater interface {
	SetAmendedImages(ctx context.Context, id uuid.UUID, urls []string) error
}

// Options sizes the worker pool.
type Options struct {
	Workers   int
	QueueSize int
	Timeout   time.Duration
}

type job struct {
	alert alerts.Alert
	frame []byte
}

// Service is a bounded queue of remediation jobs drained by a fixed
// number of workers.
type Service struct {
	renderer Renderer
	alerts   AlertUpdater
	storage  storage.System
	logger   *slog.Logger
	opts     Options

	queue chan job
	wg    sync.WaitGroup
}

// New creates a Service. Jobs submitted before Start are held in the queue.
func New(renderer Renderer, updater AlertUpdater, store storage.System, logger *slog.Logger, opts Options) *Service {
	opts.Workers = max(opts.Workers, 1)
	opts.QueueSize = max(opts.QueueSize, 1)

	return &Service{
		renderer: renderer,
		alerts:   updater,
		storage:  store,
		logger:   logger.With("system", "remediation"),
		opts:     opts,
		queue:    make(chan job, opts.QueueSize),
	}
}

// Start launches the workers on the coordinator's context and waits for
// them on shutdown. Queued jobs are abandoned at shutdown.
func (s *Service) Start(lc *lifecycle.Coordinator) error {
	s.logger.Info("starting remediation workers", "workers", s.opts.Workers, "queue", s.opts.QueueSize)

	ctx := lc.Context()
	for range s.opts.Workers {
		s.wg.Go(func() {
			s.work(ctx)
		})
	}

	lc.OnShutdown(func() {
		<-lc.Context().Done()
		s.wg.Wait()
		s.logger.Info("remediation workers stopped", "abandoned", len(s.queue))
	})

	return nil
}

// Submit queues a job without blocking. It returns false and counts the
// job as dropped when the queue is full.
func (s *Service) Submit(alert alerts.Alert, frame []byte) bool {
	select {
	case s.queue <- job{alert: alert, frame: frame}:
		return true
	default:
		metrics.RemediationJobs.WithLabelValues(metrics.OutcomeDropped).Inc()
		s.logger.Warn("remediation queue full, job dropped", "alert_id", alert.ID)
		return false
	}
}

func (s *Service) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.queue:
			outcome := metrics.OutcomeOK
			if err := s.process(ctx, j); err != nil {
				outcome = metrics.OutcomeError
				s.logger.Error("remediation failed", "alert_id", j.alert.ID, "error", err)
			}
			metrics.RemediationJobs.WithLabelValues(outcome).Inc()
		}
	}
}

func (s *Service) process(ctx context.Context, j job) error {
	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	image, err := s.renderer.Render(ctx, Prompt(j.alert), j.frame)
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}

	hex := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	key := fmt.Sprintf("images/amended_%s_%s.png", j.alert.ID, hex)

	url, err := s.storage.Upload(ctx, key, bytes.NewReader(image), int64(len(image)), "image/png")
	if err != nil {
		return fmt.Errorf("upload: %w", err)
	}

	if err := s.alerts.SetAmendedImages(ctx, j.alert.ID, []string{url}); err != nil {
		if delErr := s.storage.Delete(ctx, key); delErr != nil {
			s.logger.Warn("compensating blob delete failed", "key", key, "error", delErr)
		}
		return fmt.Errorf("update alert: %w", err)
	}

	s.logger.Info("amended image attached", "alert_id", j.alert.ID, "url", url)
	return nil
}
