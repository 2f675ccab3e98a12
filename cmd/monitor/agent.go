package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/JaimeStill/safestack/internal/config"
	"github.com/JaimeStill/safestack/internal/metrics"
	"github.com/JaimeStill/safestack/internal/monitor"
	"github.com/JaimeStill/safestack/pkg/handlers"
	"github.com/JaimeStill/safestack/pkg/lifecycle"
	"github.com/JaimeStill/safestack/pkg/module"
	"github.com/JaimeStill/safestack/pkg/server"
)

// agent is the monitor process: capture loop, upload scheduler, and the
// metrics listener.
type agent struct {
	lc      *lifecycle.Coordinator
	logger  *slog.Logger
	monitor *monitor.Monitor
	http    *server.Server
}

func newAgent(ctx context.Context, cfg *config.MonitorConfig) (*agent, error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Level()}))
	lc := lifecycle.New()

	client := monitor.NewClient(cfg.ServerURL, cfg.UserEmail, &http.Client{})
	book := monitor.NewAlertBook(cfg.AlertLimit)
	waiter := monitor.NewAmendedWaiter(client, book, logger, cfg.AmendedBudgetDuration())

	// In-flight uploads outlive the signal; each is bounded by the upload timeout.
	scheduler := monitor.NewScheduler(context.WithoutCancel(ctx), client, book, logger, monitor.SchedulerOptions{
		MaxConcurrent: cfg.MaxConcurrentUploads,
		Timeout:       cfg.UploadTimeoutDuration(),
		OnAlerts:      waiter.Watch,
	})

	m := monitor.New(
		monitor.CamerasFromConfig(cfg.Cameras),
		monitor.NewFFmpegCapturer(cfg.FFmpegPath, logger),
		client,
		scheduler,
		book,
		waiter,
		logger,
		monitor.OptionsFromConfig(cfg),
	)

	a := &agent{
		lc:      lc,
		logger:  logger.With("system", "agent"),
		monitor: m,
	}

	if cfg.MetricsAddr != "" {
		a.http = server.New("metrics", server.Options{
			Addr:            cfg.MetricsAddr,
			ShutdownTimeout: 5 * time.Second,
		}, a.router(), logger)
	}

	logger.Info(
		"monitor initialized",
		"server", cfg.ServerURL,
		"cameras", len(cfg.Cameras),
		"capture_mode", cfg.CaptureMode,
		"max_uploads", cfg.MaxConcurrentUploads,
	)

	return a, nil
}

func (a *agent) router() http.Handler {
	router := module.NewRouter()

	router.Handle("GET /metrics", metrics.Handler())

	router.HandleFunc("GET /healthz", lifecycle.Liveness)
	router.HandleFunc("GET /cameras", func(w http.ResponseWriter, r *http.Request) {
		handlers.RespondJSON(w, http.StatusOK, a.monitor.Statuses())
	})

	return router
}

// Run blocks until ctx is cancelled and in-flight uploads have drained.
func (a *agent) Run(ctx context.Context) error {
	if a.http != nil {
		if err := a.http.Start(a.lc); err != nil {
			return err
		}
	}
	return a.monitor.Run(ctx)
}

func (a *agent) Shutdown(timeout time.Duration) error {
	a.logger.Info("initiating shutdown")
	return a.lc.Shutdown(timeout)
}
