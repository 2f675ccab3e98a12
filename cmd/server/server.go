package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/JaimeStill/safestack/internal/api"
	"github.com/JaimeStill/safestack/internal/config"
	"github.com/JaimeStill/safestack/internal/infrastructure"
	"github.com/JaimeStill/safestack/internal/metrics"
	"github.com/JaimeStill/safestack/pkg/lifecycle"
	"github.com/JaimeStill/safestack/pkg/module"
	"github.com/JaimeStill/safestack/pkg/server"
)

// Server wires the API module and the probe endpoints onto one listener.
type Server struct {
	infra  *infrastructure.Infrastructure
	api    *api.Module
	http   *server.Server
	logger *slog.Logger
}

func NewServer(cfg *config.Config) (*Server, error) {
	infra, err := infrastructure.New(cfg)
	if err != nil {
		return nil, err
	}

	apiModule, err := api.NewModule(cfg, infra)
	if err != nil {
		return nil, fmt.Errorf("api module: %w", err)
	}

	router := module.NewRouter()
	router.Mount(apiModule.Module)
	router.HandleFunc("GET /healthz", lifecycle.Liveness)
	router.HandleFunc("GET /readyz", infra.Lifecycle.Readiness())
	router.Handle("GET /metrics", metrics.Handler())

	s := &Server{
		infra: infra,
		api:   apiModule,
		http: server.New("http", server.Options{
			Addr:            cfg.Server.Addr(),
			ReadTimeout:     cfg.Server.ReadTimeoutDuration(),
			WriteTimeout:    cfg.Server.WriteTimeoutDuration(),
			ShutdownTimeout: cfg.Server.ShutdownTimeoutDuration(),
		}, router, infra.Logger),
		logger: infra.Logger.With("system", "server"),
	}

	s.logger.Info("server initialized",
		"addr", cfg.Server.Addr(),
		"version", cfg.Version,
		"env", cfg.Env(),
		"modules", router.Modules(),
		"remediation", cfg.Remediation.Enabled(),
	)
	return s, nil
}

// Start brings up infrastructure, then the domain systems, then the listener.
// It returns once every hook is registered; readiness is reported by /readyz.
func (s *Server) Start() error {
	lc := s.infra.Lifecycle

	steps := []struct {
		name  string
		start func(*lifecycle.Coordinator) error
	}{
		{"infrastructure", func(*lifecycle.Coordinator) error { return s.infra.Start() }},
		{"api", s.api.Start},
		{"http", s.http.Start},
	}
	for _, step := range steps {
		if err := step.start(lc); err != nil {
			return fmt.Errorf("start %s: %w", step.name, err)
		}
	}

	go func() {
		lc.WaitForStartup()
		s.logger.Info("startup complete", "pending", lc.Pending())
	}()
	return nil
}

func (s *Server) Shutdown(timeout time.Duration) error {
	s.logger.Info("shutting down", "timeout", timeout)
	return s.infra.Lifecycle.Shutdown(timeout)
}
