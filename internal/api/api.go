// Package api assembles the API module with all domain systems and route registration.
package api

import (
	"net/http"

	"github.com/JaimeStill/safestack/internal/config"
	"github.com/JaimeStill/safestack/internal/infrastructure"
	"github.com/JaimeStill/safestack/internal/metrics"
	"github.com/JaimeStill/safestack/pkg/lifecycle"
	"github.com/JaimeStill/safestack/pkg/middleware"
	"github.com/JaimeStill/safestack/pkg/module"
)

// Module is the mounted API plus the domain systems that run background work.
type Module struct {
	*module.Module
	Domain *Domain
}

// NewModule creates the API module with all domain handlers and middleware.
func NewModule(cfg *config.Config, infra *infrastructure.Infrastructure) (*Module, error) {
	runtime := NewRuntime(cfg, infra)
	domain := NewDomain(runtime)

	mux := http.NewServeMux()
	if err := registerRoutes(mux, routeGroups(domain, runtime), cfg); err != nil {
		return nil, err
	}

	m := module.New(cfg.API.BasePath, mux)
	m.Use(middleware.CORS(&cfg.API.CORS))
	m.Use(middleware.Logger(runtime.Logger))
	m.Use(middleware.Recover(runtime.Logger))
	m.Use(metrics.Middleware())

	return &Module{Module: m, Domain: domain}, nil
}

// Start registers the domain systems' background work with the coordinator.
func (m *Module) Start(lc *lifecycle.Coordinator) error {
	return m.Domain.Start(lc)
}
