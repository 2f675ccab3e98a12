// Package infrastructure builds the shared systems every domain package
// draws on: logger, lifecycle, database, blob storage, and event publisher.
package infrastructure

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	gaconfig "github.com/JaimeStill/go-agents/pkg/config"

	"github.com/JaimeStill/safestack/internal/config"
	"github.com/JaimeStill/safestack/internal/metrics"
	"github.com/JaimeStill/safestack/pkg/database"
	"github.com/JaimeStill/safestack/pkg/events"
	"github.com/JaimeStill/safestack/pkg/lifecycle"
	"github.com/JaimeStill/safestack/pkg/storage"
)

type Infrastructure struct {
	Agent     gaconfig.AgentConfig
	Lifecycle *lifecycle.Coordinator
	Logger    *slog.Logger
	Database  database.System
	Storage   storage.System
	Events    events.Publisher
}

// New constructs every system without connecting anything. Connections are
// made by the hooks Start registers.
func New(cfg *config.Config) (*Infrastructure, error) {
	logger := NewLogger(os.Stderr, &cfg.Server)

	db, err := database.New(&cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	if err := metrics.RegisterDB(db.Connection(), cfg.Database.Name); err != nil {
		return nil, fmt.Errorf("database metrics: %w", err)
	}

	store, err := storage.New(&cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}

	pub, err := events.New(&cfg.Events, logger)
	if err != nil {
		return nil, fmt.Errorf("events: %w", err)
	}

	return &Infrastructure{
		Agent:     cfg.Agent,
		Lifecycle: lifecycle.New(),
		Logger:    logger,
		Database:  db,
		Storage:   store,
		Events:    pub,
	}, nil
}

// NewLogger builds the process logger from the server log settings.
func NewLogger(w io.Writer, cfg *config.ServerConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.Level()}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Start registers each system's hooks with the coordinator, database first.
func (i *Infrastructure) Start() error {
	systems := []struct {
		name  string
		start func(*lifecycle.Coordinator) error
	}{
		{"database", i.Database.Start},
		{"storage", i.Storage.Start},
		{"events", i.Events.Start},
	}
	for _, s := range systems {
		if err := s.start(i.Lifecycle); err != nil {
			return fmt.Errorf("start %s: %w", s.name, err)
		}
	}
	return nil
}

// Scoped copies i with attrs added to the logger. Systems stay shared.
func (i *Infrastructure) Scoped(attrs ...any) *Infrastructure {
	scoped := *i
	scoped.Logger = i.Logger.With(attrs...)
	return &scoped
}
