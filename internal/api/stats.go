package api

import (
	"context"
	"log/slog"
	"net/http"

	"golang.org/x/sync/errgroup"

	"github.com/JaimeStill/safestack/internal/alerts"
	"github.com/JaimeStill/safestack/pkg/handlers"
	"github.com/JaimeStill/safestack/pkg/openapi"
	"github.com/JaimeStill/safestack/pkg/routes"
)

// Stats summarizes stored records.
type Stats struct {
	Alerts        int         `json:"alerts"`
	Policies      int         `json:"policies"`
	Videos        int         `json:"videos"`
	AlertsByLevel map[int]int `json:"alerts_by_level"`
}

type alertCounter interface {
	Stats(ctx context.Context) (*alerts.Stats, error)
}

type counter interface {
	Count(ctx context.Context) (int, error)
}

type statsHandler struct {
	alerts   alertCounter
	policies counter
	videos   counter
	logger   *slog.Logger
}

func newStatsHandler(a alertCounter, p, v counter, logger *slog.Logger) *statsHandler {
	return &statsHandler{
		alerts:   a,
		policies: p,
		videos:   v,
		logger:   logger.With("handler", "stats"),
	}
}

func (h *statsHandler) routes() routes.Group {
	return routes.Group{
		Prefix: "/stats",
		Tags:   []string{"Stats"},
		Schemas: map[string]*openapi.Schema{
			"Stats": {
				Type: "object",
				Properties: map[string]*openapi.Schema{
					"alerts":          {Type: "integer"},
					"policies":        {Type: "integer"},
					"videos":          {Type: "integer"},
					"alerts_by_level": {Type: "object", Description: "Alert count keyed by policy level"},
				},
			},
		},
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.get, OpenAPI: &openapi.Operation{
				Summary: "Count alerts, policies, and videos",
				Responses: map[int]*openapi.Response{
					200: openapi.ResponseJSON("Stats", "Stats"),
					503: openapi.ResponseRef("ServiceUnavailable"),
				},
			}},
		},
	}
}

func (h *statsHandler) get(w http.ResponseWriter, r *http.Request) {
	var stats Stats

	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		s, err := h.alerts.Stats(ctx)
		if err != nil {
			return err
		}
		stats.Alerts = s.Total
		stats.AlertsByLevel = s.ByLevel
		return nil
	})
	g.Go(func() error {
		n, err := h.policies.Count(ctx)
		stats.Policies = n
		return err
	})
	g.Go(func() error {
		n, err := h.videos.Count(ctx)
		stats.Videos = n
		return err
	})

	if err := g.Wait(); err != nil {
		handlers.RespondError(w, h.logger, http.StatusServiceUnavailable, err)
		return
	}

	if stats.AlertsByLevel == nil {
		stats.AlertsByLevel = map[int]int{}
	}
	handlers.RespondJSON(w, http.StatusOK, stats)
}
