package api

import (
	"net/http"

	"github.com/JaimeStill/safestack/internal/config"
	"github.com/JaimeStill/safestack/pkg/routes"
)

func routeGroups(domain *Domain, runtime *Runtime) []routes.Group {
	stats := newStatsHandler(domain.Alerts, domain.Policies, domain.Videos, runtime.Logger)
	blobs := newBlobHandler(runtime.Storage, runtime.Logger)

	return []routes.Group{
		domain.Analysis.Handler().Routes(),
		domain.Amendment.Handler().Routes(),
		domain.Alerts.Handler().Routes(),
		domain.Policies.Handler().Routes(),
		domain.Videos.Handler().Routes(),
		stats.routes(),
		blobs.routes(),
	}
}

func registerRoutes(mux *http.ServeMux, groups []routes.Group, cfg *config.Config) error {
	routes.Register(mux, groups...)

	spec, err := describe(groups, cfg)
	if err != nil {
		return err
	}
	mux.HandleFunc("GET /openapi.json", spec)

	return nil
}
