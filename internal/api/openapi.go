package api

import (
	"net/http"

	"github.com/JaimeStill/safestack/internal/config"
	"github.com/JaimeStill/safestack/pkg/openapi"
	"github.com/JaimeStill/safestack/pkg/routes"
)

// describe renders the OpenAPI document for groups once and returns a
// handler that serves the cached bytes.
func describe(groups []routes.Group, cfg *config.Config) (http.HandlerFunc, error) {
	spec := openapi.NewSpec(cfg.API.OpenAPI.Title, cfg.Version)
	spec.SetDescription(cfg.API.OpenAPI.Description)
	spec.AddServer(cfg.API.OpenAPI.ServerURL(cfg.API.BasePath))

	routes.Describe(spec, "", groups...)

	return spec.Handler()
}
