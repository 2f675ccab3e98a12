package videos

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/JaimeStill/safestack/pkg/handlers"
	"github.com/JaimeStill/safestack/pkg/openapi"
	"github.com/JaimeStill/safestack/pkg/pagination"
	"github.com/JaimeStill/safestack/pkg/routes"
)

// Handler provides HTTP endpoints for video segment records.
type Handler struct {
	sys        System
	logger     *slog.Logger
	pagination pagination.Config
}

// NewHandler creates a Handler with the given system, logger, and pagination config.
func NewHandler(sys System, logger *slog.Logger, pagination pagination.Config) *Handler {
	return &Handler{
		sys:        sys,
		logger:     logger.With("handler", "videos"),
		pagination: pagination,
	}
}

// Routes returns the route group definition for video endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix:  "/videos",
		Tags:    []string{"Videos"},
		Schemas: Schemas(),
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.List, OpenAPI: &openapi.Operation{
				Summary: "List recorded segments, newest first",
				Parameters: []*openapi.Parameter{
					openapi.QueryParam("page", "Page number", openapi.Integer("")),
					openapi.QueryParam("page_size", "Results per page", openapi.Integer("")),
					openapi.QueryParam("search", "Camera id contains", openapi.String("")),
					openapi.QueryParam("sort", sortDescription(), openapi.String("")),
				},
				Responses: map[int]*openapi.Response{
					200: openapi.ResponseJSON("Page of videos", "VideoPage"),
				},
			}},
			{Method: "GET", Pattern: "/{id}", Handler: h.Find, OpenAPI: &openapi.Operation{
				Summary:    "Find a recorded segment",
				Parameters: []*openapi.Parameter{openapi.PathParam("id", "Video ID", nil)},
				Responses: map[int]*openapi.Response{
					200: openapi.ResponseJSON("Video", "Video"),
					404: openapi.ResponseRef("NotFound"),
				},
			}},
			{Method: "DELETE", Pattern: "/{id}", Handler: h.Delete, OpenAPI: &openapi.Operation{
				Summary:    "Delete a segment record and its blob",
				Parameters: []*openapi.Parameter{openapi.PathParam("id", "Video ID", nil)},
				Responses: map[int]*openapi.Response{
					204: {Description: "Deleted"},
					404: openapi.ResponseRef("NotFound"),
				},
			}},
		},
	}
}

// List returns a page of videos.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page, err := pagination.PageRequestFromQuery(r.URL.Query(), h.pagination)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	result, err := h.sys.List(r.Context(), page)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// Find returns a single video by its UUID path parameter.
func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("%w: invalid id", ErrInvalidVideo))
		return
	}

	v, err := h.sys.Find(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, v)
}

// Delete removes a video by its UUID path parameter.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("%w: invalid id", ErrInvalidVideo))
		return
	}

	if err := h.sys.Delete(r.Context(), id); err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Schemas returns the OpenAPI component schemas for video payloads.
func Schemas() map[string]*openapi.Schema {
	return map[string]*openapi.Schema{
		"Video": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"id":               {Type: "string", Format: "uuid"},
				"url":              {Type: "string"},
				"storage_key":      {Type: "string"},
				"content_type":     {Type: "string"},
				"size_bytes":       {Type: "integer"},
				"camera_id":        openapi.Nullable(openapi.String("")),
				"chunk_index":      openapi.Nullable(openapi.Integer("Position within the camera's recording")),
				"chunk_started_at": {Type: "string", Format: "date-time"},
				"duration_ms":      {Type: "integer"},
				"timestamp":        {Type: "string", Format: "date-time"},
			},
		},
		"VideoPage": openapi.PageOf("Video"),
	}
}

func sortDescription() string {
	return "Comma-separated sort fields, prefix - for descending. One of: " +
		strings.Join(projection.Fields(), ", ")
}
