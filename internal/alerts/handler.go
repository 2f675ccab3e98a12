package alerts

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/JaimeStill/safestack/internal/policies"
	"github.com/JaimeStill/safestack/pkg/handlers"
	"github.com/JaimeStill/safestack/pkg/openapi"
	"github.com/JaimeStill/safestack/pkg/pagination"
	"github.com/JaimeStill/safestack/pkg/routes"
)

// Handler provides HTTP endpoints for alert operations.
type Handler struct {
	sys        System
	logger     *slog.Logger
	pagination pagination.Config
}

// NewHandler creates a Handler with the given system, logger, and limit bounds.
func NewHandler(sys System, logger *slog.Logger, pagination pagination.Config) *Handler {
	return &Handler{
		sys:        sys,
		logger:     logger.With("handler", "alerts"),
		pagination: pagination,
	}
}

// Routes returns the route group definition for alert endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix:  "/alerts",
		Tags:    []string{"Alerts"},
		Schemas: Schemas(),
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.List, OpenAPI: &openapi.Operation{
				Summary: "List alerts, newest first",
				Parameters: []*openapi.Parameter{
					openapi.QueryParam("user_email", "Only alerts for this user", openapi.String("")),
					openapi.QueryParam("policy_id", "Only alerts for this policy", openapi.Integer("")),
					openapi.QueryParam("min_level", "Only alerts at or above this level", openapi.IntRange(policies.MinLevel, policies.MaxLevel, "")),
					openapi.QueryParam("camera_id", "Only alerts from this camera", openapi.String("")),
					openapi.QueryParam("limit", "Maximum number of results", openapi.Integer("")),
				},
				Responses: map[int]*openapi.Response{
					200: openapi.ArrayResponseJSON("Alerts", "Alert"),
					400: openapi.ResponseRef("BadRequest"),
				},
			}},
			{Method: "GET", Pattern: "/{id}", Handler: h.Find, OpenAPI: &openapi.Operation{
				Summary:    "Find an alert",
				Parameters: []*openapi.Parameter{openapi.PathParam("id", "Alert ID", nil)},
				Responses: map[int]*openapi.Response{
					200: openapi.ResponseJSON("Alert", "Alert"),
					400: openapi.ResponseRef("BadRequest"),
					404: openapi.ResponseRef("NotFound"),
				},
			}},
			{Method: "POST", Pattern: "", Handler: h.Create, MaxBytes: routes.JSONBodyLimit, OpenAPI: &openapi.Operation{
				Summary:     "Record an alert",
				RequestBody: openapi.RequestBodyJSON("CreateAlert", true),
				Responses: map[int]*openapi.Response{
					201: openapi.ResponseJSON("Created alert", "Alert"),
					400: openapi.ResponseRef("BadRequest"),
				},
			}},
			{Method: "DELETE", Pattern: "/{id}", Handler: h.Delete, OpenAPI: &openapi.Operation{
				Summary:    "Delete an alert",
				Parameters: []*openapi.Parameter{openapi.PathParam("id", "Alert ID", nil)},
				Responses: map[int]*openapi.Response{
					204: {Description: "Deleted"},
					404: openapi.ResponseRef("NotFound"),
				},
			}},
		},
	}
}

// List returns alerts filtered by query parameters and bounded by limit.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	filters, err := FiltersFromQuery(r.URL.Query())
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}
	limit, err := pagination.LimitFromQuery(r.URL.Query(), h.pagination)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	result, err := h.sys.List(r.Context(), filters, limit)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// Find returns a single alert by its UUID path parameter.
func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("%w: invalid id", ErrInvalidAlert))
		return
	}

	a, err := h.sys.Find(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, a)
}

// Create records an alert from a JSON body.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var cmd CreateCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("%w: %w", ErrInvalidAlert, err))
		return
	}

	a, err := h.sys.Create(r.Context(), cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusCreated, a)
}

// Delete removes an alert by its UUID path parameter.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusNotFound, ErrNotFound)
		return
	}

	if err := h.sys.Delete(r.Context(), id); err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Schemas returns the OpenAPI component schemas for alert payloads.
func Schemas() map[string]*openapi.Schema {
	urls := &openapi.Schema{Type: "array", Items: openapi.String("")}
	level := openapi.IntRange(policies.MinLevel, policies.MaxLevel, "Severity rank of the violated policy")

	return map[string]*openapi.Schema{
		"Alert": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"id":              openapi.UUID(""),
				"policy_id":       openapi.Integer(""),
				"policy_title":    openapi.String(""),
				"policy_level":    level,
				"severity":        openapi.OneOf("Label of the policy level", severityLabels()...),
				"image_urls":      urls,
				"amended_images":  urls,
				"explanation":     openapi.String(""),
				"reasoning":       openapi.String(""),
				"fix":             openapi.String(""),
				"video_id":        openapi.Nullable(openapi.UUID("")),
				"video_timestamp": openapi.Nullable(openapi.String("Offset into the source video")),
				"camera_id":       openapi.Nullable(openapi.String("")),
				"user_email":      openapi.Nullable(openapi.String("")),
				"timestamp":       {Type: "string", Format: "date-time"},
			},
		},
		"CreateAlert": {
			Type:     "object",
			Required: []string{"policy_id"},
			Properties: map[string]*openapi.Schema{
				"policy_id":       openapi.Integer(""),
				"image_urls":      urls,
				"explanation":     openapi.String(""),
				"reasoning":       openapi.String(""),
				"fix":             openapi.String(""),
				"severity":        openapi.String("Defaults to the policy label"),
				"video_id":        openapi.UUID(""),
				"video_timestamp": openapi.String(""),
				"camera_id":       openapi.String(""),
				"user_email":      openapi.String(""),
			},
		},
	}
}

func severityLabels() []string {
	labels := []string{policies.UnknownSeverity}
	for level := policies.MinLevel; level <= policies.MaxLevel; level++ {
		labels = append(labels, policies.Label(level))
	}
	return labels
}
