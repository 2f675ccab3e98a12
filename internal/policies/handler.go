package policies

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/JaimeStill/safestack/pkg/handlers"
	"github.com/JaimeStill/safestack/pkg/openapi"
	"github.com/JaimeStill/safestack/pkg/routes"
)

// Handler provides HTTP endpoints for policy operations.
type Handler struct {
	sys    System
	logger *slog.Logger
}

// NewHandler creates a Handler with the given system and logger.
func NewHandler(sys System, logger *slog.Logger) *Handler {
	return &Handler{
		sys:    sys,
		logger: logger.With("handler", "policies"),
	}
}

// Routes returns the route group definition for policy endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix:  "/policies",
		Tags:    []string{"Policies"},
		Schemas: Schemas(),
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.List, OpenAPI: &openapi.Operation{
				Summary: "List policies ordered by level descending, then title",
				Parameters: []*openapi.Parameter{
					openapi.QueryParam("level", "Only policies at this severity level", LevelSchema()),
				},
				Responses: map[int]*openapi.Response{
					200: openapi.ArrayResponseJSON("Policies", "Policy"),
					400: openapi.ResponseRef("BadRequest"),
				},
			}},
			{Method: "GET", Pattern: "/document", Handler: h.Document, OpenAPI: &openapi.Operation{
				Summary: "Current versioned policy document",
				Responses: map[int]*openapi.Response{
					200: openapi.ResponseJSON("Policy document", "PolicyDocument"),
				},
			}},
			{Method: "GET", Pattern: "/{id}", Handler: h.Find, OpenAPI: &openapi.Operation{
				Summary:    "Find a policy",
				Parameters: []*openapi.Parameter{openapi.PathParam("id", "Policy ID", openapi.Integer(""))},
				Responses: map[int]*openapi.Response{
					200: openapi.ResponseJSON("Policy", "Policy"),
					404: openapi.ResponseRef("NotFound"),
				},
			}},
			{Method: "POST", Pattern: "", Handler: h.Create, MaxBytes: routes.JSONBodyLimit, OpenAPI: &openapi.Operation{
				Summary:     "Add a policy as a new document version",
				RequestBody: openapi.RequestBodyJSON("CreatePolicy", true),
				Responses: map[int]*openapi.Response{
					201: openapi.ResponseJSON("Created policy", "Policy"),
					400: openapi.ResponseRef("BadRequest"),
					409: openapi.ResponseRef("Conflict"),
				},
			}},
			{Method: "DELETE", Pattern: "/{id}", Handler: h.Delete, OpenAPI: &openapi.Operation{
				Summary:    "Remove a policy as a new document version",
				Parameters: []*openapi.Parameter{openapi.PathParam("id", "Policy ID", openapi.Integer(""))},
				Responses: map[int]*openapi.Response{
					204: {Description: "Deleted"},
					404: openapi.ResponseRef("NotFound"),
				},
			}},
		},
	}
}

// List returns policies, optionally filtered by the level query parameter.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	var level *int
	if v := r.URL.Query().Get("level"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("%w: level must be an integer", ErrInvalidPolicy))
			return
		}
		level = &n
	}

	result, err := h.sys.List(r.Context(), level)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// Document returns the full current policy document.
func (h *Handler) Document(w http.ResponseWriter, r *http.Request) {
	doc, err := h.sys.Current(r.Context())
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, doc)
}

// Find returns a single policy by its integer id.
func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("%w: invalid id", ErrInvalidPolicy))
		return
	}

	p, err := h.sys.Find(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, p)
}

// Create adds a policy from a JSON body.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var cmd CreateCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("%w: %w", ErrInvalidPolicy, err))
		return
	}

	p, err := h.sys.Create(r.Context(), cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusCreated, p)
}

// Delete removes a policy by its integer id.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("%w: invalid id", ErrInvalidPolicy))
		return
	}

	if err := h.sys.Delete(r.Context(), id); err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Schemas returns the OpenAPI component schemas for policy payloads.
func Schemas() map[string]*openapi.Schema {
	policy := &openapi.Schema{
		Type: "object",
		Properties: map[string]*openapi.Schema{
			"id":          {Type: "integer"},
			"title":       {Type: "string"},
			"level":       LevelSchema(),
			"description": {Type: "string"},
		},
	}

	return map[string]*openapi.Schema{
		"Policy": policy,
		"PolicyDocument": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"version":    {Type: "integer"},
				"updated_at": {Type: "string", Format: "date-time"},
				"next_id":    openapi.Integer("Id the next created policy receives; ids are never reused"),
				"policies":   {Type: "array", Items: openapi.SchemaRef("Policy")},
			},
		},
		"CreatePolicy": {
			Type:     "object",
			Required: []string{"title", "level"},
			Properties: map[string]*openapi.Schema{
				"title":       {Type: "string"},
				"level":       LevelSchema(),
				"description": {Type: "string"},
			},
		},
	}
}

// LevelSchema documents the accepted severity levels.
func LevelSchema() *openapi.Schema {
	return openapi.IntRange(MinLevel, MaxLevel, "Severity rank, 1 (lowest) to 3")
}
