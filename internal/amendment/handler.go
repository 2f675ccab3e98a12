package amendment

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/JaimeStill/safestack/internal/policies"
	"github.com/JaimeStill/safestack/pkg/handlers"
	"github.com/JaimeStill/safestack/pkg/openapi"
	"github.com/JaimeStill/safestack/pkg/routes"
)

// Handler provides the amendment endpoint.
type Handler struct {
	sys    System
	logger *slog.Logger
}

// NewHandler creates a Handler.
func NewHandler(sys System, logger *slog.Logger) *Handler {
	return &Handler{
		sys:    sys,
		logger: logger.With("handler", "amendment"),
	}
}

// Routes returns the route group definition for amendment endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "",
		Tags:   []string{"Policies"},
		Schemas: map[string]*openapi.Schema{
			"Feedback": {
				Type:     "object",
				Required: []string{"alert_id", "feedback"},
				Properties: map[string]*openapi.Schema{
					"alert_id": {Type: "string", Format: "uuid"},
					"feedback": {Type: "string", Description: "Why the alert was a false positive"},
				},
			},
			"AmendedPolicy": {
				Type: "object",
				Properties: map[string]*openapi.Schema{
					"id":          {Type: "integer"},
					"title":       {Type: "string"},
					"level":       policies.LevelSchema(),
					"description": {Type: "string"},
					"version":     {Type: "integer"},
					"updated_at":  {Type: "string", Format: "date-time"},
				},
			},
		},
		Routes: []routes.Route{
			{Method: "POST", Pattern: "/amend-policy", Handler: h.Amend, MaxBytes: routes.JSONBodyLimit, OpenAPI: &openapi.Operation{
				Summary:     "Rewrite a policy from false-positive feedback",
				RequestBody: openapi.RequestBodyJSON("Feedback", true),
				Responses: map[int]*openapi.Response{
					200: openapi.ResponseJSON("Amended policy", "AmendedPolicy"),
					400: openapi.ResponseRef("BadRequest"),
					404: openapi.ResponseRef("NotFound"),
					503: openapi.ResponseRef("ServiceUnavailable"),
					504: openapi.ResponseRef("GatewayTimeout"),
				},
			}},
		},
	}
}

// Amend applies feedback to the policy behind an alert.
func (h *Handler) Amend(w http.ResponseWriter, r *http.Request) {
	var fb Feedback
	if err := json.NewDecoder(r.Body).Decode(&fb); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrInputMissing)
		return
	}

	id, err := ParseAlertID(fb.AlertID)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	result, err := h.sys.Amend(r.Context(), id, fb.Feedback)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}
