package analysis

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/JaimeStill/safestack/internal/classifier"
	"github.com/JaimeStill/safestack/pkg/handlers"
	"github.com/JaimeStill/safestack/pkg/openapi"
	"github.com/JaimeStill/safestack/pkg/routes"
)

// VideoRequest is the JSON form of a segment submission.
type VideoRequest struct {
	VideoBase64     string  `json:"video_base64"`
	MimeType        string  `json:"mime_type"`
	CameraID        *string `json:"camera_id"`
	ChunkIndex      *int    `json:"chunk_index"`
	ChunkStartedAt  *string `json:"chunk_started_at"`
	ChunkDurationMS *int64  `json:"chunk_duration_ms"`
	UserEmail       *string `json:"user_email"`
}

// FrameRequest is the JSON form of a frame submission.
type FrameRequest struct {
	FrameBase64 string `json:"frame_base64"`
	MimeType    string `json:"mime_type"`
}

// Handler provides the analysis endpoints.
type Handler struct {
	sys           System
	logger        *slog.Logger
	maxUploadSize int64
}

// NewHandler creates a Handler. maxUploadSize bounds request bodies.
func NewHandler(sys System, logger *slog.Logger, maxUploadSize int64) *Handler {
	return &Handler{
		sys:           sys,
		logger:        logger.With("handler", "analysis"),
		maxUploadSize: maxUploadSize,
	}
}

// Routes returns the route group definition for analysis endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix:  "",
		Tags:    []string{"Analysis"},
		Schemas: Schemas(),
		Routes: []routes.Route{
			{Method: "POST", Pattern: "/analyze-video", Handler: h.AnalyzeVideo, OpenAPI: &openapi.Operation{
				Summary:     "Analyze a video segment",
				Description: "Accepts JSON with base64 video or a multipart upload with a video file field.",
				RequestBody: &openapi.RequestBody{
					Required: true,
					Content: map[string]*openapi.MediaType{
						"application/json":    {Schema: openapi.SchemaRef("AnalyzeVideoRequest")},
						"multipart/form-data": {Schema: &openapi.Schema{Type: "object"}},
					},
				},
				Responses: map[int]*openapi.Response{
					200: openapi.ResponseJSON("Analysis result", "AnalysisResult"),
					400: openapi.ResponseRef("BadRequest"),
					413: {Description: "Upload exceeds max_upload_size"},
					503: openapi.ResponseRef("ServiceUnavailable"),
					504: openapi.ResponseRef("GatewayTimeout"),
				},
			}},
			{Method: "POST", Pattern: "/analyze-frame", Handler: h.AnalyzeFrame, OpenAPI: &openapi.Operation{
				Summary:     "Classify a single frame without recording alerts",
				RequestBody: openapi.RequestBodyJSON("AnalyzeFrameRequest", true),
				Responses: map[int]*openapi.Response{
					200: openapi.ResponseJSON("Frame findings", "FrameResult"),
					400: openapi.ResponseRef("BadRequest"),
					503: openapi.ResponseRef("ServiceUnavailable"),
					504: openapi.ResponseRef("GatewayTimeout"),
				},
			}},
		},
	}
}

// AnalyzeVideo handles JSON and multipart segment submissions.
func (h *Handler) AnalyzeVideo(w http.ResponseWriter, r *http.Request) {
	var (
		sub Submission
		err error
	)

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		sub, err = h.parseMultipart(w, r)
	} else {
		sub, err = h.parseJSON(w, r)
	}
	if err != nil {
		handlers.RespondError(w, h.logger, requestStatus(err), err)
		return
	}

	result, err := h.sys.AnalyzeVideo(r.Context(), sub)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// AnalyzeFrame classifies a base64 encoded still.
func (h *Handler) AnalyzeFrame(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)

	var req FrameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("%w: %w", ErrInputMissing, err))
		return
	}

	data, err := decodeBase64(req.FrameBase64, "frame_base64")
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	result, err := h.sys.AnalyzeFrame(r.Context(), classifier.Media{Data: data, MimeType: req.MimeType})
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// requestStatus reports 413 for bodies cut off by the upload cap and 400
// for every other parse failure.
func requestStatus(err error) int {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

func (h *Handler) parseJSON(w http.ResponseWriter, r *http.Request) (Submission, error) {
	// base64 inflates the payload by a third.
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize*4/3+4096)

	var req VideoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return Submission{}, fmt.Errorf("%w: %w", ErrInputMissing, err)
	}

	data, err := decodeBase64(req.VideoBase64, "video_base64")
	if err != nil {
		return Submission{}, err
	}

	startedAt, err := parseTime(req.ChunkStartedAt)
	if err != nil {
		return Submission{}, err
	}

	return Submission{
		Media:           classifier.Media{Data: data, MimeType: req.MimeType},
		CameraID:        req.CameraID,
		ChunkIndex:      req.ChunkIndex,
		ChunkStartedAt:  startedAt,
		ChunkDurationMS: req.ChunkDurationMS,
		UserEmail:       req.UserEmail,
	}, nil
}

// multipartOverhead allows for boundaries and the small form fields that
// travel with the file.
const multipartOverhead = 64 << 10

func (h *Handler) parseMultipart(w http.ResponseWriter, r *http.Request) (Submission, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize+multipartOverhead)

	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		return Submission{}, fmt.Errorf("%w: %w", ErrInputMissing, err)
	}

	file, header, err := formFile(r, "video", "file")
	if err != nil {
		return Submission{}, err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return Submission{}, fmt.Errorf("read upload: %w", err)
	}

	sub := Submission{
		Media: classifier.Media{
			Data:     data,
			MimeType: firstNonEmpty(r.FormValue("mime_type"), header.Header.Get("Content-Type")),
		},
		CameraID:  optional(r.FormValue("camera_id")),
		UserEmail: optional(r.FormValue("user_email")),
	}

	if v := r.FormValue("chunk_index"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Submission{}, fmt.Errorf("%w: chunk_index must be an integer", ErrInputMissing)
		}
		sub.ChunkIndex = &n
	}

	if v := r.FormValue("chunk_duration_ms"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return Submission{}, fmt.Errorf("%w: chunk_duration_ms must be an integer", ErrInputMissing)
		}
		sub.ChunkDurationMS = &n
	}

	if sub.ChunkStartedAt, err = parseTime(optional(r.FormValue("chunk_started_at"))); err != nil {
		return Submission{}, err
	}

	return sub, nil
}

func formFile(r *http.Request, fields ...string) (multipart.File, *multipart.FileHeader, error) {
	for _, field := range fields {
		file, header, err := r.FormFile(field)
		if err == nil {
			return file, header, nil
		}
	}
	return nil, nil, fmt.Errorf("%w: video file", ErrInputMissing)
}

func decodeBase64(s, field string) ([]byte, error) {
	if s == "" {
		return nil, fmt.Errorf("%w: %s", ErrInputMissing, field)
	}

	// Browser clients send full data URIs.
	if _, payload, ok := strings.Cut(s, ";base64,"); ok {
		s = payload
	}

	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %s is not valid base64", ErrInputMissing, field)
	}
	return data, nil
}

func parseTime(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}

	t, err := time.Parse(time.RFC3339, *s)
	if err != nil {
		return nil, fmt.Errorf("%w: chunk_started_at must be RFC3339", ErrInputMissing)
	}
	return &t, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Schemas returns the OpenAPI schemas for analysis types.
func Schemas() map[string]*openapi.Schema {
	return map[string]*openapi.Schema{
		"AnalyzeVideoRequest": {
			Type:     "object",
			Required: []string{"video_base64"},
			Properties: map[string]*openapi.Schema{
				"video_base64":      {Type: "string", Format: "byte"},
				"mime_type":         {Type: "string", Example: "video/mp4"},
				"camera_id":         {Type: "string"},
				"chunk_index":       {Type: "integer"},
				"chunk_started_at":  {Type: "string", Format: "date-time"},
				"chunk_duration_ms": {Type: "integer"},
				"user_email":        {Type: "string"},
			},
		},
		"AnalyzeFrameRequest": {
			Type:     "object",
			Required: []string{"frame_base64"},
			Properties: map[string]*openapi.Schema{
				"frame_base64": {Type: "string", Format: "byte"},
				"mime_type":    {Type: "string", Example: "image/jpeg"},
			},
		},
		"AlertSummary": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"alert_id":        {Type: "string", Format: "uuid"},
				"policy_name":     {Type: "string"},
				"policy_level":    {Type: "integer"},
				"severity":        {Type: "string"},
				"video_timestamp": {Type: "string"},
				"description":     {Type: "string"},
				"reasoning":       {Type: "string"},
				"image_url":       {Type: "string"},
			},
		},
		"AnalysisResult": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"video_id":         {Type: "string", Format: "uuid"},
				"violations_found": {Type: "integer"},
				"alerts_created":   {Type: "integer"},
				"alerts":           {Type: "array", Items: openapi.SchemaRef("AlertSummary")},
				"records":          {Type: "array", Items: openapi.SchemaRef("Alert")},
			},
		},
		"FrameResult": {
			Type: "object",
			Properties: map[string]*openapi.Schema{
				"violations_found": {Type: "integer"},
				"violations":       {Type: "array", Items: &openapi.Schema{Type: "object"}},
			},
		},
	}
}
