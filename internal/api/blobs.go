package api

import (
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path"

	"github.com/JaimeStill/safestack/pkg/handlers"
	"github.com/JaimeStill/safestack/pkg/openapi"
	"github.com/JaimeStill/safestack/pkg/routes"
	"github.com/JaimeStill/safestack/pkg/storage"
)

// blobHandler streams stored evidence frames, amended images, and video
// segments for deployments where the store has no public endpoint.
type blobHandler struct {
	store  storage.System
	logger *slog.Logger
}

func newBlobHandler(store storage.System, logger *slog.Logger) *blobHandler {
	return &blobHandler{
		store:  store,
		logger: logger.With("handler", "blobs"),
	}
}

func (h *blobHandler) routes() routes.Group {
	return routes.Group{
		Prefix: "/blobs",
		Tags:   []string{"Blobs"},
		Routes: []routes.Route{
			{Method: "GET", Pattern: "/{key...}", Handler: h.download, OpenAPI: &openapi.Operation{
				Summary: "Download a stored image or video segment",
				Parameters: []*openapi.Parameter{
					{Name: "key", In: "path", Required: true, Description: "Storage key such as images/frame_{video_id}_{hex}.png", Schema: &openapi.Schema{Type: "string"}},
				},
				Responses: map[int]*openapi.Response{
					200: {Description: "Blob content"},
					400: openapi.ResponseRef("BadRequest"),
					404: openapi.ResponseRef("NotFound"),
				},
			}},
		},
	}
}

func (h *blobHandler) download(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	body, err := h.store.Download(r.Context(), key)
	if err != nil {
		handlers.RespondError(w, h.logger, storage.MapHTTPStatus(err), err)
		return
	}
	defer body.Close()

	contentType := mime.TypeByExtension(path.Ext(key))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	io.Copy(w, body)
}
