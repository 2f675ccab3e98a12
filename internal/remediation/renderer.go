package remediation

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/JaimeStill/document-context/pkg/document"
	"github.com/JaimeStill/document-context/pkg/encoding"
)

// Renderer produces an edited image from an evidence frame.
type Renderer interface {
	Render(ctx context.Context, prompt string, frame []byte) ([]byte, error)
}

// ErrNoImage is returned when the endpoint answers without image data.
var ErrNoImage = errors.New("no image returned")

// HTTPRenderer calls an OpenAI-compatible image edit endpoint that accepts
// the source image as a data URI and returns base64 image data.
type HTTPRenderer struct {
	Endpoint string
	Model    string
	Token    string
	Client   *http.Client
}

type renderRequest struct {
	Model          string `json:"model,omitempty"`
	Prompt         string `json:"prompt"`
	Image          string `json:"image"`
	N              int    `json:"n"`
	ResponseFormat string `json:"response_format"`
}

type renderResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
	} `json:"data"`
}

// Render implements Renderer.
func (r *HTTPRenderer) Render(ctx context.Context, prompt string, frame []byte) ([]byte, error) {
	uri, err := encoding.EncodeImageDataURI(frame, document.PNG)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}

	body, err := json.Marshal(renderRequest{
		Model:          r.Model,
		Prompt:         prompt,
		Image:          uri,
		N:              1,
		ResponseFormat: "b64_json",
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if r.Token != "" {
		req.Header.Set("Authorization", "Bearer "+r.Token)
	}

	client := r.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("image endpoint returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var out renderResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode image response: %w", err)
	}

	if len(out.Data) == 0 || out.Data[0].B64JSON == "" {
		return nil, ErrNoImage
	}

	return base64.StdEncoding.DecodeString(out.Data[0].B64JSON)
}
