package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/JaimeStill/safestack/pkg/formatting"
	"github.com/JaimeStill/safestack/pkg/middleware"
	"github.com/JaimeStill/safestack/pkg/openapi"
	"github.com/JaimeStill/safestack/pkg/pagination"
)

const (
	EnvAPIBasePath      = "SAFESTACK_API_BASE_PATH"
	EnvAPIMaxUploadSize = "SAFESTACK_API_MAX_UPLOAD_SIZE"

	defaultMaxUploadSize = "100MB"
)

var corsEnv = &middleware.CORSEnv{
	Enabled:          "SAFESTACK_CORS_ENABLED",
	Origins:          "SAFESTACK_CORS_ORIGINS",
	AllowedMethods:   "SAFESTACK_CORS_ALLOWED_METHODS",
	AllowedHeaders:   "SAFESTACK_CORS_ALLOWED_HEADERS",
	AllowCredentials: "SAFESTACK_CORS_ALLOW_CREDENTIALS",
	MaxAge:           "SAFESTACK_CORS_MAX_AGE",
}

var paginationEnv = &pagination.ConfigEnv{
	DefaultPageSize: "SAFESTACK_PAGINATION_DEFAULT_PAGE_SIZE",
	MaxPageSize:     "SAFESTACK_PAGINATION_MAX_PAGE_SIZE",
	DefaultLimit:    "SAFESTACK_PAGINATION_DEFAULT_LIMIT",
	MaxLimit:        "SAFESTACK_PAGINATION_MAX_LIMIT",
}

var openapiEnv = &openapi.ConfigEnv{
	Title:       "SAFESTACK_OPENAPI_TITLE",
	Description: "SAFESTACK_OPENAPI_DESCRIPTION",
	PublicURL:   "SAFESTACK_OPENAPI_PUBLIC_URL",
}

// APIConfig covers everything mounted under BasePath.
type APIConfig struct {
	// BasePath is a single segment such as "/api".
	BasePath      string                `toml:"base_path"`
	MaxUploadSize string                `toml:"max_upload_size"`
	CORS          middleware.CORSConfig `toml:"cors"`
	Pagination    pagination.Config     `toml:"pagination"`
	OpenAPI       openapi.Config        `toml:"openapi"`
}

// MaxUploadSizeBytes is the multipart body cap for video uploads.
func (c *APIConfig) MaxUploadSizeBytes() int64 {
	size, err := formatting.ParseBytes(c.MaxUploadSize)
	if err != nil {
		size, _ = formatting.ParseBytes(defaultMaxUploadSize)
	}
	return size
}

func (c *APIConfig) Finalize() error {
	if c.BasePath == "" {
		c.BasePath = "/api"
	}
	if c.MaxUploadSize == "" {
		c.MaxUploadSize = defaultMaxUploadSize
	}
	if v := os.Getenv(EnvAPIBasePath); v != "" {
		c.BasePath = v
	}
	if v := os.Getenv(EnvAPIMaxUploadSize); v != "" {
		c.MaxUploadSize = v
	}

	if err := validateBasePath(c.BasePath); err != nil {
		return err
	}
	if size, err := formatting.ParseBytes(c.MaxUploadSize); err != nil || size <= 0 {
		return fmt.Errorf("invalid max_upload_size %q", c.MaxUploadSize)
	}

	nested := []struct {
		name     string
		finalize func() error
	}{
		{"cors", func() error { return c.CORS.Finalize(corsEnv) }},
		{"pagination", func() error { return c.Pagination.Finalize(paginationEnv) }},
		{"openapi", func() error { return c.OpenAPI.Finalize(openapiEnv) }},
	}
	for _, n := range nested {
		if err := n.finalize(); err != nil {
			return fmt.Errorf("%s: %w", n.name, err)
		}
	}
	return nil
}

func (c *APIConfig) Merge(overlay *APIConfig) {
	if overlay.BasePath != "" {
		c.BasePath = overlay.BasePath
	}
	if overlay.MaxUploadSize != "" {
		c.MaxUploadSize = overlay.MaxUploadSize
	}
	c.CORS.Merge(&overlay.CORS)
	c.Pagination.Merge(&overlay.Pagination)
	c.OpenAPI.Merge(&overlay.OpenAPI)
}

// validateBasePath mirrors the module prefix rules so a bad value fails at
// load time instead of panicking at mount.
func validateBasePath(p string) error {
	rest, ok := strings.CutPrefix(p, "/")
	if !ok || rest == "" || strings.Contains(rest, "/") {
		return fmt.Errorf("base_path must be a single segment like /api, got %q", p)
	}
	return nil
}
