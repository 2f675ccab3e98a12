package openapi

import (
	"fmt"
	"net/url"
	"os"
	"strings"
)

// Config holds the document metadata served at /openapi.json.
// PublicURL is the externally reachable origin (for example behind a
// reverse proxy); when empty the server entry is the bare base path.
type Config struct {
	Title       string `toml:"title"`
	Description string `toml:"description"`
	PublicURL   string `toml:"public_url"`
}

type ConfigEnv struct {
	Title       string
	Description string
	PublicURL   string
}

func (c *Config) Finalize(env *ConfigEnv) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

func (c *Config) Merge(overlay *Config) {
	for dst, src := range map[*string]string{
		&c.Title:       overlay.Title,
		&c.Description: overlay.Description,
		&c.PublicURL:   overlay.PublicURL,
	} {
		if src != "" {
			*dst = src
		}
	}
}

// ServerURL joins PublicURL and basePath.
func (c *Config) ServerURL(basePath string) string {
	if c.PublicURL == "" {
		return basePath
	}
	return strings.TrimSuffix(c.PublicURL, "/") + basePath
}

func (c *Config) loadDefaults() {
	if c.Title == "" {
		c.Title = "SafeStack API"
	}
	if c.Description == "" {
		c.Description = "Workplace safety monitoring: video analysis, alerts, and policy amendment."
	}
}

func (c *Config) loadEnv(env *ConfigEnv) {
	for name, dst := range map[string]*string{
		env.Title:       &c.Title,
		env.Description: &c.Description,
		env.PublicURL:   &c.PublicURL,
	} {
		if name == "" {
			continue
		}
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
}

func (c *Config) validate() error {
	if c.PublicURL == "" {
		return nil
	}
	u, err := url.Parse(c.PublicURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid public_url %q", c.PublicURL)
	}
	return nil
}
