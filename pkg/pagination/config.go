package pagination

import (
	"fmt"
	"os"
	"strconv"
)

// Config bounds paged listings (page_size) and capped listings (limit).
type Config struct {
	DefaultPageSize int `toml:"default_page_size"`
	MaxPageSize     int `toml:"max_page_size"`
	DefaultLimit    int `toml:"default_limit"`
	MaxLimit        int `toml:"max_limit"`
}

// ConfigEnv names the environment variables that override Config.
// Empty names are skipped.
type ConfigEnv struct {
	DefaultPageSize string
	MaxPageSize     string
	DefaultLimit    string
	MaxLimit        string
}

// bound is one default/max pair.
type bound struct {
	name               string
	def, max           *int
	defaultV, maxV     int
	defaultEnv, maxEnv string
}

func (c *Config) bounds(env *ConfigEnv) []bound {
	if env == nil {
		env = &ConfigEnv{}
	}
	return []bound{
		{"page_size", &c.DefaultPageSize, &c.MaxPageSize, 20, 100, env.DefaultPageSize, env.MaxPageSize},
		{"limit", &c.DefaultLimit, &c.MaxLimit, 100, 1000, env.DefaultLimit, env.MaxLimit},
	}
}

// Finalize fills unset values, applies env overrides, and checks that
// each default is positive and within its max.
func (c *Config) Finalize(env *ConfigEnv) error {
	for _, b := range c.bounds(env) {
		if *b.def <= 0 {
			*b.def = b.defaultV
		}
		if *b.max <= 0 {
			*b.max = b.maxV
		}
		if err := envInt(b.defaultEnv, b.def); err != nil {
			return err
		}
		if err := envInt(b.maxEnv, b.max); err != nil {
			return err
		}

		if *b.def < 1 || *b.max < 1 {
			return fmt.Errorf("default_%s and max_%s must be positive", b.name, b.name)
		}
		if *b.def > *b.max {
			return fmt.Errorf("default_%s %d exceeds max_%s %d", b.name, *b.def, b.name, *b.max)
		}
	}
	return nil
}

// Merge copies the positive fields of overlay.
func (c *Config) Merge(overlay *Config) {
	for _, pair := range [][2]*int{
		{&c.DefaultPageSize, &overlay.DefaultPageSize},
		{&c.MaxPageSize, &overlay.MaxPageSize},
		{&c.DefaultLimit, &overlay.DefaultLimit},
		{&c.MaxLimit, &overlay.MaxLimit},
	} {
		if *pair[1] > 0 {
			*pair[0] = *pair[1]
		}
	}
}

func envInt(name string, target *int) error {
	if name == "" {
		return nil
	}
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %q is not an integer", name, v)
	}
	*target = n
	return nil
}
