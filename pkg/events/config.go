package events

import (
	"fmt"
	"os"
	"strconv"
)

// Supported providers.
const (
	ProviderNone = "none"
	ProviderNATS = "nats"
	ProviderMQTT = "mqtt"
)

// Config holds broker connection and publishing parameters.
type Config struct {
	Provider   string `toml:"provider"`
	URL        string `toml:"url"`
	Prefix     string `toml:"prefix"`
	ClientID   string `toml:"client_id"`
	Username   string `toml:"username"`
	Password   string `toml:"password"`
	QoS        int    `toml:"qos"`
	MaxRetries int    `toml:"max_retries"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	Provider   string
	URL        string
	Prefix     string
	ClientID   string
	Username   string
	Password   string
	QoS        string
	MaxRetries string
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	if overlay.Provider != "" {
		c.Provider = overlay.Provider
	}
	if overlay.URL != "" {
		c.URL = overlay.URL
	}
	if overlay.Prefix != "" {
		c.Prefix = overlay.Prefix
	}
	if overlay.ClientID != "" {
		c.ClientID = overlay.ClientID
	}
	if overlay.Username != "" {
		c.Username = overlay.Username
	}
	if overlay.Password != "" {
		c.Password = overlay.Password
	}
	if overlay.QoS != 0 {
		c.QoS = overlay.QoS
	}
	if overlay.MaxRetries != 0 {
		c.MaxRetries = overlay.MaxRetries
	}
}

func (c *Config) loadDefaults() {
	if c.Provider == "" {
		c.Provider = ProviderNone
	}
	if c.Prefix == "" {
		c.Prefix = "safestack"
	}
	if c.ClientID == "" {
		c.ClientID = "safestack-server"
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
}

func (c *Config) loadEnv(env *Env) {
	str := func(name string, dst *string) {
		if name == "" {
			return
		}
		if v := os.Getenv(name); v != "" {
			*dst = v
		}
	}
	num := func(name string, dst *int) {
		if name == "" {
			return
		}
		if v := os.Getenv(name); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	str(env.Provider, &c.Provider)
	str(env.URL, &c.URL)
	str(env.Prefix, &c.Prefix)
	str(env.ClientID, &c.ClientID)
	str(env.Username, &c.Username)
	str(env.Password, &c.Password)
	num(env.QoS, &c.QoS)
	num(env.MaxRetries, &c.MaxRetries)
}

func (c *Config) validate() error {
	switch c.Provider {
	case ProviderNone:
		return nil
	case ProviderNATS, ProviderMQTT:
	default:
		return fmt.Errorf("unknown provider %q", c.Provider)
	}

	if c.URL == "" {
		return fmt.Errorf("url required for provider %s", c.Provider)
	}
	if c.QoS < 0 || c.QoS > 2 {
		return fmt.Errorf("qos must be 0, 1, or 2")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be non-negative")
	}
	return nil
}
