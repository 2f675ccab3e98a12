package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	gaconfig "github.com/JaimeStill/go-agents/pkg/config"

	"github.com/JaimeStill/safestack/pkg/database"
	"github.com/JaimeStill/safestack/pkg/events"
	"github.com/JaimeStill/safestack/pkg/storage"
)

const (
	BaseConfigFile       = "config.toml"
	OverlayConfigPattern = "config.%s.toml"

	EnvSafeStackEnv             = "SAFESTACK_ENV"
	EnvSafeStackShutdownTimeout = "SAFESTACK_SHUTDOWN_TIMEOUT"
	EnvSafeStackVersion         = "SAFESTACK_VERSION"
)

var databaseEnv = &database.Env{
	Host:            "SAFESTACK_DB_HOST",
	Port:            "SAFESTACK_DB_PORT",
	Name:            "SAFESTACK_DB_NAME",
	User:            "SAFESTACK_DB_USER",
	Password:        "SAFESTACK_DB_PASSWORD",
	SSLMode:         "SAFESTACK_DB_SSL_MODE",
	MaxOpenConns:    "SAFESTACK_DB_MAX_OPEN_CONNS",
	MaxIdleConns:    "SAFESTACK_DB_MAX_IDLE_CONNS",
	ConnMaxLifetime: "SAFESTACK_DB_CONN_MAX_LIFETIME",
	ConnTimeout:     "SAFESTACK_DB_CONN_TIMEOUT",
	ConnRetries:     "SAFESTACK_DB_CONN_RETRIES",
}

var storageEnv = &storage.Env{
	Provider:         "SAFESTACK_STORAGE_PROVIDER",
	ContainerName:    "SAFESTACK_STORAGE_CONTAINER_NAME",
	ConnectionString: "SAFESTACK_STORAGE_CONNECTION_STRING",
	AccountURL:       "SAFESTACK_STORAGE_ACCOUNT_URL",
	Endpoint:         "SAFESTACK_STORAGE_ENDPOINT",
	AccessKey:        "SAFESTACK_STORAGE_ACCESS_KEY",
	SecretKey:        "SAFESTACK_STORAGE_SECRET_KEY",
	Region:           "SAFESTACK_STORAGE_REGION",
	UseSSL:           "SAFESTACK_STORAGE_USE_SSL",
	PublicBaseURL:    "SAFESTACK_STORAGE_PUBLIC_BASE_URL",
}

var eventsEnv = &events.Env{
	Provider:   "SAFESTACK_EVENTS_PROVIDER",
	URL:        "SAFESTACK_EVENTS_URL",
	Prefix:     "SAFESTACK_EVENTS_PREFIX",
	ClientID:   "SAFESTACK_EVENTS_CLIENT_ID",
	Username:   "SAFESTACK_EVENTS_USERNAME",
	Password:   "SAFESTACK_EVENTS_PASSWORD",
	QoS:        "SAFESTACK_EVENTS_QOS",
	MaxRetries: "SAFESTACK_EVENTS_MAX_RETRIES",
}

// Config is the root configuration for the SafeStack server.
type Config struct {
	Server          ServerConfig         `toml:"server"`
	Database        database.Config      `toml:"database"`
	Storage         storage.Config       `toml:"storage"`
	Events          events.Config        `toml:"events"`
	API             APIConfig            `toml:"api"`
	Agent           gaconfig.AgentConfig `toml:"agent"`
	Analysis        AnalysisConfig       `toml:"analysis"`
	Remediation     RemediationConfig    `toml:"remediation"`
	ShutdownTimeout string               `toml:"shutdown_timeout"`
	Version         string               `toml:"version"`
}

// Env returns the SAFESTACK_ENV value, defaulting to "local".
func (c *Config) Env() string {
	return currentEnv()
}

// ShutdownTimeoutDuration returns ShutdownTimeout as a time.Duration.
func (c *Config) ShutdownTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ShutdownTimeout)
	return d
}

// Load reads the base config (if present), applies any environment overlay,
// and finalizes all values. If no config.toml exists, defaults and environment
// variables provide all configuration.
func Load() (*Config, error) {
	cfg := &Config{}

	if _, err := os.Stat(BaseConfigFile); err == nil {
		if err := load(BaseConfigFile, cfg); err != nil {
			return nil, err
		}
	}

	if path := overlayPath(OverlayConfigPattern); path != "" {
		overlay := &Config{}
		if err := load(path, overlay); err != nil {
			return nil, fmt.Errorf("load overlay %s: %w", path, err)
		}
		cfg.Merge(overlay)
	}

	if err := cfg.finalize(); err != nil {
		return nil, fmt.Errorf("finalize config: %w", err)
	}

	return cfg, nil
}

// Merge overwrites non-zero fields from overlay across all sub-configs.
func (c *Config) Merge(overlay *Config) {
	if overlay.ShutdownTimeout != "" {
		c.ShutdownTimeout = overlay.ShutdownTimeout
	}
	if overlay.Version != "" {
		c.Version = overlay.Version
	}
	c.Server.Merge(&overlay.Server)
	c.Database.Merge(&overlay.Database)
	c.Storage.Merge(&overlay.Storage)
	c.Events.Merge(&overlay.Events)
	c.API.Merge(&overlay.API)
	c.Agent.Merge(&overlay.Agent)
	c.Analysis.Merge(&overlay.Analysis)
	c.Remediation.Merge(&overlay.Remediation)
}

func (c *Config) finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if err := c.validate(); err != nil {
		return err
	}
	if err := c.Server.Finalize(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.Database.Finalize(databaseEnv); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := c.Storage.Finalize(storageEnv); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if err := c.Events.Finalize(eventsEnv); err != nil {
		return fmt.Errorf("events: %w", err)
	}
	if err := c.API.Finalize(); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	if err := FinalizeAgent(&c.Agent); err != nil {
		return fmt.Errorf("agent: %w", err)
	}
	if err := c.Analysis.Finalize(); err != nil {
		return fmt.Errorf("analysis: %w", err)
	}
	if err := c.Remediation.Finalize(); err != nil {
		return fmt.Errorf("remediation: %w", err)
	}
	return nil
}

func (c *Config) loadDefaults() {
	if c.ShutdownTimeout == "" {
		c.ShutdownTimeout = "30s"
	}
	if c.Version == "" {
		c.Version = "0.1.0"
	}
}

func (c *Config) loadEnv() {
	if v := os.Getenv(EnvSafeStackShutdownTimeout); v != "" {
		c.ShutdownTimeout = v
	}
	if v := os.Getenv(EnvSafeStackVersion); v != "" {
		c.Version = v
	}
}

func (c *Config) validate() error {
	if _, err := time.ParseDuration(c.ShutdownTimeout); err != nil {
		return fmt.Errorf("invalid shutdown_timeout: %w", err)
	}
	return nil
}

func load(path string, dst any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	if err := toml.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	return nil
}

func currentEnv() string {
	if env := os.Getenv(EnvSafeStackEnv); env != "" {
		return env
	}
	return "local"
}

func overlayPath(pattern string) string {
	if env := os.Getenv(EnvSafeStackEnv); env != "" {
		path := fmt.Sprintf(pattern, env)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
