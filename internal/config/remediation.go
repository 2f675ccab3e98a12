package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	EnvRemediationEndpoint  = "SAFESTACK_REMEDIATION_ENDPOINT"
	EnvRemediationModel     = "SAFESTACK_REMEDIATION_MODEL"
	EnvRemediationToken     = "SAFESTACK_REMEDIATION_TOKEN"
	EnvRemediationWorkers   = "SAFESTACK_REMEDIATION_WORKERS"
	EnvRemediationQueueSize = "SAFESTACK_REMEDIATION_QUEUE_SIZE"
	EnvRemediationTimeout   = "SAFESTACK_REMEDIATION_TIMEOUT"
)

// RemediationConfig configures amended-image generation.
// An empty Endpoint disables remediation.
type RemediationConfig struct {
	Endpoint  string `toml:"endpoint"`
	Model     string `toml:"model"`
	Token     string `toml:"token"`
	Workers   int    `toml:"workers"`
	QueueSize int    `toml:"queue_size"`
	Timeout   string `toml:"timeout"`
}

// Enabled reports whether an image endpoint is configured.
func (c *RemediationConfig) Enabled() bool {
	return c.Endpoint != ""
}

// TimeoutDuration returns Timeout as a time.Duration.
func (c *RemediationConfig) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *RemediationConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *RemediationConfig) Merge(overlay *RemediationConfig) {
	if overlay.Endpoint != "" {
		c.Endpoint = overlay.Endpoint
	}
	if overlay.Model != "" {
		c.Model = overlay.Model
	}
	if overlay.Token != "" {
		c.Token = overlay.Token
	}
	if overlay.Workers != 0 {
		c.Workers = overlay.Workers
	}
	if overlay.QueueSize != 0 {
		c.QueueSize = overlay.QueueSize
	}
	if overlay.Timeout != "" {
		c.Timeout = overlay.Timeout
	}
}

func (c *RemediationConfig) loadDefaults() {
	if c.Workers == 0 {
		c.Workers = 2
	}
	if c.QueueSize == 0 {
		c.QueueSize = 64
	}
	if c.Timeout == "" {
		c.Timeout = "2m"
	}
}

func (c *RemediationConfig) loadEnv() {
	if v := os.Getenv(EnvRemediationEndpoint); v != "" {
		c.Endpoint = v
	}
	if v := os.Getenv(EnvRemediationModel); v != "" {
		c.Model = v
	}
	if v := os.Getenv(EnvRemediationToken); v != "" {
		c.Token = v
	}
	if v := os.Getenv(EnvRemediationWorkers); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Workers = n
		}
	}
	if v := os.Getenv(EnvRemediationQueueSize); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.QueueSize = n
		}
	}
	if v := os.Getenv(EnvRemediationTimeout); v != "" {
		c.Timeout = v
	}
}

func (c *RemediationConfig) validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}
	if c.QueueSize < 1 {
		return fmt.Errorf("queue_size must be at least 1")
	}
	if d, err := time.ParseDuration(c.Timeout); err != nil || d <= 0 {
		return fmt.Errorf("invalid timeout: %s", c.Timeout)
	}
	return nil
}
