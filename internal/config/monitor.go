package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"
)

const (
	MonitorConfigFile           = "monitor.toml"
	MonitorOverlayConfigPattern = "monitor.%s.toml"

	EnvMonitorServerURL            = "SAFESTACK_MONITOR_SERVER_URL"
	EnvMonitorInterval             = "SAFESTACK_MONITOR_INTERVAL"
	EnvMonitorSegmentDuration      = "SAFESTACK_MONITOR_SEGMENT_DURATION"
	EnvMonitorMaxConcurrentUploads = "SAFESTACK_MONITOR_MAX_CONCURRENT_UPLOADS"
	EnvMonitorUploadTimeout        = "SAFESTACK_MONITOR_UPLOAD_TIMEOUT"
	EnvMonitorCaptureMode          = "SAFESTACK_MONITOR_CAPTURE_MODE"
	EnvMonitorFFmpegPath           = "SAFESTACK_MONITOR_FFMPEG_PATH"
	EnvMonitorMetricsAddr          = "SAFESTACK_MONITOR_METRICS_ADDR"
	EnvMonitorUserEmail            = "SAFESTACK_MONITOR_USER_EMAIL"
	EnvMonitorLogLevel             = "SAFESTACK_MONITOR_LOG_LEVEL"
)

// Capture modes for multi-camera cycles.
const (
	CaptureParallel   = "parallel"
	CaptureSequential = "sequential"
)

// CameraConfig describes one monitored feed. Source is any input ffmpeg accepts
// (rtsp URL, device, or a file path looped as a live feed).
type CameraConfig struct {
	ID       string `toml:"id"`
	Name     string `toml:"name"`
	Location string `toml:"location"`
	Source   string `toml:"source"`
}

// MonitorConfig is the configuration for the camera monitor binary.
type MonitorConfig struct {
	ServerURL            string         `toml:"server_url"`
	Interval             string         `toml:"interval"`
	SegmentDuration      string         `toml:"segment_duration"`
	MaxConcurrentUploads int            `toml:"max_concurrent_uploads"`
	UploadTimeout        string         `toml:"upload_timeout"`
	CaptureMode          string         `toml:"capture_mode"`
	CaptureStagger       string         `toml:"capture_stagger"`
	PollInterval         string         `toml:"poll_interval"`
	AlertLimit           int            `toml:"alert_limit"`
	AmendedPollInterval  string         `toml:"amended_poll_interval"`
	AmendedBudget        string         `toml:"amended_budget"`
	FFmpegPath           string         `toml:"ffmpeg_path"`
	MetricsAddr          string         `toml:"metrics_addr"`
	UserEmail            string         `toml:"user_email"`
	LogLevel             string         `toml:"log_level"`
	Cameras              []CameraConfig `toml:"cameras"`
}

// LoadMonitor reads monitor.toml (if present) and its environment overlay,
// then finalizes all values.
func LoadMonitor() (*MonitorConfig, error) {
	cfg := &MonitorConfig{}

	if _, err := os.Stat(MonitorConfigFile); err == nil {
		if err := load(MonitorConfigFile, cfg); err != nil {
			return nil, err
		}
	}

	if path := overlayPath(MonitorOverlayConfigPattern); path != "" {
		overlay := &MonitorConfig{}
		if err := load(path, overlay); err != nil {
			return nil, fmt.Errorf("load overlay %s: %w", path, err)
		}
		cfg.Merge(overlay)
	}

	if err := cfg.Finalize(); err != nil {
		return nil, fmt.Errorf("finalize monitor config: %w", err)
	}

	return cfg, nil
}

// IntervalDuration returns Interval as a time.Duration.
func (c *MonitorConfig) IntervalDuration() time.Duration {
	return duration(c.Interval)
}

// SegmentLength returns SegmentDuration as a time.Duration.
func (c *MonitorConfig) SegmentLength() time.Duration {
	return duration(c.SegmentDuration)
}

// UploadTimeoutDuration returns UploadTimeout as a time.Duration.
func (c *MonitorConfig) UploadTimeoutDuration() time.Duration {
	return duration(c.UploadTimeout)
}

// CaptureStaggerDuration returns CaptureStagger as a time.Duration.
func (c *MonitorConfig) CaptureStaggerDuration() time.Duration {
	return duration(c.CaptureStagger)
}

// PollIntervalDuration returns PollInterval as a time.Duration.
func (c *MonitorConfig) PollIntervalDuration() time.Duration {
	return duration(c.PollInterval)
}

// AmendedPollIntervalDuration returns AmendedPollInterval as a time.Duration.
func (c *MonitorConfig) AmendedPollIntervalDuration() time.Duration {
	return duration(c.AmendedPollInterval)
}

// AmendedBudgetDuration returns AmendedBudget as a time.Duration.
func (c *MonitorConfig) AmendedBudgetDuration() time.Duration {
	return duration(c.AmendedBudget)
}

func (c *MonitorConfig) Level() slog.Level {
	lvl, _ := parseLevel(c.LogLevel)
	return lvl
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *MonitorConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay. A non-empty camera list
// in the overlay replaces the base list.
func (c *MonitorConfig) Merge(overlay *MonitorConfig) {
	merge := func(dst *string, src string) {
		if src != "" {
			*dst = src
		}
	}

	merge(&c.ServerURL, overlay.ServerURL)
	merge(&c.Interval, overlay.Interval)
	merge(&c.SegmentDuration, overlay.SegmentDuration)
	merge(&c.UploadTimeout, overlay.UploadTimeout)
	merge(&c.CaptureMode, overlay.CaptureMode)
	merge(&c.CaptureStagger, overlay.CaptureStagger)
	merge(&c.PollInterval, overlay.PollInterval)
	merge(&c.AmendedPollInterval, overlay.AmendedPollInterval)
	merge(&c.AmendedBudget, overlay.AmendedBudget)
	merge(&c.FFmpegPath, overlay.FFmpegPath)
	merge(&c.MetricsAddr, overlay.MetricsAddr)
	merge(&c.UserEmail, overlay.UserEmail)
	merge(&c.LogLevel, overlay.LogLevel)

	if overlay.MaxConcurrentUploads != 0 {
		c.MaxConcurrentUploads = overlay.MaxConcurrentUploads
	}
	if overlay.AlertLimit != 0 {
		c.AlertLimit = overlay.AlertLimit
	}
	if len(overlay.Cameras) > 0 {
		c.Cameras = overlay.Cameras
	}
}

func (c *MonitorConfig) loadDefaults() {
	if c.ServerURL == "" {
		c.ServerURL = "http://localhost:8080/api"
	}
	if c.Interval == "" {
		c.Interval = "30s"
	}
	if c.SegmentDuration == "" {
		c.SegmentDuration = "10s"
	}
	if c.UploadTimeout == "" {
		c.UploadTimeout = "120s"
	}
	if c.CaptureMode == "" {
		c.CaptureMode = CaptureSequential
	}
	if c.CaptureStagger == "" {
		c.CaptureStagger = "500ms"
	}
	if c.PollInterval == "" {
		c.PollInterval = "5s"
	}
	if c.AlertLimit == 0 {
		c.AlertLimit = 100
	}
	if c.AmendedPollInterval == "" {
		c.AmendedPollInterval = "5s"
	}
	if c.AmendedBudget == "" {
		c.AmendedBudget = "2m"
	}
	if c.FFmpegPath == "" {
		c.FFmpegPath = "ffmpeg"
	}
	if c.MetricsAddr == "" {
		c.MetricsAddr = ":9091"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

func (c *MonitorConfig) loadEnv() {
	if v := os.Getenv(EnvMonitorServerURL); v != "" {
		c.ServerURL = v
	}
	if v := os.Getenv(EnvMonitorInterval); v != "" {
		c.Interval = v
	}
	if v := os.Getenv(EnvMonitorSegmentDuration); v != "" {
		c.SegmentDuration = v
	}
	if v := os.Getenv(EnvMonitorMaxConcurrentUploads); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxConcurrentUploads = n
		}
	}
	if v := os.Getenv(EnvMonitorUploadTimeout); v != "" {
		c.UploadTimeout = v
	}
	if v := os.Getenv(EnvMonitorCaptureMode); v != "" {
		c.CaptureMode = v
	}
	if v := os.Getenv(EnvMonitorFFmpegPath); v != "" {
		c.FFmpegPath = v
	}
	if v := os.Getenv(EnvMonitorMetricsAddr); v != "" {
		c.MetricsAddr = v
	}
	if v := os.Getenv(EnvMonitorUserEmail); v != "" {
		c.UserEmail = v
	}
	if v := os.Getenv(EnvMonitorLogLevel); v != "" {
		c.LogLevel = v
	}
}

func (c *MonitorConfig) validate() error {
	durations := map[string]string{
		"interval":              c.Interval,
		"segment_duration":      c.SegmentDuration,
		"upload_timeout":        c.UploadTimeout,
		"poll_interval":         c.PollInterval,
		"amended_poll_interval": c.AmendedPollInterval,
		"amended_budget":        c.AmendedBudget,
	}
	for name, v := range durations {
		if d, err := time.ParseDuration(v); err != nil || d <= 0 {
			return fmt.Errorf("invalid %s: %q", name, v)
		}
	}
	if _, err := time.ParseDuration(c.CaptureStagger); err != nil {
		return fmt.Errorf("invalid capture_stagger: %w", err)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}

	if c.MaxConcurrentUploads < 0 {
		return fmt.Errorf("max_concurrent_uploads must be non-negative")
	}
	if c.CaptureMode != CaptureParallel && c.CaptureMode != CaptureSequential {
		return fmt.Errorf("capture_mode must be %s or %s", CaptureParallel, CaptureSequential)
	}
	if len(c.Cameras) == 0 {
		return fmt.Errorf("at least one camera required")
	}

	seen := make(map[string]bool, len(c.Cameras))
	for i, cam := range c.Cameras {
		if cam.ID == "" || cam.Source == "" {
			return fmt.Errorf("camera %d: id and source required", i)
		}
		if seen[cam.ID] {
			return fmt.Errorf("duplicate camera id %q", cam.ID)
		}
		seen[cam.ID] = true
	}
	return nil
}

func duration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}
