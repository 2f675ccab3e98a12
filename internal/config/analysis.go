package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	EnvAnalysisPolicyFile      = "SAFESTACK_ANALYSIS_POLICY_FILE"
	EnvAnalysisWatchPolicies   = "SAFESTACK_ANALYSIS_WATCH_POLICIES"
	EnvAnalysisFrameWorkers    = "SAFESTACK_ANALYSIS_FRAME_WORKERS"
	EnvAnalysisClassifyTimeout = "SAFESTACK_ANALYSIS_CLASSIFY_TIMEOUT"
	EnvAnalysisFFmpegPath      = "SAFESTACK_ANALYSIS_FFMPEG_PATH"
)

// AnalysisConfig controls video classification and frame extraction.
// PolicyFile, when set, is imported at startup and optionally watched for changes.
type AnalysisConfig struct {
	PolicyFile      string `toml:"policy_file"`
	WatchPolicies   bool   `toml:"watch_policies"`
	FrameWorkers    int    `toml:"frame_workers"`
	ClassifyTimeout string `toml:"classify_timeout"`
	FFmpegPath      string `toml:"ffmpeg_path"`
}

// ClassifyTimeoutDuration returns ClassifyTimeout as a time.Duration.
func (c *AnalysisConfig) ClassifyTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ClassifyTimeout)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *AnalysisConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *AnalysisConfig) Merge(overlay *AnalysisConfig) {
	if overlay.PolicyFile != "" {
		c.PolicyFile = overlay.PolicyFile
	}
	if overlay.WatchPolicies {
		c.WatchPolicies = true
	}
	if overlay.FrameWorkers != 0 {
		c.FrameWorkers = overlay.FrameWorkers
	}
	if overlay.ClassifyTimeout != "" {
		c.ClassifyTimeout = overlay.ClassifyTimeout
	}
	if overlay.FFmpegPath != "" {
		c.FFmpegPath = overlay.FFmpegPath
	}
}

func (c *AnalysisConfig) loadDefaults() {
	if c.ClassifyTimeout == "" {
		c.ClassifyTimeout = "90s"
	}
	if c.FFmpegPath == "" {
		c.FFmpegPath = "ffmpeg"
	}
}

func (c *AnalysisConfig) loadEnv() {
	if v := os.Getenv(EnvAnalysisPolicyFile); v != "" {
		c.PolicyFile = v
	}
	if v := os.Getenv(EnvAnalysisWatchPolicies); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.WatchPolicies = b
		}
	}
	if v := os.Getenv(EnvAnalysisFrameWorkers); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.FrameWorkers = n
		}
	}
	if v := os.Getenv(EnvAnalysisClassifyTimeout); v != "" {
		c.ClassifyTimeout = v
	}
	if v := os.Getenv(EnvAnalysisFFmpegPath); v != "" {
		c.FFmpegPath = v
	}
}

func (c *AnalysisConfig) validate() error {
	if c.FrameWorkers < 0 {
		return fmt.Errorf("frame_workers must be non-negative")
	}
	if d, err := time.ParseDuration(c.ClassifyTimeout); err != nil || d <= 0 {
		return fmt.Errorf("invalid classify_timeout: %s", c.ClassifyTimeout)
	}
	if c.WatchPolicies && c.PolicyFile == "" {
		return fmt.Errorf("watch_policies requires policy_file")
	}
	return nil
}
