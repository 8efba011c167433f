// Package config loads the service configuration from the environment.
// Request-scoped settings (credentials, batch bounds) arrive per request;
// only process-level knobs live here.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config is the process-level configuration.
type Config struct {
	// Port the HTTP API listens on.
	Port string
	// ToolPath locates the bulk transfer binary. Empty means PATH lookup
	// under the default name.
	ToolPath string
	// StagingDir hosts the traditional path's transient staging areas.
	// Empty means the system temp dir.
	StagingDir string
	// ToolTimeout bounds one bulk tool invocation.
	ToolTimeout time.Duration
	// DefaultRegion is used when a request's credentials omit a region.
	DefaultRegion string
}

// Load reads the configuration from the environment, applying defaults
// for anything unset.
func Load() Config {
	return Config{
		Port:          getenv("PORT", "8080"),
		ToolPath:      os.Getenv("S5CMD_PATH"),
		StagingDir:    os.Getenv("STAGING_DIR"),
		ToolTimeout:   getenvDuration("TOOL_TIMEOUT_SECONDS", 15*time.Minute),
		DefaultRegion: getenv("AWS_REGION", "us-east-1"),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		return fallback
	}
	return time.Duration(secs) * time.Second
}
