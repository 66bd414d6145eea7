package app

import (
	"errors"
	"fmt"
	"time"
)

// Platforms the builder knows how to locate SDKs for.
var knownPlatforms = map[string]bool{
	"iphoneos":        true,
	"iphonesimulator": true,
}

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	ConfigPath string // app.hcl file or directory
	Platform   string
	// DataDir overrides the runtime data directory from the build
	// configuration.
	DataDir string

	LogFormat   string
	LogLevel    string
	WorkerCount int
	// ToolTimeout bounds each external tool invocation. Zero disables it.
	ToolTimeout time.Duration
}

// NewConfig validates cfg and returns a copy.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.ConfigPath == "" {
		return nil, errors.New("ConfigPath is a required configuration field and cannot be empty")
	}
	if !knownPlatforms[cfg.Platform] {
		return nil, fmt.Errorf("unknown platform %q: must be 'iphoneos' or 'iphonesimulator'", cfg.Platform)
	}
	if cfg.WorkerCount < 1 {
		return nil, fmt.Errorf("workers must be at least 1, got %d", cfg.WorkerCount)
	}
	if cfg.ToolTimeout < 0 {
		return nil, fmt.Errorf("tool timeout must not be negative, got %s", cfg.ToolTimeout)
	}
	return &cfg, nil
}
