package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/vk/bundleforge/internal/config"
	"github.com/vk/bundleforge/internal/ctxlog"
	"github.com/vk/bundleforge/internal/toolchain"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW      io.Writer
	logger    *slog.Logger
	config    *Config
	model     *config.Model
	dataDir   string
	toolchain toolchain.Toolchain
}

// Option customises an App.
type Option func(*App)

// WithToolchain replaces the executable-backed toolchain.
func WithToolchain(tc toolchain.Toolchain) Option {
	return func(a *App) { a.toolchain = tc }
}

// NewApp is the constructor for the main application. It configures an
// isolated logger, loads the build configuration and prepares the toolchain.
func NewApp(outW io.Writer, cfg *Config, loader config.Loader, opts ...Option) (*App, error) {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	model, err := loader.Load(ctx, cfg.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logger.Debug("Configuration loaded and translated into unified model.", "app", model.Name)

	dataDir := model.DataDir
	if cfg.DataDir != "" {
		dataDir = cfg.DataDir
	}
	if dataDir == "" {
		return nil, errors.New("no runtime data directory: set data_dir in the configuration or pass --data-dir")
	}

	a := &App{
		outW:    outW,
		logger:  logger,
		config:  cfg,
		model:   model,
		dataDir: dataDir,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.toolchain == nil {
		paths := toolchain.DefaultPaths(dataDir, model.PlatformDir(cfg.Platform))
		a.toolchain = toolchain.NewExec(paths, toolchain.NewExecRunner(cfg.ToolTimeout))
		logger.Debug("Using executable toolchain.", "paths", paths)
	}
	return a, nil
}

// Model returns the loaded build configuration. This is primarily for testing.
func (a *App) Model() *config.Model {
	return a.model
}
