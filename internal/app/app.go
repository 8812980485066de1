package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"sync"

	"github.com/specialistvlad/vlgtrace/internal/config"
	"github.com/specialistvlad/vlgtrace/internal/ctxlog"
	"github.com/specialistvlad/vlgtrace/internal/runner"
)

// Loader reads the project file.
type Loader interface {
	Load(ctx context.Context, path string) (*config.Config, error)
}

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	ctx     context.Context
	outW    io.Writer
	logger  *slog.Logger
	config  *Config
	project *config.Config
	manager *runner.Manager

	mu         sync.Mutex
	httpServer *http.Server
}

// NewApp is the constructor for the main application. It builds the app's
// own logger and loads the project file.
func NewApp(ctx context.Context, outW io.Writer, appConfig *Config, loader Loader) (*App, error) {
	logger := newLogger(appConfig.LogLevel, appConfig.LogFormat, outW)
	ctx = ctxlog.WithLogger(ctx, logger)
	logger.Debug("Logger configured successfully.")

	path := appConfig.ConfigPath
	if path == "" {
		path = filepath.Join(appConfig.Dir, config.FileName)
	}
	project, err := loader.Load(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logger.Debug("Project configuration loaded.", "path", path)

	return &App{
		ctx:     ctx,
		outW:    outW,
		logger:  logger,
		config:  appConfig,
		project: project,
		manager: runner.NewManager(),
	}, nil
}

// Project returns the resolved project configuration. This is primarily for testing.
func (a *App) Project() *config.Config {
	return a.project
}

// Shutdown interrupts every simulator still running and stops the health
// check server. It is safe to call more than once.
func (a *App) Shutdown(ctx context.Context) {
	a.manager.TerminateAll(ctxlog.WithLogger(ctx, a.logger))
	if err := a.closeHealthCheckServer(); err != nil {
		a.logger.Warn("Health check server did not close cleanly.", "error", err)
	}
}

func (a *App) path(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(a.config.Dir, p)
}
