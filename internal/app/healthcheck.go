package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/specialistvlad/vlgtrace/internal/ctxlog"
)

func (app *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	logger := ctxlog.FromContext(app.ctx)
	logger.Debug("Health check endpoint hit.", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

// healthCheckServer starts the health check HTTP server in the background
// when a port is configured.
func (app *App) healthCheckServer() {
	logger := ctxlog.FromContext(app.ctx)
	if app.config.HealthcheckPort <= 0 {
		logger.Debug("Health check server not started: disabled")
		return
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", app.healthHandler)

	addr := fmt.Sprintf(":%d", app.config.HealthcheckPort)
	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	app.mu.Lock()
	app.httpServer = srv
	app.mu.Unlock()

	go func() {
		logger.Info("🩺 Health check server starting", "address", fmt.Sprintf("http://localhost%s/health", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Health check server failed unexpectedly", "error", err)
		}
	}()
}

func (app *App) closeHealthCheckServer() error {
	logger := ctxlog.FromContext(app.ctx)
	app.mu.Lock()
	srv := app.httpServer
	app.httpServer = nil
	app.mu.Unlock()
	if srv == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(app.ctx), 5*time.Second)
	defer cancel()

	logger.Info("🩺 Shutting down health check server...")
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Health check server shutdown failed", "error", err)
		return err
	}
	return nil
}
