// Package app provides application lifecycle management for the autosave daemon.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/stacklok/toolhive-autosave/internal/config"
)

// requestSource feeds requests to the dispatcher until ctx ends
type requestSource interface {
	Run(ctx context.Context) error
}

// AutosaveApp encapsulates all components needed to run the autosave daemon.
// It provides lifecycle management and graceful shutdown capabilities
type AutosaveApp struct {
	config     *config.Config
	components *AppComponents
	httpServer *http.Server
	sources    []requestSource

	// Lifecycle management
	ctx        context.Context
	cancelFunc context.CancelFunc
}

// Start runs the request sources and the control server.
// This method blocks until the control server stops or encounters an error
func (app *AutosaveApp) Start() error {
	g, gctx := errgroup.WithContext(app.ctx)

	for _, src := range app.sources {
		g.Go(func() error {
			return src.Run(gctx)
		})
	}

	g.Go(func() error {
		slog.Info("Control server listening", "address", app.httpServer.Addr)
		if err := app.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// Stop gracefully stops the application with the given timeout.
// An in-flight save pass is given the same timeout to finish; the process is not terminated.
func (app *AutosaveApp) Stop(timeout time.Duration) error {
	slog.Info("Shutting down autosave daemon...")

	if app.cancelFunc != nil {
		app.cancelFunc()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := app.components.Coordinator.WaitForIdle(shutdownCtx); err != nil {
		slog.Warn("Save still in progress at shutdown", "error", err)
	}

	if err := app.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	slog.Info("Autosave daemon shutdown complete")
	return nil
}

// GetConfig returns the application configuration
func (app *AutosaveApp) GetConfig() *config.Config {
	return app.config
}

// GetComponents returns the application components
func (app *AutosaveApp) GetComponents() *AppComponents {
	return app.components
}

// GetHTTPServer returns the control server (useful for testing to get the actual port)
func (app *AutosaveApp) GetHTTPServer() *http.Server {
	return app.httpServer
}
