// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package server runs the development server: an esbuild watch build with the
// replacer in serve mode, static file serving and live reload.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codeberg.org/oliverandrich/scss-asset-replacer/internal/config"
	"codeberg.org/oliverandrich/scss-asset-replacer/internal/esbuildplugin"
	"codeberg.org/oliverandrich/scss-asset-replacer/internal/replacer"
	"codeberg.org/oliverandrich/scss-asset-replacer/internal/sse"
	"github.com/evanw/esbuild/pkg/api"
	"github.com/labstack/echo/v4"
)

// Run watches the entry points and serves the results until interrupted.
func Run(ctx context.Context, cfg *config.Config, r *replacer.Replacer) error {
	if len(cfg.Build.EntryPoints) == 0 {
		return errors.New("no entry points configured")
	}

	slog.Info("starting dev server",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"public_dir", cfg.Build.PublicDir,
		"outdir", cfg.Build.Outdir,
	)

	hub := sse.NewHub()

	// Watch build
	buildCtx, err := newWatchContext(cfg, r, hub)
	if err != nil {
		return err
	}
	defer buildCtx.Dispose()

	if err := buildCtx.Watch(api.WatchOptions{}); err != nil {
		return fmt.Errorf("failed to start watch mode: %w", err)
	}

	e := newEcho(cfg, hub)

	return startWithGracefulShutdown(ctx, e, cfg, hub)
}

// newWatchContext creates the esbuild context used in serve mode.
func newWatchContext(cfg *config.Config, r *replacer.Replacer, hub *sse.Hub) (api.BuildContext, error) {
	opts := esbuildplugin.BuildOptions(cfg.Build, r, replacer.CommandServe)
	opts.Metafile = true
	opts.Plugins = append(opts.Plugins, reloadPlugin(hub))

	buildCtx, ctxErr := api.Context(opts)
	if ctxErr != nil {
		return nil, fmt.Errorf("failed to create esbuild context: %w", esbuildplugin.MessagesError(ctxErr.Errors))
	}
	return buildCtx, nil
}

// newEcho builds the dev server with middleware and routes.
func newEcho(cfg *config.Config, hub *sse.Hub) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	setupMiddleware(e, cfg)
	setupRoutes(e, hub)

	return e
}

func setupRoutes(e *echo.Echo, hub *sse.Hub) {
	lr := &liveReloadHandler{hub: hub}

	e.GET(liveReloadPath, lr.Events)
	e.GET(liveReloadScript, lr.Script)
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{
			"status":     "ok",
			"clients":    hub.ClientCount(),
			"client_ids": hub.ClientIDs(),
		})
	})
}

func startWithGracefulShutdown(ctx context.Context, e *echo.Echo, cfg *config.Config, hub *sse.Hub) error {
	errChan := make(chan error, 1)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	go func() {
		slog.Info("Server running", "url", fmt.Sprintf("http://%s", addr))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Wait for interrupt signal or error
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
		slog.Info("shutting down server")
	case <-ctx.Done():
		slog.Info("shutting down server")
	case err := <-errChan:
		slog.Error("server error", "error", err)
		return err
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Open event streams would otherwise hold the shutdown until its timeout
	hub.CloseAll()

	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown server", "error", err)
	}

	slog.Info("server stopped")
	return nil
}
