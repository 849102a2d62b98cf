// Package main provides the entry point for the framecut HTTP server.
package main

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

	"github.com/joho/godotenv"

	"github.com/maauso/framecut/internal/bootstrap"
	"github.com/maauso/framecut/internal/config"
	"github.com/maauso/framecut/internal/server"
	"github.com/maauso/framecut/internal/video"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env file is fine; the environment still applies.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := cfg.NewLogger()
	slog.SetDefault(logger)

	logger.Info("starting framecut",
		slog.Int("port", cfg.Port),
		slog.String("log_format", cfg.LogFormat),
		slog.String("log_level", cfg.LogLevel),
		slog.Int("camera_device", cfg.CameraDevice),
		slog.Int("playback_fps", cfg.PlaybackFPS),
		slog.String("export_codec", cfg.ExportCodec),
		slog.String("artifacts_dir", cfg.ArtifactsDir),
		slog.Bool("s3_enabled", cfg.S3Enabled()),
	)

	backend := video.NewGoCVBackend()
	deps, err := bootstrap.NewDependencies(cfg, backend, logger)
	if err != nil {
		return fmt.Errorf("initialize dependencies: %w", err)
	}
	defer func() {
		if err := deps.Close(); err != nil {
			logger.Error("failed to close dependencies", slog.String("error", err.Error()))
		}
	}()

	player, closePlayer := bootstrap.NewPlayer(cfg, backend, logger)
	defer func() {
		if err := closePlayer(); err != nil {
			logger.Error("failed to close player", slog.String("error", err.Error()))
		}
	}()

	eventsCtx, stopEvents := context.WithCancel(context.Background())
	defer stopEvents()
	go deps.LogEvents(eventsCtx, logger)

	handlers := server.NewHandlers(deps.Exports, player, logger,
		server.WithGIFFrameDuration(cfg.GIFFrameDuration()),
	)
	router := server.NewRouter(handlers, logger, server.DefaultConfig())

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening",
			slog.String("addr", srv.Addr),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server failed: %w", err)
		}
	}()

	select {
	case sig := <-shutdownCh:
		logger.Info("received shutdown signal",
			slog.String("signal", sig.String()),
		)
	case err := <-errCh:
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	logger.Info("shutting down server...")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	player.Clock.Pause()
	if err := deps.Exports.Shutdown(ctx); err != nil {
		return fmt.Errorf("export shutdown failed: %w", err)
	}

	logger.Info("server stopped gracefully")
	return nil
}
