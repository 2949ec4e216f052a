package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/peakmusic/internal/adapter/httpserver"
	"github.com/pscheid92/peakmusic/internal/adapter/metrics"
	"github.com/pscheid92/peakmusic/internal/app"
	"github.com/pscheid92/peakmusic/internal/platform/config"
	"github.com/pscheid92/peakmusic/internal/platform/logging"
	"github.com/pscheid92/peakmusic/internal/platform/version"
	"github.com/pscheid92/peakmusic/internal/playlist"
)

func runGracefulShutdown(cfg *config.Config, srv *httpserver.Server, appSvc *app.Service) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		// Upgraded connections are hijacked, so echo does not wait for them.
		if err := appSvc.Stop(shutdownCtx); err != nil {
			slog.Error("Relay shutdown error", "error", err)
		}

		close(done)
	}()

	return done
}

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "addr", cfg.Addr, "version", version.Get().Version)

	registry := playlist.NewRegistry(
		playlist.WithCapacity(cfg.PlaylistCapacity),
		playlist.WithReaping(cfg.ReapEmptyPlaylists),
	)

	promRegistry := metrics.NewRegistry()
	relayMetrics := metrics.NewRelayMetrics(promRegistry)
	metrics.RegisterPlaylistGauges(promRegistry, registry)
	httpMetrics := metrics.NewHTTPMetrics(promRegistry)

	appSvc := app.NewService(registry, relayMetrics)

	srv := httpserver.NewServer(cfg, appSvc, relayMetrics, httpMetrics, metrics.Handler(promRegistry), clock)

	done := runGracefulShutdown(cfg, srv, appSvc)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
