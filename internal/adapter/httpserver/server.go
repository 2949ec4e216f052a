package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/pscheid92/peakmusic/internal/adapter/metrics"
	wsadapter "github.com/pscheid92/peakmusic/internal/adapter/websocket"
	"github.com/pscheid92/peakmusic/internal/app"
	"github.com/pscheid92/peakmusic/internal/domain"
	"github.com/pscheid92/peakmusic/internal/platform/config"
)

type playlistService interface {
	Join(ctx context.Context, name string, transport domain.Transport) (*app.Relay, error)
	Status(name string) domain.PlaylistStatus
	List() []domain.PlaylistStatus
}

type rejectionRecorder interface {
	ConnectionRejected(reason string)
}

type Server struct {
	echo   *echo.Echo
	config *config.Config
	clock  clockwork.Clock

	playlists  playlistService
	limits     *ConnectionLimits
	rejections rejectionRecorder
	upgrader   *websocket.Upgrader
	timeouts   wsadapter.Timeouts

	httpMetrics    *metrics.HTTPMetrics
	metricsHandler http.Handler
	startTime      time.Time
}

func NewServer(cfg *config.Config, playlists playlistService, rejections rejectionRecorder, httpMetrics *metrics.HTTPMetrics, metricsHandler http.Handler, clock clockwork.Clock) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	srv := &Server{
		echo:       e,
		config:     cfg,
		clock:      clock,
		playlists:  playlists,
		rejections: rejections,
		limits: NewConnectionLimits(
			int64(cfg.MaxWebSocketConnections),
			cfg.MaxConnectionsPerIP,
			cfg.ConnectionRate,
			cfg.ConnectionBurst,
			clock,
		),
		upgrader: wsadapter.NewUpgrader(cfg.AppURL, cfg.IsDevelopment()),
		timeouts: wsadapter.Timeouts{
			Write:        cfg.WriteTimeout,
			PingInterval: cfg.PingInterval,
			PongTimeout:  cfg.PongTimeout,
		},
		httpMetrics:    httpMetrics,
		metricsHandler: metricsHandler,
		startTime:      clock.Now(),
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "addr", s.config.Addr)
	if err := s.echo.Start(s.config.Addr); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones. Upgraded
// websocket connections are hijacked and not covered; stop the playlist
// service for those.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

// ServeHTTP makes the server usable with httptest.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}
