package httpserver

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"
	wsadapter "github.com/pscheid92/peakmusic/internal/adapter/websocket"
	apperrors "github.com/pscheid92/peakmusic/internal/platform/errors"
)

func (s *Server) registerPlaylistRoutes() {
	statusLimiter := newStatusRateLimiter(s.config.StatusRate, s.config.StatusBurst)

	s.echo.GET("/playlists", s.handleListPlaylists, statusLimiter)
	s.echo.GET("/playlists/:name", s.handlePlaylist, statusLimiter)
}

// handlePlaylist serves both operations on a playlist: websocket upgrade
// requests join it, everything else gets its status.
func (s *Server) handlePlaylist(c echo.Context) error {
	name, err := playlistName(c)
	if err != nil {
		return err
	}

	if c.IsWebSocket() {
		return s.handleJoin(c, name)
	}
	return s.handleStatus(c, name)
}

func (s *Server) handleStatus(c echo.Context, name string) error {
	if err := c.JSON(http.StatusOK, s.playlists.Status(name)); err != nil {
		return fmt.Errorf("failed to write status response: %w", err)
	}
	return nil
}

func (s *Server) handleListPlaylists(c echo.Context) error {
	if err := c.JSON(http.StatusOK, s.playlists.List()); err != nil {
		return fmt.Errorf("failed to write playlist list: %w", err)
	}
	return nil
}

func (s *Server) handleJoin(c echo.Context, name string) error {
	ip := c.RealIP()
	if ok, reason := s.limits.Acquire(ip); !ok {
		s.rejections.ConnectionRejected(string(reason))
		if reason == LimitReasonGlobal {
			return apperrors.UnavailableError("server at connection capacity", nil).
				WithField("playlist", name)
		}
		return apperrors.RateLimitedError("too many connections").
			WithField("playlist", name).
			WithField("reason", string(reason))
	}

	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.limits.Release(ip)
		s.rejections.ConnectionRejected("upgrade_failed")
		// The upgrader has already written an HTTP error response.
		slog.DebugContext(c.Request().Context(), "WebSocket upgrade failed", "playlist", name, "error", err)
		return nil
	}

	transport := wsadapter.NewTransport(conn, s.timeouts, s.clock)

	relay, err := s.playlists.Join(c.Request().Context(), name, transport)
	if err != nil {
		s.limits.Release(ip)
		_ = transport.Close()
		// The connection is hijacked, so the failure can only be logged.
		logError(c, apperrors.UnavailableError("failed to join playlist", err).WithField("playlist", name))
		return nil
	}

	go func() {
		<-relay.Done()
		s.limits.Release(ip)
	}()

	return nil
}

// playlistName returns the decoded :name path segment. Echo matches on the
// raw path when the request carries escapes, so the segment is unescaped here.
func playlistName(c echo.Context) (string, error) {
	name := c.Param("name")
	if c.Request().URL.RawPath != "" {
		decoded, err := url.PathUnescape(name)
		if err != nil {
			return "", apperrors.ValidationError("invalid playlist name").WithField("playlist", name)
		}
		name = decoded
	}

	if name == "" {
		return "", apperrors.ValidationError("playlist name must not be empty")
	}
	return name, nil
}
