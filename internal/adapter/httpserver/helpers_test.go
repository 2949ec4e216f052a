package httpserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/pscheid92/peakmusic/internal/adapter/metrics"
	"github.com/pscheid92/peakmusic/internal/app"
	"github.com/pscheid92/peakmusic/internal/platform/config"
	"github.com/pscheid92/peakmusic/internal/playlist"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		AppEnv:                  "test",
		Addr:                    "127.0.0.1:0",
		LogLevel:                "info",
		LogFormat:               "text",
		PlaylistCapacity:        playlist.DefaultCapacity,
		MaxWebSocketConnections: 100,
		MaxConnectionsPerIP:     50,
		ConnectionRate:          1000,
		ConnectionBurst:         1000,
		StatusRate:              1000,
		StatusBurst:             1000,
		WriteTimeout:            time.Second,
		PingInterval:            30 * time.Second,
		PongTimeout:             60 * time.Second,
		ShutdownTimeout:         time.Second,
	}
}

// testEnv is a fully wired server backed by a real playlist service and
// listening on an httptest server.
type testEnv struct {
	srv      *Server
	svc      *app.Service
	registry *playlist.Registry
	metrics  *metrics.RelayMetrics
	baseURL  string
}

func newTestEnv(t *testing.T, configure ...func(*config.Config)) *testEnv {
	t.Helper()

	cfg := testConfig()
	for _, fn := range configure {
		fn(cfg)
	}

	reg := prometheus.NewRegistry()
	relayMetrics := metrics.NewRelayMetrics(reg)

	registry := playlist.NewRegistry(
		playlist.WithCapacity(cfg.PlaylistCapacity),
		playlist.WithReaping(cfg.ReapEmptyPlaylists),
	)
	metrics.RegisterPlaylistGauges(reg, registry)

	svc := app.NewService(registry, relayMetrics)
	srv := NewServer(cfg, svc, relayMetrics, metrics.NewHTTPMetrics(reg), metrics.Handler(reg), clockwork.NewRealClock())

	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = svc.Stop(ctx)
	})

	return &testEnv{
		srv:      srv,
		svc:      svc,
		registry: registry,
		metrics:  relayMetrics,
		baseURL:  ts.URL,
	}
}

func (e *testEnv) playlistURL(scheme, name string) string {
	return scheme + strings.TrimPrefix(e.baseURL, "http") + "/playlists/" + url.PathEscape(name)
}

func (e *testEnv) dialWithHeader(name string, header http.Header) (*ws.Conn, *http.Response, error) {
	return ws.DefaultDialer.Dial(e.playlistURL("ws", name), header)
}

// dial joins name and waits until the service has registered the listener,
// so that messages sent afterwards are guaranteed to reach it.
func (e *testEnv) dial(t *testing.T, name string) *ws.Conn {
	t.Helper()

	before := e.svc.Status(name).UserCount
	conn, _, err := e.dialWithHeader(name, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	waitForUserCount(t, e.svc, name, before+1)
	return conn
}

func waitForUserCount(t *testing.T, svc *app.Service, name string, want int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return svc.Status(name).UserCount == want
	}, 2*time.Second, 5*time.Millisecond, "playlist %q never reached %d users", name, want)
}

func readText(t *testing.T, conn *ws.Conn) string {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	messageType, payload, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, ws.TextMessage, messageType)
	return string(payload)
}

func expectSilence(t *testing.T, conn *ws.Conn, window time.Duration) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(window))
	_, payload, err := conn.ReadMessage()
	require.Error(t, err, "unexpected message %q", payload)

	var netErr interface{ Timeout() bool }
	require.ErrorAs(t, err, &netErr)
	require.True(t, netErr.Timeout())
}
