package metrics

import "github.com/prometheus/client_golang/prometheus"

// PlaylistStats is the read side of the playlist registry exposed as gauges.
type PlaylistStats interface {
	Len() int
	TotalSubscribers() int
}

// RelayMetrics holds Prometheus metrics for playlist relays.
type RelayMetrics struct {
	ActiveConnections   prometheus.Gauge
	ConnectionsTotal    prometheus.Counter
	ConnectionsRejected *prometheus.CounterVec
	MessagesPublished   prometheus.Counter
	MessagesDelivered   prometheus.Counter
	FramesDiscarded     *prometheus.CounterVec
	MessagesSkipped     prometheus.Counter
	LastListenerExits   prometheus.Counter
	PlaylistsReaped     prometheus.Counter
}

// NewRelayMetrics creates and registers relay metrics on the given registry.
func NewRelayMetrics(reg prometheus.Registerer) *RelayMetrics {
	m := &RelayMetrics{
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "active_connections",
			Help:      "Number of joined websocket connections.",
		}),
		ConnectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "connections_total",
			Help:      "Total number of playlist joins.",
		}),
		ConnectionsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "connections_rejected_total",
			Help:      "Joins rejected before upgrade, by reason.",
		}, []string{"reason"}),
		MessagesPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "messages_published_total",
			Help:      "Text messages published to playlists.",
		}),
		MessagesDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "messages_delivered_total",
			Help:      "Messages written to listeners.",
		}),
		FramesDiscarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "frames_discarded_total",
			Help:      "Inbound non-text frames dropped without relaying, by kind.",
		}, []string{"kind"}),
		MessagesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "messages_skipped_total",
			Help:      "Messages lost by listeners that fell behind the playlist buffer.",
		}),
		LastListenerExits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "last_listener_exits_total",
			Help:      "Connections that left while being the only listener of their playlist.",
		}),
		PlaylistsReaped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "playlists_reaped_total",
			Help:      "Empty playlists removed from the registry.",
		}),
	}

	reg.MustRegister(
		m.ActiveConnections,
		m.ConnectionsTotal,
		m.ConnectionsRejected,
		m.MessagesPublished,
		m.MessagesDelivered,
		m.FramesDiscarded,
		m.MessagesSkipped,
		m.LastListenerExits,
		m.PlaylistsReaped,
	)
	return m
}

// RegisterPlaylistGauges exposes registry size and total listeners as gauges
// evaluated at scrape time.
func RegisterPlaylistGauges(reg prometheus.Registerer, stats PlaylistStats) {
	reg.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "playlist",
			Name:      "count",
			Help:      "Number of playlists in the registry.",
		}, func() float64 { return float64(stats.Len()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "playlist",
			Name:      "listeners",
			Help:      "Listeners joined across all playlists.",
		}, func() float64 { return float64(stats.TotalSubscribers()) }),
	)
}

func (m *RelayMetrics) ConnectionOpened() {
	m.ConnectionsTotal.Inc()
	m.ActiveConnections.Inc()
}

func (m *RelayMetrics) ConnectionClosed() { m.ActiveConnections.Dec() }

func (m *RelayMetrics) ConnectionRejected(reason string) {
	m.ConnectionsRejected.WithLabelValues(reason).Inc()
}

func (m *RelayMetrics) MessagePublished() { m.MessagesPublished.Inc() }

func (m *RelayMetrics) MessageDelivered() { m.MessagesDelivered.Inc() }

func (m *RelayMetrics) FrameDiscarded(kind string) {
	m.FramesDiscarded.WithLabelValues(kind).Inc()
}

func (m *RelayMetrics) MessagesLost(n uint64) { m.MessagesSkipped.Add(float64(n)) }

func (m *RelayMetrics) LastListenerExit() { m.LastListenerExits.Inc() }

func (m *RelayMetrics) PlaylistReaped() { m.PlaylistsReaped.Inc() }
