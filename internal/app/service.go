package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/pscheid92/peakmusic/internal/domain"
	"github.com/pscheid92/peakmusic/internal/platform/correlation"
	"github.com/pscheid92/peakmusic/internal/playlist"
	"golang.org/x/sync/errgroup"
)

// relayMetrics is the subset of metrics.RelayMetrics the relay pair records to.
type relayMetrics interface {
	ConnectionOpened()
	ConnectionClosed()
	MessagePublished()
	MessageDelivered()
	FrameDiscarded(kind string)
	MessagesLost(n uint64)
	LastListenerExit()
	PlaylistReaped()
}

// Relay is the handle of one joined connection. Done is closed once both its
// inbound and outbound tasks have exited and the subscription is released.
type Relay struct {
	id            string
	correlationID string
	playlist      string
	transport     domain.Transport
	done          chan struct{}
}

// ID is unique per connection; CorrelationID is shared with the HTTP request
// that performed the upgrade.
func (r *Relay) ID() string { return r.id }

func (r *Relay) CorrelationID() string { return r.correlationID }

func (r *Relay) Playlist() string { return r.playlist }

func (r *Relay) Done() <-chan struct{} { return r.done }

// Service joins connections to playlists and answers status queries. It owns
// the lifecycle of every relay pair it starts.
type Service struct {
	playlists *playlist.Registry
	metrics   relayMetrics

	mu      sync.Mutex
	relays  map[*Relay]struct{}
	stopped bool
	wg      sync.WaitGroup
}

func NewService(playlists *playlist.Registry, metrics relayMetrics) *Service {
	return &Service{
		playlists: playlists,
		metrics:   metrics,
		relays:    make(map[*Relay]struct{}),
	}
}

// Join subscribes transport to the named playlist and starts its relay pair.
// It returns as soon as both tasks are dispatched. ctx only contributes its
// correlation ID; the relay runs until the transport fails or Stop is called.
func (s *Service) Join(ctx context.Context, name string, transport domain.Transport) (*Relay, error) {
	if name == "" {
		return nil, domain.ErrEmptyPlaylistName
	}

	relayCtx, correlationID := correlation.Detach(ctx)

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil, domain.ErrServiceStopped
	}
	sub := s.playlists.Join(name)
	r := &Relay{
		id:            uuid.NewString(),
		correlationID: correlationID,
		playlist:      name,
		transport:     transport,
		done:          make(chan struct{}),
	}
	s.relays[r] = struct{}{}
	s.wg.Add(1)
	s.mu.Unlock()

	s.metrics.ConnectionOpened()
	slog.InfoContext(relayCtx, "User joined playlist", "playlist", name, "connection_id", r.id, "listeners", sub.Channel().SubscriberCount())

	// Inbound holds the only cancel func; outbound only observes it.
	outboundCtx, cancel := context.WithCancel(relayCtx)

	g := new(errgroup.Group)
	g.Go(func() error {
		return s.outbound(outboundCtx, sub, transport)
	})
	g.Go(func() error {
		defer cancel()
		return s.inbound(relayCtx, sub.Channel(), transport)
	})

	go s.supervise(relayCtx, r, sub, g)

	return r, nil
}

func (s *Service) supervise(ctx context.Context, r *Relay, sub *playlist.Subscription, g *errgroup.Group) {
	defer s.wg.Done()

	reason := g.Wait()
	reaped := s.playlists.Leave(sub)

	s.mu.Lock()
	delete(s.relays, r)
	s.mu.Unlock()

	s.metrics.ConnectionClosed()
	if reaped {
		s.metrics.PlaylistReaped()
		slog.InfoContext(ctx, "Removed empty playlist", "playlist", r.playlist)
	}

	slog.InfoContext(ctx, "User left playlist", "playlist", r.playlist, "connection_id", r.id, "reason", reason)
	close(r.done)
}

// Status reports how many users are joined to name. Unknown playlists report zero.
func (s *Service) Status(name string) domain.PlaylistStatus {
	return domain.PlaylistStatus{
		Name:      name,
		UserCount: s.playlists.SubscriberCount(name),
	}
}

// List reports the status of every playlist currently in the registry.
func (s *Service) List() []domain.PlaylistStatus {
	names := s.playlists.Names()
	statuses := make([]domain.PlaylistStatus, 0, len(names))
	for _, name := range names {
		statuses = append(statuses, s.Status(name))
	}
	return statuses
}

// ActiveRelays returns the number of relay pairs that have not finished yet.
func (s *Service) ActiveRelays() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.relays)
}

// Stop rejects new joins, closes every active transport and waits for all
// relay pairs to exit or ctx to expire.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.stopped = true
	transports := make([]domain.Transport, 0, len(s.relays))
	for r := range s.relays {
		transports = append(transports, r.transport)
	}
	s.mu.Unlock()

	slog.Info("Closing relays", "count", len(transports))
	for _, t := range transports {
		_ = t.Close()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for relays to exit: %w", ctx.Err())
	}
}
