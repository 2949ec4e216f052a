package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pscheid92/peakmusic/internal/domain"
	"github.com/pscheid92/peakmusic/internal/playlist"
)

// inbound forwards text frames from the user to the playlist until the
// transport fails. Other frame kinds are dropped.
func (s *Service) inbound(ctx context.Context, ch *playlist.Channel, from domain.Receiver) error {
	var readErr error
	for {
		msg, err := from.Receive()
		if err != nil {
			readErr = fmt.Errorf("receive from user: %w", err)
			break
		}

		if !msg.IsText() {
			s.metrics.FrameDiscarded(msg.Kind.String())
			slog.DebugContext(ctx, "Discarded non-text frame", "playlist", ch.Name(), "kind", msg.Kind.String())
			continue
		}

		ch.Publish(msg)
		s.metrics.MessagePublished()
	}

	// Our own subscription is still open here, so 1 means nobody else is listening.
	if ch.SubscriberCount() == 1 {
		s.metrics.LastListenerExit()
		slog.InfoContext(ctx, "Last listener is leaving playlist", "playlist", ch.Name())
	}

	return readErr
}

// outbound writes playlist messages to the user until ctx is cancelled or a
// write fails, then closes the transport.
func (s *Service) outbound(ctx context.Context, sub *playlist.Subscription, to domain.Sender) error {
	defer func() { _ = to.Close() }()

	name := sub.Channel().Name()
	for {
		msg, err := sub.Recv(ctx)

		var lagErr *playlist.LagError
		switch {
		case err == nil:
			if err := to.Send(msg); err != nil {
				return fmt.Errorf("send to user: %w", err)
			}
			s.metrics.MessageDelivered()
		case errors.As(err, &lagErr):
			s.metrics.MessagesLost(lagErr.Skipped)
			slog.WarnContext(ctx, "Listener fell behind playlist", "playlist", name, "skipped", lagErr.Skipped)
		case errors.Is(err, context.Canceled):
			return nil
		default:
			return fmt.Errorf("receive from playlist: %w", err)
		}
	}
}
