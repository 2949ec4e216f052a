package playlist

import (
	"context"
	"fmt"
	"sync"

	"github.com/pscheid92/peakmusic/internal/domain"
)

// DefaultCapacity is how many undelivered messages a subscriber may fall behind
// before it observes a gap.
const DefaultCapacity = 20

// LagError is returned by Subscription.Recv when the subscriber fell behind the
// oldest retained message. The subscription has already been moved forward to
// the oldest retained message when this is returned.
type LagError struct {
	Skipped uint64
}

func (e *LagError) Error() string {
	return fmt.Sprintf("%s: skipped %d messages", domain.ErrLagged, e.Skipped)
}

func (e *LagError) Unwrap() error {
	return domain.ErrLagged
}

// Channel is a bounded multi-producer/multi-consumer broadcast bus for one
// playlist. Messages live in a fixed ring; each subscriber keeps its own read
// cursor, so publishers never wait for consumers.
type Channel struct {
	name string

	mu          sync.Mutex
	ring        []domain.Message
	seq         uint64 // sequence number of the next published message
	subscribers int
	wake        chan struct{} // closed on every publish
}

// NewChannel creates an empty channel. A capacity below 1 falls back to DefaultCapacity.
func NewChannel(name string, capacity int) *Channel {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Channel{
		name: name,
		ring: make([]domain.Message, capacity),
		wake: make(chan struct{}),
	}
}

func (c *Channel) Name() string { return c.name }

func (c *Channel) Capacity() int { return len(c.ring) }

// SubscriberCount returns the number of open subscriptions.
func (c *Channel) SubscriberCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subscribers
}

// Subscribe registers a new consumer. It only sees messages published after
// this call returns.
func (c *Channel) Subscribe() *Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.subscribers++
	return &Subscription{channel: c, next: c.seq}
}

// Publish appends msg to the ring, overwriting the oldest slot when full, and
// wakes every waiting receiver. It returns the number of subscribers at the
// time of publishing.
func (c *Channel) Publish(msg domain.Message) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.ring[c.seq%uint64(len(c.ring))] = msg
	c.seq++

	close(c.wake)
	c.wake = make(chan struct{})

	return c.subscribers
}

// oldest returns the sequence number of the oldest retained message.
// Must be called with mu held.
func (c *Channel) oldest() uint64 {
	capacity := uint64(len(c.ring))
	if c.seq <= capacity {
		return 0
	}
	return c.seq - capacity
}

// Subscription is a receive handle into a Channel. It must be used by a single
// goroutine; Close may be called from any goroutine.
type Subscription struct {
	channel *Channel
	next    uint64
	closed  bool
	once    sync.Once
}

// Channel returns the channel this subscription reads from.
func (s *Subscription) Channel() *Channel { return s.channel }

// Recv returns the next message in publish order. It blocks until a message is
// available or ctx is done. If the subscriber fell behind the retained window,
// Recv returns a *LagError and resumes from the oldest retained message on the
// next call.
func (s *Subscription) Recv(ctx context.Context) (domain.Message, error) {
	c := s.channel
	for {
		c.mu.Lock()
		if s.closed {
			c.mu.Unlock()
			return domain.Message{}, domain.ErrSubscriptionClosed
		}

		if oldest := c.oldest(); s.next < oldest {
			skipped := oldest - s.next
			s.next = oldest
			c.mu.Unlock()
			return domain.Message{}, &LagError{Skipped: skipped}
		}

		if s.next < c.seq {
			msg := c.ring[s.next%uint64(len(c.ring))]
			s.next++
			c.mu.Unlock()
			return msg, nil
		}

		wake := c.wake
		c.mu.Unlock()

		select {
		case <-wake:
		case <-ctx.Done():
			return domain.Message{}, ctx.Err()
		}
	}
}

// Close releases the subscription. Only the first call has an effect.
func (s *Subscription) Close() {
	s.once.Do(func() {
		c := s.channel
		c.mu.Lock()
		defer c.mu.Unlock()
		s.closed = true
		c.subscribers--
	})
}
