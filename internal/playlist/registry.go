package playlist

import (
	"slices"
	"sync"
)

// Registry maps playlist names to their channels. Lookups share a read lock;
// creation and reaping take the write lock and re-check before mutating, so at
// most one channel ever exists per name.
type Registry struct {
	mu       sync.RWMutex
	channels map[string]*Channel
	capacity int
	reap     bool
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithCapacity sets the ring capacity of channels created by the registry.
func WithCapacity(capacity int) RegistryOption {
	return func(r *Registry) {
		r.capacity = capacity
	}
}

// WithReaping makes Leave remove a playlist once its last subscriber is gone.
func WithReaping(enabled bool) RegistryOption {
	return func(r *Registry) {
		r.reap = enabled
	}
}

func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		channels: make(map[string]*Channel),
		capacity: DefaultCapacity,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// GetOrCreate returns the channel for name, creating it if absent.
func (r *Registry) GetOrCreate(name string) *Channel {
	var ch *Channel
	r.withChannel(name, func(c *Channel) { ch = c })
	return ch
}

// Join subscribes to the channel for name, creating it if absent. The
// subscription is taken while the registry lock is held so a concurrent reap
// cannot detach the channel between lookup and subscribe.
func (r *Registry) Join(name string) *Subscription {
	var sub *Subscription
	r.withChannel(name, func(c *Channel) { sub = c.Subscribe() })
	return sub
}

// Leave closes sub. With reaping enabled the playlist is removed from the
// registry if no subscribers remain; the return value reports whether that
// happened.
func (r *Registry) Leave(sub *Subscription) bool {
	sub.Close()
	if !r.reap {
		return false
	}

	ch := sub.Channel()
	if ch.SubscriberCount() > 0 {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Joins subscribe under the registry lock, so the count cannot move while we hold it.
	current, ok := r.channels[ch.Name()]
	if !ok || current != ch || ch.SubscriberCount() > 0 {
		return false
	}
	delete(r.channels, ch.Name())
	return true
}

// SubscriberCount returns the number of users joined to name, or 0 if the
// playlist does not exist. It never creates an entry.
func (r *Registry) SubscriberCount(name string) int {
	r.mu.RLock()
	ch, ok := r.channels[name]
	r.mu.RUnlock()

	if !ok {
		return 0
	}
	return ch.SubscriberCount()
}

// Len returns the number of playlists in the registry.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels)
}

// Names returns the registered playlist names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.channels))
	for name := range r.channels {
		names = append(names, name)
	}
	r.mu.RUnlock()

	slices.Sort(names)
	return names
}

// TotalSubscribers sums subscriber counts across all playlists.
func (r *Registry) TotalSubscribers() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	total := 0
	for _, ch := range r.channels {
		total += ch.SubscriberCount()
	}
	return total
}

func (r *Registry) withChannel(name string, fn func(*Channel)) {
	r.mu.RLock()
	if ch, ok := r.channels[name]; ok {
		fn(ch)
		r.mu.RUnlock()
		return
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()

	// Another writer may have created it between the two locks.
	ch, ok := r.channels[name]
	if !ok {
		ch = NewChannel(name, r.capacity)
		r.channels[name] = ch
	}
	fn(ch)
}
