package playlist

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_GetOrCreateReturnsSameChannel(t *testing.T) {
	r := NewRegistry()

	a := r.GetOrCreate("echo")
	b := r.GetOrCreate("echo")
	c := r.GetOrCreate("other")

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
	assert.Equal(t, 2, r.Len())
}

func TestRegistry_ConcurrentCreateConverges(t *testing.T) {
	r := NewRegistry()

	start := make(chan struct{})
	results := make([]*Channel, 100)
	var wg sync.WaitGroup

	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			results[i] = r.GetOrCreate("race")
		}()
	}

	close(start)
	wg.Wait()

	for _, ch := range results {
		assert.Same(t, results[0], ch)
	}
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_SubscriberCountUnknownIsZero(t *testing.T) {
	r := NewRegistry()

	assert.Equal(t, 0, r.SubscriberCount("never-joined"))
	assert.Equal(t, 0, r.Len(), "status lookups must not create playlists")
}

func TestRegistry_JoinAndLeaveTrackCount(t *testing.T) {
	r := NewRegistry()

	sub1 := r.Join("echo")
	sub2 := r.Join("echo")
	assert.Equal(t, 2, r.SubscriberCount("echo"))

	r.Leave(sub2)
	assert.Equal(t, 1, r.SubscriberCount("echo"))

	r.Leave(sub1)
	assert.Equal(t, 0, r.SubscriberCount("echo"))
}

func TestRegistry_LeaveWithoutReapingKeepsPlaylist(t *testing.T) {
	r := NewRegistry()

	sub := r.Join("echo")
	reaped := r.Leave(sub)

	assert.False(t, reaped)
	assert.Equal(t, 1, r.Len())
	assert.Equal(t, []string{"echo"}, r.Names())
}

func TestRegistry_LeaveWithReapingRemovesEmptyPlaylist(t *testing.T) {
	r := NewRegistry(WithReaping(true))

	sub1 := r.Join("echo")
	sub2 := r.Join("echo")

	assert.False(t, r.Leave(sub1), "playlist still has a listener")
	assert.Equal(t, 1, r.Len())

	assert.True(t, r.Leave(sub2))
	assert.Equal(t, 0, r.Len())
	assert.Equal(t, 0, r.SubscriberCount("echo"))
}

func TestRegistry_ReapedPlaylistIsRecreatedOnJoin(t *testing.T) {
	r := NewRegistry(WithReaping(true))

	first := r.Join("echo")
	oldChannel := first.Channel()
	require.True(t, r.Leave(first))

	second := r.Join("echo")
	assert.NotSame(t, oldChannel, second.Channel())
	assert.Equal(t, 1, r.SubscriberCount("echo"))
}

func TestRegistry_LeaveIsIdempotent(t *testing.T) {
	r := NewRegistry(WithReaping(true))

	sub := r.Join("echo")
	other := r.Join("echo")

	r.Leave(sub)
	r.Leave(sub)
	assert.Equal(t, 1, r.SubscriberCount("echo"))

	r.Leave(other)
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_ConcurrentJoinLeaveNeverLosesListeners(t *testing.T) {
	r := NewRegistry(WithReaping(true))
	anchor := r.Join("busy")

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 20 {
				r.Leave(r.Join("busy"))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, r.SubscriberCount("busy"))
	assert.Same(t, anchor.Channel(), r.GetOrCreate("busy"))
}

func TestRegistry_WithCapacity(t *testing.T) {
	r := NewRegistry(WithCapacity(5))
	assert.Equal(t, 5, r.GetOrCreate("echo").Capacity())
}

func TestRegistry_NamesSortedAndTotals(t *testing.T) {
	r := NewRegistry()
	r.Join("b")
	r.Join("a")
	r.Join("a")
	r.GetOrCreate("c")

	assert.Equal(t, []string{"a", "b", "c"}, r.Names())
	assert.Equal(t, 3, r.TotalSubscribers())
}
