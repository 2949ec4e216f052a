package app

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pscheid92/peakmusic/internal/domain"
	"github.com/stretchr/testify/require"
)

var errFakeClosed = errors.New("fake transport closed")

// fakeTransport is an in-memory domain.Transport. Tests push frames the user
// "sends" into incoming and read what the relay delivered from outgoing.
type fakeTransport struct {
	incoming chan domain.Message
	outgoing chan domain.Message

	mu          sync.Mutex
	sendErr     error
	sendGate    chan struct{}
	sendStarted chan struct{}

	closed    chan struct{}
	closeOnce sync.Once
	closes    int
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		incoming:    make(chan domain.Message, 16),
		outgoing:    make(chan domain.Message, 64),
		sendStarted: make(chan struct{}, 1),
		closed:      make(chan struct{}),
	}
}

func (f *fakeTransport) Receive() (domain.Message, error) {
	select {
	case msg := <-f.incoming:
		return msg, nil
	case <-f.closed:
		return domain.Message{}, errFakeClosed
	}
}

func (f *fakeTransport) Send(msg domain.Message) error {
	f.mu.Lock()
	sendErr, gate := f.sendErr, f.sendGate
	f.mu.Unlock()

	select {
	case f.sendStarted <- struct{}{}:
	default:
	}

	if sendErr != nil {
		return sendErr
	}
	if gate != nil {
		select {
		case <-gate:
		case <-f.closed:
			return errFakeClosed
		}
	}

	select {
	case f.outgoing <- msg:
		return nil
	case <-f.closed:
		return errFakeClosed
	}
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	f.closes++
	f.mu.Unlock()

	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeTransport) failSends(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sendErr = err
}

func (f *fakeTransport) gateSends() chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sendGate = make(chan struct{})
	return f.sendGate
}

// userSends simulates the remote user writing a frame.
func (f *fakeTransport) userSends(msg domain.Message) {
	f.incoming <- msg
}

// userDisconnects simulates the remote user going away.
func (f *fakeTransport) userDisconnects() {
	_ = f.Close()
}

func (f *fakeTransport) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

func expectDelivered(t *testing.T, f *fakeTransport, want string) {
	t.Helper()
	select {
	case msg := <-f.outgoing:
		require.Equal(t, domain.KindText, msg.Kind)
		require.Equal(t, want, string(msg.Payload))
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %q", want)
	}
}

func expectNothingDelivered(t *testing.T, f *fakeTransport, window time.Duration) {
	t.Helper()
	select {
	case msg := <-f.outgoing:
		t.Fatalf("unexpected delivery %q", msg.Payload)
	case <-time.After(window):
	}
}

func waitDone(t *testing.T, r *Relay) {
	t.Helper()
	select {
	case <-r.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("relay %s did not finish", r.ID())
	}
}
