package websocket

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/peakmusic/internal/domain"
)

const (
	defaultWriteTimeout = 5 * time.Second
	defaultPingInterval = 30 * time.Second
	defaultPongTimeout  = 60 * time.Second
)

// Timeouts controls the keepalive behaviour of a Transport. Zero values fall
// back to the package defaults.
type Timeouts struct {
	Write        time.Duration
	PingInterval time.Duration
	PongTimeout  time.Duration
}

func (t Timeouts) withDefaults() Timeouts {
	if t.Write <= 0 {
		t.Write = defaultWriteTimeout
	}
	if t.PingInterval <= 0 {
		t.PingInterval = defaultPingInterval
	}
	if t.PongTimeout <= 0 {
		t.PongTimeout = defaultPongTimeout
	}
	return t
}

// Transport adapts a gorilla websocket connection to domain.Transport.
//
// Send is called from a single goroutine (the relay's outbound task); pings
// and the close frame go through WriteControl, which gorilla allows
// concurrently with other writes.
type Transport struct {
	conn     *websocket.Conn
	clock    clockwork.Clock
	timeouts Timeouts

	stop      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewTransport takes ownership of conn and starts its ping loop.
func NewTransport(conn *websocket.Conn, timeouts Timeouts, clock clockwork.Clock) *Transport {
	t := &Transport{
		conn:     conn,
		clock:    clock,
		timeouts: timeouts.withDefaults(),
		stop:     make(chan struct{}),
	}

	t.configurePongHandler()

	t.wg.Add(1)
	go t.pingLoop()

	return t
}

// Receive blocks for the next data frame. Pings, pongs and close frames are
// answered by gorilla inside ReadMessage and never surface here.
func (t *Transport) Receive() (domain.Message, error) {
	messageType, payload, err := t.conn.ReadMessage()
	if err != nil {
		return domain.Message{}, fmt.Errorf("read websocket frame: %w", err)
	}
	return domain.Message{Kind: kindOf(messageType), Payload: payload}, nil
}

func (t *Transport) Send(msg domain.Message) error {
	messageType, err := frameTypeOf(msg.Kind)
	if err != nil {
		return err
	}

	t.updateWriteDeadline()
	if err := t.conn.WriteMessage(messageType, msg.Payload); err != nil {
		return fmt.Errorf("write websocket frame: %w", err)
	}
	return nil
}

// Close sends a normal-closure frame and closes the connection. Safe to call
// more than once and from several goroutines.
func (t *Transport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.stop)

		closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = t.conn.WriteControl(websocket.CloseMessage, closeMsg, t.clock.Now().Add(t.timeouts.Write))

		if cerr := t.conn.Close(); cerr != nil {
			err = fmt.Errorf("close websocket: %w", cerr)
		}
	})
	t.wg.Wait()
	return err
}

func (t *Transport) pingLoop() {
	defer t.wg.Done()

	ticker := t.clock.NewTicker(t.timeouts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			deadline := t.clock.Now().Add(t.timeouts.Write)
			if err := t.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				slog.Debug("WebSocket ping failed", "remote_addr", t.conn.RemoteAddr().String(), "error", err)
				// Unblocks a pending Receive so the relay pair winds down.
				_ = t.conn.Close()
				return
			}
		case <-t.stop:
			return
		}
	}
}

func (t *Transport) configurePongHandler() {
	t.updateReadDeadline()
	t.conn.SetPongHandler(func(string) error {
		t.updateReadDeadline()
		return nil
	})
}

func (t *Transport) updateWriteDeadline() {
	_ = t.conn.SetWriteDeadline(t.clock.Now().Add(t.timeouts.Write))
}

func (t *Transport) updateReadDeadline() {
	_ = t.conn.SetReadDeadline(t.clock.Now().Add(t.timeouts.PongTimeout))
}

var errUnsupportedKind = errors.New("unsupported message kind")

func kindOf(messageType int) domain.MessageKind {
	switch messageType {
	case websocket.TextMessage:
		return domain.KindText
	case websocket.BinaryMessage:
		return domain.KindBinary
	default:
		return domain.KindControl
	}
}

func frameTypeOf(kind domain.MessageKind) (int, error) {
	switch kind {
	case domain.KindText:
		return websocket.TextMessage, nil
	case domain.KindBinary:
		return websocket.BinaryMessage, nil
	default:
		return 0, fmt.Errorf("%w: %s", errUnsupportedKind, kind)
	}
}
