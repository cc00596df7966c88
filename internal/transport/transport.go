// Package transport maintains the persistent websocket connection to the
// media player server. It reconnects with exponential backoff on any
// drop that was not requested by the client, and delivers connection
// lifecycle changes and decoded server messages as a single ordered
// event stream.
package transport

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"playdeck/internal/protocol"
)

type EventKind int

const (
	// EventOpened fires after a connection is verified open, including
	// every successful reconnect.
	EventOpened EventKind = iota
	// EventClosed fires when the connection drops. UserClose reports
	// whether Close was called; if not, a reconnect attempt follows.
	EventClosed
	// EventMessage carries one decoded server push.
	EventMessage
	// EventError reports a recoverable problem: a failed dial attempt
	// or a malformed inbound payload that was dropped.
	EventError
)

type Event struct {
	Kind      EventKind
	Message   *protocol.ServerMessage
	UserClose bool
	Err       error
}

const (
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
	pingInterval   = 10 * time.Second
	writeTimeout   = 5 * time.Second
)

type Transport struct {
	url    string
	dialer *websocket.Dialer

	events chan Event

	startOnce sync.Once
	closeOnce sync.Once
	cancel    context.CancelFunc
	closed    chan struct{}
}

// New creates a transport for the given server base URL. The http(s)
// scheme is rewritten to ws(s) and the live endpoint path appended.
func New(serverURL string) *Transport {
	wsURL := strings.Replace(serverURL, "https://", "wss://", 1)
	wsURL = strings.Replace(wsURL, "http://", "ws://", 1)
	wsURL = strings.TrimRight(wsURL, "/") + "/ws"

	return &Transport{
		url:    wsURL,
		dialer: websocket.DefaultDialer,
		events: make(chan Event, 16),
		closed: make(chan struct{}),
	}
}

// Connect starts the connection loop and returns the event stream. The
// stream is closed after Close is called or ctx is cancelled; until then
// the transport keeps retrying dropped connections indefinitely.
func (t *Transport) Connect(ctx context.Context) <-chan Event {
	t.startOnce.Do(func() {
		ctx, t.cancel = context.WithCancel(ctx)
		go t.run(ctx)
	})
	return t.events
}

// Close tears the connection down. The final EventClosed on the stream
// carries UserClose=true and no reconnect is attempted.
func (t *Transport) Close() {
	t.closeOnce.Do(func() {
		if t.cancel != nil {
			t.cancel()
		}
		close(t.closed)
	})
}

func (t *Transport) run(ctx context.Context) {
	defer close(t.events)
	backoff := initialBackoff

	for {
		opened, err := t.connect(ctx)
		if ctx.Err() != nil {
			t.emit(ctx, Event{Kind: EventClosed, UserClose: t.userClosed()})
			return
		}
		if err != nil {
			t.emit(ctx, Event{Kind: EventError, Err: fmt.Errorf("ws connect %s: %w", t.url, err)})
		}
		if opened {
			t.emit(ctx, Event{Kind: EventClosed})
			backoff = initialBackoff
		}

		select {
		case <-ctx.Done():
			t.emit(ctx, Event{Kind: EventClosed, UserClose: t.userClosed()})
			return
		case <-time.After(backoff):
			backoff = min(backoff*2, maxBackoff)
		}
	}
}

// connect dials once and reads until the connection dies. It reports
// whether the dial succeeded so the caller can reset its backoff.
func (t *Transport) connect(ctx context.Context) (opened bool, err error) {
	conn, _, err := t.dialer.DialContext(ctx, t.url, nil)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	t.emit(ctx, Event{Kind: EventOpened})

	pingCtx, cancelPing := context.WithCancel(ctx)
	defer cancelPing()

	// ReadMessage does not observe the context; closing the conn is the
	// only way to unblock it on cancellation.
	go func() {
		<-pingCtx.Done()
		conn.Close()
	}()

	// Ping keeps intermediaries from idling the socket out.
	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-pingCtx.Done():
				return
			case <-ticker.C:
				if err := conn.WriteControl(
					websocket.PingMessage, nil,
					time.Now().Add(writeTimeout),
				); err != nil {
					return
				}
			}
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return true, nil
			}
			return true, err
		}

		msg, err := protocol.ParseServerMessage(data)
		if err != nil {
			// Bad payload, not a bad connection: report and keep reading.
			t.emit(ctx, Event{Kind: EventError, Err: fmt.Errorf("ws message: %w", err)})
			continue
		}

		t.emit(ctx, Event{Kind: EventMessage, Message: &msg})
	}
}

func (t *Transport) emit(ctx context.Context, ev Event) {
	select {
	case t.events <- ev:
	case <-ctx.Done():
		// Shutting down: only the final close event still matters, and
		// run sends it after draining stops. Drop everything else.
		if ev.Kind == EventClosed {
			select {
			case t.events <- ev:
			default:
			}
		}
	}
}

func (t *Transport) userClosed() bool {
	select {
	case <-t.closed:
		return true
	default:
		return false
	}
}
