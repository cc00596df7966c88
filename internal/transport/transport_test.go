package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"playdeck/internal/protocol"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

func startWSServer(t *testing.T, handler func(*websocket.Conn)) *Transport {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ws" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade error: %v", err)
			return
		}
		defer conn.Close()
		handler(conn)
	}))
	t.Cleanup(ts.Close)

	return New(ts.URL)
}

// waitFor drains the event stream until an event of the wanted kind
// arrives, failing the test on timeout or stream close.
func waitFor(t *testing.T, events <-chan Event, kind EventKind, timeout time.Duration) Event {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				t.Fatalf("event stream closed while waiting for kind %d", kind)
			}
			if ev.Kind == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for event kind %d", kind)
		}
	}
}

func TestConnectDeliversMessages(t *testing.T) {
	tr := startWSServer(t, func(conn *websocket.Conn) {
		conn.WriteMessage(websocket.TextMessage, []byte(`{"t": "queue", "queue": {"items": []}}`))
		time.Sleep(200 * time.Millisecond)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := tr.Connect(ctx)

	waitFor(t, events, EventOpened, 5*time.Second)

	ev := waitFor(t, events, EventMessage, 5*time.Second)
	if ev.Message.Kind != protocol.MessageQueue {
		t.Errorf("message kind = %q, want queue", ev.Message.Kind)
	}
	if ev.Message.Queue == nil {
		t.Error("queue payload missing")
	}
}

func TestMalformedPayloadKeepsConnectionAlive(t *testing.T) {
	tr := startWSServer(t, func(conn *websocket.Conn) {
		conn.WriteMessage(websocket.TextMessage, []byte(`not json at all`))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"t": "track-change", "track": null}`))
		time.Sleep(200 * time.Millisecond)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := tr.Connect(ctx)

	ev := waitFor(t, events, EventError, 5*time.Second)
	if ev.Err == nil {
		t.Error("error event without error")
	}

	// The bad payload must not have dropped the connection: the next
	// message still arrives.
	ev = waitFor(t, events, EventMessage, 5*time.Second)
	if ev.Message.Kind != protocol.MessageTrackChange {
		t.Errorf("message kind = %q, want track-change", ev.Message.Kind)
	}
}

func TestReconnectsAfterDrop(t *testing.T) {
	connectCount := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		connectCount++
		if connectCount == 1 {
			conn.Close()
			return
		}
		// Fresh snapshot on the new connection.
		conn.WriteMessage(websocket.TextMessage,
			[]byte(`{"t": "player", "player": {"track": "9", "state": "playing", "position": null}}`))
		time.Sleep(200 * time.Millisecond)
		conn.Close()
	}))
	t.Cleanup(ts.Close)

	tr := New(ts.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	events := tr.Connect(ctx)

	waitFor(t, events, EventOpened, 5*time.Second)
	ev := waitFor(t, events, EventClosed, 5*time.Second)
	if ev.UserClose {
		t.Error("server-side drop reported as user close")
	}

	ev = waitFor(t, events, EventMessage, 10*time.Second)
	if ev.Message.Kind != protocol.MessagePlayer {
		t.Errorf("message kind = %q, want player", ev.Message.Kind)
	}
	if connectCount < 2 {
		t.Errorf("expected at least 2 connections, got %d", connectCount)
	}
}

func TestCloseIsUserInitiated(t *testing.T) {
	tr := startWSServer(t, func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	events := tr.Connect(context.Background())
	waitFor(t, events, EventOpened, 5*time.Second)

	tr.Close()

	sawUserClose := false
	timer := time.NewTimer(5 * time.Second)
	defer timer.Stop()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				if !sawUserClose {
					t.Error("stream closed without a user-close event")
				}
				return
			}
			if ev.Kind == EventClosed && ev.UserClose {
				sawUserClose = true
			}
		case <-timer.C:
			t.Fatal("event stream not closed after Close")
		}
	}
}

func TestURLRewriting(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"http://example.com", "ws://example.com/ws"},
		{"https://example.com", "wss://example.com/ws"},
		{"http://example.com/", "ws://example.com/ws"},
	}
	for _, tt := range tests {
		if got := New(tt.in).url; got != tt.want {
			t.Errorf("New(%q).url = %q, want %q", tt.in, got, tt.want)
		}
	}
}
