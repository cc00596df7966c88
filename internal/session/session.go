// Package session owns the live client-side state of one connection to
// the media player: the canonical snapshots pushed by the server, the
// optimistic overlay applied while transport commands are in flight, and
// the dispatch of those commands.
package session

import (
	"context"
	"log"
	"sync"

	"playdeck/internal/api"
	"playdeck/internal/protocol"
	"playdeck/internal/queueview"
	"playdeck/internal/transport"
)

// Session is the reactive aggregate for one live connection. Each field
// cell is replaced wholesale when the matching server message arrives;
// the server's latest message always wins.
//
// Construct with New, call Start exactly once, and Close when done.
// Sessions are independent: tests and callers may run several at once.
type Session struct {
	api *api.Client
	tr  *transport.Transport

	Connected    *Cell[bool]
	Queue        *Cell[*protocol.Queue]
	Player       *Cell[*protocol.PlayerStatus]
	CurrentTrack *Cell[*protocol.TrackInfo]
	Predicted    *Cell[*queueview.PredictedTrack]
	Preview      *Cell[*protocol.Metadata]

	// mu serializes compound state transitions (message application,
	// optimistic updates) across the transport goroutine and callers.
	mu sync.Mutex

	errs chan error

	ctx       context.Context
	cancel    context.CancelFunc
	startOnce sync.Once
	closeOnce sync.Once
	done      chan struct{}

	previewGen    int
	previewCancel context.CancelFunc
}

func New(client *api.Client, tr *transport.Transport) *Session {
	return &Session{
		api:          client,
		tr:           tr,
		Connected:    NewCell(false),
		Queue:        NewCell[*protocol.Queue](nil),
		Player:       NewCell[*protocol.PlayerStatus](nil),
		CurrentTrack: NewCell[*protocol.TrackInfo](nil),
		Predicted:    NewCell[*queueview.PredictedTrack](nil),
		Preview:      NewCell[*protocol.Metadata](nil),
		errs:         make(chan error, 8),
		done:         make(chan struct{}),
	}
}

// Start opens the live connection and begins applying server messages.
// It must be called before any action method.
func (s *Session) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		s.ctx, s.cancel = context.WithCancel(ctx)
		events := s.tr.Connect(s.ctx)
		go s.consume(events)
	})
}

// Close tears the session down: the socket is released, any pending
// prediction and preview lookup are discarded, and the event loop exits.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		if s.previewCancel != nil {
			s.previewCancel()
			s.previewCancel = nil
		}
		s.Predicted.set(nil)
		s.mu.Unlock()

		s.tr.Close()
		if s.cancel != nil {
			s.cancel()
			<-s.done
		}
	})
}

// Errors surfaces asynchronous command failures. The session never rolls
// optimistic state back on failure; the next authoritative push corrects
// the view, and the error is only for notifying the user.
func (s *Session) Errors() <-chan error {
	return s.errs
}

func (s *Session) consume(events <-chan transport.Event) {
	defer close(s.done)
	for ev := range events {
		switch ev.Kind {
		case transport.EventOpened:
			s.Connected.set(true)
		case transport.EventClosed:
			s.Connected.set(false)
		case transport.EventMessage:
			s.apply(ev.Message)
		case transport.EventError:
			// Recoverable: dropped payload or failed dial attempt.
			log.Printf("session: %v", ev.Err)
		}
	}
}

func (s *Session) apply(msg *protocol.ServerMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch msg.Kind {
	case protocol.MessageQueue:
		s.Queue.set(msg.Queue)

	case protocol.MessageTrackChange:
		s.CurrentTrack.set(msg.Track)
		// Any track change is the reconciliation point: the in-flight
		// prediction is cleared even if the announced track is not the
		// one predicted.
		s.Predicted.set(nil)

	case protocol.MessagePlayer:
		s.Player.set(msg.Player)
	}
}

// View returns the history/upcoming queue split as it should currently
// render, with any pending prediction already folded in.
func (s *Session) View() queueview.View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return queueview.Partition(s.Queue.Get(), s.activeTrackLocked(), s.Predicted.Get())
}

// NowPlaying returns the track to display as current: the predicted one
// while a skip is unconfirmed, otherwise the server-announced track.
func (s *Session) NowPlaying() *protocol.TrackInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p := s.Predicted.Get(); p != nil {
		track := p.Track
		return &track
	}
	return s.CurrentTrack.Get()
}

func (s *Session) activeTrackLocked() *protocol.TrackID {
	if p := s.Player.Get(); p != nil {
		return p.Track
	}
	return nil
}

func (s *Session) reportError(err error) {
	select {
	case s.errs <- err:
	default:
		log.Printf("session: dropping error: %v", err)
	}
}
