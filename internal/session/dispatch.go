package session

import (
	"context"
	"fmt"

	"playdeck/internal/protocol"
	"playdeck/internal/queueview"
)

// Action methods update the local view on the caller's tick and send the
// command in the background. They never block on the network: a failed
// command surfaces on Errors and the next authoritative push is trusted
// to put the view right.

func (s *Session) Play() {
	s.mu.Lock()
	s.setPlayStateLocked(protocol.StateLoading)
	s.mu.Unlock()
	s.send("play", s.api.Play)
}

func (s *Session) Pause() {
	s.mu.Lock()
	s.setPlayStateLocked(protocol.StateStopped)
	s.mu.Unlock()
	s.send("pause", s.api.Pause)
}

func (s *Session) Stop() {
	s.mu.Lock()
	s.setPlayStateLocked(protocol.StateStopped)
	s.mu.Unlock()
	s.send("stop", s.api.Stop)
}

func (s *Session) SkipNext() {
	s.mu.Lock()
	s.predictLocked(queueview.TransitionNext)
	s.setPlayStateLocked(protocol.StateLoading)
	s.mu.Unlock()
	s.send("skip next", s.api.SkipNext)
}

func (s *Session) SkipPrevious() {
	s.mu.Lock()
	s.predictLocked(queueview.TransitionPrevious)
	s.setPlayStateLocked(protocol.StateLoading)
	s.mu.Unlock()
	s.send("skip previous", s.api.SkipPrevious)
}

// Enqueue resolves mediaURL server-side and appends it to the queue. The
// new queue snapshot arrives over the live connection, so nothing is
// predicted locally.
func (s *Session) Enqueue(mediaURL string) {
	go func() {
		if _, err := s.api.QueueAdd(s.ctx, mediaURL); err != nil {
			s.reportError(fmt.Errorf("enqueue: %w", err))
		}
	}()
}

// TuneRadio switches playback to a radio stream.
func (s *Session) TuneRadio(streamURL string) {
	go func() {
		if err := s.api.Tune(s.ctx, streamURL); err != nil {
			s.reportError(fmt.Errorf("tune radio: %w", err))
		}
	}()
}

// predictLocked records the expected landing track for a skip. When the
// active track is already at the queue edge there is no candidate and no
// prediction is set. A prediction issued while another is pending simply
// replaces it.
func (s *Session) predictLocked(transition queueview.Transition) {
	cand := queueview.Candidate(s.Queue.Get(), s.activeTrackLocked(), transition)
	if cand == nil {
		return
	}
	s.Predicted.set(&queueview.PredictedTrack{
		Transition: transition,
		Track:      cand.Track,
	})
}

// setPlayStateLocked flips the player state ahead of server confirmation.
// The rest of the status (track, position) is kept as the server last
// reported it.
func (s *Session) setPlayStateLocked(state protocol.PlayState) {
	p := s.Player.Get()
	if p == nil {
		return
	}
	updated := *p
	updated.State = state
	s.Player.set(&updated)
}

func (s *Session) send(name string, cmd func(context.Context) error) {
	go func() {
		if err := cmd(s.ctx); err != nil {
			s.reportError(fmt.Errorf("%s: %w", name, err))
		}
	}()
}
