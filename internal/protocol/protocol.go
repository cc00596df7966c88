// Package protocol defines the wire types shared with the media player
// server: the JSON messages pushed over the live websocket and the
// request/response bodies of the one-shot HTTP API.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrUnknownMessage = errors.New("unknown message kind")

// TrackID identifies a track within one queue snapshot. IDs are assigned
// by the server and are unique within a snapshot, not globally.
type TrackID string

// TrackInfo is display metadata for a track. ImageURL and SecondaryLabel
// may be empty; PrimaryLabel is always set by the server.
type TrackInfo struct {
	ImageURL       string `json:"imageUrl"`
	PrimaryLabel   string `json:"primaryLabel"`
	SecondaryLabel string `json:"secondaryLabel"`
}

// QueueItem is one slot in the play queue. Position is the server's
// ordering key; it ascends but may have gaps.
type QueueItem struct {
	ID       TrackID   `json:"id"`
	Position int       `json:"position"`
	Track    TrackInfo `json:"track"`
}

// Queue is a full snapshot of the play queue. Items arrive in position
// order; the server's ordering is authoritative.
type Queue struct {
	Items []QueueItem `json:"items"`
}

type PlayState string

const (
	StateStopped PlayState = "stopped"
	StateLoading PlayState = "loading"
	StatePlaying PlayState = "playing"
)

func (s PlayState) Valid() bool {
	switch s {
	case StateStopped, StateLoading, StatePlaying:
		return true
	}
	return false
}

type PositionKind string

const (
	// PositionStreaming means the track has no known duration (live stream).
	PositionStreaming PositionKind = "streaming"
	PositionElapsed   PositionKind = "elapsed"
)

// PlayPosition is a tagged union: streaming carries no fields, elapsed
// carries time and duration in seconds.
type PlayPosition struct {
	Kind     PositionKind `json:"t"`
	Time     float64      `json:"time,omitempty"`
	Duration float64      `json:"duration,omitempty"`
}

// Progress returns elapsed playback as a fraction in [0, 1], or 0 for
// streaming positions and zero durations.
func (p PlayPosition) Progress() float64 {
	if p.Kind != PositionElapsed || p.Duration <= 0 {
		return 0
	}
	frac := p.Time / p.Duration
	if frac > 1 {
		return 1
	}
	return frac
}

// PlayerStatus is the server's authoritative transport status. Track is
// nil when nothing is loaded; Position is nil when stopped or loading.
type PlayerStatus struct {
	Track    *TrackID      `json:"track"`
	State    PlayState     `json:"state"`
	Position *PlayPosition `json:"position"`
}

// Metadata is the result of a preview lookup for a URL the user is about
// to enqueue. Artist and Thumbnail may be empty.
type Metadata struct {
	Title     string `json:"title"`
	Artist    string `json:"artist"`
	Thumbnail string `json:"thumbnail"`
}

type RadioStation struct {
	Name      string `json:"name"`
	IconURL   string `json:"icon_url"`
	StreamURL string `json:"stream_url"`
}

type MessageKind string

const (
	MessageQueue       MessageKind = "queue"
	MessageTrackChange MessageKind = "track-change"
	MessagePlayer      MessageKind = "player"
)

// ServerMessage is one push notification from the server, tagged by kind.
// Exactly one payload field is set, matching the kind; TrackChange's Track
// is nil when the server reports no current track.
type ServerMessage struct {
	Kind   MessageKind   `json:"t"`
	Queue  *Queue        `json:"queue,omitempty"`
	Track  *TrackInfo    `json:"track,omitempty"`
	Player *PlayerStatus `json:"player,omitempty"`
}

// ParseServerMessage decodes one websocket payload. Unknown kinds and
// kind/payload mismatches are errors; the caller is expected to drop the
// message and keep the connection alive.
func ParseServerMessage(data []byte) (ServerMessage, error) {
	var msg ServerMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return ServerMessage{}, err
	}

	switch msg.Kind {
	case MessageQueue:
		if msg.Queue == nil {
			return ServerMessage{}, fmt.Errorf("queue message missing queue payload")
		}
	case MessagePlayer:
		if msg.Player == nil {
			return ServerMessage{}, fmt.Errorf("player message missing player payload")
		}
		if !msg.Player.State.Valid() {
			return ServerMessage{}, fmt.Errorf("player message has invalid state %q", msg.Player.State)
		}
	case MessageTrackChange:
		// nil track is valid: it means nothing is playing
	default:
		return ServerMessage{}, fmt.Errorf("%w: %q", ErrUnknownMessage, msg.Kind)
	}

	return msg, nil
}
