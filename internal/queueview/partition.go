// Package queueview derives the rendered history/upcoming split of the
// play queue from the raw queue snapshot, the active track, and any
// pending client-side skip prediction. Everything here is pure; the
// session layer owns the state these functions read.
package queueview

import "playdeck/internal/protocol"

type Transition string

const (
	TransitionNext     Transition = "next"
	TransitionPrevious Transition = "previous"
)

// PredictedTrack is a client-local guess at the next current track,
// recorded when a skip command is issued and cleared when the server
// confirms a track change. It is never sent to the server.
type PredictedTrack struct {
	Transition Transition
	Track      protocol.TrackInfo
}

// View is the queue split around the current track. The current track
// itself appears in neither list; it is rendered separately.
type View struct {
	History  []protocol.QueueItem
	Upcoming []protocol.QueueItem
}

// Partition splits the queue into history and upcoming relative to the
// active track, then folds in a pending prediction so the displayed
// split already reflects the skip the user just requested.
//
// If active is nil or names no item in the queue, history is empty and
// the whole queue is upcoming.
func Partition(queue *protocol.Queue, active *protocol.TrackID, predicted *PredictedTrack) View {
	if queue == nil {
		return View{}
	}

	idx := indexOf(queue, active)
	if idx < 0 {
		return View{Upcoming: queue.Items}
	}

	view := View{
		History:  queue.Items[:idx],
		Upcoming: queue.Items[idx+1:],
	}

	if predicted == nil {
		return view
	}

	current := queue.Items[idx]

	switch predicted.Transition {
	case TransitionNext:
		// The first upcoming item is the predicted current track; the
		// real current track slides into history behind it.
		if len(view.Upcoming) > 0 {
			view.Upcoming = view.Upcoming[1:]
		}
		view.History = appendItem(view.History, current)

	case TransitionPrevious:
		// The last history item is the predicted current track; the
		// real current track becomes the next thing to play.
		if len(view.History) > 0 {
			view.History = view.History[:len(view.History)-1]
		}
		view.Upcoming = prependItem(view.Upcoming, current)
	}

	return view
}

// Next returns the queue item immediately after the active track, or nil
// if the active track is missing or last.
func Next(queue *protocol.Queue, active *protocol.TrackID) *protocol.QueueItem {
	if queue == nil {
		return nil
	}
	idx := indexOf(queue, active)
	if idx < 0 || idx+1 >= len(queue.Items) {
		return nil
	}
	return &queue.Items[idx+1]
}

// Previous returns the queue item immediately before the active track,
// or nil if the active track is missing or first.
func Previous(queue *protocol.Queue, active *protocol.TrackID) *protocol.QueueItem {
	if queue == nil {
		return nil
	}
	idx := indexOf(queue, active)
	if idx < 1 {
		return nil
	}
	return &queue.Items[idx-1]
}

// Candidate returns the queue item a skip in the given direction would
// land on, or nil when the active track is already at that edge.
func Candidate(queue *protocol.Queue, active *protocol.TrackID, transition Transition) *protocol.QueueItem {
	switch transition {
	case TransitionNext:
		return Next(queue, active)
	case TransitionPrevious:
		return Previous(queue, active)
	}
	return nil
}

func indexOf(queue *protocol.Queue, active *protocol.TrackID) int {
	if active == nil {
		return -1
	}
	for i := range queue.Items {
		if queue.Items[i].ID == *active {
			return i
		}
	}
	return -1
}

// appendItem and prependItem copy before growing so a View never aliases
// writable queue storage.
func appendItem(items []protocol.QueueItem, item protocol.QueueItem) []protocol.QueueItem {
	out := make([]protocol.QueueItem, 0, len(items)+1)
	out = append(out, items...)
	return append(out, item)
}

func prependItem(items []protocol.QueueItem, item protocol.QueueItem) []protocol.QueueItem {
	out := make([]protocol.QueueItem, 0, len(items)+1)
	out = append(out, item)
	return append(out, items...)
}
