package session

import "sync"

// Cell is one observable state field. Reads return the current value;
// subscribers get change notifications on a buffered channel. Publishing
// never blocks on a slow subscriber: an unread stale value is replaced
// by the newest one.
type Cell[T any] struct {
	mu    sync.Mutex
	value T
	subs  map[chan T]struct{}
}

func NewCell[T any](initial T) *Cell[T] {
	return &Cell[T]{
		value: initial,
		subs:  make(map[chan T]struct{}),
	}
}

func (c *Cell[T]) Get() T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

func (c *Cell[T]) set(v T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = v
	for ch := range c.subs {
		select {
		case ch <- v:
		default:
			// Subscriber hasn't read the previous value; it only cares
			// about the latest.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- v:
			default:
			}
		}
	}
}

func (c *Cell[T]) Subscribe() chan T {
	ch := make(chan T, 1)
	c.mu.Lock()
	c.subs[ch] = struct{}{}
	c.mu.Unlock()
	return ch
}

func (c *Cell[T]) Unsubscribe(ch chan T) {
	c.mu.Lock()
	_, exists := c.subs[ch]
	delete(c.subs, ch)
	c.mu.Unlock()
	if exists {
		close(ch)
	}
}
