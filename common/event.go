package common

import "sync"

// Event lets any number of goroutines wait for the next Broadcast. Unlike sync.Cond, waiting is done on a
// channel so it can be combined with timers and contexts in a select.
type Event struct {
	mu sync.Mutex
	c  chan struct{}
}

// Wait returns a channel that is closed by the next call to Broadcast.
func (e *Event) Wait() <-chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.c
}

func (e *Event) Broadcast() {
	e.mu.Lock()
	defer e.mu.Unlock()

	close(e.c)
	e.c = make(chan struct{})
}

func NewEvent() *Event {
	return &Event{c: make(chan struct{})}
}
