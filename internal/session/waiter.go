package session

import (
	"sync/atomic"
)

// Result is what an interactive pairing request receives: a rendered QR
// image, a numeric pairing code, or a terminal error.
type Result struct {
	QR          string `json:"qr,omitempty"`
	PairingCode string `json:"code,omitempty"`
	Err         error  `json:"-"`
}

// Waiter attaches an interactive HTTP request to a session. A one-shot
// waiter accepts a single result; a streaming waiter keeps accepting
// results until its done channel reports the response has ended. Once
// done is closed the waiter is defused: deliveries become no-ops, so a
// session never writes to a finished response.
type Waiter struct {
	ch        chan Result
	done      <-chan struct{}
	streaming bool
	answered  atomic.Bool
}

// NewWaiter creates a one-shot waiter; done is typically the request
// context's Done channel.
func NewWaiter(done <-chan struct{}) *Waiter {
	return &Waiter{
		ch:   make(chan Result, 1),
		done: done,
	}
}

// NewStreamingWaiter creates a waiter that keeps receiving results
// (repeated QR refreshes) until done.
func NewStreamingWaiter(done <-chan struct{}) *Waiter {
	return &Waiter{
		ch:        make(chan Result, 16),
		done:      done,
		streaming: true,
	}
}

// Deliver hands a result to the attached request. Returns false when
// the waiter was already answered (one-shot), the response has ended,
// or the buffer is full. Never blocks, never panics.
func (w *Waiter) Deliver(r Result) bool {
	if w == nil {
		return false
	}

	select {
	case <-w.done:
		return false
	default:
	}

	if !w.streaming && !w.answered.CompareAndSwap(false, true) {
		return false
	}

	select {
	case w.ch <- r:
		return true
	default:
		if !w.streaming {
			w.answered.Store(false)
		}
		return false
	}
}

// Answered reports whether a one-shot waiter already received its
// result. Streaming waiters are never considered answered.
func (w *Waiter) Answered() bool {
	if w == nil {
		return true
	}
	if w.streaming {
		return false
	}
	return w.answered.Load()
}

// Results is the channel the HTTP layer consumes.
func (w *Waiter) Results() <-chan Result {
	return w.ch
}

// Done reports the response-ended channel for select loops.
func (w *Waiter) Done() <-chan struct{} {
	return w.done
}
