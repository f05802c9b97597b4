package transport

import (
	"context"
	"sync"
)

// HandlerFunc consumes one event. Handlers registered for the same
// event run sequentially in registration order; a session's event
// processing is an ordered, cooperative sequence.
type HandlerFunc func(ctx context.Context, ev Event)

type registration struct {
	fn HandlerFunc
}

// Dispatcher routes typed events to registered handlers. One dispatcher
// belongs to one session; cross-session fan-out never goes through it.
type Dispatcher struct {
	mu       sync.Mutex
	handlers map[string][]*registration
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		handlers: make(map[string][]*registration),
	}
}

// On registers fn for the named event and returns its unsubscribe
// function. Unsubscribing twice is a no-op.
func (d *Dispatcher) On(event string, fn HandlerFunc) func() {
	reg := &registration{fn: fn}

	d.mu.Lock()
	d.handlers[event] = append(d.handlers[event], reg)
	d.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			defer d.mu.Unlock()
			regs := d.handlers[event]
			for i, r := range regs {
				if r == reg {
					d.handlers[event] = append(regs[:i], regs[i+1:]...)
					break
				}
			}
		})
	}
}

// Emit runs every handler registered for the event, synchronously and
// in order. The handler list is snapshotted first, so handlers may
// emit further events or unsubscribe without deadlocking.
func (d *Dispatcher) Emit(ctx context.Context, ev Event) {
	d.mu.Lock()
	regs := make([]*registration, len(d.handlers[ev.EventName()]))
	copy(regs, d.handlers[ev.EventName()])
	d.mu.Unlock()

	for _, reg := range regs {
		reg.fn(ctx, ev)
	}
}
