// Package mirror translates protocol event batches into idempotent
// durable records scoped by session id. The mirror is a best-effort
// cache of observed state: updates for unknown rows are logged and
// dropped, never synthesized.
package mirror

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/nagi1/baileys-api/internal/model"
	"github.com/nagi1/baileys-api/internal/transport"
	"github.com/nagi1/baileys-api/internal/webhook"
)

// Handler is one per-entity event store handler. Listen and Unlisten
// are idempotent and re-entrant, so a session can detach its mirror
// without losing protocol delivery.
type Handler interface {
	Listen()
	Unlisten()
}

// listener implements the idempotent subscription toggle shared by all
// entity handlers.
type listener struct {
	mu        sync.Mutex
	listening bool
	unsubs    []func()
}

// listen registers via register() unless already listening.
func (l *listener) listen(register func() []func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.listening {
		return
	}
	l.unsubs = register()
	l.listening = true
}

func (l *listener) unlisten() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.listening {
		return
	}
	for _, unsub := range l.unsubs {
		unsub()
	}
	l.unsubs = nil
	l.listening = false
}

// forward ships the raw event to the webhook relay without blocking the
// durable write; delivery is not contingent on database success.
func forward(ctx context.Context, relay *webhook.Relay, opts *model.SessionOptions, ev transport.Event) {
	if relay == nil {
		return
	}
	go relay.Send(context.WithoutCancel(ctx), opts, ev.EventName(), ev)
}

// applyConcurrent issues ops as independent concurrent operations and
// waits for all to settle. Individual failures are logged by the ops
// themselves; the first error is returned only when every op failed, so
// one bad item never blocks its siblings.
func applyConcurrent(ops []func() error) error {
	if len(ops) == 0 {
		return nil
	}

	errs := make([]error, len(ops))
	var wg sync.WaitGroup
	for i, op := range ops {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = op()
		}()
	}
	wg.Wait()

	var firstErr error
	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if failed == len(ops) {
		return firstErr
	}
	return nil
}

func logSkippedUpdate(sessionID, entity, id string) {
	log.Info().
		Str("sessionId", sessionID).
		Str("entity", entity).
		Str("id", id).
		Msg("got update for non existent record, skipping")
}
