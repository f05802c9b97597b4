// Package session supervises the fleet of transport connections: one
// Session per external account, all registered in a Manager that owns
// the retry and QR-attempt budgets.
package session

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/nagi1/baileys-api/internal/credential"
	apperrors "github.com/nagi1/baileys-api/internal/errors"
	"github.com/nagi1/baileys-api/internal/mirror"
	"github.com/nagi1/baileys-api/internal/model"
	"github.com/nagi1/baileys-api/internal/sse"
	"github.com/nagi1/baileys-api/internal/transport"
)

// Session owns one socket, one event dispatcher, one set of mirror
// handlers and the interactive pairing state for one external account.
type Session struct {
	id         string
	opts       *model.SessionOptions
	mgr        *Manager
	sock       transport.Socket
	dispatcher *transport.Dispatcher
	creds      *credential.Store
	handlers   []mirror.Handler
	ctx        context.Context
	cancel     context.CancelFunc

	mu               sync.Mutex
	waiter           *Waiter
	lastQR           string
	registered       bool
	pairingRequested bool
	destroyed        bool
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) Options() *model.SessionOptions {
	return s.opts
}

// Status maps the raw socket phase to the API status; AUTHENTICATED
// wins whenever the transport reports an identified account.
func (s *Session) Status() model.SessionStatus {
	return mapStatus(s.sock.ReadyState(), s.sock.User() != nil)
}

// LastQR returns the most recently rendered QR image, if any.
func (s *Session) LastQR() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastQR
}

// JIDExists checks an id against the transport.
func (s *Session) JIDExists(ctx context.Context, jid string, kind transport.JIDKind) (bool, error) {
	exists, err := s.sock.Exists(ctx, jid, kind)
	if err != nil {
		return false, apperrors.Transport(err)
	}
	return exists, nil
}

// AttachWaiter attaches an interactive request. Any previous unanswered
// waiter is replaced; only one interactive request is served at a time.
func (s *Session) AttachWaiter(w *Waiter) {
	s.mu.Lock()
	s.waiter = w
	s.mu.Unlock()
}

// run consumes the socket's event stream. Events of one session are
// processed to completion in order; different sessions run their loops
// fully in parallel.
func (s *Session) run() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case ev, ok := <-s.sock.Events():
			if !ok {
				return
			}
			s.handleEvent(ev)
		}
	}
}

func (s *Session) handleEvent(ev transport.Event) {
	switch e := ev.(type) {
	case transport.ConnectionUpdate:
		s.handleConnectionUpdate(s.ctx, e)
	case transport.CredsUpdate:
		s.handleCredsUpdate(s.ctx, e)
	case transport.MessagesUpsert:
		s.ackIncoming(s.ctx, e)
	}

	// Mirror handlers run synchronously, so this batch completes before
	// the next one for the same session is picked up.
	s.dispatcher.Emit(s.ctx, ev)
}

func (s *Session) handleCredsUpdate(ctx context.Context, e transport.CredsUpdate) {
	if e.Creds == nil {
		return
	}
	if err := s.creds.SaveCreds(ctx, e.Creds); err != nil {
		log.Error().Err(err).Str("sessionId", s.id).Msg("failed to persist credentials")
		return
	}
	s.mu.Lock()
	s.registered = e.Creds.Registered
	s.mu.Unlock()
}

// ackIncoming sends read receipts for freshly received messages when
// the session was created with readIncomingMessages. Own messages are
// already read by definition.
func (s *Session) ackIncoming(ctx context.Context, e transport.MessagesUpsert) {
	if !s.opts.ReadIncomingMessages || e.Type != model.MessageUpsertNotify {
		return
	}

	keys := make([]model.MessageKey, 0, len(e.Messages))
	for _, msg := range e.Messages {
		if msg.Key.FromMe {
			continue
		}
		keys = append(keys, msg.Key)
	}
	if len(keys) == 0 {
		return
	}

	if err := s.sock.ReadMessages(ctx, keys); err != nil {
		log.Warn().Err(err).Str("sessionId", s.id).Int("count", len(keys)).
			Msg("failed to mark messages read")
	}
}

func (s *Session) handleConnectionUpdate(ctx context.Context, u transport.ConnectionUpdate) {
	go s.mgr.relay.Send(context.WithoutCancel(ctx), s.opts, u.EventName(), u)

	// The pairing-code hand-off consumes the QR payload; open and close
	// phases are handled either way.
	if !s.handlePairingCode(ctx, u) && u.QR != "" {
		s.handleQR(ctx, u.QR)
	}

	switch u.Connection {
	case transport.ConnectionOpen:
		s.handleOpen(ctx)
	case transport.ConnectionClose:
		s.handleClose(ctx, u)
	}
}

// handlePairingCode requests a numeric pairing code once the transport
// signals QR readiness, for sessions that asked for code pairing and
// have no persisted registration yet. The code is requested even when
// no interactive request is attached; delivery is deliver-once.
func (s *Session) handlePairingCode(ctx context.Context, u transport.ConnectionUpdate) bool {
	if !s.opts.UsePairingCode {
		return false
	}

	s.mu.Lock()
	registered := s.registered
	requested := s.pairingRequested
	s.mu.Unlock()

	if registered || u.QR == "" {
		return false
	}
	if requested {
		return true
	}

	s.mu.Lock()
	s.pairingRequested = true
	s.mu.Unlock()

	code, err := s.sock.RequestPairingCode(ctx, s.opts.PhoneNumber)
	if err != nil {
		log.Error().Err(err).Str("sessionId", s.id).Msg("failed to request pairing code")
		return true
	}

	log.Info().Str("sessionId", s.id).Msg("pairing code received")
	s.deliver(Result{PairingCode: code})
	s.publish(ctx, sse.EventTypePairingCode, map[string]any{"code": code})
	return true
}

// handleQR renders and hands off a QR payload, enforcing the generation
// budget: exhausting QR attempts is abandonment, not a transient
// failure, so the session is destroyed rather than retried.
func (s *Session) handleQR(ctx context.Context, payload string) {
	attempts := s.mgr.incrementQRAttempts(s.id)
	if attempts >= s.mgr.cfg.MaxQRGeneration {
		log.Warn().Str("sessionId", s.id).Int("attempts", attempts).
			Msg("qr generation limit reached, destroying session")
		s.failWaiter(apperrors.QRExhausted())
		go s.mgr.destroy(context.WithoutCancel(ctx), s, false)
		return
	}

	img, err := renderQR(payload)
	if err != nil {
		log.Error().Err(err).Str("sessionId", s.id).Msg("failed to render qr")
		return
	}

	s.mu.Lock()
	s.lastQR = img
	s.mu.Unlock()

	s.deliver(Result{QR: img})
	s.publish(ctx, sse.EventTypeQR, map[string]any{"qr": img, "attempts": attempts})
}

func (s *Session) handleOpen(ctx context.Context) {
	s.mu.Lock()
	s.lastQR = ""
	s.registered = true
	s.mu.Unlock()

	s.mgr.clearCounters(s.id)

	user := s.sock.User()
	ev := log.Info().Str("sessionId", s.id)
	if user != nil {
		ev = ev.Str("user", user.ID)
	}
	ev.Msg("connection opened")

	// An empty result tells a pending create/QR request the session is
	// authenticated and no code is coming.
	s.deliver(Result{})
	s.publish(ctx, sse.EventTypeConnectionUpdate, map[string]any{
		"status": model.SessionStatusAuthenticated,
	})
}

func (s *Session) handleClose(ctx context.Context, u transport.ConnectionUpdate) {
	retries := s.mgr.retryCount(s.id)
	action := DecideClose(u.LastDisconnect, retries, s.mgr.cfg.MaxReconnectRetries)

	log.Info().
		Str("sessionId", s.id).
		Str("reason", u.LastDisconnect.String()).
		Str("action", action.String()).
		Int("retries", retries).
		Msg("connection closed")

	switch action {
	case CloseDestroyLoggedOut:
		s.failWaiter(apperrors.SessionLoggedOut())
		go s.mgr.destroy(context.WithoutCancel(ctx), s, true)

	case CloseDestroyExhausted:
		s.failWaiter(apperrors.RetriesExhausted())
		go s.mgr.destroy(context.WithoutCancel(ctx), s, false)

	case CloseReconnectNow:
		s.mgr.restart(s, 0)

	case CloseReconnectLater:
		count := s.mgr.incrementRetry(s.id)
		log.Info().Str("sessionId", s.id).Int("retry", count).
			Dur("delay", s.mgr.cfg.ReconnectInterval()).
			Msg("scheduling reconnect")
		s.mgr.restart(s, s.mgr.cfg.ReconnectInterval())
	}
}

// deliver hands a result to the attached interactive request, if one is
// attached and still answerable.
func (s *Session) deliver(r Result) {
	s.mu.Lock()
	w := s.waiter
	s.mu.Unlock()
	if w == nil {
		return
	}
	if !w.Deliver(r) {
		log.Debug().Str("sessionId", s.id).Msg("interactive request gone, result dropped")
	}
}

func (s *Session) failWaiter(err error) {
	s.deliver(Result{Err: err})
}

// takeWaiter detaches the unanswered interactive request so it can be
// carried over to a respawned session for the same id.
func (s *Session) takeWaiter() *Waiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	w := s.waiter
	s.waiter = nil
	if w == nil || w.Answered() {
		return nil
	}
	return w
}

func (s *Session) publish(ctx context.Context, eventType string, payload any) {
	if s.mgr.broker == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if err := s.mgr.broker.Publish(ctx, s.id, sse.Event{Type: eventType, Data: data}); err != nil {
		log.Debug().Err(err).Str("sessionId", s.id).Msg("failed to publish session event")
	}
}

// teardown closes the socket exactly once. Logout is best-effort and
// only attempted while the socket is not already going down.
func (s *Session) teardown(ctx context.Context, logout bool) {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return
	}
	s.destroyed = true
	s.mu.Unlock()

	for _, h := range s.handlers {
		h.Unlisten()
	}

	if logout {
		if st := s.sock.ReadyState(); st != transport.ReadyStateClosing && st != transport.ReadyStateClosed {
			if err := s.sock.Logout(ctx); err != nil {
				log.Warn().Err(err).Str("sessionId", s.id).Msg("transport logout failed")
			}
		}
	}

	s.sock.End(nil)
	s.cancel()
}
