package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/nagi1/baileys-api/internal/config"
	apperrors "github.com/nagi1/baileys-api/internal/errors"
	"github.com/nagi1/baileys-api/internal/model"
	"github.com/nagi1/baileys-api/internal/session"
	"github.com/nagi1/baileys-api/internal/sse"
	"github.com/nagi1/baileys-api/internal/transport"
)

type SessionHandler struct {
	manager  *session.Manager
	broker   *sse.Broker
	cfg      *config.Config
	entities *EntityHandler
}

func NewSessionHandler(manager *session.Manager, broker *sse.Broker, cfg *config.Config, entities *EntityHandler) *SessionHandler {
	return &SessionHandler{
		manager:  manager,
		broker:   broker,
		cfg:      cfg,
		entities: entities,
	}
}

func (h *SessionHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{sessionId}", h.Status)
	r.Put("/{sessionId}", h.Update)
	r.Delete("/{sessionId}", h.Delete)
	r.Get("/{sessionId}/status", h.Status)
	r.Get("/{sessionId}/qr", h.QR)
	r.Get("/{sessionId}/qr/sse", h.QRStream)
	r.Get("/{sessionId}/exists/{jid}", h.JIDExists)

	r.Get("/{sessionId}/chats", h.entities.ListChats)
	r.Get("/{sessionId}/contacts", h.entities.ListContacts)
	r.Get("/{sessionId}/groups", h.entities.ListGroups)
	r.Get("/{sessionId}/messages", h.entities.ListMessages)

	return r
}

// POST /sessions
//
// Creates the session and long-polls for the first pairing artifact: a
// rendered QR image, a numeric pairing code, or immediate authentication
// when persisted credentials are still valid.
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var opts model.SessionOptions
	if err := json.NewDecoder(r.Body).Decode(&opts); err != nil {
		writeError(w, apperrors.InvalidInput("body", "invalid json"))
		return
	}
	if opts.SessionID == "" {
		writeError(w, apperrors.MissingRequired("sessionId"))
		return
	}
	if opts.UsePairingCode && opts.PhoneNumber == "" {
		writeError(w, apperrors.MissingRequired("phoneNumber"))
		return
	}

	s, err := h.manager.Create(r.Context(), &opts)
	if err != nil {
		log.Error().Err(err).Str("sessionId", opts.SessionID).Msg("failed to create session")
		writeError(w, err)
		return
	}

	waiter := session.NewWaiter(r.Context().Done())
	s.AttachWaiter(waiter)

	h.awaitPairing(w, r, s, waiter)
}

func (h *SessionHandler) awaitPairing(w http.ResponseWriter, r *http.Request, s *session.Session, waiter *session.Waiter) {
	timeout := time.NewTimer(h.cfg.QRTimeout())
	defer timeout.Stop()

	select {
	case <-r.Context().Done():
		return

	case <-timeout.C:
		writeError(w, apperrors.QRTimeout())

	case result := <-waiter.Results():
		switch {
		case result.Err != nil:
			writeError(w, result.Err)
		case result.QR != "":
			writeJSON(w, http.StatusOK, map[string]any{
				"sessionId": s.ID(),
				"qr":        result.QR,
			})
		case result.PairingCode != "":
			writeJSON(w, http.StatusOK, map[string]any{
				"sessionId": s.ID(),
				"code":      result.PairingCode,
			})
		default:
			writeJSON(w, http.StatusOK, map[string]any{
				"sessionId": s.ID(),
				"status":    s.Status(),
			})
		}
	}
}

// GET /sessions
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	sessions := h.manager.List()

	out := make([]map[string]any, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, map[string]any{
			"sessionId": s.ID(),
			"status":    s.Status(),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// GET /sessions/{sessionId}/status
func (h *SessionHandler) Status(w http.ResponseWriter, r *http.Request) {
	s, ok := h.manager.Get(chi.URLParam(r, "sessionId"))
	if !ok {
		writeError(w, apperrors.NotFound("session"))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"sessionId": s.ID(),
		"status":    s.Status(),
	})
}

// PUT /sessions/{sessionId}
func (h *SessionHandler) Update(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")

	var opts model.SessionOptions
	if err := json.NewDecoder(r.Body).Decode(&opts); err != nil {
		writeError(w, apperrors.InvalidInput("body", "invalid json"))
		return
	}

	if err := h.manager.UpdateOptions(r.Context(), sessionID, &opts); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "session updated"})
}

// DELETE /sessions/{sessionId}
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionId")

	if err := h.manager.Delete(r.Context(), sessionID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "session deleted"})
}

// GET /sessions/{sessionId}/qr
//
// Returns the last rendered QR immediately when one is cached, otherwise
// long-polls for the next one.
func (h *SessionHandler) QR(w http.ResponseWriter, r *http.Request) {
	s, ok := h.manager.Get(chi.URLParam(r, "sessionId"))
	if !ok {
		writeError(w, apperrors.NotFound("session"))
		return
	}

	if qr := s.LastQR(); qr != "" {
		writeJSON(w, http.StatusOK, map[string]any{
			"sessionId": s.ID(),
			"qr":        qr,
		})
		return
	}

	waiter := session.NewWaiter(r.Context().Done())
	s.AttachWaiter(waiter)
	h.awaitPairing(w, r, s, waiter)
}

// GET /sessions/{sessionId}/qr/sse
//
// Streams QR refreshes and connection updates until the client hangs up
// or the session is destroyed.
func (h *SessionHandler) QRStream(w http.ResponseWriter, r *http.Request) {
	s, ok := h.manager.Get(chi.URLParam(r, "sessionId"))
	if !ok {
		writeError(w, apperrors.NotFound("session"))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, apperrors.Internal("streaming not supported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	client := h.broker.Subscribe(s.ID())
	defer h.broker.Unsubscribe(client)

	log.Info().Str("sessionId", s.ID()).Msg("sse connection established")

	if qr := s.LastQR(); qr != "" {
		data, _ := json.Marshal(map[string]string{"qr": qr})
		h.sendEvent(w, flusher, sse.Event{Type: sse.EventTypeQR, Data: data})
	}

	heartbeat := time.NewTicker(sse.HeartbeatInterval)
	defer heartbeat.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("sessionId", s.ID()).Msg("sse connection closed by client")
			return

		case <-client.Done:
			log.Info().Str("sessionId", s.ID()).Msg("sse connection closed by broker")
			return

		case event := <-client.Events:
			if err := h.sendEvent(w, flusher, event); err != nil {
				log.Error().Err(err).Msg("failed to send event")
				return
			}
			if event.Type == sse.EventTypeDestroyed {
				return
			}

		case <-heartbeat.C:
			if _, err := fmt.Fprintf(w, ": ping\n\n"); err != nil {
				log.Debug().Str("sessionId", s.ID()).Msg("heartbeat failed, closing connection")
				return
			}
			flusher.Flush()
		}
	}
}

func (h *SessionHandler) sendEvent(w http.ResponseWriter, flusher http.Flusher, event sse.Event) error {
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, event.Data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}

// GET /sessions/{sessionId}/exists/{jid}?kind=number|group
func (h *SessionHandler) JIDExists(w http.ResponseWriter, r *http.Request) {
	s, ok := h.manager.Get(chi.URLParam(r, "sessionId"))
	if !ok {
		writeError(w, apperrors.NotFound("session"))
		return
	}

	jid := chi.URLParam(r, "jid")
	kind := transport.JIDKindUser
	if r.URL.Query().Get("kind") == "group" {
		kind = transport.JIDKindGroup
	}

	exists, err := s.JIDExists(r.Context(), jid, kind)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"exists": exists})
}
