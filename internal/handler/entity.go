package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	apperrors "github.com/nagi1/baileys-api/internal/errors"
	"github.com/nagi1/baileys-api/internal/repository"
	"github.com/nagi1/baileys-api/internal/session"
)

// EntityHandler serves the mirrored chat, contact, group and message
// listings of a session.
type EntityHandler struct {
	manager  *session.Manager
	chats    repository.ChatRepository
	contacts repository.ContactRepository
	groups   repository.GroupRepository
	messages repository.MessageRepository
}

func NewEntityHandler(
	manager *session.Manager,
	chats repository.ChatRepository,
	contacts repository.ContactRepository,
	groups repository.GroupRepository,
	messages repository.MessageRepository,
) *EntityHandler {
	return &EntityHandler{
		manager:  manager,
		chats:    chats,
		contacts: contacts,
		groups:   groups,
		messages: messages,
	}
}

// requireSession rejects listings for ids with no live session; the
// mirror of a destroyed session is gone or about to be.
func (h *EntityHandler) requireSession(w http.ResponseWriter, r *http.Request) (string, bool) {
	sessionID := chi.URLParam(r, "sessionId")
	if !h.manager.Exists(sessionID) {
		writeError(w, apperrors.NotFound("session"))
		return "", false
	}
	return sessionID, true
}

// GET /sessions/{sessionId}/chats
func (h *EntityHandler) ListChats(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.requireSession(w, r)
	if !ok {
		return
	}
	page := ParsePagination(r)

	chats, err := h.chats.List(r.Context(), sessionID, page.Cursor, page.Limit)
	if err != nil {
		log.Error().Err(err).Str("sessionId", sessionID).Msg("failed to list chats")
		writeError(w, apperrors.Database(err))
		return
	}

	var last int64
	if len(chats) > 0 {
		last = chats[len(chats)-1].RowID
	}
	writeJSON(w, http.StatusOK, NewPagedResponse(chats, len(chats), page.Limit, last))
}

// GET /sessions/{sessionId}/contacts
func (h *EntityHandler) ListContacts(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.requireSession(w, r)
	if !ok {
		return
	}
	page := ParsePagination(r)

	contacts, err := h.contacts.List(r.Context(), sessionID, page.Cursor, page.Limit)
	if err != nil {
		log.Error().Err(err).Str("sessionId", sessionID).Msg("failed to list contacts")
		writeError(w, apperrors.Database(err))
		return
	}

	var last int64
	if len(contacts) > 0 {
		last = contacts[len(contacts)-1].RowID
	}
	writeJSON(w, http.StatusOK, NewPagedResponse(contacts, len(contacts), page.Limit, last))
}

// GET /sessions/{sessionId}/groups
func (h *EntityHandler) ListGroups(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.requireSession(w, r)
	if !ok {
		return
	}
	page := ParsePagination(r)

	groups, err := h.groups.List(r.Context(), sessionID, page.Cursor, page.Limit)
	if err != nil {
		log.Error().Err(err).Str("sessionId", sessionID).Msg("failed to list groups")
		writeError(w, apperrors.Database(err))
		return
	}

	var last int64
	if len(groups) > 0 {
		last = groups[len(groups)-1].RowID
	}
	writeJSON(w, http.StatusOK, NewPagedResponse(groups, len(groups), page.Limit, last))
}

// GET /sessions/{sessionId}/messages?chatId=
func (h *EntityHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := h.requireSession(w, r)
	if !ok {
		return
	}
	page := ParsePagination(r)
	chatID := r.URL.Query().Get("chatId")

	messages, err := h.messages.List(r.Context(), sessionID, chatID, page.Cursor, page.Limit)
	if err != nil {
		log.Error().Err(err).Str("sessionId", sessionID).Msg("failed to list messages")
		writeError(w, apperrors.Database(err))
		return
	}

	var last int64
	if len(messages) > 0 {
		last = messages[len(messages)-1].RowID
	}
	writeJSON(w, http.StatusOK, NewPagedResponse(messages, len(messages), page.Limit, last))
}
