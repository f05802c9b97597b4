package mirror

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/nagi1/baileys-api/internal/model"
	"github.com/nagi1/baileys-api/internal/repository"
	"github.com/nagi1/baileys-api/internal/transport"
	"github.com/nagi1/baileys-api/internal/webhook"
)

type ChatHandler struct {
	listener
	sessionID  string
	opts       *model.SessionOptions
	chats      repository.ChatRepository
	dispatcher *transport.Dispatcher
	relay      *webhook.Relay
}

func NewChatHandler(
	sessionID string,
	opts *model.SessionOptions,
	chats repository.ChatRepository,
	dispatcher *transport.Dispatcher,
	relay *webhook.Relay,
) *ChatHandler {
	return &ChatHandler{
		sessionID:  sessionID,
		opts:       opts,
		chats:      chats,
		dispatcher: dispatcher,
		relay:      relay,
	}
}

func (h *ChatHandler) Listen() {
	h.listen(func() []func() {
		return []func(){
			h.dispatcher.On(transport.EventHistorySet, h.handleHistorySet),
			h.dispatcher.On(transport.EventChatsUpsert, h.handleUpsert),
			h.dispatcher.On(transport.EventChatsUpdate, h.handleUpdate),
			h.dispatcher.On(transport.EventChatsDelete, h.handleDelete),
		}
	})
}

func (h *ChatHandler) Unlisten() {
	h.unlisten()
}

// handleHistorySet applies the chat part of an initial-sync snapshot as
// a union merge: only previously unseen ids are inserted, so replaying
// the same batch never duplicates a row and never double-applies
// conversation deltas that arrived during the bulk phase.
func (h *ChatHandler) handleHistorySet(ctx context.Context, ev transport.Event) {
	set := ev.(transport.HistorySet)
	forward(ctx, h.relay, h.opts, ev)

	if len(set.Chats) == 0 {
		log.Debug().Str("sessionId", h.sessionID).Msg("history set carried no chats, skipping")
		return
	}

	ops := make([]func() error, 0, len(set.Chats))
	for _, chat := range set.Chats {
		params := chatParams(h.sessionID, chat)
		ops = append(ops, func() error {
			inserted, err := h.chats.InsertIgnore(ctx, params)
			if err != nil {
				log.Error().Err(err).Str("sessionId", h.sessionID).Str("id", params.ID).
					Msg("failed to insert chat from history")
				return err
			}
			if !inserted {
				log.Debug().Str("sessionId", h.sessionID).Str("id", params.ID).
					Msg("chat already in mirror, skipping")
			}
			return nil
		})
	}

	if err := applyConcurrent(ops); err != nil {
		log.Error().Err(err).Str("sessionId", h.sessionID).Int("count", len(set.Chats)).
			Msg("history chat sync failed entirely")
		return
	}
	log.Info().Str("sessionId", h.sessionID).Int("count", len(set.Chats)).
		Bool("isLatest", set.IsLatest).Msg("synced chats from history")
}

func (h *ChatHandler) handleUpsert(ctx context.Context, ev transport.Event) {
	upsert := ev.(transport.ChatsUpsert)
	forward(ctx, h.relay, h.opts, ev)

	ops := make([]func() error, 0, len(upsert.Chats))
	for _, chat := range upsert.Chats {
		params := chatParams(h.sessionID, chat)
		ops = append(ops, func() error {
			if err := h.chats.Upsert(ctx, params); err != nil {
				log.Error().Err(err).Str("sessionId", h.sessionID).Str("id", params.ID).
					Msg("failed to upsert chat")
				return err
			}
			return nil
		})
	}

	if err := applyConcurrent(ops); err != nil {
		log.Error().Err(err).Str("sessionId", h.sessionID).Msg("chats upsert failed entirely")
	}
}

// handleUpdate patches existing rows only. A positive unread count is
// applied as an atomic increment; a non-positive one clears the counter
// to that value.
func (h *ChatHandler) handleUpdate(ctx context.Context, ev transport.Event) {
	update := ev.(transport.ChatsUpdate)
	forward(ctx, h.relay, h.opts, ev)

	for _, patch := range update.Updates {
		existing, err := h.chats.FindByID(ctx, h.sessionID, patch.ID)
		if err != nil {
			log.Error().Err(err).Str("sessionId", h.sessionID).Str("id", patch.ID).
				Msg("failed to look up chat for update")
			continue
		}
		if existing == nil {
			logSkippedUpdate(h.sessionID, "chat", patch.ID)
			continue
		}

		if err := h.chats.UpdateFields(ctx, chatParams(h.sessionID, patch)); err != nil {
			log.Error().Err(err).Str("sessionId", h.sessionID).Str("id", patch.ID).
				Msg("failed to update chat")
			continue
		}

		if patch.UnreadCount != nil {
			if increment, value := unreadAction(*patch.UnreadCount); increment {
				err = h.chats.IncrementUnread(ctx, h.sessionID, patch.ID, value)
			} else {
				err = h.chats.SetUnread(ctx, h.sessionID, patch.ID, value)
			}
			if err != nil {
				log.Error().Err(err).Str("sessionId", h.sessionID).Str("id", patch.ID).
					Msg("failed to update chat unread count")
			}
		}
	}
}

func (h *ChatHandler) handleDelete(ctx context.Context, ev transport.Event) {
	del := ev.(transport.ChatsDelete)
	forward(ctx, h.relay, h.opts, ev)

	if len(del.IDs) == 0 {
		return
	}

	count, err := h.chats.DeleteByIDs(ctx, h.sessionID, del.IDs)
	if err != nil {
		log.Error().Err(err).Str("sessionId", h.sessionID).Strs("ids", del.IDs).
			Msg("failed to delete chats")
		return
	}
	log.Debug().Str("sessionId", h.sessionID).Int64("count", count).Msg("deleted chats")
}

// unreadAction decides how a patched unread count applies: positive
// values are increments, non-positive values are absolute sets ("clear",
// not "decrement").
func unreadAction(patched int) (increment bool, value int) {
	if patched > 0 {
		return true, patched
	}
	return false, patched
}

func chatParams(sessionID string, chat transport.Chat) model.UpsertChatParams {
	return model.UpsertChatParams{
		SessionID:             sessionID,
		ID:                    chat.ID,
		Name:                  chat.Name,
		UnreadCount:           chat.UnreadCount,
		ConversationTimestamp: chat.ConversationTimestamp,
		Archived:              chat.Archived,
		Pinned:                chat.Pinned,
		MuteEndTime:           chat.MuteEndTime,
		ReadOnly:              chat.ReadOnly,
	}
}
