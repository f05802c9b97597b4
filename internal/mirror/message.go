package mirror

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/nagi1/baileys-api/internal/model"
	"github.com/nagi1/baileys-api/internal/repository"
	"github.com/nagi1/baileys-api/internal/transport"
	"github.com/nagi1/baileys-api/internal/webhook"
)

type MessageHandler struct {
	listener
	sessionID  string
	opts       *model.SessionOptions
	messages   repository.MessageRepository
	chats      repository.ChatRepository
	dispatcher *transport.Dispatcher
	relay      *webhook.Relay
}

func NewMessageHandler(
	sessionID string,
	opts *model.SessionOptions,
	messages repository.MessageRepository,
	chats repository.ChatRepository,
	dispatcher *transport.Dispatcher,
	relay *webhook.Relay,
) *MessageHandler {
	return &MessageHandler{
		sessionID:  sessionID,
		opts:       opts,
		messages:   messages,
		chats:      chats,
		dispatcher: dispatcher,
		relay:      relay,
	}
}

func (h *MessageHandler) Listen() {
	h.listen(func() []func() {
		return []func(){
			h.dispatcher.On(transport.EventHistorySet, h.handleHistorySet),
			h.dispatcher.On(transport.EventMessagesUpsert, h.handleUpsert),
			h.dispatcher.On(transport.EventMessagesUpdate, h.handleUpdate),
			h.dispatcher.On(transport.EventMessagesDelete, h.handleDelete),
			h.dispatcher.On(transport.EventReceiptUpdate, h.handleReceipt),
			h.dispatcher.On(transport.EventMessagesReaction, h.handleReaction),
		}
	})
}

func (h *MessageHandler) Unlisten() {
	h.unlisten()
}

func (h *MessageHandler) handleHistorySet(ctx context.Context, ev transport.Event) {
	set := ev.(transport.HistorySet)
	forward(ctx, h.relay, h.opts, ev)

	if len(set.Messages) == 0 {
		log.Debug().Str("sessionId", h.sessionID).Msg("history set carried no messages, skipping")
		return
	}

	ops := make([]func() error, 0, len(set.Messages))
	for _, msg := range set.Messages {
		params := messageParams(h.sessionID, msg)
		ops = append(ops, func() error {
			_, err := h.messages.InsertIgnore(ctx, params)
			if err != nil {
				log.Error().Err(err).Str("sessionId", h.sessionID).Str("id", params.MessageID).
					Msg("failed to insert message from history")
			}
			return err
		})
	}

	if err := applyConcurrent(ops); err != nil {
		log.Error().Err(err).Str("sessionId", h.sessionID).Int("count", len(set.Messages)).
			Msg("history message sync failed entirely")
		return
	}
	log.Info().Str("sessionId", h.sessionID).Int("count", len(set.Messages)).
		Bool("isLatest", set.IsLatest).Msg("synced messages from history")
}

// handleUpsert stores each message and, for live ("notify") messages
// whose conversation has no mirrored chat row, raises one synthetic
// chat upsert seeded with an unread count of 1 so the mirror stays
// consistent without a separate sync round.
func (h *MessageHandler) handleUpsert(ctx context.Context, ev transport.Event) {
	upsert := ev.(transport.MessagesUpsert)
	forward(ctx, h.relay, h.opts, ev)

	ops := make([]func() error, 0, len(upsert.Messages))
	for _, msg := range upsert.Messages {
		params := messageParams(h.sessionID, msg)
		ops = append(ops, func() error {
			if err := h.messages.Upsert(ctx, params); err != nil {
				log.Error().Err(err).Str("sessionId", h.sessionID).Str("id", params.MessageID).
					Msg("failed to upsert message")
				return err
			}
			return nil
		})
	}

	if err := applyConcurrent(ops); err != nil {
		log.Error().Err(err).Str("sessionId", h.sessionID).Msg("messages upsert failed entirely")
	}

	if upsert.Type != model.MessageUpsertNotify {
		return
	}

	for _, msg := range upsert.Messages {
		chatID := msg.Key.RemoteJID
		exists, err := h.chats.Exists(ctx, h.sessionID, chatID)
		if err != nil {
			log.Error().Err(err).Str("sessionId", h.sessionID).Str("chatId", chatID).
				Msg("failed to check chat existence for notify message")
			continue
		}
		if exists {
			continue
		}

		unread := 1
		h.dispatcher.Emit(ctx, transport.ChatsUpsert{
			Chats: []transport.Chat{{
				ID:                    chatID,
				ConversationTimestamp: msg.MessageTimestamp,
				UnreadCount:           &unread,
			}},
		})
	}
}

// handleUpdate applies a shallow merge of each patch onto the stored
// message; unknown messages are logged and skipped.
func (h *MessageHandler) handleUpdate(ctx context.Context, ev transport.Event) {
	update := ev.(transport.MessagesUpdate)
	forward(ctx, h.relay, h.opts, ev)

	for _, patch := range update.Updates {
		existing, err := h.messages.FindByKey(ctx, h.sessionID, patch.Key.RemoteJID, patch.Key.ID)
		if err != nil {
			log.Error().Err(err).Str("sessionId", h.sessionID).Str("id", patch.Key.ID).
				Msg("failed to look up message for update")
			continue
		}
		if existing == nil {
			logSkippedUpdate(h.sessionID, "message", patch.Key.ID)
			continue
		}

		if err := h.messages.Upsert(ctx, mergeMessage(existing, patch)); err != nil {
			log.Error().Err(err).Str("sessionId", h.sessionID).Str("id", patch.Key.ID).
				Msg("failed to update message")
		}
	}
}

func (h *MessageHandler) handleDelete(ctx context.Context, ev transport.Event) {
	del := ev.(transport.MessagesDelete)
	forward(ctx, h.relay, h.opts, ev)

	if del.All {
		count, err := h.messages.DeleteByChat(ctx, h.sessionID, del.JID)
		if err != nil {
			log.Error().Err(err).Str("sessionId", h.sessionID).Str("chatId", del.JID).
				Msg("failed to delete chat messages")
			return
		}
		log.Debug().Str("sessionId", h.sessionID).Str("chatId", del.JID).
			Int64("count", count).Msg("deleted all chat messages")
		return
	}

	ops := make([]func() error, 0, len(del.Keys))
	for _, key := range del.Keys {
		ops = append(ops, func() error {
			_, err := h.messages.DeleteByKey(ctx, h.sessionID, key.RemoteJID, key.ID)
			if err != nil {
				log.Error().Err(err).Str("sessionId", h.sessionID).Str("id", key.ID).
					Msg("failed to delete message")
			}
			return err
		})
	}
	if err := applyConcurrent(ops); err != nil {
		log.Error().Err(err).Str("sessionId", h.sessionID).Msg("messages delete failed entirely")
	}
}

func (h *MessageHandler) handleReceipt(ctx context.Context, ev transport.Event) {
	receipt := ev.(transport.ReceiptUpdate)
	forward(ctx, h.relay, h.opts, ev)

	for _, update := range receipt.Updates {
		existing, err := h.messages.FindByKey(ctx, h.sessionID, update.Key.RemoteJID, update.Key.ID)
		if err != nil {
			log.Error().Err(err).Str("sessionId", h.sessionID).Str("id", update.Key.ID).
				Msg("failed to look up message for receipt")
			continue
		}
		if existing == nil {
			logSkippedUpdate(h.sessionID, "message receipt", update.Key.ID)
			continue
		}

		receipts := upsertReceipt(existing.Receipts, update.Receipt)
		if err := h.messages.SetReceipts(ctx, h.sessionID, update.Key.RemoteJID, update.Key.ID, receipts); err != nil {
			log.Error().Err(err).Str("sessionId", h.sessionID).Str("id", update.Key.ID).
				Msg("failed to store message receipt")
		}
	}
}

func (h *MessageHandler) handleReaction(ctx context.Context, ev transport.Event) {
	reaction := ev.(transport.ReactionUpdate)
	forward(ctx, h.relay, h.opts, ev)

	for _, update := range reaction.Updates {
		existing, err := h.messages.FindByKey(ctx, h.sessionID, update.Key.RemoteJID, update.Key.ID)
		if err != nil {
			log.Error().Err(err).Str("sessionId", h.sessionID).Str("id", update.Key.ID).
				Msg("failed to look up message for reaction")
			continue
		}
		if existing == nil {
			logSkippedUpdate(h.sessionID, "message reaction", update.Key.ID)
			continue
		}

		reactions := applyReaction(existing.Reactions, update.Reaction)
		if err := h.messages.SetReactions(ctx, h.sessionID, update.Key.RemoteJID, update.Key.ID, reactions); err != nil {
			log.Error().Err(err).Str("sessionId", h.sessionID).Str("id", update.Key.ID).
				Msg("failed to store message reaction")
		}
	}
}

// upsertReceipt keeps at most one receipt per sender: replace if the
// sender already has an entry, else append.
func upsertReceipt(list model.ReceiptList, receipt model.Receipt) model.ReceiptList {
	for i, r := range list {
		if r.UserJID == receipt.UserJID {
			out := make(model.ReceiptList, len(list))
			copy(out, list)
			out[i] = receipt
			return out
		}
	}
	return append(append(model.ReceiptList{}, list...), receipt)
}

// applyReaction keeps at most one reaction per sender. A reaction with
// empty content removes the sender's entry instead of storing an empty
// one.
func applyReaction(list model.ReactionList, reaction model.Reaction) model.ReactionList {
	out := make(model.ReactionList, 0, len(list)+1)
	for _, r := range list {
		if r.UserJID != reaction.UserJID {
			out = append(out, r)
		}
	}
	if reaction.Text != "" {
		out = append(out, reaction)
	}
	return out
}

// mergeMessage shallow-merges a patch onto the stored message: fields
// present on the patch win, everything else keeps its stored value.
func mergeMessage(existing *model.Message, patch transport.Message) model.UpsertMessageParams {
	params := model.UpsertMessageParams{
		SessionID:        existing.SessionID,
		ChatID:           existing.ChatID,
		MessageID:        existing.MessageID,
		FromMe:           existing.FromMe,
		Participant:      existing.Participant,
		PushName:         existing.PushName,
		MessageTimestamp: existing.MessageTimestamp,
		Status:           existing.Status,
		Content:          existing.Content,
	}
	if patch.PushName != nil {
		params.PushName = patch.PushName
	}
	if patch.MessageTimestamp != nil {
		params.MessageTimestamp = patch.MessageTimestamp
	}
	if patch.Status != nil {
		params.Status = patch.Status
	}
	if len(patch.Content) > 0 {
		params.Content = patch.Content
	}
	if patch.Key.Participant != "" {
		participant := patch.Key.Participant
		params.Participant = &participant
	}
	return params
}

func messageParams(sessionID string, msg transport.Message) model.UpsertMessageParams {
	params := model.UpsertMessageParams{
		SessionID:        sessionID,
		ChatID:           msg.Key.RemoteJID,
		MessageID:        msg.Key.ID,
		FromMe:           msg.Key.FromMe,
		PushName:         msg.PushName,
		MessageTimestamp: msg.MessageTimestamp,
		Status:           msg.Status,
		Content:          msg.Content,
	}
	if msg.Key.Participant != "" {
		participant := msg.Key.Participant
		params.Participant = &participant
	}
	return params
}
