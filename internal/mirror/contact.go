package mirror

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/nagi1/baileys-api/internal/model"
	"github.com/nagi1/baileys-api/internal/repository"
	"github.com/nagi1/baileys-api/internal/transport"
	"github.com/nagi1/baileys-api/internal/webhook"
)

type ContactHandler struct {
	listener
	sessionID  string
	opts       *model.SessionOptions
	contacts   repository.ContactRepository
	dispatcher *transport.Dispatcher
	relay      *webhook.Relay
}

func NewContactHandler(
	sessionID string,
	opts *model.SessionOptions,
	contacts repository.ContactRepository,
	dispatcher *transport.Dispatcher,
	relay *webhook.Relay,
) *ContactHandler {
	return &ContactHandler{
		sessionID:  sessionID,
		opts:       opts,
		contacts:   contacts,
		dispatcher: dispatcher,
		relay:      relay,
	}
}

func (h *ContactHandler) Listen() {
	h.listen(func() []func() {
		return []func(){
			h.dispatcher.On(transport.EventHistorySet, h.handleHistorySet),
			h.dispatcher.On(transport.EventContactsUpsert, h.handleUpsert),
			h.dispatcher.On(transport.EventContactsUpdate, h.handleUpdate),
		}
	})
}

func (h *ContactHandler) Unlisten() {
	h.unlisten()
}

func (h *ContactHandler) handleHistorySet(ctx context.Context, ev transport.Event) {
	set := ev.(transport.HistorySet)
	forward(ctx, h.relay, h.opts, ev)

	if len(set.Contacts) == 0 {
		log.Debug().Str("sessionId", h.sessionID).Msg("history set carried no contacts, skipping")
		return
	}

	ops := make([]func() error, 0, len(set.Contacts))
	for _, contact := range set.Contacts {
		params := contactParams(h.sessionID, contact)
		ops = append(ops, func() error {
			inserted, err := h.contacts.InsertIgnore(ctx, params)
			if err != nil {
				log.Error().Err(err).Str("sessionId", h.sessionID).Str("id", params.ID).
					Msg("failed to insert contact from history")
				return err
			}
			if !inserted {
				log.Debug().Str("sessionId", h.sessionID).Str("id", params.ID).
					Msg("contact already in mirror, skipping")
			}
			return nil
		})
	}

	if err := applyConcurrent(ops); err != nil {
		log.Error().Err(err).Str("sessionId", h.sessionID).Int("count", len(set.Contacts)).
			Msg("history contact sync failed entirely")
		return
	}
	log.Info().Str("sessionId", h.sessionID).Int("count", len(set.Contacts)).
		Bool("isLatest", set.IsLatest).Msg("synced contacts from history")
}

func (h *ContactHandler) handleUpsert(ctx context.Context, ev transport.Event) {
	upsert := ev.(transport.ContactsUpsert)
	forward(ctx, h.relay, h.opts, ev)

	ops := make([]func() error, 0, len(upsert.Contacts))
	for _, contact := range upsert.Contacts {
		params := contactParams(h.sessionID, contact)
		ops = append(ops, func() error {
			if err := h.contacts.Upsert(ctx, params); err != nil {
				log.Error().Err(err).Str("sessionId", h.sessionID).Str("id", params.ID).
					Msg("failed to upsert contact")
				return err
			}
			return nil
		})
	}

	if err := applyConcurrent(ops); err != nil {
		log.Error().Err(err).Str("sessionId", h.sessionID).Msg("contacts upsert failed entirely")
	}
}

func (h *ContactHandler) handleUpdate(ctx context.Context, ev transport.Event) {
	update := ev.(transport.ContactsUpdate)
	forward(ctx, h.relay, h.opts, ev)

	for _, patch := range update.Updates {
		existing, err := h.contacts.FindByID(ctx, h.sessionID, patch.ID)
		if err != nil {
			log.Error().Err(err).Str("sessionId", h.sessionID).Str("id", patch.ID).
				Msg("failed to look up contact for update")
			continue
		}
		if existing == nil {
			logSkippedUpdate(h.sessionID, "contact", patch.ID)
			continue
		}

		if err := h.contacts.UpdateFields(ctx, contactParams(h.sessionID, patch)); err != nil {
			log.Error().Err(err).Str("sessionId", h.sessionID).Str("id", patch.ID).
				Msg("failed to update contact")
		}
	}
}

// contactParams converts a wire contact, dropping empty name and notify
// values so a partial protocol update never erases a previously learned
// identity label.
func contactParams(sessionID string, contact transport.Contact) model.UpsertContactParams {
	return model.UpsertContactParams{
		SessionID:    sessionID,
		ID:           contact.ID,
		Name:         nonEmpty(contact.Name),
		Notify:       nonEmpty(contact.Notify),
		VerifiedName: contact.VerifiedName,
		ImgURL:       contact.ImgURL,
		Status:       contact.Status,
	}
}

func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	return s
}
