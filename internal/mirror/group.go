package mirror

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/nagi1/baileys-api/internal/model"
	"github.com/nagi1/baileys-api/internal/repository"
	"github.com/nagi1/baileys-api/internal/transport"
	"github.com/nagi1/baileys-api/internal/webhook"
)

type GroupHandler struct {
	listener
	sessionID  string
	opts       *model.SessionOptions
	groups     repository.GroupRepository
	dispatcher *transport.Dispatcher
	relay      *webhook.Relay
}

func NewGroupHandler(
	sessionID string,
	opts *model.SessionOptions,
	groups repository.GroupRepository,
	dispatcher *transport.Dispatcher,
	relay *webhook.Relay,
) *GroupHandler {
	return &GroupHandler{
		sessionID:  sessionID,
		opts:       opts,
		groups:     groups,
		dispatcher: dispatcher,
		relay:      relay,
	}
}

func (h *GroupHandler) Listen() {
	h.listen(func() []func() {
		return []func(){
			h.dispatcher.On(transport.EventGroupsUpsert, h.handleUpsert),
			h.dispatcher.On(transport.EventGroupsUpdate, h.handleUpdate),
		}
	})
}

func (h *GroupHandler) Unlisten() {
	h.unlisten()
}

func (h *GroupHandler) handleUpsert(ctx context.Context, ev transport.Event) {
	upsert := ev.(transport.GroupsUpsert)
	forward(ctx, h.relay, h.opts, ev)

	if len(upsert.Groups) == 0 {
		log.Debug().Str("sessionId", h.sessionID).Msg("groups upsert carried no groups, skipping")
		return
	}

	ops := make([]func() error, 0, len(upsert.Groups))
	for _, group := range upsert.Groups {
		params := groupParams(h.sessionID, group)
		ops = append(ops, func() error {
			if err := h.groups.Upsert(ctx, params); err != nil {
				log.Error().Err(err).Str("sessionId", h.sessionID).Str("id", params.ID).
					Msg("failed to upsert group")
				return err
			}
			return nil
		})
	}

	if err := applyConcurrent(ops); err != nil {
		log.Error().Err(err).Str("sessionId", h.sessionID).Msg("groups upsert failed entirely")
	}
}

func (h *GroupHandler) handleUpdate(ctx context.Context, ev transport.Event) {
	update := ev.(transport.GroupsUpdate)
	forward(ctx, h.relay, h.opts, ev)

	for _, patch := range update.Updates {
		existing, err := h.groups.FindByID(ctx, h.sessionID, patch.ID)
		if err != nil {
			log.Error().Err(err).Str("sessionId", h.sessionID).Str("id", patch.ID).
				Msg("failed to look up group for update")
			continue
		}
		if existing == nil {
			logSkippedUpdate(h.sessionID, "group", patch.ID)
			continue
		}

		if err := h.groups.UpdateFields(ctx, groupParams(h.sessionID, patch)); err != nil {
			log.Error().Err(err).Str("sessionId", h.sessionID).Str("id", patch.ID).
				Msg("failed to update group")
		}
	}
}

func groupParams(sessionID string, group transport.Group) model.UpsertGroupParams {
	return model.UpsertGroupParams{
		SessionID:        sessionID,
		ID:               group.ID,
		Subject:          group.Subject,
		Owner:            group.Owner,
		Description:      group.Description,
		ParticipantCount: group.ParticipantCount,
		Creation:         group.Creation,
	}
}
