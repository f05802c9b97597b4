// Package webhook fans selected protocol events out to external HTTP
// endpoints. Delivery is best-effort with bounded retries and never
// blocks or fails session processing.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/nagi1/baileys-api/internal/config"
	"github.com/nagi1/baileys-api/internal/model"
	"github.com/nagi1/baileys-api/internal/retry"
)

// EventsAll forwards every event when present in the allow-list.
const EventsAll = "all"

// Envelope is the JSON body posted to the webhook endpoint.
type Envelope struct {
	SessionID string `json:"sessionId"`
	Event     string `json:"event"`
	Payload   any    `json:"payload"`
}

type Relay struct {
	client     *http.Client
	defaultURL string
	retryDelay time.Duration
}

func NewRelay(defaultURL string, timeout, retryDelay time.Duration) *Relay {
	return &Relay{
		client:     &http.Client{Timeout: timeout},
		defaultURL: defaultURL,
		retryDelay: retryDelay,
	}
}

// Send posts {sessionId, event, payload} to the session's webhook URL.
// It is a no-op when webhooks are disabled for the session or the event
// is not in the allow-list. Failures are logged, never returned.
func (r *Relay) Send(ctx context.Context, opts *model.SessionOptions, event string, payload any) {
	if opts == nil || opts.Webhook == nil || !opts.Webhook.Enabled {
		return
	}
	if !allowed(opts.Webhook.Events, event) {
		return
	}

	url := opts.Webhook.URL
	if url == "" {
		url = r.defaultURL
	}
	if url == "" {
		log.Debug().Str("sessionId", opts.SessionID).Str("event", event).
			Msg("webhook enabled but no url configured, dropping event")
		return
	}

	body, err := json.Marshal(Envelope{
		SessionID: opts.SessionID,
		Event:     event,
		Payload:   payload,
	})
	if err != nil {
		log.Error().Err(err).Str("sessionId", opts.SessionID).Str("event", event).
			Msg("failed to marshal webhook envelope")
		return
	}

	attempt := 0
	err = retry.Do(ctx, config.WebhookMaxRetries+1, r.retryDelay, func(ctx context.Context) error {
		attempt++
		if postErr := r.post(ctx, url, body); postErr != nil {
			if attempt <= config.WebhookMaxRetries {
				log.Warn().Err(postErr).
					Str("sessionId", opts.SessionID).
					Str("event", event).
					Int("attempt", attempt).
					Msg("webhook delivery failed, retrying")
			}
			return postErr
		}
		return nil
	})
	if err != nil {
		log.Warn().Err(err).
			Str("sessionId", opts.SessionID).
			Str("event", event).
			Str("url", url).
			Msg("webhook delivery abandoned after retries")
	}
}

func (r *Relay) post(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook endpoint returned %d", resp.StatusCode)
	}
	return nil
}

// allowed checks the session's event allow-list. An empty list forwards
// everything, matching the "all" default.
func allowed(events []string, event string) bool {
	if len(events) == 0 {
		return true
	}
	for _, e := range events {
		if e == EventsAll || e == event {
			return true
		}
	}
	return false
}
