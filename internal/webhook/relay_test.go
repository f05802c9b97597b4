package webhook

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nagi1/baileys-api/internal/model"
)

func webhookOpts(url string) *model.SessionOptions {
	return &model.SessionOptions{
		SessionID: "s1",
		Webhook:   &model.WebhookOptions{Enabled: true, URL: url},
	}
}

func TestRelaySend(t *testing.T) {
	t.Run("posts the envelope", func(t *testing.T) {
		var got Envelope
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		relay := NewRelay("", time.Second, time.Millisecond)
		relay.Send(t.Context(), webhookOpts(server.URL), "connection.update", map[string]string{"connection": "open"})

		assert.Equal(t, "s1", got.SessionID)
		assert.Equal(t, "connection.update", got.Event)
	})

	t.Run("retries failed deliveries", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		relay := NewRelay("", time.Second, time.Millisecond)
		relay.Send(t.Context(), webhookOpts(server.URL), "chats.upsert", nil)

		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("gives up after the retry budget", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		relay := NewRelay("", time.Second, time.Millisecond)
		relay.Send(t.Context(), webhookOpts(server.URL), "chats.upsert", nil)

		// Initial attempt plus three retries.
		assert.Equal(t, int32(4), calls.Load())
	})

	t.Run("disabled webhook is a no-op", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
		}))
		defer server.Close()

		relay := NewRelay("", time.Second, time.Millisecond)
		relay.Send(t.Context(), &model.SessionOptions{SessionID: "s1"}, "chats.upsert", nil)
		relay.Send(t.Context(), &model.SessionOptions{
			SessionID: "s1",
			Webhook:   &model.WebhookOptions{Enabled: false, URL: server.URL},
		}, "chats.upsert", nil)

		assert.Equal(t, int32(0), calls.Load())
	})

	t.Run("falls back to the default url", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
		}))
		defer server.Close()

		relay := NewRelay(server.URL, time.Second, time.Millisecond)
		relay.Send(t.Context(), &model.SessionOptions{
			SessionID: "s1",
			Webhook:   &model.WebhookOptions{Enabled: true},
		}, "chats.upsert", nil)

		assert.Equal(t, int32(1), calls.Load())
	})
}

func TestAllowed(t *testing.T) {
	t.Run("empty allow-list forwards everything", func(t *testing.T) {
		assert.True(t, allowed(nil, "chats.upsert"))
	})

	t.Run("all sentinel forwards everything", func(t *testing.T) {
		assert.True(t, allowed([]string{EventsAll}, "chats.upsert"))
	})

	t.Run("explicit list filters", func(t *testing.T) {
		list := []string{"messages.upsert", "connection.update"}
		assert.True(t, allowed(list, "messages.upsert"))
		assert.False(t, allowed(list, "chats.upsert"))
	})
}
