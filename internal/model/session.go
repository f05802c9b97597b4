package model

import (
	"encoding/json"
	"time"
)

// SessionStatus is the API-facing connection status of a session.
// AUTHENTICATED overrides the raw socket phase whenever the transport
// reports an identified account.
type SessionStatus string

const (
	SessionStatusConnecting    SessionStatus = "CONNECTING"
	SessionStatusConnected     SessionStatus = "CONNECTED"
	SessionStatusDisconnecting SessionStatus = "DISCONNECTING"
	SessionStatusDisconnected  SessionStatus = "DISCONNECTED"
	SessionStatusAuthenticated SessionStatus = "AUTHENTICATED"
)

// WebhookOptions controls best-effort event fan-out for one session.
// Events is an allow-list of event names; the single entry "all"
// forwards everything.
type WebhookOptions struct {
	Enabled bool     `json:"enabled"`
	URL     string   `json:"url,omitempty"`
	Events  []string `json:"events,omitempty"`
}

// SessionOptions are the immutable creation parameters of a session.
type SessionOptions struct {
	SessionID            string          `json:"sessionId"`
	ReadIncomingMessages bool            `json:"readIncomingMessages,omitempty"`
	Proxy                string          `json:"proxy,omitempty"`
	Webhook              *WebhookOptions `json:"webhook,omitempty"`
	UsePairingCode       bool            `json:"usePairingCode,omitempty"`
	PhoneNumber          string          `json:"phoneNumber,omitempty"`
	Transport            json.RawMessage `json:"transport,omitempty"`
}

// SessionConfig is the durable record a session is reconstructed from
// after a process restart. Key: (session_id, config_id).
type SessionConfig struct {
	SessionID string          `db:"session_id" json:"sessionId"`
	ConfigID  string          `db:"config_id" json:"configId"`
	Data      json.RawMessage `db:"data" json:"data"`
	CreatedAt time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time       `db:"updated_at" json:"updatedAt"`
}

// DefaultConfigID is the config_id under which session options are stored.
const DefaultConfigID = "options"
