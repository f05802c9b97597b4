package model

import (
	"encoding/json"
	"time"
)

// MessageUpsertType mirrors the transport's upsert classification:
// "notify" is a live incoming message, "append" is history backfill.
const (
	MessageUpsertNotify = "notify"
	MessageUpsertAppend = "append"
)

// Message mirrors one protocol message. Keyed by
// (session_id, chat_id, message_id); RowID is the opaque listing cursor.
type Message struct {
	SessionID        string          `db:"session_id" json:"sessionId"`
	ChatID           string          `db:"chat_id" json:"chatId"`
	MessageID        string          `db:"message_id" json:"messageId"`
	FromMe           bool            `db:"from_me" json:"fromMe"`
	Participant      *string         `db:"participant" json:"participant,omitempty"`
	PushName         *string         `db:"push_name" json:"pushName,omitempty"`
	MessageTimestamp *int64          `db:"message_timestamp" json:"messageTimestamp,omitempty"`
	Status           *int            `db:"status" json:"status,omitempty"`
	Content          json.RawMessage `db:"content" json:"content,omitempty"`
	Receipts         ReceiptList     `db:"receipts" json:"receipts,omitempty"`
	Reactions        ReactionList    `db:"reactions" json:"reactions,omitempty"`
	RowID            int64           `db:"row_id" json:"-"`
	CreatedAt        time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updatedAt"`
}

// MessageKey identifies a message on the wire.
type MessageKey struct {
	RemoteJID   string `json:"remoteJid"`
	FromMe      bool   `json:"fromMe"`
	ID          string `json:"id"`
	Participant string `json:"participant,omitempty"`
}

// Receipt records one sender's delivery/read receipt for a message.
// The list keeps at most one entry per UserJID.
type Receipt struct {
	UserJID   string `json:"userJid"`
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

// Reaction records one sender's reaction to a message. Empty Text means
// the sender withdrew their reaction.
type Reaction struct {
	UserJID   string `json:"userJid"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

type ReceiptList []Receipt

type ReactionList []Reaction

type UpsertMessageParams struct {
	SessionID        string
	ChatID           string
	MessageID        string
	FromMe           bool
	Participant      *string
	PushName         *string
	MessageTimestamp *int64
	Status           *int
	Content          json.RawMessage
}
