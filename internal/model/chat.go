package model

import "time"

// Chat mirrors one conversation observed on the transport.
// The mirror is a best-effort cache: rows are only created by upserts
// or bulk sync, never synthesized from partial updates.
type Chat struct {
	SessionID             string    `db:"session_id" json:"sessionId"`
	ID                    string    `db:"id" json:"id"`
	Name                  *string   `db:"name" json:"name,omitempty"`
	UnreadCount           int       `db:"unread_count" json:"unreadCount"`
	ConversationTimestamp *int64    `db:"conversation_timestamp" json:"conversationTimestamp,omitempty"`
	Archived              *bool     `db:"archived" json:"archived,omitempty"`
	Pinned                *int64    `db:"pinned" json:"pinned,omitempty"`
	MuteEndTime           *int64    `db:"mute_end_time" json:"muteEndTime,omitempty"`
	ReadOnly              *bool     `db:"read_only" json:"readOnly,omitempty"`
	RowID                 int64     `db:"row_id" json:"-"`
	CreatedAt             time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt             time.Time `db:"updated_at" json:"updatedAt"`
}

type UpsertChatParams struct {
	SessionID             string
	ID                    string
	Name                  *string
	UnreadCount           *int
	ConversationTimestamp *int64
	Archived              *bool
	Pinned                *int64
	MuteEndTime           *int64
	ReadOnly              *bool
}
