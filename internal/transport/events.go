package transport

import (
	"encoding/json"
	"fmt"

	"github.com/nagi1/baileys-api/internal/model"
)

// Event names as emitted by the protocol layer.
const (
	EventConnectionUpdate = "connection.update"
	EventCredsUpdate      = "creds.update"
	EventHistorySet       = "messaging-history.set"
	EventChatsUpsert      = "chats.upsert"
	EventChatsUpdate      = "chats.update"
	EventChatsDelete      = "chats.delete"
	EventContactsUpsert   = "contacts.upsert"
	EventContactsUpdate   = "contacts.update"
	EventGroupsUpsert     = "groups.upsert"
	EventGroupsUpdate     = "groups.update"
	EventMessagesUpsert   = "messages.upsert"
	EventMessagesUpdate   = "messages.update"
	EventMessagesDelete   = "messages.delete"
	EventReceiptUpdate    = "message-receipt.update"
	EventMessagesReaction = "messages.reaction"
)

// Event is one typed protocol event.
type Event interface {
	EventName() string
}

// Connection phases reported inside ConnectionUpdate.
const (
	ConnectionConnecting = "connecting"
	ConnectionOpen       = "open"
	ConnectionClose      = "close"
)

// DisconnectCode classifies why a connection closed.
type DisconnectCode int

const (
	DisconnectConnectionClosed   DisconnectCode = 428
	DisconnectConnectionLost     DisconnectCode = 408
	DisconnectConnectionReplaced DisconnectCode = 440
	DisconnectTimedOut           DisconnectCode = 408
	DisconnectLoggedOut          DisconnectCode = 401
	DisconnectBadSession         DisconnectCode = 500
	DisconnectRestartRequired    DisconnectCode = 515
	DisconnectMultideviceMismatch DisconnectCode = 411
)

// Disconnect carries the close reason of the last disconnect.
type Disconnect struct {
	Code  DisconnectCode `json:"code"`
	Error string         `json:"error,omitempty"`
}

func (d *Disconnect) String() string {
	if d == nil {
		return "unknown"
	}
	return fmt.Sprintf("%d (%s)", d.Code, d.Error)
}

type ConnectionUpdate struct {
	Connection     string      `json:"connection,omitempty"`
	QR             string      `json:"qr,omitempty"`
	IsNewLogin     bool        `json:"isNewLogin,omitempty"`
	LastDisconnect *Disconnect `json:"lastDisconnect,omitempty"`
}

func (ConnectionUpdate) EventName() string { return EventConnectionUpdate }

type CredsUpdate struct {
	Creds *model.AuthCreds `json:"creds"`
}

func (CredsUpdate) EventName() string { return EventCredsUpdate }

// Wire-level entity shapes. The mirror translates these into durable
// records; nil fields were absent on the wire.

type Chat struct {
	ID                    string  `json:"id"`
	Name                  *string `json:"name,omitempty"`
	UnreadCount           *int    `json:"unreadCount,omitempty"`
	ConversationTimestamp *int64  `json:"conversationTimestamp,omitempty"`
	Archived              *bool   `json:"archived,omitempty"`
	Pinned                *int64  `json:"pinned,omitempty"`
	MuteEndTime           *int64  `json:"muteEndTime,omitempty"`
	ReadOnly              *bool   `json:"readOnly,omitempty"`
}

type Contact struct {
	ID           string  `json:"id"`
	Name         *string `json:"name,omitempty"`
	Notify       *string `json:"notify,omitempty"`
	VerifiedName *string `json:"verifiedName,omitempty"`
	ImgURL       *string `json:"imgUrl,omitempty"`
	Status       *string `json:"status,omitempty"`
}

type Group struct {
	ID               string  `json:"id"`
	Subject          *string `json:"subject,omitempty"`
	Owner            *string `json:"owner,omitempty"`
	Description      *string `json:"desc,omitempty"`
	ParticipantCount *int    `json:"size,omitempty"`
	Creation         *int64  `json:"creation,omitempty"`
}

type Message struct {
	Key              model.MessageKey `json:"key"`
	PushName         *string          `json:"pushName,omitempty"`
	MessageTimestamp *int64           `json:"messageTimestamp,omitempty"`
	Status           *int             `json:"status,omitempty"`
	Content          json.RawMessage  `json:"message,omitempty"`
}

type HistorySet struct {
	Chats    []Chat    `json:"chats"`
	Contacts []Contact `json:"contacts"`
	Messages []Message `json:"messages"`
	IsLatest bool      `json:"isLatest"`
}

func (HistorySet) EventName() string { return EventHistorySet }

type ChatsUpsert struct {
	Chats []Chat `json:"chats"`
}

func (ChatsUpsert) EventName() string { return EventChatsUpsert }

type ChatsUpdate struct {
	Updates []Chat `json:"updates"`
}

func (ChatsUpdate) EventName() string { return EventChatsUpdate }

type ChatsDelete struct {
	IDs []string `json:"ids"`
}

func (ChatsDelete) EventName() string { return EventChatsDelete }

type ContactsUpsert struct {
	Contacts []Contact `json:"contacts"`
}

func (ContactsUpsert) EventName() string { return EventContactsUpsert }

type ContactsUpdate struct {
	Updates []Contact `json:"updates"`
}

func (ContactsUpdate) EventName() string { return EventContactsUpdate }

type GroupsUpsert struct {
	Groups []Group `json:"groups"`
}

func (GroupsUpsert) EventName() string { return EventGroupsUpsert }

type GroupsUpdate struct {
	Updates []Group `json:"updates"`
}

func (GroupsUpdate) EventName() string { return EventGroupsUpdate }

type MessagesUpsert struct {
	Messages []Message `json:"messages"`
	Type     string    `json:"type"`
}

func (MessagesUpsert) EventName() string { return EventMessagesUpsert }

type MessagesUpdate struct {
	Updates []Message `json:"updates"`
}

func (MessagesUpdate) EventName() string { return EventMessagesUpdate }

// MessagesDelete removes messages by key, or every message of one chat
// when All is set.
type MessagesDelete struct {
	Keys []model.MessageKey `json:"keys,omitempty"`
	All  bool               `json:"all,omitempty"`
	JID  string             `json:"jid,omitempty"`
}

func (MessagesDelete) EventName() string { return EventMessagesDelete }

type ReceiptUpdate struct {
	Updates []MessageReceipt `json:"updates"`
}

func (ReceiptUpdate) EventName() string { return EventReceiptUpdate }

type MessageReceipt struct {
	Key     model.MessageKey `json:"key"`
	Receipt model.Receipt    `json:"receipt"`
}

type ReactionUpdate struct {
	Updates []MessageReaction `json:"updates"`
}

func (ReactionUpdate) EventName() string { return EventMessagesReaction }

type MessageReaction struct {
	Key      model.MessageKey `json:"key"`
	Reaction model.Reaction   `json:"reaction"`
}
