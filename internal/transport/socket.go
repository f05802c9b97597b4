// Package transport defines the contract between the gateway and the
// wire-level protocol client. The protocol implementation itself
// (encryption, framing, handshake) lives behind the Socket interface
// and is injected through a Factory.
package transport

import (
	"context"
	"encoding/json"

	"github.com/nagi1/baileys-api/internal/model"
)

// ReadyState is the raw socket phase.
type ReadyState int

const (
	ReadyStateConnecting ReadyState = iota
	ReadyStateOpen
	ReadyStateClosing
	ReadyStateClosed
)

// JIDKind distinguishes lookup targets for Exists.
type JIDKind string

const (
	JIDKindUser  JIDKind = "number"
	JIDKindGroup JIDKind = "group"
)

// KeyStore is the key-material store the protocol layer reads and writes
// during handshake and ongoing operation. Get returns only the ids that
// exist; Set treats a nil value as removal.
type KeyStore interface {
	Get(ctx context.Context, category string, ids []string) (map[string][]byte, error)
	Set(ctx context.Context, patches map[string]map[string][]byte) error
}

// AuthState is the credential hand-off given to a new socket.
type AuthState struct {
	Creds *model.AuthCreds
	Keys  KeyStore
}

// SocketOptions configures one socket instance.
type SocketOptions struct {
	SessionID string
	Proxy     string
	Config    json.RawMessage
	Auth      AuthState
}

// Socket is one live connection to one external messaging account.
// Implementations emit events on the Events channel until End or Logout
// closes it. Events must be consumed promptly; delivery order within one
// socket is the protocol order.
type Socket interface {
	Connect(ctx context.Context) error
	Events() <-chan Event
	Logout(ctx context.Context) error
	End(err error)
	ReadyState() ReadyState

	// User is non-nil once the transport has identified the account.
	User() *model.UserIdentity

	// RequestPairingCode asks the transport for a numeric linking code
	// for the given phone number. Only valid once the socket has
	// signalled QR readiness.
	RequestPairingCode(ctx context.Context, phoneNumber string) (string, error)

	// ReadMessages marks the given messages as read on the transport.
	ReadMessages(ctx context.Context, keys []model.MessageKey) error

	// Exists checks whether a jid is reachable on the transport.
	Exists(ctx context.Context, jid string, kind JIDKind) (bool, error)
}

// Factory constructs sockets. Injected so the session manager (and
// tests) control the concrete protocol client.
type Factory interface {
	NewSocket(ctx context.Context, opts SocketOptions) (Socket, error)
}

// FactoryFunc adapts a function to the Factory interface.
type FactoryFunc func(ctx context.Context, opts SocketOptions) (Socket, error)

func (f FactoryFunc) NewSocket(ctx context.Context, opts SocketOptions) (Socket, error) {
	return f(ctx, opts)
}

var defaultFactory Factory

// RegisterFactory installs the process-wide socket factory. Protocol
// client packages call this from init.
func RegisterFactory(f Factory) {
	defaultFactory = f
}

// DefaultFactory returns the registered factory, nil when no protocol
// client package is linked in.
func DefaultFactory() Factory {
	return defaultFactory
}
