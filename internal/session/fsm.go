package session

import (
	"github.com/nagi1/baileys-api/internal/config"
	"github.com/nagi1/baileys-api/internal/model"
	"github.com/nagi1/baileys-api/internal/transport"
)

// CloseAction is what the supervisor does about a closed socket.
type CloseAction int

const (
	// CloseDestroyLoggedOut tears the session down permanently: the
	// account was logged out on the remote end.
	CloseDestroyLoggedOut CloseAction = iota
	// CloseReconnectNow recreates the session immediately, no backoff.
	CloseReconnectNow
	// CloseReconnectLater schedules a recreation after the configured
	// reconnect interval and consumes one retry.
	CloseReconnectLater
	// CloseDestroyExhausted tears the session down permanently: the
	// retry budget is spent.
	CloseDestroyExhausted
)

func (a CloseAction) String() string {
	switch a {
	case CloseDestroyLoggedOut:
		return "destroy:logged-out"
	case CloseReconnectNow:
		return "reconnect:now"
	case CloseReconnectLater:
		return "reconnect:later"
	case CloseDestroyExhausted:
		return "destroy:retries-exhausted"
	default:
		return "unknown"
	}
}

// DecideClose classifies a socket close into the supervisor's next
// action. retries is the session's current retry count, before this
// close is accounted for; maxRetries may be the unlimited sentinel.
// Pure function: state in, decision out.
func DecideClose(disconnect *transport.Disconnect, retries, maxRetries int) CloseAction {
	if disconnect != nil && disconnect.Code == transport.DisconnectLoggedOut {
		return CloseDestroyLoggedOut
	}
	if disconnect != nil && disconnect.Code == transport.DisconnectRestartRequired {
		return CloseReconnectNow
	}
	if maxRetries != config.MaxReconnectRetriesUnlimited && retries >= maxRetries {
		return CloseDestroyExhausted
	}
	return CloseReconnectLater
}

// mapStatus maps the raw socket phase to the API status, overridden by
// AUTHENTICATED whenever the transport reports an identified account:
// authentication is a stronger signal than the socket phase.
func mapStatus(state transport.ReadyState, authenticated bool) model.SessionStatus {
	if authenticated {
		return model.SessionStatusAuthenticated
	}
	switch state {
	case transport.ReadyStateConnecting:
		return model.SessionStatusConnecting
	case transport.ReadyStateOpen:
		return model.SessionStatusConnected
	case transport.ReadyStateClosing:
		return model.SessionStatusDisconnecting
	default:
		return model.SessionStatusDisconnected
	}
}
