// Package event defines the transport-agnostic events flowing through
// the bus. Both transports normalize their inbound traffic into these
// kinds, which keeps the session and UI layers unaware of which
// transport produced an event.
package event

import "chat-sync/domain"

type Kind string

const (
	KindMessageReceived  Kind = "message.received"
	KindUserJoined       Kind = "user.joined"
	KindUserLeft         Kind = "user.left"
	KindTypingChanged    Kind = "typing.changed"
	KindPresenceReplaced Kind = "presence.replaced"
	KindConnectionState  Kind = "connection.state"
)

type DomainEvent interface {
	Kind() Kind
}

// MessageReceived carries a normalized message, whether it arrived
// from the hub, from another store context, or as a transport
// self-echo of a local send.
type MessageReceived struct {
	Message domain.Message
}

func (MessageReceived) Kind() Kind { return KindMessageReceived }

type UserJoined struct {
	User string
}

func (UserJoined) Kind() Kind { return KindUserJoined }

type UserLeft struct {
	User string
}

func (UserLeft) Kind() Kind { return KindUserLeft }

type TypingChanged struct {
	User   string
	Typing bool
}

func (TypingChanged) Kind() Kind { return KindTypingChanged }

// PresenceReplaced replaces the whole presence set, last writer wins.
type PresenceReplaced struct {
	Users []string
}

func (PresenceReplaced) Kind() Kind { return KindPresenceReplaced }

type ConnectionStateChanged struct {
	State domain.SessionState
}

func (ConnectionStateChanged) Kind() Kind { return KindConnectionState }
