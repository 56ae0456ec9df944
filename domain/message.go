// Package domain contains the core concepts of the chat client.
// This file defines Message and related rules.
// Messages are immutable once created and are never deleted during a session.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message represents one immutable chat entry. Exactly one of Text or
// Image is set. Ownership is never stored; it is derived at read time
// by comparing the sender against the local username.
type Message struct {
	ID        string // unique, opaque; generated locally with enough entropy to survive concurrent senders
	User      string
	Text      string
	Image     string // data URL; empty unless this is an image message
	Timestamp time.Time
}

func NewTextMessage(user, text string) Message {
	return Message{
		ID:        uuid.NewString(),
		User:      user,
		Text:      text,
		Timestamp: time.Now().UTC(),
	}
}

func NewImageMessage(user, dataURL string) Message {
	return Message{
		ID:        uuid.NewString(),
		User:      user,
		Image:     dataURL,
		Timestamp: time.Now().UTC(),
	}
}

func (m Message) IsImage() bool {
	return m.Image != ""
}

// Own reports whether the message was authored by the given local user.
func (m Message) Own(localUser string) bool {
	return m.User == localUser
}
