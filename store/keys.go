package store

import (
	"encoding/json"
	"time"

	"chat-sync/domain"

	"github.com/samber/lo"
)

// The three well-known keys of the shared-store contract. All values
// are JSON: the message log is an append-only array, the user list and
// typing marker are last-writer-wins full replacements.
const (
	KeyMessages = "chat_messages"
	KeyUsers    = "chat_users"
	KeyTyping   = "chat_typing"
)

type StoredMessage struct {
	ID        string    `json:"id"`
	User      string    `json:"user"`
	Text      string    `json:"text,omitempty"`
	Image     string    `json:"image,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type TypingMarker struct {
	User   string `json:"user"`
	Typing bool   `json:"typing"`
}

func FromMessage(m domain.Message) StoredMessage {
	return StoredMessage{
		ID:        m.ID,
		User:      m.User,
		Text:      m.Text,
		Image:     m.Image,
		Timestamp: m.Timestamp,
	}
}

func (sm StoredMessage) ToMessage() domain.Message {
	return domain.Message{
		ID:        sm.ID,
		User:      sm.User,
		Text:      sm.Text,
		Image:     sm.Image,
		Timestamp: sm.Timestamp,
	}
}

func EncodeMessages(messages []StoredMessage) ([]byte, error) {
	return json.Marshal(messages)
}

func DecodeMessages(value []byte) ([]StoredMessage, error) {
	var messages []StoredMessage
	if err := json.Unmarshal(value, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

func ToMessages(stored []StoredMessage) []domain.Message {
	return lo.Map(stored, func(sm StoredMessage, _ int) domain.Message {
		return sm.ToMessage()
	})
}

func EncodeUsers(users []string) ([]byte, error) {
	return json.Marshal(users)
}

func DecodeUsers(value []byte) ([]string, error) {
	var users []string
	if err := json.Unmarshal(value, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func EncodeTyping(marker TypingMarker) ([]byte, error) {
	return json.Marshal(marker)
}

func DecodeTyping(value []byte) (TypingMarker, error) {
	var marker TypingMarker
	if err := json.Unmarshal(value, &marker); err != nil {
		return TypingMarker{}, err
	}
	return marker, nil
}
