// Package transport holds the two Transport implementations: the live
// websocket hub connection and the simulated peer channel built on the
// shared store.
package transport

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"chat-sync/bus"
	"chat-sync/domain"
	"chat-sync/domain/event"
	"chat-sync/errors"
	"chat-sync/store"

	"github.com/samber/lo"
)

// Simulated implements the chat protocol purely through the shared
// store. Because the store suppresses own-write notifications, every
// send self-delivers a local event; that is this transport's
// equivalent of the hub broadcasting back to the sender.
//
// Known consistency gap: appending to the message log is a
// read-modify-write with no atomic append or optimistic-concurrency
// check, so two contexts appending at the same instant can lose one
// update. Accepted for a best-effort simulated mode.
type Simulated struct {
	log      *slog.Logger
	bus      *bus.Bus
	store    *store.Context
	username string

	mu        sync.Mutex
	delivered map[string]struct{}
	cancels   []func()
}

func NewSimulated(log *slog.Logger, b *bus.Bus, storeCtx *store.Context) *Simulated {
	return &Simulated{
		log:       log,
		bus:       b,
		store:     storeCtx,
		delivered: make(map[string]struct{}),
	}
}

// Connect is trivially successful: the shared store is always
// reachable. Kept for symmetry with the live transport.
func (t *Simulated) Connect(_ context.Context) error {
	return nil
}

// Join appends the username to the shared presence list if absent,
// starts observing the three chat keys, and replays the current store
// snapshot as events so the caller's state hydrates.
func (t *Simulated) Join(_ context.Context, username string) error {
	t.mu.Lock()
	t.username = username
	t.mu.Unlock()

	users, err := t.readUsers()
	if err != nil {
		return err
	}
	if !lo.Contains(users, username) {
		users = append(users, username)
		value, err := store.EncodeUsers(users)
		if err != nil {
			return err
		}
		if err := t.store.Write(store.KeyUsers, value); err != nil {
			return fmt.Errorf("writing presence list: %w", err)
		}
	}

	// A re-join must not stack a second observer set; one set per open
	// transport, or every remote write gets published twice.
	t.mu.Lock()
	if t.cancels == nil {
		t.cancels = []func(){
			t.store.Observe(store.KeyMessages, t.onMessages),
			t.store.Observe(store.KeyUsers, t.onUsers),
			t.store.Observe(store.KeyTyping, t.onTyping),
		}
	}
	t.mu.Unlock()

	t.publishPresence(users)
	return t.replayLog()
}

func (t *Simulated) SendMessage(_ context.Context, msg domain.Message) error {
	return t.append(msg)
}

func (t *Simulated) SendImage(_ context.Context, msg domain.Message) error {
	return t.append(msg)
}

// SetTyping replaces the typing marker, latest writer wins.
func (t *Simulated) SetTyping(_ context.Context, typing bool) error {
	t.mu.Lock()
	username := t.username
	t.mu.Unlock()

	value, err := store.EncodeTyping(store.TypingMarker{User: username, Typing: typing})
	if err != nil {
		return err
	}
	return t.store.Write(store.KeyTyping, value)
}

// Close cancels the store observers so no handler leaks across
// session restarts.
func (t *Simulated) Close() error {
	t.mu.Lock()
	cancels := t.cancels
	t.cancels = nil
	t.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	return nil
}

// append performs the read-modify-write on the message log and
// self-delivers the message, since the store will not notify us of
// our own write.
func (t *Simulated) append(msg domain.Message) error {
	stored, err := t.readLog()
	if err != nil {
		return err
	}
	stored = append(stored, store.FromMessage(msg))
	value, err := store.EncodeMessages(stored)
	if err != nil {
		return err
	}
	if err := t.store.Write(store.KeyMessages, value); err != nil {
		return fmt.Errorf("appending to message log: %w", err)
	}

	t.markDelivered(msg.ID)
	t.bus.Publish(event.MessageReceived{Message: msg})
	return nil
}

// onMessages re-reads the full log and emits only messages not already
// delivered. The log is append-only, so diffing by identifier is safe.
func (t *Simulated) onMessages(value []byte) {
	stored, err := store.DecodeMessages(value)
	if err != nil {
		t.log.Warn("Discarding malformed message log", "err", err)
		return
	}

	var fresh []domain.Message
	t.mu.Lock()
	for _, sm := range stored {
		if _, ok := t.delivered[sm.ID]; ok {
			continue
		}
		t.delivered[sm.ID] = struct{}{}
		fresh = append(fresh, sm.ToMessage())
	}
	t.mu.Unlock()

	for _, msg := range fresh {
		t.bus.Publish(event.MessageReceived{Message: msg})
	}
}

// onUsers replaces the local presence set wholesale.
func (t *Simulated) onUsers(value []byte) {
	users, err := store.DecodeUsers(value)
	if err != nil {
		t.log.Warn("Discarding malformed presence list", "err", err)
		return
	}
	t.publishPresence(users)
}

// onTyping drops our own marker, belt and braces on top of the
// store's own-write suppression.
func (t *Simulated) onTyping(value []byte) {
	marker, err := store.DecodeTyping(value)
	if err != nil {
		t.log.Warn("Discarding malformed typing marker", "err", err)
		return
	}

	t.mu.Lock()
	self := marker.User == t.username
	t.mu.Unlock()
	if self {
		return
	}
	t.bus.Publish(event.TypingChanged{User: marker.User, Typing: marker.Typing})
}

func (t *Simulated) publishPresence(users []string) {
	t.mu.Lock()
	username := t.username
	t.mu.Unlock()

	remote := lo.Filter(users, func(u string, _ int) bool { return u != username })
	t.bus.Publish(event.PresenceReplaced{Users: remote})
}

// replayLog emits the current log snapshot so a joining context sees
// the history written by earlier contexts.
func (t *Simulated) replayLog() error {
	value, err := t.store.Read(store.KeyMessages)
	if err == errors.ErrKeyAbsent {
		return nil
	}
	if err != nil {
		return err
	}
	t.onMessages(value)
	return nil
}

func (t *Simulated) readLog() ([]store.StoredMessage, error) {
	value, err := t.store.Read(store.KeyMessages)
	if err == errors.ErrKeyAbsent {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return store.DecodeMessages(value)
}

func (t *Simulated) readUsers() ([]string, error) {
	value, err := t.store.Read(store.KeyUsers)
	if err == errors.ErrKeyAbsent {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return store.DecodeUsers(value)
}

func (t *Simulated) markDelivered(id string) {
	t.mu.Lock()
	t.delivered[id] = struct{}{}
	t.mu.Unlock()
}
