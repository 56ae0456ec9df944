// Package session orchestrates transport selection, failover, and the
// unified state model exposed to the UI layer. The session is the
// single source of truth for the message log, the presence set, the
// typing state, and the connection lifecycle; it is the exclusive
// consumer of bus events and the exclusive entry point for user
// actions.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"chat-sync/bus"
	"chat-sync/contract"
	"chat-sync/domain"
	"chat-sync/domain/event"
	"chat-sync/errors"
	"chat-sync/moderation"
	"chat-sync/search"
	"chat-sync/store"
)

// MessageView is a message with ownership derived at read time.
type MessageView struct {
	domain.Message
	Own bool
}

type Session struct {
	log            *slog.Logger
	bus            *bus.Bus
	live           contract.Transport
	simulated      contract.Transport
	store          *store.Context
	index          *search.Index
	moderator      *moderation.Moderator
	connectTimeout time.Duration

	mu            sync.Mutex
	started       bool
	joined        bool
	simulatedMode bool
	state         domain.SessionState
	username      string
	active        contract.Transport
	messages      []domain.Message
	seen          map[string]struct{}
	pendingEcho   map[string]int
	presence      *domain.PresenceSet
	typing        domain.TypingState
	subs          []*bus.Subscription
}

// New wires a session over both transport variants. The moderator may
// be nil; everything else is required. The store context backs the
// degraded write path even while the live transport is active, so an
// attempted send always ends up transmitted or locally stored.
func New(log *slog.Logger, b *bus.Bus, live, simulated contract.Transport,
	storeCtx *store.Context, moderator *moderation.Moderator,
	connectTimeout time.Duration) (*Session, error) {

	index, err := search.NewIndex()
	if err != nil {
		return nil, fmt.Errorf("opening history index: %w", err)
	}
	return &Session{
		log:            log,
		bus:            b,
		live:           live,
		simulated:      simulated,
		store:          storeCtx,
		index:          index,
		moderator:      moderator,
		connectTimeout: connectTimeout,
		state:          domain.Disconnected,
		seen:           make(map[string]struct{}),
		pendingEcho:    make(map[string]int),
		presence:       domain.NewPresenceSet(""),
	}, nil
}

// Start attempts the live transport first and falls back to simulated
// mode when the hub is unreachable. The fallback is a success path: no
// error surfaces to the caller beyond the informational log. Calling
// Start twice is a no-op.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.state = domain.ConnectingLive
	s.mu.Unlock()

	s.subscribeAll()

	dialCtx, cancel := context.WithTimeout(ctx, s.connectTimeout)
	defer cancel()

	if err := s.live.Connect(dialCtx); err != nil {
		s.log.Info("Hub unreachable, switching to simulated mode", "err", err)
		if err := s.simulated.Connect(ctx); err != nil {
			return fmt.Errorf("simulated transport: %w", err)
		}
		s.mu.Lock()
		s.active = s.simulated
		s.simulatedMode = true
		s.state = domain.Simulated
		s.mu.Unlock()
		return nil
	}

	s.mu.Lock()
	s.active = s.live
	s.state = domain.LiveConnected
	s.mu.Unlock()
	s.log.Info("Connected to hub")
	return nil
}

// Join validates the username and delegates to the active transport.
// A live-side join failure triggers failover to simulated mode rather
// than surfacing as a user-visible error. In simulated mode the
// transport replays the store snapshot, which hydrates the log and
// presence set through the usual event path.
func (s *Session) Join(ctx context.Context, rawUsername string) error {
	username, err := domain.ValidateUsername(rawUsername)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return errors.ErrTransportUnavailable
	}
	if s.joined {
		s.mu.Unlock()
		return nil
	}
	s.username = username
	s.presence = domain.NewPresenceSet(username)
	active := s.active
	s.mu.Unlock()

	if err := active.Join(ctx, username); err != nil {
		s.mu.Lock()
		alreadySimulated := s.simulatedMode
		s.mu.Unlock()
		if alreadySimulated {
			return err
		}

		s.log.Info("Live join failed, switching to simulated mode", "err", err)
		if err := s.simulated.Connect(ctx); err != nil {
			return fmt.Errorf("simulated transport: %w", err)
		}
		if err := s.simulated.Join(ctx, username); err != nil {
			return err
		}
		s.mu.Lock()
		s.active = s.simulated
		s.simulatedMode = true
		s.mu.Unlock()
	}

	s.mu.Lock()
	s.joined = true
	s.state = domain.Joined
	s.mu.Unlock()
	return nil
}

// SendText appends an optimistic local echo before delegating, so the
// sender sees their own message with zero added latency. The transport
// echo of the same message is deduplicated on arrival. If the live
// invocation fails the content degrades to a shared-store write; it is
// never dropped.
func (s *Session) SendText(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	s.mu.Lock()
	if !s.joined {
		s.mu.Unlock()
		return errors.ErrNotJoined
	}
	username := s.username
	active := s.active
	s.mu.Unlock()

	if s.moderator != nil {
		masked, found := s.moderator.Censor(text)
		if len(found) > 0 {
			s.log.Debug("Masked outbound message",
				"words", len(found),
				"lang", moderation.DetectLanguage(text))
			text = masked
		}
	}

	msg := domain.NewTextMessage(username, text)
	s.applyOptimistic(msg)

	if err := active.SendMessage(ctx, msg); err != nil {
		s.degrade(msg, err)
	}
	return nil
}

// SendImage validates and encodes the raw image, then follows the
// same optimistic-echo path as text. Validation failures are
// user-visible and happen before any transport call.
func (s *Session) SendImage(ctx context.Context, data []byte) error {
	s.mu.Lock()
	if !s.joined {
		s.mu.Unlock()
		return errors.ErrNotJoined
	}
	username := s.username
	active := s.active
	s.mu.Unlock()

	dataURL, err := domain.EncodeImage(data)
	if err != nil {
		return err
	}

	msg := domain.NewImageMessage(username, dataURL)
	s.applyOptimistic(msg)

	if err := active.SendImage(ctx, msg); err != nil {
		s.degrade(msg, err)
	}
	return nil
}

// SetTyping is fire and forget. Typing indicators are best effort;
// failures are logged, never surfaced.
func (s *Session) SetTyping(ctx context.Context, typing bool) {
	s.mu.Lock()
	joined := s.joined
	active := s.active
	s.mu.Unlock()
	if !joined {
		return
	}
	if err := active.SetTyping(ctx, typing); err != nil {
		s.log.Debug("Typing indicator not delivered", "err", err)
	}
}

// Search runs a /find query against the session's text history.
func (s *Session) Search(ctx context.Context, rawQuery string) ([]MessageView, error) {
	query := search.ParseQuery(rawQuery)
	ids, err := s.index.Search(ctx, query)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	byID := make(map[string]domain.Message, len(s.messages))
	for _, m := range s.messages {
		byID[m.ID] = m
	}
	var out []MessageView
	for _, id := range ids {
		if m, ok := byID[id]; ok {
			out = append(out, MessageView{Message: m, Own: m.Own(s.username)})
		}
	}
	return out, nil
}

// Close tears the session down: bus subscriptions cancelled, store
// observers released, transport closed gracefully. Safe to call more
// than once.
func (s *Session) Close() error {
	s.mu.Lock()
	subs := s.subs
	s.subs = nil
	active := s.active
	s.joined = false
	s.state = domain.Disconnected
	s.mu.Unlock()

	for _, sub := range subs {
		sub.Cancel()
	}
	_ = s.index.Close()
	if active == nil {
		return nil
	}
	return active.Close()
}

// Messages returns the log in arrival order with ownership computed.
func (s *Session) Messages() []MessageView {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]MessageView, len(s.messages))
	for i, m := range s.messages {
		out[i] = MessageView{Message: m, Own: m.Own(s.username)}
	}
	return out
}

// Presence returns the remote users in insertion order.
func (s *Session) Presence() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.presence.Users()
}

// Typing reports the remote user currently typing, if any.
func (s *Session) Typing() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.typing.User, s.typing.Typing
}

func (s *Session) State() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// StatusBadge maps the lifecycle onto the three visible connection
// states of the UI contract.
func (s *Session) StatusBadge() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.simulatedMode:
		return "Simulated"
	case s.state == domain.Reconnecting:
		return "Reconnecting"
	case s.state == domain.LiveConnected || s.state == domain.Joined:
		return "Connected"
	default:
		return "Demo Mode"
	}
}

func (s *Session) subscribeAll() {
	subs := []*bus.Subscription{
		s.bus.Subscribe(event.KindMessageReceived, s.onEvent),
		s.bus.Subscribe(event.KindUserJoined, s.onEvent),
		s.bus.Subscribe(event.KindUserLeft, s.onEvent),
		s.bus.Subscribe(event.KindTypingChanged, s.onEvent),
		s.bus.Subscribe(event.KindPresenceReplaced, s.onEvent),
		s.bus.Subscribe(event.KindConnectionState, s.onEvent),
	}
	s.mu.Lock()
	s.subs = append(s.subs, subs...)
	s.mu.Unlock()
}

func (s *Session) onEvent(e event.DomainEvent) {
	switch evt := e.(type) {
	case event.MessageReceived:
		s.applyMessage(evt.Message)
	case event.UserJoined:
		s.mu.Lock()
		if s.presence.Add(evt.User) {
			s.log.Info("User joined", "user", evt.User)
		}
		s.mu.Unlock()
	case event.UserLeft:
		s.mu.Lock()
		if s.presence.Remove(evt.User) {
			s.log.Info("User left", "user", evt.User)
			if s.typing.User == evt.User {
				s.typing.Clear()
			}
		}
		s.mu.Unlock()
	case event.TypingChanged:
		s.mu.Lock()
		s.typing.Apply(evt.User, evt.Typing)
		s.mu.Unlock()
	case event.PresenceReplaced:
		s.mu.Lock()
		s.presence.Replace(evt.Users)
		s.mu.Unlock()
	case event.ConnectionStateChanged:
		s.applyConnectionState(evt.State)
	}
}

// applyOptimistic records the local echo and registers a pending
// fingerprint so a transport echo without our identifier (the live
// hub strips them) can still be recognized and dropped.
func (s *Session) applyOptimistic(msg domain.Message) {
	s.mu.Lock()
	s.seen[msg.ID] = struct{}{}
	s.pendingEcho[fingerprint(msg)]++
	s.messages = append(s.messages, msg)
	s.mu.Unlock()

	if err := s.index.Add(msg); err != nil {
		s.log.Debug("History index rejected message", "err", err)
	}
}

// applyMessage appends an inbound message unless it is a duplicate:
// either an identifier we already hold, or the hub's echo of a
// pending optimistic send.
func (s *Session) applyMessage(msg domain.Message) {
	s.mu.Lock()
	if _, ok := s.seen[msg.ID]; ok {
		// Simulated-mode echo carries our identifier; consume the
		// pending fingerprint so a later identical send still matches.
		s.consumeEcho(msg)
		s.mu.Unlock()
		return
	}
	s.seen[msg.ID] = struct{}{}
	if msg.User == s.username && s.consumeEcho(msg) {
		s.mu.Unlock()
		return
	}
	s.messages = append(s.messages, msg)
	s.mu.Unlock()

	if err := s.index.Add(msg); err != nil {
		s.log.Debug("History index rejected message", "err", err)
	}
}

// consumeEcho must be called with the lock held.
func (s *Session) consumeEcho(msg domain.Message) bool {
	fp := fingerprint(msg)
	if s.pendingEcho[fp] == 0 {
		return false
	}
	s.pendingEcho[fp]--
	if s.pendingEcho[fp] == 0 {
		delete(s.pendingEcho, fp)
	}
	return true
}

func (s *Session) applyConnectionState(state domain.SessionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch state {
	case domain.Reconnecting:
		s.state = domain.Reconnecting
	case domain.LiveConnected:
		if s.joined {
			s.state = domain.Joined
		} else {
			s.state = domain.LiveConnected
		}
	case domain.Disconnected:
		// The joined guarantee is revoked; further sends fail fast.
		s.joined = false
		s.state = domain.Disconnected
		s.log.Warn("Connection to hub lost for good")
	}
}

// degrade writes the already-echoed message to the shared store when
// the live invocation is rejected, so the content survives.
func (s *Session) degrade(msg domain.Message, cause error) {
	s.log.Warn("Transport rejected send, writing to shared store", "err", cause)

	// No transport echo will arrive for this message anymore.
	s.mu.Lock()
	s.consumeEcho(msg)
	s.mu.Unlock()

	raw, err := s.store.Read(store.KeyMessages)
	var stored []store.StoredMessage
	if err == nil {
		if stored, err = store.DecodeMessages(raw); err != nil {
			s.log.Error("Shared store log unreadable", "err", err)
			stored = nil
		}
	} else if err != errors.ErrKeyAbsent {
		s.log.Error("Shared store read failed", "err", err)
	}

	stored = append(stored, store.FromMessage(msg))
	value, err := store.EncodeMessages(stored)
	if err != nil {
		s.log.Error("Encoding degraded message failed", "err", err)
		return
	}
	if err := s.store.Write(store.KeyMessages, value); err != nil {
		s.log.Error("Degraded store write failed", "err", err)
	}
}

func fingerprint(m domain.Message) string {
	if m.IsImage() {
		return "image\x00" + m.Image
	}
	return "text\x00" + m.Text
}
