package transport

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"chat-sync/bus"
	"chat-sync/domain"
	"chat-sync/domain/event"
	"chat-sync/errors"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

var upgrader = websocket.Upgrader{}

// fakeHub upgrades one connection and hands it to the test.
func fakeHub(t *testing.T) (*httptest.Server, chan *websocket.Conn) {
	t.Helper()
	conns := make(chan *websocket.Conn, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conns <- conn
	}))
	t.Cleanup(srv.Close)
	return srv, conns
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestLive_JoinInvokesHubMethod(t *testing.T) {
	req := require.New(t)
	srv, conns := fakeHub(t)

	live := NewLive(slog.Default(), bus.New(slog.Default()), wsURL(srv), time.Second, time.Second)
	req.NoError(live.Connect(context.Background()))
	defer live.Close()
	req.NoError(live.Join(context.Background(), "alice"))

	hubSide := <-conns
	defer hubSide.Close()

	var env envelope
	req.NoError(hubSide.ReadJSON(&env))
	req.Equal("JoinChat", env.Target)

	var username string
	req.NoError(env.decode(&username))
	req.Equal("alice", username)
}

func TestLive_DispatchesInboundFrames(t *testing.T) {
	req := require.New(t)
	srv, conns := fakeHub(t)
	b := bus.New(slog.Default())

	messages := make(chan event.MessageReceived, 1)
	b.Subscribe(event.KindMessageReceived, func(e event.DomainEvent) {
		messages <- e.(event.MessageReceived)
	})
	presence := make(chan event.PresenceReplaced, 1)
	b.Subscribe(event.KindPresenceReplaced, func(e event.DomainEvent) {
		presence <- e.(event.PresenceReplaced)
	})

	live := NewLive(slog.Default(), b, wsURL(srv), time.Second, time.Second)
	req.NoError(live.Connect(context.Background()))
	defer live.Close()

	hubSide := <-conns
	defer hubSide.Close()

	env, err := newEnvelope("ReceiveMessage", "bob", "hello alice")
	req.NoError(err)
	req.NoError(hubSide.WriteJSON(env))

	select {
	case evt := <-messages:
		req.Equal("bob", evt.Message.User)
		req.Equal("hello alice", evt.Message.Text)
		req.NotEmpty(evt.Message.ID)
	case <-time.After(time.Second):
		req.Fail("no message dispatched")
	}

	env, err = newEnvelope("UpdateUserList", []string{"alice", "bob"})
	req.NoError(err)
	req.NoError(hubSide.WriteJSON(env))

	select {
	case evt := <-presence:
		req.Equal([]string{"alice", "bob"}, evt.Users)
	case <-time.After(time.Second):
		req.Fail("no presence dispatched")
	}
}

func TestLive_OwnTypingEchoIsSuppressed(t *testing.T) {
	req := require.New(t)
	srv, conns := fakeHub(t)
	b := bus.New(slog.Default())

	typing := make(chan event.TypingChanged, 2)
	b.Subscribe(event.KindTypingChanged, func(e event.DomainEvent) {
		typing <- e.(event.TypingChanged)
	})

	live := NewLive(slog.Default(), b, wsURL(srv), time.Second, time.Second)
	req.NoError(live.Connect(context.Background()))
	defer live.Close()
	req.NoError(live.Join(context.Background(), "alice"))

	hubSide := <-conns
	defer hubSide.Close()

	for _, user := range []string{"alice", "bob"} {
		env, err := newEnvelope("UserTyping", user, true)
		req.NoError(err)
		req.NoError(hubSide.WriteJSON(env))
	}

	select {
	case evt := <-typing:
		// Only the remote user's indicator surfaces
		req.Equal("bob", evt.User)
		req.True(evt.Typing)
	case <-time.After(time.Second):
		req.Fail("no typing dispatched")
	}
	req.Empty(typing)
}

func TestLive_ConnectFailureIsTransportUnavailable(t *testing.T) {
	req := require.New(t)

	live := NewLive(slog.Default(), bus.New(slog.Default()),
		"ws://127.0.0.1:1/chathub", 200*time.Millisecond, time.Second)

	err := live.Connect(context.Background())
	req.ErrorIs(err, errors.ErrTransportUnavailable)
}

func TestLive_SendBeforeConnectFailsFast(t *testing.T) {
	req := require.New(t)

	live := NewLive(slog.Default(), bus.New(slog.Default()),
		"ws://127.0.0.1:1/chathub", time.Second, time.Second)

	err := live.SetTyping(context.Background(), true)
	req.ErrorIs(err, errors.ErrTransportUnavailable)
}

func TestLive_DisconnectEntersReconnecting(t *testing.T) {
	req := require.New(t)
	srv, conns := fakeHub(t)
	b := bus.New(slog.Default())

	states := make(chan event.ConnectionStateChanged, 2)
	b.Subscribe(event.KindConnectionState, func(e event.DomainEvent) {
		states <- e.(event.ConnectionStateChanged)
	})

	live := NewLive(slog.Default(), b, wsURL(srv), time.Second, time.Second)
	req.NoError(live.Connect(context.Background()))
	defer live.Close()

	// Stop the listener first so the reconnect attempts keep failing
	hubSide := <-conns
	srv.Close()
	hubSide.Close()

	select {
	case evt := <-states:
		req.Equal(domain.Reconnecting, evt.State)
	case <-time.After(time.Second):
		req.Fail("no state change published")
	}

	// While reconnecting, sends are rejected so the caller can degrade
	req.Eventually(func() bool {
		err := live.SetTyping(context.Background(), true)
		return err == errors.ErrReconnecting || err == errors.ErrTransportClosed
	}, time.Second, 10*time.Millisecond)
}

func TestLive_ReconnectsAndRejoins(t *testing.T) {
	req := require.New(t)
	srv, conns := fakeHub(t)
	b := bus.New(slog.Default())

	states := make(chan event.ConnectionStateChanged, 4)
	b.Subscribe(event.KindConnectionState, func(e event.DomainEvent) {
		states <- e.(event.ConnectionStateChanged)
	})

	live := NewLive(slog.Default(), b, wsURL(srv), time.Second, 5*time.Second)
	req.NoError(live.Connect(context.Background()))
	defer live.Close()
	req.NoError(live.Join(context.Background(), "alice"))

	first := <-conns
	var env envelope
	req.NoError(first.ReadJSON(&env)) // JoinChat
	first.Close()

	// The transport dials again and re-joins with the same username
	second := <-conns
	defer second.Close()
	req.NoError(second.ReadJSON(&env))
	req.Equal("JoinChat", env.Target)

	var username string
	req.NoError(env.decode(&username))
	req.Equal("alice", username)
}
