package transport

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"chat-sync/bus"
	"chat-sync/domain"
	"chat-sync/domain/event"
	"chat-sync/errors"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a frame to the hub.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong from the hub.
	pongWait = 60 * time.Second

	// Ping period, must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Data URLs for a 5 MiB image exceed 6 MiB once base64 encoded.
	maxFrameSize = 16 << 20
)

type liveState int

const (
	liveIdle liveState = iota
	liveConnected
	liveReconnecting
	liveClosed
)

// Live implements the chat protocol over a persistent websocket
// connection to the hub. An unexpected disconnect moves the transport
// into a reconnecting state where outbound actions are rejected with
// ErrReconnecting; the caller degrades to the shared-store path rather
// than dropping content. Reconnection uses exponential backoff and
// re-joins with the last username on success.
type Live struct {
	log         *slog.Logger
	bus         *bus.Bus
	url         string
	dialTimeout time.Duration
	maxRetryFor time.Duration

	mu       sync.Mutex
	writeMu  sync.Mutex
	conn     *websocket.Conn
	state    liveState
	username string
}

func NewLive(log *slog.Logger, b *bus.Bus, url string, dialTimeout, maxRetryFor time.Duration) *Live {
	return &Live{
		log:         log,
		bus:         b,
		url:         url,
		dialTimeout: dialTimeout,
		maxRetryFor: maxRetryFor,
	}
}

// Connect dials the hub within the bounded timeout. Failure is wrapped
// in ErrTransportUnavailable so the session treats it as the fallback
// trigger, not a fatal error.
func (t *Live) Connect(ctx context.Context) error {
	conn, err := t.dial(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", errors.ErrTransportUnavailable, err)
	}
	t.adopt(conn)
	return nil
}

func (t *Live) Join(ctx context.Context, username string) error {
	t.mu.Lock()
	t.username = username
	t.mu.Unlock()
	return t.invoke(targetJoinChat, username)
}

func (t *Live) SendMessage(_ context.Context, msg domain.Message) error {
	return t.invoke(targetSendMessage, msg.User, msg.Text)
}

func (t *Live) SendImage(_ context.Context, msg domain.Message) error {
	return t.invoke(targetSendImage, msg.User, msg.Image)
}

func (t *Live) SetTyping(_ context.Context, typing bool) error {
	t.mu.Lock()
	username := t.username
	t.mu.Unlock()
	return t.invoke(targetUserTyping, username, typing)
}

// Close performs a graceful shutdown. Any action afterwards fails fast
// with ErrTransportClosed.
func (t *Live) Close() error {
	t.mu.Lock()
	conn := t.conn
	t.conn = nil
	t.state = liveClosed
	t.mu.Unlock()

	if conn == nil {
		return nil
	}
	t.writeMu.Lock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	t.writeMu.Unlock()
	return conn.Close()
}

func (t *Live) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: t.dialTimeout}
	conn, resp, err := dialer.DialContext(ctx, t.url, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	return conn, err
}

// adopt installs a freshly dialed connection and starts its pumps.
func (t *Live) adopt(conn *websocket.Conn) {
	conn.SetReadLimit(maxFrameSize)
	t.mu.Lock()
	t.conn = conn
	t.state = liveConnected
	t.mu.Unlock()
	go t.readPump(conn)
	go t.pinger(conn)
}

func (t *Live) invoke(target string, args ...any) error {
	env, err := newEnvelope(target, args...)
	if err != nil {
		return err
	}

	t.mu.Lock()
	state, conn := t.state, t.conn
	t.mu.Unlock()
	switch state {
	case liveReconnecting:
		return errors.ErrReconnecting
	case liveClosed:
		return errors.ErrTransportClosed
	case liveIdle:
		return errors.ErrTransportUnavailable
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(env)
}

// readPump decodes hub frames into bus events until the connection
// drops or is closed locally.
func (t *Live) readPump(conn *websocket.Conn) {
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var env envelope
		if err := conn.ReadJSON(&env); err != nil {
			t.handleDisconnect(conn, err)
			return
		}
		t.dispatch(env)
	}
}

func (t *Live) dispatch(env envelope) {
	switch env.Target {
	case targetReceiveMessage:
		var user, text string
		if err := env.decode(&user, &text); err != nil {
			t.log.Warn("Discarding malformed hub frame", "err", err)
			return
		}
		t.bus.Publish(event.MessageReceived{Message: domain.NewTextMessage(user, text)})
	case targetReceiveImage:
		var user, image string
		if err := env.decode(&user, &image); err != nil {
			t.log.Warn("Discarding malformed hub frame", "err", err)
			return
		}
		t.bus.Publish(event.MessageReceived{Message: domain.NewImageMessage(user, image)})
	case targetUserJoined:
		var user string
		if err := env.decode(&user); err != nil {
			t.log.Warn("Discarding malformed hub frame", "err", err)
			return
		}
		t.bus.Publish(event.UserJoined{User: user})
	case targetUserLeft:
		var user string
		if err := env.decode(&user); err != nil {
			t.log.Warn("Discarding malformed hub frame", "err", err)
			return
		}
		t.bus.Publish(event.UserLeft{User: user})
	case targetUserTyping:
		var user string
		var typing bool
		if err := env.decode(&user, &typing); err != nil {
			t.log.Warn("Discarding malformed hub frame", "err", err)
			return
		}
		t.mu.Lock()
		self := user == t.username
		t.mu.Unlock()
		if self {
			return
		}
		t.bus.Publish(event.TypingChanged{User: user, Typing: typing})
	case targetUpdateUserList:
		var users []string
		if err := env.decode(&users); err != nil {
			t.log.Warn("Discarding malformed hub frame", "err", err)
			return
		}
		t.bus.Publish(event.PresenceReplaced{Users: users})
	default:
		t.log.Debug("Unknown hub target", "target", env.Target)
	}
}

// handleDisconnect transitions into the reconnecting state unless the
// close was requested locally or the connection was already replaced.
func (t *Live) handleDisconnect(conn *websocket.Conn, err error) {
	t.mu.Lock()
	if t.state == liveClosed || t.conn != conn {
		t.mu.Unlock()
		return
	}
	t.conn = nil
	t.state = liveReconnecting
	t.mu.Unlock()
	_ = conn.Close()

	if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		t.log.Warn("Hub connection lost", "err", err)
	}
	t.bus.Publish(event.ConnectionStateChanged{State: domain.Reconnecting})
	go t.reconnect()
}

// reconnect retries the dial with exponential backoff until it
// succeeds, the transport is closed, or the retry budget runs out.
func (t *Live) reconnect() {
	var conn *websocket.Conn
	operation := func() error {
		if t.closed() {
			return backoff.Permanent(errors.ErrTransportClosed)
		}
		ctx, cancel := context.WithTimeout(context.Background(), t.dialTimeout)
		defer cancel()
		c, err := t.dial(ctx)
		if err != nil {
			t.log.Debug("Reconnect attempt failed", "err", err)
			return err
		}
		conn = c
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = t.maxRetryFor
	if err := backoff.Retry(operation, policy); err != nil {
		t.mu.Lock()
		t.state = liveClosed
		t.mu.Unlock()
		t.log.Warn("Giving up on hub reconnection", "err", err)
		t.bus.Publish(event.ConnectionStateChanged{State: domain.Disconnected})
		return
	}

	t.mu.Lock()
	if t.state == liveClosed {
		t.mu.Unlock()
		_ = conn.Close()
		return
	}
	username := t.username
	t.mu.Unlock()

	t.adopt(conn)
	if username != "" {
		if err := t.invoke(targetJoinChat, username); err != nil {
			t.log.Warn("Re-join after reconnect failed", "err", err)
		}
	}
	t.log.Info("Reconnected to hub", "url", t.url)
	t.bus.Publish(event.ConnectionStateChanged{State: domain.LiveConnected})
}

func (t *Live) closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state == liveClosed
}

func (t *Live) pinger(conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for range ticker.C {
		t.mu.Lock()
		active := t.conn == conn
		t.mu.Unlock()
		if !active {
			return
		}
		t.writeMu.Lock()
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		err := conn.WriteMessage(websocket.PingMessage, nil)
		t.writeMu.Unlock()
		if err != nil {
			return
		}
	}
}
