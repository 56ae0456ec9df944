package session

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"chat-sync/bus"
	"chat-sync/domain"
	"chat-sync/domain/event"
	"chat-sync/errors"
	"chat-sync/mocks"
	"chat-sync/store"
	"chat-sync/transport"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type fixture struct {
	session *Session
	bus     *bus.Bus
	store   *store.Store
	live    *mocks.MockTransport
}

// newFixture wires a session over a mocked live transport and a real
// simulated transport backed by a throwaway store.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	live := mocks.NewMockTransport(ctrl)
	live.EXPECT().Close().Return(nil).AnyTimes()

	s, err := store.Open(t.TempDir(), slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	b := bus.New(slog.Default())
	simulated := transport.NewSimulated(slog.Default(), b, s.NewContext())

	sess, err := New(slog.Default(), b, live, simulated, s.NewContext(), nil, time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sess.Close() })

	return &fixture{session: sess, bus: b, store: s, live: live}
}

func (f *fixture) startLive(t *testing.T) {
	t.Helper()
	f.live.EXPECT().Connect(gomock.Any()).Return(nil)
	require.NoError(t, f.session.Start(context.Background()))
}

func (f *fixture) joinLive(t *testing.T, username string) {
	t.Helper()
	f.live.EXPECT().Join(gomock.Any(), username).Return(nil)
	require.NoError(t, f.session.Join(context.Background(), username))
}

func TestSession_JoinBeforeStartFails(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	err := f.session.Join(context.Background(), "alice")
	req.ErrorIs(err, errors.ErrTransportUnavailable)
}

func TestSession_JoinValidatesUsername(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.startLive(t)

	req.ErrorIs(f.session.Join(context.Background(), ""), errors.ErrUsernameRequired)
	req.ErrorIs(f.session.Join(context.Background(), "   "), errors.ErrUsernameRequired)
}

func TestSession_ConnectFailureFallsBackToSimulated(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	f.live.EXPECT().Connect(gomock.Any()).Return(errors.ErrTransportUnavailable)

	req.NoError(f.session.Start(context.Background()))
	req.Equal("Simulated", f.session.StatusBadge())
	req.Equal(domain.Simulated, f.session.State())

	// The whole protocol keeps working over the shared store
	req.NoError(f.session.Join(context.Background(), "alice"))
	req.NoError(f.session.SendText(context.Background(), "hello"))

	views := f.session.Messages()
	req.Len(views, 1)
	req.Equal("hello", views[0].Text)
	req.True(views[0].Own)
}

func TestSession_LiveJoinFailureFailsOverToSimulated(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.startLive(t)

	f.live.EXPECT().Join(gomock.Any(), "alice").Return(errors.ErrTransportUnavailable)

	req.NoError(f.session.Join(context.Background(), "alice"))
	req.Equal("Simulated", f.session.StatusBadge())
	req.Equal(domain.Joined, f.session.State())
}

func TestSession_SendTextRequiresJoin(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.startLive(t)

	req.ErrorIs(f.session.SendText(context.Background(), "hello"), errors.ErrNotJoined)
	req.ErrorIs(f.session.SendImage(context.Background(), []byte{0x89}), errors.ErrNotJoined)
}

func TestSession_HubEchoWithoutIdentifierIsDeduplicated(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.startLive(t)
	f.joinLive(t, "alice")

	f.live.EXPECT().SendMessage(gomock.Any(), gomock.Any()).Return(nil)
	req.NoError(f.session.SendText(context.Background(), "hello bob"))

	// The hub broadcasts the message back with a fresh identifier
	f.bus.Publish(event.MessageReceived{Message: domain.NewTextMessage("alice", "hello bob")})

	views := f.session.Messages()
	req.Len(views, 1)

	// A genuinely new remote message still lands
	f.bus.Publish(event.MessageReceived{Message: domain.NewTextMessage("bob", "hello alice")})
	views = f.session.Messages()
	req.Len(views, 2)
	req.False(views[1].Own)
}

func TestSession_IdenticalTextsEchoIndependently(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.startLive(t)
	f.joinLive(t, "alice")

	f.live.EXPECT().SendMessage(gomock.Any(), gomock.Any()).Return(nil).Times(2)
	req.NoError(f.session.SendText(context.Background(), "ping"))
	req.NoError(f.session.SendText(context.Background(), "ping"))

	f.bus.Publish(event.MessageReceived{Message: domain.NewTextMessage("alice", "ping")})
	f.bus.Publish(event.MessageReceived{Message: domain.NewTextMessage("alice", "ping")})

	// Two sends, two echoes consumed, two entries
	req.Len(f.session.Messages(), 2)

	// A third identical message is no longer a pending echo
	f.bus.Publish(event.MessageReceived{Message: domain.NewTextMessage("alice", "ping")})
	req.Len(f.session.Messages(), 3)
}

func TestSession_RejectedSendDegradesToStore(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.startLive(t)
	f.joinLive(t, "alice")

	f.live.EXPECT().SendMessage(gomock.Any(), gomock.Any()).Return(errors.ErrReconnecting)

	req.NoError(f.session.SendText(context.Background(), "do not lose me"))

	// Locally visible
	views := f.session.Messages()
	req.Len(views, 1)

	// And durably written to the shared store
	value, err := f.store.NewContext().Read(store.KeyMessages)
	req.NoError(err)
	stored, err := store.DecodeMessages(value)
	req.NoError(err)
	req.Len(stored, 1)
	req.Equal("do not lose me", stored[0].Text)
}

func TestSession_SendImageValidatesBeforeTransport(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.startLive(t)
	f.joinLive(t, "alice")

	oversized := make([]byte, domain.MaxImageBytes+1)
	req.ErrorIs(f.session.SendImage(context.Background(), oversized), errors.ErrImageTooLarge)
	req.ErrorIs(f.session.SendImage(context.Background(), []byte("not a picture")), errors.ErrNotAnImage)
	req.Empty(f.session.Messages())

	f.live.EXPECT().SendImage(gomock.Any(), gomock.Any()).Return(nil)
	png := append([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}, make([]byte, 32)...)
	req.NoError(f.session.SendImage(context.Background(), png))

	views := f.session.Messages()
	req.Len(views, 1)
	req.True(views[0].IsImage())
}

func TestSession_PresenceAndTypingFollowEvents(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.startLive(t)
	f.joinLive(t, "alice")

	f.bus.Publish(event.UserJoined{User: "bob"})
	f.bus.Publish(event.UserJoined{User: "clara"})
	f.bus.Publish(event.TypingChanged{User: "bob", Typing: true})

	req.Equal([]string{"bob", "clara"}, f.session.Presence())
	user, typing := f.session.Typing()
	req.Equal("bob", user)
	req.True(typing)

	// A leaving user also stops typing
	f.bus.Publish(event.UserLeft{User: "bob"})
	req.Equal([]string{"clara"}, f.session.Presence())
	_, typing = f.session.Typing()
	req.False(typing)

	f.bus.Publish(event.PresenceReplaced{Users: []string{"alice", "dave"}})
	req.Equal([]string{"dave"}, f.session.Presence())
}

func TestSession_ReconnectLifecycle(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.startLive(t)
	f.joinLive(t, "alice")

	f.bus.Publish(event.ConnectionStateChanged{State: domain.Reconnecting})
	req.Equal("Reconnecting", f.session.StatusBadge())

	f.bus.Publish(event.ConnectionStateChanged{State: domain.LiveConnected})
	req.Equal(domain.Joined, f.session.State())
	req.Equal("Connected", f.session.StatusBadge())

	// Giving up revokes the joined guarantee
	f.bus.Publish(event.ConnectionStateChanged{State: domain.Disconnected})
	req.ErrorIs(f.session.SendText(context.Background(), "hello"), errors.ErrNotJoined)
}

func TestSession_SearchFindsOwnHistory(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.startLive(t)
	f.joinLive(t, "alice")

	f.live.EXPECT().SendMessage(gomock.Any(), gomock.Any()).Return(nil).Times(2)
	req.NoError(f.session.SendText(context.Background(), "deployment checklist for friday"))
	req.NoError(f.session.SendText(context.Background(), "lunch at noon"))
	f.bus.Publish(event.MessageReceived{Message: domain.NewTextMessage("bob", "deployment looks green")})

	views, err := f.session.Search(context.Background(), "/find deployment")
	req.NoError(err)
	req.Len(views, 2)

	views, err = f.session.Search(context.Background(), "/find deployment --user alice")
	req.NoError(err)
	req.Len(views, 1)
	req.True(views[0].Own)
}

func TestSession_StartIsIdempotent(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	f.live.EXPECT().Connect(gomock.Any()).Return(nil).Times(1)
	req.NoError(f.session.Start(context.Background()))
	req.NoError(f.session.Start(context.Background()))
}
