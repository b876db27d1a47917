package ws

import (
	"context"
	"log/slog"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appdevjohn/Social-Network-Backend/internal/auth"
	"github.com/appdevjohn/Social-Network-Backend/internal/models"
	"github.com/appdevjohn/Social-Network-Backend/internal/presence"
)

type readCall struct {
	conversationID, userID, messageID string
}

type recordingMarker struct {
	mu    sync.Mutex
	calls []readCall
	seen  chan struct{}
}

func newRecordingMarker() *recordingMarker {
	return &recordingMarker{seen: make(chan struct{}, 16)}
}

func (m *recordingMarker) MarkRead(ctx context.Context, conversationID, userID, messageID string) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, readCall{conversationID, userID, messageID})
	m.mu.Unlock()
	m.seen <- struct{}{}
	return messageID, nil
}

func (m *recordingMarker) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

type wsFixture struct {
	hub    *presence.Hub
	jwt    *auth.JWTManager
	marker *recordingMarker
	url    string
}

func setup(t *testing.T, opts ...Option) *wsFixture {
	t.Helper()
	jwtManager := auth.NewJWTManager("test-secret", time.Hour)
	hub := presence.NewHub(presence.NewTable(), jwtManager, nil)
	t.Cleanup(hub.Close)
	marker := newRecordingMarker()

	server := httptest.NewServer(NewHandler(hub, marker, opts...))
	t.Cleanup(server.Close)

	return &wsFixture{
		hub:    hub,
		jwt:    jwtManager,
		marker: marker,
		url:    "ws" + strings.TrimPrefix(server.URL, "http"),
	}
}

func (f *wsFixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	c, _, err := websocket.DefaultDialer.Dial(f.url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	var hello Frame
	require.NoError(t, readFrame(c, &hello))
	require.Equal(t, TypeConnected, hello.Type)
	require.NotEmpty(t, hello.Handle)
	return c
}

func (f *wsFixture) token(t *testing.T, userID string) string {
	t.Helper()
	token, err := f.jwt.Generate(&models.User{ID: userID, Username: userID})
	require.NoError(t, err)
	return token
}

func readFrame(c *websocket.Conn, frame *Frame) error {
	c.SetReadDeadline(time.Now().Add(2 * time.Second))
	return c.ReadJSON(frame)
}

func subscribe(t *testing.T, c *websocket.Conn, token string) Frame {
	t.Helper()
	require.NoError(t, c.WriteJSON(Frame{Type: TypeSubscribe, Token: token}))
	var ack Frame
	require.NoError(t, readFrame(c, &ack))
	return ack
}

func TestSubscribeAndReceiveMessage(t *testing.T) {
	f := setup(t, WithURLPrefix("/uploads/"))
	c := f.dial(t)

	ack := subscribe(t, c, f.token(t, "u1"))
	assert.Equal(t, TypeSubscribed, ack.Type)
	assert.Equal(t, "u1", ack.UserID)
	assert.Equal(t, 1, f.hub.Online())

	pushed, ok := f.hub.ConnFor("u1")
	require.True(t, ok)
	require.NoError(t, pushed.SendMessage(context.Background(), &models.Message{
		ID: "m1", SenderID: "u2", ConversationID: "c1", Content: "pic.png", Kind: models.KindImage,
	}))

	var frame Frame
	require.NoError(t, readFrame(c, &frame))
	assert.Equal(t, TypeMessage, frame.Type)
	require.NotNil(t, frame.Message)
	assert.Equal(t, "m1", frame.Message.ID)
	assert.Equal(t, "/uploads/pic.png", frame.Message.Content)
}

func TestFailedSubscribeIsNotAcknowledged(t *testing.T) {
	f := setup(t)
	c := f.dial(t)

	require.NoError(t, c.WriteJSON(Frame{Type: TypeSubscribe, Token: "garbage"}))

	// Frames are handled in order, so the next frame seen is the valid ack.
	ack := subscribe(t, c, f.token(t, "u1"))
	assert.Equal(t, TypeSubscribed, ack.Type)
	assert.Equal(t, "u1", ack.UserID)
}

func TestReadMessageRequiresIdentity(t *testing.T) {
	f := setup(t)
	c := f.dial(t)

	require.NoError(t, c.WriteJSON(Frame{Type: TypeReadMessage, ConversationID: "c1", MessageID: "m1"}))
	subscribe(t, c, f.token(t, "u1"))
	assert.Equal(t, 0, f.marker.count())

	require.NoError(t, c.WriteJSON(Frame{Type: TypeReadMessage, ConversationID: "c1", MessageID: "m2"}))
	select {
	case <-f.marker.seen:
	case <-time.After(2 * time.Second):
		t.Fatal("read pointer update was not delivered")
	}

	f.marker.mu.Lock()
	defer f.marker.mu.Unlock()
	require.Len(t, f.marker.calls, 1)
	assert.Equal(t, readCall{"c1", "u1", "m2"}, f.marker.calls[0])
}

func TestFramesOverRateLimitAreDropped(t *testing.T) {
	f := setup(t, WithRateLimit(0, 2))
	c := f.dial(t)
	token := f.token(t, "u1")

	subscribe(t, c, token)
	subscribe(t, c, token)

	require.NoError(t, c.WriteJSON(Frame{Type: TypeSubscribe, Token: token}))
	var frame Frame
	err := readFrame(c, &frame)
	require.Error(t, err, "third frame should have been dropped, got %+v", frame)
}

func TestDisconnectClearsPresence(t *testing.T) {
	f := setup(t)
	c := f.dial(t)
	subscribe(t, c, f.token(t, "u1"))
	require.Equal(t, 1, f.hub.Online())

	require.NoError(t, c.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	c.Close()

	assert.Eventually(t, func() bool { return f.hub.Online() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestReconnectKeepsNewestConnection(t *testing.T) {
	f := setup(t)
	token := f.token(t, "u1")

	first := f.dial(t)
	subscribe(t, first, token)
	second := f.dial(t)
	subscribe(t, second, token)

	// Closing the replaced connection must not take the user offline.
	first.Close()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, f.hub.Online())

	pushed, ok := f.hub.ConnFor("u1")
	require.True(t, ok)
	require.NoError(t, pushed.SendMessage(context.Background(), &models.Message{ID: "m1", Kind: models.KindText}))

	var frame Frame
	require.NoError(t, readFrame(second, &frame))
	assert.Equal(t, "m1", frame.Message.ID)
}

func TestOptions(t *testing.T) {
	hub := presence.NewHub(presence.NewTable(), nil, nil)
	logger := slog.New(slog.DiscardHandler)

	h := NewHandler(hub, &recordingMarker{}, WithLogger(logger), WithWriteTimeout(time.Second), WithURLPrefix("/u/"))
	assert.Same(t, logger, h.logger)
	assert.Equal(t, time.Second, h.writeTimeout)
	assert.Equal(t, "/u/", h.urlPrefix)

	h = NewHandler(hub, &recordingMarker{}, WithLogger(nil), WithWriteTimeout(0))
	assert.NotNil(t, h.logger)
	assert.Equal(t, defaultWriteTimeout, h.writeTimeout)
}
