package presence

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appdevjohn/Social-Network-Backend/internal/models"
)

// tokenVerifier accepts "token-<userID>".
type tokenVerifier struct{}

func (tokenVerifier) VerifyToken(token string) (string, error) {
	var userID string
	if _, err := fmt.Sscanf(token, "token-%s", &userID); err != nil || userID == "" {
		return "", errors.New("bad token")
	}
	return userID, nil
}

type fakeConn struct {
	mu       sync.Mutex
	received []*models.Message
	err      error
	delay    time.Duration
}

func (c *fakeConn) SendMessage(ctx context.Context, m *models.Message) error {
	if c.delay > 0 {
		select {
		case <-time.After(c.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if c.err != nil {
		return c.err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.received = append(c.received, m)
	return nil
}

func (c *fakeConn) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.received)
}

type staticMembers map[string][]string

func (s staticMembers) ListConversationMemberIDs(ctx context.Context, conversationID string) ([]string, error) {
	ids, ok := s[conversationID]
	if !ok {
		return nil, errors.New("no such conversation")
	}
	return ids, nil
}

func TestTable_ClearIfIsCompareAndSwap(t *testing.T) {
	table := NewTable()

	table.Set("u1", "h1")
	prev, replaced := table.Set("u1", "h2")
	assert.True(t, replaced)
	assert.Equal(t, Handle("h1"), prev)

	assert.False(t, table.ClearIf("u1", "h1"), "stale handle must not clear")
	h, ok := table.Lookup("u1")
	require.True(t, ok)
	assert.Equal(t, Handle("h2"), h)

	assert.True(t, table.ClearIf("u1", "h2"))
	_, ok = table.Lookup("u1")
	assert.False(t, ok)
}

func TestHub_IdentifyTwiceKeepsNewest(t *testing.T) {
	hub := NewHub(NewTable(), tokenVerifier{}, nil)
	defer hub.Close()
	ctx := context.Background()

	oldConn, newConn := &fakeConn{}, &fakeConn{}
	oldHandle := hub.Connect(oldConn)
	newHandle := hub.Connect(newConn)

	_, err := hub.Identify(ctx, oldHandle, "token-alice")
	require.NoError(t, err)
	userID, err := hub.Identify(ctx, newHandle, "token-alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", userID)

	// late disconnect of the old connection
	hub.Disconnect(oldHandle)

	conn, ok := hub.ConnFor("alice")
	require.True(t, ok)
	assert.Same(t, newConn, conn)
	assert.Equal(t, 1, hub.Online())

	hub.Disconnect(newHandle)
	_, ok = hub.ConnFor("alice")
	assert.False(t, ok)
	assert.Equal(t, 0, hub.Online())
}

func TestHub_FailedIdentifyLeavesConnectionOpen(t *testing.T) {
	hub := NewHub(NewTable(), tokenVerifier{}, nil)
	defer hub.Close()
	ctx := context.Background()

	handle := hub.Connect(&fakeConn{})
	_, err := hub.Identify(ctx, handle, "garbage")
	require.Error(t, err)
	assert.Empty(t, hub.UserFor(handle))

	// the same connection can still subscribe
	_, err = hub.Identify(ctx, handle, "token-bob")
	require.NoError(t, err)
	assert.Equal(t, "bob", hub.UserFor(handle))

	_, err = hub.Identify(ctx, Handle("unknown"), "token-bob")
	assert.ErrorIs(t, err, ErrUnknownHandle)
}

func TestHub_ReidentifyAsAnotherUser(t *testing.T) {
	hub := NewHub(NewTable(), tokenVerifier{}, nil)
	defer hub.Close()
	ctx := context.Background()

	handle := hub.Connect(&fakeConn{})
	_, err := hub.Identify(ctx, handle, "token-alice")
	require.NoError(t, err)
	_, err = hub.Identify(ctx, handle, "token-bob")
	require.NoError(t, err)

	_, ok := hub.ConnFor("alice")
	assert.False(t, ok)
	_, ok = hub.ConnFor("bob")
	assert.True(t, ok)
}

func TestHub_ConcurrentReconnects(t *testing.T) {
	hub := NewHub(NewTable(), tokenVerifier{}, nil)
	defer hub.Close()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h := hub.Connect(&fakeConn{})
			_, err := hub.Identify(ctx, h, "token-carol")
			assert.NoError(t, err)
			hub.Disconnect(h)
		}()
	}
	wg.Wait()

	// every connection is gone, so nothing may stay mapped
	_, ok := hub.ConnFor("carol")
	assert.False(t, ok)
}

func TestFanout_ExcludesSenderAndOffline(t *testing.T) {
	hub := NewHub(NewTable(), tokenVerifier{}, nil)
	defer hub.Close()
	ctx := context.Background()

	conns := map[string]*fakeConn{"alice": {}, "bob": {}, "carol": {}}
	for user, conn := range conns {
		h := hub.Connect(conn)
		_, err := hub.Identify(ctx, h, "token-"+user)
		require.NoError(t, err)
	}

	members := staticMembers{"c1": {"alice", "bob", "carol", "dave"}}
	fanout := NewFanout(members, hub, 2, time.Second, nil)

	msg := &models.Message{ID: "m1", SenderID: "alice", ConversationID: "c1", Content: "hi"}
	delivered, err := fanout.NotifyConversation(ctx, msg)
	require.NoError(t, err)

	assert.Equal(t, 2, delivered)
	assert.Equal(t, 0, conns["alice"].count())
	assert.Equal(t, 1, conns["bob"].count())
	assert.Equal(t, 1, conns["carol"].count())
}

func TestFanout_IndependentFailures(t *testing.T) {
	hub := NewHub(NewTable(), tokenVerifier{}, nil)
	defer hub.Close()
	ctx := context.Background()

	broken := &fakeConn{err: errors.New("write: broken pipe")}
	slow := &fakeConn{delay: time.Second}
	healthy := &fakeConn{}
	for user, conn := range map[string]*fakeConn{"broken": broken, "slow": slow, "healthy": healthy} {
		h := hub.Connect(conn)
		_, err := hub.Identify(ctx, h, "token-"+user)
		require.NoError(t, err)
	}

	members := staticMembers{"c1": {"sender", "broken", "slow", "healthy"}}
	fanout := NewFanout(members, hub, 4, 50*time.Millisecond, nil)

	delivered, err := fanout.NotifyConversation(ctx, &models.Message{ID: "m", SenderID: "sender", ConversationID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, 1, delivered)
	assert.Equal(t, 1, healthy.count())
}

func TestFanout_MemberResolutionError(t *testing.T) {
	hub := NewHub(NewTable(), tokenVerifier{}, nil)
	defer hub.Close()

	fanout := NewFanout(staticMembers{}, hub, 1, time.Second, nil)
	_, err := fanout.NotifyConversation(context.Background(), &models.Message{ConversationID: "missing"})
	assert.Error(t, err)
}

func TestHub_SharesInjectedTable(t *testing.T) {
	table := NewTable()
	hub := NewHub(table, tokenVerifier{}, nil)
	defer hub.Close()
	ctx := context.Background()

	handle := hub.Connect(&fakeConn{})
	_, err := hub.Identify(ctx, handle, "token-alice")
	require.NoError(t, err)

	got, ok := table.Lookup("alice")
	require.True(t, ok)
	assert.Equal(t, handle, got)

	table.Reset()
	_, ok = hub.ConnFor("alice")
	assert.False(t, ok)
	assert.Equal(t, 0, hub.Online())
}
