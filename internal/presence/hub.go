package presence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/appdevjohn/Social-Network-Backend/internal/metrics"
	"github.com/appdevjohn/Social-Network-Backend/internal/models"
)

// ErrUnknownHandle is returned for handles that are not connected.
var ErrUnknownHandle = errors.New("presence: unknown connection handle")

// Conn is the outbound side of a live connection.
type Conn interface {
	// SendMessage pushes a message event to the client.
	SendMessage(ctx context.Context, message *models.Message) error
}

// Verifier resolves an identity credential to a user ID.
type Verifier interface {
	VerifyToken(token string) (userID string, err error)
}

type session struct {
	conn   Conn
	userID string
}

// Hub owns the live connections and the presence table.
//
// Thread Safety: Safe for concurrent use.
type Hub struct {
	verifier Verifier
	table    *Table
	logger   *slog.Logger

	mu       sync.RWMutex
	sessions map[Handle]*session
}

// NewHub creates a hub recording presence in table and verifying identities
// with verifier. A nil table gets a fresh one.
func NewHub(table *Table, verifier Verifier, logger *slog.Logger) *Hub {
	if table == nil {
		table = NewTable()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		verifier: verifier,
		table:    table,
		logger:   logger,
		sessions: make(map[Handle]*session),
	}
}

// Connect registers a new unidentified connection and returns its handle.
func (h *Hub) Connect(conn Conn) Handle {
	handle := Handle(uuid.New().String())

	h.mu.Lock()
	h.sessions[handle] = &session{conn: conn}
	h.mu.Unlock()

	h.logger.Debug("Connection opened", "handle", handle)
	return handle
}

// Identify verifies credential and makes handle the user's active connection,
// replacing any earlier one. On failure the connection stays open and
// unidentified.
func (h *Hub) Identify(ctx context.Context, handle Handle, credential string) (string, error) {
	userID, err := h.verifier.VerifyToken(credential)
	if err != nil {
		return "", fmt.Errorf("failed to verify identity: %w", err)
	}

	// h.mu is held across the table update so a concurrent Disconnect of the
	// same handle cannot interleave and leave a mapping to a closed connection.
	h.mu.Lock()
	sess, ok := h.sessions[handle]
	if !ok {
		h.mu.Unlock()
		return "", ErrUnknownHandle
	}
	if sess.userID != "" && sess.userID != userID {
		h.table.ClearIf(sess.userID, handle)
	}
	sess.userID = userID
	replaced, didReplace := h.table.Set(userID, handle)
	h.mu.Unlock()

	if didReplace {
		h.logger.Info("Connection replaced", "user_id", userID, "old_handle", replaced, "handle", handle)
	}
	metrics.OnlineUsers.Set(float64(h.table.Len()))

	h.logger.Info("Connection identified", "user_id", userID, "handle", handle)
	return userID, nil
}

// Disconnect forgets handle. The owner's mapping is cleared only if it still
// points at handle.
func (h *Hub) Disconnect(handle Handle) {
	h.mu.Lock()
	sess, ok := h.sessions[handle]
	delete(h.sessions, handle)
	cleared := ok && sess.userID != "" && h.table.ClearIf(sess.userID, handle)
	h.mu.Unlock()

	if cleared {
		h.logger.Info("User offline", "user_id", sess.userID, "handle", handle)
		metrics.OnlineUsers.Set(float64(h.table.Len()))
	}
}

// UserFor returns the user a handle is identified as, or "".
func (h *Hub) UserFor(handle Handle) string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if sess, ok := h.sessions[handle]; ok {
		return sess.userID
	}
	return ""
}

// ConnFor returns userID's active connection, if any.
func (h *Hub) ConnFor(userID string) (Conn, bool) {
	handle, ok := h.table.Lookup(userID)
	if !ok {
		return nil, false
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	sess, ok := h.sessions[handle]
	if !ok {
		return nil, false
	}
	return sess.conn, true
}

// Online returns the number of identified users.
func (h *Hub) Online() int {
	return h.table.Len()
}

// Close drops every connection and mapping.
func (h *Hub) Close() {
	h.mu.Lock()
	h.sessions = make(map[Handle]*session)
	h.mu.Unlock()
	h.table.Reset()
	metrics.OnlineUsers.Set(0)
}
