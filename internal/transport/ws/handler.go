// Package ws is the real-time transport: one websocket per client, carrying
// JSON frames between the client and the presence hub.
//
// Frames from the client:
//
//	{"type":"subscribe","token":"<jwt>"}
//	{"type":"read-message","convoId":"...","messageId":"..."}
//
// Frames to the client:
//
//	{"type":"connected","handle":"..."}
//	{"type":"subscribed","userId":"..."}
//	{"type":"message","message":{...}}
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/appdevjohn/Social-Network-Backend/internal/models"
	"github.com/appdevjohn/Social-Network-Backend/internal/presence"
	"github.com/appdevjohn/Social-Network-Backend/internal/service"
	"github.com/appdevjohn/Social-Network-Backend/pkg/api"
)

// Frame types.
const (
	TypeConnected   = "connected"
	TypeSubscribe   = "subscribe"
	TypeSubscribed  = "subscribed"
	TypeReadMessage = "read-message"
	TypeMessage     = "message"
)

const (
	defaultWriteTimeout = 10 * time.Second
	maxFrameBytes       = 64 * 1024
)

// ReadMarker moves a user's read pointer.
type ReadMarker interface {
	MarkRead(ctx context.Context, conversationID, userID, messageID string) (string, error)
}

// Frame is a message on the wire in either direction.
type Frame struct {
	Type string `json:"type"`

	Handle string `json:"handle,omitempty"`
	Token  string `json:"token,omitempty"`
	UserID string `json:"userId,omitempty"`

	ConversationID string `json:"convoId,omitempty"`
	MessageID      string `json:"messageId,omitempty"`

	Message *api.Message `json:"message,omitempty"`
}

// Handler upgrades requests to websockets and serves the frame protocol.
type Handler struct {
	hub          *presence.Hub
	reads        ReadMarker
	upgrader     websocket.Upgrader
	limit        rate.Limit
	burst        int
	writeTimeout time.Duration
	urlPrefix    string
	logger       *slog.Logger
}

// Option configures a Handler.
type Option func(*Handler)

// WithRateLimit caps inbound frames per connection. Frames beyond the limit
// are dropped.
func WithRateLimit(framesPerSecond float64, burst int) Option {
	return func(h *Handler) {
		h.limit = rate.Limit(framesPerSecond)
		h.burst = burst
	}
}

// WithWriteTimeout bounds each outbound frame write.
func WithWriteTimeout(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.writeTimeout = d
		}
	}
}

// WithURLPrefix sets the prefix image refs are rendered under.
func WithURLPrefix(prefix string) Option {
	return func(h *Handler) { h.urlPrefix = prefix }
}

// WithLogger sets the logger. A nil logger keeps the default.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// NewHandler creates a websocket handler.
func NewHandler(hub *presence.Hub, reads ReadMarker, opts ...Option) *Handler {
	h := &Handler{
		hub:   hub,
		reads: reads,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		limit:        rate.Inf,
		writeTimeout: defaultWriteTimeout,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("Failed to upgrade websocket", "remote_addr", r.RemoteAddr, "error", err)
		return
	}
	ws.SetReadLimit(maxFrameBytes)

	c := &conn{ws: ws, writeTimeout: h.writeTimeout, urlPrefix: h.urlPrefix}
	handle := h.hub.Connect(c)
	defer func() {
		h.hub.Disconnect(handle)
		ws.Close()
	}()

	ctx := r.Context()
	if err := c.write(ctx, Frame{Type: TypeConnected, Handle: string(handle)}); err != nil {
		h.logger.Warn("Failed to greet websocket client", "handle", handle, "error", err)
		return
	}

	limiter := rate.NewLimiter(h.limit, h.burst)
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Warn("Websocket closed unexpectedly", "handle", handle, "error", err)
			}
			return
		}
		if !limiter.Allow() {
			h.logger.Warn("Dropping websocket frame over rate limit", "handle", handle)
			continue
		}

		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			h.logger.Warn("Ignoring malformed websocket frame", "handle", handle, "error", err)
			continue
		}
		h.dispatch(ctx, c, handle, frame)
	}
}

func (h *Handler) dispatch(ctx context.Context, c *conn, handle presence.Handle, frame Frame) {
	switch frame.Type {
	case TypeSubscribe:
		userID, err := h.hub.Identify(ctx, handle, frame.Token)
		if err != nil {
			h.logger.Warn("Websocket identify failed", "handle", handle, "error", err)
			return
		}
		if err := c.write(ctx, Frame{Type: TypeSubscribed, UserID: userID}); err != nil {
			h.logger.Warn("Failed to acknowledge subscribe", "handle", handle, "error", err)
		}

	case TypeReadMessage:
		userID := h.hub.UserFor(handle)
		if userID == "" {
			h.logger.Debug("Ignoring read pointer from unidentified connection", "handle", handle)
			return
		}
		if _, err := h.reads.MarkRead(ctx, frame.ConversationID, userID, frame.MessageID); err != nil {
			h.logger.Warn("Failed to update read pointer",
				"user_id", userID,
				"conversation_id", frame.ConversationID,
				"message_id", frame.MessageID,
				"error", err,
			)
		}

	default:
		h.logger.Debug("Ignoring unknown websocket frame", "handle", handle, "type", frame.Type)
	}
}

// conn serializes writes to one websocket; gorilla allows a single writer.
type conn struct {
	ws           *websocket.Conn
	writeTimeout time.Duration
	urlPrefix    string

	mu sync.Mutex
}

var _ presence.Conn = (*conn)(nil)

func (c *conn) SendMessage(ctx context.Context, message *models.Message) error {
	return c.write(ctx, Frame{Type: TypeMessage, Message: service.RenderMessage(c.urlPrefix, message)})
}

func (c *conn) write(ctx context.Context, frame Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	deadline := time.Now().Add(c.writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.ws.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return c.ws.WriteJSON(frame)
}
