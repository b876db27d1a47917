package presence

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/appdevjohn/Social-Network-Backend/internal/metrics"
	"github.com/appdevjohn/Social-Network-Backend/internal/models"
)

// MemberResolver lists a conversation's current members.
type MemberResolver interface {
	ListConversationMemberIDs(ctx context.Context, conversationID string) ([]string, error)
}

// Fanout delivers new conversation messages to connected members other than
// the sender. Delivery is at most once and best effort: offline members get
// nothing and a failed push is logged, not retried.
type Fanout struct {
	members     MemberResolver
	hub         *Hub
	concurrency int
	pushTimeout time.Duration
	logger      *slog.Logger
}

// NewFanout creates a fan-out over hub's connections.
func NewFanout(members MemberResolver, hub *Hub, concurrency int, pushTimeout time.Duration, logger *slog.Logger) *Fanout {
	if concurrency <= 0 {
		concurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Fanout{
		members:     members,
		hub:         hub,
		concurrency: concurrency,
		pushTimeout: pushTimeout,
		logger:      logger,
	}
}

// NotifyConversation pushes message to every connected member except its
// sender and returns how many pushes succeeded. Only resolving the member list
// can fail the call.
func (f *Fanout) NotifyConversation(ctx context.Context, message *models.Message) (int, error) {
	memberIDs, err := f.members.ListConversationMemberIDs(ctx, message.ConversationID)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve conversation members: %w", err)
	}

	var delivered atomic.Int64
	g := new(errgroup.Group)
	g.SetLimit(f.concurrency)

	for _, userID := range memberIDs {
		if userID == message.SenderID {
			continue
		}
		conn, ok := f.hub.ConnFor(userID)
		if !ok {
			metrics.FanoutDeliveries.WithLabelValues(metrics.ResultOffline).Inc()
			continue
		}

		userID := userID
		g.Go(func() error {
			pushCtx := ctx
			if f.pushTimeout > 0 {
				var cancel context.CancelFunc
				pushCtx, cancel = context.WithTimeout(ctx, f.pushTimeout)
				defer cancel()
			}

			if err := conn.SendMessage(pushCtx, message); err != nil {
				metrics.FanoutDeliveries.WithLabelValues(metrics.ResultFailed).Inc()
				f.logger.Warn("Push failed",
					"message_id", message.ID,
					"user_id", userID,
					"error", err,
				)
				return nil // one member's failure must not stop the others
			}
			metrics.FanoutDeliveries.WithLabelValues(metrics.ResultDelivered).Inc()
			delivered.Add(1)
			return nil
		})
	}

	_ = g.Wait()
	return int(delivered.Load()), nil
}
