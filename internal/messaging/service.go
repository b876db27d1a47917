// Package messaging manages conversations, messages and read pointers.
package messaging

import (
	"context"
	"log/slog"
	"strings"

	"github.com/appdevjohn/Social-Network-Backend/internal/apperr"
	"github.com/appdevjohn/Social-Network-Backend/internal/models"
	"github.com/appdevjohn/Social-Network-Backend/internal/storage"
	"github.com/appdevjohn/Social-Network-Backend/internal/tasks"
)

// DefaultListLimit is used by ListMessages when the caller passes no limit.
const DefaultListLimit = 256

// Store is the persistence the messaging service needs.
type Store interface {
	storage.UserStore
	storage.PostStore
	storage.ConversationStore
	storage.MessageStore
}

// Notifier pushes a persisted conversation message to connected members. It
// returns the number of connections the message reached.
type Notifier interface {
	NotifyConversation(ctx context.Context, message *models.Message) (int, error)
}

// AttachmentReleaser deletes stored attachments in the background.
type AttachmentReleaser interface {
	Release(refs []string)
}

// Service implements the conversation and message operations.
type Service struct {
	store    Store
	runner   *tasks.Runner
	notifier Notifier
	releaser AttachmentReleaser
	logger   *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithNotifier sets where new conversation messages are fanned out.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithReleaser sets who deletes attachments of removed messages.
func WithReleaser(r AttachmentReleaser) Option {
	return func(s *Service) { s.releaser = r }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService creates a messaging service. runner carries fan-out off the
// request path.
func NewService(store Store, runner *tasks.Runner, opts ...Option) *Service {
	s := &Service{store: store, runner: runner, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateConversation creates a conversation holding the creator and every
// username that resolves. Usernames that do not resolve are logged and skipped.
func (s *Service) CreateConversation(ctx context.Context, name, creatorID string, usernames []string) (*models.Conversation, error) {
	memberIDs := []string{creatorID}
	seen := map[string]bool{creatorID: true}

	for _, username := range usernames {
		username = strings.TrimSpace(username)
		if username == "" {
			continue
		}
		user, err := s.store.GetUserByUsername(ctx, username)
		if err != nil {
			s.logger.Warn("Skipping conversation member", "username", username, "error", err)
			continue
		}
		if seen[user.ID] {
			continue
		}
		seen[user.ID] = true
		memberIDs = append(memberIDs, user.ID)
	}

	conversation := &models.Conversation{Name: strings.TrimSpace(name)}
	if err := s.store.CreateConversation(ctx, conversation, memberIDs); err != nil {
		return nil, err
	}

	s.logger.Info("Conversation created",
		"conversation_id", conversation.ID,
		"creator_id", creatorID,
		"members", len(memberIDs),
		"requested", len(usernames),
	)
	return conversation, nil
}

// GetConversation returns a conversation by ID.
func (s *Service) GetConversation(ctx context.Context, conversationID string) (*models.Conversation, error) {
	return s.store.GetConversation(ctx, conversationID)
}

// Members returns the conversation's member users.
func (s *Service) Members(ctx context.Context, conversationID string) ([]*models.User, error) {
	return s.store.ListConversationMembers(ctx, conversationID)
}

// IsMember reports whether userID belongs to the conversation.
func (s *Service) IsMember(ctx context.Context, conversationID, userID string) (bool, error) {
	return s.store.IsConversationMember(ctx, conversationID, userID)
}

// ListConversations returns userID's conversations, each with its newest
// message and userID's read pointer.
func (s *Service) ListConversations(ctx context.Context, userID string) ([]*models.ConversationSummary, error) {
	conversations, err := s.store.ListConversationsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	summaries := make([]*models.ConversationSummary, 0, len(conversations))
	for _, c := range conversations {
		summary := &models.ConversationSummary{Conversation: c}

		latest, err := s.store.ListMessages(ctx, models.Destination{ConversationID: c.ID}, 1, 0)
		if err != nil {
			return nil, err
		}
		if len(latest) > 0 {
			summary.Snippet = latest[0]
		}

		lastRead, _, err := s.store.GetLastRead(ctx, c.ID, userID)
		if err != nil {
			return nil, err
		}
		summary.LastReadMessageID = lastRead

		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// RenameConversation applies update.
func (s *Service) RenameConversation(ctx context.Context, conversationID string, update models.ConversationUpdate) (*models.Conversation, error) {
	if update.Name != nil {
		name := strings.TrimSpace(*update.Name)
		update.Name = &name
	}
	conversation, err := s.store.UpdateConversation(ctx, conversationID, update)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Conversation renamed", "conversation_id", conversationID)
	return conversation, nil
}

// RemoveConversationMember removes userID and reports whether that emptied and
// deleted the conversation. Image attachments of a deleted conversation are
// released in the background.
func (s *Service) RemoveConversationMember(ctx context.Context, conversationID, userID string) (bool, error) {
	deleted, refs, err := s.store.RemoveConversationMember(ctx, conversationID, userID)
	if err != nil {
		return false, err
	}

	s.logger.Info("Conversation member removed",
		"conversation_id", conversationID,
		"user_id", userID,
		"conversation_deleted", deleted,
	)
	if deleted {
		s.release(refs...)
	}
	return deleted, nil
}

// SendMessage persists a message and, for conversation messages, schedules
// fan-out to connected members. It returns once the message is stored.
//
// An image message's content must be a ref the sender uploaded and has not
// attached to another message; anything else fails with ErrAttachmentNotOwned.
func (s *Service) SendMessage(ctx context.Context, senderID string, dest models.Destination, content string, kind models.ContentKind) (*models.Message, error) {
	if !dest.Valid() {
		return nil, apperr.ErrInvalidDestination
	}
	if kind == "" {
		kind = models.KindText
	}
	if !kind.Valid() {
		return nil, apperr.ErrInvalidContentKind
	}
	if strings.TrimSpace(content) == "" {
		return nil, apperr.New(apperr.Invalid, "message content is required")
	}

	if dest.PostID != "" {
		if _, err := s.store.GetPost(ctx, dest.PostID); err != nil {
			return nil, err
		}
	}

	message := &models.Message{
		SenderID:       senderID,
		ConversationID: dest.ConversationID,
		PostID:         dest.PostID,
		Content:        content,
		Kind:           kind,
	}
	if err := s.store.CreateMessage(ctx, message); err != nil {
		if dest.ConversationID != "" && apperr.Is(err, apperr.NotFound) {
			return nil, apperr.ErrConversationNotFound
		}
		return nil, err
	}

	s.logger.Info("Message sent",
		"message_id", message.ID,
		"sender_id", senderID,
		"conversation_id", message.ConversationID,
		"post_id", message.PostID,
	)

	if message.ConversationID != "" && s.notifier != nil {
		s.runner.Go("fanout", func(ctx context.Context) error {
			delivered, err := s.notifier.NotifyConversation(ctx, message)
			if err != nil {
				return err
			}
			s.logger.Debug("Message fanned out", "message_id", message.ID, "delivered", delivered)
			return nil
		})
	}
	return message, nil
}

// GetPost returns the post comments are addressed to.
func (s *Service) GetPost(ctx context.Context, postID string) (*models.Post, error) {
	return s.store.GetPost(ctx, postID)
}

// GetMessage returns a message by ID.
func (s *Service) GetMessage(ctx context.Context, messageID string) (*models.Message, error) {
	return s.store.GetMessage(ctx, messageID)
}

// EditMessage changes a message's content. Only its sender may edit it, and
// image refs cannot be rewritten.
func (s *Service) EditMessage(ctx context.Context, messageID, requesterID string, update models.MessageUpdate) (*models.Message, error) {
	message, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if message.SenderID != requesterID {
		return nil, apperr.ErrNotMessageOwner
	}
	if update.Content != nil {
		if message.Kind == models.KindImage {
			return nil, apperr.New(apperr.Invalid, "image messages cannot be edited")
		}
		if strings.TrimSpace(*update.Content) == "" {
			return nil, apperr.New(apperr.Invalid, "message content is required")
		}
	}

	updated, err := s.store.UpdateMessage(ctx, messageID, update)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Message edited", "message_id", messageID)
	return updated, nil
}

// DeleteMessage removes a message sent by requesterID. An attached image is
// released in the background; failing to delete it does not fail the call.
func (s *Service) DeleteMessage(ctx context.Context, messageID, requesterID string) error {
	message, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if message.SenderID != requesterID {
		return apperr.ErrNotMessageOwner
	}

	if err := s.store.DeleteMessage(ctx, messageID); err != nil {
		return err
	}
	if message.HasAttachment() {
		s.release(message.Content)
	}

	s.logger.Info("Message deleted", "message_id", messageID, "attachment", message.HasAttachment())
	return nil
}

// MarkRead records messageID as userID's last read message in the
// conversation and returns the stored ID. The message is not checked against
// the conversation.
func (s *Service) MarkRead(ctx context.Context, conversationID, userID, messageID string) (string, error) {
	member, err := s.store.IsConversationMember(ctx, conversationID, userID)
	if err != nil {
		return "", err
	}
	if !member {
		return "", apperr.ErrNotInConversation
	}

	stored, err := s.store.SetLastRead(ctx, conversationID, userID, messageID)
	if err != nil {
		return "", err
	}
	s.logger.Debug("Read pointer updated", "conversation_id", conversationID, "user_id", userID, "message_id", stored)
	return stored, nil
}

// GetLastReadMessageID returns userID's read pointer, or "" when unset.
func (s *Service) GetLastReadMessageID(ctx context.Context, conversationID, userID string) (string, error) {
	messageID, _, err := s.store.GetLastRead(ctx, conversationID, userID)
	return messageID, err
}

// ListMessages returns a page of messages for dest, newest first. A
// non-positive limit means DefaultListLimit.
func (s *Service) ListMessages(ctx context.Context, dest models.Destination, limit, offset int) ([]*models.Message, error) {
	if !dest.Valid() {
		return nil, apperr.ErrInvalidDestination
	}
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.ListMessages(ctx, dest, limit, offset)
}

func (s *Service) release(refs ...string) {
	if s.releaser != nil && len(refs) > 0 {
		s.releaser.Release(refs)
	}
}
