// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"

	"github.com/appdevjohn/Social-Network-Backend/internal/models"
)

// Store is the full persistence surface of the backend.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL, etc.)
// without changing the service layer.
type Store interface {
	UserStore
	GroupStore
	PostStore
	ConversationStore
	MessageStore
	AttachmentStore

	// Close releases any resources held by the store.
	Close() error
}

// UserStore persists user accounts.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error

	// GetUserByID, GetUserByUsername and GetUserByEmail return a NotFound
	// error when no user matches.
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	// GetUsersByIDs returns a map of user ID to user. Unknown IDs are omitted.
	GetUsersByIDs(ctx context.Context, ids []string) (map[string]*models.User, error)
}

// GroupStore persists groups and the membership relation.
type GroupStore interface {
	// CreateGroup inserts the group and the creator's approved admin membership
	// in one transaction. The group.ID and timestamps are populated by the store.
	// A taken name fails with a Conflict error.
	CreateGroup(ctx context.Context, group *models.Group, creatorID string) error

	GetGroup(ctx context.Context, groupID string) (*models.Group, error)
	GetGroupByName(ctx context.Context, name string) (*models.Group, error)

	// ListGroupsByUser returns every group the user has a row in, pending included.
	ListGroupsByUser(ctx context.Context, userID string) ([]*models.UserGroup, error)

	// SearchGroups matches names case-insensitively by substring.
	SearchGroups(ctx context.Context, query string, limit int) ([]*models.Group, error)

	// UpdateGroup applies the non-nil fields of update and returns the stored group.
	UpdateGroup(ctx context.Context, groupID string, update models.GroupUpdate) (*models.Group, error)

	// DeleteGroup removes the group, cascading to memberships, posts and post
	// comments. It returns the attachment refs of the deleted comments.
	DeleteGroup(ctx context.Context, groupID string) ([]string, error)

	// AddMember inserts a membership row. An existing row for the pair fails with
	// a Conflict error; a missing group or user fails with a NotFound error.
	AddMember(ctx context.Context, membership *models.Membership) error

	GetMembership(ctx context.Context, groupID, userID string) (*models.Membership, error)
	ListMembers(ctx context.Context, groupID string, filter models.MemberFilter) ([]*models.Member, error)

	// UpdateMemberships runs fn inside a write transaction that holds the
	// store's write lock for its whole duration, so check-then-act sequences
	// over one group's memberships are serialized. fn's error rolls back.
	UpdateMemberships(ctx context.Context, groupID string, fn func(tx MembershipTx) error) error
}

// MembershipTx is the view of one group's memberships inside UpdateMemberships.
type MembershipTx interface {
	GroupID() string

	// Membership returns the row for userID, or a NotFound error.
	Membership(ctx context.Context, userID string) (*models.Membership, error)

	// CountAdmins counts approved members with the admin flag.
	CountAdmins(ctx context.Context) (int, error)

	// CountMembers counts approved members.
	CountMembers(ctx context.Context) (int, error)

	// DeleteMembership removes the row and reports whether one existed.
	DeleteMembership(ctx context.Context, userID string) (bool, error)

	// Approve flips a pending row to approved and reports whether one was pending.
	Approve(ctx context.Context, userID string) (bool, error)

	// SetAdmin sets the admin flag (and approves the row) and reports whether
	// the row exists.
	SetAdmin(ctx context.Context, userID string, admin bool) (bool, error)

	// DeleteGroup removes the group with its cascades and returns the
	// attachment refs of deleted post comments.
	DeleteGroup(ctx context.Context) ([]string, error)
}

// PostStore persists the group posts messages may be addressed to.
type PostStore interface {
	CreatePost(ctx context.Context, post *models.Post) error
	GetPost(ctx context.Context, postID string) (*models.Post, error)
}

// ConversationStore persists conversations, their flat membership and the
// per-member last-read pointer.
type ConversationStore interface {
	// CreateConversation inserts the conversation and one membership row per
	// member ID in a single transaction. Any failed row leaves nothing behind.
	CreateConversation(ctx context.Context, conversation *models.Conversation, memberIDs []string) error

	GetConversation(ctx context.Context, conversationID string) (*models.Conversation, error)
	ListConversationsByUser(ctx context.Context, userID string) ([]*models.Conversation, error)
	UpdateConversation(ctx context.Context, conversationID string, update models.ConversationUpdate) (*models.Conversation, error)

	// RemoveConversationMember deletes the row and, when it was the last one, the
	// conversation with its messages, all in one transaction. It reports whether
	// the conversation was deleted and returns the attachment refs of deleted
	// messages. A missing row fails with a NotFound error.
	RemoveConversationMember(ctx context.Context, conversationID, userID string) (deleted bool, attachments []string, err error)

	ListConversationMembers(ctx context.Context, conversationID string) ([]*models.User, error)
	ListConversationMemberIDs(ctx context.Context, conversationID string) ([]string, error)
	IsConversationMember(ctx context.Context, conversationID, userID string) (bool, error)

	// SetLastRead upserts the read pointer and returns the stored message ID.
	SetLastRead(ctx context.Context, conversationID, userID, messageID string) (string, error)

	// GetLastRead returns the read pointer, or "" with ok=false when unset.
	GetLastRead(ctx context.Context, conversationID, userID string) (messageID string, ok bool, err error)
}

// MessageStore persists messages.
type MessageStore interface {
	// CreateMessage inserts the message. An image message claims its ref in
	// the same transaction: the ref must have been recorded for the sender and
	// not be claimed by another message, otherwise it fails with
	// apperr.ErrAttachmentNotOwned.
	CreateMessage(ctx context.Context, message *models.Message) error
	GetMessage(ctx context.Context, messageID string) (*models.Message, error)
	UpdateMessage(ctx context.Context, messageID string, update models.MessageUpdate) (*models.Message, error)

	// DeleteMessage removes the message, failing with NotFound when it is missing.
	DeleteMessage(ctx context.Context, messageID string) error

	// ListMessages returns messages for the destination, newest first.
	ListMessages(ctx context.Context, dest models.Destination, limit, offset int) ([]*models.Message, error)
}

// AttachmentStore records who uploaded each attachment ref. A ref belongs to at
// most one message; the record goes away with that message.
type AttachmentStore interface {
	// RecordAttachment registers ref as uploaded by ownerID and not yet claimed.
	RecordAttachment(ctx context.Context, ref, ownerID string) error
}
