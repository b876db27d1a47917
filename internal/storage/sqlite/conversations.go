package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/appdevjohn/Social-Network-Backend/internal/apperr"
	"github.com/appdevjohn/Social-Network-Backend/internal/models"
)

// CreateConversation inserts the conversation together with its members.
func (s *SQLiteStore) CreateConversation(ctx context.Context, conversation *models.Conversation, memberIDs []string) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	if len(memberIDs) == 0 {
		return apperr.New(apperr.Invalid, "a conversation needs at least one member")
	}
	if conversation.ID == "" {
		conversation.ID = uuid.New().String()
	}
	now := time.Now().Unix()
	conversation.CreatedAt = now
	conversation.UpdatedAt = now

	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO conversations (id, name, created_at, updated_at)
			VALUES (?, ?, ?, ?)
		`, conversation.ID, conversation.Name, conversation.CreatedAt, conversation.UpdatedAt); err != nil {
			return classify(err, "failed to create conversation")
		}

		for _, userID := range memberIDs {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO conversation_members (conversation_id, user_id) VALUES (?, ?)
			`, conversation.ID, userID); err != nil {
				return classify(err, "failed to add conversation member")
			}
		}
		return nil
	})
}

// GetConversation retrieves a conversation by ID.
func (s *SQLiteStore) GetConversation(ctx context.Context, conversationID string) (*models.Conversation, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return getConversation(ctx, s.db, conversationID)
}

func getConversation(ctx context.Context, q querier, conversationID string) (*models.Conversation, error) {
	c := &models.Conversation{}
	err := q.QueryRowContext(ctx, `
		SELECT id, name, created_at, updated_at FROM conversations WHERE id = ?
	`, conversationID).Scan(&c.ID, &c.Name, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("failed to get conversation: %w", apperr.ErrConversationNotFound)
	}
	if err != nil {
		return nil, classify(err, "failed to get conversation")
	}
	return c, nil
}

// ListConversationsByUser returns the user's conversations, most recently updated first.
func (s *SQLiteStore) ListConversationsByUser(ctx context.Context, userID string) ([]*models.Conversation, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.name, c.created_at, c.updated_at
		FROM conversations c
		JOIN conversation_members cm ON cm.conversation_id = c.id
		WHERE cm.user_id = ?
		ORDER BY c.updated_at DESC, c.id
	`, userID)
	if err != nil {
		return nil, classify(err, "failed to list conversations")
	}
	defer rows.Close()

	var conversations []*models.Conversation
	for rows.Next() {
		c := &models.Conversation{}
		if err := rows.Scan(&c.ID, &c.Name, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, classify(err, "failed to scan conversation")
		}
		conversations = append(conversations, c)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "error iterating conversations")
	}
	return conversations, nil
}

// UpdateConversation applies the set fields of update.
func (s *SQLiteStore) UpdateConversation(ctx context.Context, conversationID string, update models.ConversationUpdate) (*models.Conversation, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	var conversation *models.Conversation
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if update.Name != nil {
			res, err := tx.ExecContext(ctx, `
				UPDATE conversations SET name = ?, updated_at = ? WHERE id = ?
			`, *update.Name, time.Now().Unix(), conversationID)
			if err != nil {
				return classify(err, "failed to update conversation")
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return fmt.Errorf("failed to update conversation: %w", apperr.ErrConversationNotFound)
			}
		}

		var err error
		conversation, err = getConversation(ctx, tx, conversationID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return conversation, nil
}

// RemoveConversationMember removes the row and deletes the conversation once
// nobody is left in it.
func (s *SQLiteStore) RemoveConversationMember(ctx context.Context, conversationID, userID string) (bool, []string, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	var (
		deleted bool
		refs    []string
	)
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			DELETE FROM conversation_members WHERE conversation_id = ? AND user_id = ?
		`, conversationID, userID)
		if err != nil {
			return classify(err, "failed to remove conversation member")
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("failed to remove conversation member: %w", apperr.ErrNotInConversation)
		}

		// Read pointers of departed members are not kept.
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM last_read WHERE conversation_id = ? AND user_id = ?
		`, conversationID, userID); err != nil {
			return classify(err, "failed to clear read pointer")
		}

		var remaining int
		if err := tx.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM conversation_members WHERE conversation_id = ?
		`, conversationID).Scan(&remaining); err != nil {
			return classify(err, "failed to count conversation members")
		}
		if remaining > 0 {
			return nil
		}

		refs, err = attachmentRefs(ctx, tx, `
			SELECT content FROM messages
			WHERE conversation_id = ? AND kind = 'image' AND content <> ''
		`, conversationID)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM conversations WHERE id = ?`, conversationID); err != nil {
			return classify(err, "failed to delete conversation")
		}
		deleted = true
		return nil
	})
	if err != nil {
		return false, nil, err
	}
	return deleted, refs, nil
}

// ListConversationMembers returns the member users ordered by username.
func (s *SQLiteStore) ListConversationMembers(ctx context.Context, conversationID string) ([]*models.User, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT u.id, u.username, u.email, u.first_name, u.last_name, u.password_hash,
		       u.profile_pic, u.activated, u.created_at, u.updated_at
		FROM conversation_members cm
		JOIN users u ON u.id = cm.user_id
		WHERE cm.conversation_id = ?
		ORDER BY u.username
	`, conversationID)
	if err != nil {
		return nil, classify(err, "failed to list conversation members")
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, classify(err, "failed to scan user")
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "error iterating conversation members")
	}
	return users, nil
}

// ListConversationMemberIDs returns the IDs of the conversation's members.
func (s *SQLiteStore) ListConversationMemberIDs(ctx context.Context, conversationID string) ([]string, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id FROM conversation_members WHERE conversation_id = ?
	`, conversationID)
	if err != nil {
		return nil, classify(err, "failed to list conversation member IDs")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, classify(err, "failed to scan member ID")
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "error iterating member IDs")
	}
	return ids, nil
}

// IsConversationMember reports whether the user belongs to the conversation.
func (s *SQLiteStore) IsConversationMember(ctx context.Context, conversationID, userID string) (bool, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	var exists int
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM conversation_members WHERE conversation_id = ? AND user_id = ?)
	`, conversationID, userID).Scan(&exists)
	if err != nil {
		return false, classify(err, "failed to check conversation membership")
	}
	return exists == 1, nil
}

// SetLastRead upserts the read pointer in a single statement.
func (s *SQLiteStore) SetLastRead(ctx context.Context, conversationID, userID, messageID string) (string, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	var stored string
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO last_read (conversation_id, user_id, message_id, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (conversation_id, user_id)
		DO UPDATE SET message_id = excluded.message_id, updated_at = excluded.updated_at
		RETURNING message_id
	`, conversationID, userID, messageID, time.Now().Unix()).Scan(&stored)
	if err != nil {
		return "", classify(err, "failed to set last read")
	}
	return stored, nil
}

// GetLastRead returns the read pointer for the pair.
func (s *SQLiteStore) GetLastRead(ctx context.Context, conversationID, userID string) (string, bool, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	var messageID string
	err := s.db.QueryRowContext(ctx, `
		SELECT message_id FROM last_read WHERE conversation_id = ? AND user_id = ?
	`, conversationID, userID).Scan(&messageID)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, classify(err, "failed to get last read")
	}
	return messageID, true, nil
}
