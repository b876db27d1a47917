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

const messageColumns = `id, user_id, conversation_id, post_id, content, kind, created_at, updated_at`

func scanMessage(row rowScanner) (*models.Message, error) {
	m := &models.Message{}
	var conversationID, postID sql.NullString
	var kind string
	if err := row.Scan(&m.ID, &m.SenderID, &conversationID, &postID, &m.Content, &kind, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	m.ConversationID = conversationID.String
	m.PostID = postID.String
	m.Kind = models.ContentKind(kind)
	return m, nil
}

// CreateMessage inserts a message and bumps its conversation's updated_at.
// An image message claims its attachment record in the same transaction.
func (s *SQLiteStore) CreateMessage(ctx context.Context, message *models.Message) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	if message.ID == "" {
		message.ID = uuid.New().String()
	}
	if message.Kind == "" {
		message.Kind = models.KindText
	}
	now := time.Now().Unix()
	message.CreatedAt = now
	message.UpdatedAt = now

	return s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO messages (`+messageColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, message.ID, message.SenderID, nullable(message.ConversationID), nullable(message.PostID),
			message.Content, string(message.Kind), message.CreatedAt, message.UpdatedAt)
		if err != nil {
			return classify(err, "failed to create message")
		}

		if message.Kind == models.KindImage {
			if err := claimAttachment(ctx, tx, message.Content, message.SenderID, message.ID); err != nil {
				return err
			}
		}

		if message.ConversationID != "" {
			if _, err := tx.ExecContext(ctx, `
				UPDATE conversations SET updated_at = ? WHERE id = ?
			`, now, message.ConversationID); err != nil {
				return classify(err, "failed to touch conversation")
			}
		}
		return nil
	})
}

// GetMessage retrieves a message by ID.
func (s *SQLiteStore) GetMessage(ctx context.Context, messageID string) (*models.Message, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return getMessage(ctx, s.db, messageID)
}

func getMessage(ctx context.Context, q querier, messageID string) (*models.Message, error) {
	m, err := scanMessage(q.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM messages WHERE id = ?`, messageID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("failed to get message: %w", apperr.ErrMessageNotFound)
	}
	if err != nil {
		return nil, classify(err, "failed to get message")
	}
	return m, nil
}

// UpdateMessage applies the set fields of update.
func (s *SQLiteStore) UpdateMessage(ctx context.Context, messageID string, update models.MessageUpdate) (*models.Message, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	var message *models.Message
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if update.Content != nil {
			res, err := tx.ExecContext(ctx, `
				UPDATE messages SET content = ?, updated_at = ? WHERE id = ?
			`, *update.Content, time.Now().Unix(), messageID)
			if err != nil {
				return classify(err, "failed to update message")
			}
			if n, _ := res.RowsAffected(); n == 0 {
				return fmt.Errorf("failed to update message: %w", apperr.ErrMessageNotFound)
			}
		}

		var err error
		message, err = getMessage(ctx, tx, messageID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return message, nil
}

// DeleteMessage removes a message.
func (s *SQLiteStore) DeleteMessage(ctx context.Context, messageID string) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE id = ?`, messageID)
	if err != nil {
		return classify(err, "failed to delete message")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("failed to delete message: %w", apperr.ErrMessageNotFound)
	}
	return nil
}

// ListMessages returns a page of the destination's messages, newest first.
// Messages created in the same second keep insertion order via rowid.
func (s *SQLiteStore) ListMessages(ctx context.Context, dest models.Destination, limit, offset int) ([]*models.Message, error) {
	if !dest.Valid() {
		return nil, apperr.ErrInvalidDestination
	}

	ctx, cancel := s.bound(ctx)
	defer cancel()

	column, id := "conversation_id", dest.ConversationID
	if dest.PostID != "" {
		column, id = "post_id", dest.PostID
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+messageColumns+` FROM messages
		WHERE `+column+` = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ? OFFSET ?
	`, id, limit, offset)
	if err != nil {
		return nil, classify(err, "failed to list messages")
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, classify(err, "failed to scan message")
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err, "error iterating messages")
	}
	return messages, nil
}
