package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/appdevjohn/Social-Network-Backend/internal/apperr"
)

// RecordAttachment registers an uploaded ref for its owner.
func (s *SQLiteStore) RecordAttachment(ctx context.Context, ref, ownerID string) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO attachments (ref, owner_id, created_at) VALUES (?, ?, ?)
	`, ref, ownerID, time.Now().Unix())
	if err != nil {
		return classify(err, "failed to record attachment")
	}
	return nil
}

// claimAttachment binds ref to messageID. Only the uploader can claim a ref,
// and only once.
func claimAttachment(ctx context.Context, tx *sql.Tx, ref, ownerID, messageID string) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE attachments SET message_id = ?
		WHERE ref = ? AND owner_id = ? AND message_id IS NULL
	`, messageID, ref, ownerID)
	if err != nil {
		return classify(err, "failed to claim attachment")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("failed to claim attachment %q: %w", ref, apperr.ErrAttachmentNotOwned)
	}
	return nil
}
