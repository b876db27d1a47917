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

// CreatePost inserts a post into a group.
func (s *SQLiteStore) CreatePost(ctx context.Context, post *models.Post) error {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	if post.ID == "" {
		post.ID = uuid.New().String()
	}
	now := time.Now().Unix()
	post.CreatedAt = now
	post.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO posts (id, group_id, user_id, title, body, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, post.ID, post.GroupID, post.UserID, post.Title, post.Body, post.CreatedAt, post.UpdatedAt)
	if err != nil {
		return classify(err, "failed to create post")
	}
	return nil
}

// GetPost retrieves a post by ID.
func (s *SQLiteStore) GetPost(ctx context.Context, postID string) (*models.Post, error) {
	ctx, cancel := s.bound(ctx)
	defer cancel()

	post := &models.Post{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, group_id, user_id, title, body, created_at, updated_at
		FROM posts WHERE id = ?
	`, postID).Scan(&post.ID, &post.GroupID, &post.UserID, &post.Title, &post.Body, &post.CreatedAt, &post.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("failed to get post: %w", apperr.ErrPostNotFound)
	}
	if err != nil {
		return nil, classify(err, "failed to get post")
	}
	return post, nil
}
