package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents a registered user account.
type User struct {
	// ID is the unique identifier for the user (UUID format).
	ID string

	// Username is the unique handle other users address conversations to.
	Username string

	// Email is the user's email address (unique). Used for login.
	Email string

	FirstName string
	LastName  string

	// PasswordHash is the bcrypt hash of the user's password.
	PasswordHash string

	// ProfilePic is an attachment ref, empty when unset.
	ProfilePic string

	// Activated is false until the account's email address is verified.
	Activated bool

	CreatedAt int64
	UpdatedAt int64
}

// NewUser builds a user with a fresh ID and timestamps.
func NewUser(username, email, passwordHash string) *User {
	now := time.Now().Unix()
	return &User{
		ID:           uuid.New().String(),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
