package auth

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/appdevjohn/Social-Network-Backend/internal/models"
	"github.com/appdevjohn/Social-Network-Backend/internal/storage/sqlite"
)

func TestJWTManager(t *testing.T) {
	m := NewJWTManager("test-secret", time.Hour)

	t.Run("round trip", func(t *testing.T) {
		token, err := m.Generate(&models.User{ID: "u1", Username: "alice"})
		if err != nil {
			t.Fatalf("Generate failed: %v", err)
		}
		claims, err := m.Validate(token)
		if err != nil {
			t.Fatalf("Validate failed: %v", err)
		}
		if claims.UserID() != "u1" || claims.Username != "alice" {
			t.Errorf("unexpected claims %+v", claims)
		}
		userID, err := m.VerifyToken(token)
		if err != nil || userID != "u1" {
			t.Errorf("VerifyToken = %q, %v", userID, err)
		}
	})

	t.Run("wrong secret", func(t *testing.T) {
		token, _ := NewJWTManager("other", time.Hour).Generate(&models.User{ID: "u1", Username: "alice"})
		if _, err := m.Validate(token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("expected ErrInvalidToken, got %v", err)
		}
	})

	t.Run("expired", func(t *testing.T) {
		token, _ := NewJWTManager("test-secret", -time.Minute).Generate(&models.User{ID: "u1", Username: "alice"})
		if _, err := m.VerifyToken(token); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("expected ErrInvalidToken, got %v", err)
		}
	})

	t.Run("none algorithm rejected", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "u1"}})
		s, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
		if err != nil {
			t.Fatalf("failed to build token: %v", err)
		}
		if _, err := m.Validate(s); err == nil {
			t.Error("expected unsigned token to be rejected")
		}
	})

	// Tokens signed with the right secret but missing what Generate always sets.
	foreign := []struct {
		name   string
		claims jwt.RegisteredClaims
	}{
		{"other issuer", jwt.RegisteredClaims{
			Issuer: "elsewhere", Subject: "u1",
			IssuedAt: jwt.NewNumericDate(time.Now()), ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}},
		{"no expiry", jwt.RegisteredClaims{
			Issuer: TokenIssuer, Subject: "u1", IssuedAt: jwt.NewNumericDate(time.Now()),
		}},
		{"no subject", jwt.RegisteredClaims{
			Issuer:   TokenIssuer,
			IssuedAt: jwt.NewNumericDate(time.Now()), ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}},
	}
	for _, tt := range foreign {
		t.Run(tt.name, func(t *testing.T) {
			s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{RegisteredClaims: tt.claims}).SignedString([]byte("test-secret"))
			if err != nil {
				t.Fatalf("failed to build token: %v", err)
			}
			if _, err := m.VerifyToken(s); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("expected ErrInvalidToken, got %v", err)
			}
		})
	}

	t.Run("tokens are distinct", func(t *testing.T) {
		user := &models.User{ID: "u1", Username: "alice"}
		a, _ := m.Generate(user)
		b, _ := m.Generate(user)
		if a == b {
			t.Error("expected each token to carry its own ID")
		}
	})
}

func TestPasswordAuthenticator(t *testing.T) {
	store, err := sqlite.New(filepath.Join(t.TempDir(), "auth.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	a := NewPasswordAuthenticator(store).WithCost(bcrypt.MinCost)
	ctx := context.Background()

	reg := Registration{Username: "alice", Email: "Alice@Example.com", FirstName: "Alice"}
	user, err := a.Register(ctx, reg, "password123")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if user.Email != "alice@example.com" || !user.Activated {
		t.Errorf("unexpected user %+v", user)
	}

	tests := []struct {
		name string
		reg  Registration
		pass string
		want error
	}{
		{"weak password", Registration{Username: "bob", Email: "bob@example.com"}, "short", ErrWeakPassword},
		{"email taken", Registration{Username: "bob", Email: "ALICE@example.com"}, "password123", ErrEmailExists},
		{"username taken", Registration{Username: "alice", Email: "other@example.com"}, "password123", ErrUsernameExists},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := a.Register(ctx, tt.reg, tt.pass); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}

	if _, err := a.Authenticate(ctx, "ALICE@example.com", "password123"); err != nil {
		t.Errorf("Authenticate failed: %v", err)
	}
	if _, err := a.Authenticate(ctx, "alice@example.com", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := a.Authenticate(ctx, "nobody@example.com", "password123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
}
