package service

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestTokenRoundTrip(t *testing.T) {
	svc := NewAuthService(nil, "test-secret", time.Hour)
	user := AuthUser{ID: uuid.New(), Email: "alice@example.com"}

	token, err := svc.generateToken(user)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	got, err := svc.Authenticate(token)
	if err != nil {
		t.Fatalf("failed to authenticate: %v", err)
	}
	if got.ID != user.ID {
		t.Errorf("expected user ID %s, got %s", user.ID, got.ID)
	}
	if got.Email != user.Email {
		t.Errorf("expected email %q, got %q", user.Email, got.Email)
	}
}

func TestAuthenticateRejects(t *testing.T) {
	svc := NewAuthService(nil, "test-secret", time.Hour)

	t.Run("garbage token", func(t *testing.T) {
		if _, err := svc.Authenticate("not-a-token"); !errors.Is(err, ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})

	t.Run("token signed with a different key", func(t *testing.T) {
		other := NewAuthService(nil, "other-secret", time.Hour)
		token, err := other.generateToken(AuthUser{ID: uuid.New(), Email: "a@b.c"})
		if err != nil {
			t.Fatalf("failed to generate token: %v", err)
		}

		if _, err := svc.Authenticate(token); !errors.Is(err, ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})

	t.Run("expired token", func(t *testing.T) {
		expired := NewAuthService(nil, "test-secret", -time.Minute)
		token, err := expired.generateToken(AuthUser{ID: uuid.New(), Email: "a@b.c"})
		if err != nil {
			t.Fatalf("failed to generate token: %v", err)
		}

		if _, err := svc.Authenticate(token); !errors.Is(err, ErrNotAuthenticated) {
			t.Errorf("expected ErrNotAuthenticated, got %v", err)
		}
	})
}
