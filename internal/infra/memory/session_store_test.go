package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"quizroom-service/internal/domain"
)

func TestSessionStoreIssuesAndResolves(t *testing.T) {
	store := NewSessionStore(time.Hour)

	token, err := store.Create(context.Background(), "u-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	userID, err := store.Get(context.Background(), token)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if userID != "u-1" {
		t.Fatalf("expected u-1, got %s", userID)
	}

	if _, err := store.Get(context.Background(), "bogus"); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected unauthenticated for unknown token, got %v", err)
	}
}

func TestSessionStoreExpiresFromIssuance(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	clock := func() time.Time { return now }
	store := NewSessionStoreWithClock(24*time.Hour, clock)

	token, err := store.Create(context.Background(), "u-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	now = now.Add(23 * time.Hour)
	if _, err := store.Get(context.Background(), token); err != nil {
		t.Fatalf("expected live session at 23h, got %v", err)
	}

	now = now.Add(2 * time.Hour)
	if _, err := store.Get(context.Background(), token); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected expiry at 25h, got %v", err)
	}
}
