package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"quizroom-service/internal/domain"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestSessionStoreRoundTrip(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewSessionStore(client, 24*time.Hour)

	token, err := store.Create(context.Background(), "u-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !mr.Exists("session:" + token) {
		t.Fatalf("expected session key in redis")
	}

	userID, err := store.Get(context.Background(), token)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if userID != "u-1" {
		t.Fatalf("expected u-1, got %s", userID)
	}
}

func TestSessionStoreFixedTTL(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewSessionStore(client, 24*time.Hour)

	token, err := store.Create(context.Background(), "u-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	mr.FastForward(23 * time.Hour)
	if _, err := store.Get(context.Background(), token); err != nil {
		t.Fatalf("expected live session at 23h, got %v", err)
	}

	mr.FastForward(2 * time.Hour)
	if _, err := store.Get(context.Background(), token); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected expiry at 25h, got %v", err)
	}
}
