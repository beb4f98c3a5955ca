package redis

import (
	"context"
	"testing"
	"time"

	"quizroom-service/internal/domain"
	"quizroom-service/internal/infra/memory"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestQuestionCacheCachesInRedis(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	loader := &countingLoader{QuestionLoader: seedStore(t)}
	cache := NewQuestionCache(client, loader, time.Minute)

	roomID := loader.roomID(t)
	questions, err := cache.RoomQuestions(context.Background(), roomID)
	if err != nil {
		t.Fatalf("room questions: %v", err)
	}
	if len(questions) != 1 || len(questions[0].Answers) != 2 {
		t.Fatalf("unexpected questions %+v", questions)
	}
	if loader.calls != 1 {
		t.Fatalf("expected loader called once, got %d", loader.calls)
	}

	// Second call should hit the redis blob, loader not incremented.
	if _, err := cache.RoomQuestions(context.Background(), roomID); err != nil {
		t.Fatalf("room questions 2: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected cache hit, loader calls=%d", loader.calls)
	}
}

func TestQuestionCacheInvalidateDropsKey(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	loader := &countingLoader{QuestionLoader: seedStore(t)}
	cache := NewQuestionCache(client, loader, time.Minute)

	roomID := loader.roomID(t)
	if _, err := cache.RoomQuestions(context.Background(), roomID); err != nil {
		t.Fatalf("room questions: %v", err)
	}
	if !mr.Exists("room:" + roomID + ":questions") {
		t.Fatalf("expected cached key")
	}

	if err := cache.Invalidate(context.Background(), roomID); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if mr.Exists("room:" + roomID + ":questions") {
		t.Fatalf("expected key removed")
	}

	if _, err := cache.RoomQuestions(context.Background(), roomID); err != nil {
		t.Fatalf("room questions after invalidate: %v", err)
	}
	if loader.calls != 2 {
		t.Fatalf("expected reload after invalidate, loader calls=%d", loader.calls)
	}
}

type countingLoader struct {
	QuestionLoader
	calls int
}

func (l *countingLoader) QuestionsByRoom(ctx context.Context, roomID string) ([]domain.Question, error) {
	l.calls++
	return l.QuestionLoader.QuestionsByRoom(ctx, roomID)
}

func (l *countingLoader) roomID(t *testing.T) string {
	t.Helper()
	room, err := l.QuestionLoader.(*memory.Store).RoomByName(context.Background(), "Trivia")
	if err != nil {
		t.Fatalf("room: %v", err)
	}
	return room.ID
}

func seedStore(t *testing.T) *memory.Store {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	alice, err := store.CreateUser(ctx, "Alice")
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	room, err := store.CreateRoom(ctx, "Trivia", alice.ID)
	if err != nil {
		t.Fatalf("seed room: %v", err)
	}
	if _, err := store.CreateQuestion(ctx, room.ID, "2+2?", []domain.AnswerInput{
		{Text: "3"},
		{Text: "4", Correct: true},
	}); err != nil {
		t.Fatalf("seed question: %v", err)
	}
	return store
}
