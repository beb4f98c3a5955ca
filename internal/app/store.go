package app

import (
	"context"

	"quizroom-service/internal/domain"
)

// Store abstracts the persistent room/quiz state (in-memory, Postgres).
// Multi-step methods (CreateQuestion, RecordSubmission) must be atomic:
// either every row lands or none do.
type Store interface {
	UserByName(ctx context.Context, name string) (domain.User, error)
	UserByID(ctx context.Context, id string) (domain.User, error)
	CreateUser(ctx context.Context, name string) (domain.User, error)

	RoomByName(ctx context.Context, name string) (domain.Room, error)
	RoomByID(ctx context.Context, id string) (domain.Room, error)
	CreateRoom(ctx context.Context, name, createdBy string) (domain.Room, error)
	SetRoomActive(ctx context.Context, roomID string, active bool) error

	// EnsureMembership inserts a (user, room) row with default
	// hasAccepted/score. Repeat calls are no-ops: an existing row keeps
	// its acceptance and score.
	EnsureMembership(ctx context.Context, userID, roomID string) error
	Membership(ctx context.Context, userID, roomID string) (domain.Membership, error)
	AcceptMembership(ctx context.Context, userID, roomID string) error
	Participants(ctx context.Context, roomID string) ([]domain.Participant, error)

	// CreateQuestion persists the question and all its answers in one
	// transaction; a failed answer write must not leave the question behind.
	CreateQuestion(ctx context.Context, roomID, text string, answers []domain.AnswerInput) (domain.Question, error)
	QuestionsByRoom(ctx context.Context, roomID string) ([]domain.Question, error)
	AnswerByID(ctx context.Context, answerID string) (domain.Answer, error)
	QuestionByID(ctx context.Context, questionID string) (domain.Question, error)

	// RecordSubmission upserts the (user, question) submission and, in the
	// same transaction, recomputes the user's membership score for the
	// question's room as the count of their correct submissions. The score
	// is a derived aggregate, so resubmitting the same question never adds
	// more than 1 and changing a correct answer to a wrong one takes the
	// point back.
	RecordSubmission(ctx context.Context, sub domain.Submission) error
	SubmissionsByUser(ctx context.Context, userID, roomID string) ([]domain.Submission, error)

	Results(ctx context.Context, roomID string) ([]domain.ResultEntry, error)
}

// SessionStore maps opaque tokens to user identities with a fixed TTL
// counted from issuance.
type SessionStore interface {
	Create(ctx context.Context, userID string) (string, error)
	// Get resolves a token to a user ID. Missing or expired tokens yield
	// domain.ErrUnauthenticated.
	Get(ctx context.Context, token string) (string, error)
}

// QuestionCatalog serves the refresh-driven question reads from a cache in
// front of the Store. Invalidate is called after the admin adds a question.
type QuestionCatalog interface {
	RoomQuestions(ctx context.Context, roomID string) ([]domain.Question, error)
	Invalidate(ctx context.Context, roomID string) error
}
