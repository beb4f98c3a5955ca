package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"quizroom-service/internal/domain"
)

// RoomService contains the room lifecycle and scoring use cases.
type RoomService struct {
	store    Store
	sessions SessionStore
	catalog  QuestionCatalog
}

func NewRoomService(store Store, sessions SessionStore, catalog QuestionCatalog) *RoomService {
	return &RoomService{store: store, sessions: sessions, catalog: catalog}
}

// QuestionStatus pairs a question with the caller's recorded submission so
// the quiz view can mark answered questions after a reload. The ledger is
// the authoritative answered signal, never client memory.
type QuestionStatus struct {
	Question       domain.Question
	Answered       bool
	ChosenAnswerID string
}

// JoinRoom resolves (or creates) the user by name, resolves the room by
// name, and issues a session token. Only the room creator may join as
// admin; a nonexistent room is created only for an admin join. Non-admin
// joins upsert a membership row whose defaults apply on first insert only,
// so re-joining never resets an existing score or acceptance.
func (s *RoomService) JoinRoom(ctx context.Context, name, roomName string, asAdmin bool) (domain.JoinResult, error) {
	name = strings.TrimSpace(name)
	roomName = strings.TrimSpace(roomName)
	if name == "" || roomName == "" {
		return domain.JoinResult{}, fmt.Errorf("%w: name and room name are required", domain.ErrInvalidInput)
	}

	user, err := s.getOrCreateUser(ctx, name)
	if err != nil {
		return domain.JoinResult{}, err
	}

	room, err := s.store.RoomByName(ctx, roomName)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		if !asAdmin {
			return domain.JoinResult{}, fmt.Errorf("%w: room does not exist, only admins can create new rooms", domain.ErrNotFound)
		}
		room, err = s.createRoom(ctx, roomName, user.ID)
		if err != nil {
			return domain.JoinResult{}, err
		}
	case err != nil:
		return domain.JoinResult{}, err
	}

	if asAdmin && room.CreatedBy != user.ID {
		return domain.JoinResult{}, fmt.Errorf("%w: you are not the admin of this room", domain.ErrForbidden)
	}

	if !asAdmin {
		if err := s.store.EnsureMembership(ctx, user.ID, room.ID); err != nil {
			return domain.JoinResult{}, err
		}
	}

	token, err := s.sessions.Create(ctx, user.ID)
	if err != nil {
		return domain.JoinResult{}, fmt.Errorf("%w: create session: %v", domain.ErrInternal, err)
	}

	return domain.JoinResult{RoomID: room.ID, UserID: user.ID, IsAdmin: asAdmin, Token: token}, nil
}

// AcceptQuiz marks the caller's membership as accepted. Idempotent.
func (s *RoomService) AcceptQuiz(ctx context.Context, token, roomID string) error {
	userID, err := s.authenticate(ctx, token)
	if err != nil {
		return err
	}
	if _, err := s.store.Membership(ctx, userID, roomID); err != nil {
		return err
	}
	return s.store.AcceptMembership(ctx, userID, roomID)
}

// SetRoomActive flips the activation flag. Admin only. Acceptances and
// scores are untouched, so re-activation resumes prior participants.
func (s *RoomService) SetRoomActive(ctx context.Context, token, roomID string, active bool) error {
	userID, err := s.authenticate(ctx, token)
	if err != nil {
		return err
	}
	if _, err := s.requireAdmin(ctx, userID, roomID); err != nil {
		return err
	}
	return s.store.SetRoomActive(ctx, roomID, active)
}

// AddQuestion validates and persists a question with its candidate answers
// atomically. Admin only.
func (s *RoomService) AddQuestion(ctx context.Context, token, roomID, text string, answers []domain.AnswerInput) (string, error) {
	userID, err := s.authenticate(ctx, token)
	if err != nil {
		return "", err
	}
	if _, err := s.requireAdmin(ctx, userID, roomID); err != nil {
		return "", err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: question text is required", domain.ErrInvalidInput)
	}
	cleaned := make([]domain.AnswerInput, 0, len(answers))
	correct := 0
	for _, a := range answers {
		a.Text = strings.TrimSpace(a.Text)
		if a.Text == "" {
			continue
		}
		if a.Correct {
			correct++
		}
		cleaned = append(cleaned, a)
	}
	if len(cleaned) < 2 {
		return "", fmt.Errorf("%w: at least two answers are required", domain.ErrInvalidInput)
	}
	if correct == 0 {
		return "", fmt.Errorf("%w: at least one answer must be marked correct", domain.ErrInvalidInput)
	}

	question, err := s.store.CreateQuestion(ctx, roomID, text, cleaned)
	if err != nil {
		return "", err
	}
	// Best-effort: a stale catalog entry only delays visibility until the TTL.
	_ = s.catalog.Invalidate(ctx, roomID)
	return question.ID, nil
}

// SubmitAnswer records (or replaces) the caller's answer for a question and
// reports correctness. The score update is an aggregate recomputation inside
// the store, so repeated correct submissions for one question add at most 1.
func (s *RoomService) SubmitAnswer(ctx context.Context, token, questionID, answerID string) (bool, error) {
	userID, err := s.authenticate(ctx, token)
	if err != nil {
		return false, err
	}

	answer, err := s.store.AnswerByID(ctx, answerID)
	if err != nil {
		return false, err
	}
	if answer.QuestionID != questionID {
		return false, fmt.Errorf("%w: answer does not belong to question", domain.ErrInvalidInput)
	}
	question, err := s.store.QuestionByID(ctx, questionID)
	if err != nil {
		return false, err
	}
	if _, err := s.store.Membership(ctx, userID, question.RoomID); err != nil {
		return false, err
	}

	sub := domain.Submission{UserID: userID, QuestionID: questionID, AnswerID: answerID}
	if err := s.store.RecordSubmission(ctx, sub); err != nil {
		return false, err
	}
	return answer.Correct, nil
}

// GetResults returns the ranked scoreboard for a room. Admin only.
// Ordering is deterministic: score descending, then name, then user ID.
func (s *RoomService) GetResults(ctx context.Context, token, roomID string) ([]domain.ResultEntry, error) {
	userID, err := s.authenticate(ctx, token)
	if err != nil {
		return nil, err
	}
	if _, err := s.requireAdmin(ctx, userID, roomID); err != nil {
		return nil, err
	}

	entries, err := s.store.Results(ctx, roomID)
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		if entries[i].Name != entries[j].Name {
			return entries[i].Name < entries[j].Name
		}
		return entries[i].UserID < entries[j].UserID
	})
	return entries, nil
}

// RoomState is the polled routing view: the caller shows the quiz iff
// IsActive && HasAccepted. The admin has no membership row and counts as
// accepted implicitly.
func (s *RoomService) RoomState(ctx context.Context, token, roomID string) (domain.RoomState, error) {
	userID, err := s.authenticate(ctx, token)
	if err != nil {
		return domain.RoomState{}, err
	}
	room, err := s.store.RoomByID(ctx, roomID)
	if err != nil {
		return domain.RoomState{}, err
	}
	user, err := s.store.UserByID(ctx, userID)
	if err != nil {
		return domain.RoomState{}, err
	}

	state := domain.RoomState{
		RoomID:   room.ID,
		RoomName: room.Name,
		IsActive: room.IsActive,
		UserName: user.Name,
	}
	if room.CreatedBy == userID {
		state.IsAdmin = true
		state.HasAccepted = true
		return state, nil
	}
	membership, err := s.store.Membership(ctx, userID, roomID)
	if err != nil {
		return domain.RoomState{}, err
	}
	state.HasAccepted = membership.HasAccepted
	return state, nil
}

// ListQuestions returns the quiz-taking view of a room's questions together
// with the caller's recorded submissions. Non-admin callers must have
// accepted an active room. Correctness flags stay server-side; the
// transport strips them for this view.
func (s *RoomService) ListQuestions(ctx context.Context, token, roomID string) ([]QuestionStatus, error) {
	userID, err := s.authenticate(ctx, token)
	if err != nil {
		return nil, err
	}
	room, err := s.store.RoomByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room.CreatedBy != userID {
		membership, err := s.store.Membership(ctx, userID, roomID)
		if err != nil {
			return nil, err
		}
		if !room.IsActive || !membership.HasAccepted {
			return nil, fmt.Errorf("%w: quiz is not open for you yet", domain.ErrForbidden)
		}
	}

	questions, err := s.catalog.RoomQuestions(ctx, roomID)
	if err != nil {
		return nil, err
	}
	subs, err := s.store.SubmissionsByUser(ctx, userID, roomID)
	if err != nil {
		return nil, err
	}
	chosen := make(map[string]string, len(subs))
	for _, sub := range subs {
		chosen[sub.QuestionID] = sub.AnswerID
	}

	statuses := make([]QuestionStatus, 0, len(questions))
	for _, q := range questions {
		answerID, answered := chosen[q.ID]
		statuses = append(statuses, QuestionStatus{
			Question:       q,
			Answered:       answered,
			ChosenAnswerID: answerID,
		})
	}
	return statuses, nil
}

// ListParticipants returns the dashboard participants tab. Admin only.
func (s *RoomService) ListParticipants(ctx context.Context, token, roomID string) ([]domain.Participant, error) {
	userID, err := s.authenticate(ctx, token)
	if err != nil {
		return nil, err
	}
	if _, err := s.requireAdmin(ctx, userID, roomID); err != nil {
		return nil, err
	}
	return s.store.Participants(ctx, roomID)
}

// AdminQuestions returns a room's questions with correctness flags for the
// dashboard questions tab. Admin only.
func (s *RoomService) AdminQuestions(ctx context.Context, token, roomID string) ([]domain.Question, error) {
	userID, err := s.authenticate(ctx, token)
	if err != nil {
		return nil, err
	}
	if _, err := s.requireAdmin(ctx, userID, roomID); err != nil {
		return nil, err
	}
	return s.catalog.RoomQuestions(ctx, roomID)
}

func (s *RoomService) authenticate(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", domain.ErrUnauthenticated
	}
	return s.sessions.Get(ctx, token)
}

func (s *RoomService) requireAdmin(ctx context.Context, userID, roomID string) (domain.Room, error) {
	room, err := s.store.RoomByID(ctx, roomID)
	if err != nil {
		return domain.Room{}, err
	}
	if room.CreatedBy != userID {
		return domain.Room{}, fmt.Errorf("%w: only the room admin can do this", domain.ErrForbidden)
	}
	return room, nil
}

// getOrCreateUser relies on the store's unique name constraint rather than
// a bare existence check: a losing concurrent create surfaces as a conflict
// and is retried once as a lookup.
func (s *RoomService) getOrCreateUser(ctx context.Context, name string) (domain.User, error) {
	user, err := s.store.UserByName(ctx, name)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.User{}, err
	}
	user, err = s.store.CreateUser(ctx, name)
	if errors.Is(err, domain.ErrConflict) {
		return s.store.UserByName(ctx, name)
	}
	return user, err
}

func (s *RoomService) createRoom(ctx context.Context, name, createdBy string) (domain.Room, error) {
	room, err := s.store.CreateRoom(ctx, name, createdBy)
	if errors.Is(err, domain.ErrConflict) {
		// Lost the race to another admin join; fall back to a lookup and
		// let the caller's creator check decide.
		return s.store.RoomByName(ctx, name)
	}
	return room, err
}
