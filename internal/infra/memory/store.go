package memory

import (
	"context"
	"fmt"
	"sync"

	"quizroom-service/internal/app"
	"quizroom-service/internal/domain"
)

// Store is an in-memory implementation of app.Store, used for dev mode and
// unit tests. Uniqueness of user and room names is enforced the same way
// the Postgres store does it, so the conflict-retry path is exercisable
// without a database.
type Store struct {
	mu          sync.RWMutex
	seq         int
	users       map[string]domain.User       // by id
	usersByName map[string]string            // name -> id
	rooms       map[string]domain.Room       // by id
	roomsByName map[string]string            // name -> id
	memberships map[string]domain.Membership // userID|roomID
	questions   map[string]domain.Question   // by id
	roomOrder   map[string][]string          // roomID -> question ids, insertion order
	answers     map[string]domain.Answer     // by id
	submissions map[string]domain.Submission // userID|questionID
}

var _ app.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		users:       make(map[string]domain.User),
		usersByName: make(map[string]string),
		rooms:       make(map[string]domain.Room),
		roomsByName: make(map[string]string),
		memberships: make(map[string]domain.Membership),
		questions:   make(map[string]domain.Question),
		roomOrder:   make(map[string][]string),
		answers:     make(map[string]domain.Answer),
		submissions: make(map[string]domain.Submission),
	}
}

func (s *Store) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%d", prefix, s.seq)
}

func (s *Store) UserByName(_ context.Context, name string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id, ok := s.usersByName[name]; ok {
		return s.users[id], nil
	}
	return domain.User{}, fmt.Errorf("%w: user %q", domain.ErrNotFound, name)
}

func (s *Store) UserByID(_ context.Context, id string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if user, ok := s.users[id]; ok {
		return user, nil
	}
	return domain.User{}, fmt.Errorf("%w: user %s", domain.ErrNotFound, id)
}

func (s *Store) CreateUser(_ context.Context, name string) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.usersByName[name]; ok {
		return domain.User{}, fmt.Errorf("%w: user name %q taken", domain.ErrConflict, name)
	}
	user := domain.User{ID: s.nextID("u"), Name: name}
	s.users[user.ID] = user
	s.usersByName[name] = user.ID
	return user, nil
}

func (s *Store) RoomByName(_ context.Context, name string) (domain.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id, ok := s.roomsByName[name]; ok {
		return s.rooms[id], nil
	}
	return domain.Room{}, fmt.Errorf("%w: room %q", domain.ErrNotFound, name)
}

func (s *Store) RoomByID(_ context.Context, id string) (domain.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if room, ok := s.rooms[id]; ok {
		return room, nil
	}
	return domain.Room{}, fmt.Errorf("%w: room %s", domain.ErrNotFound, id)
}

func (s *Store) CreateRoom(_ context.Context, name, createdBy string) (domain.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roomsByName[name]; ok {
		return domain.Room{}, fmt.Errorf("%w: room name %q taken", domain.ErrConflict, name)
	}
	room := domain.Room{ID: s.nextID("r"), Name: name, CreatedBy: createdBy}
	s.rooms[room.ID] = room
	s.roomsByName[name] = room.ID
	return room, nil
}

func (s *Store) SetRoomActive(_ context.Context, roomID string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return fmt.Errorf("%w: room %s", domain.ErrNotFound, roomID)
	}
	room.IsActive = active
	s.rooms[roomID] = room
	return nil
}

func membershipKey(userID, roomID string) string {
	return userID + "|" + roomID
}

func (s *Store) EnsureMembership(_ context.Context, userID, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[roomID]; !ok {
		return fmt.Errorf("%w: room %s", domain.ErrNotFound, roomID)
	}
	key := membershipKey(userID, roomID)
	if _, ok := s.memberships[key]; ok {
		// Defaults apply on first insert only.
		return nil
	}
	s.memberships[key] = domain.Membership{UserID: userID, RoomID: roomID}
	return nil
}

func (s *Store) Membership(_ context.Context, userID, roomID string) (domain.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if m, ok := s.memberships[membershipKey(userID, roomID)]; ok {
		return m, nil
	}
	return domain.Membership{}, fmt.Errorf("%w: not a participant of this room", domain.ErrNotFound)
}

func (s *Store) AcceptMembership(_ context.Context, userID, roomID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := membershipKey(userID, roomID)
	m, ok := s.memberships[key]
	if !ok {
		return fmt.Errorf("%w: not a participant of this room", domain.ErrNotFound)
	}
	m.HasAccepted = true
	s.memberships[key] = m
	return nil
}

func (s *Store) Participants(_ context.Context, roomID string) ([]domain.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	participants := make([]domain.Participant, 0)
	for _, m := range s.memberships {
		if m.RoomID != roomID {
			continue
		}
		participants = append(participants, domain.Participant{
			UserID:      m.UserID,
			Name:        s.users[m.UserID].Name,
			HasAccepted: m.HasAccepted,
			Score:       m.Score,
		})
	}
	return participants, nil
}

func (s *Store) CreateQuestion(_ context.Context, roomID, text string, answers []domain.AnswerInput) (domain.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[roomID]; !ok {
		return domain.Question{}, fmt.Errorf("%w: room %s", domain.ErrNotFound, roomID)
	}

	question := domain.Question{ID: s.nextID("q"), RoomID: roomID, Text: text}
	for _, input := range answers {
		question.Answers = append(question.Answers, domain.Answer{
			ID:         s.nextID("a"),
			QuestionID: question.ID,
			Text:       input.Text,
			Correct:    input.Correct,
		})
	}
	// All rows land under the one lock; no partial question is ever visible.
	s.questions[question.ID] = question
	s.roomOrder[roomID] = append(s.roomOrder[roomID], question.ID)
	for _, answer := range question.Answers {
		s.answers[answer.ID] = answer
	}
	return question, nil
}

func (s *Store) QuestionsByRoom(_ context.Context, roomID string) ([]domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.roomOrder[roomID]
	questions := make([]domain.Question, 0, len(ids))
	for _, id := range ids {
		questions = append(questions, s.questions[id])
	}
	return questions, nil
}

func (s *Store) AnswerByID(_ context.Context, answerID string) (domain.Answer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if answer, ok := s.answers[answerID]; ok {
		return answer, nil
	}
	return domain.Answer{}, fmt.Errorf("%w: answer %s", domain.ErrNotFound, answerID)
}

func (s *Store) QuestionByID(_ context.Context, questionID string) (domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if question, ok := s.questions[questionID]; ok {
		return question, nil
	}
	return domain.Question{}, fmt.Errorf("%w: question %s", domain.ErrNotFound, questionID)
}

func (s *Store) RecordSubmission(_ context.Context, sub domain.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	question, ok := s.questions[sub.QuestionID]
	if !ok {
		return fmt.Errorf("%w: question %s", domain.ErrNotFound, sub.QuestionID)
	}
	key := membershipKey(sub.UserID, question.RoomID)
	membership, ok := s.memberships[key]
	if !ok {
		return fmt.Errorf("%w: not a participant of this room", domain.ErrNotFound)
	}

	s.submissions[sub.UserID+"|"+sub.QuestionID] = sub
	membership.Score = s.correctCountLocked(sub.UserID, question.RoomID)
	s.memberships[key] = membership
	return nil
}

// correctCountLocked derives the score as an aggregate over the ledger, the
// same query the Postgres store runs inside its transaction.
func (s *Store) correctCountLocked(userID, roomID string) int {
	count := 0
	for _, questionID := range s.roomOrder[roomID] {
		sub, ok := s.submissions[userID+"|"+questionID]
		if !ok {
			continue
		}
		if answer, ok := s.answers[sub.AnswerID]; ok && answer.Correct {
			count++
		}
	}
	return count
}

func (s *Store) SubmissionsByUser(_ context.Context, userID, roomID string) ([]domain.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	subs := make([]domain.Submission, 0)
	for _, questionID := range s.roomOrder[roomID] {
		if sub, ok := s.submissions[userID+"|"+questionID]; ok {
			subs = append(subs, sub)
		}
	}
	return subs, nil
}

func (s *Store) Results(_ context.Context, roomID string) ([]domain.ResultEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := make([]domain.ResultEntry, 0)
	for _, m := range s.memberships {
		if m.RoomID != roomID {
			continue
		}
		entries = append(entries, domain.ResultEntry{
			UserID: m.UserID,
			Name:   s.users[m.UserID].Name,
			Score:  m.Score,
		})
	}
	return entries, nil
}
