package postgres

import (
	"context"
	"errors"
	"fmt"

	"quizroom-service/internal/app"
	"quizroom-service/internal/domain"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// Store is the Postgres implementation of app.Store. Unique constraints on
// users.name, rooms.name, memberships(user_id, room_id), and
// answer_submissions(user_id, question_id) back the workflow's upsert and
// get-or-create semantics; multi-step writes run in a single transaction.
type Store struct {
	pool *pgxpool.Pool
}

var _ app.Store = (*Store)(nil)

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

const uniqueViolation = "23505"

// mapErr converts storage failures into the domain taxonomy so callers
// never see driver-specific errors.
func mapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, op)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", domain.ErrConflict, op)
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrInternal, op, err)
}

func (s *Store) UserByName(ctx context.Context, name string) (domain.User, error) {
	var user domain.User
	err := s.pool.QueryRow(ctx, `SELECT id, name FROM users WHERE name=$1`, name).
		Scan(&user.ID, &user.Name)
	if err != nil {
		return domain.User{}, mapErr("user by name", err)
	}
	return user, nil
}

func (s *Store) UserByID(ctx context.Context, id string) (domain.User, error) {
	var user domain.User
	err := s.pool.QueryRow(ctx, `SELECT id, name FROM users WHERE id=$1`, id).
		Scan(&user.ID, &user.Name)
	if err != nil {
		return domain.User{}, mapErr("user by id", err)
	}
	return user, nil
}

func (s *Store) CreateUser(ctx context.Context, name string) (domain.User, error) {
	user := domain.User{Name: name}
	err := s.pool.QueryRow(ctx, `INSERT INTO users (name) VALUES ($1) RETURNING id`, name).
		Scan(&user.ID)
	if err != nil {
		return domain.User{}, mapErr("create user", err)
	}
	return user, nil
}

func (s *Store) RoomByName(ctx context.Context, name string) (domain.Room, error) {
	var room domain.Room
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, created_by, is_active FROM rooms WHERE name=$1`, name).
		Scan(&room.ID, &room.Name, &room.CreatedBy, &room.IsActive)
	if err != nil {
		return domain.Room{}, mapErr("room by name", err)
	}
	return room, nil
}

func (s *Store) RoomByID(ctx context.Context, id string) (domain.Room, error) {
	var room domain.Room
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, created_by, is_active FROM rooms WHERE id=$1`, id).
		Scan(&room.ID, &room.Name, &room.CreatedBy, &room.IsActive)
	if err != nil {
		return domain.Room{}, mapErr("room by id", err)
	}
	return room, nil
}

func (s *Store) CreateRoom(ctx context.Context, name, createdBy string) (domain.Room, error) {
	room := domain.Room{Name: name, CreatedBy: createdBy}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO rooms (name, created_by) VALUES ($1, $2) RETURNING id`, name, createdBy).
		Scan(&room.ID)
	if err != nil {
		return domain.Room{}, mapErr("create room", err)
	}
	return room, nil
}

func (s *Store) SetRoomActive(ctx context.Context, roomID string, active bool) error {
	tag, err := s.pool.Exec(ctx, `UPDATE rooms SET is_active=$2 WHERE id=$1`, roomID, active)
	if err != nil {
		return mapErr("set room active", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: room %s", domain.ErrNotFound, roomID)
	}
	return nil
}

func (s *Store) EnsureMembership(ctx context.Context, userID, roomID string) error {
	// DO NOTHING keeps an existing row's score and acceptance intact.
	_, err := s.pool.Exec(ctx,
		`INSERT INTO memberships (user_id, room_id) VALUES ($1, $2)
		 ON CONFLICT (user_id, room_id) DO NOTHING`, userID, roomID)
	return mapErr("ensure membership", err)
}

func (s *Store) Membership(ctx context.Context, userID, roomID string) (domain.Membership, error) {
	m := domain.Membership{UserID: userID, RoomID: roomID}
	err := s.pool.QueryRow(ctx,
		`SELECT has_accepted, score FROM memberships WHERE user_id=$1 AND room_id=$2`,
		userID, roomID).Scan(&m.HasAccepted, &m.Score)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Membership{}, fmt.Errorf("%w: not a participant of this room", domain.ErrNotFound)
		}
		return domain.Membership{}, mapErr("membership", err)
	}
	return m, nil
}

func (s *Store) AcceptMembership(ctx context.Context, userID, roomID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE memberships SET has_accepted=TRUE WHERE user_id=$1 AND room_id=$2`,
		userID, roomID)
	if err != nil {
		return mapErr("accept membership", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: not a participant of this room", domain.ErrNotFound)
	}
	return nil
}

func (s *Store) Participants(ctx context.Context, roomID string) ([]domain.Participant, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT u.id, u.name, m.has_accepted, m.score
		 FROM memberships m JOIN users u ON u.id = m.user_id
		 WHERE m.room_id=$1`, roomID)
	if err != nil {
		return nil, mapErr("participants", err)
	}
	defer rows.Close()

	participants := make([]domain.Participant, 0)
	for rows.Next() {
		var p domain.Participant
		if err := rows.Scan(&p.UserID, &p.Name, &p.HasAccepted, &p.Score); err != nil {
			return nil, mapErr("participants scan", err)
		}
		participants = append(participants, p)
	}
	return participants, mapErr("participants rows", rows.Err())
}

func (s *Store) CreateQuestion(ctx context.Context, roomID, text string, answers []domain.AnswerInput) (domain.Question, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.Question{}, mapErr("begin create question", err)
	}
	defer tx.Rollback(ctx)

	question := domain.Question{RoomID: roomID, Text: text}
	err = tx.QueryRow(ctx,
		`INSERT INTO questions (room_id, question_text) VALUES ($1, $2) RETURNING id`,
		roomID, text).Scan(&question.ID)
	if err != nil {
		return domain.Question{}, mapErr("insert question", err)
	}

	for _, input := range answers {
		answer := domain.Answer{QuestionID: question.ID, Text: input.Text, Correct: input.Correct}
		err = tx.QueryRow(ctx,
			`INSERT INTO answers (question_id, answer_text, is_correct) VALUES ($1, $2, $3) RETURNING id`,
			question.ID, input.Text, input.Correct).Scan(&answer.ID)
		if err != nil {
			// Rollback in the deferred call; no orphaned question survives.
			return domain.Question{}, mapErr("insert answer", err)
		}
		question.Answers = append(question.Answers, answer)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Question{}, mapErr("commit create question", err)
	}
	return question, nil
}

func (s *Store) QuestionsByRoom(ctx context.Context, roomID string) ([]domain.Question, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT q.id, q.question_text, a.id, a.answer_text, a.is_correct
		 FROM questions q JOIN answers a ON a.question_id = q.id
		 WHERE q.room_id=$1
		 ORDER BY q.position, a.position`, roomID)
	if err != nil {
		return nil, mapErr("questions by room", err)
	}
	defer rows.Close()

	questions := make([]domain.Question, 0)
	index := make(map[string]int)
	for rows.Next() {
		var questionID, questionText string
		var answer domain.Answer
		if err := rows.Scan(&questionID, &questionText, &answer.ID, &answer.Text, &answer.Correct); err != nil {
			return nil, mapErr("questions scan", err)
		}
		answer.QuestionID = questionID
		i, ok := index[questionID]
		if !ok {
			questions = append(questions, domain.Question{ID: questionID, RoomID: roomID, Text: questionText})
			i = len(questions) - 1
			index[questionID] = i
		}
		questions[i].Answers = append(questions[i].Answers, answer)
	}
	return questions, mapErr("questions rows", rows.Err())
}

func (s *Store) AnswerByID(ctx context.Context, answerID string) (domain.Answer, error) {
	var answer domain.Answer
	err := s.pool.QueryRow(ctx,
		`SELECT id, question_id, answer_text, is_correct FROM answers WHERE id=$1`, answerID).
		Scan(&answer.ID, &answer.QuestionID, &answer.Text, &answer.Correct)
	if err != nil {
		return domain.Answer{}, mapErr("answer by id", err)
	}
	return answer, nil
}

func (s *Store) QuestionByID(ctx context.Context, questionID string) (domain.Question, error) {
	var question domain.Question
	err := s.pool.QueryRow(ctx,
		`SELECT id, room_id, question_text FROM questions WHERE id=$1`, questionID).
		Scan(&question.ID, &question.RoomID, &question.Text)
	if err != nil {
		return domain.Question{}, mapErr("question by id", err)
	}
	return question, nil
}

// RecordSubmission upserts the (user, question) submission and recomputes
// the membership score as the count of the user's correct submissions for
// the room, all in one transaction. Deriving the score instead of
// incrementing it keeps resubmission idempotent: at most 1 point per
// distinct question, and a changed answer moves the score both ways.
func (s *Store) RecordSubmission(ctx context.Context, sub domain.Submission) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return mapErr("begin submission", err)
	}
	defer tx.Rollback(ctx)

	var roomID string
	err = tx.QueryRow(ctx, `SELECT room_id FROM questions WHERE id=$1`, sub.QuestionID).Scan(&roomID)
	if err != nil {
		return mapErr("submission question", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO answer_submissions (user_id, question_id, answer_id)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id, question_id) DO UPDATE SET answer_id=EXCLUDED.answer_id`,
		sub.UserID, sub.QuestionID, sub.AnswerID)
	if err != nil {
		return mapErr("upsert submission", err)
	}

	tag, err := tx.Exec(ctx,
		`UPDATE memberships SET score = (
		     SELECT count(*) FROM answer_submissions s
		     JOIN answers a ON a.id = s.answer_id
		     JOIN questions q ON q.id = s.question_id
		     WHERE s.user_id = $1 AND q.room_id = $2 AND a.is_correct
		 )
		 WHERE user_id = $1 AND room_id = $2`,
		sub.UserID, roomID)
	if err != nil {
		return mapErr("rescore membership", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: not a participant of this room", domain.ErrNotFound)
	}

	return mapErr("commit submission", tx.Commit(ctx))
}

func (s *Store) SubmissionsByUser(ctx context.Context, userID, roomID string) ([]domain.Submission, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT s.user_id, s.question_id, s.answer_id
		 FROM answer_submissions s
		 JOIN questions q ON q.id = s.question_id
		 WHERE s.user_id=$1 AND q.room_id=$2`, userID, roomID)
	if err != nil {
		return nil, mapErr("submissions by user", err)
	}
	defer rows.Close()

	subs := make([]domain.Submission, 0)
	for rows.Next() {
		var sub domain.Submission
		if err := rows.Scan(&sub.UserID, &sub.QuestionID, &sub.AnswerID); err != nil {
			return nil, mapErr("submissions scan", err)
		}
		subs = append(subs, sub)
	}
	return subs, mapErr("submissions rows", rows.Err())
}

func (s *Store) Results(ctx context.Context, roomID string) ([]domain.ResultEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT u.id, u.name, m.score
		 FROM memberships m JOIN users u ON u.id = m.user_id
		 WHERE m.room_id=$1`, roomID)
	if err != nil {
		return nil, mapErr("results", err)
	}
	defer rows.Close()

	entries := make([]domain.ResultEntry, 0)
	for rows.Next() {
		var entry domain.ResultEntry
		if err := rows.Scan(&entry.UserID, &entry.Name, &entry.Score); err != nil {
			return nil, mapErr("results scan", err)
		}
		entries = append(entries, entry)
	}
	return entries, mapErr("results rows", rows.Err())
}
