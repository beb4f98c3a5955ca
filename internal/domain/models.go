package domain

// User is a participant identity; Name is the get-or-create lookup key.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Room is a quiz session scoped by a unique name and owned by one admin.
type Room struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedBy string `json:"createdBy"`
	IsActive  bool   `json:"isActive"`
}

// Membership is a participant's relationship to a room.
// One row per (user, room); only non-admin participants get one.
type Membership struct {
	UserID      string `json:"userId"`
	RoomID      string `json:"roomId"`
	HasAccepted bool   `json:"hasAccepted"`
	Score       int    `json:"score"`
}

// Answer is a candidate answer to a question.
type Answer struct {
	ID         string `json:"id"`
	QuestionID string `json:"questionId"`
	Text       string `json:"text"`
	Correct    bool   `json:"correct"`
}

// Question belongs to exactly one room; Answers are in insertion order.
type Question struct {
	ID      string   `json:"id"`
	RoomID  string   `json:"roomId"`
	Text    string   `json:"text"`
	Answers []Answer `json:"answers"`
}

// AnswerInput is the admin-supplied shape for a new candidate answer.
type AnswerInput struct {
	Text    string `json:"text"`
	Correct bool   `json:"isCorrect"`
}

// Submission records a user's chosen answer for a question.
// One per (user, question); resubmission replaces the choice.
type Submission struct {
	UserID     string `json:"userId"`
	QuestionID string `json:"questionId"`
	AnswerID   string `json:"answerId"`
}

// Participant is a membership joined with the user's display name.
type Participant struct {
	UserID      string `json:"userId"`
	Name        string `json:"name"`
	HasAccepted bool   `json:"hasAccepted"`
	Score       int    `json:"score"`
}

// ResultEntry is one row of the ranked results board.
type ResultEntry struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Score  int    `json:"score"`
}

// RoomState is the polled view that routes a participant between the
// waiting room and the quiz: quiz iff IsActive && HasAccepted.
type RoomState struct {
	RoomID      string `json:"roomId"`
	RoomName    string `json:"roomName"`
	IsActive    bool   `json:"isActive"`
	IsAdmin     bool   `json:"isAdmin"`
	HasAccepted bool   `json:"hasAccepted"`
	UserName    string `json:"userName"`
}

// JoinResult is what JoinRoom hands back to the transport layer.
type JoinResult struct {
	RoomID  string `json:"roomId"`
	UserID  string `json:"userId"`
	IsAdmin bool   `json:"isAdmin"`
	Token   string `json:"-"`
}
