package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"quizroom-service/internal/app"
	"quizroom-service/internal/domain"
	"github.com/gin-gonic/gin"
)

const sessionCookie = "quiz_session"

// Handler wires the room workflow into a JSON API. Clients poll the read
// endpoints (page refresh) to observe state transitions; there is no push.
type Handler struct {
	service    *app.RoomService
	sessionTTL time.Duration
}

// NewRouter builds the gin engine with all API routes registered.
func NewRouter(service *app.RoomService, sessionTTL time.Duration) *gin.Engine {
	h := &Handler{service: service, sessionTTL: sessionTTL}

	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	api := router.Group("/api")
	api.POST("/rooms/join", h.joinRoom)
	api.GET("/rooms/:roomID", h.roomState)
	api.POST("/rooms/:roomID/accept", h.acceptQuiz)
	api.POST("/rooms/:roomID/active", h.setRoomActive)
	api.GET("/rooms/:roomID/questions", h.listQuestions)
	api.POST("/rooms/:roomID/questions", h.addQuestion)
	api.GET("/rooms/:roomID/participants", h.listParticipants)
	api.GET("/rooms/:roomID/admin/questions", h.adminQuestions)
	api.GET("/rooms/:roomID/results", h.getResults)
	api.POST("/questions/:questionID/answer", h.submitAnswer)

	return router
}

type joinRequest struct {
	Name     string `json:"name"`
	RoomName string `json:"roomName"`
	AsAdmin  bool   `json:"asAdmin"`
}

func (h *Handler) joinRoom(c *gin.Context) {
	var req joinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErr(c, domain.ErrInvalidInput)
		return
	}
	result, err := h.service.JoinRoom(c.Request.Context(), req.Name, req.RoomName, req.AsAdmin)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(sessionCookie, result.Token, int(h.sessionTTL.Seconds()), "/", "", false, true)
	c.JSON(http.StatusOK, gin.H{
		"roomId":  result.RoomID,
		"userId":  result.UserID,
		"isAdmin": result.IsAdmin,
		"token":   result.Token,
	})
}

func (h *Handler) roomState(c *gin.Context) {
	state, err := h.service.RoomState(c.Request.Context(), h.token(c), c.Param("roomID"))
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

func (h *Handler) acceptQuiz(c *gin.Context) {
	if err := h.service.AcceptQuiz(c.Request.Context(), h.token(c), c.Param("roomID")); err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type activeRequest struct {
	Active bool `json:"active"`
}

func (h *Handler) setRoomActive(c *gin.Context) {
	var req activeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErr(c, domain.ErrInvalidInput)
		return
	}
	if err := h.service.SetRoomActive(c.Request.Context(), h.token(c), c.Param("roomID"), req.Active); err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type addQuestionRequest struct {
	Text    string               `json:"text"`
	Answers []domain.AnswerInput `json:"answers"`
}

func (h *Handler) addQuestion(c *gin.Context) {
	var req addQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErr(c, domain.ErrInvalidInput)
		return
	}
	questionID, err := h.service.AddQuestion(c.Request.Context(), h.token(c), c.Param("roomID"), req.Text, req.Answers)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "questionId": questionID})
}

type submitAnswerRequest struct {
	AnswerID string `json:"answerId"`
}

func (h *Handler) submitAnswer(c *gin.Context) {
	var req submitAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErr(c, domain.ErrInvalidInput)
		return
	}
	correct, err := h.service.SubmitAnswer(c.Request.Context(), h.token(c), c.Param("questionID"), req.AnswerID)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "isCorrect": correct})
}

func (h *Handler) getResults(c *gin.Context) {
	entries, err := h.service.GetResults(c.Request.Context(), h.token(c), c.Param("roomID"))
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"participants": entries})
}

func (h *Handler) listParticipants(c *gin.Context) {
	participants, err := h.service.ListParticipants(c.Request.Context(), h.token(c), c.Param("roomID"))
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"participants": participants})
}

// answerView deliberately omits the correctness flag: quiz takers must
// never learn it from the question listing.
type answerView struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type questionView struct {
	ID             string       `json:"id"`
	Text           string       `json:"text"`
	Answers        []answerView `json:"answers"`
	Answered       bool         `json:"answered"`
	ChosenAnswerID string       `json:"chosenAnswerId,omitempty"`
}

func (h *Handler) listQuestions(c *gin.Context) {
	statuses, err := h.service.ListQuestions(c.Request.Context(), h.token(c), c.Param("roomID"))
	if err != nil {
		writeErr(c, err)
		return
	}
	views := make([]questionView, 0, len(statuses))
	for _, status := range statuses {
		view := questionView{
			ID:             status.Question.ID,
			Text:           status.Question.Text,
			Answered:       status.Answered,
			ChosenAnswerID: status.ChosenAnswerID,
		}
		for _, answer := range status.Question.Answers {
			view.Answers = append(view.Answers, answerView{ID: answer.ID, Text: answer.Text})
		}
		views = append(views, view)
	}
	c.JSON(http.StatusOK, gin.H{"questions": views})
}

func (h *Handler) adminQuestions(c *gin.Context) {
	questions, err := h.service.AdminQuestions(c.Request.Context(), h.token(c), c.Param("roomID"))
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"questions": questions})
}

// token pulls the session token from the cookie or a bearer header.
func (h *Handler) token(c *gin.Context) string {
	if cookie, err := c.Cookie(sessionCookie); err == nil && cookie != "" {
		return cookie
	}
	auth := c.GetHeader("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

func writeErr(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
