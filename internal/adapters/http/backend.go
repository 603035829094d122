package http

import (
	"errors"
	"net/http"

	"github.com/dkeye/interviewer/internal/devserver"
	"github.com/dkeye/interviewer/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type registerRequest struct {
	Username       string `json:"username" binding:"required"`
	HashedPassword string `json:"hashed_password" binding:"required"`
	FullName       string `json:"full_name"`
}

type answerRequest struct {
	QuestionID domain.ID `json:"question_id" binding:"required"`
	AnswerText string    `json:"answer_text"`
}

type transcriptRequest struct {
	Text string `json:"text" binding:"required"`
}

func detail(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"detail": msg})
}

func (s *Server) handleToken(c *gin.Context) {
	username := c.PostForm("username")
	password := c.PostForm("password")
	if username == "" || password == "" {
		detail(c, http.StatusUnprocessableEntity, "username and password are required")
		return
	}
	if !s.limiter.Allow(username) {
		detail(c, http.StatusTooManyRequests, "too many login attempts")
		return
	}
	user, err := s.store.Authenticate(username, password)
	if err != nil {
		c.Header("WWW-Authenticate", "Bearer")
		detail(c, http.StatusUnauthorized, "Incorrect username or password")
		return
	}
	s.limiter.Reset(username)
	token, err := s.tokens.Issue(user.Username)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("issue token")
		detail(c, http.StatusInternalServerError, "could not issue token")
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": token, "token_type": "bearer"})
}

func (s *Server) handleRegister(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusUnprocessableEntity, err.Error())
		return
	}
	user, err := s.store.Register(req.Username, req.HashedPassword, req.FullName)
	switch {
	case errors.Is(err, devserver.ErrUserExists):
		detail(c, http.StatusBadRequest, "Username already registered")
		return
	case err != nil:
		detail(c, http.StatusUnprocessableEntity, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "registered", "id": user.ID})
}

func (s *Server) handleMe(c *gin.Context) {
	user, ok := s.store.User(c.GetString("username"))
	if !ok {
		detail(c, http.StatusUnauthorized, "Could not validate credentials")
		return
	}
	c.JSON(http.StatusOK, user)
}

func (s *Server) handleCreateSession(c *gin.Context) {
	var req domain.SessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusUnprocessableEntity, err.Error())
		return
	}
	req, err := domain.NewSessionRequest(req.UserName, req.Position)
	if err != nil {
		detail(c, http.StatusUnprocessableEntity, err.Error())
		return
	}
	sess := s.store.CreateSession(c.GetString("username"), req, devserver.Questions(req.Position, s.cfg.QuestionCount))
	c.JSON(http.StatusOK, sess)
}

func (s *Server) handleQuestions(c *gin.Context) {
	qs, err := s.store.Questions(domain.ID(c.Param("id")))
	if err != nil {
		detail(c, http.StatusNotFound, err.Error())
		return
	}
	c.JSON(http.StatusOK, qs)
}

func (s *Server) handleAnswer(c *gin.Context) {
	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusUnprocessableEntity, err.Error())
		return
	}
	answerID, q, err := s.store.AddAnswer(req.QuestionID, req.AnswerText)
	if err != nil {
		detail(c, http.StatusNotFound, err.Error())
		return
	}
	s.eval.Schedule(q.SessionID, answerID, q.Text, req.AnswerText)
	c.JSON(http.StatusOK, gin.H{"status": "submitted", "answer_id": answerID})
}

func (s *Server) handleResults(c *gin.Context) {
	rs, err := s.store.Results(domain.ID(c.Param("id")))
	if err != nil {
		detail(c, http.StatusNotFound, err.Error())
		return
	}
	c.JSON(http.StatusOK, rs)
}

// handleTranscript pushes text to the session's transcript subscribers, standing
// in for the speech-to-text pipeline.
func (s *Server) handleTranscript(c *gin.Context) {
	sid := domain.ID(c.Param("id"))
	if _, ok := s.store.Session(sid); !ok {
		detail(c, http.StatusNotFound, devserver.ErrSessionNotFound.Error())
		return
	}
	var req transcriptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusUnprocessableEntity, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"delivered": s.hub.Publish(sid, req.Text)})
}
