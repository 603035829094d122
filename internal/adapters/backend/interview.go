package backend

import (
	"context"
	"net/http"
	"net/url"

	"github.com/dkeye/interviewer/internal/domain"
)

func (c *Client) CreateSession(ctx context.Context, req domain.SessionRequest) (domain.Session, error) {
	var s domain.Session
	err := c.doJSON(ctx, http.MethodPost, "/sessions", req, &s)
	return s, err
}

func (c *Client) Questions(ctx context.Context, sessionID domain.ID) ([]domain.Question, error) {
	var qs []domain.Question
	err := c.doJSON(ctx, http.MethodGet, "/sessions/"+url.PathEscape(sessionID.String())+"/questions", nil, &qs)
	return qs, err
}

type answerPayload struct {
	QuestionID domain.ID `json:"question_id"`
	AnswerText string    `json:"answer_text"`
}

type answerAck struct {
	Status   string    `json:"status"`
	AnswerID domain.ID `json:"answer_id"`
}

func (c *Client) SubmitAnswer(ctx context.Context, questionID domain.ID, answer string) error {
	var ack answerAck
	return c.doJSON(ctx, http.MethodPost, "/answers", answerPayload{QuestionID: questionID, AnswerText: answer}, &ack)
}

func (c *Client) Results(ctx context.Context, sessionID domain.ID) ([]domain.Result, error) {
	var rs []domain.Result
	err := c.doJSON(ctx, http.MethodGet, "/sessions/"+url.PathEscape(sessionID.String())+"/results", nil, &rs)
	return rs, err
}
