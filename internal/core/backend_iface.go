package core

import (
	"context"

	"github.com/dkeye/interviewer/internal/domain"
)

// Backend is the interview collaborator. Implementations attach the bearer token.
type Backend interface {
	CreateSession(ctx context.Context, req domain.SessionRequest) (domain.Session, error)
	Questions(ctx context.Context, sessionID domain.ID) ([]domain.Question, error)
	SubmitAnswer(ctx context.Context, questionID domain.ID, answer string) error
	Results(ctx context.Context, sessionID domain.ID) ([]domain.Result, error)
}

// Authenticator delegates auth entirely to the backend.
type Authenticator interface {
	Login(ctx context.Context, username, password string) (string, error)
	Register(ctx context.Context, creds domain.Credentials) error
	CurrentUser(ctx context.Context) (domain.User, error)
}

// TokenStore persists the bearer token across runs.
// Token returns "" when no usable token is stored.
type TokenStore interface {
	Token() string
	Save(token string) error
	Clear() error
}
