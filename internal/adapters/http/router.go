// Package http exposes the dev server over gin: the interview backend API on
// one engine and the media/transcript endpoints on another.
package http

import (
	"context"

	"github.com/dkeye/interviewer/internal/config"
	"github.com/dkeye/interviewer/internal/devserver"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type Server struct {
	cfg     config.DevServerConfig
	store   *devserver.Store
	hub     *devserver.Hub
	media   *devserver.MediaServer
	eval    *devserver.Evaluator
	limiter *devserver.LoginLimiter
	tokens  *TokenIssuer
}

type Deps struct {
	Store   *devserver.Store
	Hub     *devserver.Hub
	Media   *devserver.MediaServer
	Eval    *devserver.Evaluator
	Limiter *devserver.LoginLimiter
}

func NewServer(cfg config.DevServerConfig, d Deps) *Server {
	return &Server{
		cfg:     cfg,
		store:   d.Store,
		hub:     d.Hub,
		media:   d.Media,
		eval:    d.Eval,
		limiter: d.Limiter,
		tokens:  NewTokenIssuer(cfg.Secret, cfg.TokenTTL),
	}
}

func newEngine(mode string) *gin.Engine {
	if mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	if mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())
	return r
}

func (s *Server) BackendRouter(mode string) *gin.Engine {
	r := newEngine(mode)

	r.POST("/token", s.handleToken)
	r.POST("/register", s.handleRegister)

	api := r.Group("/", AuthMiddleware(s.tokens))
	api.GET("/users/me", s.handleMe)
	api.POST("/sessions", s.handleCreateSession)
	api.GET("/sessions/:id/questions", s.handleQuestions)
	api.GET("/sessions/:id/results", s.handleResults)
	api.POST("/sessions/:id/transcript", s.handleTranscript)
	api.POST("/answers", s.handleAnswer)

	log.Info().Str("module", "adapters.http").Msg("backend router setup")
	return r
}

// MediaRouter serves /offer and /ws/:session_id. Websocket subscribers live
// until ctx ends or the client leaves.
func (s *Server) MediaRouter(ctx context.Context, mode string) *gin.Engine {
	r := newEngine(mode)

	r.POST("/offer", s.handleOffer)
	r.GET("/ws/:session_id", func(c *gin.Context) {
		log.Info().Str("module", "adapters.http").Str("session", c.Param("session_id")).Msg("ws transcript endpoint hit")
		s.handleTranscriptWS(ctx, c)
	})

	log.Info().Str("module", "adapters.http").Msg("media router setup")
	return r
}
