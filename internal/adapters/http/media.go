package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/dkeye/interviewer/internal/adapters/rtc"
	"github.com/dkeye/interviewer/internal/devserver"
	"github.com/dkeye/interviewer/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (s *Server) handleOffer(c *gin.Context) {
	var req rtc.OfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		detail(c, http.StatusBadRequest, err.Error())
		return
	}
	ans, err := s.media.Answer(c.Request.Context(), req)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, devserver.ErrMissingSession) {
			status = http.StatusBadRequest
		}
		log.Error().Err(err).Str("module", "adapters.http").Str("session", req.SessionID).Msg("offer failed")
		detail(c, status, err.Error())
		return
	}
	c.JSON(http.StatusOK, ans)
}

func (s *Server) handleTranscriptWS(ctx context.Context, c *gin.Context) {
	sid := domain.ID(c.Param("session_id"))
	if _, ok := s.store.Session(sid); !ok {
		detail(c, http.StatusNotFound, devserver.ErrSessionNotFound.Error())
		return
	}
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Msg("ws upgrade")
		return
	}
	s.hub.Serve(ctx, sid, ws)
}
