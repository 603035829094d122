package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	router "github.com/dkeye/interviewer/internal/adapters/http"
	"github.com/dkeye/interviewer/internal/adapters/rtc"
	"github.com/dkeye/interviewer/internal/config"
	"github.com/dkeye/interviewer/internal/devserver"
	"github.com/dkeye/interviewer/internal/logging"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize the logger early so config.Load can use it.
	logging.Setup(os.Stderr, "release")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	logging.Level(cfg.Mode)
	dc := cfg.DevServer

	store := devserver.NewStore()
	sink := devserver.NewSink()
	hub := devserver.NewHub(dc.PingPeriod)
	media := devserver.NewMediaServer(rtc.ICEConfig(dc.ICEServers), sink)
	defer media.Close()

	srv := router.NewServer(dc, router.Deps{
		Store:   store,
		Hub:     hub,
		Media:   media,
		Eval:    devserver.NewEvaluator(store, sink, dc.EvaluateDelay),
		Limiter: devserver.NewLoginLimiter(dc.LoginLimit, dc.LoginWindow),
	})

	servers := []*http.Server{
		{Addr: dc.BackendAddr, Handler: srv.BackendRouter(cfg.Mode)},
		{Addr: dc.MediaAddr, Handler: srv.MediaRouter(ctx, cfg.Mode)},
	}
	for _, s := range servers {
		go func(s *http.Server) {
			log.Info().Str("addr", s.Addr).Msg("devserver listening")
			if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Str("addr", s.Addr).Msg("server error")
				cancel()
			}
		}(s)
	}

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	hub.CloseAll()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	for _, s := range servers {
		if err := s.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Str("addr", s.Addr).Msg("Server forced to shutdown")
		}
	}
	log.Info().Msg("Devserver exited gracefully")
}
