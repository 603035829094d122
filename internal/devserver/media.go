package devserver

import (
	"context"
	"errors"
	"sync"

	"github.com/dkeye/interviewer/internal/adapters/rtc"
	"github.com/dkeye/interviewer/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

var ErrMissingSession = errors.New("offer carries no session_id")

// MediaServer answers one-shot offers and feeds received tracks to a Sink.
type MediaServer struct {
	cfg  webrtc.Configuration
	sink *Sink

	mu    sync.Mutex
	peers map[domain.ID]*rtc.Peer
}

func NewMediaServer(cfg webrtc.Configuration, sink *Sink) *MediaServer {
	return &MediaServer{cfg: cfg, sink: sink, peers: make(map[domain.ID]*rtc.Peer)}
}

// Answer replaces any previous peer for the session.
func (s *MediaServer) Answer(ctx context.Context, req rtc.OfferRequest) (rtc.AnswerResponse, error) {
	if req.SessionID == "" {
		return rtc.AnswerResponse{}, ErrMissingSession
	}
	sid := domain.ID(req.SessionID)
	peer, err := rtc.NewPeer(s.cfg, req.SessionID)
	if err != nil {
		return rtc.AnswerResponse{}, err
	}
	peer.OnTrack(func(ctx context.Context, track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		logger := log.With().Str("module", "devserver.media").Str("session", req.SessionID).Str("kind", track.Kind().String()).Logger()
		go s.sink.Consume(ctx, sid, track, &logger)
	})
	peer.OnClosed(func() { s.forget(sid, peer) })

	answer, err := peer.ApplyOfferAndCreateAnswer(ctx, webrtc.SessionDescription{Type: webrtc.NewSDPType(req.Type), SDP: req.SDP})
	if err != nil {
		peer.Close()
		return rtc.AnswerResponse{}, err
	}

	s.mu.Lock()
	old := s.peers[sid]
	s.peers[sid] = peer
	s.mu.Unlock()
	if old != nil {
		old.Close()
	}
	log.Info().Str("module", "devserver.media").Str("session", req.SessionID).Msg("offer answered")
	return rtc.AnswerResponse{SDP: answer.SDP, Type: answer.Type.String()}, nil
}

func (s *MediaServer) forget(sid domain.ID, peer *rtc.Peer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.peers[sid] == peer {
		delete(s.peers, sid)
	}
}

func (s *MediaServer) Peers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.peers)
}

func (s *MediaServer) Close() {
	s.mu.Lock()
	peers := s.peers
	s.peers = make(map[domain.ID]*rtc.Peer)
	s.mu.Unlock()
	for _, p := range peers {
		p.Close()
	}
}
