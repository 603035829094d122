// Package rtc wraps pion peer connections for both ends of the media uplink.
package rtc

import (
	"context"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

type TrackHandler func(ctx context.Context, track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver)

// Peer is one pion PeerConnection bound to an interview session.
type Peer struct {
	pc     *webrtc.PeerConnection
	sid    string
	ctx    context.Context
	cancel context.CancelFunc

	onTrack TrackHandler

	mu       sync.Mutex
	onClosed func()

	closeOnce sync.Once
}

func ICEConfig(urls []string) webrtc.Configuration {
	var cfg webrtc.Configuration
	if len(urls) > 0 {
		cfg.ICEServers = []webrtc.ICEServer{{URLs: urls}}
	}
	return cfg
}

func NewPeer(cfg webrtc.Configuration, sid string) (*Peer, error) {
	pc, err := webrtc.NewPeerConnection(cfg)
	if err != nil {
		return nil, fmt.Errorf("new peer connection: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Peer{pc: pc, sid: sid, ctx: ctx, cancel: cancel}

	pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		log.Info().Str("module", "rtc").Str("sid", sid).Str("ice_state", s.String()).Msg("ICE state")
		if s == webrtc.ICEConnectionStateFailed || s == webrtc.ICEConnectionStateClosed {
			cancel()
		}
	})
	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		log.Info().Str("module", "rtc").Str("sid", sid).Str("peer_connection_state", s.String()).Msg("Peer state")
		if s == webrtc.PeerConnectionStateFailed || s == webrtc.PeerConnectionStateClosed {
			p.fireClosed()
		}
	})
	pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		log.Info().
			Str("module", "rtc").
			Str("sid", sid).
			Str("kind", track.Kind().String()).
			Str("codec", track.Codec().MimeType).
			Msg("OnTrack received")
		if p.onTrack != nil {
			p.onTrack(ctx, track, receiver)
		}
	})
	return p, nil
}

// OnTrack must be set before the remote description is applied.
func (p *Peer) OnTrack(fn TrackHandler) { p.onTrack = fn }

// OnClosed runs at most once, on failure or Close.
func (p *Peer) OnClosed(fn func()) {
	p.mu.Lock()
	p.onClosed = fn
	p.mu.Unlock()
}

// AddTrack attaches a local track and drains RTCP so interceptors keep running.
func (p *Peer) AddTrack(track webrtc.TrackLocal) error {
	sender, err := p.pc.AddTrack(track)
	if err != nil {
		return fmt.Errorf("add %s track: %w", track.Kind(), err)
	}
	go func() {
		buf := make([]byte, 1500)
		for {
			if _, _, err := sender.Read(buf); err != nil {
				return
			}
		}
	}()
	return nil
}

// CreateOffer returns a complete (non-trickle) local offer.
func (p *Peer) CreateOffer(ctx context.Context) (*webrtc.SessionDescription, error) {
	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return nil, fmt.Errorf("create offer: %w", err)
	}
	if err := p.setLocalAndGather(ctx, offer); err != nil {
		return nil, err
	}
	return p.pc.LocalDescription(), nil
}

func (p *Peer) AcceptAnswer(answer webrtc.SessionDescription) error {
	if err := p.pc.SetRemoteDescription(answer); err != nil {
		return fmt.Errorf("set remote answer: %w", err)
	}
	return nil
}

// ApplyOfferAndCreateAnswer is the answering side of the exchange.
func (p *Peer) ApplyOfferAndCreateAnswer(ctx context.Context, offer webrtc.SessionDescription) (*webrtc.SessionDescription, error) {
	if err := p.pc.SetRemoteDescription(offer); err != nil {
		return nil, fmt.Errorf("set remote offer: %w", err)
	}
	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return nil, fmt.Errorf("create answer: %w", err)
	}
	if err := p.setLocalAndGather(ctx, answer); err != nil {
		return nil, err
	}
	return p.pc.LocalDescription(), nil
}

func (p *Peer) setLocalAndGather(ctx context.Context, desc webrtc.SessionDescription) error {
	gatherComplete := webrtc.GatheringCompletePromise(p.pc)
	if err := p.pc.SetLocalDescription(desc); err != nil {
		return fmt.Errorf("set local %s: %w", desc.Type, err)
	}
	select {
	case <-gatherComplete:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("ICE gathering: %w", ctx.Err())
	}
}

func (p *Peer) Close() {
	p.closeOnce.Do(func() {
		p.cancel()
		if err := p.pc.Close(); err != nil {
			log.Error().Err(err).Str("module", "rtc").Str("sid", p.sid).Msg("close error")
		} else {
			log.Info().Str("module", "rtc").Str("sid", p.sid).Msg("closed")
		}
	})
	p.fireClosed()
}

func (p *Peer) fireClosed() {
	p.mu.Lock()
	fn := p.onClosed
	p.onClosed = nil
	p.mu.Unlock()
	if fn != nil {
		fn()
	}
}
