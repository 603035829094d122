package rtc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/interviewer/internal/adapters/capture"
	"github.com/dkeye/interviewer/internal/core"
	"github.com/dkeye/interviewer/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

var ErrNegotiatorClosed = errors.New("media negotiator closed")

type Config struct {
	OfferURL     string
	ICEServers   []string
	OfferTimeout time.Duration
}

// Negotiator is the client end of the media uplink: local capture published
// over one peer connection, negotiated once over HTTP.
type Negotiator struct {
	cfg     Config
	devices capture.Devices
	http    *http.Client

	mu        sync.Mutex
	connected bool
	closed    bool
	peer      *Peer
	sources   []capture.Source
	cancel    context.CancelFunc
	pumps     sync.WaitGroup
}

var _ core.MediaNegotiator = (*Negotiator)(nil)

func NewNegotiator(cfg Config, devices capture.Devices) *Negotiator {
	if cfg.OfferTimeout <= 0 {
		cfg.OfferTimeout = 15 * time.Second
	}
	return &Negotiator{cfg: cfg, devices: devices, http: &http.Client{}}
}

type localTrack struct {
	src   capture.Source
	track *webrtc.TrackLocalStaticSample
}

func (n *Negotiator) Connect(ctx context.Context, sessionID domain.ID) (core.MediaMode, error, error) {
	n.mu.Lock()
	switch {
	case n.closed:
		n.mu.Unlock()
		return 0, nil, ErrNegotiatorClosed
	case n.connected:
		n.mu.Unlock()
		return 0, nil, errors.New("media negotiator already connected")
	}
	n.connected = true
	n.mu.Unlock()

	sid := sessionID.String()
	sources, mode, warn, err := n.acquire(ctx, sid)
	if err != nil {
		return 0, nil, &domain.MediaUnavailableError{Err: err}
	}

	// A failed exchange is non-fatal: the interview goes on without an uplink.
	peer, tracks, err := n.negotiate(ctx, sid, sources)
	if err != nil {
		closeSources(sources)
		log.Error().Err(err).Str("module", "rtc").Str("sid", sid).Msg("negotiation failed, continuing without uplink")
		return mode, &domain.NegotiationError{Err: err}, nil
	}

	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		peer.Close()
		closeSources(sources)
		return 0, nil, ErrNegotiatorClosed
	}
	pumpCtx, cancel := context.WithCancel(context.Background())
	n.peer, n.sources, n.cancel = peer, sources, cancel
	for _, lt := range tracks {
		n.pumps.Add(1)
		go n.pump(pumpCtx, sid, lt)
	}
	n.mu.Unlock()

	log.Info().Str("module", "rtc").Str("sid", sid).Stringer("mode", mode).Msg("media link up")
	return mode, warn, nil
}

// acquire opens the camera and the microphone. A camera problem degrades the
// link to audio-only; a microphone problem fails it.
func (n *Negotiator) acquire(ctx context.Context, sid string) ([]capture.Source, core.MediaMode, error, error) {
	mode := core.MediaAudioVideo
	var warn error

	video, err := n.devices.OpenVideo(ctx)
	if err != nil {
		ev := log.Warn()
		if !capture.IsDeviceError(err) {
			ev = log.Error()
		}
		ev.Err(err).Str("module", "rtc").Str("sid", sid).Msg("video capture failed, falling back to audio-only")
		mode = core.MediaAudioOnly
		warn = &domain.DegradedModeWarning{Err: err}
	}

	audio, err := n.devices.OpenAudio(ctx)
	if err != nil {
		if video != nil {
			_ = video.Close()
		}
		return nil, 0, nil, fmt.Errorf("open audio: %w", err)
	}

	sources := []capture.Source{audio}
	if video != nil {
		sources = append(sources, video)
	}
	return sources, mode, warn, nil
}

func (n *Negotiator) negotiate(ctx context.Context, sid string, sources []capture.Source) (*Peer, []localTrack, error) {
	ctx, cancel := context.WithTimeout(ctx, n.cfg.OfferTimeout)
	defer cancel()

	peer, err := NewPeer(ICEConfig(n.cfg.ICEServers), sid)
	if err != nil {
		return nil, nil, err
	}
	tracks := make([]localTrack, 0, len(sources))
	for _, src := range sources {
		track, err := webrtc.NewTrackLocalStaticSample(src.Codec(), src.Kind().String(), "interview-"+sid)
		if err != nil {
			peer.Close()
			return nil, nil, fmt.Errorf("new %s track: %w", src.Kind(), err)
		}
		if err := peer.AddTrack(track); err != nil {
			peer.Close()
			return nil, nil, err
		}
		tracks = append(tracks, localTrack{src: src, track: track})
	}

	offer, err := peer.CreateOffer(ctx)
	if err != nil {
		peer.Close()
		return nil, nil, err
	}
	answer, err := exchangeOffer(ctx, n.http, n.cfg.OfferURL, OfferRequest{
		SDP:       offer.SDP,
		Type:      offer.Type.String(),
		SessionID: sid,
	})
	if err != nil {
		peer.Close()
		return nil, nil, err
	}
	if err := peer.AcceptAnswer(answer); err != nil {
		peer.Close()
		return nil, nil, err
	}
	return peer, tracks, nil
}

func (n *Negotiator) pump(ctx context.Context, sid string, lt localTrack) {
	defer n.pumps.Done()
	if err := lt.src.Run(ctx, lt.track); err != nil && !errors.Is(err, context.Canceled) {
		log.Warn().Err(err).Str("module", "rtc").Str("sid", sid).Str("kind", lt.src.Kind().String()).Msg("capture stopped")
	}
}

func (n *Negotiator) Disconnect() {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.closed = true
	peer, sources, cancel := n.peer, n.sources, n.cancel
	n.peer, n.sources, n.cancel = nil, nil, nil
	n.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	n.pumps.Wait()
	closeSources(sources)
	if peer != nil {
		peer.Close()
	}
}

func closeSources(sources []capture.Source) {
	for _, src := range sources {
		if err := src.Close(); err != nil {
			log.Warn().Err(err).Str("module", "rtc").Str("kind", src.Kind().String()).Msg("capture close error")
		}
	}
}
