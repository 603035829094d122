package devserver

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/dkeye/interviewer/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
)

type TrackStats struct {
	Packets int64
	Bytes   int64
}

type MediaStats struct {
	Audio TrackStats
	Video TrackStats
}

// Sink consumes uplinked RTP and keeps per-session counters.
type Sink struct {
	mu    sync.RWMutex
	stats map[domain.ID]*MediaStats
}

func NewSink() *Sink {
	return &Sink{stats: make(map[domain.ID]*MediaStats)}
}

// Consume reads the track until it ends or ctx is done.
func (s *Sink) Consume(ctx context.Context, sid domain.ID, track *webrtc.TrackRemote, logger *zerolog.Logger) {
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("sink ctx done")
			return
		default:
		}
		pkt, _, err := track.ReadRTP()
		if err != nil {
			if errors.Is(err, io.EOF) {
				logger.Info().Msg("track ended")
			} else {
				logger.Error().Err(err).Msg("sink read RTP error, stopping")
			}
			return
		}
		s.record(sid, track.Kind(), len(pkt.Payload))
	}
}

func (s *Sink) record(sid domain.ID, kind webrtc.RTPCodecType, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.stats[sid]
	if !ok {
		st = &MediaStats{}
		s.stats[sid] = st
	}
	t := &st.Audio
	if kind == webrtc.RTPCodecTypeVideo {
		t = &st.Video
	}
	t.Packets++
	t.Bytes += int64(n)
}

func (s *Sink) Stats(sid domain.ID) (MediaStats, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.stats[sid]
	if !ok {
		return MediaStats{}, false
	}
	return *st, true
}

// EmotionSummary is nil unless media arrived for the session. Without a
// vision model the label is always neutral.
func (s *Sink) EmotionSummary(sid domain.ID) map[string]any {
	st, ok := s.Stats(sid)
	if !ok {
		return nil
	}
	return map[string]any{
		"dominant_emotion": "neutral",
		"score":            1.0,
		"audio_packets":    st.Audio.Packets,
		"video_packets":    st.Video.Packets,
	}
}
