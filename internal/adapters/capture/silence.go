package capture

import (
	"bytes"
	"context"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
)

// pcmuRate is fixed by G.711.
const pcmuRate = 8000

var pcmuCodec = webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypePCMU, ClockRate: pcmuRate, Channels: 1}

// Silence is an audio source that always opens; used for headless runs.
type Silence struct {
	frame time.Duration
}

func NewSilence(frame time.Duration) *Silence { return &Silence{frame: frame} }

func (s *Silence) Kind() webrtc.RTPCodecType        { return webrtc.RTPCodecTypeAudio }
func (s *Silence) Codec() webrtc.RTPCodecCapability { return pcmuCodec }
func (s *Silence) Close() error                     { return nil }

func (s *Silence) Run(ctx context.Context, w SampleWriter) error {
	payload := bytes.Repeat([]byte{linearToULaw(0)}, samplesPerFrame(s.frame))
	ticker := time.NewTicker(s.frame)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.WriteSample(media.Sample{Data: payload, Duration: s.frame}); err != nil {
				return err
			}
		}
	}
}

func samplesPerFrame(frame time.Duration) int {
	return int(int64(pcmuRate) * int64(frame) / int64(time.Second))
}
