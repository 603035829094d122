package capture

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
	"github.com/rs/zerolog/log"
)

// Microphone captures the default input device as mono PCMU.
type Microphone struct {
	stream *portaudio.Stream
	pcm    []int16
	frame  time.Duration

	closeOnce sync.Once
}

func OpenMicrophone(frame time.Duration) (*Microphone, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceFailure, err)
	}
	m := &Microphone{pcm: make([]int16, samplesPerFrame(frame)), frame: frame}
	stream, err := portaudio.OpenDefaultStream(1, 0, pcmuRate, len(m.pcm), m.pcm)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("%w: %v", ErrDeviceNotFound, err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("%w: %v", ErrDeviceFailure, err)
	}
	m.stream = stream
	log.Info().Str("module", "capture").Dur("frame", frame).Msg("microphone opened")
	return m, nil
}

func (m *Microphone) Kind() webrtc.RTPCodecType        { return webrtc.RTPCodecTypeAudio }
func (m *Microphone) Codec() webrtc.RTPCodecCapability { return pcmuCodec }

func (m *Microphone) Run(ctx context.Context, w SampleWriter) error {
	buf := make([]byte, 0, len(m.pcm))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := m.stream.Read(); err != nil {
			// Overflow drops a frame; anything else ends capture.
			if err == portaudio.InputOverflowed {
				log.Debug().Str("module", "capture").Msg("input overflowed")
				continue
			}
			return fmt.Errorf("%w: %v", ErrDeviceFailure, err)
		}
		buf = encodeULaw(buf, m.pcm)
		data := make([]byte, len(buf))
		copy(data, buf)
		if err := w.WriteSample(media.Sample{Data: data, Duration: m.frame}); err != nil {
			return err
		}
	}
}

func (m *Microphone) Close() error {
	var err error
	m.closeOnce.Do(func() {
		_ = m.stream.Stop()
		err = m.stream.Close()
		_ = portaudio.Terminate()
		log.Info().Str("module", "capture").Msg("microphone closed")
	})
	return err
}
