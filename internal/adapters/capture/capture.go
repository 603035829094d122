// Package capture provides local media sources feeding WebRTC sample tracks.
package capture

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
)

var (
	ErrPermissionDenied = errors.New("capture permission denied")
	ErrDeviceNotFound   = errors.New("capture device not found")
	ErrDeviceFailure    = errors.New("capture device failure")
)

// IsDeviceError reports a denial or hardware problem, the cases that allow
// falling back to audio-only capture.
func IsDeviceError(err error) bool {
	return errors.Is(err, ErrPermissionDenied) ||
		errors.Is(err, ErrDeviceNotFound) ||
		errors.Is(err, ErrDeviceFailure)
}

// SampleWriter is satisfied by *webrtc.TrackLocalStaticSample.
type SampleWriter interface {
	WriteSample(media.Sample) error
}

// Source is one open capture device.
type Source interface {
	Kind() webrtc.RTPCodecType
	Codec() webrtc.RTPCodecCapability
	// Run pumps samples into w until ctx is done or the device fails.
	Run(ctx context.Context, w SampleWriter) error
	// Close releases the device. Callers only close after Run returned.
	Close() error
}

// Devices opens capture sources.
type Devices interface {
	OpenAudio(ctx context.Context) (Source, error)
	OpenVideo(ctx context.Context) (Source, error)
}

type Config struct {
	AudioSource string
	VideoSource string
	FrameSize   time.Duration
}

type configured struct {
	cfg Config
}

// NewDevices maps configuration names to sources: audio "portaudio" or "silence",
// video "none".
func NewDevices(cfg Config) Devices {
	if cfg.FrameSize <= 0 {
		cfg.FrameSize = 20 * time.Millisecond
	}
	return &configured{cfg: cfg}
}

func (d *configured) OpenAudio(ctx context.Context) (Source, error) {
	switch d.cfg.AudioSource {
	case "portaudio", "":
		return OpenMicrophone(d.cfg.FrameSize)
	case "silence":
		return NewSilence(d.cfg.FrameSize), nil
	case "none":
		return nil, fmt.Errorf("%w: audio source disabled", ErrDeviceNotFound)
	default:
		return nil, fmt.Errorf("unknown audio source %q", d.cfg.AudioSource)
	}
}

func (d *configured) OpenVideo(ctx context.Context) (Source, error) {
	switch d.cfg.VideoSource {
	case "none", "":
		return nil, fmt.Errorf("%w: no camera backend configured", ErrDeviceNotFound)
	default:
		return nil, fmt.Errorf("%w: unknown video source %q", ErrDeviceNotFound, d.cfg.VideoSource)
	}
}
