package capture

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pion/webrtc/v4/pkg/media"
)

func TestLinearToULaw(t *testing.T) {
	tests := []struct {
		in   int16
		want byte
	}{
		{0, 0xFF},
		{32767, 0x80},
		{-32768, 0x00},
		{-1, 0x7F},
	}
	for _, tt := range tests {
		if got := linearToULaw(tt.in); got != tt.want {
			t.Errorf("linearToULaw(%d) = %#x, want %#x", tt.in, got, tt.want)
		}
	}
}

func TestEncodeULaw_ReusesBuffer(t *testing.T) {
	buf := make([]byte, 0, 4)
	out := encodeULaw(buf, []int16{0, 0, 0})
	if len(out) != 3 || out[0] != 0xFF {
		t.Errorf("unexpected encoding %v", out)
	}
}

type sampleSink struct {
	mu      sync.Mutex
	samples []media.Sample
}

func (s *sampleSink) WriteSample(m media.Sample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = append(s.samples, m)
	return nil
}

func (s *sampleSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.samples)
}

func TestSilence_RunUntilCancel(t *testing.T) {
	src := NewSilence(5 * time.Millisecond)
	sink := &sampleSink{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- src.Run(ctx, sink) }()

	deadline := time.After(2 * time.Second)
	for sink.count() < 2 {
		select {
		case <-deadline:
			t.Fatal("silence source produced no samples")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	sink.mu.Lock()
	first := sink.samples[0]
	sink.mu.Unlock()
	if len(first.Data) != 40 {
		t.Errorf("5ms of PCMU is 40 bytes, got %d", len(first.Data))
	}
}

func TestNewDevices(t *testing.T) {
	d := NewDevices(Config{AudioSource: "silence", VideoSource: "none"})
	if _, err := d.OpenAudio(context.Background()); err != nil {
		t.Fatalf("silence should always open: %v", err)
	}
	_, err := d.OpenVideo(context.Background())
	if !IsDeviceError(err) {
		t.Errorf("missing camera must be a device error, got %v", err)
	}
	if _, err := NewDevices(Config{AudioSource: "none"}).OpenAudio(context.Background()); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("disabled audio should be ErrDeviceNotFound, got %v", err)
	}
	if IsDeviceError(errors.New("other")) {
		t.Error("unrelated errors are not device errors")
	}
}
