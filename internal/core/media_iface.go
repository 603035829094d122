package core

import (
	"context"

	"github.com/dkeye/interviewer/internal/domain"
)

// MediaMode describes which capture tracks made it onto the link.
type MediaMode int

const (
	MediaAudioVideo MediaMode = iota
	MediaAudioOnly
)

func (m MediaMode) String() string {
	if m == MediaAudioOnly {
		return "audio-only"
	}
	return "audio+video"
}

// MediaNegotiator owns one uplink for one session.
type MediaNegotiator interface {
	// Connect captures local media and completes a one-shot offer/answer exchange.
	// Audio-only fallback is reported through warn (a *domain.DegradedModeWarning);
	// a missing audio path is a *domain.MediaUnavailableError.
	Connect(ctx context.Context, sessionID domain.ID) (mode MediaMode, warn error, err error)
	// Disconnect is idempotent and safe before Connect completed.
	Disconnect()
}
