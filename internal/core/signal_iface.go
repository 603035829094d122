package core

import (
	"context"

	"github.com/dkeye/interviewer/internal/domain"
)

// FragmentHandler receives transcription fragments in arrival order.
// It must not call back into the channel's Close.
type FragmentHandler func(domain.Fragment)

// TranscriptChannel is the live transcription subscription for one session.
type TranscriptChannel interface {
	OnFragment(FragmentHandler)
	// OnError receives connection-level failures as *domain.TranscriptChannelError.
	OnError(func(error))
	Open(ctx context.Context, sessionID domain.ID) error
	// Close is idempotent; no handler runs after it returns.
	Close()
}
