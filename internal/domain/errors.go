package domain

import (
	"errors"
	"fmt"
)

// ErrUnauthorized is returned by collaborators when the bearer token is absent or rejected.
var ErrUnauthorized = errors.New("not authenticated")

// ValidationError is bad user input. Recoverable, no state change.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// SessionCreationError means the backend was unreachable or rejected the session.
type SessionCreationError struct {
	Op  string
	Err error
}

func (e *SessionCreationError) Error() string {
	return fmt.Sprintf("session creation failed (%s): %v", e.Op, e.Err)
}

func (e *SessionCreationError) Unwrap() error { return e.Err }

// MediaUnavailableError means no audio path could be established.
type MediaUnavailableError struct {
	Err error
}

func (e *MediaUnavailableError) Error() string {
	return fmt.Sprintf("media unavailable: %v", e.Err)
}

func (e *MediaUnavailableError) Unwrap() error { return e.Err }

// DegradedModeWarning is non-fatal: video capture failed and the session continues audio-only.
type DegradedModeWarning struct {
	Err error
}

func (e *DegradedModeWarning) Error() string {
	return fmt.Sprintf("video unavailable, continuing audio-only: %v", e.Err)
}

func (e *DegradedModeWarning) Unwrap() error { return e.Err }

// TranscriptChannelError is non-fatal: live transcription stopped or never started.
type TranscriptChannelError struct {
	SessionID ID
	Err       error
}

func (e *TranscriptChannelError) Error() string {
	return fmt.Sprintf("transcript channel (session %s): %v", e.SessionID, e.Err)
}

func (e *TranscriptChannelError) Unwrap() error { return e.Err }

// SubmissionError leaves the turn where it was; the buffer is kept for a retry.
type SubmissionError struct {
	QuestionID ID
	Err        error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submit answer for question %s: %v", e.QuestionID, e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// ResultFetchError is surfaced with a manual retry action.
type ResultFetchError struct {
	SessionID ID
	Attempts  int
	Err       error
}

func (e *ResultFetchError) Error() string {
	return fmt.Sprintf("fetch results for session %s after %d attempt(s): %v", e.SessionID, e.Attempts, e.Err)
}

func (e *ResultFetchError) Unwrap() error { return e.Err }

// NegotiationError is non-fatal: capture worked but the media link could not be
// negotiated. The interview continues without a live uplink.
type NegotiationError struct {
	Err error
}

func (e *NegotiationError) Error() string {
	return fmt.Sprintf("media link negotiation failed, continuing without live audio: %v", e.Err)
}

func (e *NegotiationError) Unwrap() error { return e.Err }
