package orch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dkeye/interviewer/internal/app/turn"
	"github.com/dkeye/interviewer/internal/core"
	"github.com/dkeye/interviewer/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var errNoQuestions = errors.New("backend returned no questions")

// StartSession creates a session, loads its questions and enters Interviewing.
// Input errors leave the state untouched; backend errors keep the manager on
// Landing with a *domain.SessionCreationError.
func (m *Manager) StartSession(ctx context.Context, userName, position string) error {
	req, err := domain.NewSessionRequest(userName, position)
	if err != nil {
		return err
	}

	m.mu.Lock()
	if err := m.checkLocked(Landing, "start session"); err != nil {
		m.mu.Unlock()
		return err
	}
	if m.attempt != "" {
		m.mu.Unlock()
		return ErrBusy
	}
	tag := uuid.NewString()
	m.attempt = tag
	m.lastErr = nil
	m.mu.Unlock()

	logger := log.With().Str("module", "app.orch").Str("attempt", tag).Logger()
	logger.Info().Str("position", req.Position).Msg("creating session")

	sess, qs, err := m.createSession(ctx, req)
	if err != nil {
		logger.Error().Err(err).Msg("session creation failed")
		m.mu.Lock()
		if m.attempt == tag {
			m.attempt = ""
			m.lastErr = err
		}
		m.mu.Unlock()
		m.notify(Update{Kind: UpdateError, Err: err})
		return err
	}

	m.mu.Lock()
	if m.closed || m.attempt != tag {
		m.mu.Unlock()
		logger.Info().Msg("session created for a stale attempt, discarded")
		return ErrStale
	}
	if err := m.transitionLocked(EvSessionReady); err != nil {
		m.attempt = ""
		m.mu.Unlock()
		return err
	}
	m.session = sess
	m.questions = qs
	m.turn = turn.New(qs, m.backend)
	m.attached = false
	m.results = nil
	m.mu.Unlock()

	logger.Info().Str("session", sess.ID.String()).Int("questions", len(qs)).Msg("interview ready")
	m.notifyState()
	return nil
}

func (m *Manager) createSession(ctx context.Context, req domain.SessionRequest) (domain.Session, []domain.Question, error) {
	sess, err := m.backend.CreateSession(ctx, req)
	if err != nil {
		return domain.Session{}, nil, &domain.SessionCreationError{Op: "create", Err: err}
	}
	qs, err := m.backend.Questions(ctx, sess.ID)
	if err != nil {
		return domain.Session{}, nil, &domain.SessionCreationError{Op: "questions", Err: err}
	}
	if len(qs) == 0 {
		return domain.Session{}, nil, &domain.SessionCreationError{Op: "questions", Err: errNoQuestions}
	}
	sort.SliceStable(qs, func(i, j int) bool { return qs[i].Order < qs[j].Order })
	return sess, qs, nil
}

// AttachSurface is called once the interview view is live. It builds the media
// link and transcript channel for the session; repeated calls return the
// existing mode. A missing audio path aborts the interview back to Landing.
func (m *Manager) AttachSurface(ctx context.Context) (core.MediaMode, error, error) {
	m.mu.Lock()
	if err := m.checkLocked(Interviewing, "attach surface"); err != nil {
		m.mu.Unlock()
		return 0, nil, err
	}
	if m.attached {
		mode := m.mode
		m.mu.Unlock()
		return mode, nil, nil
	}
	m.attached = true
	tag, sid, ctl := m.attempt, m.session.ID, m.turn
	media := m.newMedia()
	channel := m.newTranscript()
	m.media, m.channel = media, channel
	m.mu.Unlock()

	logger := log.With().Str("module", "app.orch").Str("attempt", tag).Str("session", sid.String()).Logger()

	channel.OnFragment(func(f domain.Fragment) {
		ctl.OnFragment(f)
		m.notify(Update{Kind: UpdateTurn})
	})
	channel.OnError(func(err error) {
		logger.Warn().Err(err).Msg("transcript channel error")
		if m.current(tag) {
			m.setErr(err)
			m.notify(Update{Kind: UpdateWarning, Err: err})
		}
	})

	mode, warn, err := media.Connect(ctx, sid)
	if err != nil {
		logger.Error().Err(err).Msg("media connect failed")
		return 0, nil, m.abortInterview(tag, err)
	}

	m.mu.Lock()
	if m.closed || m.attempt != tag {
		m.mu.Unlock()
		media.Disconnect()
		return 0, nil, ErrStale
	}
	m.live = true
	m.mode = mode
	m.degraded = warn != nil
	if warn != nil {
		m.lastErr = warn
	}
	m.mu.Unlock()
	if warn != nil {
		logger.Warn().Err(warn).Msg("degraded media")
		m.notify(Update{Kind: UpdateWarning, Err: warn})
	}

	// Transcription failures are non-fatal: the interview goes on without it.
	if err := channel.Open(ctx, sid); err != nil {
		logger.Warn().Err(err).Msg("transcript channel unavailable")
		if m.current(tag) {
			m.setErr(err)
			m.notify(Update{Kind: UpdateWarning, Err: err})
		}
	}
	m.notify(Update{Kind: UpdateTurn})
	return mode, warn, nil
}

func (m *Manager) current(tag string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.closed && m.attempt == tag
}

func (m *Manager) abortInterview(tag string, cause error) error {
	m.mu.Lock()
	if m.closed || m.attempt != tag {
		m.mu.Unlock()
		return ErrStale
	}
	l := m.resetSessionLocked()
	m.lastErr = cause
	terr := m.transitionLocked(EvInterviewAborted)
	m.mu.Unlock()

	l.release()
	m.notify(Update{Kind: UpdateError, Err: cause})
	m.notifyState()
	if terr != nil {
		return errors.Join(cause, terr)
	}
	return cause
}

// ToggleRecording flips the current question between recording and stopped.
func (m *Manager) ToggleRecording() (turn.Phase, error) {
	m.mu.Lock()
	if err := m.checkLocked(Interviewing, "toggle recording"); err != nil {
		m.mu.Unlock()
		return turn.Idle, err
	}
	if !m.live {
		m.mu.Unlock()
		return turn.Idle, ErrNotLive
	}
	ctl := m.turn
	m.mu.Unlock()

	phase := ctl.ToggleRecording()
	m.notify(Update{Kind: UpdateTurn})
	return phase, nil
}

// Advance submits the current answer. After the last question the session is
// completed and results are scheduled.
func (m *Manager) Advance(ctx context.Context) error {
	m.mu.Lock()
	if err := m.checkLocked(Interviewing, "advance"); err != nil {
		m.mu.Unlock()
		return err
	}
	if !m.live {
		m.mu.Unlock()
		return ErrNotLive
	}
	tag, ctl := m.attempt, m.turn
	m.mu.Unlock()

	out, err := ctl.SubmitCurrentAnswer(ctx)
	if err != nil {
		var subErr *domain.SubmissionError
		if errors.As(err, &subErr) && m.current(tag) {
			m.setErr(err)
			m.notify(Update{Kind: UpdateError, Err: err})
		}
		return err
	}
	if !m.current(tag) {
		return ErrStale
	}
	if !out.Completed {
		m.notify(Update{Kind: UpdateTurn})
		return nil
	}
	return m.completeSession(tag)
}

// completeSession releases the media link and transcript channel, then waits
// the result delay before the first fetch.
func (m *Manager) completeSession(tag string) error {
	m.mu.Lock()
	if m.closed || m.attempt != tag {
		m.mu.Unlock()
		return ErrStale
	}
	l := m.takeLinksLocked()
	m.mu.Unlock()

	l.release()

	m.mu.Lock()
	if m.closed || m.attempt != tag {
		m.mu.Unlock()
		return ErrStale
	}
	if err := m.transitionLocked(EvInterviewCompleted); err != nil {
		m.mu.Unlock()
		return fmt.Errorf("complete session: %w", err)
	}
	m.lastErr = nil
	delay := m.policy.ResultDelay
	m.timer = time.AfterFunc(delay, func() {
		if err := m.fetchResults(context.Background(), tag, true); err != nil && !errors.Is(err, ErrStale) {
			log.Warn().Err(err).Str("module", "app.orch").Str("attempt", tag).Msg("scheduled result fetch failed")
		}
	})
	sid := m.session.ID
	m.mu.Unlock()

	log.Info().Str("module", "app.orch").Str("session", sid.String()).Dur("delay", delay).Msg("interview completed, awaiting evaluation")
	m.notifyState()
	return nil
}
