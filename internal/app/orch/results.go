package orch

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/dkeye/interviewer/internal/domain"
	"github.com/rs/zerolog/log"
)

var errResultsNotReady = errors.New("no results available yet")

// fetchResults pulls the evaluation once, retrying transient failures with
// backoff. Exhaustion leaves the manager in AwaitingEvaluation with a
// *domain.ResultFetchError and RetryResults available.
func (m *Manager) fetchResults(ctx context.Context, tag string, scheduled bool) error {
	m.mu.Lock()
	if m.closed || m.attempt != tag || m.state != AwaitingEvaluation {
		m.mu.Unlock()
		return ErrStale
	}
	if scheduled {
		m.timer = nil
	}
	if m.fetching {
		m.mu.Unlock()
		return ErrBusy
	}
	m.fetching = true
	ctx, cancel := context.WithCancel(ctx)
	m.fetchCancel = cancel
	sid := m.session.ID
	m.mu.Unlock()
	defer cancel()
	m.notify(Update{Kind: UpdateTurn})

	logger := log.With().Str("module", "app.orch").Str("session", sid.String()).Logger()

	attempts := 0
	results, err := backoff.Retry(ctx, func() ([]domain.Result, error) {
		attempts++
		res, err := m.backend.Results(ctx, sid)
		switch {
		case errors.Is(err, domain.ErrUnauthorized):
			return nil, backoff.Permanent(err)
		case err != nil:
			return nil, err
		case len(res) == 0:
			return nil, errResultsNotReady
		}
		return res, nil
	},
		backoff.WithBackOff(m.resultBackOff()),
		backoff.WithMaxTries(m.policy.ResultAttempts),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.Warn().Err(err).Dur("retry_in", next).Msg("result fetch failed")
		}),
	)

	m.mu.Lock()
	if m.closed || m.attempt != tag {
		m.mu.Unlock()
		logger.Info().Msg("results for a stale attempt, discarded")
		return ErrStale
	}
	m.fetching = false
	m.fetchCancel = nil
	if err != nil {
		ferr := &domain.ResultFetchError{SessionID: sid, Attempts: attempts, Err: err}
		m.lastErr = ferr
		m.mu.Unlock()
		logger.Error().Err(ferr).Msg("results unavailable")
		m.notify(Update{Kind: UpdateError, Err: ferr})
		return ferr
	}
	if terr := m.transitionLocked(EvResultsReady); terr != nil {
		m.mu.Unlock()
		return terr
	}
	m.results = results
	m.lastErr = nil
	if len(results) != len(m.questions) {
		logger.Warn().Int("results", len(results)).Int("questions", len(m.questions)).Msg("result count differs from question count")
	}
	m.mu.Unlock()

	logger.Info().Int("results", len(results)).Int("attempts", attempts).Msg("results ready")
	m.notifyState()
	return nil
}

func (m *Manager) resultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = m.policy.ResultBackoff
	b.MaxInterval = 4 * m.policy.ResultBackoff
	return b
}

// RetryResults fetches now. It also cuts a pending result delay short.
func (m *Manager) RetryResults(ctx context.Context) error {
	m.mu.Lock()
	if err := m.checkLocked(AwaitingEvaluation, "retry results"); err != nil {
		m.mu.Unlock()
		return err
	}
	if m.fetching {
		m.mu.Unlock()
		return ErrBusy
	}
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	tag := m.attempt
	m.mu.Unlock()
	return m.fetchResults(ctx, tag, false)
}

// Restart drops the finished session and returns to Landing.
func (m *Manager) Restart() error {
	m.mu.Lock()
	if err := m.checkLocked(ShowingResults, "restart"); err != nil {
		m.mu.Unlock()
		return err
	}
	l := m.resetSessionLocked()
	m.lastErr = nil
	err := m.transitionLocked(EvRestart)
	m.mu.Unlock()

	l.release()
	m.notifyState()
	return err
}
