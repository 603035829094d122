// Package orch is the session lifecycle manager: it owns the top-level state
// machine and the per-session media link, transcript channel and turn controller.
package orch

import (
	"errors"
	"sync"
	"time"

	"github.com/dkeye/interviewer/internal/app/turn"
	"github.com/dkeye/interviewer/internal/core"
	"github.com/dkeye/interviewer/internal/domain"
	"github.com/rs/zerolog/log"
)

var (
	ErrClosed  = errors.New("manager closed")
	ErrBusy    = errors.New("operation already in progress")
	ErrStale   = errors.New("session attempt no longer active")
	ErrNotLive = errors.New("media link not connected")
)

// Policy holds the result timing knobs.
type Policy struct {
	// ResultDelay is the fixed allowance given to asynchronous evaluation.
	ResultDelay    time.Duration
	ResultAttempts uint
	ResultBackoff  time.Duration
}

func DefaultPolicy() Policy {
	return Policy{ResultDelay: 8 * time.Second, ResultAttempts: 3, ResultBackoff: 2 * time.Second}
}

type (
	MediaFactory      func() core.MediaNegotiator
	TranscriptFactory func() core.TranscriptChannel
)

type Deps struct {
	Backend       core.Backend
	Auth          core.Authenticator
	Tokens        core.TokenStore
	NewMedia      MediaFactory
	NewTranscript TranscriptFactory
	Policy        Policy
}

type UpdateKind int

const (
	UpdateState UpdateKind = iota
	UpdateTurn
	UpdateWarning
	UpdateError
)

// Update is pushed to listeners after the manager's lock is released.
type Update struct {
	Kind  UpdateKind
	State State
	Err   error
}

type Listener func(Update)

type Manager struct {
	backend       core.Backend
	auth          core.Authenticator
	tokens        core.TokenStore
	newMedia      MediaFactory
	newTranscript TranscriptFactory
	policy        Policy

	mu        sync.Mutex
	state     State
	closed    bool
	user      domain.User
	listeners []Listener

	// attempt tags everything issued for the current session; async
	// completions carrying another tag are dropped.
	attempt   string
	session   domain.Session
	questions []domain.Question
	turn      *turn.Controller

	media    core.MediaNegotiator
	channel  core.TranscriptChannel
	attached bool
	live     bool
	mode     core.MediaMode
	degraded bool

	timer       *time.Timer
	fetching    bool
	fetchCancel func()
	results     []domain.Result
	lastErr     error
}

func New(d Deps) *Manager {
	if d.Policy.ResultAttempts == 0 {
		d.Policy.ResultAttempts = 1
	}
	return &Manager{
		backend:       d.Backend,
		auth:          d.Auth,
		tokens:        d.Tokens,
		newMedia:      d.NewMedia,
		newTranscript: d.NewTranscript,
		policy:        d.Policy,
		state:         Authenticating,
	}
}

func (m *Manager) Subscribe(l Listener) {
	m.mu.Lock()
	m.listeners = append(m.listeners, l)
	m.mu.Unlock()
}

func (m *Manager) notify(u Update) {
	m.mu.Lock()
	ls := append([]Listener(nil), m.listeners...)
	u.State = m.state
	m.mu.Unlock()
	for _, l := range ls {
		l(u)
	}
}

func (m *Manager) notifyState() { m.notify(Update{Kind: UpdateState}) }

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) transitionLocked(e Event) error {
	next, err := Next(m.state, e)
	if err != nil {
		return err
	}
	log.Info().Str("module", "app.orch").Str("from", m.state.String()).Str("to", next.String()).Str("event", e.String()).Msg("transition")
	m.state = next
	return nil
}

// checkLocked reports ErrClosed or a transition error when the manager is not in want.
func (m *Manager) checkLocked(want State, op string) error {
	if m.closed {
		return ErrClosed
	}
	if m.state != want {
		return &stateError{op: op, state: m.state}
	}
	return nil
}

type stateError struct {
	op    string
	state State
}

func (e *stateError) Error() string {
	return ErrInvalidTransition.Error() + ": " + e.op + " not allowed in " + e.state.String()
}

func (e *stateError) Unwrap() error { return ErrInvalidTransition }

// links are the per-session resources released outside the lock.
type links struct {
	media   core.MediaNegotiator
	channel core.TranscriptChannel
}

func (l links) release() {
	if l.channel != nil {
		l.channel.Close()
	}
	if l.media != nil {
		l.media.Disconnect()
	}
}

func (m *Manager) takeLinksLocked() links {
	l := links{media: m.media, channel: m.channel}
	m.media, m.channel = nil, nil
	m.live = false
	return l
}

// resetSessionLocked forgets the current attempt and everything bound to it.
func (m *Manager) resetSessionLocked() links {
	l := m.takeLinksLocked()
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	if m.fetchCancel != nil {
		m.fetchCancel()
		m.fetchCancel = nil
	}
	m.attempt = ""
	m.session = domain.Session{}
	m.questions = nil
	m.turn = nil
	m.attached = false
	m.degraded = false
	m.mode = core.MediaAudioVideo
	m.results = nil
	m.fetching = false
	return l
}

// Close tears everything down regardless of state. Idempotent.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	l := m.resetSessionLocked()
	state := m.state
	m.mu.Unlock()

	l.release()
	log.Info().Str("module", "app.orch").Str("state", state.String()).Msg("manager closed")
}

// Snapshot is a consistent read-only view for UIs.
type Snapshot struct {
	State     State
	Closed    bool
	User      domain.User
	Session   domain.Session
	HasTurn   bool
	Turn      turn.State
	Attached  bool
	Live      bool
	Mode      core.MediaMode
	Degraded  bool
	Fetching  bool
	Results   []domain.Result
	LastError error
}

func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	s := Snapshot{
		State:     m.state,
		Closed:    m.closed,
		User:      m.user,
		Session:   m.session,
		Attached:  m.attached,
		Live:      m.live,
		Mode:      m.mode,
		Degraded:  m.degraded,
		Fetching:  m.fetching,
		Results:   append([]domain.Result(nil), m.results...),
		LastError: m.lastErr,
	}
	ctl := m.turn
	m.mu.Unlock()
	if ctl != nil {
		s.HasTurn = true
		s.Turn = ctl.State()
	}
	return s
}

func (m *Manager) setErr(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}
