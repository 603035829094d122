// Package ui is the terminal surface of the interviewer. It renders manager
// snapshots and turns key presses into manager operations.
package ui

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dkeye/interviewer/internal/app/orch"
	"github.com/dkeye/interviewer/internal/app/turn"
	"github.com/dkeye/interviewer/internal/core"
	"github.com/dkeye/interviewer/internal/domain"
	"github.com/rs/zerolog/log"
)

// Orchestrator is the subset of *orch.Manager the UI drives.
type Orchestrator interface {
	Resume(ctx context.Context) error
	Login(ctx context.Context, username, password string) error
	Register(ctx context.Context, creds domain.Credentials) error
	Logout() error
	StartSession(ctx context.Context, userName, position string) error
	AttachSurface(ctx context.Context) (core.MediaMode, error, error)
	ToggleRecording() (turn.Phase, error)
	Advance(ctx context.Context) error
	RetryResults(ctx context.Context) error
	Restart() error
	Snapshot() orch.Snapshot
	Close()
}

const (
	opResume   = "resume"
	opLogin    = "login"
	opRegister = "register"
	opLogout   = "logout"
	opStart    = "start"
	opAttach   = "attach"
	opAdvance  = "advance"
	opRetry    = "retry"
)

type (
	updateMsg orch.Update
	opDoneMsg struct {
		op  string
		err error
	}
)

type Model struct {
	ctx  context.Context
	orch Orchestrator

	login    form
	register form
	landing  form
	regMode  bool

	snap        orch.Snapshot
	attachedFor domain.ID
	busy        string
	status      string
	warn        string
}

func New(ctx context.Context, o Orchestrator) Model {
	return Model{
		ctx:  ctx,
		orch: o,
		login: newForm(
			field{label: "Username", maxChars: domain.MaxUsernameLen},
			field{label: "Password", secret: true},
		),
		register: newForm(
			field{label: "Username", maxChars: domain.MaxUsernameLen},
			field{label: "Password", secret: true},
			field{label: "Full name", maxChars: 128},
		),
		landing: newForm(
			field{label: "Your name", maxChars: domain.MaxUsernameLen},
			field{label: "Position", maxChars: domain.MaxPositionLen},
		),
		snap: o.Snapshot(),
	}
}

// Run starts the full-screen program and blocks until the user quits.
func Run(ctx context.Context, m *orch.Manager) error {
	p := tea.NewProgram(New(ctx, m), tea.WithAltScreen(), tea.WithContext(ctx))
	stop := connect(p, m)
	_, err := p.Run()
	m.Close()
	stop()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.run(opResume, func() error { return m.orch.Resume(m.ctx) }))
}

func (m Model) run(op string, fn func() error) tea.Cmd {
	return func() tea.Msg {
		return opDoneMsg{op: op, err: fn()}
	}
}

func (m *Model) start(op string, fn func() error) tea.Cmd {
	m.busy = op
	m.status = ""
	return m.run(op, fn)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case updateMsg:
		switch msg.Kind {
		case orch.UpdateWarning:
			if msg.Err != nil {
				m.warn = msg.Err.Error()
			}
		case orch.UpdateError:
			if msg.Err != nil {
				m.status = msg.Err.Error()
			}
		}
		m.refresh()
		return m, m.maybeAttach()

	case opDoneMsg:
		if m.busy == msg.op {
			m.busy = ""
		}
		switch {
		case msg.err == nil:
			m.afterOp(msg.op)
		case msg.op == opResume && errors.Is(msg.err, domain.ErrUnauthorized):
		default:
			log.Debug().Str("module", "ui").Str("op", msg.op).Err(msg.err).Msg("operation failed")
			m.status = msg.err.Error()
		}
		m.refresh()
		return m, m.maybeAttach()

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) afterOp(op string) {
	switch op {
	case opLogin, opRegister:
		m.login.reset()
		m.register.reset()
	case opLogout:
		m.warn = ""
		m.landing.reset()
	case opStart:
		m.warn = ""
	}
}

func (m *Model) refresh() {
	prev := m.snap.State
	m.snap = m.orch.Snapshot()
	if m.snap.State == orch.Landing && prev != orch.Landing && m.landing.value(0) == "" {
		name := m.snap.User.FullName
		if name == "" {
			name = m.snap.User.Username
		}
		m.landing.inputs[0].SetValue(name)
	}
}

// maybeAttach connects the capture surface once per session.
func (m *Model) maybeAttach() tea.Cmd {
	if m.snap.State != orch.Interviewing || m.snap.Attached || m.snap.Session.ID == "" {
		return nil
	}
	if m.attachedFor == m.snap.Session.ID {
		return nil
	}
	m.attachedFor = m.snap.Session.ID
	return m.start(opAttach, func() error {
		_, _, err := m.orch.AttachSurface(m.ctx)
		return err
	})
}

func (m Model) handleKey(k tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch k.String() {
	case "ctrl+c", "esc":
		m.orch.Close()
		return m, tea.Quit
	case "ctrl+l":
		if m.snap.State != orch.Authenticating && m.busy == "" {
			return m, m.start(opLogout, m.orch.Logout)
		}
		return m, nil
	}

	switch m.snap.State {
	case orch.Authenticating:
		return m.authKey(k)
	case orch.Landing:
		return m.landingKey(k)
	case orch.Interviewing:
		return m.interviewKey(k)
	case orch.AwaitingEvaluation:
		if (k.String() == "r" || k.String() == "R") && m.busy == "" && !m.snap.Fetching {
			return m, m.start(opRetry, func() error { return m.orch.RetryResults(m.ctx) })
		}
	case orch.ShowingResults:
		if k.String() == "enter" {
			if err := m.orch.Restart(); err != nil {
				m.status = err.Error()
			}
			m.refresh()
		}
	}
	return m, nil
}

func (m Model) authKey(k tea.KeyMsg) (tea.Model, tea.Cmd) {
	f := &m.login
	if m.regMode {
		f = &m.register
	}
	switch k.String() {
	case "ctrl+r":
		m.regMode = !m.regMode
		m.status = ""
		return m, nil
	case "tab", "down":
		return m, f.move(1)
	case "shift+tab", "up":
		return m, f.move(-1)
	case "enter":
		if f.focus < len(f.inputs)-1 {
			return m, f.move(1)
		}
		if m.busy != "" {
			return m, nil
		}
		if m.regMode {
			creds := domain.Credentials{
				Username: strings.TrimSpace(f.value(0)),
				Password: f.value(1),
				FullName: strings.TrimSpace(f.value(2)),
			}
			return m, m.start(opRegister, func() error { return m.orch.Register(m.ctx, creds) })
		}
		user, pass := strings.TrimSpace(f.value(0)), f.value(1)
		return m, m.start(opLogin, func() error { return m.orch.Login(m.ctx, user, pass) })
	}
	var cmd tea.Cmd
	*f, cmd = f.update(k)
	return m, cmd
}

func (m Model) landingKey(k tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch k.String() {
	case "tab", "down":
		return m, m.landing.move(1)
	case "shift+tab", "up":
		return m, m.landing.move(-1)
	case "enter":
		if m.landing.focus < len(m.landing.inputs)-1 {
			return m, m.landing.move(1)
		}
		if m.busy != "" {
			return m, nil
		}
		name, position := m.landing.value(0), m.landing.value(1)
		return m, m.start(opStart, func() error { return m.orch.StartSession(m.ctx, name, position) })
	}
	var cmd tea.Cmd
	m.landing, cmd = m.landing.update(k)
	return m, cmd
}

func (m Model) interviewKey(k tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch k.String() {
	case "r", " ":
		if _, err := m.orch.ToggleRecording(); err != nil {
			m.status = err.Error()
		} else {
			m.status = ""
		}
		m.refresh()
	case "n", "enter":
		if m.busy != "" {
			return m, nil
		}
		return m, m.start(opAdvance, func() error { return m.orch.Advance(m.ctx) })
	}
	return m, nil
}
