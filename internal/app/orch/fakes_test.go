package orch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/interviewer/internal/core"
	"github.com/dkeye/interviewer/internal/domain"
)

type fakeBackend struct {
	mu           sync.Mutex
	questions    []domain.Question
	createErr    error
	questionsErr error
	createGate   chan struct{}
	submitErrs   []error
	resultsErrs  int
	creates      int
	resultCalls  int
	answers      map[domain.ID]string
}

func newFakeBackend(n int) *fakeBackend {
	b := &fakeBackend{answers: map[domain.ID]string{}}
	// Deliberately out of order; the manager sorts by Order.
	for i := n; i >= 1; i-- {
		b.questions = append(b.questions, domain.Question{
			ID:    domain.ID(fmt.Sprintf("q%d", i)),
			Text:  fmt.Sprintf("Question %d?", i),
			Order: i,
		})
	}
	return b
}

func (b *fakeBackend) CreateSession(ctx context.Context, req domain.SessionRequest) (domain.Session, error) {
	b.mu.Lock()
	b.creates++
	gate, err := b.createGate, b.createErr
	b.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if err != nil {
		return domain.Session{}, err
	}
	return domain.Session{ID: "s-1", UserName: req.UserName, Position: req.Position}, nil
}

func (b *fakeBackend) Questions(ctx context.Context, sessionID domain.ID) ([]domain.Question, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.questionsErr != nil {
		return nil, b.questionsErr
	}
	return append([]domain.Question(nil), b.questions...), nil
}

func (b *fakeBackend) SubmitAnswer(ctx context.Context, questionID domain.ID, answer string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.submitErrs) > 0 {
		err := b.submitErrs[0]
		b.submitErrs = b.submitErrs[1:]
		return err
	}
	b.answers[questionID] = answer
	return nil
}

func (b *fakeBackend) Results(ctx context.Context, sessionID domain.ID) ([]domain.Result, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resultCalls++
	if b.resultsErrs != 0 {
		if b.resultsErrs > 0 {
			b.resultsErrs--
		}
		return nil, errors.New("evaluation store unavailable")
	}
	var out []domain.Result
	for i := 1; i <= len(b.questions); i++ {
		id := domain.ID(fmt.Sprintf("q%d", i))
		out = append(out, domain.Result{
			Question:   fmt.Sprintf("Question %d?", i),
			Answer:     b.answers[id],
			Evaluation: map[string]any{"score": 7},
		})
	}
	return out, nil
}

func (b *fakeBackend) answer(id domain.ID) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.answers[id]
}

func (b *fakeBackend) calls() (creates, results int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.creates, b.resultCalls
}

type fakeAuth struct {
	loginErr error
	userErr  error
	token    string
}

func (a *fakeAuth) Login(ctx context.Context, username, password string) (string, error) {
	if a.loginErr != nil {
		return "", a.loginErr
	}
	return a.token, nil
}

func (a *fakeAuth) Register(ctx context.Context, creds domain.Credentials) error { return nil }

func (a *fakeAuth) CurrentUser(ctx context.Context) (domain.User, error) {
	if a.userErr != nil {
		return domain.User{}, a.userErr
	}
	return domain.User{ID: "u1", Username: "ann"}, nil
}

type memTokens struct {
	mu    sync.Mutex
	token string
}

func (s *memTokens) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *memTokens) Save(t string) error {
	s.mu.Lock()
	s.token = t
	s.mu.Unlock()
	return nil
}

func (s *memTokens) Clear() error { return s.Save("") }

type fakeMedia struct {
	mu          sync.Mutex
	mode        core.MediaMode
	warn        error
	err         error
	connects    int
	disconnects int
}

func (f *fakeMedia) Connect(ctx context.Context, sid domain.ID) (core.MediaMode, error, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	if f.err != nil {
		return 0, nil, f.err
	}
	return f.mode, f.warn, nil
}

func (f *fakeMedia) Disconnect() {
	f.mu.Lock()
	f.disconnects++
	f.mu.Unlock()
}

func (f *fakeMedia) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects, f.disconnects
}

type fakeChannel struct {
	mu      sync.Mutex
	handler core.FragmentHandler
	onErr   func(error)
	openErr error
	opened  bool
	closes  int
}

func (c *fakeChannel) OnFragment(h core.FragmentHandler) {
	c.mu.Lock()
	c.handler = h
	c.mu.Unlock()
}

func (c *fakeChannel) OnError(fn func(error)) {
	c.mu.Lock()
	c.onErr = fn
	c.mu.Unlock()
}

func (c *fakeChannel) Open(ctx context.Context, sid domain.ID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.openErr != nil {
		return &domain.TranscriptChannelError{SessionID: sid, Err: c.openErr}
	}
	c.opened = true
	return nil
}

func (c *fakeChannel) Close() {
	c.mu.Lock()
	c.closes++
	c.mu.Unlock()
}

// push delivers like the real channel: nothing after Close.
func (c *fakeChannel) push(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closes > 0 || c.handler == nil {
		return
	}
	c.handler(domain.Fragment{SessionID: "s-1", Text: text, Received: time.Now()})
}

func (c *fakeChannel) closeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}

type harness struct {
	m        *Manager
	backend  *fakeBackend
	auth     *fakeAuth
	tokens   *memTokens
	media    *fakeMedia
	channel  *fakeChannel
	mediaN   int
	channelN int
	mu       sync.Mutex
}

func newHarness(t *testing.T, questions int) *harness {
	t.Helper()
	h := &harness{
		backend: newFakeBackend(questions),
		auth:    &fakeAuth{token: "tok"},
		tokens:  &memTokens{},
		media:   &fakeMedia{},
		channel: &fakeChannel{},
	}
	h.m = New(Deps{
		Backend: h.backend,
		Auth:    h.auth,
		Tokens:  h.tokens,
		NewMedia: func() core.MediaNegotiator {
			h.mu.Lock()
			h.mediaN++
			h.mu.Unlock()
			return h.media
		},
		NewTranscript: func() core.TranscriptChannel {
			h.mu.Lock()
			h.channelN++
			h.mu.Unlock()
			return h.channel
		},
		Policy: Policy{ResultDelay: 10 * time.Millisecond, ResultAttempts: 2, ResultBackoff: time.Millisecond},
	})
	t.Cleanup(h.m.Close)
	return h
}

func (h *harness) login(t *testing.T) {
	t.Helper()
	if err := h.m.Login(context.Background(), "ann", "secret"); err != nil {
		t.Fatalf("Login: %v", err)
	}
}

func (h *harness) startInterview(t *testing.T) {
	t.Helper()
	h.login(t)
	if err := h.m.StartSession(context.Background(), "Ann", "Go developer"); err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if _, _, err := h.m.AttachSurface(context.Background()); err != nil {
		t.Fatalf("AttachSurface: %v", err)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}
