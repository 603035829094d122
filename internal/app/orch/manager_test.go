package orch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dkeye/interviewer/internal/app/turn"
	"github.com/dkeye/interviewer/internal/core"
	"github.com/dkeye/interviewer/internal/domain"
)

func TestManager_ThreeQuestionInterview(t *testing.T) {
	h := newHarness(t, 3)
	h.startInterview(t)
	m := h.m

	// Q1: recorded answer.
	if _, err := m.ToggleRecording(); err != nil {
		t.Fatalf("ToggleRecording: %v", err)
	}
	h.channel.push("I built")
	h.channel.push("a compiler")
	if err := m.Advance(context.Background()); err != nil {
		t.Fatalf("Advance q1: %v", err)
	}

	// Q2: nothing recorded.
	if err := m.Advance(context.Background()); err != nil {
		t.Fatalf("Advance q2: %v", err)
	}

	// Q3: record, stop, advance.
	m.ToggleRecording()
	h.channel.push("Goroutines")
	m.ToggleRecording()
	if err := m.Advance(context.Background()); err != nil {
		t.Fatalf("Advance q3: %v", err)
	}

	if got := h.backend.answer("q1"); got != "I built a compiler" {
		t.Errorf("q1 answer = %q", got)
	}
	if got := h.backend.answer("q2"); got != turn.NoAnswerText {
		t.Errorf("q2 answer = %q, want the no-answer text", got)
	}
	if got := h.backend.answer("q3"); got != "Goroutines" {
		t.Errorf("q3 answer = %q", got)
	}

	if s := m.State(); s != AwaitingEvaluation && s != ShowingResults {
		t.Fatalf("state after last answer = %s", s)
	}
	if _, d := h.media.counts(); d != 1 {
		t.Errorf("media disconnected %d times, want 1", d)
	}
	if c := h.channel.closeCount(); c != 1 {
		t.Errorf("channel closed %d times, want 1", c)
	}

	waitFor(t, "results", func() bool { return m.State() == ShowingResults })
	snap := m.Snapshot()
	if len(snap.Results) != 3 {
		t.Fatalf("got %d results, want 3", len(snap.Results))
	}
	if snap.Results[0].Answer != "I built a compiler" {
		t.Errorf("result[0] answer = %q", snap.Results[0].Answer)
	}
	if snap.LastError != nil {
		t.Errorf("unexpected last error %v", snap.LastError)
	}
}

func TestManager_EarlyFragmentsOnlyInFullTranscript(t *testing.T) {
	h := newHarness(t, 2)
	h.startInterview(t)

	h.channel.push("early")
	h.m.ToggleRecording()
	h.channel.push("answer")

	snap := h.m.Snapshot()
	if snap.Turn.Transcript != "answer" {
		t.Errorf("current transcript = %q", snap.Turn.Transcript)
	}
	if snap.Turn.FullTranscript != "early answer" {
		t.Errorf("full transcript = %q", snap.Turn.FullTranscript)
	}
}

func TestManager_CameraDeniedContinuesAudioOnly(t *testing.T) {
	h := newHarness(t, 1)
	h.media.mode = core.MediaAudioOnly
	h.media.warn = &domain.DegradedModeWarning{Err: errors.New("camera denied")}
	h.login(t)
	if err := h.m.StartSession(context.Background(), "Ann", "SRE"); err != nil {
		t.Fatal(err)
	}

	var warnings []error
	h.m.Subscribe(func(u Update) {
		if u.Kind == UpdateWarning {
			warnings = append(warnings, u.Err)
		}
	})
	mode, warn, err := h.m.AttachSurface(context.Background())
	if err != nil {
		t.Fatalf("AttachSurface: %v", err)
	}
	var degraded *domain.DegradedModeWarning
	if mode != core.MediaAudioOnly || !errors.As(warn, &degraded) {
		t.Errorf("mode=%v warn=%v", mode, warn)
	}
	snap := h.m.Snapshot()
	if snap.State != Interviewing || !snap.Degraded || !snap.Live {
		t.Errorf("snapshot = %+v", snap)
	}
	if len(warnings) != 1 {
		t.Errorf("got %d warnings, want 1", len(warnings))
	}
}

func TestManager_MediaUnavailableReturnsToLanding(t *testing.T) {
	h := newHarness(t, 2)
	h.media.err = &domain.MediaUnavailableError{Err: errors.New("no microphone")}
	h.login(t)
	if err := h.m.StartSession(context.Background(), "Ann", "SRE"); err != nil {
		t.Fatal(err)
	}

	_, _, err := h.m.AttachSurface(context.Background())
	var unavailable *domain.MediaUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected MediaUnavailableError, got %v", err)
	}
	snap := h.m.Snapshot()
	if snap.State != Landing || snap.HasTurn {
		t.Errorf("state=%s hasTurn=%v, want landing without a turn", snap.State, snap.HasTurn)
	}
	if _, d := h.media.counts(); d != 1 {
		t.Errorf("media disconnected %d times, want 1", d)
	}
	if h.channel.closeCount() != 1 {
		t.Error("transcript channel not released")
	}

	// A fresh attempt is possible.
	h.media.mu.Lock()
	h.media.err = nil
	h.media.mu.Unlock()
	if err := h.m.StartSession(context.Background(), "Ann", "SRE"); err != nil {
		t.Errorf("second StartSession: %v", err)
	}
}

func TestManager_NegotiationFailureKeepsInterview(t *testing.T) {
	h := newHarness(t, 1)
	h.media.mode = core.MediaAudioOnly
	h.media.warn = &domain.NegotiationError{Err: errors.New("offer: status 503")}
	h.login(t)
	if err := h.m.StartSession(context.Background(), "Ann", "SRE"); err != nil {
		t.Fatal(err)
	}

	_, warn, err := h.m.AttachSurface(context.Background())
	if err != nil {
		t.Fatalf("AttachSurface: %v", err)
	}
	var negotiation *domain.NegotiationError
	if !errors.As(warn, &negotiation) {
		t.Fatalf("warn = %v, want NegotiationError", warn)
	}
	snap := h.m.Snapshot()
	if snap.State != Interviewing || !snap.Live || !snap.Degraded || !errors.As(snap.LastError, &negotiation) {
		t.Fatalf("state=%s live=%v degraded=%v lastErr=%v", snap.State, snap.Live, snap.Degraded, snap.LastError)
	}

	if err := h.m.Advance(context.Background()); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if got := h.backend.answer("q1"); got != turn.NoAnswerText {
		t.Errorf("answer = %q, want the no-answer text", got)
	}
	if s := h.m.State(); s != AwaitingEvaluation && s != ShowingResults {
		t.Errorf("state = %s, want evaluation or results", s)
	}
}

func TestManager_TranscriptFailureIsNonFatal(t *testing.T) {
	h := newHarness(t, 1)
	h.channel.openErr = errors.New("refused")
	h.startInterview(t)

	snap := h.m.Snapshot()
	var chErr *domain.TranscriptChannelError
	if snap.State != Interviewing || !errors.As(snap.LastError, &chErr) {
		t.Errorf("state=%s lastErr=%v", snap.State, snap.LastError)
	}
	if err := h.m.Advance(context.Background()); err != nil {
		t.Errorf("Advance without transcription: %v", err)
	}
}

func TestManager_AttachSurfaceIdempotent(t *testing.T) {
	h := newHarness(t, 1)
	h.startInterview(t)
	if _, _, err := h.m.AttachSurface(context.Background()); err != nil {
		t.Fatalf("second AttachSurface: %v", err)
	}
	if h.mediaN != 1 || h.channelN != 1 {
		t.Errorf("factories called media=%d channel=%d, want 1 each", h.mediaN, h.channelN)
	}
	if c, _ := h.media.counts(); c != 1 {
		t.Errorf("Connect called %d times", c)
	}
}

func TestManager_StartSessionValidation(t *testing.T) {
	h := newHarness(t, 1)
	h.login(t)

	for _, in := range [][2]string{{"   ", "SRE"}, {"Ann", ""}, {"", ""}} {
		err := h.m.StartSession(context.Background(), in[0], in[1])
		var verr *domain.ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("StartSession(%q, %q) = %v, want ValidationError", in[0], in[1], err)
		}
	}
	if s := h.m.State(); s != Landing {
		t.Errorf("state = %s, want landing", s)
	}
	if creates, _ := h.backend.calls(); creates != 0 {
		t.Errorf("backend called %d times on invalid input", creates)
	}
}

func TestManager_SessionCreationFailure(t *testing.T) {
	tests := []struct {
		name string
		prep func(b *fakeBackend)
		op   string
	}{
		{"create", func(b *fakeBackend) { b.createErr = errors.New("503") }, "create"},
		{"questions", func(b *fakeBackend) { b.questionsErr = errors.New("timeout") }, "questions"},
		{"empty", func(b *fakeBackend) { b.questions = nil }, "questions"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, 2)
			tt.prep(h.backend)
			h.login(t)

			err := h.m.StartSession(context.Background(), "Ann", "SRE")
			var cerr *domain.SessionCreationError
			if !errors.As(err, &cerr) || cerr.Op != tt.op {
				t.Fatalf("got %v, want SessionCreationError(%s)", err, tt.op)
			}
			snap := h.m.Snapshot()
			if snap.State != Landing || snap.LastError == nil {
				t.Errorf("state=%s lastErr=%v", snap.State, snap.LastError)
			}
		})
	}
}

func TestManager_SubmissionFailureKeepsTurn(t *testing.T) {
	h := newHarness(t, 2)
	h.startInterview(t)
	h.backend.submitErrs = []error{errors.New("connection reset")}

	h.m.ToggleRecording()
	h.channel.push("my answer")
	err := h.m.Advance(context.Background())
	var subErr *domain.SubmissionError
	if !errors.As(err, &subErr) {
		t.Fatalf("expected SubmissionError, got %v", err)
	}
	snap := h.m.Snapshot()
	if snap.Turn.Index != 0 || snap.Turn.Transcript != "my answer" {
		t.Errorf("turn moved or lost its buffer: %+v", snap.Turn)
	}

	if err := h.m.Advance(context.Background()); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if got := h.backend.answer("q1"); got != "my answer" {
		t.Errorf("q1 answer = %q", got)
	}
}

func TestManager_AdvanceBlockedWhileRecordingEmpty(t *testing.T) {
	h := newHarness(t, 2)
	h.startInterview(t)
	h.m.ToggleRecording()
	if err := h.m.Advance(context.Background()); !errors.Is(err, turn.ErrAdvanceBlocked) {
		t.Errorf("Advance = %v, want ErrAdvanceBlocked", err)
	}
}

func TestManager_NotLiveBeforeAttach(t *testing.T) {
	h := newHarness(t, 1)
	h.login(t)
	if err := h.m.StartSession(context.Background(), "Ann", "SRE"); err != nil {
		t.Fatal(err)
	}
	if _, err := h.m.ToggleRecording(); !errors.Is(err, ErrNotLive) {
		t.Errorf("ToggleRecording = %v, want ErrNotLive", err)
	}
	if err := h.m.Advance(context.Background()); !errors.Is(err, ErrNotLive) {
		t.Errorf("Advance = %v, want ErrNotLive", err)
	}
}

func TestManager_ResultFetchErrorThenRetry(t *testing.T) {
	h := newHarness(t, 1)
	h.backend.resultsErrs = -1
	h.startInterview(t)
	if err := h.m.Advance(context.Background()); err != nil {
		t.Fatal(err)
	}

	var ferr *domain.ResultFetchError
	waitFor(t, "result fetch error", func() bool {
		return errors.As(h.m.Snapshot().LastError, &ferr)
	})
	if ferr.Attempts != 2 {
		t.Errorf("attempts = %d, want 2", ferr.Attempts)
	}
	if s := h.m.State(); s != AwaitingEvaluation {
		t.Fatalf("state = %s, want awaiting_evaluation", s)
	}

	h.backend.mu.Lock()
	h.backend.resultsErrs = 0
	h.backend.mu.Unlock()
	if err := h.m.RetryResults(context.Background()); err != nil {
		t.Fatalf("RetryResults: %v", err)
	}
	if s := h.m.State(); s != ShowingResults {
		t.Errorf("state = %s, want showing_results", s)
	}
}

func TestManager_TransientResultErrorRetried(t *testing.T) {
	h := newHarness(t, 1)
	h.backend.resultsErrs = 1
	h.startInterview(t)
	h.m.Advance(context.Background())

	waitFor(t, "results", func() bool { return h.m.State() == ShowingResults })
	if _, calls := h.backend.calls(); calls != 2 {
		t.Errorf("Results called %d times, want 2", calls)
	}
}

func TestManager_StaleSessionDiscarded(t *testing.T) {
	h := newHarness(t, 1)
	h.login(t)
	gate := make(chan struct{})
	h.backend.createGate = gate

	done := make(chan error, 1)
	go func() { done <- h.m.StartSession(context.Background(), "Ann", "SRE") }()
	waitFor(t, "create call", func() bool { c, _ := h.backend.calls(); return c == 1 })

	if err := h.m.Logout(); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	close(gate)

	if err := <-done; !errors.Is(err, ErrStale) {
		t.Errorf("StartSession = %v, want ErrStale", err)
	}
	snap := h.m.Snapshot()
	if snap.State != Authenticating || snap.HasTurn {
		t.Errorf("stale response applied: %+v", snap)
	}
}

func TestManager_CloseCancelsPendingFetch(t *testing.T) {
	h := newHarness(t, 1)
	h.m.policy.ResultDelay = 50 * time.Millisecond
	h.startInterview(t)
	h.m.Advance(context.Background())

	h.m.Close()
	h.m.Close()
	time.Sleep(100 * time.Millisecond)
	if _, calls := h.backend.calls(); calls != 0 {
		t.Errorf("results fetched %d times after Close", calls)
	}
	if err := h.m.RetryResults(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("RetryResults after Close = %v, want ErrClosed", err)
	}
}

func TestManager_CloseDuringInterviewReleasesOnce(t *testing.T) {
	h := newHarness(t, 2)
	h.startInterview(t)
	h.m.Close()
	h.m.Close()
	if _, d := h.media.counts(); d != 1 {
		t.Errorf("media disconnected %d times, want 1", d)
	}
	if h.channel.closeCount() != 1 {
		t.Errorf("channel closed %d times, want 1", h.channel.closeCount())
	}
	if _, err := h.m.ToggleRecording(); !errors.Is(err, ErrClosed) {
		t.Errorf("ToggleRecording after Close = %v", err)
	}
}

func TestManager_RestartReturnsToLanding(t *testing.T) {
	h := newHarness(t, 1)
	h.startInterview(t)
	h.m.Advance(context.Background())
	waitFor(t, "results", func() bool { return h.m.State() == ShowingResults })

	if err := h.m.Restart(); err != nil {
		t.Fatalf("Restart: %v", err)
	}
	snap := h.m.Snapshot()
	if snap.State != Landing || snap.Session.ID != "" || len(snap.Results) != 0 {
		t.Errorf("session not cleared: %+v", snap)
	}
	if err := h.m.Restart(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("Restart from landing = %v", err)
	}
}

func TestManager_ResumeAndLogout(t *testing.T) {
	h := newHarness(t, 1)
	if err := h.m.Resume(context.Background()); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("Resume without token = %v", err)
	}

	h.tokens.Save("expired")
	h.auth.userErr = domain.ErrUnauthorized
	if err := h.m.Resume(context.Background()); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("Resume with rejected token = %v", err)
	}
	if h.tokens.Token() != "" {
		t.Error("rejected token not cleared")
	}

	h.auth.userErr = nil
	h.tokens.Save("good")
	if err := h.m.Resume(context.Background()); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	snap := h.m.Snapshot()
	if snap.State != Landing || snap.User.Username != "ann" {
		t.Errorf("snapshot after resume: %+v", snap)
	}

	if err := h.m.Logout(); err != nil {
		t.Fatal(err)
	}
	if h.m.State() != Authenticating || h.tokens.Token() != "" {
		t.Error("logout did not clear state and token")
	}
}

func TestManager_LoginValidation(t *testing.T) {
	h := newHarness(t, 1)
	var verr *domain.ValidationError
	if err := h.m.Login(context.Background(), " ", "pw"); !errors.As(err, &verr) {
		t.Errorf("Login with blank user = %v", err)
	}
	if h.m.State() != Authenticating {
		t.Error("state changed on invalid login")
	}
}

func TestManager_LogoutDuringInterview(t *testing.T) {
	h := newHarness(t, 2)
	h.startInterview(t)
	if err := h.m.Logout(); err != nil {
		t.Fatal(err)
	}
	if _, d := h.media.counts(); d != 1 {
		t.Errorf("media disconnected %d times", d)
	}
	h.channel.push("late")
	if h.m.Snapshot().HasTurn {
		t.Error("turn survived logout")
	}
}
