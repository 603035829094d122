// Package turn drives question progression for one session: the recording toggle,
// the per-question transcript buffer and answer submission.
package turn

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/dkeye/interviewer/internal/domain"
	"github.com/rs/zerolog/log"
)

// NoAnswerText is submitted when nothing was transcribed for a question.
const NoAnswerText = "No answer captured (speech recognition failed or no response)"

var (
	ErrAdvanceBlocked     = errors.New("recording in progress and nothing captured yet")
	ErrSubmissionInFlight = errors.New("an answer is already being submitted")
	ErrCompleted          = errors.New("all questions answered")
)

type Phase int

const (
	Idle Phase = iota
	Recording
	Stopped
)

func (p Phase) String() string {
	switch p {
	case Recording:
		return "recording"
	case Stopped:
		return "stopped"
	default:
		return "idle"
	}
}

// Submitter is the answer collaborator.
type Submitter interface {
	SubmitAnswer(ctx context.Context, questionID domain.ID, answer string) error
}

// Outcome describes a successful submission.
type Outcome struct {
	QuestionID domain.ID
	Index      int
	Answer     string
	// Completed is set when the submitted question was the last one.
	Completed bool
}

// State is a read-only view for UIs.
type State struct {
	Index          int
	Count          int
	Question       domain.Question
	Phase          Phase
	Transcript     string
	FullTranscript string
	CanAdvance     bool
	Submitting     bool
	Completed      bool
}

// Controller is safe for concurrent use: fragments arrive from the transcript
// read pump while submissions run from the UI.
type Controller struct {
	submitter Submitter

	mu         sync.Mutex
	questions  []domain.Question
	idx        int
	phase      Phase
	current    string
	full       strings.Builder
	submitting bool
	completed  bool
}

func New(questions []domain.Question, submitter Submitter) *Controller {
	qs := make([]domain.Question, len(questions))
	copy(qs, questions)
	return &Controller{questions: qs, submitter: submitter}
}

// OnFragment appends text to the full-session buffer and, while recording,
// to the current-question buffer. Matches core.FragmentHandler.
func (c *Controller) OnFragment(f domain.Fragment) {
	if strings.TrimSpace(f.Text) == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	appendSpaced(&c.full, f.Text)
	if c.phase == Recording && !c.completed {
		if c.current == "" {
			c.current = f.Text
		} else {
			c.current += " " + f.Text
		}
	}
}

func appendSpaced(b *strings.Builder, text string) {
	if b.Len() > 0 {
		b.WriteByte(' ')
	}
	b.WriteString(text)
}

// ToggleRecording flips between recording and stopped. Entering recording
// always clears the current-question buffer.
func (c *Controller) ToggleRecording() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase == Recording {
		c.phase = Stopped
	} else {
		c.current = ""
		c.phase = Recording
	}
	log.Debug().Str("module", "app.turn").Int("index", c.idx).Str("phase", c.phase.String()).Msg("recording toggled")
	return c.phase
}

// CanAdvance is false only while recording with an empty buffer.
func (c *Controller) CanAdvance() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.canAdvanceLocked()
}

func (c *Controller) canAdvanceLocked() bool {
	if c.completed || c.submitting || len(c.questions) == 0 {
		return false
	}
	return !(c.phase == Recording && strings.TrimSpace(c.current) == "")
}

// SubmitCurrentAnswer submits the trimmed buffer, or NoAnswerText when empty, for the
// current question. On failure nothing moves and the buffer is kept for a retry.
func (c *Controller) SubmitCurrentAnswer(ctx context.Context) (Outcome, error) {
	c.mu.Lock()
	switch {
	case c.completed || len(c.questions) == 0:
		c.mu.Unlock()
		return Outcome{}, ErrCompleted
	case c.submitting:
		c.mu.Unlock()
		return Outcome{}, ErrSubmissionInFlight
	case !c.canAdvanceLocked():
		c.mu.Unlock()
		return Outcome{}, ErrAdvanceBlocked
	}
	q := c.questions[c.idx]
	idx := c.idx
	answer := strings.TrimSpace(c.current)
	if answer == "" {
		answer = NoAnswerText
	}
	c.submitting = true
	c.mu.Unlock()

	logger := log.With().Str("module", "app.turn").Str("question", q.ID.String()).Int("index", idx).Logger()

	err := c.submitter.SubmitAnswer(ctx, q.ID, answer)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.submitting = false
	if err != nil {
		logger.Error().Err(err).Msg("submit failed, turn kept")
		return Outcome{}, &domain.SubmissionError{QuestionID: q.ID, Err: err}
	}

	out := Outcome{QuestionID: q.ID, Index: idx, Answer: answer}
	if c.idx < len(c.questions)-1 {
		c.idx++
		c.current = ""
		c.phase = Idle
		logger.Info().Int("next", c.idx).Msg("answer submitted")
		return out, nil
	}
	c.completed = true
	c.phase = Idle
	out.Completed = true
	logger.Info().Msg("final answer submitted")
	return out, nil
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := State{
		Index:          c.idx,
		Count:          len(c.questions),
		Phase:          c.phase,
		Transcript:     c.current,
		FullTranscript: c.full.String(),
		CanAdvance:     c.canAdvanceLocked(),
		Submitting:     c.submitting,
		Completed:      c.completed,
	}
	if c.idx < len(c.questions) {
		st.Question = c.questions[c.idx]
	}
	return st
}
