package devserver

import (
	"strings"
	"time"

	"github.com/dkeye/interviewer/internal/domain"
	"github.com/rs/zerolog/log"
)

// Evaluator scores answers with a word-count heuristic after a delay, in
// place of the model-backed worker.
type Evaluator struct {
	store *Store
	stats *Sink
	delay time.Duration
}

func NewEvaluator(store *Store, stats *Sink, delay time.Duration) *Evaluator {
	return &Evaluator{store: store, stats: stats, delay: delay}
}

func (e *Evaluator) Schedule(sessionID, answerID domain.ID, question, answer string) {
	run := func() {
		eval := Score(question, answer)
		var emotion map[string]any
		if e.stats != nil {
			emotion = e.stats.EmotionSummary(sessionID)
		}
		if !e.store.Evaluate(sessionID, answerID, eval, emotion) {
			log.Warn().Str("module", "devserver.eval").Str("answer", answerID.String()).Msg("answer vanished before evaluation")
			return
		}
		log.Debug().Str("module", "devserver.eval").Str("answer", answerID.String()).Any("score", eval["technical_score"]).Msg("evaluated")
	}
	if e.delay <= 0 {
		run()
		return
	}
	time.AfterFunc(e.delay, run)
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

// Score builds the evaluation payload for one answer.
func Score(question, answer string) map[string]any {
	words := len(strings.Fields(answer))
	if strings.HasPrefix(answer, "No answer captured") {
		words = 0
	}
	sentences := strings.Count(answer, ".") + strings.Count(answer, "?") + strings.Count(answer, "!")

	technical := clamp(1+words/15, 1, 5)
	communication := clamp(1+sentences+words/40, 1, 5)

	strengths := "The answer stays on topic."
	weaknesses := "Add concrete examples and measurable outcomes."
	switch {
	case words == 0:
		strengths = "None observed."
		weaknesses = "No answer was captured for this question."
	case words >= 60:
		weaknesses = "Consider a more concise structure."
	}
	return map[string]any{
		"technical_score":     technical,
		"communication_score": communication,
		"strengths":           strengths,
		"weaknesses":          weaknesses,
		"total_feedback":      feedback(technical, communication, question),
	}
}

func feedback(technical, communication int, question string) string {
	avg := float64(technical+communication) / 2
	switch {
	case avg >= 4:
		return "Strong answer to \"" + question + "\"."
	case avg >= 2.5:
		return "Reasonable answer to \"" + question + "\", with room for more depth."
	default:
		return "The answer to \"" + question + "\" needs substantially more detail."
	}
}
