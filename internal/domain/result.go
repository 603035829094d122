package domain

// Result pairs a question with the submitted answer and its evaluation.
type Result struct {
	Question   string         `json:"question"`
	Answer     string         `json:"answer"`
	Evaluation map[string]any `json:"evaluation"`
	Emotion    map[string]any `json:"emotion,omitempty"`
}

// Evaluated reports whether the backend attached an evaluation payload.
func (r Result) Evaluated() bool { return len(r.Evaluation) > 0 }

// DominantEmotion returns the dominant emotion label, if the summary carries one.
func (r Result) DominantEmotion() (string, bool) {
	if r.Emotion == nil {
		return "", false
	}
	v, ok := r.Emotion["dominant_emotion"].(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
