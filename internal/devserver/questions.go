package devserver

import "strings"

var questionBank = []string{
	"What are the core competencies of a {position}?",
	"Describe a recent project you worked on.",
	"Share an experience where you solved a difficult technical problem.",
	"How do you keep your skills current as a {position}?",
	"Tell us about a time you disagreed with a teammate and how it was resolved.",
}

// Questions returns n prompts for position, cycling the bank when n exceeds it.
func Questions(position string, n int) []string {
	if n <= 0 {
		n = 3
	}
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		text := strings.ReplaceAll(questionBank[i%len(questionBank)], "{position}", position)
		if i >= len(questionBank) {
			text = "(follow-up) " + text
		}
		out = append(out, text)
	}
	return out
}
