package ui

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dkeye/interviewer/internal/app/orch"
	"github.com/dkeye/interviewer/internal/app/turn"
	"github.com/dkeye/interviewer/internal/domain"
)

func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.header())
	b.WriteString("\n\n")

	switch m.snap.State {
	case orch.Authenticating:
		b.WriteString(m.authView())
	case orch.Landing:
		b.WriteString(m.landingView())
	case orch.Interviewing:
		b.WriteString(m.interviewView())
	case orch.AwaitingEvaluation:
		b.WriteString(m.awaitingView())
	case orch.ShowingResults:
		b.WriteString(m.resultsView())
	}

	b.WriteString("\n")
	if m.busy != "" {
		b.WriteString(hintStyle.Render("… " + m.busy))
		b.WriteString("\n")
	}
	if m.warn != "" {
		b.WriteString(warnStyle.Render("! " + m.warn))
		b.WriteString("\n")
	}
	if m.status != "" {
		b.WriteString(errStyle.Render("✗ " + m.status))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) header() string {
	title := headerStyle.Render("Interview")
	right := m.snap.State.String()
	if m.snap.User.Username != "" {
		right = m.snap.User.Username + " · " + right
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, title, hintStyle.Render(right))
}

func (m Model) authView() string {
	if m.regMode {
		return "Create an account\n\n" + m.register.view() +
			"\n" + hintStyle.Render("enter submit · tab next field · ctrl+r sign in instead · esc quit")
	}
	return "Sign in\n\n" + m.login.view() +
		"\n" + hintStyle.Render("enter submit · tab next field · ctrl+r create account · esc quit")
}

func (m Model) landingView() string {
	return "Start a new interview\n\n" + m.landing.view() +
		"\n" + hintStyle.Render("enter start · tab next field · ctrl+l logout · esc quit")
}

func (m Model) interviewView() string {
	if !m.snap.HasTurn {
		return "Preparing session…"
	}
	st := m.snap.Turn
	var b strings.Builder
	fmt.Fprintf(&b, "Question %d of %d\n", st.Index+1, st.Count)
	b.WriteString(boxStyle.Render(st.Question.Text))
	b.WriteString("\n\n")

	switch {
	case !m.snap.Live:
		b.WriteString(hintStyle.Render("connecting media…"))
	case st.Phase == turn.Recording:
		b.WriteString(recStyle.Render("● REC"))
	default:
		b.WriteString(labelStyle.Render("○ " + st.Phase.String()))
	}
	if m.snap.Live {
		b.WriteString(hintStyle.Render("  " + m.snap.Mode.String()))
	}
	b.WriteString("\n\n")

	b.WriteString(labelStyle.Render("Answer"))
	b.WriteString("\n")
	if st.Transcript == "" {
		b.WriteString(hintStyle.Render("(nothing captured yet)"))
	} else {
		b.WriteString(st.Transcript)
	}
	b.WriteString("\n\n")

	switch {
	case st.Submitting:
		b.WriteString(hintStyle.Render("submitting answer…"))
	case !st.CanAdvance && st.Phase == turn.Recording:
		b.WriteString(hintStyle.Render("r stop · keep talking, nothing captured yet · ctrl+l logout"))
	case st.Index == st.Count-1:
		b.WriteString(hintStyle.Render("r record/stop · n finish interview · ctrl+l logout"))
	default:
		b.WriteString(hintStyle.Render("r record/stop · n next question · ctrl+l logout"))
	}
	return b.String()
}

func (m Model) awaitingView() string {
	var b strings.Builder
	b.WriteString("All answers submitted. Evaluating…\n\n")
	if m.snap.Fetching {
		b.WriteString(hintStyle.Render("fetching results"))
		b.WriteString("\n")
	}
	if m.snap.LastError != nil {
		b.WriteString(errStyle.Render(m.snap.LastError.Error()))
		b.WriteString("\n")
		b.WriteString(hintStyle.Render("r retry · ctrl+l logout · esc quit"))
	} else {
		b.WriteString(hintStyle.Render("r fetch now · ctrl+l logout · esc quit"))
	}
	return b.String()
}

func (m Model) resultsView() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Results for %s · %s\n\n", m.snap.Session.UserName, m.snap.Session.Position)
	for i, r := range m.snap.Results {
		b.WriteString(resultView(i, r))
		b.WriteString("\n")
	}
	b.WriteString(hintStyle.Render("enter new interview · ctrl+l logout · esc quit"))
	return b.String()
}

func resultView(i int, r domain.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", labelStyle.Render(fmt.Sprintf("Q%d", i+1)), r.Question)
	fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("A:"), r.Answer)
	if !r.Evaluated() {
		b.WriteString(hintStyle.Render("not evaluated"))
		b.WriteString("\n")
	}
	for _, k := range slices.Sorted(maps.Keys(r.Evaluation)) {
		fmt.Fprintf(&b, "  %s %s\n", labelStyle.Render(k+":"), formatValue(r.Evaluation[k]))
	}
	if e, ok := r.DominantEmotion(); ok {
		fmt.Fprintf(&b, "  %s %s\n", labelStyle.Render("emotion:"), e)
	}
	return boxStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func formatValue(v any) string {
	switch x := v.(type) {
	case []any:
		parts := make([]string, 0, len(x))
		for _, p := range x {
			parts = append(parts, fmt.Sprint(p))
		}
		return strings.Join(parts, ", ")
	case float64:
		if x == float64(int64(x)) {
			return fmt.Sprintf("%d", int64(x))
		}
		return fmt.Sprintf("%.1f", x)
	default:
		return fmt.Sprint(v)
	}
}
