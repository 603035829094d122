package orch

import (
	"errors"
	"testing"
)

func TestNext_Table(t *testing.T) {
	states := []State{Authenticating, Landing, Interviewing, AwaitingEvaluation, ShowingResults}
	events := []Event{EvAuthenticated, EvSessionReady, EvInterviewAborted, EvInterviewCompleted, EvResultsReady, EvRestart, EvLogout}

	allowed := map[State]map[Event]State{
		Authenticating:     {EvAuthenticated: Landing, EvLogout: Authenticating},
		Landing:            {EvSessionReady: Interviewing, EvLogout: Authenticating},
		Interviewing:       {EvInterviewAborted: Landing, EvInterviewCompleted: AwaitingEvaluation, EvLogout: Authenticating},
		AwaitingEvaluation: {EvResultsReady: ShowingResults, EvLogout: Authenticating},
		ShowingResults:     {EvRestart: Landing, EvLogout: Authenticating},
	}

	for _, s := range states {
		for _, e := range events {
			got, err := Next(s, e)
			want, ok := allowed[s][e]
			switch {
			case ok && (err != nil || got != want):
				t.Errorf("Next(%s, %s) = %s, %v; want %s", s, e, got, err, want)
			case !ok && !errors.Is(err, ErrInvalidTransition):
				t.Errorf("Next(%s, %s) = %s, %v; want ErrInvalidTransition", s, e, got, err)
			case !ok && got != s:
				t.Errorf("Next(%s, %s) moved to %s on error", s, e, got)
			}
		}
	}
}

func TestStateString(t *testing.T) {
	if AwaitingEvaluation.String() != "awaiting_evaluation" {
		t.Errorf("got %q", AwaitingEvaluation.String())
	}
	if State(42).String() != "state(42)" {
		t.Errorf("got %q", State(42).String())
	}
}
