package orch

import (
	"errors"
	"fmt"
)

// State is the top-level screen of the interview client.
type State int

const (
	Authenticating State = iota
	Landing
	Interviewing
	AwaitingEvaluation
	ShowingResults
)

func (s State) String() string {
	switch s {
	case Authenticating:
		return "authenticating"
	case Landing:
		return "landing"
	case Interviewing:
		return "interviewing"
	case AwaitingEvaluation:
		return "awaiting_evaluation"
	case ShowingResults:
		return "showing_results"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Event drives a transition.
type Event int

const (
	EvAuthenticated Event = iota
	EvSessionReady
	EvInterviewAborted
	EvInterviewCompleted
	EvResultsReady
	EvRestart
	EvLogout
)

func (e Event) String() string {
	switch e {
	case EvAuthenticated:
		return "authenticated"
	case EvSessionReady:
		return "session_ready"
	case EvInterviewAborted:
		return "interview_aborted"
	case EvInterviewCompleted:
		return "interview_completed"
	case EvResultsReady:
		return "results_ready"
	case EvRestart:
		return "restart"
	case EvLogout:
		return "logout"
	default:
		return fmt.Sprintf("event(%d)", int(e))
	}
}

var ErrInvalidTransition = errors.New("invalid state transition")

var transitions = map[State]map[Event]State{
	Authenticating: {
		EvAuthenticated: Landing,
		EvLogout:        Authenticating,
	},
	Landing: {
		EvSessionReady: Interviewing,
		EvLogout:       Authenticating,
	},
	Interviewing: {
		EvInterviewAborted:   Landing,
		EvInterviewCompleted: AwaitingEvaluation,
		EvLogout:             Authenticating,
	},
	AwaitingEvaluation: {
		EvResultsReady: ShowingResults,
		EvLogout:       Authenticating,
	},
	ShowingResults: {
		EvRestart: Landing,
		EvLogout:  Authenticating,
	},
}

// Next returns the state reached from s on e.
func Next(s State, e Event) (State, error) {
	if next, ok := transitions[s][e]; ok {
		return next, nil
	}
	return s, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, e, s)
}
