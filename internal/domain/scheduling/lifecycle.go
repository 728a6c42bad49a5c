package scheduling

import "github.com/odonto/odonto/internal/platform/apperr"

var (
	ErrTerminalStatus    = apperr.Conflict("appointment lifecycle", "appointment is completed, cancelled or marked no-show")
	ErrInvalidTransition = apperr.Conflict("appointment lifecycle", "status transition not allowed")
)

var transitions = map[Status][]Status{
	StatusScheduled:  {StatusConfirmed, StatusCancelled, StatusNoShow},
	StatusConfirmed:  {StatusInProgress, StatusCancelled, StatusNoShow},
	StatusInProgress: {StatusCompleted, StatusCancelled, StatusNoShow},
}

// CanTransition reports whether an appointment may move from one status to
// another. Terminal statuses have no outgoing transitions.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// checkTransition returns ErrTerminalStatus or ErrInvalidTransition when the
// move is not allowed.
func checkTransition(from, to Status) error {
	if from.Terminal() {
		return ErrTerminalStatus
	}
	if !CanTransition(from, to) {
		return ErrInvalidTransition
	}
	return nil
}
