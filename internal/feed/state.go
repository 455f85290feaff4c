package feed

import (
	"errors"
	"time"
)

// Phase is the activity of a Feed. Loading and refreshing are exclusive.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseLoading    Phase = "loading"
	PhaseRefreshing Phase = "refreshing"
	PhaseClosed     Phase = "closed"
)

// ErrInvalidTransition is returned when an invalid phase change is attempted.
var ErrInvalidTransition = errors.New("invalid phase transition")

// ValidTransitions defines allowed phase changes.
// A refresh may supersede an outstanding load; nothing leaves closed.
var ValidTransitions = map[Phase][]Phase{
	PhaseIdle:       {PhaseLoading, PhaseRefreshing, PhaseClosed},
	PhaseLoading:    {PhaseIdle, PhaseRefreshing, PhaseClosed},
	PhaseRefreshing: {PhaseIdle, PhaseClosed},
	PhaseClosed:     {},
}

// CanTransition checks if a transition from one phase to another is valid.
func CanTransition(from, to Phase) bool {
	for _, target := range ValidTransitions[from] {
		if target == to {
			return true
		}
	}
	return false
}

// Transition represents a phase change with metadata.
type Transition struct {
	From       Phase     `json:"from"`
	To         Phase     `json:"to"`
	Reason     string    `json:"reason"`
	Generation uint64    `json:"generation"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewTransition creates a new transition record.
func NewTransition(from, to Phase, reason string, generation uint64) Transition {
	return Transition{
		From:       from,
		To:         to,
		Reason:     reason,
		Generation: generation,
		Timestamp:  time.Now(),
	}
}

// IsValid returns true if this transition is allowed.
func (t Transition) IsValid() bool {
	return CanTransition(t.From, t.To)
}

// PhaseDescription returns a human-readable description of a phase.
func PhaseDescription(p Phase) string {
	switch p {
	case PhaseIdle:
		return "Idle - ready for the next page or a refresh"
	case PhaseLoading:
		return "Loading - fetching the next page"
	case PhaseRefreshing:
		return "Refreshing - reloading the first page, bypassing cache freshness"
	case PhaseClosed:
		return "Closed - torn down, late results are discarded"
	default:
		return "Unknown phase"
	}
}
