package feed

// History keeps the most recent phase transitions of a feed.
type History struct {
	size        int
	transitions []Transition
	loads       int
	refreshes   int
	failures    int
	discarded   int
}

// NewHistory creates a history holding up to size transitions.
func NewHistory(size int) *History {
	if size <= 0 {
		size = 10
	}
	return &History{
		size:        size,
		transitions: make([]Transition, 0, size),
	}
}

// Record appends a transition, dropping the oldest when full.
func (h *History) Record(t Transition) {
	if len(h.transitions) >= h.size {
		copy(h.transitions, h.transitions[1:])
		h.transitions[len(h.transitions)-1] = t
	} else {
		h.transitions = append(h.transitions, t)
	}

	switch t.To {
	case PhaseLoading:
		h.loads++
	case PhaseRefreshing:
		h.refreshes++
	}
}

// Stats summarizes feed activity.
type Stats struct {
	Loads       int          `json:"loads"`
	Refreshes   int          `json:"refreshes"`
	Failures    int          `json:"failures"`
	Discarded   int          `json:"discarded"`
	Transitions []Transition `json:"transitions"`
}

// Stats returns a copy of the collected data.
func (h *History) Stats() Stats {
	s := Stats{
		Loads:       h.loads,
		Refreshes:   h.refreshes,
		Failures:    h.failures,
		Discarded:   h.discarded,
		Transitions: make([]Transition, len(h.transitions)),
	}
	copy(s.Transitions, h.transitions)
	return s
}
