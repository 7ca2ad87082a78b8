package round

import "github.com/playperu/cityfinder/internal/scoring"

type EventType string

const (
	EventTick      EventType = "tick"
	EventPenalty   EventType = "penalty"
	EventVerdict   EventType = "verdict"
	EventHint      EventType = "hint"
	EventSkip      EventType = "skip"
	EventCity      EventType = "city"
	EventComplete  EventType = "complete"
	EventAbandoned EventType = "abandoned"
)

// Event describes a change to a round. CityIndex is the active entry when
// the event was raised.
type Event struct {
	Type           EventType        `json:"type"`
	Clock          float64          `json:"clock"`
	Found          int              `json:"found"`
	CityIndex      int              `json:"cityIndex"`
	PenaltySeconds float64          `json:"penaltySeconds,omitempty"`
	Hint           scoring.Hint     `json:"hint,omitempty"`
	Verdict        *scoring.Verdict `json:"verdict,omitempty"`
}

func (r *Round) eventLocked(t EventType) Event {
	return Event{
		Type:      t,
		Clock:     r.clock.Seconds(),
		Found:     r.found,
		CityIndex: r.active,
	}
}

func (r *Round) publishLocked(ev Event) {
	if r.observer != nil {
		r.outbox = append(r.outbox, ev)
	}
}

// unlock releases r.mu and then delivers queued events.
func (r *Round) unlock() {
	events := r.outbox
	r.outbox = nil
	r.mu.Unlock()

	for _, ev := range events {
		r.observer(ev)
	}
}
