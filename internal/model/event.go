package model

import "time"

// EventStatus is the lifecycle state of an Event.
type EventStatus string

const (
	EventPlanned    EventStatus = "planned"
	EventInProgress EventStatus = "in_progress"
	EventFinalized  EventStatus = "finalized"
)

// eventTransitions lists the statuses reachable from each status.
// Self-transitions are always allowed; finalized is terminal.
var eventTransitions = map[EventStatus][]EventStatus{
	EventPlanned:    {EventPlanned, EventInProgress},
	EventInProgress: {EventInProgress, EventFinalized},
	EventFinalized:  {EventFinalized},
}

// Valid reports whether s is a known event status.
func (s EventStatus) Valid() bool {
	_, ok := eventTransitions[s]
	return ok
}

// CanTransitionTo reports whether an event in status s may move to next.
func (s EventStatus) CanTransitionTo(next EventStatus) bool {
	for _, allowed := range eventTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Event groups vans travelling for the same occasion.  TotalCost is
// denormalized: it is the sum of the van costs of every attached van
// and is recomputed whenever an association's cost changes.
type Event struct {
	ID        uint64      `json:"id"`        // events.id
	Name      string      `json:"name"`      // events.name
	EventDate time.Time   `json:"eventDate"` // events.event_date (calendar date, UTC midnight)
	Status    EventStatus `json:"status"`    // events.status
	TotalCost float64     `json:"totalCost"` // events.total_cost
	CreatedAt time.Time   `json:"createdAt"` // events.created_at
}

// EventWithVans is an event together with its van associations, as
// returned by the admin listing.
type EventWithVans struct {
	Event
	Vans []EventVanDetail `json:"vans"`
}
