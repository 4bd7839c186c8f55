package model

import "time"

// Van is a vehicle whose seats are handed out first-come-first-served.
//
// Fields:
//
//	ID             – primary key identifier.
//	Name           – display name, unique across vans.
//	Capacity       – number of confirmable seats (1–64).
//	DepartureAt    – optional scheduled departure instant.
//	DefaultEventID – weak reference to the event the van is currently attached to.
//	CreatedAt      – creation timestamp.
type Van struct {
	ID             uint64     `json:"id"`             // vans.id
	Name           string     `json:"name"`           // vans.name
	Capacity       int        `json:"capacity"`       // vans.capacity
	DepartureAt    *time.Time `json:"departureAt"`    // vans.departure_at (nullable)
	DefaultEventID *uint64    `json:"defaultEventId"` // vans.default_event_id (nullable)
	CreatedAt      time.Time  `json:"createdAt"`      // vans.created_at
}

// MinVanCapacity and MaxVanCapacity bound Van.Capacity.
const (
	MinVanCapacity = 1
	MaxVanCapacity = 64
)

// VanSummary is a van together with its current occupancy.
type VanSummary struct {
	Van
	ConfirmedCount  int `json:"confirmedCount"`
	WaitlistedCount int `json:"waitlistedCount"`
}
