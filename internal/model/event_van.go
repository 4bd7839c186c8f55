package model

import "time"

// EventVanStatus is the state of a van inside an event.
type EventVanStatus string

const (
	EventVanOpen    EventVanStatus = "open"
	EventVanFull    EventVanStatus = "full"
	EventVanClosed  EventVanStatus = "closed"
	EventVanHolding EventVanStatus = "holding"
)

// Valid reports whether s is a known association status.
func (s EventVanStatus) Valid() bool {
	switch s {
	case EventVanOpen, EventVanFull, EventVanClosed, EventVanHolding:
		return true
	}
	return false
}

// EventVan associates a van with an event and carries the cost split.
// PerPassengerCost and ClosedAt are only set while Status is closed.
type EventVan struct {
	ID               uint64         `json:"id"`               // event_vans.id
	EventID          uint64         `json:"eventId"`          // event_vans.event_id
	VanID            uint64         `json:"vanId"`            // event_vans.van_id
	Status           EventVanStatus `json:"status"`           // event_vans.status
	VanCost          float64        `json:"vanCost"`          // event_vans.van_cost
	PerPassengerCost *float64       `json:"perPassengerCost"` // event_vans.per_passenger_cost (nullable)
	ClosedAt         *time.Time     `json:"closedAt"`         // event_vans.closed_at (nullable)
	CreatedAt        time.Time      `json:"createdAt"`        // event_vans.created_at
}

// EventVanDetail adds the van's name, capacity and occupancy to an association.
type EventVanDetail struct {
	EventVan
	VanName         string `json:"vanName"`
	Capacity        int    `json:"capacity"`
	ConfirmedCount  int    `json:"confirmedCount"`
	WaitlistedCount int    `json:"waitlistedCount"`
}
