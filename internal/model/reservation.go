package model

import "time"

// ReservationStatus is the state of a rider's reservation.
type ReservationStatus string

const (
	ReservationConfirmed  ReservationStatus = "confirmed"
	ReservationWaitlisted ReservationStatus = "waitlisted"
	ReservationCancelled  ReservationStatus = "cancelled"
)

// Valid reports whether s is a known reservation status.
func (s ReservationStatus) Valid() bool {
	switch s {
	case ReservationConfirmed, ReservationWaitlisted, ReservationCancelled:
		return true
	}
	return false
}

// Active reports whether s still occupies a seat or a waitlist slot.
func (s ReservationStatus) Active() bool {
	return s == ReservationConfirmed || s == ReservationWaitlisted
}

// Reservation records one rider's place on a van.
//
// Fields:
//
//	ID            – primary key identifier.
//	VanID         – van the rider is queued on.
//	EventID       – event the van was attached to when the rider was tagged (nullable).
//	FullName      – normalized rider name.
//	Status        – confirmed, waitlisted or cancelled.
//	Position      – 1-based FIFO position inside the (van, status) partition.
//	JoinedAt      – arrival timestamp.
//	ReleasedAt    – set when a confirmed reservation is cancelled.
//	ChargedAmount – share of the van cost owed by the rider.
//	HasPaid       – payment flag, reset whenever ChargedAmount changes.
type Reservation struct {
	ID            uint64            `json:"id"`            // reservations.id
	VanID         uint64            `json:"vanId"`         // reservations.van_id
	EventID       *uint64           `json:"eventId"`       // reservations.event_id (nullable)
	FullName      string            `json:"fullName"`      // reservations.full_name
	Status        ReservationStatus `json:"status"`        // reservations.status
	Position      int               `json:"position"`      // reservations.position
	JoinedAt      time.Time         `json:"joinedAt"`      // reservations.joined_at
	ReleasedAt    *time.Time        `json:"releasedAt"`    // reservations.released_at (nullable)
	ChargedAmount float64           `json:"chargedAmount"` // reservations.charged_amount
	HasPaid       bool              `json:"hasPaid"`       // reservations.has_paid
}

// QueueView is the ordered partition of a van's active reservations.
type QueueView struct {
	Van        Van           `json:"van"`
	Confirmed  []Reservation `json:"confirmed"`
	Waitlisted []Reservation `json:"waitlisted"`
}
