package model

import "time"

// DuplicateNameOverride suspends the one-active-reservation-per-name
// rule for a single name until ExpiresAt (or forever when nil).
type DuplicateNameOverride struct {
	ID        uint64     `json:"id"`
	FullName  string     `json:"fullName"`
	Reason    *string    `json:"reason"`
	ExpiresAt *time.Time `json:"expiresAt"`
	CreatedAt time.Time  `json:"createdAt"`
}

// ActiveAt reports whether the override is in force at instant now.
func (o DuplicateNameOverride) ActiveAt(now time.Time) bool {
	return o.ExpiresAt == nil || o.ExpiresAt.After(now)
}
