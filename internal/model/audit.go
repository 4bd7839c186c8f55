package model

import (
	"encoding/json"
	"time"
)

// AuditEventType tags an entry of the reservation audit log.
type AuditEventType string

const (
	AuditJoin             AuditEventType = "join"
	AuditWaitlist         AuditEventType = "waitlist"
	AuditRelease          AuditEventType = "release"
	AuditDuplicateBlocked AuditEventType = "duplicate_blocked"
	AuditOverrideAdded    AuditEventType = "override_added"
	AuditOverrideRemoved  AuditEventType = "override_removed"
	AuditCapacityUpdated  AuditEventType = "capacity_updated"
	AuditVanCreated       AuditEventType = "van_created"
	AuditVanRemoved       AuditEventType = "van_removed"
	AuditVanClosed        AuditEventType = "van_closed"
	AuditVanReopened      AuditEventType = "van_reopened"
	AuditVanMigrated      AuditEventType = "van_migrated"
	AuditVanAttached      AuditEventType = "van_attached"
	AuditVanDetached      AuditEventType = "van_detached"
	AuditEventCreated     AuditEventType = "event_created"
	AuditEventUpdated     AuditEventType = "event_updated"
	AuditPaymentUpdated   AuditEventType = "payment_updated"
)

// ReservationEvent is an immutable audit log entry.
type ReservationEvent struct {
	ID        uint64          `json:"id"`
	EventType AuditEventType  `json:"eventType"`
	EventData json.RawMessage `json:"eventData"`
	CreatedAt time.Time       `json:"createdAt"`
}
