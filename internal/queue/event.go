// Package queue carries audit events over RabbitMQ: the publisher used by
// the audit log and the background consumer that appends them to a log file.
package queue

import "encoding/json"

// DefaultQueueName is the durable queue audit events are routed to.
const DefaultQueueName = "reservation.events"

// ReservationEventMessage is the body of every published audit event.  It
// repeats the audit payload so consumers never need to query the database.
type ReservationEventMessage struct {
	MessageID  string          `json:"message_id"`
	EventType  string          `json:"event_type"`
	Data       json.RawMessage `json:"data"`
	OccurredAt string          `json:"occurred_at"` // RFC3339, UTC
}
