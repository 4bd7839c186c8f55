package service

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/iliyamo/van-seat-reservation/internal/model"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 500
	auditWriteTimeout = 3 * time.Second
)

// AuditPublisher forwards recorded audit events to a message broker.
type AuditPublisher interface {
	PublishAudit(ctx context.Context, eventType string, data json.RawMessage, at time.Time) error
}

// AuditLog records domain events.  Writes are best-effort: failures are
// logged and never reach the caller of the primary operation.
type AuditLog struct {
	store     Store
	publisher AuditPublisher
	now       func() time.Time
}

// NewAuditLog returns an AuditLog writing through store.  publisher may be nil.
func NewAuditLog(store Store, publisher AuditPublisher, now func() time.Time) *AuditLog {
	if now == nil {
		now = time.Now
	}
	return &AuditLog{store: store, publisher: publisher, now: now}
}

// auditEntry is an audit event collected during a transaction and written
// once it commits.
type auditEntry struct {
	Type model.AuditEventType
	Data map[string]any
}

// Record appends one event.
func (a *AuditLog) Record(ctx context.Context, eventType model.AuditEventType, data map[string]any) {
	if a == nil {
		return
	}
	// the primary operation may already be answered; do not let its cancellation drop the entry
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditWriteTimeout)
	defer cancel()

	payload, err := json.Marshal(data)
	if err != nil {
		log.Printf("audit: marshal %s failed: %v", eventType, err)
		return
	}
	at := a.now().UTC()
	if err := a.store.Repos().Audit.Append(ctx, eventType, payload, at); err != nil {
		log.Printf("audit: append %s failed: %v", eventType, err)
	}
	if a.publisher != nil {
		if err := a.publisher.PublishAudit(ctx, string(eventType), payload, at); err != nil {
			log.Printf("audit: publish %s failed: %v", eventType, err)
		}
	}
}

func (a *AuditLog) recordAll(ctx context.Context, entries []auditEntry) {
	for _, e := range entries {
		a.Record(ctx, e.Type, e.Data)
	}
}

// List returns the newest entries.  limit defaults to 50 and is capped at 500.
func (a *AuditLog) List(ctx context.Context, limit int) ([]model.ReservationEvent, error) {
	if limit <= 0 {
		limit = defaultAuditLimit
	}
	if limit > maxAuditLimit {
		limit = maxAuditLimit
	}
	events, err := a.store.Repos().Audit.List(ctx, limit)
	if err != nil {
		return nil, unexpected("list audit events", err)
	}
	return events, nil
}
