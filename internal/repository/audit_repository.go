package repository

import (
	"context"
	"time"

	"github.com/iliyamo/van-seat-reservation/internal/model"
)

// AuditRepository appends to and reads the reservation_events log.
type AuditRepository interface {
	Append(ctx context.Context, eventType model.AuditEventType, data []byte, at time.Time) error
	List(ctx context.Context, limit int) ([]model.ReservationEvent, error)
	CountSince(ctx context.Context, eventType model.AuditEventType, since time.Time) (int, error)
}

// AuditRepo is the SQL implementation of AuditRepository.  Rows are never
// updated or deleted.
type AuditRepo struct {
	db DBTX
}

// NewAuditRepo returns an AuditRepo bound to db.
func NewAuditRepo(db DBTX) *AuditRepo { return &AuditRepo{db: db} }

// Append writes one audit entry.
func (r *AuditRepo) Append(ctx context.Context, eventType model.AuditEventType, data []byte, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO reservation_events (event_type, event_data, created_at) VALUES (?, ?, ?)`,
		eventType, string(data), at.UTC())
	return err
}

// List returns the newest limit entries.
func (r *AuditRepo) List(ctx context.Context, limit int) ([]model.ReservationEvent, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, event_type, event_data, created_at FROM reservation_events ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.ReservationEvent{}
	for rows.Next() {
		var (
			ev   model.ReservationEvent
			data string
		)
		if err := rows.Scan(&ev.ID, &ev.EventType, &data, &ev.CreatedAt); err != nil {
			return nil, err
		}
		ev.EventData = []byte(data)
		ev.CreatedAt = ev.CreatedAt.UTC()
		out = append(out, ev)
	}
	return out, rows.Err()
}

// CountSince counts entries of eventType created at or after since.
func (r *AuditRepo) CountSince(ctx context.Context, eventType model.AuditEventType, since time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reservation_events WHERE event_type = ? AND created_at >= ?`, eventType, since.UTC()).Scan(&n)
	return n, err
}
