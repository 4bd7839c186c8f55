package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/van-seat-reservation/internal/model"
)

// EventVanRepository persists van-to-event associations.
type EventVanRepository interface {
	Create(ctx context.Context, ev *model.EventVan) error
	Get(ctx context.Context, eventID, vanID uint64) (model.EventVan, error)
	ListByEvent(ctx context.Context, eventID uint64) ([]model.EventVanDetail, error)
	Update(ctx context.Context, ev model.EventVan) error
	Delete(ctx context.Context, eventID, vanID uint64) error
	FirstOpen(ctx context.Context, eventID, excludeVanID uint64) (model.EventVan, error)
}

// EventVanRepo is the SQL implementation of EventVanRepository.
type EventVanRepo struct {
	db DBTX
}

// NewEventVanRepo returns an EventVanRepo bound to db.
func NewEventVanRepo(db DBTX) *EventVanRepo { return &EventVanRepo{db: db} }

const eventVanColumns = `id, event_id, van_id, status, van_cost, per_passenger_cost, closed_at, created_at`

func scanEventVan(s rowScanner, extra ...any) (model.EventVan, error) {
	var (
		ev       model.EventVan
		perHead  sql.NullFloat64
		closedAt sql.NullTime
	)
	dest := append([]any{&ev.ID, &ev.EventID, &ev.VanID, &ev.Status, &ev.VanCost, &perHead, &closedAt, &ev.CreatedAt}, extra...)
	if err := s.Scan(dest...); err != nil {
		return model.EventVan{}, err
	}
	ev.PerPassengerCost = floatPtr(perHead)
	ev.ClosedAt = timePtr(closedAt)
	ev.CreatedAt = ev.CreatedAt.UTC()
	return ev, nil
}

// Create inserts the association.  Attaching the same van twice yields ErrConflict.
func (r *EventVanRepo) Create(ctx context.Context, ev *model.EventVan) error {
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	if ev.Status == "" {
		ev.Status = model.EventVanOpen
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO event_vans (event_id, van_id, status, van_cost, per_passenger_cost, closed_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.EventID, ev.VanID, ev.Status, ev.VanCost, nullFloat(ev.PerPassengerCost), nullTime(ev.ClosedAt), ev.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return err
	}
	ev.ID, err = insertedID(res)
	return err
}

// Get returns the association of vanID with eventID or ErrNotFound.
func (r *EventVanRepo) Get(ctx context.Context, eventID, vanID uint64) (model.EventVan, error) {
	ev, err := scanEventVan(r.db.QueryRowContext(ctx,
		`SELECT `+eventVanColumns+` FROM event_vans WHERE event_id = ? AND van_id = ?`, eventID, vanID))
	return ev, notFound(err)
}

// ListByEvent returns the event's associations with van details and occupancy,
// in attachment order.
func (r *EventVanRepo) ListByEvent(ctx context.Context, eventID uint64) ([]model.EventVanDetail, error) {
	const q = `SELECT ev.id, ev.event_id, ev.van_id, ev.status, ev.van_cost, ev.per_passenger_cost, ev.closed_at, ev.created_at,
	                  v.name, v.capacity,
	                  (SELECT COUNT(*) FROM reservations r WHERE r.van_id = ev.van_id AND r.status = 'confirmed'),
	                  (SELECT COUNT(*) FROM reservations r WHERE r.van_id = ev.van_id AND r.status = 'waitlisted')
	           FROM event_vans ev
	           JOIN vans v ON v.id = ev.van_id
	           WHERE ev.event_id = ?
	           ORDER BY ev.created_at, ev.id`
	rows, err := r.db.QueryContext(ctx, q, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.EventVanDetail{}
	for rows.Next() {
		var d model.EventVanDetail
		ev, err := scanEventVan(rows, &d.VanName, &d.Capacity, &d.ConfirmedCount, &d.WaitlistedCount)
		if err != nil {
			return nil, err
		}
		d.EventVan = ev
		out = append(out, d)
	}
	return out, rows.Err()
}

// Update writes status, cost, per-passenger cost and closed-at.
func (r *EventVanRepo) Update(ctx context.Context, ev model.EventVan) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE event_vans SET status = ?, van_cost = ?, per_passenger_cost = ?, closed_at = ? WHERE id = ?`,
		ev.Status, ev.VanCost, nullFloat(ev.PerPassengerCost), nullTime(ev.ClosedAt), ev.ID)
	return err
}

// Delete removes the association or returns ErrNotFound.
func (r *EventVanRepo) Delete(ctx context.Context, eventID, vanID uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM event_vans WHERE event_id = ? AND van_id = ?`, eventID, vanID)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res)
}

// FirstOpen returns the earliest-attached open van of the event other than
// excludeVanID, or ErrNotFound.
func (r *EventVanRepo) FirstOpen(ctx context.Context, eventID, excludeVanID uint64) (model.EventVan, error) {
	ev, err := scanEventVan(r.db.QueryRowContext(ctx,
		`SELECT `+eventVanColumns+` FROM event_vans
		 WHERE event_id = ? AND van_id <> ? AND status = 'open'
		 ORDER BY created_at, id LIMIT 1`, eventID, excludeVanID))
	return ev, notFound(err)
}
