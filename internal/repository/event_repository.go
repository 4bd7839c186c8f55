package repository

import (
	"context"
	"time"

	"github.com/iliyamo/van-seat-reservation/internal/model"
)

// EventRepository persists events.
type EventRepository interface {
	Create(ctx context.Context, e *model.Event) error
	GetByID(ctx context.Context, id uint64) (model.Event, error)
	List(ctx context.Context) ([]model.Event, error)
	Update(ctx context.Context, e model.Event) error
	RecalculateTotal(ctx context.Context, eventID uint64) (float64, error)
}

// EventRepo is the SQL implementation of EventRepository.
type EventRepo struct {
	db DBTX
}

// NewEventRepo returns an EventRepo bound to db.
func NewEventRepo(db DBTX) *EventRepo { return &EventRepo{db: db} }

const eventColumns = `id, name, event_date, status, total_cost, created_at`

func scanEvent(s rowScanner) (model.Event, error) {
	var e model.Event
	if err := s.Scan(&e.ID, &e.Name, &e.EventDate, &e.Status, &e.TotalCost, &e.CreatedAt); err != nil {
		return model.Event{}, err
	}
	e.EventDate = e.EventDate.UTC()
	e.CreatedAt = e.CreatedAt.UTC()
	return e, nil
}

// Create inserts e and fills in its ID.
func (r *EventRepo) Create(ctx context.Context, e *model.Event) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if e.Status == "" {
		e.Status = model.EventPlanned
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO events (name, event_date, status, total_cost, created_at) VALUES (?, ?, ?, ?, ?)`,
		e.Name, e.EventDate.UTC(), e.Status, e.TotalCost, e.CreatedAt)
	if err != nil {
		return err
	}
	e.ID, err = insertedID(res)
	return err
}

// GetByID returns the event or ErrNotFound.
func (r *EventRepo) GetByID(ctx context.Context, id uint64) (model.Event, error) {
	e, err := scanEvent(r.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id))
	return e, notFound(err)
}

// List returns all events ordered by date.
func (r *EventRepo) List(ctx context.Context) ([]model.Event, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+eventColumns+` FROM events ORDER BY event_date, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Update writes name, date, status and total cost.
func (r *EventRepo) Update(ctx context.Context, e model.Event) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE events SET name = ?, event_date = ?, status = ?, total_cost = ? WHERE id = ?`,
		e.Name, e.EventDate.UTC(), e.Status, e.TotalCost, e.ID)
	return err
}

// RecalculateTotal sets total_cost to the sum of the event's van costs and returns it.
func (r *EventRepo) RecalculateTotal(ctx context.Context, eventID uint64) (float64, error) {
	var total float64
	if err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(van_cost), 0) FROM event_vans WHERE event_id = ?`, eventID).Scan(&total); err != nil {
		return 0, err
	}
	if _, err := r.db.ExecContext(ctx, `UPDATE events SET total_cost = ? WHERE id = ?`, total, eventID); err != nil {
		return 0, err
	}
	return total, nil
}
