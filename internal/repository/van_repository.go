package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/iliyamo/van-seat-reservation/internal/model"
)

// VanRepository persists vans.
type VanRepository interface {
	Create(ctx context.Context, v *model.Van) error
	GetByID(ctx context.Context, id uint64) (model.Van, error)
	GetByName(ctx context.Context, name string) (model.Van, error)
	List(ctx context.Context) ([]model.VanSummary, error)
	Update(ctx context.Context, v model.Van) error
	Delete(ctx context.Context, id uint64) error
	SetDefaultEvent(ctx context.Context, vanID uint64, eventID *uint64) error
	ClearDefaultEvent(ctx context.Context, vanID, eventID uint64) error
}

// VanRepo is the SQL implementation of VanRepository.
type VanRepo struct {
	db DBTX
}

// NewVanRepo returns a VanRepo bound to db.
func NewVanRepo(db DBTX) *VanRepo { return &VanRepo{db: db} }

const vanColumns = `id, name, capacity, departure_at, default_event_id, created_at`

func scanVan(s rowScanner) (model.Van, error) {
	var (
		v         model.Van
		departure sql.NullTime
		eventID   sql.NullInt64
	)
	if err := s.Scan(&v.ID, &v.Name, &v.Capacity, &departure, &eventID, &v.CreatedAt); err != nil {
		return model.Van{}, err
	}
	v.DepartureAt = timePtr(departure)
	v.DefaultEventID = idPtr(eventID)
	v.CreatedAt = v.CreatedAt.UTC()
	return v, nil
}

// Create inserts v and fills in its ID.  A name collision yields ErrConflict.
func (r *VanRepo) Create(ctx context.Context, v *model.Van) error {
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO vans (name, capacity, departure_at, default_event_id, created_at) VALUES (?, ?, ?, ?, ?)`,
		v.Name, v.Capacity, nullTime(v.DepartureAt), nullID(v.DefaultEventID), v.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return err
	}
	v.ID, err = insertedID(res)
	return err
}

// GetByID returns the van with the given id or ErrNotFound.
func (r *VanRepo) GetByID(ctx context.Context, id uint64) (model.Van, error) {
	v, err := scanVan(r.db.QueryRowContext(ctx, `SELECT `+vanColumns+` FROM vans WHERE id = ?`, id))
	return v, notFound(err)
}

// GetByName returns the van with the given display name or ErrNotFound.
func (r *VanRepo) GetByName(ctx context.Context, name string) (model.Van, error) {
	v, err := scanVan(r.db.QueryRowContext(ctx, `SELECT `+vanColumns+` FROM vans WHERE name = ?`, name))
	return v, notFound(err)
}

// List returns every van with its confirmed and waitlisted counts, oldest first.
func (r *VanRepo) List(ctx context.Context) ([]model.VanSummary, error) {
	const q = `SELECT v.id, v.name, v.capacity, v.departure_at, v.default_event_id, v.created_at,
	                  COALESCE(SUM(CASE WHEN r.status = 'confirmed' THEN 1 ELSE 0 END), 0),
	                  COALESCE(SUM(CASE WHEN r.status = 'waitlisted' THEN 1 ELSE 0 END), 0)
	           FROM vans v
	           LEFT JOIN reservations r ON r.van_id = v.id
	           GROUP BY v.id, v.name, v.capacity, v.departure_at, v.default_event_id, v.created_at
	           ORDER BY v.created_at, v.id`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.VanSummary{}
	for rows.Next() {
		var (
			s         model.VanSummary
			departure sql.NullTime
			eventID   sql.NullInt64
		)
		if err := rows.Scan(&s.ID, &s.Name, &s.Capacity, &departure, &eventID, &s.CreatedAt,
			&s.ConfirmedCount, &s.WaitlistedCount); err != nil {
			return nil, err
		}
		s.DepartureAt = timePtr(departure)
		s.DefaultEventID = idPtr(eventID)
		s.CreatedAt = s.CreatedAt.UTC()
		out = append(out, s)
	}
	return out, rows.Err()
}

// Update writes the mutable van fields.
func (r *VanRepo) Update(ctx context.Context, v model.Van) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE vans SET name = ?, capacity = ?, departure_at = ? WHERE id = ?`,
		v.Name, v.Capacity, nullTime(v.DepartureAt), v.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return err
	}
	// MySQL reports zero affected rows when nothing changed, so confirm existence separately.
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := r.GetByID(ctx, v.ID); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes the van and, through the foreign key, its reservations and associations.
func (r *VanRepo) Delete(ctx context.Context, id uint64) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM reservations WHERE van_id = ?`, id); err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM event_vans WHERE van_id = ?`, id); err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `DELETE FROM vans WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res)
}

// SetDefaultEvent points the van at eventID (nil clears it).
func (r *VanRepo) SetDefaultEvent(ctx context.Context, vanID uint64, eventID *uint64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE vans SET default_event_id = ? WHERE id = ?`, nullID(eventID), vanID)
	return err
}

// ClearDefaultEvent clears the van's default event only if it is eventID.
func (r *VanRepo) ClearDefaultEvent(ctx context.Context, vanID, eventID uint64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE vans SET default_event_id = NULL WHERE id = ? AND default_event_id = ?`, vanID, eventID)
	return err
}
