package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/iliyamo/van-seat-reservation/internal/model"
)

// ReservationRepository persists reservations and answers the queue
// composite queries.
type ReservationRepository interface {
	Create(ctx context.Context, res *model.Reservation, lockName bool) error
	GetByID(ctx context.Context, id uint64) (model.Reservation, error)
	FindActiveByName(ctx context.Context, fullName string) (model.Reservation, error)
	CountConfirmed(ctx context.Context, vanID uint64) (int, error)
	CountActive(ctx context.Context, vanID uint64) (int, error)
	MaxWaitlistPosition(ctx context.Context, vanID uint64) (int, error)
	ActivePositions(ctx context.Context, vanID uint64, status model.ReservationStatus) ([]int, error)
	ListByVanAndStatus(ctx context.Context, vanID uint64, status model.ReservationStatus) ([]model.Reservation, error)
	List(ctx context.Context, f ReservationFilter) ([]model.Reservation, error)
	Cancel(ctx context.Context, id uint64, releasedAt time.Time) error
	Delete(ctx context.Context, id uint64) error
	Move(ctx context.Context, id, vanID uint64, status model.ReservationStatus, position int, eventID *uint64) error
	SetConfirmedCharges(ctx context.Context, vanID uint64, amount float64, eventID *uint64) error
	TagEvent(ctx context.Context, vanID uint64, eventID uint64) error
	ClearEventLinkage(ctx context.Context, vanID uint64) error
	SetPaid(ctx context.Context, id uint64, hasPaid bool) error
	Stats(ctx context.Context, since time.Time) (ReservationStats, error)
}

// ReservationFilter narrows the admin reservation listing.  Zero values
// mean no filter.
type ReservationFilter struct {
	VanID  uint64
	Status model.ReservationStatus
}

// ReservationStats feeds the daily summary.
type ReservationStats struct {
	Confirmed    int
	Waitlisted   int
	Cancelled    int
	CreatedSince int
}

// ReservationRepo is the SQL implementation of ReservationRepository.
//
// Two nullable columns carry the store-level guards: slot mirrors position
// while the reservation is active (unique per van and status) and
// name_lock holds the name of an active reservation created without an
// override (unique across the table).  Both are cleared on cancellation.
type ReservationRepo struct {
	db DBTX
}

// NewReservationRepo returns a ReservationRepo bound to db.
func NewReservationRepo(db DBTX) *ReservationRepo { return &ReservationRepo{db: db} }

const reservationColumns = `id, van_id, event_id, full_name, status, position, joined_at, released_at, charged_amount, has_paid`

func scanReservation(s rowScanner) (model.Reservation, error) {
	var (
		res      model.Reservation
		eventID  sql.NullInt64
		released sql.NullTime
	)
	if err := s.Scan(&res.ID, &res.VanID, &eventID, &res.FullName, &res.Status, &res.Position,
		&res.JoinedAt, &released, &res.ChargedAmount, &res.HasPaid); err != nil {
		return model.Reservation{}, err
	}
	res.EventID = idPtr(eventID)
	res.ReleasedAt = timePtr(released)
	res.JoinedAt = res.JoinedAt.UTC()
	return res, nil
}

func (r *ReservationRepo) query(ctx context.Context, q string, args ...any) ([]model.Reservation, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Reservation{}
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

// Create inserts an active reservation.  When lockName is true the row
// claims the name lock, so a concurrent insert with the same name fails
// with ErrDuplicateName.  A position collision yields ErrPositionTaken.
func (r *ReservationRepo) Create(ctx context.Context, res *model.Reservation, lockName bool) error {
	if res.JoinedAt.IsZero() {
		res.JoinedAt = time.Now().UTC()
	}
	var nameLock sql.NullString
	if lockName {
		nameLock = sql.NullString{String: res.FullName, Valid: true}
	}
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO reservations (van_id, event_id, full_name, status, position, slot, name_lock, joined_at, charged_amount, has_paid)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.VanID, nullID(res.EventID), res.FullName, res.Status, res.Position, res.Position, nameLock,
		res.JoinedAt, res.ChargedAmount, res.HasPaid)
	if err != nil {
		return reservationWriteError(err)
	}
	res.ID, err = insertedID(result)
	return err
}

// GetByID returns the reservation or ErrNotFound.
func (r *ReservationRepo) GetByID(ctx context.Context, id uint64) (model.Reservation, error) {
	res, err := scanReservation(r.db.QueryRowContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id))
	return res, notFound(err)
}

// FindActiveByName returns the earliest active reservation held under
// fullName, or ErrNotFound.
func (r *ReservationRepo) FindActiveByName(ctx context.Context, fullName string) (model.Reservation, error) {
	res, err := scanReservation(r.db.QueryRowContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations
		 WHERE full_name = ? AND status IN ('confirmed', 'waitlisted')
		 ORDER BY joined_at, id LIMIT 1`, fullName))
	return res, notFound(err)
}

func (r *ReservationRepo) count(ctx context.Context, q string, args ...any) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, q, args...).Scan(&n)
	return n, err
}

// CountConfirmed returns the number of confirmed reservations on the van.
func (r *ReservationRepo) CountConfirmed(ctx context.Context, vanID uint64) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM reservations WHERE van_id = ? AND status = 'confirmed'`, vanID)
}

// CountActive returns the number of confirmed or waitlisted reservations on the van.
func (r *ReservationRepo) CountActive(ctx context.Context, vanID uint64) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM reservations WHERE van_id = ? AND status IN ('confirmed', 'waitlisted')`, vanID)
}

// MaxWaitlistPosition returns the highest waitlisted position on the van, 0 when empty.
func (r *ReservationRepo) MaxWaitlistPosition(ctx context.Context, vanID uint64) (int, error) {
	return r.count(ctx, `SELECT COALESCE(MAX(position), 0) FROM reservations WHERE van_id = ? AND status = 'waitlisted'`, vanID)
}

// ActivePositions returns the occupied positions of the (van, status) partition in ascending order.
func (r *ReservationRepo) ActivePositions(ctx context.Context, vanID uint64, status model.ReservationStatus) ([]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT position FROM reservations WHERE van_id = ? AND status = ? ORDER BY position`, vanID, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []int
	for rows.Next() {
		var p int
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListByVanAndStatus returns the partition ordered by position, then arrival.
func (r *ReservationRepo) ListByVanAndStatus(ctx context.Context, vanID uint64, status model.ReservationStatus) ([]model.Reservation, error) {
	return r.query(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE van_id = ? AND status = ? ORDER BY position, joined_at, id`,
		vanID, status)
}

// List returns reservations matching f, confirmed first, then by position.
func (r *ReservationRepo) List(ctx context.Context, f ReservationFilter) ([]model.Reservation, error) {
	var (
		where []string
		args  []any
	)
	if f.VanID != 0 {
		where = append(where, "van_id = ?")
		args = append(args, f.VanID)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	q := `SELECT ` + reservationColumns + ` FROM reservations`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += ` ORDER BY van_id,
	         CASE status WHEN 'confirmed' THEN 0 WHEN 'waitlisted' THEN 1 ELSE 2 END,
	         position, joined_at, id`
	return r.query(ctx, q, args...)
}

// Cancel marks an active reservation cancelled, releasing its slot and name
// lock and zeroing its charge.  ErrNotFound when it is not active.
func (r *ReservationRepo) Cancel(ctx context.Context, id uint64, releasedAt time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE reservations
		 SET status = 'cancelled', slot = NULL, name_lock = NULL, released_at = ?, charged_amount = 0, has_paid = 0
		 WHERE id = ? AND status IN ('confirmed', 'waitlisted')`,
		releasedAt.UTC(), id)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res)
}

// Delete removes the reservation row.
func (r *ReservationRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM reservations WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res)
}

// Move places an active reservation on another van, status and position.
// The name lock travels with the row.
func (r *ReservationRepo) Move(ctx context.Context, id, vanID uint64, status model.ReservationStatus, position int, eventID *uint64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE reservations SET van_id = ?, status = ?, position = ?, slot = ?, event_id = ?
		 WHERE id = ? AND status IN ('confirmed', 'waitlisted')`,
		vanID, status, position, position, nullID(eventID), id)
	if err != nil {
		return reservationWriteError(err)
	}
	return affectedOrNotFound(res)
}

// SetConfirmedCharges sets the charge of every confirmed reservation on the
// van.  The paid flag is reset only on rows whose charge changes.  A non-nil
// eventID also re-tags them.
func (r *ReservationRepo) SetConfirmedCharges(ctx context.Context, vanID uint64, amount float64, eventID *uint64) error {
	// has_paid is assigned first: MySQL evaluates SET left to right and would
	// otherwise compare against the new charge
	const set = `has_paid = CASE WHEN charged_amount = ? THEN has_paid ELSE 0 END, charged_amount = ?`
	if eventID != nil {
		_, err := r.db.ExecContext(ctx,
			`UPDATE reservations SET `+set+`, event_id = ? WHERE van_id = ? AND status = 'confirmed'`,
			amount, amount, *eventID, vanID)
		return err
	}
	_, err := r.db.ExecContext(ctx,
		`UPDATE reservations SET `+set+` WHERE van_id = ? AND status = 'confirmed'`,
		amount, amount, vanID)
	return err
}

// TagEvent links every reservation of the van to eventID.
func (r *ReservationRepo) TagEvent(ctx context.Context, vanID uint64, eventID uint64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE reservations SET event_id = ? WHERE van_id = ?`, eventID, vanID)
	return err
}

// ClearEventLinkage unlinks the van's reservations from their event and clears
// their charges and paid flags.
func (r *ReservationRepo) ClearEventLinkage(ctx context.Context, vanID uint64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE reservations SET event_id = NULL, charged_amount = 0, has_paid = 0 WHERE van_id = ?`, vanID)
	return err
}

// SetPaid updates the paid flag or returns ErrNotFound.
func (r *ReservationRepo) SetPaid(ctx context.Context, id uint64, hasPaid bool) error {
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, `UPDATE reservations SET has_paid = ? WHERE id = ?`, hasPaid, id)
	return err
}

// Stats counts reservations per status and those created at or after since.
func (r *ReservationRepo) Stats(ctx context.Context, since time.Time) (ReservationStats, error) {
	var s ReservationStats
	err := r.db.QueryRowContext(ctx,
		`SELECT
		   COALESCE(SUM(CASE WHEN status = 'confirmed' THEN 1 ELSE 0 END), 0),
		   COALESCE(SUM(CASE WHEN status = 'waitlisted' THEN 1 ELSE 0 END), 0),
		   COALESCE(SUM(CASE WHEN status = 'cancelled' THEN 1 ELSE 0 END), 0),
		   COALESCE(SUM(CASE WHEN joined_at >= ? THEN 1 ELSE 0 END), 0)
		 FROM reservations`, since.UTC()).Scan(&s.Confirmed, &s.Waitlisted, &s.Cancelled, &s.CreatedSince)
	return s, err
}
