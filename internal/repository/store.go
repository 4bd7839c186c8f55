package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// DBTX is the subset of *sql.DB and *sql.Tx used by the repositories, so
// every repository can run inside or outside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Repositories bundles the domain repositories bound to one connection or
// transaction.
type Repositories struct {
	Vans         VanRepository
	Events       EventRepository
	EventVans    EventVanRepository
	Reservations ReservationRepository
	Overrides    OverrideRepository
	Audit        AuditRepository
}

// NewRepositories binds every repository to db.
func NewRepositories(db DBTX) Repositories {
	return Repositories{
		Vans:         NewVanRepo(db),
		Events:       NewEventRepo(db),
		EventVans:    NewEventVanRepo(db),
		Reservations: NewReservationRepo(db),
		Overrides:    NewOverrideRepo(db),
		Audit:        NewAuditRepo(db),
	}
}

// Store owns the database handle and hands out repositories.
type Store struct {
	db *sql.DB
}

// NewStore wraps db.
func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// DB exposes the underlying handle for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// Repos returns repositories running directly on the pool.
func (s *Store) Repos() Repositories { return NewRepositories(s.db) }

// WithTx runs fn inside a transaction.  The transaction is committed when
// fn returns nil and rolled back otherwise.  Lock contention at any step
// comes back wrapped in ErrBusy.
func (s *Store) WithTx(ctx context.Context, fn func(Repositories) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return busyError(err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(NewRepositories(tx)); err != nil {
		return busyError(err)
	}
	if err := tx.Commit(); err != nil {
		return busyError(err)
	}
	committed = true
	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func affectedOrNotFound(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

func nullID(id *uint64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*id), Valid: true}
}

func idPtr(n sql.NullInt64) *uint64 {
	if !n.Valid {
		return nil
	}
	id := uint64(n.Int64)
	return &id
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	f := n.Float64
	return &f
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(n sql.NullString) *string {
	if !n.Valid {
		return nil
	}
	s := n.String
	return &s
}

func insertedID(res sql.Result) (uint64, error) {
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}
