package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/van-seat-reservation/internal/model"
)

// OverrideRepository persists duplicate-name overrides.
type OverrideRepository interface {
	Upsert(ctx context.Context, o *model.DuplicateNameOverride) error
	GetByName(ctx context.Context, fullName string) (model.DuplicateNameOverride, error)
	GetByID(ctx context.Context, id uint64) (model.DuplicateNameOverride, error)
	Delete(ctx context.Context, id uint64) error
	List(ctx context.Context) ([]model.DuplicateNameOverride, error)
}

// OverrideRepo is the SQL implementation of OverrideRepository.
type OverrideRepo struct {
	db DBTX
}

// NewOverrideRepo returns an OverrideRepo bound to db.
func NewOverrideRepo(db DBTX) *OverrideRepo { return &OverrideRepo{db: db} }

const overrideColumns = `id, full_name, reason, expires_at, created_at`

func scanOverride(s rowScanner) (model.DuplicateNameOverride, error) {
	var (
		o       model.DuplicateNameOverride
		reason  sql.NullString
		expires sql.NullTime
	)
	if err := s.Scan(&o.ID, &o.FullName, &reason, &expires, &o.CreatedAt); err != nil {
		return model.DuplicateNameOverride{}, err
	}
	o.Reason = stringPtr(reason)
	o.ExpiresAt = timePtr(expires)
	o.CreatedAt = o.CreatedAt.UTC()
	return o, nil
}

// Upsert creates the override for o.FullName or replaces the reason and
// expiry of the existing one.  o is updated with the stored row.
func (r *OverrideRepo) Upsert(ctx context.Context, o *model.DuplicateNameOverride) error {
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	existing, err := r.GetByName(ctx, o.FullName)
	switch {
	case err == nil:
		if _, err := r.db.ExecContext(ctx,
			`UPDATE duplicate_name_overrides SET reason = ?, expires_at = ?, created_at = ? WHERE id = ?`,
			nullString(o.Reason), nullTime(o.ExpiresAt), o.CreatedAt, existing.ID); err != nil {
			return err
		}
		o.ID = existing.ID
		return nil
	case errors.Is(err, ErrNotFound):
		res, err := r.db.ExecContext(ctx,
			`INSERT INTO duplicate_name_overrides (full_name, reason, expires_at, created_at) VALUES (?, ?, ?, ?)`,
			o.FullName, nullString(o.Reason), nullTime(o.ExpiresAt), o.CreatedAt)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrConflict
			}
			return err
		}
		o.ID, err = insertedID(res)
		return err
	default:
		return err
	}
}

// GetByName returns the override for fullName or ErrNotFound.
func (r *OverrideRepo) GetByName(ctx context.Context, fullName string) (model.DuplicateNameOverride, error) {
	o, err := scanOverride(r.db.QueryRowContext(ctx,
		`SELECT `+overrideColumns+` FROM duplicate_name_overrides WHERE full_name = ?`, fullName))
	return o, notFound(err)
}

// GetByID returns the override or ErrNotFound.
func (r *OverrideRepo) GetByID(ctx context.Context, id uint64) (model.DuplicateNameOverride, error) {
	o, err := scanOverride(r.db.QueryRowContext(ctx,
		`SELECT `+overrideColumns+` FROM duplicate_name_overrides WHERE id = ?`, id))
	return o, notFound(err)
}

// Delete removes the override or returns ErrNotFound.
func (r *OverrideRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM duplicate_name_overrides WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res)
}

// List returns every override, newest first.
func (r *OverrideRepo) List(ctx context.Context) ([]model.DuplicateNameOverride, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+overrideColumns+` FROM duplicate_name_overrides ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.DuplicateNameOverride{}
	for rows.Next() {
		o, err := scanOverride(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
