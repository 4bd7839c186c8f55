package repository

import (
	"context"
	"strings"
	"time"

	"github.com/iliyamo/van-seat-reservation/internal/model"
)

// AdminUserRepo persists admin accounts.
type AdminUserRepo struct{ db DBTX }

// NewAdminUserRepo returns an AdminUserRepo bound to db.
func NewAdminUserRepo(db DBTX) *AdminUserRepo { return &AdminUserRepo{db: db} }

// Create inserts an account with an already hashed password and returns its ID.
func (r *AdminUserRepo) Create(ctx context.Context, email, passwordHash, role string) (uint64, error) {
	// Emails are stored lower-cased and trimmed so lookups match however
	// the address was typed at login.
	email = strings.ToLower(strings.TrimSpace(email))
	// New accounts start active; created_at is recorded in UTC.
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO admin_users (email, password_hash, role, is_active, created_at) VALUES (?, ?, ?, 1, ?)",
		email, passwordHash, role, time.Now().UTC())
	if err != nil {
		// The unique index on email turns a second account with the same
		// address into ErrEmailExists for either driver.
		if isUniqueViolation(err) {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	// Return the auto-increment id so the caller can issue tokens for it.
	return insertedID(res)
}

// GetByEmail fetches an account by normalized email.
func (r *AdminUserRepo) GetByEmail(ctx context.Context, email string) (model.AdminUser, error) {
	// Normalize the same way Create does.
	email = strings.ToLower(strings.TrimSpace(email))
	var u model.AdminUser
	// The hash is loaded too; the auth handler verifies the password
	// against it and never sends it back.
	err := r.db.QueryRowContext(ctx,
		"SELECT id, email, password_hash, role, is_active, created_at FROM admin_users WHERE email = ? LIMIT 1",
		email).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.IsActive, &u.CreatedAt)
	// sql.ErrNoRows becomes ErrNotFound; other errors pass through.
	return u, notFound(err)
}

// GetByID fetches an account by id.
func (r *AdminUserRepo) GetByID(ctx context.Context, id uint64) (model.AdminUser, error) {
	var u model.AdminUser
	err := r.db.QueryRowContext(ctx,
		"SELECT id, email, password_hash, role, is_active, created_at FROM admin_users WHERE id = ? LIMIT 1",
		id).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.IsActive, &u.CreatedAt)
	return u, notFound(err)
}
