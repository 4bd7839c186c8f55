package model

import "time"

// RoleAdmin is the only role allowed on the management API.
const RoleAdmin = "ADMIN"

// AdminUser is an account allowed to manage vans, events and overrides.
//
// Fields:
//
//	ID           – primary key identifier.
//	Email        – unique, lower-cased login.
//	PasswordHash – bcrypt hash.
//	Role         – always RoleAdmin today.
//	IsActive     – disabled accounts cannot log in.
type AdminUser struct {
	ID           uint64    // admin_users.id
	Email        string    // admin_users.email
	PasswordHash string    // admin_users.password_hash
	Role         string    // admin_users.role
	IsActive     bool      // admin_users.is_active
	CreatedAt    time.Time // admin_users.created_at
}
