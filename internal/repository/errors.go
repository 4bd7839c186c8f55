// Package repository persists the reservation domain in MySQL or SQLite.
// Sentinel errors let the service layer tell storage outcomes apart
// without inspecting driver errors.
package repository

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// ErrNotFound is returned when the addressed row does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write collides with existing state, such
// as attaching a van twice to the same event.
var ErrConflict = errors.New("conflict")

// ErrDuplicateName is returned when inserting an active reservation whose
// name is already locked by another active reservation.
var ErrDuplicateName = errors.New("duplicate active name")

// ErrPositionTaken is returned when a concurrent writer claimed the same
// queue position first.  Callers retry with a fresh position.
var ErrPositionTaken = errors.New("queue position taken")

// ErrEmailExists is returned when an admin account already uses the email.
var ErrEmailExists = errors.New("email already exists")

// ErrBusy is returned when the database refused a transaction because
// another writer held the lock (SQLite busy/locked, MySQL deadlock or lock
// wait timeout).  The transaction was rolled back and may be retried.
var ErrBusy = errors.New("database busy")

// isRetryable reports whether err is a lock contention error that leaves
// the database unchanged.
func isRetryable(err error) bool {
	if err == nil || errors.Is(err, ErrBusy) {
		return false
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		// 1213: deadlock found, 1205: lock wait timeout exceeded
		return myErr.Number == 1213 || myErr.Number == 1205
	}
	var liteErr *msqlite.Error
	if errors.As(err, &liteErr) {
		// extended codes (SQLITE_BUSY_SNAPSHOT etc.) share the primary code in the low byte
		switch liteErr.Code() & 0xff {
		case sqlite3lib.SQLITE_BUSY, sqlite3lib.SQLITE_LOCKED:
			return true
		}
	}
	return false
}

// busyError tags lock contention errors with ErrBusy, keeping the driver
// error in the chain.  Other errors pass through untouched.
func busyError(err error) error {
	if !isRetryable(err) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrBusy, err)
}

// isUniqueViolation reports whether err is a unique/primary key violation
// raised by either supported driver.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	var liteErr *msqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		return code == sqlite3lib.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}

// reservationWriteError maps unique violations on the reservations table to
// the sentinel matching the violated index.  Both drivers mention the index
// or column name in the message.
func reservationWriteError(err error) error {
	if !isUniqueViolation(err) {
		return err
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "name_lock"):
		return ErrDuplicateName
	case strings.Contains(msg, "slot"):
		return ErrPositionTaken
	default:
		return ErrConflict
	}
}
