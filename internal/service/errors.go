package service

import (
	"errors"
	"fmt"

	"github.com/iliyamo/van-seat-reservation/internal/repository"
)

// Code is a stable machine-readable error identifier.
type Code string

const (
	CodeValidation          Code = "validation"
	CodeNotFound            Code = "not_found"
	CodeConflict            Code = "conflict"
	CodeDuplicateName       Code = "duplicate_name"
	CodeVanClosed           Code = "van_closed"
	CodeHasActivePassengers Code = "has_active_passengers"
	CodeInvalidTransition   Code = "invalid_transition"
	CodeFinalizedLocked     Code = "finalized_locked"
	CodeUnexpected          Code = "unexpected"
)

// Error is the structured error returned by every service operation.
// Details carries optional payload for the caller, such as the existing
// reservation behind a duplicate_name error.
type Error struct {
	Code    Code
	Message string
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by code, so errors.Is(err, &Error{Code: CodeNotFound}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

func newError(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func validationError(format string, args ...any) *Error {
	return newError(CodeValidation, format, args...)
}

func notFoundError(what string) *Error {
	return newError(CodeNotFound, "%s not found", what)
}

func conflictError(format string, args ...any) *Error {
	return newError(CodeConflict, format, args...)
}

// unexpected wraps a storage failure, keeping the cause for diagnostics.
// Errors that are already structured pass through untouched.
func unexpected(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	if errors.Is(err, repository.ErrBusy) {
		return &Error{Code: CodeConflict, Message: op + " hit a concurrent update, please retry", Err: err}
	}
	return &Error{Code: CodeUnexpected, Message: op + " failed", Err: err}
}

// CodeOf returns the code of err, or CodeUnexpected for unstructured errors.
func CodeOf(err error) Code {
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return CodeUnexpected
}
