package service

import (
	"context"
	"errors"
	"time"

	"github.com/iliyamo/van-seat-reservation/internal/model"
	"github.com/iliyamo/van-seat-reservation/internal/repository"
)

// DuplicateDecision is the outcome of the duplicate-name check.
type DuplicateDecision struct {
	// Allowed is false when the join must be refused.
	Allowed bool
	// LockName is true when the new reservation should claim the name lock,
	// i.e. when it is the only active reservation under that name.
	LockName bool
	// Existing is the active reservation already holding the name, if any.
	Existing *model.Reservation
	// Override is the active override that let a duplicate through, if any.
	Override *model.DuplicateNameOverride
}

// DuplicatePolicy decides whether a join by full name may proceed.
type DuplicatePolicy struct {
	now func() time.Time
}

// NewDuplicatePolicy returns a policy evaluating override expiry against now.
func NewDuplicatePolicy(now func() time.Time) *DuplicatePolicy {
	if now == nil {
		now = time.Now
	}
	return &DuplicatePolicy{now: now}
}

// Evaluate checks fullName (already normalized) against active
// reservations and overrides visible through r.
func (p *DuplicatePolicy) Evaluate(ctx context.Context, r repository.Repositories, fullName string) (DuplicateDecision, error) {
	existing, err := r.Reservations.FindActiveByName(ctx, fullName)
	if errors.Is(err, repository.ErrNotFound) {
		return DuplicateDecision{Allowed: true, LockName: true}, nil
	}
	if err != nil {
		return DuplicateDecision{}, unexpected("lookup reservation by name", err)
	}

	decision := DuplicateDecision{Existing: &existing}
	o, err := r.Overrides.GetByName(ctx, fullName)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return decision, nil
	case err != nil:
		return DuplicateDecision{}, unexpected("lookup override", err)
	}
	if o.ActiveAt(p.now().UTC()) {
		decision.Allowed = true
		decision.Override = &o
	}
	return decision, nil
}

// duplicateNameError builds the duplicate_name error carrying the existing
// reservation for the caller to highlight.
func duplicateNameError(existing *model.Reservation) *Error {
	e := newError(CodeDuplicateName, "an active reservation already exists for this name")
	if existing != nil {
		e.Details = map[string]any{"existingReservation": *existing}
	}
	return e
}
