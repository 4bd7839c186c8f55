package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/van-seat-reservation/internal/model"
	"github.com/iliyamo/van-seat-reservation/internal/repository"
)

// maxOverrideHours caps durationHours at one year.
const maxOverrideHours = 24 * 365

// OverrideAdmin manages duplicate-name overrides.
type OverrideAdmin struct {
	deps Deps
}

// NewOverrideAdmin returns an OverrideAdmin.
func NewOverrideAdmin(d Deps) *OverrideAdmin { return &OverrideAdmin{deps: d} }

// CreateOverrideInput names the rider allowed to hold several active
// reservations.  A nil DurationHours never expires.
type CreateOverrideInput struct {
	FullName      string
	Reason        string
	DurationHours *float64
}

// CreateOverride creates or renews the override for the normalized name.
func (a *OverrideAdmin) CreateOverride(ctx context.Context, in CreateOverrideInput) (model.DuplicateNameOverride, error) {
	name, err := normalizeFullName(in.FullName)
	if err != nil {
		return model.DuplicateNameOverride{}, err
	}
	now := a.deps.now()
	o := model.DuplicateNameOverride{FullName: name, CreatedAt: now}
	if reason := strings.TrimSpace(in.Reason); reason != "" {
		o.Reason = &reason
	}
	if in.DurationHours != nil {
		h := *in.DurationHours
		if h <= 0 || h > maxOverrideHours {
			return model.DuplicateNameOverride{}, validationError("durationHours must be between 0 and %d", maxOverrideHours)
		}
		exp := now.Add(time.Duration(h * float64(time.Hour)))
		o.ExpiresAt = &exp
	}

	if err := a.deps.Store.Repos().Overrides.Upsert(ctx, &o); err != nil {
		return model.DuplicateNameOverride{}, unexpected("save override", err)
	}
	data := map[string]any{"override_id": o.ID, "full_name": o.FullName, "expires_at": nil}
	if o.ExpiresAt != nil {
		data["expires_at"] = o.ExpiresAt.Format(time.RFC3339)
	}
	a.deps.Audit.Record(ctx, model.AuditOverrideAdded, data)
	return o, nil
}

// DeleteOverride removes an override.  Reservations it let through stay
// active.
func (a *OverrideAdmin) DeleteOverride(ctx context.Context, id uint64) error {
	r := a.deps.Store.Repos()
	o, err := r.Overrides.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return notFoundError("override")
	}
	if err != nil {
		return unexpected("load override", err)
	}
	if err := r.Overrides.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return notFoundError("override")
		}
		return unexpected("delete override", err)
	}
	a.deps.Audit.Record(ctx, model.AuditOverrideRemoved, map[string]any{
		"override_id": o.ID,
		"full_name":   o.FullName,
	})
	return nil
}

// ListOverrides returns every override, newest first, expired ones included.
func (a *OverrideAdmin) ListOverrides(ctx context.Context) ([]model.DuplicateNameOverride, error) {
	list, err := a.deps.Store.Repos().Overrides.List(ctx)
	if err != nil {
		return nil, unexpected("list overrides", err)
	}
	return list, nil
}
