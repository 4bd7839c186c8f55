package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/van-seat-reservation/internal/model"
	"github.com/iliyamo/van-seat-reservation/internal/repository"
)

// VanAdmin is the admin-facing van catalogue.
type VanAdmin struct {
	deps Deps
}

// NewVanAdmin returns a VanAdmin.
func NewVanAdmin(d Deps) *VanAdmin { return &VanAdmin{deps: d} }

// CreateVanInput describes a new van.  Capacity 0 means the default (15).
type CreateVanInput struct {
	Name        string
	Capacity    int
	DepartureAt *time.Time
	EventID     *uint64
}

// UpdateVanInput holds optional van changes.  ClearDeparture removes the
// departure instant; it wins over DepartureAt.
type UpdateVanInput struct {
	Name           *string
	Capacity       *int
	DepartureAt    *time.Time
	ClearDeparture bool
}

const defaultVanCapacity = 15

func validCapacity(c int) error {
	if c < model.MinVanCapacity || c > model.MaxVanCapacity {
		return validationError("capacity must be between %d and %d", model.MinVanCapacity, model.MaxVanCapacity)
	}
	return nil
}

// CreateVan stores a van and, when EventID is set, attaches it to that
// event with a zero cost.
func (a *VanAdmin) CreateVan(ctx context.Context, in CreateVanInput) (model.Van, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return model.Van{}, validationError("van name is required")
	}
	capacity := in.Capacity
	if capacity == 0 {
		capacity = defaultVanCapacity
	}
	if err := validCapacity(capacity); err != nil {
		return model.Van{}, err
	}

	van := model.Van{Name: name, Capacity: capacity, DepartureAt: in.DepartureAt, CreatedAt: a.deps.now()}
	if van.DepartureAt != nil {
		t := van.DepartureAt.UTC()
		van.DepartureAt = &t
	}
	err := a.deps.Store.WithTx(ctx, func(r repository.Repositories) error {
		if err := r.Vans.Create(ctx, &van); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return conflictError("a van named %q already exists", name)
			}
			return err
		}
		if in.EventID == nil {
			return nil
		}
		if _, err := attachVan(ctx, r, *in.EventID, van.ID, 0, van.CreatedAt); err != nil {
			return err
		}
		van.DefaultEventID = in.EventID
		return nil
	})
	if err != nil {
		return model.Van{}, unexpected("create van", err)
	}

	a.deps.Audit.Record(ctx, model.AuditVanCreated, map[string]any{
		"van_id":   van.ID,
		"name":     van.Name,
		"capacity": van.Capacity,
	})
	if in.EventID != nil {
		a.deps.Audit.Record(ctx, model.AuditVanAttached, map[string]any{
			"event_id": *in.EventID,
			"van_id":   van.ID,
			"van_cost": 0,
		})
	}
	return van, nil
}

// UpdateVan renames, resizes or reschedules a van.
func (a *VanAdmin) UpdateVan(ctx context.Context, id uint64, in UpdateVanInput) (model.Van, error) {
	var (
		van         model.Van
		oldCapacity int
		changed     bool
	)
	err := a.deps.Store.WithTx(ctx, func(r repository.Repositories) error {
		var err error
		van, err = loadVan(ctx, r, id)
		if err != nil {
			return err
		}
		oldCapacity = van.Capacity

		if in.Name != nil {
			name := strings.TrimSpace(*in.Name)
			if name == "" {
				return validationError("van name is required")
			}
			if name != van.Name {
				van.Name, changed = name, true
			}
		}
		if in.Capacity != nil {
			if err := validCapacity(*in.Capacity); err != nil {
				return err
			}
			if *in.Capacity != van.Capacity {
				van.Capacity, changed = *in.Capacity, true
			}
		}
		switch {
		case in.ClearDeparture:
			if van.DepartureAt != nil {
				van.DepartureAt, changed = nil, true
			}
		case in.DepartureAt != nil:
			t := in.DepartureAt.UTC()
			if van.DepartureAt == nil || !van.DepartureAt.Equal(t) {
				van.DepartureAt, changed = &t, true
			}
		}
		if !changed {
			return validationError("no changes")
		}

		if err := r.Vans.Update(ctx, van); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				return conflictError("a van named %q already exists", van.Name)
			}
			return err
		}
		if van.Capacity != oldCapacity {
			return syncEventVanStatus(ctx, r, van)
		}
		return nil
	})
	if err != nil {
		return model.Van{}, unexpected("update van", err)
	}
	if van.Capacity != oldCapacity {
		a.deps.Audit.Record(ctx, model.AuditCapacityUpdated, map[string]any{
			"van_id":       van.ID,
			"old_capacity": oldCapacity,
			"new_capacity": van.Capacity,
		})
	}
	return van, nil
}

// DeleteVan removes a van that no longer holds active reservations.
// Cancelled history goes with it.
func (a *VanAdmin) DeleteVan(ctx context.Context, id uint64) error {
	var van model.Van
	err := a.deps.Store.WithTx(ctx, func(r repository.Repositories) error {
		var err error
		van, err = loadVan(ctx, r, id)
		if err != nil {
			return err
		}
		active, err := r.Reservations.CountActive(ctx, id)
		if err != nil {
			return err
		}
		if active > 0 {
			return &Error{
				Code:    CodeHasActivePassengers,
				Message: "the van still has confirmed or waitlisted passengers",
				Details: map[string]any{"activeReservations": active},
			}
		}
		if err := r.Vans.Delete(ctx, id); err != nil {
			return err
		}
		if van.DefaultEventID != nil {
			_, err = r.Events.RecalculateTotal(ctx, *van.DefaultEventID)
		}
		return err
	})
	if err != nil {
		return unexpected("delete van", err)
	}
	a.deps.Audit.Record(ctx, model.AuditVanRemoved, map[string]any{"van_id": van.ID, "name": van.Name})
	return nil
}

// ListVans returns every van with its occupancy.
func (a *VanAdmin) ListVans(ctx context.Context) ([]model.VanSummary, error) {
	vans, err := a.deps.Store.Repos().Vans.List(ctx)
	if err != nil {
		return nil, unexpected("list vans", err)
	}
	return vans, nil
}
