package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/van-seat-reservation/internal/model"
	"github.com/iliyamo/van-seat-reservation/internal/repository"
	"github.com/iliyamo/van-seat-reservation/internal/utils"
)

// Lifecycle manages events and the vans attached to them: event status
// transitions, attach/detach, cost updates, van status changes and the
// waitlist migration that runs when a van closes.
type Lifecycle struct {
	deps Deps
}

// NewLifecycle returns a Lifecycle.
func NewLifecycle(d Deps) *Lifecycle { return &Lifecycle{deps: d} }

// CreateEventInput carries the admin form; Date is dd/mm/yyyy.
type CreateEventInput struct {
	Name   string
	Date   string
	Status model.EventStatus
}

// UpdateEventInput holds optional event changes; nil fields are left alone.
type UpdateEventInput struct {
	Name      *string
	Date      *string
	Status    *model.EventStatus
	TotalCost *float64
}

// UpdateEventVanInput holds optional association changes.
type UpdateEventVanInput struct {
	Status *model.EventVanStatus
	Cost   *float64
}

// CreateEvent validates and stores a new event.
func (l *Lifecycle) CreateEvent(ctx context.Context, in CreateEventInput) (model.Event, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return model.Event{}, validationError("event name is required")
	}
	date, err := utils.ParseDate(in.Date)
	if err != nil {
		return model.Event{}, validationError("%v", err)
	}
	status := in.Status
	if status == "" {
		status = model.EventPlanned
	}
	if !status.Valid() {
		return model.Event{}, validationError("invalid event status %q", status)
	}

	ev := model.Event{Name: name, EventDate: date, Status: status, CreatedAt: l.deps.now()}
	if err := l.deps.Store.Repos().Events.Create(ctx, &ev); err != nil {
		return model.Event{}, unexpected("create event", err)
	}
	l.deps.Audit.Record(ctx, model.AuditEventCreated, map[string]any{
		"event_id": ev.ID,
		"name":     ev.Name,
		"date":     utils.FormatDate(ev.EventDate),
		"status":   ev.Status,
	})
	return ev, nil
}

// UpdateEvent applies in to the event.  Finalized events are frozen and
// status may only move forward.
func (l *Lifecycle) UpdateEvent(ctx context.Context, id uint64, in UpdateEventInput) (model.Event, error) {
	var (
		ev      model.Event
		changed []string
	)
	err := l.deps.Store.WithTx(ctx, func(r repository.Repositories) error {
		var err error
		ev, err = loadEvent(ctx, r, id)
		if err != nil {
			return err
		}
		// restating the current status is a no-op in every state
		if in.Name == nil && in.Date == nil && in.TotalCost == nil && in.Status != nil && *in.Status == ev.Status {
			return nil
		}
		if ev.Status == model.EventFinalized {
			return newError(CodeFinalizedLocked, "finalized events cannot be changed")
		}

		if in.Name != nil {
			name := strings.TrimSpace(*in.Name)
			if name == "" {
				return validationError("event name is required")
			}
			if name != ev.Name {
				ev.Name = name
				changed = append(changed, "name")
			}
		}
		if in.Date != nil {
			date, err := utils.ParseDate(*in.Date)
			if err != nil {
				return validationError("%v", err)
			}
			if !date.Equal(ev.EventDate) {
				ev.EventDate = date
				changed = append(changed, "date")
			}
		}
		if in.Status != nil {
			next := *in.Status
			if !next.Valid() {
				return validationError("invalid event status %q", next)
			}
			if !ev.Status.CanTransitionTo(next) {
				return newError(CodeInvalidTransition, "cannot move event from %s to %s", ev.Status, next)
			}
			if next != ev.Status {
				ev.Status = next
				changed = append(changed, "status")
			}
		}
		if in.TotalCost != nil {
			if *in.TotalCost < 0 {
				return validationError("total cost must be zero or positive")
			}
			cost := roundCents(*in.TotalCost)
			if cost != ev.TotalCost {
				ev.TotalCost = cost
				changed = append(changed, "total_cost")
			}
		}
		if len(changed) == 0 {
			return validationError("no changes")
		}
		return r.Events.Update(ctx, ev)
	})
	if err != nil {
		return model.Event{}, unexpected("update event", err)
	}
	if len(changed) > 0 {
		l.deps.Audit.Record(ctx, model.AuditEventUpdated, map[string]any{
			"event_id": ev.ID,
			"status":   ev.Status,
			"fields":   changed,
		})
	}
	return ev, nil
}

// ListEvents returns every event by date with its van associations.
func (l *Lifecycle) ListEvents(ctx context.Context) ([]model.EventWithVans, error) {
	r := l.deps.Store.Repos()
	events, err := r.Events.List(ctx)
	if err != nil {
		return nil, unexpected("list events", err)
	}
	out := make([]model.EventWithVans, 0, len(events))
	for _, ev := range events {
		vans, err := r.EventVans.ListByEvent(ctx, ev.ID)
		if err != nil {
			return nil, unexpected("list event vans", err)
		}
		out = append(out, model.EventWithVans{Event: ev, Vans: vans})
	}
	return out, nil
}

// AttachVan links the van to the event, tags the van's reservations with
// the event and recomputes the event total.
func (l *Lifecycle) AttachVan(ctx context.Context, eventID, vanID uint64, cost float64) (model.EventVan, error) {
	if cost < 0 {
		return model.EventVan{}, validationError("van cost must be zero or positive")
	}
	var assoc model.EventVan
	err := l.deps.Store.WithTx(ctx, func(r repository.Repositories) error {
		var err error
		assoc, err = attachVan(ctx, r, eventID, vanID, cost, l.deps.now())
		return err
	})
	if err != nil {
		return model.EventVan{}, unexpected("attach van", err)
	}
	l.deps.Audit.Record(ctx, model.AuditVanAttached, map[string]any{
		"event_id": eventID,
		"van_id":   vanID,
		"van_cost": assoc.VanCost,
	})
	return assoc, nil
}

// attachVan links vanID to eventID inside an open transaction.
func attachVan(ctx context.Context, r repository.Repositories, eventID, vanID uint64, cost float64, now time.Time) (model.EventVan, error) {
	ev, err := loadEvent(ctx, r, eventID)
	if err != nil {
		return model.EventVan{}, err
	}
	if ev.Status == model.EventFinalized {
		return model.EventVan{}, newError(CodeFinalizedLocked, "vans cannot be attached to a finalized event")
	}
	van, err := loadVan(ctx, r, vanID)
	if err != nil {
		return model.EventVan{}, err
	}
	if van.DefaultEventID != nil && *van.DefaultEventID != eventID {
		if _, err := r.EventVans.Get(ctx, *van.DefaultEventID, van.ID); err == nil {
			return model.EventVan{}, conflictError("van is attached to another event")
		} else if !errors.Is(err, repository.ErrNotFound) {
			return model.EventVan{}, err
		}
	}

	assoc := model.EventVan{EventID: eventID, VanID: vanID, Status: model.EventVanOpen, VanCost: roundCents(cost), CreatedAt: now}
	if err := r.EventVans.Create(ctx, &assoc); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return model.EventVan{}, conflictError("van is already attached to this event")
		}
		return model.EventVan{}, err
	}
	if err := r.Vans.SetDefaultEvent(ctx, vanID, &eventID); err != nil {
		return model.EventVan{}, err
	}
	if err := r.Reservations.TagEvent(ctx, vanID, eventID); err != nil {
		return model.EventVan{}, err
	}
	van.DefaultEventID = &eventID
	if err := syncEventVanStatus(ctx, r, van); err != nil {
		return model.EventVan{}, err
	}
	if _, err := r.Events.RecalculateTotal(ctx, eventID); err != nil {
		return model.EventVan{}, err
	}
	return r.EventVans.Get(ctx, eventID, vanID)
}

// DetachVan removes the association, unlinks the van and its reservations
// from the event, clears their charges and recomputes the event total.
func (l *Lifecycle) DetachVan(ctx context.Context, eventID, vanID uint64) error {
	err := l.deps.Store.WithTx(ctx, func(r repository.Repositories) error {
		ev, err := loadEvent(ctx, r, eventID)
		if err != nil {
			return err
		}
		if ev.Status == model.EventFinalized {
			return newError(CodeFinalizedLocked, "vans cannot be detached from a finalized event")
		}
		if err := r.EventVans.Delete(ctx, eventID, vanID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return notFoundError("event van")
			}
			return err
		}
		if err := r.Vans.ClearDefaultEvent(ctx, vanID, eventID); err != nil {
			return err
		}
		if err := r.Reservations.ClearEventLinkage(ctx, vanID); err != nil {
			return err
		}
		_, err = r.Events.RecalculateTotal(ctx, eventID)
		return err
	})
	if err != nil {
		return unexpected("detach van", err)
	}
	l.deps.Audit.Record(ctx, model.AuditVanDetached, map[string]any{"event_id": eventID, "van_id": vanID})
	return nil
}

// UpdateEventVan applies a cost and/or status change.  The cost is applied
// first so a single request can price and close a van.
func (l *Lifecycle) UpdateEventVan(ctx context.Context, eventID, vanID uint64, in UpdateEventVanInput) (model.EventVan, error) {
	if in.Status == nil && in.Cost == nil {
		return model.EventVan{}, validationError("no changes")
	}
	var (
		assoc   model.EventVan
		entries []auditEntry
	)
	err := l.deps.Store.WithTx(ctx, func(r repository.Repositories) error {
		ev, err := loadEvent(ctx, r, eventID)
		if err != nil {
			return err
		}
		if ev.Status == model.EventFinalized {
			return newError(CodeFinalizedLocked, "vans of a finalized event cannot be changed")
		}
		assoc, err = r.EventVans.Get(ctx, eventID, vanID)
		if errors.Is(err, repository.ErrNotFound) {
			return notFoundError("event van")
		}
		if err != nil {
			return err
		}

		if in.Cost != nil {
			if assoc, err = l.applyCost(ctx, r, assoc, *in.Cost); err != nil {
				return err
			}
		}
		if in.Status != nil {
			var more []auditEntry
			if assoc, more, err = l.applyStatus(ctx, r, assoc, *in.Status); err != nil {
				return err
			}
			entries = append(entries, more...)
		}
		return nil
	})
	if err != nil {
		return model.EventVan{}, unexpected("update event van", err)
	}
	l.deps.Audit.recordAll(ctx, entries)
	return assoc, nil
}

func (l *Lifecycle) applyCost(ctx context.Context, r repository.Repositories, assoc model.EventVan, cost float64) (model.EventVan, error) {
	if cost < 0 {
		return assoc, validationError("van cost must be zero or positive")
	}
	assoc.VanCost = roundCents(cost)
	if assoc.Status == model.EventVanClosed || assoc.PerPassengerCost != nil {
		confirmed, err := r.Reservations.CountConfirmed(ctx, assoc.VanID)
		if err != nil {
			return assoc, err
		}
		if confirmed == 0 {
			return assoc, conflictError("cannot split the cost of a van with no confirmed passengers")
		}
		share := roundCents(assoc.VanCost / float64(confirmed))
		assoc.PerPassengerCost = &share
		if err := r.Reservations.SetConfirmedCharges(ctx, assoc.VanID, share, nil); err != nil {
			return assoc, err
		}
	}
	if err := r.EventVans.Update(ctx, assoc); err != nil {
		return assoc, err
	}
	_, err := r.Events.RecalculateTotal(ctx, assoc.EventID)
	return assoc, err
}

func (l *Lifecycle) applyStatus(ctx context.Context, r repository.Repositories, assoc model.EventVan, next model.EventVanStatus) (model.EventVan, []auditEntry, error) {
	if !next.Valid() {
		return assoc, nil, validationError("invalid van status %q", next)
	}
	if next == model.EventVanClosed {
		return l.closeVan(ctx, r, assoc)
	}
	if next == assoc.Status {
		return assoc, nil, nil
	}

	previous := assoc.Status
	assoc.Status = next
	// full keeps the split and the charges; open and holding drop them
	keepCharges := next == model.EventVanFull
	if !keepCharges {
		assoc.PerPassengerCost = nil
		assoc.ClosedAt = nil
	}
	if err := r.EventVans.Update(ctx, assoc); err != nil {
		return assoc, nil, err
	}
	if !keepCharges {
		if err := r.Reservations.SetConfirmedCharges(ctx, assoc.VanID, 0, nil); err != nil {
			return assoc, nil, err
		}
	}
	var entries []auditEntry
	if previous == model.EventVanClosed {
		entries = append(entries, auditEntry{Type: model.AuditVanReopened, Data: map[string]any{
			"event_id": assoc.EventID,
			"van_id":   assoc.VanID,
			"status":   next,
		}})
	}
	return assoc, entries, nil
}

// closeVan freezes the roster, splits the van cost among the confirmed
// passengers and moves the remaining waitlist to the earliest open van of
// the same event.
func (l *Lifecycle) closeVan(ctx context.Context, r repository.Repositories, assoc model.EventVan) (model.EventVan, []auditEntry, error) {
	confirmed, err := r.Reservations.CountConfirmed(ctx, assoc.VanID)
	if err != nil {
		return assoc, nil, err
	}
	if confirmed == 0 {
		return assoc, nil, conflictError("cannot close a van with no confirmed passengers")
	}
	if assoc.VanCost <= 0 {
		return assoc, nil, conflictError("set the van cost before closing")
	}

	share := roundCents(assoc.VanCost / float64(confirmed))
	closedAt := l.deps.now()
	assoc.Status = model.EventVanClosed
	assoc.PerPassengerCost = &share
	assoc.ClosedAt = &closedAt
	if err := r.EventVans.Update(ctx, assoc); err != nil {
		return assoc, nil, err
	}
	eventID := assoc.EventID
	if err := r.Reservations.SetConfirmedCharges(ctx, assoc.VanID, share, &eventID); err != nil {
		return assoc, nil, err
	}

	entries := []auditEntry{{Type: model.AuditVanClosed, Data: map[string]any{
		"event_id":           assoc.EventID,
		"van_id":             assoc.VanID,
		"van_cost":           assoc.VanCost,
		"per_passenger_cost": share,
		"confirmed":          confirmed,
	}}}
	migrated, err := migrateWaitlist(ctx, r, assoc)
	if err != nil {
		return assoc, nil, err
	}
	if migrated != nil {
		entries = append(entries, auditEntry{Type: model.AuditVanMigrated, Data: migrated})
	}
	return assoc, entries, nil
}

// migrateWaitlist moves the closed van's waitlist, in position order, to the
// earliest-attached open van of the event.  It returns the audit payload, or
// nil when nothing moved.
func migrateWaitlist(ctx context.Context, r repository.Repositories, closed model.EventVan) (map[string]any, error) {
	waiting, err := r.Reservations.ListByVanAndStatus(ctx, closed.VanID, model.ReservationWaitlisted)
	if err != nil || len(waiting) == 0 {
		return nil, err
	}
	target, err := r.EventVans.FirstOpen(ctx, closed.EventID, closed.VanID)
	if errors.Is(err, repository.ErrNotFound) {
		// riders stay waitlisted on the closed van
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	targetVan, err := r.Vans.GetByID(ctx, target.VanID)
	if err != nil {
		return nil, err
	}

	eventID := closed.EventID
	var promoted, queued []uint64
	for _, res := range waiting {
		count, err := r.Reservations.CountConfirmed(ctx, targetVan.ID)
		if err != nil {
			return nil, err
		}
		if count < targetVan.Capacity {
			pos, err := nextConfirmedPosition(ctx, r, targetVan.ID)
			if err != nil {
				return nil, err
			}
			if err := r.Reservations.Move(ctx, res.ID, targetVan.ID, model.ReservationConfirmed, pos, &eventID); err != nil {
				return nil, err
			}
			promoted = append(promoted, res.ID)
			continue
		}
		pos, err := nextWaitlistPosition(ctx, r, targetVan.ID)
		if err != nil {
			return nil, err
		}
		if err := r.Reservations.Move(ctx, res.ID, targetVan.ID, model.ReservationWaitlisted, pos, &eventID); err != nil {
			return nil, err
		}
		queued = append(queued, res.ID)
	}
	if err := syncEventVanStatus(ctx, r, targetVan); err != nil {
		return nil, err
	}
	return map[string]any{
		"event_id":    closed.EventID,
		"from_van_id": closed.VanID,
		"to_van_id":   targetVan.ID,
		"confirmed":   promoted,
		"waitlisted":  queued,
	}, nil
}

// syncEventVanStatus re-derives open/full from occupancy for the van's
// current association.  Closed and holding vans are left alone.
func syncEventVanStatus(ctx context.Context, r repository.Repositories, van model.Van) error {
	assoc, err := currentAssociation(ctx, r, van, nil)
	if err != nil || assoc == nil {
		return err
	}
	if assoc.Status == model.EventVanClosed || assoc.Status == model.EventVanHolding {
		return nil
	}
	confirmed, err := r.Reservations.CountConfirmed(ctx, van.ID)
	if err != nil {
		return err
	}
	next := model.EventVanOpen
	if van.Capacity > 0 && confirmed >= van.Capacity {
		next = model.EventVanFull
	}
	if next == assoc.Status {
		return nil
	}
	assoc.Status = next
	if next == model.EventVanOpen && assoc.PerPassengerCost != nil {
		// a van kept full after closing loses its split once a seat frees up
		assoc.PerPassengerCost = nil
		assoc.ClosedAt = nil
		if err := r.Reservations.SetConfirmedCharges(ctx, van.ID, 0, nil); err != nil {
			return err
		}
	}
	return r.EventVans.Update(ctx, *assoc)
}

// currentAssociation returns the van's association with eventID, or with
// its default event when eventID is nil.  nil means the van is not attached.
func currentAssociation(ctx context.Context, r repository.Repositories, van model.Van, eventID *uint64) (*model.EventVan, error) {
	if eventID == nil {
		eventID = van.DefaultEventID
	}
	if eventID == nil {
		return nil, nil
	}
	assoc, err := r.EventVans.Get(ctx, *eventID, van.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &assoc, nil
}

func loadEvent(ctx context.Context, r repository.Repositories, id uint64) (model.Event, error) {
	ev, err := r.Events.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Event{}, notFoundError("event")
	}
	return ev, err
}

func loadVan(ctx context.Context, r repository.Repositories, id uint64) (model.Van, error) {
	van, err := r.Vans.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Van{}, notFoundError("van")
	}
	return van, err
}
