package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/van-seat-reservation/internal/model"
	"github.com/iliyamo/van-seat-reservation/internal/repository"
)

const (
	// joinAttempts bounds retries when a concurrent join claimed the same
	// position or held the write lock.
	joinAttempts = 5
	// joinBackoff is multiplied by the attempt number between retries.
	joinBackoff = 15 * time.Millisecond

	msgSeatConfirmed     = "Seat confirmed! You are on the passenger list."
	msgWaitlisted        = "All seats are taken. You are on the waitlist."
	msgSeatReleased      = "Seat released. The freed seat goes to the next person who joins."
	msgWaitlistReleased  = "Removed from the waitlist."
	defaultDepartureLead = time.Hour
)

// QueueConfig configures the default van used by joins that name no van.
type QueueConfig struct {
	DefaultVanName     string
	DefaultVanCapacity int
}

// QueueEngine assigns seats and waitlist positions and releases them.
type QueueEngine struct {
	deps   Deps
	policy *DuplicatePolicy
	cfg    QueueConfig
}

// NewQueueEngine returns a QueueEngine.
func NewQueueEngine(d Deps, cfg QueueConfig) *QueueEngine {
	if strings.TrimSpace(cfg.DefaultVanName) == "" {
		cfg.DefaultVanName = "Van Principal"
	}
	if cfg.DefaultVanCapacity < model.MinVanCapacity || cfg.DefaultVanCapacity > model.MaxVanCapacity {
		cfg.DefaultVanCapacity = 15
	}
	return &QueueEngine{deps: d, policy: NewDuplicatePolicy(d.now), cfg: cfg}
}

// JoinRequest identifies the van by ID or name; both empty means the default van.
type JoinRequest struct {
	VanID    uint64
	VanName  string
	FullName string
}

// JoinResult is the created reservation and the refreshed queue.
type JoinResult struct {
	Reservation model.Reservation       `json:"reservation"`
	Status      model.ReservationStatus `json:"status"`
	Message     string                  `json:"message"`
	Queue       model.QueueView         `json:"queue"`
}

// ReleaseResult is the released reservation and the refreshed queue.
type ReleaseResult struct {
	Message  string            `json:"message"`
	Released model.Reservation `json:"releasedReservation"`
	Queue    model.QueueView   `json:"queue"`
}

// Join places fullName on the van: confirmed while seats remain, otherwise
// at the tail of the waitlist.
func (q *QueueEngine) Join(ctx context.Context, req JoinRequest) (JoinResult, error) {
	name, err := normalizeFullName(req.FullName)
	if err != nil {
		return JoinResult{}, err
	}
	van, err := q.resolveVan(ctx, req)
	if err != nil {
		return JoinResult{}, err
	}

	var res model.Reservation
	for attempt := 1; ; attempt++ {
		res, err = q.joinOnce(ctx, van.ID, name)
		if !retryableJoin(err) || attempt >= joinAttempts {
			break
		}
		if errors.Is(err, repository.ErrBusy) {
			select {
			case <-ctx.Done():
				return JoinResult{}, unexpected("join", ctx.Err())
			case <-time.After(time.Duration(attempt) * joinBackoff):
			}
		}
	}
	if err != nil {
		var se *Error
		if errors.As(err, &se) && se.Code == CodeDuplicateName {
			data := map[string]any{"full_name": name, "van_id": van.ID}
			if existing, ok := se.Details["existingReservation"].(model.Reservation); ok {
				data["existing_reservation_id"] = existing.ID
			}
			q.deps.Audit.Record(ctx, model.AuditDuplicateBlocked, data)
			return JoinResult{}, err
		}
		if retryableJoin(err) {
			return JoinResult{}, conflictError("the queue changed while joining, please retry")
		}
		return JoinResult{}, unexpected("join", err)
	}

	eventType, msg := model.AuditJoin, msgSeatConfirmed
	if res.Status == model.ReservationWaitlisted {
		eventType, msg = model.AuditWaitlist, msgWaitlisted
	}
	q.deps.Audit.Record(ctx, eventType, map[string]any{
		"reservation_id": res.ID,
		"van_id":         res.VanID,
		"full_name":      res.FullName,
		"status":         res.Status,
	})

	view, err := q.View(ctx, van.ID)
	if err != nil {
		return JoinResult{}, err
	}
	return JoinResult{Reservation: res, Status: res.Status, Message: msg, Queue: view}, nil
}

func retryableJoin(err error) bool {
	return errors.Is(err, repository.ErrPositionTaken) || errors.Is(err, repository.ErrBusy)
}

func (q *QueueEngine) joinOnce(ctx context.Context, vanID uint64, name string) (model.Reservation, error) {
	var res model.Reservation
	err := q.deps.Store.WithTx(ctx, func(r repository.Repositories) error {
		van, err := r.Vans.GetByID(ctx, vanID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return notFoundError("van")
			}
			return err
		}

		decision, err := q.policy.Evaluate(ctx, r, name)
		if err != nil {
			return err
		}
		if !decision.Allowed {
			return duplicateNameError(decision.Existing)
		}

		assoc, err := currentAssociation(ctx, r, van, nil)
		if err != nil {
			return err
		}
		if assoc != nil && assoc.Status == model.EventVanClosed {
			return newError(CodeVanClosed, "this van is closed")
		}
		holding := assoc != nil && assoc.Status == model.EventVanHolding

		confirmed, err := r.Reservations.CountConfirmed(ctx, van.ID)
		if err != nil {
			return err
		}
		res = model.Reservation{
			VanID:    van.ID,
			EventID:  van.DefaultEventID,
			FullName: name,
			JoinedAt: q.deps.now(),
		}
		if confirmed < van.Capacity && !holding {
			res.Status = model.ReservationConfirmed
			res.Position, err = nextConfirmedPosition(ctx, r, van.ID)
		} else {
			res.Status = model.ReservationWaitlisted
			res.Position, err = nextWaitlistPosition(ctx, r, van.ID)
		}
		if err != nil {
			return err
		}

		if err := r.Reservations.Create(ctx, &res, decision.LockName); err != nil {
			if errors.Is(err, repository.ErrDuplicateName) {
				// a concurrent join took the name between the check and the insert
				var existing *model.Reservation
				if other, lookupErr := r.Reservations.FindActiveByName(ctx, name); lookupErr == nil {
					existing = &other
				}
				return duplicateNameError(existing)
			}
			return err
		}
		if res.Status == model.ReservationConfirmed {
			return syncEventVanStatus(ctx, r, van)
		}
		return nil
	})
	return res, err
}

// Release frees the reservation's seat or waitlist slot.  Confirmed
// reservations are cancelled and keep their history; waitlisted ones are
// deleted.  Waitlisted riders are not promoted: the freed seat goes to the
// next join.
func (q *QueueEngine) Release(ctx context.Context, id uint64) (ReleaseResult, error) {
	var released model.Reservation
	err := q.deps.Store.WithTx(ctx, func(r repository.Repositories) error {
		res, err := r.Reservations.GetByID(ctx, id)
		if errors.Is(err, repository.ErrNotFound) || (err == nil && !res.Status.Active()) {
			return notFoundError("active reservation")
		}
		if err != nil {
			return err
		}
		van, err := r.Vans.GetByID(ctx, res.VanID)
		if err != nil {
			return err
		}
		assoc, err := currentAssociation(ctx, r, van, res.EventID)
		if err != nil {
			return err
		}
		if assoc != nil && assoc.Status == model.EventVanClosed {
			return newError(CodeVanClosed, "this van is closed; its roster can no longer change")
		}

		released = res
		if res.Status == model.ReservationWaitlisted {
			if err := r.Reservations.Delete(ctx, res.ID); err != nil {
				return err
			}
		} else {
			now := q.deps.now()
			if err := r.Reservations.Cancel(ctx, res.ID, now); err != nil {
				return err
			}
			released.ReleasedAt = &now
			released.ChargedAmount = 0
			released.HasPaid = false
			if err := syncEventVanStatus(ctx, r, van); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return ReleaseResult{}, unexpected("release", err)
	}

	wasWaitlisted := released.Status == model.ReservationWaitlisted
	q.deps.Audit.Record(ctx, model.AuditRelease, map[string]any{
		"reservation_id": released.ID,
		"van_id":         released.VanID,
		"full_name":      released.FullName,
		"status":         released.Status,
		"waitlist":       wasWaitlisted,
	})

	msg := msgSeatReleased
	if wasWaitlisted {
		msg = msgWaitlistReleased
	}
	released.Status = model.ReservationCancelled

	view, err := q.View(ctx, released.VanID)
	if err != nil {
		return ReleaseResult{}, err
	}
	return ReleaseResult{Message: msg, Released: released, Queue: view}, nil
}

// View returns the van's confirmed and waitlisted partitions, each ordered by position.
func (q *QueueEngine) View(ctx context.Context, vanID uint64) (model.QueueView, error) {
	return queueView(ctx, q.deps.Store.Repos(), vanID)
}

// DefaultVan returns the default van, creating it on first use.
func (q *QueueEngine) DefaultVan(ctx context.Context) (model.Van, error) {
	return q.resolveVan(ctx, JoinRequest{})
}

func (q *QueueEngine) resolveVan(ctx context.Context, req JoinRequest) (model.Van, error) {
	r := q.deps.Store.Repos()
	if req.VanID != 0 {
		van, err := r.Vans.GetByID(ctx, req.VanID)
		if errors.Is(err, repository.ErrNotFound) {
			return model.Van{}, notFoundError("van")
		}
		return van, unexpected("load van", err)
	}

	name := strings.TrimSpace(req.VanName)
	if name == "" {
		name = q.cfg.DefaultVanName
	}
	van, err := r.Vans.GetByName(ctx, name)
	if err == nil {
		return van, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return model.Van{}, unexpected("load van", err)
	}
	if name != q.cfg.DefaultVanName {
		return model.Van{}, notFoundError("van")
	}

	departure := q.deps.now().Add(defaultDepartureLead)
	van = model.Van{Name: name, Capacity: q.cfg.DefaultVanCapacity, DepartureAt: &departure, CreatedAt: q.deps.now()}
	if err := r.Vans.Create(ctx, &van); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			// created concurrently
			van, err = r.Vans.GetByName(ctx, name)
			return van, unexpected("load van", err)
		}
		return model.Van{}, unexpected("create default van", err)
	}
	q.deps.Audit.Record(ctx, model.AuditVanCreated, map[string]any{
		"van_id":   van.ID,
		"name":     van.Name,
		"capacity": van.Capacity,
	})
	return van, nil
}

func queueView(ctx context.Context, r repository.Repositories, vanID uint64) (model.QueueView, error) {
	van, err := r.Vans.GetByID(ctx, vanID)
	if errors.Is(err, repository.ErrNotFound) {
		return model.QueueView{}, notFoundError("van")
	}
	if err != nil {
		return model.QueueView{}, unexpected("load van", err)
	}
	confirmed, err := r.Reservations.ListByVanAndStatus(ctx, vanID, model.ReservationConfirmed)
	if err != nil {
		return model.QueueView{}, unexpected("load queue", err)
	}
	waitlisted, err := r.Reservations.ListByVanAndStatus(ctx, vanID, model.ReservationWaitlisted)
	if err != nil {
		return model.QueueView{}, unexpected("load queue", err)
	}
	return model.QueueView{Van: van, Confirmed: confirmed, Waitlisted: waitlisted}, nil
}

// nextConfirmedPosition returns the lowest unused confirmed position, so a
// seat freed by a release is handed out before the roster grows.
func nextConfirmedPosition(ctx context.Context, r repository.Repositories, vanID uint64) (int, error) {
	taken, err := r.Reservations.ActivePositions(ctx, vanID, model.ReservationConfirmed)
	if err != nil {
		return 0, err
	}
	return lowestFreePosition(taken), nil
}

// nextWaitlistPosition appends to the waitlist.
func nextWaitlistPosition(ctx context.Context, r repository.Repositories, vanID uint64) (int, error) {
	maxPos, err := r.Reservations.MaxWaitlistPosition(ctx, vanID)
	if err != nil {
		return 0, err
	}
	return maxPos + 1, nil
}

// lowestFreePosition expects taken sorted ascending.
func lowestFreePosition(taken []int) int {
	next := 1
	for _, p := range taken {
		if p > next {
			break
		}
		if p == next {
			next++
		}
	}
	return next
}
