package service

import (
	"context"
	"errors"
	"time"

	"github.com/iliyamo/van-seat-reservation/internal/model"
	"github.com/iliyamo/van-seat-reservation/internal/repository"
)

// ReservationAdmin exposes reservation listing, payment tracking and the
// roster export.
type ReservationAdmin struct {
	deps Deps
}

// NewReservationAdmin returns a ReservationAdmin.
func NewReservationAdmin(d Deps) *ReservationAdmin { return &ReservationAdmin{deps: d} }

// PaymentState is the result of a payment toggle.
type PaymentState struct {
	ID            uint64  `json:"id"`
	HasPaid       bool    `json:"hasPaid"`
	ChargedAmount float64 `json:"chargedAmount"`
}

// RosterRow is one line of the roster export.
type RosterRow struct {
	FullName   string
	Status     model.ReservationStatus
	Position   int
	JoinedAt   time.Time
	ReleasedAt *time.Time
}

// ListReservations returns reservations ordered by van, status and position.
func (a *ReservationAdmin) ListReservations(ctx context.Context, vanID uint64, status model.ReservationStatus) ([]model.Reservation, error) {
	if status != "" && !status.Valid() {
		return nil, validationError("invalid reservation status %q", status)
	}
	list, err := a.deps.Store.Repos().Reservations.List(ctx, repository.ReservationFilter{VanID: vanID, Status: status})
	if err != nil {
		return nil, unexpected("list reservations", err)
	}
	return list, nil
}

// TogglePayment records whether the rider paid their share.
func (a *ReservationAdmin) TogglePayment(ctx context.Context, id uint64, hasPaid bool) (PaymentState, error) {
	var res model.Reservation
	err := a.deps.Store.WithTx(ctx, func(r repository.Repositories) error {
		if err := r.Reservations.SetPaid(ctx, id, hasPaid); err != nil {
			return err
		}
		var err error
		res, err = r.Reservations.GetByID(ctx, id)
		return err
	})
	if errors.Is(err, repository.ErrNotFound) {
		return PaymentState{}, notFoundError("reservation")
	}
	if err != nil {
		return PaymentState{}, unexpected("update payment", err)
	}
	a.deps.Audit.Record(ctx, model.AuditPaymentUpdated, map[string]any{
		"reservation_id": res.ID,
		"has_paid":       res.HasPaid,
		"charged_amount": res.ChargedAmount,
	})
	return PaymentState{ID: res.ID, HasPaid: res.HasPaid, ChargedAmount: res.ChargedAmount}, nil
}

// ExportRoster projects every reservation of the van, confirmed first,
// then waitlisted, then cancelled, each by position.
func (a *ReservationAdmin) ExportRoster(ctx context.Context, vanID uint64) (model.Van, []RosterRow, error) {
	r := a.deps.Store.Repos()
	van, err := loadVan(ctx, r, vanID)
	if err != nil {
		return model.Van{}, nil, unexpected("load van", err)
	}
	list, err := r.Reservations.List(ctx, repository.ReservationFilter{VanID: vanID})
	if err != nil {
		return model.Van{}, nil, unexpected("export roster", err)
	}
	rows := make([]RosterRow, 0, len(list))
	for _, res := range list {
		rows = append(rows, RosterRow{
			FullName:   res.FullName,
			Status:     res.Status,
			Position:   res.Position,
			JoinedAt:   res.JoinedAt,
			ReleasedAt: res.ReleasedAt,
		})
	}
	return van, rows, nil
}
