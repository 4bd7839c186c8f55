package handler

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/van-seat-reservation/internal/model"
	"github.com/iliyamo/van-seat-reservation/internal/service"
)

type createOverrideReq struct {
	FullName      string   `json:"fullName" validate:"required,max=200"`
	Reason        string   `json:"reason" validate:"max=500"`
	DurationHours *float64 `json:"durationHours"`
}

type paymentReq struct {
	HasPaid *bool `json:"hasPaid" validate:"required"`
}

// CreateOverride handles POST /v1/admin/overrides.  Creating an
// override for a name that already has one renews it.
func (h *AdminHandler) CreateOverride(c echo.Context) error {
	var req createOverrideReq
	if ok, err := bind(c, &req); !ok {
		return err
	}
	o, err := h.Overrides.CreateOverride(c.Request().Context(), service.CreateOverrideInput{
		FullName:      req.FullName,
		Reason:        req.Reason,
		DurationHours: req.DurationHours,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, o)
}

// DeleteOverride handles DELETE /v1/admin/overrides/:id.
func (h *AdminHandler) DeleteOverride(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid override id")
	}
	if err := h.Overrides.DeleteOverride(c.Request().Context(), id); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ListOverrides handles GET /v1/admin/overrides.
func (h *AdminHandler) ListOverrides(c echo.Context) error {
	list, err := h.Overrides.ListOverrides(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": list})
}

// ListReservations handles GET /v1/admin/reservations?vanId=&status=.
func (h *AdminHandler) ListReservations(c echo.Context) error {
	var vanID uint64
	if raw := c.QueryParam("vanId"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return badRequest(c, "invalid vanId")
		}
		vanID = id
	}
	list, err := h.Reservations.ListReservations(c.Request().Context(), vanID, model.ReservationStatus(c.QueryParam("status")))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": list})
}

// TogglePayment handles PATCH /v1/admin/reservations/:id/payment.
func (h *AdminHandler) TogglePayment(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid reservation id")
	}
	var req paymentReq
	if ok, err := bind(c, &req); !ok {
		return err
	}
	state, err := h.Reservations.TogglePayment(c.Request().Context(), id, *req.HasPaid)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, state)
}

// ExportRoster handles GET /v1/admin/vans/:id/roster.csv.
func (h *AdminHandler) ExportRoster(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid van id")
	}
	van, rows, err := h.Reservations.ExportRoster(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/csv; charset=utf-8")
	resp.Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", fmt.Sprintf("van-%d-roster.csv", van.ID)))
	resp.WriteHeader(http.StatusOK)

	w := csv.NewWriter(resp)
	_ = w.Write([]string{"Full Name", "Status", "Position", "Joined At", "Released At"})
	for _, r := range rows {
		released := ""
		if r.ReleasedAt != nil {
			released = r.ReleasedAt.UTC().Format(time.RFC3339)
		}
		_ = w.Write([]string{r.FullName, string(r.Status), strconv.Itoa(r.Position), r.JoinedAt.UTC().Format(time.RFC3339), released})
	}
	w.Flush()
	return w.Error()
}

// ListAudit handles GET /v1/admin/audit?limit=.
func (h *AdminHandler) ListAudit(c echo.Context) error {
	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return badRequest(c, "invalid limit")
		}
		limit = n
	}
	events, err := h.Audit.List(c.Request().Context(), limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": events})
}

// RunSummary handles POST /v1/admin/summary: compute the daily summary
// now and deliver it like the scheduled job does.
func (h *AdminHandler) RunSummary(c echo.Context) error {
	sum, err := h.Summary.Run(c.Request().Context())
	if err != nil {
		if service.CodeOf(err) == service.CodeUnexpected && !sum.GeneratedAt.IsZero() {
			// computed but not delivered
			return c.JSON(http.StatusAccepted, echo.Map{"summary": sum, "delivered": false})
		}
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"summary": sum, "delivered": true})
}
