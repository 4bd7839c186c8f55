package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/van-seat-reservation/internal/service"
)

// AdminHandler serves the management API.  Routes are mounted behind
// JWTAuth and RequireRole(ADMIN).
type AdminHandler struct {
	Vans         *service.VanAdmin
	Lifecycle    *service.Lifecycle
	Overrides    *service.OverrideAdmin
	Reservations *service.ReservationAdmin
	Audit        *service.AuditLog
	Summary      *service.Summarizer
}

type createVanReq struct {
	Name        string     `json:"name" validate:"required,max=120"`
	Capacity    int        `json:"capacity" validate:"omitempty,min=1,max=64"`
	DepartureAt *time.Time `json:"departureAt"`
	EventID     *uint64    `json:"eventId" validate:"omitempty,gt=0"`
}

// updateVanReq distinguishes an absent departureAt from an explicit null
// through ClearDeparture.
type updateVanReq struct {
	Name           *string    `json:"name" validate:"omitempty,max=120"`
	Capacity       *int       `json:"capacity"`
	DepartureAt    *time.Time `json:"departureAt"`
	ClearDeparture bool       `json:"clearDeparture"`
}

// CreateVan handles POST /v1/admin/vans.
func (h *AdminHandler) CreateVan(c echo.Context) error {
	var req createVanReq
	if ok, err := bind(c, &req); !ok {
		return err
	}
	van, err := h.Vans.CreateVan(c.Request().Context(), service.CreateVanInput{
		Name:        req.Name,
		Capacity:    req.Capacity,
		DepartureAt: req.DepartureAt,
		EventID:     req.EventID,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, van)
}

// UpdateVan handles PATCH /v1/admin/vans/:id.  Capacity range checks
// happen in the service so the error code stays "validation".
func (h *AdminHandler) UpdateVan(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid van id")
	}
	var req updateVanReq
	if ok, err := bind(c, &req); !ok {
		return err
	}
	van, err := h.Vans.UpdateVan(c.Request().Context(), id, service.UpdateVanInput{
		Name:           req.Name,
		Capacity:       req.Capacity,
		DepartureAt:    req.DepartureAt,
		ClearDeparture: req.ClearDeparture,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, van)
}

// DeleteVan handles DELETE /v1/admin/vans/:id.
func (h *AdminHandler) DeleteVan(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid van id")
	}
	if err := h.Vans.DeleteVan(c.Request().Context(), id); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ListVans handles GET /v1/admin/vans.
func (h *AdminHandler) ListVans(c echo.Context) error {
	vans, err := h.Vans.ListVans(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": vans})
}
