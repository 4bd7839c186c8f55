package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/van-seat-reservation/internal/model"
	"github.com/iliyamo/van-seat-reservation/internal/service"
)

type createEventReq struct {
	Name   string `json:"name" validate:"required,max=160"`
	Date   string `json:"date" validate:"required"` // dd/mm/yyyy
	Status string `json:"status" validate:"omitempty,oneof=planned in_progress finalized"`
}

type updateEventReq struct {
	Name      *string  `json:"name"`
	Date      *string  `json:"date"`
	Status    *string  `json:"status" validate:"omitempty,oneof=planned in_progress finalized"`
	TotalCost *float64 `json:"totalCost"`
}

type attachVanReq struct {
	VanID uint64  `json:"vanId" validate:"required"`
	Cost  float64 `json:"cost"`
}

type updateEventVanReq struct {
	Status *string  `json:"status" validate:"omitempty,oneof=open full holding closed"`
	Cost   *float64 `json:"cost"`
}

// CreateEvent handles POST /v1/admin/events.
func (h *AdminHandler) CreateEvent(c echo.Context) error {
	var req createEventReq
	if ok, err := bind(c, &req); !ok {
		return err
	}
	ev, err := h.Lifecycle.CreateEvent(c.Request().Context(), service.CreateEventInput{
		Name:   req.Name,
		Date:   req.Date,
		Status: model.EventStatus(req.Status),
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, ev)
}

// UpdateEvent handles PATCH /v1/admin/events/:id.
func (h *AdminHandler) UpdateEvent(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid event id")
	}
	var req updateEventReq
	if ok, err := bind(c, &req); !ok {
		return err
	}
	in := service.UpdateEventInput{Name: req.Name, Date: req.Date, TotalCost: req.TotalCost}
	if req.Status != nil {
		st := model.EventStatus(*req.Status)
		in.Status = &st
	}
	ev, err := h.Lifecycle.UpdateEvent(c.Request().Context(), id, in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, ev)
}

// ListEvents handles GET /v1/admin/events.
func (h *AdminHandler) ListEvents(c echo.Context) error {
	events, err := h.Lifecycle.ListEvents(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": events})
}

// AttachVan handles POST /v1/admin/events/:id/vans.
func (h *AdminHandler) AttachVan(c echo.Context) error {
	eventID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid event id")
	}
	var req attachVanReq
	if ok, err := bind(c, &req); !ok {
		return err
	}
	assoc, err := h.Lifecycle.AttachVan(c.Request().Context(), eventID, req.VanID, req.Cost)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, assoc)
}

// UpdateEventVan handles PATCH /v1/admin/events/:id/vans/:vanId.
// Setting status=closed splits the cost and migrates the waitlist.
func (h *AdminHandler) UpdateEventVan(c echo.Context) error {
	eventID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid event id")
	}
	vanID, ok := pathID(c, "vanId")
	if !ok {
		return badRequest(c, "invalid van id")
	}
	var req updateEventVanReq
	if ok, err := bind(c, &req); !ok {
		return err
	}
	in := service.UpdateEventVanInput{Cost: req.Cost}
	if req.Status != nil {
		st := model.EventVanStatus(*req.Status)
		in.Status = &st
	}
	assoc, err := h.Lifecycle.UpdateEventVan(c.Request().Context(), eventID, vanID, in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, assoc)
}

// DetachVan handles DELETE /v1/admin/events/:id/vans/:vanId.
func (h *AdminHandler) DetachVan(c echo.Context) error {
	eventID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid event id")
	}
	vanID, ok := pathID(c, "vanId")
	if !ok {
		return badRequest(c, "invalid van id")
	}
	if err := h.Lifecycle.DetachVan(c.Request().Context(), eventID, vanID); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
