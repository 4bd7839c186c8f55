package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/van-seat-reservation/internal/service"
)

// PublicHandler serves the rider-facing endpoints: joining and leaving a
// van queue and reading queues.  No authentication is required.
type PublicHandler struct {
	Queue *service.QueueEngine
	Vans  *service.VanAdmin
}

// NewPublicHandler panics on nil dependencies.
func NewPublicHandler(q *service.QueueEngine, v *service.VanAdmin) *PublicHandler {
	if q == nil || v == nil {
		panic("nil service passed to NewPublicHandler")
	}
	return &PublicHandler{Queue: q, Vans: v}
}

type joinReq struct {
	VanID    uint64 `json:"vanId"`
	VanName  string `json:"vanName" validate:"max=120"`
	FullName string `json:"fullName" validate:"required,max=200"`
}

// Join handles POST /v1/reservations.  The van is picked by vanId,
// then vanName, then the default van.  201 with the reservation, its
// status, the rider message and the refreshed queue; 409 duplicate_name
// carries existingReservation.
func (h *PublicHandler) Join(c echo.Context) error {
	var req joinReq
	if ok, err := bind(c, &req); !ok {
		return err
	}
	res, err := h.Queue.Join(c.Request().Context(), service.JoinRequest{
		VanID:    req.VanID,
		VanName:  req.VanName,
		FullName: req.FullName,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, res)
}

// Release handles POST /v1/reservations/:id/release.
func (h *PublicHandler) Release(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid reservation id")
	}
	res, err := h.Queue.Release(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// VanQueue handles GET /v1/vans/:id/queue.
func (h *PublicHandler) VanQueue(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid van id")
	}
	view, err := h.Queue.View(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, view)
}

// DefaultQueue handles GET /v1/queue, the queue of the default van.
func (h *PublicHandler) DefaultQueue(c echo.Context) error {
	ctx := c.Request().Context()
	van, err := h.Queue.DefaultVan(ctx)
	if err != nil {
		return writeError(c, err)
	}
	view, err := h.Queue.View(ctx, van.ID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, view)
}

// ListVans handles GET /v1/vans with per-van occupancy.
func (h *PublicHandler) ListVans(c echo.Context) error {
	vans, err := h.Vans.ListVans(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": vans})
}
