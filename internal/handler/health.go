package handler

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/van-seat-reservation/internal/database"
)

// HealthHandler reports whether the service can take reservations.  Only
// the database and the duplicate-name guard decide the status; Redis and
// the broker are informational.
type HealthHandler struct {
	DB            *sql.DB
	Driver        string
	Redis         *redis.Client
	BrokerEnabled bool
}

// Health handles GET /healthz.  503 when the database is unreachable or
// the name_lock index is missing.
func (h *HealthHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	body := echo.Map{"status": "ok", "database": "ok", "duplicateGuard": "ok"}
	status := http.StatusOK

	if err := h.DB.PingContext(ctx); err != nil {
		body["database"] = "down"
		body["duplicateGuard"] = "unknown"
		status = http.StatusServiceUnavailable
	} else if ok, err := database.HasIndex(ctx, h.DB, h.Driver, "reservations", database.NameLockIndex); err != nil {
		body["duplicateGuard"] = "unknown"
		status = http.StatusServiceUnavailable
	} else if !ok {
		body["duplicateGuard"] = "missing"
		status = http.StatusServiceUnavailable
	}

	switch {
	case h.Redis == nil:
		body["redis"] = "disabled"
	case h.Redis.Ping(ctx).Err() != nil:
		body["redis"] = "down"
	default:
		body["redis"] = "ok"
	}
	if h.BrokerEnabled {
		body["broker"] = "enabled"
	} else {
		body["broker"] = "disabled"
	}

	if status != http.StatusOK {
		body["status"] = "degraded"
	}
	return c.JSON(status, body)
}
