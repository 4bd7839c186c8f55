// Package router assembles the echo instance: the global middleware chain
// and every route group.
package router

import (
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/van-seat-reservation/internal/handler"
	"github.com/iliyamo/van-seat-reservation/internal/middleware"
	"github.com/iliyamo/van-seat-reservation/internal/model"
)

// New returns an echo instance with request IDs, access logging, panic
// recovery and the request validator installed.
func New() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewRequestValidator()

	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			if v.Error != nil {
				log.Printf("http: %s %s %d %s id=%s err=%v", v.Method, v.URI, v.Status, v.Latency, v.RequestID, v.Error)
				return nil
			}
			log.Printf("http: %s %s %d %s id=%s", v.Method, v.URI, v.Status, v.Latency, v.RequestID)
			return nil
		},
	}))
	e.Use(echomw.Recover())
	return e
}

// RegisterRoutes registers unauthenticated operational routes.
func RegisterRoutes(e *echo.Echo, h *handler.HealthHandler) {
	e.GET("/healthz", h.Health)
	e.GET("/livez", func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
}

// RegisterAuth registers admin login and refresh under /v1/auth and the
// session endpoints that need a valid access token under /v1/admin/auth.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)

	s := e.Group("/v1/admin/auth", middleware.JWTAuth(jwtSecret), middleware.RequireRole(model.RoleAdmin))
	s.GET("/me", a.Me)
	s.POST("/logout", a.Logout)
}

// RegisterPublic registers the rider endpoints.  Joins and releases pass
// the rate limiter and invalidate cached queue views; queue reads are
// served through the response cache.
func RegisterPublic(e *echo.Echo, p *handler.PublicHandler, limiter echo.MiddlewareFunc, cache *middleware.ResponseCache) {
	g := e.Group("/v1")

	g.POST("/reservations", p.Join, limiter, cache.Invalidate())
	g.POST("/reservations/:id/release", p.Release, limiter, cache.Invalidate())

	g.GET("/queue", p.DefaultQueue, cache.Read())
	g.GET("/vans", p.ListVans, cache.Read())
	g.GET("/vans/:id/queue", p.VanQueue, cache.Read())
}

// RegisterAdmin registers the management API.  Every route requires an
// ADMIN access token; every mutation invalidates cached queue views.
func RegisterAdmin(e *echo.Echo, h *handler.AdminHandler, jwtSecret string, cache *middleware.ResponseCache) {
	g := e.Group("/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin),
		cache.Invalidate(),
	)

	g.GET("/vans", h.ListVans)
	g.POST("/vans", h.CreateVan)
	g.PATCH("/vans/:id", h.UpdateVan)
	g.DELETE("/vans/:id", h.DeleteVan)
	g.GET("/vans/:id/roster.csv", h.ExportRoster)

	g.GET("/events", h.ListEvents)
	g.POST("/events", h.CreateEvent)
	g.PATCH("/events/:id", h.UpdateEvent)
	g.POST("/events/:id/vans", h.AttachVan)
	g.PATCH("/events/:id/vans/:vanId", h.UpdateEventVan)
	g.DELETE("/events/:id/vans/:vanId", h.DetachVan)

	g.GET("/overrides", h.ListOverrides)
	g.POST("/overrides", h.CreateOverride)
	g.DELETE("/overrides/:id", h.DeleteOverride)

	g.GET("/reservations", h.ListReservations)
	g.PATCH("/reservations/:id/payment", h.TogglePayment)

	g.GET("/audit", h.ListAudit)
	g.POST("/summary", h.RunSummary)
}
