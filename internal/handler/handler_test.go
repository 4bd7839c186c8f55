package handler_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/suite"
	"github.com/tidwall/gjson"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/van-seat-reservation/internal/config"
	"github.com/iliyamo/van-seat-reservation/internal/database"
	"github.com/iliyamo/van-seat-reservation/internal/handler"
	"github.com/iliyamo/van-seat-reservation/internal/middleware"
	"github.com/iliyamo/van-seat-reservation/internal/model"
	"github.com/iliyamo/van-seat-reservation/internal/repository"
	"github.com/iliyamo/van-seat-reservation/internal/router"
	"github.com/iliyamo/van-seat-reservation/internal/service"
	"github.com/iliyamo/van-seat-reservation/internal/utils"
)

const testSecret = "handler-test-secret-123"

type APISuite struct {
	suite.Suite
	e     *echo.Echo
	users *repository.AdminUserRepo
	token string
}

func TestAPISuite(t *testing.T) {
	suite.Run(t, new(APISuite))
}

func (s *APISuite) SetupTest() {
	db, err := database.OpenSQLite(filepath.Join(s.T().TempDir(), "api.db"))
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = db.Close() })

	store := repository.NewStore(db)
	audit := service.NewAuditLog(store, nil, nil)
	deps := service.Deps{Store: store, Audit: audit}
	vans := service.NewVanAdmin(deps)
	cfg := config.Config{JWTSecret: testSecret, AccessTTLMin: 15, RefreshTTLDays: 7, BcryptCost: bcrypt.MinCost}

	noCache := middleware.NewResponseCache(config.CacheConfig{}, nil)
	noLimit := middleware.NewTokenBucket(config.RateLimitConfig{}, nil)

	s.users = repository.NewAdminUserRepo(db)
	s.e = router.New()
	router.RegisterRoutes(s.e, &handler.HealthHandler{DB: db, Driver: database.DriverSQLite})
	router.RegisterAuth(s.e, handler.NewAuthHandler(cfg, s.users, repository.NewTokenRepo(db)), testSecret)
	router.RegisterPublic(s.e, handler.NewPublicHandler(service.NewQueueEngine(deps, service.QueueConfig{}), vans), noLimit, noCache)
	router.RegisterAdmin(s.e, &handler.AdminHandler{
		Vans:         vans,
		Lifecycle:    service.NewLifecycle(deps),
		Overrides:    service.NewOverrideAdmin(deps),
		Reservations: service.NewReservationAdmin(deps),
		Audit:        audit,
		Summary:      service.NewSummarizer(deps, nil),
	}, testSecret, noCache)

	tok, err := utils.NewAccessToken(testSecret, 1, model.RoleAdmin, time.Hour)
	s.Require().NoError(err)
	s.token = tok.Token
}

func (s *APISuite) do(method, path string, body any, token string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func (s *APISuite) admin(method, path string, body any) *httptest.ResponseRecorder {
	return s.do(method, path, body, s.token)
}

func (s *APISuite) createVan(name string, capacity int) uint64 {
	rec := s.admin(http.MethodPost, "/v1/admin/vans", echo.Map{"name": name, "capacity": capacity})
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	return gjson.Get(rec.Body.String(), "id").Uint()
}

func (s *APISuite) join(vanID uint64, name string) *httptest.ResponseRecorder {
	return s.do(http.MethodPost, "/v1/reservations", echo.Map{"vanId": vanID, "fullName": name}, "")
}

func (s *APISuite) TestJoinAndRelease() {
	van := s.createVan("Van A", 1)

	rec := s.join(van, "Alice")
	s.Equal(http.StatusCreated, rec.Code)
	body := rec.Body.String()
	s.Equal("confirmed", gjson.Get(body, "status").String())
	s.Equal(int64(1), gjson.Get(body, "reservation.position").Int())
	s.Equal("Seat confirmed! You are on the passenger list.", gjson.Get(body, "message").String())
	aliceID := gjson.Get(body, "reservation.id").Uint()

	rec = s.join(van, "Bob")
	s.Equal("waitlisted", gjson.Get(rec.Body.String(), "status").String())

	rec = s.do(http.MethodPost, fmt.Sprintf("/v1/reservations/%d/release", aliceID), nil, "")
	s.Equal(http.StatusOK, rec.Code)
	s.Equal("cancelled", gjson.Get(rec.Body.String(), "releasedReservation.status").String())
	s.Equal(int64(0), gjson.Get(rec.Body.String(), "queue.confirmed.#").Int())

	rec = s.do(http.MethodPost, fmt.Sprintf("/v1/reservations/%d/release", aliceID), nil, "")
	s.Equal(http.StatusNotFound, rec.Code)
	s.Equal("not_found", gjson.Get(rec.Body.String(), "error").String())

	rec = s.do(http.MethodGet, fmt.Sprintf("/v1/vans/%d/queue", van), nil, "")
	s.Equal(http.StatusOK, rec.Code)
	s.Equal("Bob", gjson.Get(rec.Body.String(), "waitlisted.0.fullName").String())
}

func (s *APISuite) TestDuplicateNameReturnsExisting() {
	van := s.createVan("Van A", 5)
	s.Equal(http.StatusCreated, s.join(van, "Eve").Code)

	rec := s.join(van, "Eve")
	s.Equal(http.StatusConflict, rec.Code)
	s.Equal("duplicate_name", gjson.Get(rec.Body.String(), "error").String())
	s.Equal("Eve", gjson.Get(rec.Body.String(), "existingReservation.fullName").String())

	rec = s.admin(http.MethodPost, "/v1/admin/overrides", echo.Map{"fullName": "Eve", "durationHours": 1})
	s.Equal(http.StatusCreated, rec.Code)
	s.Equal(http.StatusCreated, s.join(van, "Eve").Code)

	rec = s.admin(http.MethodGet, "/v1/admin/overrides", nil)
	s.Equal(int64(1), gjson.Get(rec.Body.String(), "items.#").Int())
}

func (s *APISuite) TestJoinValidation() {
	rec := s.do(http.MethodPost, "/v1/reservations", echo.Map{"vanId": 1}, "")
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal("validation", gjson.Get(rec.Body.String(), "error").String())
	s.Contains(gjson.Get(rec.Body.String(), "message").String(), "fullName")

	van := s.createVan("Van A", 5)
	rec = s.join(van, "Al")
	s.Equal(http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/v1/reservations/abc/release", nil, "")
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *APISuite) TestDefaultQueue() {
	rec := s.do(http.MethodPost, "/v1/reservations", echo.Map{"fullName": "Alice"}, "")
	s.Equal(http.StatusCreated, rec.Code)

	rec = s.do(http.MethodGet, "/v1/queue", nil, "")
	s.Equal(http.StatusOK, rec.Code)
	s.Equal("Van Principal", gjson.Get(rec.Body.String(), "van.name").String())
	s.Equal(int64(1), gjson.Get(rec.Body.String(), "confirmed.#").Int())

	rec = s.do(http.MethodGet, "/v1/vans", nil, "")
	s.Equal(int64(1), gjson.Get(rec.Body.String(), "items.0.confirmedCount").Int())
}

func (s *APISuite) TestAdminRequiresToken() {
	s.Equal(http.StatusUnauthorized, s.do(http.MethodGet, "/v1/admin/vans", nil, "").Code)

	other, err := utils.NewAccessToken(testSecret, 2, "RIDER", time.Hour)
	s.Require().NoError(err)
	s.Equal(http.StatusForbidden, s.do(http.MethodGet, "/v1/admin/vans", nil, other.Token).Code)
}

func (s *APISuite) TestCloseVanSplitsCost() {
	rec := s.admin(http.MethodPost, "/v1/admin/events", echo.Map{"name": "Concert", "date": "20/03/2026"})
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	eventID := gjson.Get(rec.Body.String(), "id").Uint()
	s.Equal("planned", gjson.Get(rec.Body.String(), "status").String())

	rec = s.admin(http.MethodPost, "/v1/admin/vans", echo.Map{"name": "Van A", "capacity": 3, "eventId": eventID})
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	van := gjson.Get(rec.Body.String(), "id").Uint()

	for _, name := range []string{"Alice", "Bob", "Carol"} {
		s.Require().Equal(http.StatusCreated, s.join(van, name).Code)
	}

	path := fmt.Sprintf("/v1/admin/events/%d/vans/%d", eventID, van)
	rec = s.admin(http.MethodPatch, path, echo.Map{"cost": 300, "status": "closed"})
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	s.Equal("closed", gjson.Get(rec.Body.String(), "status").String())
	s.Equal(100.0, gjson.Get(rec.Body.String(), "perPassengerCost").Float())

	rec = s.admin(http.MethodGet, fmt.Sprintf("/v1/admin/reservations?vanId=%d&status=confirmed", van), nil)
	s.Equal(http.StatusOK, rec.Code)
	for _, r := range gjson.Get(rec.Body.String(), "items").Array() {
		s.Equal(100.0, r.Get("chargedAmount").Float())
		s.False(r.Get("hasPaid").Bool())
	}
	first := gjson.Get(rec.Body.String(), "items.0.id").Uint()

	rec = s.join(van, "Dave")
	s.Equal(http.StatusConflict, rec.Code)
	s.Equal("van_closed", gjson.Get(rec.Body.String(), "error").String())

	rec = s.admin(http.MethodPatch, fmt.Sprintf("/v1/admin/reservations/%d/payment", first), echo.Map{"hasPaid": true})
	s.Equal(http.StatusOK, rec.Code)
	s.True(gjson.Get(rec.Body.String(), "hasPaid").Bool())
	s.Equal(100.0, gjson.Get(rec.Body.String(), "chargedAmount").Float())

	rec = s.admin(http.MethodGet, "/v1/admin/events", nil)
	s.Equal(300.0, gjson.Get(rec.Body.String(), "items.0.totalCost").Float())
	s.Equal(int64(3), gjson.Get(rec.Body.String(), "items.0.vans.0.confirmedCount").Int())

	rec = s.admin(http.MethodPatch, fmt.Sprintf("/v1/admin/events/%d", eventID), echo.Map{"status": "finalized"})
	s.Equal(http.StatusUnprocessableEntity, rec.Code)
	s.Equal("invalid_transition", gjson.Get(rec.Body.String(), "error").String())
}

func (s *APISuite) TestFinalizedEventIsLocked() {
	rec := s.admin(http.MethodPost, "/v1/admin/events", echo.Map{"name": "Derby", "date": "05/04/2026"})
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	path := fmt.Sprintf("/v1/admin/events/%d", gjson.Get(rec.Body.String(), "id").Uint())

	rec = s.admin(http.MethodPatch, path, echo.Map{"status": "planned"})
	s.Equal(http.StatusOK, rec.Code, rec.Body.String())
	s.Equal("planned", gjson.Get(rec.Body.String(), "status").String())

	for _, status := range []string{"in_progress", "finalized"} {
		rec = s.admin(http.MethodPatch, path, echo.Map{"status": status})
		s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	}

	rec = s.admin(http.MethodPatch, path, echo.Map{"name": "Derby II"})
	s.Equal(http.StatusUnprocessableEntity, rec.Code)
	s.Equal("finalized_locked", gjson.Get(rec.Body.String(), "error").String())

	rec = s.admin(http.MethodPatch, path, echo.Map{"status": "in_progress"})
	s.Equal(http.StatusUnprocessableEntity, rec.Code)
	s.Equal("finalized_locked", gjson.Get(rec.Body.String(), "error").String())

	rec = s.admin(http.MethodPatch, path, echo.Map{"status": "finalized"})
	s.Equal(http.StatusOK, rec.Code, rec.Body.String())
}

func (s *APISuite) TestCloseEmptyVanConflicts() {
	rec := s.admin(http.MethodPost, "/v1/admin/events", echo.Map{"name": "Trip", "date": "01/04/2026"})
	eventID := gjson.Get(rec.Body.String(), "id").Uint()
	van := s.createVan("Van A", 3)

	rec = s.admin(http.MethodPost, fmt.Sprintf("/v1/admin/events/%d/vans", eventID), echo.Map{"vanId": van, "cost": 90})
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.admin(http.MethodPatch, fmt.Sprintf("/v1/admin/events/%d/vans/%d", eventID, van), echo.Map{"status": "closed"})
	s.Equal(http.StatusConflict, rec.Code)
	s.Equal("conflict", gjson.Get(rec.Body.String(), "error").String())

	rec = s.admin(http.MethodPatch, fmt.Sprintf("/v1/admin/events/%d/vans/%d", eventID, van), echo.Map{"status": "parked"})
	s.Equal(http.StatusBadRequest, rec.Code)

	rec = s.admin(http.MethodDelete, fmt.Sprintf("/v1/admin/events/%d/vans/%d", eventID, van), nil)
	s.Equal(http.StatusNoContent, rec.Code)
	rec = s.admin(http.MethodDelete, fmt.Sprintf("/v1/admin/events/%d/vans/%d", eventID, van), nil)
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *APISuite) TestEventDateValidation() {
	rec := s.admin(http.MethodPost, "/v1/admin/events", echo.Map{"name": "Trip", "date": "31/02/2026"})
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal("validation", gjson.Get(rec.Body.String(), "error").String())
}

func (s *APISuite) TestVanLifecycle() {
	van := s.createVan("Van A", 2)

	rec := s.admin(http.MethodPatch, fmt.Sprintf("/v1/admin/vans/%d", van), echo.Map{"capacity": 65})
	s.Equal(http.StatusBadRequest, rec.Code)

	rec = s.admin(http.MethodPatch, fmt.Sprintf("/v1/admin/vans/%d", van), echo.Map{"capacity": 4, "name": "Van B"})
	s.Equal(http.StatusOK, rec.Code)
	s.Equal("Van B", gjson.Get(rec.Body.String(), "name").String())
	s.Equal(int64(4), gjson.Get(rec.Body.String(), "capacity").Int())

	s.Require().Equal(http.StatusCreated, s.join(van, "Alice").Code)
	rec = s.admin(http.MethodDelete, fmt.Sprintf("/v1/admin/vans/%d", van), nil)
	s.Equal(http.StatusConflict, rec.Code)
	s.Equal("has_active_passengers", gjson.Get(rec.Body.String(), "error").String())

	rec = s.admin(http.MethodPost, "/v1/admin/vans", echo.Map{"name": "Van B"})
	s.Equal(http.StatusConflict, rec.Code)

	empty := s.createVan("Van C", 2)
	s.Equal(http.StatusNoContent, s.admin(http.MethodDelete, fmt.Sprintf("/v1/admin/vans/%d", empty), nil).Code)
}

func (s *APISuite) TestRosterExport() {
	van := s.createVan("Van A", 1)
	s.join(van, "Alice")
	s.join(van, "Bob")

	rec := s.admin(http.MethodGet, fmt.Sprintf("/v1/admin/vans/%d/roster.csv", van), nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	s.True(strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), "text/csv"))

	rows, err := csv.NewReader(rec.Body).ReadAll()
	s.Require().NoError(err)
	s.Require().Len(rows, 3)
	s.Equal([]string{"Full Name", "Status", "Position", "Joined At", "Released At"}, rows[0])
	s.Equal([]string{"Alice", "confirmed", "1"}, rows[1][:3])
	s.Equal([]string{"Bob", "waitlisted", "1"}, rows[2][:3])
}

func (s *APISuite) TestAuditAndSummary() {
	van := s.createVan("Van A", 1)
	s.join(van, "Alice")
	s.join(van, "Alice")

	rec := s.admin(http.MethodGet, "/v1/admin/audit?limit=2", nil)
	s.Equal(http.StatusOK, rec.Code)
	s.Equal(int64(2), gjson.Get(rec.Body.String(), "items.#").Int())
	s.Equal("duplicate_blocked", gjson.Get(rec.Body.String(), "items.0.eventType").String())

	rec = s.admin(http.MethodGet, "/v1/admin/audit?limit=x", nil)
	s.Equal(http.StatusBadRequest, rec.Code)

	rec = s.admin(http.MethodPost, "/v1/admin/summary", nil)
	s.Equal(http.StatusOK, rec.Code)
	s.Equal(int64(1), gjson.Get(rec.Body.String(), "summary.confirmed").Int())
	s.Equal(int64(1), gjson.Get(rec.Body.String(), "summary.duplicatesBlocked").Int())
}

func (s *APISuite) TestAuthFlow() {
	ctx := context.Background()
	s.Require().NoError(handler.BootstrapAdmin(ctx, s.users, "Admin@Example.com", "s3cret-pass", bcrypt.MinCost))
	// second call is a no-op
	s.Require().NoError(handler.BootstrapAdmin(ctx, s.users, "admin@example.com", "other-pass", bcrypt.MinCost))

	rec := s.do(http.MethodPost, "/v1/auth/login", echo.Map{"email": "admin@example.com", "password": "wrong-pass"}, "")
	s.Equal(http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodPost, "/v1/auth/login", echo.Map{"email": "admin@example.com", "password": "s3cret-pass"}, "")
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	access := gjson.Get(rec.Body.String(), "access.token").String()
	refresh := gjson.Get(rec.Body.String(), "refresh.token").String()
	s.Equal("ADMIN", gjson.Get(rec.Body.String(), "user.role").String())

	rec = s.do(http.MethodGet, "/v1/admin/auth/me", nil, access)
	s.Equal(http.StatusOK, rec.Code)
	s.Equal("ADMIN", gjson.Get(rec.Body.String(), "role").String())
	s.Equal(http.StatusOK, s.do(http.MethodGet, "/v1/admin/vans", nil, access).Code)

	rec = s.do(http.MethodPost, "/v1/auth/refresh", echo.Map{"refresh_token": refresh}, "")
	s.Require().Equal(http.StatusOK, rec.Code)
	rotated := gjson.Get(rec.Body.String(), "refresh.token").String()
	s.NotEqual(refresh, rotated)

	// the old refresh token was revoked by the rotation
	s.Equal(http.StatusUnauthorized, s.do(http.MethodPost, "/v1/auth/refresh", echo.Map{"refresh_token": refresh}, "").Code)

	s.Equal(http.StatusNoContent, s.do(http.MethodPost, "/v1/admin/auth/logout", nil, access).Code)
	s.Equal(http.StatusUnauthorized, s.do(http.MethodPost, "/v1/auth/refresh", echo.Map{"refresh_token": rotated}, "").Code)
}

func (s *APISuite) TestHealth() {
	rec := s.do(http.MethodGet, "/healthz", nil, "")
	s.Equal(http.StatusOK, rec.Code)
	s.Equal("ok", gjson.Get(rec.Body.String(), "duplicateGuard").String())
	s.Equal("disabled", gjson.Get(rec.Body.String(), "redis").String())
}
