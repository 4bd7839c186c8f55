package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iliyamo/van-seat-reservation/internal/database"
	"github.com/iliyamo/van-seat-reservation/internal/model"
	"github.com/iliyamo/van-seat-reservation/internal/repository"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type harness struct {
	store        *repository.Store
	clock        *fakeClock
	audit        *AuditLog
	queue        *QueueEngine
	lifecycle    *Lifecycle
	vans         *VanAdmin
	overrides    *OverrideAdmin
	reservations *ReservationAdmin
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "service.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store := repository.NewStore(db)
	clock := &fakeClock{t: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
	audit := NewAuditLog(store, nil, clock.Now)
	deps := Deps{Store: store, Audit: audit, Now: clock.Now}
	return &harness{
		store:        store,
		clock:        clock,
		audit:        audit,
		queue:        NewQueueEngine(deps, QueueConfig{}),
		lifecycle:    NewLifecycle(deps),
		vans:         NewVanAdmin(deps),
		overrides:    NewOverrideAdmin(deps),
		reservations: NewReservationAdmin(deps),
	}
}

func (h *harness) van(t *testing.T, name string, capacity int) model.Van {
	t.Helper()
	v, err := h.vans.CreateVan(context.Background(), CreateVanInput{Name: name, Capacity: capacity})
	require.NoError(t, err)
	return v
}

func (h *harness) join(t *testing.T, vanID uint64, name string) JoinResult {
	t.Helper()
	// distinct joined_at values keep FIFO ordering observable
	h.clock.Advance(time.Second)
	res, err := h.queue.Join(context.Background(), JoinRequest{VanID: vanID, FullName: name})
	require.NoError(t, err)
	return res
}

func (h *harness) event(t *testing.T, name string) model.Event {
	t.Helper()
	ev, err := h.lifecycle.CreateEvent(context.Background(), CreateEventInput{Name: name, Date: "20/03/2026"})
	require.NoError(t, err)
	return ev
}

func (h *harness) reservation(t *testing.T, id uint64) model.Reservation {
	t.Helper()
	res, err := h.store.Repos().Reservations.GetByID(context.Background(), id)
	require.NoError(t, err)
	return res
}

func (h *harness) auditTypes(t *testing.T) []model.AuditEventType {
	t.Helper()
	events, err := h.audit.List(context.Background(), 500)
	require.NoError(t, err)
	out := make([]model.AuditEventType, 0, len(events))
	for _, e := range events {
		out = append(out, e.EventType)
	}
	return out
}

func requireCode(t *testing.T, err error, code Code) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, code, CodeOf(err), err.Error())
}

func statusPtr(s model.EventVanStatus) *model.EventVanStatus { return &s }

func eventStatusPtr(s model.EventStatus) *model.EventStatus { return &s }

func floatPtr(f float64) *float64 { return &f }
