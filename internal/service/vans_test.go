package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/van-seat-reservation/internal/model"
)

func TestCreateVanDefaultsAndValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	van, err := h.vans.CreateVan(ctx, CreateVanInput{Name: "  Blue van "})
	require.NoError(t, err)
	assert.Equal(t, "Blue van", van.Name)
	assert.Equal(t, 15, van.Capacity)

	_, err = h.vans.CreateVan(ctx, CreateVanInput{Name: "Blue van"})
	requireCode(t, err, CodeConflict)
	_, err = h.vans.CreateVan(ctx, CreateVanInput{Name: "Big", Capacity: 65})
	requireCode(t, err, CodeValidation)
	_, err = h.vans.CreateVan(ctx, CreateVanInput{Name: ""})
	requireCode(t, err, CodeValidation)
}

func TestCreateVanWithEventAttaches(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ev := h.event(t, "Trip")

	van, err := h.vans.CreateVan(ctx, CreateVanInput{Name: "Van A", Capacity: 3, EventID: &ev.ID})
	require.NoError(t, err)
	require.NotNil(t, van.DefaultEventID)
	assert.Equal(t, ev.ID, *van.DefaultEventID)

	assoc, err := h.store.Repos().EventVans.Get(ctx, ev.ID, van.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EventVanOpen, assoc.Status)

	missing := uint64(404)
	_, err = h.vans.CreateVan(ctx, CreateVanInput{Name: "Van B", EventID: &missing})
	requireCode(t, err, CodeNotFound)
	// the van insert was rolled back with the failed attach
	_, err = h.store.Repos().Vans.GetByName(ctx, "Van B")
	assert.Error(t, err)
}

func TestUpdateVan(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	departure := time.Date(2026, 3, 20, 7, 30, 0, 0, time.UTC)
	van, err := h.vans.CreateVan(ctx, CreateVanInput{Name: "Van A", Capacity: 2, DepartureAt: &departure})
	require.NoError(t, err)

	capacity := 4
	updated, err := h.vans.UpdateVan(ctx, van.ID, UpdateVanInput{Capacity: &capacity, ClearDeparture: true})
	require.NoError(t, err)
	assert.Equal(t, 4, updated.Capacity)
	assert.Nil(t, updated.DepartureAt)
	assert.Contains(t, h.auditTypes(t), model.AuditCapacityUpdated)

	_, err = h.vans.UpdateVan(ctx, van.ID, UpdateVanInput{Capacity: &capacity})
	requireCode(t, err, CodeValidation)

	zero := 0
	_, err = h.vans.UpdateVan(ctx, van.ID, UpdateVanInput{Capacity: &zero})
	requireCode(t, err, CodeValidation)

	blank := "  "
	_, err = h.vans.UpdateVan(ctx, van.ID, UpdateVanInput{Name: &blank})
	requireCode(t, err, CodeValidation)

	_, err = h.vans.UpdateVan(ctx, 999, UpdateVanInput{Capacity: &capacity})
	requireCode(t, err, CodeNotFound)
}

func TestShrinkingCapacityMarksVanFull(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	ev := h.event(t, "Trip")
	van := h.van(t, "Van A", 3)
	_, err := h.lifecycle.AttachVan(ctx, ev.ID, van.ID, 0)
	require.NoError(t, err)
	h.join(t, van.ID, "Alice")

	one := 1
	_, err = h.vans.UpdateVan(ctx, van.ID, UpdateVanInput{Capacity: &one})
	require.NoError(t, err)

	assoc, err := h.store.Repos().EventVans.Get(ctx, ev.ID, van.ID)
	require.NoError(t, err)
	assert.Equal(t, model.EventVanFull, assoc.Status)
}

func TestDeleteVanRequiresNoActivePassengers(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	van := h.van(t, "Van A", 2)
	alice := h.join(t, van.ID, "Alice")

	err := h.vans.DeleteVan(ctx, van.ID)
	requireCode(t, err, CodeHasActivePassengers)

	_, err = h.queue.Release(ctx, alice.Reservation.ID)
	require.NoError(t, err)
	require.NoError(t, h.vans.DeleteVan(ctx, van.ID))

	list, err := h.vans.ListVans(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Contains(t, h.auditTypes(t), model.AuditVanRemoved)

	requireCode(t, h.vans.DeleteVan(ctx, van.ID), CodeNotFound)
}

func TestListVansCounts(t *testing.T) {
	h := newHarness(t)
	van := h.van(t, "Van A", 1)
	h.join(t, van.ID, "Alice")
	h.join(t, van.ID, "Bob")

	list, err := h.vans.ListVans(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 1, list[0].ConfirmedCount)
	assert.Equal(t, 1, list[0].WaitlistedCount)
}
