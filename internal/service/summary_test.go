package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingDelivery struct {
	got []DailySummary
	err error
}

func (d *recordingDelivery) Deliver(_ context.Context, s DailySummary) error {
	d.got = append(d.got, s)
	return d.err
}

func TestDailySummary(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	van := h.van(t, "Van A", 1)
	alice := h.join(t, van.ID, "Alice")
	h.join(t, van.ID, "Bob")
	_, err := h.queue.Release(ctx, alice.Reservation.ID)
	require.NoError(t, err)
	h.join(t, van.ID, "Carol")
	_, err = h.queue.Join(ctx, JoinRequest{VanID: van.ID, FullName: "Carol"})
	requireCode(t, err, CodeDuplicateName)

	hours := 1.0
	_, err = h.overrides.CreateOverride(ctx, CreateOverrideInput{FullName: "Short Lived", DurationHours: &hours})
	require.NoError(t, err)
	_, err = h.overrides.CreateOverride(ctx, CreateOverrideInput{FullName: "Forever Twin"})
	require.NoError(t, err)
	h.clock.Advance(2 * time.Hour)

	delivery := &recordingDelivery{}
	sum, err := NewSummarizer(Deps{Store: h.store, Now: h.clock.Now}, delivery).Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, sum.Confirmed)
	assert.Equal(t, 1, sum.Waitlisted)
	assert.Equal(t, 1, sum.Cancelled)
	assert.Equal(t, 3, sum.CreatedInWindow)
	assert.Equal(t, 1, sum.DuplicatesBlocked)
	assert.Equal(t, 2, sum.OverridesAdded)
	assert.Equal(t, []string{"Forever Twin"}, sum.ActiveOverrides)
	assert.Equal(t, sum.GeneratedAt.Add(-24*time.Hour), sum.WindowStart)
	require.Len(t, delivery.got, 1)

	h.clock.Advance(48 * time.Hour)
	later, err := NewSummarizer(Deps{Store: h.store, Now: h.clock.Now}, nil).Compute(ctx)
	require.NoError(t, err)
	assert.Zero(t, later.CreatedInWindow)
	assert.Zero(t, later.DuplicatesBlocked)
}

func TestDailySummaryDeliveryFailure(t *testing.T) {
	h := newHarness(t)
	delivery := &recordingDelivery{err: errors.New("webhook down")}

	_, err := NewSummarizer(Deps{Store: h.store, Now: h.clock.Now}, delivery).Run(context.Background())
	requireCode(t, err, CodeUnexpected)
	assert.Len(t, delivery.got, 1)
}
