package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/van-seat-reservation/internal/model"
)

type capturePublisher struct {
	types []string
	data  []json.RawMessage
	err   error
}

func (p *capturePublisher) PublishAudit(_ context.Context, eventType string, data json.RawMessage, _ time.Time) error {
	p.types = append(p.types, eventType)
	p.data = append(p.data, data)
	return p.err
}

func TestAuditRecordPersistsAndPublishes(t *testing.T) {
	h := newHarness(t)
	pub := &capturePublisher{err: errors.New("broker offline")}
	log := NewAuditLog(h.store, pub, h.clock.Now)

	log.Record(context.Background(), model.AuditVanRemoved, map[string]any{"van_id": 7})

	events, err := log.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, model.AuditVanRemoved, events[0].EventType)
	assert.JSONEq(t, `{"van_id":7}`, string(events[0].EventData))
	assert.Equal(t, []string{"van_removed"}, pub.types)
}

func TestAuditRecordSurvivesCancelledContext(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	h.audit.Record(ctx, model.AuditJoin, map[string]any{"reservation_id": 1})

	events, err := h.audit.List(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestNilAuditLogIsNoop(t *testing.T) {
	var log *AuditLog
	assert.NotPanics(t, func() { log.Record(context.Background(), model.AuditJoin, nil) })
}

func TestErrorCodes(t *testing.T) {
	err := unexpected("load", errors.New("boom"))
	assert.Equal(t, CodeUnexpected, CodeOf(err))
	assert.EqualError(t, err, "unexpected: load failed: boom")

	nf := notFoundError("van")
	assert.Same(t, nf, unexpected("load", nf))
	assert.True(t, errors.Is(nf, &Error{Code: CodeNotFound}))
	assert.False(t, errors.Is(nf, &Error{Code: CodeConflict}))
	assert.Equal(t, CodeUnexpected, CodeOf(errors.New("plain")))
	assert.NoError(t, unexpected("noop", nil))
}
