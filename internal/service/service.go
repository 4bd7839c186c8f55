// Package service holds the reservation domain: the queue engine, the
// duplicate-name policy, the event/van lifecycle and the audit log.
// Every operation runs against an explicit Store and returns *Error on
// failure.
package service

import (
	"context"
	"math"
	"time"

	"github.com/iliyamo/van-seat-reservation/internal/repository"
)

// Store is the transactional storage every service runs on.
// *repository.Store satisfies it.
type Store interface {
	Repos() repository.Repositories
	WithTx(ctx context.Context, fn func(repository.Repositories) error) error
}

// Deps are the collaborators shared by the services.
type Deps struct {
	Store Store
	Audit *AuditLog
	Now   func() time.Time
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now().UTC()
	}
	return time.Now().UTC()
}

// roundCents rounds a monetary amount to two decimals.
func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
