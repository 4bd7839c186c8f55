package service

import (
	"context"
	"time"

	"github.com/iliyamo/van-seat-reservation/internal/model"
)

const summaryWindow = 24 * time.Hour

// DailySummary is the activity report sent once a day.
type DailySummary struct {
	GeneratedAt       time.Time `json:"generatedAt"`
	WindowStart       time.Time `json:"windowStart"`
	Confirmed         int       `json:"confirmed"`
	Waitlisted        int       `json:"waitlisted"`
	Cancelled         int       `json:"cancelled"`
	CreatedInWindow   int       `json:"createdInWindow"`
	DuplicatesBlocked int       `json:"duplicatesBlocked"`
	OverridesAdded    int       `json:"overridesAdded"`
	ActiveOverrides   []string  `json:"activeOverrides"`
}

// SummaryDelivery ships a computed summary somewhere, e.g. an analytics webhook.
type SummaryDelivery interface {
	Deliver(ctx context.Context, s DailySummary) error
}

// Summarizer builds and delivers the daily summary.
type Summarizer struct {
	deps     Deps
	delivery SummaryDelivery
}

// NewSummarizer returns a Summarizer.  delivery may be nil, in which case
// Run only computes.
func NewSummarizer(d Deps, delivery SummaryDelivery) *Summarizer {
	return &Summarizer{deps: d, delivery: delivery}
}

// Compute gathers the totals for the last 24 hours.
func (s *Summarizer) Compute(ctx context.Context) (DailySummary, error) {
	r := s.deps.Store.Repos()
	now := s.deps.now()
	since := now.Add(-summaryWindow)

	stats, err := r.Reservations.Stats(ctx, since)
	if err != nil {
		return DailySummary{}, unexpected("reservation stats", err)
	}
	blocked, err := r.Audit.CountSince(ctx, model.AuditDuplicateBlocked, since)
	if err != nil {
		return DailySummary{}, unexpected("count duplicates", err)
	}
	added, err := r.Audit.CountSince(ctx, model.AuditOverrideAdded, since)
	if err != nil {
		return DailySummary{}, unexpected("count overrides", err)
	}
	overrides, err := r.Overrides.List(ctx)
	if err != nil {
		return DailySummary{}, unexpected("list overrides", err)
	}

	active := []string{}
	for _, o := range overrides {
		if o.ActiveAt(now) {
			active = append(active, o.FullName)
		}
	}
	return DailySummary{
		GeneratedAt:       now,
		WindowStart:       since,
		Confirmed:         stats.Confirmed,
		Waitlisted:        stats.Waitlisted,
		Cancelled:         stats.Cancelled,
		CreatedInWindow:   stats.CreatedSince,
		DuplicatesBlocked: blocked,
		OverridesAdded:    added,
		ActiveOverrides:   active,
	}, nil
}

// Run computes the summary and hands it to the delivery.
func (s *Summarizer) Run(ctx context.Context) (DailySummary, error) {
	sum, err := s.Compute(ctx)
	if err != nil {
		return DailySummary{}, err
	}
	if s.delivery != nil {
		if err := s.delivery.Deliver(ctx, sum); err != nil {
			return sum, unexpected("deliver summary", err)
		}
	}
	return sum, nil
}
