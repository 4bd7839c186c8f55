// Package jobs runs the background work of the service: the daily summary
// cron job and its webhook delivery.
package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/iliyamo/van-seat-reservation/internal/service"
)

// SummaryRunner computes and delivers the daily summary.
// *service.Summarizer satisfies it.
type SummaryRunner interface {
	Run(ctx context.Context) (service.DailySummary, error)
}

// Scheduler owns the gocron scheduler and the summary job.
type Scheduler struct {
	sched gocron.Scheduler
	job   gocron.Job
}

// summaryTimeout bounds a single summary run.
const summaryTimeout = time.Minute

// NewSummaryScheduler registers runner on the five-field cron expression
// cronExpr (UTC).  Overlapping runs are skipped.  Call Start to begin.
func NewSummaryScheduler(cronExpr string, runner SummaryRunner) (*Scheduler, error) {
	sched, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("new scheduler: %w", err)
	}
	job, err := sched.NewJob(
		gocron.CronJob(cronExpr, false),
		gocron.NewTask(func() {
			ctx, cancel := context.WithTimeout(context.Background(), summaryTimeout)
			defer cancel()
			sum, err := runner.Run(ctx)
			if err != nil {
				log.Printf("summary-job: %v", err)
				return
			}
			log.Printf("summary-job: confirmed=%d waitlisted=%d cancelled=%d duplicates_blocked=%d",
				sum.Confirmed, sum.Waitlisted, sum.Cancelled, sum.DuplicatesBlocked)
		}),
		gocron.WithName("daily-summary"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, fmt.Errorf("schedule summary %q: %w", cronExpr, err)
	}
	return &Scheduler{sched: sched, job: job}, nil
}

// Start begins running jobs in the background.
func (s *Scheduler) Start() {
	s.sched.Start()
	if next, err := s.job.NextRun(); err == nil {
		log.Printf("summary-job: next run %s", next.Format(time.RFC3339))
	}
}

// RunNow triggers the summary job outside its schedule.
func (s *Scheduler) RunNow() error { return s.job.RunNow() }

// NextRun reports when the summary job fires next.
func (s *Scheduler) NextRun() (time.Time, error) { return s.job.NextRun() }

// Shutdown stops the scheduler and waits for running jobs.
func (s *Scheduler) Shutdown() error { return s.sched.Shutdown() }
