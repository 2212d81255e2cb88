package services

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/sirupsen/logrus"
)

// DraftSweeper evicts idle drafts
type DraftSweeper interface {
	Sweep(ctx context.Context, now time.Time) (int, error)
}

// PaymentSweeper fails abandoned sessions and forgets finished watchers
type PaymentSweeper interface {
	Sweep(ctx context.Context, now time.Time) (failed, pruned int, err error)
}

// RevocationSweeper drops expired token revocations
type RevocationSweeper interface {
	Sweep(now time.Time) int
}

// SweepReport is what one sweep removed
type SweepReport struct {
	Drafts          int
	FailedPayments  int
	PrunedWatchers  int
	RevokedSessions int
}

// SweepService runs the periodic housekeeping job
type SweepService struct {
	scheduler gocron.Scheduler
	interval  time.Duration
	drafts    DraftSweeper
	payments  PaymentSweeper
	sessions  RevocationSweeper
	logger    *logrus.Logger
	now       func() time.Time

	job gocron.Job
}

// NewSweepService creates the scheduler. Nothing runs until Start.
func NewSweepService(
	interval time.Duration,
	drafts DraftSweeper,
	payments PaymentSweeper,
	sessions RevocationSweeper,
	logger *logrus.Logger,
) (*SweepService, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	return &SweepService{
		scheduler: scheduler,
		interval:  interval,
		drafts:    drafts,
		payments:  payments,
		sessions:  sessions,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// Start schedules the sweep every interval
func (s *SweepService) Start() error {
	job, err := s.scheduler.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(s.sweepJob),
		gocron.WithName("checkout-sweep"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule sweep job: %w", err)
	}
	s.job = job
	s.scheduler.Start()

	s.logger.WithFields(logrus.Fields{
		"job_id":   job.ID().String(),
		"interval": s.interval.String(),
	}).Info("Sweep service started")
	return nil
}

// Stop waits for a running sweep and stops the scheduler
func (s *SweepService) Stop() error {
	if err := s.scheduler.Shutdown(); err != nil {
		return fmt.Errorf("failed to stop scheduler: %w", err)
	}
	s.logger.Info("Sweep service stopped")
	return nil
}

func (s *SweepService) sweepJob() {
	ctx, cancel := context.WithTimeout(context.Background(), s.interval)
	defer cancel()
	s.RunOnce(ctx)
}

// RunOnce performs one sweep synchronously. Failures in one step are
// logged and do not stop the others.
func (s *SweepService) RunOnce(ctx context.Context) SweepReport {
	now := s.now()
	var report SweepReport

	if s.drafts != nil {
		n, err := s.drafts.Sweep(ctx, now)
		if err != nil {
			s.logger.WithError(err).Error("Draft sweep failed")
		}
		report.Drafts = n
	}

	if s.payments != nil {
		failed, pruned, err := s.payments.Sweep(ctx, now)
		if err != nil {
			s.logger.WithError(err).Error("Payment sweep failed")
		}
		report.FailedPayments = failed
		report.PrunedWatchers = pruned
	}

	if s.sessions != nil {
		report.RevokedSessions = s.sessions.Sweep(now)
	}

	s.logger.WithFields(logrus.Fields{
		"drafts":           report.Drafts,
		"failed_payments":  report.FailedPayments,
		"pruned_watchers":  report.PrunedWatchers,
		"revoked_sessions": report.RevokedSessions,
	}).Debug("Sweep finished")
	return report
}
