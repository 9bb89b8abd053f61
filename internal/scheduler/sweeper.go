package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"daypass/internal/types"
)

// OverdueLister finds schedule records the scheduler never delivered.
type OverdueLister interface {
	ListOverdue(ctx context.Context, cutoff time.Time, limit int) ([]string, error)
}

// UnsubmittedLister finds renewal jobs that never reached the scheduler.
type UnsubmittedLister interface {
	ListUnsubmitted(ctx context.Context, limit int) ([]*types.RenewalJob, error)
}

// Activator replays an activation wake-up.
type Activator interface {
	HandleWakeup(ctx context.Context, recordID string, isRetry bool) (types.ActivationStatus, error)
}

// ReminderSender delivers a renewal reminder immediately.
type ReminderSender interface {
	Send(ctx context.Context, credentialID string) (types.ReminderStatus, error)
}

// RenewalResubmitter schedules a renewal job.
type RenewalResubmitter interface {
	Submit(ctx context.Context, job *types.RenewalJob) error
}

// SweeperConfig configures a Sweeper.
type SweeperConfig struct {
	Schedules   OverdueLister
	RenewalJobs UnsubmittedLister
	JobStore    RenewalJobStore
	Activator   Activator
	Renewals    RenewalResubmitter
	Reminders   ReminderSender

	// Grace is how far past its target time a record must be before the
	// sweep replays it.
	Grace       time.Duration
	BatchSize   int
	Concurrency int
	Logger      *slog.Logger
}

// SweepResult summarizes one sweep.
type SweepResult struct {
	Replayed    int `json:"replayed"`
	Activated   int `json:"activated"`
	Failed      int `json:"failed"`
	Resubmitted int `json:"resubmitted"`
	SentDirect  int `json:"sent_direct"`
}

// Sweeper is the periodic fallback for wake-ups that were never scheduled
// or never arrived.
type Sweeper struct {
	cfg    SweeperConfig
	logger *slog.Logger
}

// NewSweeper creates a Sweeper.
func NewSweeper(cfg SweeperConfig) *Sweeper {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 5
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{cfg: cfg, logger: logger}
}

// Run executes the sweeps selected by task at now.
func (s *Sweeper) Run(ctx context.Context, task TaskType, now time.Time) (SweepResult, error) {
	var res SweepResult
	switch task {
	case "", TaskSweepAll:
		if err := s.SweepOverdue(ctx, now, &res); err != nil {
			return res, err
		}
		return res, s.SweepRenewals(ctx, now, &res)
	case TaskSweepOverdue:
		return res, s.SweepOverdue(ctx, now, &res)
	case TaskSweepRenewals:
		return res, s.SweepRenewals(ctx, now, &res)
	default:
		return res, fmt.Errorf("scheduler: unknown sweep task %q", task)
	}
}

// SweepOverdue replays overdue schedule records through the retry path.
// One record failing does not stop the others.
func (s *Sweeper) SweepOverdue(ctx context.Context, now time.Time, res *SweepResult) error {
	cutoff := now.Add(-s.cfg.Grace)
	ids, err := s.cfg.Schedules.ListOverdue(ctx, cutoff, s.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("listing overdue schedules: %w", err)
	}
	if len(ids) == 0 {
		s.logger.InfoContext(ctx, "no overdue schedules")
		return nil
	}

	var activated, failed atomic.Int64
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for _, id := range ids {
		g.Go(func() error {
			status, err := s.cfg.Activator.HandleWakeup(gCtx, id, true)
			if err != nil {
				s.logger.WarnContext(gCtx, "overdue replay failed", "schedule_id", id, "error", err)
				failed.Add(1)
				return nil
			}
			if status == types.ActivationActivated {
				activated.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	res.Replayed += len(ids)
	res.Activated += int(activated.Load())
	res.Failed += int(failed.Load())
	s.logger.InfoContext(ctx, "overdue sweep complete",
		"replayed", len(ids),
		"activated", activated.Load(),
		"failed", failed.Load(),
	)
	return nil
}

// SweepRenewals resubmits renewal jobs the scheduler never accepted. Jobs
// whose fire time has passed are sent directly, once.
func (s *Sweeper) SweepRenewals(ctx context.Context, now time.Time, res *SweepResult) error {
	jobs, err := s.cfg.RenewalJobs.ListUnsubmitted(ctx, s.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("listing unsubmitted renewal jobs: %w", err)
	}
	if len(jobs) == 0 {
		return nil
	}

	var resubmitted, direct, failed atomic.Int64
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for _, job := range jobs {
		g.Go(func() error {
			log := s.logger.With("credential_id", job.CredentialID)
			if job.FireAt.After(now) {
				err := s.cfg.Renewals.Submit(gCtx, job)
				if err == nil {
					resubmitted.Add(1)
					return nil
				}
				if !errors.Is(err, ErrNotInFuture) {
					failed.Add(1)
					return nil
				}
			}

			status, err := s.cfg.Reminders.Send(gCtx, job.CredentialID)
			if err != nil {
				log.WarnContext(gCtx, "direct renewal reminder failed", "error", err)
				failed.Add(1)
				return nil
			}
			if err := s.cfg.JobStore.MarkSubmitted(gCtx, job.CredentialID, "", now); err != nil {
				log.ErrorContext(gCtx, "failed to close renewal job", "error", err)
			}
			log.InfoContext(gCtx, "renewal reminder sent by sweep", "status", status)
			direct.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	res.Resubmitted += int(resubmitted.Load())
	res.SentDirect += int(direct.Load())
	res.Failed += int(failed.Load())
	s.logger.InfoContext(ctx, "renewal sweep complete",
		"resubmitted", resubmitted.Load(),
		"sent_direct", direct.Load(),
		"failed", failed.Load(),
	)
	return nil
}
