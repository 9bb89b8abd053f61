package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"daypass/internal/types"
)

// RenewalJobStore records submission results on renewal_jobs rows.
type RenewalJobStore interface {
	MarkSubmitted(ctx context.Context, credentialID, jobID string, at time.Time) error
	RecordFailure(ctx context.Context, credentialID, reason string) error
}

// RenewalSubmitter hands materialized renewal jobs to the Scheduler.
type RenewalSubmitter struct {
	scheduler   Scheduler
	jobs        RenewalJobStore
	callbackURL string
	clock       types.Clock
	logger      *slog.Logger
}

// NewRenewalSubmitter creates a RenewalSubmitter posting to callbackURL.
func NewRenewalSubmitter(s Scheduler, jobs RenewalJobStore, callbackURL string, clock types.Clock, logger *slog.Logger) *RenewalSubmitter {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RenewalSubmitter{scheduler: s, jobs: jobs, callbackURL: callbackURL, clock: clock, logger: logger}
}

// Submit schedules the renewal wake-up for job and records the outcome.
// ErrNotInFuture is returned untouched so callers can send directly.
func (r *RenewalSubmitter) Submit(ctx context.Context, job *types.RenewalJob) error {
	log := r.logger.With("credential_id", job.CredentialID, "fire_at", job.FireAt)

	body, err := json.Marshal(types.RenewalWakeup{CredentialID: job.CredentialID})
	if err != nil {
		return err
	}

	jobID, err := r.scheduler.Schedule(ctx, Job{CallbackURL: r.callbackURL, Body: body, FireAt: job.FireAt})
	if err != nil {
		if errors.Is(err, ErrNotInFuture) {
			return err
		}
		log.WarnContext(ctx, "renewal reminder could not be scheduled", "error", err)
		if recErr := r.jobs.RecordFailure(context.WithoutCancel(ctx), job.CredentialID, err.Error()); recErr != nil {
			log.ErrorContext(ctx, "failed to record renewal job failure", "error", recErr)
		}
		return err
	}

	if err := r.jobs.MarkSubmitted(ctx, job.CredentialID, jobID, r.clock.Now()); err != nil {
		// The wake-up is queued; a resubmission only produces a duplicate the
		// reminder claim absorbs.
		log.ErrorContext(ctx, "failed to mark renewal job submitted", "job_id", jobID, "error", err)
		return err
	}
	job.JobID = jobID
	log.InfoContext(ctx, "renewal reminder scheduled", "job_id", jobID)
	return nil
}
