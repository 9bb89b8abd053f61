package db

import (
	"context"
	"time"

	"daypass/internal/types"
)

// RenewalJobRepository provides data access for the renewal_jobs table.
type RenewalJobRepository struct {
	db DBTX
}

// NewRenewalJobRepository creates a RenewalJobRepository.
func NewRenewalJobRepository(db DBTX) *RenewalJobRepository {
	return &RenewalJobRepository{db: db}
}

// Create records the intent to remind at job.FireAt.
func (r *RenewalJobRepository) Create(ctx context.Context, job *types.RenewalJob) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO renewal_jobs (credential_id, fire_at) VALUES ($1, $2)
		 ON CONFLICT (credential_id) DO NOTHING`,
		job.CredentialID, job.FireAt,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create renewal job", err)
	}
	return nil
}

// MarkSubmitted stores the scheduler job ID.
func (r *RenewalJobRepository) MarkSubmitted(ctx context.Context, credentialID, jobID string, at time.Time) error {
	_, err := r.db.Exec(ctx,
		`UPDATE renewal_jobs SET job_id = $2, submitted_at = $3, last_error = NULL WHERE credential_id = $1`,
		credentialID, nilIfEmpty(jobID), at,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to mark renewal job submitted", err)
	}
	return nil
}

// RecordFailure stores the last submission or send error.
func (r *RenewalJobRepository) RecordFailure(ctx context.Context, credentialID, reason string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE renewal_jobs SET last_error = $2 WHERE credential_id = $1`,
		credentialID, reason,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to record renewal job failure", err)
	}
	return nil
}

// ListUnsubmitted returns jobs that never reached the scheduler, earliest
// fire time first.
func (r *RenewalJobRepository) ListUnsubmitted(ctx context.Context, limit int) ([]*types.RenewalJob, error) {
	rows, err := r.db.Query(ctx,
		`SELECT credential_id, fire_at, COALESCE(last_error, '') FROM renewal_jobs
		 WHERE submitted_at IS NULL
		 ORDER BY fire_at
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list unsubmitted renewal jobs", err)
	}
	defer rows.Close()

	var jobs []*types.RenewalJob
	for rows.Next() {
		var j types.RenewalJob
		if err := rows.Scan(&j.CredentialID, &j.FireAt, &j.LastError); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan renewal job", err)
		}
		jobs = append(jobs, &j)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate renewal jobs", err)
	}
	return jobs, nil
}
