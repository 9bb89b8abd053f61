package db

import (
	"context"
	"time"

	"daypass/internal/types"
)

const scheduleColumns = `id, seller_id, configuration_id, channel, recipient_name, recipient_email,
	guests, days, delivery_method, COALESCE(landing_page_id, ''), target_time, COALESCE(job_id, ''),
	is_processed, processed_at, COALESCE(created_credential_code, ''), retry_count, escalated_at, created_at`

// ScheduleRepository provides data access for the pass_schedules table.
type ScheduleRepository struct {
	db DBTX
}

// NewScheduleRepository creates a ScheduleRepository backed by the given
// connection (pool or transaction).
func NewScheduleRepository(db DBTX) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

// Create inserts a new unprocessed schedule record.
func (r *ScheduleRepository) Create(ctx context.Context, rec *types.ScheduleRecord) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO pass_schedules (id, seller_id, configuration_id, channel, recipient_name, recipient_email,
			guests, days, delivery_method, landing_page_id, target_time, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, COALESCE($12, NOW()))`,
		rec.ID,
		rec.SellerID,
		rec.ConfigurationID,
		rec.Channel,
		rec.RecipientName,
		rec.RecipientEmail,
		rec.Guests,
		rec.Days,
		rec.DeliveryMethod,
		nilIfEmpty(rec.LandingPageID),
		rec.TargetTime,
		nilIfZeroTime(rec.CreatedAt),
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create schedule record", err)
	}
	return nil
}

// GetByID loads a schedule record without locking it.
func (r *ScheduleRepository) GetByID(ctx context.Context, id string) (*types.ScheduleRecord, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+scheduleColumns+` FROM pass_schedules WHERE id = $1`, id)
	return scanSchedule(row, id)
}

// LockForActivation loads the record with a row lock held until the
// surrounding transaction ends. A concurrent activation of the same record
// blocks here and then observes is_processed.
func (r *ScheduleRepository) LockForActivation(ctx context.Context, id string) (*types.ScheduleRecord, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+scheduleColumns+` FROM pass_schedules WHERE id = $1 FOR UPDATE`, id)
	return scanSchedule(row, id)
}

// MarkProcessed flips is_processed exactly once. A second call for the same
// record returns ErrCodeConflictAlreadyProcessed.
func (r *ScheduleRepository) MarkProcessed(ctx context.Context, id, credentialCode string, at time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE pass_schedules
		 SET is_processed = true, processed_at = $2, created_credential_code = $3
		 WHERE id = $1 AND is_processed = false`,
		id, at, credentialCode,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to mark schedule processed", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeConflictAlreadyProcessed, "schedule record already processed", nil)
	}
	return nil
}

// IncrementRetry bumps retry_count for an unprocessed record and returns the
// new value.
func (r *ScheduleRepository) IncrementRetry(ctx context.Context, id string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx,
		`UPDATE pass_schedules SET retry_count = retry_count + 1
		 WHERE id = $1 AND is_processed = false
		 RETURNING retry_count`,
		id,
	).Scan(&count)
	if err != nil {
		if isNoRows(err) {
			return 0, types.NewAppError(types.ErrCodeConflictAlreadyProcessed, "schedule record missing or already processed", err)
		}
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to increment retry count", err)
	}
	return count, nil
}

// MarkEscalated records that the operator was warned. It returns false when
// another caller already did so.
func (r *ScheduleRepository) MarkEscalated(ctx context.Context, id string, at time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE pass_schedules SET escalated_at = $2 WHERE id = $1 AND escalated_at IS NULL`,
		id, at,
	)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to mark schedule escalated", err)
	}
	return tag.RowsAffected() == 1, nil
}

// SetJobID stores the scheduler's job identifier for later correlation.
func (r *ScheduleRepository) SetJobID(ctx context.Context, id, jobID string) error {
	_, err := r.db.Exec(ctx, `UPDATE pass_schedules SET job_id = $2 WHERE id = $1`, id, jobID)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to store scheduler job id", err)
	}
	return nil
}

// Delete removes an unprocessed record so a pending wake-up finds nothing.
// Deleting a processed or missing record is a no-op.
func (r *ScheduleRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM pass_schedules WHERE id = $1 AND is_processed = false`, id)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to delete schedule record", err)
	}
	return nil
}

// ListOverdue returns IDs of unprocessed, unescalated records whose target
// time is before cutoff, oldest first.
func (r *ScheduleRepository) ListOverdue(ctx context.Context, cutoff time.Time, limit int) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id FROM pass_schedules
		 WHERE is_processed = false AND escalated_at IS NULL AND target_time < $1
		 ORDER BY target_time
		 LIMIT $2`,
		cutoff, limit,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list overdue schedules", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan overdue schedule", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate overdue schedules", err)
	}
	return ids, nil
}

func scanSchedule(row interface{ Scan(dest ...any) error }, id string) (*types.ScheduleRecord, error) {
	var rec types.ScheduleRecord
	err := row.Scan(
		&rec.ID,
		&rec.SellerID,
		&rec.ConfigurationID,
		&rec.Channel,
		&rec.RecipientName,
		&rec.RecipientEmail,
		&rec.Guests,
		&rec.Days,
		&rec.DeliveryMethod,
		&rec.LandingPageID,
		&rec.TargetTime,
		&rec.JobID,
		&rec.IsProcessed,
		&rec.ProcessedAt,
		&rec.CreatedCredentialCode,
		&rec.RetryCount,
		&rec.EscalatedAt,
		&rec.CreatedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, types.NewAppErrorWithDetails(types.ErrCodeNotFoundSchedule, "schedule record not found", err,
				map[string]any{"record_id": id})
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load schedule record", err)
	}
	return &rec, nil
}
