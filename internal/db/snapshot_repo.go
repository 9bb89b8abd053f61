package db

import (
	"context"

	"daypass/internal/types"
)

// SnapshotRepository provides data access for the analytics_snapshots table.
// Rows are written once; only the two notification flags are updated.
type SnapshotRepository struct {
	db DBTX
}

// NewSnapshotRepository creates a SnapshotRepository.
func NewSnapshotRepository(db DBTX) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Create inserts the snapshot for a newly issued credential.
func (r *SnapshotRepository) Create(ctx context.Context, s *types.AnalyticsSnapshot) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO analytics_snapshots (id, credential_id, seller_id, location_id, distributor_id, channel,
			guests, days, pricing, welcome_email_sent, rebuy_email_scheduled, created_at, delivery_method)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		s.ID,
		s.CredentialID,
		s.SellerID,
		nilIfEmpty(s.LocationID),
		nilIfEmpty(s.DistributorID),
		s.Channel,
		s.Guests,
		s.Days,
		s.Pricing,
		s.WelcomeEmailSent,
		s.RebuyEmailScheduled,
		s.CreatedAt,
		s.DeliveryMethod,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create analytics snapshot", err)
	}
	return nil
}

// GetByCredentialID loads the snapshot for a credential.
func (r *SnapshotRepository) GetByCredentialID(ctx context.Context, credentialID string) (*types.AnalyticsSnapshot, error) {
	var s types.AnalyticsSnapshot
	err := r.db.QueryRow(ctx,
		`SELECT id, credential_id, seller_id, COALESCE(location_id, ''), COALESCE(distributor_id, ''), channel,
			guests, days, pricing, welcome_email_sent, rebuy_email_scheduled, created_at, delivery_method
		 FROM analytics_snapshots WHERE credential_id = $1`,
		credentialID,
	).Scan(
		&s.ID,
		&s.CredentialID,
		&s.SellerID,
		&s.LocationID,
		&s.DistributorID,
		&s.Channel,
		&s.Guests,
		&s.Days,
		&s.Pricing,
		&s.WelcomeEmailSent,
		&s.RebuyEmailScheduled,
		&s.CreatedAt,
		&s.DeliveryMethod,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, types.NewAppError(types.ErrCodeNotFoundSnapshot, "analytics snapshot not found", err)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load analytics snapshot", err)
	}
	return &s, nil
}

// MarkWelcomeSent sets welcome_email_sent.
func (r *SnapshotRepository) MarkWelcomeSent(ctx context.Context, credentialID string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE analytics_snapshots SET welcome_email_sent = true WHERE credential_id = $1`,
		credentialID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to mark welcome email sent", err)
	}
	return nil
}

// ClaimReminder marks the renewal reminder handled if it is still pending.
// It returns false when the reminder was already handled, making concurrent
// renewal wake-ups send at most once.
func (r *SnapshotRepository) ClaimReminder(ctx context.Context, credentialID string) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE analytics_snapshots SET rebuy_email_scheduled = false
		 WHERE credential_id = $1 AND rebuy_email_scheduled = true`,
		credentialID,
	)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to claim renewal reminder", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ReleaseReminder returns a claimed reminder to pending after a failed send.
func (r *SnapshotRepository) ReleaseReminder(ctx context.Context, credentialID string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE analytics_snapshots SET rebuy_email_scheduled = true WHERE credential_id = $1`,
		credentialID,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to release renewal reminder", err)
	}
	return nil
}
