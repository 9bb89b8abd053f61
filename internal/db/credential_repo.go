package db

import (
	"context"

	"daypass/internal/types"
)

// CredentialRepository provides data access for the credentials table.
type CredentialRepository struct {
	db DBTX
}

// NewCredentialRepository creates a CredentialRepository.
func NewCredentialRepository(db DBTX) *CredentialRepository {
	return &CredentialRepository{db: db}
}

// Create inserts a credential. A code collision does not abort the enclosing
// transaction: the insert is skipped and ErrCodeConflictDuplicateCode is
// returned so the caller can retry with a fresh code.
func (r *CredentialRepository) Create(ctx context.Context, c *types.Credential) error {
	tag, err := r.db.Exec(ctx,
		`INSERT INTO credentials (id, code, schedule_id, seller_id, configuration_id, channel,
			recipient_name, recipient_email, guests, days, delivery_method, landing_page_id,
			cost, issued_at, expires_at, active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		 ON CONFLICT (code) DO NOTHING`,
		c.ID,
		c.Code,
		nilIfEmpty(c.ScheduleID),
		c.SellerID,
		c.ConfigurationID,
		c.Channel,
		c.RecipientName,
		c.RecipientEmail,
		c.Guests,
		c.Days,
		c.DeliveryMethod,
		nilIfEmpty(c.LandingPageID),
		c.Cost,
		c.IssuedAt,
		c.ExpiresAt,
		c.Active,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create credential", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeConflictDuplicateCode, "credential code already in use", nil)
	}
	return nil
}

// GetByID loads a credential.
func (r *CredentialRepository) GetByID(ctx context.Context, id string) (*types.Credential, error) {
	var c types.Credential
	err := r.db.QueryRow(ctx,
		`SELECT id, code, COALESCE(schedule_id::text, ''), seller_id, configuration_id, channel,
			recipient_name, recipient_email, guests, days, delivery_method, COALESCE(landing_page_id, ''),
			cost, issued_at, expires_at, active
		 FROM credentials WHERE id = $1`,
		id,
	).Scan(
		&c.ID,
		&c.Code,
		&c.ScheduleID,
		&c.SellerID,
		&c.ConfigurationID,
		&c.Channel,
		&c.RecipientName,
		&c.RecipientEmail,
		&c.Guests,
		&c.Days,
		&c.DeliveryMethod,
		&c.LandingPageID,
		&c.Cost,
		&c.IssuedAt,
		&c.ExpiresAt,
		&c.Active,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, types.NewAppErrorWithDetails(types.ErrCodeNotFoundCredential, "credential not found", err,
				map[string]any{"credential_id": id})
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load credential", err)
	}
	return &c, nil
}

// TokenRepository provides data access for the access_tokens table.
type TokenRepository struct {
	db DBTX
}

// NewTokenRepository creates a TokenRepository.
func NewTokenRepository(db DBTX) *TokenRepository {
	return &TokenRepository{db: db}
}

// Create inserts the access token for a credential. The credential_id column
// is unique, so a credential can never receive a second token.
func (r *TokenRepository) Create(ctx context.Context, t *types.AccessToken) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO access_tokens (token, credential_id, expires_at, created_at)
		 VALUES ($1, $2, $3, $4)`,
		t.Token, t.CredentialID, t.ExpiresAt, t.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return types.NewAppError(types.ErrCodeConflictDuplicateCode, "access token already exists for credential", err)
		}
		return types.NewAppError(types.ErrCodeInternalDB, "failed to create access token", err)
	}
	return nil
}

// GetByCredentialID returns the token issued with a credential.
func (r *TokenRepository) GetByCredentialID(ctx context.Context, credentialID string) (*types.AccessToken, error) {
	var t types.AccessToken
	err := r.db.QueryRow(ctx,
		`SELECT token, credential_id, expires_at, created_at FROM access_tokens WHERE credential_id = $1`,
		credentialID,
	).Scan(&t.Token, &t.CredentialID, &t.ExpiresAt, &t.CreatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, types.NewAppError(types.ErrCodeNotFoundCredential, "access token not found", err)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to load access token", err)
	}
	return &t, nil
}
