// Package issuer creates pass credentials together with their access token,
// analytics snapshot and renewal job. All writes go through one
// types.IssuanceRepositories so they commit or roll back as a unit.
package issuer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"daypass/internal/types"
)

const defaultCodeAttempts = 3

// Input is everything needed to issue one credential.
type Input struct {
	Order    types.PassOrder
	Pricing  types.PriceBreakdown
	Seller   *types.Seller
	IssuedAt time.Time
	// RenewalEnabled requests a renewal job at expiry minus the renewal offset.
	RenewalEnabled bool
}

// Result holds the rows written for one issuance. RenewalJob is nil when
// no reminder is due.
type Result struct {
	Credential  *types.Credential
	AccessToken *types.AccessToken
	Snapshot    *types.AnalyticsSnapshot
	RenewalJob  *types.RenewalJob
}

// Issuer writes credentials.
type Issuer struct {
	gen           Generator
	tokenTTL      time.Duration
	renewalOffset time.Duration
	codeAttempts  int
	logger        *slog.Logger
}

// New creates an Issuer. gen may be nil to use CryptoGenerator.
func New(gen Generator, tokenTTL, renewalOffset time.Duration, logger *slog.Logger) *Issuer {
	if gen == nil {
		gen = CryptoGenerator{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Issuer{
		gen:           gen,
		tokenTTL:      tokenTTL,
		renewalOffset: renewalOffset,
		codeAttempts:  defaultCodeAttempts,
		logger:        logger,
	}
}

// RenewalFireAt returns when the renewal reminder for a credential expiring at
// expiresAt should fire, and false if that moment is not after issuedAt.
func (i *Issuer) RenewalFireAt(issuedAt, expiresAt time.Time) (time.Time, bool) {
	fireAt := expiresAt.Add(-i.renewalOffset)
	return fireAt, fireAt.After(issuedAt)
}

// Issue persists the credential, its access token, the analytics snapshot and,
// when due, the renewal job. Expiry is computed from IssuedAt, not from the
// original schedule time. A code collision is retried with a fresh code.
func (i *Issuer) Issue(ctx context.Context, repos types.IssuanceRepositories, in Input) (*Result, error) {
	if in.Order.Days < types.MinDays {
		return nil, types.NewAppError(types.ErrCodeValidationDays, "days must be at least 1", nil)
	}

	issuedAt := in.IssuedAt.UTC()
	cred := &types.Credential{
		ID:              uuid.New().String(),
		ScheduleID:      in.Order.ScheduleID,
		SellerID:        in.Order.SellerID,
		ConfigurationID: in.Order.ConfigurationID,
		Channel:         in.Order.Channel,
		RecipientName:   in.Order.RecipientName,
		RecipientEmail:  in.Order.RecipientEmail,
		Guests:          in.Order.Guests,
		Days:            in.Order.Days,
		DeliveryMethod:  in.Order.DeliveryMethod,
		LandingPageID:   in.Order.LandingPageID,
		Cost:            in.Pricing.Total,
		IssuedAt:        issuedAt,
		ExpiresAt:       issuedAt.Add(time.Duration(in.Order.Days) * 24 * time.Hour),
		Active:          true,
	}

	if err := i.createWithUniqueCode(ctx, repos, cred); err != nil {
		return nil, err
	}

	tokenValue, err := i.gen.Token()
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to generate access token", err)
	}
	token := &types.AccessToken{
		Token:        tokenValue,
		CredentialID: cred.ID,
		ExpiresAt:    issuedAt.Add(i.tokenTTL),
		CreatedAt:    issuedAt,
	}
	if err := repos.CreateAccessToken(ctx, token); err != nil {
		return nil, err
	}

	var job *types.RenewalJob
	if in.RenewalEnabled {
		if fireAt, ok := i.RenewalFireAt(issuedAt, cred.ExpiresAt); ok {
			job = &types.RenewalJob{CredentialID: cred.ID, FireAt: fireAt}
		} else {
			i.logger.InfoContext(ctx, "renewal reminder time already passed, not scheduling",
				"credential_id", cred.ID,
				"fire_at", fireAt,
			)
		}
	}

	snap := &types.AnalyticsSnapshot{
		ID:                  uuid.New().String(),
		CredentialID:        cred.ID,
		SellerID:            cred.SellerID,
		Channel:             cred.Channel,
		Guests:              cred.Guests,
		Days:                cred.Days,
		DeliveryMethod:      cred.DeliveryMethod,
		Pricing:             in.Pricing,
		RebuyEmailScheduled: job != nil,
		CreatedAt:           issuedAt,
	}
	if in.Seller != nil {
		snap.LocationID = in.Seller.LocationID
		snap.DistributorID = in.Seller.DistributorID
	}
	if err := repos.CreateSnapshot(ctx, snap); err != nil {
		return nil, err
	}

	if job != nil {
		if err := repos.CreateRenewalJob(ctx, job); err != nil {
			return nil, err
		}
	}

	return &Result{Credential: cred, AccessToken: token, Snapshot: snap, RenewalJob: job}, nil
}

func (i *Issuer) createWithUniqueCode(ctx context.Context, repos types.IssuanceRepositories, cred *types.Credential) error {
	prefix := cred.Channel.CodePrefix()
	for attempt := 1; attempt <= i.codeAttempts; attempt++ {
		code, err := i.gen.Code(prefix)
		if err != nil {
			return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to generate credential code", err)
		}
		cred.Code = code

		err = repos.CreateCredential(ctx, cred)
		if err == nil {
			return nil
		}
		if !types.IsCode(err, types.ErrCodeConflictDuplicateCode) {
			return err
		}
		i.logger.WarnContext(ctx, "credential code collision, regenerating",
			"attempt", attempt,
			"prefix", prefix,
		)
	}
	return types.NewAppError(types.ErrCodeInternalUnexpected,
		fmt.Sprintf("no unique credential code after %d attempts", i.codeAttempts), nil)
}
