package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"daypass/internal/types"
)

// TxBeginner is satisfied by *pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// TxManager implements types.TransactionManager over a pgx pool.
type TxManager struct {
	pool TxBeginner
}

// NewTxManager creates a TxManager.
func NewTxManager(pool TxBeginner) *TxManager {
	return &TxManager{pool: pool}
}

// RunInTx begins a transaction, hands fn repositories bound to it, and
// commits when fn returns nil. Any error or panic rolls back.
func (m *TxManager) RunInTx(ctx context.Context, fn func(ctx context.Context, repos types.IssuanceRepositories) error) (err error) {
	tx, err := m.pool.Begin(ctx)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to begin transaction", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(context.WithoutCancel(ctx))
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				err = fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
			}
		}
	}()

	if err = fn(ctx, newIssuanceRepos(tx)); err != nil {
		return err
	}
	if err = tx.Commit(ctx); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to commit transaction", err)
	}
	return nil
}

// issuanceRepos adapts the individual repositories to types.IssuanceRepositories.
type issuanceRepos struct {
	schedules   *ScheduleRepository
	credentials *CredentialRepository
	tokens      *TokenRepository
	snapshots   *SnapshotRepository
	renewals    *RenewalJobRepository
}

func newIssuanceRepos(db DBTX) *issuanceRepos {
	return &issuanceRepos{
		schedules:   NewScheduleRepository(db),
		credentials: NewCredentialRepository(db),
		tokens:      NewTokenRepository(db),
		snapshots:   NewSnapshotRepository(db),
		renewals:    NewRenewalJobRepository(db),
	}
}

func (r *issuanceRepos) LockSchedule(ctx context.Context, id string) (*types.ScheduleRecord, error) {
	return r.schedules.LockForActivation(ctx, id)
}

func (r *issuanceRepos) MarkProcessed(ctx context.Context, id, code string, at time.Time) error {
	return r.schedules.MarkProcessed(ctx, id, code, at)
}

func (r *issuanceRepos) CreateCredential(ctx context.Context, c *types.Credential) error {
	return r.credentials.Create(ctx, c)
}

func (r *issuanceRepos) CreateAccessToken(ctx context.Context, t *types.AccessToken) error {
	return r.tokens.Create(ctx, t)
}

func (r *issuanceRepos) CreateSnapshot(ctx context.Context, s *types.AnalyticsSnapshot) error {
	return r.snapshots.Create(ctx, s)
}

func (r *issuanceRepos) CreateRenewalJob(ctx context.Context, j *types.RenewalJob) error {
	return r.renewals.Create(ctx, j)
}
