package types

import (
	"context"
	"time"
)

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the real system time (always UTC).
type RealClock struct{}

// Now returns the current time in UTC.
func (RealClock) Now() time.Time { return time.Now().UTC() }

// HealthProber is implemented by dependencies that can report liveness.
type HealthProber interface {
	Ping(ctx context.Context) error
}

// IssuanceRepositories is the set of writes that make up one activation.
// All calls made through a single value share one database transaction.
type IssuanceRepositories interface {
	LockSchedule(ctx context.Context, id string) (*ScheduleRecord, error)
	MarkProcessed(ctx context.Context, id, credentialCode string, at time.Time) error
	CreateCredential(ctx context.Context, c *Credential) error
	CreateAccessToken(ctx context.Context, t *AccessToken) error
	CreateSnapshot(ctx context.Context, s *AnalyticsSnapshot) error
	CreateRenewalJob(ctx context.Context, j *RenewalJob) error
}

// TransactionManager runs fn inside a transaction. fn returning an error
// rolls back every write made through repos.
type TransactionManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, repos IssuanceRepositories) error) error
}
