// Package activation turns schedule records into issued passes.
//
// The Orchestrator performs one activation: under a row lock on the schedule
// record it prices the pass, issues the credential triple and marks the
// record processed, all in one transaction. The welcome email and the
// renewal job submission follow the commit and never fail the activation.
//
// The Controller wraps the Orchestrator with the retry and escalation rules
// applied to wake-ups.
package activation

import (
	"context"
	"time"

	"daypass/internal/notifications/email"
	"daypass/internal/types"
)

// ScheduleStore reads and updates schedule records outside the issuance
// transaction.
type ScheduleStore interface {
	GetByID(ctx context.Context, id string) (*types.ScheduleRecord, error)
	IncrementRetry(ctx context.Context, id string) (int, error)
	MarkEscalated(ctx context.Context, id string, at time.Time) (bool, error)
}

// ConfigurationStore loads seller configuration and attribution.
type ConfigurationStore interface {
	GetByID(ctx context.Context, id string) (*types.PassConfiguration, error)
	GetSeller(ctx context.Context, id string) (*types.Seller, error)
}

// WelcomeSender delivers the welcome email.
type WelcomeSender interface {
	SendWelcome(ctx context.Context, in email.WelcomeInput) bool
}

// WelcomeRecorder flips the snapshot's welcome flag.
type WelcomeRecorder interface {
	MarkWelcomeSent(ctx context.Context, credentialID string) error
}

// RenewalSubmitter hands a renewal job to the deferred job scheduler.
type RenewalSubmitter interface {
	Submit(ctx context.Context, job *types.RenewalJob) error
}

// Alerter delivers operator warnings.
type Alerter interface {
	Warn(ctx context.Context, w email.OperatorWarning) bool
}

// Metrics records pipeline outcomes. telemetry.CloudWatchMetrics and
// telemetry.NoopMetrics implement it.
type Metrics interface {
	RecordActivation(ctx context.Context, status types.ActivationStatus, channel types.IssuanceChannel)
	RecordEscalation(ctx context.Context)
}

type noopMetrics struct{}

func (noopMetrics) RecordActivation(context.Context, types.ActivationStatus, types.IssuanceChannel) {}
func (noopMetrics) RecordEscalation(context.Context)                                                {}
