package activation

import (
	"context"
	"log/slog"
	"time"

	"daypass/internal/issuer"
	"daypass/internal/notifications/email"
	"daypass/internal/pricing"
	"daypass/internal/types"
)

// Outcome describes the result of one activation attempt.
type Outcome struct {
	Status      types.ActivationStatus
	Credential  *types.Credential
	AccessToken *types.AccessToken
	Snapshot    *types.AnalyticsSnapshot
	// WelcomeSent and RenewalScheduled report the best-effort steps.
	WelcomeSent      bool
	RenewalScheduled bool
}

// OrchestratorConfig wires an Orchestrator.
type OrchestratorConfig struct {
	Tx             types.TransactionManager
	Configurations ConfigurationStore
	Issuer         *issuer.Issuer
	Welcome        WelcomeSender
	Snapshots      WelcomeRecorder
	Renewals       RenewalSubmitter
	Metrics        Metrics
	Clock          types.Clock
	// StoreTimeout bounds the issuance transaction. Zero means no bound.
	StoreTimeout time.Duration
	Logger       *slog.Logger
}

// Orchestrator performs activations.
type Orchestrator struct {
	cfg     OrchestratorConfig
	metrics Metrics
	clock   types.Clock
	logger  *slog.Logger
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	o := &Orchestrator{cfg: cfg, metrics: cfg.Metrics, clock: cfg.Clock, logger: cfg.Logger}
	if o.metrics == nil {
		o.metrics = noopMetrics{}
	}
	if o.clock == nil {
		o.clock = types.RealClock{}
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// issued carries what the transaction produced to the post-commit steps.
type issued struct {
	result *issuer.Result
	config *types.PassConfiguration
	seller *types.Seller
}

// Activate issues the pass for schedule record id. A record that is already
// processed yields ActivationAlreadyProcessed and no writes. The record row
// stays locked from the processed check until the commit, so concurrent
// duplicate wake-ups serialize and only the first one issues.
func (o *Orchestrator) Activate(ctx context.Context, id string) (*Outcome, error) {
	log := o.logger.With("schedule_id", id)

	var (
		out     *issued
		already bool
	)
	err := o.runInTx(ctx, func(ctx context.Context, repos types.IssuanceRepositories) error {
		rec, err := repos.LockSchedule(ctx, id)
		if err != nil {
			return err
		}
		if rec.IsProcessed {
			already = true
			return nil
		}

		now := o.clock.Now()
		out, err = o.issue(ctx, repos, rec.Order(), now)
		if err != nil {
			return err
		}
		return repos.MarkProcessed(ctx, rec.ID, out.result.Credential.Code, now)
	})
	if types.IsCode(err, types.ErrCodeConflictAlreadyProcessed) {
		already, err = true, nil
	}
	if err != nil {
		return nil, err
	}
	if already {
		log.InfoContext(ctx, "schedule already processed, skipping")
		return &Outcome{Status: types.ActivationAlreadyProcessed}, nil
	}

	log.InfoContext(ctx, "schedule activated",
		"credential_id", out.result.Credential.ID,
		"seller_id", out.result.Credential.SellerID,
	)
	return o.finish(ctx, out), nil
}

// ActivateNow issues a pass directly from order, without a schedule record.
func (o *Orchestrator) ActivateNow(ctx context.Context, order types.PassOrder) (*Outcome, error) {
	var out *issued
	err := o.runInTx(ctx, func(ctx context.Context, repos types.IssuanceRepositories) error {
		var err error
		out, err = o.issue(ctx, repos, order, o.clock.Now())
		return err
	})
	if err != nil {
		o.metrics.RecordActivation(ctx, types.ActivationFailed, order.Channel)
		return nil, err
	}
	o.logger.InfoContext(ctx, "pass issued immediately",
		"credential_id", out.result.Credential.ID,
		"seller_id", order.SellerID,
	)
	return o.finish(ctx, out), nil
}

func (o *Orchestrator) runInTx(ctx context.Context, fn func(ctx context.Context, repos types.IssuanceRepositories) error) error {
	if o.cfg.StoreTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.StoreTimeout)
		defer cancel()
	}
	return o.cfg.Tx.RunInTx(ctx, fn)
}

// issue resolves the configuration, prices the order and writes the
// credential triple through repos.
func (o *Orchestrator) issue(ctx context.Context, repos types.IssuanceRepositories, order types.PassOrder, now time.Time) (*issued, error) {
	cfg, err := o.ResolveConfiguration(ctx, order)
	if err != nil {
		return nil, err
	}

	breakdown, err := pricing.Calculate(cfg.Pricing, order.Guests, order.Days)
	if err != nil {
		return nil, err
	}

	seller, err := o.cfg.Configurations.GetSeller(ctx, order.SellerID)
	if err != nil {
		o.logger.WarnContext(ctx, "seller attribution unavailable", "seller_id", order.SellerID, "error", err)
		seller = nil
	}

	result, err := o.cfg.Issuer.Issue(ctx, repos, issuer.Input{
		Order:          order,
		Pricing:        breakdown,
		Seller:         seller,
		IssuedAt:       now,
		RenewalEnabled: cfg.Renewal.Enabled,
	})
	if err != nil {
		return nil, err
	}
	return &issued{result: result, config: cfg, seller: seller}, nil
}

// ResolveConfiguration returns the sentinel default configuration or loads
// the named one. A missing named configuration is an error.
func (o *Orchestrator) ResolveConfiguration(ctx context.Context, order types.PassOrder) (*types.PassConfiguration, error) {
	if order.ConfigurationID == "" || order.ConfigurationID == types.DefaultConfigurationID {
		return types.DefaultConfiguration(order.SellerID), nil
	}
	return o.cfg.Configurations.GetByID(ctx, order.ConfigurationID)
}

// finish runs the post-commit steps. Neither can fail the activation.
func (o *Orchestrator) finish(ctx context.Context, in *issued) *Outcome {
	cred := in.result.Credential
	log := o.logger.With("credential_id", cred.ID)
	out := &Outcome{
		Status:      types.ActivationActivated,
		Credential:  cred,
		AccessToken: in.result.AccessToken,
		Snapshot:    in.result.Snapshot,
	}

	if o.cfg.Welcome != nil {
		out.WelcomeSent = o.cfg.Welcome.SendWelcome(ctx, email.WelcomeInput{
			Credential:  cred,
			AccessToken: in.result.AccessToken,
			Config:      in.config,
			Seller:      in.seller,
		})
	}
	if out.WelcomeSent {
		if err := o.cfg.Snapshots.MarkWelcomeSent(ctx, cred.ID); err != nil {
			log.ErrorContext(ctx, "failed to record welcome email", "error", err)
		} else {
			out.Snapshot.WelcomeEmailSent = true
		}
	}

	if job := in.result.RenewalJob; job != nil && o.cfg.Renewals != nil {
		if err := o.cfg.Renewals.Submit(ctx, job); err != nil {
			// The job row stays unsubmitted and the sweep picks it up.
			log.WarnContext(ctx, "renewal reminder not scheduled", "error", err)
		} else {
			out.RenewalScheduled = true
		}
	}

	o.metrics.RecordActivation(ctx, types.ActivationActivated, cred.Channel)
	return out
}
