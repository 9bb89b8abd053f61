// Package app assembles the pass pipeline from configuration. The API, the
// wake-up relay and the sweeper binaries share this wiring so every entry
// point runs the same components against the same stores.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"

	"daypass/internal/activation"
	"daypass/internal/config"
	"daypass/internal/db"
	"daypass/internal/external"
	"daypass/internal/issuer"
	"daypass/internal/notifications/email"
	"daypass/internal/passes"
	"daypass/internal/scheduler"
	"daypass/internal/telemetry"
	"daypass/internal/types"
)

// Metrics is the union of the recorders the pipeline reports to.
type Metrics interface {
	activation.Metrics
	email.ReminderMetrics
	RecordRequest(method, endpoint, status string, duration time.Duration)
}

// Pipeline holds the wired components.
type Pipeline struct {
	Pool      *pgxpool.Pool
	Metrics   Metrics
	Scheduler scheduler.Scheduler

	Schedules   *db.ScheduleRepository
	RenewalJobs *db.RenewalJobRepository

	Orchestrator *activation.Orchestrator
	Controller   *activation.Controller
	Reminders    *email.ReminderSender
	Renewals     *scheduler.RenewalSubmitter
	Passes       *passes.Service
	Sweeper      *scheduler.Sweeper
}

// Close releases the database pool.
func (p *Pipeline) Close() {
	if p.Pool != nil {
		p.Pool.Close()
	}
}

// LoadAWSConfig loads the SDK configuration for cfg.Region, pointing every
// client at cfg.EndpointURL when one is set (LocalStack).
func LoadAWSConfig(ctx context.Context, cfg config.AWSConfig) (aws.Config, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("loading AWS SDK config: %w", err)
	}
	if cfg.EndpointURL != "" {
		awsCfg.BaseEndpoint = aws.String(cfg.EndpointURL)
	}
	return awsCfg, nil
}

// Build connects to the database and wires the pipeline.
func Build(ctx context.Context, cfg *config.Config, awsCfg aws.Config, logger *slog.Logger) (*Pipeline, error) {
	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	p, err := assemble(cfg, pool, awsCfg, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}
	p.Pool = pool
	return p, nil
}

// Conn is the database handle the repositories and transactions run on.
// *pgxpool.Pool satisfies it.
type Conn interface {
	db.DBTX
	db.TxBeginner
}

// assemble wires the components over conn. It performs no I/O.
func assemble(cfg *config.Config, conn Conn, awsCfg aws.Config, logger *slog.Logger) (*Pipeline, error) {
	clock := types.RealClock{}
	metrics := NewMetrics(cfg.Observability, awsCfg, logger)

	provider, err := NewEmailProvider(cfg.Email, awsCfg, logger)
	if err != nil {
		return nil, err
	}
	sched, err := NewScheduler(cfg.Scheduler, awsCfg, clock, logger)
	if err != nil {
		return nil, err
	}

	schedules := db.NewScheduleRepository(conn)
	configurations := db.NewConfigurationRepository(conn)
	credentials := db.NewCredentialRepository(conn)
	snapshots := db.NewSnapshotRepository(conn)
	templates := db.NewTemplateRepository(conn)
	renewalJobs := db.NewRenewalJobRepository(conn)

	from := types.SenderIdentity{Name: cfg.Email.FromName, Address: cfg.Email.FromAddress}
	base := cfg.Server.APIExternalURL

	welcome := email.NewDispatcher(email.DispatcherConfig{
		Provider:  provider,
		Templates: templates,
		From:      from,
		PortalURL: cfg.Activation.PortalURL,
		Timeout:   cfg.Email.SendTimeout,
		Disabled:  !cfg.Email.Enabled,
		Logger:    logger,
	})
	alerter := email.NewOperatorAlerter(provider, from, cfg.Email.OperatorAddress, cfg.Email.SendTimeout, logger)

	renewals := scheduler.NewRenewalSubmitter(sched, renewalJobs,
		scheduler.CallbackURL(base, types.RenewalWakeupPath), clock, logger)

	orch := activation.NewOrchestrator(activation.OrchestratorConfig{
		Tx:             db.NewTxManager(conn),
		Configurations: configurations,
		Issuer:         issuer.New(issuer.CryptoGenerator{}, cfg.Activation.AccessTokenTTL, cfg.Activation.RenewalOffset, logger),
		Welcome:        welcome,
		Snapshots:      snapshots,
		Renewals:       renewals,
		Metrics:        metrics,
		Clock:          clock,
		StoreTimeout:   cfg.Database.StatementTimeout,
		Logger:         logger,
	})
	controller := activation.NewController(activation.ControllerConfig{
		Orchestrator: orch,
		Schedules:    schedules,
		Alerter:      alerter,
		Metrics:      metrics,
		MaxRetries:   cfg.Activation.MaxRetries,
		Clock:        clock,
		Logger:       logger,
	})

	reminders := email.NewReminderSender(email.ReminderConfig{
		Credentials:    credentials,
		Reminders:      snapshots,
		Configurations: configurations,
		Jobs:           renewalJobs,
		Metrics:        metrics,
		Templates:      templates,
		Provider:       provider,
		From:           from,
		RenewalURL:     cfg.Activation.RenewalURL,
		Timeout:        cfg.Email.SendTimeout,
		Disabled:       !cfg.Email.Enabled,
		Clock:          clock,
		Logger:         logger,
	})

	svc := passes.NewService(passes.Config{
		Schedules:   schedules,
		Activator:   orch,
		Scheduler:   sched,
		CallbackURL: scheduler.CallbackURL(base, types.ActivationWakeupPath),
		Clock:       clock,
		Logger:      logger,
	})

	sweeper := scheduler.NewSweeper(scheduler.SweeperConfig{
		Schedules:   schedules,
		RenewalJobs: renewalJobs,
		JobStore:    renewalJobs,
		Activator:   controller,
		Renewals:    renewals,
		Reminders:   reminders,
		Grace:       cfg.Activation.SweepGrace,
		BatchSize:   cfg.Activation.SweepBatchSize,
		Concurrency: cfg.Activation.SweepConcurrency,
		Logger:      logger,
	})

	return &Pipeline{
		Metrics:      metrics,
		Scheduler:    sched,
		Schedules:    schedules,
		RenewalJobs:  renewalJobs,
		Orchestrator: orch,
		Controller:   controller,
		Reminders:    reminders,
		Renewals:     renewals,
		Passes:       svc,
		Sweeper:      sweeper,
	}, nil
}

// NewMetrics returns CloudWatch metrics when enabled and no-op metrics
// otherwise.
func NewMetrics(cfg config.ObservabilityConfig, awsCfg aws.Config, logger *slog.Logger) Metrics {
	if !cfg.EnableMetrics {
		return telemetry.NoopMetrics{}
	}
	return telemetry.NewCloudWatchMetrics(cloudwatch.NewFromConfig(awsCfg), cfg.MetricNamespace, logger)
}

// NewEmailProvider selects the email backend named by cfg.Provider.
func NewEmailProvider(cfg config.EmailConfig, awsCfg aws.Config, logger *slog.Logger) (external.EmailProvider, error) {
	switch cfg.Provider {
	case "ses":
		return external.NewSESClientFromConfig(awsCfg, cfg.SESConfigSet, logger), nil
	case "sendgrid":
		if !cfg.SendGridAPIKey.IsSet() {
			return nil, errors.New("app: SENDGRID_API_KEY is required for the sendgrid provider")
		}
		return external.NewSendGridClient(nil, external.SendGridConfig{
			APIKey:  cfg.SendGridAPIKey,
			Timeout: cfg.SendTimeout,
			Logger:  logger,
		}), nil
	case "stub":
		return external.NewStubEmailProvider(logger), nil
	default:
		return nil, fmt.Errorf("app: unknown email provider %q", cfg.Provider)
	}
}

// NewScheduler selects the deferred job backend named by cfg.Backend.
func NewScheduler(cfg config.SchedulerConfig, awsCfg aws.Config, clock types.Clock, logger *slog.Logger) (scheduler.Scheduler, error) {
	switch cfg.Backend {
	case "http":
		return scheduler.NewHTTPScheduler(NewCallbackClient(cfg, "scheduler"), scheduler.HTTPConfig{
			BaseURL: cfg.BaseURL,
			Token:   cfg.Token,
			Retries: cfg.MaxRetries,
			Clock:   clock,
			Logger:  logger,
		}), nil
	case "sqs":
		if cfg.QueueURL == "" {
			return nil, errors.New("app: SQS_WAKEUPS is required for the sqs scheduler")
		}
		return scheduler.NewSQSScheduler(sqs.NewFromConfig(awsCfg), cfg.QueueURL, clock, logger), nil
	default:
		return nil, fmt.Errorf("app: unknown scheduler backend %q", cfg.Backend)
	}
}

// NewCallbackClient builds the outbound client used for scheduler calls
// and relayed wake-ups. cfg.MaxRetries is the queue's redelivery count and
// does not apply here.
func NewCallbackClient(cfg config.SchedulerConfig, breaker string) *external.BaseClient {
	return external.NewBaseClient(&http.Client{Timeout: cfg.RequestTimeout}, breaker, external.DefaultRetryPolicy(), "daypass/1.0",
		external.WithUpstreamCode(types.ErrCodeUpstreamScheduler))
}
