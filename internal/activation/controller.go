package activation

import (
	"context"
	"log/slog"

	"daypass/internal/notifications/email"
	"daypass/internal/types"
)

// DefaultMaxRetries is the retry budget before an operator is warned.
const DefaultMaxRetries = 2

// ControllerConfig wires a Controller.
type ControllerConfig struct {
	Orchestrator *Orchestrator
	Schedules    ScheduleStore
	Alerter      Alerter
	Metrics      Metrics
	MaxRetries   int
	Clock        types.Clock
	Logger       *slog.Logger
}

// Controller applies retry counting and escalation around activations.
type Controller struct {
	orch       *Orchestrator
	schedules  ScheduleStore
	alerter    Alerter
	metrics    Metrics
	maxRetries int
	clock      types.Clock
	logger     *slog.Logger
}

// NewController creates a Controller. A negative MaxRetries is treated as
// zero.
func NewController(cfg ControllerConfig) *Controller {
	c := &Controller{
		orch:       cfg.Orchestrator,
		schedules:  cfg.Schedules,
		alerter:    cfg.Alerter,
		metrics:    cfg.Metrics,
		maxRetries: max(cfg.MaxRetries, 0),
		clock:      cfg.Clock,
		logger:     cfg.Logger,
	}
	if c.metrics == nil {
		c.metrics = noopMetrics{}
	}
	if c.clock == nil {
		c.clock = types.RealClock{}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Handle processes one activation wake-up.
//
// A missing record returns its not-found error. A processed record is a
// no-op. An overdue record whose retries are exhausted is not attempted;
// the operator is warned once and ActivationExhausted is returned. A failed
// attempt that was itself a retry increments the retry count and warns the
// operator when the count reaches the limit. The attempt's error is always
// returned.
func (c *Controller) Handle(ctx context.Context, recordID string, isRetry bool) (*Outcome, error) {
	log := c.logger.With("schedule_id", recordID, "is_retry", isRetry)

	rec, err := c.schedules.GetByID(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if rec.IsProcessed {
		c.metrics.RecordActivation(ctx, types.ActivationAlreadyProcessed, rec.Channel)
		return &Outcome{Status: types.ActivationAlreadyProcessed}, nil
	}

	if rec.IsOverdue(c.clock.Now()) && rec.RetryCount >= c.maxRetries {
		log.WarnContext(ctx, "overdue schedule exhausted its retries", "retry_count", rec.RetryCount)
		c.escalate(ctx, rec, rec.RetryCount, "retries exhausted before activation")
		c.metrics.RecordActivation(ctx, types.ActivationExhausted, rec.Channel)
		return &Outcome{Status: types.ActivationExhausted}, nil
	}

	out, err := c.orch.Activate(ctx, recordID)
	if err == nil {
		if out.Status == types.ActivationAlreadyProcessed {
			c.metrics.RecordActivation(ctx, out.Status, rec.Channel)
		}
		return out, nil
	}

	log.ErrorContext(ctx, "activation attempt failed", "error", err)
	c.metrics.RecordActivation(ctx, types.ActivationFailed, rec.Channel)
	if types.IsCode(err, types.ErrCodeNotFoundSchedule) || !isRetry {
		return nil, err
	}

	// Detached so a timed-out attempt is still counted.
	bookCtx := context.WithoutCancel(ctx)
	count, incErr := c.schedules.IncrementRetry(bookCtx, recordID)
	if incErr != nil {
		log.ErrorContext(ctx, "failed to increment retry count", "error", incErr)
		return nil, err
	}
	log.InfoContext(ctx, "retry recorded", "retry_count", count, "max_retries", c.maxRetries)
	if count >= c.maxRetries {
		c.escalate(bookCtx, rec, count, err.Error())
	}
	return nil, err
}

// HandleWakeup is Handle reduced to its status, for the sweep.
func (c *Controller) HandleWakeup(ctx context.Context, recordID string, isRetry bool) (types.ActivationStatus, error) {
	out, err := c.Handle(ctx, recordID, isRetry)
	if err != nil {
		return types.ActivationFailed, err
	}
	return out.Status, nil
}

// escalate warns the operator unless another caller already did.
func (c *Controller) escalate(ctx context.Context, rec *types.ScheduleRecord, retryCount int, reason string) {
	log := c.logger.With("schedule_id", rec.ID, "retry_count", retryCount)

	first, err := c.schedules.MarkEscalated(ctx, rec.ID, c.clock.Now())
	if err != nil {
		log.ErrorContext(ctx, "failed to mark schedule escalated", "error", err)
		return
	}
	if !first {
		log.InfoContext(ctx, "operator already warned for schedule")
		return
	}

	c.metrics.RecordEscalation(ctx)
	if c.alerter == nil {
		log.ErrorContext(ctx, "no operator alerter configured, escalation only logged")
		return
	}
	c.alerter.Warn(ctx, email.OperatorWarning{
		RecordID:     rec.ID,
		SellerID:     rec.SellerID,
		Recipient:    rec.RecipientEmail,
		ScheduledFor: rec.TargetTime,
		RetryCount:   retryCount,
		Reason:       reason,
	})
}
