// Package passes accepts pass requests from upstream channels and routes
// them to immediate issuance or to a deferred, scheduled activation.
package passes

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"daypass/internal/activation"
	"daypass/internal/scheduler"
	"daypass/internal/types"
)

// Request is an upstream ask for a pass. A nil or non-future ActivateAt
// issues immediately.
type Request struct {
	Order      types.PassOrder
	ActivateAt *time.Time
}

// Result reports which path a request took.
type Result struct {
	// Scheduled is true for the deferred path.
	Scheduled bool
	RecordID  string
	JobID     string
	// SweepFallback is set when the wake-up could not be scheduled and the
	// periodic sweep will activate the record instead.
	SweepFallback bool
	// Outcome is set for the immediate path.
	Outcome *activation.Outcome
}

// ScheduleStore persists tentative schedule records.
type ScheduleStore interface {
	Create(ctx context.Context, rec *types.ScheduleRecord) error
	SetJobID(ctx context.Context, id, jobID string) error
	Delete(ctx context.Context, id string) error
}

// Activator issues passes and resolves configurations.
type Activator interface {
	ActivateNow(ctx context.Context, order types.PassOrder) (*activation.Outcome, error)
	ResolveConfiguration(ctx context.Context, order types.PassOrder) (*types.PassConfiguration, error)
}

// Config wires a Service.
type Config struct {
	Schedules   ScheduleStore
	Activator   Activator
	Scheduler   scheduler.Scheduler
	CallbackURL string
	Clock       types.Clock
	Logger      *slog.Logger
}

// Service handles pass requests.
type Service struct {
	cfg    Config
	clock  types.Clock
	logger *slog.Logger
}

// NewService creates a Service.
func NewService(cfg Config) *Service {
	clock := cfg.Clock
	if clock == nil {
		clock = types.RealClock{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{cfg: cfg, clock: clock, logger: logger}
}

// Request validates req and either issues the pass now or records and
// schedules it.
func (s *Service) Request(ctx context.Context, req Request) (*Result, error) {
	if err := req.Order.Validate(); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if req.ActivateAt == nil || !req.ActivateAt.After(now) {
		return s.immediate(ctx, req.Order)
	}
	if req.ActivateAt.Sub(now) > types.MaxScheduleWindow {
		return nil, types.NewAppError(types.ErrCodeValidationActivationTime, "activation time is too far in the future", nil)
	}
	return s.deferred(ctx, req.Order, req.ActivateAt.UTC(), now)
}

func (s *Service) immediate(ctx context.Context, order types.PassOrder) (*Result, error) {
	if err := s.checkConfiguration(ctx, order); err != nil {
		return nil, err
	}
	out, err := s.cfg.Activator.ActivateNow(ctx, order)
	if err != nil {
		return nil, err
	}
	return &Result{Outcome: out}, nil
}

func (s *Service) deferred(ctx context.Context, order types.PassOrder, at, now time.Time) (*Result, error) {
	rec := &types.ScheduleRecord{
		ID:              uuid.New().String(),
		SellerID:        order.SellerID,
		ConfigurationID: order.ConfigurationID,
		Channel:         order.Channel,
		RecipientName:   order.RecipientName,
		RecipientEmail:  order.RecipientEmail,
		Guests:          order.Guests,
		Days:            order.Days,
		DeliveryMethod:  order.DeliveryMethod,
		LandingPageID:   order.LandingPageID,
		TargetTime:      at,
		CreatedAt:       now,
	}
	log := s.logger.With("schedule_id", rec.ID, "seller_id", rec.SellerID)

	if err := s.cfg.Schedules.Create(ctx, rec); err != nil {
		return nil, err
	}

	order.ScheduleID = rec.ID
	if err := s.checkConfiguration(ctx, order); err != nil {
		if delErr := s.cfg.Schedules.Delete(context.WithoutCancel(ctx), rec.ID); delErr != nil {
			log.ErrorContext(ctx, "failed to remove rejected schedule record", "error", delErr)
		}
		return nil, err
	}

	res := &Result{Scheduled: true, RecordID: rec.ID}
	body, err := json.Marshal(types.ActivationWakeup{RecordID: rec.ID})
	if err != nil {
		return nil, err
	}
	jobID, err := s.cfg.Scheduler.Schedule(ctx, scheduler.Job{CallbackURL: s.cfg.CallbackURL, Body: body, FireAt: at})
	if err != nil {
		log.WarnContext(ctx, "activation wake-up not scheduled, leaving record for sweep", "error", err)
		res.SweepFallback = true
		return res, nil
	}

	res.JobID = jobID
	if err := s.cfg.Schedules.SetJobID(ctx, rec.ID, jobID); err != nil {
		log.WarnContext(ctx, "failed to store scheduler job id", "job_id", jobID, "error", err)
	}
	log.InfoContext(ctx, "pass activation scheduled", "target_time", at, "job_id", jobID)
	return res, nil
}

// checkConfiguration ensures the configuration exists and allows the
// requested delivery method.
func (s *Service) checkConfiguration(ctx context.Context, order types.PassOrder) error {
	cfg, err := s.cfg.Activator.ResolveConfiguration(ctx, order)
	if err != nil {
		return err
	}
	if !cfg.Delivery.Allows(order.DeliveryMethod) {
		return types.NewAppError(types.ErrCodeValidationDeliveryMethod,
			"delivery method not allowed by configuration", nil).
			WithDetails(map[string]any{"delivery_method": order.DeliveryMethod})
	}
	return nil
}
