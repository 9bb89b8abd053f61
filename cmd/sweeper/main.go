// Package main is the entrypoint for the Sweeper Lambda function.
//
// EventBridge invokes the sweeper on a fixed rate with a
// scheduler.SweepPayload. The sweep replays overdue activations through the
// retry path and resubmits renewal jobs the scheduler never accepted,
// sending past-due reminders directly.
//
// Cold Start (main):
//  1. Initialize structured logger.
//  2. Load configuration (resolving SSM-backed secrets).
//  3. Load AWS SDK configuration and wire the pass pipeline.
//  4. Register handler and call lambda.Start.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/google/uuid"

	"daypass/internal/app"
	"daypass/internal/config"
	"daypass/internal/scheduler"
)

// SweepRunner runs one sweep.
type SweepRunner interface {
	Run(ctx context.Context, task scheduler.TaskType, now time.Time) (scheduler.SweepResult, error)
}

// Handler holds the dependencies for the sweeper Lambda handler.
type Handler struct {
	Sweeper  SweepRunner
	WorkerID string
	Logger   *slog.Logger
	Now      func() time.Time
}

// Handle runs the sweep named by payload. A ReferenceTime in the payload
// replaces now for manual backfills.
func (h *Handler) Handle(ctx context.Context, payload scheduler.SweepPayload) (scheduler.SweepResult, error) {
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}

	now := time.Now().UTC()
	if h.Now != nil {
		now = h.Now().UTC()
	}
	if payload.ReferenceTime != nil {
		now = payload.ReferenceTime.UTC()
	}

	task := payload.Task
	if task == "" {
		task = scheduler.TaskSweepAll
	}
	logger = logger.With("task", string(task), "worker_id", h.WorkerID)
	logger.InfoContext(ctx, "sweeper invoked", "reference_time", now.Format(time.RFC3339))

	start := time.Now()
	res, err := h.Sweeper.Run(ctx, task, now)
	if err != nil {
		logger.ErrorContext(ctx, "sweep failed",
			"error", err,
			"replayed_before_error", res.Replayed,
		)
		return res, fmt.Errorf("sweep %s failed: %w", task, err)
	}

	logger.InfoContext(ctx, "sweep complete",
		"replayed", res.Replayed,
		"activated", res.Activated,
		"failed", res.Failed,
		"resubmitted", res.Resubmitted,
		"sent_direct", res.SentDirect,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

func main() {
	// Initialize structured logger at startup.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	logger.Info("Sweeper Lambda initializing (cold start)")

	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = "us-east-1"
	}
	cfg, err := config.LoadConfig(config.NewSSMProvider(region))
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	awsCfg, err := app.LoadAWSConfig(ctx, cfg.AWS)
	if err != nil {
		logger.Error("Failed to load AWS SDK config", "error", err)
		os.Exit(1)
	}

	pipeline, err := app.Build(ctx, cfg, awsCfg, logger)
	if err != nil {
		logger.Error("Failed to build pipeline", "error", err)
		os.Exit(1)
	}

	// Worker ID distinguishes concurrent Lambda instances in the logs.
	workerID := uuid.New().String()

	handler := &Handler{
		Sweeper:  pipeline.Sweeper,
		WorkerID: workerID,
		Logger:   logger,
	}

	logger.Info("Sweeper Lambda initialized",
		"worker_id", workerID,
		"batch_size", cfg.Activation.SweepBatchSize,
		"concurrency", cfg.Activation.SweepConcurrency,
		"grace", cfg.Activation.SweepGrace.String(),
	)

	lambda.Start(handler.Handle)
}
