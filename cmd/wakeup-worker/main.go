// Package main is the entrypoint for the Wake-up Worker Lambda function.
//
// The worker consumes the wake-up SQS queue used by the sqs scheduler
// backend. Each message carries a types.WakeupEnvelope. Envelopes whose fire
// time is still ahead are re-published for another delay hop; due envelopes
// are signed and POSTed to their callback URL on the API.
//
// Cold Start (main):
//  1. Initialize structured logger.
//  2. Resolve SSM-backed secrets into the environment.
//  3. Load AWS SDK configuration.
//  4. Build the SQS publisher, the callback client and the signer.
//  5. Register handler and call lambda.Start.
//
// Messages that fail to relay are reported in batchItemFailures so SQS
// redelivers only those; the receive count marks the callback as a retry.
package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"daypass/internal/app"
	"daypass/internal/auth"
	"daypass/internal/config"
	"daypass/internal/scheduler"
	"daypass/internal/types"
)

// Relayer forwards or delivers one envelope.
type Relayer interface {
	Handle(ctx context.Context, env types.WakeupEnvelope, receiveCount int) (scheduler.RelayOutcome, error)
}

// Handler holds the dependencies for the wake-up worker Lambda handler.
type Handler struct {
	relay  Relayer
	logger *slog.Logger
}

// Handle processes an SQS event containing one or more wake-up envelopes.
// Each message is processed independently.
func (h *Handler) Handle(ctx context.Context, sqsEvent events.SQSEvent) (events.SQSEventResponse, error) {
	response := events.SQSEventResponse{}

	for _, record := range sqsEvent.Records {
		if err := h.processMessage(ctx, record); err != nil {
			h.logger.ErrorContext(ctx, "failed to relay wake-up",
				"message_id", record.MessageId,
				"error", err,
			)
			response.BatchItemFailures = append(response.BatchItemFailures,
				events.SQSBatchItemFailure{ItemIdentifier: record.MessageId},
			)
		}
	}

	return response, nil
}

func (h *Handler) processMessage(ctx context.Context, record events.SQSMessage) error {
	var env types.WakeupEnvelope
	if err := json.Unmarshal([]byte(record.Body), &env); err != nil || env.CallbackURL == "" {
		// Permanent parse failure: ACK so the message is not redelivered.
		h.logger.ErrorContext(ctx, "dropping malformed wake-up envelope",
			"message_id", record.MessageId,
			"error", err,
		)
		return nil
	}

	outcome, err := h.relay.Handle(ctx, env, receiveCount(record))
	if err != nil {
		return err
	}
	h.logger.InfoContext(ctx, "wake-up relayed",
		"message_id", record.MessageId,
		"outcome", string(outcome),
		"hops", env.Hops,
	)
	return nil
}

// receiveCount reads ApproximateReceiveCount, defaulting to one.
func receiveCount(record events.SQSMessage) int {
	n, err := strconv.Atoi(record.Attributes["ApproximateReceiveCount"])
	if err != nil || n < 1 {
		return 1
	}
	return n
}

func main() {
	// Initialize structured logger at startup (Cold Start).
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	logger.Info("Wake-up Worker Lambda initializing (cold start)")

	region := envOr("AWS_REGION", "us-east-1")
	if err := config.ResolveSecrets(config.NewSSMProvider(region)); err != nil {
		logger.Error("Failed to resolve secrets", "error", err)
		os.Exit(1)
	}

	awsCfg, err := app.LoadAWSConfig(context.Background(), config.AWSConfig{
		Region:      region,
		EndpointURL: os.Getenv("AWS_ENDPOINT_URL"),
	})
	if err != nil {
		logger.Error("Failed to load AWS SDK config", "error", err)
		os.Exit(1)
	}

	schedCfg := config.SchedulerConfig{
		QueueURL:       os.Getenv("SQS_WAKEUPS"),
		RequestTimeout: 10 * time.Second,
	}
	if d, parseErr := time.ParseDuration(os.Getenv("SCHEDULER_TIMEOUT")); parseErr == nil && d > 0 {
		schedCfg.RequestTimeout = d
	}
	if schedCfg.QueueURL == "" {
		logger.Error("SQS_WAKEUPS is required")
		os.Exit(1)
	}

	var signer *auth.Signer
	if key := types.SecretString(os.Getenv("WAKEUP_CURRENT_SIGNING_KEY")); key.IsSet() {
		signer = auth.NewSigner(key)
	} else {
		logger.Warn("WAKEUP_CURRENT_SIGNING_KEY not set; wake-ups will be relayed unsigned")
	}

	clock := types.RealClock{}
	publisher := scheduler.NewSQSScheduler(sqs.NewFromConfig(awsCfg), schedCfg.QueueURL, clock, logger)
	relay := scheduler.NewRelay(app.NewCallbackClient(schedCfg, "wakeup-relay"), publisher, signer, clock, logger)

	handler := &Handler{relay: relay, logger: logger}

	logger.Info("Wake-up Worker Lambda initialized",
		"wakeup_queue", schedCfg.QueueURL,
		"timeout", schedCfg.RequestTimeout.String(),
		"signed", signer != nil,
	)

	lambda.Start(handler.Handle)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
