package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"daypass/internal/types"
)

// MaxSQSDelay is the longest delay SQS applies to a single message.
const MaxSQSDelay = 15 * time.Minute

// SQSSender abstracts the SQS SendMessage operation for testability.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSScheduler carries jobs as types.WakeupEnvelope messages. Delays longer
// than MaxSQSDelay are covered by re-publishing the envelope on every hop
// until the fire time is reached.
type SQSScheduler struct {
	client   SQSSender
	queueURL string
	clock    types.Clock
	logger   *slog.Logger
}

// NewSQSScheduler creates an SQSScheduler.
func NewSQSScheduler(client SQSSender, queueURL string, clock types.Clock, logger *slog.Logger) *SQSScheduler {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SQSScheduler{client: client, queueURL: queueURL, clock: clock, logger: logger}
}

// Schedule enqueues the first hop of job.
func (s *SQSScheduler) Schedule(ctx context.Context, job Job) (string, error) {
	if !job.FireAt.After(s.clock.Now()) {
		return "", ErrNotInFuture
	}
	return s.Publish(ctx, types.WakeupEnvelope{
		CallbackURL:  job.CallbackURL,
		FireAtMillis: job.FireAt.UnixMilli(),
		Payload:      job.Body,
	})
}

// Publish sends env with a delay bounded by MaxSQSDelay.
func (s *SQSScheduler) Publish(ctx context.Context, env types.WakeupEnvelope) (string, error) {
	body, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("scheduler: failed to marshal wake-up envelope: %w", err)
	}

	delay := HopDelay(env.FireTime(), s.clock.Now())
	out, err := s.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:     aws.String(s.queueURL),
		MessageBody:  aws.String(string(body)),
		DelaySeconds: int32(delay / time.Second),
	})
	if err != nil {
		return "", types.NewAppError(types.ErrCodeUpstreamScheduler, "failed to enqueue wake-up", err)
	}

	id := aws.ToString(out.MessageId)
	s.logger.InfoContext(ctx, "wake-up scheduled",
		"backend", "sqs",
		"job_id", id,
		"fire_at", env.FireTime().UTC(),
		"hops", env.Hops,
		"delay_seconds", int(delay/time.Second),
	)
	return id, nil
}

// HopDelay returns the delay for the next hop toward fireAt, rounded up to
// a whole second and capped at MaxSQSDelay. It is zero once fireAt is due.
func HopDelay(fireAt, now time.Time) time.Duration {
	d := fireAt.Sub(now)
	if d <= 0 {
		return 0
	}
	if d > MaxSQSDelay {
		return MaxSQSDelay
	}
	return d.Truncate(time.Second) + roundUp(d%time.Second)
}

func roundUp(rem time.Duration) time.Duration {
	if rem > 0 {
		return time.Second
	}
	return 0
}
