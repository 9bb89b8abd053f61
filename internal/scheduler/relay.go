package scheduler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"daypass/internal/auth"
	"daypass/internal/external"
	"daypass/internal/types"
)

// Publisher re-enqueues an envelope for its next hop.
type Publisher interface {
	Publish(ctx context.Context, env types.WakeupEnvelope) (string, error)
}

// RelayOutcome reports what Relay.Handle did with an envelope.
type RelayOutcome string

const (
	RelayForwarded RelayOutcome = "forwarded"
	RelayDelivered RelayOutcome = "delivered"
	// RelayRejected means the endpoint refused the wake-up with a 4xx; the
	// message should not be redelivered.
	RelayRejected RelayOutcome = "rejected"
)

// Relay consumes SQS wake-up envelopes: envelopes not yet due are
// re-published, due ones are POSTed to their callback URL with a signature.
type Relay struct {
	client    *external.BaseClient
	publisher Publisher
	signer    *auth.Signer
	clock     types.Clock
	logger    *slog.Logger
}

// NewRelay creates a Relay. signer may be nil when wake-ups are unsigned.
func NewRelay(client *external.BaseClient, publisher Publisher, signer *auth.Signer, clock types.Clock, logger *slog.Logger) *Relay {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{client: client, publisher: publisher, signer: signer, clock: clock, logger: logger}
}

// Handle processes one envelope. receiveCount is the SQS receive count;
// values above one mark the delivery as a retry. A returned error asks the
// queue to redeliver.
func (r *Relay) Handle(ctx context.Context, env types.WakeupEnvelope, receiveCount int) (RelayOutcome, error) {
	now := r.clock.Now()
	if HopDelay(env.FireTime(), now) > 0 {
		env.Hops++
		if _, err := r.publisher.Publish(ctx, env); err != nil {
			return "", err
		}
		return RelayForwarded, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, env.CallbackURL, bytes.NewReader(env.Payload))
	if err != nil {
		return "", fmt.Errorf("scheduler: invalid callback url: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.signer != nil {
		r.signer.Apply(req.Header, env.Payload, now)
	}
	if receiveCount > 1 {
		req.Header.Set(HeaderRetried, strconv.Itoa(receiveCount-1))
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	log := r.logger.With("callback_url", env.CallbackURL, "status", resp.StatusCode, "hops", env.Hops)
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		log.InfoContext(ctx, "wake-up delivered")
		return RelayDelivered, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		log.WarnContext(ctx, "wake-up rejected by endpoint, dropping")
		return RelayRejected, nil
	default:
		return "", types.NewAppError(types.ErrCodeUpstreamUnavailable,
			fmt.Sprintf("wake-up endpoint returned %d", resp.StatusCode), nil)
	}
}
