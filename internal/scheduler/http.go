package scheduler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"daypass/internal/external"
	"daypass/internal/types"
)

// Headers understood by the delay-queue API.
const (
	headerDelay   = "Upstash-Delay"
	headerRetries = "Upstash-Retries"
	// HeaderRetried carries the redelivery count on wake-ups. The wake-up
	// endpoint treats a positive value as a retry.
	HeaderRetried = "Upstash-Retried"
)

// HTTPConfig configures an HTTPScheduler.
type HTTPConfig struct {
	BaseURL string
	Token   types.SecretString
	// Retries is the number of redeliveries the queue attempts when the
	// callback fails. Zero leaves the queue default.
	Retries int
	Clock   types.Clock
	Logger  *slog.Logger
}

// HTTPScheduler publishes jobs to an HTTP delay queue:
// POST {base}/publish/{callbackURL} with a millisecond delay header.
type HTTPScheduler struct {
	client  *external.BaseClient
	baseURL string
	token   types.SecretString
	retries int
	clock   types.Clock
	logger  *slog.Logger
}

// NewHTTPScheduler creates an HTTPScheduler over base, which should carry
// external.WithUpstreamCode(types.ErrCodeUpstreamScheduler).
func NewHTTPScheduler(base *external.BaseClient, cfg HTTPConfig) *HTTPScheduler {
	clock := cfg.Clock
	if clock == nil {
		clock = types.RealClock{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPScheduler{
		client:  base,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		retries: cfg.Retries,
		clock:   clock,
		logger:  logger,
	}
}

type publishResponse struct {
	MessageID string `json:"messageId"`
}

// Schedule publishes job and returns the queue's message ID.
func (s *HTTPScheduler) Schedule(ctx context.Context, job Job) (string, error) {
	delay := job.FireAt.Sub(s.clock.Now())
	if delay <= 0 {
		return "", ErrNotInFuture
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/publish/"+job.CallbackURL, bytes.NewReader(job.Body))
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build scheduler request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token.IsSet() {
		req.Header.Set("Authorization", "Bearer "+s.token.Unmask())
	}
	req.Header.Set(headerDelay, strconv.FormatInt(delay.Milliseconds(), 10)+"ms")
	if s.retries > 0 {
		req.Header.Set(headerRetries, strconv.Itoa(s.retries))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", types.NewAppErrorWithDetails(types.ErrCodeUpstreamScheduler,
			fmt.Sprintf("scheduler rejected job with status %d", resp.StatusCode), nil,
			map[string]any{"status": resp.StatusCode, "body": string(snippet)})
	}

	var out publishResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", types.NewAppError(types.ErrCodeUpstreamScheduler, "invalid scheduler response", err)
	}

	s.logger.InfoContext(ctx, "wake-up scheduled",
		"backend", "http",
		"job_id", out.MessageID,
		"fire_at", job.FireAt,
	)
	return out.MessageID, nil
}
