package external

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"daypass/internal/types"
)

// StubEmailProvider logs sends instead of delivering them. It backs
// EMAIL_PROVIDER=stub for local runs and keeps the sent messages for
// inspection.
type StubEmailProvider struct {
	logger *slog.Logger

	mu   sync.Mutex
	sent []types.SendInput
}

// NewStubEmailProvider creates a StubEmailProvider.
func NewStubEmailProvider(logger *slog.Logger) *StubEmailProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &StubEmailProvider{logger: logger}
}

// Send records the message and returns a synthetic ID.
func (s *StubEmailProvider) Send(ctx context.Context, input types.SendInput) (string, error) {
	s.mu.Lock()
	s.sent = append(s.sent, input)
	n := len(s.sent)
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "stub: email not delivered",
		"subject", input.Subject,
		"reference_id", input.ReferenceID,
	)
	return fmt.Sprintf("stub-%d", n), nil
}

// Sent returns a copy of the recorded messages.
func (s *StubEmailProvider) Sent() []types.SendInput {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.SendInput, len(s.sent))
	copy(out, s.sent)
	return out
}

var _ EmailProvider = (*StubEmailProvider)(nil)
