package external

import (
	"context"

	"daypass/internal/types"
)

// EmailProvider transmits a rendered email and returns the provider's
// message ID. Implementations map vendor failures to types.AppError with
// ErrCodeEmailBlocked, ErrCodeUpstreamRateLimited, ErrCodeUpstreamUnavailable
// or ErrCodeUpstreamEmailProvider.
type EmailProvider interface {
	Send(ctx context.Context, input types.SendInput) (providerMsgID string, err error)
}
