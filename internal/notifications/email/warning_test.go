package email

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daypass/internal/types"
)

func TestOperatorAlerter_Warn(t *testing.T) {
	p := &fakeProvider{}
	a := NewOperatorAlerter(p, types.SenderIdentity{Address: "passes@daypass.app"}, "ops@daypass.app", time.Second, nil)

	ok := a.Warn(context.Background(), OperatorWarning{
		RecordID:     "sch-9",
		SellerID:     "seller-1",
		Recipient:    "ada@example.com",
		ScheduledFor: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC),
		RetryCount:   2,
		Reason:       "configuration not found",
	})
	require.True(t, ok)

	msg := p.last()
	assert.Equal(t, "ops@daypass.app", msg.To)
	assert.Equal(t, "[daypass] Activation failed after 2 retries: sch-9", msg.Subject)
	for _, want := range []string{"sch-9", "seller-1", "ada@example.com", "2026-05-01T09:00:00Z", "configuration not found"} {
		assert.Contains(t, msg.BodyHTML, want)
	}
}

func TestOperatorAlerter_SwallowsFailure(t *testing.T) {
	p := &fakeProvider{err: types.NewAppError(types.ErrCodeUpstreamUnavailable, "down", nil)}
	a := NewOperatorAlerter(p, types.SenderIdentity{}, "ops@daypass.app", 0, nil)
	assert.False(t, a.Warn(context.Background(), OperatorWarning{RecordID: "sch-9"}))
}
