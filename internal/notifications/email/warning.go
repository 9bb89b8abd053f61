package email

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"daypass/internal/external"
	"daypass/internal/types"
)

// OperatorWarning describes a schedule record that exhausted its retries.
type OperatorWarning struct {
	RecordID     string
	SellerID     string
	Recipient    string
	ScheduledFor time.Time
	RetryCount   int
	Reason       string
}

// OperatorAlerter emails retry-exhaustion warnings to a fixed address.
type OperatorAlerter struct {
	provider external.EmailProvider
	from     types.SenderIdentity
	to       string
	timeout  time.Duration
	logger   *slog.Logger
}

// NewOperatorAlerter creates an OperatorAlerter.
func NewOperatorAlerter(provider external.EmailProvider, from types.SenderIdentity, to string, timeout time.Duration, logger *slog.Logger) *OperatorAlerter {
	if logger == nil {
		logger = slog.Default()
	}
	return &OperatorAlerter{provider: provider, from: from, to: to, timeout: timeout, logger: logger}
}

// Warn sends the warning. Failures are logged and reported as false.
func (a *OperatorAlerter) Warn(ctx context.Context, w OperatorWarning) bool {
	vars := map[string]string{
		"record_id":     w.RecordID,
		"seller_id":     w.SellerID,
		"recipient":     w.Recipient,
		"scheduled_for": w.ScheduledFor.UTC().Format(time.RFC3339),
		"retry_count":   strconv.Itoa(w.RetryCount),
		"reason":        w.Reason,
	}
	body := Render(operatorWarningTemplate.BodyHTML, vars)
	log := a.logger.With("schedule_id", w.RecordID, "retry_count", w.RetryCount)

	ok := send(ctx, a.provider, a.timeout, types.SendInput{
		To:          a.to,
		From:        a.from,
		Subject:     RenderPlain(operatorWarningTemplate.Subject, vars),
		BodyHTML:    body,
		BodyText:    PlainText(body),
		ReferenceID: w.RecordID,
	}, log)
	if ok {
		log.WarnContext(ctx, "operator warned of exhausted activation retries")
	}
	return ok
}
