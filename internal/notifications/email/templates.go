package email

import (
	"context"
	"log/slog"

	"daypass/internal/types"
)

// TemplateStore loads system templates. *db.TemplateRepository satisfies it.
type TemplateStore interface {
	Get(ctx context.Context, key types.TemplateKey) (*types.EmailTemplate, error)
}

// Template sources, reported in logs.
const (
	sourceChannel  = "channel_default"
	sourceSeller   = "seller_custom"
	sourceSystem   = "system_default"
	sourceFallback = "fallback"
)

var fallbackWelcomeDirect = types.EmailTemplate{
	Subject: "Your pass is ready",
	BodyHTML: `<p>Hi {{name}},</p>
<p>Your pass code is <strong>{{code}}</strong>.</p>
<p>It admits {{guests}} guest(s) for {{days}} day(s) and is valid until {{expiry}}.</p>
<p>Manage your pass at <a href="{{portal_url}}">{{portal_url}}</a>.</p>`,
}

var fallbackWelcomeLink = types.EmailTemplate{
	Subject: "Your pass is ready",
	BodyHTML: `<p>Hi {{name}},</p>
<p>Your pass for {{guests}} guest(s) and {{days}} day(s) is ready and valid until {{expiry}}.</p>
<p><a href="{{portal_url}}">Open your pass</a></p>`,
}

var fallbackRenewal = types.EmailTemplate{
	Subject: "Your pass expires in {{hours_remaining}} hours",
	BodyHTML: `<p>Hi {{name}},</p>
<p>Your pass {{code}} expires in {{countdown}} ({{expiry}}).</p>
<p><a href="{{renewal_url}}">Get a new pass</a></p>`,
}

var operatorWarningTemplate = types.EmailTemplate{
	Subject: "[daypass] Activation failed after {{retry_count}} retries: {{record_id}}",
	BodyHTML: `<p>A scheduled pass could not be activated and will not be retried.</p>
<ul>
<li>Record: {{record_id}}</li>
<li>Seller: {{seller_id}}</li>
<li>Recipient: {{recipient}}</li>
<li>Scheduled for: {{scheduled_for}}</li>
<li>Retry count: {{retry_count}}</li>
<li>Reason: {{reason}}</li>
</ul>`,
}

// systemTemplate returns the stored template for key, or nil if none is
// stored or the store fails.
func systemTemplate(ctx context.Context, store TemplateStore, key types.TemplateKey, logger *slog.Logger) *types.EmailTemplate {
	if store == nil {
		return nil
	}
	tmpl, err := store.Get(ctx, key)
	if err != nil {
		if !types.IsCode(err, types.ErrCodeNotFoundTemplate) {
			logger.WarnContext(ctx, "failed to load system template", "key", key, "error", err)
		}
		return nil
	}
	if tmpl.IsZero() {
		return nil
	}
	return tmpl
}
