package email

import (
	"context"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"daypass/internal/external"
	"daypass/internal/types"
)

const expiryLayout = "Mon, Jan 2 2006 at 15:04 MST"

// WelcomeInput is the issued pass to announce.
type WelcomeInput struct {
	Credential  *types.Credential
	AccessToken *types.AccessToken
	Config      *types.PassConfiguration
	Seller      *types.Seller
}

// DispatcherConfig configures a Dispatcher.
type DispatcherConfig struct {
	Provider  external.EmailProvider
	Templates TemplateStore
	From      types.SenderIdentity
	PortalURL string
	Timeout   time.Duration
	// Disabled turns every send into a logged no-op reported as not sent.
	Disabled bool
	Logger   *slog.Logger
}

// Dispatcher sends welcome emails.
type Dispatcher struct {
	provider  external.EmailProvider
	templates TemplateStore
	from      types.SenderIdentity
	portalURL string
	timeout   time.Duration
	disabled  bool
	logger    *slog.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		provider:  cfg.Provider,
		templates: cfg.Templates,
		from:      cfg.From,
		portalURL: cfg.PortalURL,
		timeout:   cfg.Timeout,
		disabled:  cfg.Disabled,
		logger:    logger,
	}
}

// SendWelcome renders and sends the welcome email. It reports whether the
// transport accepted the message; failures are logged, never returned.
func (d *Dispatcher) SendWelcome(ctx context.Context, in WelcomeInput) bool {
	cred := in.Credential
	log := d.logger.With("credential_id", cred.ID, "to", RedactEmail(cred.RecipientEmail))
	if d.disabled {
		log.InfoContext(ctx, "email disabled, welcome not sent")
		return false
	}

	tmpl, source := d.resolve(ctx, cred, in.Config)
	vars := map[string]string{
		"name":       cred.RecipientName,
		"code":       cred.Code,
		"guests":     strconv.Itoa(cred.Guests),
		"days":       strconv.Itoa(cred.Days),
		"expiry":     cred.ExpiresAt.UTC().Format(expiryLayout),
		"portal_url": PortalLink(d.portalURL, in.AccessToken),
		"cost":       cred.Cost.StringFixed(2),
	}
	if in.Seller != nil {
		vars["seller_name"] = in.Seller.Name
	}

	subject := tmpl.Subject
	if subject == "" {
		subject = fallbackWelcomeDirect.Subject
	}
	body := Render(tmpl.BodyHTML, vars)

	ok := send(ctx, d.provider, d.timeout, types.SendInput{
		To:          cred.RecipientEmail,
		From:        d.from,
		Subject:     RenderPlain(subject, vars),
		BodyHTML:    body,
		BodyText:    PlainText(body),
		ReferenceID: cred.ID,
	}, log.With("template_source", source))
	if ok {
		log.InfoContext(ctx, "welcome email sent", "template_source", source)
	}
	return ok
}

// resolve picks the welcome template: the payment channel's branded default
// for default-configured payment passes, then the seller's own template, then
// the stored system template, then the built-in fallback.
func (d *Dispatcher) resolve(ctx context.Context, cred *types.Credential, cfg *types.PassConfiguration) (types.EmailTemplate, string) {
	isDefault := cfg == nil || cfg.IsDefault
	if isDefault && cred.Channel == types.ChannelPayment {
		if t := systemTemplate(ctx, d.templates, types.TemplateWelcomePayment, d.logger); t != nil {
			return *t, sourceChannel
		}
	}
	if !isDefault && !cfg.Templates.Welcome.IsZero() {
		return *cfg.Templates.Welcome, sourceSeller
	}
	if t := systemTemplate(ctx, d.templates, types.TemplateWelcome, d.logger); t != nil {
		return *t, sourceSystem
	}
	if cred.DeliveryMethod == types.DeliveryLink {
		return fallbackWelcomeLink, sourceFallback
	}
	return fallbackWelcomeDirect, sourceFallback
}

// PortalLink builds the self-service portal URL for a token.
func PortalLink(base string, token *types.AccessToken) string {
	if token == nil || base == "" {
		return base
	}
	link, err := url.JoinPath(base, "p", token.Token)
	if err != nil {
		return base
	}
	return link
}

// send is the shared error boundary around the transport: bounded by
// timeout and reporting only success.
func send(ctx context.Context, provider external.EmailProvider, timeout time.Duration, in types.SendInput, log *slog.Logger) bool {
	if provider == nil {
		log.ErrorContext(ctx, "no email provider configured")
		return false
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	msgID, err := provider.Send(ctx, in)
	if err != nil {
		if IsBlocked(err) {
			log.WarnContext(ctx, "recipient blocked by provider", "error", err)
		} else {
			log.ErrorContext(ctx, "email send failed", "error", err)
		}
		return false
	}
	log.DebugContext(ctx, "email accepted", "provider_message_id", msgID)
	return true
}
