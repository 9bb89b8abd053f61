package email

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"daypass/internal/external"
	"daypass/internal/types"
)

// CredentialReader loads credentials.
type CredentialReader interface {
	GetByID(ctx context.Context, id string) (*types.Credential, error)
}

// ReminderStore claims and releases the pending-reminder flag on a snapshot.
type ReminderStore interface {
	ClaimReminder(ctx context.Context, credentialID string) (bool, error)
	ReleaseReminder(ctx context.Context, credentialID string) error
}

// ConfigurationReader loads pass configurations and sellers.
type ConfigurationReader interface {
	GetByID(ctx context.Context, id string) (*types.PassConfiguration, error)
	GetSeller(ctx context.Context, id string) (*types.Seller, error)
}

// RenewalJobRecorder notes reminder failures against the renewal job row.
type RenewalJobRecorder interface {
	RecordFailure(ctx context.Context, credentialID, reason string) error
}

// ReminderMetrics counts reminder outcomes.
type ReminderMetrics interface {
	RecordReminder(ctx context.Context, status types.ReminderStatus)
}

// ReminderConfig configures a ReminderSender.
type ReminderConfig struct {
	Credentials    CredentialReader
	Reminders      ReminderStore
	Configurations ConfigurationReader
	Jobs           RenewalJobRecorder // optional
	Metrics        ReminderMetrics    // optional
	Templates      TemplateStore
	Provider       external.EmailProvider
	From           types.SenderIdentity
	RenewalURL     string
	Timeout        time.Duration
	Disabled       bool
	Clock          types.Clock
	Logger         *slog.Logger
}

// ReminderSender sends the renewal reminder for a credential at most once.
type ReminderSender struct {
	cfg    ReminderConfig
	clock  types.Clock
	logger *slog.Logger
}

// NewReminderSender creates a ReminderSender.
func NewReminderSender(cfg ReminderConfig) *ReminderSender {
	clock := cfg.Clock
	if clock == nil {
		clock = types.RealClock{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ReminderSender{cfg: cfg, clock: clock, logger: logger}
}

// Send delivers the reminder for credentialID.
//
// An inactive credential or an already handled reminder is a successful
// no-op. The pending flag is claimed before sending so concurrent wake-ups
// cannot both send; a failed send releases it again and reports
// ReminderFailed with a nil error. Errors are returned only for a missing
// credential or a store failure.
func (s *ReminderSender) Send(ctx context.Context, credentialID string) (types.ReminderStatus, error) {
	status, err := s.deliver(ctx, credentialID)
	if err == nil && s.cfg.Metrics != nil {
		s.cfg.Metrics.RecordReminder(ctx, status)
	}
	return status, err
}

func (s *ReminderSender) deliver(ctx context.Context, credentialID string) (types.ReminderStatus, error) {
	log := s.logger.With("credential_id", credentialID)

	cred, err := s.cfg.Credentials.GetByID(ctx, credentialID)
	if err != nil {
		return "", err
	}
	if !cred.Active {
		log.InfoContext(ctx, "credential inactive, skipping renewal reminder")
		return types.ReminderInactive, nil
	}
	if s.cfg.Disabled {
		log.InfoContext(ctx, "email disabled, renewal reminder not sent")
		return types.ReminderSkipped, nil
	}

	passCfg, seller := s.loadConfiguration(ctx, cred, log)

	claimed, err := s.cfg.Reminders.ClaimReminder(ctx, cred.ID)
	if err != nil {
		return "", err
	}
	if !claimed {
		log.InfoContext(ctx, "renewal reminder already handled")
		return types.ReminderSkipped, nil
	}

	now := s.clock.Now()
	remaining := cred.Remaining(now)
	vars := map[string]string{
		"name":            cred.RecipientName,
		"code":            cred.Code,
		"guests":          strconv.Itoa(cred.Guests),
		"days":            strconv.Itoa(cred.Days),
		"expiry":          cred.ExpiresAt.UTC().Format(expiryLayout),
		"hours_remaining": strconv.Itoa(int(remaining.Hours())),
		"days_remaining":  strconv.Itoa(int(remaining.Hours()) / 24),
		"countdown":       Countdown(remaining),
		"renewal_url":     s.renewalLink(cred, passCfg),
		"discount_code":   passCfg.Renewal.DiscountCode,
	}
	if seller != nil {
		vars["seller_name"] = seller.Name
	}

	tmpl, source := s.resolve(ctx, passCfg)
	subject := tmpl.Subject
	if subject == "" {
		subject = fallbackRenewal.Subject
	}
	body := Render(tmpl.BodyHTML, vars)

	ok := send(ctx, s.cfg.Provider, s.cfg.Timeout, types.SendInput{
		To:          cred.RecipientEmail,
		From:        s.cfg.From,
		Subject:     RenderPlain(subject, vars),
		BodyHTML:    body,
		BodyText:    PlainText(body),
		ReferenceID: cred.ID,
	}, log.With("template_source", source, "to", RedactEmail(cred.RecipientEmail)))
	if ok {
		log.InfoContext(ctx, "renewal reminder sent", "template_source", source)
		return types.ReminderSent, nil
	}

	// Detached so a cancelled request still leaves the reminder pending.
	cleanupCtx := context.WithoutCancel(ctx)
	if err := s.cfg.Reminders.ReleaseReminder(cleanupCtx, cred.ID); err != nil {
		log.ErrorContext(ctx, "failed to release renewal reminder after send failure", "error", err)
	}
	if s.cfg.Jobs != nil {
		if err := s.cfg.Jobs.RecordFailure(cleanupCtx, cred.ID, "reminder send failed"); err != nil {
			log.WarnContext(ctx, "failed to record renewal job failure", "error", err)
		}
	}
	return types.ReminderFailed, nil
}

// loadConfiguration resolves the credential's configuration, falling back
// to the default when it is the sentinel or can no longer be loaded.
func (s *ReminderSender) loadConfiguration(ctx context.Context, cred *types.Credential, log *slog.Logger) (*types.PassConfiguration, *types.Seller) {
	passCfg := types.DefaultConfiguration(cred.SellerID)
	if cred.ConfigurationID != "" && cred.ConfigurationID != types.DefaultConfigurationID {
		loaded, err := s.cfg.Configurations.GetByID(ctx, cred.ConfigurationID)
		if err != nil {
			log.WarnContext(ctx, "configuration unavailable, using defaults for reminder",
				"configuration_id", cred.ConfigurationID, "error", err)
		} else {
			passCfg = loaded
		}
	}

	seller, err := s.cfg.Configurations.GetSeller(ctx, cred.SellerID)
	if err != nil {
		log.WarnContext(ctx, "seller unavailable for reminder", "seller_id", cred.SellerID, "error", err)
	}
	return passCfg, seller
}

// resolve picks the renewal template: seller custom, then system default,
// then the built-in fallback.
func (s *ReminderSender) resolve(ctx context.Context, cfg *types.PassConfiguration) (types.EmailTemplate, string) {
	if !cfg.IsDefault && !cfg.Templates.Renewal.IsZero() {
		return *cfg.Templates.Renewal, sourceSeller
	}
	if t := systemTemplate(ctx, s.cfg.Templates, types.TemplateRenewal, s.logger); t != nil {
		return *t, sourceSystem
	}
	return fallbackRenewal, sourceFallback
}

// renewalLink builds the call-to-action URL. The configuration's own URL
// wins over the service default. discount and ref query parameters are
// added when referral tracking is enabled.
func (s *ReminderSender) renewalLink(cred *types.Credential, cfg *types.PassConfiguration) string {
	base := s.cfg.RenewalURL
	if cfg.Renewal.URL != "" {
		base = cfg.Renewal.URL
	}
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	if cfg.Renewal.TrackReferral {
		q := u.Query()
		if cfg.Renewal.DiscountCode != "" {
			q.Set("discount", cfg.Renewal.DiscountCode)
		}
		q.Set("ref", cred.SellerID)
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// Countdown formats a duration as "1 day 4 hours" or "3 hours".
func Countdown(d time.Duration) string {
	if d <= 0 {
		return "less than an hour"
	}
	hours := int(d.Hours())
	days, hours := hours/24, hours%24

	plural := func(n int, unit string) string {
		if n == 1 {
			return fmt.Sprintf("1 %s", unit)
		}
		return fmt.Sprintf("%d %ss", n, unit)
	}
	switch {
	case days > 0 && hours > 0:
		return plural(days, "day") + " " + plural(hours, "hour")
	case days > 0:
		return plural(days, "day")
	case hours > 0:
		return plural(hours, "hour")
	default:
		return "less than an hour"
	}
}
