package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// DefaultConfigurationID is the sentinel configuration reference meaning
// "no seller configuration": zero cost, welcome email only.
const DefaultConfigurationID = "default"

// ScheduleRecord is a pending request to issue a credential at a future time.
type ScheduleRecord struct {
	ID              string          `json:"id" db:"id"`
	SellerID        string          `json:"seller_id" db:"seller_id"`
	ConfigurationID string          `json:"configuration_id" db:"configuration_id"`
	Channel         IssuanceChannel `json:"channel" db:"channel"`
	RecipientName   string          `json:"recipient_name" db:"recipient_name"`
	RecipientEmail  string          `json:"recipient_email" db:"recipient_email"`
	Guests          int             `json:"guests" db:"guests"`
	Days            int             `json:"days" db:"days"`
	DeliveryMethod  DeliveryMethod  `json:"delivery_method" db:"delivery_method"`
	LandingPageID   string          `json:"landing_page_id,omitempty" db:"landing_page_id"`
	TargetTime      time.Time       `json:"target_time" db:"target_time"`
	JobID           string          `json:"job_id,omitempty" db:"job_id"`

	IsProcessed           bool       `json:"is_processed" db:"is_processed"`
	ProcessedAt           *time.Time `json:"processed_at,omitempty" db:"processed_at"`
	CreatedCredentialCode string     `json:"created_credential_code,omitempty" db:"created_credential_code"`
	RetryCount            int        `json:"retry_count" db:"retry_count"`
	EscalatedAt           *time.Time `json:"escalated_at,omitempty" db:"escalated_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// IsOverdue reports whether the record's target time has passed.
func (r *ScheduleRecord) IsOverdue(now time.Time) bool {
	return now.After(r.TargetTime)
}

// PassOrder is the set of fields needed to issue a credential, whether it comes
// from a ScheduleRecord or from an immediate request.
type PassOrder struct {
	ScheduleID      string
	SellerID        string
	ConfigurationID string
	Channel         IssuanceChannel
	RecipientName   string
	RecipientEmail  string
	Guests          int
	Days            int
	DeliveryMethod  DeliveryMethod
	LandingPageID   string
}

// Order extracts the issuance fields from the record.
func (r *ScheduleRecord) Order() PassOrder {
	return PassOrder{
		ScheduleID:      r.ID,
		SellerID:        r.SellerID,
		ConfigurationID: r.ConfigurationID,
		Channel:         r.Channel,
		RecipientName:   r.RecipientName,
		RecipientEmail:  r.RecipientEmail,
		Guests:          r.Guests,
		Days:            r.Days,
		DeliveryMethod:  r.DeliveryMethod,
		LandingPageID:   r.LandingPageID,
	}
}

// Credential is an issued pass. The code is unique and never changes.
type Credential struct {
	ID              string          `json:"id" db:"id"`
	Code            string          `json:"code" db:"code"`
	ScheduleID      string          `json:"schedule_id,omitempty" db:"schedule_id"`
	SellerID        string          `json:"seller_id" db:"seller_id"`
	ConfigurationID string          `json:"configuration_id" db:"configuration_id"`
	Channel         IssuanceChannel `json:"channel" db:"channel"`
	RecipientName   string          `json:"recipient_name" db:"recipient_name"`
	RecipientEmail  string          `json:"recipient_email" db:"recipient_email"`
	Guests          int             `json:"guests" db:"guests"`
	Days            int             `json:"days" db:"days"`
	DeliveryMethod  DeliveryMethod  `json:"delivery_method" db:"delivery_method"`
	LandingPageID   string          `json:"landing_page_id,omitempty" db:"landing_page_id"`
	Cost            decimal.Decimal `json:"cost" db:"cost"`
	IssuedAt        time.Time       `json:"issued_at" db:"issued_at"`
	ExpiresAt       time.Time       `json:"expires_at" db:"expires_at"`
	Active          bool            `json:"active" db:"active"`
}

// Remaining returns the time left before expiry, floored at zero.
func (c *Credential) Remaining(now time.Time) time.Duration {
	d := c.ExpiresAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// AccessToken grants portal access to one credential.
type AccessToken struct {
	Token        string    `json:"-" db:"token"`
	CredentialID string    `json:"credential_id" db:"credential_id"`
	ExpiresAt    time.Time `json:"expires_at" db:"expires_at"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// PriceBreakdown is the itemized result of pricing a pass.
// For fixed pricing only Mode and Total are populated.
type PriceBreakdown struct {
	Mode           PricingMode     `json:"mode"`
	Base           decimal.Decimal `json:"base"`
	GuestIncrement decimal.Decimal `json:"guest_increment"`
	DayIncrement   decimal.Decimal `json:"day_increment"`
	GuestCharge    decimal.Decimal `json:"guest_charge"`
	DayCharge      decimal.Decimal `json:"day_charge"`
	Commission     decimal.Decimal `json:"commission"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	TaxPercent     decimal.Decimal `json:"tax_percent"`
	Tax            decimal.Decimal `json:"tax"`
	Total          decimal.Decimal `json:"total"`
	Currency       string          `json:"currency,omitempty"`
}

// AnalyticsSnapshot is written once at issuance. Only the two notification
// flags change afterwards. RebuyEmailScheduled is true while a renewal
// reminder is pending and false once it is handled (or was never due).
type AnalyticsSnapshot struct {
	ID                  string          `json:"id" db:"id"`
	CredentialID        string          `json:"credential_id" db:"credential_id"`
	SellerID            string          `json:"seller_id" db:"seller_id"`
	LocationID          string          `json:"location_id,omitempty" db:"location_id"`
	DistributorID       string          `json:"distributor_id,omitempty" db:"distributor_id"`
	Channel             IssuanceChannel `json:"channel" db:"channel"`
	Guests              int             `json:"guests" db:"guests"`
	Days                int             `json:"days" db:"days"`
	DeliveryMethod      DeliveryMethod  `json:"delivery_method" db:"delivery_method"`
	Pricing             PriceBreakdown  `json:"pricing" db:"pricing"`
	WelcomeEmailSent    bool            `json:"welcome_email_sent" db:"welcome_email_sent"`
	RebuyEmailScheduled bool            `json:"rebuy_email_scheduled" db:"rebuy_email_scheduled"`
	CreatedAt           time.Time       `json:"created_at" db:"created_at"`
}

// RenewalJob is the materialized intent to send a renewal reminder.
type RenewalJob struct {
	CredentialID string     `json:"credential_id" db:"credential_id"`
	FireAt       time.Time  `json:"fire_at" db:"fire_at"`
	JobID        string     `json:"job_id,omitempty" db:"job_id"`
	SubmittedAt  *time.Time `json:"submitted_at,omitempty" db:"submitted_at"`
	LastError    string     `json:"last_error,omitempty" db:"last_error"`
}

// Seller carries the attribution fields copied into analytics snapshots.
type Seller struct {
	ID            string `json:"id" db:"id"`
	Name          string `json:"name" db:"name"`
	LocationID    string `json:"location_id,omitempty" db:"location_id"`
	DistributorID string `json:"distributor_id,omitempty" db:"distributor_id"`
}

// PricingConfig is the pricing section of a pass configuration.
type PricingConfig struct {
	Mode           PricingMode     `json:"mode"`
	FixedAmount    decimal.Decimal `json:"fixed_amount"`
	Base           decimal.Decimal `json:"base"`
	GuestIncrement decimal.Decimal `json:"guest_increment"`
	DayIncrement   decimal.Decimal `json:"day_increment"`
	Commission     decimal.Decimal `json:"commission"`
	TaxEnabled     bool            `json:"tax_enabled"`
	TaxPercent     decimal.Decimal `json:"tax_percent"`
	Currency       string          `json:"currency,omitempty"`
}

// DeliveryConfig constrains how passes from a configuration are delivered.
// An empty AllowedMethods list allows every method.
type DeliveryConfig struct {
	AllowedMethods []DeliveryMethod `json:"allowed_methods,omitempty"`
}

// Allows reports whether m is permitted by the configuration.
func (d DeliveryConfig) Allows(m DeliveryMethod) bool {
	if len(d.AllowedMethods) == 0 {
		return m.Valid()
	}
	for _, allowed := range d.AllowedMethods {
		if allowed == m {
			return true
		}
	}
	return false
}

// EmailTemplate is a subject and HTML body with {{placeholder}} markers.
type EmailTemplate struct {
	Subject  string `json:"subject"`
	BodyHTML string `json:"body_html"`
}

// IsZero reports whether the template has no body.
func (t *EmailTemplate) IsZero() bool {
	return t == nil || t.BodyHTML == ""
}

// TemplateConfig holds seller-authored email overrides.
type TemplateConfig struct {
	Welcome *EmailTemplate `json:"welcome,omitempty"`
	Renewal *EmailTemplate `json:"renewal,omitempty"`
}

// RenewalConfig controls renewal reminders for credentials issued under a
// configuration.
type RenewalConfig struct {
	Enabled       bool   `json:"enabled"`
	URL           string `json:"url,omitempty"`
	DiscountCode  string `json:"discount_code,omitempty"`
	TrackReferral bool   `json:"track_referral,omitempty"`
}

// PassConfiguration is a seller's pricing, delivery and notification setup.
// The JSONB sections are parsed only for the fields declared here.
type PassConfiguration struct {
	ID        string         `json:"id" db:"id"`
	SellerID  string         `json:"seller_id" db:"seller_id"`
	Pricing   PricingConfig  `json:"pricing" db:"pricing"`
	Delivery  DeliveryConfig `json:"delivery" db:"delivery"`
	Templates TemplateConfig `json:"templates" db:"templates"`
	Renewal   RenewalConfig  `json:"renewal" db:"renewal"`

	IsDefault bool `json:"-" db:"-"`
}

// DefaultConfiguration returns the sentinel configuration used when a pass
// references DefaultConfigurationID.
func DefaultConfiguration(sellerID string) *PassConfiguration {
	return &PassConfiguration{
		ID:        DefaultConfigurationID,
		SellerID:  sellerID,
		Pricing:   PricingConfig{Mode: PricingFixed, FixedAmount: decimal.Zero},
		IsDefault: true,
	}
}

// SendInput is a fully rendered email handed to a mail transport.
type SendInput struct {
	To          string
	From        SenderIdentity
	Subject     string
	BodyHTML    string
	BodyText    string
	ReferenceID string
}

// SenderIdentity defines the sender for outgoing emails.
type SenderIdentity struct {
	Name    string
	Address string
}
