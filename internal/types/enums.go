package types

// IssuanceChannel identifies the upstream path that requested a pass.
type IssuanceChannel string

const (
	ChannelSeller  IssuanceChannel = "seller"
	ChannelPayment IssuanceChannel = "payment"
)

// CodePrefix returns the credential code prefix for the channel.
func (c IssuanceChannel) CodePrefix() string {
	if c == ChannelPayment {
		return "PAY"
	}
	return "QR"
}

// Valid reports whether c is a known channel.
func (c IssuanceChannel) Valid() bool {
	return c == ChannelSeller || c == ChannelPayment
}

// DeliveryMethod describes how the credential reaches the recipient.
type DeliveryMethod string

const (
	// DeliveryDirect embeds the credential code in the welcome email.
	DeliveryDirect DeliveryMethod = "direct"
	// DeliveryLink sends a portal link the recipient opens to view the pass.
	DeliveryLink DeliveryMethod = "link"
)

// Valid reports whether m is a known delivery method.
func (m DeliveryMethod) Valid() bool {
	return m == DeliveryDirect || m == DeliveryLink
}

// PricingMode selects how a configuration prices a pass.
type PricingMode string

const (
	PricingFixed    PricingMode = "fixed"
	PricingVariable PricingMode = "variable"
)

// TemplateKey names a system email template stored in the database.
type TemplateKey string

const (
	TemplateWelcome        TemplateKey = "welcome"
	TemplateWelcomePayment TemplateKey = "welcome_payment"
	TemplateRenewal        TemplateKey = "renewal"
)

// ActivationStatus is the outcome reported for a single wake-up.
type ActivationStatus string

const (
	ActivationActivated        ActivationStatus = "activated"
	ActivationAlreadyProcessed ActivationStatus = "already_processed"
	ActivationExhausted        ActivationStatus = "retries_exhausted"
	ActivationFailed           ActivationStatus = "failed"
)

// ReminderStatus is the outcome of a renewal reminder wake-up.
type ReminderStatus string

const (
	ReminderSent     ReminderStatus = "sent"
	ReminderSkipped  ReminderStatus = "skipped"
	ReminderFailed   ReminderStatus = "failed"
	ReminderInactive ReminderStatus = "inactive"
)
