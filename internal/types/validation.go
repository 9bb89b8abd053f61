package types

import (
	"fmt"
	"net/mail"
	"time"
)

// Validation constraint constants.
const (
	MinGuests         = 1
	MaxGuests         = 100
	MinDays           = 1
	MaxDays           = 365
	MaxScheduleWindow = 366 * 24 * time.Hour
)

// Validate checks the order fields shared by the immediate and deferred paths.
func (o PassOrder) Validate() error {
	if o.SellerID == "" {
		return NewAppError(ErrCodeValidationMissingField, "seller_id is required", nil)
	}
	if o.ConfigurationID == "" {
		return NewAppError(ErrCodeValidationMissingField, "configuration_id is required", nil)
	}
	if !o.Channel.Valid() {
		return NewAppError(ErrCodeValidationMissingField, fmt.Sprintf("unknown channel %q", o.Channel), nil)
	}
	if o.RecipientName == "" {
		return NewAppError(ErrCodeValidationMissingField, "recipient_name is required", nil)
	}
	if _, err := mail.ParseAddress(o.RecipientEmail); err != nil {
		return NewAppError(ErrCodeValidationInvalidEmail, "recipient_email is not a valid address", err)
	}
	if o.Guests < MinGuests || o.Guests > MaxGuests {
		return NewAppError(ErrCodeValidationGuests,
			fmt.Sprintf("guests must be between %d and %d", MinGuests, MaxGuests), nil)
	}
	if o.Days < MinDays || o.Days > MaxDays {
		return NewAppError(ErrCodeValidationDays,
			fmt.Sprintf("days must be between %d and %d", MinDays, MaxDays), nil)
	}
	if !o.DeliveryMethod.Valid() {
		return NewAppError(ErrCodeValidationDeliveryMethod,
			fmt.Sprintf("unknown delivery method %q", o.DeliveryMethod), nil)
	}
	return nil
}
