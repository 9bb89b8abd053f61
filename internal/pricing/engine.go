// Package pricing computes the cost of a pass from a configuration's pricing
// section. All arithmetic is exact decimal; rounding to currency precision
// happens only on the final tax and total.
package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"daypass/internal/types"
)

// currencyPlaces is the precision applied to tax and total.
const currencyPlaces = 2

var hundred = decimal.NewFromInt(100)

// Calculate prices a pass for the given guest and day counts.
//
// Fixed mode returns the flat amount. Variable mode computes
//
//	subtotal = base + guestIncrement*max(0, guests-1) + dayIncrement*max(0, days-1) + commission
//	total    = subtotal + subtotal*taxPercent/100   (when tax is enabled)
//
// and returns every component in the breakdown.
func Calculate(cfg types.PricingConfig, guests, days int) (types.PriceBreakdown, error) {
	if guests < types.MinGuests {
		return types.PriceBreakdown{}, types.NewAppError(types.ErrCodeValidationGuests,
			fmt.Sprintf("guests must be at least %d", types.MinGuests), nil)
	}
	if days < types.MinDays {
		return types.PriceBreakdown{}, types.NewAppError(types.ErrCodeValidationDays,
			fmt.Sprintf("days must be at least %d", types.MinDays), nil)
	}

	if err := checkNonNegative(cfg); err != nil {
		return types.PriceBreakdown{}, err
	}

	switch cfg.Mode {
	case types.PricingFixed, "":
		total := cfg.FixedAmount.Round(currencyPlaces)
		return types.PriceBreakdown{
			Mode:     types.PricingFixed,
			Subtotal: total,
			Total:    total,
			Currency: cfg.Currency,
		}, nil
	case types.PricingVariable:
		return variable(cfg, guests, days), nil
	default:
		return types.PriceBreakdown{}, types.NewAppError(types.ErrCodeValidationPricingConfig,
			fmt.Sprintf("unknown pricing mode %q", cfg.Mode), nil)
	}
}

// checkNonNegative rejects negative amounts and percentages.
func checkNonNegative(cfg types.PricingConfig) error {
	fields := []struct {
		name  string
		value decimal.Decimal
	}{
		{"fixed amount", cfg.FixedAmount},
		{"base", cfg.Base},
		{"guest increment", cfg.GuestIncrement},
		{"day increment", cfg.DayIncrement},
		{"commission", cfg.Commission},
		{"tax percent", cfg.TaxPercent},
	}
	for _, f := range fields {
		if f.value.IsNegative() {
			return types.NewAppError(types.ErrCodeValidationPricingConfig,
				fmt.Sprintf("%s must not be negative", f.name), nil).
				WithDetails(map[string]any{"field": f.name, "value": f.value.String()})
		}
	}
	return nil
}

func variable(cfg types.PricingConfig, guests, days int) types.PriceBreakdown {
	extraGuests := decimal.NewFromInt(int64(max(0, guests-1)))
	extraDays := decimal.NewFromInt(int64(max(0, days-1)))

	guestCharge := cfg.GuestIncrement.Mul(extraGuests)
	dayCharge := cfg.DayIncrement.Mul(extraDays)
	subtotal := cfg.Base.Add(guestCharge).Add(dayCharge).Add(cfg.Commission)
	tax := decimal.Zero
	if cfg.TaxEnabled {
		tax = subtotal.Mul(cfg.TaxPercent).Div(hundred).Round(currencyPlaces)
	}

	return types.PriceBreakdown{
		Mode:           types.PricingVariable,
		Base:           cfg.Base,
		GuestIncrement: cfg.GuestIncrement,
		DayIncrement:   cfg.DayIncrement,
		GuestCharge:    guestCharge,
		DayCharge:      dayCharge,
		Commission:     cfg.Commission,
		Subtotal:       subtotal,
		TaxPercent:     cfg.TaxPercent,
		Tax:            tax,
		Total:          subtotal.Add(tax).Round(currencyPlaces),
		Currency:       cfg.Currency,
	}
}
