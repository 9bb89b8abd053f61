package types

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Compile-time interface assertions.
// Scan is on pointer receivers; Value is on value receivers.
var (
	_ sql.Scanner   = (*PriceBreakdown)(nil)
	_ driver.Valuer = PriceBreakdown{}
	_ sql.Scanner   = (*PricingConfig)(nil)
	_ driver.Valuer = PricingConfig{}
	_ sql.Scanner   = (*DeliveryConfig)(nil)
	_ driver.Valuer = DeliveryConfig{}
	_ sql.Scanner   = (*TemplateConfig)(nil)
	_ driver.Valuer = TemplateConfig{}
	_ sql.Scanner   = (*RenewalConfig)(nil)
	_ driver.Valuer = RenewalConfig{}
)

// scanJSONB scans a JSONB database value into a Go pointer.
// It handles nil values, []byte, and string representations from different database drivers.
func scanJSONB(dest interface{}, value interface{}) error {
	if value == nil {
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("jsonb: unsupported scan type %T", value)
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, dest)
}

func valueJSONB(v interface{}) (driver.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (p *PriceBreakdown) Scan(value interface{}) error { return scanJSONB(p, value) }

// Value implements driver.Valuer.
func (p PriceBreakdown) Value() (driver.Value, error) { return valueJSONB(p) }

// Scan implements sql.Scanner.
func (p *PricingConfig) Scan(value interface{}) error { return scanJSONB(p, value) }

// Value implements driver.Valuer.
func (p PricingConfig) Value() (driver.Value, error) { return valueJSONB(p) }

// Scan implements sql.Scanner.
func (d *DeliveryConfig) Scan(value interface{}) error { return scanJSONB(d, value) }

// Value implements driver.Valuer.
func (d DeliveryConfig) Value() (driver.Value, error) { return valueJSONB(d) }

// Scan implements sql.Scanner.
func (t *TemplateConfig) Scan(value interface{}) error { return scanJSONB(t, value) }

// Value implements driver.Valuer.
func (t TemplateConfig) Value() (driver.Value, error) { return valueJSONB(t) }

// Scan implements sql.Scanner.
func (r *RenewalConfig) Scan(value interface{}) error { return scanJSONB(r, value) }

// Value implements driver.Valuer.
func (r RenewalConfig) Value() (driver.Value, error) { return valueJSONB(r) }
