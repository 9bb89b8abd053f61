package types

import "time"

// ActivationWakeup is the body delivered by the deferred job scheduler to the
// activation endpoint.
type ActivationWakeup struct {
	RecordID string `json:"recordID" validate:"required"`
	IsRetry  bool   `json:"isRetry,omitempty"`
}

// RenewalWakeup is the body delivered to the renewal reminder endpoint.
type RenewalWakeup struct {
	CredentialID string `json:"credentialID" validate:"required"`
}

// WakeupEnvelope wraps a scheduled callback when the queue backend carries it.
type WakeupEnvelope struct {
	CallbackURL  string `json:"callback_url"`
	FireAtMillis int64  `json:"fire_at_ms"`
	Payload      []byte `json:"payload"`
	Hops         int    `json:"hops,omitempty"`
}

// FireTime returns the instant the callback becomes due.
func (e WakeupEnvelope) FireTime() time.Time {
	return time.UnixMilli(e.FireAtMillis)
}

// Wake-up endpoint paths, relative to the public API base URL.
const (
	ActivationWakeupPath = "/v1/wakeups/activation"
	RenewalWakeupPath    = "/v1/wakeups/renewal"
)
