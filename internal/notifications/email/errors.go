// Package email composes and sends the pass pipeline's messages: the welcome
// email at activation, the renewal reminder before expiry and the operator
// warning on retry exhaustion. Every send is best-effort; callers receive a
// boolean or status, never a transport error.
package email

import (
	"daypass/internal/types"
)

// IsBlocked reports whether the transport refused the recipient (suppression
// list, hard bounce). Such failures are logged at warn level since retrying
// cannot succeed.
func IsBlocked(err error) bool {
	return types.IsCode(err, types.ErrCodeEmailBlocked)
}
