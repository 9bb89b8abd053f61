// Package auth authenticates inbound wake-up callbacks from the deferred job
// scheduler and signs the ones this service delivers itself.
//
// Two modes are accepted:
//   - Signed: Webhook-Timestamp and Webhook-Signature headers, where the
//     signature is "v1,<base64 HMAC-SHA256(key, timestamp + "." + body)>".
//     Several space-separated signatures may be supplied; both the current
//     and the next signing key are tried so keys can rotate without downtime.
//   - Bearer: "Authorization: Bearer <secret>", used for operator replays and
//     only consulted when the signed headers are absent.
//
// A verifier with no key and no bearer secret configured accepts everything.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"strconv"
	"strings"
	"time"

	"daypass/internal/types"
)

// Header names carried by signed wake-ups.
const (
	HeaderTimestamp = "Webhook-Timestamp"
	HeaderSignature = "Webhook-Signature"
)

const (
	signatureVersion = "v1"
	defaultTolerance = 5 * time.Minute
)

// VerifierConfig holds the wake-up secrets.
type VerifierConfig struct {
	CurrentKey   types.SecretString
	NextKey      types.SecretString
	BearerSecret types.SecretString
	// Tolerance bounds the distance between the signed timestamp and now.
	Tolerance time.Duration
	Clock     types.Clock
}

// Verifier checks wake-up requests against the configured secrets.
type Verifier struct {
	keys      [][]byte
	bearer    string
	tolerance time.Duration
	clock     types.Clock
}

// NewVerifier creates a Verifier. Unset keys are ignored.
func NewVerifier(cfg VerifierConfig) *Verifier {
	v := &Verifier{
		bearer:    cfg.BearerSecret.Unmask(),
		tolerance: cfg.Tolerance,
		clock:     cfg.Clock,
	}
	for _, k := range []types.SecretString{cfg.CurrentKey, cfg.NextKey} {
		if k.IsSet() {
			v.keys = append(v.keys, []byte(k.Unmask()))
		}
	}
	if v.tolerance <= 0 {
		v.tolerance = defaultTolerance
	}
	if v.clock == nil {
		v.clock = types.RealClock{}
	}
	return v
}

// Enabled reports whether any secret is configured.
func (v *Verifier) Enabled() bool {
	return len(v.keys) > 0 || v.bearer != ""
}

// Verify authenticates a request from its headers and raw body. It returns
// nil when the request is accepted and an auth_* AppError otherwise.
func (v *Verifier) Verify(h http.Header, body []byte) error {
	if !v.Enabled() {
		return nil
	}

	ts, sig := h.Get(HeaderTimestamp), h.Get(HeaderSignature)
	if ts != "" || sig != "" {
		return v.verifySigned(ts, sig, body)
	}

	token, ok := bearerToken(h.Get("Authorization"))
	if !ok {
		return types.NewAppError(types.ErrCodeAuthTokenMissing, "wake-up credentials missing", nil)
	}
	if v.bearer == "" || subtle.ConstantTimeCompare([]byte(token), []byte(v.bearer)) != 1 {
		return types.NewAppError(types.ErrCodeAuthTokenInvalid, "invalid bearer token", nil)
	}
	return nil
}

func (v *Verifier) verifySigned(ts, header string, body []byte) error {
	if len(v.keys) == 0 {
		return types.NewAppError(types.ErrCodeAuthSignatureInvalid, "signed wake-ups are not configured", nil)
	}
	if ts == "" || header == "" {
		return types.NewAppError(types.ErrCodeAuthSignatureInvalid, "incomplete signature headers", nil)
	}

	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return types.NewAppError(types.ErrCodeAuthSignatureInvalid, "malformed signature timestamp", err)
	}
	skew := v.clock.Now().Sub(time.Unix(unix, 0))
	if skew < 0 {
		skew = -skew
	}
	if skew > v.tolerance {
		return types.NewAppError(types.ErrCodeAuthSignatureExpired, "signature timestamp outside tolerance", nil)
	}

	for _, key := range v.keys {
		expected := []byte(compute(key, ts, body))
		for _, candidate := range strings.Fields(header) {
			version, value, ok := strings.Cut(candidate, ",")
			if !ok || version != signatureVersion {
				continue
			}
			if hmac.Equal([]byte(value), expected) {
				return nil
			}
		}
	}
	return types.NewAppError(types.ErrCodeAuthSignatureInvalid, "signature mismatch", nil)
}

// Signer produces signature headers the Verifier accepts.
type Signer struct {
	key []byte
}

// NewSigner creates a Signer for key.
func NewSigner(key types.SecretString) *Signer {
	return &Signer{key: []byte(key.Unmask())}
}

// Sign returns the timestamp and signature header values for body.
func (s *Signer) Sign(body []byte, now time.Time) (timestamp, signature string) {
	timestamp = strconv.FormatInt(now.Unix(), 10)
	return timestamp, signatureVersion + "," + compute(s.key, timestamp, body)
}

// Apply sets the signature headers on h.
func (s *Signer) Apply(h http.Header, body []byte, now time.Time) {
	ts, sig := s.Sign(body, now)
	h.Set(HeaderTimestamp, ts)
	h.Set(HeaderSignature, sig)
}

func compute(key []byte, ts string, body []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
