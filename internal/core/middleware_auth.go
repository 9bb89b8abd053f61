package core

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"daypass/internal/types"
)

// RequireServiceKey guards internal callers (checkout, admin tooling) with a
// static bearer key. Responses:
//   - auth_token_missing: no Authorization header or an empty bearer token.
//   - auth_token_invalid: the token does not match.
//
// An unset key rejects every request rather than opening the route.
func (s *Server) RequireServiceKey(key types.SecretString) func(http.Handler) http.Handler {
	expected := []byte(key.Unmask())

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearerToken(r.Header.Get("Authorization"))
			if token == "" {
				s.writeAuthError(w, r, types.ErrCodeAuthTokenMissing, "Bearer token is required")
				return
			}

			if len(expected) == 0 || subtle.ConstantTimeCompare([]byte(token), expected) != 1 {
				s.Logger.WarnContext(r.Context(), "authentication failed: service key mismatch",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
				)
				s.writeAuthError(w, r, types.ErrCodeAuthTokenInvalid, "Invalid authentication token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// extractBearerToken returns the token from "Bearer <token>" (scheme matched
// case-insensitively per RFC 7235), or "" when the header is malformed.
func extractBearerToken(authHeader string) string {
	const prefix = "Bearer "
	if len(authHeader) < len(prefix) {
		return ""
	}
	if !strings.EqualFold(authHeader[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(authHeader[len(prefix):])
}

func (s *Server) writeAuthError(w http.ResponseWriter, r *http.Request, code types.ErrorCode, message string) {
	Error(w, r, types.NewAppError(code, message, nil))
}
