package core

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"daypass/internal/types"
)

func TestRequireServiceKey(t *testing.T) {
	tests := []struct {
		name       string
		key        types.SecretString
		header     string
		wantStatus int
		wantCode   types.ErrorCode
	}{
		{"valid key", "svc-key", "Bearer svc-key", http.StatusOK, ""},
		{"scheme is case-insensitive", "svc-key", "bearer svc-key", http.StatusOK, ""},
		{"missing header", "svc-key", "", http.StatusUnauthorized, types.ErrCodeAuthTokenMissing},
		{"wrong scheme", "svc-key", "Basic svc-key", http.StatusUnauthorized, types.ErrCodeAuthTokenMissing},
		{"empty token", "svc-key", "Bearer   ", http.StatusUnauthorized, types.ErrCodeAuthTokenMissing},
		{"wrong key", "svc-key", "Bearer other", http.StatusUnauthorized, types.ErrCodeAuthTokenInvalid},
		{"unset key rejects", "", "Bearer anything", http.StatusUnauthorized, types.ErrCodeAuthTokenInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t)
			reached := false
			h := srv.RequireServiceKey(tt.key)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				reached = true
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodPost, "/v1/passes", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantCode == "" {
				if !reached {
					t.Error("expected next handler to run")
				}
				return
			}
			if reached {
				t.Error("next handler must not run on auth failure")
			}
			body := decodeEnvelope(t, rec)
			if body["code"] != string(tt.wantCode) {
				t.Errorf("code = %v, want %s", body["code"], tt.wantCode)
			}
		})
	}
}
