// Package handlers contains the HTTP handlers for the daypass API.
//
// The wake-up endpoints are not behind the service-key middleware. They are
// called by the deferred job scheduler and authenticate each request from
// its raw body and headers before anything is decoded.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"daypass/internal/activation"
	"daypass/internal/core"
	"daypass/internal/scheduler"
	"daypass/internal/types"
)

// WakeupVerifier authenticates a wake-up from its headers and exact body.
type WakeupVerifier interface {
	Verify(h http.Header, body []byte) error
}

// ActivationController runs one activation wake-up.
type ActivationController interface {
	Handle(ctx context.Context, recordID string, isRetry bool) (*activation.Outcome, error)
}

// ReminderSender sends one renewal reminder.
type ReminderSender interface {
	Send(ctx context.Context, credentialID string) (types.ReminderStatus, error)
}

// WakeupHandler serves the activation and renewal wake-up endpoints.
type WakeupHandler struct {
	verifier   WakeupVerifier
	controller ActivationController
	reminders  ReminderSender
	validator  *core.Validator
	logger     *slog.Logger
}

// NewWakeupHandler creates a WakeupHandler.
func NewWakeupHandler(
	verifier WakeupVerifier,
	controller ActivationController,
	reminders ReminderSender,
	v *core.Validator,
	logger *slog.Logger,
) *WakeupHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if v == nil {
		v = core.NewValidator(logger)
	}
	return &WakeupHandler{
		verifier:   verifier,
		controller: controller,
		reminders:  reminders,
		validator:  v,
		logger:     logger,
	}
}

// RegisterRoutes mounts the wake-up endpoints on the /v1 router.
func (h *WakeupHandler) RegisterRoutes(r chi.Router) {
	r.Post(strings.TrimPrefix(types.ActivationWakeupPath, "/v1"), h.Activation)
	r.Post(strings.TrimPrefix(types.RenewalWakeupPath, "/v1"), h.Renewal)
}

// Activation handles POST /v1/wakeups/activation.
//
// Handled wake-ups answer 200, including idempotent no-ops and exhausted
// records (success=false) so the scheduler stops redelivering. Failed
// attempts answer 500 so the scheduler retries them.
func (h *WakeupHandler) Activation(w http.ResponseWriter, r *http.Request) {
	var payload types.ActivationWakeup
	if !h.authenticate(w, r, &payload) {
		return
	}

	isRetry := payload.IsRetry || redeliveryCount(r) > 0
	log := h.logger.With("schedule_id", payload.RecordID, "is_retry", isRetry)

	out, err := h.controller.Handle(r.Context(), payload.RecordID, isRetry)
	if err != nil {
		log.WarnContext(r.Context(), "activation wake-up failed", "error", err)
		writeWakeupError(w, r, err)
		return
	}

	switch out.Status {
	case types.ActivationActivated:
		details := map[string]any{
			"status":           out.Status,
			"welcomeSent":      out.WelcomeSent,
			"renewalScheduled": out.RenewalScheduled,
		}
		if out.Credential != nil {
			details["credentialID"] = out.Credential.ID
			details["credentialCode"] = out.Credential.Code
			details["expiresAt"] = out.Credential.ExpiresAt
		}
		core.Success(w, r, "credential issued", details)
	case types.ActivationAlreadyProcessed:
		core.Success(w, r, "schedule already processed", map[string]any{"status": out.Status})
	case types.ActivationExhausted:
		core.Result(w, r, http.StatusOK, false, "retries exhausted, operator notified", map[string]any{
			"status": out.Status,
			"code":   types.ErrCodeInternalRetriesExhausted,
		})
	default:
		log.ErrorContext(r.Context(), "unexpected activation status", "status", out.Status)
		writeWakeupError(w, r, nil)
	}
}

// Renewal handles POST /v1/wakeups/renewal. A failed send is reported with
// success=false and 200; the reminder stays pending for the sweep.
func (h *WakeupHandler) Renewal(w http.ResponseWriter, r *http.Request) {
	var payload types.RenewalWakeup
	if !h.authenticate(w, r, &payload) {
		return
	}

	status, err := h.reminders.Send(r.Context(), payload.CredentialID)
	if err != nil {
		h.logger.WarnContext(r.Context(), "renewal wake-up failed",
			"credential_id", payload.CredentialID,
			"error", err,
		)
		writeWakeupError(w, r, err)
		return
	}

	details := map[string]any{"status": status}
	switch status {
	case types.ReminderSent:
		core.Success(w, r, "renewal reminder sent", details)
	case types.ReminderSkipped:
		core.Success(w, r, "renewal reminder already handled", details)
	case types.ReminderInactive:
		core.Success(w, r, "credential inactive, reminder skipped", details)
	default:
		core.Result(w, r, http.StatusOK, false, "renewal reminder could not be sent", details)
	}
}

// authenticate reads the raw body, verifies it, then decodes and validates
// dst. It writes the error response and returns false on any failure. No
// state is touched before verification succeeds.
func (h *WakeupHandler) authenticate(w http.ResponseWriter, r *http.Request, dst any) bool {
	body, err := core.ReadBody(w, r)
	if err != nil {
		core.Error(w, r, err)
		return false
	}

	if err := h.verifier.Verify(r.Header, body); err != nil {
		h.logger.WarnContext(r.Context(), "wake-up verification failed",
			"path", r.URL.Path,
			"error", err,
		)
		core.Error(w, r, err)
		return false
	}

	if err := core.DecodeBytes(body, dst); err != nil {
		core.Error(w, r, err)
		return false
	}
	if err := h.validator.ValidateStruct(dst); err != nil {
		core.Error(w, r, err)
		return false
	}
	return true
}

// redeliveryCount reads the scheduler's redelivery header. Missing or
// malformed values count as zero.
func redeliveryCount(r *http.Request) int {
	n, err := strconv.Atoi(r.Header.Get(scheduler.HeaderRetried))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// writeWakeupError narrows error statuses to the wake-up contract: 400, 401
// and 404 pass through, everything else is a 500.
func writeWakeupError(w http.ResponseWriter, r *http.Request, err error) {
	if err != nil {
		switch types.ErrorCodeOf(err).HTTPStatus() {
		case http.StatusBadRequest, http.StatusUnauthorized, http.StatusNotFound:
			core.Error(w, r, err)
			return
		}
	}
	core.Result(w, r, http.StatusInternalServerError, false, "wake-up processing failed", map[string]any{
		"code": types.ErrorCodeOf(err),
	})
}
