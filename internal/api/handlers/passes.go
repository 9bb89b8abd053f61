package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"daypass/internal/core"
	"daypass/internal/passes"
	"daypass/internal/types"
)

// PassRequester routes a pass request to immediate or deferred issuance.
type PassRequester interface {
	Request(ctx context.Context, req passes.Request) (*passes.Result, error)
}

// passRequestBody is the POST /v1/passes payload. Ranges for guests, days
// and the delivery method are checked by the order itself so the specific
// validation codes reach the caller.
type passRequestBody struct {
	SellerID        string     `json:"sellerID" validate:"required"`
	ConfigurationID string     `json:"configurationID" validate:"required"`
	Channel         string     `json:"channel,omitempty" validate:"omitempty,oneof=seller payment"`
	RecipientName   string     `json:"recipientName" validate:"required"`
	RecipientEmail  string     `json:"recipientEmail" validate:"required"`
	Guests          int        `json:"guests"`
	Days            int        `json:"days"`
	DeliveryMethod  string     `json:"deliveryMethod"`
	LandingPageID   string     `json:"landingPageID,omitempty"`
	ActivateAt      *time.Time `json:"activateAt,omitempty"`
}

func (b *passRequestBody) toRequest() passes.Request {
	channel := types.IssuanceChannel(b.Channel)
	if channel == "" {
		channel = types.ChannelSeller
	}
	return passes.Request{
		Order: types.PassOrder{
			SellerID:        b.SellerID,
			ConfigurationID: b.ConfigurationID,
			Channel:         channel,
			RecipientName:   b.RecipientName,
			RecipientEmail:  b.RecipientEmail,
			Guests:          b.Guests,
			Days:            b.Days,
			DeliveryMethod:  types.DeliveryMethod(b.DeliveryMethod),
			LandingPageID:   b.LandingPageID,
		},
		ActivateAt: b.ActivateAt,
	}
}

// PassHandler serves pass requests from checkout and seller tooling.
type PassHandler struct {
	service   PassRequester
	validator *core.Validator
	auth      func(http.Handler) http.Handler
	logger    *slog.Logger
}

// NewPassHandler creates a PassHandler. auth guards the route, typically
// Server.RequireServiceKey.
func NewPassHandler(service PassRequester, v *core.Validator, auth func(http.Handler) http.Handler, logger *slog.Logger) *PassHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if v == nil {
		v = core.NewValidator(logger)
	}
	return &PassHandler{service: service, validator: v, auth: auth, logger: logger}
}

// RegisterRoutes mounts POST /v1/passes.
func (h *PassHandler) RegisterRoutes(r chi.Router) {
	if h.auth != nil {
		r = r.With(h.auth)
	}
	r.Post("/passes", h.Create)
}

// Create answers 201 with the issued credential on the immediate path and
// 202 with the schedule record on the deferred path.
func (h *PassHandler) Create(w http.ResponseWriter, r *http.Request) {
	var body passRequestBody
	if err := core.DecodeJSON(w, r, &body); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(&body); err != nil {
		core.Error(w, r, err)
		return
	}

	res, err := h.service.Request(r.Context(), body.toRequest())
	if err != nil {
		h.logger.WarnContext(r.Context(), "pass request failed",
			"seller_id", body.SellerID,
			"error", err,
		)
		core.Error(w, r, err)
		return
	}

	if res.Scheduled {
		message := "activation scheduled"
		if res.SweepFallback {
			message = "activation recorded, scheduler unavailable"
		}
		core.Result(w, r, http.StatusAccepted, true, message, map[string]any{
			"recordID":      res.RecordID,
			"jobID":         res.JobID,
			"sweepFallback": res.SweepFallback,
		})
		return
	}

	details := map[string]any{}
	if out := res.Outcome; out != nil {
		details["status"] = out.Status
		details["welcomeSent"] = out.WelcomeSent
		details["renewalScheduled"] = out.RenewalScheduled
		if out.Credential != nil {
			details["credentialID"] = out.Credential.ID
			details["credentialCode"] = out.Credential.Code
			details["cost"] = out.Credential.Cost
			details["expiresAt"] = out.Credential.ExpiresAt
		}
	}
	core.Result(w, r, http.StatusCreated, true, "credential issued", details)
}
