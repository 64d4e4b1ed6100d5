package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/patrickmn/go-cache"
	log "github.com/sirupsen/logrus"

	"betihari-backend/pkg/checkout"
	"betihari-backend/pkg/metrics"
	"betihari-backend/pkg/middleware"
	"betihari-backend/pkg/models"
	"betihari-backend/pkg/payments"
	"betihari-backend/pkg/utils"
)

// flowTTL bounds how long an abandoned checkout modal is remembered.
const flowTTL = 30 * time.Minute

// CheckoutHandler opens donation and membership checkouts. Embedded flows are
// kept per browser session and kind.
type CheckoutHandler struct {
	checkout *checkout.Checkout
	gateway  payments.Gateway
	metrics  *metrics.Metrics
	flows    *cache.Cache
}

func NewCheckoutHandler(c *checkout.Checkout, gateway payments.Gateway, m *metrics.Metrics) *CheckoutHandler {
	return &CheckoutHandler{
		checkout: c,
		gateway:  gateway,
		metrics:  m,
		flows:    cache.New(flowTTL, 10*time.Minute),
	}
}

type kindRequest struct {
	Kind models.CheckoutKind `json:"kind" validate:"required,oneof=donation membership"`
}

func flowKey(r *http.Request, kind models.CheckoutKind) string {
	return middleware.SessionKey(r.Context()) + ":" + string(kind)
}

func (h *CheckoutHandler) flow(r *http.Request, kind models.CheckoutKind) (*checkout.Flow, bool) {
	v, ok := h.flows.Get(flowKey(r, kind))
	if !ok {
		return nil, false
	}
	return v.(*checkout.Flow), true
}

// Config handles GET /api/checkout/config.
func (h *CheckoutHandler) Config(w http.ResponseWriter, r *http.Request) {
	utils.WriteSuccessResponse(w, map[string]interface{}{
		"capability":     h.checkout.Capability(),
		"publishableKey": h.checkout.PublishableKey(),
		"presets":        checkout.PresetDollars,
		"minimumCents":   checkout.MinimumCents,
	})
}

// Open handles POST /api/checkout/open. With embedded checkout a fresh flow
// replaces any earlier one for the same kind.
func (h *CheckoutHandler) Open(w http.ResponseWriter, r *http.Request) {
	var req kindRequest
	if !utils.DecodeAndValidate(w, r, &req) {
		return
	}
	opening := h.checkout.Open(req.Kind)
	if flow, err := h.checkout.Start(req.Kind); err == nil {
		h.flows.SetDefault(flowKey(r, req.Kind), flow)
		utils.WriteSuccessResponse(w, map[string]interface{}{"opening": opening, "state": flow.State()})
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"opening": opening})
}

// Amount handles POST /api/checkout/amount with either a preset or free text.
func (h *CheckoutHandler) Amount(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Preset int64  `json:"preset" validate:"omitempty,gt=0"`
		Custom string `json:"custom" validate:"max=64"`
	}
	if !utils.DecodeAndValidate(w, r, &req) {
		return
	}
	flow, ok := h.flow(r, models.KindDonation)
	if !ok {
		utils.WriteNotFoundResponse(w, "No open donation checkout")
		return
	}
	var err error
	if req.Preset > 0 {
		err = flow.SelectPreset(req.Preset)
	} else {
		_, err = flow.SetCustomAmount(req.Custom)
	}
	if errors.Is(err, checkout.ErrUnknownPreset) {
		utils.WriteValidationErrorResponse(w, "Invalid donation amount", "preset must be one of the offered amounts")
		return
	}
	if err != nil {
		utils.WriteConflictResponse(w, "The donation amount can no longer be changed")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"state": flow.State(), "canContinue": flow.CanContinue()})
}

// Continue handles POST /api/checkout/continue. A failed session request keeps
// the flow at its previous step with a user-facing error in the state.
func (h *CheckoutHandler) Continue(w http.ResponseWriter, r *http.Request) {
	var req struct {
		kindRequest
		ReturnURL string `json:"returnUrl"`
	}
	if !utils.DecodeAndValidate(w, r, &req) {
		return
	}
	flow, ok := h.flow(r, req.Kind)
	if !ok {
		utils.WriteNotFoundResponse(w, "No open checkout")
		return
	}
	err := flow.Continue(r.Context(), h.gateway, h.checkout.ReturnURL(req.ReturnURL))
	if errors.Is(err, checkout.ErrCannotContinue) {
		utils.WriteBadRequestResponse(w, "Please choose an amount of at least $1")
		return
	}
	if errors.Is(err, checkout.ErrFlowClosed) {
		utils.WriteSuccessResponse(w, map[string]interface{}{"state": flow.State()})
		return
	}
	h.metrics.CheckoutSession(string(req.Kind), err == nil)
	utils.WriteSuccessResponse(w, map[string]interface{}{"state": flow.State()})
}

// Close handles POST /api/checkout/close.
func (h *CheckoutHandler) Close(w http.ResponseWriter, r *http.Request) {
	var req kindRequest
	if !utils.DecodeAndValidate(w, r, &req) {
		return
	}
	if flow, ok := h.flow(r, req.Kind); ok {
		flow.Close()
		h.flows.Delete(flowKey(r, req.Kind))
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"step": checkout.StepClosed})
}

// CreateSession handles POST /api/create-checkout-session.
func (h *CheckoutHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req models.CheckoutSessionRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid JSON payload")
		return
	}
	kind := models.KindDonation
	if req.Subscription {
		kind = models.KindMembership
	} else if !checkout.ValidAmount(req.Amount) {
		utils.WriteValidationErrorResponse(w, "Invalid donation amount", "amount must be at least 100 cents")
		return
	}
	req.Embedded = true
	req.ReturnURL = h.checkout.ReturnURL(req.ReturnURL)

	session, err := h.gateway.CreateCheckoutSession(r.Context(), req)
	h.metrics.CheckoutSession(string(kind), err == nil)
	if err != nil {
		log.WithError(err).WithField("kind", kind).Error("checkout session creation failed")
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"clientSecret": session.ClientSecret, "id": session.ID})
}
