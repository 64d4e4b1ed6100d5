package handlers

import (
	"context"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"betihari-backend/pkg/mailer"
	"betihari-backend/pkg/models"
	"betihari-backend/pkg/payments"
	"betihari-backend/pkg/utils"
)

// welcomeTimeout bounds the best-effort welcome email after a registration.
const welcomeTimeout = 10 * time.Second

// DonationsHandler serves the finance endpoints backed by the payment gateway.
type DonationsHandler struct {
	gateway   payments.Gateway
	analytics *payments.Analytics
	mailer    mailer.Mailer
}

func NewDonationsHandler(gateway payments.Gateway, analytics *payments.Analytics, m mailer.Mailer) *DonationsHandler {
	return &DonationsHandler{gateway: gateway, analytics: analytics, mailer: m}
}

// Report handles GET /api/get-donations. Partial failures are reported in the
// payload's errors list; ?refresh=true bypasses the cache.
func (h *DonationsHandler) Report(w http.ResponseWriter, r *http.Request) {
	var report *models.DonationReport
	if utils.GetQueryParam(r, "refresh", "") == "true" {
		report = h.analytics.Refresh(r.Context())
	} else {
		report = h.analytics.Report(r.Context())
	}
	utils.WriteSuccessResponse(w, report)
}

// Customers handles GET /api/stripe-customers?email=&startingAfter=&limit=&community=true
func (h *DonationsHandler) Customers(w http.ResponseWriter, r *http.Request) {
	q := models.CustomerQuery{
		Email:         utils.GetQueryParam(r, "email", ""),
		StartingAfter: utils.GetQueryParam(r, "startingAfter", ""),
		Limit:         int64(intQuery(r, "limit", 25, 100)),
		CommunityOnly: utils.GetQueryParam(r, "community", "") == "true",
	}
	page, err := h.gateway.ListCustomers(r.Context(), q)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccessResponse(w, page)
}

// RegisterCommunityMember handles POST /api/register-community-member. The
// welcome email is sent after the response and its failure only logged.
func (h *DonationsHandler) RegisterCommunityMember(w http.ResponseWriter, r *http.Request) {
	var req models.CommunityMemberRequest
	if !utils.DecodeAndValidate(w, r, &req) {
		return
	}
	req.Email = models.NormalizeEmail(req.Email)

	customer, err := h.gateway.CreateCustomer(r.Context(), req)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	if mailer.Configured(h.mailer) {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), welcomeTimeout)
			defer cancel()
			if err := h.mailer.Send(ctx, mailer.Welcome(req)); err != nil {
				log.WithError(err).WithField("customer", customer.ID).Warn("failed to send welcome email")
			}
		}()
	}
	utils.WriteCreatedResponse(w, map[string]interface{}{"customer": customer})
}

// UpdateCustomer handles POST /api/update-stripe-customer.
func (h *DonationsHandler) UpdateCustomer(w http.ResponseWriter, r *http.Request) {
	var req models.CustomerUpdateRequest
	if !utils.DecodeAndValidate(w, r, &req) {
		return
	}
	customer, err := h.gateway.UpdateCustomer(r.Context(), req)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"customer": customer})
}

// RequestPayment handles POST /api/request-payment.
func (h *DonationsHandler) RequestPayment(w http.ResponseWriter, r *http.Request) {
	var req models.PaymentRequest
	if !utils.DecodeAndValidate(w, r, &req) {
		return
	}
	invoice, err := h.gateway.RequestPayment(r.Context(), req)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteCreatedResponse(w, map[string]interface{}{"invoice": invoice})
}
