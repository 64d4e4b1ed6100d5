package handlers

import (
	"context"
	"io"
	"net/http"

	log "github.com/sirupsen/logrus"

	"betihari-backend/pkg/events"
	"betihari-backend/pkg/mailer"
	"betihari-backend/pkg/metrics"
	"betihari-backend/pkg/payments"
	"betihari-backend/pkg/utils"
)

// maxWebhookBytes matches the largest payload the gateway sends.
const maxWebhookBytes = 65536

// WebhookHandler receives gateway notifications.
type WebhookHandler struct {
	gateway   payments.Gateway
	analytics *payments.Analytics
	mailer    mailer.Mailer
	bus       events.Publisher
	metrics   *metrics.Metrics
}

func NewWebhookHandler(gateway payments.Gateway, analytics *payments.Analytics, m mailer.Mailer, bus events.Publisher, mt *metrics.Metrics) *WebhookHandler {
	return &WebhookHandler{gateway: gateway, analytics: analytics, mailer: m, bus: bus, metrics: mt}
}

// HandleStripeWebhook handles POST /api/webhooks/stripe. The signature is
// checked before anything in the payload is trusted.
func (h *WebhookHandler) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		utils.WriteBadRequestResponse(w, "Failed to read request body")
		return
	}

	event, err := h.gateway.ParseWebhook(body, r.Header.Get("Stripe-Signature"))
	if err != nil {
		log.WithError(err).Warn("rejected webhook")
		utils.WriteError(w, err)
		return
	}

	logger := log.WithFields(log.Fields{"event": event.ID, "type": event.Type})
	switch event.Type {
	case payments.EventCheckoutCompleted:
		if event.Checkout != nil {
			h.checkoutCompleted(event.Checkout)
		}
	case payments.EventInvoicePaid:
		h.analytics.Invalidate()
	default:
		logger.Debug("ignoring webhook event")
		utils.WriteSuccessResponse(w, map[string]string{"status": "ignored"})
		return
	}

	logger.Info("processed webhook")
	utils.WriteSuccessResponse(w, map[string]string{"status": "processed"})
}

func (h *WebhookHandler) checkoutCompleted(c *payments.CompletedCheckout) {
	h.metrics.DonationCompleted(c.AmountTotal)
	h.analytics.Invalidate()
	h.bus.Publish(events.TopicDonationCompleted, map[string]interface{}{
		"sessionId":  c.SessionID,
		"amount":     c.AmountTotal,
		"currency":   c.Currency,
		"membership": c.Membership,
	})

	if c.Email == "" || !mailer.Configured(h.mailer) {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), welcomeTimeout)
		defer cancel()
		err := h.mailer.Send(ctx, mailer.ThankYou(c.Email, c.Name, c.AmountTotal, c.Membership))
		h.metrics.EmailSent("thank_you", err == nil)
		if err != nil {
			log.WithError(err).WithField("session", c.SessionID).Warn("failed to send thank-you email")
		}
	}()
}
