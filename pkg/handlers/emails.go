package handlers

import (
	"net/http"

	log "github.com/sirupsen/logrus"

	"betihari-backend/pkg/config"
	"betihari-backend/pkg/mailer"
	"betihari-backend/pkg/metrics"
	"betihari-backend/pkg/models"
	"betihari-backend/pkg/payments"
	"betihari-backend/pkg/utils"
)

// maxCommunityPages bounds the member listing used for a default newsletter.
const maxCommunityPages = 20

const emailNotConfigured = "Email delivery is not configured"

// EmailsHandler sends dashboard email, newsletters and contact form messages.
type EmailsHandler struct {
	config  *config.Config
	mailer  mailer.Mailer
	gateway payments.Gateway
	metrics *metrics.Metrics
}

func NewEmailsHandler(cfg *config.Config, m mailer.Mailer, gateway payments.Gateway, mt *metrics.Metrics) *EmailsHandler {
	return &EmailsHandler{config: cfg, mailer: m, gateway: gateway, metrics: mt}
}

// Send handles POST /api/send-email.
func (h *EmailsHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req models.SendEmailRequest
	if !utils.DecodeAndValidate(w, r, &req) {
		return
	}
	if !mailer.Configured(h.mailer) {
		utils.WriteServiceUnavailableResponse(w, emailNotConfigured)
		return
	}
	err := h.mailer.Send(r.Context(), mailer.Message{
		To:      req.To,
		Subject: req.Subject,
		Body:    req.Body,
		HTML:    req.HTML,
		ReplyTo: req.ReplyTo,
	})
	h.metrics.EmailSent("direct", err == nil)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccessResponse(w, models.EmailResult{Sent: len(req.To)})
}

// Newsletter handles POST /api/send-newsletter. Without explicit recipients
// every registered community member receives it.
func (h *EmailsHandler) Newsletter(w http.ResponseWriter, r *http.Request) {
	var req models.NewsletterRequest
	if !utils.DecodeAndValidate(w, r, &req) {
		return
	}
	if !mailer.Configured(h.mailer) {
		utils.WriteServiceUnavailableResponse(w, emailNotConfigured)
		return
	}

	recipients := req.Recipients
	if len(recipients) == 0 {
		var err error
		if recipients, err = h.communityEmails(r); err != nil {
			utils.WriteError(w, err)
			return
		}
	}
	if len(recipients) == 0 {
		utils.WriteBadRequestResponse(w, "There are no recipients for this newsletter")
		return
	}

	result := mailer.SendEach(r.Context(), h.mailer, recipients, req.Subject, req.Body, req.HTML)
	h.metrics.EmailSent("newsletter", len(result.Failed) == 0)
	if len(result.Failed) > 0 {
		log.WithFields(log.Fields{"sent": result.Sent, "failed": len(result.Failed)}).Warn("newsletter partially delivered")
	}
	utils.WriteSuccessResponse(w, result)
}

func (h *EmailsHandler) communityEmails(r *http.Request) ([]string, error) {
	var emails []string
	q := models.CustomerQuery{CommunityOnly: true, Limit: 100}
	for i := 0; i < maxCommunityPages; i++ {
		page, err := h.gateway.ListCustomers(r.Context(), q)
		if err != nil {
			return nil, err
		}
		for _, c := range page.Customers {
			if c.Email != "" {
				emails = append(emails, c.Email)
			}
		}
		if !page.HasMore || page.NextAfter == "" {
			break
		}
		q.StartingAfter = page.NextAfter
	}
	return emails, nil
}

// Contact handles POST /api/contact from the public site.
func (h *EmailsHandler) Contact(w http.ResponseWriter, r *http.Request) {
	var req models.ContactRequest
	if !utils.DecodeAndValidate(w, r, &req) {
		return
	}
	if !mailer.Configured(h.mailer) || h.config.ContactEmail == "" {
		utils.WriteServiceUnavailableResponse(w, emailNotConfigured)
		return
	}
	err := h.mailer.Send(r.Context(), mailer.Contact(h.config.ContactEmail, req))
	h.metrics.EmailSent("contact", err == nil)
	if err != nil {
		utils.WriteError(w, err)
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"sent": true})
}
