// Package payments talks to the payment gateway and aggregates donation analytics.
package payments

import (
	"context"
	"time"

	"betihari-backend/pkg/models"
)

// Gateway is the payment provider as seen by the site.
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, req models.CheckoutSessionRequest) (*models.CheckoutSession, error)
	ListCharges(ctx context.Context, since time.Time) ([]models.Charge, error)
	ListCustomers(ctx context.Context, q models.CustomerQuery) (*models.CustomerPage, error)
	CreateCustomer(ctx context.Context, req models.CommunityMemberRequest) (*models.Customer, error)
	UpdateCustomer(ctx context.Context, req models.CustomerUpdateRequest) (*models.Customer, error)
	RequestPayment(ctx context.Context, req models.PaymentRequest) (*models.Invoice, error)
	ParseWebhook(payload []byte, signature string) (*WebhookEvent, error)
}

// Webhook event types the site reacts to.
const (
	EventCheckoutCompleted = "checkout.session.completed"
	EventInvoicePaid       = "invoice.paid"
)

// WebhookEvent is a verified gateway notification.
type WebhookEvent struct {
	ID   string
	Type string
	// Set for checkout.session.completed.
	Checkout *CompletedCheckout
}

// CompletedCheckout is the part of a completed checkout session the site uses.
type CompletedCheckout struct {
	SessionID   string
	AmountTotal int64
	Currency    string
	Email       string
	Name        string
	Membership  bool
}

// Metadata keys written to gateway customers.
const (
	MetaCommunityMember = "community_member"
	MetaCity            = "city"
	MetaCountry         = "country"
	MetaInterests       = "interests"
	MetaRegisteredAt    = "registered_at"
)
