package payments

import (
	"context"
	"fmt"
	"time"

	"betihari-backend/pkg/models"
)

// Disabled is the gateway used when no secret key is configured. Every call
// fails with ErrNotConfigured.
type Disabled struct{}

var errDisabled = fmt.Errorf("payment gateway: %w", models.ErrNotConfigured)

func (Disabled) CreateCheckoutSession(context.Context, models.CheckoutSessionRequest) (*models.CheckoutSession, error) {
	return nil, errDisabled
}

func (Disabled) ListCharges(context.Context, time.Time) ([]models.Charge, error) {
	return nil, errDisabled
}

func (Disabled) ListCustomers(context.Context, models.CustomerQuery) (*models.CustomerPage, error) {
	return nil, errDisabled
}

func (Disabled) CreateCustomer(context.Context, models.CommunityMemberRequest) (*models.Customer, error) {
	return nil, errDisabled
}

func (Disabled) UpdateCustomer(context.Context, models.CustomerUpdateRequest) (*models.Customer, error) {
	return nil, errDisabled
}

func (Disabled) RequestPayment(context.Context, models.PaymentRequest) (*models.Invoice, error) {
	return nil, errDisabled
}

func (Disabled) ParseWebhook([]byte, string) (*WebhookEvent, error) {
	return nil, errDisabled
}
