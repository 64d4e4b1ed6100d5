package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"betihari-backend/pkg/models"
)

const (
	currency         = "usd"
	maxCharges       = 1000
	maxCustomersPage = 100
	defaultDueDays   = 30
)

// StripeConfig configures the Stripe gateway.
type StripeConfig struct {
	SecretKey         string
	WebhookSecret     string
	MembershipPriceID string
}

// StripeGateway implements Gateway with the Stripe API.
type StripeGateway struct {
	api    *client.API
	config StripeConfig
}

// NewStripeGateway returns ErrNotConfigured without a secret key.
func NewStripeGateway(cfg StripeConfig) (*StripeGateway, error) {
	if cfg.SecretKey == "" {
		return nil, fmt.Errorf("stripe secret key: %w", models.ErrNotConfigured)
	}
	api := &client.API{}
	api.Init(cfg.SecretKey, nil)
	return &StripeGateway{api: api, config: cfg}, nil
}

func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, req models.CheckoutSessionRequest) (*models.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		ReturnURL: stripe.String(req.ReturnURL),
	}
	params.Context = ctx
	if req.Embedded {
		params.UIMode = stripe.String(string(stripe.CheckoutSessionUIModeEmbedded))
	}

	if req.Subscription {
		if g.config.MembershipPriceID == "" {
			return nil, fmt.Errorf("membership price: %w", models.ErrNotConfigured)
		}
		params.Mode = stripe.String(string(stripe.CheckoutSessionModeSubscription))
		params.LineItems = []*stripe.CheckoutSessionLineItemParams{{
			Price:    stripe.String(g.config.MembershipPriceID),
			Quantity: stripe.Int64(1),
		}}
		params.AddMetadata("kind", string(models.KindMembership))
	} else {
		if req.Amount < 100 {
			return nil, fmt.Errorf("amount %d below minimum: %w", req.Amount, models.ErrInvalidInput)
		}
		params.Mode = stripe.String(string(stripe.CheckoutSessionModePayment))
		params.SubmitType = stripe.String(string(stripe.CheckoutSessionSubmitTypeDonate))
		params.LineItems = []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(currency),
				UnitAmount: stripe.Int64(req.Amount),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String("Donation to Beti Hari Society"),
				},
			},
			Quantity: stripe.Int64(1),
		}}
		params.AddMetadata("kind", string(models.KindDonation))
	}

	s, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}
	return &models.CheckoutSession{ID: s.ID, ClientSecret: s.ClientSecret, URL: s.URL}, nil
}

func (g *StripeGateway) ListCharges(ctx context.Context, since time.Time) ([]models.Charge, error) {
	params := &stripe.ChargeListParams{}
	params.Context = ctx
	params.Limit = stripe.Int64(100)
	if !since.IsZero() {
		params.CreatedRange = &stripe.RangeQueryParams{GreaterThanOrEqual: since.Unix()}
	}
	params.AddExpand("data.customer")

	charges := []models.Charge{}
	it := g.api.Charges.List(params)
	for it.Next() && len(charges) < maxCharges {
		charges = append(charges, chargeFromStripe(it.Charge()))
	}
	if err := it.Err(); err != nil {
		return nil, fmt.Errorf("failed to list charges: %w", err)
	}
	return charges, nil
}

func chargeFromStripe(c *stripe.Charge) models.Charge {
	ch := models.Charge{
		ID:       c.ID,
		Amount:   c.Amount,
		Currency: string(c.Currency),
		Created:  time.Unix(c.Created, 0).UTC(),
		Paid:     c.Paid,
		Refunded: c.Refunded,
		Status:   string(c.Status),
		Email:    c.ReceiptEmail,
	}
	if bd := c.BillingDetails; bd != nil {
		ch.Name = bd.Name
		if bd.Email != "" {
			ch.Email = bd.Email
		}
		if bd.Address != nil {
			ch.Country = bd.Address.Country
			ch.Region = bd.Address.State
		}
	}
	if c.Customer != nil {
		ch.CustomerID = c.Customer.ID
		if ch.Name == "" {
			ch.Name = c.Customer.Name
		}
		if ch.Email == "" {
			ch.Email = c.Customer.Email
		}
	}
	return ch
}

func (g *StripeGateway) ListCustomers(ctx context.Context, q models.CustomerQuery) (*models.CustomerPage, error) {
	limit := q.Limit
	if limit <= 0 || limit > maxCustomersPage {
		limit = maxCustomersPage
	}
	params := &stripe.CustomerListParams{}
	params.Context = ctx
	params.Single = true
	params.Limit = stripe.Int64(limit)
	if q.Email != "" {
		params.Email = stripe.String(models.NormalizeEmail(q.Email))
	}
	if q.StartingAfter != "" {
		params.StartingAfter = stripe.String(q.StartingAfter)
	}

	page := &models.CustomerPage{Customers: []models.Customer{}}
	it := g.api.Customers.List(params)
	for it.Next() {
		c := customerFromStripe(it.Customer())
		page.NextAfter = c.ID
		if q.CommunityOnly && c.Metadata[MetaCommunityMember] != "true" {
			continue
		}
		page.Customers = append(page.Customers, c)
	}
	if err := it.Err(); err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}
	if meta := it.Meta(); meta != nil {
		page.HasMore = meta.HasMore
	}
	if !page.HasMore {
		page.NextAfter = ""
	}
	return page, nil
}

func customerFromStripe(c *stripe.Customer) models.Customer {
	return models.Customer{
		ID:       c.ID,
		Email:    c.Email,
		Name:     c.Name,
		Phone:    c.Phone,
		Created:  time.Unix(c.Created, 0).UTC(),
		Metadata: c.Metadata,
	}
}

func (g *StripeGateway) CreateCustomer(ctx context.Context, req models.CommunityMemberRequest) (*models.Customer, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(models.NormalizeEmail(req.Email)),
		Name:  stripe.String(strings.TrimSpace(req.FirstName + " " + req.LastName)),
	}
	params.Context = ctx
	if req.Phone != "" {
		params.Phone = stripe.String(req.Phone)
	}
	params.AddMetadata(MetaCommunityMember, "true")
	params.AddMetadata(MetaRegisteredAt, time.Now().UTC().Format(time.RFC3339))
	if req.City != "" {
		params.AddMetadata(MetaCity, req.City)
	}
	if req.Country != "" {
		params.AddMetadata(MetaCountry, req.Country)
	}
	if len(req.Interests) > 0 {
		params.AddMetadata(MetaInterests, strings.Join(req.Interests, ","))
	}

	c, err := g.api.Customers.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create customer: %w", err)
	}
	out := customerFromStripe(c)
	return &out, nil
}

func (g *StripeGateway) UpdateCustomer(ctx context.Context, req models.CustomerUpdateRequest) (*models.Customer, error) {
	params := &stripe.CustomerParams{}
	params.Context = ctx
	if req.Name != "" {
		params.Name = stripe.String(req.Name)
	}
	if req.Email != "" {
		params.Email = stripe.String(models.NormalizeEmail(req.Email))
	}
	if req.Phone != "" {
		params.Phone = stripe.String(req.Phone)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	c, err := g.api.Customers.Update(req.CustomerID, params)
	if err != nil {
		return nil, mapStripeError("failed to update customer", err)
	}
	out := customerFromStripe(c)
	return &out, nil
}

// RequestPayment adds an invoice item for the customer, then creates and
// sends an invoice that includes it.
func (g *StripeGateway) RequestPayment(ctx context.Context, req models.PaymentRequest) (*models.Invoice, error) {
	due := req.DaysUntilDue
	if due <= 0 {
		due = defaultDueDays
	}

	itemParams := &stripe.InvoiceItemParams{
		Customer:    stripe.String(req.CustomerID),
		Amount:      stripe.Int64(req.Amount),
		Currency:    stripe.String(currency),
		Description: stripe.String(req.Description),
	}
	itemParams.Context = ctx
	if _, err := g.api.InvoiceItems.New(itemParams); err != nil {
		return nil, mapStripeError("failed to create invoice item", err)
	}

	invParams := &stripe.InvoiceParams{
		Customer:                    stripe.String(req.CustomerID),
		CollectionMethod:            stripe.String(string(stripe.InvoiceCollectionMethodSendInvoice)),
		DaysUntilDue:                stripe.Int64(due),
		PendingInvoiceItemsBehavior: stripe.String("include"),
		Description:                 stripe.String(req.Description),
	}
	invParams.Context = ctx
	inv, err := g.api.Invoices.New(invParams)
	if err != nil {
		return nil, mapStripeError("failed to create invoice", err)
	}

	sendParams := &stripe.InvoiceSendInvoiceParams{}
	sendParams.Context = ctx
	sent, err := g.api.Invoices.SendInvoice(inv.ID, sendParams)
	if err != nil {
		return nil, mapStripeError("failed to send invoice", err)
	}
	return &models.Invoice{
		ID:         sent.ID,
		Status:     string(sent.Status),
		AmountDue:  sent.AmountDue,
		HostedURL:  sent.HostedInvoiceURL,
		CustomerID: req.CustomerID,
	}, nil
}

func (g *StripeGateway) ParseWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	if g.config.WebhookSecret == "" {
		return nil, fmt.Errorf("webhook secret: %w", models.ErrNotConfigured)
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, g.config.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("invalid webhook signature: %w", models.ErrUnauthorized)
	}

	out := &WebhookEvent{ID: event.ID, Type: string(event.Type)}
	if out.Type == EventCheckoutCompleted && event.Data != nil {
		var s stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &s); err != nil {
			return nil, fmt.Errorf("failed to decode checkout session: %w", models.ErrInvalidInput)
		}
		done := &CompletedCheckout{
			SessionID:   s.ID,
			AmountTotal: s.AmountTotal,
			Currency:    string(s.Currency),
			Membership:  s.Mode == stripe.CheckoutSessionModeSubscription,
		}
		if cd := s.CustomerDetails; cd != nil {
			done.Email = cd.Email
			done.Name = cd.Name
		}
		out.Checkout = done
	}
	log.WithFields(log.Fields{"event_id": out.ID, "type": out.Type}).Debug("webhook verified")
	return out, nil
}

// mapStripeError turns missing-resource errors into ErrNotFound.
func mapStripeError(msg string, err error) error {
	var se *stripe.Error
	if errors.As(err, &se) && se.HTTPStatusCode == 404 {
		return fmt.Errorf("%s: %w", msg, models.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", msg, err)
}
