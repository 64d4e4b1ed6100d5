package models

import (
	"time"
)

// CheckoutKind distinguishes one-off donations from memberships.
type CheckoutKind string

const (
	KindDonation   CheckoutKind = "donation"
	KindMembership CheckoutKind = "membership"
)

// CheckoutSessionRequest is the body of create-checkout-session.
// Amount is in cents and only meaningful for donations.
type CheckoutSessionRequest struct {
	Embedded     bool   `json:"embedded"`
	ReturnURL    string `json:"returnUrl"`
	Amount       int64  `json:"amount,omitempty"`
	Subscription bool   `json:"subscription,omitempty"`
}

// CheckoutSession is the gateway's answer to a session request.
type CheckoutSession struct {
	ID           string `json:"id,omitempty"`
	ClientSecret string `json:"clientSecret"`
	URL          string `json:"url,omitempty"`
}

// Charge is a completed or attempted payment recorded by the gateway.
type Charge struct {
	ID         string    `json:"id"`
	Amount     int64     `json:"amount"` // cents
	Currency   string    `json:"currency"`
	Created    time.Time `json:"created"`
	Paid       bool      `json:"paid"`
	Refunded   bool      `json:"refunded"`
	Status     string    `json:"status"`
	Email      string    `json:"email,omitempty"`
	Name       string    `json:"name,omitempty"`
	CustomerID string    `json:"customerId,omitempty"`
	Country    string    `json:"country,omitempty"`
	Region     string    `json:"region,omitempty"`
}

// Customer is a gateway customer (donor or community member).
type Customer struct {
	ID       string            `json:"id"`
	Email    string            `json:"email"`
	Name     string            `json:"name"`
	Phone    string            `json:"phone,omitempty"`
	Created  time.Time         `json:"created"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// CustomerQuery filters and paginates a customer listing.
type CustomerQuery struct {
	Email         string
	StartingAfter string
	Limit         int64
	CommunityOnly bool
}

// CustomerPage is one page of customers.
type CustomerPage struct {
	Customers []Customer `json:"customers"`
	HasMore   bool       `json:"hasMore"`
	NextAfter string     `json:"nextAfter,omitempty"`
}

// CommunityMemberRequest registers a community member with the gateway.
type CommunityMemberRequest struct {
	FirstName string   `json:"firstName" validate:"required"`
	LastName  string   `json:"lastName" validate:"required"`
	Email     string   `json:"email" validate:"required,email"`
	Phone     string   `json:"phone"`
	City      string   `json:"city"`
	Country   string   `json:"country"`
	Interests []string `json:"interests"`
}

// CustomerUpdateRequest updates a gateway customer; empty fields are left untouched.
type CustomerUpdateRequest struct {
	CustomerID string            `json:"customerId" validate:"required"`
	Name       string            `json:"name"`
	Email      string            `json:"email" validate:"omitempty,email"`
	Phone      string            `json:"phone"`
	Metadata   map[string]string `json:"metadata"`
}

// PaymentRequest asks a customer to pay an invoice.
type PaymentRequest struct {
	CustomerID   string `json:"customerId" validate:"required"`
	Amount       int64  `json:"amount" validate:"required,gte=100"` // cents
	Description  string `json:"description" validate:"required"`
	DaysUntilDue int64  `json:"daysUntilDue" validate:"omitempty,gte=1,lte=90"`
}

// Invoice is the gateway's answer to a payment request.
type Invoice struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	AmountDue  int64  `json:"amountDue"`
	HostedURL  string `json:"hostedInvoiceUrl,omitempty"`
	CustomerID string `json:"customerId"`
}

// DonationSummary holds headline donation totals (cents).
type DonationSummary struct {
	TotalAmount      int64 `json:"totalAmount"`
	DonationCount    int   `json:"donationCount"`
	AverageAmount    int64 `json:"averageAmount"`
	DonorCount       int   `json:"donorCount"`
	ThisMonthAmount  int64 `json:"thisMonthAmount"`
	ThisMonthCount   int   `json:"thisMonthCount"`
	LargestDonation  int64 `json:"largestDonation"`
	RefundedAmount   int64 `json:"refundedAmount"`
	CommunityMembers int   `json:"communityMembers"`
}

// DonorTotal aggregates the donations of one donor.
type DonorTotal struct {
	Key           string    `json:"key"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	TotalAmount   int64     `json:"totalAmount"`
	DonationCount int       `json:"donationCount"`
	LastDonation  time.Time `json:"lastDonation"`
	Country       string    `json:"country,omitempty"`
}

// TimelinePoint is one day of donations.
type TimelinePoint struct {
	Date   string `json:"date"`
	Amount int64  `json:"amount"`
	Count  int    `json:"count"`
}

// DonationReport is the payload of get-donations. Errors lists the parts
// that could not be fetched; the remaining fields are still populated.
type DonationReport struct {
	Summary         *DonationSummary `json:"summary,omitempty"`
	RecentDonations []Charge         `json:"recentDonations"`
	TopDonors       []DonorTotal     `json:"topDonors"`
	ByCountry       map[string]int64 `json:"byCountry"`
	ByRegion        map[string]int64 `json:"byRegion"`
	Timeline        []TimelinePoint  `json:"timeline"`
	Donors          []DonorTotal     `json:"donors"`
	Errors          []string         `json:"errors,omitempty"`
	GeneratedAt     time.Time        `json:"generatedAt"`
}

// SendEmailRequest is the body of send-email.
type SendEmailRequest struct {
	To      []string `json:"to" validate:"required,min=1,dive,email"`
	Subject string   `json:"subject" validate:"required,max=200"`
	Body    string   `json:"body" validate:"required"`
	HTML    bool     `json:"html"`
	ReplyTo string   `json:"replyTo" validate:"omitempty,email"`
}

// NewsletterRequest is the body of send-newsletter. When Recipients is empty
// the newsletter goes to every registered community member.
type NewsletterRequest struct {
	Recipients []string `json:"recipients" validate:"omitempty,dive,email"`
	Subject    string   `json:"subject" validate:"required,max=200"`
	Body       string   `json:"body" validate:"required"`
	HTML       bool     `json:"html"`
}

// ContactRequest is the public contact form payload.
type ContactRequest struct {
	Name    string `json:"name" validate:"required,max=120"`
	Email   string `json:"email" validate:"required,email"`
	Subject string `json:"subject" validate:"max=200"`
	Message string `json:"message" validate:"required,max=5000"`
}

// EmailResult reports how many messages were delivered.
type EmailResult struct {
	Sent   int      `json:"sent"`
	Failed []string `json:"failed,omitempty"`
}
