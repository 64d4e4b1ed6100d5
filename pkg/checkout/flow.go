package checkout

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"betihari-backend/pkg/models"
)

// MinimumCents is the smallest donation accepted ($1).
const MinimumCents int64 = 100

// PresetDollars are the whole-dollar donation buttons.
var PresetDollars = []int64{25, 50, 100, 250, 500}

// maxDollars caps parsed custom amounts.
const maxDollars = 1_000_000

const (
	msgSessionFailed = "We couldn't start the secure checkout. Please try again."
	msgNoSecret      = "The payment service returned an incomplete response. Please try again."
)

// Step is a position in the checkout flow.
type Step string

const (
	StepClosed  Step = "closed"
	StepAmount  Step = "amount"
	StepLoading Step = "loading"
	StepEmbed   Step = "embed"
)

var (
	// ErrCannotContinue is returned when Continue is called before its preconditions hold.
	ErrCannotContinue = errors.New("checkout cannot continue from this state")
	// ErrUnknownPreset is returned by SelectPreset for amounts that are not a preset button.
	ErrUnknownPreset = errors.New("not a preset amount")
	// ErrFlowClosed is returned by Continue when the flow was closed while the
	// session request was in flight. The session, if any, is discarded.
	ErrFlowClosed = errors.New("checkout closed during session request")
)

// SessionCreator creates gateway checkout sessions.
type SessionCreator interface {
	CreateCheckoutSession(ctx context.Context, req models.CheckoutSessionRequest) (*models.CheckoutSession, error)
}

// State is a snapshot of a flow.
type State struct {
	Kind         models.CheckoutKind `json:"kind"`
	Step         Step                `json:"step"`
	AmountCents  int64               `json:"amountCents"`
	ClientSecret string              `json:"clientSecret,omitempty"`
	Error        string              `json:"error,omitempty"`
}

// Flow is one checkout modal: closed, amount (donations only), loading,
// embed, and back to closed on success or cancel.
type Flow struct {
	mu           sync.Mutex
	kind         models.CheckoutKind
	step         Step
	prior        Step
	amountCents  int64
	clientSecret string
	err          string
}

// NewFlow opens a flow for kind at its first step.
func NewFlow(kind models.CheckoutKind) *Flow {
	f := &Flow{kind: kind}
	f.reset()
	return f
}

func (f *Flow) reset() {
	f.step = StepAmount
	if f.kind == models.KindMembership {
		f.step = StepEmbed
	}
	f.amountCents = 0
	f.clientSecret = ""
	f.err = ""
}

// ParseAmountCents keeps only the digits of text and reads them as whole dollars.
// Text without digits parses as 0.
func ParseAmountCents(text string) int64 {
	var digits strings.Builder
	for _, r := range text {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 0 {
		return 0
	}
	dollars, err := strconv.ParseInt(digits.String(), 10, 64)
	if err != nil || dollars > maxDollars {
		return maxDollars * 100
	}
	return dollars * 100
}

// ValidAmount reports whether cents meets the donation minimum.
func ValidAmount(cents int64) bool {
	return cents >= MinimumCents
}

func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return State{
		Kind:         f.kind,
		Step:         f.step,
		AmountCents:  f.amountCents,
		ClientSecret: f.clientSecret,
		Error:        f.err,
	}
}

// SelectPreset picks one of PresetDollars.
func (f *Flow) SelectPreset(dollars int64) error {
	if !slices.Contains(PresetDollars, dollars) {
		return fmt.Errorf("$%d: %w", dollars, ErrUnknownPreset)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.step != StepAmount {
		return ErrCannotContinue
	}
	f.amountCents = dollars * 100
	f.err = ""
	return nil
}

// SetCustomAmount reads free text as a dollar amount and returns the cents.
func (f *Flow) SetCustomAmount(text string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.step != StepAmount {
		return 0, ErrCannotContinue
	}
	f.amountCents = ParseAmountCents(text)
	f.err = ""
	return f.amountCents, nil
}

// CanContinue is true for a donation at amount selection with at least the
// minimum, and for a membership that has no session yet.
func (f *Flow) CanContinue() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.canContinue()
}

func (f *Flow) canContinue() bool {
	switch f.step {
	case StepAmount:
		return ValidAmount(f.amountCents)
	case StepEmbed:
		return f.kind == models.KindMembership && f.clientSecret == ""
	}
	return false
}

// Continue makes exactly one session-creation call. On success the flow moves to
// the embed step with the client secret; on failure it returns to the previous
// step with a user-facing error so the donor can retry.
func (f *Flow) Continue(ctx context.Context, creator SessionCreator, returnURL string) error {
	f.mu.Lock()
	if !f.canContinue() {
		f.mu.Unlock()
		return ErrCannotContinue
	}
	req := models.CheckoutSessionRequest{Embedded: true, ReturnURL: returnURL}
	if f.kind == models.KindMembership {
		req.Subscription = true
	} else {
		req.Amount = f.amountCents
	}
	f.prior = f.step
	f.step = StepLoading
	f.err = ""
	f.mu.Unlock()

	session, err := creator.CreateCheckoutSession(ctx, req)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.step != StepLoading {
		return ErrFlowClosed
	}
	switch {
	case err != nil:
		log.WithError(err).WithField("kind", f.kind).Warn("checkout session creation failed")
		f.step = f.prior
		f.err = msgSessionFailed
		return fmt.Errorf("create checkout session: %w", err)
	case session == nil || session.ClientSecret == "":
		f.step = f.prior
		f.err = msgNoSecret
		return errors.New("checkout session has no client secret")
	}
	f.clientSecret = session.ClientSecret
	f.step = StepEmbed
	return nil
}

// Close discards the flow's secret and amount. The gateway session is left to
// expire on its own.
func (f *Flow) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reset()
	f.step = StepClosed
}

// ErrNotEmbedded is returned by Start when embedded checkout is unavailable.
var ErrNotEmbedded = errors.New("embedded checkout is not configured")

// Start opens an embedded flow for kind.
func (c *Checkout) Start(kind models.CheckoutKind) (*Flow, error) {
	if c.capability != EmbeddedCheckoutAvailable {
		return nil, ErrNotEmbedded
	}
	return NewFlow(kind), nil
}
