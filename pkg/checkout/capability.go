// Package checkout models the donation and membership checkout flow.
package checkout

import (
	"fmt"
	"net/url"
	"strings"

	"betihari-backend/pkg/config"
	"betihari-backend/pkg/models"
)

// Capability is the checkout variant available with the current configuration.
// It is selected once at startup and dispatched on afterwards.
type Capability int

const (
	NoPaymentConfigured Capability = iota
	HostedLinkOnly
	EmbeddedCheckoutAvailable
)

func (c Capability) String() string {
	switch c {
	case EmbeddedCheckoutAvailable:
		return "embedded"
	case HostedLinkOnly:
		return "hosted_link"
	default:
		return "none"
	}
}

// MarshalText renders the capability name in JSON payloads.
func (c Capability) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText parses a name produced by MarshalText.
func (c *Capability) UnmarshalText(text []byte) error {
	for _, v := range []Capability{NoPaymentConfigured, HostedLinkOnly, EmbeddedCheckoutAvailable} {
		if v.String() == string(text) {
			*c = v
			return nil
		}
	}
	return fmt.Errorf("unknown checkout capability %q", text)
}

// Settings is the configuration the checkout needs.
type Settings struct {
	PublishableKey    string
	SecretKey         string
	DonationLinkURL   string
	MembershipLinkURL string
	ContactEmail      string
	SiteURL           string
}

// SettingsFromConfig copies the checkout options out of cfg.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		PublishableKey:    cfg.StripePublishableKey,
		SecretKey:         cfg.StripeSecretKey,
		DonationLinkURL:   cfg.DonationLinkURL,
		MembershipLinkURL: cfg.MembershipLinkURL,
		ContactEmail:      cfg.ContactEmail,
		SiteURL:           cfg.SiteURL,
	}
}

// DetectCapability picks the variant: embedded checkout needs both gateway keys,
// the hosted fallback needs at least one payment link.
func DetectCapability(s Settings) Capability {
	switch {
	case s.PublishableKey != "" && s.SecretKey != "":
		return EmbeddedCheckoutAvailable
	case s.DonationLinkURL != "" || s.MembershipLinkURL != "":
		return HostedLinkOnly
	default:
		return NoPaymentConfigured
	}
}

// Mode is how the client presents an opened checkout.
type Mode string

const (
	ModeModal  Mode = "modal"
	ModeHosted Mode = "hosted"
	ModeMailto Mode = "mailto"
)

// Opening tells the client what to show after a donate or join click.
type Opening struct {
	Kind           models.CheckoutKind `json:"kind"`
	Capability     Capability          `json:"capability"`
	Mode           Mode                `json:"mode"`
	Step           Step                `json:"step,omitempty"`
	URL            string              `json:"url,omitempty"`
	PublishableKey string              `json:"publishableKey,omitempty"`
	PresetsDollars []int64             `json:"presets,omitempty"`
	MinimumCents   int64               `json:"minimumCents,omitempty"`
}

// Checkout dispatches on the capability selected at construction.
type Checkout struct {
	settings   Settings
	capability Capability
}

func New(s Settings) *Checkout {
	return &Checkout{settings: s, capability: DetectCapability(s)}
}

func (c *Checkout) Capability() Capability {
	return c.capability
}

func (c *Checkout) PublishableKey() string {
	if c.capability != EmbeddedCheckoutAvailable {
		return ""
	}
	return c.settings.PublishableKey
}

func (c *Checkout) linkFor(kind models.CheckoutKind) string {
	if kind == models.KindMembership {
		return c.settings.MembershipLinkURL
	}
	return c.settings.DonationLinkURL
}

func (c *Checkout) mailto(kind models.CheckoutKind) string {
	subject := "Donation enquiry"
	if kind == models.KindMembership {
		subject = "Membership enquiry"
	}
	return "mailto:" + c.settings.ContactEmail + "?subject=" + url.PathEscape(subject)
}

// Open describes how to start a checkout of kind. Donations open at amount
// selection and memberships directly at the embedded step. Without gateway
// keys the hosted payment link is offered, and without a link a mailto: link.
func (c *Checkout) Open(kind models.CheckoutKind) Opening {
	o := Opening{Kind: kind, Capability: c.capability}

	switch c.capability {
	case EmbeddedCheckoutAvailable:
		o.Mode = ModeModal
		o.PublishableKey = c.settings.PublishableKey
		o.Step = StepEmbed
		if kind == models.KindDonation {
			o.Step = StepAmount
			o.PresetsDollars = append([]int64(nil), PresetDollars...)
			o.MinimumCents = MinimumCents
		}
		return o
	case HostedLinkOnly:
		if link := c.linkFor(kind); link != "" {
			o.Mode = ModeHosted
			o.URL = link
			return o
		}
	}

	o.Mode = ModeMailto
	o.URL = c.mailto(kind)
	return o
}

// ReturnURL returns requested when it points at the site itself and the
// default completion page otherwise.
func (c *Checkout) ReturnURL(requested string) string {
	site := strings.TrimRight(c.settings.SiteURL, "/")
	if requested != "" {
		if u, err := url.Parse(requested); err == nil {
			base, berr := url.Parse(site)
			if berr == nil && u.Scheme == base.Scheme && u.Host == base.Host {
				return requested
			}
		}
	}
	return site + "/donate/complete?session_id={CHECKOUT_SESSION_ID}"
}
