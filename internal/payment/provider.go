// Package payment talks to the external payment provider. The lifecycle in
// internal/service only sees the Provider interface; Stripe is the production
// implementation.
package payment

import (
	"context"
	"math"
	"strings"
)

// StatusPaid is the provider's payment status of a completed checkout.
const StatusPaid = "paid"

// Metadata keys attached to every checkout session.
const (
	MetaTuitionID    = "tuitionId"
	MetaTutorEmail   = "tutorEmail"
	MetaStudentEmail = "studentEmail"
)

// CheckoutRequest describes a single line item checkout for a posting.
type CheckoutRequest struct {
	TuitionID    string
	TuitionTitle string
	TutorEmail   string
	StudentEmail string
	Amount       float64 // major units, e.g. 1500.50
	Currency     string
	SuccessURL   string
	CancelURL    string
}

// Checkout is a created session the client is redirected to.
type Checkout struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Session is the provider's view of a checkout session.
type Session struct {
	ID              string
	PaymentStatus   string
	PaymentIntentID string
	PaymentMethod   string
	Currency        string
	AmountTotal     int64 // minor units
	CustomerEmail   string
	Metadata        map[string]string
}

// TransactionID identifies the money movement behind the session. The
// payment intent is preferred; the session id is used when none is attached.
func (s *Session) TransactionID() string {
	if s.PaymentIntentID != "" {
		return s.PaymentIntentID
	}
	return s.ID
}

// Amount returns AmountTotal in major units of the session currency.
func (s *Session) Amount() float64 {
	return float64(s.AmountTotal) / math.Pow10(currencyExponent(s.Currency))
}

// Provider creates and retrieves checkout sessions.
type Provider interface {
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error)
	Session(ctx context.Context, id string) (*Session, error)
}

// WebhookVerifier authenticates provider callbacks. It returns the completed
// session carried by the event, or ok=false for event types that are not a
// completed checkout.
type WebhookVerifier interface {
	CompletedSession(payload []byte, signature string) (s *Session, ok bool, err error)
}

// Currencies whose smallest unit is not a hundredth. Stripe charges
// zero-decimal currencies in whole units and three-decimal currencies in
// thousandths.
var (
	zeroDecimal = map[string]bool{
		"bif": true, "clp": true, "djf": true, "gnf": true, "jpy": true, "kmf": true,
		"krw": true, "mga": true, "pyg": true, "rwf": true, "ugx": true, "vnd": true,
		"vuv": true, "xaf": true, "xof": true, "xpf": true,
	}
	threeDecimal = map[string]bool{
		"bhd": true, "jod": true, "kwd": true, "omr": true, "tnd": true,
	}
)

func currencyExponent(currency string) int {
	c := strings.ToLower(currency)
	switch {
	case zeroDecimal[c]:
		return 0
	case threeDecimal[c]:
		return 3
	default:
		return 2
	}
}

// MinorUnits converts a major-unit amount of currency to the provider's
// integer units.
func MinorUnits(amount float64, currency string) int64 {
	return int64(math.Round(amount * math.Pow10(currencyExponent(currency))))
}
