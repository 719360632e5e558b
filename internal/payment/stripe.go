package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

// ErrWebhookDisabled is returned when no signing secret is configured.
var ErrWebhookDisabled = errors.New("stripe webhook secret not configured")

// Stripe implements Provider and WebhookVerifier on Stripe Checkout.
type Stripe struct {
	api           *client.API
	webhookSecret string
}

func NewStripe(secretKey, webhookSecret string) *Stripe {
	return &Stripe{api: client.New(secretKey, nil), webhookSecret: webhookSecret}
}

// CreateCheckout opens a payment-mode session with one line item.
func (s *Stripe) CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error) {
	name := req.TuitionTitle
	if name == "" {
		name = "Tuition " + req.TuitionID
	}
	params := &stripe.CheckoutSessionParams{
		Mode:          stripe.String(string(stripe.CheckoutSessionModePayment)),
		CustomerEmail: stripe.String(req.StudentEmail),
		SuccessURL:    stripe.String(req.SuccessURL),
		CancelURL:     stripe.String(req.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(req.Currency),
				UnitAmount: stripe.Int64(MinorUnits(req.Amount, req.Currency)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name:        stripe.String(name),
					Description: stripe.String("Tutor: " + req.TutorEmail),
				},
			},
			Quantity: stripe.Int64(1),
		}},
	}
	params.Context = ctx
	params.AddMetadata(MetaTuitionID, req.TuitionID)
	params.AddMetadata(MetaTutorEmail, req.TutorEmail)
	params.AddMetadata(MetaStudentEmail, req.StudentEmail)

	cs, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe create session: %w", err)
	}
	return &Checkout{ID: cs.ID, URL: cs.URL}, nil
}

// Session retrieves a checkout session by id.
func (s *Stripe) Session(ctx context.Context, id string) (*Session, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	cs, err := s.api.CheckoutSessions.Get(id, params)
	if err != nil {
		return nil, fmt.Errorf("stripe get session %s: %w", id, err)
	}
	return fromStripe(cs), nil
}

// CompletedSession verifies the Stripe-Signature header and extracts the
// session of a checkout.session.completed event.
func (s *Stripe) CompletedSession(payload []byte, signature string) (*Session, bool, error) {
	if s.webhookSecret == "" {
		return nil, false, ErrWebhookDisabled
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, false, fmt.Errorf("stripe webhook: %w", err)
	}
	if event.Type != "checkout.session.completed" {
		return nil, false, nil
	}
	var cs stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
		return nil, false, fmt.Errorf("stripe webhook payload: %w", err)
	}
	return fromStripe(&cs), true, nil
}

func fromStripe(cs *stripe.CheckoutSession) *Session {
	out := &Session{
		ID:            cs.ID,
		PaymentStatus: string(cs.PaymentStatus),
		Currency:      string(cs.Currency),
		AmountTotal:   cs.AmountTotal,
		CustomerEmail: cs.CustomerEmail,
		Metadata:      cs.Metadata,
		PaymentMethod: "card",
	}
	if cs.PaymentIntent != nil {
		out.PaymentIntentID = cs.PaymentIntent.ID
	}
	if len(cs.PaymentMethodTypes) > 0 {
		out.PaymentMethod = cs.PaymentMethodTypes[0]
	}
	if out.Metadata == nil {
		out.Metadata = map[string]string{}
	}
	return out
}
