package payment

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/paymentintent"

	"pixel-storefront/internal/domain"
)

type statusBackend interface {
	PaymentStatus(ctx context.Context, token, paymentIntentID string) (*domain.PaymentStatus, error)
}

// BackendVerifier asks the backend for the intent status.
type BackendVerifier struct {
	backend statusBackend
}

func NewBackendVerifier(b statusBackend) *BackendVerifier {
	return &BackendVerifier{backend: b}
}

func (v *BackendVerifier) Verify(ctx context.Context, token, paymentIntentID string) (domain.PaymentStatus, error) {
	st, err := v.backend.PaymentStatus(ctx, token, paymentIntentID)
	if err != nil {
		return domain.PaymentStatus{}, fmt.Errorf("payment status %s: %w", paymentIntentID, err)
	}
	if st.PaymentIntentID == "" {
		st.PaymentIntentID = paymentIntentID
	}
	return *st, nil
}

// IntentClient exposes the Stripe payment-intent lookup so it can be stubbed.
type IntentClient interface {
	Get(ctx context.Context, id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

type stripeIntents struct{}

func (stripeIntents) Get(ctx context.Context, id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	if params == nil {
		params = &stripe.PaymentIntentParams{}
	}
	params.Context = ctx
	return paymentintent.Get(id, params)
}

// StripeVerifier reads the intent straight from Stripe.
type StripeVerifier struct {
	intents IntentClient
}

// NewStripeVerifier configures the Stripe key and returns a verifier using it.
func NewStripeVerifier(secretKey string) *StripeVerifier {
	stripe.Key = secretKey
	return &StripeVerifier{intents: stripeIntents{}}
}

func NewStripeVerifierWithClient(c IntentClient) *StripeVerifier {
	return &StripeVerifier{intents: c}
}

func (v *StripeVerifier) Verify(ctx context.Context, _ string, paymentIntentID string) (domain.PaymentStatus, error) {
	pi, err := v.intents.Get(ctx, paymentIntentID, nil)
	if err != nil {
		return domain.PaymentStatus{}, fmt.Errorf("retrieve payment intent %s: %w", paymentIntentID, err)
	}
	return domain.PaymentStatus{Status: string(pi.Status), PaymentIntentID: pi.ID}, nil
}
