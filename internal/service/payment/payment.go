// Package payment categorizes payment failures and verifies payment intents.
package payment

import (
	"context"
	"errors"
	"strings"

	"github.com/stripe/stripe-go/v84"

	"pixel-storefront/internal/domain"
)

type Category string

const (
	CategoryCard       Category = "card"
	CategoryValidation Category = "validation"
	CategoryGeneric    Category = "generic"
)

const (
	MessageDeclined     = "Your card was declined"
	MessageValidation   = "Please check your card details"
	MessageGeneric      = "Payment failed. Please try again."
	MessageNotCompleted = "Payment was not completed. Please try again."
)

// Failure is a payment error as shown on the payment step.
type Failure struct {
	Category Category `json:"category"`
	Message  string   `json:"message"`
}

func (f *Failure) Error() string {
	return string(f.Category) + ": " + f.Message
}

// Categorize maps an error type reported by the payment element to a Failure.
func Categorize(errType, message string) *Failure {
	switch strings.TrimSpace(errType) {
	case "card_error":
		if strings.TrimSpace(message) == "" {
			message = MessageDeclined
		}
		return &Failure{Category: CategoryCard, Message: message}
	case "validation_error":
		return &Failure{Category: CategoryValidation, Message: MessageValidation}
	default:
		return &Failure{Category: CategoryGeneric, Message: MessageGeneric}
	}
}

// CategorizeError maps a server-side error to a Failure.
func CategorizeError(err error) *Failure {
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	var se *stripe.Error
	if errors.As(err, &se) {
		return Categorize(string(se.Type), se.Msg)
	}
	if errors.Is(err, domain.ErrInvalidInput) {
		return &Failure{Category: CategoryValidation, Message: MessageValidation}
	}
	return &Failure{Category: CategoryGeneric, Message: MessageGeneric}
}

// NotCompleted is reported when an intent settled in any state but succeeded.
func NotCompleted() *Failure {
	return &Failure{Category: CategoryGeneric, Message: MessageNotCompleted}
}

// Verifier reports the status of a payment intent.
type Verifier interface {
	Verify(ctx context.Context, token, paymentIntentID string) (domain.PaymentStatus, error)
}
