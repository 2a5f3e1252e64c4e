package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"pixel-storefront/internal/domain"
	"pixel-storefront/internal/service/payment"
)

type Backend interface {
	ListOrders(ctx context.Context, token string, q domain.OrderQuery) (*domain.OrderPage, error)
	GetOrder(ctx context.Context, token, id string) (*domain.Order, error)
	OrderByPaymentIntent(ctx context.Context, token, paymentIntentID string) (*domain.OrderConfirmation, error)
	TrackShipment(ctx context.Context, token, trackingNumber, carrier string) (domain.Tracking, error)
}

const (
	defaultLimit = 10

	// The order is written by the payment webhook, possibly after the
	// browser lands on the confirmation page.
	confirmationRetries = 3
	confirmationDelay   = time.Second
)

type Service struct {
	backend    Backend
	payments   payment.Verifier
	retries    int
	retryDelay time.Duration
}

func New(backend Backend, payments payment.Verifier) *Service {
	return &Service{
		backend:    backend,
		payments:   payments,
		retries:    confirmationRetries,
		retryDelay: confirmationDelay,
	}
}

func (s *Service) MyOrders(ctx context.Context, token string, q domain.OrderQuery) (*domain.OrderPage, error) {
	if token == "" {
		return nil, domain.ErrUnauthorized
	}
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = defaultLimit
	}
	if q.Status != "" && !q.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown order status %q", domain.ErrInvalidInput, q.Status)
	}
	return s.backend.ListOrders(ctx, token, q)
}

func (s *Service) Order(ctx context.Context, token, id string) (*domain.Order, error) {
	if token == "" {
		return nil, domain.ErrUnauthorized
	}
	if strings.TrimSpace(id) == "" {
		return nil, domain.ErrNotFound
	}
	return s.backend.GetOrder(ctx, token, id)
}

// Confirmation returns the order created for a payment intent. The payment
// must have succeeded; a missing order is retried a few times.
func (s *Service) Confirmation(ctx context.Context, token, paymentIntentID string) (*domain.OrderConfirmation, error) {
	if token == "" {
		return nil, domain.ErrUnauthorized
	}
	status, err := s.payments.Verify(ctx, token, paymentIntentID)
	if err != nil {
		return nil, err
	}
	if !status.Succeeded() {
		return nil, payment.NotCompleted()
	}

	for attempt := 0; ; attempt++ {
		conf, err := s.backend.OrderByPaymentIntent(ctx, token, paymentIntentID)
		if err == nil {
			return conf, nil
		}
		if !errors.Is(err, domain.ErrNotFound) || attempt >= s.retries {
			return nil, fmt.Errorf("order for payment %s: %w", paymentIntentID, err)
		}
		select {
		case <-time.After(s.retryDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (s *Service) Track(ctx context.Context, token, trackingNumber, carrier string) (domain.Tracking, error) {
	if token == "" {
		return nil, domain.ErrUnauthorized
	}
	if strings.TrimSpace(trackingNumber) == "" || strings.TrimSpace(carrier) == "" {
		return nil, fmt.Errorf("%w: tracking number and carrier are required", domain.ErrInvalidInput)
	}
	return s.backend.TrackShipment(ctx, token, trackingNumber, carrier)
}
