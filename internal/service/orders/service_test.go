package orders

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pixel-storefront/internal/domain"
	"pixel-storefront/internal/service/payment"
)

type stubBackend struct {
	missing   int
	calls     int
	lastQuery domain.OrderQuery
}

func (b *stubBackend) ListOrders(ctx context.Context, token string, q domain.OrderQuery) (*domain.OrderPage, error) {
	b.lastQuery = q
	return &domain.OrderPage{}, nil
}

func (b *stubBackend) GetOrder(ctx context.Context, token, id string) (*domain.Order, error) {
	return &domain.Order{ID: id}, nil
}

func (b *stubBackend) OrderByPaymentIntent(ctx context.Context, token, id string) (*domain.OrderConfirmation, error) {
	b.calls++
	if b.calls <= b.missing {
		return nil, domain.ErrNotFound
	}
	return &domain.OrderConfirmation{Order: domain.Order{ID: "order-1"}}, nil
}

func (b *stubBackend) TrackShipment(ctx context.Context, token, number, carrier string) (domain.Tracking, error) {
	return json.RawMessage(`{"status":"in_transit"}`), nil
}

type stubVerifier struct{ status string }

func (v stubVerifier) Verify(ctx context.Context, token, id string) (domain.PaymentStatus, error) {
	return domain.PaymentStatus{Status: v.status, PaymentIntentID: id}, nil
}

func newService(b *stubBackend, status string) *Service {
	s := New(b, stubVerifier{status: status})
	s.retryDelay = time.Millisecond
	return s
}

func TestMyOrdersDefaults(t *testing.T) {
	b := &stubBackend{}
	s := newService(b, "")

	_, err := s.MyOrders(context.Background(), "", domain.OrderQuery{})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = s.MyOrders(context.Background(), "tok", domain.OrderQuery{Status: "lost"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = s.MyOrders(context.Background(), "tok", domain.OrderQuery{Status: domain.OrderShipped})
	require.NoError(t, err)
	assert.Equal(t, domain.OrderQuery{Page: 1, Limit: defaultLimit, Status: domain.OrderShipped}, b.lastQuery)
}

func TestConfirmationRetriesMissingOrder(t *testing.T) {
	b := &stubBackend{missing: 2}
	s := newService(b, domain.PaymentSucceeded)

	conf, err := s.Confirmation(context.Background(), "tok", "pi_1")
	require.NoError(t, err)
	assert.Equal(t, "order-1", conf.Order.ID)
	assert.Equal(t, 3, b.calls)

	b = &stubBackend{missing: 10}
	s = newService(b, domain.PaymentSucceeded)
	_, err = s.Confirmation(context.Background(), "tok", "pi_1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, confirmationRetries+1, b.calls)
}

func TestConfirmationRequiresSucceededPayment(t *testing.T) {
	b := &stubBackend{}
	s := newService(b, "processing")

	_, err := s.Confirmation(context.Background(), "tok", "pi_1")
	var f *payment.Failure
	require.True(t, errors.As(err, &f))
	assert.Equal(t, payment.MessageNotCompleted, f.Message)
	assert.Zero(t, b.calls)
}

func TestTrackNeedsCarrier(t *testing.T) {
	s := newService(&stubBackend{}, "")
	_, err := s.Track(context.Background(), "tok", "1Z999", "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	raw, err := s.Track(context.Background(), "tok", "1Z999", "ups")
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"in_transit"}`, string(raw))
}
