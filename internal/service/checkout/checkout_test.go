package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pixel-storefront/internal/domain"
	"pixel-storefront/internal/service/payment"
)

type stubBackend struct {
	mu       sync.Mutex
	rates    []domain.ShippingRate
	gate     chan struct{}
	started  chan struct{}
	intent   *domain.PaymentIntent
	requests []domain.PaymentIntentRequest
	ctxErr   error
}

func (b *stubBackend) CalculateShipping(ctx context.Context, token, addressID, cartID string) ([]domain.ShippingRate, error) {
	if b.started != nil {
		close(b.started)
	}
	if b.gate != nil {
		<-b.gate
	}
	b.mu.Lock()
	b.ctxErr = ctx.Err()
	b.mu.Unlock()
	return b.rates, nil
}

func (b *stubBackend) CreatePaymentIntent(ctx context.Context, token string, req domain.PaymentIntentRequest) (*domain.PaymentIntent, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requests = append(b.requests, req)
	return b.intent, nil
}

type stubVerifier struct {
	status domain.PaymentStatus
	err    error
}

func (v stubVerifier) Verify(ctx context.Context, token, id string) (domain.PaymentStatus, error) {
	return v.status, v.err
}

func testRates() []domain.ShippingRate {
	return []domain.ShippingRate{
		{RateID: "r-std", ServiceCode: "standard", ServiceName: "Standard", Carrier: "USPS", Rate: decimal.RequireFromString("5.99"), EstimatedDays: 5},
		{RateID: "r-exp", ServiceCode: "express", ServiceName: "Express", Carrier: "UPS", Rate: decimal.RequireFromString("19.99"), EstimatedDays: 2},
	}
}

func newSession(b Backend, v payment.Verifier) *Session {
	return New(b, v, zerolog.Nop())
}

func toPayment(t *testing.T, s *Session) {
	t.Helper()
	ctx := context.Background()
	s.SetShippingAddress("addr-1")
	require.NoError(t, s.ProceedToShipping())
	_, err := s.LoadShippingRates(ctx, "tok", "cart-1")
	require.NoError(t, err)
	require.NoError(t, s.SelectShippingRate("r-std"))
	_, err = s.ProceedToPayment(ctx, "tok", "cart-1")
	require.NoError(t, err)
}

func TestAddressStepGatesShipping(t *testing.T) {
	s := newSession(&stubBackend{}, stubVerifier{})

	st := s.State()
	assert.Equal(t, StepAddresses, st.Step)
	assert.True(t, st.SameAsShipping)
	assert.False(t, st.CanProceedToShipping)
	assert.ErrorIs(t, s.ProceedToShipping(), domain.ErrInvalidInput)

	s.SetSameAsShipping(false)
	s.SetShippingAddress("addr-1")
	assert.False(t, s.CanProceedToShipping(), "billing address still missing")

	s.SetBillingAddress("addr-2")
	assert.True(t, s.CanProceedToShipping())
	require.NoError(t, s.ProceedToShipping())
	assert.Equal(t, StepShipping, s.Step())
}

func TestSameAsShippingCopiesAddress(t *testing.T) {
	s := newSession(&stubBackend{}, stubVerifier{})
	s.SetShippingAddress("addr-1")
	assert.Equal(t, "addr-1", s.State().BillingAddressID)

	s.SetSameAsShipping(false)
	s.SetBillingAddress("addr-2")
	s.SetSameAsShipping(true)
	assert.Equal(t, "addr-1", s.State().BillingAddressID)
}

func TestShippingStepRequiresMethod(t *testing.T) {
	b := &stubBackend{rates: testRates()}
	s := newSession(b, stubVerifier{})
	s.SetShippingAddress("addr-1")
	require.NoError(t, s.ProceedToShipping())

	rates, err := s.LoadShippingRates(context.Background(), "tok", "cart-1")
	require.NoError(t, err)
	assert.Len(t, rates, 2)
	assert.False(t, s.CanProceedToPayment())
	_, err = s.ProceedToPayment(context.Background(), "tok", "cart-1")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	assert.ErrorIs(t, s.SelectShippingRate("r-missing"), domain.ErrNotFound)
	require.NoError(t, s.SelectShippingRate("r-exp"))
	assert.True(t, s.CanProceedToPayment())
	assert.Equal(t, "express", s.State().ShippingMethod)
}

func TestProceedToPaymentSendsSelection(t *testing.T) {
	b := &stubBackend{rates: testRates(), intent: &domain.PaymentIntent{ClientSecret: "secret", PaymentIntentID: "pi_1"}}
	s := newSession(b, stubVerifier{})
	toPayment(t, s)

	require.Len(t, b.requests, 1)
	assert.Equal(t, domain.PaymentIntentRequest{
		CartID:            "cart-1",
		ShippingAddressID: "addr-1",
		BillingAddressID:  "addr-1",
		ShippingMethod:    "standard",
		ShippingRateID:    "r-std",
	}, b.requests[0])
	st := s.State()
	assert.Equal(t, StepPayment, st.Step)
	assert.Equal(t, "secret", st.PaymentIntent.ClientSecret)
}

func TestAbandonDiscardsLateRates(t *testing.T) {
	b := &stubBackend{rates: testRates(), gate: make(chan struct{}), started: make(chan struct{})}
	s := newSession(b, stubVerifier{})
	s.SetShippingAddress("addr-1")
	require.NoError(t, s.ProceedToShipping())

	done := make(chan error, 1)
	go func() {
		_, err := s.LoadShippingRates(context.Background(), "tok", "cart-1")
		done <- err
	}()
	<-b.started
	assert.True(t, s.State().Loading)

	s.Abandon()
	close(b.gate)

	assert.ErrorIs(t, <-done, ErrSuperseded)
	st := s.State()
	assert.Equal(t, StepAddresses, st.Step)
	assert.Empty(t, st.ShippingRates)
	assert.False(t, st.Loading)
	b.mu.Lock()
	assert.ErrorIs(t, b.ctxErr, context.Canceled)
	b.mu.Unlock()
}

func TestPaymentFailureClearsProcessing(t *testing.T) {
	b := &stubBackend{rates: testRates(), intent: &domain.PaymentIntent{PaymentIntentID: "pi_1"}}
	s := newSession(b, stubVerifier{status: domain.PaymentStatus{Status: "requires_payment_method"}})
	toPayment(t, s)

	require.NoError(t, s.BeginProcessing(""))
	st := s.State()
	assert.Equal(t, StepProcessing, st.Step)
	assert.NotEmpty(t, st.ProcessingMessage)

	_, err := s.Complete(context.Background(), "tok", "pi_1")
	var f *payment.Failure
	require.True(t, errors.As(err, &f))
	assert.Equal(t, payment.MessageNotCompleted, f.Message)

	st = s.State()
	assert.Equal(t, StepPayment, st.Step)
	assert.Empty(t, st.ProcessingMessage)
	assert.Equal(t, f, st.Error)

	require.NoError(t, s.BeginProcessing("Confirming..."))
	assert.Nil(t, s.State().Error, "retrying clears the previous error")
}

func TestReportPaymentError(t *testing.T) {
	b := &stubBackend{rates: testRates(), intent: &domain.PaymentIntent{PaymentIntentID: "pi_1"}}
	s := newSession(b, stubVerifier{})
	toPayment(t, s)
	require.NoError(t, s.BeginProcessing(""))

	f := s.ReportPaymentError("card_error", "")
	assert.Equal(t, payment.CategoryCard, f.Category)
	assert.Equal(t, payment.MessageDeclined, f.Message)
	assert.Equal(t, StepPayment, s.Step())
}

func TestCompleteSucceeds(t *testing.T) {
	b := &stubBackend{rates: testRates(), intent: &domain.PaymentIntent{PaymentIntentID: "pi_1"}}
	s := newSession(b, stubVerifier{status: domain.PaymentStatus{Status: domain.PaymentSucceeded, PaymentIntentID: "pi_1"}})
	toPayment(t, s)
	require.NoError(t, s.BeginProcessing(""))

	_, err := s.Complete(context.Background(), "tok", "pi_other")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	st, err := s.Complete(context.Background(), "tok", "pi_1")
	require.NoError(t, err)
	assert.True(t, st.Succeeded())
	assert.Equal(t, StepComplete, s.Step())
	assert.Empty(t, s.State().ProcessingMessage)
}

func TestBack(t *testing.T) {
	b := &stubBackend{rates: testRates(), intent: &domain.PaymentIntent{PaymentIntentID: "pi_1"}}
	s := newSession(b, stubVerifier{})
	toPayment(t, s)

	assert.ErrorIs(t, s.Back(StepComplete), domain.ErrInvalidInput)
	require.NoError(t, s.Back(StepShipping))
	assert.Equal(t, StepShipping, s.Step())
	assert.ErrorIs(t, s.Back(StepPayment), domain.ErrInvalidInput)
}
