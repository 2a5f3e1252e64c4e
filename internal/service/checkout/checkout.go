// Package checkout holds the step machine of one checkout attempt.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"pixel-storefront/internal/domain"
	"pixel-storefront/internal/service/payment"
)

type Step string

const (
	StepAddresses  Step = "addresses"
	StepShipping   Step = "shipping"
	StepPayment    Step = "payment"
	StepProcessing Step = "processing"
	StepComplete   Step = "complete"
)

var stepOrder = map[Step]int{
	StepAddresses:  0,
	StepShipping:   1,
	StepPayment:    2,
	StepProcessing: 3,
	StepComplete:   4,
}

const defaultProcessingMessage = "Processing your payment..."

// ErrSuperseded is returned for a request whose result arrived after the
// checkout was abandoned or a newer request was started.
var ErrSuperseded = errors.New("checkout request superseded")

// Backend is the part of the backend API used during checkout.
type Backend interface {
	CalculateShipping(ctx context.Context, token, addressID, cartID string) ([]domain.ShippingRate, error)
	CreatePaymentIntent(ctx context.Context, token string, req domain.PaymentIntentRequest) (*domain.PaymentIntent, error)
}

// State is the checkout as the payment pages render it.
type State struct {
	Step                 Step                  `json:"step"`
	ShippingAddressID    string                `json:"shipping_address_id,omitempty"`
	BillingAddressID     string                `json:"billing_address_id,omitempty"`
	SameAsShipping       bool                  `json:"same_as_shipping"`
	ShippingRates        []domain.ShippingRate `json:"shipping_rates,omitempty"`
	ShippingMethod       string                `json:"shipping_method,omitempty"`
	ShippingRate         *domain.ShippingRate  `json:"shipping_rate,omitempty"`
	PaymentIntent        *domain.PaymentIntent `json:"payment_intent,omitempty"`
	ProcessingMessage    string                `json:"processing_message,omitempty"`
	Error                *payment.Failure      `json:"error,omitempty"`
	Loading              bool                  `json:"loading"`
	CanProceedToShipping bool                  `json:"can_proceed_to_shipping"`
	CanProceedToPayment  bool                  `json:"can_proceed_to_payment"`
}

// Session is one checkout attempt. Requests to the shipping and payment
// collaborators carry a generation; a response is applied only if no newer
// request was started and the checkout was not abandoned in the meantime.
type Session struct {
	backend  Backend
	verifier payment.Verifier
	logger   zerolog.Logger

	mu         sync.Mutex
	step       Step
	shippingID string
	billingID  string
	same       bool
	rates      []domain.ShippingRate
	rate       *domain.ShippingRate
	intent     *domain.PaymentIntent
	processing string
	failure    *payment.Failure

	gen      uint64
	inflight int
	cancel   context.CancelFunc
}

func New(backend Backend, verifier payment.Verifier, logger zerolog.Logger) *Session {
	return &Session{
		backend:  backend,
		verifier: verifier,
		logger:   logger.With().Str("component", "checkout").Logger(),
		step:     StepAddresses,
		same:     true,
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := State{
		Step:                 s.step,
		ShippingAddressID:    s.shippingID,
		BillingAddressID:     s.billingID,
		SameAsShipping:       s.same,
		ShippingRates:        append([]domain.ShippingRate(nil), s.rates...),
		ProcessingMessage:    s.processing,
		Error:                s.failure,
		Loading:              s.inflight > 0,
		CanProceedToShipping: s.canProceedToShippingLocked(),
		CanProceedToPayment:  s.canProceedToPaymentLocked(),
	}
	if s.rate != nil {
		r := *s.rate
		st.ShippingRate = &r
		st.ShippingMethod = r.ServiceCode
	}
	if s.intent != nil {
		pi := *s.intent
		st.PaymentIntent = &pi
	}
	return st
}

func (s *Session) Step() Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step
}

// setStepLocked moves to step. Leaving for anything but processing clears
// the processing message and the error.
func (s *Session) setStepLocked(step Step) {
	s.step = step
	if step != StepProcessing {
		s.processing = ""
		s.failure = nil
	}
}

func (s *Session) SetShippingAddress(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id != s.shippingID {
		s.rates = nil
		s.rate = nil
	}
	s.shippingID = id
	if s.same {
		s.billingID = id
	}
}

func (s *Session) SetBillingAddress(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.billingID = id
}

func (s *Session) SetSameAsShipping(same bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.same = same
	if same {
		s.billingID = s.shippingID
	}
}

func (s *Session) canProceedToShippingLocked() bool {
	return s.shippingID != "" && s.billingID != ""
}

func (s *Session) canProceedToPaymentLocked() bool {
	return s.rate != nil && s.rate.ServiceCode != ""
}

func (s *Session) CanProceedToShipping() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canProceedToShippingLocked()
}

func (s *Session) CanProceedToPayment() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canProceedToPaymentLocked()
}

func (s *Session) ProceedToShipping() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.step != StepAddresses && s.step != StepShipping {
		return fmt.Errorf("%w: cannot choose shipping from step %s", domain.ErrInvalidInput, s.step)
	}
	if !s.canProceedToShippingLocked() {
		return fmt.Errorf("%w: select a shipping and a billing address", domain.ErrInvalidInput)
	}
	s.setStepLocked(StepShipping)
	return nil
}

// Back returns to an earlier step. Payment in progress cannot be left.
func (s *Session) Back(step Step) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	target, ok := stepOrder[step]
	if !ok || step == StepProcessing || step == StepComplete {
		return fmt.Errorf("%w: unknown step %q", domain.ErrInvalidInput, step)
	}
	if s.step == StepProcessing || s.step == StepComplete || target > stepOrder[s.step] {
		return fmt.Errorf("%w: cannot go from %s to %s", domain.ErrInvalidInput, s.step, step)
	}
	s.cancelLocked()
	s.setStepLocked(step)
	return nil
}

// beginLocked starts a collaborator request, superseding any request in flight.
func (s *Session) beginLocked(ctx context.Context) (context.Context, uint64) {
	s.cancelLocked()
	reqCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.inflight++
	return reqCtx, s.gen
}

// endLocked reports whether the response of request gen may still be applied.
func (s *Session) endLocked(gen uint64) bool {
	s.inflight--
	if gen != s.gen {
		return false
	}
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	return true
}

func (s *Session) cancelLocked() {
	s.gen++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// LoadShippingRates prices the cart for the selected shipping address.
func (s *Session) LoadShippingRates(ctx context.Context, token, cartID string) ([]domain.ShippingRate, error) {
	s.mu.Lock()
	if s.step != StepShipping {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: shipping rates need the shipping step", domain.ErrInvalidInput)
	}
	addressID := s.shippingID
	reqCtx, gen := s.beginLocked(ctx)
	s.mu.Unlock()

	rates, err := s.backend.CalculateShipping(reqCtx, token, addressID, cartID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.endLocked(gen) {
		s.logger.Debug().Msg("dropping shipping rates of an abandoned request")
		return nil, ErrSuperseded
	}
	if err != nil {
		return nil, fmt.Errorf("calculate shipping: %w", err)
	}
	s.rates = rates
	if s.rate != nil && indexOfRate(rates, s.rate.RateID) < 0 {
		s.rate = nil
	}
	return append([]domain.ShippingRate(nil), rates...), nil
}

func indexOfRate(rates []domain.ShippingRate, id string) int {
	for i, r := range rates {
		if r.RateID == id {
			return i
		}
	}
	return -1
}

func (s *Session) SelectShippingRate(rateID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := indexOfRate(s.rates, rateID)
	if idx < 0 {
		return fmt.Errorf("shipping rate %s: %w", rateID, domain.ErrNotFound)
	}
	r := s.rates[idx]
	s.rate = &r
	return nil
}

// ProceedToPayment opens a payment intent for the cart and moves to the
// payment step.
func (s *Session) ProceedToPayment(ctx context.Context, token, cartID string) (*domain.PaymentIntent, error) {
	s.mu.Lock()
	if s.step != StepShipping {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: payment needs the shipping step", domain.ErrInvalidInput)
	}
	if !s.canProceedToPaymentLocked() {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: select a shipping method", domain.ErrInvalidInput)
	}
	req := domain.PaymentIntentRequest{
		CartID:            cartID,
		ShippingAddressID: s.shippingID,
		BillingAddressID:  s.billingID,
		ShippingMethod:    s.rate.ServiceCode,
		ShippingRateID:    s.rate.RateID,
	}
	reqCtx, gen := s.beginLocked(ctx)
	s.mu.Unlock()

	intent, err := s.backend.CreatePaymentIntent(reqCtx, token, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.endLocked(gen) {
		s.logger.Debug().Msg("dropping payment intent of an abandoned request")
		return nil, ErrSuperseded
	}
	if err != nil {
		return nil, fmt.Errorf("create payment intent: %w", err)
	}
	s.intent = intent
	s.setStepLocked(StepPayment)
	pi := *intent
	return &pi, nil
}

// BeginProcessing is called when the browser submits the payment form.
func (s *Session) BeginProcessing(message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.step != StepPayment || s.intent == nil {
		return fmt.Errorf("%w: no payment to process", domain.ErrInvalidInput)
	}
	if message == "" {
		message = defaultProcessingMessage
	}
	s.setStepLocked(StepProcessing)
	s.processing = message
	s.failure = nil
	return nil
}

// Fail returns to the payment step with f shown inline.
func (s *Session) Fail(f *payment.Failure) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failLocked(f)
}

func (s *Session) failLocked(f *payment.Failure) {
	s.setStepLocked(StepPayment)
	s.failure = f
}

// ReportPaymentError records an error raised by the browser payment element.
func (s *Session) ReportPaymentError(errType, message string) *payment.Failure {
	f := payment.Categorize(errType, message)
	s.Fail(f)
	return f
}

// Complete verifies that the payment intent succeeded and finishes checkout.
// Any other outcome returns to the payment step with a categorized failure.
func (s *Session) Complete(ctx context.Context, token, paymentIntentID string) (domain.PaymentStatus, error) {
	s.mu.Lock()
	if s.intent == nil || (s.step != StepProcessing && s.step != StepPayment) {
		s.mu.Unlock()
		return domain.PaymentStatus{}, fmt.Errorf("%w: no payment in progress", domain.ErrInvalidInput)
	}
	if paymentIntentID == "" {
		paymentIntentID = s.intent.PaymentIntentID
	}
	if paymentIntentID != s.intent.PaymentIntentID {
		s.mu.Unlock()
		return domain.PaymentStatus{}, fmt.Errorf("%w: payment intent %s does not belong to this checkout", domain.ErrInvalidInput, paymentIntentID)
	}
	reqCtx, gen := s.beginLocked(ctx)
	s.mu.Unlock()

	status, err := s.verifier.Verify(reqCtx, token, paymentIntentID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.endLocked(gen) {
		return domain.PaymentStatus{}, ErrSuperseded
	}
	if err != nil {
		f := payment.CategorizeError(err)
		s.failLocked(f)
		s.logger.Warn().Err(err).Str("payment_intent", paymentIntentID).Msg("payment verification failed")
		return domain.PaymentStatus{}, f
	}
	if !status.Succeeded() {
		f := payment.NotCompleted()
		s.failLocked(f)
		return status, f
	}
	s.setStepLocked(StepComplete)
	s.logger.Info().Str("payment_intent", paymentIntentID).Msg("checkout complete")
	return status, nil
}

// Abandon cancels requests in flight and resets the checkout. Their results
// are discarded when they arrive.
func (s *Session) Abandon() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked()
	s.step = StepAddresses
	s.shippingID = ""
	s.billingID = ""
	s.same = true
	s.rates = nil
	s.rate = nil
	s.intent = nil
	s.processing = ""
	s.failure = nil
}
