package httpserver

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"pixel-storefront/internal/domain"
	"pixel-storefront/internal/service/cart"
	"pixel-storefront/internal/service/checkout"
)

// Payment element outcomes posted back by the browser.
const (
	resultProcessing = "processing"
	resultSucceeded  = "succeeded"
	resultFailed     = "failed"
)

type checkoutAddressesRequest struct {
	ShippingAddressID *string `json:"shipping_address_id"`
	BillingAddressID  *string `json:"billing_address_id"`
	SameAsShipping    *bool   `json:"same_as_shipping"`
	// Continue moves on to the shipping step once both addresses are set.
	Continue bool `json:"continue"`
}

type checkoutStepRequest struct {
	Step checkout.Step `json:"step" binding:"required"`
}

type shippingRateRequest struct {
	RateID string `json:"rate_id" binding:"required"`
}

type paymentResultRequest struct {
	Status          string `json:"status" binding:"required"`
	PaymentIntentID string `json:"payment_intent_id"`
	Message         string `json:"message"`
	Error           *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

type paymentResultResponse struct {
	Status   domain.PaymentStatus `json:"payment"`
	Checkout checkout.State       `json:"checkout"`
}

type checkoutErrorResponse struct {
	Error    errorBody      `json:"error"`
	Checkout checkout.State `json:"checkout"`
}

func (h *handlers) getCheckout(c *gin.Context) {
	c.JSON(http.StatusOK, browserSession(c).Checkout().State())
}

func (h *handlers) setCheckoutAddresses(c *gin.Context) {
	var req checkoutAddressesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, invalidBody(err))
		return
	}
	co := browserSession(c).Checkout()
	if req.SameAsShipping != nil {
		co.SetSameAsShipping(*req.SameAsShipping)
	}
	if req.ShippingAddressID != nil {
		co.SetShippingAddress(*req.ShippingAddressID)
	}
	if req.BillingAddressID != nil {
		co.SetBillingAddress(*req.BillingAddressID)
	}
	if req.Continue {
		if err := co.ProceedToShipping(); err != nil {
			writeCheckoutError(c, co, err)
			return
		}
	}
	c.JSON(http.StatusOK, co.State())
}

func (h *handlers) checkoutBack(c *gin.Context) {
	var req checkoutStepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, invalidBody(err))
		return
	}
	co := browserSession(c).Checkout()
	if err := co.Back(req.Step); err != nil {
		writeCheckoutError(c, co, err)
		return
	}
	c.JSON(http.StatusOK, co.State())
}

func (h *handlers) loadShippingRates(c *gin.Context) {
	s := browserSession(c)
	token, ok := bearer(c)
	if !ok {
		return
	}
	cartID, err := checkoutCartID(s.CartView())
	if err != nil {
		writeError(c, err)
		return
	}
	co := s.Checkout()
	if _, err := co.LoadShippingRates(c.Request.Context(), token, cartID); err != nil {
		writeCheckoutError(c, co, err)
		return
	}
	c.JSON(http.StatusOK, co.State())
}

func (h *handlers) selectShippingRate(c *gin.Context) {
	var req shippingRateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, invalidBody(err))
		return
	}
	co := browserSession(c).Checkout()
	if err := co.SelectShippingRate(req.RateID); err != nil {
		writeCheckoutError(c, co, err)
		return
	}
	c.JSON(http.StatusOK, co.State())
}

func (h *handlers) proceedToPayment(c *gin.Context) {
	s := browserSession(c)
	token, ok := bearer(c)
	if !ok {
		return
	}
	cartID, err := checkoutCartID(s.CartView())
	if err != nil {
		writeError(c, err)
		return
	}
	co := s.Checkout()
	if _, err := co.ProceedToPayment(c.Request.Context(), token, cartID); err != nil {
		writeCheckoutError(c, co, err)
		return
	}
	c.JSON(http.StatusOK, co.State())
}

// paymentResult receives the outcome of the browser payment element: the
// form was submitted, the element reported an error, or the processor
// redirected back after confirming.
func (h *handlers) paymentResult(c *gin.Context) {
	var req paymentResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, invalidBody(err))
		return
	}
	s := browserSession(c)
	co := s.Checkout()

	switch {
	case req.Error != nil || req.Status == resultFailed:
		errType, msg := "", ""
		if req.Error != nil {
			errType, msg = req.Error.Type, req.Error.Message
		}
		f := co.ReportPaymentError(errType, msg)
		writeCheckoutError(c, co, f)
		return
	case req.Status == resultProcessing:
		if err := co.BeginProcessing(req.Message); err != nil {
			writeCheckoutError(c, co, err)
			return
		}
		c.JSON(http.StatusOK, co.State())
		return
	case req.Status != resultSucceeded:
		writeError(c, fmt.Errorf("%w: unknown payment status %q", domain.ErrInvalidInput, req.Status))
		return
	}

	token, ok := bearer(c)
	if !ok {
		return
	}
	status, err := co.Complete(c.Request.Context(), token, req.PaymentIntentID)
	if err != nil {
		writeCheckoutError(c, co, err)
		return
	}
	// The order now owns the cart lines; show the emptied cart.
	if id, err := s.CurrentIdentity(); err == nil {
		s.Cart.Invalidate(id.ID)
	}
	c.JSON(http.StatusOK, paymentResultResponse{Status: status, Checkout: co.State()})
}

func (h *handlers) abandonCheckout(c *gin.Context) {
	browserSession(c).AbandonCheckout()
	c.Status(http.StatusNoContent)
}

// writeCheckoutError returns the error together with the checkout state so
// the payment step can show failures inline.
func writeCheckoutError(c *gin.Context, co *checkout.Session, err error) {
	status, body := classify(err)
	_ = c.Error(err)
	c.JSON(status, checkoutErrorResponse{Error: body, Checkout: co.State()})
}

// checkoutCartID returns the id of the cart being checked out. An empty or
// still loading cart cannot be checked out.
func checkoutCartID(v cart.View, err error) (string, error) {
	if err != nil {
		return "", err
	}
	if v.Cart == nil || v.Loading || v.Pending > 0 {
		return "", domain.ErrIdentityNotReady
	}
	if v.Cart.IsEmpty() || v.Cart.ID == "" {
		return "", fmt.Errorf("%w: cart is empty", domain.ErrInvalidInput)
	}
	return v.Cart.ID, nil
}
