package httpserver

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"pixel-storefront/internal/domain"
	"pixel-storefront/internal/httpclient"
	"pixel-storefront/internal/service/checkout"
	"pixel-storefront/internal/service/payment"
)

type errorBody struct {
	Code     string           `json:"code"`
	Message  string           `json:"message"`
	Category payment.Category `json:"category,omitempty"`
}

type errorPayload struct {
	Error errorBody `json:"error"`
	// Notify asks the UI to show the error as a transient notification.
	Notify bool `json:"notify,omitempty"`
	// BackTo is the listing a not-found view links back to.
	BackTo string `json:"backTo,omitempty"`
}

// classify maps an error to a status and a client-safe body.
func classify(err error) (int, errorBody) {
	var failure *payment.Failure
	if errors.As(err, &failure) {
		return http.StatusPaymentRequired, errorBody{Code: "payment_failed", Message: failure.Message, Category: failure.Category}
	}

	switch {
	case errors.Is(err, checkout.ErrSuperseded):
		return http.StatusConflict, errorBody{Code: "superseded", Message: "request was superseded"}
	case errors.Is(err, domain.ErrIdentityNotReady):
		return http.StatusConflict, errorBody{Code: "identity_not_ready", Message: "identity is still loading"}
	case errors.Is(err, domain.ErrStaleIdentity):
		return http.StatusConflict, errorBody{Code: "stale_identity", Message: "signed in identity changed"}
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, errorBody{Code: "invalid_input", Message: err.Error()}
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, errorBody{Code: "unauthorized", Message: "not signed in or session expired"}
	case errors.Is(err, domain.ErrCartNotFound), errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, errorBody{Code: "not_found", Message: err.Error()}
	case errors.Is(err, httpclient.ErrCircuitOpen), errors.Is(err, domain.ErrUnavailable):
		return http.StatusServiceUnavailable, errorBody{Code: "unavailable", Message: "service temporarily unavailable"}
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, errorBody{Code: "timeout", Message: "upstream timed out"}
	}

	var apiErr *httpclient.APIError
	if errors.As(err, &apiErr) {
		return http.StatusBadGateway, errorBody{Code: "upstream_error", Message: apiErr.Message}
	}
	return http.StatusInternalServerError, errorBody{Code: "internal", Message: "internal error"}
}

func writeError(c *gin.Context, err error) {
	status, body := classify(err)
	_ = c.Error(err)
	c.JSON(status, errorPayload{Error: body})
}

// writeNotify reports a failed cart mutation. The optimistic change has
// already been rolled back.
func writeNotify(c *gin.Context, err error) {
	status, body := classify(err)
	_ = c.Error(err)
	c.JSON(status, errorPayload{Error: body, Notify: true})
}

// writeNotFound renders not-found conditions with a link back to a listing
// page; other errors are written as usual.
func writeNotFound(c *gin.Context, err error, backTo string) {
	status, body := classify(err)
	_ = c.Error(err)
	if status == http.StatusNotFound {
		c.JSON(status, errorPayload{Error: body, BackTo: backTo})
		return
	}
	c.JSON(status, errorPayload{Error: body})
}
