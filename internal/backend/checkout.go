package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"pixel-storefront/internal/domain"
)

func (c *Client) CalculateShipping(ctx context.Context, token, addressID, cartID string) ([]domain.ShippingRate, error) {
	body := struct {
		AddressID string `json:"address_id"`
		CartID    string `json:"cart_id"`
	}{addressID, cartID}
	rates, err := data[[]domain.ShippingRate](ctx, c, http.MethodPost, "/api/shipping/calculate", nil, token, body)
	if err != nil {
		return nil, fmt.Errorf("calculate shipping: %w", err)
	}
	return rates, nil
}

func (c *Client) CreatePaymentIntent(ctx context.Context, token string, req domain.PaymentIntentRequest) (*domain.PaymentIntent, error) {
	pi, err := data[domain.PaymentIntent](ctx, c, http.MethodPost, "/api/payment/create-payment-intent", nil, token, req)
	if err != nil {
		return nil, fmt.Errorf("create payment intent: %w", err)
	}
	return &pi, nil
}

func (c *Client) PaymentStatus(ctx context.Context, token, paymentIntentID string) (*domain.PaymentStatus, error) {
	path := "/api/payment/payment-status/" + url.PathEscape(paymentIntentID)
	st, err := data[domain.PaymentStatus](ctx, c, http.MethodGet, path, nil, token, nil)
	if err != nil {
		return nil, fmt.Errorf("payment status %s: %w", paymentIntentID, err)
	}
	return &st, nil
}
