package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"pixel-storefront/internal/domain"
)

func (c *Client) ListOrders(ctx context.Context, token string, q domain.OrderQuery) (*domain.OrderPage, error) {
	query := url.Values{}
	if q.Page > 0 {
		query.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		query.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Status != "" {
		query.Set("status", string(q.Status))
	}
	var page domain.OrderPage
	if err := c.call(ctx, http.MethodGet, "/api/orders/my-orders", query, token, nil, &page); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return &page, nil
}

func (c *Client) GetOrder(ctx context.Context, token, id string) (*domain.Order, error) {
	o, err := data[domain.Order](ctx, c, http.MethodGet, "/api/orders/"+url.PathEscape(id), nil, token, nil)
	if err != nil {
		return nil, fmt.Errorf("get order %s: %w", id, err)
	}
	return &o, nil
}

func (c *Client) OrderByPaymentIntent(ctx context.Context, token, paymentIntentID string) (*domain.OrderConfirmation, error) {
	path := "/api/orders/by-payment-intent/" + url.PathEscape(paymentIntentID)
	conf, err := data[domain.OrderConfirmation](ctx, c, http.MethodGet, path, nil, token, nil)
	if err != nil {
		return nil, fmt.Errorf("order for payment %s: %w", paymentIntentID, err)
	}
	return &conf, nil
}

func (c *Client) TrackShipment(ctx context.Context, token, trackingNumber, carrier string) (domain.Tracking, error) {
	query := url.Values{}
	if carrier != "" {
		query.Set("carrier", carrier)
	}
	path := "/api/shipping/tracking/" + url.PathEscape(trackingNumber)
	t, err := data[domain.Tracking](ctx, c, http.MethodGet, path, query, token, nil)
	if err != nil {
		return nil, fmt.Errorf("track shipment %s: %w", trackingNumber, err)
	}
	return t, nil
}
