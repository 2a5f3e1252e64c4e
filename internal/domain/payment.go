package domain

import "github.com/shopspring/decimal"

type ShippingRate struct {
	RateID        string          `json:"rate_id"`
	ServiceCode   string          `json:"service_code"`
	ServiceName   string          `json:"service_name"`
	Carrier       string          `json:"carrier"`
	Rate          decimal.Decimal `json:"rate"`
	EstimatedDays int             `json:"estimated_days"`
	Zone          string          `json:"zone,omitempty"`
}

// PaymentIntentRequest asks the backend to price the cart and open a payment intent.
type PaymentIntentRequest struct {
	CartID            string `json:"cart_id"`
	ShippingAddressID string `json:"shipping_address_id"`
	BillingAddressID  string `json:"billing_address_id"`
	ShippingMethod    string `json:"shipping_method"`
	ShippingRateID    string `json:"shipping_rate_id"`
}

type PaymentIntent struct {
	ClientSecret    string          `json:"clientSecret"`
	PaymentIntentID string          `json:"paymentIntentId"`
	Amount          decimal.Decimal `json:"amount"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	Tax             decimal.Decimal `json:"tax"`
	Shipping        decimal.Decimal `json:"shipping"`
	Currency        string          `json:"currency"`
}

const PaymentSucceeded = "succeeded"

type PaymentStatus struct {
	Status          string `json:"status"`
	PaymentIntentID string `json:"paymentIntentId"`
}

func (s PaymentStatus) Succeeded() bool {
	return s.Status == PaymentSucceeded
}
