package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderPending           OrderStatus = "pending"
	OrderPaid              OrderStatus = "paid"
	OrderProcessing        OrderStatus = "processing"
	OrderShipped           OrderStatus = "shipped"
	OrderDelivered         OrderStatus = "delivered"
	OrderCancelled         OrderStatus = "cancelled"
	OrderRefunded          OrderStatus = "refunded"
	OrderPartiallyRefunded OrderStatus = "partially_refunded"
	OrderPaymentFailed     OrderStatus = "payment_failed"
	OrderDisputed          OrderStatus = "disputed"
	OrderChargeback        OrderStatus = "chargeback"
	OrderFlaggedForReview  OrderStatus = "flagged_for_review"
)

var orderStatuses = map[OrderStatus]struct{}{
	OrderPending: {}, OrderPaid: {}, OrderProcessing: {}, OrderShipped: {},
	OrderDelivered: {}, OrderCancelled: {}, OrderRefunded: {}, OrderPartiallyRefunded: {},
	OrderPaymentFailed: {}, OrderDisputed: {}, OrderChargeback: {}, OrderFlaggedForReview: {},
}

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	_, ok := orderStatuses[s]
	return ok
}

type Order struct {
	ID                    string          `json:"id"`
	UserID                string          `json:"user_id,omitempty"`
	Status                OrderStatus     `json:"status"`
	TotalAmount           decimal.Decimal `json:"total_amount"`
	Subtotal              decimal.Decimal `json:"subtotal"`
	Tax                   decimal.Decimal `json:"tax"`
	ShippingCost          decimal.Decimal `json:"shipping_cost"`
	DiscountAmount        decimal.Decimal `json:"discount_amount"`
	StripePaymentIntentID string          `json:"stripe_payment_intent_id,omitempty"`
	BillingAddressID      string          `json:"billing_address_id"`
	ShippingAddressID     string          `json:"shipping_address_id"`
	ShippingMethod        string          `json:"shipping_method"`
	TrackingNumber        string          `json:"tracking_number,omitempty"`
	Notes                 string          `json:"notes,omitempty"`
	ReceiptURL            string          `json:"receipt_url,omitempty"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
	BillingAddress        *Address        `json:"billing_address,omitempty"`
	ShippingAddress       *Address        `json:"shipping_address,omitempty"`
	Items                 []OrderItem     `json:"order_items,omitempty"`
}

type OrderItem struct {
	ID         string          `json:"id"`
	OrderID    string          `json:"order_id"`
	ProductID  string          `json:"product_id"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	TotalPrice decimal.Decimal `json:"total_price"`
	Product    json.RawMessage `json:"products,omitempty"`
}

type OrderPage struct {
	Data       []Order    `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// OrderQuery filters the caller's order history.
type OrderQuery struct {
	Page   int
	Limit  int
	Status OrderStatus
}

// OrderConfirmation is the order created for a completed payment.
type OrderConfirmation struct {
	Order Order       `json:"order"`
	Items []OrderItem `json:"items"`
}

// Tracking is carrier tracking data passed through from the shipping provider.
type Tracking = json.RawMessage
