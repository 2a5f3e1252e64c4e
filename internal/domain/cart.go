package domain

import "github.com/shopspring/decimal"

type Cart struct {
	ID     string     `json:"id"`
	UserID string     `json:"user_id,omitempty"`
	Items  []CartItem `json:"items"`
}

type CartItem struct {
	ID        string      `json:"id"`
	ProductID string      `json:"product_id"`
	Quantity  int         `json:"quantity"`
	Product   CartProduct `json:"product"`
}

// CartProduct is the product data denormalized onto a cart line for display.
type CartProduct struct {
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	SKU       string          `json:"sku,omitempty"`
	Inventory int             `json:"inventory_quantity"`
	ImageURL  string          `json:"image_url,omitempty"`
}

type CartSummary struct {
	Subtotal   decimal.Decimal `json:"subtotal"`
	TotalItems int             `json:"totalItems"`
}

// MergeLine is one guest cart line submitted to the merge endpoint.
type MergeLine struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// Summary computes subtotal and item count from the cart lines.
func (c *Cart) Summary() CartSummary {
	out := CartSummary{Subtotal: decimal.Zero}
	if c == nil {
		return out
	}
	for _, item := range c.Items {
		out.Subtotal = out.Subtotal.Add(item.Product.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
		out.TotalItems += item.Quantity
	}
	return out
}

func (c *Cart) IsEmpty() bool {
	return c == nil || len(c.Items) == 0
}

// Clone deep-copies the cart so callers can mutate the result freely.
func (c *Cart) Clone() *Cart {
	if c == nil {
		return nil
	}
	out := *c
	out.Items = make([]CartItem, len(c.Items))
	copy(out.Items, c.Items)
	return &out
}

// IndexOf returns the position of the line with the given id.
func (c *Cart) IndexOf(itemID string) int {
	if c == nil {
		return -1
	}
	for i, item := range c.Items {
		if item.ID == itemID {
			return i
		}
	}
	return -1
}

// IndexOfProduct returns the position of the line holding productID.
func (c *Cart) IndexOfProduct(productID string) int {
	if c == nil {
		return -1
	}
	for i, item := range c.Items {
		if item.ProductID == productID {
			return i
		}
	}
	return -1
}

// MergeLines lists the lines in the shape the merge endpoint expects.
func (c *Cart) MergeLines() []MergeLine {
	if c == nil {
		return nil
	}
	lines := make([]MergeLine, 0, len(c.Items))
	for _, item := range c.Items {
		if item.Quantity <= 0 {
			continue
		}
		lines = append(lines, MergeLine{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return lines
}
