package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"

	"pixel-storefront/internal/domain"
)

type cartWire struct {
	Cart *struct {
		ID     string `json:"id"`
		UserID string `json:"user_id"`
	} `json:"cart"`
	Items []cartItemWire `json:"items"`
}

type cartItemWire struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Products  struct {
		ID                string                `json:"id"`
		Name              string                `json:"name"`
		Price             decimal.Decimal       `json:"price"`
		SKU               string                `json:"sku"`
		InventoryQuantity int                   `json:"inventory_quantity"`
		ProductImages     []domain.ProductImage `json:"product_images"`
	} `json:"products"`
}

func (w cartWire) toDomain() *domain.Cart {
	cart := &domain.Cart{Items: make([]domain.CartItem, 0, len(w.Items))}
	if w.Cart != nil {
		cart.ID = w.Cart.ID
		cart.UserID = w.Cart.UserID
	}
	for _, it := range w.Items {
		productID := it.ProductID
		if productID == "" {
			productID = it.Products.ID
		}
		item := domain.CartItem{
			ID:        it.ID,
			ProductID: productID,
			Quantity:  it.Quantity,
			Product: domain.CartProduct{
				Name:      it.Products.Name,
				Price:     it.Products.Price,
				SKU:       it.Products.SKU,
				Inventory: it.Products.InventoryQuantity,
			},
		}
		if img, ok := (domain.Product{Images: it.Products.ProductImages}).PrimaryImage(); ok {
			item.Product.ImageURL = img.URL
		}
		cart.Items = append(cart.Items, item)
	}
	return cart
}

func (c *Client) cart(ctx context.Context, method, path, token string, body any) (*domain.Cart, error) {
	w, err := data[cartWire](ctx, c, method, path, nil, token, body)
	if err != nil {
		return nil, err
	}
	return w.toDomain(), nil
}

// GetCart returns the caller's cart. A cart that is still being provisioned
// surfaces as an error matching domain.ErrCartNotFound.
func (c *Client) GetCart(ctx context.Context, token string) (*domain.Cart, error) {
	cart, err := c.cart(ctx, http.MethodGet, "/api/cart", token, nil)
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}
	return cart, nil
}

func (c *Client) AddCartItem(ctx context.Context, token, productID string, quantity int) (*domain.Cart, error) {
	body := struct {
		ProductID string `json:"product_id"`
		Quantity  int    `json:"quantity"`
	}{productID, quantity}
	cart, err := c.cart(ctx, http.MethodPost, "/api/cart/items", token, body)
	if err != nil {
		return nil, fmt.Errorf("add cart item: %w", err)
	}
	return cart, nil
}

func (c *Client) UpdateCartItem(ctx context.Context, token, itemID string, quantity int) (*domain.Cart, error) {
	body := struct {
		Quantity int `json:"quantity"`
	}{quantity}
	cart, err := c.cart(ctx, http.MethodPut, "/api/cart/items/"+url.PathEscape(itemID), token, body)
	if err != nil {
		return nil, fmt.Errorf("update cart item: %w", err)
	}
	return cart, nil
}

func (c *Client) RemoveCartItem(ctx context.Context, token, itemID string) (*domain.Cart, error) {
	cart, err := c.cart(ctx, http.MethodDelete, "/api/cart/items/"+url.PathEscape(itemID), token, nil)
	if err != nil {
		return nil, fmt.Errorf("remove cart item: %w", err)
	}
	return cart, nil
}

func (c *Client) ClearCart(ctx context.Context, token string) (*domain.Cart, error) {
	cart, err := c.cart(ctx, http.MethodDelete, "/api/cart", token, nil)
	if err != nil {
		return nil, fmt.Errorf("clear cart: %w", err)
	}
	return cart, nil
}

// MergeCart folds guest lines into the authenticated caller's cart. The
// server deduplicates by product and clamps to inventory.
func (c *Client) MergeCart(ctx context.Context, token string, lines []domain.MergeLine) error {
	body := struct {
		Items []domain.MergeLine `json:"items"`
	}{lines}
	if err := c.call(ctx, http.MethodPost, "/api/cart/merge", nil, token, body, nil); err != nil {
		return fmt.Errorf("merge cart: %w", err)
	}
	return nil
}

// MergeGuestCart asks the server to fold the cart of guest user guestID into
// the authenticated caller's cart.
func (c *Client) MergeGuestCart(ctx context.Context, token, guestID string) error {
	body := struct {
		FromUserID string `json:"fromUserId"`
	}{guestID}
	if err := c.call(ctx, http.MethodPost, "/api/cart/merge", nil, token, body, nil); err != nil {
		return fmt.Errorf("merge guest cart: %w", err)
	}
	return nil
}
