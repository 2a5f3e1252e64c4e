package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pixel-storefront/internal/domain"
	"pixel-storefront/internal/httpclient"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(h)
	t.Cleanup(server.Close)
	return New(server.URL+"/", httpclient.New(httpclient.Config{Timeout: 5 * time.Second, MaxConnsPerHost: 4}))
}

const cartBody = `{"status":"success","data":{
	"cart":{"id":"cart-1","user_id":"u1"},
	"items":[{"id":"line-1","quantity":2,"products":{"id":"prod-x","name":"Cartridge","price":12.5,"sku":"X","inventory_quantity":5,
		"product_images":[{"url":"a.png","is_primary":false},{"url":"b.png","is_primary":true}]}}],
	"summary":{"subtotal":25,"totalItems":2}}}`

func TestGetCartDecodesItems(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/cart", r.URL.Path)
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(cartBody))
	})

	cart, err := client.GetCart(context.Background(), "tok-1")
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)

	item := cart.Items[0]
	assert.Equal(t, "cart-1", cart.ID)
	assert.Equal(t, "prod-x", item.ProductID)
	assert.Equal(t, 5, item.Product.Inventory)
	assert.Equal(t, "b.png", item.Product.ImageURL)
	assert.True(t, cart.Summary().Subtotal.Equal(decimal.NewFromInt(25)))
}

func TestGetCartNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"Cart not found"}`))
	})

	_, err := client.GetCart(context.Background(), "tok")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrCartNotFound))
}

func TestMergeCartSendsItems(t *testing.T) {
	var got struct {
		Items []domain.MergeLine `json:"items"`
	}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/cart/merge", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(cartBody))
	})

	err := client.MergeCart(context.Background(), "tok", []domain.MergeLine{{ProductID: "prod-x", Quantity: 2}})
	require.NoError(t, err)
	assert.Equal(t, []domain.MergeLine{{ProductID: "prod-x", Quantity: 2}}, got.Items)
}

func TestMergeGuestCartSendsGuestID(t *testing.T) {
	var got map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/cart/merge", r.URL.Path)
		assert.Equal(t, "Bearer tok-member", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(cartBody))
	})

	require.NoError(t, client.MergeGuestCart(context.Background(), "tok-member", "anon-1"))
	assert.Equal(t, map[string]any{"fromUserId": "anon-1"}, got)
}

func TestListProductsForwardsFilters(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "2", q.Get("page"))
		assert.Equal(t, "price", q.Get("sort_by"))
		assert.Equal(t, "9.99", q.Get("min_price"))
		assert.Equal(t, "true", q.Get("in_stock"))
		assert.Empty(t, q.Get("max_price"))
		_, _ = w.Write([]byte(`{"data":[{"id":"p1","name":"NES","price":"99.00"}],"pagination":{"page":2,"limit":12,"total":13,"total_pages":2}}`))
	})

	minPrice := decimal.RequireFromString("9.99")
	inStock := true
	page, err := client.ListProducts(context.Background(), domain.ProductFilters{Page: 2, SortBy: domain.SortByPrice, MinPrice: &minPrice, InStock: &inStock})
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, 2, page.Pagination.TotalPages)
	assert.True(t, page.Data[0].Price.Equal(decimal.NewFromInt(99)))
}

func TestCategoryProductsOnlyForwardsPaging(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/products/categories/retro/products", r.URL.Path)
		assert.Empty(t, r.URL.Query().Get("query"))
		assert.Equal(t, "asc", r.URL.Query().Get("sort_order"))
		_, _ = w.Write([]byte(`{"data":[],"pagination":{"page":1,"limit":12,"total":0,"total_pages":0}}`))
	})

	_, err := client.ListCategoryProducts(context.Background(), "retro", domain.ProductFilters{Query: "mario", SortOrder: "asc"})
	require.NoError(t, err)
}

func TestGetProductMissing(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"Product not found"}`))
	})

	_, err := client.GetProduct(context.Background(), "nope")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.False(t, errors.Is(err, domain.ErrCartNotFound))
}

func TestCheckoutEndpoints(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/shipping/calculate":
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, map[string]string{"address_id": "a1", "cart_id": "c1"}, body)
			_, _ = w.Write([]byte(`{"data":[{"rate_id":"r1","service_code":"ground","service_name":"Ground","carrier":"usps","rate":5.5,"estimated_days":3}]}`))
		case "/api/payment/create-payment-intent":
			_, _ = w.Write([]byte(`{"data":{"clientSecret":"sec","paymentIntentId":"pi_1","amount":30.5,"subtotal":25,"tax":0,"shipping":5.5,"currency":"usd"}}`))
		case "/api/payment/payment-status/pi_1":
			_, _ = w.Write([]byte(`{"data":{"status":"succeeded","paymentIntentId":"pi_1"}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	ctx := context.Background()

	rates, err := client.CalculateShipping(ctx, "tok", "a1", "c1")
	require.NoError(t, err)
	require.Len(t, rates, 1)
	assert.Equal(t, "r1", rates[0].RateID)

	pi, err := client.CreatePaymentIntent(ctx, "tok", domain.PaymentIntentRequest{CartID: "c1"})
	require.NoError(t, err)
	assert.Equal(t, "sec", pi.ClientSecret)

	st, err := client.PaymentStatus(ctx, "tok", "pi_1")
	require.NoError(t, err)
	assert.True(t, st.Succeeded())
}

func TestProfileRoundTrip(t *testing.T) {
	var sent map[string]string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/users/me", r.URL.Path)
		if r.Method == http.MethodPut {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&sent))
			_, _ = w.Write([]byte(`{"data":{"id":"u1","email":"ada@example.com","first_name":"Ada","last_name":"Lovelace","phone":"555"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"data":{"id":"u1","email":"ada@example.com","first_name":"Ada","last_name":null,"phone":null}}`))
	})
	ctx := context.Background()

	p, err := client.Profile(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, "Ada", p.FirstName)
	assert.Empty(t, p.LastName)

	p, err = client.UpdateProfile(ctx, "tok", domain.ProfileInput{FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com", Phone: "555"})
	require.NoError(t, err)
	assert.Equal(t, "Lovelace", p.LastName)
	assert.Equal(t, map[string]string{"first_name": "Ada", "last_name": "Lovelace", "email": "ada@example.com", "phone": "555"}, sent)
}

func TestProfileRejectedToken(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"Invalid token"}`))
	})

	_, err := client.Profile(context.Background(), "expired")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}
