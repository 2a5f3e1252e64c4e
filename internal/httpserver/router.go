package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"pixel-storefront/internal/domain"
	"pixel-storefront/internal/storefront"
)

// Sessions opens the per-browser state addressed by the session cookie.
type Sessions interface {
	Open(ctx context.Context, id string) (*storefront.Session, error)
}

type CatalogService interface {
	Products(ctx context.Context, f domain.ProductFilters) (*domain.ProductPage, error)
	Product(ctx context.Context, id string) (*domain.Product, error)
	Categories(ctx context.Context) ([]domain.Category, error)
	Category(ctx context.Context, id string) (*domain.Category, error)
	CategoryProducts(ctx context.Context, categoryID string, f domain.ProductFilters) (*domain.ProductPage, error)
}

type OrderService interface {
	MyOrders(ctx context.Context, token string, q domain.OrderQuery) (*domain.OrderPage, error)
	Order(ctx context.Context, token, id string) (*domain.Order, error)
	Confirmation(ctx context.Context, token, paymentIntentID string) (*domain.OrderConfirmation, error)
	Track(ctx context.Context, token, trackingNumber, carrier string) (domain.Tracking, error)
}

type AddressService interface {
	List(ctx context.Context, token string) ([]domain.Address, error)
	Create(ctx context.Context, token string, in domain.AddressInput) (*domain.Address, error)
	Update(ctx context.Context, token, id string, in domain.AddressInput) (*domain.Address, error)
	Delete(ctx context.Context, token, id string) error
}

type ProfileService interface {
	Get(ctx context.Context, token string) (*domain.Profile, error)
	Update(ctx context.Context, token string, in domain.ProfileInput) (*domain.Profile, error)
}

// Deps are the services behind the routes.
type Deps struct {
	Sessions  Sessions
	Catalog   CatalogService
	Orders    OrderService
	Addresses AddressService
	Profiles  ProfileService

	// Ready checks run by /readyz, keyed by dependency name.
	Ready map[string]CheckFunc
	// Gatherer backs /metrics; nil disables the route.
	Gatherer prometheus.Gatherer

	CookieSecure   bool
	SessionTTL     time.Duration
	AllowedOrigins []string
	// AuthRateLimit applies to login and sign-up.
	AuthRateLimit RateLimit
}

type handlers struct {
	deps   Deps
	logger zerolog.Logger
}

// buildRouter wires routes for the API.
func buildRouter(logger zerolog.Logger, deps Deps) (*gin.Engine, error) {
	if deps.Sessions == nil || deps.Catalog == nil || deps.Orders == nil || deps.Addresses == nil || deps.Profiles == nil {
		return nil, errors.New("httpserver: sessions, catalog, orders, addresses and profiles are required")
	}
	h := &handlers{deps: deps, logger: logger.With().Str("component", "http").Logger()}

	router := gin.New()
	router.Use(requestLogger(h.logger), recovery(h.logger))
	if len(deps.AllowedOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     deps.AllowedOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Prefer"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(deps.Ready, h.logger))
	if deps.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	// The catalog is the same for every browser and does not need a session.
	router.GET("/products", h.listProducts)
	router.GET("/products/:id", h.getProduct)
	router.GET("/categories", h.listCategories)
	router.GET("/categories/:id", h.getCategory)
	router.GET("/categories/:id/products", h.listCategoryProducts)

	s := router.Group("/", sessionMiddleware(deps.Sessions, deps.CookieSecure, deps.SessionTTL, h.logger))

	s.GET("/session", h.getSession)
	credentials := rateLimiter(deps.AuthRateLimit, h.logger)
	s.POST("/auth/login", credentials, h.login)
	s.POST("/auth/signup", credentials, h.signUp)
	s.POST("/auth/logout", h.logout)

	s.GET("/cart", h.getCart)
	s.POST("/cart/items", h.addCartItem)
	s.PUT("/cart/items/:id", h.updateCartItem)
	s.DELETE("/cart/items/:id", h.removeCartItem)
	s.DELETE("/cart", h.clearCart)

	s.GET("/orders", h.listOrders)
	s.GET("/orders/:id", h.getOrder)
	s.GET("/orders/by-payment-intent/:id", h.orderConfirmation)
	s.GET("/shipping/tracking/:number", h.trackShipment)

	s.GET("/profile", h.getProfile)
	s.PUT("/profile", h.updateProfile)

	s.GET("/addresses", h.listAddresses)
	s.POST("/addresses", h.createAddress)
	s.PUT("/addresses/:id", h.updateAddress)
	s.DELETE("/addresses/:id", h.deleteAddress)

	s.GET("/checkout", h.getCheckout)
	s.PUT("/checkout/addresses", h.setCheckoutAddresses)
	s.PUT("/checkout/step", h.checkoutBack)
	s.POST("/checkout/shipping", h.loadShippingRates)
	s.PUT("/checkout/shipping-rate", h.selectShippingRate)
	s.POST("/checkout/payment", h.proceedToPayment)
	s.POST("/checkout/payment/result", h.paymentResult)
	s.DELETE("/checkout", h.abandonCheckout)

	s.GET("/theme", h.getTheme)
	s.PUT("/theme", h.setTheme)

	return router, nil
}
