package catalog

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"pixel-storefront/internal/domain"
)

const (
	DefaultLimit = 12
	MaxLimit     = 100

	categoriesTTL = 5 * time.Minute
)

type Backend interface {
	ListProducts(ctx context.Context, f domain.ProductFilters) (*domain.ProductPage, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	ListCategories(ctx context.Context) ([]domain.Category, error)
	GetCategory(ctx context.Context, id string) (*domain.Category, error)
	ListCategoryProducts(ctx context.Context, categoryID string, f domain.ProductFilters) (*domain.ProductPage, error)
}

// Service serves the product catalog. The category list changes rarely and
// is cached for all browsers.
type Service struct {
	backend Backend
	now     func() time.Time

	flight     singleflight.Group
	mu         sync.RWMutex
	categories []domain.Category
	loadedAt   time.Time
}

func New(backend Backend) *Service {
	return &Service{backend: backend, now: time.Now}
}

// Normalize applies paging defaults and rejects unknown sort keys or an
// inverted price range.
func Normalize(f domain.ProductFilters) (domain.ProductFilters, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	switch {
	case f.Limit < 1:
		f.Limit = DefaultLimit
	case f.Limit > MaxLimit:
		f.Limit = MaxLimit
	}
	f.Query = strings.TrimSpace(f.Query)

	switch f.SortBy {
	case "", domain.SortByCreatedAt, domain.SortByName, domain.SortByPrice:
	default:
		return f, fmt.Errorf("%w: unknown sort_by %q", domain.ErrInvalidInput, f.SortBy)
	}
	switch strings.ToLower(f.SortOrder) {
	case "":
	case "asc", "desc":
		f.SortOrder = strings.ToLower(f.SortOrder)
	default:
		return f, fmt.Errorf("%w: sort_order must be asc or desc", domain.ErrInvalidInput)
	}
	if f.MinPrice != nil && f.MinPrice.IsNegative() {
		return f, fmt.Errorf("%w: min_price must not be negative", domain.ErrInvalidInput)
	}
	if f.MinPrice != nil && f.MaxPrice != nil && f.MinPrice.GreaterThan(*f.MaxPrice) {
		return f, fmt.Errorf("%w: min_price exceeds max_price", domain.ErrInvalidInput)
	}
	return f, nil
}

func (s *Service) Products(ctx context.Context, f domain.ProductFilters) (*domain.ProductPage, error) {
	f, err := Normalize(f)
	if err != nil {
		return nil, err
	}
	return s.backend.ListProducts(ctx, f)
}

func (s *Service) Product(ctx context.Context, id string) (*domain.Product, error) {
	if strings.TrimSpace(id) == "" {
		return nil, domain.ErrNotFound
	}
	return s.backend.GetProduct(ctx, id)
}

// Categories returns the cached category list, reloading it once it expired.
// Concurrent reloads share one backend call.
func (s *Service) Categories(ctx context.Context) ([]domain.Category, error) {
	s.mu.RLock()
	if s.categories != nil && s.now().Sub(s.loadedAt) < categoriesTTL {
		out := append([]domain.Category(nil), s.categories...)
		s.mu.RUnlock()
		return out, nil
	}
	s.mu.RUnlock()

	v, err, _ := s.flight.Do("categories", func() (any, error) {
		cats, err := s.backend.ListCategories(ctx)
		if err != nil {
			return nil, err
		}
		if cats == nil {
			cats = []domain.Category{}
		}
		s.mu.Lock()
		s.categories = cats
		s.loadedAt = s.now()
		s.mu.Unlock()
		return cats, nil
	})
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return append([]domain.Category(nil), v.([]domain.Category)...), nil
}

func (s *Service) Category(ctx context.Context, id string) (*domain.Category, error) {
	if strings.TrimSpace(id) == "" {
		return nil, domain.ErrNotFound
	}
	return s.backend.GetCategory(ctx, id)
}

// CategoryProducts lists the products of a category. Only paging and
// sorting apply; the category endpoint ignores other filters.
func (s *Service) CategoryProducts(ctx context.Context, categoryID string, f domain.ProductFilters) (*domain.ProductPage, error) {
	f, err := Normalize(domain.ProductFilters{Page: f.Page, Limit: f.Limit, SortBy: f.SortBy, SortOrder: f.SortOrder})
	if err != nil {
		return nil, err
	}
	return s.backend.ListCategoryProducts(ctx, categoryID, f)
}
