package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"pixel-storefront/internal/domain"
)

func productQuery(f domain.ProductFilters) url.Values {
	q := url.Values{}
	if f.Page > 0 {
		q.Set("page", strconv.Itoa(f.Page))
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	if f.SortBy != "" {
		q.Set("sort_by", f.SortBy)
	}
	if f.SortOrder != "" {
		q.Set("sort_order", f.SortOrder)
	}
	if f.Query != "" {
		q.Set("query", f.Query)
	}
	if f.CategoryID != "" {
		q.Set("category_id", f.CategoryID)
	}
	if f.MinPrice != nil {
		q.Set("min_price", f.MinPrice.String())
	}
	if f.MaxPrice != nil {
		q.Set("max_price", f.MaxPrice.String())
	}
	if f.InStock != nil {
		q.Set("in_stock", strconv.FormatBool(*f.InStock))
	}
	return q
}

func (c *Client) ListProducts(ctx context.Context, f domain.ProductFilters) (*domain.ProductPage, error) {
	var page domain.ProductPage
	if err := c.call(ctx, http.MethodGet, "/api/products", productQuery(f), "", nil, &page); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return &page, nil
}

func (c *Client) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	p, err := data[domain.Product](ctx, c, http.MethodGet, "/api/products/"+url.PathEscape(id), nil, "", nil)
	if err != nil {
		return nil, fmt.Errorf("get product %s: %w", id, err)
	}
	return &p, nil
}

func (c *Client) ListCategories(ctx context.Context) ([]domain.Category, error) {
	cats, err := data[[]domain.Category](ctx, c, http.MethodGet, "/api/products/categories", nil, "", nil)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return cats, nil
}

func (c *Client) GetCategory(ctx context.Context, id string) (*domain.Category, error) {
	cat, err := data[domain.Category](ctx, c, http.MethodGet, "/api/products/categories/"+url.PathEscape(id), nil, "", nil)
	if err != nil {
		return nil, fmt.Errorf("get category %s: %w", id, err)
	}
	return &cat, nil
}

// ListCategoryProducts only forwards paging and sorting; the category endpoint ignores other filters.
func (c *Client) ListCategoryProducts(ctx context.Context, categoryID string, f domain.ProductFilters) (*domain.ProductPage, error) {
	paging := domain.ProductFilters{Page: f.Page, Limit: f.Limit, SortBy: f.SortBy, SortOrder: f.SortOrder}
	var page domain.ProductPage
	path := "/api/products/categories/" + url.PathEscape(categoryID) + "/products"
	if err := c.call(ctx, http.MethodGet, path, productQuery(paging), "", nil, &page); err != nil {
		return nil, fmt.Errorf("list products of category %s: %w", categoryID, err)
	}
	return &page, nil
}
