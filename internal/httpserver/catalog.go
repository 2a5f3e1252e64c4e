package httpserver

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"pixel-storefront/internal/domain"
)

const (
	backToProducts   = "/products"
	backToCategories = "/categories"
	backToOrders     = "/orders"
)

// productFilters reads the listing query string. Range and sort checks are
// left to the catalog service.
func productFilters(c *gin.Context) (domain.ProductFilters, error) {
	var f domain.ProductFilters
	var err error
	if f.Page, err = intQuery(c, "page"); err != nil {
		return f, err
	}
	if f.Limit, err = intQuery(c, "limit"); err != nil {
		return f, err
	}
	f.SortBy = c.Query("sort_by")
	f.SortOrder = c.Query("sort_order")
	f.Query = c.Query("search")
	f.CategoryID = c.Query("category")
	if f.MinPrice, err = decimalQuery(c, "min_price"); err != nil {
		return f, err
	}
	if f.MaxPrice, err = decimalQuery(c, "max_price"); err != nil {
		return f, err
	}
	if v := c.Query("in_stock"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return f, fmt.Errorf("%w: in_stock must be a boolean", domain.ErrInvalidInput)
		}
		f.InStock = &b
	}
	return f, nil
}

func intQuery(c *gin.Context, key string) (int, error) {
	v := c.Query(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be a number", domain.ErrInvalidInput, key)
	}
	return n, nil
}

func decimalQuery(c *gin.Context, key string) (*decimal.Decimal, error) {
	v := c.Query(key)
	if v == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be a price", domain.ErrInvalidInput, key)
	}
	return &d, nil
}

func (h *handlers) listProducts(c *gin.Context) {
	f, err := productFilters(c)
	if err != nil {
		writeError(c, err)
		return
	}
	page, err := h.deps.Catalog.Products(c.Request.Context(), f)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *handlers) getProduct(c *gin.Context) {
	p, err := h.deps.Catalog.Product(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeNotFound(c, err, backToProducts)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *handlers) listCategories(c *gin.Context) {
	cats, err := h.deps.Catalog.Categories(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": cats})
}

func (h *handlers) getCategory(c *gin.Context) {
	cat, err := h.deps.Catalog.Category(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeNotFound(c, err, backToCategories)
		return
	}
	c.JSON(http.StatusOK, cat)
}

func (h *handlers) listCategoryProducts(c *gin.Context) {
	f, err := productFilters(c)
	if err != nil {
		writeError(c, err)
		return
	}
	page, err := h.deps.Catalog.CategoryProducts(c.Request.Context(), c.Param("id"), f)
	if err != nil {
		writeNotFound(c, err, backToCategories)
		return
	}
	c.JSON(http.StatusOK, page)
}
