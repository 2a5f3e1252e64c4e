package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Category struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description,omitempty"`
	ParentID    string    `json:"parent_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type ProductImage struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
	URL       string `json:"url"`
	AltText   string `json:"alt_text"`
	Position  int    `json:"position"`
	IsPrimary bool   `json:"is_primary"`
}

type Dimensions struct {
	Length float64 `json:"length"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type Product struct {
	ID                string           `json:"id"`
	Name              string           `json:"name"`
	Description       string           `json:"description"`
	Price             decimal.Decimal  `json:"price"`
	CompareAtPrice    *decimal.Decimal `json:"compare_at_price,omitempty"`
	SKU               string           `json:"sku"`
	Weight            float64          `json:"weight"`
	Dimensions        Dimensions       `json:"dimensions"`
	InventoryQuantity int              `json:"inventory_quantity"`
	IsActive          bool             `json:"is_active"`
	CategoryID        string           `json:"category_id"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
	Category          *Category        `json:"category,omitempty"`
	Images            []ProductImage   `json:"product_images,omitempty"`
}

// PrimaryImage returns the image flagged primary, else the first one.
func (p Product) PrimaryImage() (ProductImage, bool) {
	for _, img := range p.Images {
		if img.IsPrimary {
			return img, true
		}
	}
	if len(p.Images) > 0 {
		return p.Images[0], true
	}
	return ProductImage{}, false
}

// InStock reports whether any inventory is left.
func (p Product) InStock() bool {
	return p.InventoryQuantity > 0
}

const (
	SortByCreatedAt = "created_at"
	SortByName      = "name"
	SortByPrice     = "price"
)

// ProductFilters are the query parameters accepted by the product listing.
type ProductFilters struct {
	Page       int
	Limit      int
	SortBy     string
	SortOrder  string
	Query      string
	CategoryID string
	MinPrice   *decimal.Decimal
	MaxPrice   *decimal.Decimal
	InStock    *bool
}

type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

type ProductPage struct {
	Data       []Product  `json:"data"`
	Pagination Pagination `json:"pagination"`
}
