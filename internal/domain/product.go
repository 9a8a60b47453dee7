package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents an item in the catalog
type Product struct {
	ID          int64           `json:"id" db:"id"`
	Name        string          `json:"name" db:"name"`
	Description string          `json:"description" db:"description"`
	Price       decimal.Decimal `json:"price" db:"price"`
	Category    string          `json:"category" db:"category"`
	Stock       int             `json:"stock" db:"stock"`
	Image       *string         `json:"image" db:"image"`
	CreatedAt   time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time       `json:"updatedAt" db:"updated_at"`
}

// HasImage reports whether the product references a stored image file
func (p *Product) HasImage() bool {
	return p.Image != nil && *p.Image != ""
}

// ImageName returns the stored image filename or an empty string
func (p *Product) ImageName() string {
	if !p.HasImage() {
		return ""
	}
	return *p.Image
}

// ProductFilter narrows a product listing. Zero values mean "no constraint".
type ProductFilter struct {
	Category string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	Search   string
}

// Category is a distinct product category with the number of products filed under it
type Category struct {
	Name         string `json:"name"`
	ProductCount int    `json:"productCount"`
}
