package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID                int64           `json:"id"`
	Title             string          `json:"title"`
	Description       string          `json:"description"`
	Price             decimal.Decimal `json:"price"`
	QuantityAvailable int             `json:"quantity_available"`
	CategoryID        int64           `json:"category_id"`
	OwnerID           int64           `json:"owner_id"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// Validate rejects products with zero-valued required fields.
func (p Product) Validate() error {
	if strings.TrimSpace(p.Title) == "" || strings.TrimSpace(p.Description) == "" {
		return ErrInvalidProductUpdate
	}
	if !p.Price.IsPositive() || p.QuantityAvailable <= 0 || p.CategoryID <= 0 {
		return ErrInvalidProductUpdate
	}
	return nil
}

// ProductUpdate names every field an owner may change. A nil field is left
// untouched; a provided zero value is rejected.
type ProductUpdate struct {
	Title             *string          `json:"title,omitempty"`
	Description       *string          `json:"description,omitempty"`
	Price             *decimal.Decimal `json:"price,omitempty"`
	QuantityAvailable *int             `json:"quantity_available,omitempty"`
	CategoryID        *int64           `json:"category_id,omitempty"`
}

func (u ProductUpdate) Empty() bool {
	return u.Title == nil && u.Description == nil && u.Price == nil &&
		u.QuantityAvailable == nil && u.CategoryID == nil
}

func (u ProductUpdate) Validate() error {
	if u.Empty() {
		return ErrInvalidProductUpdate
	}
	if u.Title != nil && strings.TrimSpace(*u.Title) == "" {
		return ErrInvalidProductUpdate
	}
	if u.Description != nil && strings.TrimSpace(*u.Description) == "" {
		return ErrInvalidProductUpdate
	}
	if u.Price != nil && !u.Price.IsPositive() {
		return ErrInvalidProductUpdate
	}
	if u.QuantityAvailable != nil && *u.QuantityAvailable <= 0 {
		return ErrInvalidProductUpdate
	}
	if u.CategoryID != nil && *u.CategoryID <= 0 {
		return ErrInvalidProductUpdate
	}
	return nil
}

// Apply copies the provided fields onto p.
func (u ProductUpdate) Apply(p *Product) {
	if u.Title != nil {
		p.Title = *u.Title
	}
	if u.Description != nil {
		p.Description = *u.Description
	}
	if u.Price != nil {
		p.Price = *u.Price
	}
	if u.QuantityAvailable != nil {
		p.QuantityAvailable = *u.QuantityAvailable
	}
	if u.CategoryID != nil {
		p.CategoryID = *u.CategoryID
	}
}

type ProductSort string

const (
	SortByTitle    ProductSort = "title"
	SortByPriceAsc ProductSort = "price_asc"
	SortByPriceDsc ProductSort = "price_dsc"
	SortByLatest   ProductSort = "latest"
)

func (s ProductSort) Valid() bool {
	switch s {
	case "", SortByTitle, SortByPriceAsc, SortByPriceDsc, SortByLatest:
		return true
	}
	return false
}

type ProductFilter struct {
	Keyword    string
	CategoryID int64
	SortBy     ProductSort
	Limit      int
}
