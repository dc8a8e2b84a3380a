package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents a sellable spare part.
// Fields are tagged for both DB scanning and JSON serialization.
type Product struct {
	ID            int64               `db:"id" json:"id"`
	Name          string              `db:"name" json:"name"`
	Description   *string             `db:"description" json:"description"`
	Price         decimal.Decimal     `db:"price" json:"price"`
	SalePrice     decimal.NullDecimal `db:"sale_price" json:"salePrice"`
	SKU           string              `db:"sku" json:"sku"`
	Artikul       string              `db:"artikul" json:"artikul"`
	CatalogNumber string              `db:"catalog_number" json:"catalogNumber"`
	Stock         int                 `db:"stock" json:"stock"`
	IsActive      bool                `db:"is_active" json:"isActive"`
	IsFeatured    bool                `db:"is_featured" json:"isFeatured"`
	CategoryID    *int64              `db:"category_id" json:"categoryId"`
	CategoryName  *string             `db:"category_name" json:"categoryName"`
	CreatedAt     time.Time           `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time           `db:"updated_at" json:"updatedAt"`
}

// ProductUpdate carries a partial product change. Nil pointers and invalid
// decimals leave the stored value untouched.
type ProductUpdate struct {
	Name          *string
	Description   *string
	Price         decimal.NullDecimal
	SalePrice     decimal.NullDecimal
	SKU           *string
	Artikul       *string
	CatalogNumber *string
	Stock         *int
	IsActive      *bool
	CategoryID    *int64
}

// OfferUpdate replaces the commercial state of every product sharing an artikul.
type OfferUpdate struct {
	Price     decimal.Decimal
	SalePrice decimal.NullDecimal
	Stock     int
}
