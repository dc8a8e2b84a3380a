package models

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// MaxReportedFailures bounds the failure list returned for one batch.
// Counting continues past the cap.
const MaxReportedFailures = 50

// CatalogRecord is one incoming catalog row. Absent optional fields keep the
// stored value on update.
type CatalogRecord struct {
	ID            *int64              `json:"id"`
	Name          string              `json:"name" validate:"max=255"`
	Description   *string             `json:"description"`
	Price         decimal.NullDecimal `json:"price"`
	SalePrice     decimal.NullDecimal `json:"salePrice"`
	SKU           string              `json:"sku" validate:"max=100"`
	Artikul       string              `json:"artikul" validate:"max=100"`
	CatalogNumber string              `json:"catalogNumber" validate:"max=100"`
	Stock         *int                `json:"stock" validate:"omitempty,min=0"`
	IsActive      *bool               `json:"isActive"`
	CategoryName  string              `json:"categoryName" validate:"max=255"`
}

// Key identifies the record in failure reports.
func (r *CatalogRecord) Key() string {
	switch {
	case r.ID != nil:
		return strconv.FormatInt(*r.ID, 10)
	case r.Artikul != "":
		return r.Artikul
	default:
		return r.SKU
	}
}

// Normalize trims the free-text fields in place.
func (r *CatalogRecord) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.SKU = strings.TrimSpace(r.SKU)
	r.Artikul = strings.TrimSpace(r.Artikul)
	r.CatalogNumber = strings.TrimSpace(r.CatalogNumber)
	r.CategoryName = strings.TrimSpace(r.CategoryName)
}

// ToUpdate converts the record into a partial update. Empty strings are
// treated as absent.
func (r *CatalogRecord) ToUpdate() *ProductUpdate {
	return &ProductUpdate{
		Name:          optString(r.Name),
		Description:   r.Description,
		Price:         r.Price,
		SalePrice:     r.SalePrice,
		SKU:           optString(r.SKU),
		Artikul:       optString(r.Artikul),
		CatalogNumber: optString(r.CatalogNumber),
		Stock:         r.Stock,
		IsActive:      r.IsActive,
	}
}

// ToProduct builds a new product from the record. Missing price means zero
// until an offers exchange fills it in.
func (r *CatalogRecord) ToProduct(categoryID *int64) *Product {
	p := &Product{
		Name:          r.Name,
		Description:   r.Description,
		Price:         decimal.Zero,
		SalePrice:     r.SalePrice,
		SKU:           r.SKU,
		Artikul:       r.Artikul,
		CatalogNumber: r.CatalogNumber,
		IsActive:      true,
		CategoryID:    categoryID,
	}
	if r.Price.Valid {
		p.Price = r.Price.Decimal
	}
	if r.Stock != nil {
		p.Stock = *r.Stock
	}
	if r.IsActive != nil {
		p.IsActive = *r.IsActive
	}
	return p
}

// OfferRecord is one incoming price and stock row, matched by artikul.
type OfferRecord struct {
	Artikul   string              `json:"artikul" validate:"required,max=100"`
	Price     decimal.NullDecimal `json:"price"`
	SalePrice decimal.NullDecimal `json:"salePrice"`
	Stock     *int                `json:"stock" validate:"required,min=0"`

	// Problem is set by decoders that could not represent a source value
	// faithfully. Such records are rejected as they are.
	Problem string `json:"-"`
}

// OrderRecord is one incoming order status row, matched by order number.
type OrderRecord struct {
	OrderNumber string      `json:"orderNumber" validate:"required,max=64"`
	Status      OrderStatus `json:"status" validate:"required"`
	Notes       *string     `json:"notes"`
}

// ImportStats counts per-record outcomes of one batch.
type ImportStats struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Errors  int `json:"errors"`
}

// Total is the number of records the batch processed.
func (s ImportStats) Total() int {
	return s.Created + s.Updated + s.Errors
}

// RecordFailure describes one rejected record.
type RecordFailure struct {
	Index   int    `json:"index"`
	Key     string `json:"key,omitempty"`
	Message string `json:"message"`
}

// OutcomeKind is what happened to a single record.
type OutcomeKind int

const (
	OutcomeCreated OutcomeKind = iota
	OutcomeUpdated
	OutcomeFailed
)

// RecordOutcome is the result of reconciling one record.
type RecordOutcome struct {
	Kind    OutcomeKind
	Failure RecordFailure
}

// ImportBatchResult is the accumulated result of a batch. It is a value:
// With returns a new result and never mutates the receiver.
type ImportBatchResult struct {
	Stats    ImportStats     `json:"stats"`
	Failures []RecordFailure `json:"failures"`
}

// With folds one record outcome into the result.
func (r ImportBatchResult) With(o RecordOutcome) ImportBatchResult {
	next := r
	switch o.Kind {
	case OutcomeCreated:
		next.Stats.Created++
	case OutcomeUpdated:
		next.Stats.Updated++
	default:
		next.Stats.Errors++
		if len(r.Failures) < MaxReportedFailures {
			// full slice expression forces a copy so r keeps its own backing array
			next.Failures = append(r.Failures[:len(r.Failures):len(r.Failures)], o.Failure)
		}
	}
	return next
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
