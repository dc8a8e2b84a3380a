package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/sparesmarket/spares_api/internal/models"
	"github.com/sparesmarket/spares_api/internal/utils"
)

const defaultCurrency = "RUB"

// RecordSet is a normalized snapshot of one data type, ready for encoding.
type RecordSet struct {
	DataType   models.DataType
	Products   []models.Product
	Categories []models.Category
	Orders     []models.Order
}

// Len returns the number of top-level records.
func (rs *RecordSet) Len() int {
	switch rs.DataType {
	case models.DataTypeOrders:
		return len(rs.Orders)
	case models.DataTypeClassifier:
		return len(rs.Categories)
	default:
		return len(rs.Products)
	}
}

// Records returns the records as a value suitable for JSON responses.
func (rs *RecordSet) Records() any {
	switch rs.DataType {
	case models.DataTypeOrders:
		return nonNil(rs.Orders)
	case models.DataTypeClassifier:
		return nonNil(rs.Categories)
	default:
		return nonNil(rs.Products)
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// CatalogMapper reads domain records from the stores and normalizes them for
// interchange.
type CatalogMapper struct {
	products   ProductStore
	categories CategoryStore
	orders     OrderStore
}

// NewCatalogMapper constructs a CatalogMapper.
func NewCatalogMapper(products ProductStore, categories CategoryStore, orders OrderStore) *CatalogMapper {
	return &CatalogMapper{products: products, categories: categories, orders: orders}
}

// Load returns the normalized records for a data type.
func (m *CatalogMapper) Load(ctx context.Context, dataType models.DataType) (*RecordSet, error) {
	rs := &RecordSet{DataType: dataType}
	var err error
	switch dataType {
	case models.DataTypeCatalog:
		rs.Products, err = m.LoadCatalog(ctx)
	case models.DataTypeOffers:
		rs.Products, err = m.LoadOffers(ctx)
	case models.DataTypeOrders:
		rs.Orders, err = m.LoadOrders(ctx)
	case models.DataTypeClassifier:
		rs.Categories, err = m.LoadClassifier(ctx)
	default:
		return nil, fmt.Errorf("%w: %q", utils.ErrInvalidDataType, dataType)
	}
	if err != nil {
		return nil, err
	}
	return rs, nil
}

// LoadCatalog returns every active product with its category name.
func (m *CatalogMapper) LoadCatalog(ctx context.Context) ([]models.Product, error) {
	products, err := m.products.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	for i := range products {
		normalizeProduct(&products[i])
	}
	return products, nil
}

// LoadOffers returns active products with positive stock.
func (m *CatalogMapper) LoadOffers(ctx context.Context) ([]models.Product, error) {
	products, err := m.products.ListInStock(ctx)
	if err != nil {
		return nil, fmt.Errorf("load offers: %w", err)
	}
	out := products[:0]
	for i := range products {
		normalizeProduct(&products[i])
		if products[i].Stock > 0 {
			out = append(out, products[i])
		}
	}
	return out, nil
}

// LoadOrders returns open orders with their line items attached.
func (m *CatalogMapper) LoadOrders(ctx context.Context) ([]models.Order, error) {
	orders, err := m.orders.ListByStatus(ctx, models.OpenOrderStatuses)
	if err != nil {
		return nil, fmt.Errorf("load orders: %w", err)
	}
	if len(orders) == 0 {
		return orders, nil
	}

	ids := make([]int64, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
	}
	items, err := m.orders.ListItems(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load order items: %w", err)
	}
	byOrder := make(map[int64][]models.OrderItem, len(orders))
	for _, item := range items {
		byOrder[item.OrderID] = append(byOrder[item.OrderID], item)
	}

	for i := range orders {
		o := &orders[i]
		o.Items = nonNil(byOrder[o.ID])
		o.Currency = strings.ToUpper(strings.TrimSpace(o.Currency))
		if o.Currency == "" {
			o.Currency = defaultCurrency
		}
		o.Customer.Name = strings.TrimSpace(o.Customer.Name)
		o.Customer.Email = strings.TrimSpace(o.Customer.Email)
	}
	return orders, nil
}

// LoadClassifier returns the active categories.
func (m *CatalogMapper) LoadClassifier(ctx context.Context) ([]models.Category, error) {
	categories, err := m.categories.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("load classifier: %w", err)
	}
	for i := range categories {
		categories[i].Name = strings.TrimSpace(categories[i].Name)
	}
	return categories, nil
}

// normalizeProduct enforces the exchange invariants: non-negative stock and a
// sale price that never exceeds the regular price.
func normalizeProduct(p *models.Product) {
	p.Name = strings.TrimSpace(p.Name)
	p.SKU = strings.TrimSpace(p.SKU)
	p.Artikul = strings.TrimSpace(p.Artikul)
	p.CatalogNumber = strings.TrimSpace(p.CatalogNumber)
	if p.Stock < 0 {
		p.Stock = 0
	}
	if p.Price.IsNegative() {
		p.Price = decimal.Zero
	}
	if p.SalePrice.Valid && (p.SalePrice.Decimal.GreaterThan(p.Price) || p.SalePrice.Decimal.IsNegative()) {
		p.SalePrice = decimal.NullDecimal{}
	}
}
