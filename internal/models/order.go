package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus enumerates the order lifecycle states.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// OpenOrderStatuses are the states the ERP still has to act on.
var OpenOrderStatuses = []OrderStatus{OrderStatusPending, OrderStatusConfirmed, OrderStatusProcessing}

// IsValid reports whether s is a known order status.
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusProcessing,
		OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// Customer is the buyer snapshot stored with an order.
type Customer struct {
	Name    string `db:"name" json:"name"`
	Email   string `db:"email" json:"email"`
	Phone   string `db:"phone" json:"phone"`
	TaxID   string `db:"tax_id" json:"taxId"`
	Address string `db:"address" json:"address"`
}

// Order represents a storefront order.
type Order struct {
	ID          int64           `db:"id" json:"id"`
	OrderNumber string          `db:"order_number" json:"orderNumber"`
	Status      OrderStatus     `db:"status" json:"status"`
	TotalAmount decimal.Decimal `db:"total_amount" json:"totalAmount"`
	Currency    string          `db:"currency" json:"currency"`
	Notes       *string         `db:"notes" json:"notes"`
	Customer    Customer        `db:"customer" json:"customer"`
	Items       []OrderItem     `db:"-" json:"items"`
	CreatedAt   time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updatedAt"`
}

// OrderItem is one line of an order, with product data captured at checkout.
type OrderItem struct {
	ID           int64           `db:"id" json:"-"`
	OrderID      int64           `db:"order_id" json:"-"`
	ProductID    *int64          `db:"product_id" json:"productId"`
	Name         string          `db:"name" json:"name"`
	SKU          string          `db:"sku" json:"sku"`
	Artikul      string          `db:"artikul" json:"artikul"`
	CategoryName string          `db:"category_name" json:"categoryName"`
	Quantity     int             `db:"quantity" json:"quantity"`
	UnitPrice    decimal.Decimal `db:"unit_price" json:"unitPrice"`
	LineTotal    decimal.Decimal `db:"line_total" json:"lineTotal"`
}
