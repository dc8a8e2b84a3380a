package models

import "time"

// ExchangeClient represents an ERP integration allowed to call the exchange
// endpoint. The API key is only returned on creation and regeneration.
type ExchangeClient struct {
	ID          int64     `db:"id" json:"id"`
	ClientID    string    `db:"client_id" json:"clientId"`
	Name        string    `db:"name" json:"name"`
	APIKey      string    `db:"api_key" json:"apiKey,omitempty"`
	IPWhitelist []string  `db:"ip_whitelist" json:"ipWhitelist"`
	IsActive    bool      `db:"is_active" json:"isActive"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}
