package service

import (
	"context"
	"errors"
	"net"

	"github.com/sparesmarket/spares_api/internal/models"
	"github.com/sparesmarket/spares_api/internal/utils"
)

// ClientStore is the persistence of ERP exchange clients.
type ClientStore interface {
	GetByAPIKey(ctx context.Context, apiKey string) (*models.ExchangeClient, error)
	GetByID(ctx context.Context, id int64) (*models.ExchangeClient, error)
	GetByClientID(ctx context.Context, clientID string) (*models.ExchangeClient, error)
	List(ctx context.Context) ([]models.ExchangeClient, error)
	Create(ctx context.Context, c *models.ExchangeClient) error
	UpdateStatus(ctx context.Context, id int64, active bool) error
	UpdateAPIKey(ctx context.Context, id int64, apiKey string) error
}

// AuthService authenticates ERP clients calling the exchange endpoint.
type AuthService struct {
	clients ClientStore
}

// NewAuthService constructs a new AuthService.
func NewAuthService(clients ClientStore) *AuthService {
	return &AuthService{clients: clients}
}

// ValidateAPIKey returns the client owning the key.
func (s *AuthService) ValidateAPIKey(ctx context.Context, token string) (*models.ExchangeClient, error) {
	if token == "" {
		return nil, utils.ErrInvalidToken
	}
	c, err := s.clients.GetByAPIKey(ctx, token)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.ErrInvalidToken
		}
		return nil, err
	}
	return c, nil
}

// ValidateClientID checks if the provided clientID matches the client's registered ID.
func (s *AuthService) ValidateClientID(client *models.ExchangeClient, clientID string) bool {
	if client == nil {
		return false
	}
	return client.ClientID == clientID
}

// IsIPAllowed reports whether ip may act for client. Entries are single
// addresses or CIDR ranges; an empty whitelist admits any address.
func (s *AuthService) IsIPAllowed(client *models.ExchangeClient, ip string) bool {
	if client == nil {
		return false
	}
	if len(client.IPWhitelist) == 0 {
		return true
	}
	addr := net.ParseIP(ip)
	for _, allowed := range client.IPWhitelist {
		if allowed == ip {
			return true
		}
		if _, network, err := net.ParseCIDR(allowed); err == nil && addr != nil && network.Contains(addr) {
			return true
		}
	}
	return false
}
