package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/sparesmarket/spares_api/internal/models"
	"github.com/sparesmarket/spares_api/internal/utils"
)

// ClientService manages ERP exchange clients.
type ClientService struct {
	clients ClientStore
}

// NewClientService constructs a ClientService.
func NewClientService(clients ClientStore) *ClientService {
	return &ClientService{clients: clients}
}

// CreateClientRequest represents the request to create a new client.
type CreateClientRequest struct {
	Name        string   `json:"name" binding:"required,max=255"`
	IPWhitelist []string `json:"ipWhitelist"`
	IsActive    *bool    `json:"isActive"`
}

// CreateClient registers an ERP client with a generated client id and key.
func (s *ClientService) CreateClient(ctx context.Context, req *CreateClientRequest) (*models.ExchangeClient, error) {
	clientID, err := utils.GenerateClientID()
	if err != nil {
		return nil, err
	}
	apiKey, err := utils.GenerateExchangeKey()
	if err != nil {
		return nil, err
	}

	// default active true if not provided
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	whitelist := req.IPWhitelist
	if whitelist == nil {
		whitelist = []string{}
	}

	client := &models.ExchangeClient{
		ClientID:    clientID,
		Name:        req.Name,
		APIKey:      apiKey,
		IPWhitelist: whitelist,
		IsActive:    active,
	}
	if err := s.clients.Create(ctx, client); err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	return client, nil
}

// ListClients retrieves all clients without their keys.
func (s *ClientService) ListClients(ctx context.Context) ([]models.ExchangeClient, error) {
	clients, err := s.clients.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range clients {
		clients[i].APIKey = ""
	}
	return clients, nil
}

// SetActive enables or disables a client.
func (s *ClientService) SetActive(ctx context.Context, id int64, active bool) (*models.ExchangeClient, error) {
	if err := s.clients.UpdateStatus(ctx, id, active); err != nil {
		return nil, err
	}
	client, err := s.clients.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	client.APIKey = ""
	return client, nil
}

// RegenerateKey replaces a client's API key and returns the client with the new key.
func (s *ClientService) RegenerateKey(ctx context.Context, id int64) (*models.ExchangeClient, error) {
	client, err := s.clients.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	newKey, err := utils.GenerateExchangeKey()
	if err != nil {
		return nil, err
	}
	if err := s.clients.UpdateAPIKey(ctx, id, newKey); err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("regenerate key: %w", err)
	}
	client.APIKey = newKey
	return client, nil
}
