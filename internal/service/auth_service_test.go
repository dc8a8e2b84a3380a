package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sparesmarket/spares_api/internal/models"
	"github.com/sparesmarket/spares_api/internal/utils"
)

type mockClientStore struct {
	mock.Mock
}

func (m *mockClientStore) GetByAPIKey(ctx context.Context, apiKey string) (*models.ExchangeClient, error) {
	args := m.Called(ctx, apiKey)
	c, _ := args.Get(0).(*models.ExchangeClient)
	return c, args.Error(1)
}

func (m *mockClientStore) GetByID(ctx context.Context, id int64) (*models.ExchangeClient, error) {
	args := m.Called(ctx, id)
	c, _ := args.Get(0).(*models.ExchangeClient)
	return c, args.Error(1)
}

func (m *mockClientStore) GetByClientID(ctx context.Context, clientID string) (*models.ExchangeClient, error) {
	args := m.Called(ctx, clientID)
	c, _ := args.Get(0).(*models.ExchangeClient)
	return c, args.Error(1)
}

func (m *mockClientStore) List(ctx context.Context) ([]models.ExchangeClient, error) {
	args := m.Called(ctx)
	c, _ := args.Get(0).([]models.ExchangeClient)
	return c, args.Error(1)
}

func (m *mockClientStore) Create(ctx context.Context, c *models.ExchangeClient) error {
	return m.Called(ctx, c).Error(0)
}

func (m *mockClientStore) UpdateStatus(ctx context.Context, id int64, active bool) error {
	return m.Called(ctx, id, active).Error(0)
}

func (m *mockClientStore) UpdateAPIKey(ctx context.Context, id int64, apiKey string) error {
	return m.Called(ctx, id, apiKey).Error(0)
}

func TestValidateAPIKey(t *testing.T) {
	ctx := context.Background()
	store := &mockClientStore{}
	client := &models.ExchangeClient{ID: 1, ClientID: "erp_1", IsActive: true}
	store.On("GetByAPIKey", ctx, "good").Return(client, nil)
	store.On("GetByAPIKey", ctx, "bad").Return(nil, utils.ErrNotFound)
	svc := NewAuthService(store)

	got, err := svc.ValidateAPIKey(ctx, "good")
	require.NoError(t, err)
	assert.Equal(t, client, got)

	_, err = svc.ValidateAPIKey(ctx, "bad")
	assert.ErrorIs(t, err, utils.ErrInvalidToken)

	_, err = svc.ValidateAPIKey(ctx, "")
	assert.ErrorIs(t, err, utils.ErrInvalidToken)
	store.AssertExpectations(t)
}

func TestIsIPAllowed(t *testing.T) {
	svc := NewAuthService(&mockClientStore{})

	open := &models.ExchangeClient{}
	assert.True(t, svc.IsIPAllowed(open, "203.0.113.9"))

	restricted := &models.ExchangeClient{IPWhitelist: []string{"198.51.100.7", "10.0.0.0/8"}}
	assert.True(t, svc.IsIPAllowed(restricted, "198.51.100.7"))
	assert.True(t, svc.IsIPAllowed(restricted, "10.20.30.40"))
	assert.False(t, svc.IsIPAllowed(restricted, "203.0.113.9"))
	assert.False(t, svc.IsIPAllowed(nil, "10.0.0.1"))
}

func TestRegenerateKey(t *testing.T) {
	ctx := context.Background()
	store := &mockClientStore{}
	store.On("GetByID", ctx, int64(3)).Return(&models.ExchangeClient{ID: 3, APIKey: "old"}, nil)
	store.On("UpdateAPIKey", ctx, int64(3), mock.AnythingOfType("string")).Return(nil)
	svc := NewClientService(store)

	client, err := svc.RegenerateKey(ctx, 3)
	require.NoError(t, err)

	assert.NotEqual(t, "old", client.APIKey)
	assert.Contains(t, client.APIKey, "sx_live_")
	store.AssertExpectations(t)
}
