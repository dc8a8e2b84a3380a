package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sparesmarket/spares_api/internal/models"
	"github.com/sparesmarket/spares_api/internal/utils"
)

// AccessDB holds exchange clients and admin users. It is separate from DB
// because the exchange services never touch these tables.
type AccessDB struct {
	mu      sync.Mutex
	nextID  int64
	clients map[int64]models.ExchangeClient
	admins  map[int64]models.AdminUser
}

// NewAccess returns empty client and admin tables.
func NewAccess() *AccessDB {
	return &AccessDB{
		clients: make(map[int64]models.ExchangeClient),
		admins:  make(map[int64]models.AdminUser),
	}
}

// Clients returns the exchange client store view.
func (db *AccessDB) Clients() *ClientStore { return &ClientStore{db: db} }

// Admins returns the admin user store view.
func (db *AccessDB) Admins() *AdminStore { return &AdminStore{db: db} }

// ClientStore implements service.ClientStore.
type ClientStore struct{ db *AccessDB }

func (s *ClientStore) find(match func(models.ExchangeClient) bool) (*models.ExchangeClient, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, c := range s.db.clients {
		if match(c) {
			c.IPWhitelist = append([]string(nil), c.IPWhitelist...)
			return &c, nil
		}
	}
	return nil, utils.ErrNotFound
}

func (s *ClientStore) GetByAPIKey(ctx context.Context, apiKey string) (*models.ExchangeClient, error) {
	return s.find(func(c models.ExchangeClient) bool { return c.APIKey == apiKey })
}

func (s *ClientStore) GetByID(ctx context.Context, id int64) (*models.ExchangeClient, error) {
	return s.find(func(c models.ExchangeClient) bool { return c.ID == id })
}

func (s *ClientStore) GetByClientID(ctx context.Context, clientID string) (*models.ExchangeClient, error) {
	return s.find(func(c models.ExchangeClient) bool { return c.ClientID == clientID })
}

func (s *ClientStore) List(ctx context.Context) ([]models.ExchangeClient, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	out := make([]models.ExchangeClient, 0, len(s.db.clients))
	for _, c := range s.db.clients {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *ClientStore) Create(ctx context.Context, c *models.ExchangeClient) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, existing := range s.db.clients {
		if existing.ClientID == c.ClientID || existing.APIKey == c.APIKey {
			return fmt.Errorf("%w: duplicate client", utils.ErrDuplicate)
		}
	}
	s.db.nextID++
	c.ID = s.db.nextID
	s.db.clients[c.ID] = *c
	return nil
}

func (s *ClientStore) UpdateStatus(ctx context.Context, id int64, active bool) error {
	return s.update(id, func(c *models.ExchangeClient) { c.IsActive = active })
}

func (s *ClientStore) UpdateAPIKey(ctx context.Context, id int64, apiKey string) error {
	return s.update(id, func(c *models.ExchangeClient) { c.APIKey = apiKey })
}

func (s *ClientStore) update(id int64, fn func(*models.ExchangeClient)) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	c, ok := s.db.clients[id]
	if !ok {
		return utils.ErrNotFound
	}
	fn(&c)
	s.db.clients[id] = c
	return nil
}

// AdminStore implements service.AdminUserStore.
type AdminStore struct{ db *AccessDB }

func (s *AdminStore) GetByEmail(ctx context.Context, email string) (*models.AdminUser, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, u := range s.db.admins {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, utils.ErrNotFound
}

// Create ignores an email that already exists, like the Postgres upsert.
func (s *AdminStore) Create(ctx context.Context, user *models.AdminUser) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, u := range s.db.admins {
		if strings.EqualFold(u.Email, user.Email) {
			return nil
		}
	}
	s.db.nextID++
	user.ID = s.db.nextID
	s.db.admins[user.ID] = *user
	return nil
}

func (s *AdminStore) TouchLastLogin(ctx context.Context, id int64) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	u, ok := s.db.admins[id]
	if !ok {
		return utils.ErrNotFound
	}
	now := time.Now()
	u.LastLoginAt = &now
	s.db.admins[id] = u
	return nil
}
