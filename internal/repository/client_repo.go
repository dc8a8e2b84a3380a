package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sparesmarket/spares_api/internal/models"
	"github.com/sparesmarket/spares_api/internal/utils"
)

const clientColumns = `id, client_id, name, api_key, ip_whitelist, is_active, created_at, updated_at`

// ClientRepository provides data access methods for exchange_clients table.
type ClientRepository struct {
	db *sqlx.DB
}

// NewClientRepository creates a new ClientRepository.
func NewClientRepository(db *sqlx.DB) *ClientRepository {
	return &ClientRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanClient scans a client row; ip_whitelist is read via pq.Array.
func scanClient(row rowScanner) (*models.ExchangeClient, error) {
	var c models.ExchangeClient
	if err := row.Scan(
		&c.ID,
		&c.ClientID,
		&c.Name,
		&c.APIKey,
		pq.Array(&c.IPWhitelist),
		&c.IsActive,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &c, nil
}

// getBy is a small helper to fetch a single client by a specific column
// using a prepared statement.
func (r *ClientRepository) getBy(ctx context.Context, where string, arg any) (*models.ExchangeClient, error) {
	stmt, err := r.db.PreparexContext(ctx, `SELECT `+clientColumns+` FROM exchange_clients WHERE `+where+` LIMIT 1`)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	c, err := scanClient(stmt.QueryRowxContext(ctx, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, utils.ErrNotFound
		}
		return nil, err
	}
	return c, nil
}

// GetByAPIKey finds a client by API key.
func (r *ClientRepository) GetByAPIKey(ctx context.Context, apiKey string) (*models.ExchangeClient, error) {
	return r.getBy(ctx, "api_key = $1", apiKey)
}

// GetByClientID finds a client by public client identifier.
func (r *ClientRepository) GetByClientID(ctx context.Context, clientID string) (*models.ExchangeClient, error) {
	return r.getBy(ctx, "client_id = $1", clientID)
}

// GetByID finds a client by numeric id.
func (r *ClientRepository) GetByID(ctx context.Context, id int64) (*models.ExchangeClient, error) {
	return r.getBy(ctx, "id = $1", id)
}

// Create creates a new client.
func (r *ClientRepository) Create(ctx context.Context, client *models.ExchangeClient) error {
	const q = `INSERT INTO exchange_clients (client_id, name, api_key, ip_whitelist, is_active)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id, created_at, updated_at`

	err := r.db.QueryRowxContext(ctx, q,
		client.ClientID,
		client.Name,
		client.APIKey,
		pq.Array(client.IPWhitelist),
		client.IsActive,
	).Scan(&client.ID, &client.CreatedAt, &client.UpdatedAt)
	return mapUniqueViolation(err)
}

// mapUniqueViolation turns a unique_violation into utils.ErrDuplicate.
func mapUniqueViolation(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return fmt.Errorf("%w: %s", utils.ErrDuplicate, pqErr.Constraint)
	}
	return err
}

// List retrieves all clients, newest first.
func (r *ClientRepository) List(ctx context.Context) ([]models.ExchangeClient, error) {
	rows, err := r.db.QueryxContext(ctx, `SELECT `+clientColumns+` FROM exchange_clients ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	clients := []models.ExchangeClient{}
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		clients = append(clients, *c)
	}
	return clients, rows.Err()
}

// UpdateStatus enables or disables a client.
func (r *ClientRepository) UpdateStatus(ctx context.Context, id int64, active bool) error {
	return r.execOne(ctx, `UPDATE exchange_clients SET is_active = $2, updated_at = NOW() WHERE id = $1`, id, active)
}

// UpdateAPIKey replaces the client's API key.
func (r *ClientRepository) UpdateAPIKey(ctx context.Context, id int64, apiKey string) error {
	return r.execOne(ctx, `UPDATE exchange_clients SET api_key = $2, updated_at = NOW() WHERE id = $1`, id, apiKey)
}

func (r *ClientRepository) execOne(ctx context.Context, q string, args ...any) error {
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return utils.ErrNotFound
	}
	return nil
}
