package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sparesmarket/spares_api/internal/models"
	"github.com/sparesmarket/spares_api/internal/utils"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })
	return sqlx.NewDb(mockDB, "sqlmock"), mock
}

var jobRowColumns = []string{
	"id", "kind", "data_type", "format", "status", "payload_ref", "file_name", "record_count",
	"error_message", "worker_id", "created_at", "updated_at", "started_at", "finished_at",
}

func TestProductRepository_ListActive(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewProductRepository(db)
	now := time.Now()

	rows := sqlmock.NewRows([]string{
		"id", "name", "description", "price", "sale_price", "sku", "artikul", "catalog_number",
		"stock", "is_active", "is_featured", "category_id", "category_name", "created_at", "updated_at",
	}).
		AddRow(1, "Brake pad", nil, "1200.00", "990.00", "BP-1", "A-100", "CN-1", 4, true, false, 3, "Brakes", now, now).
		AddRow(2, "Oil filter", "OEM", "350.50", nil, "OF-2", "A-200", "", 0, true, true, nil, nil, now, now)

	mock.ExpectPrepare(`SELECT .* FROM products p\s+LEFT JOIN categories c .* WHERE p.is_active = TRUE\s+ORDER BY p.id`).
		ExpectQuery().
		WillReturnRows(rows)

	products, err := repo.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 2)

	assert.True(t, products[0].Price.Equal(decimal.RequireFromString("1200")))
	assert.True(t, products[0].SalePrice.Valid)
	assert.Equal(t, "Brakes", *products[0].CategoryName)
	assert.False(t, products[1].SalePrice.Valid)
	assert.Nil(t, products[1].CategoryID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_FindIDByArtikul(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery(`SELECT id FROM products WHERE artikul = \$1`).
			WithArgs("A-100").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))

		id, err := NewProductRepository(db).FindIDByArtikul(context.Background(), "A-100")
		require.NoError(t, err)
		assert.Equal(t, int64(7), id)
	})

	t.Run("missing maps to not found", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery(`SELECT id FROM products WHERE sku = \$1`).
			WithArgs("nope").
			WillReturnError(sql.ErrNoRows)

		_, err := NewProductRepository(db).FindIDBySKU(context.Background(), "nope")
		assert.ErrorIs(t, err, utils.ErrNotFound)
	})
}

func TestProductRepository_Create(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now()

	p := &models.Product{Name: "Spark plug", Price: decimal.NewFromInt(250), Artikul: "SP-1", IsActive: true}
	mock.ExpectQuery(`INSERT INTO products .* RETURNING id, created_at, updated_at`).
		WithArgs("Spark plug", nil, sqlmock.AnyArg(), nil, "", "SP-1", "", 0, true, false, nil).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(11, now, now))

	require.NoError(t, NewProductRepository(db).Create(context.Background(), p))
	assert.Equal(t, int64(11), p.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_Update(t *testing.T) {
	t.Run("reports missing row", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectExec(`UPDATE products SET\s+name = COALESCE\(\$2, name\)`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		name := "Renamed"
		ok, err := NewProductRepository(db).Update(context.Background(), 99, &models.ProductUpdate{Name: &name})
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("propagates constraint errors", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectExec(`UPDATE products SET`).WillReturnError(errors.New("chk_products_sale_price"))

		_, err := NewProductRepository(db).Update(context.Background(), 1, &models.ProductUpdate{})
		assert.ErrorContains(t, err, "chk_products_sale_price")
	})
}

func TestProductRepository_UpdateOffer(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec(`UPDATE products\s+SET price = \$2, sale_price = \$3, stock = \$4`).
		WithArgs("A-100", sqlmock.AnyArg(), nil, 5).
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := NewProductRepository(db).UpdateOffer(context.Background(), "A-100", &models.OfferUpdate{
		Price: decimal.NewFromInt(900),
		Stock: 5,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestCategoryRepository_Ensure(t *testing.T) {
	cols := []string{"id", "name", "description", "is_active", "created_at", "updated_at"}
	now := time.Now()

	t.Run("existing", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery(`FROM categories WHERE lower\(name\) = lower\(\$1\)`).
			WithArgs("Brakes").
			WillReturnRows(sqlmock.NewRows(cols).AddRow(3, "Brakes", nil, true, now, now))

		c, created, err := NewCategoryRepository(db).Ensure(context.Background(), "Brakes")
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, int64(3), c.ID)
	})

	t.Run("inserts when absent", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery(`FROM categories WHERE lower\(name\)`).WillReturnError(sql.ErrNoRows)
		mock.ExpectQuery(`INSERT INTO categories .* ON CONFLICT`).
			WithArgs("Filters").
			WillReturnRows(sqlmock.NewRows(cols).AddRow(4, "Filters", nil, true, now, now))

		c, created, err := NewCategoryRepository(db).Ensure(context.Background(), "Filters")
		require.NoError(t, err)
		assert.True(t, created)
		assert.Equal(t, "Filters", c.Name)
	})

	t.Run("re-reads after losing the insert race", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery(`FROM categories WHERE lower\(name\)`).WillReturnError(sql.ErrNoRows)
		mock.ExpectQuery(`INSERT INTO categories`).WillReturnError(sql.ErrNoRows)
		mock.ExpectQuery(`FROM categories WHERE lower\(name\)`).
			WillReturnRows(sqlmock.NewRows(cols).AddRow(5, "Filters", nil, true, now, now))

		c, created, err := NewCategoryRepository(db).Ensure(context.Background(), "filters")
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, int64(5), c.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestOrderRepository(t *testing.T) {
	now := time.Now()

	t.Run("list by status maps customer columns", func(t *testing.T) {
		db, mock := newMockDB(t)
		rows := sqlmock.NewRows([]string{
			"id", "order_number", "status", "total_amount", "currency", "notes",
			"customer.name", "customer.email", "customer.phone", "customer.tax_id", "customer.address",
			"created_at", "updated_at",
		}).AddRow(1, "SO-1", "pending", "1500.00", "RUB", nil,
			"Ivan", "ivan@example.com", "+7000", "7701", "Moscow", now, now)

		mock.ExpectQuery(`FROM orders o\s+WHERE o.status = ANY\(\$1\)`).WillReturnRows(rows)

		orders, err := NewOrderRepository(db).ListByStatus(context.Background(), models.OpenOrderStatuses)
		require.NoError(t, err)
		require.Len(t, orders, 1)
		assert.Equal(t, "Ivan", orders[0].Customer.Name)
		assert.Equal(t, models.OrderStatusPending, orders[0].Status)
	})

	t.Run("list items skips empty id set", func(t *testing.T) {
		db, mock := newMockDB(t)
		items, err := NewOrderRepository(db).ListItems(context.Background(), nil)
		require.NoError(t, err)
		assert.Empty(t, items)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("update status by number", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectExec(`UPDATE orders\s+SET status = \$2`).
			WithArgs("SO-1", "shipped", nil).
			WillReturnResult(sqlmock.NewResult(0, 1))

		ok, err := NewOrderRepository(db).UpdateStatusByNumber(context.Background(), "SO-1", models.OrderStatusShipped, nil)
		require.NoError(t, err)
		assert.True(t, ok)
	})
}

func TestExportJobRepository_Claim(t *testing.T) {
	now := time.Now()

	t.Run("claims a pending job", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery(`UPDATE export_jobs\s+SET status = 'processing'.*WHERE id = \$1 AND status = 'pending'`).
			WithArgs("job-1", "w-1").
			WillReturnRows(sqlmock.NewRows(jobRowColumns).AddRow(
				"job-1", "export", "catalog", "json", "processing", nil, nil, 0, nil, "w-1", now, now, now, nil))

		job, err := NewExportJobRepository(db).Claim(context.Background(), "job-1", "w-1")
		require.NoError(t, err)
		assert.Equal(t, models.JobStatusProcessing, job.Status)
		assert.Equal(t, "w-1", *job.WorkerID)
	})

	t.Run("second claim loses", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery(`UPDATE export_jobs`).WillReturnError(sql.ErrNoRows)

		_, err := NewExportJobRepository(db).Claim(context.Background(), "job-1", "w-2")
		assert.ErrorIs(t, err, utils.ErrJobNotClaimable)
	})

	t.Run("claim next with nothing pending", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery(`FOR UPDATE SKIP LOCKED`).WillReturnError(sql.ErrNoRows)

		_, err := NewExportJobRepository(db).ClaimNext(context.Background(), "w-1")
		assert.ErrorIs(t, err, utils.ErrNotFound)
	})
}

func TestExportJobRepository_Transitions(t *testing.T) {
	now := time.Now()

	t.Run("complete", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery(`SET status = 'completed'.*WHERE id = \$1 AND status = 'processing'`).
			WithArgs("job-1", "exchange/exports/job-1/catalog.json", "catalog.json", 3).
			WillReturnRows(sqlmock.NewRows(jobRowColumns).AddRow(
				"job-1", "export", "catalog", "json", "completed", "exchange/exports/job-1/catalog.json",
				"catalog.json", 3, nil, "w-1", now, now, now, now))

		job, err := NewExportJobRepository(db).Complete(context.Background(),
			"job-1", "exchange/exports/job-1/catalog.json", "catalog.json", 3)
		require.NoError(t, err)
		assert.Equal(t, 3, job.RecordCount)
		assert.NotNil(t, job.FinishedAt)
	})

	t.Run("fail on terminal job conflicts", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery(`SET status = 'failed'`).WillReturnError(sql.ErrNoRows)

		_, err := NewExportJobRepository(db).Fail(context.Background(), "job-1", "boom")
		assert.ErrorIs(t, err, utils.ErrJobStateConflict)
	})

	t.Run("fail stale returns swept jobs", func(t *testing.T) {
		db, mock := newMockDB(t)
		cutoff := now.Add(-15 * time.Minute)
		mock.ExpectQuery(`WHERE status = 'processing' AND started_at < \$1`).
			WithArgs(cutoff, "timed out").
			WillReturnRows(sqlmock.NewRows(jobRowColumns).AddRow(
				"job-2", "export", "orders", "xml", "failed", nil, nil, 0, "timed out", "w-3", now, now, cutoff, now))

		jobs, err := NewExportJobRepository(db).FailStale(context.Background(), cutoff, "timed out")
		require.NoError(t, err)
		require.Len(t, jobs, 1)
		assert.Equal(t, models.JobStatusFailed, jobs[0].Status)
	})
}

func TestClientRepository(t *testing.T) {
	now := time.Now()
	cols := []string{"id", "client_id", "name", "api_key", "ip_whitelist", "is_active", "created_at", "updated_at"}

	t.Run("get by api key reads whitelist array", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectPrepare(`FROM exchange_clients WHERE api_key = \$1`).
			ExpectQuery().
			WithArgs("sx_live_abc").
			WillReturnRows(sqlmock.NewRows(cols).AddRow(
				1, "erp_01", "1C", "sx_live_abc", []byte("{10.0.0.1,192.168.0.0/24}"), true, now, now))

		c, err := NewClientRepository(db).GetByAPIKey(context.Background(), "sx_live_abc")
		require.NoError(t, err)
		assert.Equal(t, []string{"10.0.0.1", "192.168.0.0/24"}, c.IPWhitelist)
	})

	t.Run("unknown client", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectPrepare(`FROM exchange_clients WHERE client_id = \$1`).
			ExpectQuery().
			WillReturnError(sql.ErrNoRows)

		_, err := NewClientRepository(db).GetByClientID(context.Background(), "erp_missing")
		assert.ErrorIs(t, err, utils.ErrNotFound)
	})

	t.Run("update status of missing client", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectExec(`UPDATE exchange_clients SET is_active`).
			WithArgs(int64(9), false).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := NewClientRepository(db).UpdateStatus(context.Background(), 9, false)
		assert.ErrorIs(t, err, utils.ErrNotFound)
	})

	t.Run("duplicate client id", func(t *testing.T) {
		db, mock := newMockDB(t)
		mock.ExpectQuery(`INSERT INTO exchange_clients`).
			WillReturnError(&pq.Error{Code: "23505", Constraint: "exchange_clients_client_id_key"})

		err := NewClientRepository(db).Create(context.Background(), &models.ExchangeClient{ClientID: "erp_01", Name: "1C"})
		assert.ErrorIs(t, err, utils.ErrDuplicate)
		assert.ErrorContains(t, err, "exchange_clients_client_id_key")
	})
}

func TestAdminUserRepository_GetByEmail(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(`FROM admin_users\s+WHERE lower\(email\) = lower\(\$1\)`).
		WithArgs("ops@example.com").
		WillReturnError(sql.ErrNoRows)

	_, err := NewAdminUserRepository(db).GetByEmail(context.Background(), "ops@example.com")
	assert.ErrorIs(t, err, utils.ErrNotFound)
}
