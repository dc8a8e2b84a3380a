// Package memory is an in-process implementation of the exchange stores.
// It mirrors the Postgres constraints that matter to the services and is
// used by service, worker and handler tests.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sparesmarket/spares_api/internal/models"
	"github.com/sparesmarket/spares_api/internal/utils"
)

// ErrConstraint mirrors a violated table CHECK constraint.
var ErrConstraint = errors.New("constraint violation")

// DB holds all tables behind one mutex.
type DB struct {
	mu         sync.Mutex
	nextID     int64
	products   map[int64]models.Product
	categories map[int64]models.Category
	orders     map[int64]models.Order
	items      []models.OrderItem
	jobs       map[string]models.ExportJob
	faults     map[string]error
	now        func() time.Time
}

// New returns an empty database.
func New() *DB {
	return &DB{
		products:   make(map[int64]models.Product),
		categories: make(map[int64]models.Category),
		orders:     make(map[int64]models.Order),
		jobs:       make(map[string]models.ExportJob),
		faults:     make(map[string]error),
		now:        time.Now,
	}
}

// SetClock replaces the time source used for timestamps.
func (db *DB) SetClock(now func() time.Time) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.now = now
}

// FailOn makes every call of op return err until cleared with a nil err.
// Ops are named "<table>.<method>", e.g. "products.ListActive".
func (db *DB) FailOn(op string, err error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if err == nil {
		delete(db.faults, op)
		return
	}
	db.faults[op] = err
}

func (db *DB) fault(op string) error {
	return db.faults[op]
}

func (db *DB) id() int64 {
	db.nextID++
	return db.nextID
}

// Products returns the product store view.
func (db *DB) Products() *ProductStore { return &ProductStore{db: db} }

// Categories returns the category store view.
func (db *DB) Categories() *CategoryStore { return &CategoryStore{db: db} }

// Orders returns the order store view.
func (db *DB) Orders() *OrderStore { return &OrderStore{db: db} }

// Jobs returns the export job store view.
func (db *DB) Jobs() *JobStore { return &JobStore{db: db} }

// SeedCategory inserts a category and returns it with its id.
func (db *DB) SeedCategory(c models.Category) models.Category {
	db.mu.Lock()
	defer db.mu.Unlock()
	c.ID = db.id()
	c.CreatedAt, c.UpdatedAt = db.now(), db.now()
	db.categories[c.ID] = c
	return c
}

// SeedProduct inserts a product as-is, bypassing validation.
func (db *DB) SeedProduct(p models.Product) models.Product {
	db.mu.Lock()
	defer db.mu.Unlock()
	p.ID = db.id()
	p.CreatedAt, p.UpdatedAt = db.now(), db.now()
	db.products[p.ID] = p
	return db.withCategory(p)
}

// SeedOrder inserts an order and its items.
func (db *DB) SeedOrder(o models.Order, items ...models.OrderItem) models.Order {
	db.mu.Lock()
	defer db.mu.Unlock()
	o.ID = db.id()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = db.now()
	}
	o.UpdatedAt = o.CreatedAt
	o.Items = nil
	db.orders[o.ID] = o
	for _, it := range items {
		it.ID = db.id()
		it.OrderID = o.ID
		db.items = append(db.items, it)
	}
	return o
}

// Product returns a product by id.
func (db *DB) Product(id int64) (models.Product, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	p, ok := db.products[id]
	return db.withCategory(p), ok
}

// AllProducts returns every product ordered by id.
func (db *DB) AllProducts() []models.Product {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.sortedProducts(func(models.Product) bool { return true })
}

// AllCategories returns every category ordered by id.
func (db *DB) AllCategories() []models.Category {
	db.mu.Lock()
	defer db.mu.Unlock()
	out := make([]models.Category, 0, len(db.categories))
	for _, c := range db.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Order returns an order by number.
func (db *DB) Order(number string) (models.Order, bool) {
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, o := range db.orders {
		if o.OrderNumber == number {
			return o, true
		}
	}
	return models.Order{}, false
}

func (db *DB) withCategory(p models.Product) models.Product {
	p.CategoryName = nil
	if p.CategoryID != nil {
		if c, ok := db.categories[*p.CategoryID]; ok {
			name := c.Name
			p.CategoryName = &name
		}
	}
	return p
}

func (db *DB) sortedProducts(keep func(models.Product) bool) []models.Product {
	out := make([]models.Product, 0, len(db.products))
	for _, p := range db.products {
		if keep(p) {
			out = append(out, db.withCategory(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func checkProduct(p models.Product) error {
	switch {
	case p.Price.IsNegative():
		return fmt.Errorf("%w: products_price_check", ErrConstraint)
	case p.SalePrice.Valid && (p.SalePrice.Decimal.IsNegative() || p.SalePrice.Decimal.GreaterThan(p.Price)):
		return fmt.Errorf("%w: products_sale_price_check", ErrConstraint)
	case p.Stock < 0:
		return fmt.Errorf("%w: products_stock_check", ErrConstraint)
	}
	return nil
}

// ProductStore implements service.ProductStore.
type ProductStore struct{ db *DB }

func (s *ProductStore) ListActive(ctx context.Context) ([]models.Product, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.fault("products.ListActive"); err != nil {
		return nil, err
	}
	return s.db.sortedProducts(func(p models.Product) bool { return p.IsActive }), nil
}

func (s *ProductStore) ListInStock(ctx context.Context) ([]models.Product, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.fault("products.ListInStock"); err != nil {
		return nil, err
	}
	return s.db.sortedProducts(func(p models.Product) bool { return p.IsActive && p.Stock > 0 }), nil
}

func (s *ProductStore) FindIDByArtikul(ctx context.Context, artikul string) (int64, error) {
	return s.findID(func(p models.Product) bool { return p.Artikul == artikul })
}

func (s *ProductStore) FindIDBySKU(ctx context.Context, sku string) (int64, error) {
	return s.findID(func(p models.Product) bool { return p.SKU == sku })
}

func (s *ProductStore) findID(match func(models.Product) bool) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, p := range s.db.sortedProducts(match) {
		return p.ID, nil
	}
	return 0, utils.ErrNotFound
}

func (s *ProductStore) Create(ctx context.Context, p *models.Product) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.fault("products.Create"); err != nil {
		return err
	}
	if err := checkProduct(*p); err != nil {
		return err
	}
	p.ID = s.db.id()
	p.CreatedAt, p.UpdatedAt = s.db.now(), s.db.now()
	s.db.products[p.ID] = *p
	*p = s.db.withCategory(*p)
	return nil
}

func (s *ProductStore) Update(ctx context.Context, id int64, upd *models.ProductUpdate) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.fault("products.Update"); err != nil {
		return false, err
	}
	p, ok := s.db.products[id]
	if !ok {
		return false, nil
	}
	if upd.Name != nil {
		p.Name = *upd.Name
	}
	if upd.Description != nil {
		p.Description = upd.Description
	}
	if upd.Price.Valid {
		p.Price = upd.Price.Decimal
	}
	if upd.SalePrice.Valid {
		p.SalePrice = upd.SalePrice
	}
	if upd.SKU != nil {
		p.SKU = *upd.SKU
	}
	if upd.Artikul != nil {
		p.Artikul = *upd.Artikul
	}
	if upd.CatalogNumber != nil {
		p.CatalogNumber = *upd.CatalogNumber
	}
	if upd.Stock != nil {
		p.Stock = *upd.Stock
	}
	if upd.IsActive != nil {
		p.IsActive = *upd.IsActive
	}
	if upd.CategoryID != nil {
		p.CategoryID = upd.CategoryID
	}
	if err := checkProduct(p); err != nil {
		return false, err
	}
	p.UpdatedAt = s.db.now()
	s.db.products[id] = p
	return true, nil
}

func (s *ProductStore) UpdateOffer(ctx context.Context, artikul string, upd *models.OfferUpdate) (int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.fault("products.UpdateOffer"); err != nil {
		return 0, err
	}
	var matched []models.Product
	for _, p := range s.db.products {
		if p.Artikul != artikul {
			continue
		}
		p.Price = upd.Price
		p.SalePrice = upd.SalePrice
		p.Stock = upd.Stock
		if err := checkProduct(p); err != nil {
			return 0, err
		}
		matched = append(matched, p)
	}
	for _, p := range matched {
		p.UpdatedAt = s.db.now()
		s.db.products[p.ID] = p
	}
	return int64(len(matched)), nil
}

// CategoryStore implements service.CategoryStore.
type CategoryStore struct{ db *DB }

func (s *CategoryStore) ListActive(ctx context.Context) ([]models.Category, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.fault("categories.ListActive"); err != nil {
		return nil, err
	}
	var out []models.Category
	for _, c := range s.db.categories {
		if c.IsActive {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *CategoryStore) Ensure(ctx context.Context, name string) (*models.Category, bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.fault("categories.Ensure"); err != nil {
		return nil, false, err
	}
	for _, c := range s.db.categories {
		if c.IsActive && strings.EqualFold(c.Name, name) {
			return &c, false, nil
		}
	}
	c := models.Category{ID: s.db.id(), Name: name, IsActive: true, CreatedAt: s.db.now(), UpdatedAt: s.db.now()}
	s.db.categories[c.ID] = c
	return &c, true, nil
}

// OrderStore implements service.OrderStore.
type OrderStore struct{ db *DB }

func (s *OrderStore) ListByStatus(ctx context.Context, statuses []models.OrderStatus) ([]models.Order, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.fault("orders.ListByStatus"); err != nil {
		return nil, err
	}
	want := make(map[models.OrderStatus]bool, len(statuses))
	for _, st := range statuses {
		want[st] = true
	}
	var out []models.Order
	for _, o := range s.db.orders {
		if want[o.Status] {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *OrderStore) ListItems(ctx context.Context, orderIDs []int64) ([]models.OrderItem, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	want := make(map[int64]bool, len(orderIDs))
	for _, id := range orderIDs {
		want[id] = true
	}
	var out []models.OrderItem
	for _, it := range s.db.items {
		if want[it.OrderID] {
			out = append(out, it)
		}
	}
	return out, nil
}

func (s *OrderStore) UpdateStatusByNumber(ctx context.Context, orderNumber string, status models.OrderStatus, notes *string) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.fault("orders.UpdateStatusByNumber"); err != nil {
		return false, err
	}
	for id, o := range s.db.orders {
		if o.OrderNumber != orderNumber {
			continue
		}
		o.Status = status
		if notes != nil {
			o.Notes = notes
		}
		o.UpdatedAt = s.db.now()
		s.db.orders[id] = o
		return true, nil
	}
	return false, nil
}

// JobStore implements service.ExportJobStore.
type JobStore struct{ db *DB }

func (s *JobStore) Create(ctx context.Context, job *models.ExportJob) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.fault("jobs.Create"); err != nil {
		return err
	}
	if _, exists := s.db.jobs[job.ID]; exists {
		return fmt.Errorf("%w: duplicate job id", ErrConstraint)
	}
	job.CreatedAt, job.UpdatedAt = s.db.now(), s.db.now()
	s.db.jobs[job.ID] = *job
	return nil
}

func (s *JobStore) GetByID(ctx context.Context, id string) (*models.ExportJob, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	job, ok := s.db.jobs[id]
	if !ok {
		return nil, utils.ErrNotFound
	}
	return &job, nil
}

func (s *JobStore) ListRecent(ctx context.Context, limit int) ([]models.ExportJob, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	out := make([]models.ExportJob, 0, len(s.db.jobs))
	for _, j := range s.db.jobs {
		out = append(out, j)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *JobStore) Claim(ctx context.Context, id, workerID string) (*models.ExportJob, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	job, ok := s.db.jobs[id]
	if !ok || job.Status != models.JobStatusPending {
		return nil, utils.ErrJobNotClaimable
	}
	return s.claim(job, workerID), nil
}

func (s *JobStore) ClaimNext(ctx context.Context, workerID string) (*models.ExportJob, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var oldest *models.ExportJob
	for _, j := range s.db.jobs {
		if j.Status != models.JobStatusPending {
			continue
		}
		if oldest == nil || j.CreatedAt.Before(oldest.CreatedAt) {
			j := j
			oldest = &j
		}
	}
	if oldest == nil {
		return nil, utils.ErrNotFound
	}
	return s.claim(*oldest, workerID), nil
}

func (s *JobStore) claim(job models.ExportJob, workerID string) *models.ExportJob {
	now := s.db.now()
	job.Status = models.JobStatusProcessing
	job.WorkerID = &workerID
	job.StartedAt = &now
	job.UpdatedAt = now
	s.db.jobs[job.ID] = job
	return &job
}

func (s *JobStore) Complete(ctx context.Context, id, payloadRef, fileName string, recordCount int) (*models.ExportJob, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := s.db.fault("jobs.Complete"); err != nil {
		return nil, err
	}
	job, ok := s.db.jobs[id]
	if !ok || job.Status != models.JobStatusProcessing {
		return nil, utils.ErrJobStateConflict
	}
	now := s.db.now()
	job.Status = models.JobStatusCompleted
	job.PayloadRef = &payloadRef
	job.FileName = &fileName
	job.RecordCount = recordCount
	job.FinishedAt = &now
	job.UpdatedAt = now
	s.db.jobs[id] = job
	return &job, nil
}

func (s *JobStore) Fail(ctx context.Context, id, message string) (*models.ExportJob, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	job, ok := s.db.jobs[id]
	if !ok || job.Status != models.JobStatusProcessing {
		return nil, utils.ErrJobStateConflict
	}
	s.fail(&job, message)
	return &job, nil
}

func (s *JobStore) FailStale(ctx context.Context, startedBefore time.Time, message string) ([]models.ExportJob, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []models.ExportJob
	for _, job := range s.db.jobs {
		if job.Status != models.JobStatusProcessing || job.StartedAt == nil || !job.StartedAt.Before(startedBefore) {
			continue
		}
		s.fail(&job, message)
		out = append(out, job)
	}
	return out, nil
}

func (s *JobStore) fail(job *models.ExportJob, message string) {
	now := s.db.now()
	job.Status = models.JobStatusFailed
	job.ErrorMessage = &message
	job.FinishedAt = &now
	job.UpdatedAt = now
	s.db.jobs[job.ID] = *job
}
