package service

import (
	"context"
	"time"

	"github.com/sparesmarket/spares_api/internal/models"
)

// ProductStore is the product persistence the exchange services depend on.
// Implemented by repository.ProductRepository and the in-memory store.
type ProductStore interface {
	ListActive(ctx context.Context) ([]models.Product, error)
	ListInStock(ctx context.Context) ([]models.Product, error)
	FindIDByArtikul(ctx context.Context, artikul string) (int64, error)
	FindIDBySKU(ctx context.Context, sku string) (int64, error)
	Create(ctx context.Context, p *models.Product) error
	Update(ctx context.Context, id int64, upd *models.ProductUpdate) (bool, error)
	UpdateOffer(ctx context.Context, artikul string, upd *models.OfferUpdate) (int64, error)
}

// CategoryStore is the category persistence used by the classifier export
// and catalog imports.
type CategoryStore interface {
	ListActive(ctx context.Context) ([]models.Category, error)
	Ensure(ctx context.Context, name string) (*models.Category, bool, error)
}

// OrderStore is the order persistence used by order exports and imports.
type OrderStore interface {
	ListByStatus(ctx context.Context, statuses []models.OrderStatus) ([]models.Order, error)
	ListItems(ctx context.Context, orderIDs []int64) ([]models.OrderItem, error)
	UpdateStatusByNumber(ctx context.Context, orderNumber string, status models.OrderStatus, notes *string) (bool, error)
}

// ExportJobStore persists export jobs. Claim, Complete and Fail are
// compare-and-set transitions: they fail with utils.ErrJobNotClaimable or
// utils.ErrJobStateConflict when the job is not in the expected state.
type ExportJobStore interface {
	Create(ctx context.Context, job *models.ExportJob) error
	GetByID(ctx context.Context, id string) (*models.ExportJob, error)
	ListRecent(ctx context.Context, limit int) ([]models.ExportJob, error)
	Claim(ctx context.Context, id, workerID string) (*models.ExportJob, error)
	ClaimNext(ctx context.Context, workerID string) (*models.ExportJob, error)
	Complete(ctx context.Context, id, payloadRef, fileName string, recordCount int) (*models.ExportJob, error)
	Fail(ctx context.Context, id, message string) (*models.ExportJob, error)
	FailStale(ctx context.Context, startedBefore time.Time, message string) ([]models.ExportJob, error)
}

// PayloadStore holds finished export payloads and hands out download links.
type PayloadStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	URL(ctx context.Context, key, fileName string) (string, error)
}

// JobQueue wakes workers for new jobs. Delivery is best effort: workers also
// sweep pending jobs from the store.
type JobQueue interface {
	Enqueue(ctx context.Context, jobID string) error
}

// JobNotifier is told about every job state change.
type JobNotifier interface {
	NotifyJobChanged(job *models.ExportJob)
}

// NopJobNotifier discards notifications.
type NopJobNotifier struct{}

func (NopJobNotifier) NotifyJobChanged(*models.ExportJob) {}

// JobNotifiers fans a notification out to several notifiers.
type JobNotifiers []JobNotifier

func (n JobNotifiers) NotifyJobChanged(job *models.ExportJob) {
	for _, notifier := range n {
		notifier.NotifyJobChanged(job)
	}
}
