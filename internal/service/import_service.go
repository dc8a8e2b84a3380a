package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/sparesmarket/spares_api/internal/metrics"
	"github.com/sparesmarket/spares_api/internal/models"
	"github.com/sparesmarket/spares_api/internal/utils"
)

// ImportService reconciles inbound catalog, offer and order batches with the
// store. Records are applied one by one; a bad record is counted and skipped.
type ImportService struct {
	products   ProductStore
	categories CategoryStore
	orders     OrderStore
	validate   *validator.Validate
	maxBatch   int
}

// NewImportService constructs an ImportService. maxBatch <= 0 disables the limit.
func NewImportService(products ProductStore, categories CategoryStore, orders OrderStore, maxBatch int) *ImportService {
	return &ImportService{
		products:   products,
		categories: categories,
		orders:     orders,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		maxBatch:   maxBatch,
	}
}

// ImportCatalog creates or updates products. Matching order: local id, then
// artikul, then sku. Unknown products are inserted, provisioning their
// category by name when needed.
func (s *ImportService) ImportCatalog(ctx context.Context, records []models.CatalogRecord) (models.ImportBatchResult, error) {
	if err := s.checkBatch(len(records)); err != nil {
		return models.ImportBatchResult{}, err
	}
	return fold(ctx, "catalog", records, s.reconcileProduct)
}

// ImportOffers updates price, sale price and stock of products matched by
// artikul. Offers never create products.
func (s *ImportService) ImportOffers(ctx context.Context, records []models.OfferRecord) (models.ImportBatchResult, error) {
	if err := s.checkBatch(len(records)); err != nil {
		return models.ImportBatchResult{}, err
	}
	return fold(ctx, "offers", records, s.reconcileOffer)
}

// ImportOrders updates status and notes of orders matched by order number.
func (s *ImportService) ImportOrders(ctx context.Context, records []models.OrderRecord) (models.ImportBatchResult, error) {
	if err := s.checkBatch(len(records)); err != nil {
		return models.ImportBatchResult{}, err
	}
	return fold(ctx, "orders", records, s.reconcileOrder)
}

func (s *ImportService) checkBatch(n int) error {
	if s.maxBatch > 0 && n > s.maxBatch {
		return fmt.Errorf("%w: %d records, limit is %d", utils.ErrBatchTooLarge, n, s.maxBatch)
	}
	return nil
}

// fold applies step to every record in order and accumulates the outcomes.
// Cancellation is observed between records; earlier records stay committed.
func fold[T any](ctx context.Context, kind string, records []T, step func(context.Context, int, *T) models.RecordOutcome) (models.ImportBatchResult, error) {
	var result models.ImportBatchResult
	for i := range records {
		if err := ctx.Err(); err != nil {
			log.Warn().Str("kind", kind).Int("processed", i).Int("total", len(records)).Msg("Import interrupted")
			observeImport(kind, result)
			return result, err
		}
		outcome := step(ctx, i, &records[i])
		if outcome.Kind == models.OutcomeFailed {
			log.Warn().
				Str("kind", kind).
				Int("index", outcome.Failure.Index).
				Str("key", outcome.Failure.Key).
				Str("error", outcome.Failure.Message).
				Msg("Import record rejected")
		}
		result = result.With(outcome)
	}

	observeImport(kind, result)
	log.Info().
		Str("kind", kind).
		Int("created", result.Stats.Created).
		Int("updated", result.Stats.Updated).
		Int("errors", result.Stats.Errors).
		Msg("Import batch processed")
	return result, nil
}

func observeImport(kind string, result models.ImportBatchResult) {
	metrics.ImportRecords.WithLabelValues(kind, "created").Add(float64(result.Stats.Created))
	metrics.ImportRecords.WithLabelValues(kind, "updated").Add(float64(result.Stats.Updated))
	metrics.ImportRecords.WithLabelValues(kind, "error").Add(float64(result.Stats.Errors))
}

func failed(index int, key string, err error) models.RecordOutcome {
	return models.RecordOutcome{
		Kind:    models.OutcomeFailed,
		Failure: models.RecordFailure{Index: index, Key: key, Message: err.Error()},
	}
}

var (
	created = models.RecordOutcome{Kind: models.OutcomeCreated}
	updated = models.RecordOutcome{Kind: models.OutcomeUpdated}
)

func (s *ImportService) reconcileProduct(ctx context.Context, i int, rec *models.CatalogRecord) models.RecordOutcome {
	rec.Normalize()
	key := rec.Key()
	if err := s.validateCatalog(rec); err != nil {
		return failed(i, key, err)
	}

	upd := rec.ToUpdate()
	if rec.ID != nil {
		ok, err := s.products.Update(ctx, *rec.ID, upd)
		if err != nil {
			return failed(i, key, err)
		}
		if ok {
			return updated
		}
	}

	id, err := s.matchNaturalKey(ctx, rec)
	switch {
	case err == nil:
		ok, err := s.products.Update(ctx, id, upd)
		if err != nil {
			return failed(i, key, err)
		}
		if ok {
			return updated
		}
	case !errors.Is(err, utils.ErrNotFound):
		return failed(i, key, err)
	}

	if rec.Artikul == "" && rec.SKU == "" {
		return failed(i, key, fmt.Errorf("%w: artikul or sku is required to create a product", utils.ErrInvalidRecord))
	}
	if rec.Name == "" {
		return failed(i, key, fmt.Errorf("%w: name is required to create a product", utils.ErrInvalidRecord))
	}

	var categoryID *int64
	if rec.CategoryName != "" {
		cat, createdCat, err := s.categories.Ensure(ctx, rec.CategoryName)
		if err != nil {
			return failed(i, key, fmt.Errorf("ensure category %q: %w", rec.CategoryName, err))
		}
		if createdCat {
			log.Info().Int64("category_id", cat.ID).Str("name", cat.Name).Msg("Category provisioned by import")
		}
		categoryID = &cat.ID
	}

	if err := s.products.Create(ctx, rec.ToProduct(categoryID)); err != nil {
		return failed(i, key, err)
	}
	return created
}

func (s *ImportService) matchNaturalKey(ctx context.Context, rec *models.CatalogRecord) (int64, error) {
	if rec.Artikul != "" {
		id, err := s.products.FindIDByArtikul(ctx, rec.Artikul)
		if !errors.Is(err, utils.ErrNotFound) {
			return id, err
		}
	}
	if rec.SKU != "" {
		return s.products.FindIDBySKU(ctx, rec.SKU)
	}
	return 0, utils.ErrNotFound
}

func (s *ImportService) validateCatalog(rec *models.CatalogRecord) error {
	if err := s.validate.Struct(rec); err != nil {
		return fmt.Errorf("%w: %s", utils.ErrInvalidRecord, describeValidation(err))
	}
	if rec.Price.Valid && rec.Price.Decimal.IsNegative() {
		return fmt.Errorf("%w: price must not be negative", utils.ErrInvalidRecord)
	}
	if rec.SalePrice.Valid && rec.SalePrice.Decimal.IsNegative() {
		return fmt.Errorf("%w: salePrice must not be negative", utils.ErrInvalidRecord)
	}
	if rec.Price.Valid && rec.SalePrice.Valid && rec.SalePrice.Decimal.GreaterThan(rec.Price.Decimal) {
		return fmt.Errorf("%w: salePrice must not exceed price", utils.ErrInvalidRecord)
	}
	return nil
}

func (s *ImportService) reconcileOffer(ctx context.Context, i int, rec *models.OfferRecord) models.RecordOutcome {
	rec.Artikul = strings.TrimSpace(rec.Artikul)
	key := rec.Artikul
	if rec.Problem != "" {
		return failed(i, key, fmt.Errorf("%w: %s", utils.ErrInvalidRecord, rec.Problem))
	}
	if err := s.validate.Struct(rec); err != nil {
		return failed(i, key, fmt.Errorf("%w: %s", utils.ErrInvalidRecord, describeValidation(err)))
	}
	if !rec.Price.Valid {
		return failed(i, key, fmt.Errorf("%w: price is required", utils.ErrInvalidRecord))
	}
	if rec.Price.Decimal.IsNegative() {
		return failed(i, key, fmt.Errorf("%w: price must not be negative", utils.ErrInvalidRecord))
	}
	if rec.SalePrice.Valid && (rec.SalePrice.Decimal.IsNegative() || rec.SalePrice.Decimal.GreaterThan(rec.Price.Decimal)) {
		return failed(i, key, fmt.Errorf("%w: salePrice must be between 0 and price", utils.ErrInvalidRecord))
	}

	n, err := s.products.UpdateOffer(ctx, rec.Artikul, &models.OfferUpdate{
		Price:     rec.Price.Decimal,
		SalePrice: rec.SalePrice,
		Stock:     *rec.Stock,
	})
	if err != nil {
		return failed(i, key, err)
	}
	if n == 0 {
		return failed(i, key, fmt.Errorf("%w: no product with artikul %q", utils.ErrNotFound, rec.Artikul))
	}
	return updated
}

func (s *ImportService) reconcileOrder(ctx context.Context, i int, rec *models.OrderRecord) models.RecordOutcome {
	rec.OrderNumber = strings.TrimSpace(rec.OrderNumber)
	key := rec.OrderNumber
	if err := s.validate.Struct(rec); err != nil {
		return failed(i, key, fmt.Errorf("%w: %s", utils.ErrInvalidRecord, describeValidation(err)))
	}
	if !rec.Status.IsValid() {
		return failed(i, key, fmt.Errorf("%w: unknown status %q", utils.ErrInvalidRecord, rec.Status))
	}

	ok, err := s.orders.UpdateStatusByNumber(ctx, rec.OrderNumber, rec.Status, rec.Notes)
	if err != nil {
		return failed(i, key, err)
	}
	if !ok {
		return failed(i, key, fmt.Errorf("%w: no order %q", utils.ErrNotFound, rec.OrderNumber))
	}
	return updated
}

// describeValidation flattens validator errors into "field: rule" pairs.
func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		rule := fe.Tag()
		if fe.Param() != "" {
			rule += "=" + fe.Param()
		}
		parts = append(parts, fmt.Sprintf("%s: %s", lowerFirst(fe.Field()), rule))
	}
	return strings.Join(parts, ", ")
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
