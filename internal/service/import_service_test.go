package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sparesmarket/spares_api/internal/models"
	"github.com/sparesmarket/spares_api/internal/utils"
)

func fakeCatalog(n int) []models.CatalogRecord {
	faker := gofakeit.New(42)
	records := make([]models.CatalogRecord, 0, n)
	for i := 0; i < n; i++ {
		price := decimal.NewFromFloat(faker.Price(10, 5000)).Round(2)
		stock := faker.IntRange(0, 50)
		records = append(records, models.CatalogRecord{
			Name:         faker.ProductName(),
			Artikul:      fmt.Sprintf("ART-%04d", i),
			SKU:          faker.Regex("[A-Z]{3}-[0-9]{5}") + fmt.Sprint(i),
			Price:        decimal.NewNullDecimal(price),
			Stock:        &stock,
			CategoryName: faker.RandomString([]string{"Pumps", "Filters", "Brakes"}),
		})
	}
	return records
}

func TestImportCatalogIsIdempotent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	batch := fakeCatalog(25)

	first, err := f.imports.ImportCatalog(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, models.ImportStats{Created: 25}, first.Stats)
	before := f.db.AllProducts()

	second, err := f.imports.ImportCatalog(ctx, fakeCatalog(25))
	require.NoError(t, err)
	assert.Equal(t, models.ImportStats{Updated: 25}, second.Stats)

	after := f.db.AllProducts()
	require.Len(t, after, len(before))
	for i := range before {
		assert.Equal(t, before[i].ID, after[i].ID)
		assert.Equal(t, before[i].Name, after[i].Name)
		assert.True(t, before[i].Price.Equal(after[i].Price))
		assert.Equal(t, before[i].Stock, after[i].Stock)
	}
}

func TestImportCatalogMatchesByIDThenNaturalKey(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	existing := seedProducts(f.db, 2)

	result, err := f.imports.ImportCatalog(ctx, []models.CatalogRecord{
		{ID: &existing[0].ID, Name: "Renamed by id"},
		{Artikul: existing[1].Artikul, Price: nullDec("120.00")},
		{SKU: "SKU-00", Stock: ptr(9)},
		{ID: ptr(int64(999)), Artikul: "NEW-1", Name: "Fresh"},
	})
	require.NoError(t, err)

	assert.Equal(t, models.ImportStats{Created: 1, Updated: 3}, result.Stats)
	p0, _ := f.db.Product(existing[0].ID)
	assert.Equal(t, "Renamed by id", p0.Name)
	assert.Equal(t, 9, p0.Stock)
	p1, _ := f.db.Product(existing[1].ID)
	assert.Equal(t, "Part 1", p1.Name, "absent fields keep stored values")
	assert.True(t, p1.Price.Equal(dec("120")))
	assert.Len(t, f.db.AllProducts(), 3)
}

func TestImportCatalogProvisionsCategoriesOnce(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.db.SeedCategory(models.Category{Name: "Brakes", IsActive: true})
	f.db.SeedCategory(models.Category{Name: "Pumps", IsActive: false})

	result, err := f.imports.ImportCatalog(ctx, []models.CatalogRecord{
		{Name: "Pad", Artikul: "A-1", CategoryName: "brakes"},
		{Name: "Pump", Artikul: "A-2", CategoryName: "Pumps"},
		{Name: "Pump 2", Artikul: "A-3", CategoryName: "PUMPS"},
		{Name: "Filter", Artikul: "A-4", CategoryName: "Filters"},
	})
	require.NoError(t, err)
	assert.Equal(t, 4, result.Stats.Created)

	var active []string
	for _, c := range f.db.AllCategories() {
		if c.IsActive {
			active = append(active, c.Name)
		}
	}
	assert.ElementsMatch(t, []string{"Brakes", "Pumps", "Filters"}, active)
	assert.Len(t, f.db.AllCategories(), 4)
}

func TestImportCatalogRecordErrors(t *testing.T) {
	f := newFixture()

	result, err := f.imports.ImportCatalog(context.Background(), []models.CatalogRecord{
		{Name: "No keys"},
		{Artikul: "X-1"},
		{Name: "Negative", Artikul: "X-2", Price: nullDec("-1")},
		{Name: "Sale above", Artikul: "X-3", Price: nullDec("10"), SalePrice: nullDec("11")},
		{Name: "Bad stock", Artikul: "X-4", Stock: ptr(-2)},
		{Name: "Good", Artikul: "X-5"},
	})
	require.NoError(t, err)

	assert.Equal(t, models.ImportStats{Created: 1, Errors: 5}, result.Stats)
	require.Len(t, result.Failures, 5)
	assert.Equal(t, 0, result.Failures[0].Index)
	assert.Equal(t, "X-4", result.Failures[4].Key)
	assert.Contains(t, result.Failures[4].Message, "stock")
}

func TestImportOffersPartialFailure(t *testing.T) {
	f := newFixture()
	products := seedProducts(f.db, 7)

	var records []models.OfferRecord
	for _, p := range products {
		records = append(records, models.OfferRecord{Artikul: p.Artikul, Price: nullDec("80.00"), SalePrice: nullDec("70"), Stock: ptr(11)})
	}
	for i := 0; i < 3; i++ {
		records = append(records, models.OfferRecord{Artikul: fmt.Sprintf("MISSING-%d", i), Price: nullDec("1"), Stock: ptr(1)})
	}

	result, err := f.imports.ImportOffers(context.Background(), records)
	require.NoError(t, err)

	assert.Equal(t, models.ImportStats{Updated: 7, Errors: 3}, result.Stats)
	assert.Len(t, f.db.AllProducts(), 7, "offers never create products")
	for _, p := range f.db.AllProducts() {
		assert.True(t, p.Price.Equal(dec("80")))
		assert.True(t, p.SalePrice.Decimal.Equal(dec("70")))
		assert.Equal(t, 11, p.Stock)
	}
	for _, fail := range result.Failures {
		assert.Contains(t, fail.Message, "no product")
	}
}

func TestImportOffersValidation(t *testing.T) {
	f := newFixture()
	seedProducts(f.db, 1)

	result, err := f.imports.ImportOffers(context.Background(), []models.OfferRecord{
		{Artikul: "ART-00", Stock: ptr(1)},
		{Artikul: "ART-00", Price: nullDec("5"), SalePrice: nullDec("6"), Stock: ptr(1)},
		{Artikul: "ART-00", Price: nullDec("5")},
		{Price: nullDec("5"), Stock: ptr(1)},
	})
	require.NoError(t, err)

	assert.Equal(t, models.ImportStats{Errors: 4}, result.Stats)
}

func TestImportOrders(t *testing.T) {
	f := newFixture()
	f.db.SeedOrder(models.Order{OrderNumber: "SO-1", Status: models.OrderStatusPending})

	result, err := f.imports.ImportOrders(context.Background(), []models.OrderRecord{
		{OrderNumber: "SO-1", Status: models.OrderStatusShipped, Notes: ptr("tracking 123")},
		{OrderNumber: "SO-404", Status: models.OrderStatusShipped},
		{OrderNumber: "SO-1", Status: "lost"},
	})
	require.NoError(t, err)

	assert.Equal(t, models.ImportStats{Updated: 1, Errors: 2}, result.Stats)
	o, ok := f.db.Order("SO-1")
	require.True(t, ok)
	assert.Equal(t, models.OrderStatusShipped, o.Status)
	assert.Equal(t, "tracking 123", *o.Notes)
}

func TestImportRejectsOversizedBatch(t *testing.T) {
	f := newFixture()
	svc := NewImportService(f.db.Products(), f.db.Categories(), f.db.Orders(), 2)

	_, err := svc.ImportCatalog(context.Background(), fakeCatalog(3))

	assert.ErrorIs(t, err, utils.ErrBatchTooLarge)
	assert.Empty(t, f.db.AllProducts())
}

func TestImportStopsAtRecordBoundaryOnCancel(t *testing.T) {
	f := newFixture()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := f.imports.ImportCatalog(ctx, fakeCatalog(5))

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, result.Stats.Total())
}
