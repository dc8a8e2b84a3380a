package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sparesmarket/spares_api/internal/models"
	"github.com/sparesmarket/spares_api/internal/repository/memory"
	"github.com/sparesmarket/spares_api/pkg/commerceml"
)

var testNow = time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)

type memPayloads struct {
	mu    sync.Mutex
	items map[string][]byte
	types map[string]string
	err   error
}

func newMemPayloads() *memPayloads {
	return &memPayloads{items: map[string][]byte{}, types: map[string]string{}}
}

func (p *memPayloads) Put(_ context.Context, key string, data []byte, contentType string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.items[key] = append([]byte(nil), data...)
	p.types[key] = contentType
	return nil
}

func (p *memPayloads) URL(_ context.Context, key, fileName string) (string, error) {
	return "https://files.example.com/" + key, nil
}

func (p *memPayloads) get(key string) ([]byte, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	b, ok := p.items[key]
	return b, ok
}

type recordingNotifier struct {
	mu       sync.Mutex
	statuses []models.JobStatus
}

func (n *recordingNotifier) NotifyJobChanged(job *models.ExportJob) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.statuses = append(n.statuses, job.Status)
}

func (n *recordingNotifier) seen() []models.JobStatus {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]models.JobStatus(nil), n.statuses...)
}

type fixture struct {
	db       *memory.DB
	mapper   *CatalogMapper
	encoders *Encoders
	payloads *memPayloads
	imports  *ImportService
}

func newFixture() *fixture {
	db := memory.New()
	mapper := NewCatalogMapper(db.Products(), db.Categories(), db.Orders())
	return &fixture{
		db:     db,
		mapper: mapper,
		encoders: NewEncoders(EncoderOptions{
			Owner: commerceml.Party{ID: "spares-store", Name: "Spares Store", LegalName: "Spares Store LLC", INN: "7700000000"},
			Now:   func() time.Time { return testNow },
		}),
		payloads: newMemPayloads(),
		imports:  NewImportService(db.Products(), db.Categories(), db.Orders(), 1000),
	}
}

func (f *fixture) exportService(opts ...ExportServiceOption) *ExportService {
	opts = append([]ExportServiceOption{WithClock(func() time.Time { return testNow }), WithPollInterval(5 * time.Millisecond)}, opts...)
	return NewExportService(f.db.Jobs(), f.mapper, f.encoders, f.payloads, opts...)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func nullDec(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(dec(s))
}

func ptr[T any](v T) *T {
	return &v
}

func seedProducts(db *memory.DB, n int) []models.Product {
	out := make([]models.Product, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, db.SeedProduct(models.Product{
			Name:     fmt.Sprintf("Part %d", i),
			Artikul:  fmt.Sprintf("ART-%02d", i),
			SKU:      fmt.Sprintf("SKU-%02d", i),
			Price:    dec("100.00"),
			Stock:    5,
			IsActive: true,
		}))
	}
	return out
}
