package service

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/sparesmarket/spares_api/internal/models"
	"github.com/sparesmarket/spares_api/pkg/commerceml"
)

// CatalogRecordsFromXML converts the Каталог of a CommerceML document into
// catalog records. Groups are resolved to category names through the
// document's Классификатор. Prices and stock are never set here.
func CatalogRecordsFromXML(doc *commerceml.Document) []models.CatalogRecord {
	if doc == nil || doc.Catalog == nil {
		return nil
	}

	groupNames := make(map[string]string)
	if doc.Classifier != nil && doc.Classifier.Groups != nil {
		for _, g := range doc.Classifier.Groups.Items {
			groupNames[strings.TrimSpace(g.ID)] = strings.TrimSpace(g.Name)
		}
	}

	records := make([]models.CatalogRecord, 0, len(doc.Catalog.Products.Items))
	for _, p := range doc.Catalog.Products.Items {
		rec := models.CatalogRecord{
			Name:    p.Name,
			Artikul: p.Artikul,
		}
		// Ид is ours when the document originated from an earlier export.
		if id, err := strconv.ParseInt(strings.TrimSpace(p.ID), 10, 64); err == nil && id > 0 {
			rec.ID = &id
		}
		if d := strings.TrimSpace(p.Description); d != "" {
			rec.Description = &d
		}
		if p.Groups != nil && len(p.Groups.IDs) > 0 {
			rec.CategoryName = groupNames[strings.TrimSpace(p.Groups.IDs[0])]
		}
		records = append(records, rec)
	}
	return records
}

// OfferRecordsFromXML converts the Предложения of a CommerceML offer package
// into offer records. The retail price is preferred; otherwise the first
// listed price is used.
func OfferRecordsFromXML(doc *commerceml.Document) []models.OfferRecord {
	if doc == nil || doc.OfferPackage == nil {
		return nil
	}

	records := make([]models.OfferRecord, 0, len(doc.OfferPackage.Offers.Items))
	for _, o := range doc.OfferPackage.Offers.Items {
		rec := models.OfferRecord{Artikul: o.Artikul}
		stock, problem := parseQuantity(o.Quantity)
		rec.Stock, rec.Problem = stock, problem
		if price, ok := pickPrice(o.Prices); ok {
			rec.Price = decimal.NewNullDecimal(price)
		}
		records = append(records, rec)
	}
	return records
}

// parseQuantity reads a Количество value. Fractional quantities are reported
// instead of truncated.
func parseQuantity(raw string) (*int, string) {
	raw = strings.ReplaceAll(strings.TrimSpace(raw), ",", ".")
	if raw == "" {
		return nil, ""
	}
	q, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, fmt.Sprintf("quantity %q is not a number", raw)
	}
	if !q.IsInteger() {
		return nil, fmt.Sprintf("quantity %s is not a whole number", q.String())
	}
	stock := int(q.IntPart())
	return &stock, ""
}

func pickPrice(prices *commerceml.Prices) (decimal.Decimal, bool) {
	if prices == nil || len(prices.Items) == 0 {
		return decimal.Decimal{}, false
	}
	chosen := prices.Items[0]
	for _, p := range prices.Items {
		if p.PriceTypeID == commerceml.RetailPriceTypeID {
			chosen = p
			break
		}
	}
	// 1C writes decimal commas in some locales
	raw := strings.ReplaceAll(strings.TrimSpace(chosen.PerUnit), ",", ".")
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}
