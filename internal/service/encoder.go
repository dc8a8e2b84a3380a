package service

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sparesmarket/spares_api/internal/models"
	"github.com/sparesmarket/spares_api/internal/utils"
	"github.com/sparesmarket/spares_api/pkg/commerceml"
)

const (
	catalogDocID    = "catalog"
	classifierDocID = "classifier"
	offersDocID     = "offers"
)

// EncoderOptions are the deployment-level settings of the XML dialect.
type EncoderOptions struct {
	Owner         commerceml.Party
	XMLOrderItems bool
	Now           func() time.Time
}

// Encoders serializes record sets into the supported interchange formats.
type Encoders struct {
	opts EncoderOptions
}

// NewEncoders constructs an Encoders.
func NewEncoders(opts EncoderOptions) *Encoders {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Encoders{opts: opts}
}

// Encode renders rs in the requested format.
func (e *Encoders) Encode(rs *RecordSet, format models.Format) ([]byte, error) {
	if rs == nil || !rs.DataType.IsValid() {
		return nil, utils.ErrInvalidDataType
	}
	switch format {
	case models.FormatJSON:
		return e.encodeJSON(rs)
	case models.FormatXML:
		return e.encodeXML(rs)
	case models.FormatCSV:
		return e.encodeCSV(rs)
	default:
		return nil, fmt.Errorf("%w: %q", utils.ErrUnsupportedFormat, format)
	}
}

func (e *Encoders) encodeJSON(rs *RecordSet) ([]byte, error) {
	data, err := json.Marshal(rs.Records())
	if err != nil {
		return nil, fmt.Errorf("encode json: %w", err)
	}
	return data, nil
}

// XML

func (e *Encoders) encodeXML(rs *RecordSet) ([]byte, error) {
	doc := commerceml.NewDocument(e.opts.Now())
	switch rs.DataType {
	case models.DataTypeCatalog:
		doc.Classifier = classifierFromProducts(rs.Products)
		doc.Catalog = catalogDocument(rs.Products)
	case models.DataTypeOffers:
		doc.OfferPackage = e.offerPackage(rs.Products)
	case models.DataTypeOrders:
		doc.Documents = e.orderDocuments(rs.Orders)
	case models.DataTypeClassifier:
		doc.Classifier = classifierDocument(rs.Categories)
	}
	return commerceml.Marshal(doc)
}

func classifierFromProducts(products []models.Product) *commerceml.Classifier {
	seen := make(map[int64]bool)
	groups := &commerceml.Groups{}
	for _, p := range products {
		if p.CategoryID == nil || seen[*p.CategoryID] {
			continue
		}
		seen[*p.CategoryID] = true
		name := ""
		if p.CategoryName != nil {
			name = *p.CategoryName
		}
		groups.Items = append(groups.Items, commerceml.Group{ID: formatID(*p.CategoryID), Name: name})
	}
	return &commerceml.Classifier{ID: classifierDocID, Name: "Классификатор", Groups: groups}
}

func classifierDocument(categories []models.Category) *commerceml.Classifier {
	groups := &commerceml.Groups{}
	for _, c := range categories {
		g := commerceml.Group{ID: formatID(c.ID), Name: c.Name}
		if c.Description != nil {
			g.Description = *c.Description
		}
		groups.Items = append(groups.Items, g)
	}
	return &commerceml.Classifier{ID: classifierDocID, Name: "Классификатор", Groups: groups}
}

func catalogDocument(products []models.Product) *commerceml.Catalog {
	cat := &commerceml.Catalog{ID: catalogDocID, ClassifierID: classifierDocID, Name: "Каталог товаров"}
	for _, p := range products {
		item := commerceml.Product{
			ID:       formatID(p.ID),
			Name:     p.Name,
			Artikul:  p.Artikul,
			BaseUnit: commerceml.PieceUnit(),
			TaxRates: commerceml.StandardVAT(),
		}
		if p.Description != nil {
			item.Description = *p.Description
		}
		if p.CategoryID != nil {
			item.Groups = &commerceml.GroupRefs{IDs: []string{formatID(*p.CategoryID)}}
		}
		cat.Products.Items = append(cat.Products.Items, item)
	}
	return cat
}

func (e *Encoders) offerPackage(products []models.Product) *commerceml.OfferPackage {
	pkg := &commerceml.OfferPackage{
		ID:           offersDocID,
		Name:         "Пакет предложений",
		CatalogID:    catalogDocID,
		ClassifierID: classifierDocID,
		PriceTypes:   commerceml.PriceTypes{Items: []commerceml.PriceType{commerceml.RetailPriceType()}},
	}
	if e.opts.Owner.ID != "" {
		owner := e.opts.Owner
		pkg.Owner = &owner
	}
	for _, p := range products {
		pkg.Offers.Items = append(pkg.Offers.Items, commerceml.Offer{
			ID:        "offer-" + formatID(p.ID),
			ProductID: formatID(p.ID),
			Artikul:   p.Artikul,
			Quantity:  strconv.Itoa(p.Stock),
			Prices: &commerceml.Prices{Items: []commerceml.Price{{
				PriceTypeID: commerceml.RetailPriceTypeID,
				PerUnit:     p.Price.StringFixed(2),
				Currency:    commerceml.CurrencyRUB,
				TaxExcluded: false,
			}}},
		})
	}
	return pkg
}

func (e *Encoders) orderDocuments(orders []models.Order) *commerceml.Documents {
	docs := &commerceml.Documents{}
	for _, o := range orders {
		party := commerceml.Counterpart{Name: o.Customer.Name, Role: commerceml.RoleBuyer, INN: o.Customer.TaxID}
		if o.Customer.Email != "" {
			party.Contacts = &commerceml.Contacts{Items: []commerceml.Contact{{Type: commerceml.ContactTypeEmail, Value: o.Customer.Email}}}
		}
		doc := commerceml.OrderDocument{
			ID:           formatID(o.ID),
			Number:       o.OrderNumber,
			Date:         o.CreatedAt.Format(commerceml.DayLayout),
			Operation:    commerceml.OrderOperation,
			Role:         commerceml.RoleSeller,
			Currency:     o.Currency,
			Rate:         "1",
			Amount:       o.TotalAmount.StringFixed(2),
			Counterparts: commerceml.Counterparts{Items: []commerceml.Counterpart{party}},
		}
		if o.Notes != nil {
			doc.Comment = *o.Notes
		}
		if e.opts.XMLOrderItems {
			for _, it := range o.Items {
				id := formatID(it.ID)
				if it.ProductID != nil {
					id = formatID(*it.ProductID)
				}
				doc.Items.Items = append(doc.Items.Items, commerceml.OrderItem{
					ID:       id,
					Name:     it.Name,
					Artikul:  it.SKU,
					PerUnit:  it.UnitPrice.StringFixed(2),
					Quantity: strconv.Itoa(it.Quantity),
					Amount:   it.LineTotal.StringFixed(2),
				})
			}
		}
		docs.Items = append(docs.Items, doc)
	}
	return docs
}

// CSV

var (
	productColumns = []string{
		"id", "name", "description", "price", "salePrice", "sku", "artikul", "catalogNumber",
		"stock", "isActive", "isFeatured", "categoryId", "categoryName", "createdAt", "updatedAt",
	}
	orderColumns = []string{
		"id", "orderNumber", "status", "totalAmount", "currency", "notes", "customerName",
		"customerEmail", "customerPhone", "customerTaxId", "customerAddress", "itemCount",
		"createdAt", "updatedAt",
	}
	categoryColumns = []string{"id", "name", "description", "isActive"}
)

func (e *Encoders) encodeCSV(rs *RecordSet) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	var rows [][]string
	switch rs.DataType {
	case models.DataTypeCatalog, models.DataTypeOffers:
		rows = append(rows, productColumns)
		for _, p := range rs.Products {
			rows = append(rows, []string{
				formatID(p.ID), p.Name, optText(p.Description), p.Price.String(), optDecimal(p.SalePrice),
				p.SKU, p.Artikul, p.CatalogNumber, strconv.Itoa(p.Stock),
				strconv.FormatBool(p.IsActive), strconv.FormatBool(p.IsFeatured),
				optID(p.CategoryID), optText(p.CategoryName),
				formatTime(p.CreatedAt), formatTime(p.UpdatedAt),
			})
		}
	case models.DataTypeOrders:
		rows = append(rows, orderColumns)
		for _, o := range rs.Orders {
			rows = append(rows, []string{
				formatID(o.ID), o.OrderNumber, string(o.Status), o.TotalAmount.String(), o.Currency,
				optText(o.Notes), o.Customer.Name, o.Customer.Email, o.Customer.Phone,
				o.Customer.TaxID, o.Customer.Address, strconv.Itoa(len(o.Items)),
				formatTime(o.CreatedAt), formatTime(o.UpdatedAt),
			})
		}
	case models.DataTypeClassifier:
		rows = append(rows, categoryColumns)
		for _, c := range rs.Categories {
			rows = append(rows, []string{formatID(c.ID), c.Name, optText(c.Description), strconv.FormatBool(c.IsActive)})
		}
	}

	if err := w.WriteAll(rows); err != nil {
		return nil, fmt.Errorf("encode csv: %w", err)
	}
	return buf.Bytes(), nil
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func optID(id *int64) string {
	if id == nil {
		return ""
	}
	return formatID(*id)
}

func optText(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func optDecimal(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.String()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
