package service

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sparesmarket/spares_api/internal/models"
	"github.com/sparesmarket/spares_api/internal/utils"
	"github.com/sparesmarket/spares_api/pkg/commerceml"
)

func sampleProducts() []models.Product {
	catID := int64(7)
	catName := "Pumps"
	desc := "Cast iron"
	return []models.Product{
		{
			ID:           1,
			Name:         "Pump, heavy",
			Description:  &desc,
			Price:        dec("1299.90"),
			SalePrice:    nullDec("999.5"),
			SKU:          "PMP-1",
			Artikul:      "P-1",
			Stock:        3,
			IsActive:     true,
			CategoryID:   &catID,
			CategoryName: &catName,
			CreatedAt:    testNow,
			UpdatedAt:    testNow,
		},
		{
			ID:        2,
			Name:      "Gasket",
			Price:     dec("15"),
			SKU:       "GSK-2",
			Artikul:   "G-2",
			Stock:     10,
			IsActive:  true,
			CreatedAt: testNow,
			UpdatedAt: testNow,
		},
	}
}

func TestEncodeJSONRoundTripsDecimals(t *testing.T) {
	f := newFixture()
	rs := &RecordSet{DataType: models.DataTypeCatalog, Products: sampleProducts()}

	data, err := f.encoders.Encode(rs, models.FormatJSON)
	require.NoError(t, err)

	var raw []map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	require.Len(t, raw, 2)
	assert.Equal(t, "1299.9", raw[0]["price"])
	assert.Equal(t, "999.5", raw[0]["salePrice"])
	assert.Nil(t, raw[1]["salePrice"])
	assert.Contains(t, raw[1], "salePrice", "optional decimals are explicit nulls")

	var decoded []models.Product
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, decoded[0].Price.Equal(dec("1299.90")))
	assert.True(t, decoded[0].SalePrice.Decimal.Equal(dec("999.5")))
	assert.False(t, decoded[1].SalePrice.Valid)
}

func TestEncodeJSONEmptyIsArray(t *testing.T) {
	f := newFixture()

	data, err := f.encoders.Encode(&RecordSet{DataType: models.DataTypeOrders}, models.FormatJSON)
	require.NoError(t, err)

	assert.Equal(t, "[]", string(data))
}

func TestEncodeCSVQuotesCommas(t *testing.T) {
	f := newFixture()
	rs := &RecordSet{DataType: models.DataTypeCatalog, Products: sampleProducts()[:1]}

	data, err := f.encoders.Encode(rs, models.FormatCSV)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, strings.Join(productColumns, ","), lines[0])
	assert.True(t, strings.HasPrefix(lines[1], `1,"Pump, heavy",Cast iron,1299.9,999.5,PMP-1,P-1,,3,true,false,7,Pumps,`))
}

func TestEncodeCSVEmptyWritesHeaderOnly(t *testing.T) {
	f := newFixture()

	for _, dt := range models.DataTypes {
		data, err := f.encoders.Encode(&RecordSet{DataType: dt}, models.FormatCSV)
		require.NoError(t, err, dt)

		lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
		assert.Len(t, lines, 1, dt)
	}
}

func TestEncodeRejectsUnknownFormat(t *testing.T) {
	f := newFixture()

	_, err := f.encoders.Encode(&RecordSet{DataType: models.DataTypeCatalog}, models.Format("yaml"))
	assert.ErrorIs(t, err, utils.ErrUnsupportedFormat)

	_, err = f.encoders.Encode(&RecordSet{DataType: "invoices"}, models.FormatJSON)
	assert.ErrorIs(t, err, utils.ErrInvalidDataType)
}

func TestEncodeXMLCatalog(t *testing.T) {
	f := newFixture()
	rs := &RecordSet{DataType: models.DataTypeCatalog, Products: sampleProducts()}

	data, err := f.encoders.Encode(rs, models.FormatXML)
	require.NoError(t, err)

	doc, err := commerceml.Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, "2.10", doc.SchemaVersion)
	assert.Equal(t, "2024-03-15T10:30:00", doc.GeneratedAt)

	require.NotNil(t, doc.Classifier)
	require.Len(t, doc.Classifier.Groups.Items, 1)
	assert.Equal(t, commerceml.Group{ID: "7", Name: "Pumps"}, doc.Classifier.Groups.Items[0])

	items := doc.Catalog.Products.Items
	require.Len(t, items, 2)
	assert.Equal(t, "Pump, heavy", items[0].Name)
	assert.Equal(t, []string{"7"}, items[0].Groups.IDs)
	assert.Nil(t, items[1].Groups)
	assert.Equal(t, "796", items[1].BaseUnit.Code)
	assert.Equal(t, "шт", items[1].BaseUnit.Text)
	assert.Equal(t, []commerceml.TaxRate{{Name: "НДС", Rate: "20"}}, items[1].TaxRates.Items)
}

func TestEncodeXMLOffers(t *testing.T) {
	f := newFixture()
	rs := &RecordSet{DataType: models.DataTypeOffers, Products: sampleProducts()}

	data, err := f.encoders.Encode(rs, models.FormatXML)
	require.NoError(t, err)

	doc, err := commerceml.Unmarshal(data)
	require.NoError(t, err)
	pkg := doc.OfferPackage
	require.NotNil(t, pkg)
	assert.Equal(t, "Spares Store LLC", pkg.Owner.LegalName)
	assert.Equal(t, "Розничная", pkg.PriceTypes.Items[0].Name)
	assert.True(t, pkg.PriceTypes.Items[0].Tax.IncludedSum)

	offer := pkg.Offers.Items[0]
	assert.Equal(t, "offer-1", offer.ID)
	assert.Equal(t, "1", offer.ProductID)
	assert.Equal(t, "3", offer.Quantity)
	assert.Equal(t, "1299.90", offer.Prices.Items[0].PerUnit)
	assert.Equal(t, "RUB", offer.Prices.Items[0].Currency)
	assert.Equal(t, "15.00", pkg.Offers.Items[1].Prices.Items[0].PerUnit)
}

func TestEncodeXMLOrders(t *testing.T) {
	order := models.Order{
		ID:          12,
		OrderNumber: "SO-12",
		Status:      models.OrderStatusPending,
		TotalAmount: dec("30"),
		Currency:    "RUB",
		Customer:    models.Customer{Name: "Ivan", Email: "ivan@example.com"},
		Items: []models.OrderItem{
			{ID: 5, ProductID: ptr(int64(9)), Name: "Bolt", SKU: "B-9", Quantity: 3, UnitPrice: dec("10"), LineTotal: dec("30")},
		},
		CreatedAt: time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC),
	}
	rs := &RecordSet{DataType: models.DataTypeOrders, Orders: []models.Order{order}}

	t.Run("line items are empty by default", func(t *testing.T) {
		f := newFixture()
		data, err := f.encoders.Encode(rs, models.FormatXML)
		require.NoError(t, err)

		assert.Contains(t, string(data), "<Товары></Товары>")
		doc, err := commerceml.Unmarshal(data)
		require.NoError(t, err)
		d := doc.Documents.Items[0]
		assert.Equal(t, "SO-12", d.Number)
		assert.Equal(t, "2024-03-01", d.Date)
		assert.Equal(t, "Заказ товара", d.Operation)
		assert.Equal(t, "30.00", d.Amount)
		assert.Equal(t, "Покупатель", d.Counterparts.Items[0].Role)
		assert.Equal(t, "ivan@example.com", d.Counterparts.Items[0].Contacts.Items[0].Value)
	})

	t.Run("line items when enabled", func(t *testing.T) {
		enc := NewEncoders(EncoderOptions{XMLOrderItems: true, Now: func() time.Time { return testNow }})
		data, err := enc.Encode(rs, models.FormatXML)
		require.NoError(t, err)

		doc, err := commerceml.Unmarshal(data)
		require.NoError(t, err)
		items := doc.Documents.Items[0].Items.Items
		require.Len(t, items, 1)
		assert.Equal(t, commerceml.OrderItem{ID: "9", Name: "Bolt", Artikul: "B-9", PerUnit: "10.00", Quantity: "3", Amount: "30.00"}, items[0])
	})
}

func TestEncodeXMLClassifier(t *testing.T) {
	f := newFixture()
	desc := "Hydraulic & fuel"
	rs := &RecordSet{DataType: models.DataTypeClassifier, Categories: []models.Category{
		{ID: 1, Name: "Pumps", Description: &desc, IsActive: true},
		{ID: 2, Name: "Filters", IsActive: true},
	}}

	data, err := f.encoders.Encode(rs, models.FormatXML)
	require.NoError(t, err)

	assert.Contains(t, string(data), "<Описание>Hydraulic &amp; fuel</Описание>")
	doc, err := commerceml.Unmarshal(data)
	require.NoError(t, err)
	assert.Nil(t, doc.Catalog)
	require.Len(t, doc.Classifier.Groups.Items, 2)
	assert.Equal(t, "", doc.Classifier.Groups.Items[1].Description)
}
