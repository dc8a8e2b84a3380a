// Package commerceml implements the subset of the CommerceML 2.10 exchange
// dialect used for ERP interchange: classifier, catalog, offer package and
// order documents.
package commerceml

import (
	"encoding/xml"
	"time"
)

const (
	SchemaVersion = "2.10"
	DateLayout    = "2006-01-02T15:04:05"
	DayLayout     = "2006-01-02"

	CurrencyRUB   = "RUB"
	TaxNameVAT    = "НДС"
	TaxRateVAT    = "20"
	UnitCodePiece = "796"
	UnitNamePiece = "Штука"
	UnitIntlPiece = "PCE"
	UnitTextPiece = "шт"

	RetailPriceTypeID   = "retail"
	RetailPriceTypeName = "Розничная"
	OrderOperation      = "Заказ товара"
	RoleSeller          = "Продавец"
	RoleBuyer           = "Покупатель"
	ContactTypeEmail    = "Почта"
)

// Document is the КоммерческаяИнформация root element.
type Document struct {
	XMLName       xml.Name      `xml:"КоммерческаяИнформация"`
	SchemaVersion string        `xml:"ВерсияСхемы,attr"`
	GeneratedAt   string        `xml:"ДатаФормирования,attr"`
	Classifier    *Classifier   `xml:"Классификатор,omitempty"`
	Catalog       *Catalog      `xml:"Каталог,omitempty"`
	OfferPackage  *OfferPackage `xml:"ПакетПредложений,omitempty"`
	Documents     *Documents    `xml:"Документы,omitempty"`
}

// NewDocument returns an empty root stamped with the schema version and time.
func NewDocument(generatedAt time.Time) *Document {
	return &Document{
		SchemaVersion: SchemaVersion,
		GeneratedAt:   generatedAt.Format(DateLayout),
	}
}

// Classifier lists product groups.
type Classifier struct {
	ID     string  `xml:"Ид,omitempty"`
	Name   string  `xml:"Наименование,omitempty"`
	Groups *Groups `xml:"Группы"`
}

type Groups struct {
	Items []Group `xml:"Группа"`
}

type Group struct {
	ID          string `xml:"Ид"`
	Name        string `xml:"Наименование"`
	Description string `xml:"Описание,omitempty"`
}

// Catalog lists product descriptions.
type Catalog struct {
	ID           string   `xml:"Ид,omitempty"`
	ClassifierID string   `xml:"ИдКлассификатора,omitempty"`
	Name         string   `xml:"Наименование,omitempty"`
	Products     Products `xml:"Товары"`
}

type Products struct {
	Items []Product `xml:"Товар"`
}

// Product is a Товар inside Каталог. Element order is significant for
// consumers and follows the field order here.
type Product struct {
	ID          string     `xml:"Ид"`
	Name        string     `xml:"Наименование"`
	Description string     `xml:"Описание,omitempty"`
	Artikul     string     `xml:"Артикул"`
	BaseUnit    *BaseUnit  `xml:"БазоваяЕдиница,omitempty"`
	Groups      *GroupRefs `xml:"Группы,omitempty"`
	TaxRates    *TaxRates  `xml:"СтавкиНалогов,omitempty"`
}

type BaseUnit struct {
	Code     string `xml:"Код,attr"`
	FullName string `xml:"НаименованиеПолное,attr"`
	IntlAbbr string `xml:"МеждународноеСокращение,attr"`
	Text     string `xml:",chardata"`
}

// PieceUnit is the "шт" unit every product is sold in.
func PieceUnit() *BaseUnit {
	return &BaseUnit{Code: UnitCodePiece, FullName: UnitNamePiece, IntlAbbr: UnitIntlPiece, Text: UnitTextPiece}
}

type GroupRefs struct {
	IDs []string `xml:"Ид"`
}

type TaxRates struct {
	Items []TaxRate `xml:"СтавкаНалога"`
}

type TaxRate struct {
	Name string `xml:"Наименование"`
	Rate string `xml:"Ставка"`
}

// StandardVAT is the tax block attached to every product.
func StandardVAT() *TaxRates {
	return &TaxRates{Items: []TaxRate{{Name: TaxNameVAT, Rate: TaxRateVAT}}}
}

// OfferPackage carries prices and stock.
type OfferPackage struct {
	ID           string     `xml:"Ид"`
	Name         string     `xml:"Наименование"`
	CatalogID    string     `xml:"ИдКаталога"`
	ClassifierID string     `xml:"ИдКлассификатора"`
	Owner        *Party     `xml:"Владелец,omitempty"`
	PriceTypes   PriceTypes `xml:"ТипыЦен"`
	Offers       Offers     `xml:"Предложения"`
}

// Party is an organisation reference such as the package owner.
type Party struct {
	ID        string `xml:"Ид"`
	Name      string `xml:"Наименование"`
	LegalName string `xml:"ОфициальноеНаименование,omitempty"`
	INN       string `xml:"ИНН,omitempty"`
}

type PriceTypes struct {
	Items []PriceType `xml:"ТипЦены"`
}

type PriceType struct {
	ID       string `xml:"Ид"`
	Name     string `xml:"Наименование"`
	Currency string `xml:"Валюта"`
	Tax      *Tax   `xml:"Налог,omitempty"`
}

type Tax struct {
	Name        string `xml:"Наименование"`
	IncludedSum bool   `xml:"УчтеноВСумме"`
}

// RetailPriceType is the single price type the store publishes.
func RetailPriceType() PriceType {
	return PriceType{
		ID:       RetailPriceTypeID,
		Name:     RetailPriceTypeName,
		Currency: CurrencyRUB,
		Tax:      &Tax{Name: TaxNameVAT, IncludedSum: true},
	}
}

type Offers struct {
	Items []Offer `xml:"Предложение"`
}

// Offer is a Предложение. Артикул is read on import; exports identify the
// product through ИдТовара.
type Offer struct {
	ID        string  `xml:"Ид"`
	ProductID string  `xml:"ИдТовара,omitempty"`
	Artikul   string  `xml:"Артикул,omitempty"`
	Name      string  `xml:"Наименование,omitempty"`
	Quantity  string  `xml:"Количество"`
	Prices    *Prices `xml:"Цены,omitempty"`
}

type Prices struct {
	Items []Price `xml:"Цена"`
}

type Price struct {
	PriceTypeID  string `xml:"ИдТипаЦены"`
	PerUnit      string `xml:"ЦенаЗаЕдиницу"`
	Currency     string `xml:"Валюта"`
	TaxExcluded  bool   `xml:"НалогНеВключен"`
	Presentation string `xml:"Представление,omitempty"`
}

// Documents wraps order documents.
type Documents struct {
	Items []OrderDocument `xml:"Документ"`
}

// OrderDocument is a Документ describing one order.
type OrderDocument struct {
	ID           string       `xml:"Ид"`
	Number       string       `xml:"Номер"`
	Date         string       `xml:"Дата"`
	Operation    string       `xml:"ХозОперация"`
	Role         string       `xml:"Роль"`
	Currency     string       `xml:"Валюта"`
	Rate         string       `xml:"Курс"`
	Amount       string       `xml:"Сумма"`
	Counterparts Counterparts `xml:"Контрагенты"`
	Comment      string       `xml:"Комментарий,omitempty"`
	Items        OrderItems   `xml:"Товары"`
}

type Counterparts struct {
	Items []Counterpart `xml:"Контрагент"`
}

type Counterpart struct {
	Name     string    `xml:"Наименование"`
	Role     string    `xml:"Роль"`
	INN      string    `xml:"ИНН,omitempty"`
	Contacts *Contacts `xml:"Контакты,omitempty"`
}

type Contacts struct {
	Items []Contact `xml:"Контакт"`
}

type Contact struct {
	Type  string `xml:"Тип"`
	Value string `xml:"Значение"`
}

type OrderItems struct {
	Items []OrderItem `xml:"Товар"`
}

type OrderItem struct {
	ID       string `xml:"Ид"`
	Name     string `xml:"Наименование"`
	Artikul  string `xml:"Артикул,omitempty"`
	PerUnit  string `xml:"ЦенаЗаЕдиницу"`
	Quantity string `xml:"Количество"`
	Amount   string `xml:"Сумма"`
}
