// Package myinvois implementa la integración con MyInvois (LHDN, Malasia): el constructor de
// documentos UBL 2.1 (JSON/XML), el cliente HTTP de la API y el emisor simulado para desarrollo.
package myinvois

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/myinvois-api/internal/domain/entity"
)

// Versiones de documento LHDN: 1.0 sin firma, 1.1 con firma digital.
const (
	DocumentVersionUnsigned = "1.0"
	DocumentVersionSigned   = "1.1"
)

// OriginalReference documento original referenciado por una nota de crédito/débito/reembolso.
type OriginalReference struct {
	Number string // número interno del documento original
	UUID   string // UUID LHDN del documento original
}

// BuildInput contexto con todos los datos necesarios para construir el documento.
// El constructor no consulta nada más: lo que no esté aquí no existe.
type BuildInput struct {
	InvoiceType entity.InvoiceType
	Invoice     *entity.Invoice // cabecera: comprador, moneda, totales y condiciones de pago
	Items       []*entity.EInvoiceItem
	Supplier    *entity.SupplierProfile
	Original    *OriginalReference
	IssuedAt    time.Time // fecha/hora de emisión (UTC); se fija al crear la e-Invoice
	Format      string    // entity.DocumentFormatJSON (defecto) o entity.DocumentFormatXML
	Signed      bool      // solo XML: versión 1.1 con ext:UBLExtensions para la firma
}

// BuiltDocument resultado de Build: el modelo tipado, sus bytes canónicos, hash y base64.
type BuiltDocument struct {
	Document *Document
	Format   string
	Version  string
	Bytes    []byte
	Hash     string // SHA-256 hex de Bytes
	Base64   string // Bytes en base64 estándar (para el envío)
}

// DocumentBuildError falta o es inválido un dato necesario para construir el documento.
type DocumentBuildError struct {
	Field   string
	Message string
}

func (e *DocumentBuildError) Error() string {
	return "myinvois: no se puede construir el documento: " + e.Field + ": " + e.Message
}

// ═══════════════════════════════════════════════════════════════════════════════
// Modelo tipado del documento (UBL 2.1 / MyInvois). La forma externa
// (arreglos de objetos con "_") solo existe en los serializadores.
// ═══════════════════════════════════════════════════════════════════════════════

// Document factura electrónica (Invoice, Credit Note, Debit Note o Refund Note).
type Document struct {
	ID               string
	IssueDate        string // YYYY-MM-DD (UTC)
	IssueTime        string // HH:MM:SSZ (UTC)
	TypeCode         string
	TypeVersion      string
	CurrencyCode     string
	TaxCurrencyCode  string // solo moneda extranjera
	BillingReference *BillingReference
	Supplier         Party
	Customer         Party
	PaymentMeans     *PaymentMeans
	PaymentTerms     *PaymentTerms
	TaxExchangeRate  *TaxExchangeRate
	TaxTotal         TaxTotal
	MonetaryTotal    MonetaryTotal
	Lines            []Line
}

// Identification identificador de parte (TIN, BRN, NRIC, PASSPORT, ARMY, SST, TTX).
type Identification struct {
	SchemeID string
	ID       string
}

// Party emisor o comprador.
type Party struct {
	IndustryCode        string // MSIC (solo emisor)
	IndustryDescription string
	Identifications     []Identification
	RegistrationName    string
	Address             PostalAddress
	Contact             *Contact
}

// PostalAddress dirección con códigos LHDN ya resueltos.
type PostalAddress struct {
	Lines       []string
	CityName    string
	PostalZone  string
	StateCode   string
	CountryCode string
}

// Contact teléfono y correo.
type Contact struct {
	Telephone string
	Email     string
}

// BillingReference referencia al documento original de una nota.
type BillingReference struct {
	ID   string
	UUID string
}

// PaymentMeans modo de pago y cuenta del beneficiario.
type PaymentMeans struct {
	Code         string
	PayeeAccount string
}

// PaymentTerms condiciones de pago en texto libre.
type PaymentTerms struct {
	Note string
}

// TaxExchangeRate tasa de conversión de la moneda del documento a MYR.
type TaxExchangeRate struct {
	SourceCurrency string
	TargetCurrency string
	Rate           decimal.Decimal
}

// AllowanceCharge descuento (ChargeIndicator=false) o cargo.
type AllowanceCharge struct {
	ChargeIndicator bool
	Reason          string
	Rate            decimal.Decimal // fracción (0.10 = 10%); cero = sin MultiplierFactorNumeric
	Amount          decimal.Decimal
}

// TaxSubtotal subtotal por tasa.
type TaxSubtotal struct {
	TaxableAmount   decimal.Decimal
	TaxAmount       decimal.Decimal
	Percent         decimal.Decimal
	CategoryID      string
	ExemptionReason string
}

// TaxTotal total de impuestos y su desglose.
type TaxTotal struct {
	TaxAmount decimal.Decimal
	Subtotals []TaxSubtotal
}

// MonetaryTotal totales legales del documento.
type MonetaryTotal struct {
	LineExtensionAmount  decimal.Decimal
	TaxExclusiveAmount   decimal.Decimal
	TaxInclusiveAmount   decimal.Decimal
	AllowanceTotalAmount decimal.Decimal
	PayableAmount        decimal.Decimal
}

// Line línea del documento.
type Line struct {
	ID                  string
	Quantity            decimal.Decimal
	UnitCode            string
	LineExtensionAmount decimal.Decimal // neto: cantidad × precio − descuento
	AllowanceCharge     *AllowanceCharge
	TaxTotal            TaxTotal
	Description         string
	ClassificationCode  string
	ProductCode         string
	PriceAmount         decimal.Decimal
	ItemPriceExtension  decimal.Decimal // bruto: cantidad × precio
}
