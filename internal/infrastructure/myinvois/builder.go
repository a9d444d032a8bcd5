package myinvois

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"

	"github.com/jhoicas/myinvois-api/internal/domain/entity"
	domainmyinvois "github.com/jhoicas/myinvois-api/internal/domain/myinvois"
	"github.com/jhoicas/myinvois-api/pkg/myinvois"
)

// Valores por defecto documentados para campos no obligatorios de dirección.
const (
	DefaultAddressLine = myinvois.NotApplicable
	DefaultCityName    = myinvois.NotApplicable
)

// Esquemas de identificación de parte.
const (
	SchemeTIN = "TIN"
	SchemeBRN = "BRN"
	SchemeSST = "SST"
	SchemeTTX = "TTX"
)

var hundred = decimal.NewFromInt(100)

// DocumentBuilder transforma factura + perfil del proveedor en el documento MyInvois.
// Es una función pura: mismos datos de entrada, mismos bytes y mismo hash.
type DocumentBuilder struct {
	tables *myinvois.CodeTables
}

// NewDocumentBuilder crea el constructor con las tablas de códigos inyectadas.
func NewDocumentBuilder(tables *myinvois.CodeTables) *DocumentBuilder {
	if tables == nil {
		tables = myinvois.DefaultCodeTables()
	}
	return &DocumentBuilder{tables: tables}
}

// Build construye el documento, lo serializa en el formato pedido y calcula hash y base64.
func (b *DocumentBuilder) Build(in BuildInput) (*BuiltDocument, error) {
	doc, err := b.assemble(in)
	if err != nil {
		return nil, err
	}

	format := strings.ToUpper(in.Format)
	if format == "" {
		format = entity.DocumentFormatJSON
	}
	var raw []byte
	switch format {
	case entity.DocumentFormatJSON:
		raw, err = MarshalJSON(doc)
	case entity.DocumentFormatXML:
		raw, err = MarshalXML(doc, in.Signed)
	default:
		return nil, &DocumentBuildError{Field: "format", Message: fmt.Sprintf("formato %q no soportado", in.Format)}
	}
	if err != nil {
		return nil, fmt.Errorf("myinvois: serializar documento %s: %w", format, err)
	}

	hash, b64 := HashDocument(raw)
	return &BuiltDocument{
		Document: doc,
		Format:   format,
		Version:  doc.TypeVersion,
		Bytes:    raw,
		Hash:     hash,
		Base64:   b64,
	}, nil
}

// HashDocument SHA-256 hex y base64 de los bytes serializados.
func HashDocument(raw []byte) (hash, b64 string) {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), base64.StdEncoding.EncodeToString(raw)
}

// assemble valida defensivamente la entrada y arma el modelo tipado.
func (b *DocumentBuilder) assemble(in BuildInput) (*Document, error) {
	if err := checkInput(in); err != nil {
		return nil, err
	}
	inv := in.Invoice

	typeCode, ok := b.tables.InvoiceTypeCode(string(in.InvoiceType))
	if !ok {
		return nil, &DocumentBuildError{Field: "invoiceType", Message: fmt.Sprintf("tipo %q desconocido", in.InvoiceType)}
	}
	currency := strings.ToUpper(inv.InvoiceCurrency())

	version := DocumentVersionUnsigned
	if in.Signed && strings.EqualFold(in.Format, entity.DocumentFormatXML) {
		version = DocumentVersionSigned
	}

	issued := in.IssuedAt.UTC()
	doc := &Document{
		ID:           text(inv.Number),
		IssueDate:    issued.Format("2006-01-02"),
		IssueTime:    issued.Format("15:04:05Z"),
		TypeCode:     typeCode,
		TypeVersion:  version,
		CurrencyCode: currency,
		Supplier:     b.supplierParty(in.Supplier),
		Customer:     b.customerParty(inv.Customer),
	}

	if in.InvoiceType.IsAmendment() {
		doc.BillingReference = newBillingReference(in.Original)
	}
	doc.PaymentMeans = b.newPaymentMeans(inv.PaymentMode, in.Supplier.BankAccount)
	doc.PaymentTerms = newPaymentTerms(inv.PaymentTerms)
	if currency != myinvois.CurrencyMYR {
		if !inv.ExchangeRate.IsPositive() {
			return nil, &DocumentBuildError{Field: "exchangeRate", Message: "moneda extranjera sin tasa de cambio a MYR"}
		}
		doc.TaxCurrencyCode = myinvois.CurrencyMYR
		doc.TaxExchangeRate = newTaxExchangeRate(currency, inv.ExchangeRate)
	}

	// ── impuestos agrupados por tasa exacta ──
	groups := domainmyinvois.GroupTaxes(in.Items, b.tables)
	doc.TaxTotal = TaxTotal{TaxAmount: inv.TaxAmount, Subtotals: make([]TaxSubtotal, 0, len(groups))}
	for _, g := range groups {
		doc.TaxTotal.Subtotals = append(doc.TaxTotal.Subtotals, b.taxSubtotal(g.Category, g.Rate, g.TaxableAmount, g.TaxAmount))
	}

	// ── totales: se confía en los totales almacenados de la factura ──
	net := inv.Subtotal.Sub(inv.DiscountAmount)
	doc.MonetaryTotal = MonetaryTotal{
		LineExtensionAmount:  net,
		TaxExclusiveAmount:   net,
		TaxInclusiveAmount:   inv.TotalAmount,
		AllowanceTotalAmount: inv.DiscountAmount,
		PayableAmount:        inv.TotalAmount,
	}

	doc.Lines = make([]Line, 0, len(in.Items))
	for i, it := range in.Items {
		doc.Lines = append(doc.Lines, b.line(i+1, it))
	}
	return doc, nil
}

func checkInput(in BuildInput) error {
	switch {
	case in.Invoice == nil:
		return &DocumentBuildError{Field: "invoice", Message: "factura requerida"}
	case in.Invoice.Customer == nil:
		return &DocumentBuildError{Field: "customer", Message: "la factura no tiene comprador"}
	case len(in.Items) == 0:
		return &DocumentBuildError{Field: "items", Message: "la factura debe tener al menos una línea"}
	case in.Supplier == nil:
		return &DocumentBuildError{Field: "supplier", Message: "perfil del proveedor no configurado"}
	case strings.TrimSpace(in.Supplier.TIN) == "":
		return &DocumentBuildError{Field: "supplier.tin", Message: "TIN del proveedor requerido"}
	case strings.TrimSpace(in.Supplier.MSICCode) == "":
		return &DocumentBuildError{Field: "supplier.msicCode", Message: "código MSIC requerido"}
	case strings.TrimSpace(in.Supplier.BusinessActivity) == "":
		return &DocumentBuildError{Field: "supplier.businessActivity", Message: "descripción de actividad requerida"}
	case strings.TrimSpace(in.Supplier.RegisteredName) == "":
		return &DocumentBuildError{Field: "supplier.registeredName", Message: "razón social requerida"}
	case in.InvoiceType.IsAmendment() && (in.Original == nil || in.Original.UUID == ""):
		return &DocumentBuildError{Field: "billingReference.uuid", Message: "UUID LHDN del documento original no disponible"}
	}
	return nil
}

// ── partes ───────────────────────────────────────────────────────────────────

func (b *DocumentBuilder) supplierParty(s *entity.SupplierProfile) Party {
	regType := s.RegistrationType
	if regType == "" {
		regType = SchemeBRN
	}
	return Party{
		IndustryCode:        strings.TrimSpace(s.MSICCode),
		IndustryDescription: text(s.BusinessActivity),
		Identifications: []Identification{
			{SchemeID: SchemeTIN, ID: myinvois.NormalizeTIN(s.TIN)},
			{SchemeID: strings.ToUpper(regType), ID: orNA(s.BRN)},
			{SchemeID: SchemeSST, ID: orNA(s.SSTNumber)},
			{SchemeID: SchemeTTX, ID: orNA(s.TourismTaxNumber)},
		},
		RegistrationName: text(s.RegisteredName),
		Address:          b.postalAddress(s.Address),
		Contact:          newContact(s.Phone, s.Email),
	}
}

// customerParty el TIN siempre se emite: sin TIN se usa el TIN genérico LHDN.
// El número de registro solo sale de RegistrationNumber (nunca del código interno del cliente).
func (b *DocumentBuilder) customerParty(c *entity.Customer) Party {
	tin := myinvois.NormalizeTIN(c.TIN)
	if tin == "" {
		tin = myinvois.GeneralPublicTIN
	}
	regType := c.RegistrationType
	if regType == "" {
		regType = SchemeBRN
	}
	return Party{
		Identifications: []Identification{
			{SchemeID: SchemeTIN, ID: tin},
			{SchemeID: strings.ToUpper(regType), ID: orNA(c.RegistrationNumber)},
			{SchemeID: SchemeSST, ID: orNA(c.SSTNumber)},
		},
		RegistrationName: text(c.Name),
		Address:          b.postalAddress(c.Address),
		Contact:          newContact(c.Phone, c.Email),
	}
}

func (b *DocumentBuilder) postalAddress(a entity.Address) PostalAddress {
	lines := make([]string, 0, 3)
	for _, l := range []string{a.Line1, a.Line2, a.Line3} {
		if t := text(l); t != "" {
			lines = append(lines, t)
		}
	}
	if len(lines) == 0 {
		lines = append(lines, DefaultAddressLine)
	}
	city := text(a.City)
	if city == "" {
		city = DefaultCityName
	}
	country := strings.ToUpper(strings.TrimSpace(a.Country))
	if country == "" {
		country = b.tables.DefaultCountryCode
	}
	return PostalAddress{
		Lines:       lines,
		CityName:    city,
		PostalZone:  strings.TrimSpace(a.PostalCode),
		StateCode:   b.tables.StateCode(a.State),
		CountryCode: country,
	}
}

// ── impuestos y líneas ───────────────────────────────────────────────────────

func (b *DocumentBuilder) taxSubtotal(category string, rate, taxable, tax decimal.Decimal) TaxSubtotal {
	st := TaxSubtotal{
		TaxableAmount: taxable,
		TaxAmount:     tax,
		Percent:       rate,
		CategoryID:    category,
	}
	if category == myinvois.TaxTypeExempt {
		st.ExemptionReason = b.tables.TaxTypeDescription(myinvois.TaxTypeExempt)
	}
	return st
}

func (b *DocumentBuilder) line(n int, it *entity.EInvoiceItem) Line {
	category := domainmyinvois.TaxCategory(it.TaxRate, b.tables)
	gross := it.Quantity.Mul(it.UnitPrice)
	taxable := it.TaxableAmount()
	return Line{
		ID:                  strconv.Itoa(n),
		Quantity:            it.Quantity,
		UnitCode:            b.tables.UnitCode(it.UnitCode),
		LineExtensionAmount: taxable,
		AllowanceCharge:     newLineDiscount(it.DiscountAmount, it.DiscountRate),
		TaxTotal: TaxTotal{
			TaxAmount: it.TaxAmount,
			Subtotals: []TaxSubtotal{b.taxSubtotal(category, it.TaxRate, taxable, it.TaxAmount)},
		},
		Description:        text(it.Description),
		ClassificationCode: b.tables.ClassificationCode(it.ClassificationCode),
		ProductCode:        text(it.ProductCode),
		PriceAmount:        it.UnitPrice,
		ItemPriceExtension: gross,
	}
}

// ── helpers privados ─────────────────────────────────────────────────────────

// text normaliza a NFC y recorta espacios para que los bytes serializados sean estables.
func text(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

func orNA(s string) string {
	if t := strings.TrimSpace(s); t != "" {
		return t
	}
	return myinvois.NotApplicable
}
