package myinvois

import (
	"fmt"
	"strings"

	"github.com/jhoicas/myinvois-api/internal/domain"
	"github.com/jhoicas/myinvois-api/internal/domain/entity"
	pkgmyinvois "github.com/jhoicas/myinvois-api/pkg/myinvois"
)

// Códigos de problemas de validación local.
const (
	IssueSupplierMissing         = "SUPPLIER_PROFILE_MISSING"
	IssueSupplierTINRequired     = "SUPPLIER_TIN_REQUIRED"
	IssueSupplierTINInvalid      = "SUPPLIER_TIN_INVALID"
	IssueSupplierMSICRequired    = "SUPPLIER_MSIC_REQUIRED"
	IssueSupplierMSICInvalid     = "SUPPLIER_MSIC_INVALID"
	IssueSupplierActivity        = "SUPPLIER_ACTIVITY_REQUIRED"
	IssueSupplierNameRequired    = "SUPPLIER_NAME_REQUIRED"
	IssueCustomerRequired        = "CUSTOMER_REQUIRED"
	IssueCustomerNameRequired    = "CUSTOMER_NAME_REQUIRED"
	IssueCustomerTINInvalid      = "CUSTOMER_TIN_INVALID"
	IssueItemsRequired           = "ITEMS_REQUIRED"
	IssueItemQuantity            = "ITEM_QUANTITY_INVALID"
	IssueItemUnitPrice           = "ITEM_UNIT_PRICE_INVALID"
	IssueItemTaxRate             = "ITEM_TAX_RATE_INVALID"
	IssueItemTaxType             = "ITEM_TAX_TYPE_INVALID"
	IssueItemSubtotal            = "ITEM_SUBTOTAL_MISMATCH"
	IssueItemTax                 = "ITEM_TAX_MISMATCH"
	IssueTaxableMismatch         = "TAXABLE_AMOUNT_MISMATCH"
	IssueTaxMismatch             = "TAX_AMOUNT_MISMATCH"
	IssueTotalMismatch           = "TOTAL_AMOUNT_MISMATCH"
	IssueExchangeRateRequired    = "EXCHANGE_RATE_REQUIRED"
	IssueInvoiceTypeInvalid      = "INVOICE_TYPE_INVALID"
	IssueOriginalDocumentMissing = "ORIGINAL_DOCUMENT_REQUIRED"
	IssueDocumentBuild           = "DOCUMENT_BUILD"
	IssueDocumentUnchanged       = "DOCUMENT_UNCHANGED"
	IssueCancelReasonRequired    = "CANCEL_REASON_REQUIRED"
)

// SubmissionInput todo lo que se valida antes de construir y enviar un documento.
type SubmissionInput struct {
	EInvoice     *entity.EInvoice
	Invoice      *entity.Invoice // cabecera de origen: comprador, moneda y totales
	Items        []*entity.EInvoiceItem
	Supplier     *entity.SupplierProfile
	OriginalUUID string // UUID LHDN del documento original (solo notas)
}

// ValidateSubmission recolecta todos los problemas a la vez; lista vacía = válido.
func ValidateSubmission(in SubmissionInput, tables *pkgmyinvois.CodeTables) []domain.ValidationIssue {
	var issues []domain.ValidationIssue
	add := func(code, field, format string, args ...any) {
		issues = append(issues, domain.ValidationIssue{Code: code, Field: field, Message: fmt.Sprintf(format, args...)})
	}

	issues = append(issues, ValidateSupplier(in.Supplier)...)

	if in.EInvoice != nil {
		if !in.EInvoice.InvoiceType.Valid() {
			add(IssueInvoiceTypeInvalid, "invoiceType", "tipo de documento %q no soportado", in.EInvoice.InvoiceType)
		} else if in.EInvoice.InvoiceType.IsAmendment() && in.OriginalUUID == "" {
			add(IssueOriginalDocumentMissing, "originalEInvoiceId",
				"las notas de crédito, débito y reembolso requieren el UUID LHDN del documento original")
		}
	}

	if in.Invoice == nil {
		add(IssueCustomerRequired, "invoice", "no se encontró la factura de origen")
		return issues
	}

	// ── comprador ──
	c := in.Invoice.Customer
	switch {
	case c == nil:
		add(IssueCustomerRequired, "customer", "la factura no tiene comprador")
	default:
		if strings.TrimSpace(c.Name) == "" {
			add(IssueCustomerNameRequired, "customer.name", "el nombre del comprador es obligatorio")
		}
		if c.TIN != "" {
			if err := pkgmyinvois.ValidateTIN(c.TIN); err != nil {
				add(IssueCustomerTINInvalid, "customer.tin", "%v", err)
			}
		}
	}

	if in.Invoice.InvoiceCurrency() != pkgmyinvois.CurrencyMYR && !in.Invoice.ExchangeRate.IsPositive() {
		add(IssueExchangeRateRequired, "exchangeRate",
			"la moneda %s requiere tasa de cambio a MYR", in.Invoice.InvoiceCurrency())
	}

	// ── líneas ──
	if len(in.Items) == 0 {
		add(IssueItemsRequired, "items", "la factura debe tener al menos una línea")
		return issues
	}
	for i, it := range in.Items {
		f := func(name string) string { return fmt.Sprintf("items[%d].%s", i, name) }
		if !it.Quantity.IsPositive() {
			add(IssueItemQuantity, f("quantity"), "la cantidad debe ser mayor que cero (%s)", it.Quantity)
		}
		if it.UnitPrice.IsNegative() {
			add(IssueItemUnitPrice, f("unitPrice"), "el precio unitario no puede ser negativo (%s)", it.UnitPrice)
		}
		if it.TaxRate.IsNegative() {
			add(IssueItemTaxRate, f("taxRate"), "la tasa de impuesto no puede ser negativa (%s)", it.TaxRate)
		}
		if it.TaxType != "" && !tables.IsKnownTaxType(it.TaxType) {
			add(IssueItemTaxType, f("taxType"), "tipo de impuesto %q desconocido", it.TaxType)
		}
		gross := it.Quantity.Mul(it.UnitPrice)
		if !WithinTolerance(gross, it.Subtotal) {
			add(IssueItemSubtotal, f("subtotal"), "subtotal %s no coincide con cantidad × precio %s",
				it.Subtotal.StringFixed(2), gross.StringFixed(2))
		}
		expectedTax := it.TaxableAmount().Mul(it.TaxRate).Div(hundred)
		if !WithinTolerance(expectedTax, it.TaxAmount) {
			add(IssueItemTax, f("taxAmount"), "impuesto %s no coincide con base × tasa %s",
				it.TaxAmount.StringFixed(2), expectedTax.StringFixed(2))
		}
	}

	// ── conciliación de totales ──
	inv := in.Invoice
	groups := GroupTaxes(in.Items, tables)
	taxable, tax := SumTaxGroups(groups)
	net := inv.Subtotal.Sub(inv.DiscountAmount)
	if !WithinTolerance(taxable, net) {
		add(IssueTaxableMismatch, "subtotal",
			"suma de bases gravables %s no coincide con subtotal - descuento %s", taxable.StringFixed(2), net.StringFixed(2))
	}
	if !WithinTolerance(tax, inv.TaxAmount) {
		add(IssueTaxMismatch, "taxAmount",
			"suma de impuestos por tasa %s no coincide con el impuesto de la factura %s", tax.StringFixed(2), inv.TaxAmount.StringFixed(2))
	}
	expectedTotal := net.Add(inv.TaxAmount)
	if !WithinTolerance(expectedTotal, inv.TotalAmount) {
		add(IssueTotalMismatch, "totalAmount",
			"total %s no coincide con subtotal - descuento + impuesto %s", inv.TotalAmount.StringFixed(2), expectedTotal.StringFixed(2))
	}
	return issues
}

// ValidateSupplier campos obligatorios de identidad del emisor. Nunca se rellenan por defecto.
func ValidateSupplier(s *entity.SupplierProfile) []domain.ValidationIssue {
	if s == nil {
		return []domain.ValidationIssue{{
			Code: IssueSupplierMissing, Field: "supplier",
			Message: "el tenant no tiene configurado el perfil de proveedor MyInvois",
		}}
	}
	var issues []domain.ValidationIssue
	switch {
	case strings.TrimSpace(s.TIN) == "":
		issues = append(issues, domain.ValidationIssue{Code: IssueSupplierTINRequired, Field: "supplier.tin", Message: "TIN del proveedor no configurado"})
	default:
		if err := pkgmyinvois.ValidateTIN(s.TIN); err != nil {
			issues = append(issues, domain.ValidationIssue{Code: IssueSupplierTINInvalid, Field: "supplier.tin", Message: err.Error()})
		}
	}
	switch {
	case strings.TrimSpace(s.MSICCode) == "":
		issues = append(issues, domain.ValidationIssue{Code: IssueSupplierMSICRequired, Field: "supplier.msicCode", Message: "código MSIC no configurado"})
	default:
		if err := pkgmyinvois.ValidateMSIC(s.MSICCode); err != nil {
			issues = append(issues, domain.ValidationIssue{Code: IssueSupplierMSICInvalid, Field: "supplier.msicCode", Message: err.Error()})
		}
	}
	if strings.TrimSpace(s.BusinessActivity) == "" {
		issues = append(issues, domain.ValidationIssue{Code: IssueSupplierActivity, Field: "supplier.businessActivity", Message: "descripción de actividad comercial no configurada"})
	}
	if strings.TrimSpace(s.RegisteredName) == "" {
		issues = append(issues, domain.ValidationIssue{Code: IssueSupplierNameRequired, Field: "supplier.registeredName", Message: "razón social registrada no configurada"})
	}
	return issues
}

// AsError convierte la lista en *domain.ValidationError (nil si está vacía).
func AsError(issues []domain.ValidationIssue) error {
	if len(issues) == 0 {
		return nil
	}
	return &domain.ValidationError{Issues: issues}
}
