package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Invoice representa la cabecera de la factura comercial de origen.
// Este módulo la lee (nunca la modifica) para crear la e-Invoice.
type Invoice struct {
	ID           string
	TenantID     string
	Number       string
	Date         time.Time
	DueDate      *time.Time
	Currency     string          // ISO 4217; vacío = MYR
	ExchangeRate decimal.Decimal // tasa hacia MYR; obligatoria si Currency != MYR

	Subtotal       decimal.Decimal // suma bruta cantidad × precio
	DiscountAmount decimal.Decimal // suma de descuentos de línea
	TaxAmount      decimal.Decimal
	TotalAmount    decimal.Decimal // subtotal - descuento + impuesto

	PaymentMode  string // alias interno (cash, bank_transfer, ...); vacío = sin PaymentMeans
	PaymentTerms string // texto libre; vacío = sin PaymentTerms
	Notes        string

	Customer *Customer
	Lines    []*InvoiceLine

	CreatedAt time.Time
	UpdatedAt time.Time
}

// InvoiceCurrency moneda efectiva de la factura (MYR por defecto).
func (inv *Invoice) InvoiceCurrency() string {
	if inv.Currency == "" {
		return "MYR"
	}
	return inv.Currency
}
