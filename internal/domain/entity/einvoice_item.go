package entity

import "github.com/shopspring/decimal"

// EInvoiceItem foto inmutable de una línea de la factura al momento de crear la e-Invoice.
// Ediciones posteriores a la factura comercial no alteran un documento ya enviado.
type EInvoiceItem struct {
	ID                 string
	EInvoiceID         string
	ProductID          string
	ProductCode        string
	Description        string
	ClassificationCode string
	Quantity           decimal.Decimal
	UnitCode           string
	UnitPrice          decimal.Decimal
	TaxType            string
	TaxRate            decimal.Decimal // porcentaje, ej: 6 = 6%
	TaxAmount          decimal.Decimal
	Subtotal           decimal.Decimal // cantidad × precio unitario (bruto)
	DiscountAmount     decimal.Decimal
	DiscountRate       decimal.Decimal
	TotalAmount        decimal.Decimal // subtotal - descuento + impuesto
	SortOrder          int
}

// TaxableAmount base gravable de la línea: cantidad × precio − descuento.
func (i *EInvoiceItem) TaxableAmount() decimal.Decimal {
	return i.Quantity.Mul(i.UnitPrice).Sub(i.DiscountAmount)
}
