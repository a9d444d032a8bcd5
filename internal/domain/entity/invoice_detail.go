package entity

import "github.com/shopspring/decimal"

// InvoiceLine representa una línea de detalle de la factura comercial.
type InvoiceLine struct {
	ID             string
	InvoiceID      string
	ProductID      string
	ProductCode    string
	Description    string
	Category       string // categoría interna; se traduce a código de clasificación LHDN
	Unit           string // unidad interna; se traduce a código UN/ECE
	Quantity       decimal.Decimal
	UnitPrice      decimal.Decimal
	TaxType        string          // código LHDN (01..06, E); vacío = según tasa
	TaxRate        decimal.Decimal // porcentaje, ej: 6 = 6%
	TaxAmount      decimal.Decimal
	DiscountAmount decimal.Decimal
	DiscountRate   decimal.Decimal
	Subtotal       decimal.Decimal // cantidad × precio (bruto)
	TotalAmount    decimal.Decimal
	SortOrder      int
}
