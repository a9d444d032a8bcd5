package myinvois

import (
	"github.com/shopspring/decimal"

	"github.com/jhoicas/myinvois-api/internal/domain/entity"
	pkgmyinvois "github.com/jhoicas/myinvois-api/pkg/myinvois"
)

// Tolerance diferencia máxima aceptada al conciliar montos (0.01 unidades de moneda).
var Tolerance = decimal.New(1, -2)

var hundred = decimal.NewFromInt(100)

// WithinTolerance |a - b| <= 0.01.
func WithinTolerance(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(Tolerance)
}

// TaxGroup subtotal de impuesto para una tasa exacta.
type TaxGroup struct {
	Rate          decimal.Decimal
	Category      string // "E" para tasa 0; código estándar para tasa > 0
	TaxableAmount decimal.Decimal
	TaxAmount     decimal.Decimal
}

// TaxCategory código de categoría para una tasa: exenta (E) si es cero, estándar si es mayor.
func TaxCategory(rate decimal.Decimal, tables *pkgmyinvois.CodeTables) string {
	if rate.IsZero() {
		return pkgmyinvois.TaxTypeExempt
	}
	return tables.StandardTaxType
}

// GroupTaxes agrupa las líneas por tasa exacta (6 y 6.00 son la misma tasa) en orden de primera aparición.
// Base gravable por línea = cantidad × precio − descuento.
func GroupTaxes(items []*entity.EInvoiceItem, tables *pkgmyinvois.CodeTables) []TaxGroup {
	groups := make([]TaxGroup, 0, 2)
	for _, it := range items {
		idx := -1
		for i := range groups {
			if groups[i].Rate.Equal(it.TaxRate) {
				idx = i
				break
			}
		}
		if idx < 0 {
			groups = append(groups, TaxGroup{
				Rate:     it.TaxRate,
				Category: TaxCategory(it.TaxRate, tables),
			})
			idx = len(groups) - 1
		}
		groups[idx].TaxableAmount = groups[idx].TaxableAmount.Add(it.TaxableAmount())
		groups[idx].TaxAmount = groups[idx].TaxAmount.Add(it.TaxAmount)
	}
	return groups
}

// SumTaxGroups totales de base gravable e impuesto de todos los grupos.
func SumTaxGroups(groups []TaxGroup) (taxable, tax decimal.Decimal) {
	for _, g := range groups {
		taxable = taxable.Add(g.TaxableAmount)
		tax = tax.Add(g.TaxAmount)
	}
	return taxable, tax
}
