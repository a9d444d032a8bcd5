package myinvois

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Bloques opcionales: cada constructor devuelve nil cuando no hay datos,
// y el documento solo los incluye cuando no son nil.

func newBillingReference(orig *OriginalReference) *BillingReference {
	if orig == nil || orig.UUID == "" {
		return nil
	}
	return &BillingReference{ID: text(orig.Number), UUID: strings.TrimSpace(orig.UUID)}
}

func (b *DocumentBuilder) newPaymentMeans(mode, payeeAccount string) *PaymentMeans {
	code, ok := b.tables.PaymentModeCode(mode)
	if !ok {
		return nil
	}
	return &PaymentMeans{Code: code, PayeeAccount: strings.TrimSpace(payeeAccount)}
}

func newPaymentTerms(note string) *PaymentTerms {
	if t := text(note); t != "" {
		return &PaymentTerms{Note: t}
	}
	return nil
}

func newTaxExchangeRate(source string, rate decimal.Decimal) *TaxExchangeRate {
	if !rate.IsPositive() {
		return nil
	}
	return &TaxExchangeRate{SourceCurrency: source, TargetCurrency: "MYR", Rate: rate}
}

func newContact(phone, email string) *Contact {
	p, e := strings.TrimSpace(phone), strings.TrimSpace(email)
	if p == "" && e == "" {
		return nil
	}
	return &Contact{Telephone: p, Email: e}
}

// newLineDiscount descuento de línea; rate viene en porcentaje (10 = 10%).
func newLineDiscount(amount, rate decimal.Decimal) *AllowanceCharge {
	if !amount.IsPositive() {
		return nil
	}
	return &AllowanceCharge{
		ChargeIndicator: false,
		Reason:          "Discount",
		Rate:            rate.Div(hundred),
		Amount:          amount,
	}
}
