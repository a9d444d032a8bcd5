package myinvois

import (
	"bytes"
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Namespaces del envoltorio JSON de MyInvois.
const (
	NsInvoice = "urn:oasis:names:specification:ubl:schema:xsd:Invoice-2"
	NsCac     = "urn:oasis:names:specification:ubl:schema:xsd:CommonAggregateComponents-2"
	NsCbc     = "urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2"
	NsExt     = "urn:oasis:names:specification:ubl:schema:xsd:CommonExtensionComponents-2"
)

type obj = map[string]any

// MarshalJSON serializa el documento a la forma JSON de MyInvois:
// cada valor es un arreglo de objetos y el valor escalar va en "_".
// encoding/json ordena las claves de los mapas, así que la salida es estable byte a byte.
func MarshalJSON(doc *Document) ([]byte, error) {
	cur := doc.CurrencyCode
	inv := obj{
		"ID":                      val(doc.ID),
		"IssueDate":               val(doc.IssueDate),
		"IssueTime":               val(doc.IssueTime),
		"InvoiceTypeCode":         val(doc.TypeCode, "listVersionID", doc.TypeVersion),
		"DocumentCurrencyCode":    val(doc.CurrencyCode),
		"AccountingSupplierParty": one(obj{"Party": one(partyJSON(doc.Supplier))}),
		"AccountingCustomerParty": one(obj{"Party": one(partyJSON(doc.Customer))}),
		"TaxTotal":                one(taxTotalJSON(doc.TaxTotal, cur)),
		"LegalMonetaryTotal":      one(monetaryTotalJSON(doc.MonetaryTotal, cur)),
	}
	if doc.TaxCurrencyCode != "" {
		inv["TaxCurrencyCode"] = val(doc.TaxCurrencyCode)
	}
	if r := doc.BillingReference; r != nil {
		inv["BillingReference"] = one(obj{
			"InvoiceDocumentReference": one(obj{"ID": val(r.ID), "UUID": val(r.UUID)}),
		})
	}
	if pm := doc.PaymentMeans; pm != nil {
		m := obj{"PaymentMeansCode": val(pm.Code)}
		if pm.PayeeAccount != "" {
			m["PayeeFinancialAccount"] = one(obj{"ID": val(pm.PayeeAccount)})
		}
		inv["PaymentMeans"] = one(m)
	}
	if pt := doc.PaymentTerms; pt != nil {
		inv["PaymentTerms"] = one(obj{"Note": val(pt.Note)})
	}
	if x := doc.TaxExchangeRate; x != nil {
		inv["TaxExchangeRate"] = one(obj{
			"SourceCurrencyCode": val(x.SourceCurrency),
			"TargetCurrencyCode": val(x.TargetCurrency),
			"CalculationRate":    val(number(x.Rate)),
		})
	}
	lines := make([]any, 0, len(doc.Lines))
	for _, l := range doc.Lines {
		lines = append(lines, lineJSON(l, cur))
	}
	inv["InvoiceLine"] = lines

	envelope := obj{
		"_D":      NsInvoice,
		"_A":      NsCac,
		"_B":      NsCbc,
		"Invoice": one(inv),
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(envelope); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func partyJSON(p Party) obj {
	ids := make([]any, 0, len(p.Identifications))
	for _, id := range p.Identifications {
		ids = append(ids, obj{"ID": val(id.ID, "schemeID", id.SchemeID)})
	}
	out := obj{
		"PartyIdentification": ids,
		"PostalAddress":       one(addressJSON(p.Address)),
		"PartyLegalEntity":    one(obj{"RegistrationName": val(p.RegistrationName)}),
	}
	if p.IndustryCode != "" {
		out["IndustryClassificationCode"] = val(p.IndustryCode, "name", p.IndustryDescription)
	}
	if c := p.Contact; c != nil {
		contact := obj{}
		if c.Telephone != "" {
			contact["Telephone"] = val(c.Telephone)
		}
		if c.Email != "" {
			contact["ElectronicMail"] = val(c.Email)
		}
		out["Contact"] = one(contact)
	}
	return out
}

func addressJSON(a PostalAddress) obj {
	lines := make([]any, 0, len(a.Lines))
	for _, l := range a.Lines {
		lines = append(lines, obj{"Line": val(l)})
	}
	out := obj{
		"AddressLine":          lines,
		"CityName":             val(a.CityName),
		"CountrySubentityCode": val(a.StateCode),
		"Country": one(obj{
			"IdentificationCode": val(a.CountryCode, "listID", "ISO3166-1", "listAgencyID", "6"),
		}),
	}
	if a.PostalZone != "" {
		out["PostalZone"] = val(a.PostalZone)
	}
	return out
}

func taxTotalJSON(t TaxTotal, cur string) obj {
	subs := make([]any, 0, len(t.Subtotals))
	for _, s := range t.Subtotals {
		category := obj{
			"ID":      val(s.CategoryID),
			"Percent": val(number(s.Percent)),
			"TaxScheme": one(obj{
				"ID": val("OTH", "schemeID", "UN/ECE 5153", "schemeAgencyID", "6"),
			}),
		}
		if s.ExemptionReason != "" {
			category["TaxExemptionReason"] = val(s.ExemptionReason)
		}
		subs = append(subs, obj{
			"TaxableAmount": amount(s.TaxableAmount, cur),
			"TaxAmount":     amount(s.TaxAmount, cur),
			"TaxCategory":   one(category),
		})
	}
	return obj{
		"TaxAmount":   amount(t.TaxAmount, cur),
		"TaxSubtotal": subs,
	}
}

func monetaryTotalJSON(m MonetaryTotal, cur string) obj {
	out := obj{
		"LineExtensionAmount": amount(m.LineExtensionAmount, cur),
		"TaxExclusiveAmount":  amount(m.TaxExclusiveAmount, cur),
		"TaxInclusiveAmount":  amount(m.TaxInclusiveAmount, cur),
		"PayableAmount":       amount(m.PayableAmount, cur),
	}
	if m.AllowanceTotalAmount.IsPositive() {
		out["AllowanceTotalAmount"] = amount(m.AllowanceTotalAmount, cur)
	}
	return out
}

func lineJSON(l Line, cur string) obj {
	item := obj{
		"Description": val(l.Description),
		"CommodityClassification": one(obj{
			"ItemClassificationCode": val(l.ClassificationCode, "listID", "CLASS"),
		}),
	}
	if l.ProductCode != "" {
		item["SellersItemIdentification"] = one(obj{"ID": val(l.ProductCode)})
	}
	out := obj{
		"ID":                  val(l.ID),
		"InvoicedQuantity":    val(number(l.Quantity), "unitCode", l.UnitCode),
		"LineExtensionAmount": amount(l.LineExtensionAmount, cur),
		"TaxTotal":            one(taxTotalJSON(l.TaxTotal, cur)),
		"Item":                one(item),
		"Price":               one(obj{"PriceAmount": amount(l.PriceAmount, cur)}),
		"ItemPriceExtension":  one(obj{"Amount": amount(l.ItemPriceExtension, cur)}),
	}
	if ac := l.AllowanceCharge; ac != nil {
		charge := obj{
			"ChargeIndicator":       val(ac.ChargeIndicator),
			"AllowanceChargeReason": val(ac.Reason),
			"Amount":                amount(ac.Amount, cur),
		}
		if ac.Rate.IsPositive() {
			charge["MultiplierFactorNumeric"] = val(number(ac.Rate))
		}
		out["AllowanceCharge"] = one(charge)
	}
	return out
}

// ── helpers privados ─────────────────────────────────────────────────────────

// val arma [{"_": v, attr1: v1, ...}] con pares clave/valor de atributos.
func val(v any, attrs ...string) []any {
	o := obj{"_": v}
	for i := 0; i+1 < len(attrs); i += 2 {
		o[attrs[i]] = attrs[i+1]
	}
	return []any{o}
}

func one(o obj) []any { return []any{o} }

// amount monto con 2 decimales como número JSON, con su moneda.
func amount(d decimal.Decimal, currency string) []any {
	return val(json.Number(d.Round(2).StringFixed(2)), "currencyID", currency)
}

// number decimal como número JSON sin ceros de relleno.
func number(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}
