package myinvois

import (
	"bytes"
	"encoding/xml"

	"github.com/shopspring/decimal"
	"github.com/ucarion/c14n"
)

// MarshalXML serializa el documento como UBL 2.1 XML y lo canoniza (C14N).
// Con signed=true deja ext:UBLExtensions como primer hijo, con un ExtensionContent vacío
// donde el firmador inyecta ds:Signature.
func MarshalXML(doc *Document, signed bool) ([]byte, error) {
	var buf bytes.Buffer
	w := &xmlWriter{enc: xml.NewEncoder(&buf)}
	cur := doc.CurrencyCode

	attrs := []string{"xmlns", NsInvoice, "xmlns:cac", NsCac, "xmlns:cbc", NsCbc}
	if signed {
		attrs = append(attrs, "xmlns:ext", NsExt)
	}
	w.start("Invoice", attrs...)

	if signed {
		w.start("ext:UBLExtensions")
		w.start("ext:UBLExtension")
		w.leaf("ext:ExtensionURI", "urn:oasis:names:specification:ubl:dsig:enveloped:xades")
		w.start("ext:ExtensionContent")
		w.end("ext:ExtensionContent")
		w.end("ext:UBLExtension")
		w.end("ext:UBLExtensions")
	}

	w.leaf("cbc:ID", doc.ID)
	w.leaf("cbc:IssueDate", doc.IssueDate)
	w.leaf("cbc:IssueTime", doc.IssueTime)
	w.leaf("cbc:InvoiceTypeCode", doc.TypeCode, "listVersionID", doc.TypeVersion)
	w.leaf("cbc:DocumentCurrencyCode", doc.CurrencyCode)
	if doc.TaxCurrencyCode != "" {
		w.leaf("cbc:TaxCurrencyCode", doc.TaxCurrencyCode)
	}

	if r := doc.BillingReference; r != nil {
		w.start("cac:BillingReference")
		w.start("cac:InvoiceDocumentReference")
		w.leaf("cbc:ID", r.ID)
		w.leaf("cbc:UUID", r.UUID)
		w.end("cac:InvoiceDocumentReference")
		w.end("cac:BillingReference")
	}

	w.start("cac:AccountingSupplierParty")
	w.party(doc.Supplier)
	w.end("cac:AccountingSupplierParty")
	w.start("cac:AccountingCustomerParty")
	w.party(doc.Customer)
	w.end("cac:AccountingCustomerParty")

	if pm := doc.PaymentMeans; pm != nil {
		w.start("cac:PaymentMeans")
		w.leaf("cbc:PaymentMeansCode", pm.Code)
		if pm.PayeeAccount != "" {
			w.start("cac:PayeeFinancialAccount")
			w.leaf("cbc:ID", pm.PayeeAccount)
			w.end("cac:PayeeFinancialAccount")
		}
		w.end("cac:PaymentMeans")
	}
	if pt := doc.PaymentTerms; pt != nil {
		w.start("cac:PaymentTerms")
		w.leaf("cbc:Note", pt.Note)
		w.end("cac:PaymentTerms")
	}
	if x := doc.TaxExchangeRate; x != nil {
		w.start("cac:TaxExchangeRate")
		w.leaf("cbc:SourceCurrencyCode", x.SourceCurrency)
		w.leaf("cbc:TargetCurrencyCode", x.TargetCurrency)
		w.leaf("cbc:CalculationRate", x.Rate.String())
		w.end("cac:TaxExchangeRate")
	}

	w.taxTotal(doc.TaxTotal, cur)

	m := doc.MonetaryTotal
	w.start("cac:LegalMonetaryTotal")
	w.amount("cbc:LineExtensionAmount", m.LineExtensionAmount, cur)
	w.amount("cbc:TaxExclusiveAmount", m.TaxExclusiveAmount, cur)
	w.amount("cbc:TaxInclusiveAmount", m.TaxInclusiveAmount, cur)
	if m.AllowanceTotalAmount.IsPositive() {
		w.amount("cbc:AllowanceTotalAmount", m.AllowanceTotalAmount, cur)
	}
	w.amount("cbc:PayableAmount", m.PayableAmount, cur)
	w.end("cac:LegalMonetaryTotal")

	for _, l := range doc.Lines {
		w.line(l, cur)
	}

	w.end("Invoice")
	if w.err != nil {
		return nil, w.err
	}
	if err := w.enc.Flush(); err != nil {
		return nil, err
	}
	return Canonicalize(buf.Bytes())
}

// Canonicalize aplica C14N inclusivo al XML.
func Canonicalize(data []byte) ([]byte, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Entity = map[string]string{}
	return c14n.Canonicalize(dec)
}

// xmlWriter escribe tokens con prefijos explícitos (cac:, cbc:, ext:) y guarda el primer error.
type xmlWriter struct {
	enc *xml.Encoder
	err error
}

func (w *xmlWriter) token(t xml.Token) {
	if w.err != nil {
		return
	}
	w.err = w.enc.EncodeToken(t)
}

func (w *xmlWriter) start(name string, attrs ...string) {
	el := xml.StartElement{Name: xml.Name{Local: name}}
	for i := 0; i+1 < len(attrs); i += 2 {
		el.Attr = append(el.Attr, xml.Attr{Name: xml.Name{Local: attrs[i]}, Value: attrs[i+1]})
	}
	w.token(el)
}

func (w *xmlWriter) end(name string) {
	w.token(xml.EndElement{Name: xml.Name{Local: name}})
}

func (w *xmlWriter) leaf(name, value string, attrs ...string) {
	w.start(name, attrs...)
	w.token(xml.CharData(value))
	w.end(name)
}

func (w *xmlWriter) amount(name string, d decimal.Decimal, currency string) {
	w.leaf(name, d.Round(2).StringFixed(2), "currencyID", currency)
}

func (w *xmlWriter) party(p Party) {
	w.start("cac:Party")
	if p.IndustryCode != "" {
		w.leaf("cbc:IndustryClassificationCode", p.IndustryCode, "name", p.IndustryDescription)
	}
	for _, id := range p.Identifications {
		w.start("cac:PartyIdentification")
		w.leaf("cbc:ID", id.ID, "schemeID", id.SchemeID)
		w.end("cac:PartyIdentification")
	}

	a := p.Address
	w.start("cac:PostalAddress")
	w.leaf("cbc:CityName", a.CityName)
	if a.PostalZone != "" {
		w.leaf("cbc:PostalZone", a.PostalZone)
	}
	w.leaf("cbc:CountrySubentityCode", a.StateCode)
	for _, l := range a.Lines {
		w.start("cac:AddressLine")
		w.leaf("cbc:Line", l)
		w.end("cac:AddressLine")
	}
	w.start("cac:Country")
	w.leaf("cbc:IdentificationCode", a.CountryCode, "listID", "ISO3166-1", "listAgencyID", "6")
	w.end("cac:Country")
	w.end("cac:PostalAddress")

	w.start("cac:PartyLegalEntity")
	w.leaf("cbc:RegistrationName", p.RegistrationName)
	w.end("cac:PartyLegalEntity")

	if c := p.Contact; c != nil {
		w.start("cac:Contact")
		if c.Telephone != "" {
			w.leaf("cbc:Telephone", c.Telephone)
		}
		if c.Email != "" {
			w.leaf("cbc:ElectronicMail", c.Email)
		}
		w.end("cac:Contact")
	}
	w.end("cac:Party")
}

func (w *xmlWriter) taxTotal(t TaxTotal, cur string) {
	w.start("cac:TaxTotal")
	w.amount("cbc:TaxAmount", t.TaxAmount, cur)
	for _, s := range t.Subtotals {
		w.start("cac:TaxSubtotal")
		w.amount("cbc:TaxableAmount", s.TaxableAmount, cur)
		w.amount("cbc:TaxAmount", s.TaxAmount, cur)
		w.start("cac:TaxCategory")
		w.leaf("cbc:ID", s.CategoryID)
		w.leaf("cbc:Percent", s.Percent.String())
		if s.ExemptionReason != "" {
			w.leaf("cbc:TaxExemptionReason", s.ExemptionReason)
		}
		w.start("cac:TaxScheme")
		w.leaf("cbc:ID", "OTH", "schemeID", "UN/ECE 5153", "schemeAgencyID", "6")
		w.end("cac:TaxScheme")
		w.end("cac:TaxCategory")
		w.end("cac:TaxSubtotal")
	}
	w.end("cac:TaxTotal")
}

func (w *xmlWriter) line(l Line, cur string) {
	w.start("cac:InvoiceLine")
	w.leaf("cbc:ID", l.ID)
	w.leaf("cbc:InvoicedQuantity", l.Quantity.String(), "unitCode", l.UnitCode)
	w.amount("cbc:LineExtensionAmount", l.LineExtensionAmount, cur)
	if ac := l.AllowanceCharge; ac != nil {
		w.start("cac:AllowanceCharge")
		indicator := "false"
		if ac.ChargeIndicator {
			indicator = "true"
		}
		w.leaf("cbc:ChargeIndicator", indicator)
		w.leaf("cbc:AllowanceChargeReason", ac.Reason)
		if ac.Rate.IsPositive() {
			w.leaf("cbc:MultiplierFactorNumeric", ac.Rate.String())
		}
		w.amount("cbc:Amount", ac.Amount, cur)
		w.end("cac:AllowanceCharge")
	}
	w.taxTotal(l.TaxTotal, cur)
	w.start("cac:Item")
	w.start("cac:CommodityClassification")
	w.leaf("cbc:ItemClassificationCode", l.ClassificationCode, "listID", "CLASS")
	w.end("cac:CommodityClassification")
	w.leaf("cbc:Description", l.Description)
	if l.ProductCode != "" {
		w.start("cac:SellersItemIdentification")
		w.leaf("cbc:ID", l.ProductCode)
		w.end("cac:SellersItemIdentification")
	}
	w.end("cac:Item")
	w.start("cac:Price")
	w.amount("cbc:PriceAmount", l.PriceAmount, cur)
	w.end("cac:Price")
	w.start("cac:ItemPriceExtension")
	w.amount("cbc:Amount", l.ItemPriceExtension, cur)
	w.end("cac:ItemPriceExtension")
	w.end("cac:InvoiceLine")
}
