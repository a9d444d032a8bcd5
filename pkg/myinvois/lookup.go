package myinvois

import "strings"

// UnitCode resuelve la unidad interna (ej: "pcs", "kg") al código UN/ECE.
// Si el valor ya es un código conocido se devuelve tal cual; si no, DefaultUnitCode.
func (t *CodeTables) UnitCode(unit string) string {
	u := strings.TrimSpace(unit)
	if u == "" {
		return t.DefaultUnitCode
	}
	if code, ok := t.unitCodes[strings.ToLower(u)]; ok {
		return code
	}
	for _, code := range t.unitCodes {
		if code == u {
			return code
		}
	}
	return t.DefaultUnitCode
}

// ClassificationCode resuelve la categoría interna al código de clasificación LHDN.
// Acepta también un código numérico de 3 dígitos ya resuelto.
func (t *CodeTables) ClassificationCode(category string) string {
	c := strings.TrimSpace(category)
	if c == "" {
		return t.DefaultClassificationCode
	}
	if code, ok := t.classificationCode[strings.ToLower(c)]; ok {
		return code
	}
	if len(c) == 3 && isDigits(c) {
		return c
	}
	return t.DefaultClassificationCode
}

// PaymentModeCode resuelve el modo de pago interno. El segundo valor es false si no hay modo de pago;
// en ese caso el bloque PaymentMeans se omite.
func (t *CodeTables) PaymentModeCode(mode string) (string, bool) {
	m := strings.TrimSpace(mode)
	if m == "" {
		return "", false
	}
	if code, ok := t.paymentModes[strings.ToLower(m)]; ok {
		return code, true
	}
	if len(m) == 2 && isDigits(m) && m >= PaymentModeCash && m <= PaymentModeOthers {
		return m, true
	}
	return PaymentModeOthers, true
}

// StateCode resuelve el nombre del estado malasio al código LHDN; DefaultStateCode si no se reconoce.
func (t *CodeTables) StateCode(state string) string {
	s := strings.ToLower(strings.TrimSpace(state))
	if s == "" {
		return t.DefaultStateCode
	}
	if code, ok := t.stateCodes[s]; ok {
		return code
	}
	if len(s) == 2 && isDigits(s) && s >= "01" && s <= StateNotApplicable {
		return s
	}
	return t.DefaultStateCode
}

// InvoiceTypeCode devuelve el código LHDN del tipo de documento interno (INVOICE, CREDIT_NOTE, ...).
func (t *CodeTables) InvoiceTypeCode(invoiceType string) (string, bool) {
	code, ok := t.invoiceTypes[strings.ToUpper(strings.TrimSpace(invoiceType))]
	return code, ok
}

// IsKnownTaxType indica si el código de impuesto existe en la tabla LHDN.
func (t *CodeTables) IsKnownTaxType(code string) bool {
	_, ok := t.taxTypes[code]
	return ok
}

// TaxTypeDescription descripción del tipo de impuesto (vacío si no existe).
func (t *CodeTables) TaxTypeDescription(code string) string {
	return t.taxTypes[code]
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
