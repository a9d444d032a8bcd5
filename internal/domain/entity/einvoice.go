package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// EInvoiceStatus estado del ciclo de vida de la factura electrónica LHDN.
type EInvoiceStatus string

const (
	EInvoiceStatusDraft     EInvoiceStatus = "DRAFT"     // Creada desde la factura comercial
	EInvoiceStatusPending   EInvoiceStatus = "PENDING"   // Reservada para envío (antes de llamar a LHDN)
	EInvoiceStatusSubmitted EInvoiceStatus = "SUBMITTED" // Aceptada por LHDN, validación en curso
	EInvoiceStatusValid     EInvoiceStatus = "VALID"     // Validada por LHDN
	EInvoiceStatusInvalid   EInvoiceStatus = "INVALID"   // Rechazada por LHDN (requiere reconstruir)
	EInvoiceStatusError     EInvoiceStatus = "ERROR"     // Falla de transporte, reintentable
	EInvoiceStatusCancelled EInvoiceStatus = "CANCELLED" // Terminal
	EInvoiceStatusRejected  EInvoiceStatus = "REJECTED"  // Terminal, asignado por sincronización
)

// AllEInvoiceStatuses en orden de ciclo de vida (para resúmenes y pruebas).
var AllEInvoiceStatuses = []EInvoiceStatus{
	EInvoiceStatusDraft, EInvoiceStatusPending, EInvoiceStatusSubmitted, EInvoiceStatusValid,
	EInvoiceStatusInvalid, EInvoiceStatusError, EInvoiceStatusCancelled, EInvoiceStatusRejected,
}

// IsActive indica si el estado cuenta para la regla "una sola e-Invoice activa por factura".
// CANCELLED, REJECTED y ERROR no cuentan.
func (s EInvoiceStatus) IsActive() bool {
	switch s {
	case EInvoiceStatusCancelled, EInvoiceStatusRejected, EInvoiceStatusError:
		return false
	}
	return true
}

// IsTerminal indica si el estado no admite más transiciones.
func (s EInvoiceStatus) IsTerminal() bool {
	return s == EInvoiceStatusCancelled || s == EInvoiceStatusRejected
}

// InvoiceType tipo de documento electrónico.
type InvoiceType string

const (
	InvoiceTypeInvoice    InvoiceType = "INVOICE"
	InvoiceTypeCreditNote InvoiceType = "CREDIT_NOTE"
	InvoiceTypeDebitNote  InvoiceType = "DEBIT_NOTE"
	InvoiceTypeRefundNote InvoiceType = "REFUND_NOTE"
)

// IsAmendment true para notas de crédito, débito y reembolso (requieren documento original).
func (t InvoiceType) IsAmendment() bool {
	return t == InvoiceTypeCreditNote || t == InvoiceTypeDebitNote || t == InvoiceTypeRefundNote
}

// Valid indica si el tipo es uno de los cuatro soportados.
func (t InvoiceType) Valid() bool {
	return t == InvoiceTypeInvoice || t.IsAmendment()
}

// Formatos de documento aceptados por MyInvois.
const (
	DocumentFormatJSON = "JSON"
	DocumentFormatXML  = "XML"
)

// EInvoice registro de cumplimiento: una factura electrónica LHDN asociada a una factura comercial.
type EInvoice struct {
	ID          string
	TenantID    string
	InvoiceID   string // factura comercial de origen (solo lectura para este módulo)
	InvoiceType InvoiceType
	Status      EInvoiceStatus
	Version     int // versión optimista; se incrementa en cada escritura condicional

	// Correlación LHDN: se asignan una sola vez cuando LHDN acepta el documento.
	LhdnUUID          string
	LhdnLongID        string
	LhdnSubmissionUID string

	// Artefactos del documento.
	DocumentFormat  string
	RequestDocument string // documento serializado (JSON o XML) tal como se envió
	DocumentHash    string // SHA-256 hex del documento serializado
	SubmittedDigest string // huella del contenido del último documento enviado a LHDN
	ResponseJSON    string // última respuesta cruda de LHDN

	// Resultado de validación/rechazo de LHDN.
	ErrorCode        string
	ErrorMessage     string
	ValidationErrors string // JSON con la lista de errores devueltos por LHDN

	RetryCount  int
	LastRetryAt *time.Time

	SubmittedAt *time.Time
	ValidatedAt *time.Time
	CancelledAt *time.Time
	RejectedAt  *time.Time

	CancelReason       string
	OriginalEInvoiceID string // notas de crédito/débito/reembolso

	// Totales copiados de la factura al crear (para listados y resúmenes).
	InvoiceNumber string
	Currency      string
	TotalAmount   decimal.Decimal

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasDocument indica si ya existe un documento construido y su hash en caché.
func (e *EInvoice) HasDocument() bool {
	return e.DocumentHash != "" && e.RequestDocument != ""
}

// Clone copia superficial del registro (los punteros de tiempo se copian por valor).
func (e *EInvoice) Clone() *EInvoice {
	c := *e
	c.LastRetryAt = copyTime(e.LastRetryAt)
	c.SubmittedAt = copyTime(e.SubmittedAt)
	c.ValidatedAt = copyTime(e.ValidatedAt)
	c.CancelledAt = copyTime(e.CancelledAt)
	c.RejectedAt = copyTime(e.RejectedAt)
	return &c
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
