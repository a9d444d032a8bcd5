package dto

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/myinvois-api/internal/domain"
	"github.com/jhoicas/myinvois-api/internal/domain/entity"
)

// CreateEInvoiceRequest body para POST /api/einvoices.
type CreateEInvoiceRequest struct {
	InvoiceID          string `json:"invoice_id"`
	InvoiceType        string `json:"invoice_type,omitempty"` // vacío = INVOICE
	OriginalEInvoiceID string `json:"original_einvoice_id,omitempty"`
}

// CancelEInvoiceRequest body para POST /api/einvoices/:id/cancel.
type CancelEInvoiceRequest struct {
	Reason string `json:"reason"`
}

// BatchSubmitRequest body para POST /api/einvoices/batch/submit.
type BatchSubmitRequest struct {
	IDs []string `json:"ids"`
}

// EInvoiceResponse e-Invoice en respuestas. El documento solo se incluye en el detalle.
type EInvoiceResponse struct {
	ID                 string            `json:"id"`
	InvoiceID          string            `json:"invoice_id"`
	InvoiceNumber      string            `json:"invoice_number"`
	InvoiceType        string            `json:"invoice_type"`
	Status             string            `json:"status"`
	Version            int               `json:"version"`
	LhdnUUID           string            `json:"lhdn_uuid,omitempty"`
	LhdnLongID         string            `json:"lhdn_long_id,omitempty"`
	LhdnSubmissionUID  string            `json:"lhdn_submission_uid,omitempty"`
	DocumentFormat     string            `json:"document_format,omitempty"`
	DocumentHash       string            `json:"document_hash,omitempty"`
	Document           string            `json:"document,omitempty"`
	ErrorCode          string            `json:"error_code,omitempty"`
	ErrorMessage       string            `json:"error_message,omitempty"`
	ValidationErrors   json.RawMessage   `json:"validation_errors,omitempty"`
	RetryCount         int               `json:"retry_count"`
	LastRetryAt        *time.Time        `json:"last_retry_at,omitempty"`
	SubmittedAt        *time.Time        `json:"submitted_at,omitempty"`
	ValidatedAt        *time.Time        `json:"validated_at,omitempty"`
	CancelledAt        *time.Time        `json:"cancelled_at,omitempty"`
	RejectedAt         *time.Time        `json:"rejected_at,omitempty"`
	CancelReason       string            `json:"cancel_reason,omitempty"`
	OriginalEInvoiceID string            `json:"original_einvoice_id,omitempty"`
	Currency           string            `json:"currency"`
	TotalAmount        decimal.Decimal   `json:"total_amount"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
	Items              []EInvoiceItemDTO `json:"items,omitempty"`
}

// EInvoiceItemDTO línea congelada de la e-Invoice.
type EInvoiceItemDTO struct {
	ProductCode        string          `json:"product_code,omitempty"`
	Description        string          `json:"description"`
	ClassificationCode string          `json:"classification_code"`
	Quantity           decimal.Decimal `json:"quantity"`
	UnitCode           string          `json:"unit_code"`
	UnitPrice          decimal.Decimal `json:"unit_price"`
	TaxType            string          `json:"tax_type"`
	TaxRate            decimal.Decimal `json:"tax_rate"`
	TaxAmount          decimal.Decimal `json:"tax_amount"`
	DiscountAmount     decimal.Decimal `json:"discount_amount"`
	TotalAmount        decimal.Decimal `json:"total_amount"`
	SortOrder          int             `json:"sort_order"`
}

// EInvoiceLogDTO entrada de bitácora.
type EInvoiceLogDTO struct {
	ID           string    `json:"id"`
	Action       string    `json:"action"`
	Status       string    `json:"status"`
	Message      string    `json:"message"`
	ErrorCode    string    `json:"error_code,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// EInvoiceListResponse página de e-Invoices.
type EInvoiceListResponse struct {
	Items []EInvoiceResponse `json:"items"`
	PageResponse
}

// SubmitResponse resultado de submit/retry. Error se llena en rechazo o falla de transporte.
type SubmitResponse struct {
	Outcome  string           `json:"outcome"`
	EInvoice EInvoiceResponse `json:"einvoice"`
	Error    *ErrorResponse   `json:"error,omitempty"`
}

// BatchSubmitItem resultado por e-Invoice en un envío por lote.
type BatchSubmitItem struct {
	ID      string         `json:"id"`
	Outcome string         `json:"outcome,omitempty"`
	Status  string         `json:"status,omitempty"`
	Error   *ErrorResponse `json:"error,omitempty"`
}

// BatchSyncItem resultado por e-Invoice en una sincronización por lote.
type BatchSyncItem struct {
	ID       string         `json:"id"`
	Previous string         `json:"previous_status"`
	Current  string         `json:"current_status,omitempty"`
	Error    *ErrorResponse `json:"error,omitempty"`
}

// CanCancelResponse elegibilidad de cancelación.
type CanCancelResponse struct {
	Allowed  bool       `json:"allowed"`
	Remote   bool       `json:"remote"`
	Deadline *time.Time `json:"deadline,omitempty"`
	Reason   string     `json:"reason,omitempty"`
}

// ValidateResponse resultado de validar sin persistir.
type ValidateResponse struct {
	Valid  bool                     `json:"valid"`
	Issues []domain.ValidationIssue `json:"issues"`
}

// EInvoiceFromEntity mapea la entidad; withDocument incluye el documento serializado.
func EInvoiceFromEntity(e *entity.EInvoice, withDocument bool) EInvoiceResponse {
	out := EInvoiceResponse{
		ID:                 e.ID,
		InvoiceID:          e.InvoiceID,
		InvoiceNumber:      e.InvoiceNumber,
		InvoiceType:        string(e.InvoiceType),
		Status:             string(e.Status),
		Version:            e.Version,
		LhdnUUID:           e.LhdnUUID,
		LhdnLongID:         e.LhdnLongID,
		LhdnSubmissionUID:  e.LhdnSubmissionUID,
		DocumentFormat:     e.DocumentFormat,
		DocumentHash:       e.DocumentHash,
		ErrorCode:          e.ErrorCode,
		ErrorMessage:       e.ErrorMessage,
		RetryCount:         e.RetryCount,
		LastRetryAt:        e.LastRetryAt,
		SubmittedAt:        e.SubmittedAt,
		ValidatedAt:        e.ValidatedAt,
		CancelledAt:        e.CancelledAt,
		RejectedAt:         e.RejectedAt,
		CancelReason:       e.CancelReason,
		OriginalEInvoiceID: e.OriginalEInvoiceID,
		Currency:           e.Currency,
		TotalAmount:        e.TotalAmount,
		CreatedAt:          e.CreatedAt,
		UpdatedAt:          e.UpdatedAt,
	}
	if e.ValidationErrors != "" && json.Valid([]byte(e.ValidationErrors)) {
		out.ValidationErrors = json.RawMessage(e.ValidationErrors)
	}
	if withDocument {
		out.Document = e.RequestDocument
	}
	return out
}

// ItemsFromEntity mapea las líneas.
func ItemsFromEntity(items []*entity.EInvoiceItem) []EInvoiceItemDTO {
	out := make([]EInvoiceItemDTO, 0, len(items))
	for _, it := range items {
		out = append(out, EInvoiceItemDTO{
			ProductCode:        it.ProductCode,
			Description:        it.Description,
			ClassificationCode: it.ClassificationCode,
			Quantity:           it.Quantity,
			UnitCode:           it.UnitCode,
			UnitPrice:          it.UnitPrice,
			TaxType:            it.TaxType,
			TaxRate:            it.TaxRate,
			TaxAmount:          it.TaxAmount,
			DiscountAmount:     it.DiscountAmount,
			TotalAmount:        it.TotalAmount,
			SortOrder:          it.SortOrder,
		})
	}
	return out
}

// LogsFromEntity mapea la bitácora conservando el orden.
func LogsFromEntity(logs []*entity.EInvoiceLog) []EInvoiceLogDTO {
	out := make([]EInvoiceLogDTO, 0, len(logs))
	for _, l := range logs {
		out = append(out, EInvoiceLogDTO{
			ID:           l.ID,
			Action:       l.Action,
			Status:       string(l.Status),
			Message:      l.Message,
			ErrorCode:    l.ErrorCode,
			ErrorMessage: l.ErrorMessage,
			CreatedAt:    l.CreatedAt,
		})
	}
	return out
}

// PageFromEntity mapea una página de resultados.
func PageFromEntity(p *entity.EInvoicePage) EInvoiceListResponse {
	out := EInvoiceListResponse{
		Items:        make([]EInvoiceResponse, 0, len(p.Items)),
		PageResponse: PageResponse{Page: p.Page, PageSize: p.PageSize, Total: p.Total},
	}
	for _, e := range p.Items {
		out.Items = append(out.Items, EInvoiceFromEntity(e, false))
	}
	return out
}

// SummaryFromEntity conteo por estado con claves en texto.
func SummaryFromEntity(s entity.StatusSummary) map[string]int {
	out := make(map[string]int, len(s))
	for st, n := range s {
		out[string(st)] = n
	}
	return out
}
