package dto

import "github.com/jhoicas/myinvois-api/internal/domain"

// PageRequest paginación para listados (page base 1).
type PageRequest struct {
	Page     int `query:"page"`
	PageSize int `query:"page_size"`
}

// PageResponse metadatos de página en respuestas.
type PageResponse struct {
	Page     int `json:"page"`
	PageSize int `json:"page_size"`
	Total    int `json:"total"`
}

// ErrorResponse cuerpo de error HTTP. Issues solo en errores de validación.
type ErrorResponse struct {
	Code     string                   `json:"code"`
	Message  string                   `json:"message"`
	Issues   []domain.ValidationIssue `json:"issues,omitempty"`
	Deadline string                   `json:"deadline,omitempty"` // RFC 3339, ventana de cancelación
}
