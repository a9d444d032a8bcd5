package entity

import "time"

// EInvoiceFilter criterios de listado (todos opcionales).
type EInvoiceFilter struct {
	Status      EInvoiceStatus
	InvoiceType InvoiceType
	InvoiceID   string
	From        *time.Time // CreatedAt >= From
	To          *time.Time // CreatedAt < To
}

// EInvoicePage resultado paginado.
type EInvoicePage struct {
	Items    []*EInvoice
	Total    int
	Page     int
	PageSize int
}

// StatusSummary conteo de e-Invoices por estado (todos los estados presentes, aunque sea con 0).
type StatusSummary map[EInvoiceStatus]int
