package repository

import (
	"context"

	"github.com/jhoicas/myinvois-api/internal/domain/entity"
)

// EInvoiceRepository define el puerto de persistencia para EInvoice, sus líneas y su bitácora.
// Todas las operaciones se acotan por tenant.
type EInvoiceRepository interface {
	// Create inserta la e-Invoice, sus líneas y la entrada de bitácora en una sola transacción.
	// Devuelve domain.ErrConflict si ya existe una e-Invoice activa para la misma factura.
	Create(ctx context.Context, einv *entity.EInvoice, items []*entity.EInvoiceItem, log *entity.EInvoiceLog) error
	GetByID(ctx context.Context, tenantID, id string) (*entity.EInvoice, error)
	// GetByInvoiceID devuelve la e-Invoice más reciente de la factura (cualquier estado).
	GetByInvoiceID(ctx context.Context, tenantID, invoiceID string) (*entity.EInvoice, error)
	// FindActiveByInvoiceID devuelve la e-Invoice activa (no CANCELLED/REJECTED/ERROR) o domain.ErrNotFound.
	FindActiveByInvoiceID(ctx context.Context, tenantID, invoiceID string) (*entity.EInvoice, error)
	GetItems(ctx context.Context, tenantID, einvoiceID string) ([]*entity.EInvoiceItem, error)

	// UpdateIfCurrent escribe einv solo si el registro persistido sigue en expected y en einv.Version.
	// Si escribe, incrementa einv.Version y anexa log (si no es nil) en la misma transacción.
	// Devuelve false sin error cuando otra escritura ganó la carrera.
	UpdateIfCurrent(ctx context.Context, einv *entity.EInvoice, expected entity.EInvoiceStatus, log *entity.EInvoiceLog) (bool, error)

	AppendLog(ctx context.Context, log *entity.EInvoiceLog) error
	ListLogs(ctx context.Context, tenantID, einvoiceID string) ([]*entity.EInvoiceLog, error)

	List(ctx context.Context, tenantID string, filter entity.EInvoiceFilter, page, pageSize int) (*entity.EInvoicePage, error)
	CountByStatus(ctx context.Context, tenantID string) (entity.StatusSummary, error)
	// ListByStatus devuelve hasta limit e-Invoices en el estado dado, las más antiguas primero.
	ListByStatus(ctx context.Context, tenantID string, status entity.EInvoiceStatus, limit int) ([]*entity.EInvoice, error)
}
