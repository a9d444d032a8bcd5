package repository

import (
	"context"

	"github.com/jhoicas/myinvois-api/internal/domain/entity"
)

// InvoiceReader define el puerto de lectura de la factura comercial de origen.
// GetInvoice devuelve la cabecera con su Customer y sus Lines ordenadas; domain.ErrNotFound si no existe.
type InvoiceReader interface {
	GetInvoice(ctx context.Context, tenantID, invoiceID string) (*entity.Invoice, error)
}

// TenantSettingsRepository lectura de la configuración clave/valor del tenant.
type TenantSettingsRepository interface {
	// GetSettings devuelve los pares cuya clave empieza por prefix (vacío = todos).
	GetSettings(ctx context.Context, tenantID, prefix string) (map[string]string, error)
	SetSetting(ctx context.Context, tenantID, key, value string) error
}
