package einvoice

import (
	"context"

	"github.com/jhoicas/myinvois-api/internal/domain/entity"
)

// DocumentSigner firma documentos XML (versión 1.1). nil en el servicio = sin firma.
type DocumentSigner interface {
	Sign(xmlBytes []byte) ([]byte, error)
	// ContentDigest digest del contenido sin la firma, estable entre firmas del mismo documento.
	ContentDigest(xmlBytes []byte) (string, error)
}

// AuditSink recibe cada entrada de bitácora ya persistida (solo escritura).
type AuditSink interface {
	Record(ctx context.Context, log *entity.EInvoiceLog)
}

// Metrics contadores del ciclo de vida.
type Metrics interface {
	Transition(action string, status entity.EInvoiceStatus)
	SubmissionOutcome(outcome string)
}

type nopAudit struct{}

func (nopAudit) Record(context.Context, *entity.EInvoiceLog) {}

type nopMetrics struct{}

func (nopMetrics) Transition(string, entity.EInvoiceStatus) {}
func (nopMetrics) SubmissionOutcome(string)                 {}
