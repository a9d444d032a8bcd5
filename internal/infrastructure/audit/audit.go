// Package audit escribe la bitácora de la e-Invoice como eventos estructurados de zerolog.
package audit

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/jhoicas/myinvois-api/internal/domain/entity"
)

// LogSink implementa einvoice.AuditSink. Cada entrada persistida genera un evento "audit".
type LogSink struct {
	log zerolog.Logger
}

// NewLogSink etiqueta los eventos con component=audit.
func NewLogSink(log zerolog.Logger) *LogSink {
	return &LogSink{log: log.With().Str("component", "audit").Logger()}
}

func (s *LogSink) Record(_ context.Context, l *entity.EInvoiceLog) {
	if l == nil {
		return
	}
	ev := s.log.Info()
	if l.ErrorCode != "" {
		ev = s.log.Warn().Str("error_code", l.ErrorCode).Str("error_message", l.ErrorMessage)
	}
	ev.Str("log_id", l.ID).
		Str("tenant_id", l.TenantID).
		Str("einvoice_id", l.EInvoiceID).
		Str("action", l.Action).
		Str("status", string(l.Status)).
		Time("at", l.CreatedAt).
		Msg(l.Message)
}
