package myinvois

import (
	"time"

	"github.com/jhoicas/myinvois-api/internal/domain"
	"github.com/jhoicas/myinvois-api/internal/domain/entity"
)

// CancellationWindow plazo para cancelar un documento desde su validación por LHDN.
const CancellationWindow = 72 * time.Hour

// CancelDecision resultado de evaluar una cancelación.
type CancelDecision struct {
	// Remote true si hay que cancelar también en LHDN (el documento ya tiene UUID).
	Remote bool
	// Deadline plazo de cancelación; nil cuando no aplica (local, o aún sin validar).
	Deadline *time.Time
}

// EvaluateCancellation aplica las reglas de cancelación sin mutar nada.
//   - DRAFT / PENDING / ERROR / INVALID: cancelación local inmediata. LHDN no tiene un
//     documento vigente que cancelar (nunca lo aceptó o lo declaró inválido).
//   - VALID / SUBMITTED: permitido si now <= validatedAt + 72h; sin validatedAt no hay ventana.
//   - CANCELLED / REJECTED: transición ilegal.
func EvaluateCancellation(einv *entity.EInvoice, now time.Time) (CancelDecision, error) {
	switch einv.Status {
	case entity.EInvoiceStatusDraft, entity.EInvoiceStatusPending,
		entity.EInvoiceStatusError, entity.EInvoiceStatusInvalid:
		return CancelDecision{Remote: false}, nil

	case entity.EInvoiceStatusValid, entity.EInvoiceStatusSubmitted:
		if einv.ValidatedAt == nil {
			return CancelDecision{Remote: true}, nil
		}
		deadline := einv.ValidatedAt.Add(CancellationWindow)
		if now.After(deadline) {
			return CancelDecision{Remote: true, Deadline: &deadline}, &domain.CancellationWindowError{Deadline: deadline}
		}
		return CancelDecision{Remote: true, Deadline: &deadline}, nil
	}
	return CancelDecision{}, illegal(OpCancel, einv.Status, entity.EInvoiceStatusCancelled)
}
