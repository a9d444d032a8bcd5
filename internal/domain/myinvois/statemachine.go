// Package myinvois contiene las reglas de dominio del ciclo de vida de la e-Invoice LHDN (Malasia):
// máquina de estados, ventana de cancelación, agrupación de impuestos y validación previa al envío.
// No hace I/O; el servicio de aplicación la consulta antes de cada transición.
package myinvois

import (
	"strings"

	"github.com/jhoicas/myinvois-api/internal/domain"
	"github.com/jhoicas/myinvois-api/internal/domain/entity"
)

// MaxRetryCount máximo de fallas de transporte antes de rechazar nuevos reintentos.
const MaxRetryCount = 3

// Operaciones del ciclo de vida (se usan en los errores de transición).
const (
	OpBuild  = "build"
	OpSubmit = "submit"
	OpRetry  = "retry"
	OpSync   = "sync"
	OpCancel = "cancel"
)

// CanSubmit DRAFT, PENDING o ERROR -> PENDING.
func CanSubmit(current entity.EInvoiceStatus) error {
	switch current {
	case entity.EInvoiceStatusDraft, entity.EInvoiceStatusPending, entity.EInvoiceStatusError:
		return nil
	}
	return illegal(OpSubmit, current, entity.EInvoiceStatusPending)
}

// CanRetry solo desde ERROR o INVALID y con reintentos disponibles.
// El tope se evalúa después del estado para que un estado ilegal no se reporte como agotado.
func CanRetry(current entity.EInvoiceStatus, retryCount int) error {
	if current != entity.EInvoiceStatusError && current != entity.EInvoiceStatusInvalid {
		return illegal(OpRetry, current, entity.EInvoiceStatusPending)
	}
	if retryCount >= MaxRetryCount {
		return &domain.RetryExhaustedError{RetryCount: retryCount, Max: MaxRetryCount}
	}
	return nil
}

// CanBuild el documento se (re)construye en DRAFT, ERROR o INVALID.
// PENDING queda excluido: hay un envío en curso que usa el documento en caché.
func CanBuild(current entity.EInvoiceStatus) error {
	switch current {
	case entity.EInvoiceStatusDraft, entity.EInvoiceStatusError, entity.EInvoiceStatusInvalid:
		return nil
	}
	return illegal(OpBuild, current, current)
}

// CanSync requiere UUID de LHDN y un estado no terminal.
func CanSync(einv *entity.EInvoice) error {
	if einv.Status.IsTerminal() {
		return illegal(OpSync, einv.Status, einv.Status)
	}
	if einv.LhdnUUID == "" {
		return &domain.IllegalTransitionError{
			Operation: OpSync,
			Current:   string(einv.Status),
			Attempted: "sin UUID de LHDN",
		}
	}
	return nil
}

// MapAuthorityStatus traduce el estado reportado por LHDN al estado interno.
func MapAuthorityStatus(status string) (entity.EInvoiceStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "valid":
		return entity.EInvoiceStatusValid, true
	case "invalid":
		return entity.EInvoiceStatusInvalid, true
	case "cancelled":
		return entity.EInvoiceStatusCancelled, true
	case "submitted":
		return entity.EInvoiceStatusSubmitted, true
	case "rejected":
		return entity.EInvoiceStatusRejected, true
	}
	return "", false
}

func illegal(op string, current, attempted entity.EInvoiceStatus) error {
	return &domain.IllegalTransitionError{
		Operation: op,
		Current:   string(current),
		Attempted: string(attempted),
	}
}
