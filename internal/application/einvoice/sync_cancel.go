package einvoice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jhoicas/myinvois-api/internal/domain"
	"github.com/jhoicas/myinvois-api/internal/domain/entity"
	domainmyinvois "github.com/jhoicas/myinvois-api/internal/domain/myinvois"
	inframyinvois "github.com/jhoicas/myinvois-api/internal/infrastructure/myinvois"
)

// CancelEligibility respuesta de CanCancel (misma lógica que Cancel, sin mutar nada).
type CancelEligibility struct {
	Allowed  bool
	Remote   bool       // requiere cancelar también en LHDN
	Deadline *time.Time // plazo de cancelación; nil si no aplica
	Reason   string     // motivo cuando Allowed es false
}

// ═══════════════════════════════════════════════════════════════════════════════
// Sincronización de estado
// ═══════════════════════════════════════════════════════════════════════════════

// SyncStatus consulta el estado en LHDN y lo refleja en la e-Invoice.
// Solo registra bitácora si el estado cambió.
func (s *Service) SyncStatus(ctx context.Context, tenantID, id string) (*entity.EInvoice, error) {
	if s.submitter == nil {
		return nil, errors.New("einvoice: adaptador de envío no configurado")
	}
	einv, err := s.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if err := domainmyinvois.CanSync(einv); err != nil {
		return nil, err
	}

	details, err := s.submitter.GetDocumentDetails(ctx, einv.LhdnUUID)
	if err != nil {
		s.log.Warn().Err(err).Str("tenant_id", tenantID).Str("einvoice_id", id).Msg("sync: falla consultando LHDN")
		return nil, &domain.TransportError{Cause: err}
	}
	mapped, ok := domainmyinvois.MapAuthorityStatus(details.Status)
	if !ok {
		return nil, &domain.TransportError{Cause: fmt.Errorf("estado LHDN desconocido %q", details.Status)}
	}
	// SUBMITTED en LHDN no deshace un resultado ya conocido.
	if mapped == entity.EInvoiceStatusSubmitted &&
		(einv.Status == entity.EInvoiceStatusValid || einv.Status == entity.EInvoiceStatusInvalid) {
		mapped = einv.Status
	}

	expected := einv.Status
	changed := mapped != einv.Status
	dirty := changed

	if details.LongID != "" && details.LongID != einv.LhdnLongID {
		einv.LhdnLongID = details.LongID
		dirty = true
	}
	if details.DateTimeValidated != nil {
		v := details.DateTimeValidated.UTC()
		if einv.ValidatedAt == nil || !einv.ValidatedAt.Equal(v) {
			einv.ValidatedAt = &v
			dirty = true
		}
	}
	if !dirty {
		return einv, nil
	}

	var log *entity.EInvoiceLog
	if changed {
		now := s.now().UTC()
		einv.Status = mapped
		einv.ResponseJSON = string(details.Raw)
		switch mapped {
		case entity.EInvoiceStatusValid:
			if einv.ValidatedAt == nil {
				einv.ValidatedAt = &now
			}
		case entity.EInvoiceStatusInvalid:
			errs := details.Errors()
			einv.ValidationErrors = marshalErrors(errs)
			if len(errs) > 0 {
				einv.ErrorCode, einv.ErrorMessage = errs[0].Code, errs[0].Message
			}
		case entity.EInvoiceStatusCancelled:
			if einv.CancelledAt == nil {
				einv.CancelledAt = &now
			}
		case entity.EInvoiceStatusRejected:
			einv.RejectedAt = &now
		}
		log = s.newLog(einv, entity.LogActionSync, fmt.Sprintf("estado LHDN %s: %s → %s", details.Status, expected, mapped))
		log.ResponseJSON = einv.ResponseJSON
		if mapped == entity.EInvoiceStatusInvalid {
			log.ErrorCode = einv.ErrorCode
			log.ErrorMessage = einv.ErrorMessage
		}
	}

	if err := s.transition(ctx, einv, expected, log); err != nil {
		return nil, err
	}
	return einv, nil
}

// ═══════════════════════════════════════════════════════════════════════════════
// Cancelación
// ═══════════════════════════════════════════════════════════════════════════════

// CanCancel evalúa la cancelación con la hora actual y devuelve el plazo para mostrarlo.
func (s *Service) CanCancel(ctx context.Context, tenantID, id string) (*CancelEligibility, error) {
	einv, err := s.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	decision, err := domainmyinvois.EvaluateCancellation(einv, s.now())
	if err == nil {
		err = s.checkInFlight(einv)
	}
	out := &CancelEligibility{Remote: decision.Remote && einv.LhdnUUID != "", Deadline: decision.Deadline}
	if err != nil {
		var we *domain.CancellationWindowError
		var it *domain.IllegalTransitionError
		if !errors.As(err, &we) && !errors.As(err, &it) && !errors.Is(err, domain.ErrConflict) {
			return nil, err
		}
		out.Reason = err.Error()
		return out, nil
	}
	out.Allowed = true
	return out, nil
}

// Cancel cancela la e-Invoice. DRAFT, PENDING abandonada, ERROR e INVALID se cancelan
// localmente; SUBMITTED y VALID se cancelan primero en LHDN dentro de la ventana de 72 h
// desde la validación.
func (s *Service) Cancel(ctx context.Context, tenantID, id, reason string) (*entity.EInvoice, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, domainmyinvois.AsError([]domain.ValidationIssue{{
			Code: domainmyinvois.IssueCancelReasonRequired, Field: "reason", Message: "el motivo de cancelación es obligatorio",
		}})
	}
	einv, err := s.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	decision, err := domainmyinvois.EvaluateCancellation(einv, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.checkInFlight(einv); err != nil {
		return nil, err
	}
	expected := einv.Status

	wctx := ctx
	if decision.Remote && einv.LhdnUUID != "" {
		if s.submitter == nil {
			return nil, errors.New("einvoice: adaptador de envío no configurado")
		}
		if err := s.submitter.CancelDocument(ctx, einv.LhdnUUID, reason); err != nil {
			return nil, s.cancelFailed(context.WithoutCancel(ctx), einv, err)
		}
		wctx = context.WithoutCancel(ctx)
	}

	now := s.now().UTC()
	einv.Status = entity.EInvoiceStatusCancelled
	einv.CancelledAt = &now
	einv.CancelReason = reason
	log := s.newLog(einv, entity.LogActionCancel, "cancelada: "+reason)
	if err := s.transition(wctx, einv, expected, log); err != nil {
		return nil, err
	}
	return einv, nil
}

// cancelFailed registra el intento fallido sin cambiar el estado y clasifica el error.
func (s *Service) cancelFailed(ctx context.Context, einv *entity.EInvoice, cause error) error {
	log := s.newLog(einv, entity.LogActionCancel, "falla al cancelar en LHDN")
	log.ErrorCode = entity.ErrorCodeCancel
	log.ErrorMessage = cause.Error()
	if err := s.repo.AppendLog(ctx, log); err != nil {
		s.log.Error().Err(err).Str("einvoice_id", einv.ID).Msg("no se pudo registrar la falla de cancelación")
	} else {
		s.recorded(ctx, log)
	}

	var apiErr *inframyinvois.APIError
	if errors.As(cause, &apiErr) && !apiErr.Temporary() {
		return &domain.AuthorityRejectedError{Code: apiErr.Code, Message: apiErr.Message}
	}
	return &domain.TransportError{Cause: cause}
}
