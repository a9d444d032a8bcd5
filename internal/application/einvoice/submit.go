package einvoice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jhoicas/myinvois-api/internal/domain"
	"github.com/jhoicas/myinvois-api/internal/domain/entity"
	domainmyinvois "github.com/jhoicas/myinvois-api/internal/domain/myinvois"
	inframyinvois "github.com/jhoicas/myinvois-api/internal/infrastructure/myinvois"
)

// Resultados posibles de un envío a LHDN.
const (
	OutcomeSubmitted      = "submitted"
	OutcomeRejected       = "rejected"
	OutcomeTransportError = "transport_error"
)

// SubmitResult resultado estructurado de Submit/Retry. Un rechazo de LHDN o una falla de
// transporte no son errores de la llamada: quedan persistidos y se informan aquí.
type SubmitResult struct {
	EInvoice       *entity.EInvoice
	Outcome        string
	AuthorityError *domain.AuthorityRejectedError // Outcome == rejected
	TransportError *domain.TransportError         // Outcome == transport_error
}

// Err devuelve el rechazo o la falla de transporte como error (nil si fue aceptado).
func (r *SubmitResult) Err() error {
	switch {
	case r.AuthorityError != nil:
		return r.AuthorityError
	case r.TransportError != nil:
		return r.TransportError
	}
	return nil
}

// ═══════════════════════════════════════════════════════════════════════════════
// Envío y reintento
// ═══════════════════════════════════════════════════════════════════════════════

// Submit envía la e-Invoice a LHDN desde DRAFT, PENDING (abandonada) o ERROR.
// Reutiliza el documento en caché; solo lo construye si no existe.
func (s *Service) Submit(ctx context.Context, tenantID, id string) (*SubmitResult, error) {
	einv, err := s.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if err := domainmyinvois.CanSubmit(einv.Status); err != nil {
		return nil, err
	}
	if einv.Status == entity.EInvoiceStatusError && einv.RetryCount >= domainmyinvois.MaxRetryCount {
		return nil, &domain.RetryExhaustedError{RetryCount: einv.RetryCount, Max: domainmyinvois.MaxRetryCount}
	}
	// Solo se retoma una reserva PENDING abandonada.
	if err := s.checkInFlight(einv); err != nil {
		return nil, err
	}
	return s.submit(ctx, einv, entity.LogActionSubmit, false)
}

// Retry reintenta desde ERROR o INVALID mientras queden reintentos.
// Desde INVALID reconstruye el documento y exige que su contenido haya cambiado.
func (s *Service) Retry(ctx context.Context, tenantID, id string) (*SubmitResult, error) {
	einv, err := s.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if err := domainmyinvois.CanRetry(einv.Status, einv.RetryCount); err != nil {
		return nil, err
	}
	return s.submit(ctx, einv, entity.LogActionRetry, einv.Status == entity.EInvoiceStatusInvalid)
}

// ── helpers privados ─────────────────────────────────────────────────────────

func (s *Service) submit(ctx context.Context, einv *entity.EInvoice, action string, rebuild bool) (*SubmitResult, error) {
	if s.submitter == nil {
		return nil, errors.New("einvoice: adaptador de envío no configurado")
	}
	expected := einv.Status

	if rebuild || !einv.HasDocument() {
		art, err := s.prepare(ctx, einv)
		if err != nil {
			return nil, err
		}
		// Se compara con lo que LHDN rechazó, no con el documento en caché:
		// un build posterior al rechazo ya contiene la corrección.
		if rebuild && s.contentDigest(art.raw) == s.rejectedDigest(einv) {
			return nil, domainmyinvois.AsError([]domain.ValidationIssue{{
				Code:    domainmyinvois.IssueDocumentUnchanged,
				Message: "el documento rechazado no cambió; corrija los datos antes de reintentar",
			}})
		}
		einv.RequestDocument = string(art.raw)
		einv.DocumentHash = art.hash
	}
	einv.SubmittedDigest = s.contentDigest([]byte(einv.RequestDocument))

	// 1. Reservar: PENDING queda persistido antes de hablar con LHDN.
	einv.Status = entity.EInvoiceStatusPending
	pending := s.newLog(einv, entity.LogActionSubmitPending, "reservada para envío a LHDN")
	if err := s.transition(ctx, einv, expected, pending); err != nil {
		return nil, err
	}

	// 2. Enviar.
	hash, b64 := inframyinvois.HashDocument([]byte(einv.RequestDocument))
	resp, callErr := s.submitter.SubmitDocuments(ctx, []inframyinvois.SubmitDocument{{
		Format:       einv.DocumentFormat,
		Document:     b64,
		DocumentHash: hash,
		CodeNumber:   einv.InvoiceNumber,
	}})

	// 3. Registrar el resultado aunque el llamador haya cancelado ctx: el envío ya ocurrió.
	wctx := context.WithoutCancel(ctx)
	res := s.applyOutcome(einv, action, resp, callErr)
	if err := s.transition(wctx, einv, entity.EInvoiceStatusPending, res.log); err != nil {
		s.log.Error().Err(err).
			Str("tenant_id", einv.TenantID).
			Str("einvoice_id", einv.ID).
			Str("outcome", res.result.Outcome).
			Msg("no se pudo registrar el resultado del envío; la e-invoice queda en PENDING")
		return nil, err
	}
	s.metrics.SubmissionOutcome(res.result.Outcome)
	res.result.EInvoice = einv
	return res.result, nil
}

// checkInFlight ErrConflict si la e-Invoice está en PENDING dentro del plazo de reserva:
// otro envío está hablando con LHDN.
func (s *Service) checkInFlight(einv *entity.EInvoice) error {
	if einv.Status == entity.EInvoiceStatusPending && s.now().Sub(einv.UpdatedAt) < s.cfg.PendingLease {
		return fmt.Errorf("e-invoice %s tiene un envío en curso desde %s: %w",
			einv.ID, einv.UpdatedAt.Format(time.RFC3339), domain.ErrConflict)
	}
	return nil
}

// rejectedDigest huella del documento que LHDN rechazó. Los registros anteriores a
// submitted_digest usan el documento en caché.
func (s *Service) rejectedDigest(einv *entity.EInvoice) string {
	if einv.SubmittedDigest != "" {
		return einv.SubmittedDigest
	}
	if einv.HasDocument() {
		return s.contentDigest([]byte(einv.RequestDocument))
	}
	return ""
}

type outcome struct {
	result *SubmitResult
	log    *entity.EInvoiceLog
}

// applyOutcome clasifica la respuesta y muta einv; no persiste.
func (s *Service) applyOutcome(einv *entity.EInvoice, action string, resp *inframyinvois.SubmissionResponse, callErr error) outcome {
	now := s.now().UTC()

	if callErr == nil && resp != nil && len(resp.AcceptedDocuments) > 0 {
		acc := resp.AcceptedDocuments[0]
		einv.Status = entity.EInvoiceStatusSubmitted
		einv.LhdnUUID = acc.UUID
		einv.LhdnSubmissionUID = resp.SubmissionUID
		einv.SubmittedAt = &now
		einv.ResponseJSON = string(resp.Raw)
		einv.ErrorCode, einv.ErrorMessage, einv.ValidationErrors = "", "", ""
		log := s.newLog(einv, action, fmt.Sprintf("aceptada por LHDN (uuid %s, envío %s)", acc.UUID, resp.SubmissionUID))
		log.ResponseJSON = einv.ResponseJSON
		return outcome{result: &SubmitResult{Outcome: OutcomeSubmitted}, log: log}
	}

	if callErr == nil && resp != nil && len(resp.RejectedDocuments) > 0 {
		rej := resp.RejectedDocuments[0]
		code, msg := firstError(rej.Error)
		einv.Status = entity.EInvoiceStatusInvalid
		einv.LhdnSubmissionUID = resp.SubmissionUID
		einv.ResponseJSON = string(resp.Raw)
		einv.ErrorCode = code
		einv.ErrorMessage = msg
		einv.ValidationErrors = marshalErrors([]inframyinvois.ErrorDetail{rej.Error})
		log := s.newLog(einv, action, "rechazada por LHDN")
		log.ResponseJSON = einv.ResponseJSON
		log.ErrorCode = code
		log.ErrorMessage = msg
		return outcome{
			result: &SubmitResult{Outcome: OutcomeRejected, AuthorityError: &domain.AuthorityRejectedError{Code: code, Message: msg}},
			log:    log,
		}
	}

	if callErr == nil {
		callErr = errors.New("respuesta de LHDN sin documentos aceptados ni rechazados")
	}
	einv.Status = entity.EInvoiceStatusError
	einv.RetryCount++
	einv.LastRetryAt = &now
	einv.ErrorCode = entity.ErrorCodeSubmission
	einv.ErrorMessage = callErr.Error()
	log := s.newLog(einv, action, fmt.Sprintf("falla de envío (intento %d de %d)", einv.RetryCount, domainmyinvois.MaxRetryCount))
	log.ErrorCode = entity.ErrorCodeSubmission
	log.ErrorMessage = callErr.Error()
	return outcome{
		result: &SubmitResult{Outcome: OutcomeTransportError, TransportError: &domain.TransportError{Cause: callErr}},
		log:    log,
	}
}

// firstError código y mensaje del rechazo; si la cabecera viene vacía usa el primer detalle.
func firstError(e inframyinvois.ErrorDetail) (code, msg string) {
	code, msg = e.Code, e.Message
	for _, d := range e.Details {
		if code == "" {
			code = d.Code
		}
		if msg == "" {
			msg = d.Message
		}
	}
	if code == "" {
		code = "REJECTED"
	}
	return code, msg
}

func marshalErrors(errs []inframyinvois.ErrorDetail) string {
	if len(errs) == 0 {
		return ""
	}
	b, err := json.Marshal(errs)
	if err != nil {
		return ""
	}
	return string(b)
}
