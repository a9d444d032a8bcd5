package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound                  = errors.New("recurso no encontrado")
	ErrInvalidInput              = errors.New("entrada inválida")
	ErrForbidden                 = errors.New("acceso denegado")
	ErrConflict                  = errors.New("conflicto con el estado actual")
	ErrValidationFailed          = errors.New("validación fallida")
	ErrIllegalTransition         = errors.New("transición de estado no permitida")
	ErrCancellationWindowExpired = errors.New("ventana de cancelación vencida")
	ErrRetryExhausted            = errors.New("reintentos agotados")
	ErrAuthorityRejected         = errors.New("documento rechazado por LHDN")
	ErrTransportFailure          = errors.New("falla de comunicación con LHDN")
)

// ValidationIssue problema puntual de validación (código + mensaje + ruta del campo).
type ValidationIssue struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// ValidationError agrupa todos los problemas encontrados en una sola validación.
type ValidationError struct {
	Issues []ValidationIssue
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Issues))
	for _, is := range e.Issues {
		if is.Field != "" {
			msgs = append(msgs, fmt.Sprintf("%s (%s): %s", is.Code, is.Field, is.Message))
			continue
		}
		msgs = append(msgs, is.Code+": "+is.Message)
	}
	return fmt.Sprintf("%s: %s", ErrValidationFailed, strings.Join(msgs, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrValidationFailed }

// IllegalTransitionError operación no permitida desde el estado actual.
type IllegalTransitionError struct {
	Operation string
	Current   string
	Attempted string
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("%s: %s no permitido desde %s (destino %s)", ErrIllegalTransition, e.Operation, e.Current, e.Attempted)
}

func (e *IllegalTransitionError) Unwrap() error { return ErrIllegalTransition }

// CancellationWindowError la cancelación llegó después del plazo; lleva el plazo calculado.
type CancellationWindowError struct {
	Deadline time.Time
}

func (e *CancellationWindowError) Error() string {
	return fmt.Sprintf("%s: el plazo venció el %s, emita una nota de crédito o débito",
		ErrCancellationWindowExpired, e.Deadline.UTC().Format(time.RFC3339))
}

func (e *CancellationWindowError) Unwrap() error { return ErrCancellationWindowExpired }

// RetryExhaustedError se alcanzó el máximo de reintentos por fallas de transporte.
type RetryExhaustedError struct {
	RetryCount int
	Max        int
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("%s: %d de %d", ErrRetryExhausted, e.RetryCount, e.Max)
}

func (e *RetryExhaustedError) Unwrap() error { return ErrRetryExhausted }

// AuthorityRejectedError LHDN rechazó el documento (no es falla de transporte).
type AuthorityRejectedError struct {
	Code    string
	Message string
}

func (e *AuthorityRejectedError) Error() string {
	return fmt.Sprintf("%s [%s]: %s", ErrAuthorityRejected, e.Code, e.Message)
}

func (e *AuthorityRejectedError) Unwrap() error { return ErrAuthorityRejected }

// TransportError falla de red, timeout o respuesta malformada al hablar con LHDN.
type TransportError struct {
	Cause error
}

func (e *TransportError) Error() string {
	if e.Cause == nil {
		return ErrTransportFailure.Error()
	}
	return fmt.Sprintf("%s: %v", ErrTransportFailure, e.Cause)
}

// Unwrap permite errors.Is tanto contra ErrTransportFailure como contra la causa original.
func (e *TransportError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrTransportFailure}
	}
	return []error{ErrTransportFailure, e.Cause}
}
